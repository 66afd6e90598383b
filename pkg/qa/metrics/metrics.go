package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's Prometheus collectors plus a mutex-guarded
// mirror for the aggregate JSON endpoint.
type Metrics struct {
	Requests        *prometheus.CounterVec
	Fallbacks       prometheus.Counter
	VerifierRejects prometheus.Counter
	RequestLatency  prometheus.Histogram
	ActiveTraces    prometheus.Gauge

	mu           sync.Mutex
	requestCount int64
	fallbackUsed int64
	rejects      int64
	latencySumMs int64
	routeCounts  map[string]int64
}

// Snapshot is the aggregate view served by the JSON metrics endpoint.
type Snapshot struct {
	RequestCount      int64            `json:"request_count"`
	FallbackCount     int64            `json:"fallback_count"`
	VerifierRejects   int64            `json:"verifier_reject_count"`
	AverageLatencyMs  float64          `json:"average_latency_ms"`
	RouteDistribution map[string]int64 `json:"route_distribution"`
}

func New() *Metrics {
	return &Metrics{
		Requests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "docqa_requests_total",
			Help: "Total orchestration requests by route",
		}, []string{"route"}),

		Fallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "docqa_fallbacks_total",
			Help: "Requests that went through any rung of the fallback ladder",
		}),

		VerifierRejects: promauto.NewCounter(prometheus.CounterOpts{
			Name: "docqa_verifier_rejects_total",
			Help: "Answers replaced by the verifier's conservative template",
		}),

		RequestLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "docqa_request_duration_seconds",
			Help:    "End-to-end orchestration latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),

		ActiveTraces: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "docqa_active_traces",
			Help: "Orchestration runs currently in flight",
		}),

		routeCounts: make(map[string]int64),
	}
}

func (m *Metrics) RecordRequest(route string, latencyMs int64) {
	m.Requests.WithLabelValues(route).Inc()
	m.RequestLatency.Observe(float64(latencyMs) / 1000)

	m.mu.Lock()
	m.requestCount++
	m.latencySumMs += latencyMs
	m.routeCounts[route]++
	m.mu.Unlock()
}

func (m *Metrics) RecordFallback() {
	m.Fallbacks.Inc()

	m.mu.Lock()
	m.fallbackUsed++
	m.mu.Unlock()
}

func (m *Metrics) RecordVerifierReject() {
	m.VerifierRejects.Inc()

	m.mu.Lock()
	m.rejects++
	m.mu.Unlock()
}

func (m *Metrics) TraceStarted()  { m.ActiveTraces.Inc() }
func (m *Metrics) TraceFinished() { m.ActiveTraces.Dec() }

func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	avg := 0.0
	if m.requestCount > 0 {
		avg = float64(m.latencySumMs) / float64(m.requestCount)
	}

	routes := make(map[string]int64, len(m.routeCounts))
	for route, count := range m.routeCounts {
		routes[route] = count
	}

	return Snapshot{
		RequestCount:      m.requestCount,
		FallbackCount:     m.fallbackUsed,
		VerifierRejects:   m.rejects,
		AverageLatencyMs:  avg,
		RouteDistribution: routes,
	}
}
