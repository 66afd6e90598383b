package router

// Route is the coarse handling strategy for a query.
type Route string

const (
	RouteFastPath    Route = "FAST_PATH"
	RouteDocGrounded Route = "DOC_GROUNDED"
	RouteMultiHop    Route = "MULTI_HOP"
	RouteClarify     Route = "CLARIFY"
	RouteBlock       Route = "BLOCK"
)

// Mode is the retrieval/reasoning depth chosen within a Route.
type Mode string

const (
	ModeDirect        Mode = "R0" // answer without retrieval
	ModeSingleHop     Mode = "R1" // one retrieve
	ModeMultiRetrieve Mode = "R2" // rewrite + parallel retrieves + merge
	ModeMultiHop      Mode = "R3" // staged retrieval with a reasoning step
	ModeClarify       Mode = "R4" // ask back
	ModeBlock         Mode = "R5" // refuse
)

// Grounded reports whether answers on this route must carry citations.
func (r Route) Grounded() bool {
	return r == RouteDocGrounded || r == RouteMultiHop
}

// Downgrade returns the next less ambitious execution mode. The ladder
// bottoms out at single-hop; R0/R4/R5 do not degrade further.
func (m Mode) Downgrade() (Mode, bool) {
	switch m {
	case ModeMultiHop:
		return ModeMultiRetrieve, true
	case ModeMultiRetrieve:
		return ModeSingleHop, true
	default:
		return m, false
	}
}

// Scores are the four routing signals, each in [0,1].
type Scores struct {
	Complexity           float64 `json:"complexity"`
	Ambiguity            float64 `json:"ambiguity"`
	RetrievalSufficiency float64 `json:"retrieval_sufficiency"`
	Risk                 float64 `json:"risk"`
	ProbeFailed          bool    `json:"probe_failed"`
}

// Decision is the routing outcome.
type Decision struct {
	Route      Route   `json:"route"`
	Mode       Mode    `json:"mode"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
	Scores     Scores  `json:"scores"`
}
