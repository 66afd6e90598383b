package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"docqa-engine/internal/config"
	"docqa-engine/internal/dto"
	"docqa-engine/internal/entity"
	"docqa-engine/internal/pkg/logger"
	"docqa-engine/internal/pkg/serverutils"
	"docqa-engine/internal/repository/memory"
	"docqa-engine/internal/repository/specification"
	"docqa-engine/internal/repository/unitofwork"
	"docqa-engine/pkg/events"
	"docqa-engine/pkg/llm"
	pktNats "docqa-engine/pkg/nats"
	"docqa-engine/pkg/qa/clarify"
	"docqa-engine/pkg/qa/dag"
	"docqa-engine/pkg/qa/evidence"
	"docqa-engine/pkg/qa/kernel"
	"docqa-engine/pkg/qa/metrics"
	"docqa-engine/pkg/qa/plan"
	"docqa-engine/pkg/qa/progress"
	"docqa-engine/pkg/qa/router"
	"docqa-engine/pkg/qa/verify"
	"docqa-engine/pkg/qa/writer"
	"docqa-engine/pkg/retrieval"
	"docqa-engine/pkg/store"

	"github.com/google/uuid"
)

const (
	// recentTurnWindow bounds how much history the context indexer sees.
	recentTurnWindow = 20

	retrieveTopK = 5

	blockedAnswer = "This request falls outside what this assistant can help with."

	// staticFallbackConfidence scores the terminal rung of the ladder.
	staticFallbackConfidence = 0.1
)

type IQueryService interface {
	Query(ctx context.Context, userId *uuid.UUID, req *dto.QueryRequest) (*dto.QueryResponse, error)
	AnswerClarification(ctx context.Context, req *dto.ClarificationAnswerRequest) (*dto.QueryResponse, error)
	Retry(ctx context.Context, traceId string) (*dto.QueryResponse, error)
}

// queryService is the orchestration facade: route, plan, execute, write,
// verify, enrich, commit. One request in, one committed turn (or a
// clarification prompt) out.
type queryService struct {
	uowFactory   unitofwork.RepositoryFactory
	sessionCache *memory.SessionRepository
	execCache    *memory.ExecutionCache
	locks        *store.SessionLocks

	router    *router.Router
	generator *plan.Generator
	clarifier *clarify.Manager
	retriever retrieval.Retriever
	llm       llm.CompletionProvider
	writer    *writer.Writer
	verifier  *verify.Verifier
	indexer   *kernel.Indexer
	enricher  *kernel.Enricher

	emitter progress.Emitter
	natsPub *pktNats.Publisher
	metrics *metrics.Metrics
	logger  logger.ILogger
	cfg     config.EngineConfig
}

func NewQueryService(
	uowFactory unitofwork.RepositoryFactory,
	sessionCache *memory.SessionRepository,
	execCache *memory.ExecutionCache,
	rtr *router.Router,
	generator *plan.Generator,
	clarifier *clarify.Manager,
	retriever retrieval.Retriever,
	llmProvider llm.CompletionProvider,
	bus progress.Emitter,
	natsPub *pktNats.Publisher,
	m *metrics.Metrics,
	log logger.ILogger,
	cfg config.EngineConfig,
) IQueryService {
	return &queryService{
		uowFactory:   uowFactory,
		sessionCache: sessionCache,
		execCache:    execCache,
		locks:        store.NewSessionLocks(),
		router:       rtr,
		generator:    generator,
		clarifier:    clarifier,
		retriever:    retriever,
		llm:          llmProvider,
		writer:       writer.New(llmProvider, writer.DefaultTopN),
		verifier:     verify.New(),
		indexer:      kernel.NewIndexer(),
		enricher:     kernel.NewEnricher(),
		emitter:      newSnapshotEmitter(execCache, bus),
		natsPub:      natsPub,
		metrics:      m,
		logger:       log,
		cfg:          cfg,
	}
}

func (s *queryService) Query(ctx context.Context, userId *uuid.UUID, req *dto.QueryRequest) (*dto.QueryResponse, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, serverutils.NewBadRequestError("query must not be empty")
	}

	session, err := s.resolveSession(ctx, userId, req)
	if err != nil {
		return nil, err
	}

	release := s.locks.Acquire(session.Id.String())
	defer release()

	docScope := req.DocScope
	if len(docScope) == 0 {
		docScope = session.DocScope
	}

	// A new query supersedes any clarification still pending on the session.
	if err := s.expirePendingThread(ctx, session.Id); err != nil {
		return nil, err
	}

	traceId := strings.TrimSpace(req.TraceId)
	if traceId == "" {
		traceId = uuid.NewString()
	}

	cfg := s.cfg
	if req.Options != nil {
		if req.Options.TimeoutSec > 0 {
			cfg.RunTimeoutSeconds = req.Options.TimeoutSec
		}
		if req.Options.MaxContextChars > 0 {
			cfg.MaxContextChars = req.Options.MaxContextChars
		}
	}

	return s.process(ctx, session, query, docScope, traceId, 1, cfg)
}

func (s *queryService) AnswerClarification(ctx context.Context, req *dto.ClarificationAnswerRequest) (*dto.QueryResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	thread, err := uow.ClarificationRepository().FindOne(ctx, specification.ByID{ID: req.ThreadId})
	if err != nil {
		return nil, err
	}
	if thread == nil {
		return nil, serverutils.NewNotFoundError("clarification thread not found")
	}

	session, err := uow.QASessionRepository().FindOne(ctx, specification.ByID{ID: thread.SessionId})
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, serverutils.NewNotFoundError("session not found")
	}

	release := s.locks.Acquire(session.Id.String())
	defer release()

	resolution, err := s.clarifier.Resolve(ctx, req.ThreadId, req.Answer)
	if err != nil {
		return nil, err
	}
	query := strings.TrimSpace(resolution.MergedQuery)
	if query == "" {
		return nil, serverutils.NewBadRequestError("clarification answer must not be empty")
	}
	if resolution.Fresh {
		s.logger.Warn("QueryService", "Clarification thread expired, treating answer as fresh query", map[string]interface{}{
			"thread_id": req.ThreadId,
		})
	}

	return s.process(ctx, session, query, session.DocScope, uuid.NewString(), 1, s.cfg)
}

// Retry re-executes a trace under the same trace id with attempts
// incremented. The cached snapshot is preferred; after eviction the
// durable trace record supplies the original request.
func (s *queryService) Retry(ctx context.Context, traceId string) (*dto.QueryResponse, error) {
	var (
		sessionId uuid.UUID
		query     string
		attempts  int
	)

	if snapshot, ok := s.execCache.Get(traceId); ok {
		parsed, err := uuid.Parse(snapshot.SessionID)
		if err != nil {
			return nil, fmt.Errorf("corrupt snapshot session id: %w", err)
		}
		sessionId = parsed
		query = snapshot.Query
		attempts = snapshot.Attempts + 1
	} else {
		uow := s.uowFactory.NewUnitOfWork(ctx)
		record, err := uow.TraceRepository().FindByTraceId(ctx, traceId)
		if err != nil {
			return nil, err
		}
		if record == nil {
			return nil, serverutils.NewNotFoundError("trace not found")
		}
		sessionId = record.SessionId
		query = record.Query
		attempts = record.Attempts + 1
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	session, err := uow.QASessionRepository().FindOne(ctx, specification.ByID{ID: sessionId})
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, serverutils.NewNotFoundError("session not found")
	}

	release := s.locks.Acquire(session.Id.String())
	defer release()

	return s.process(ctx, session, query, session.DocScope, traceId, attempts, s.cfg)
}

func (s *queryService) resolveSession(ctx context.Context, userId *uuid.UUID, req *dto.QueryRequest) (*entity.QASession, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	if req.SessionId != nil {
		session, err := uow.QASessionRepository().FindOne(ctx, specification.ByID{ID: *req.SessionId})
		if err != nil {
			return nil, err
		}
		if session == nil {
			return nil, serverutils.NewNotFoundError("session not found")
		}
		return session, nil
	}

	session := &entity.QASession{
		Id:        uuid.New(),
		UserId:    userId,
		DocScope:  req.DocScope,
		CreatedAt: time.Now(),
	}
	if err := uow.QASessionRepository().Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *queryService) expirePendingThread(ctx context.Context, sessionId uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	thread, err := uow.ClarificationRepository().FindOpenBySession(ctx, sessionId)
	if err != nil {
		return err
	}
	if thread == nil {
		return nil
	}

	thread.Status = entity.ClarificationStatusExpired
	return uow.ClarificationRepository().Update(ctx, thread)
}

// process runs the full pipeline for one (session, query) pair.
func (s *queryService) process(ctx context.Context, session *entity.QASession, query string, docScope []string, traceId string, attempts int, cfg config.EngineConfig) (*dto.QueryResponse, error) {
	started := time.Now()

	uow := s.uowFactory.NewUnitOfWork(ctx)
	turns, err := uow.TurnRepository().FindRecentBySession(ctx, session.Id, recentTurnWindow)
	if err != nil {
		return nil, err
	}
	blocks := s.indexer.SelectContext(query, turns, kernel.DefaultContextLimit)
	blocks = kernel.TruncateByBudget(blocks, cfg.MaxContextChars)
	blockResps := toContextBlockResponses(blocks)

	scores := s.router.Score(ctx, query, blocks, docScope)
	dec := s.router.Decide(scores, len(docScope) > 0)

	s.logger.Info("QueryService", "Routed query", map[string]interface{}{
		"trace_id": traceId,
		"route":    string(dec.Route),
		"mode":     string(dec.Mode),
		"scores":   dec.Scores,
	})

	s.execCache.Put(&store.ExecutionSnapshot{
		TraceID:   traceId,
		SessionID: session.Id.String(),
		Query:     query,
		Route:     string(dec.Route),
		Mode:      string(dec.Mode),
		Status:    store.ExecStatusRunning,
		Attempts:  attempts,
		CreatedAt: started,
		UpdatedAt: started,
	})

	s.metrics.TraceStarted()
	defer s.metrics.TraceFinished()
	s.publishEvent(ctx, events.NewTraceStarted(traceId, session.Id.String(), string(dec.Route), string(dec.Mode)))

	switch dec.Route {
	case router.RouteBlock:
		return s.finishBlocked(ctx, session, query, dec, traceId, attempts, started, blockResps)
	case router.RouteClarify:
		return s.finishClarify(ctx, session, query, dec, traceId, attempts, blockResps)
	default:
		return s.finishAnswer(ctx, session, query, docScope, dec, traceId, attempts, started, cfg, blockResps)
	}
}

func (s *queryService) finishBlocked(ctx context.Context, session *entity.QASession, query string, dec router.Decision, traceId string, attempts int, started time.Time, blocks []dto.ContextBlockResponse) (*dto.QueryResponse, error) {
	latency := time.Since(started).Milliseconds()

	turn := s.buildTurn(session, query, traceId, dec, blockedAnswer, dec.Confidence, nil, nil, false, "", latency)
	turn.Status = store.ExecStatusBlocked

	if err := s.commitTurn(ctx, session, turn, nil, nil, attempts, store.ExecStatusBlocked, false, ""); err != nil {
		return nil, err
	}

	s.execCache.SetStatus(traceId, store.ExecStatusBlocked)
	s.emitFinal(traceId, store.ExecStatusBlocked)
	s.saveSessionState(session, query, dec, "")
	s.publishEvent(ctx, events.NewTraceCompleted(traceId, session.Id.String(), store.ExecStatusBlocked, false, dec.Confidence))
	s.metrics.RecordRequest(string(dec.Route), latency)

	return s.toQueryResponse(session, turn, blocks, nil), nil
}

func (s *queryService) finishClarify(ctx context.Context, session *entity.QASession, query string, dec router.Decision, traceId string, attempts int, blocks []dto.ContextBlockResponse) (*dto.QueryResponse, error) {
	thread, err := s.clarifier.Open(ctx, session.Id, query, "", nil)
	if err != nil {
		return nil, err
	}

	record := &entity.TraceRecord{
		Id:        uuid.New(),
		TraceId:   traceId,
		SessionId: session.Id,
		Query:     query,
		Route:     string(dec.Route),
		Mode:      string(dec.Mode),
		Status:    store.ExecStatusAwaitClarification,
		Attempts:  attempts,
		CreatedAt: time.Now(),
	}
	if err := s.upsertTraceRecord(ctx, record); err != nil {
		return nil, err
	}

	s.execCache.SetStatus(traceId, store.ExecStatusAwaitClarification)
	s.saveSessionState(session, query, dec, thread.Id.String())

	return &dto.QueryResponse{
		TraceId:       traceId,
		SessionId:     session.Id,
		Route:         string(dec.Route),
		Mode:          string(dec.Mode),
		Status:        store.ExecStatusAwaitClarification,
		Confidence:    dec.Confidence,
		ContextBlocks: blocks,
		Clarification: &dto.ClarificationPrompt{
			ThreadId: thread.Id,
			Question: thread.Question,
			Options:  thread.Options,
			Reason:   thread.Reason,
		},
	}, nil
}

// ladderOutcome is the result of walking the fallback ladder.
type ladderOutcome struct {
	answer     string
	citations  []writer.Citation
	pack       *evidence.Pack
	confidence float64
	degraded   bool

	fallbackUsed bool
	degradedFrom string
	modeUsed     router.Mode
	static       bool

	planNodes []string
	nodeRuns  []entity.NodeRun
}

func (s *queryService) finishAnswer(ctx context.Context, session *entity.QASession, query string, docScope []string, dec router.Decision, traceId string, attempts int, started time.Time, cfg config.EngineConfig, blocks []dto.ContextBlockResponse) (*dto.QueryResponse, error) {
	out := s.runLadder(ctx, query, docScope, dec, traceId, cfg)

	latency := time.Since(started).Milliseconds()
	confidence := math.Min(0.99, (dec.Confidence+out.confidence)/2)
	if out.static {
		// every rung failed, nothing vouches for this answer
		confidence = 0
	}

	status := store.ExecStatusCompleted
	if out.degraded {
		status = store.ExecStatusDegraded
	}

	citations := s.toEntityCitations(out.citations, out.pack)
	turn := s.buildTurn(session, query, traceId, dec, out.answer, confidence, citations, kernel.SplitSegments(query), out.fallbackUsed, out.degradedFrom, latency)
	turn.Mode = string(out.modeUsed)
	turn.Status = status

	if err := s.commitTurn(ctx, session, turn, out.planNodes, out.nodeRuns, attempts, status, out.fallbackUsed, out.degradedFrom); err != nil {
		return nil, err
	}

	s.execCache.SetStatus(traceId, status)
	s.emitFinal(traceId, status)
	s.saveSessionState(session, query, dec, "")
	s.publishEvent(ctx, events.NewTraceCompleted(traceId, session.Id.String(), status, out.fallbackUsed, confidence))
	s.metrics.RecordRequest(string(dec.Route), latency)

	return s.toQueryResponse(session, turn, blocks, nil), nil
}

// runLadder walks R3 -> R2 -> R1 -> static. Each rung compiles and runs a
// full plan; a rung succeeds only when its verify node passes. The ladder
// never errors out, the terminal rung is a deterministic conservative
// answer.
func (s *queryService) runLadder(ctx context.Context, query string, docScope []string, dec router.Decision, traceId string, cfg config.EngineConfig) *ladderOutcome {
	subProblems := kernel.SplitSegments(query)

	budget := plan.DefaultBudget()
	if cfg.MaxParallelNodes > 0 {
		budget.MaxParallel = cfg.MaxParallelNodes
	}
	if cfg.RunTimeoutSeconds > 0 {
		budget.Timeout = time.Duration(cfg.RunTimeoutSeconds) * time.Second

		// one deadline for the whole ladder, shared by every rung
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget.Timeout)
		defer cancel()
	}

	out := &ladderOutcome{
		modeUsed: dec.Mode,
		pack:     evidence.NewPack(),
	}

	mode := dec.Mode
	for {
		p, err := s.generator.Generate(dec.Route, mode, query, subProblems, budget)
		if err == nil {
			state := &runState{
				query:    query,
				docScope: docScope,
				grounded: dec.Route.Grounded(),
				pack:     evidence.NewPack(),
			}
			ex := s.buildExecutor(state)

			res, runErr := ex.Run(ctx, p, traceId)
			if res != nil {
				out.planNodes = p.NodeIDs()
				out.nodeRuns = collectNodeRuns(p, res)
			}

			if runErr == nil && res.Completed("verify") && state.outcome != nil && state.outcome.Passed {
				out.answer = state.outcome.Answer
				out.citations = state.outcome.Citations
				out.pack = state.pack
				out.confidence = state.draft.Confidence
				out.degraded = state.outcome.Degraded || state.draft.Degraded || res.Degraded
				out.modeUsed = mode
				return out
			}

			if state.outcome != nil && !state.outcome.Passed {
				s.metrics.RecordVerifierReject()
			}
			s.logger.Warn("QueryService", "Plan rung failed", map[string]interface{}{
				"trace_id": traceId,
				"mode":     string(mode),
				"error":    errString(runErr),
			})
		} else {
			s.logger.Error("QueryService", "Plan generation failed", map[string]interface{}{
				"trace_id": traceId,
				"mode":     string(mode),
				"error":    err.Error(),
			})
		}

		next, ok := mode.Downgrade()
		if !ok {
			break
		}
		if !out.fallbackUsed {
			out.fallbackUsed = true
			out.degradedFrom = string(dec.Mode)
			s.metrics.RecordFallback()
		}
		s.emitter.Emit(store.ProgressEvent{
			Type:    store.EventFallbackStarted,
			TraceID: traceId,
			Payload: map[string]interface{}{
				"from": string(mode),
				"to":   string(next),
			},
		})
		mode = next
	}

	// terminal rung: static conservative answer
	if !out.fallbackUsed {
		out.fallbackUsed = true
		out.degradedFrom = string(dec.Mode)
		s.metrics.RecordFallback()
	}
	out.answer = writer.ConservativeAnswer
	out.citations = nil
	out.confidence = staticFallbackConfidence
	out.degraded = true
	out.modeUsed = mode
	out.static = true
	return out
}

// runState carries per-run mutable state between node handlers. Handlers
// that touch it (merge, reason, write, verify) each occupy their own
// topological batch, so access is never concurrent.
type runState struct {
	query    string
	docScope []string
	grounded bool

	pack    *evidence.Pack
	draft   *writer.Draft
	outcome *verify.Outcome
}

func (s *queryService) buildExecutor(state *runState) *dag.Executor {
	ex := dag.NewExecutor(s.emitter)

	ex.Register(plan.TypeRewrite, func(ctx context.Context, node plan.PlanNode, deps map[string]*dag.NodeResult) (*dag.Output, error) {
		prompt := fmt.Sprintf("Rewrite the question below into one focused, self-contained search query. Reply with the query only.\n\nQuestion: %s", node.Question)
		rewritten, err := s.llm.Generate(ctx, prompt)
		rewritten = strings.TrimSpace(rewritten)
		if err != nil || rewritten == "" {
			// provider trouble never fails the rewrite, the original query stands
			return &dag.Output{Text: node.Question}, nil
		}
		return &dag.Output{Text: firstLine(rewritten)}, nil
	})

	ex.Register(plan.TypeRetrieve, func(ctx context.Context, node plan.PlanNode, deps map[string]*dag.NodeResult) (*dag.Output, error) {
		question := node.Question
		if rewrite, ok := deps["rewrite"]; ok && rewrite.Output != nil && rewrite.Output.Text != "" && question == state.query {
			question = rewrite.Output.Text
		}

		passages, err := s.retriever.Retrieve(ctx, question, state.docScope, retrieveTopK)
		if err != nil {
			return nil, err
		}

		items := make([]evidence.Item, len(passages))
		for i, passage := range passages {
			items[i] = evidence.Item{
				ID:     passage.ChunkID,
				Source: passage.DocID,
				Text:   passage.Text,
				Score:  float32(passage.Score),
			}
		}
		return &dag.Output{Evidence: items}, nil
	})

	ex.Register(plan.TypeMerge, func(ctx context.Context, node plan.PlanNode, deps map[string]*dag.NodeResult) (*dag.Output, error) {
		for _, dep := range deps {
			if dep.Output != nil {
				state.pack.Add(dep.Output.Evidence...)
			}
		}
		return &dag.Output{Evidence: state.pack.Items()}, nil
	})

	ex.Register(plan.TypeReason, func(ctx context.Context, node plan.PlanNode, deps map[string]*dag.NodeResult) (*dag.Output, error) {
		for _, dep := range deps {
			if dep.Output != nil {
				state.pack.Add(dep.Output.Evidence...)
			}
		}

		items := state.pack.Top(writer.DefaultTopN)
		if len(items) == 0 {
			return &dag.Output{Evidence: nil}, nil
		}

		var b strings.Builder
		for i, item := range items {
			fmt.Fprintf(&b, "[%d] %s\n", i+1, item.Text)
		}
		prompt := fmt.Sprintf("Connect the following evidence passages into a short chain of reasoning about the question. Two or three sentences.\n\n%sQuestion: %s", b.String(), node.Question)

		note, err := s.llm.Generate(ctx, prompt)
		if err != nil {
			note = "" // the writer can still answer from raw evidence
		}
		return &dag.Output{Text: strings.TrimSpace(note), Evidence: state.pack.Items()}, nil
	})

	ex.Register(plan.TypeWrite, func(ctx context.Context, node plan.PlanNode, deps map[string]*dag.NodeResult) (*dag.Output, error) {
		for _, dep := range deps {
			if dep.Output != nil {
				state.pack.Add(dep.Output.Evidence...)
			}
		}
		state.draft = s.writer.Write(ctx, state.query, state.pack, state.grounded)
		return &dag.Output{Text: state.draft.Answer}, nil
	})

	ex.Register(plan.TypeVerify, func(ctx context.Context, node plan.PlanNode, deps map[string]*dag.NodeResult) (*dag.Output, error) {
		if state.draft == nil {
			return nil, fmt.Errorf("no draft to verify")
		}
		outcome := s.verifier.Verify(state.draft, state.pack, state.grounded)
		state.outcome = &outcome
		return &dag.Output{Text: outcome.Answer}, nil
	})

	return ex
}

func (s *queryService) buildTurn(session *entity.QASession, query, traceId string, dec router.Decision, answer string, confidence float64, citations []entity.Citation, subProblems []string, fallbackUsed bool, degradedFrom string, latency int64) *entity.Turn {
	entities := s.enricher.ExtractEntities(query, answer)
	multiStep := dec.Mode == router.ModeMultiRetrieve || dec.Mode == router.ModeMultiHop

	return &entity.Turn{
		Id:            uuid.New(),
		SessionId:     session.Id,
		TraceId:       traceId,
		Query:         query,
		Answer:        answer,
		Route:         string(dec.Route),
		Mode:          string(dec.Mode),
		Status:        store.ExecStatusCompleted,
		Confidence:    confidence,
		Citations:     citations,
		SubProblems:   subProblems,
		Summary:       s.enricher.BuildSummary(query, answer),
		Entities:      entities,
		Tags:          s.enricher.BuildTags(string(dec.Route), entities, dec.Route.Grounded(), multiStep),
		FallbackUsed:  fallbackUsed,
		DegradedFrom:  degradedFrom,
		LatencyMillis: latency,
		CreatedAt:     time.Now(),
	}
}

// commitTurn writes the turn and its trace record in one transaction and
// titles the session on its first committed turn.
func (s *queryService) commitTurn(ctx context.Context, session *entity.QASession, turn *entity.Turn, planNodes []string, nodeRuns []entity.NodeRun, attempts int, status string, fallbackUsed bool, degradedFrom string) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.TurnRepository().Create(ctx, turn); err != nil {
		return err
	}

	record := &entity.TraceRecord{
		Id:           uuid.New(),
		TraceId:      turn.TraceId,
		SessionId:    session.Id,
		TurnId:       &turn.Id,
		Query:        turn.Query,
		Route:        turn.Route,
		Mode:         turn.Mode,
		Status:       status,
		Attempts:     attempts,
		PlanNodes:    planNodes,
		NodeRuns:     nodeRuns,
		FallbackUsed: fallbackUsed,
		DegradedFrom: degradedFrom,
		CreatedAt:    time.Now(),
	}
	if err := s.upsertTraceRecordTx(ctx, uow, record); err != nil {
		return err
	}

	if session.Title == "" {
		session.Title = clipTitle(turn.Query)
		if err := uow.QASessionRepository().Update(ctx, session); err != nil {
			return err
		}
	}

	return uow.Commit()
}

func (s *queryService) upsertTraceRecord(ctx context.Context, record *entity.TraceRecord) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return s.upsertTraceRecordTx(ctx, uow, record)
}

// upsertTraceRecordTx keeps one row per trace id so retries overwrite
// their previous outcome instead of duplicating it.
func (s *queryService) upsertTraceRecordTx(ctx context.Context, uow unitofwork.UnitOfWork, record *entity.TraceRecord) error {
	existing, err := uow.TraceRepository().FindByTraceId(ctx, record.TraceId)
	if err != nil {
		return err
	}
	if existing == nil {
		return uow.TraceRepository().Create(ctx, record)
	}

	existing.TurnId = record.TurnId
	existing.Query = record.Query
	existing.Route = record.Route
	existing.Mode = record.Mode
	existing.Status = record.Status
	existing.Attempts = record.Attempts
	existing.PlanNodes = record.PlanNodes
	existing.NodeRuns = record.NodeRuns
	existing.FallbackUsed = record.FallbackUsed
	existing.DegradedFrom = record.DegradedFrom
	return uow.TraceRepository().Update(ctx, existing)
}

func (s *queryService) saveSessionState(session *entity.QASession, query string, dec router.Decision, pendingThreadId string) {
	s.sessionCache.Save(&store.SessionState{
		ID:              session.Id.String(),
		DocScope:        session.DocScope,
		PendingThreadID: pendingThreadId,
		LastQuery:       query,
		LastRoute:       string(dec.Route),
	})
}

func (s *queryService) emitFinal(traceId, status string) {
	s.emitter.Emit(store.ProgressEvent{
		Type:    store.EventFinalReady,
		TraceID: traceId,
		Payload: map[string]interface{}{"status": status},
	})
}

func (s *queryService) publishEvent(ctx context.Context, event events.BaseEvent) {
	if s.natsPub == nil {
		return
	}
	if err := s.natsPub.Publish(ctx, event); err != nil {
		s.logger.Warn("QueryService", "Failed to publish bus event", map[string]interface{}{
			"type":  event.EventType(),
			"error": err.Error(),
		})
	}
}

func (s *queryService) toQueryResponse(session *entity.QASession, turn *entity.Turn, blocks []dto.ContextBlockResponse, prompt *dto.ClarificationPrompt) *dto.QueryResponse {
	return &dto.QueryResponse{
		TraceId:       turn.TraceId,
		SessionId:     session.Id,
		TurnId:        &turn.Id,
		Answer:        turn.Answer,
		Route:         turn.Route,
		Mode:          turn.Mode,
		Status:        turn.Status,
		Confidence:    turn.Confidence,
		Citations:     toCitationResponses(turn.Citations),
		ContextBlocks: blocks,
		Clarification: prompt,
		FallbackUsed:  turn.FallbackUsed,
		DegradedFrom:  turn.DegradedFrom,
		LatencyMillis: turn.LatencyMillis,
	}
}

// toEntityCitations resolves citation chunk ids back to their source
// documents through the evidence pack.
func (s *queryService) toEntityCitations(citations []writer.Citation, pack *evidence.Pack) []entity.Citation {
	if len(citations) == 0 {
		return nil
	}

	sources := make(map[string]string)
	if pack != nil {
		for _, item := range pack.Items() {
			sources[item.ID] = item.Source
		}
	}

	result := make([]entity.Citation, len(citations))
	for i, c := range citations {
		result[i] = entity.Citation{
			ChunkId: c.ChunkID,
			DocId:   sources[c.ChunkID],
			Score:   c.Score,
			Excerpt: c.Text,
		}
	}
	return result
}

func toContextBlockResponses(blocks []kernel.ContextBlock) []dto.ContextBlockResponse {
	if len(blocks) == 0 {
		return nil
	}
	result := make([]dto.ContextBlockResponse, len(blocks))
	for i, b := range blocks {
		result[i] = dto.ContextBlockResponse{
			TurnId:  b.TurnID,
			Summary: b.Summary,
			Score:   b.Score,
		}
	}
	return result
}

func collectNodeRuns(p *plan.ExecutionPlan, res *dag.Result) []entity.NodeRun {
	runs := make([]entity.NodeRun, 0, len(p.Nodes))
	for _, node := range p.Nodes {
		r, ok := res.Results[node.ID]
		if !ok {
			continue
		}
		runs = append(runs, entity.NodeRun{
			NodeId:     node.ID,
			Role:       node.Type,
			Status:     r.Status,
			Attempts:   r.Attempts,
			DurationMs: r.Duration.Milliseconds(),
			Error:      errString(r.Err),
		})
	}
	return runs
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func firstLine(text string) string {
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		return strings.TrimSpace(text[:idx])
	}
	return text
}

func clipTitle(query string) string {
	const maxTitle = 80
	if len(query) <= maxTitle {
		return query
	}
	cut := maxTitle
	for cut > 0 && !utf8.RuneStart(query[cut]) {
		cut--
	}
	return query[:cut]
}
