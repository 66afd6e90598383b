package service

import (
	"context"
	"time"

	"docqa-engine/internal/dto"
	"docqa-engine/internal/entity"
	"docqa-engine/internal/pkg/serverutils"
	"docqa-engine/internal/repository/specification"
	"docqa-engine/internal/repository/unitofwork"

	"github.com/google/uuid"
)

type ISessionService interface {
	Create(ctx context.Context, userId *uuid.UUID, req *dto.CreateSessionRequest) (*dto.SessionResponse, error)
	Show(ctx context.Context, sessionId uuid.UUID) (*dto.SessionResponse, error)
	GetAll(ctx context.Context, userId *uuid.UUID, limit, offset int) ([]*dto.SessionResponse, error)
	GetTurns(ctx context.Context, sessionId uuid.UUID, limit, offset int) ([]*dto.TurnResponse, error)
	GetTurn(ctx context.Context, turnId uuid.UUID) (*dto.TurnResponse, error)
}

type sessionService struct {
	uowFactory unitofwork.RepositoryFactory
}

func NewSessionService(uowFactory unitofwork.RepositoryFactory) ISessionService {
	return &sessionService{uowFactory: uowFactory}
}

func (s *sessionService) Create(ctx context.Context, userId *uuid.UUID, req *dto.CreateSessionRequest) (*dto.SessionResponse, error) {
	session := &entity.QASession{
		Id:        uuid.New(),
		UserId:    userId,
		Title:     req.Title,
		DocScope:  req.DocScope,
		CreatedAt: time.Now(),
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.QASessionRepository().Create(ctx, session); err != nil {
		return nil, err
	}

	return toSessionResponse(session), nil
}

func (s *sessionService) Show(ctx context.Context, sessionId uuid.UUID) (*dto.SessionResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	session, err := uow.QASessionRepository().FindOne(ctx, specification.ByID{ID: sessionId})
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, serverutils.NewNotFoundError("session not found")
	}

	return toSessionResponse(session), nil
}

func (s *sessionService) GetAll(ctx context.Context, userId *uuid.UUID, limit, offset int) ([]*dto.SessionResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	specs := []specification.Specification{
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: limit, Offset: offset},
	}
	if userId != nil {
		specs = append(specs, specification.OwnedBy{UserID: *userId})
	}

	sessions, err := uow.QASessionRepository().FindAll(ctx, specs...)
	if err != nil {
		return nil, err
	}

	result := make([]*dto.SessionResponse, len(sessions))
	for i, session := range sessions {
		result[i] = toSessionResponse(session)
	}
	return result, nil
}

func (s *sessionService) GetTurns(ctx context.Context, sessionId uuid.UUID, limit, offset int) ([]*dto.TurnResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	session, err := uow.QASessionRepository().FindOne(ctx, specification.ByID{ID: sessionId})
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, serverutils.NewNotFoundError("session not found")
	}

	turns, err := uow.TurnRepository().FindAll(ctx,
		specification.BySessionID{SessionID: sessionId},
		specification.OrderBy{Field: "created_at"},
		specification.Pagination{Limit: limit, Offset: offset},
	)
	if err != nil {
		return nil, err
	}

	result := make([]*dto.TurnResponse, len(turns))
	for i, turn := range turns {
		result[i] = toTurnResponse(turn)
	}
	return result, nil
}

func (s *sessionService) GetTurn(ctx context.Context, turnId uuid.UUID) (*dto.TurnResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	turn, err := uow.TurnRepository().FindOne(ctx, specification.ByID{ID: turnId})
	if err != nil {
		return nil, err
	}
	if turn == nil {
		return nil, serverutils.NewNotFoundError("turn not found")
	}

	return toTurnResponse(turn), nil
}

func toSessionResponse(session *entity.QASession) *dto.SessionResponse {
	return &dto.SessionResponse{
		Id:        session.Id,
		Title:     session.Title,
		DocScope:  session.DocScope,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
	}
}

func toTurnResponse(turn *entity.Turn) *dto.TurnResponse {
	return &dto.TurnResponse{
		Id:            turn.Id,
		SessionId:     turn.SessionId,
		TraceId:       turn.TraceId,
		Query:         turn.Query,
		Answer:        turn.Answer,
		Route:         turn.Route,
		Mode:          turn.Mode,
		Status:        turn.Status,
		Confidence:    turn.Confidence,
		Citations:     toCitationResponses(turn.Citations),
		Summary:       turn.Summary,
		Entities:      turn.Entities,
		Tags:          turn.Tags,
		FallbackUsed:  turn.FallbackUsed,
		DegradedFrom:  turn.DegradedFrom,
		LatencyMillis: turn.LatencyMillis,
		CreatedAt:     turn.CreatedAt,
	}
}

func toCitationResponses(citations []entity.Citation) []dto.CitationResponse {
	if len(citations) == 0 {
		return nil
	}
	result := make([]dto.CitationResponse, len(citations))
	for i, c := range citations {
		result[i] = dto.CitationResponse{
			ChunkId: c.ChunkId,
			DocId:   c.DocId,
			Score:   c.Score,
			Excerpt: c.Excerpt,
		}
	}
	return result
}
