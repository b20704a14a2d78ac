package service

import (
	"context"
	"fmt"
	"time"

	"ai-voicechat-be/internal/entity"
	"ai-voicechat-be/internal/repository/memory"
	"ai-voicechat-be/internal/repository/specification"
	"ai-voicechat-be/internal/repository/unitofwork"
	"ai-voicechat-be/pkg/rag/pipeline"

	"github.com/google/uuid"
)

const lastMessagePreview = 60

// ISessionService is session storage as seen by the HTTP layer and the
// pipeline. Both the postgres service and memory.SessionStore satisfy it.
type ISessionService interface {
	pipeline.SessionStore

	CreateSession(ctx context.Context) (*entity.ChatSession, error)
	ListSessions(ctx context.Context) ([]*entity.ChatSessionSummary, error)
	GetHistory(ctx context.Context, sessionId uuid.UUID) ([]*entity.ChatTurn, error)
	AppendTurn(ctx context.Context, sessionId uuid.UUID, turn *entity.ChatTurn) error
}

var _ ISessionService = (*memory.SessionStore)(nil)

type sessionService struct {
	uowFactory unitofwork.RepositoryFactory
	now        func() time.Time
}

func NewSessionService(uowFactory unitofwork.RepositoryFactory) ISessionService {
	return &sessionService{
		uowFactory: uowFactory,
		now:        func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

func (s *sessionService) CreateSession(ctx context.Context) (*entity.ChatSession, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	session := &entity.ChatSession{}
	if err := uow.ChatSessionRepository().Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

func (s *sessionService) Exists(ctx context.Context, sessionId uuid.UUID) (bool, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	count, err := uow.ChatSessionRepository().Count(ctx, specification.ByID{ID: sessionId})
	if err != nil {
		return false, fmt.Errorf("count session %s: %w", sessionId, err)
	}
	return count > 0, nil
}

func (s *sessionService) ListSessions(ctx context.Context) ([]*entity.ChatSessionSummary, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	sessions, err := uow.ChatSessionRepository().FindAll(ctx,
		specification.OrderBy{Field: "updated_at", Desc: true},
		specification.OrderBy{Field: "id"},
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	ids := make([]uuid.UUID, len(sessions))
	for i, sess := range sessions {
		ids[i] = sess.Id
	}
	last, err := uow.ChatMessageRepository().LastMessages(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load last messages: %w", err)
	}

	out := make([]*entity.ChatSessionSummary, len(sessions))
	for i, sess := range sessions {
		summary := &entity.ChatSessionSummary{
			Id:        sess.Id,
			CreatedAt: sess.CreatedAt,
			UpdatedAt: sess.UpdatedAt,
		}
		if t, ok := last[sess.Id]; ok {
			summary.LastMessage = entity.Preview(t.Content, lastMessagePreview)
		}
		out[i] = summary
	}
	return out, nil
}

func (s *sessionService) GetHistory(ctx context.Context, sessionId uuid.UUID) ([]*entity.ChatTurn, error) {
	if err := s.mustExist(ctx, sessionId); err != nil {
		return nil, err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	turns, err := uow.ChatMessageRepository().FindAll(ctx,
		specification.ByChatSessionID{ChatSessionID: sessionId},
		specification.TurnOrder{},
	)
	if err != nil {
		return nil, fmt.Errorf("load history of %s: %w", sessionId, err)
	}
	return turns, nil
}

func (s *sessionService) RecentTurns(ctx context.Context, sessionId uuid.UUID, limit int) ([]*entity.ChatTurn, error) {
	if limit <= 0 {
		return s.GetHistory(ctx, sessionId)
	}
	if err := s.mustExist(ctx, sessionId); err != nil {
		return nil, err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	turns, err := uow.ChatMessageRepository().FindAll(ctx,
		specification.ByChatSessionID{ChatSessionID: sessionId},
		specification.TurnOrder{Desc: true},
		specification.Pagination{Limit: limit},
	)
	if err != nil {
		return nil, fmt.Errorf("load recent turns of %s: %w", sessionId, err)
	}

	// newest first from the query, history order for the caller
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

func (s *sessionService) LastSequence(ctx context.Context, sessionId uuid.UUID) (int64, error) {
	if err := s.mustExist(ctx, sessionId); err != nil {
		return 0, err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	seq, err := uow.ChatMessageRepository().MaxSequence(ctx, sessionId)
	if err != nil {
		return 0, fmt.Errorf("max sequence of %s: %w", sessionId, err)
	}
	return seq, nil
}

// AppendTurn stores a single turn. A zero Sequence continues the session
// the same way memory.SessionStore does.
func (s *sessionService) AppendTurn(ctx context.Context, sessionId uuid.UUID, turn *entity.ChatTurn) error {
	if err := turn.Validate(); err != nil {
		return err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := s.lockedExists(ctx, uow, sessionId); err != nil {
		return err
	}

	messages := uow.ChatMessageRepository()
	last, err := messages.FindOne(ctx,
		specification.ByChatSessionID{ChatSessionID: sessionId},
		specification.TurnOrder{Desc: true},
	)
	if err != nil {
		return fmt.Errorf("load last turn: %w", err)
	}

	t := turn.Clone()
	if t.Sequence == 0 {
		t.Sequence = nextSequence(last, t.Role)
	}

	stored, err := s.stored(ctx, uow, sessionId, t.Sequence, t.Role)
	if err != nil {
		return err
	}
	if stored {
		return nil
	}

	s.stamp(t, sessionId, last)
	if err := messages.CreateBulk(ctx, []*entity.ChatTurn{t}); err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}
	if err := uow.ChatSessionRepository().Touch(ctx, sessionId); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if err := uow.Commit(); err != nil {
		return fmt.Errorf("commit turn: %w", err)
	}
	turn.Id = t.Id
	return nil
}

func (s *sessionService) AppendTurnPair(ctx context.Context, sessionId uuid.UUID, user, assistant *entity.ChatTurn) error {
	for _, t := range []*entity.ChatTurn{user, assistant} {
		if err := t.Validate(); err != nil {
			return err
		}
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := s.lockedExists(ctx, uow, sessionId); err != nil {
		return err
	}

	stored, err := s.stored(ctx, uow, sessionId, user.Sequence, entity.RoleUser)
	if err != nil {
		return err
	}
	if stored {
		return nil
	}

	// A retried pair can arrive after later exchanges; it is stamped
	// against the exchange before it, keeping its own created_at.
	messages := uow.ChatMessageRepository()
	prev, err := messages.FindOne(ctx,
		specification.ByChatSessionID{ChatSessionID: sessionId},
		specification.BeforeSequence{Sequence: user.Sequence},
		specification.TurnOrder{Desc: true},
	)
	if err != nil {
		return fmt.Errorf("load previous turn: %w", err)
	}

	u, a := user.Clone(), assistant.Clone()
	s.stamp(u, sessionId, prev)
	s.stamp(a, sessionId, u)

	if err := messages.CreateBulk(ctx, []*entity.ChatTurn{u, a}); err != nil {
		return fmt.Errorf("insert turn pair: %w", err)
	}
	if err := uow.ChatSessionRepository().Touch(ctx, sessionId); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if err := uow.Commit(); err != nil {
		return fmt.Errorf("commit turn pair: %w", err)
	}
	return nil
}

func (s *sessionService) mustExist(ctx context.Context, sessionId uuid.UUID) error {
	ok, err := s.Exists(ctx, sessionId)
	if err != nil {
		return err
	}
	if !ok {
		return entity.ErrSessionNotFound
	}
	return nil
}

func (s *sessionService) lockedExists(ctx context.Context, uow unitofwork.UnitOfWork, sessionId uuid.UUID) error {
	// the row lock queues concurrent appends to the same session
	session, err := uow.ChatSessionRepository().FindOne(ctx,
		specification.ByID{ID: sessionId},
		specification.ForUpdate{},
	)
	if err != nil {
		return fmt.Errorf("lock session %s: %w", sessionId, err)
	}
	if session == nil {
		return entity.ErrSessionNotFound
	}
	return nil
}

func (s *sessionService) stored(ctx context.Context, uow unitofwork.UnitOfWork, sessionId uuid.UUID, seq int64, role entity.Role) (bool, error) {
	count, err := uow.ChatMessageRepository().Count(ctx,
		specification.ByChatSessionID{ChatSessionID: sessionId},
		specification.BySequence{Sequence: seq},
		specification.Filter("role", string(role)),
	)
	if err != nil {
		return false, fmt.Errorf("check sequence %d: %w", seq, err)
	}
	return count > 0, nil
}

// stamp keeps created_at strictly after the previous turn so ordering by
// (sequence, created_at) never ties.
func (s *sessionService) stamp(t *entity.ChatTurn, sessionId uuid.UUID, prev *entity.ChatTurn) {
	t.ChatSessionId = sessionId
	if t.Id == uuid.Nil {
		t.Id = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	if prev != nil && !t.CreatedAt.After(prev.CreatedAt) {
		t.CreatedAt = prev.CreatedAt.Add(time.Microsecond)
	}
}

func nextSequence(last *entity.ChatTurn, role entity.Role) int64 {
	if last == nil {
		return 1
	}
	if role == entity.RoleAssistant && last.Role == entity.RoleUser {
		return last.Sequence
	}
	return last.Sequence + 1
}
