// Package memory keeps sessions in process memory. It backs
// SESSION_BACKEND=memory and the pipeline tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"ai-voicechat-be/internal/entity"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

const previewLength = 60

type sessionRecord struct {
	mu        sync.RWMutex
	createdAt time.Time
	updatedAt time.Time
	turns     []*entity.ChatTurn
}

// SessionStore has the same semantics as the postgres-backed session
// service: turns are append-only, pairs are stored atomically and
// re-appending a stored sequence is a no-op.
type SessionStore struct {
	sessions *cache.Cache
	now      func() time.Time
}

// NewSessionStore keeps sessions for ttl after their last write. A zero
// ttl keeps them for the life of the process.
func NewSessionStore(ttl time.Duration) *SessionStore {
	expiration, cleanup := cache.NoExpiration, time.Duration(0)
	if ttl > 0 {
		expiration, cleanup = ttl, ttl/2
	}
	return &SessionStore{
		sessions: cache.New(expiration, cleanup),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *SessionStore) record(id uuid.UUID) (*sessionRecord, bool) {
	v, ok := s.sessions.Get(id.String())
	if !ok {
		return nil, false
	}
	return v.(*sessionRecord), true
}

func (s *SessionStore) CreateSession(ctx context.Context) (*entity.ChatSession, error) {
	now := s.now()
	id := uuid.New()
	s.sessions.SetDefault(id.String(), &sessionRecord{createdAt: now, updatedAt: now})

	updated := now
	return &entity.ChatSession{Id: id, CreatedAt: now, UpdatedAt: &updated}, nil
}

func (s *SessionStore) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, ok := s.record(id)
	return ok, nil
}

// ListSessions orders by most recent activity.
func (s *SessionStore) ListSessions(ctx context.Context) ([]*entity.ChatSessionSummary, error) {
	items := s.sessions.Items()
	out := make([]*entity.ChatSessionSummary, 0, len(items))
	for key, item := range items {
		id, err := uuid.Parse(key)
		if err != nil {
			continue
		}
		rec := item.Object.(*sessionRecord)

		rec.mu.RLock()
		updated := rec.updatedAt
		summary := &entity.ChatSessionSummary{Id: id, CreatedAt: rec.createdAt, UpdatedAt: &updated}
		if n := len(rec.turns); n > 0 {
			summary.LastMessage = entity.Preview(rec.turns[n-1].Content, previewLength)
		}
		rec.mu.RUnlock()

		out = append(out, summary)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(*out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(*out[j].UpdatedAt)
		}
		return out[i].Id.String() < out[j].Id.String()
	})
	return out, nil
}

func (s *SessionStore) GetHistory(ctx context.Context, id uuid.UUID) ([]*entity.ChatTurn, error) {
	rec, ok := s.record(id)
	if !ok {
		return nil, entity.ErrSessionNotFound
	}
	rec.mu.RLock()
	defer rec.mu.RUnlock()
	return cloneAll(rec.turns), nil
}

func (s *SessionStore) RecentTurns(ctx context.Context, id uuid.UUID, limit int) ([]*entity.ChatTurn, error) {
	rec, ok := s.record(id)
	if !ok {
		return nil, entity.ErrSessionNotFound
	}
	rec.mu.RLock()
	defer rec.mu.RUnlock()

	turns := rec.turns
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return cloneAll(turns), nil
}

func (s *SessionStore) LastSequence(ctx context.Context, id uuid.UUID) (int64, error) {
	rec, ok := s.record(id)
	if !ok {
		return 0, entity.ErrSessionNotFound
	}
	rec.mu.RLock()
	defer rec.mu.RUnlock()

	var max int64
	for _, t := range rec.turns {
		if t.Sequence > max {
			max = t.Sequence
		}
	}
	return max, nil
}

// AppendTurn appends a single turn. A zero Sequence continues the session:
// a user turn opens the next sequence, an assistant turn answers the
// trailing user turn.
func (s *SessionStore) AppendTurn(ctx context.Context, id uuid.UUID, turn *entity.ChatTurn) error {
	if err := turn.Validate(); err != nil {
		return err
	}
	rec, ok := s.record(id)
	if !ok {
		return entity.ErrSessionNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	t := turn.Clone()
	if t.Sequence == 0 {
		t.Sequence = nextSequence(rec.turns, t.Role)
	}
	if rec.has(t.Sequence, t.Role) {
		return nil
	}
	s.insert(rec, t, id)
	s.touch(rec)
	s.sessions.SetDefault(id.String(), rec)
	return nil
}

func (s *SessionStore) AppendTurnPair(ctx context.Context, id uuid.UUID, user, assistant *entity.ChatTurn) error {
	for _, t := range []*entity.ChatTurn{user, assistant} {
		if err := t.Validate(); err != nil {
			return err
		}
	}
	rec, ok := s.record(id)
	if !ok {
		return entity.ErrSessionNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.has(user.Sequence, entity.RoleUser) {
		return nil
	}
	s.insert(rec, user.Clone(), id)
	s.insert(rec, assistant.Clone(), id)
	s.touch(rec)
	s.sessions.SetDefault(id.String(), rec)
	return nil
}

// insert places t in (sequence, user before assistant) order. A late pair,
// such as a retried append, slots in behind its predecessor instead of
// going to the end. CreatedAt is kept unless it would not be strictly
// after the predecessor's.
func (s *SessionStore) insert(rec *sessionRecord, t *entity.ChatTurn, id uuid.UUID) {
	t.ChatSessionId = id
	if t.Id == uuid.Nil {
		t.Id = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}

	at := sort.Search(len(rec.turns), func(i int) bool {
		return turnAfter(rec.turns[i], t)
	})
	if at > 0 {
		if prev := rec.turns[at-1].CreatedAt; !t.CreatedAt.After(prev) {
			t.CreatedAt = prev.Add(time.Microsecond)
		}
	}

	rec.turns = append(rec.turns, nil)
	copy(rec.turns[at+1:], rec.turns[at:])
	rec.turns[at] = t
}

func (s *SessionStore) touch(rec *sessionRecord) {
	if now := s.now(); now.After(rec.updatedAt) {
		rec.updatedAt = now
	}
}

func turnAfter(a, b *entity.ChatTurn) bool {
	if a.Sequence != b.Sequence {
		return a.Sequence > b.Sequence
	}
	return a.Role == entity.RoleAssistant && b.Role == entity.RoleUser
}

func (r *sessionRecord) has(seq int64, role entity.Role) bool {
	for i := len(r.turns) - 1; i >= 0; i-- {
		t := r.turns[i]
		if t.Sequence == seq && t.Role == role {
			return true
		}
		if t.Sequence < seq {
			return false
		}
	}
	return false
}

func nextSequence(turns []*entity.ChatTurn, role entity.Role) int64 {
	n := len(turns)
	if n == 0 {
		return 1
	}
	last := turns[n-1]
	if role == entity.RoleAssistant && last.Role == entity.RoleUser {
		return last.Sequence
	}
	return last.Sequence + 1
}

func cloneAll(turns []*entity.ChatTurn) []*entity.ChatTurn {
	out := make([]*entity.ChatTurn, len(turns))
	for i, t := range turns {
		out[i] = t.Clone()
	}
	return out
}
