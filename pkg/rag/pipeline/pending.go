package pipeline

import (
	"sync"
	"time"

	"ai-voicechat-be/internal/entity"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

type pendingTurn struct {
	SessionID uuid.UUID
	User      *entity.ChatTurn
	Assistant *entity.ChatTurn
	Response  *Response
}

// pendingStore parks computed turns whose append failed. It also keeps a
// high-water mark of parked sequences per session so a parked sequence is
// not handed to a later turn. A mark lives twice as long as the parked
// turn and is dropped early once the store has caught up with it.
type pendingStore struct {
	turns *cache.Cache
	marks *cache.Cache

	mu sync.Mutex
}

func newPendingStore(ttl time.Duration) *pendingStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &pendingStore{
		turns: cache.New(ttl, ttl/2),
		marks: cache.New(2*ttl, ttl),
	}
}

func (s *pendingStore) park(key string, p *pendingTurn) {
	s.turns.SetDefault(key, p)

	s.mu.Lock()
	defer s.mu.Unlock()
	if p.User.Sequence > s.mark(p.SessionID) {
		s.marks.SetDefault(p.SessionID.String(), p.User.Sequence)
	}
}

func (s *pendingStore) get(key string) (*pendingTurn, bool) {
	v, ok := s.turns.Get(key)
	if !ok {
		return nil, false
	}
	return v.(*pendingTurn), true
}

func (s *pendingStore) remove(key string) {
	s.turns.Delete(key)
}

func (s *pendingStore) highestSequence(sessionID uuid.UUID) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mark(sessionID)
}

// settle drops the session's mark once stored sequences reach it.
func (s *pendingStore) settle(sessionID uuid.UUID, stored int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m := s.mark(sessionID); m > 0 && stored >= m {
		s.marks.Delete(sessionID.String())
	}
}

func (s *pendingStore) mark(sessionID uuid.UUID) int64 {
	v, ok := s.marks.Get(sessionID.String())
	if !ok {
		return 0
	}
	return v.(int64)
}

func (s *pendingStore) count() int {
	return s.turns.ItemCount()
}
