package lease

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type memoryLock struct {
	Lock
	consumed bool
}

// MemoryStore keeps quote locks in process memory. Suitable for a single
// instance; multiple instances need the Redis-backed store.
type MemoryStore struct {
	validity time.Duration

	mu    sync.Mutex
	locks map[string]*memoryLock

	now func() time.Time
}

func NewMemoryStore(validity time.Duration) *MemoryStore {
	return &MemoryStore{
		validity: validity,
		locks:    make(map[string]*memoryLock),
		now:      time.Now,
	}
}

func (s *MemoryStore) Create(_ context.Context, userID int64, amountINR, buyPrice decimal.Decimal) (Lock, error) {
	lock := Lock{
		ID:           uuid.NewString(),
		UserID:       userID,
		Grams:        computeGrams(amountINR, buyPrice),
		AmountINR:    amountINR,
		PricePerGram: buyPrice,
		ExpiresAt:    s.now().Add(s.validity),
	}

	s.mu.Lock()
	s.sweep()
	s.locks[lock.ID] = &memoryLock{Lock: lock}
	s.mu.Unlock()

	return lock, nil
}

func (s *MemoryStore) Consume(_ context.Context, id string) (Lock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[id]
	if !ok {
		return Lock{}, ErrNotFound
	}
	if l.consumed {
		return Lock{}, ErrAlreadyConsumed
	}
	if s.now().After(l.ExpiresAt) {
		delete(s.locks, id)
		return Lock{}, ErrExpired
	}

	l.consumed = true
	return l.Lock, nil
}

// sweep drops locks past their expiry. Consumed locks are kept until
// expiry so a duplicate confirmation still reports ErrAlreadyConsumed.
// Caller must hold s.mu.
func (s *MemoryStore) sweep() {
	now := s.now()
	for id, l := range s.locks {
		if now.After(l.ExpiresAt) {
			delete(s.locks, id)
		}
	}
}
