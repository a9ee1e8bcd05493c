package idempotency

import (
	"context"
	"sync"
	"time"
)

// Status values a record moves through.
type Status string

const (
	StatusPending   Status = "pending"
	StatusProcessed Status = "processed"
	StatusFailed    Status = "failed"
)

// Record is the stored dedup state for a derived event id.
type Record struct {
	EventID   string
	Status    Status
	Attempts  int
	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt time.Time
}

// CheckResult is returned by Check.
type CheckResult struct {
	IsDuplicate bool
	Status      Status
	Attempts    int
}

// Store is the persistence contract for idempotency records. The in-memory
// implementation below backs tests and single-instance deployments; a shared
// cache store satisfies the same interface in multi-instance production.
type Store interface {
	// Acquire atomically creates a pending record for id if none exists and
	// reports whether this caller won. An existing unexpired record means the
	// event is already owned.
	Acquire(ctx context.Context, id string, ttl time.Duration) (bool, error)
	Get(ctx context.Context, id string) (*Record, bool, error)
	Update(ctx context.Context, rec Record) error
	Delete(ctx context.Context, id string) error
}

// Service implements the event dedup lifecycle: first caller acquires
// processing ownership, terminal states stay duplicates, and failures are
// retryable until the attempt budget is spent.
type Service struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

// NewService builds a Service with the given record TTL.
func NewService(store Store, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{store: store, ttl: ttl, now: time.Now}
}

// WithClock overrides the time source for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Check reports whether id has already been seen. It never mutates state.
func (s *Service) Check(ctx context.Context, id string) (CheckResult, error) {
	rec, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return CheckResult{}, err
	}
	if !ok || s.expired(rec) {
		return CheckResult{IsDuplicate: false}, nil
	}
	return CheckResult{IsDuplicate: true, Status: rec.Status, Attempts: rec.Attempts}, nil
}

// MarkAsProcessing attempts to take ownership of id. Exactly one concurrent
// caller acquires; the rest observe a duplicate.
func (s *Service) MarkAsProcessing(ctx context.Context, id string) (bool, error) {
	return s.store.Acquire(ctx, id, s.ttl)
}

// MarkAsProcessed moves id into its terminal success state.
func (s *Service) MarkAsProcessed(ctx context.Context, id string) error {
	rec, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	now := s.now()
	if !ok {
		rec = &Record{EventID: id, CreatedAt: now, ExpiresAt: now.Add(s.ttl)}
	}
	rec.Status = StatusProcessed
	rec.UpdatedAt = now
	return s.store.Update(ctx, *rec)
}

// MarkAsFailed records a processing failure. While the attempt count stays
// under maxAttempts the record is deleted so a redelivery gets a fresh run; at
// or above the limit the record is kept in a terminal failed state and retries
// are refused.
func (s *Service) MarkAsFailed(ctx context.Context, id string, maxAttempts int) (bool, error) {
	rec, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return false, err
	}
	now := s.now()
	if !ok {
		rec = &Record{EventID: id, CreatedAt: now, ExpiresAt: now.Add(s.ttl)}
	}

	rec.Attempts++
	rec.UpdatedAt = now

	if rec.Attempts < maxAttempts {
		if err := s.store.Delete(ctx, id); err != nil {
			return false, err
		}
		return true, nil
	}

	rec.Status = StatusFailed
	if err := s.store.Update(ctx, *rec); err != nil {
		return false, err
	}
	return false, nil
}

func (s *Service) expired(rec *Record) bool {
	return !rec.ExpiresAt.IsZero() && !s.now().Before(rec.ExpiresAt)
}

// MemoryStore is the mutex-guarded in-memory Store.
type MemoryStore struct {
	mu   sync.Mutex
	recs map[string]Record
	now  func() time.Time
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{recs: make(map[string]Record), now: time.Now}
}

// WithClock overrides the time source for tests.
func (m *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	m.now = now
	return m
}

// Acquire implements Store. The check and insert happen under one lock, which
// is the compare-and-set the concurrency contract requires.
func (m *MemoryStore) Acquire(_ context.Context, id string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if rec, ok := m.recs[id]; ok {
		if rec.ExpiresAt.IsZero() || now.Before(rec.ExpiresAt) {
			return false, nil
		}
		// Expired records are reclaimed on the next acquire.
		delete(m.recs, id)
	}

	m.recs[id] = Record{
		EventID:   id,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	return true, nil
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, id string) (*Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.recs[id]
	if !ok {
		return nil, false, nil
	}
	copied := rec
	return &copied, true, nil
}

// Update implements Store.
func (m *MemoryStore) Update(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[rec.EventID] = rec
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.recs, id)
	return nil
}
