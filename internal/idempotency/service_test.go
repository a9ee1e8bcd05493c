package idempotency

import (
	"context"
	"sync"
	"testing"
	"time"
)

func newTestService(ttl time.Duration, now *time.Time) *Service {
	clock := func() time.Time { return *now }
	store := NewMemoryStore().WithClock(clock)
	return NewService(store, ttl).WithClock(clock)
}

func TestFirstCheckIsNotDuplicate(t *testing.T) {
	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	svc := newTestService(time.Hour, &now)
	ctx := context.Background()

	res, err := svc.Check(ctx, "evt-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.IsDuplicate {
		t.Fatalf("unseen event must not be a duplicate")
	}
}

func TestAcquireThenDuplicate(t *testing.T) {
	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	svc := newTestService(time.Hour, &now)
	ctx := context.Background()

	acquired, err := svc.MarkAsProcessing(ctx, "evt-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !acquired {
		t.Fatalf("first caller must acquire")
	}

	res, err := svc.Check(ctx, "evt-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsDuplicate || res.Status != StatusPending {
		t.Fatalf("expected pending duplicate, got %+v", res)
	}

	if again, _ := svc.MarkAsProcessing(ctx, "evt-1"); again {
		t.Fatalf("second acquire for the same id must fail")
	}
}

func TestConcurrentAcquireSingleWinner(t *testing.T) {
	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	svc := newTestService(time.Hour, &now)
	ctx := context.Background()

	const callers = 32
	var wg sync.WaitGroup
	wins := make(chan bool, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			acquired, err := svc.MarkAsProcessing(ctx, "evt-contended")
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if acquired {
				wins <- true
			}
		}()
	}
	wg.Wait()
	close(wins)

	var count int
	for range wins {
		count++
	}
	if count != 1 {
		t.Fatalf("expected exactly one winner, got %d", count)
	}
}

func TestDistinctIDsAreIndependent(t *testing.T) {
	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	svc := newTestService(time.Hour, &now)
	ctx := context.Background()

	if ok, _ := svc.MarkAsProcessing(ctx, "evt-a"); !ok {
		t.Fatalf("evt-a should acquire")
	}
	if ok, _ := svc.MarkAsProcessing(ctx, "evt-b"); !ok {
		t.Fatalf("evt-b should acquire independently of evt-a")
	}
}

func TestProcessedIsTerminal(t *testing.T) {
	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	svc := newTestService(time.Hour, &now)
	ctx := context.Background()

	svc.MarkAsProcessing(ctx, "evt-1")
	if err := svc.MarkAsProcessed(ctx, "evt-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, _ := svc.Check(ctx, "evt-1")
	if !res.IsDuplicate || res.Status != StatusProcessed {
		t.Fatalf("processed record must stay duplicate, got %+v", res)
	}
	if acquired, _ := svc.MarkAsProcessing(ctx, "evt-1"); acquired {
		t.Fatalf("processed record must not be re-acquirable")
	}
}

func TestFailedUnderLimitAllowsRetry(t *testing.T) {
	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	svc := newTestService(time.Hour, &now)
	ctx := context.Background()

	svc.MarkAsProcessing(ctx, "evt-1")
	canRetry, err := svc.MarkAsFailed(ctx, "evt-1", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !canRetry {
		t.Fatalf("first failure under the limit must allow a retry")
	}

	// Record was deleted, so the retry acquires fresh ownership.
	if acquired, _ := svc.MarkAsProcessing(ctx, "evt-1"); !acquired {
		t.Fatalf("retry after under-limit failure must re-acquire")
	}
}

func TestFailedAtLimitIsTerminal(t *testing.T) {
	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	svc := newTestService(time.Hour, &now)
	ctx := context.Background()

	svc.MarkAsProcessing(ctx, "evt-1")
	if canRetry, _ := svc.MarkAsFailed(ctx, "evt-1", 1); canRetry {
		t.Fatalf("failure at the attempt limit must refuse retries")
	}

	res, _ := svc.Check(ctx, "evt-1")
	if !res.IsDuplicate || res.Status != StatusFailed {
		t.Fatalf("expected terminal failed record, got %+v", res)
	}
	if acquired, _ := svc.MarkAsProcessing(ctx, "evt-1"); acquired {
		t.Fatalf("terminally failed record must not be re-acquirable")
	}
}

func TestRecordsExpireAfterTTL(t *testing.T) {
	now := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	svc := newTestService(time.Hour, &now)
	ctx := context.Background()

	svc.MarkAsProcessing(ctx, "evt-1")
	svc.MarkAsProcessed(ctx, "evt-1")

	now = now.Add(time.Hour + time.Second)

	res, err := svc.Check(ctx, "evt-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.IsDuplicate {
		t.Fatalf("expired record must behave as absent")
	}
	if acquired, _ := svc.MarkAsProcessing(ctx, "evt-1"); !acquired {
		t.Fatalf("expired record must be re-acquirable")
	}
}
