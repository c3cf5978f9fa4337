package persistence

import (
	"context"
	"sync"
	"testing"
	"time"

	apperrors "github.com/spec-kit/support-ticket-core/pkg/util"
)

func TestMemoryLockerMutualExclusion(t *testing.T) {
	ctx := context.Background()
	locker := NewMemoryLocker()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(ctx, "lock:counter:1", time.Second)
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			defer release()
			counter++
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Fatalf("counter = %d, want 50", counter)
	}
}

func TestMemoryLockerBoundedWait(t *testing.T) {
	ctx := context.Background()
	locker := NewMemoryLocker()

	release, err := locker.Acquire(ctx, "lock:counter:2", time.Second)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	defer release()

	_, err = locker.Acquire(ctx, "lock:counter:2", 20*time.Millisecond)
	if !apperrors.IsCode(err, apperrors.CodeLockTimeout) {
		t.Fatalf("expected LOCK_TIMEOUT, got %v", err)
	}
}

func TestMemoryLockerIndependentNames(t *testing.T) {
	ctx := context.Background()
	locker := NewMemoryLocker()

	release, err := locker.Acquire(ctx, "lock:counter:3", time.Second)
	if err != nil {
		t.Fatalf("acquire shard 3: %v", err)
	}
	defer release()

	release4, err := locker.Acquire(ctx, "lock:counter:4", 20*time.Millisecond)
	if err != nil {
		t.Fatalf("unrelated shard should not contend: %v", err)
	}
	release4()
}

func TestFailingLocker(t *testing.T) {
	_, err := FailingLocker{}.Acquire(context.Background(), "lock:counter:0", time.Millisecond)
	if !apperrors.IsCode(err, apperrors.CodeLockTimeout) {
		t.Fatalf("expected LOCK_TIMEOUT, got %v", err)
	}
}
