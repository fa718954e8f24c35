package workerpool_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/onyxia-store/onyxia/pkg/logger"
	"github.com/onyxia-store/onyxia/pkg/workerpool"
)

func init() { logger.Discard() }

func TestPool_SubmitAndExecute(t *testing.T) {
	pool := workerpool.New("test", 4)
	defer pool.Shutdown(context.Background())

	const n = 100
	var count atomic.Int64

	var wg sync.WaitGroup
	wg.Add(n)

	for i := 0; i < n; i++ {
		err := pool.SubmitWait(context.Background(), func() {
			defer wg.Done()
			count.Add(1)
		})
		if err != nil {
			t.Fatalf("SubmitWait returned unexpected error: %v", err)
		}
	}

	wg.Wait()

	if got := count.Load(); got != n {
		t.Errorf("expected %d tasks to run, got %d", n, got)
	}
}

func TestPool_ErrPoolFull(t *testing.T) {
	pool := workerpool.New("test", 1)
	defer pool.Shutdown(context.Background())

	blocker := make(chan struct{})
	started := make(chan struct{})

	_ = pool.SubmitWait(context.Background(), func() {
		close(started)
		<-blocker
	})
	<-started

	// queue capacity is twice the worker count
	_ = pool.Submit(func() {})
	_ = pool.Submit(func() {})

	err := pool.Submit(func() {})
	if !errors.Is(err, workerpool.ErrPoolFull) {
		t.Errorf("expected ErrPoolFull, got %v", err)
	}

	close(blocker)
}

func TestPool_SubmitWaitHonoursContext(t *testing.T) {
	pool := workerpool.New("test", 1)
	blocker := make(chan struct{})
	defer func() {
		close(blocker)
		pool.Shutdown(context.Background())
	}()

	started := make(chan struct{})
	_ = pool.Submit(func() { close(started); <-blocker })
	<-started
	_ = pool.Submit(func() {})
	_ = pool.Submit(func() {})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := pool.SubmitWait(ctx, func() {}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestPool_ErrPoolClosed(t *testing.T) {
	pool := workerpool.New("test", 2)
	if err := pool.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := pool.Submit(func() {}); !errors.Is(err, workerpool.ErrPoolClosed) {
		t.Errorf("expected ErrPoolClosed after Shutdown, got %v", err)
	}
	if err := pool.Go("x", func() error { return nil }); !errors.Is(err, workerpool.ErrPoolClosed) {
		t.Errorf("expected ErrPoolClosed from Go, got %v", err)
	}
	if err := pool.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown: %v", err)
	}
}

func TestPool_PanicRecovery(t *testing.T) {
	pool := workerpool.New("test", 2)
	defer pool.Shutdown(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	_ = pool.SubmitWait(context.Background(), func() {
		defer wg.Done()
		panic("boom")
	})
	wg.Wait()

	normal := make(chan struct{})
	_ = pool.SubmitWait(context.Background(), func() { close(normal) })

	select {
	case <-normal:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not recover from panic")
	}
}

func TestPool_GoRunsJobs(t *testing.T) {
	pool := workerpool.New("test", 2)

	var ran atomic.Int32
	for i := 0; i < 3; i++ {
		fail := i == 1
		if err := pool.Go("test.job", func() error {
			ran.Add(1)
			if fail {
				return errors.New("nope")
			}
			return nil
		}); err != nil {
			t.Fatal(err)
		}
	}

	if err := pool.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := ran.Load(); got != 3 {
		t.Errorf("expected 3 jobs to run, got %d", got)
	}
}

func TestPool_ShutdownDeadline(t *testing.T) {
	pool := workerpool.New("test", 1)
	release := make(chan struct{})
	defer close(release)
	_ = pool.Submit(func() { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := pool.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
