package schedule_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onyxia-store/onyxia/pkg/logger"
	"github.com/onyxia-store/onyxia/pkg/schedule"
)

func init() { logger.Discard() }

func TestEveryRunsRepeatedly(t *testing.T) {
	s := schedule.New().WithTick(5 * time.Millisecond)
	var n atomic.Int32
	s.Every(20 * time.Millisecond).Name("count").Run(func() { n.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Start(ctx)

	require.Eventually(t, func() bool { return n.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestFirstRunWaitsOneInterval(t *testing.T) {
	s := schedule.New().WithTick(5 * time.Millisecond)
	var n atomic.Int32
	s.Every(time.Hour).Run(func() { n.Add(1) })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	s.Start(ctx)

	assert.Equal(t, int32(0), n.Load())
}

func TestWithoutOverlappingSkipsBusyTask(t *testing.T) {
	s := schedule.New().WithTick(2 * time.Millisecond)
	var running, maxRunning atomic.Int32
	release := make(chan struct{})

	s.Every(5 * time.Millisecond).WithoutOverlapping().Run(func() {
		cur := running.Add(1)
		if cur > maxRunning.Load() {
			maxRunning.Store(cur)
		}
		<-release
		running.Add(-1)
	})

	ctx, cancel := context.WithCancel(context.Background())
	go s.Start(ctx)

	require.Eventually(t, func() bool { return running.Load() == 1 }, time.Second, 2*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	close(release)
	cancel()

	assert.Equal(t, int32(1), maxRunning.Load())
}

func TestPanickingTaskKeepsSchedulerAlive(t *testing.T) {
	s := schedule.New().WithTick(5 * time.Millisecond)
	var n atomic.Int32
	s.Every(10 * time.Millisecond).Run(func() {
		n.Add(1)
		panic("boom")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Start(ctx)

	require.Eventually(t, func() bool { return n.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestList(t *testing.T) {
	s := schedule.New()
	s.Every(time.Minute).Name("ratelimit.prune").Run(func() {})
	s.Every(5 * time.Minute).Name("cache.sweep").Run(func() {})
	s.Every(time.Hour).Run(func() {})

	assert.Equal(t, []string{
		"cache.sweep  [5m0s]",
		"ratelimit.prune  [1m0s]",
		"task-3  [1h0m0s]",
	}, s.List())
}
