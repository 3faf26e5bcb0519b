package command

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sleep returns a command waiting for d, counting its completions in done.
func sleep(d time.Duration, done *atomic.Int32) Command {
	return Func(func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
			done.Add(1)

			return nil
		}
	})
}

func TestWorkerPool_Spawn(t *testing.T) {
	t.Parallel()

	pool := NewWorkerPool(1, 1)

	var done atomic.Int32
	require.NoError(t, pool.Spawn(context.Background(), sleep(0, &done)))
	assert.Equal(t, int32(1), done.Load())
	assert.Equal(t, Stats{Workers: 1, MaxWaiting: 1}, pool.Stats())
}

func TestWorkerPool_Spawn_concurrent(t *testing.T) {
	t.Parallel()

	pool := NewWorkerPool(2, 2)

	var (
		done atomic.Int32
		wg   sync.WaitGroup
		errs = make(chan error, 4)
	)
	for range 4 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			errs <- pool.Spawn(context.Background(), sleep(50*time.Millisecond, &done))
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(4), done.Load())
}

func TestWorkerPool_Spawn_queueFull(t *testing.T) {
	t.Parallel()

	pool := NewWorkerPool(1, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var done atomic.Int32
	go func() { _ = pool.Spawn(ctx, sleep(time.Second, &done)) }()

	require.Eventually(t, func() bool { return pool.Stats().Running == 1 }, time.Second, 5*time.Millisecond)

	go func() { _ = pool.Spawn(ctx, sleep(0, &done)) }()

	require.Eventually(t, func() bool { return pool.Stats().Waiting == 1 }, time.Second, 5*time.Millisecond)

	err := pool.Spawn(context.Background(), sleep(0, &done))
	require.ErrorIs(t, err, ErrQueueFull)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int64(1), pool.Stats().Waiting)
}

func TestWorkerPool_Spawn_canceled(t *testing.T) {
	t.Parallel()

	pool := NewWorkerPool(1, 1)

	var done atomic.Int32
	go func() { _ = pool.Spawn(context.Background(), sleep(time.Second, &done)) }()

	require.Eventually(t, func() bool { return pool.Stats().Running == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := pool.Spawn(ctx, sleep(0, &done))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), done.Load())
	assert.Equal(t, int64(0), pool.Stats().Waiting)
}

func TestTimeout(t *testing.T) {
	t.Parallel()

	var done atomic.Int32
	err := Timeout(sleep(time.Second, &done), 10*time.Millisecond).Exec(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(0), done.Load())
}

func TestSandbox_args(t *testing.T) {
	t.Parallel()

	sandbox := &Sandbox{MountPoints: []MountPoint{{Host: "/opt/deckhand", Target: "/opt/deckhand"}}}

	assert.Equal(t, []string{
		"--ro-bind", "/opt/deckhand", "/opt/deckhand",
		"--unshare-all", "--clearenv", "--new-session",
		"/opt/deckhand/deckhand", "route", "--log-level=debug",
	}, sandbox.args("/opt/deckhand/deckhand", []string{"route", "--log-level=debug"}))

	cmd := NewProcess(context.Background(), nil, "docker", "compose", "ls")
	assert.Equal(t, []string{"docker", "compose", "ls"}, cmd.Args)
}
