package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/hideseek/internal/domain/game"
)

func TestLockRegistry_MutualExclusion(t *testing.T) {
	r := NewLockRegistry(time.Second)

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := r.WithLock(context.Background(), "s1", func() error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, r.Len())
}

func TestLockRegistry_Timeout(t *testing.T) {
	r := NewLockRegistry(30 * time.Millisecond)

	release, err := r.Acquire(context.Background(), "s1")
	require.NoError(t, err)

	_, err = r.Acquire(context.Background(), "s1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, game.ErrConcurrency))

	// Other sessions are independent.
	other, err := r.Acquire(context.Background(), "s2")
	require.NoError(t, err)
	other()

	release()
	release() // idempotent

	again, err := r.Acquire(context.Background(), "s1")
	require.NoError(t, err)
	again()
	assert.Equal(t, 0, r.Len())
}

func TestLockRegistry_ContextCancelled(t *testing.T) {
	r := NewLockRegistry(time.Second)

	release, err := r.Acquire(context.Background(), "s1")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Acquire(ctx, "s1")
	assert.True(t, errors.Is(err, game.ErrConcurrency))
}

func TestLockRegistry_WithLockReturnsError(t *testing.T) {
	r := NewLockRegistry(0)
	want := errors.New("boom")
	err := r.WithLock(context.Background(), "s1", func() error { return want })
	assert.Equal(t, want, err)
	assert.Equal(t, 0, r.Len())
}
