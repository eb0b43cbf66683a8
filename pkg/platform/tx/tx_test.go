package tx

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterStore struct {
	n int
}

func (c *counterStore) Snapshot() func() {
	saved := c.n
	return func() { c.n = saved }
}

type gatedStore struct {
	MemoryGate
	mu sync.Mutex
	n  int
}

func (g *gatedStore) Add(ctx context.Context) {
	defer g.BeginWrite(ctx)()
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
}

func (g *gatedStore) value() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}

func (g *gatedStore) Snapshot() func() {
	g.mu.Lock()
	saved := g.n
	g.mu.Unlock()
	return func() {
		g.mu.Lock()
		g.n = saved
		g.mu.Unlock()
	}
}

func TestMemoryGate(t *testing.T) {
	t.Run("write outside a failing unit survives its rollback", func(t *testing.T) {
		s := &gatedStore{}
		r := NewMemoryRunner(s)
		started := make(chan struct{})
		release := make(chan struct{})
		unitDone := make(chan error, 1)

		go func() {
			unitDone <- r.RunInTx(context.Background(), func(ctx context.Context) error {
				s.Add(ctx)
				close(started)
				<-release
				return errors.New("rolled back")
			})
		}()
		<-started

		outsideDone := make(chan struct{})
		go func() {
			s.Add(context.Background())
			close(outsideDone)
		}()

		select {
		case <-outsideDone:
			t.Fatal("outside write ran while the unit was open")
		case <-time.After(50 * time.Millisecond):
		}

		close(release)
		require.Error(t, <-unitDone)
		<-outsideDone
		assert.Equal(t, 1, s.value())
	})

	t.Run("unbound gate does not block", func(t *testing.T) {
		s := &gatedStore{}
		s.Add(context.Background())
		assert.Equal(t, 1, s.value())
	})
}

func TestMemoryRunner(t *testing.T) {
	t.Run("commit keeps writes", func(t *testing.T) {
		s := &counterStore{}
		r := NewMemoryRunner(s)
		err := r.RunInTx(context.Background(), func(ctx context.Context) error {
			s.n++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, s.n)
	})

	t.Run("error restores every store", func(t *testing.T) {
		a, b := &counterStore{n: 1}, &counterStore{n: 2}
		r := NewMemoryRunner(a, b)
		boom := errors.New("boom")
		err := r.RunInTx(context.Background(), func(ctx context.Context) error {
			a.n = 10
			b.n = 20
			return boom
		})
		require.ErrorIs(t, err, boom)
		assert.Equal(t, 1, a.n)
		assert.Equal(t, 2, b.n)
	})

	t.Run("panic restores and re-panics", func(t *testing.T) {
		s := &counterStore{n: 5}
		r := NewMemoryRunner(s)
		assert.Panics(t, func() {
			_ = r.RunInTx(context.Background(), func(ctx context.Context) error {
				s.n = 6
				panic("kaboom")
			})
		})
		assert.Equal(t, 5, s.n)
	})

	t.Run("nested unit joins outer", func(t *testing.T) {
		s := &counterStore{}
		r := NewMemoryRunner(s)
		err := r.RunInTx(context.Background(), func(ctx context.Context) error {
			s.n++
			return r.RunInTx(ctx, func(ctx context.Context) error {
				s.n++
				return errors.New("inner failure")
			})
		})
		require.Error(t, err)
		assert.Equal(t, 0, s.n)
	})

	t.Run("cancelled context does not start", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		called := false
		err := NewMemoryRunner().RunInTx(ctx, func(context.Context) error {
			called = true
			return nil
		})
		require.ErrorIs(t, err, context.Canceled)
		assert.False(t, called)
	})
}
