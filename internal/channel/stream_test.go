package channel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive[T any](t *testing.T, ch <-chan T, n int) []T {
	t.Helper()
	out := make([]T, 0, n)
	for len(out) < n {
		select {
		case item, ok := <-ch:
			if !ok {
				t.Fatalf("channel closed after %d of %d items", len(out), n)
			}
			out = append(out, item)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d of %d items", len(out), n)
		}
	}
	return out
}

func TestStream_DeliversInOrderWithoutDropping(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewStream[int]()
	ch, err := s.Subscribe(ctx, nil)
	require.NoError(t, err)

	// Far more than any fixed buffer; nobody reads while publishing
	const n = 10000
	for i := 0; i < n; i++ {
		s.Publish(i)
	}

	got := receive(t, ch, n)
	for i, v := range got {
		require.Equal(t, i, v)
	}
}

func TestStream_Filter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewStream[int]()
	evens, err := s.Subscribe(ctx, func(v int) bool { return v%2 == 0 })
	require.NoError(t, err)
	all, err := s.Subscribe(ctx, nil)
	require.NoError(t, err)

	s.Publish(1, 2, 3, 4)

	assert.Equal(t, []int{2, 4}, receive(t, evens, 2))
	assert.Equal(t, []int{1, 2, 3, 4}, receive(t, all, 4))
}

func TestStream_ContextCancelUnsubscribes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewStream[int]()
	ch, err := s.Subscribe(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Subscribers())

	cancel()

	require.Eventually(t, func() bool { return s.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
	_, open := <-ch
	assert.False(t, open)
}

func TestStream_ShutdownDrainsThenCloses(t *testing.T) {
	s := NewStream[string]()
	ch, err := s.Subscribe(context.Background(), nil)
	require.NoError(t, err)

	s.Publish("a", "b")
	s.Shutdown()
	s.Publish("dropped")

	assert.Equal(t, []string{"a", "b"}, receive(t, ch, 2))
	_, open := <-ch
	assert.False(t, open)

	_, err = s.Subscribe(context.Background(), nil)
	assert.ErrorIs(t, err, ErrStreamClosed)
}
