package datasemaphore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// admitted tries to acquire the weight for a short while.
func admitted(s *DataSemaphore, weight Metric) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	return s.Acquire(ctx, weight) == nil
}

func TestAcquireRelease(t *testing.T) {
	require := require.New(t)

	s := New(Metric{Num: 2, Size: 100}, nil)
	require.True(admitted(s, Metric{Num: 1, Size: 60}))
	require.False(admitted(s, Metric{Num: 1, Size: 60}))
	require.True(admitted(s, Metric{Num: 1, Size: 40}))
	require.Equal(Metric{Num: 2, Size: 100}, s.Processing())

	acquired := make(chan error, 1)
	go func() {
		acquired <- s.Acquire(context.Background(), Metric{Num: 1, Size: 50})
	}()
	select {
	case <-acquired:
		t.Fatal("must wait for a release")
	case <-time.After(20 * time.Millisecond):
	}
	s.Release(Metric{Num: 1, Size: 60})
	require.NoError(<-acquired)
	require.Equal(Metric{Num: 2, Size: 90}, s.Processing())
}

func TestOversizedWeight(t *testing.T) {
	require := require.New(t)

	s := New(Metric{Num: 1, Size: 10}, nil)
	require.True(admitted(s, Metric{Num: 1, Size: 50}))
	require.False(admitted(s, Metric{Num: 1, Size: 1}))
	s.Release(Metric{Num: 1, Size: 50})
	require.True(admitted(s, Metric{Num: 1, Size: 1}))
}

func TestAcquireContext(t *testing.T) {
	s := New(Metric{Num: 1, Size: 10}, nil)
	require.NoError(t, s.Acquire(context.Background(), Metric{Num: 1, Size: 10}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, s.Acquire(ctx, Metric{Num: 1, Size: 1}), context.DeadlineExceeded)

	s.Terminate()
	require.ErrorIs(t, s.Acquire(context.Background(), Metric{Num: 1, Size: 1}), ErrTerminated)
}

func TestReleaseUnderflow(t *testing.T) {
	warned := false
	s := New(Metric{Num: 1, Size: 10}, func(processing Metric, releasing Metric) {
		warned = true
	})
	s.Release(Metric{Num: 1, Size: 1})
	require.True(t, warned)
	require.Equal(t, Metric{}, s.Processing())
}
