package rangeloader

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/Fantom-foundation/rangeview/inter/events"
	"github.com/Fantom-foundation/rangeview/inter/rng"
	"github.com/Fantom-foundation/rangeview/inter/source"
)

func TestDetectDirection(t *testing.T) {
	require := require.New(t)

	require.Equal(DirectionDown, DetectDirection(rng.New(0, 10), rng.New(5, 15)))
	require.Equal(DirectionUp, DetectDirection(rng.New(5, 15), rng.New(0, 10)))
	require.Equal(DirectionNone, DetectDirection(rng.New(5, 15), rng.New(5, 20)))
	require.Equal("down", DirectionDown.String())
}

func TestRequiredAndPrefetchRange(t *testing.T) {
	for _, tc := range []struct {
		viewport rng.Range
		dir      Direction
		required rng.Range
		prefetch rng.Range
	}{
		{rng.New(500, 550), DirectionDown, rng.New(400, 650), rng.New(650, 850)},
		{rng.New(500, 550), DirectionUp, rng.New(400, 650), rng.New(200, 400)},
		{rng.New(500, 550), DirectionNone, rng.New(400, 650), rng.Range{}},
		{rng.New(20, 40), DirectionUp, rng.New(0, 140), rng.Range{}},
		{rng.New(950, 1000), DirectionDown, rng.New(850, 1000), rng.Range{}},
		{rng.New(800, 820), DirectionDown, rng.New(700, 920), rng.New(920, 1000)},
	} {
		required := RequiredRange(tc.viewport, 100, 1000)
		require.Equal(t, tc.required, required, tc.viewport)
		prefetch := PrefetchRange(required, tc.dir, 200, 1000)
		require.Equal(t, tc.prefetch.Len(), prefetch.Len(), tc.viewport)
		if !prefetch.Empty() {
			require.Equal(t, tc.prefetch, prefetch, tc.viewport)
		}
	}
}

// blockingSource serves ranges below from at once, and blocks on the others until cancelled.
func blockingSource(ctrl *gomock.Controller, total, from int) (src *MockSource, started, cancelled chan struct{}) {
	src = mockSource(ctrl, "blocking", total)
	started = make(chan struct{})
	cancelled = make(chan struct{})
	var once sync.Once
	src.EXPECT().LoadRange(gomock.Any(), gomock.Any(), gomock.Any()).
		AnyTimes().
		DoAndReturn(func(ctx context.Context, start, end int) ([]source.Item, error) {
			if start < from {
				return sequence(start, end), nil
			}
			once.Do(func() {
				close(started)
			})
			<-ctx.Done()
			cancelled <- struct{}{}
			return nil, ctx.Err()
		})
	return src, started, cancelled
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
}

func TestPrefetchCancelledOnReverse(t *testing.T) {
	require := require.New(t)
	ctrl := gomock.NewController(t)
	l := testLoader(t)
	ctx := context.Background()

	src, started, cancelled := blockingSource(ctrl, 1000, 250)
	h, err := l.Load(ctx, src, WithInitialLoadSize(0))
	require.NoError(err)

	require.NoError(h.UpdateViewport(ctx, rng.New(100, 150)))
	waitFor(t, started)
	require.Equal(1, l.ActiveRequests())

	// scrolling back up doesn't need the downward prefetch anymore
	require.NoError(h.UpdateViewport(ctx, rng.New(50, 60)))
	waitFor(t, cancelled)
	require.Eventually(func() bool {
		return l.ActiveRequests() == 0
	}, time.Second, time.Millisecond)
	require.Equal(rng.Ranges{rng.New(0, 250)}, h.LoadedRanges())
}

func TestPrefetchKeptOnSameDirection(t *testing.T) {
	require := require.New(t)
	ctrl := gomock.NewController(t)
	l := testLoader(t)
	ctx := context.Background()

	src, started, cancelled := blockingSource(ctrl, 1000, 250)
	h, err := l.Load(ctx, src, WithInitialLoadSize(0))
	require.NoError(err)

	require.NoError(h.UpdateViewport(ctx, rng.New(100, 150)))
	waitFor(t, started)
	require.NoError(h.UpdateViewport(ctx, rng.New(110, 140)))

	select {
	case <-cancelled:
		t.Fatal("prefetch cancelled")
	case <-time.After(20 * time.Millisecond):
	}
	require.Equal(1, l.ActiveRequests())
	// one prefetch is blocked on [250,450), the next one waits in the queue
	stats := h.GetStats()
	require.Equal(2, stats.PendingPrefetches)
	require.Equal(uint64(200), stats.FetchingItems)

	h.Dispose()
	waitFor(t, cancelled)
}

func TestPrefetchKeptOnUnchangedViewport(t *testing.T) {
	require := require.New(t)
	ctrl := gomock.NewController(t)
	l := testLoader(t)
	ctx := context.Background()

	src, started, cancelled := blockingSource(ctrl, 1000, 250)
	h, err := l.Load(ctx, src, WithInitialLoadSize(0))
	require.NoError(err)

	require.NoError(h.UpdateViewport(ctx, rng.New(100, 150)))
	waitFor(t, started)
	// a repeated notification has no direction
	require.NoError(h.UpdateViewport(ctx, rng.New(100, 150)))

	select {
	case <-cancelled:
		t.Fatal("prefetch cancelled")
	case <-time.After(20 * time.Millisecond):
	}
	require.Equal(1, l.ActiveRequests())

	h.Dispose()
	waitFor(t, cancelled)
}

func TestPrefetchFailureKeepsSession(t *testing.T) {
	require := require.New(t)
	ctrl := gomock.NewController(t)
	l := testLoader(t)
	ctx := context.Background()

	src := mockSource(ctrl, "failing", 1000)
	src.EXPECT().LoadRange(gomock.Any(), gomock.Any(), gomock.Any()).
		AnyTimes().
		DoAndReturn(func(ctx context.Context, start, end int) ([]source.Item, error) {
			if start < 250 {
				return sequence(start, end), nil
			}
			return nil, errors.New("backend unavailable")
		})

	errs := make(chan events.Error, 8)
	loadErrs := make(chan events.LoadError, 8)
	defer l.SubscribeError(errs).Unsubscribe()
	defer l.SubscribeLoadError(loadErrs).Unsubscribe()

	h, err := l.Load(ctx, src, WithInitialLoadSize(0))
	require.NoError(err)
	require.NoError(h.UpdateViewport(ctx, rng.New(100, 150)))

	select {
	case e := <-loadErrs:
		require.Equal(h.ID(), e.LoadID)
		require.Equal(rng.New(250, 450), e.Range)
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
	require.Empty(errs)
	require.Equal(rng.Ranges{rng.New(0, 250)}, h.LoadedRanges())
}

func TestViewportParallelGaps(t *testing.T) {
	require := require.New(t)
	ctrl := gomock.NewController(t)
	l := testLoader(t)
	ctx := context.Background()

	src := mockSource(ctrl, "gaps", 1000)
	var (
		mu    sync.Mutex
		calls []rng.Range
	)
	src.EXPECT().LoadRange(gomock.Any(), gomock.Any(), gomock.Any()).
		AnyTimes().
		DoAndReturn(func(ctx context.Context, start, end int) ([]source.Item, error) {
			mu.Lock()
			calls = append(calls, rng.New(start, end))
			mu.Unlock()
			return sequence(start, end), nil
		})

	h, err := l.Load(ctx, src, WithInitialLoadSize(0), WithLoadAheadFactor(0))
	require.NoError(err)
	_, err = h.GetRange(ctx, 150, 200)
	require.NoError(err)

	require.NoError(h.UpdateViewport(ctx, rng.New(100, 250)))
	require.Equal(rng.Ranges{rng.New(0, 350)}, h.LoadedRanges())

	mu.Lock()
	defer mu.Unlock()
	rng.Ranges(calls).Sort()
	require.Equal([]rng.Range{rng.New(0, 150), rng.New(150, 200), rng.New(200, 350)}, calls)
}
