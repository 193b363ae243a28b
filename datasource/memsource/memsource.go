package memsource

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/Fantom-foundation/rangeview/inter/source"
)

// ErrOutOfRange is returned for ranges beyond the dataset.
var ErrOutOfRange = errors.New("range out of dataset")

type (
	// Option configures a Source.
	Option func(*Source)

	// FailFn decides whether a range fetch fails.
	FailFn func(start, end int) error
)

// Source is a slice-backed source.Source. It's able to push items to stream subscribers.
type Source struct {
	id        string
	items     []source.Item
	latency   time.Duration
	fail      FailFn
	streaming bool

	calls    int64
	metaHits int64

	deliver sync.Mutex
	mu      sync.Mutex
	streams map[*stream]struct{}
}

// WithLatency delays every fetch.
func WithLatency(d time.Duration) Option {
	return func(s *Source) {
		s.latency = d
	}
}

// WithFailure makes fetches fail when fn returns an error.
func WithFailure(fn FailFn) Option {
	return func(s *Source) {
		s.fail = fn
	}
}

// WithStreaming declares the source as streaming.
func WithStreaming() Option {
	return func(s *Source) {
		s.streaming = true
	}
}

// New creates a source serving items.
func New(id string, items []source.Item, opts ...Option) *Source {
	s := &Source{
		id:      id,
		items:   items,
		streams: make(map[*stream]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sequence returns n integer items, each equal to its index.
func Sequence(n int) []source.Item {
	items := make([]source.Item, n)
	for i := range items {
		items[i] = i
	}
	return items
}

func (s *Source) ID() string {
	return s.id
}

func (s *Source) Metadata(ctx context.Context) (source.Metadata, error) {
	atomic.AddInt64(&s.metaHits, 1)
	if err := ctx.Err(); err != nil {
		return source.Metadata{}, err
	}
	return source.Metadata{
		TotalCount:        len(s.items),
		SupportsStreaming: s.streaming,
	}, nil
}

func (s *Source) LoadRange(ctx context.Context, start, end int) ([]source.Item, error) {
	atomic.AddInt64(&s.calls, 1)
	if s.latency > 0 {
		timer := time.NewTimer(s.latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.fail != nil {
		if err := s.fail(start, end); err != nil {
			return nil, err
		}
	}
	if start < 0 || end < start || end > len(s.items) {
		return nil, errors.Wrapf(ErrOutOfRange, "[%d,%d) of %d", start, end, len(s.items))
	}
	res := make([]source.Item, end-start)
	copy(res, s.items[start:end])
	return res, nil
}

// Calls returns the number of LoadRange calls.
func (s *Source) Calls() int {
	return int(atomic.LoadInt64(&s.calls))
}

// MetadataCalls returns the number of Metadata calls.
func (s *Source) MetadataCalls() int {
	return int(atomic.LoadInt64(&s.metaHits))
}

type stream struct {
	src     *Source
	handler source.StreamHandler
	once    sync.Once
}

// Stream subscribes handler to pushed items. The stream is closed when ctx ends.
func (s *Source) Stream(ctx context.Context, handler source.StreamHandler) (source.StreamHandle, error) {
	if !s.streaming {
		return nil, errors.Errorf("source %s doesn't stream", s.id)
	}
	st := &stream{
		src:     s,
		handler: handler,
	}
	s.mu.Lock()
	s.streams[st] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = st.Close()
	}()
	return st, nil
}

func (st *stream) Close() error {
	st.once.Do(func() {
		st.src.mu.Lock()
		delete(st.src.streams, st)
		st.src.mu.Unlock()
	})
	return nil
}

// Push delivers items to every open stream.
func (s *Source) Push(items ...source.Item) {
	s.broadcast(func(h source.StreamHandler) {
		if h.OnData != nil {
			h.OnData(items)
		}
	}, false)
}

// End finishes every open stream.
func (s *Source) End() {
	s.broadcast(func(h source.StreamHandler) {
		if h.OnEnd != nil {
			h.OnEnd()
		}
	}, true)
}

// Fail reports err to every open stream and closes them.
func (s *Source) Fail(err error) {
	s.broadcast(func(h source.StreamHandler) {
		if h.OnError != nil {
			h.OnError(err)
		}
	}, true)
}

// Subscribers returns the number of open streams.
func (s *Source) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.streams)
}

// broadcast calls fn for every open stream. Deliveries are serialized,
// so handlers of a stream are never called concurrently.
func (s *Source) broadcast(fn func(source.StreamHandler), last bool) {
	s.deliver.Lock()
	defer s.deliver.Unlock()

	s.mu.Lock()
	handlers := make([]source.StreamHandler, 0, len(s.streams))
	for st := range s.streams {
		handlers = append(handlers, st.handler)
		if last {
			delete(s.streams, st)
		}
	}
	s.mu.Unlock()

	for _, h := range handlers {
		fn(h)
	}
}
