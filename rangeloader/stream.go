package rangeloader

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/Fantom-foundation/rangeview/chunkcache"
	"github.com/Fantom-foundation/rangeview/inter/events"
	"github.com/Fantom-foundation/rangeview/inter/rng"
	"github.com/Fantom-foundation/rangeview/inter/source"
)

// ingestor buffers pushed items of a session and flushes them into the chunk arena
// as synthetic ranges starting at a monotonic stream cursor.
type ingestor struct {
	loader  *Loader
	session *session

	chunkSize     int
	flushInterval time.Duration

	// deliver orders the publishing of flushed batches, mu guards the buffer
	deliver sync.Mutex

	mu        sync.Mutex
	buf       []source.Item
	cursor    int
	lastFlush time.Time
	idle      *time.Timer
	handle    source.StreamHandle
	closed    bool
}

// batch is a flushed piece of the buffer.
type batch struct {
	r     rng.Range
	items []source.Item
}

func newIngestor(l *Loader, s *session) *ingestor {
	return &ingestor{
		loader:        l,
		session:       s,
		chunkSize:     s.opts.ChunkSize,
		flushInterval: s.opts.StreamFlushInterval,
		buf:           make([]source.Item, 0, s.opts.ChunkSize),
		lastFlush:     time.Now(),
	}
}

// subscribeStream opens the source stream. A failure only affects the stream.
func (l *Loader) subscribeStream(s *session) {
	streamer, ok := s.src.(source.Streamer)
	if !ok {
		l.log.Warn("Source declares streaming but can't stream", "id", s.id, "source", s.src.ID())
		return
	}
	in := newIngestor(l, s)

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.stream = in
	s.mu.Unlock()

	handle, err := streamer.Stream(l.ctx, source.StreamHandler{
		OnData:  in.onData,
		OnError: in.onError,
		OnEnd:   in.onEnd,
	})
	if err != nil {
		in.onError(err)
		return
	}

	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		_ = handle.Close()
		return
	}
	in.handle = handle
	in.mu.Unlock()
}

func (in *ingestor) onData(items []source.Item) {
	in.deliver.Lock()
	defer in.deliver.Unlock()

	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		return
	}
	in.buf = append(in.buf, items...)
	// flushing whole chunks keeps less than a chunk buffered between deliveries
	var batches []batch
	for len(in.buf) >= in.chunkSize {
		batches = append(batches, in.take(in.chunkSize))
	}
	in.armIdleFlush()
	in.mu.Unlock()

	in.publish(batches)
}

func (in *ingestor) onError(err error) {
	err = errors.Wrapf(ErrStream, "source %s: %v", in.session.src.ID(), err)
	in.loader.log.Warn("Stream failed", "id", in.session.id, "err", err)
	in.loader.feeds.errs.Send(events.Error{LoadID: in.session.id, Err: err})
	in.close(false)
}

func (in *ingestor) onEnd() {
	in.close(true)
}

// close stops the stream. Buffered items are flushed if requested, otherwise dropped.
// Without a flush it never waits for a delivery in progress.
func (in *ingestor) close(flush bool) {
	if flush {
		in.deliver.Lock()
		defer in.deliver.Unlock()
	}

	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		return
	}
	var batches []batch
	if flush && len(in.buf) != 0 {
		batches = append(batches, in.take(len(in.buf)))
	}
	in.closed = true
	in.buf = nil
	if in.idle != nil {
		in.idle.Stop()
	}
	handle := in.handle
	in.handle = nil
	in.mu.Unlock()

	if handle != nil {
		if err := handle.Close(); err != nil {
			in.loader.log.Debug("Stream close failed", "id", in.session.id, "err", err)
		}
	}
	in.publish(batches)
}

func (in *ingestor) armIdleFlush() {
	if in.flushInterval <= 0 || len(in.buf) == 0 {
		return
	}
	if in.idle == nil {
		in.idle = time.AfterFunc(in.flushInterval, in.onIdle)
		return
	}
	in.idle.Reset(in.flushInterval)
}

func (in *ingestor) onIdle() {
	in.deliver.Lock()
	defer in.deliver.Unlock()

	in.mu.Lock()
	if in.closed || len(in.buf) == 0 {
		in.mu.Unlock()
		return
	}
	if since := time.Since(in.lastFlush); since < in.flushInterval {
		in.idle.Reset(in.flushInterval - since)
		in.mu.Unlock()
		return
	}
	b := in.take(len(in.buf))
	in.mu.Unlock()

	in.publish([]batch{b})
}

// take cuts the first n buffered items at the stream cursor. Must be called under mu.
func (in *ingestor) take(n int) batch {
	items := make([]source.Item, n)
	copy(items, in.buf[:n])
	in.buf = append(in.buf[:0], in.buf[n:]...)

	r := rng.New(in.cursor, in.cursor+n)
	in.cursor += n
	in.lastFlush = time.Now()
	return batch{r: r, items: items}
}

// publish moves the batches into the chunk arena. Must be called under deliver, without mu.
func (in *ingestor) publish(batches []batch) {
	for _, b := range batches {
		in.loader.insert(chunkcache.KeyOf(in.session.src.ID(), b.r), b.items)
		in.loader.feeds.streamUpdate.Send(events.StreamUpdate{LoadID: in.session.id, Range: b.r, Items: b.items})
	}
}

// Pending returns the number of buffered stream items of the session.
func (h *Handle) Pending() int {
	h.session.mu.Lock()
	in := h.session.stream
	h.session.mu.Unlock()
	if in == nil {
		return 0
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.buf)
}
