package rangeloader

import (
	"context"
	"sync"

	"github.com/Fantom-foundation/rangeview/inter/rng"
	"github.com/Fantom-foundation/rangeview/inter/source"
)

// session is the state of a single Load call. Sessions share the loader's chunk arena.
type session struct {
	id   uint64
	src  source.Source
	meta source.Metadata
	opts Options

	mu       sync.Mutex
	viewport rng.Range
	disposed bool

	prefetchDir    Direction
	prefetchCtx    context.Context
	prefetchCancel context.CancelFunc

	stream   *ingestor
	scrolls  []closer
	disposal []func()
}

type closer interface {
	Close()
}

func (l *Loader) openSession(src source.Source, meta source.Metadata, opts Options) (*session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrClosed
	}
	l.nextID++
	s := &session{
		id:   l.nextID,
		src:  src,
		meta: meta,
		opts: opts,
	}
	l.sessions[s.id] = s
	return s, nil
}

func (l *Loader) session(id uint64) *session {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sessions[id]
}

// Sessions returns the number of open sessions.
func (l *Loader) Sessions() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sessions)
}

// dispose drops the session references. Cached chunks stay, as they are shared.
func (l *Loader) dispose(s *session) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	if s.prefetchCancel != nil {
		s.prefetchCancel()
		s.prefetchCancel = nil
	}
	stream := s.stream
	s.stream = nil
	scrolls := s.scrolls
	s.scrolls = nil
	disposal := s.disposal
	s.disposal = nil
	s.mu.Unlock()

	if stream != nil {
		stream.close(false)
	}
	for _, sc := range scrolls {
		sc.Close()
	}
	for _, fn := range disposal {
		fn()
	}

	l.mu.Lock()
	delete(l.sessions, s.id)
	l.mu.Unlock()
	l.log.Debug("Session disposed", "id", s.id, "source", s.src.ID())
}

func (s *session) isDisposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}
