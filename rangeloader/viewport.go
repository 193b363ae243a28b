package rangeloader

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/Fantom-foundation/rangeview/inter/rng"
)

// Direction is the inferred scroll direction.
type Direction int8

const (
	DirectionNone Direction = iota
	DirectionDown
	DirectionUp
)

func (d Direction) String() string {
	switch d {
	case DirectionDown:
		return "down"
	case DirectionUp:
		return "up"
	default:
		return "none"
	}
}

// DetectDirection compares viewport starts of two consecutive updates.
func DetectDirection(prev, next rng.Range) Direction {
	switch {
	case next.Start > prev.Start:
		return DirectionDown
	case next.Start < prev.Start:
		return DirectionUp
	default:
		return DirectionNone
	}
}

// RequiredRange is the viewport grown by a chunk on each side, clamped to the dataset.
func RequiredRange(viewport rng.Range, chunkSize, total int) rng.Range {
	return viewport.Expand(chunkSize).Clamp(0, total)
}

// PrefetchRange is the range adjacent to required in the scroll direction.
func PrefetchRange(required rng.Range, dir Direction, length, total int) rng.Range {
	switch dir {
	case DirectionDown:
		return rng.New(required.End, required.End+length).Clamp(0, total)
	case DirectionUp:
		return rng.New(required.Start-length, required.Start).Clamp(0, total)
	default:
		return rng.Range{}
	}
}

// UpdateViewport stores the session viewport and loads all the missing ranges around it in parallel.
// It returns once every gap fetch has settled, with the first failure if any.
// Additionally, a best-effort prefetch is scheduled in the scroll direction.
func (l *Loader) UpdateViewport(ctx context.Context, viewport rng.Range, h *Handle) error {
	s := h.session
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return ErrDisposed
	}
	dir := DetectDirection(s.viewport, viewport)
	s.viewport = viewport
	s.mu.Unlock()

	srcID := s.src.ID()
	required := RequiredRange(viewport, s.opts.ChunkSize, s.meta.TotalCount)
	missing := l.MissingRanges(srcID, required)

	var g errgroup.Group
	for _, gap := range missing {
		gap := gap
		g.Go(func() error {
			_, err := l.LoadChunk(ctx, s.src, gap, s.id)
			return err
		})
	}

	l.prefetch(s, PrefetchRange(required, dir, s.opts.ChunkSize*s.opts.LoadAheadFactor, s.meta.TotalCount), dir)

	return g.Wait()
}

// prefetch schedules the missing parts of r for loading.
// A prefetch in the opposite direction cancels the previous one. Failures are only logged.
func (l *Loader) prefetch(s *session, r rng.Range, dir Direction) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	// an unchanged viewport start keeps the lookahead
	if s.prefetchCancel != nil && dir != DirectionNone && s.prefetchDir != dir {
		s.prefetchCancel()
		s.prefetchCancel = nil
	}
	if r.Empty() {
		s.mu.Unlock()
		return
	}
	if s.prefetchCancel == nil {
		s.prefetchCtx, s.prefetchCancel = context.WithCancel(l.ctx)
		s.prefetchDir = dir
	}
	ctx := s.prefetchCtx
	s.mu.Unlock()

	err := l.prefetchers.TryEnqueue(func() {
		for _, gap := range l.MissingRanges(s.src.ID(), r) {
			if ctx.Err() != nil {
				return
			}
			if _, err := l.LoadChunk(ctx, s.src, gap, s.id); err != nil {
				if ctx.Err() != nil {
					l.log.Debug("Prefetch cancelled", "id", s.id, "range", gap, "dir", dir)
					return
				}
				l.log.Warn("Prefetch failed", "id", s.id, "range", gap, "dir", dir, "err", err)
			}
		}
	})
	if err != nil {
		l.log.Debug("Prefetch dropped", "id", s.id, "range", r, "err", err)
	}
}
