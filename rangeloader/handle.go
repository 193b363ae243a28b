package rangeloader

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/Fantom-foundation/rangeview/chunkcache"
	"github.com/Fantom-foundation/rangeview/inter/events"
	"github.com/Fantom-foundation/rangeview/inter/rng"
	"github.com/Fantom-foundation/rangeview/inter/source"
	"github.com/Fantom-foundation/rangeview/vscroll"
)

// Stats describe a session.
type Stats struct {
	TotalItems     int
	LoadedItems    int
	LoadProgress   float64
	MemoryUsage    uint64
	MemoryBudget   uint64
	ActiveRequests int

	PendingPrefetches int
	FetchingItems     uint64
}

// Handle is a session facade bound to a loader, a source and its metadata.
type Handle struct {
	loader  *Loader
	session *session
}

// ID is the session load ID.
func (h *Handle) ID() uint64 {
	return h.session.id
}

func (h *Handle) Source() source.Source {
	return h.session.src
}

func (h *Handle) Metadata() source.Metadata {
	return h.session.meta
}

func (h *Handle) Options() Options {
	return h.session.opts
}

// Viewport returns the last viewport reported for the session.
func (h *Handle) Viewport() rng.Range {
	h.session.mu.Lock()
	defer h.session.mu.Unlock()
	return h.session.viewport
}

// GetRange returns items [start, end), from the cache, an in-flight fetch or the source.
func (h *Handle) GetRange(ctx context.Context, start, end int) ([]source.Item, error) {
	if h.session.isDisposed() {
		return nil, ErrDisposed
	}
	r := rng.New(start, end)
	if !r.Valid(h.session.meta.TotalCount) {
		return nil, errors.Wrapf(ErrInvalidRange, "%s out of %d items", r, h.session.meta.TotalCount)
	}
	return h.loader.LoadChunk(ctx, h.session.src, r, h.session.id)
}

// GetAllLoaded returns the resident items of the source, ordered by index.
// Gaps between resident ranges are skipped, so the result isn't a dense sequence.
func (h *Handle) GetAllLoaded() []source.Item {
	entries := h.loader.cache.Collect(h.session.src.ID(), true)
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key.Range.Start < entries[j].Key.Range.Start
	})

	var res []source.Item
	cursor := 0
	for _, e := range entries {
		start := e.Key.Range.Start
		for i, item := range e.Items {
			// chunks fetched concurrently may overlap
			if start+i >= cursor {
				res = append(res, item)
			}
		}
		cursor = max(cursor, start+len(e.Items))
	}
	return res
}

// LoadedRanges returns the resident ranges of the source.
func (h *Handle) LoadedRanges() rng.Ranges {
	return h.loader.LoadedRanges(h.session.src.ID())
}

// UpdateViewport loads the missing ranges around the viewport.
func (h *Handle) UpdateViewport(ctx context.Context, viewport rng.Range) error {
	return h.loader.UpdateViewport(ctx, viewport, h)
}

// GetStats returns the session statistics.
func (h *Handle) GetStats() Stats {
	total := h.session.meta.TotalCount
	loaded := h.loader.Covered(h.session.src.ID(), rng.New(0, total))
	progress := 1.0
	if total > 0 {
		progress = float64(loaded) / float64(total)
	}
	return Stats{
		TotalItems:     total,
		LoadedItems:    loaded,
		LoadProgress:   progress,
		MemoryUsage:    h.loader.MemoryUsage(),
		MemoryBudget:   h.loader.cache.MaxSize(),
		ActiveRequests: h.loader.ActiveRequests(),

		PendingPrefetches: h.loader.PendingPrefetches(),
		FetchingItems:     h.loader.FetchingItems(),
	}
}

// SetupVirtualScroll creates a scroller seeded with the resident items.
// Viewport changes of the scroller drive UpdateViewport, loaded chunks and stream updates patch the scroller.
func (h *Handle) SetupVirtualScroll(container vscroll.Container, opts vscroll.Options) (*vscroll.Scroller, error) {
	s := h.session
	if !s.opts.EnableVirtualization {
		return nil, ErrVirtualizationDisabled
	}
	if s.isDisposed() {
		return nil, ErrDisposed
	}

	opts.TotalItems = s.meta.TotalCount
	if opts.Retain == 0 {
		opts.Retain = s.opts.ChunkSize * (s.opts.LoadAheadFactor + 1)
	}
	opts.Seed = h.patches(rng.New(0, s.meta.TotalCount))

	var sc *vscroll.Scroller
	onChange := opts.OnViewportChange
	opts.OnViewportChange = func(viewport rng.Range) {
		if onChange != nil {
			onChange(viewport)
		}
		err := h.UpdateViewport(h.loader.ctx, viewport)
		if err != nil && !errors.Is(err, ErrDisposed) {
			h.loader.log.Warn("Viewport update failed", "id", s.id, "viewport", viewport, "err", err)
		}
		// chunks resident before the update, or loaded by other sessions, aren't announced
		for _, p := range h.patches(RequiredRange(viewport, s.opts.ChunkSize, s.meta.TotalCount)) {
			sc.UpdateData(p.Range, p.Items)
		}
	}

	sc, err := vscroll.New(container, opts)
	if err != nil {
		return nil, err
	}

	chunks := make(chan events.ChunkLoaded, 16)
	updates := make(chan events.StreamUpdate, 16)
	chunksSub := h.loader.SubscribeChunkLoaded(chunks)
	updatesSub := h.loader.SubscribeStreamUpdate(updates)
	quit := make(chan struct{})
	go func() {
		defer chunksSub.Unsubscribe()
		defer updatesSub.Unsubscribe()
		for {
			select {
			case ev := <-chunks:
				if ev.SourceID == s.src.ID() {
					sc.UpdateData(ev.Range, ev.Items)
				}
			case ev := <-updates:
				if ev.LoadID == s.id {
					sc.UpdateData(ev.Range, ev.Items)
				}
			case <-chunksSub.Err():
				return
			case <-updatesSub.Err():
				return
			case <-quit:
				return
			}
		}
	}()

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		close(quit)
		sc.Close()
		return nil, ErrDisposed
	}
	s.scrolls = append(s.scrolls, sc)
	s.disposal = append(s.disposal, func() {
		close(quit)
	})
	s.mu.Unlock()
	return sc, nil
}

// patches returns the cached chunks of the source intersecting r. The chunks are stamped as accessed.
func (h *Handle) patches(r rng.Range) []vscroll.Patch {
	var res []vscroll.Patch
	for _, e := range h.loader.cache.Collect(h.session.src.ID(), true) {
		if chunkRange(e).Intersects(r) {
			res = append(res, vscroll.Patch{Range: e.Key.Range, Items: e.Items})
		}
	}
	return res
}

func chunkRange(e *chunkcache.Entry) rng.Range {
	return rng.New(e.Key.Range.Start, e.Key.Range.Start+len(e.Items))
}

// Dispose closes the session stream, cancels its prefetches and detaches its scrollers.
// Cached chunks are kept, as they are shared with other sessions.
func (h *Handle) Dispose() {
	h.loader.dispose(h.session)
}
