package rangeloader

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/Fantom-foundation/rangeview/chunkcache"
	"github.com/Fantom-foundation/rangeview/inflight"
	"github.com/Fantom-foundation/rangeview/inter/events"
	"github.com/Fantom-foundation/rangeview/inter/rng"
	"github.com/Fantom-foundation/rangeview/inter/source"
	"github.com/Fantom-foundation/rangeview/perfmon"
	"github.com/Fantom-foundation/rangeview/rangeindex"
	"github.com/Fantom-foundation/rangeview/utils/datasemaphore"
	"github.com/Fantom-foundation/rangeview/utils/workers"
)

/*
 * Loader is the owner of the chunk arena: the chunk cache, the interval index and the in-flight table
 * are shared by all the sessions, so is the memory budget.
 * Only one Loader per application is expected, it's passed around explicitly.
 */

// Loader loads ranges of ordered datasets progressively, keeping memory bounded.
type Loader struct {
	cfg Config

	cache    *chunkcache.Cache
	index    *rangeindex.Index // guarded by mu
	inflight *inflight.Table
	metadata *lru.Cache // source ID -> source.Metadata

	admission   *datasemaphore.DataSemaphore
	prefetchers *workers.Workers
	perf        *perfmon.Monitor

	mu       sync.Mutex
	sessions map[uint64]*session
	nextID   uint64
	closed   bool

	feeds struct {
		progress     event.Feed
		errs         event.Feed
		loadErrs     event.Feed
		streamUpdate event.Feed
		evict        event.Feed
		chunkLoaded  event.Feed
	}
	scope event.SubscriptionScope

	ctx    context.Context
	cancel context.CancelFunc

	log log.Logger
}

// New creates a loader. It panics on invalid config.
func New(cfg Config) *Loader {
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	cache, err := chunkcache.NewWithWatermark(cfg.MaxMemoryUsage, cfg.LowWatermark)
	if err != nil {
		panic(err)
	}
	metadata, _ := lru.New(cfg.MetadataCacheSize)
	perf, err := perfmon.New(cfg.PerfLogSize)
	if err != nil {
		panic(err)
	}

	l := &Loader{
		cfg:         cfg,
		cache:       cache,
		index:       rangeindex.New(),
		metadata:    metadata,
		prefetchers: workers.New(cfg.MaxQueuedPrefetches),
		perf:        perf,
		sessions:    make(map[uint64]*session),
		log:         log.New("module", "rangeloader"),
	}
	l.ctx, l.cancel = context.WithCancel(context.Background())
	l.inflight = inflight.New(l.ctx)
	l.admission = datasemaphore.New(datasemaphore.Metric{
		Num:  cfg.MaxParallelFetches,
		Size: cfg.MaxFetchingItems,
	}, func(processing datasemaphore.Metric, releasing datasemaphore.Metric) {
		l.log.Warn("Fetch admission underflow", "processing", processing.Num, "releasing", releasing.Num)
	})
	l.prefetchers.Start(cfg.PrefetchWorkers)
	return l
}

// Close disposes all the sessions, aborts pending fetches and drops the cache.
func (l *Loader) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	sessions := make([]*session, 0, len(l.sessions))
	for _, s := range l.sessions {
		sessions = append(sessions, s)
	}
	l.mu.Unlock()

	for _, s := range sessions {
		l.dispose(s)
	}
	l.cancel()
	l.admission.Terminate()
	l.prefetchers.Stop()

	l.mu.Lock()
	l.cache.Purge()
	l.index.Purge()
	l.metadata.Purge()
	l.mu.Unlock()
	l.scope.Close()
}

// Load opens a session: fetches the source metadata, loads the initial range
// and subscribes to the source stream if it's supported.
func (l *Loader) Load(ctx context.Context, src source.Source, opts ...Option) (*Handle, error) {
	o := l.cfg.Load
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}

	meta, err := l.Metadata(ctx, src)
	if err != nil {
		return nil, err
	}

	s, err := l.openSession(src, meta, o)
	if err != nil {
		return nil, err
	}
	h := &Handle{
		loader:  l,
		session: s,
	}

	initial := rng.New(0, min(o.InitialLoadSize, meta.TotalCount))
	if !initial.Empty() {
		if _, err := l.LoadChunk(ctx, src, initial, s.id); err != nil {
			l.dispose(s)
			return nil, err
		}
	}

	if o.EnableStreaming && meta.SupportsStreaming {
		l.subscribeStream(s)
	}
	l.log.Debug("Session opened", "id", s.id, "source", src.ID(), "total", meta.TotalCount, "initial", initial)
	return h, nil
}

// Metadata returns the cached metadata of a source, fetching it on a miss.
func (l *Loader) Metadata(ctx context.Context, src source.Source) (source.Metadata, error) {
	if cached, ok := l.metadata.Get(src.ID()); ok {
		return cached.(source.Metadata), nil
	}
	meta, err := src.Metadata(ctx)
	if err != nil {
		return source.Metadata{}, &MetadataError{SourceID: src.ID(), Err: err}
	}
	if meta.TotalCount < 0 {
		return source.Metadata{}, &MetadataError{SourceID: src.ID(), Err: errors.Errorf("negative total count %d", meta.TotalCount)}
	}
	l.metadata.Add(src.ID(), meta)
	return meta, nil
}

// InvalidateMetadata makes the next Load of the source fetch its metadata again.
// The dataset may have changed, so resident chunks of the source are dropped too.
func (l *Loader) InvalidateMetadata(src source.Source) {
	l.metadata.Remove(src.ID())

	l.mu.Lock()
	removed := l.cache.RemoveSource(src.ID())
	l.index.Drop(src.ID())
	l.mu.Unlock()

	for _, e := range removed {
		l.feeds.evict.Send(events.Evict{Key: e.Key.String(), Size: e.Size})
	}
	if len(removed) != 0 {
		l.log.Debug("Source chunks dropped", "source", src.ID(), "chunks", len(removed), "usage", common.StorageSize(l.cache.Size()))
	}
}

// LoadChunk returns items of range r, which are taken from the cache, from an identical
// in-flight fetch, or fetched from the source.
func (l *Loader) LoadChunk(ctx context.Context, src source.Source, r rng.Range, loadID uint64) ([]source.Item, error) {
	if r.Start < 0 || r.End < r.Start {
		return nil, errors.Wrapf(ErrInvalidRange, "%s", r)
	}
	if r.Empty() {
		return nil, nil
	}
	if l.isClosed() {
		return nil, ErrClosed
	}

	key := chunkcache.KeyOf(src.ID(), r)
	if e, ok := l.cache.Get(key); ok {
		return e.Items, nil
	}
	if items, ok := l.assemble(key.Source, r); ok {
		return items, nil
	}

	items, _, err := l.inflight.Do(ctx, key.String(), func(fetchCtx context.Context) ([]source.Item, error) {
		return l.fetch(fetchCtx, src, key, loadID)
	})
	return items, err
}

func (l *Loader) fetch(ctx context.Context, src source.Source, key chunkcache.Key, loadID uint64) ([]source.Item, error) {
	// the chunk may have arrived while waiting for the in-flight slot
	if e, ok := l.cache.Get(key); ok {
		return e.Items, nil
	}

	r := key.Range
	weight := datasemaphore.Metric{Num: 1, Size: uint64(r.Len())}
	if err := l.admission.Acquire(ctx, weight); err != nil {
		return nil, &ChunkLoadError{LoadID: loadID, Range: r, Err: err}
	}
	start := time.Now()
	items, err := src.LoadRange(ctx, r.Start, r.End)
	l.admission.Release(weight)

	if err != nil {
		err = &ChunkLoadError{LoadID: loadID, Range: r, Err: err}
		if ctx.Err() == nil {
			l.feeds.loadErrs.Send(events.LoadError{LoadID: loadID, Range: r, Err: err})
		}
		return nil, err
	}
	if len(items) > r.Len() {
		items = items[:r.Len()]
	}

	size := l.insert(key, items)
	l.perf.Record(perfmon.Sample{
		Range:     r,
		Duration:  time.Since(start),
		Items:     len(items),
		Bytes:     size,
		Timestamp: time.Now(),
	})

	l.feeds.chunkLoaded.Send(events.ChunkLoaded{LoadID: loadID, SourceID: key.Source, Range: r, Items: items})
	if total, ok := l.totalOf(loadID, key.Source); ok {
		l.feeds.progress.Send(events.Progress{
			LoadID: loadID,
			Loaded: l.Covered(key.Source, rng.New(0, total)),
			Total:  total,
		})
	}
	return items, nil
}

// assemble gathers r from the resident chunks covering it.
func (l *Loader) assemble(srcID string, r rng.Range) ([]source.Item, bool) {
	l.mu.Lock()
	covered := l.index.Has(srcID, r)
	l.mu.Unlock()
	if !covered {
		return nil, false
	}

	res := make([]source.Item, r.Len())
	filled := make([]bool, r.Len())
	left := r.Len()
	var used []chunkcache.Key
	for _, e := range l.cache.Collect(srcID, false) {
		held := rng.New(e.Key.Range.Start, e.Key.Range.Start+len(e.Items))
		if !held.Intersects(r) {
			continue
		}
		used = append(used, e.Key)
		part := held.Intersect(r)
		for i := part.Start; i < part.End; i++ {
			if !filled[i-r.Start] {
				filled[i-r.Start] = true
				res[i-r.Start] = e.Items[i-held.Start]
				left--
			}
		}
	}
	// a covering chunk may have been evicted meanwhile
	if left != 0 {
		return nil, false
	}
	for _, key := range used {
		l.cache.Get(key)
	}
	return res, true
}

// insert stores a chunk into the cache and the index, evicting older chunks if the budget is exceeded.
func (l *Loader) insert(key chunkcache.Key, items []source.Item) uint64 {
	size := l.cfg.SizeOf(items)
	resident := rng.New(key.Range.Start, key.Range.Start+len(items))

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return size
	}
	evicted := l.cache.Add(key, items, size)
	l.index.Add(key.Source, resident)
	for _, e := range evicted {
		l.unindex(e)
	}
	l.mu.Unlock()

	for _, e := range evicted {
		l.log.Debug("Chunk evicted", "key", e.Key, "size", common.StorageSize(e.Size), "lastAccess", e.LastAccess)
		l.feeds.evict.Send(events.Evict{Key: e.Key.String(), Size: e.Size})
	}
	if len(evicted) != 0 {
		l.log.Debug("Memory budget enforced", "evicted", len(evicted), "usage", common.StorageSize(l.cache.Size()), "budget", common.StorageSize(l.cache.MaxSize()))
	}
	return size
}

// unindex forgets the range of an evicted chunk, except for parts still held by other chunks.
func (l *Loader) unindex(evicted *chunkcache.Entry) {
	r := rng.New(evicted.Key.Range.Start, evicted.Key.Range.Start+len(evicted.Items))
	l.index.Remove(evicted.Key.Source, r)
	for _, e := range l.cache.Collect(evicted.Key.Source, false) {
		held := rng.New(e.Key.Range.Start, e.Key.Range.Start+len(e.Items))
		if held.Intersects(r) {
			l.index.Add(e.Key.Source, held.Intersect(r))
		}
	}
}

// Covered counts the resident items of a source within a range.
func (l *Loader) Covered(srcID string, within rng.Range) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.index.Covered(srcID, within)
}

// LoadedRanges returns the resident ranges of a source.
func (l *Loader) LoadedRanges(srcID string) rng.Ranges {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.index.Ranges(srcID)
}

// MissingRanges returns the parts of required which aren't resident.
func (l *Loader) MissingRanges(srcID string, required rng.Range) rng.Ranges {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.index.Missing(srcID, required)
}

// MemoryUsage returns the estimated size of all the cached chunks.
func (l *Loader) MemoryUsage() uint64 {
	return l.cache.Size()
}

// ActiveRequests returns the number of distinct chunks being fetched.
func (l *Loader) ActiveRequests() int {
	return l.inflight.Len()
}

// PendingPrefetches returns the number of queued and running prefetches.
func (l *Loader) PendingPrefetches() int {
	return l.prefetchers.TasksCount() + l.prefetchers.Running()
}

// FetchingItems returns the number of items admitted for fetching.
func (l *Loader) FetchingItems() uint64 {
	return l.admission.Processing().Size
}

// Performance returns the load statistics.
func (l *Loader) Performance() perfmon.Stats {
	return l.perf.Stats()
}

func (l *Loader) totalOf(loadID uint64, srcID string) (int, bool) {
	if s := l.session(loadID); s != nil && s.src.ID() == srcID {
		return s.meta.TotalCount, true
	}
	if cached, ok := l.metadata.Peek(srcID); ok {
		return cached.(source.Metadata).TotalCount, true
	}
	return 0, false
}

func (l *Loader) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// SubscribeProgress subscribes to chunk load progress.
func (l *Loader) SubscribeProgress(ch chan<- events.Progress) event.Subscription {
	return l.scope.Track(l.feeds.progress.Subscribe(ch))
}

// SubscribeError subscribes to stream failures.
func (l *Loader) SubscribeError(ch chan<- events.Error) event.Subscription {
	return l.scope.Track(l.feeds.errs.Subscribe(ch))
}

// SubscribeLoadError subscribes to failed chunk fetches.
func (l *Loader) SubscribeLoadError(ch chan<- events.LoadError) event.Subscription {
	return l.scope.Track(l.feeds.loadErrs.Subscribe(ch))
}

// SubscribeStreamUpdate subscribes to flushed stream buffers.
func (l *Loader) SubscribeStreamUpdate(ch chan<- events.StreamUpdate) event.Subscription {
	return l.scope.Track(l.feeds.streamUpdate.Subscribe(ch))
}

// SubscribeEvict subscribes to evicted chunks.
func (l *Loader) SubscribeEvict(ch chan<- events.Evict) event.Subscription {
	return l.scope.Track(l.feeds.evict.Subscribe(ch))
}

// SubscribeChunkLoaded subscribes to fetched chunks.
func (l *Loader) SubscribeChunkLoaded(ch chan<- events.ChunkLoaded) event.Subscription {
	return l.scope.Track(l.feeds.chunkLoaded.Subscribe(ch))
}
