package vscroll

import (
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"

	"github.com/Fantom-foundation/rangeview/inter/rng"
	"github.com/Fantom-foundation/rangeview/inter/source"
)

const (
	DefaultBuffer   = 5
	DefaultDebounce = 50 * time.Millisecond
)

type (
	// Patch is a window of items which became resident.
	Patch struct {
		Range rng.Range
		Items []source.Item
	}

	// Options configure a Scroller.
	Options struct {
		TotalItems int
		ItemHeight int           // Row height, in pixels
		Buffer     int           // Extra rows rendered on each side of the visible span
		Debounce   time.Duration // Delay of viewport change notifications
		Retain     int           // Rows kept resident on each side of the window, 0 keeps everything

		RenderItem        func(item source.Item, index int) interface{}
		RenderPlaceholder func(index int) interface{}
		OnViewportChange  func(viewport rng.Range)

		Seed []Patch
	}
)

// Scroller renders only the rows around the visible span of a container.
// Items are indexed by their absolute dataset index, so patches may arrive in any order.
type Scroller struct {
	container Container
	opts      Options

	mu       sync.Mutex
	items    map[int]source.Item
	resident *roaring.Bitmap
	visible  rng.Range
	window   rng.Range
	renders  int
	debounce *time.Timer
	closed   bool

	log log.Logger
}

// New creates a scroller and renders the seed data.
func New(container Container, opts Options) (*Scroller, error) {
	if container == nil {
		return nil, errors.New("container is missing")
	}
	if opts.ItemHeight <= 0 {
		return nil, errors.Errorf("item height must be positive, got %d", opts.ItemHeight)
	}
	if opts.TotalItems < 0 {
		return nil, errors.Errorf("total items must be non-negative, got %d", opts.TotalItems)
	}
	if opts.Buffer == 0 {
		opts.Buffer = DefaultBuffer
	}
	if opts.Debounce == 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.RenderItem == nil {
		opts.RenderItem = func(item source.Item, _ int) interface{} {
			return item
		}
	}
	if opts.RenderPlaceholder == nil {
		opts.RenderPlaceholder = func(int) interface{} {
			return nil
		}
	}

	s := &Scroller{
		container: container,
		opts:      opts,
		items:     make(map[int]source.Item),
		resident:  roaring.New(),
		log:       log.New("module", "vscroll"),
	}
	for _, p := range opts.Seed {
		s.patch(p.Range, p.Items)
	}
	s.opts.Seed = nil

	s.mu.Lock()
	defer s.mu.Unlock()
	container.SetContentHeight(opts.TotalItems * opts.ItemHeight)
	s.render()
	return s, nil
}

// OnScroll must be called on every scroll event of the container.
// Resident rows are rendered at once, the viewport change is reported after the debounce delay.
func (s *Scroller) OnScroll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.render()
	if s.debounce == nil {
		s.debounce = time.AfterFunc(s.opts.Debounce, s.notifyViewport)
	} else {
		s.debounce.Reset(s.opts.Debounce)
	}
}

func (s *Scroller) notifyViewport() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	visible := s.visible
	s.mu.Unlock()

	if s.opts.OnViewportChange != nil {
		s.opts.OnViewportChange(visible)
	}
}

// UpdateData patches resident items. The rows are re-rendered only if the patch intersects the window.
func (s *Scroller) UpdateData(r rng.Range, items []source.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	r = s.patch(r, items)
	if r.Intersects(s.window) {
		s.render()
	}
}

func (s *Scroller) patch(r rng.Range, items []source.Item) rng.Range {
	offset := r.Start
	r = rng.New(r.Start, r.Start+min(r.Len(), len(items))).Clamp(0, s.opts.TotalItems)
	if r.Empty() {
		return r
	}
	for i := r.Start; i < r.End; i++ {
		s.items[i] = items[i-offset]
	}
	s.resident.AddRange(uint64(r.Start), uint64(r.End))
	return r
}

// render draws the window around the visible span. Must be called under the lock.
func (s *Scroller) render() {
	top := max(s.container.ScrollTop(), 0)
	height := max(s.container.Height(), 0)
	h := s.opts.ItemHeight

	s.visible = rng.New(top/h, (top+height+h-1)/h).Clamp(0, s.opts.TotalItems)
	s.window = s.visible.Expand(s.opts.Buffer).Clamp(0, s.opts.TotalItems)
	s.forgetDistant()

	rows := make([]Row, 0, s.window.Len())
	for i := s.window.Start; i < s.window.End; i++ {
		row := Row{
			Index: i,
			Top:   i * h,
		}
		if s.resident.Contains(uint32(i)) {
			row.View = s.opts.RenderItem(s.items[i], i)
		} else {
			row.Placeholder = true
			row.View = s.opts.RenderPlaceholder(i)
		}
		rows = append(rows, row)
	}
	s.renders++
	s.container.Render(rows)
}

// forgetDistant drops resident items too far from the window.
func (s *Scroller) forgetDistant() {
	if s.opts.Retain <= 0 {
		return
	}
	keep := s.window.Expand(s.opts.Retain).Clamp(0, s.opts.TotalItems)
	distant := roaring.New()
	distant.AddRange(0, uint64(keep.Start))
	distant.AddRange(uint64(keep.End), uint64(s.opts.TotalItems))
	distant.And(s.resident)
	if distant.IsEmpty() {
		return
	}
	it := distant.Iterator()
	for it.HasNext() {
		delete(s.items, int(it.Next()))
	}
	s.resident.AndNot(distant)
	s.log.Trace("Forgot distant rows", "count", distant.GetCardinality(), "keep", keep)
}

// Visible returns the strictly visible rows.
func (s *Scroller) Visible() rng.Range {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

// Window returns the rendered rows, including the buffer.
func (s *Scroller) Window() rng.Range {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window
}

// Resident is true if the item is held by the scroller.
func (s *Scroller) Resident(i int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return i >= 0 && s.resident.Contains(uint32(i))
}

// ResidentCount returns the number of held items.
func (s *Scroller) ResidentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(s.resident.GetCardinality())
}

// Renders returns the number of performed renders.
func (s *Scroller) Renders() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renders
}

// Close stops the pending notification and drops the resident items.
func (s *Scroller) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.debounce != nil {
		s.debounce.Stop()
	}
	s.items = nil
	s.resident.Clear()
}
