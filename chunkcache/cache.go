package chunkcache

import (
	"container/list"
	"errors"
	"sync"
	"time"

	"github.com/Fantom-foundation/rangeview/inter/source"
)

// DefaultLowWatermark is the share of the budget an eviction pass shrinks the cache to.
const DefaultLowWatermark = 0.8

// Entry is a cached chunk.
type Entry struct {
	Key        Key
	Items      []source.Item
	Size       uint64
	LastAccess time.Time
}

// Cache is a thread-safe LRU of chunks bounded by their total estimated size.
// Eviction starts once the size exceeds the budget and stops at the low watermark.
// The most recently used entry is never evicted by a size pass.
type Cache struct {
	maxSize uint64
	lowMark float64
	size    uint64

	evictList *list.List
	items     map[Key]*list.Element

	now func() time.Time

	lock sync.Mutex
}

// New creates a cache with the given memory budget in bytes.
func New(maxSize uint64) (*Cache, error) {
	return NewWithWatermark(maxSize, DefaultLowWatermark)
}

// NewWithWatermark creates a cache which evicts down to lowMark*maxSize.
func NewWithWatermark(maxSize uint64, lowMark float64) (*Cache, error) {
	if lowMark <= 0 || lowMark > 1 {
		return nil, errors.New("low watermark must be in (0, 1]")
	}
	return &Cache{
		maxSize:   maxSize,
		lowMark:   lowMark,
		evictList: list.New(),
		items:     make(map[Key]*list.Element),
		now:       time.Now,
	}, nil
}

// SetClock overrides the time source of access stamps.
func (c *Cache) SetClock(now func() time.Time) {
	c.lock.Lock()
	c.now = now
	c.lock.Unlock()
}

// Add inserts or replaces a chunk and returns the entries evicted to fit the budget.
func (c *Cache) Add(key Key, items []source.Item, size uint64) (evicted []*Entry) {
	c.lock.Lock()
	defer c.lock.Unlock()

	now := c.now()
	if el, ok := c.items[key]; ok {
		c.evictList.MoveToFront(el)
		existing := el.Value.(*Entry)
		c.size -= existing.Size
		c.size += size
		existing.Items = items
		existing.Size = size
		existing.LastAccess = now
		return c.normalize()
	}

	e := &Entry{
		Key:        key,
		Items:      items,
		Size:       size,
		LastAccess: now,
	}
	c.items[key] = c.evictList.PushFront(e)
	c.size += size

	return c.normalize()
}

// Get looks up a chunk and stamps its access time.
func (c *Cache) Get(key Key) (*Entry, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.touch(el)
	return el.Value.(*Entry), true
}

// Peek looks up a chunk without updating its recent-ness.
func (c *Cache) Peek(key Key) (*Entry, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	return el.Value.(*Entry), true
}

// Contains checks if a key is cached, without updating its recent-ness.
func (c *Cache) Contains(key Key) bool {
	c.lock.Lock()
	_, ok := c.items[key]
	c.lock.Unlock()
	return ok
}

// Collect returns all the chunks of a source, ordered from oldest to newest access.
// If touch is set, every returned chunk is stamped as accessed.
func (c *Cache) Collect(src string, touch bool) []*Entry {
	c.lock.Lock()
	defer c.lock.Unlock()

	var res []*Entry
	var hits []*list.Element
	for el := c.evictList.Back(); el != nil; el = el.Prev() {
		e := el.Value.(*Entry)
		if e.Key.Source != src {
			continue
		}
		res = append(res, e)
		hits = append(hits, el)
	}
	if touch {
		for _, el := range hits {
			c.touch(el)
		}
	}
	return res
}

// Remove drops a chunk, returning it if it was cached.
func (c *Cache) Remove(key Key) (*Entry, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.removeElement(el)
	return el.Value.(*Entry), true
}

// RemoveSource drops all the chunks of a source.
func (c *Cache) RemoveSource(src string) (removed []*Entry) {
	c.lock.Lock()
	defer c.lock.Unlock()

	for el := c.evictList.Back(); el != nil; {
		prev := el.Prev()
		if e := el.Value.(*Entry); e.Key.Source == src {
			c.removeElement(el)
			removed = append(removed, e)
		}
		el = prev
	}
	return removed
}

// Len returns the number of cached chunks.
func (c *Cache) Len() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.evictList.Len()
}

// Size returns the total estimated size of cached chunks.
func (c *Cache) Size() uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.size
}

// MaxSize returns the memory budget.
func (c *Cache) MaxSize() uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.maxSize
}

// Purge is used to completely clear the cache.
func (c *Cache) Purge() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.items = make(map[Key]*list.Element)
	c.evictList.Init()
	c.size = 0
}

func (c *Cache) touch(el *list.Element) {
	c.evictList.MoveToFront(el)
	el.Value.(*Entry).LastAccess = c.now()
}

// normalize runs an eviction pass if the budget is exceeded.
func (c *Cache) normalize() (evicted []*Entry) {
	if c.size <= c.maxSize {
		return nil
	}
	target := uint64(float64(c.maxSize) * c.lowMark)
	for c.size > target && c.evictList.Len() > 1 {
		el := c.evictList.Back()
		c.removeElement(el)
		evicted = append(evicted, el.Value.(*Entry))
	}
	return evicted
}

func (c *Cache) removeElement(el *list.Element) {
	c.evictList.Remove(el)
	e := el.Value.(*Entry)
	delete(c.items, e.Key)
	c.size -= e.Size
}
