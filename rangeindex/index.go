package rangeindex

import (
	rbt "github.com/emirpasic/gods/trees/redblacktree"
	"github.com/emirpasic/gods/utils"

	"github.com/Fantom-foundation/rangeview/inter/rng"
)

// Index records which index ranges of every source are resident.
// Recorded ranges are merged on insert, so per source they are always disjoint and non-adjacent.
// Index is not thread safe.
type Index struct {
	sources map[string]*rbt.Tree // source ID -> start -> end
}

// New creates an empty Index.
func New() *Index {
	return &Index{
		sources: make(map[string]*rbt.Tree),
	}
}

func (idx *Index) tree(src string, create bool) *rbt.Tree {
	t, ok := idx.sources[src]
	if !ok && create {
		t = rbt.NewWith(utils.IntComparator)
		idx.sources[src] = t
	}
	return t
}

// Add records r as resident, merging it with overlapping and adjacent ranges.
func (idx *Index) Add(src string, r rng.Range) {
	if r.Empty() {
		return
	}
	t := idx.tree(src, true)

	start, end := r.Start, r.End
	if floor, ok := t.Floor(start); ok {
		if floorEnd := floor.Value.(int); floorEnd >= start {
			start = floor.Key.(int)
			end = max(end, floorEnd)
			t.Remove(floor.Key)
		}
	}
	for {
		next, ok := t.Ceiling(start)
		if !ok || next.Key.(int) > end {
			break
		}
		end = max(end, next.Value.(int))
		t.Remove(next.Key)
	}
	t.Put(start, end)
}

// Remove forgets r, splitting recorded ranges which cover it partially.
func (idx *Index) Remove(src string, r rng.Range) {
	if r.Empty() {
		return
	}
	t := idx.tree(src, false)
	if t == nil {
		return
	}

	affected := make(rng.Ranges, 0, 2)
	if floor, ok := t.Floor(r.Start); ok && floor.Value.(int) > r.Start {
		affected = append(affected, rng.New(floor.Key.(int), floor.Value.(int)))
	}
	cursor := r.Start
	for {
		next, ok := t.Ceiling(cursor)
		if !ok || next.Key.(int) >= r.End {
			break
		}
		if len(affected) == 0 || affected[len(affected)-1].Start != next.Key.(int) {
			affected = append(affected, rng.New(next.Key.(int), next.Value.(int)))
		}
		cursor = next.Key.(int) + 1
	}

	for _, a := range affected {
		t.Remove(a.Start)
		if a.Start < r.Start {
			t.Put(a.Start, r.Start)
		}
		if a.End > r.End {
			t.Put(r.End, a.End)
		}
	}
	if t.Empty() {
		delete(idx.sources, src)
	}
}

// Ranges returns the recorded ranges of a source, ascending.
func (idx *Index) Ranges(src string) rng.Ranges {
	t := idx.tree(src, false)
	if t == nil {
		return nil
	}
	res := make(rng.Ranges, 0, t.Size())
	it := t.Iterator()
	for it.Next() {
		res = append(res, rng.New(it.Key().(int), it.Value().(int)))
	}
	return res
}

// Missing returns the gaps of required which aren't recorded, ascending.
func (idx *Index) Missing(src string, required rng.Range) rng.Ranges {
	return Missing(idx.Ranges(src), required)
}

// Missing walks ranges sorted by Start and returns the parts of required they don't cover.
// The ranges may overlap.
func Missing(ranges rng.Ranges, required rng.Range) rng.Ranges {
	var gaps rng.Ranges
	if required.Empty() {
		return gaps
	}
	cursor := required.Start
	for _, r := range ranges {
		if r.Start >= required.End {
			break
		}
		if r.Start > cursor {
			gaps = append(gaps, rng.New(cursor, min(r.Start, required.End)))
		}
		cursor = max(cursor, r.End)
	}
	if cursor < required.End {
		gaps = append(gaps, rng.New(cursor, required.End))
	}
	return gaps
}

// Covered counts the recorded indices of a source inside within.
func (idx *Index) Covered(src string, within rng.Range) int {
	covered := 0
	for _, r := range idx.Ranges(src) {
		covered += r.Intersect(within).Len()
	}
	return covered
}

// Has is true if r is entirely recorded.
func (idx *Index) Has(src string, r rng.Range) bool {
	if r.Empty() {
		return true
	}
	t := idx.tree(src, false)
	if t == nil {
		return false
	}
	floor, ok := t.Floor(r.Start)
	return ok && floor.Value.(int) >= r.End
}

// Drop forgets all the ranges of a source.
func (idx *Index) Drop(src string) {
	delete(idx.sources, src)
}

// Purge forgets everything.
func (idx *Index) Purge() {
	idx.sources = make(map[string]*rbt.Tree)
}
