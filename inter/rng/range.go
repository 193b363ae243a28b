package rng

import (
	"fmt"
)

// Range is a half-open interval [Start, End) of dataset indices.
type Range struct {
	Start int
	End   int
}

// New returns the range [start, end).
func New(start, end int) Range {
	return Range{Start: start, End: end}
}

// Len returns the number of indices in the range.
func (r Range) Len() int {
	if r.End <= r.Start {
		return 0
	}
	return r.End - r.Start
}

// Empty is true if the range holds no index.
func (r Range) Empty() bool {
	return r.End <= r.Start
}

// Valid checks the range is well-formed within [0, total).
func (r Range) Valid(total int) bool {
	return r.Start >= 0 && r.Start <= r.End && r.End <= total
}

// Contains is true if i is inside the range.
func (r Range) Contains(i int) bool {
	return i >= r.Start && i < r.End
}

// Covers is true if b lies entirely inside r.
func (r Range) Covers(b Range) bool {
	return b.Start >= r.Start && b.End <= r.End
}

// Intersects is true if the ranges share at least one index.
func (r Range) Intersects(b Range) bool {
	return r.Start < b.End && b.Start < r.End
}

// Intersect returns the common part of the ranges, which may be empty.
func (r Range) Intersect(b Range) Range {
	res := Range{Start: max(r.Start, b.Start), End: min(r.End, b.End)}
	if res.End < res.Start {
		res.End = res.Start
	}
	return res
}

// Clamp limits the range to [lo, hi).
func (r Range) Clamp(lo, hi int) Range {
	res := Range{Start: r.Start, End: r.End}
	if res.Start < lo {
		res.Start = lo
	}
	if res.End > hi {
		res.End = hi
	}
	if res.End < res.Start {
		res.End = res.Start
	}
	return res
}

// Expand grows the range by n indices on each side.
func (r Range) Expand(n int) Range {
	return Range{Start: r.Start - n, End: r.End + n}
}

// String returns human readable representation.
func (r Range) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End)
}
