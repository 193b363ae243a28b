package rng

import (
	"sort"
	"strings"
)

// Ranges is a list of ranges.
type Ranges []Range

// Sort orders the ranges by Start, then by End.
func (rr Ranges) Sort() {
	sort.Slice(rr, func(i, j int) bool {
		if rr[i].Start != rr[j].Start {
			return rr[i].Start < rr[j].Start
		}
		return rr[i].End < rr[j].End
	})
}

// Total returns the sum of lengths, counting overlaps twice.
func (rr Ranges) Total() int {
	total := 0
	for _, r := range rr {
		total += r.Len()
	}
	return total
}

// String returns human readable representation.
func (rr Ranges) String() string {
	ss := make([]string, len(rr))
	for i, r := range rr {
		ss[i] = r.String()
	}
	return strings.Join(ss, " ")
}
