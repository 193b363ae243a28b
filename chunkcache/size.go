package chunkcache

import (
	"github.com/ohler55/ojg/oj"

	"github.com/Fantom-foundation/rangeview/inter/source"
)

// SizeFunc estimates memory held by a chunk payload.
type SizeFunc func(items []source.Item) uint64

// EstimateSize approximates payload memory as its JSON length in UTF-16 code units.
// It's an estimation, not a measurement.
func EstimateSize(items []source.Item) uint64 {
	if len(items) == 0 {
		return 0
	}
	return uint64(len(oj.JSON(items))) * 2
}
