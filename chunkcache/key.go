package chunkcache

import (
	"github.com/Fantom-foundation/rangeview/inter/rng"
)

// Key identifies a chunk: the same range of the same source always yields the same key.
type Key struct {
	Source string
	Range  rng.Range
}

// KeyOf builds the chunk key.
func KeyOf(src string, r rng.Range) Key {
	return Key{
		Source: src,
		Range:  r,
	}
}

// String returns human readable representation.
func (k Key) String() string {
	return k.Source + k.Range.String()
}
