package events

import (
	"github.com/Fantom-foundation/rangeview/inter/rng"
	"github.com/Fantom-foundation/rangeview/inter/source"
)

type (
	// Progress is sent after every successful chunk insert.
	Progress struct {
		LoadID uint64
		Loaded int
		Total  int
	}

	// Error reports a failed source stream. The session survives it.
	// Failed prefetches never reach it, their fetch errors arrive as LoadError.
	Error struct {
		LoadID uint64
		Err    error
	}

	// LoadError reports a failed chunk fetch.
	LoadError struct {
		LoadID uint64
		Range  rng.Range
		Err    error
	}

	// StreamUpdate is sent when buffered stream items are flushed into the cache.
	StreamUpdate struct {
		LoadID uint64
		Range  rng.Range
		Items  []source.Item
	}

	// Evict is sent for every chunk removed by the memory budget.
	Evict struct {
		Key  string
		Size uint64
	}

	// ChunkLoaded is sent when a fetched chunk becomes resident.
	ChunkLoaded struct {
		LoadID   uint64
		SourceID string
		Range    rng.Range
		Items    []source.Item
	}
)
