package source

import (
	"context"
)

type (
	// Item is a single dataset element. Its shape is owned by the Source.
	Item interface{}

	// Metadata describes the whole dataset behind a Source.
	Metadata struct {
		TotalCount        int
		SupportsStreaming bool
	}

	// Source is an ordered dataset which can be fetched by index ranges.
	Source interface {
		// ID is the source identity. Two sources with equal IDs must serve equal data.
		ID() string
		// Metadata fetches the dataset description.
		Metadata(ctx context.Context) (Metadata, error)
		// LoadRange returns items [start, end) in order.
		// It must be idempotent and deterministic for the same range.
		LoadRange(ctx context.Context, start, end int) ([]Item, error)
	}

	// Streamer is implemented by sources which push new items.
	Streamer interface {
		Stream(ctx context.Context, handler StreamHandler) (StreamHandle, error)
	}

	// StreamHandler receives pushed batches. Callbacks are never called concurrently
	// for the same stream.
	StreamHandler struct {
		OnData  func(items []Item)
		OnError func(err error)
		OnEnd   func()
	}

	// StreamHandle controls an opened stream.
	StreamHandle interface {
		Close() error
	}
)
