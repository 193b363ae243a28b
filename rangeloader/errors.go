package rangeloader

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/Fantom-foundation/rangeview/inter/rng"
)

var (
	ErrMetadata               = errors.New("metadata fetch failed")
	ErrChunkLoad              = errors.New("chunk load failed")
	ErrStream                 = errors.New("stream failed")
	ErrInvalidRange           = errors.New("invalid range")
	ErrDisposed               = errors.New("handle disposed")
	ErrClosed                 = errors.New("loader closed")
	ErrVirtualizationDisabled = errors.New("virtualization is disabled")
)

// MetadataError is fatal to Load. It isn't retried by the loader.
type MetadataError struct {
	SourceID string
	Err      error
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("%s: source %s: %v", ErrMetadata, e.SourceID, e.Err)
}

func (e *MetadataError) Unwrap() error { return e.Err }

func (e *MetadataError) Cause() error { return e.Err }

func (e *MetadataError) Is(target error) bool { return target == ErrMetadata }

// ChunkLoadError is returned by a failed chunk fetch. A later call may retry it.
type ChunkLoadError struct {
	LoadID uint64
	Range  rng.Range
	Err    error
}

func (e *ChunkLoadError) Error() string {
	return fmt.Sprintf("%s: load %d range %s: %v", ErrChunkLoad, e.LoadID, e.Range, e.Err)
}

func (e *ChunkLoadError) Unwrap() error { return e.Err }

func (e *ChunkLoadError) Cause() error { return e.Err }

func (e *ChunkLoadError) Is(target error) bool { return target == ErrChunkLoad }
