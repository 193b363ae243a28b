package datasemaphore

import (
	"context"
	"errors"
	"sync"
)

var ErrTerminated = errors.New("semaphore terminated")

// Metric is an amount of work: number of requests and their total size.
type Metric struct {
	Num  int
	Size uint64
}

// DataSemaphore limits the amount of work being processed at once.
// A weight larger than the limit is admitted only when nothing else is being processed.
type DataSemaphore struct {
	processing    Metric
	maxProcessing Metric
	terminated    bool

	mu       sync.Mutex
	released chan struct{} // closed on every release

	warning func(processing Metric, releasing Metric)
}

func New(maxProcessing Metric, warning func(processing Metric, releasing Metric)) *DataSemaphore {
	return &DataSemaphore{
		maxProcessing: maxProcessing,
		warning:       warning,
		released:      make(chan struct{}),
	}
}

// Acquire waits until the weight is admitted or ctx is done.
func (s *DataSemaphore) Acquire(ctx context.Context, weight Metric) error {
	for {
		s.mu.Lock()
		if s.terminated {
			s.mu.Unlock()
			return ErrTerminated
		}
		if s.tryAcquire(weight) {
			s.mu.Unlock()
			return nil
		}
		wait := s.released
		s.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *DataSemaphore) tryAcquire(metric Metric) bool {
	tmp := s.processing
	tmp.Num += metric.Num
	tmp.Size += metric.Size
	if tmp.Num > s.maxProcessing.Num || tmp.Size > s.maxProcessing.Size {
		if s.processing != (Metric{}) {
			return false
		}
	}
	s.processing = tmp
	return true
}

// Release returns the weight, waking up the waiters.
func (s *DataSemaphore) Release(weight Metric) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.processing.Num < weight.Num || s.processing.Size < weight.Size {
		if s.warning != nil {
			s.warning(s.processing, weight)
		}
		s.processing = Metric{}
	} else {
		s.processing.Num -= weight.Num
		s.processing.Size -= weight.Size
	}
	s.broadcast()
}

// Terminate rejects all the current and future waiters.
func (s *DataSemaphore) Terminate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terminated = true
	s.broadcast()
}

func (s *DataSemaphore) broadcast() {
	close(s.released)
	s.released = make(chan struct{})
}

// Processing returns the admitted weight.
func (s *DataSemaphore) Processing() Metric {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processing
}
