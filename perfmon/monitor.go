package perfmon

import (
	"sync"
	"time"

	"github.com/Fantom-foundation/rangeview/inter/rng"
	"github.com/Fantom-foundation/rangeview/utils/circularbuff"
)

// DefaultCapacity is the number of samples retained by default.
const DefaultCapacity = 100

type (
	// Sample describes one completed load.
	Sample struct {
		Range     rng.Range
		Duration  time.Duration
		Items     int
		Bytes     uint64
		Timestamp time.Time
	}

	// Stats are derived from the retained samples.
	Stats struct {
		Samples     int
		AvgDuration time.Duration
		Throughput  float64 // items per second between the first and the last retained sample
		TotalItems  int
		TotalBytes  uint64
	}
)

// Monitor is a thread-safe rolling log of load samples. The oldest samples drop silently.
type Monitor struct {
	log *circularbuff.Buffer[Sample]
	mu  sync.Mutex
}

// New creates a monitor retaining up to capacity samples.
func New(capacity int) (*Monitor, error) {
	log, err := circularbuff.New[Sample](capacity)
	if err != nil {
		return nil, err
	}
	return &Monitor{
		log: log,
	}, nil
}

// Record appends a sample.
func (m *Monitor) Record(s Sample) {
	m.mu.Lock()
	m.log.Add(s)
	m.mu.Unlock()
}

// Samples returns the retained samples, oldest first.
func (m *Monitor) Samples() []Sample {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.log.Items()
}

// Stats calculates statistics over the retained samples.
func (m *Monitor) Stats() Stats {
	m.mu.Lock()
	samples := m.log.Items()
	oldest, _ := m.log.Oldest()
	newest, ok := m.log.Newest()
	m.mu.Unlock()
	if !ok {
		return Stats{}
	}

	var stats Stats
	var totalDuration time.Duration
	for _, s := range samples {
		totalDuration += s.Duration
		stats.TotalItems += s.Items
		stats.TotalBytes += s.Bytes
	}
	stats.Samples = len(samples)
	stats.AvgDuration = totalDuration / time.Duration(len(samples))

	window := newest.Timestamp.Sub(oldest.Timestamp)
	if window > 0 {
		stats.Throughput = float64(stats.TotalItems) / window.Seconds()
	}
	return stats
}
