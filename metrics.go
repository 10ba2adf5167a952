package hound

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ehrlich-b/hound/internal/interfaces"
)

// Metrics tracks operational statistics for one Hound registry+multiplexer
// instance: how much data is flowing, how much is being dropped for lack of
// a subscriber, and which drivers are failing.
type Metrics struct {
	FanoutRecords atomic.Uint64 // records successfully fanned out to >=1 queue
	FanoutQueues  atomic.Uint64 // cumulative (record, queue) deliveries
	Drops         atomic.Uint64 // records with no subscribed queue

	QueueDepthTotal atomic.Uint64
	QueueDepthCount atomic.Uint64
	MaxQueueDepth   atomic.Uint64

	StartTime atomic.Int64

	mu           sync.Mutex
	driverErrors map[string]uint64 // path -> count
}

// NewMetrics creates a fresh, zeroed metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{driverErrors: make(map[string]uint64)}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordFanout records one record delivered to queues queue-count times.
func (m *Metrics) RecordFanout(queues int) {
	m.FanoutRecords.Add(1)
	m.FanoutQueues.Add(uint64(queues))
}

// RecordDrop records one record that had no subscribed queue.
func (m *Metrics) RecordDrop() {
	m.Drops.Add(1)
}

// RecordQueueDepth records a point-in-time queue depth sample as a fraction
// of that queue's capacity, expressed in basis points (depth*10000/capacity)
// so depths across differently-sized queues remain comparable.
func (m *Metrics) RecordQueueDepth(depth, capacity int) {
	if capacity <= 0 {
		return
	}
	bp := uint64(depth) * 10000 / uint64(capacity)
	m.QueueDepthTotal.Add(bp)
	m.QueueDepthCount.Add(1)
	for {
		cur := m.MaxQueueDepth.Load()
		if bp <= cur {
			break
		}
		if m.MaxQueueDepth.CompareAndSwap(cur, bp) {
			break
		}
	}
}

// RecordDriverError records one failed driver operation for path.
func (m *Metrics) RecordDriverError(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.driverErrors[path]++
}

// MetricsSnapshot is a point-in-time copy of Metrics' counters.
type MetricsSnapshot struct {
	FanoutRecords    uint64
	FanoutQueues     uint64
	Drops            uint64
	AvgQueueDepthBp  float64
	MaxQueueDepthBp  uint64
	UptimeNs         uint64
	DriverErrorCount map[string]uint64
}

// Snapshot returns a copy of the current metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		FanoutRecords:   m.FanoutRecords.Load(),
		FanoutQueues:    m.FanoutQueues.Load(),
		Drops:           m.Drops.Load(),
		MaxQueueDepthBp: m.MaxQueueDepth.Load(),
		UptimeNs:        uint64(time.Now().UnixNano() - m.StartTime.Load()),
	}
	if cnt := m.QueueDepthCount.Load(); cnt > 0 {
		snap.AvgQueueDepthBp = float64(m.QueueDepthTotal.Load()) / float64(cnt)
	}
	m.mu.Lock()
	snap.DriverErrorCount = make(map[string]uint64, len(m.driverErrors))
	for k, v := range m.driverErrors {
		snap.DriverErrorCount[k] = v
	}
	m.mu.Unlock()
	return snap
}

// Reset zeroes every counter. Useful for tests.
func (m *Metrics) Reset() {
	m.FanoutRecords.Store(0)
	m.FanoutQueues.Store(0)
	m.Drops.Store(0)
	m.QueueDepthTotal.Store(0)
	m.QueueDepthCount.Store(0)
	m.MaxQueueDepth.Store(0)
	m.StartTime.Store(time.Now().UnixNano())
	m.mu.Lock()
	m.driverErrors = make(map[string]uint64)
	m.mu.Unlock()
}

// NoOpObserver discards every observation. New does not use it by default:
// when Options.Observer is nil, New installs a MetricsObserver over the
// instance's Metrics.
type NoOpObserver struct{}

func (NoOpObserver) ObserveFanout(uint32, int)        {}
func (NoOpObserver) ObserveDrop(uint32)                {}
func (NoOpObserver) ObserveQueueDepth(int, int)        {}
func (NoOpObserver) ObserveDriverError(string, string, error) {}

// MetricsObserver adapts Metrics to interfaces.Observer.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records into m.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveFanout(dataID uint32, queues int) {
	o.metrics.RecordFanout(queues)
}

func (o *MetricsObserver) ObserveDrop(dataID uint32) {
	o.metrics.RecordDrop()
}

func (o *MetricsObserver) ObserveQueueDepth(depth, capacity int) {
	o.metrics.RecordQueueDepth(depth, capacity)
}

func (o *MetricsObserver) ObserveDriverError(path, op string, err error) {
	o.metrics.RecordDriverError(path)
}

var (
	_ interfaces.Observer = (*MetricsObserver)(nil)
	_ interfaces.Observer = (*NoOpObserver)(nil)
)
