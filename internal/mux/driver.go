package mux

import (
	"fmt"
	"sync"

	"github.com/ehrlich-b/hound/internal/interfaces"
)

// activeEntry is one line of a driver's active-data map (spec §3).
type activeEntry struct {
	refcount int
	periodNs uint64
}

// DriverRecord is the registry's bookkeeping for one registered driver.
// stateLock guards active/fd/started; opLock is the driver-op gate,
// serializing calls into Driver so the core's "at most one operation per
// driver in flight" guarantee (spec §4.1, §4.3) holds regardless of how
// many goroutines are calling in concurrently.
type DriverRecord struct {
	path   string
	devID  uint8
	name   string
	driver interfaces.Driver
	descs  map[uint32]interfaces.DataDesc

	stateLock sync.Mutex
	active    map[uint32]*activeEntry
	fd        int
	started   bool

	opLock sync.Mutex
}

func newDriverRecord(path string, devID uint8, driver interfaces.Driver, name string, descs []interfaces.DataDesc) *DriverRecord {
	m := make(map[uint32]interfaces.DataDesc, len(descs))
	for _, d := range descs {
		m[d.DataID] = d
	}
	return &DriverRecord{
		path:    path,
		devID:   devID,
		name:    name,
		driver:  driver,
		descs:   m,
		active:  make(map[uint32]*activeEntry),
		fd:      -1,
	}
}

// periodRequests returns the current reconciled request list, in the form
// SetData expects: one entry per active data ID carrying the effective
// (minimum) period across all current requesters.
func (r *DriverRecord) periodRequests() []interfaces.DataRequest {
	reqs := make([]interfaces.DataRequest, 0, len(r.active))
	for id, e := range r.active {
		reqs = append(reqs, interfaces.DataRequest{DataID: id, PeriodNs: e.periodNs})
	}
	return reqs
}

// call takes the op-lock, constructs a Handle bound to this driver and mx,
// invokes fn, and releases the lock. This is the driver-op gate (spec
// §4.3): it replaces a thread-local "active driver" slot with an explicit
// capability passed into the call, per the design notes in spec §9.
func (r *DriverRecord) call(mx *Multiplexer, fn func(h interfaces.Handle) error) error {
	r.opLock.Lock()
	defer r.opLock.Unlock()
	h := &driverHandle{rec: r, mux: mx}
	return fn(h)
}

func (r *DriverRecord) String() string {
	return fmt.Sprintf("driver(%s, dev=%d)", r.path, r.devID)
}

// Path returns the driver's registration path.
func (r *DriverRecord) Path() string { return r.path }

// DevID returns the driver's assigned device ID.
func (r *DriverRecord) DevID() uint8 { return r.devID }

// DeviceName returns the driver's cached device name.
func (r *DriverRecord) DeviceName() string { return r.name }

// Desc looks up one advertised descriptor by data ID.
func (r *DriverRecord) Desc(dataID uint32) (interfaces.DataDesc, bool) {
	d, ok := r.descs[dataID]
	return d, ok
}
