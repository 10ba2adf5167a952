// Package mux implements the driver registry, the driver-op gate, and the
// I/O multiplexer (spec components §4.2–§4.4) as one package: the
// registry tells the multiplexer to add/remove descriptors and
// subscriptions, and a driver's push_records callback reaches the
// multiplexer's fan-out directly, so splitting them would just mean an
// import cycle papered over with interfaces.
package mux

import (
	"errors"
	"sync"

	"github.com/ehrlich-b/hound/internal/constants"
	"github.com/ehrlich-b/hound/internal/interfaces"
	"github.com/ehrlich-b/hound/internal/queue"
)

// ErrTooManyDevices is returned by Register once every device ID in
// 0..MaxDevices-1 is in use.
var ErrTooManyDevices = errors.New("mux: too many registered devices")

// DescSnapshot is one line of the system-wide data catalogue returned by
// AllDescs, annotating a driver's advertised descriptor with the device it
// belongs to.
type DescSnapshot struct {
	DevID      uint8
	DeviceName string
	Desc       interfaces.DataDesc
}

// Registry is the table of registered drivers keyed by path, plus the
// (data_id → driver) reverse index that enforces "each data ID has at
// most one producer" (spec §4.2).
type Registry struct {
	mu         sync.Mutex
	byPath     map[string]*DriverRecord
	byDataID   map[uint32]*DriverRecord
	usedDevIDs [constants.MaxDevices]bool

	mux      *Multiplexer
	logger   interfaces.Logger
	observer interfaces.Observer
}

// NewRegistry builds a registry bound to mx. mx must already be running.
func NewRegistry(mx *Multiplexer, logger interfaces.Logger, observer interfaces.Observer) *Registry {
	if logger == nil {
		logger = noopLogger{}
	}
	if observer == nil {
		observer = noopObserver{}
	}
	return &Registry{
		byPath:   make(map[string]*DriverRecord),
		byDataID: make(map[uint32]*DriverRecord),
		mux:      mx,
		logger:   logger,
		observer: observer,
	}
}

func (r *Registry) allocDevID() (uint8, error) {
	for i := 0; i < constants.MaxDevices; i++ {
		if !r.usedDevIDs[i] {
			r.usedDevIDs[i] = true
			return uint8(i), nil
		}
	}
	return 0, ErrTooManyDevices
}

func (r *Registry) freeDevID(id uint8) {
	r.usedDevIDs[id] = false
}

// Register constructs a driver record for path: assigns the next free
// device ID, calls Init/DeviceName/DataDesc, and adds a reverse-index entry
// per advertised data ID. Fails with ErrAlreadyRegistered if path is
// already present, or ErrConflictingDrivers if any advertised data ID
// already has an owner — in which case nothing is mutated (driver is
// destroyed and the device ID released before returning).
func (r *Registry) Register(path string, driver interfaces.Driver, args []interfaces.InitArg) (*DriverRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byPath[path]; exists {
		return nil, ErrAlreadyRegistered
	}

	devID, err := r.allocDevID()
	if err != nil {
		return nil, err
	}

	if err := driver.Init(path, args); err != nil {
		r.freeDevID(devID)
		return nil, err
	}

	name, err := driver.DeviceName()
	if err != nil {
		driver.Destroy()
		r.freeDevID(devID)
		return nil, err
	}

	descs, err := driver.DataDesc()
	if err != nil {
		driver.Destroy()
		r.freeDevID(devID)
		return nil, err
	}

	for _, d := range descs {
		if _, exists := r.byDataID[d.DataID]; exists {
			driver.Destroy()
			r.freeDevID(devID)
			return nil, ErrConflictingDrivers
		}
	}

	rec := newDriverRecord(path, devID, driver, name, descs)
	for _, d := range descs {
		r.byDataID[d.DataID] = rec
	}
	r.byPath[path] = rec
	return rec, nil
}

// Unregister removes path's driver record. Fails with ErrDriverInUse if
// its active-data map is non-empty, ErrNotRegistered if path is unknown.
func (r *Registry) Unregister(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byPath[path]
	if !ok {
		return ErrNotRegistered
	}

	rec.stateLock.Lock()
	inUse := len(rec.active) > 0
	rec.stateLock.Unlock()
	if inUse {
		return ErrDriverInUse
	}

	for id := range rec.descs {
		delete(r.byDataID, id)
	}
	delete(r.byPath, path)
	r.freeDevID(rec.devID)
	return rec.driver.Destroy()
}

// DriverGet resolves dataID to its owning driver via the reverse index.
func (r *Registry) DriverGet(dataID uint32) (*DriverRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byDataID[dataID]
	if !ok {
		return nil, ErrDataIDDoesNotExist
	}
	return rec, nil
}

// AllDescs snapshots every data ID currently advertised across all
// registered drivers, for the public get_datadesc call.
func (r *Registry) AllDescs() []DescSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []DescSnapshot
	for _, rec := range r.byPath {
		for _, d := range rec.descs {
			out = append(out, DescSnapshot{DevID: rec.devID, DeviceName: rec.name, Desc: d})
		}
	}
	return out
}

// DeviceName looks up the human-readable name of a registered device ID.
func (r *Registry) DeviceName(devID uint8) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.byPath {
		if rec.devID == devID {
			return rec.name, nil
		}
	}
	return "", ErrDevDoesNotExist
}

// Ref reconciles rec's active-data map to include requests on behalf of q,
// starting the driver if this is its first activation and always calling
// SetData with the reconciled period list. Any failure rolls back every
// refcount change already applied by this call (spec §4.2).
func (r *Registry) Ref(rec *DriverRecord, q *queue.Queue, requests []interfaces.DataRequest) error {
	rec.stateLock.Lock()
	defer rec.stateLock.Unlock()

	applied := make([]uint32, 0, len(requests))
	rollback := func() {
		for _, id := range applied {
			e, ok := rec.active[id]
			if !ok {
				continue
			}
			e.refcount--
			if e.refcount <= 0 {
				delete(rec.active, id)
			}
		}
	}

	wasEmpty := len(rec.active) == 0

	for _, req := range requests {
		desc, ok := rec.descs[req.DataID]
		if !ok {
			rollback()
			return ErrDataIDDoesNotExist
		}
		if !desc.SupportsPeriod(req.PeriodNs) {
			rollback()
			return ErrPeriodUnsupported
		}
		if e, exists := rec.active[req.DataID]; exists {
			e.refcount++
			if req.PeriodNs < e.periodNs {
				e.periodNs = req.PeriodNs
			}
		} else {
			rec.active[req.DataID] = &activeEntry{refcount: 1, periodNs: req.PeriodNs}
		}
		applied = append(applied, req.DataID)
	}

	if wasEmpty && len(rec.active) > 0 {
		var fd int
		err := rec.call(r.mux, func(h interfaces.Handle) error {
			var serr error
			fd, serr = rec.driver.Start(h)
			return serr
		})
		if err != nil {
			rollback()
			return err
		}
		if err := r.mux.AddFd(rec, fd); err != nil {
			rec.call(r.mux, func(h interfaces.Handle) error { return rec.driver.Stop(h) })
			rollback()
			return err
		}
		rec.fd = fd
		rec.started = true
	}

	if err := rec.call(r.mux, func(h interfaces.Handle) error {
		return rec.driver.SetData(h, rec.periodRequests())
	}); err != nil {
		rollback()
		if wasEmpty && rec.started {
			r.mux.RemoveFd(rec)
			rec.call(r.mux, func(h interfaces.Handle) error { return rec.driver.Stop(h) })
			rec.fd = -1
			rec.started = false
		}
		return err
	}

	if rec.started {
		for _, id := range applied {
			r.mux.Subscribe(rec, id, q)
		}
	}

	return nil
}

// Unref is the symmetric reverse of Ref: decrements refcounts for
// requests, and on the active-data map emptying out, stops the driver and
// removes its fd from the multiplexer.
func (r *Registry) Unref(rec *DriverRecord, q *queue.Queue, requests []interfaces.DataRequest) error {
	rec.stateLock.Lock()
	defer rec.stateLock.Unlock()

	for _, req := range requests {
		if rec.started {
			r.mux.Unsubscribe(rec, req.DataID, q)
		}
		e, ok := rec.active[req.DataID]
		if !ok {
			continue
		}
		e.refcount--
		if e.refcount <= 0 {
			delete(rec.active, req.DataID)
		}
	}

	if len(rec.active) == 0 {
		if rec.started {
			r.mux.RemoveFd(rec)
			if err := rec.call(r.mux, func(h interfaces.Handle) error { return rec.driver.Stop(h) }); err != nil && r.logger != nil {
				r.logger.Warnf("mux: stop %s: %v", rec.path, err)
			}
			rec.fd = -1
			rec.started = false
		}
		return nil
	}

	return rec.call(r.mux, func(h interfaces.Handle) error {
		return rec.driver.SetData(h, rec.periodRequests())
	})
}

// Next issues a pull-mode next() call directly to rec on behalf of dataID,
// serialized by the same op-gate as every other driver operation.
func (r *Registry) Next(rec *DriverRecord, dataID uint32) error {
	return rec.call(r.mux, func(h interfaces.Handle) error {
		return rec.driver.Next(h, dataID)
	})
}
