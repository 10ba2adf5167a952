// Package interfaces provides internal interface definitions for hound.
// These are kept separate from the top-level package to avoid circular
// imports between the public API and the driver-facing plumbing (registry,
// multiplexer, queue) that the public API is built on.
package interfaces

// SchedMode reports whether a driver's data arrives on its own (push,
// driven by readiness of the descriptor returned from Start) or only in
// response to an explicit Next call (pull).
type SchedMode int

const (
	SchedPush SchedMode = iota
	SchedPull
)

// DataDesc is one entry of a driver's advertised data catalogue, reported
// by DataDesc() at registration time.
type DataDesc struct {
	DataID  uint32
	Enabled bool
	Periods []uint64 // supported non-zero periods; 0 may also be supported (pull)
	Sched   SchedMode
}

// SupportsPeriod reports whether periodNs is in the advertised set.
func (d DataDesc) SupportsPeriod(periodNs uint64) bool {
	for _, p := range d.Periods {
		if p == periodNs {
			return true
		}
	}
	return false
}

// DataRequest is one line of a context's request list, or of the
// reconciled set SetData is called with.
type DataRequest struct {
	DataID   uint32
	PeriodNs uint64
}

// ArgType enumerates the typed values a driver's init args may carry.
type ArgType int

const (
	ArgFloat ArgType = iota
	ArgDouble
	ArgInt8
	ArgInt16
	ArgInt32
	ArgInt64
	ArgUint8
	ArgUint16
	ArgUint32
	ArgUint64
	ArgBytes
)

// InitArg is one positional argument passed to Driver.Init, mirroring the
// schema's typed argument list.
type InitArg struct {
	Type  ArgType
	Value any
}

// RawRecord is what a driver hands back to the core from Parse or via
// Handle.PushRecords. The core stamps Seqno when it lands in a consumer's
// queue; everything else is driver-supplied.
type RawRecord struct {
	DataID        uint32
	DevID         uint8
	TimestampSec  int64
	TimestampNsec int64
	Data          []byte
}

// Handle is the explicit capability a driver operation receives so it can
// emit records without the core keeping a thread-local "active driver"
// slot (see the design notes on push_records). Every operation called on a
// registered driver's behalf (SetData, Parse, Start, Next, Stop) receives
// one.
type Handle interface {
	// PushRecords hands 0..N records to the core for fan-out to subscribed
	// queues. Safe to call synchronously from within the operation that
	// received the Handle; ordering of records passed in one call, and
	// across calls for the same (driver, data ID), is preserved.
	PushRecords(records []RawRecord)
}

// Driver is the fixed operation set every driver implements (spec §4.1).
// The core guarantees at most one operation per driver is in flight at any
// time (see the driver-op gate).
type Driver interface {
	// Init prepares the driver's internal state. No I/O is started yet.
	Init(path string, args []InitArg) error

	// Destroy releases the driver's state. Idempotent.
	Destroy() error

	// DeviceName returns a human-readable device name, bounded to
	// constants.MaxDeviceNameLen including the terminator.
	DeviceName() (string, error)

	// DataDesc reports the driver's full data catalogue: which data IDs it
	// can produce, their supported periods, and push/pull scheduling.
	DataDesc() ([]DataDesc, error)

	// SetData reconciles the driver to the union of current requests.
	// Called whenever a driver's active-data map changes.
	SetData(h Handle, requests []DataRequest) error

	// Parse consumes a prefix of buf, emitting records via h.PushRecords,
	// and returns the number of bytes consumed. Bytes left unconsumed are
	// preserved by the multiplexer and prefixed to the next read.
	Parse(h Handle, buf []byte) (consumed int, err error)

	// Start begins producing and returns a readable descriptor for the
	// multiplexer to poll, or a negative value when the driver has no
	// descriptor to poll (records then arrive only via PushRecords).
	Start(h Handle) (fd int, err error)

	// Next asks a pull-mode driver to cause one unit of data for dataID to
	// become available (synchronously, or via a later readable event).
	Next(h Handle, dataID uint32) error

	// Stop stops producing and releases the descriptor returned by Start.
	Stop(h Handle) error
}

// Logger is the narrow logging surface the plumbing depends on, so
// internal/logging can be swapped without internal/mux importing it
// directly.
type Logger interface {
	Printf(format string, args ...any)
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

// Observer is the pluggable metrics sink. Implementations must be
// thread-safe: methods are called from the multiplexer's single poll loop
// as well as from context Start/Stop calls on arbitrary goroutines.
type Observer interface {
	ObserveFanout(dataID uint32, queues int)
	ObserveDrop(dataID uint32)
	ObserveQueueDepth(depth int, capacity int)
	ObserveDriverError(path string, op string, err error)
}
