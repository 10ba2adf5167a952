// Package hound collects heterogeneous, time-stamped sensor records (CAN
// frames, OBD-II PIDs, IIO channels, GPS fixes, arbitrary file-derived
// streams) from multiple drivers and fans them out, in order, to one or
// more independent consumer contexts.
package hound

import (
	"sync"

	"github.com/ehrlich-b/hound/internal/interfaces"
	"github.com/ehrlich-b/hound/internal/logging"
	"github.com/ehrlich-b/hound/internal/mux"
	"github.com/ehrlich-b/hound/internal/schema"
)

// ArgType mirrors interfaces.ArgType for the public registration API.
type ArgType = interfaces.ArgType

const (
	ArgFloat  = interfaces.ArgFloat
	ArgDouble = interfaces.ArgDouble
	ArgInt8   = interfaces.ArgInt8
	ArgInt16  = interfaces.ArgInt16
	ArgInt32  = interfaces.ArgInt32
	ArgInt64  = interfaces.ArgInt64
	ArgUint8  = interfaces.ArgUint8
	ArgUint16 = interfaces.ArgUint16
	ArgUint32 = interfaces.ArgUint32
	ArgUint64 = interfaces.ArgUint64
	ArgBytes  = interfaces.ArgBytes
)

// InitArg is one positional, typed argument passed through to a driver's
// kind-specific factory.
type InitArg struct {
	Type  ArgType
	Value any
}

func toInternalArgs(args []InitArg) []interfaces.InitArg {
	out := make([]interfaces.InitArg, len(args))
	for i, a := range args {
		out[i] = interfaces.InitArg{Type: a.Type, Value: a.Value}
	}
	return out
}

// Factory builds a driver instance for one registration. schemaBase and
// schemaFile locate the YAML schema describing the driver's data IDs and
// field layouts (spec §6); a driver kind that doesn't need one may ignore
// them.
type Factory func(schemaBase, schemaFile string) (interfaces.Driver, error)

var (
	kindsMu sync.Mutex
	kinds   = map[string]Factory{}
)

// RegisterKind makes a driver kind available to RegisterDriver. Driver
// packages call this from an init() func, the way database/sql drivers
// register themselves with sql.Register.
func RegisterKind(kind string, factory Factory) {
	kindsMu.Lock()
	defer kindsMu.Unlock()
	kinds[kind] = factory
}

func lookupKind(kind string) (Factory, bool) {
	kindsMu.Lock()
	defer kindsMu.Unlock()
	f, ok := kinds[kind]
	return f, ok
}

// Options configures a new Hound instance.
type Options struct {
	Logger   interfaces.Logger
	Observer interfaces.Observer
}

// Hound owns one driver registry and its bound I/O multiplexer. Safe for
// concurrent use from multiple goroutines.
type Hound struct {
	mx       *mux.Multiplexer
	registry *mux.Registry
	logger   interfaces.Logger
	observer interfaces.Observer
	metrics  *Metrics
}

// New starts a Hound instance: one multiplexer poll loop and an empty
// driver registry.
func New(opts Options) (*Hound, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	metrics := NewMetrics()
	observer := opts.Observer
	if observer == nil {
		observer = NewMetricsObserver(metrics)
	}

	m, err := mux.New(logger, observer)
	if err != nil {
		return nil, wrapErr("New", "", err)
	}
	reg := mux.NewRegistry(m, logger, observer)

	return &Hound{mx: m, registry: reg, logger: logger, observer: observer, metrics: metrics}, nil
}

// Close stops the multiplexer's poll loop. Any contexts still active, and
// any drivers still registered, should be stopped/unregistered first.
func (h *Hound) Close() error {
	return h.mx.Close()
}

// Metrics returns the instance's built-in metrics, populated only if no
// custom Observer was supplied via Options.
func (h *Hound) Metrics() *Metrics {
	return h.metrics
}

// RegisterDriver constructs a driver of the given kind (one previously
// registered via RegisterKind) and registers it at path. schemaBase and
// schemaFile are passed to the kind's factory, which may load them with
// internal/schema; the bundled counter, nop and file factories ignore them.
func (h *Hound) RegisterDriver(kind, path, schemaBase, schemaFile string, args []InitArg) error {
	factory, ok := lookupKind(kind)
	if !ok {
		return newDriverErr("RegisterDriver", path, CodeDriverUnsupported, "unknown driver kind: "+kind)
	}
	driver, err := factory(schemaBase, schemaFile)
	if err != nil {
		return newDriverErr("RegisterDriver", path, CodeIOError, err.Error())
	}
	if _, err := h.registry.Register(path, driver, toInternalArgs(args)); err != nil {
		return wrapErr("RegisterDriver", path, err)
	}
	return nil
}

// UnregisterDriver removes path's driver record.
func (h *Hound) UnregisterDriver(path string) error {
	if err := h.registry.Unregister(path); err != nil {
		return wrapErr("UnregisterDriver", path, err)
	}
	return nil
}

// DataDesc is one entry of the system-wide data catalogue returned by
// GetDataDesc.
type DataDesc struct {
	DataID     uint32
	DevID      uint8
	DeviceName string
	Periods    []uint64
	Push       bool
}

// GetDataDesc snapshots every data ID currently advertised across all
// registered drivers.
func (h *Hound) GetDataDesc() []DataDesc {
	snaps := h.registry.AllDescs()
	out := make([]DataDesc, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, DataDesc{
			DataID:     s.Desc.DataID,
			DevID:      s.DevID,
			DeviceName: s.DeviceName,
			Periods:    append([]uint64(nil), s.Desc.Periods...),
			Push:       s.Desc.Sched == interfaces.SchedPush,
		})
	}
	return out
}

// GetDevName returns the human-readable name of a registered device ID.
func (h *Hound) GetDevName(devID uint8) (string, error) {
	name, err := h.registry.DeviceName(devID)
	if err != nil {
		return "", wrapErr("GetDevName", "", err)
	}
	return name, nil
}

// LoadConfig reads a YAML config file and registers one driver per entry.
func (h *Hound) LoadConfig(path string) error {
	cfg, err := schema.LoadConfig(path)
	if err != nil {
		return newErr("LoadConfig", CodeIOError, err.Error())
	}
	for _, entry := range cfg {
		args := make([]InitArg, 0, len(entry.Args))
		for _, a := range entry.Args {
			args = append(args, InitArg{Type: schema.ArgTypeFromString(a.Type), Value: a.Val})
		}
		if err := h.RegisterDriver(entry.Name, entry.Path, "", entry.Schema, args); err != nil {
			return err
		}
	}
	return nil
}
