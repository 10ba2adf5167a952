package mux

import "errors"

// Sentinel errors the registry and multiplexer return for conditions the
// public API taxonomy (see the top-level errors.go) needs to distinguish.
// Defined here, rather than in the top-level package, so this package
// never has to import back up to it.
var (
	ErrAlreadyRegistered  = errors.New("mux: driver already registered")
	ErrNotRegistered      = errors.New("mux: driver not registered")
	ErrDriverInUse        = errors.New("mux: driver in use")
	ErrConflictingDrivers = errors.New("mux: data id already owned by another driver")
	ErrDataIDDoesNotExist = errors.New("mux: data id does not exist")
	ErrPeriodUnsupported  = errors.New("mux: period not supported for data id")
	ErrDevDoesNotExist    = errors.New("mux: device id does not exist")
)
