package hound

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/ehrlich-b/hound/internal/mux"
	"github.com/ehrlich-b/hound/internal/queue"
)

// Code is the high-level error category, mirroring the taxonomy in spec
// §6/§7. A Code of zero (Ok) never appears on a returned *Error.
type Code string

const (
	CodeOk                     Code = ""
	CodeNullVal                Code = "null value"
	CodeOutOfMemory            Code = "out of memory"
	CodeAlreadyRegistered      Code = "already registered"
	CodeNotRegistered          Code = "not registered"
	CodeDriverInUse            Code = "driver in use"
	CodeMissingDeviceIDs       Code = "missing device ids"
	CodeConflictingDrivers     Code = "conflicting drivers"
	CodeNoDataRequested        Code = "no data requested"
	CodeDataIDDoesNotExist     Code = "data id does not exist"
	CodeCtxActive              Code = "context active"
	CodeCtxNotActive           Code = "context not active"
	CodeEmptyQueue             Code = "empty queue"
	CodeMissingCallback        Code = "missing callback"
	CodePeriodUnsupported      Code = "period unsupported"
	CodeIOError                Code = "i/o error"
	CodeQueueTooSmall          Code = "queue too small"
	CodeInvalidString          Code = "invalid string"
	CodeDriverUnsupported      Code = "driver unsupported"
	CodeDriverFail             Code = "driver fail"
	CodeInvalidVal             Code = "invalid value"
	CodeIntr                   Code = "interrupted"
	CodeDevDoesNotExist        Code = "device does not exist"
	CodeTooMuchDataRequested   Code = "too much data requested"
	CodeDuplicateDataRequested Code = "duplicate data requested"
)

// Error is the structured error every public API call returns on failure.
type Error struct {
	Op    string // operation that failed, e.g. "RegisterDriver", "Start"
	Path  string // driver path, if applicable
	DevID int    // device ID, -1 if not applicable
	Code  Code
	Errno syscall.Errno // kernel errno, 0 if not applicable
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.Path != "" {
		parts = append(parts, fmt.Sprintf("path=%s", e.Path))
	}
	if e.DevID >= 0 {
		parts = append(parts, fmt.Sprintf("dev=%d", e.DevID))
	}
	if e.Errno != 0 {
		parts = append(parts, fmt.Sprintf("errno=%d", e.Errno))
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if len(parts) > 0 {
		return fmt.Sprintf("hound: %s (%s)", msg, parts[0])
	}
	return fmt.Sprintf("hound: %s", msg)
}

// Unwrap supports errors.Is/errors.As against Inner.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is makes errors.Is match any *Error target carrying the same Code (for
// example errors.Is(err, Intr)).
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

func newErr(op string, code Code, msg string) *Error {
	return &Error{Op: op, DevID: -1, Code: code, Msg: msg}
}

func newDriverErr(op, path string, code Code, msg string) *Error {
	return &Error{Op: op, Path: path, DevID: -1, Code: code, Msg: msg}
}

// wrapErr translates a sentinel from internal/mux or internal/queue, or a
// raw driver/syscall error, into the public *Error taxonomy.
func wrapErr(op, path string, err error) *Error {
	if err == nil {
		return nil
	}
	if he, ok := err.(*Error); ok {
		return he
	}

	switch {
	case errors.Is(err, mux.ErrAlreadyRegistered):
		return newDriverErr(op, path, CodeAlreadyRegistered, "driver already registered")
	case errors.Is(err, mux.ErrNotRegistered):
		return newDriverErr(op, path, CodeNotRegistered, "driver not registered")
	case errors.Is(err, mux.ErrDriverInUse):
		return newDriverErr(op, path, CodeDriverInUse, "driver has active data requests")
	case errors.Is(err, mux.ErrConflictingDrivers):
		return newDriverErr(op, path, CodeConflictingDrivers, "data id already owned by another driver")
	case errors.Is(err, mux.ErrDataIDDoesNotExist):
		return newDriverErr(op, path, CodeDataIDDoesNotExist, "data id does not exist")
	case errors.Is(err, mux.ErrPeriodUnsupported):
		return newDriverErr(op, path, CodePeriodUnsupported, "period not supported for data id")
	case errors.Is(err, mux.ErrDevDoesNotExist):
		return newDriverErr(op, path, CodeDevDoesNotExist, "device id does not exist")
	case errors.Is(err, mux.ErrTooManyDevices):
		return newDriverErr(op, path, CodeMissingDeviceIDs, "no free device ids")
	case errors.Is(err, queue.ErrInterrupted):
		return newDriverErr(op, path, CodeIntr, "operation interrupted")
	case errors.Is(err, queue.ErrTooSmall):
		return newDriverErr(op, path, CodeQueueTooSmall, "queue capacity must be positive")
	}

	if errno, ok := err.(syscall.Errno); ok {
		return &Error{Op: op, Path: path, DevID: -1, Code: CodeIOError, Errno: errno, Msg: errno.Error(), Inner: err}
	}

	return &Error{Op: op, Path: path, DevID: -1, Code: CodeDriverFail, Msg: err.Error(), Inner: err}
}

// IsCode reports whether err carries the given Code, unwrapping through
// errors.As.
func IsCode(err error, code Code) bool {
	var he *Error
	if errors.As(err, &he) {
		return he.Code == code
	}
	return false
}

// Intr is the sentinel that errors.Is matches against the error a blocked
// Read returns when unblocked by Context.Stop rather than by data arriving.
// The non-blocking ReadNowait family never returns it.
var Intr = newErr("", CodeIntr, "interrupted")
