package mux

import "github.com/ehrlich-b/hound/internal/interfaces"

// driverHandle is the capability passed into a Driver operation for the
// duration of that single call. It is cheap to allocate per-call: the
// op-lock already serializes access, so there is nothing to protect in the
// handle itself beyond the two pointers it closes over.
type driverHandle struct {
	rec *DriverRecord
	mux *Multiplexer
}

var _ interfaces.Handle = (*driverHandle)(nil)

// PushRecords fans raw records out to every queue currently subscribed to
// their data IDs. Called synchronously from within a driver operation
// (Start, SetData, Parse, Next or Stop), which already holds rec.opLock,
// so dispatch must never try to re-enter
// any driver operation.
func (h *driverHandle) PushRecords(records []interfaces.RawRecord) {
	for _, rr := range records {
		h.mux.dispatch(h.rec, rr)
	}
}
