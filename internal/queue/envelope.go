package queue

import (
	"github.com/ehrlich-b/hound/internal/interfaces"
	"github.com/ehrlich-b/hound/internal/refcount"
)

// Record is a fully-stamped record as delivered to a consumer callback.
// Seqno is per-context (assigned by the queue that delivers it, not part
// of the shared payload below), everything else is driver-supplied.
type Record struct {
	Seqno         uint64
	DataID        uint32
	DevID         uint8
	TimestampSec  int64
	TimestampNsec int64
	Size          uint32
	Data          []byte
}

// Envelope is the refcounted wrapper by which one record's payload is
// shared across multiple queues. The refcount equals the number of queues
// still holding a reference: initialized to k when a record is fanned out
// to k queues, decremented once per queue on consumption, and the payload
// is released exactly once, when the last reference drops it to zero.
//
// Seqno is deliberately not part of the shared payload: §3 of the data
// model assigns seqnos per-context at push time, so two queues holding the
// same envelope stamp it with different seqnos when they deliver it.
type Envelope struct {
	refs    *refcount.Counter
	dataID  uint32
	devID   uint8
	tsSec   int64
	tsNsec  int64
	size    uint32
	data    []byte
	release func([]byte)
}

// NewEnvelope wraps rr with an initial reference count of refs. release,
// if non-nil, is invoked exactly once, when the last reference is dropped
// (e.g. to return a pooled buffer backing rr.Data).
func NewEnvelope(rr interfaces.RawRecord, refs int, release func([]byte)) *Envelope {
	return &Envelope{
		refs:    refcount.New(int64(refs)),
		dataID:  rr.DataID,
		devID:   rr.DevID,
		tsSec:   rr.TimestampSec,
		tsNsec:  rr.TimestampNsec,
		size:    uint32(len(rr.Data)),
		data:    rr.Data,
		release: release,
	}
}

// DataID returns the data ID this envelope carries, used by the
// multiplexer to determine which queues' request lists should receive it.
func (e *Envelope) DataID() uint32 {
	return e.dataID
}

// Stamp produces the delivered Record for one consumer, assigning seqno.
// Safe to call once per queue holding a reference (each queue's Stamp is
// independent; the returned Record does not share mutable state).
func (e *Envelope) Stamp(seqno uint64) *Record {
	return &Record{
		Seqno:         seqno,
		DataID:        e.dataID,
		DevID:         e.devID,
		TimestampSec:  e.tsSec,
		TimestampNsec: e.tsNsec,
		Size:          e.size,
		Data:          e.data,
	}
}

// Release drops one reference, freeing the payload when it reaches zero.
// Safe to call concurrently from multiple queues' consumers.
func (e *Envelope) Release() {
	if e.refs.Add(-1) == 0 && e.release != nil {
		e.release(e.data)
	}
}
