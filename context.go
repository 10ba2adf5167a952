package hound

import (
	"sync"

	"github.com/ehrlich-b/hound/internal/interfaces"
	"github.com/ehrlich-b/hound/internal/mux"
	"github.com/ehrlich-b/hound/internal/queue"
)

// Callback receives one record at a time as it's popped from a context's
// queue, along with its seqno and the caller-supplied arg from Request.
type Callback func(rec *Record, seqno uint64, cbArg any)

// Record is the record format delivered to a Callback (spec §6).
type Record struct {
	Seqno         uint64
	DataID        uint32
	DevID         uint8
	TimestampSec  int64
	TimestampNsec int64
	Size          uint32
	Data          []byte
}

func recordFromQueue(r *queue.Record) *Record {
	return &Record{
		Seqno:         r.Seqno,
		DataID:        r.DataID,
		DevID:         r.DevID,
		TimestampSec:  r.TimestampSec,
		TimestampNsec: r.TimestampNsec,
		Size:          r.Size,
		Data:          r.Data,
	}
}

// DataRequest is one line of a context's request list: a data ID and the
// period the caller wants it at (PullPeriod for on-demand).
type DataRequest struct {
	DataID   uint32
	PeriodNs uint64
}

// Request is the argument to AllocCtx.
type Request struct {
	QueueLen    int
	Callback    Callback
	CallbackArg any
	Requests    []DataRequest
}

type ctxState int

const (
	ctxNew ctxState = iota
	ctxActive
	ctxStopped
	ctxFreed
)

// driverGroup is one owning driver's slice of a context's request list,
// resolved once at alloc time.
type driverGroup struct {
	rec      *mux.DriverRecord
	requests []interfaces.DataRequest
}

// Context is a consumer handle: one request list, one queue, one callback
// (spec §4.6). State machine: new -> active -> stopped -> freed.
type Context struct {
	mu    sync.Mutex
	state ctxState

	h        *Hound
	requests []DataRequest
	groups   []driverGroup
	queue    *queue.Queue
	callback Callback
	cbArg    any
}

// AllocCtx validates req and allocates a new context in state "new". It
// does not touch any driver yet — that happens on Start.
func (h *Hound) AllocCtx(req Request) (*Context, error) {
	if len(req.Requests) == 0 {
		return nil, newErr("AllocCtx", CodeNoDataRequested, "request list is empty")
	}
	if len(req.Requests) > MaxDataRequest {
		return nil, newErr("AllocCtx", CodeTooMuchDataRequested, "request list exceeds MAX_DATA_REQ")
	}
	if req.Callback == nil {
		return nil, newErr("AllocCtx", CodeMissingCallback, "callback is nil")
	}
	if req.QueueLen == 0 {
		return nil, newErr("AllocCtx", CodeQueueTooSmall, "queue_len must be positive")
	}
	queueLen := req.QueueLen

	seen := make(map[uint32]struct{}, len(req.Requests))
	groupsByRec := make(map[*mux.DriverRecord]*driverGroup)
	var order []*mux.DriverRecord

	for _, dr := range req.Requests {
		if _, dup := seen[dr.DataID]; dup {
			return nil, newErr("AllocCtx", CodeDuplicateDataRequested, "duplicate data id in request list")
		}
		seen[dr.DataID] = struct{}{}

		rec, err := h.registry.DriverGet(dr.DataID)
		if err != nil {
			return nil, wrapErr("AllocCtx", "", err)
		}
		desc, ok := rec.Desc(dr.DataID)
		if !ok || !desc.SupportsPeriod(dr.PeriodNs) {
			return nil, newErr("AllocCtx", CodePeriodUnsupported, "period not supported for data id")
		}

		g, exists := groupsByRec[rec]
		if !exists {
			g = &driverGroup{rec: rec}
			groupsByRec[rec] = g
			order = append(order, rec)
		}
		g.requests = append(g.requests, interfaces.DataRequest{DataID: dr.DataID, PeriodNs: dr.PeriodNs})
	}

	q, err := queue.New(queueLen)
	if err != nil {
		return nil, wrapErr("AllocCtx", "", err)
	}

	groups := make([]driverGroup, 0, len(order))
	for _, rec := range order {
		groups = append(groups, *groupsByRec[rec])
	}

	return &Context{
		h:        h,
		state:    ctxNew,
		requests: append([]DataRequest(nil), req.Requests...),
		groups:   groups,
		queue:    q,
		callback: req.Callback,
		cbArg:    req.CallbackArg,
	}, nil
}

// Start transitions new|stopped -> active: refs every requested driver,
// rolling back all prior refs on the first failure, then clears the
// queue's interrupt flag and resets its seqno counter.
func (c *Context) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == ctxActive {
		return newErr("Start", CodeCtxActive, "context already active")
	}
	if c.state == ctxFreed {
		return newErr("Start", CodeCtxNotActive, "context already freed")
	}

	refed := make([]driverGroup, 0, len(c.groups))
	for _, g := range c.groups {
		if err := c.h.registry.Ref(g.rec, c.queue, g.requests); err != nil {
			for i := len(refed) - 1; i >= 0; i-- {
				c.h.registry.Unref(refed[i].rec, c.queue, refed[i].requests)
			}
			return wrapErr("Start", g.rec.Path(), err)
		}
		refed = append(refed, g)
	}

	c.queue.ResetSeqno()
	c.queue.Resume()
	c.state = ctxActive
	return nil
}

// Stop transitions active -> stopped: interrupts the queue (unblocking any
// blocked Read with the Intr sentinel), unrefs every driver, then drains
// whatever remained queued.
func (c *Context) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != ctxActive {
		return newErr("Stop", CodeCtxNotActive, "context not active")
	}

	c.queue.Interrupt()
	for _, g := range c.groups {
		if err := c.h.registry.Unref(g.rec, c.queue, g.requests); err != nil && c.h.logger != nil {
			c.h.logger.Warnf("hound: unref %s: %v", g.rec.Path(), err)
		}
	}
	c.queue.Drain()
	c.state = ctxStopped
	return nil
}

// Free transitions any state to freed, stopping first if still active.
func (c *Context) Free() error {
	c.mu.Lock()
	active := c.state == ctxActive
	c.mu.Unlock()
	if active {
		if err := c.Stop(); err != nil {
			return err
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = ctxFreed
	return nil
}

func (c *Context) pullModeDataIDs() []uint32 {
	var ids []uint32
	for _, g := range c.groups {
		for _, req := range g.requests {
			if req.PeriodNs == PullPeriod {
				ids = append(ids, req.DataID)
			}
		}
	}
	return ids
}

// Next issues n driver next() calls for each pull-mode data ID in the
// request list (spec §4.6: the exact count, not a per-record count across
// data IDs).
func (c *Context) Next(n int) error {
	c.mu.Lock()
	if c.state != ctxActive {
		c.mu.Unlock()
		return newErr("Next", CodeCtxNotActive, "context not active")
	}
	groups := c.groups
	c.mu.Unlock()

	var firstErr error
	for _, g := range groups {
		for _, req := range g.requests {
			if req.PeriodNs != PullPeriod {
				continue
			}
			for i := 0; i < n; i++ {
				if err := c.h.registry.Next(g.rec, req.DataID); err != nil && firstErr == nil {
					firstErr = wrapErr("Next", g.rec.Path(), err)
				}
			}
		}
	}
	return firstErr
}

func (c *Context) dispatch(recs []*queue.Record) {
	for _, r := range recs {
		c.callback(recordFromQueue(r), r.Seqno, c.cbArg)
	}
}

// Read issues n next() calls for every pull-mode data ID in the request list
// (as Next(n) does), then blocks popping up to n records from the queue,
// invoking the callback for
// each. A failure in next does not prevent draining already-available
// data. Returns Intr if the queue was interrupted before any record became
// available.
func (c *Context) Read(n int) error {
	c.mu.Lock()
	if c.state != ctxActive {
		c.mu.Unlock()
		return newErr("Read", CodeCtxNotActive, "context not active")
	}
	c.mu.Unlock()

	c.Next(n)

	recs, err := c.queue.PopBlocking(n)
	if err != nil {
		return wrapErr("Read", "", err)
	}
	c.dispatch(recs)
	return nil
}

// ReadNowait is like Read but uses a non-blocking pop and does not issue
// next(). Returns the number of records delivered to the callback.
func (c *Context) ReadNowait(n int) (int, error) {
	c.mu.Lock()
	if c.state != ctxActive {
		c.mu.Unlock()
		return 0, newErr("ReadNowait", CodeCtxNotActive, "context not active")
	}
	c.mu.Unlock()

	recs := c.queue.PopNonblocking(n)
	c.dispatch(recs)
	return len(recs), nil
}

// ReadBytesNowait pops contiguous records while their cumulative size stays
// within maxBytes, never blocking and never splitting a record.
func (c *Context) ReadBytesNowait(maxBytes uint32) (records int, bytes uint32, err error) {
	c.mu.Lock()
	if c.state != ctxActive {
		c.mu.Unlock()
		return 0, 0, newErr("ReadBytesNowait", CodeCtxNotActive, "context not active")
	}
	c.mu.Unlock()

	recs, total := c.queue.PopBytesNonblocking(maxBytes)
	c.dispatch(recs)
	return len(recs), total, nil
}

// ReadAllNowait pops and delivers every record currently queued.
func (c *Context) ReadAllNowait() (int, error) {
	c.mu.Lock()
	if c.state != ctxActive {
		c.mu.Unlock()
		return 0, newErr("ReadAllNowait", CodeCtxNotActive, "context not active")
	}
	c.mu.Unlock()

	recs := c.queue.PopAllNonblocking()
	c.dispatch(recs)
	return len(recs), nil
}

// QueueLength returns the number of records currently queued.
func (c *Context) QueueLength() int {
	return c.queue.Len()
}

// MaxQueueLength returns the queue's fixed capacity.
func (c *Context) MaxQueueLength() int {
	return c.queue.Cap()
}
