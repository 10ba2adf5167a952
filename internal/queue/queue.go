// Package queue implements the bounded, thread-safe record queue that
// sits between the multiplexer's fan-out step and a consumer context's
// Read/Next calls (spec §4.5).
package queue

import (
	"errors"
	"sync"
)

// ErrInterrupted is returned by a blocking pop when the queue was
// interrupted (e.g. by Context.Stop) rather than drained normally.
var ErrInterrupted = errors.New("queue: interrupted")

// ErrTooSmall is returned by New when capacity is non-positive.
var ErrTooSmall = errors.New("queue: capacity must be positive")

type entry struct {
	rec *Record
	env *Envelope
}

// Queue is a bounded FIFO of record envelopes, backing one context. All
// mutation happens under mu; waiters on notEmpty/notFull wake whenever
// either predicate changes or interrupted rises.
type Queue struct {
	mu          sync.Mutex
	notEmpty    *sync.Cond
	notFull     *sync.Cond
	buf         []entry
	head        int
	len         int
	interrupted bool
	nextSeqno   uint64
}

// New allocates a queue with the given fixed capacity.
func New(capacity int) (*Queue, error) {
	if capacity <= 0 {
		return nil, ErrTooSmall
	}
	q := &Queue{buf: make([]entry, capacity)}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q, nil
}

// Cap returns the queue's fixed capacity.
func (q *Queue) Cap() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}

// Len returns the number of records currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.len
}

// ResetSeqno resets the per-context seqno counter to zero. Called by
// Context.Start at the beginning of each start cycle (spec §8: "seqno
// resets on each start()").
func (q *Queue) ResetSeqno() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextSeqno = 0
}

// Push enqueues env, assigning it the next seqno for this queue. If the
// queue is full, the oldest record is dropped (its envelope released) to
// make room — the overflow policy is newest-wins (spec §4.5, §9). Returns
// true if an older record was dropped to make room.
func (q *Queue) Push(env *Envelope) (dropped bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.len == len(q.buf) {
		oldestIdx := q.head
		q.buf[oldestIdx].env.Release()
		q.buf[oldestIdx] = entry{}
		q.head = (q.head + 1) % len(q.buf)
		q.len--
		dropped = true
	}

	tail := (q.head + q.len) % len(q.buf)
	rec := env.Stamp(q.nextSeqno)
	q.nextSeqno++
	q.buf[tail] = entry{rec: rec, env: env}
	q.len++
	q.notEmpty.Signal()
	return dropped
}

func (q *Queue) popLocked(n int) []*Record {
	if n > q.len {
		n = q.len
	}
	out := make([]*Record, 0, n)
	for i := 0; i < n; i++ {
		e := q.buf[q.head]
		q.buf[q.head] = entry{}
		q.head = (q.head + 1) % len(q.buf)
		q.len--
		out = append(out, e.rec)
		e.env.Release()
	}
	if n > 0 {
		q.notFull.Signal()
	}
	return out
}

// PopBlocking pops up to n records, blocking while the queue is empty. It
// returns ErrInterrupted if Interrupt is called (or was already in effect)
// before any record became available.
func (q *Queue) PopBlocking(n int) ([]*Record, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.len == 0 && !q.interrupted {
		q.notEmpty.Wait()
	}
	if q.len == 0 && q.interrupted {
		return nil, ErrInterrupted
	}
	return q.popLocked(n), nil
}

// PopNonblocking pops up to n records without waiting; returns an empty
// slice if the queue is empty.
func (q *Queue) PopNonblocking(n int) []*Record {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked(n)
}

// PopAllNonblocking pops every record currently queued, without waiting.
func (q *Queue) PopAllNonblocking() []*Record {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked(q.len)
}

// PopBytesNonblocking pops contiguous records from the head while the
// cumulative size stays within maxBytes, stopping before exceeding it. It
// never blocks and never splits a record: if the single next record's size
// exceeds maxBytes, it returns no records and 0 bytes.
func (q *Queue) PopBytesNonblocking(maxBytes uint32) ([]*Record, uint32) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var total uint32
	count := 0
	for count < q.len {
		idx := (q.head + count) % len(q.buf)
		sz := q.buf[idx].rec.Size
		if total+sz > maxBytes {
			break
		}
		total += sz
		count++
	}
	return q.popLocked(count), total
}

// Interrupt sets the interrupted flag and wakes all waiters. A subsequent
// PopBlocking returns ErrInterrupted without producing data. The flag
// persists until Resume is called (typically by Context.Start).
func (q *Queue) Interrupt() {
	q.mu.Lock()
	q.interrupted = true
	q.mu.Unlock()
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

// Resume clears the interrupted flag, allowing PopBlocking to wait again.
func (q *Queue) Resume() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.interrupted = false
}

// Drain pops and releases everything currently queued, used at teardown.
func (q *Queue) Drain() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.len > 0 {
		e := q.buf[q.head]
		q.buf[q.head] = entry{}
		q.head = (q.head + 1) % len(q.buf)
		q.len--
		e.env.Release()
	}
	q.notFull.Broadcast()
}

// Resize rebuilds the ring with a new capacity. If flush is true, all
// outstanding records are dropped. If flush is false and the new capacity
// is smaller than the current length, the oldest records are dropped until
// it fits.
func (q *Queue) Resize(capacity int, flush bool) error {
	if capacity <= 0 {
		return ErrTooSmall
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	if flush {
		for i := 0; i < q.len; i++ {
			idx := (q.head + i) % len(q.buf)
			q.buf[idx].env.Release()
		}
		q.buf = make([]entry, capacity)
		q.head, q.len = 0, 0
		q.notFull.Broadcast()
		return nil
	}

	keep := q.len
	drop := 0
	if keep > capacity {
		drop = keep - capacity
		keep = capacity
	}
	newBuf := make([]entry, capacity)
	for i := 0; i < drop; i++ {
		idx := (q.head + i) % len(q.buf)
		q.buf[idx].env.Release()
	}
	for i := 0; i < keep; i++ {
		idx := (q.head + drop + i) % len(q.buf)
		newBuf[i] = q.buf[idx]
	}
	q.buf = newBuf
	q.head = 0
	q.len = keep
	q.notFull.Broadcast()
	return nil
}
