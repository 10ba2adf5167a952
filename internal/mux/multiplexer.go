package mux

import (
	"encoding/binary"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/ehrlich-b/hound/internal/constants"
	"github.com/ehrlich-b/hound/internal/interfaces"
	"github.com/ehrlich-b/hound/internal/queue"
)

// fdEntry is one started driver's registration: its descriptor (negative
// for a driver with nothing to poll), any unconsumed trailing bytes from
// the last Parse call, and the set of queues currently subscribed to its
// data IDs.
type fdEntry struct {
	rec     *DriverRecord
	fd      int
	pending []byte
	subs    map[*queue.Queue]map[uint32]struct{}
}

// Multiplexer is the single-threaded I/O event loop (spec §4.4): one
// goroutine, one epoll instance, one eventfd used only to break out of
// EpollWait on Close. Every push-mode driver's descriptor is registered
// here; readability fans through Parse into subscribed queues.
type Multiplexer struct {
	mu     sync.Mutex
	epfd   int
	wakeFd int
	fds    map[int]*fdEntry
	byRec  map[*DriverRecord]*fdEntry

	logger   interfaces.Logger
	observer interfaces.Observer

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a multiplexer and starts its poll loop goroutine. A nil
// logger or observer is replaced with a no-op implementation.
func New(logger interfaces.Logger, observer interfaces.Observer) (*Multiplexer, error) {
	if logger == nil {
		logger = noopLogger{}
	}
	if observer == nil {
		observer = noopObserver{}
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	wakeFd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, err
	}
	m := &Multiplexer{
		epfd:     epfd,
		wakeFd:   wakeFd,
		fds:      make(map[int]*fdEntry),
		byRec:    make(map[*DriverRecord]*fdEntry),
		logger:   logger,
		observer: observer,
		stopCh:   make(chan struct{}),
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakeFd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFd, &ev); err != nil {
		unix.Close(wakeFd)
		unix.Close(epfd)
		return nil, err
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.loop()
	}()
	return m, nil
}

// noopLogger and noopObserver are the package-local defaults used when a
// caller passes nil to New/NewRegistry, so the hot dispatch/poll paths
// never need a nil check against interfaces.Logger/Observer.
type noopLogger struct{}

func (noopLogger) Printf(string, ...any) {}
func (noopLogger) Debugf(string, ...any) {}
func (noopLogger) Warnf(string, ...any)  {}

type noopObserver struct{}

func (noopObserver) ObserveFanout(uint32, int)            {}
func (noopObserver) ObserveDrop(uint32)                   {}
func (noopObserver) ObserveQueueDepth(int, int)           {}
func (noopObserver) ObserveDriverError(string, string, error) {}

var (
	_ interfaces.Logger   = noopLogger{}
	_ interfaces.Observer = noopObserver{}
)

// Close stops the poll loop and releases the epoll and eventfd descriptors.
// It does not close any driver fds; RemoveFd handles those individually as
// drivers stop.
func (m *Multiplexer) Close() error {
	close(m.stopCh)
	m.wakeLoop()
	m.wg.Wait()
	unix.Close(m.wakeFd)
	return unix.Close(m.epfd)
}

func (m *Multiplexer) wakeLoop() {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], 1)
	unix.Write(m.wakeFd, b[:])
}

// AddFd registers rec with the multiplexer, called by the registry on the
// first activation of any of rec's data IDs. fd may be negative for a
// purely pull-mode driver that never produces a pollable descriptor — in
// that case rec still gets subscription bookkeeping (so push_records from
// Next reaches fan-out), it is just never handed to epoll.
func (m *Multiplexer) AddFd(rec *DriverRecord, fd int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byRec[rec]; exists {
		return ErrDriverInUse
	}
	fe := &fdEntry{rec: rec, fd: fd, subs: make(map[*queue.Queue]map[uint32]struct{})}
	if fd >= 0 {
		if err := unix.SetNonblock(fd, true); err != nil {
			return err
		}
		ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
		if err := unix.EpollCtl(m.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
			return err
		}
		m.fds[fd] = fe
	}
	m.byRec[rec] = fe
	return nil
}

// RemoveFd unregisters rec. Called by the registry just before Stop. Does
// not close the fd; the driver owns that.
func (m *Multiplexer) RemoveFd(rec *DriverRecord) error {
	m.mu.Lock()
	fe, ok := m.byRec[rec]
	if !ok {
		m.mu.Unlock()
		return ErrNotRegistered
	}
	delete(m.byRec, rec)
	if fe.fd < 0 {
		m.mu.Unlock()
		return nil
	}
	delete(m.fds, fe.fd)
	m.mu.Unlock()
	return unix.EpollCtl(m.epfd, unix.EPOLL_CTL_DEL, fe.fd, nil)
}

// Subscribe marks q as wanting rec's dataID records. Idempotent.
func (m *Multiplexer) Subscribe(rec *DriverRecord, dataID uint32, q *queue.Queue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	fe, ok := m.byRec[rec]
	if !ok {
		return ErrNotRegistered
	}
	ids, ok := fe.subs[q]
	if !ok {
		ids = make(map[uint32]struct{})
		fe.subs[q] = ids
	}
	ids[dataID] = struct{}{}
	return nil
}

// Unsubscribe removes q's interest in rec's dataID. Idempotent.
func (m *Multiplexer) Unsubscribe(rec *DriverRecord, dataID uint32, q *queue.Queue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	fe, ok := m.byRec[rec]
	if !ok {
		return ErrNotRegistered
	}
	ids, ok := fe.subs[q]
	if !ok {
		return nil
	}
	delete(ids, dataID)
	if len(ids) == 0 {
		delete(fe.subs, q)
	}
	return nil
}

// dispatch fans one raw record out to every queue subscribed to its data
// ID, wrapping it in a single refcounted Envelope so its payload is copied
// out of the (pool-owned) read buffer exactly once regardless of fan-out.
func (m *Multiplexer) dispatch(rec *DriverRecord, rr interfaces.RawRecord) {
	m.mu.Lock()
	fe, ok := m.byRec[rec]
	if !ok {
		m.mu.Unlock()
		return
	}
	var targets []*queue.Queue
	for q, ids := range fe.subs {
		if _, want := ids[rr.DataID]; want {
			targets = append(targets, q)
		}
	}
	m.mu.Unlock()

	if len(targets) == 0 {
		if m.observer != nil {
			m.observer.ObserveDrop(rr.DataID)
		}
		return
	}

	owned := rr
	owned.Data = append([]byte(nil), rr.Data...)
	env := queue.NewEnvelope(owned, len(targets), nil)
	for _, q := range targets {
		if q.Push(env) && m.logger != nil {
			m.logger.Warnf("mux: queue full, dropped oldest record to enqueue data id %d", rr.DataID)
		}
	}
	if m.observer != nil {
		m.observer.ObserveFanout(rr.DataID, len(targets))
	}
}

func (m *Multiplexer) loop() {
	events := make([]unix.EpollEvent, 32)
	for {
		n, err := unix.EpollWait(m.epfd, events, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			if m.logger != nil {
				m.logger.Warnf("mux: epoll_wait: %v", err)
			}
			return
		}
		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			if fd == m.wakeFd {
				var b [8]byte
				unix.Read(m.wakeFd, b[:])
				select {
				case <-m.stopCh:
					return
				default:
				}
				continue
			}
			m.mu.Lock()
			fe := m.fds[fd]
			m.mu.Unlock()
			if fe == nil {
				continue
			}
			m.handleReadable(fe)
		}
	}
}

// handleReadable reads one buffer's worth from fe.fd, hands the prefix
// (previous pending bytes plus the new read) to the driver's Parse under
// the op-gate, and keeps whatever Parse didn't consume as the new pending
// prefix for next time.
func (m *Multiplexer) handleReadable(fe *fdEntry) {
	buf := queue.GetBuffer(constants.ReadBufSize128k)
	n, rerr := unix.Read(fe.fd, buf)
	if n <= 0 {
		queue.PutBuffer(buf)
		if rerr != nil && rerr != unix.EAGAIN && m.logger != nil {
			m.logger.Warnf("mux: read %s: %v", fe.rec.path, rerr)
		}
		return
	}

	poolOwned := len(fe.pending) == 0
	var full []byte
	if poolOwned {
		full = buf[:n]
	} else {
		full = append(append([]byte(nil), fe.pending...), buf[:n]...)
		queue.PutBuffer(buf)
	}

	var consumed int
	err := fe.rec.call(m, func(h interfaces.Handle) error {
		var perr error
		consumed, perr = fe.rec.driver.Parse(h, full)
		return perr
	})
	if err != nil {
		consumed = len(full)
		if m.logger != nil {
			m.logger.Warnf("mux: parse %s: %v", fe.rec.path, err)
		}
		if m.observer != nil {
			m.observer.ObserveDriverError(fe.rec.path, "parse", err)
		}
	}
	if consumed < 0 || consumed > len(full) {
		consumed = len(full)
	}
	fe.pending = append([]byte(nil), full[consumed:]...)
	if poolOwned {
		queue.PutBuffer(buf)
	}
}
