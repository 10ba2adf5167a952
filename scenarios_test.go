package hound

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehrlich-b/hound/internal/interfaces"
)

// Scenario 1: counter/pull driver delivers values 5..14 at seqnos 0..9.
func TestScenarioCounterDriverDeliversOrderedValues(t *testing.T) {
	h := newTestHound(t)

	value := int64(5)
	drv := &MockDriver{
		Descs: []interfaces.DataDesc{
			{DataID: 1, Enabled: true, Periods: []uint64{PullPeriod}, Sched: interfaces.SchedPull},
		},
		NextFunc: func(hnd interfaces.Handle, dataID uint32) error {
			buf := make([]byte, 8)
			binary.LittleEndian.PutUint64(buf, uint64(value))
			hnd.PushRecords([]interfaces.RawRecord{{DataID: 1, Data: buf}})
			value++
			return nil
		},
	}
	_, err := h.registry.Register("/dev/counter", drv, nil)
	require.NoError(t, err)

	var mu sync.Mutex
	var gotValues []int64
	var gotSeqnos []uint64

	ctx, err := h.AllocCtx(Request{
		QueueLen: 100,
		Requests: []DataRequest{{DataID: 1, PeriodNs: PullPeriod}},
		Callback: func(rec *Record, seqno uint64, _ any) {
			mu.Lock()
			gotValues = append(gotValues, int64(binary.LittleEndian.Uint64(rec.Data)))
			gotSeqnos = append(gotSeqnos, seqno)
			mu.Unlock()
		},
	})
	require.NoError(t, err)
	require.NoError(t, ctx.Start())
	defer ctx.Free()

	require.NoError(t, ctx.Next(10))
	require.NoError(t, ctx.Read(10))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, gotValues, 10)
	for i := 0; i < 10; i++ {
		assert.Equal(t, int64(5+i), gotValues[i])
		assert.Equal(t, uint64(i), gotSeqnos[i])
	}
}

// Scenario 2: a push-mode file driver's record payloads concatenate back
// into the source file's exact bytes.
func TestScenarioFileDriverByteExactRoundTrip(t *testing.T) {
	h := newTestHound(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	contents := []byte("the quick brown fox jumps over the lazy dog")
	require.NoError(t, os.WriteFile(path, contents, 0o644))

	RegisterKind("hound-test-file", func(schemaBase, schemaFile string) (interfaces.Driver, error) {
		return &fileLikeDriver{path: path}, nil
	})
	require.NoError(t, h.RegisterDriver("hound-test-file", path, "", "", nil))

	var mu sync.Mutex
	var got []byte
	ctx, err := h.AllocCtx(Request{
		QueueLen: 16,
		Requests: []DataRequest{{DataID: 1, PeriodNs: PullPeriod}},
		Callback: func(rec *Record, _ uint64, _ any) {
			mu.Lock()
			got = append(got, rec.Data...)
			mu.Unlock()
		},
	})
	require.NoError(t, err)
	require.NoError(t, ctx.Start())
	defer ctx.Free()

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		done := len(got) >= len(contents)
		mu.Unlock()
		if done {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for file contents to be delivered")
		}
		ctx.ReadNowait(16)
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, contents, got)
}

// fileLikeDriver is a minimal push-mode stand-in for drivers.FileDriver,
// avoiding an import cycle (drivers imports the hound package).
type fileLikeDriver struct {
	path string
	f    *os.File
}

func (d *fileLikeDriver) Init(string, []interfaces.InitArg) error { return nil }
func (d *fileLikeDriver) Destroy() error                          { return nil }
func (d *fileLikeDriver) DeviceName() (string, error)             { return "file", nil }
func (d *fileLikeDriver) DataDesc() ([]interfaces.DataDesc, error) {
	return []interfaces.DataDesc{{DataID: 1, Enabled: true, Periods: []uint64{PullPeriod}, Sched: interfaces.SchedPush}}, nil
}
func (d *fileLikeDriver) SetData(interfaces.Handle, []interfaces.DataRequest) error { return nil }
func (d *fileLikeDriver) Parse(h interfaces.Handle, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	h.PushRecords([]interfaces.RawRecord{{DataID: 1, Data: append([]byte(nil), buf...)}})
	return len(buf), nil
}
func (d *fileLikeDriver) Start(interfaces.Handle) (int, error) {
	f, err := os.Open(d.path)
	if err != nil {
		return -1, err
	}
	d.f = f
	return int(f.Fd()), nil
}
func (d *fileLikeDriver) Next(interfaces.Handle, uint32) error { return nil }
func (d *fileLikeDriver) Stop(interfaces.Handle) error {
	if d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	return err
}

// Scenario 3: a no-op driver's full lifecycle succeeds with no data ever
// produced.
func TestScenarioNopDriverLifecycle(t *testing.T) {
	h := newTestHound(t)

	drv := &MockDriver{
		Descs: []interfaces.DataDesc{
			{DataID: 1, Enabled: true, Periods: []uint64{PullPeriod}, Sched: interfaces.SchedPull},
			{DataID: 2, Enabled: true, Periods: []uint64{PullPeriod}, Sched: interfaces.SchedPull},
		},
	}
	_, err := h.registry.Register("/dev/nop", drv, nil)
	require.NoError(t, err)

	ctx, err := h.AllocCtx(Request{
		QueueLen: DefaultQueueCapacity,
		Requests: []DataRequest{{DataID: 1, PeriodNs: PullPeriod}, {DataID: 2, PeriodNs: PullPeriod}},
		Callback: func(*Record, uint64, any) { t.Fatal("no-op driver must never deliver a record") },
	})
	require.NoError(t, err)
	require.NoError(t, ctx.Start())
	assert.Equal(t, 0, ctx.QueueLength())
	require.NoError(t, ctx.Stop())
	require.NoError(t, ctx.Free())
	require.NoError(t, h.UnregisterDriver("/dev/nop"))
}

// Scenario 4: two drivers advertising the same data ID conflict on the
// second registration, and the registry is left unmutated.
func TestScenarioConflictingDriversRejectsSecondRegistration(t *testing.T) {
	h := newTestHound(t)

	drvA := pullDriver(1)
	_, err := h.registry.Register("/dev/a", drvA, nil)
	require.NoError(t, err)

	drvB := pullDriver(1)
	_, err = h.registry.Register("/dev/b", drvB, nil)
	require.Error(t, err)
	assert.True(t, IsCode(wrapErr("Register", "/dev/b", err), CodeConflictingDrivers))

	rec, err := h.registry.DriverGet(1)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), rec.DevID())
}

// Scenario 5: a capacity-4 queue overflowing with 10 pushes before any pop
// keeps the newest 4 records, seqnos 6..9.
func TestScenarioQueueOverflowKeepsNewestRecords(t *testing.T) {
	h := newTestHound(t)

	var nextCalls int
	drv := &MockDriver{
		Descs: []interfaces.DataDesc{
			{DataID: 1, Enabled: true, Periods: []uint64{PullPeriod}, Sched: interfaces.SchedPull},
		},
		NextFunc: func(hnd interfaces.Handle, dataID uint32) error {
			buf := make([]byte, 8)
			binary.LittleEndian.PutUint64(buf, uint64(nextCalls))
			nextCalls++
			hnd.PushRecords([]interfaces.RawRecord{{DataID: 1, Data: buf}})
			return nil
		},
	}
	_, err := h.registry.Register("/dev/counter", drv, nil)
	require.NoError(t, err)

	var seqnos []uint64
	ctx, err := h.AllocCtx(Request{
		QueueLen: 4,
		Requests: []DataRequest{{DataID: 1, PeriodNs: PullPeriod}},
		Callback: func(_ *Record, seqno uint64, _ any) { seqnos = append(seqnos, seqno) },
	})
	require.NoError(t, err)
	require.NoError(t, ctx.Start())
	defer ctx.Free()

	require.NoError(t, ctx.Next(10))

	n, err := ctx.ReadAllNowait()
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []uint64{6, 7, 8, 9}, seqnos)
}

// Scenario 6: a blocked read returns Intr within bounded time once stop is
// called from another goroutine.
func TestScenarioInterruptUnblocksReadWithinBoundedTime(t *testing.T) {
	h := newTestHound(t)
	drv := pullDriver(1)
	_, err := h.registry.Register("/dev/a", drv, nil)
	require.NoError(t, err)

	ctx, err := h.AllocCtx(Request{
		QueueLen: DefaultQueueCapacity,
		Requests: []DataRequest{{DataID: 1, PeriodNs: PullPeriod}},
		Callback: func(*Record, uint64, any) {},
	})
	require.NoError(t, err)
	require.NoError(t, ctx.Start())

	start := time.Now()
	readErr := make(chan error, 1)
	go func() {
		readErr <- ctx.Read(1)
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, ctx.Stop())

	select {
	case err := <-readErr:
		require.Error(t, err)
		assert.True(t, IsCode(err, CodeIntr))
		assert.Less(t, time.Since(start), 2*time.Second)
	case <-time.After(2 * time.Second):
		t.Fatal("read was not unblocked within bounded time")
	}
}

// Boundary: alloc_ctx with queue_len == 0 fails with QueueTooSmall.
func TestBoundaryZeroQueueLenRejected(t *testing.T) {
	h := newTestHound(t)
	drv := pullDriver(1)
	_, err := h.registry.Register("/dev/a", drv, nil)
	require.NoError(t, err)

	_, err = h.AllocCtx(Request{
		Requests: []DataRequest{{DataID: 1, PeriodNs: PullPeriod}},
		Callback: func(*Record, uint64, any) {},
	})
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeQueueTooSmall))
}

// Boundary: requesting more than MaxDataRequest entries fails.
func TestBoundaryTooManyDataRequests(t *testing.T) {
	h := newTestHound(t)
	requests := make([]DataRequest, MaxDataRequest+1)
	for i := range requests {
		requests[i] = DataRequest{DataID: uint32(i + 1), PeriodNs: PullPeriod}
	}
	_, err := h.AllocCtx(Request{Requests: requests, Callback: func(*Record, uint64, any) {}})
	require.Error(t, err)
	assert.True(t, IsCode(err, CodeTooMuchDataRequested))
}
