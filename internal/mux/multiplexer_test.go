package mux

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehrlich-b/hound/internal/interfaces"
	"github.com/ehrlich-b/hound/internal/queue"
)

type echoDriver struct {
	rfd int
}

func (d *echoDriver) Init(string, []interfaces.InitArg) error { return nil }
func (d *echoDriver) Destroy() error                           { return nil }
func (d *echoDriver) DeviceName() (string, error)              { return "echo", nil }
func (d *echoDriver) DataDesc() ([]interfaces.DataDesc, error) {
	return []interfaces.DataDesc{{DataID: 42, Enabled: true, Periods: []uint64{0}, Sched: interfaces.SchedPush}}, nil
}
func (d *echoDriver) SetData(interfaces.Handle, []interfaces.DataRequest) error { return nil }
func (d *echoDriver) Parse(h interfaces.Handle, buf []byte) (int, error) {
	h.PushRecords([]interfaces.RawRecord{{DataID: 42, Data: append([]byte(nil), buf...)}})
	return len(buf), nil
}
func (d *echoDriver) Start(interfaces.Handle) (int, error) { return d.rfd, nil }
func (d *echoDriver) Next(interfaces.Handle, uint32) error { return nil }
func (d *echoDriver) Stop(interfaces.Handle) error         { return nil }

func TestMultiplexerFansOutPushRecordsToSubscribedQueue(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer w.Close()

	m := newTestMux(t)
	reg := NewRegistry(m, nil, nil)

	drv := &echoDriver{rfd: int(r.Fd())}
	rec, err := reg.Register("/dev/echo", drv, nil)
	require.NoError(t, err)

	q, err := queue.New(4)
	require.NoError(t, err)
	require.NoError(t, reg.Ref(rec, q, []interfaces.DataRequest{{DataID: 42, PeriodNs: 0}}))

	_, err = w.Write([]byte("hello"))
	require.NoError(t, err)

	recs, perr := q.PopBlocking(1)
	require.NoError(t, perr)
	require.Len(t, recs, 1)
	assert.Equal(t, "hello", string(recs[0].Data))
	assert.Equal(t, uint32(42), recs[0].DataID)
}

// lineDriver only consumes complete newline-terminated lines from the
// buffer it's handed, leaving any trailing partial line for the
// multiplexer to prefix onto the next read.
type lineDriver struct {
	rfd int
}

func (d *lineDriver) Init(string, []interfaces.InitArg) error { return nil }
func (d *lineDriver) Destroy() error                           { return nil }
func (d *lineDriver) DeviceName() (string, error)              { return "lines", nil }
func (d *lineDriver) DataDesc() ([]interfaces.DataDesc, error) {
	return []interfaces.DataDesc{{DataID: 7, Enabled: true, Periods: []uint64{0}, Sched: interfaces.SchedPush}}, nil
}
func (d *lineDriver) SetData(interfaces.Handle, []interfaces.DataRequest) error { return nil }
func (d *lineDriver) Parse(h interfaces.Handle, buf []byte) (int, error) {
	consumed := 0
	for {
		idx := -1
		for i, b := range buf[consumed:] {
			if b == '\n' {
				idx = i
				break
			}
		}
		if idx < 0 {
			break
		}
		line := buf[consumed : consumed+idx]
		h.PushRecords([]interfaces.RawRecord{{DataID: 7, Data: append([]byte(nil), line...)}})
		consumed += idx + 1
	}
	return consumed, nil
}
func (d *lineDriver) Start(interfaces.Handle) (int, error) { return d.rfd, nil }
func (d *lineDriver) Next(interfaces.Handle, uint32) error { return nil }
func (d *lineDriver) Stop(interfaces.Handle) error         { return nil }

func TestMultiplexerPreservesUnconsumedTrailingBytes(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer w.Close()

	m := newTestMux(t)
	reg := NewRegistry(m, nil, nil)

	drv := &lineDriver{rfd: int(r.Fd())}
	rec, err := reg.Register("/dev/lines", drv, nil)
	require.NoError(t, err)

	q, err := queue.New(4)
	require.NoError(t, err)
	require.NoError(t, reg.Ref(rec, q, []interfaces.DataRequest{{DataID: 7, PeriodNs: 0}}))

	_, err = w.Write([]byte("abc"))
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, q.Len(), "no complete line yet, nothing should be queued")

	_, err = w.Write([]byte("def\n"))
	require.NoError(t, err)

	recs, perr := q.PopBlocking(1)
	require.NoError(t, perr)
	require.Len(t, recs, 1)
	assert.Equal(t, "abcdef", string(recs[0].Data))
}

func TestMultiplexerFansOutToMultipleDistinctQueues(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer w.Close()

	m := newTestMux(t)
	reg := NewRegistry(m, nil, nil)

	drv := &echoDriver{rfd: int(r.Fd())}
	rec, err := reg.Register("/dev/echo2", drv, nil)
	require.NoError(t, err)

	qa, err := queue.New(4)
	require.NoError(t, err)
	qb, err := queue.New(4)
	require.NoError(t, err)

	require.NoError(t, reg.Ref(rec, qa, []interfaces.DataRequest{{DataID: 42, PeriodNs: 0}}))
	require.NoError(t, reg.Ref(rec, qb, []interfaces.DataRequest{{DataID: 42, PeriodNs: 0}}))

	_, err = w.Write([]byte("hello"))
	require.NoError(t, err)

	recsA, perr := qa.PopBlocking(1)
	require.NoError(t, perr)
	require.Len(t, recsA, 1)
	assert.Equal(t, "hello", string(recsA[0].Data))

	recsB, perr := qb.PopBlocking(1)
	require.NoError(t, perr)
	require.Len(t, recsB, 1)
	assert.Equal(t, "hello", string(recsB[0].Data))
}

func TestMultiplexerDropsRecordsWithNoSubscriber(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer w.Close()

	m := newTestMux(t)
	reg := NewRegistry(m, nil, nil)

	drv := &echoDriver{rfd: int(r.Fd())}
	rec, err := reg.Register("/dev/echo3", drv, nil)
	require.NoError(t, err)

	q, err := queue.New(4)
	require.NoError(t, err)
	require.NoError(t, reg.Ref(rec, q, []interfaces.DataRequest{{DataID: 42, PeriodNs: 0}}))
	require.NoError(t, reg.Unref(rec, q, []interfaces.DataRequest{{DataID: 42, PeriodNs: 0}}))

	_, err = w.Write([]byte("nobody home"))
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 0, q.Len())
}
