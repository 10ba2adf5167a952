package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehrlich-b/hound/internal/interfaces"
)

func rawRecord(dataID uint32, size int) interfaces.RawRecord {
	return interfaces.RawRecord{
		DataID: dataID,
		DevID:  1,
		Data:   make([]byte, size),
	}
}

func TestNewRejectsNonPositiveCapacity(t *testing.T) {
	_, err := New(0)
	assert.ErrorIs(t, err, ErrTooSmall)

	_, err = New(-1)
	assert.ErrorIs(t, err, ErrTooSmall)
}

func TestPushPopOrderAndSeqno(t *testing.T) {
	q, err := New(4)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		env := NewEnvelope(rawRecord(1, 8), 1, nil)
		q.Push(env)
	}

	recs := q.PopNonblocking(4)
	require.Len(t, recs, 4)
	for i, r := range recs {
		assert.Equal(t, uint64(i), r.Seqno)
	}
}

func TestOverflowDropsOldest(t *testing.T) {
	q, err := New(4)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		env := NewEnvelope(rawRecord(1, 8), 1, nil)
		q.Push(env)
	}

	assert.Equal(t, 4, q.Len())
	recs := q.PopNonblocking(4)
	require.Len(t, recs, 4)
	assert.Equal(t, []uint64{6, 7, 8, 9}, []uint64{recs[0].Seqno, recs[1].Seqno, recs[2].Seqno, recs[3].Seqno})
}

func TestOverflowReleasesDroppedEnvelope(t *testing.T) {
	q, err := New(1)
	require.NoError(t, err)

	released := false
	first := NewEnvelope(rawRecord(1, 8), 1, func([]byte) { released = true })
	q.Push(first)
	second := NewEnvelope(rawRecord(1, 8), 1, nil)
	q.Push(second)

	assert.True(t, released)
}

func TestPopNonblockingEmptyReturnsNoRecords(t *testing.T) {
	q, err := New(4)
	require.NoError(t, err)
	recs := q.PopNonblocking(10)
	assert.Empty(t, recs)
}

func TestPopBytesNonblockingDoesNotSplitRecords(t *testing.T) {
	q, err := New(4)
	require.NoError(t, err)

	q.Push(NewEnvelope(rawRecord(1, 10), 1, nil))
	q.Push(NewEnvelope(rawRecord(1, 10), 1, nil))

	recs, total := q.PopBytesNonblocking(5)
	assert.Empty(t, recs)
	assert.Equal(t, uint32(0), total)

	recs, total = q.PopBytesNonblocking(15)
	assert.Len(t, recs, 1)
	assert.Equal(t, uint32(10), total)
}

func TestInterruptUnblocksPendingPop(t *testing.T) {
	q, err := New(4)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := q.PopBlocking(1)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	q.Interrupt()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrInterrupted)
	case <-time.After(time.Second):
		t.Fatal("PopBlocking did not return after Interrupt")
	}
}

func TestResumeAllowsBlockingAgain(t *testing.T) {
	q, err := New(4)
	require.NoError(t, err)

	q.Interrupt()
	_, err = q.PopBlocking(1)
	assert.ErrorIs(t, err, ErrInterrupted)

	q.Resume()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		q.Push(NewEnvelope(rawRecord(1, 4), 1, nil))
	}()

	recs, err := q.PopBlocking(1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	wg.Wait()
}

func TestResizeFlushDropsAll(t *testing.T) {
	q, err := New(4)
	require.NoError(t, err)
	released := 0
	for i := 0; i < 4; i++ {
		q.Push(NewEnvelope(rawRecord(1, 4), 1, func([]byte) { released++ }))
	}
	require.NoError(t, q.Resize(2, true))
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 4, released)
}

func TestResizeShrinkKeepsNewest(t *testing.T) {
	q, err := New(4)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		q.Push(NewEnvelope(rawRecord(1, 4), 1, nil))
	}
	require.NoError(t, q.Resize(2, false))
	recs := q.PopAllNonblocking()
	require.Len(t, recs, 2)
	assert.Equal(t, uint64(2), recs[0].Seqno)
	assert.Equal(t, uint64(3), recs[1].Seqno)
}

func TestDrainReleasesEverything(t *testing.T) {
	q, err := New(4)
	require.NoError(t, err)
	released := 0
	for i := 0; i < 3; i++ {
		q.Push(NewEnvelope(rawRecord(1, 4), 1, func([]byte) { released++ }))
	}
	q.Drain()
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 3, released)
}

func TestResetSeqnoRestartsAtZero(t *testing.T) {
	q, err := New(4)
	require.NoError(t, err)
	q.Push(NewEnvelope(rawRecord(1, 4), 1, nil))
	q.PopAllNonblocking()
	q.ResetSeqno()
	q.Push(NewEnvelope(rawRecord(1, 4), 1, nil))
	recs := q.PopAllNonblocking()
	require.Len(t, recs, 1)
	assert.Equal(t, uint64(0), recs[0].Seqno)
}
