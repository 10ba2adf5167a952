// Package drivers holds small reference driver implementations that
// exercise the hound core end to end: a pull-mode counter, a no-op
// lifecycle driver, and a push-mode file reader. Each registers its kind
// with hound.RegisterKind from an init func.
package drivers

import (
	"encoding/binary"
	"strconv"
	"sync"

	"github.com/ehrlich-b/hound"
	"github.com/ehrlich-b/hound/internal/interfaces"
)

// CounterDataID is the single data ID the counter driver advertises.
const CounterDataID uint32 = 1001

func init() {
	hound.RegisterKind("counter", newCounterDriver)
}

func newCounterDriver(schemaBase, schemaFile string) (interfaces.Driver, error) {
	return &CounterDriver{}, nil
}

// CounterDriver is a pull-mode driver that emits one monotonically
// increasing int64 value per next() call, starting from an initial value
// given as its first init arg (default 0).
type CounterDriver struct {
	mu    sync.Mutex
	value int64
}

func (d *CounterDriver) Init(path string, args []interfaces.InitArg) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.value = 0
	if len(args) == 0 {
		return nil
	}
	switch v := args[0].Value.(type) {
	case int64:
		d.value = v
	case int:
		d.value = int64(v)
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return err
		}
		d.value = n
	}
	return nil
}

func (d *CounterDriver) Destroy() error { return nil }

func (d *CounterDriver) DeviceName() (string, error) { return "counter", nil }

func (d *CounterDriver) DataDesc() ([]interfaces.DataDesc, error) {
	return []interfaces.DataDesc{
		{DataID: CounterDataID, Enabled: true, Periods: []uint64{hound.PullPeriod}, Sched: interfaces.SchedPull},
	}, nil
}

func (d *CounterDriver) SetData(h interfaces.Handle, requests []interfaces.DataRequest) error {
	return nil
}

func (d *CounterDriver) Parse(h interfaces.Handle, buf []byte) (int, error) {
	return len(buf), nil
}

func (d *CounterDriver) Start(h interfaces.Handle) (int, error) {
	return -1, nil
}

func (d *CounterDriver) Next(h interfaces.Handle, dataID uint32) error {
	if dataID != CounterDataID {
		return nil
	}
	d.mu.Lock()
	v := d.value
	d.value++
	d.mu.Unlock()

	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(v))
	h.PushRecords([]interfaces.RawRecord{{DataID: CounterDataID, Data: buf}})
	return nil
}

func (d *CounterDriver) Stop(h interfaces.Handle) error { return nil }

var _ interfaces.Driver = (*CounterDriver)(nil)
