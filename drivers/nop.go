package drivers

import (
	"github.com/ehrlich-b/hound"
	"github.com/ehrlich-b/hound/internal/interfaces"
)

// NOP1 and NOP2 are the two inert data IDs the no-op driver advertises,
// used to exercise register/alloc/start/stop/free/unregister with no data
// ever produced (spec §8 scenario 3).
const (
	NOP1 uint32 = 2001
	NOP2 uint32 = 2002
)

func init() {
	hound.RegisterKind("nop", newNopDriver)
}

func newNopDriver(schemaBase, schemaFile string) (interfaces.Driver, error) {
	return &NopDriver{}, nil
}

// NopDriver implements every operation as a no-op; it never emits a
// record.
type NopDriver struct{}

func (d *NopDriver) Init(path string, args []interfaces.InitArg) error { return nil }

func (d *NopDriver) Destroy() error { return nil }

func (d *NopDriver) DeviceName() (string, error) { return "nop", nil }

func (d *NopDriver) DataDesc() ([]interfaces.DataDesc, error) {
	return []interfaces.DataDesc{
		{DataID: NOP1, Enabled: true, Periods: []uint64{hound.PullPeriod}, Sched: interfaces.SchedPull},
		{DataID: NOP2, Enabled: true, Periods: []uint64{hound.PullPeriod}, Sched: interfaces.SchedPull},
	}, nil
}

func (d *NopDriver) SetData(h interfaces.Handle, requests []interfaces.DataRequest) error { return nil }

func (d *NopDriver) Parse(h interfaces.Handle, buf []byte) (int, error) { return len(buf), nil }

func (d *NopDriver) Start(h interfaces.Handle) (int, error) { return -1, nil }

func (d *NopDriver) Next(h interfaces.Handle, dataID uint32) error { return nil }

func (d *NopDriver) Stop(h interfaces.Handle) error { return nil }

var _ interfaces.Driver = (*NopDriver)(nil)
