package drivers

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/ehrlich-b/hound"
	"github.com/ehrlich-b/hound/internal/interfaces"
)

// FileDataID is the single data ID the file driver advertises.
const FileDataID uint32 = 3001

// filePushPeriod is the only period value a caller may request for
// FileDataID. The file driver is push-scheduled (Start returns a real fd
// that epoll polls); it has no notion of a requested delivery rate, so its
// one supported period is 0, distinct in name from hound.PullPeriod even
// though the values coincide.
const filePushPeriod uint64 = 0

func init() {
	hound.RegisterKind("file", newFileDriver)
}

func newFileDriver(schemaBase, schemaFile string) (interfaces.Driver, error) {
	return &FileDriver{}, nil
}

// FileDriver is a push-mode driver that streams a fixed file's bytes out
// as records, one per readable event, until EOF. Each Parse call emits the
// whole buffer it's handed as a single record; concatenating the record
// payloads in delivery order reproduces the file's bytes exactly.
//
// Epoll reports a regular file as always readable, so once the file is
// exhausted the multiplexer keeps polling it (reading 0 bytes each time)
// until the owning context is stopped and the driver's fd is removed.
type FileDriver struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

func (d *FileDriver) Init(path string, args []interfaces.InitArg) error {
	d.path = path
	return nil
}

func (d *FileDriver) Destroy() error { return nil }

func (d *FileDriver) DeviceName() (string, error) {
	return filepath.Base(d.path), nil
}

func (d *FileDriver) DataDesc() ([]interfaces.DataDesc, error) {
	return []interfaces.DataDesc{
		{DataID: FileDataID, Enabled: true, Periods: []uint64{filePushPeriod}, Sched: interfaces.SchedPush},
	}, nil
}

func (d *FileDriver) SetData(h interfaces.Handle, requests []interfaces.DataRequest) error {
	return nil
}

func (d *FileDriver) Parse(h interfaces.Handle, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	data := append([]byte(nil), buf...)
	h.PushRecords([]interfaces.RawRecord{{DataID: FileDataID, Data: data}})
	return len(buf), nil
}

func (d *FileDriver) Start(h interfaces.Handle) (int, error) {
	f, err := os.Open(d.path)
	if err != nil {
		return -1, err
	}
	d.mu.Lock()
	d.f = f
	d.mu.Unlock()
	return int(f.Fd()), nil
}

func (d *FileDriver) Next(h interfaces.Handle, dataID uint32) error { return nil }

func (d *FileDriver) Stop(h interfaces.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	return err
}

var _ interfaces.Driver = (*FileDriver)(nil)
