package hound

import (
	"sync"

	"github.com/ehrlich-b/hound/internal/interfaces"
)

// MockDriver is a scriptable interfaces.Driver for unit tests: every
// operation except DeviceName and DataDesc is backed by an overridable func
// field defaulting to a no-op, so a test only wires the hooks it cares
// about. DeviceName returns Name ("mock" when empty) and DataDesc returns
// Descs.
type MockDriver struct {
	mu sync.Mutex

	Name  string
	Descs []interfaces.DataDesc

	InitFunc    func(path string, args []interfaces.InitArg) error
	DestroyFunc func() error
	StartFunc   func(h interfaces.Handle) (int, error)
	StopFunc    func(h interfaces.Handle) error
	NextFunc    func(h interfaces.Handle, dataID uint32) error
	ParseFunc   func(h interfaces.Handle, buf []byte) (int, error)
	SetDataFunc func(h interfaces.Handle, requests []interfaces.DataRequest) error

	InitCalls    int
	DestroyCalls int
	StartCalls   int
	StopCalls    int
	NextCalls    int
	ParseCalls   int
	SetDataCalls int
}

func (d *MockDriver) Init(path string, args []interfaces.InitArg) error {
	d.mu.Lock()
	d.InitCalls++
	d.mu.Unlock()
	if d.InitFunc != nil {
		return d.InitFunc(path, args)
	}
	return nil
}

func (d *MockDriver) Destroy() error {
	d.mu.Lock()
	d.DestroyCalls++
	d.mu.Unlock()
	if d.DestroyFunc != nil {
		return d.DestroyFunc()
	}
	return nil
}

func (d *MockDriver) DeviceName() (string, error) {
	if d.Name == "" {
		return "mock", nil
	}
	return d.Name, nil
}

func (d *MockDriver) DataDesc() ([]interfaces.DataDesc, error) {
	return d.Descs, nil
}

func (d *MockDriver) SetData(h interfaces.Handle, requests []interfaces.DataRequest) error {
	d.mu.Lock()
	d.SetDataCalls++
	d.mu.Unlock()
	if d.SetDataFunc != nil {
		return d.SetDataFunc(h, requests)
	}
	return nil
}

func (d *MockDriver) Parse(h interfaces.Handle, buf []byte) (int, error) {
	d.mu.Lock()
	d.ParseCalls++
	d.mu.Unlock()
	if d.ParseFunc != nil {
		return d.ParseFunc(h, buf)
	}
	return len(buf), nil
}

func (d *MockDriver) Start(h interfaces.Handle) (int, error) {
	d.mu.Lock()
	d.StartCalls++
	d.mu.Unlock()
	if d.StartFunc != nil {
		return d.StartFunc(h)
	}
	return -1, nil
}

func (d *MockDriver) Next(h interfaces.Handle, dataID uint32) error {
	d.mu.Lock()
	d.NextCalls++
	d.mu.Unlock()
	if d.NextFunc != nil {
		return d.NextFunc(h, dataID)
	}
	return nil
}

func (d *MockDriver) Stop(h interfaces.Handle) error {
	d.mu.Lock()
	d.StopCalls++
	d.mu.Unlock()
	if d.StopFunc != nil {
		return d.StopFunc(h)
	}
	return nil
}

var _ interfaces.Driver = (*MockDriver)(nil)
