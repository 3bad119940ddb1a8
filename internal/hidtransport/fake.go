package hidtransport

import (
	"context"
	"fmt"
	"sync"

	"github.com/proboterror/SMD2GC/pkg/bus"
)

// FakeBackend is an in-memory Backend for tests and the CLI's
// --loopback mode: it never touches hidapi/udev, so it runs
// identically on any host. Plug/Unplug drive Watch's ChangeEvent
// stream the same way a real hotplug would.
type FakeBackend struct {
	mu      sync.Mutex
	devices map[Address]*FakeDevice
	pending []ChangeEvent
	notify  chan struct{}
}

func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		devices: make(map[Address]*FakeDevice),
		notify:  make(chan struct{}, 1),
	}
}

// FakeDevice is a scripted HID device: a fixed descriptor and a queue
// of report payloads ParseReport-ready callers pop one at a time.
type FakeDevice struct {
	info       DeviceInfo
	descriptor []byte

	mu      sync.Mutex
	reports [][]byte
	closed  bool
}

func (d *FakeDevice) PushReport(report []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reports = append(d.reports, report)
}

func (d *FakeDevice) Read(buf []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, fmt.Errorf("hidtransport: fake device closed")
	}
	if len(d.reports) == 0 {
		return 0, fmt.Errorf("hidtransport: no more fake reports queued")
	}
	report := d.reports[0]
	d.reports = d.reports[1:]
	n := copy(buf, report)
	return n, nil
}

func (d *FakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *FakeDevice) GetReportDescriptor() ([]byte, error) {
	return d.descriptor, nil
}

func (d *FakeDevice) Acquire() (func(), error) {
	return func() {}, nil
}

func (b *FakeBackend) Plug(addr Address, name string, descriptor []byte) *FakeDevice {
	dev := &FakeDevice{info: DeviceInfo{Address: addr, Name: name}, descriptor: descriptor}
	b.mu.Lock()
	b.devices[addr] = dev
	b.pending = append(b.pending, ChangeEvent{Connected: []DeviceInfo{dev.info}})
	b.mu.Unlock()
	select {
	case b.notify <- struct{}{}:
	default:
	}
	return dev
}

func (b *FakeBackend) Unplug(addr Address) {
	b.mu.Lock()
	delete(b.devices, addr)
	b.pending = append(b.pending, ChangeEvent{Disconnected: []Address{addr}})
	b.mu.Unlock()
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

func (b *FakeBackend) Enumerate() ([]DeviceInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	infos := make([]DeviceInfo, 0, len(b.devices))
	for _, d := range b.devices {
		infos = append(infos, d.info)
	}
	return infos, nil
}

func (b *FakeBackend) Open(addr Address) (Device, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	dev, ok := b.devices[addr]
	if !ok {
		return nil, fmt.Errorf("hidtransport: fake device not found: %s", addr)
	}
	return dev, nil
}

func (b *FakeBackend) Watch(ctx context.Context, pub bus.Publisher[ChangeEvent]) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-b.notify:
			b.mu.Lock()
			pending := b.pending
			b.pending = nil
			b.mu.Unlock()
			for _, ev := range pending {
				pub(ctx, ev)
			}
		}
	}
}
