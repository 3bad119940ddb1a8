// Package hidtransport discovers and reads USB HID input devices on
// the host running the bridge. It is the ambient counterpart to the
// USB host transport the core parser leaves out of scope: hidcore
// never touches a byte that didn't already arrive through here.
//
// Grounded on internal/hidsvc/linux.Backend's go-hid/go-udev wiring;
// simplified to the read-only input side, since the virtual console
// output side lives in internal/joybussim.
package hidtransport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jochenvg/go-udev"
	"github.com/sstallion/go-hid"
	"go.uber.org/zap"

	"github.com/proboterror/SMD2GC/pkg/bus"
)

// Address identifies one HID interface by the same triple hidraw/
// hidapi expose it under.
type Address struct {
	VendorID  uint16
	ProductID uint16
	Interface int
}

func (a Address) String() string {
	return fmt.Sprintf("%04x:%04x:%d", a.VendorID, a.ProductID, a.Interface)
}

func ParseAddress(s string) (Address, error) {
	var a Address
	_, err := fmt.Sscanf(s, "%04x:%04x:%d", &a.VendorID, &a.ProductID, &a.Interface)
	if err != nil {
		return Address{}, fmt.Errorf("hidtransport: parse address %q: %w", s, err)
	}
	return a, nil
}

// DeviceInfo is what Enumerate reports about one attached device,
// before it is opened.
type DeviceInfo struct {
	Address Address
	Name    string
}

// Device is an open HID input interface. Acquire detaches the kernel
// evdev node backing this interface (so the bridge, not X11/Wayland,
// owns button/axis events) for as long as the returned release func
// hasn't been called.
type Device interface {
	Read(buf []byte) (int, error)
	Close() error
	GetReportDescriptor() ([]byte, error)
	Acquire() (release func(), err error)
}

// ChangeEvent is published on the bus returned by Watch whenever the
// set of attached HID devices changes.
type ChangeEvent struct {
	Connected    []DeviceInfo
	Disconnected []Address
}

// Backend abstracts device discovery and opening so internal/bridge
// can be tested against a fake without real hardware.
type Backend interface {
	Enumerate() ([]DeviceInfo, error)
	Open(addr Address) (Device, error)
	Watch(ctx context.Context, pub bus.Publisher[ChangeEvent]) error
}

// LinuxBackend implements Backend with hidapi (enumeration/reads) and
// udev (hotplug notification, evdev detach on Acquire).
type LinuxBackend struct {
	log          *zap.Logger
	pollInterval time.Duration
	udev         *udev.Udev
}

func NewLinuxBackend(log *zap.Logger) *LinuxBackend {
	return &LinuxBackend{
		log:          log,
		pollInterval: time.Second,
		udev:         &udev.Udev{},
	}
}

func (b *LinuxBackend) Enumerate() ([]DeviceInfo, error) {
	hid.Init()
	var devices []DeviceInfo
	err := hid.Enumerate(hid.VendorIDAny, hid.ProductIDAny, func(d *hid.DeviceInfo) error {
		devices = append(devices, DeviceInfo{
			Address: Address{VendorID: d.VendorID, ProductID: d.ProductID, Interface: d.InterfaceNbr},
			Name:    deviceName(d),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("hidtransport: enumerate: %w", err)
	}
	return devices, nil
}

func deviceName(d *hid.DeviceInfo) string {
	var parts []string
	if d.MfrStr != "" {
		parts = append(parts, d.MfrStr)
	}
	if d.ProductStr != "" {
		parts = append(parts, d.ProductStr)
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%04x:%04x", d.VendorID, d.ProductID)
	}
	return strings.Join(parts, " ")
}

func (b *LinuxBackend) Open(addr Address) (Device, error) {
	var found *hid.DeviceInfo
	err := hid.Enumerate(uint16(addr.VendorID), uint16(addr.ProductID), func(d *hid.DeviceInfo) error {
		if d.InterfaceNbr == addr.Interface {
			cp := *d
			found = &cp
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("hidtransport: enumerate for open: %w", err)
	}
	if found == nil {
		return nil, fmt.Errorf("hidtransport: device not found: %s", addr)
	}
	dev, err := hid.OpenPath(found.Path)
	if err != nil {
		return nil, fmt.Errorf("hidtransport: open %s: %w", addr, err)
	}
	return &linuxDevice{b: b, info: *found, dev: dev}, nil
}

// Watch polls the hidapi enumeration on pollInterval and diffs it
// against the previous poll, publishing a ChangeEvent for every
// connect/disconnect. A netlink-driven udev.Monitor would notice
// hotplug events sooner, but hidapi's enumeration already has to run
// to resolve a device path, so polling it directly keeps this backend
// to one dependency surface instead of two races to reconcile.
func (b *LinuxBackend) Watch(ctx context.Context, pub bus.Publisher[ChangeEvent]) error {
	known := make(map[Address]DeviceInfo)
	refresh := func() error {
		current, err := b.Enumerate()
		if err != nil {
			return err
		}
		currentSet := make(map[Address]DeviceInfo, len(current))
		for _, d := range current {
			currentSet[d.Address] = d
		}
		var connected []DeviceInfo
		var disconnected []Address
		for addr, d := range currentSet {
			if _, ok := known[addr]; !ok {
				connected = append(connected, d)
			}
		}
		for addr := range known {
			if _, ok := currentSet[addr]; !ok {
				disconnected = append(disconnected, addr)
			}
		}
		known = currentSet
		if len(connected) > 0 || len(disconnected) > 0 {
			pub(ctx, ChangeEvent{Connected: connected, Disconnected: disconnected})
		}
		return nil
	}

	if err := refresh(); err != nil {
		return fmt.Errorf("hidtransport: initial enumerate: %w", err)
	}

	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := refresh(); err != nil {
				b.log.Warn("enumerate failed", zap.Error(err))
			}
		}
	}
}

type linuxDevice struct {
	b    *LinuxBackend
	info hid.DeviceInfo
	dev  *hid.Device
}

func (d *linuxDevice) Read(buf []byte) (int, error) {
	return d.dev.Read(buf)
}

func (d *linuxDevice) Close() error {
	return d.dev.Close()
}

func (d *linuxDevice) GetReportDescriptor() ([]byte, error) {
	buf := make([]byte, 4096)
	n, err := d.dev.GetReportDescriptor(buf)
	if err != nil {
		return nil, fmt.Errorf("hidtransport: get report descriptor: %w", err)
	}
	return buf[:n], nil
}

// Acquire detaches the kernel evdev input node(s) udev associates with
// this hidraw device, so their events stop reaching the desktop input
// stack while the bridge owns the device. Grounded on
// internal/hidsvc/linux.hidapiDevice.Acquire.
func (d *linuxDevice) Acquire() (func(), error) {
	hidrawDev := d.b.udev.NewDeviceFromSubsystemSysname("hidraw", filepath.Base(d.info.Path))
	if hidrawDev == nil {
		return nil, fmt.Errorf("hidtransport: hidraw device %s not found in udev", d.info.Path)
	}
	parent := hidrawDev.Parent()
	e := d.b.udev.NewEnumerate()
	if err := e.AddMatchSubsystem("input"); err != nil {
		return nil, fmt.Errorf("hidtransport: udev match subsystem: %w", err)
	}
	if err := e.AddMatchParent(parent); err != nil {
		return nil, fmt.Errorf("hidtransport: udev match parent: %w", err)
	}
	inputs, err := e.Devices()
	if err != nil {
		return nil, fmt.Errorf("hidtransport: enumerate evdev inputs: %w", err)
	}

	var detached []string
	for _, in := range inputs {
		syspath := in.Syspath()
		if !strings.HasPrefix(filepath.Base(syspath), "event") {
			continue
		}
		if err := writeUevent(syspath, "remove"); err != nil {
			d.b.log.Warn("failed to detach evdev input", zap.String("path", syspath), zap.Error(err))
			continue
		}
		detached = append(detached, syspath)
	}
	return func() {
		for _, syspath := range detached {
			if err := writeUevent(syspath, "add"); err != nil {
				d.b.log.Warn("failed to reattach evdev input", zap.String("path", syspath), zap.Error(err))
			}
		}
	}, nil
}

func writeUevent(syspath, action string) error {
	return os.WriteFile(syspath+"/uevent", []byte(action), 0644)
}
