// Package joybussim gives the out-of-scope JoyBus console collaborator
// a thin, testable Go shape: a kernel-visible virtual gamepad that
// periodically pulls a GCReport from the bridge the way the firmware's
// CommunicationProtocols::Joybus::enterMode polls its callback from a
// GPIO-bitbanged JoyBus cycle.
package joybussim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/psanford/uhid"
	"go.uber.org/zap"
)

// GCReport is the per-poll controller state enterMode's callback
// produces. Named and shaped after GCReport in
// original_source/include/joybus/gcReport.hpp; that header itself
// isn't part of the filtered original_source tree, so the field list
// is reconstructed from the button/axis usage defaultGcReport is
// given in original_source/src/sega_mega_drive.cpp.
type GCReport struct {
	A, B, X, Y, Start                    bool
	DPadUp, DPadDown, DPadLeft, DPadRight bool
	L, R, Z                              bool

	StickX, StickY   uint8
	CStickX, CStickY uint8
	LTrigger, RTrigger uint8
}

// Console is the out-of-scope real-hardware collaborator's interface:
// EnterMode blocks, calling fn once per poll interval and pushing the
// result out, until Close is called. Grounded directly in
// CommunicationProtocols::Joybus::enterMode's
// std::function<GCReport()> signature.
type Console interface {
	EnterMode(fn func() GCReport) error
	Close() error
}

// gcReportDescriptor presents GCReport's layout as an ordinary HID
// gamepad to the kernel (joydev, SDL, etc. all understand it); it is
// never parsed by hidcore, which only ever sees descriptors coming
// from real USB HID peripherals through hidtransport.
var gcReportDescriptor = []byte{
	0x05, 0x01, // Usage Page (Generic Desktop)
	0x09, 0x05, // Usage (Gamepad)
	0xA1, 0x01, // Collection (Application)
	0x05, 0x09, //   Usage Page (Button)
	0x19, 0x01, //   Usage Minimum (1)
	0x29, 0x0C, //   Usage Maximum (12)
	0x15, 0x00, //   Logical Minimum (0)
	0x25, 0x01, //   Logical Maximum (1)
	0x75, 0x01, //   Report Size (1)
	0x95, 0x0C, //   Report Count (12)
	0x81, 0x02, //   Input (Data,Var,Abs)
	0x75, 0x04, //   Report Size (4) -- pad to two bytes
	0x95, 0x01, //   Report Count (1)
	0x81, 0x03, //   Input (Const,Var,Abs)
	0x05, 0x01, //   Usage Page (Generic Desktop)
	0x09, 0x30, //   Usage (X)          -- main stick X
	0x09, 0x31, //   Usage (Y)          -- main stick Y
	0x09, 0x32, //   Usage (Z)          -- C-stick X
	0x09, 0x35, //   Usage (Rz)         -- C-stick Y
	0x09, 0x33, //   Usage (Rx)         -- L trigger
	0x09, 0x34, //   Usage (Ry)         -- R trigger
	0x15, 0x00, //   Logical Minimum (0)
	0x26, 0xFF, 0x00, //   Logical Maximum (255)
	0x75, 0x08, //   Report Size (8)
	0x95, 0x06, //   Report Count (6)
	0x81, 0x02, //   Input (Data,Var,Abs)
	0xC0, // End Collection
}

// buttonOrder is the usage-minimum-to-maximum bit order
// gcReportDescriptor declares (12 buttons, LSB-first).
func buttonBits(r GCReport) [12]bool {
	return [12]bool{r.A, r.B, r.X, r.Y, r.Start, r.DPadUp, r.DPadDown, r.DPadLeft, r.DPadRight, r.L, r.R, r.Z}
}

func encodeGCReport(r GCReport) []byte {
	buf := make([]byte, 8)
	for i, pressed := range buttonBits(r) {
		if pressed {
			buf[i/8] |= 1 << uint(i%8)
		}
	}
	buf[2] = r.StickX
	buf[3] = r.StickY
	buf[4] = r.CStickX
	buf[5] = r.CStickY
	buf[6] = r.LTrigger
	buf[7] = r.RTrigger
	return buf
}

// UhidConsole backs Console with a real kernel uhid device, grounded
// on internal/hidsvc/linux.uhidDevice's uhid.NewDevice/Open/
// InjectEvent wiring.
type UhidConsole struct {
	log          *zap.Logger
	pollInterval time.Duration

	dev *uhid.Device

	stopOnce sync.Once
	stop     chan struct{}
}

func NewUhidConsole(log *zap.Logger, id string, pollInterval time.Duration) (*UhidConsole, error) {
	dev, err := uhid.NewDevice(id, gcReportDescriptor)
	if err != nil {
		return nil, fmt.Errorf("joybussim: create uhid device: %w", err)
	}
	dev.Data.Bus = 0x03
	dev.Data.VendorID = 0x057e  // Nintendo
	dev.Data.ProductID = 0x0337 // GameCube controller class, stand-in
	return &UhidConsole{
		log:          log,
		pollInterval: pollInterval,
		dev:          dev,
		stop:         make(chan struct{}),
	}, nil
}

// EnterMode opens the uhid device, then calls fn once per
// pollInterval and injects the encoded result as an input report,
// until Close is called.
func (c *UhidConsole) EnterMode(fn func() GCReport) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := c.dev.Open(ctx)
	if err != nil {
		return fmt.Errorf("joybussim: open uhid device: %w", err)
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			c.log.Debug("uhid event", zap.Any("type", ev.Type))
		case <-ticker.C:
			if err := c.dev.InjectEvent(encodeGCReport(fn())); err != nil {
				return fmt.Errorf("joybussim: inject report: %w", err)
			}
		}
	}
}

func (c *UhidConsole) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	return c.dev.Close()
}
