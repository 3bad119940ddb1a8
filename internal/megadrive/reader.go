// Package megadrive gives the out-of-scope GPIO Mega Drive controller
// reader a thin Reader interface so internal/bridge can multiplex it
// alongside a USB HID source onto one joybussim.Console. The real GPIO
// bit-banged implementation from original_source/src/sega_mega_drive.cpp
// stays out of scope; only a test fake lives in this module.
package megadrive

// Report mirrors original_source/src/sega_mega_drive.cpp's smd_state
// bitfield: one poll's worth of Mega Drive 3/6-button pad state.
type Report struct {
	Connected   bool
	SixButtons  bool
	A, B, C     bool
	X, Y, Z     bool
	Start, Mode bool
	Up, Down    bool
	Left, Right bool
}

// Reader abstracts one GPIO-sampled Mega Drive controller port.
// Read's bool return mirrors smd_state.connected: false means no pad
// is currently plugged into this port, distinct from every button
// simply being unpressed.
type Reader interface {
	Read() (Report, bool)
}

// FakeReader is a scripted Reader for tests and the serve command's
// --no-megadrive-hardware dry-run mode.
type FakeReader struct {
	report    Report
	connected bool
}

func NewFakeReader() *FakeReader {
	return &FakeReader{}
}

func (r *FakeReader) Set(report Report) {
	r.report = report
	r.connected = true
}

func (r *FakeReader) Disconnect() {
	r.connected = false
	r.report = Report{}
}

func (r *FakeReader) Read() (Report, bool) {
	return r.report, r.connected
}
