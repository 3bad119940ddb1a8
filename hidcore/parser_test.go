package hidcore

import (
	"bytes"
	"errors"
	"testing"
)

// --- descriptor item builders -------------------------------------
//
// Minimal helpers for assembling short-item HID report descriptors
// byte-by-byte; there is no reference dump file in this repo's
// fixtures to crib from, so these build realistic-but-synthetic
// descriptors directly against the HID 1.11 short-item grammar.

func build(items ...[]byte) []byte {
	var out []byte
	for _, item := range items {
		out = append(out, item...)
	}
	return out
}

func usagePage(v byte) []byte      { return []byte{0x05, v} }
func usage(v byte) []byte          { return []byte{0x09, v} }
func usageMin(v byte) []byte       { return []byte{0x19, v} }
func usageMax(v byte) []byte       { return []byte{0x29, v} }
func logicalMin(v byte) []byte     { return []byte{0x15, v} }
func logicalMax(v byte) []byte     { return []byte{0x25, v} }
func reportSize(v byte) []byte     { return []byte{0x75, v} }
func reportCount(v byte) []byte    { return []byte{0x95, v} }
func reportID(v byte) []byte       { return []byte{0x85, v} }
func collectionApp() []byte        { return []byte{0xA1, 0x01} }
func endCollection() []byte        { return []byte{0xC0} }
func inputVar() []byte             { return []byte{0x81, 0x02} }
func inputArr() []byte             { return []byte{0x81, 0x00} }
func inputConst() []byte           { return []byte{0x81, 0x01} }

const (
	pageGenericDesktop = 0x01
	pageButton         = 0x09
	pageKeyboard       = 0x07

	roleMouse    = 0x02
	roleJoystick = 0x04
	roleGamepad  = 0x05
	roleKeyboard = 0x06
)

func gamepadButtonsDescriptor() []byte {
	return build(
		usagePage(pageGenericDesktop), usage(roleGamepad), collectionApp(),
		reportID(1),
		usagePage(pageButton), usageMin(1), usageMax(14),
		logicalMin(0), logicalMax(1),
		reportSize(1), reportCount(14), inputVar(),
		reportSize(2), reportCount(1), inputConst(),
		usagePage(pageGenericDesktop), usage(0x30), usage(0x31),
		logicalMin(0), logicalMax(0xFF),
		reportSize(8), reportCount(2), inputVar(),
		endCollection(),
	)
}

func TestParseDescriptorGamepadButtons(t *testing.T) {
	presets := PresetTable{
		{PadIndex: 1, UsagePage: pageButton, Usage: 2, Channel: ChannelGamepad, Control: 0, Interpretation: InterpretationEqual, Param: 1},
		{PadIndex: 1, UsagePage: pageButton, Usage: 3, Channel: ChannelGamepad, Control: 1, Interpretation: InterpretationEqual, Param: 1},
	}
	p := NewParser(0, nil)
	if err := p.ParseDescriptor(gamepadButtonsDescriptor(), presets); err != nil {
		t.Fatalf("ParseDescriptor: %v", err)
	}
	if p.ReportCount() != 1 {
		t.Fatalf("ReportCount = %d, want 1", p.ReportCount())
	}

	// Buttons 1-8 in byte[1], buttons 9-14 + 2 pad bits in byte[2],
	// X in byte[3], Y in byte[4]. X (usage 2) is the 2nd bit -> bit 1.
	report := []byte{1, 0b00000010, 0, 0, 0}
	var events []uint32
	err := p.ParseReport(report, Callbacks{
		Gamepad: func(control, value uint32) {
			if value == 1 {
				events = append(events, control)
			}
		},
	})
	if err != nil {
		t.Fatalf("ParseReport: %v", err)
	}
	if len(events) != 1 || events[0] != 0 {
		t.Fatalf("events = %v, want [0] (X button control)", events)
	}

	// Now O (usage 3, bit 2) pressed instead.
	report = []byte{1, 0b00000100, 0, 0, 0}
	events = nil
	if err := p.ParseReport(report, Callbacks{
		Gamepad: func(control, value uint32) {
			if value == 1 {
				events = append(events, control)
			}
		},
	}); err != nil {
		t.Fatalf("ParseReport: %v", err)
	}
	if len(events) != 1 || events[0] != 1 {
		t.Fatalf("events = %v, want [1] (O button control)", events)
	}
}

func optionsAndR2Descriptor() []byte {
	return build(
		usagePage(pageGenericDesktop), usage(roleGamepad), collectionApp(),
		reportID(6),
		usagePage(pageButton), usageMin(1), usageMax(2),
		logicalMin(0), logicalMax(1),
		reportSize(1), reportCount(1), inputVar(),
		reportSize(7), reportCount(1), inputConst(),
		usagePage(pageGenericDesktop), usage(0x33), // arbitrary "R2 analog" usage
		logicalMin(0), logicalMax(0xFF),
		reportSize(8), reportCount(1), inputVar(),
		endCollection(),
	)
}

func TestParseDescriptorThresholdAbove(t *testing.T) {
	const (
		controlOptions = 0
		controlR2      = 1
	)
	presets := PresetTable{
		{PadIndex: 1, UsagePage: pageButton, Usage: 1, Channel: ChannelGamepad, Control: controlOptions, Interpretation: InterpretationEqual, Param: 1},
		{PadIndex: 1, UsagePage: pageGenericDesktop, Usage: 0x33, Channel: ChannelGamepad, Control: controlR2, Interpretation: InterpretationThresholdAbove, Param: 200},
	}
	p := NewParser(0, nil)
	if err := p.ParseDescriptor(optionsAndR2Descriptor(), presets); err != nil {
		t.Fatalf("ParseDescriptor: %v", err)
	}

	// byte[1]: bit0 Options=1, 7 pad bits = 0x01. byte[2]: R2 = 0xFF (fully pressed).
	report := []byte{6, 0x01, 0xFF}
	seen := map[uint32]uint32{}
	if err := p.ParseReport(report, Callbacks{
		Gamepad: func(control, value uint32) { seen[control] = value },
	}); err != nil {
		t.Fatalf("ParseReport: %v", err)
	}
	if seen[controlOptions] != 1 {
		t.Fatalf("Options not triggered: %v", seen)
	}
	if seen[controlR2] != 1 {
		t.Fatalf("R2 threshold not triggered at max: %v", seen)
	}
}

func joystickAxesDescriptor() []byte {
	return build(
		usagePage(pageGenericDesktop), usage(roleJoystick), collectionApp(),
		reportID(2),
		usagePage(pageGenericDesktop), usage(0x30), usage(0x31),
		logicalMin(0x80), logicalMax(0x7F), // -128..127, int8
		reportSize(8), reportCount(2), inputVar(),
		endCollection(),
	)
}

func TestParseReportSticksAtMinimum(t *testing.T) {
	presets := PresetTable{
		{PadIndex: 1, UsagePage: pageGenericDesktop, Usage: 0x30, Channel: ChannelGamepad, Control: 0, Interpretation: InterpretationAxis, Param: uint16(ValueTypeUint8)},
		{PadIndex: 1, UsagePage: pageGenericDesktop, Usage: 0x31, Channel: ChannelGamepad, Control: 1, Interpretation: InterpretationAxis, Param: uint16(ValueTypeUint8)},
	}
	p := NewParser(0, nil)
	if err := p.ParseDescriptor(joystickAxesDescriptor(), presets); err != nil {
		t.Fatalf("ParseDescriptor: %v", err)
	}

	report := []byte{2, 0x80, 0x80} // both sticks at minimum (-128)
	values := map[uint32]uint32{}
	if err := p.ParseReport(report, Callbacks{
		Gamepad: func(control, value uint32) { values[control] = value },
	}); err != nil {
		t.Fatalf("ParseReport: %v", err)
	}
	if values[0] != 0 || values[1] != 0 {
		t.Fatalf("values = %v, want both axes converted to 0", values)
	}
}

func keyboardArrayDescriptor() []byte {
	return build(
		usagePage(pageGenericDesktop), usage(roleKeyboard), collectionApp(),
		reportID(3),
		usagePage(pageKeyboard), usageMin(0), usageMax(101),
		logicalMin(0), logicalMax(101),
		reportSize(8), reportCount(6), inputArr(),
		endCollection(),
	)
}

func TestParseReportKeyboardKeyEdge(t *testing.T) {
	p := NewParser(0, nil)
	if err := p.ParseDescriptor(keyboardArrayDescriptor(), nil); err != nil {
		t.Fatalf("ParseDescriptor: %v", err)
	}

	const scancodeA = 0x04
	type event struct {
		code    uint8
		pressed bool
	}
	var events []event
	cb := Callbacks{Keyboard: func(code uint8, pressed bool) {
		events = append(events, event{code, pressed})
	}}

	pressed := []byte{3, scancodeA, 0, 0, 0, 0, 0}
	if err := p.ParseReport(pressed, cb); err != nil {
		t.Fatalf("ParseReport (press): %v", err)
	}
	released := []byte{3, 0, 0, 0, 0, 0, 0}
	if err := p.ParseReport(released, cb); err != nil {
		t.Fatalf("ParseReport (release): %v", err)
	}

	if len(events) != 2 {
		t.Fatalf("events = %v, want 2 edges", events)
	}
	if events[0].code != scancodeA || !events[0].pressed {
		t.Fatalf("first event = %+v, want press of %#x", events[0], scancodeA)
	}
	if events[1].code != scancodeA || events[1].pressed {
		t.Fatalf("second event = %+v, want release of %#x", events[1], scancodeA)
	}
}

func mouseDescriptor() []byte {
	return build(
		usagePage(pageGenericDesktop), usage(roleMouse), collectionApp(),
		reportID(4),
		usagePage(pageButton), usageMin(1), usageMax(3),
		logicalMin(0), logicalMax(1),
		reportSize(1), reportCount(3), inputVar(),
		reportSize(5), reportCount(1), inputConst(),
		usagePage(pageGenericDesktop), usage(0x30), usage(0x31), usage(0x38),
		logicalMin(0x81), logicalMax(0x7F), // -127..127
		reportSize(8), reportCount(3), inputVar(),
		endCollection(),
	)
}

func TestParseReportMouseWheelDown(t *testing.T) {
	p := NewParser(0, nil)
	if err := p.ParseDescriptor(mouseDescriptor(), nil); err != nil {
		t.Fatalf("ParseDescriptor: %v", err)
	}

	var dx, dy, dz int16
	var buttons uint8
	var called bool
	report := []byte{4, 0x00, 0, 0, 0xFF} // wheel byte = -1 (scrolled down one notch)
	err := p.ParseReport(report, Callbacks{
		Mouse: func(gotDX, gotDY, gotDZ int16, gotButtons uint8) {
			called = true
			dx, dy, dz, buttons = gotDX, gotDY, gotDZ, gotButtons
		},
	})
	if err != nil {
		t.Fatalf("ParseReport: %v", err)
	}
	if !called {
		t.Fatal("mouse callback not invoked")
	}
	if dx != 0 || dy != 0 || dz != -1 || buttons != 0 {
		t.Fatalf("dx=%d dy=%d dz=%d buttons=%#x, want dx=0 dy=0 dz=-1 buttons=0", dx, dy, dz, buttons)
	}
}

func gamepadRemapDescriptor() []byte {
	return build(
		usagePage(pageGenericDesktop), usage(roleGamepad), collectionApp(),
		reportID(5),
		usagePage(pageButton), usageMin(1), usageMax(2),
		logicalMin(0), logicalMax(1),
		reportSize(1), reportCount(1), inputVar(),
		reportSize(7), reportCount(1), inputConst(),
		endCollection(),
	)
}

func TestParseReportGamepadToKeyboardRemap(t *testing.T) {
	const scancodeA = 0x04
	presets := PresetTable{
		{PadIndex: 1, UsagePage: pageButton, Usage: 1, Channel: ChannelKeyboard, Control: scancodeA, Interpretation: InterpretationEqual, Param: 1},
	}
	p := NewParser(0, nil)
	if err := p.ParseDescriptor(gamepadRemapDescriptor(), presets); err != nil {
		t.Fatalf("ParseDescriptor: %v", err)
	}

	var gamepadCalls int
	var keyEvents []uint8
	cb := Callbacks{
		Gamepad:  func(uint32, uint32) { gamepadCalls++ },
		Keyboard: func(code uint8, pressed bool) {
			if pressed {
				keyEvents = append(keyEvents, code)
			}
		},
	}
	if err := p.ParseReport([]byte{5, 0x01}, cb); err != nil {
		t.Fatalf("ParseReport: %v", err)
	}
	if gamepadCalls != 0 {
		t.Fatalf("gamepad callback invoked %d times, want 0", gamepadCalls)
	}
	if len(keyEvents) != 1 || keyEvents[0] != scancodeA {
		t.Fatalf("keyEvents = %v, want [%#x]", keyEvents, scancodeA)
	}
}

func TestParseDescriptorRejectsLongItem(t *testing.T) {
	p := NewParser(0, nil)
	desc := []byte{0xFE, 0x02, 0x00, 0x00} // long item prefix, tag nibble 0xF
	err := p.ParseDescriptor(desc, nil)
	if !errors.Is(err, ErrUnsupportedItem) {
		t.Fatalf("err = %v, want ErrUnsupportedItem", err)
	}
}

func TestParseDescriptorRejectsTruncatedItem(t *testing.T) {
	p := NewParser(0, nil)
	desc := []byte{0x26, 0x00} // Logical Maximum, 2-byte payload declared, only 1 present
	err := p.ParseDescriptor(desc, nil)
	if !errors.Is(err, ErrTruncatedItem) {
		t.Fatalf("err = %v, want ErrTruncatedItem", err)
	}
}

func TestParseDescriptorRejectsEmpty(t *testing.T) {
	p := NewParser(0, nil)
	if err := p.ParseDescriptor(nil, nil); !errors.Is(err, ErrTruncatedItem) {
		t.Fatalf("err = %v, want ErrTruncatedItem", err)
	}
}

func TestParseDescriptorRejectsUnmatchedEndCollection(t *testing.T) {
	p := NewParser(0, nil)
	desc := build(usagePage(pageGenericDesktop), endCollection())
	if err := p.ParseDescriptor(desc, nil); !errors.Is(err, ErrUnsupportedItem) {
		t.Fatalf("err = %v, want ErrUnsupportedItem", err)
	}
}

func TestParseReportUnknownReportID(t *testing.T) {
	p := NewParser(0, nil)
	if err := p.ParseDescriptor(gamepadButtonsDescriptor(), nil); err != nil {
		t.Fatalf("ParseDescriptor: %v", err)
	}
	err := p.ParseReport([]byte{0x99, 0, 0, 0, 0}, Callbacks{})
	if !errors.Is(err, ErrUnknownReportID) {
		t.Fatalf("err = %v, want ErrUnknownReportID", err)
	}
}

func TestParseReportShortReport(t *testing.T) {
	p := NewParser(0, nil)
	if err := p.ParseDescriptor(gamepadButtonsDescriptor(), nil); err != nil {
		t.Fatalf("ParseDescriptor: %v", err)
	}
	err := p.ParseReport([]byte{1, 0, 0}, Callbacks{})
	if !errors.Is(err, ErrShortReport) {
		t.Fatalf("err = %v, want ErrShortReport", err)
	}
}

func TestParseDescriptorArenaExhausted(t *testing.T) {
	p := NewParser(8, nil) // too small to hold even one report record
	err := p.ParseDescriptor(gamepadButtonsDescriptor(), nil)
	if !errors.Is(err, ErrArenaExhausted) {
		t.Fatalf("err = %v, want ErrArenaExhausted", err)
	}
}

func TestParseDescriptorConcurrentAccess(t *testing.T) {
	p := NewParser(0, nil)
	p.busy.Store(true)
	if err := p.ParseDescriptor(gamepadButtonsDescriptor(), nil); !errors.Is(err, ErrConcurrentAccess) {
		t.Fatalf("err = %v, want ErrConcurrentAccess", err)
	}
	p.busy.Store(false)
	if err := p.ParseDescriptor(gamepadButtonsDescriptor(), nil); err != nil {
		t.Fatalf("ParseDescriptor after clearing busy: %v", err)
	}

	p.busy.Store(true)
	if err := p.ParseReport([]byte{1, 0, 0, 0, 0}, Callbacks{}); !errors.Is(err, ErrConcurrentAccess) {
		t.Fatalf("err = %v, want ErrConcurrentAccess", err)
	}
}

func TestParserDump(t *testing.T) {
	p := NewParser(0, nil)
	presets := PresetTable{
		{PadIndex: 1, UsagePage: pageButton, Usage: 2, Channel: ChannelGamepad, Control: 0, Interpretation: InterpretationEqual, Param: 1},
	}
	if err := p.ParseDescriptor(gamepadButtonsDescriptor(), presets); err != nil {
		t.Fatalf("ParseDescriptor: %v", err)
	}
	var buf bytes.Buffer
	if err := p.Dump(&buf); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("Dump produced no output")
	}
}
