package presetstore

import (
	"strings"
	"testing"

	"github.com/proboterror/SMD2GC/hidcore"
)

const samplePresets = `
presets:
  - padIndex: 1
    usagePage: 0x01
    usage: 0x30
    channel: gamepad
    control: 10
    interpretation: axis
    param: u8
  - padIndex: 1
    usagePage: 0x09
    usage: 0x02
    channel: gamepad
    control: 1
    interpretation: equal
    param: 1
`

func TestParseValid(t *testing.T) {
	table, err := Parse([]byte(samplePresets))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(table) != 2 {
		t.Fatalf("len(table) = %d, want 2", len(table))
	}

	axis := table[0]
	if axis.Channel != hidcore.ChannelGamepad || axis.Interpretation != hidcore.InterpretationAxis {
		t.Fatalf("unexpected axis preset: %+v", axis)
	}
	if hidcore.ValueType(axis.Param) != hidcore.ValueTypeUint8 {
		t.Fatalf("axis param = %d, want ValueTypeUint8", axis.Param)
	}

	eq := table[1]
	if eq.Interpretation != hidcore.InterpretationEqual || eq.Param != 1 {
		t.Fatalf("unexpected equal preset: %+v", eq)
	}
}

func TestParseDuplicateRejected(t *testing.T) {
	dup := samplePresets + `
  - padIndex: 1
    usagePage: 0x01
    usage: 0x30
    channel: gamepad
    control: 99
    interpretation: axis
    param: i16
`
	_, err := Parse([]byte(dup))
	if err == nil {
		t.Fatal("Parse: want error for duplicate preset tuple, got nil")
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("err = %v, want mention of duplicate", err)
	}
}

func TestParseUnknownChannel(t *testing.T) {
	bad := `
presets:
  - padIndex: 1
    usagePage: 0x01
    usage: 0x30
    channel: joystick
    control: 1
    interpretation: axis
    param: u8
`
	_, err := Parse([]byte(bad))
	if err == nil {
		t.Fatal("Parse: want error for unknown channel, got nil")
	}
}

func TestParseAxisRequiresKeywordParam(t *testing.T) {
	bad := `
presets:
  - padIndex: 1
    usagePage: 0x01
    usage: 0x30
    channel: gamepad
    control: 1
    interpretation: axis
    param: 5
`
	_, err := Parse([]byte(bad))
	if err == nil {
		t.Fatal("Parse: want error for integer param on an axis preset, got nil")
	}
}
