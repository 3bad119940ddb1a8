package hidcore

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/proboterror/SMD2GC/pkg/bits"
)

// Internal mouse OutputControl tags, assigned past the five mouse
// button usage values (mouseButton1..5) so a single uint8 field can
// address either a button or an axis.
const (
	mouseControlX uint8 = iota + 6
	mouseControlY
	mouseControlWheel
)

// mouseAccumulator buffers the wraparound-on-overflow delta (dx, dy,
// dz) and current button bitmask for one report, flushed to the Mouse
// callback once per ParseReport call. Grounded on the mouse_state
// accumulation in original_source/src/hid_parser.cpp's MouseMove/
// MouseSet and ParseReport's end-of-report flush.
type mouseAccumulator struct {
	dx, dy, dz int16
	buttons    uint8
	changed    bool
}

// ParseReport decodes one runtime input report against the report/
// segment graph built by the most recent ParseDescriptor, invoking cb
// for every recognized field. Grounded on ParseReport in
// original_source/src/hid_parser.cpp.
func (p *Parser) ParseReport(report []byte, cb Callbacks) error {
	if !p.busy.CompareAndSwap(false, true) {
		return ErrConcurrentAccess
	}
	defer p.busy.Store(false)

	reportIdx, err := p.selectReport(report)
	if err != nil {
		return err
	}
	rep := &p.reports[reportIdx]

	needBytes := (int(rep.Length) + 7) / 8
	if len(report) < needBytes {
		return fmt.Errorf("%w: have %d bytes, need %d", ErrShortReport, len(report), needBytes)
	}

	data := bits.New(report, 0)

	for _, segIdx := range rep.segments {
		seg := &p.segments[segIdx]
		if int(seg.StartBit)+int(seg.ReportSize)*int(seg.ReportCount) > int(rep.Length) {
			return ErrSegmentOutOfBounds
		}
		p.decodeSegment(seg, rep, data, cb.Gamepad)
	}

	if cb.Keyboard != nil {
		rep.keys.diff(rep.oldKeys, cb.Keyboard)
	} else {
		rep.keys.ClearAll()
	}

	if cb.Mouse != nil && p.mouse.changed {
		cb.Mouse(p.mouse.dx, p.mouse.dy, p.mouse.dz, p.mouse.buttons)
	}
	p.mouse = mouseAccumulator{buttons: p.mouse.buttons}

	return nil
}

func (p *Parser) selectReport(report []byte) (int, error) {
	if !p.usesReportIDs {
		if len(p.reports) == 0 {
			return 0, ErrUnknownReportID
		}
		return 0, nil
	}
	if len(report) == 0 {
		return 0, ErrUnknownReportID
	}
	id := report[0]
	for i := range p.reports {
		if p.reports[i].ReportID == id {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %#x", ErrUnknownReportID, id)
}

func (p *Parser) decodeSegment(seg *Segment, rep *Report, data bits.Bits, gamepadCb func(uint32, uint32)) {
	if seg.Interpretation == InterpretationBitfield {
		p.decodeBitfield(seg, rep, data)
		return
	}
	if seg.Interpretation == InterpretationNone {
		return
	}

	var value int32
	for i := 0; i < int(seg.ReportSize); i++ {
		if data.IsSet(int(seg.StartBit) + i) {
			value |= 1 << uint(i)
		}
	}

	signed := seg.LogicalMinimum < 0
	if signed && seg.ReportSize > 0 && seg.ReportSize < 32 {
		signBit := uint(seg.ReportSize - 1)
		if value&(1<<signBit) != 0 {
			value |= ^int32(0) << signBit
		}
	}

	switch seg.Interpretation {
	case InterpretationThresholdAbove, InterpretationThresholdBelow:
		mapped := mapToUint8(value, int32(seg.LogicalMinimum), int32(seg.LogicalMaximum))
		var triggered bool
		if seg.Interpretation == InterpretationThresholdAbove {
			triggered = mapped > uint8(seg.InputParam)
		} else {
			triggered = mapped < uint8(seg.InputParam)
		}
		p.dispatchTrigger(triggered, seg, rep, gamepadCb)
	case InterpretationEqual:
		p.dispatchTrigger(uint32(value) == uint32(seg.InputParam), seg, rep, gamepadCb)
	case InterpretationAxis:
		if seg.OutputChannel == ChannelGamepad {
			converted, err := ConvertRange(value, int32(seg.LogicalMinimum), int32(seg.LogicalMaximum), ValueType(seg.InputParam))
			if err != nil {
				p.logger.Warn("axis range conversion failed", zap.Error(err))
				return
			}
			if gamepadCb != nil {
				gamepadCb(uint32(seg.OutputControl), converted)
			}
		}
	case InterpretationScale:
		if seg.OutputChannel == ChannelMouse {
			p.mouseMove(seg.OutputControl, value)
		}
	case InterpretationArray:
		if seg.OutputChannel == ChannelKeyboard && value != 0 {
			rep.keys.setKey(uint8(value))
		}
	}
}

func (p *Parser) dispatchTrigger(triggered bool, seg *Segment, rep *Report, gamepadCb func(uint32, uint32)) {
	if !triggered {
		return
	}
	switch seg.OutputChannel {
	case ChannelKeyboard:
		rep.keys.setKey(seg.OutputControl)
	case ChannelGamepad:
		if gamepadCb != nil {
			gamepadCb(uint32(seg.OutputControl), 1)
		}
	}
}

func (p *Parser) decodeBitfield(seg *Segment, rep *Report, data bits.Bits) {
	endBit := int(seg.StartBit) + int(seg.ReportCount)
	keyIndex := seg.OutputControl
	for bit := int(seg.StartBit); bit < endBit; bit++ {
		pressed := data.IsSet(bit)
		switch seg.OutputChannel {
		case ChannelKeyboard:
			if pressed {
				rep.keys.setKey(keyIndex)
			}
		case ChannelMouse:
			switch keyIndex {
			case mouseButton1:
				p.mouseSetButton(0, pressed)
			case mouseButton2:
				p.mouseSetButton(1, pressed)
			case mouseButton3:
				p.mouseSetButton(2, pressed)
			case mouseButton4:
				p.mouseSetButton(3, pressed)
			case mouseButton5:
				p.mouseSetButton(4, pressed)
			}
		}
		keyIndex++
	}
}

func (p *Parser) mouseSetButton(bit uint, pressed bool) {
	if pressed {
		p.mouse.buttons |= 1 << bit
	} else {
		p.mouse.buttons &^= 1 << bit
	}
	p.mouse.changed = true
}

func (p *Parser) mouseMove(control uint8, delta int32) {
	switch control {
	case mouseControlX:
		p.mouse.dx += int16(delta)
	case mouseControlY:
		p.mouse.dy += int16(delta)
	case mouseControlWheel:
		p.mouse.dz += int16(delta)
	}
	p.mouse.changed = true
}

// mapToUint8 rescales value from [min, max] onto [0, 0xFF], rounding
// to nearest. Grounded on the map_to_uint8 macro in
// original_source/src/hid_parser.cpp.
func mapToUint8(value int32, min int32, max int32) uint8 {
	return uint8((((value - min) * 0xFF) + ((max - min) >> 1)) / (max - min))
}
