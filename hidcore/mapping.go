package hidcore

import "go.uber.org/zap"

// createSegment allocates a Segment from the current global state,
// appends it to both the parser-wide segment list and the currently
// open report, and returns its index. Grounded on CreateSeg in
// original_source/src/hid_parser.cpp.
func (p *Parser) createSegment(startBit uint16) (int, bool) {
	if _, ok := p.arena.Alloc(segmentRecordSize, 4); !ok {
		return 0, false
	}
	if p.global.reportSize > 16 {
		p.logger.Warn("segment report size exceeds 16 bits; value will be narrowed",
			zap.Uint8("reportSize", p.global.reportSize))
	}
	seg := Segment{
		StartBit:       startBit,
		ReportSize:     p.global.reportSize,
		ReportCount:    p.global.reportCount,
		LogicalMinimum: int16(p.global.logicalMinimum),
		LogicalMaximum: uint16(p.global.logicalMaximum),
	}
	p.segments = append(p.segments, seg)
	idx := len(p.segments) - 1
	p.reports[p.currentReport].segments = append(p.reports[p.currentReport].segments, idx)
	return idx, true
}

// createUsageMapping handles a variable Input item that declared one
// or more explicit Usage items (as opposed to a Usage Minimum/Maximum
// range). Mouse X/Y/Wheel usages get a fixed built-in mapping;
// joystick/gamepad usages are resolved against the preset table.
// Grounded on the USAGE-buffer branch of CreateUsageMapping.
func (p *Parser) createUsageMapping() error {
	startBit := p.startBit
	for _, usage := range p.local.usages {
		switch p.appUsage {
		case UsageMouse:
			if p.global.usagePage != UsagePageGenericDesktop {
				startBit += uint16(p.global.reportSize)
				continue
			}
			idx, ok := p.createSegment(startBit)
			if !ok {
				return ErrArenaExhausted
			}
			seg := &p.segments[idx]
			seg.OutputChannel = ChannelMouse
			seg.Interpretation = InterpretationScale
			switch usage {
			case UsageX:
				seg.OutputControl = mouseControlX
			case UsageY:
				seg.OutputControl = mouseControlY
			case UsageWheel:
				seg.OutputControl = mouseControlWheel
			}
		case UsageJoystick, UsageGamepad:
			p.local.usage = usage
			if err := p.scanPresets(startBit); err != nil {
				return err
			}
		}
		startBit += uint16(p.global.reportSize)
	}
	return nil
}

// createBitfieldMapping handles a variable Input item declared via a
// Usage Minimum/Maximum range with ReportSize 1: one bit per usage in
// the range. Keyboard and mouse-button pages get a built-in mapping;
// joystick/gamepad usages are resolved per-bit against the preset
// table. Grounded on the USAGE_MIN/MAX branch of CreateUsageMapping.
func (p *Parser) createBitfieldMapping() error {
	startBit := p.startBit
	switch p.appUsage {
	case UsageKeyboard:
		if p.global.usagePage != UsagePageKeyboard {
			return nil
		}
		idx, ok := p.createSegment(startBit)
		if !ok {
			return ErrArenaExhausted
		}
		seg := &p.segments[idx]
		seg.OutputChannel = ChannelKeyboard
		seg.OutputControl = uint8(p.local.usageMin)
		seg.Interpretation = InterpretationBitfield
	case UsageMouse:
		if p.global.usagePage != UsagePageButton {
			return nil
		}
		idx, ok := p.createSegment(startBit)
		if !ok {
			return ErrArenaExhausted
		}
		seg := &p.segments[idx]
		seg.OutputChannel = ChannelMouse
		seg.OutputControl = uint8(p.local.usageMin)
		seg.Interpretation = InterpretationBitfield
	case UsageJoystick, UsageGamepad:
		// Matched against the byte-sized buffered usage the preset
		// scan compares against, so usages above 255 never match; see
		// DESIGN.md for the Open Question this resolves.
		max := p.local.usageMax
		if max > 255 {
			max = 255
		}
		for u := p.local.usageMin; u < max; u++ {
			p.local.usage = u
			if err := p.scanPresets(startBit); err != nil {
				return err
			}
			startBit += uint16(p.global.reportSize)
		}
	}
	return nil
}

// createArrayMapping handles a non-variable (array) Input item: the
// only recognized array source is a keyboard scancode array, where
// each report slot of ReportSize bits holds one currently-pressed
// scancode (0 meaning "no key"). Grounded on the array branch of
// CreateUsageMapping.
func (p *Parser) createArrayMapping() error {
	startBit := p.startBit
	if p.appUsage == UsageKeyboard && p.global.usagePage == UsagePageKeyboard {
		for i := uint8(0); i < p.global.reportCount; i++ {
			idx, ok := p.createSegment(startBit)
			if !ok {
				return ErrArenaExhausted
			}
			seg := &p.segments[idx]
			seg.OutputChannel = ChannelKeyboard
			seg.Interpretation = InterpretationArray
			startBit += uint16(p.global.reportSize)
		}
	}
	return nil
}

// scanPresets matches the current joystick index / usage page / usage
// against every entry in the preset table, creating one segment per
// match: a field may legitimately be claimed by more than one preset
// entry. Grounded on CreateMapping.
func (p *Parser) scanPresets(startBit uint16) error {
	for _, preset := range p.presets {
		if preset.PadIndex != p.joystickIndex ||
			preset.UsagePage != p.global.usagePage ||
			preset.Usage != p.local.usage {
			continue
		}
		idx, ok := p.createSegment(startBit)
		if !ok {
			return ErrArenaExhausted
		}
		seg := &p.segments[idx]
		seg.OutputChannel = preset.Channel
		seg.OutputControl = preset.Control
		seg.Interpretation = preset.Interpretation
		seg.InputParam = preset.Param
	}
	return nil
}
