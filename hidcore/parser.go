package hidcore

import (
	"fmt"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// reportRecordSize and segmentRecordSize are the arena-budget
// footprints charged per Report/Segment record. They stand in for
// sizeof(HID_REPORT)/sizeof(HID_SEG) in the reference allocator: the
// records themselves are ordinary Go struct values held in slices,
// but every creation still debits the Arena so the fixed-capacity
// contract remains a checked invariant (see arena.go).
const (
	reportRecordSize  = 40
	segmentRecordSize = 16
)

type globalState struct {
	usagePage      uint16
	logicalMinimum int32
	logicalMaximum int32
	reportID       uint8
	reportSize     uint8
	reportCount    uint8
}

type localState struct {
	usage    uint32
	usageMin uint32
	usageMax uint32
	usages   []uint32
}

func newLocalState() localState {
	return localState{usageMin: undefinedUsage, usageMax: undefinedUsage}
}

// Parser holds the bounded arena, the report/segment graph produced
// by the last ParseDescriptor, and the transient global/local/parser-
// wide state tables used while a parse is in progress. Construct one
// Parser per physical device interface and reuse it across re-parses;
// busy enforces that only one parse or decode runs at a time.
type Parser struct {
	logger  *zap.Logger
	arena   *Arena
	presets PresetTable

	reports  []Report
	segments []Segment

	global globalState
	local  localState

	startBit        uint16
	appUsage        uint32
	appUsagePage    uint16
	joystickIndex   uint8
	collectionDepth uint8
	usesReportIDs   bool
	currentReport   int

	mouse mouseAccumulator

	busy atomic.Bool
}

// NewParser builds a Parser with the given arena capacity (0 selects
// defaultArenaSize) and logger (nil selects a no-op logger).
func NewParser(arenaSize int, logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{
		logger:        logger,
		arena:         NewArena(arenaSize, logger),
		currentReport: -1,
	}
}

// ParseDescriptor resets the arena and all parser state, then walks
// desc's HID report-descriptor short-item grammar, consulting presets
// to assign output semantics to recognized fields.
//
// Local state (buffered usage, usage, usageMin/usageMax) is cleared
// at the end of every Main item: Input, Collection start/end, and
// Output/Feature alike, not just Input; see DESIGN.md for why this
// parser clears on every Main item rather than Input only.
func (p *Parser) ParseDescriptor(desc []byte, presets PresetTable) error {
	if !p.busy.CompareAndSwap(false, true) {
		return ErrConcurrentAccess
	}
	defer p.busy.Store(false)

	if len(desc) == 0 {
		return fmt.Errorf("%w: empty descriptor", ErrTruncatedItem)
	}

	p.arena.Reset()
	p.reports = p.reports[:0]
	p.segments = p.segments[:0]
	p.global = globalState{}
	p.local = newLocalState()
	p.startBit = 0
	p.appUsage = 0
	p.appUsagePage = 0
	p.joystickIndex = 0
	p.collectionDepth = 0
	p.usesReportIDs = false
	p.currentReport = -1
	p.presets = presets

	pos := 0
	for pos < len(desc) {
		prefix := desc[pos]
		if isLongItemPrefix(prefix) {
			return fmt.Errorf("%w: long item at byte %d", ErrUnsupportedItem, pos)
		}
		tag := tagPrefix(prefix)
		size := itemSize(prefix)
		pos++
		if pos+size > len(desc) {
			return fmt.Errorf("%w: item at byte %d declares %d payload bytes", ErrTruncatedItem, pos-1, size)
		}
		payload := desc[pos : pos+size]
		pos += size

		if err := p.dispatch(tag, payload); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) dispatch(tag Tag, payload []byte) error {
	switch tag {
	case tagInput:
		return p.mainInput(payload)
	case tagOutput, tagFeature:
		// Consumed without emission; output and feature reports are a non-goal.
		p.local = newLocalState()
		return nil
	case tagCollection:
		return p.mainCollectionStart(payload)
	case tagEndCollection:
		return p.mainCollectionEnd()

	case tagUsagePage:
		p.global.usagePage = uint16(toUint(payload))
	case tagLogicalMinimum:
		p.global.logicalMinimum = toInt(payload)
	case tagLogicalMaximum:
		if p.global.logicalMinimum < 0 {
			p.global.logicalMaximum = toInt(payload)
		} else {
			p.global.logicalMaximum = int32(toUint(payload))
		}
	case tagPhysicalMin, tagPhysicalMax, tagUnitExponent, tagUnit:
		// Consumed and stored nowhere: neither the reference
		// implementation nor this parser's segment/mapping logic
		// reads physical range or unit; only the item must be
		// recognized so the byte stream stays in sync.
	case tagReportSize:
		p.global.reportSize = uint8(toUint(payload))
	case tagReportID:
		p.usesReportIDs = true
		p.startBit = uint16(len(payload)) * 8
		p.global.reportID = uint8(toUint(payload))
		p.currentReport = -1
	case tagReportCount:
		p.global.reportCount = uint8(toUint(payload))
	case tagPush, tagPop:
		// Push/Pop of global state is an explicit non-goal.

	case tagUsage:
		v := toUint(payload)
		p.local.usage = v
		if len(p.local.usages) < maxBufferedUsages {
			p.local.usages = append(p.local.usages, v)
		} else {
			p.logger.Warn("buffered usage list full, dropping usage", zap.Uint32("usage", v))
		}
	case tagUsageMinimum:
		p.local.usageMin = toUint(payload)
	case tagUsageMaximum:
		p.local.usageMax = toUint(payload)
	case tagDesignatorIndex, tagDesignatorMinimum, tagDesignatorMaximum,
		tagStringIndex, tagStringMinimum, tagStringMaximum:
		// Consumed, not used by report/segment emission.
	default:
		return fmt.Errorf("%w: tag %#x", ErrUnsupportedItem, byte(tag))
	}
	return nil
}

func (p *Parser) mainInput(payload []byte) error {
	if len(payload) != 1 {
		return fmt.Errorf("%w: input item payload length %d", ErrTruncatedItem, len(payload))
	}
	flags := payload[0]

	if p.appUsagePage == UsagePageGenericDesktop &&
		(p.appUsage == UsageJoystick || p.appUsage == UsageGamepad ||
			p.appUsage == UsageKeyboard || p.appUsage == UsageMouse) {

		if p.currentReport < 0 {
			if err := p.openReport(); err != nil {
				return err
			}
		}

		switch {
		case flags&inputVariable != 0 && len(p.local.usages) > 0:
			if err := p.createUsageMapping(); err != nil {
				return err
			}
		case flags&inputVariable != 0 &&
			p.local.usageMin != undefinedUsage && p.local.usageMax != undefinedUsage &&
			p.global.reportSize == 1:
			if err := p.createBitfieldMapping(); err != nil {
				return err
			}
		case flags&inputVariable != 0:
			p.logger.Debug("input variable item with no usage or usage range declared; no segments emitted")
		default:
			if err := p.createArrayMapping(); err != nil {
				return err
			}
		}
	}

	p.startBit += uint16(p.global.reportSize) * uint16(p.global.reportCount)
	if p.currentReport >= 0 {
		p.reports[p.currentReport].Length = p.startBit
	}

	p.local = newLocalState()
	return nil
}

func (p *Parser) openReport() error {
	if _, ok := p.arena.Alloc(reportRecordSize, 4); !ok {
		return ErrArenaExhausted
	}
	p.reports = append(p.reports, Report{
		ReportID:     p.global.reportID,
		AppUsage:     p.appUsage,
		AppUsagePage: p.appUsagePage,
		keys:         newKeyBitmap(),
		oldKeys:      newKeyBitmap(),
	})
	p.currentReport = len(p.reports) - 1
	if p.appUsage == UsageJoystick || p.appUsage == UsageGamepad {
		p.joystickIndex++
	}
	return nil
}

func (p *Parser) mainCollectionStart(payload []byte) error {
	if len(payload) != 1 {
		return fmt.Errorf("%w: collection item payload length %d", ErrTruncatedItem, len(payload))
	}
	p.collectionDepth++
	if payload[0] == collectionApplication {
		p.appUsage = p.local.usage
		p.appUsagePage = p.global.usagePage
	}
	p.local = newLocalState()
	return nil
}

func (p *Parser) mainCollectionEnd() error {
	if p.collectionDepth == 0 {
		return fmt.Errorf("%w: end collection without matching collection", ErrUnsupportedItem)
	}
	p.collectionDepth--
	if p.collectionDepth == 0 {
		p.appUsage = 0
		p.appUsagePage = 0
	}
	p.local = newLocalState()
	return nil
}

func toUint(payload []byte) uint32 {
	switch len(payload) {
	case 0:
		return 0
	case 1:
		return uint32(payload[0])
	case 2:
		return uint32(payload[0]) | uint32(payload[1])<<8
	default:
		return uint32(payload[0]) | uint32(payload[1])<<8 | uint32(payload[2])<<16 | uint32(payload[3])<<24
	}
}

func toInt(payload []byte) int32 {
	switch len(payload) {
	case 0:
		return 0
	case 1:
		return int32(int8(payload[0]))
	case 2:
		return int32(int16(toUint(payload)))
	default:
		return int32(toUint(payload))
	}
}
