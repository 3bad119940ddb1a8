package hidcore

// Channel names which external subsystem a Segment ultimately reports
// into. Closed sum type per the re-architecture called for when the
// same concept was an ad-hoc uint8 shared across parser, preset and
// decoder.
type Channel uint8

const (
	ChannelKeyboard Channel = iota
	ChannelMouse
	ChannelGamepad
)

func (c Channel) String() string {
	switch c {
	case ChannelKeyboard:
		return "keyboard"
	case ChannelMouse:
		return "mouse"
	case ChannelGamepad:
		return "gamepad"
	default:
		return "unknown"
	}
}

// Interpretation names how a Segment's extracted raw value becomes a
// callback invocation.
type Interpretation uint8

const (
	InterpretationNone Interpretation = iota
	InterpretationThresholdBelow
	InterpretationThresholdAbove
	InterpretationScale
	InterpretationArray
	InterpretationBitfield
	InterpretationEqual
	InterpretationAxis
)

func (i Interpretation) String() string {
	switch i {
	case InterpretationThresholdBelow:
		return "threshold-below"
	case InterpretationThresholdAbove:
		return "threshold-above"
	case InterpretationScale:
		return "scale"
	case InterpretationArray:
		return "array"
	case InterpretationBitfield:
		return "bitfield"
	case InterpretationEqual:
		return "equal"
	case InterpretationAxis:
		return "axis"
	default:
		return "none"
	}
}

// ValueType is one of the four axis value ranges ConvertRange
// understands, plus the catch-all "custom" it refuses to convert.
type ValueType uint8

const (
	ValueTypeUint8 ValueType = iota
	ValueTypeInt8
	ValueTypeUint16
	ValueTypeInt16
	ValueTypeCustom
)

func (t ValueType) String() string {
	switch t {
	case ValueTypeUint8:
		return "uint8"
	case ValueTypeInt8:
		return "int8"
	case ValueTypeUint16:
		return "uint16"
	case ValueTypeInt16:
		return "int16"
	default:
		return "custom"
	}
}

// Usage pages referenced by the parser's classification rules (HID
// Usage Tables v1.12, Table 1).
const (
	UsagePageGenericDesktop uint16 = 0x01
	UsagePageKeyboard       uint16 = 0x07
	UsagePageButton         uint16 = 0x09
	UsagePageVendor         uint16 = 0xFF00
)

// Application-collection usages on the Generic Desktop page (HID
// Usage Tables v1.12, Table 6) that this parser recognizes as device
// roles worth extracting segments for.
const (
	UsageMouse    uint32 = 0x02
	UsageJoystick uint32 = 0x04
	UsageGamepad  uint32 = 0x05
	UsageKeyboard uint32 = 0x06

	UsageX     uint32 = 0x30
	UsageY     uint32 = 0x31
	UsageWheel uint32 = 0x38
)

// Mouse button indices as they appear as HID Button-page usage values
// (1-based); the bitfield decode path dispatches directly on these.
const (
	mouseButton1 uint8 = iota + 1
	mouseButton2
	mouseButton3
	mouseButton4
	mouseButton5
)

// undefinedUsage is the sentinel value for "usage minimum/maximum not
// declared in this Input cycle". 0xFFFF is technically a legal HID
// usage, so this is lossy in the 0xFF00+ vendor-usage range; see
// DESIGN.md for why it is kept rather than re-architected to an
// optional type.
const undefinedUsage uint32 = 0xFFFF

// maxBufferedUsages bounds the per-Input-item buffered usage list;
// usages beyond this count are silently dropped (non-fatal).
const maxBufferedUsages = 16

// PresetEntry is a single caller-supplied rule matching a descriptor
// field to an output channel/control/interpretation. The filter
// fields are matched against the parser's current joystick index,
// global usage page, and buffered usage during the mapping scan.
type PresetEntry struct {
	PadIndex       uint8
	UsagePage      uint16
	Usage          uint32
	Channel        Channel
	Control        uint8
	Interpretation Interpretation
	Param          uint16
}

// PresetTable is an ordered, caller-owned set of PresetEntry rules.
// The reference implementation terminates its array with a sentinel
// entry whose InputType is MAP_TYPE_NONE; a Go slice's length already
// carries that information, so PresetTable needs no sentinel and
// ParseDescriptor simply ranges over it.
type PresetTable []PresetEntry

// Segment is a bit-level extraction rule produced by ParseDescriptor
// and consumed by ParseReport.
type Segment struct {
	StartBit       uint16
	ReportSize     uint8
	ReportCount    uint8
	LogicalMinimum int16
	LogicalMaximum uint16

	OutputChannel  Channel
	OutputControl  uint8
	Interpretation Interpretation
	InputParam     uint16
}

// Report is one HID Report ID's worth of parsed structure: its total
// bit length and the ordered segments that extract its fields, plus
// the keyboard edge-detection bitmaps private to this report.
type Report struct {
	ReportID     uint8
	AppUsage     uint32
	AppUsagePage uint16
	Length       uint16

	segments []int // indices into Parser.segments, in declaration order

	keys    keyBitmap
	oldKeys keyBitmap
}

// Callbacks bundles the three optional dispatch functions ParseReport
// invokes. A nil field means "do not dispatch this channel," matching
// the reference implementation's default-nullptr callback parameters.
type Callbacks struct {
	Gamepad  func(control uint32, value uint32)
	Keyboard func(hidScancode uint8, pressed bool)
	Mouse    func(dx, dy, dz int16, buttons uint8)
}
