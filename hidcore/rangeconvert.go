package hidcore

import "fmt"

// classifyValueType infers a ValueType from a (min, max) logical
// range, exactly matching convert_range's source_type detection in
// original_source/src/hid_parser.cpp: an exact match against one of
// the four canonical ranges picks that type, otherwise "custom".
func classifyValueType(min int32, max int32) ValueType {
	switch {
	case min == 0 && max == 0xFF:
		return ValueTypeUint8
	case min == -128 && max == 127:
		return ValueTypeInt8
	case min == 0 && max == 0xFFFF:
		return ValueTypeUint16
	case min == -32768 && max == 32767:
		return ValueTypeInt16
	default:
		return ValueTypeCustom
	}
}

// ConvertRange canonicalizes a raw extracted value from its source
// logical range into one of the four supported value-type ranges.
// The midpoint of the source range maps to the midpoint of the target
// range: shifts of 8 bits widen/narrow between 8- and 16-bit types,
// and a bias of 0x80/0x8000 crosses signedness. Custom or 32-bit
// ranges are unsupported and return ErrUnsupportedRange, matching the
// reference implementation's assert(false) in a debug build (a
// release build there silently returns zero; this port always
// surfaces the error so callers decide how to degrade).
func ConvertRange(value int32, min int32, max int32, target ValueType) (uint32, error) {
	source := classifyValueType(min, max)
	if source == target {
		return uint32(value), nil
	}
	switch source {
	case ValueTypeInt8:
		switch target {
		case ValueTypeUint8:
			return uint32(value + 128), nil
		case ValueTypeUint16:
			return uint32(value+128) << 8, nil
		case ValueTypeInt16:
			return uint32(value << 8), nil
		}
	case ValueTypeUint8:
		switch target {
		case ValueTypeInt8:
			return uint32(value - 0x80), nil
		case ValueTypeUint16:
			return uint32(value) << 8, nil
		case ValueTypeInt16:
			return uint32(value<<8) - 0x8000, nil
		}
	case ValueTypeInt16:
		switch target {
		case ValueTypeUint8:
			return uint32(value+0x8000) >> 8, nil
		case ValueTypeInt8:
			return uint32(value >> 8), nil
		case ValueTypeUint16:
			return uint32(value + 0x8000), nil
		}
	case ValueTypeUint16:
		switch target {
		case ValueTypeUint8:
			return uint32(value) >> 8, nil
		case ValueTypeInt8:
			return uint32(value>>8) - 0x80, nil
		case ValueTypeInt16:
			return uint32(value - 0x8000), nil
		}
	}
	return 0, fmt.Errorf("%w: min=%d max=%d target=%s", ErrUnsupportedRange, min, max, target)
}
