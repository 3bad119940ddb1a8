// Package bits provides a bit-addressable view over a byte slice,
// used both for raw HID report payloads and for the fixed-width
// scancode bitmaps hidcore.keyBitmap builds on top of it.
package bits

// Bits addresses the bits of an underlying byte slice, bit 0 being
// the LSB of byte 0, matching HID report bit numbering.
type Bits struct {
	missingBits uint8
	bytes       []byte
}

// New wraps data as a bit view; missingBits trims that many unused
// high bits off the final byte, for payloads whose bit length isn't a
// multiple of 8.
func New(data []byte, missingBits int) Bits {
	return Bits{
		bytes:       data,
		missingBits: uint8(missingBits),
	}
}

// Bytes returns the underlying byte slice backing b.
func (b Bits) Bytes() []byte {
	return b.bytes
}

// Len returns the number of addressable bits in b.
func (b Bits) Len() int {
	return len(b.bytes)*8 - int(b.missingBits)
}

// IsSet reports whether bit is set. Out-of-range bits read as unset.
func (b Bits) IsSet(bit int) bool {
	if bit >= b.Len() {
		return false
	}
	byteOffset := bit / 8
	bitOffset := bit % 8
	return b.bytes[byteOffset]&(1<<bitOffset) != 0
}

// Set sets bit, reporting whether it changed. Out-of-range bits are a
// no-op and report no change.
func (b Bits) Set(bit int) bool {
	if bit >= b.Len() {
		return false
	}
	byteOffset := bit / 8
	bitOffset := bit % 8
	changed := b.bytes[byteOffset]&(1<<bitOffset) == 0
	b.bytes[byteOffset] |= 1 << bitOffset
	return changed
}

// ClearAll zeroes every byte, reporting whether any bit was set.
func (b Bits) ClearAll() bool {
	changed := false
	for i := range b.bytes {
		if b.bytes[i] != 0 {
			changed = true
		}
		b.bytes[i] = 0
	}
	return changed
}
