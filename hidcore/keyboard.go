package hidcore

import "github.com/proboterror/SMD2GC/pkg/bits"

// keyboardStateBits is the width, in bits, of the pressed/previous-
// pressed bitmap carried per Report: KEYBOARD_STATE_SIZE in the
// reference implementation (256 possible HID scancodes, 32 bytes).
const keyboardStateBits = 256

// keyBitmap is a fixed-width scancode bitmap. Bit addressing matches
// bits.Bits's own convention (bit 0 = LSB of byte 0), which is also
// exactly the HID report bit-numbering this parser needs elsewhere,
// so the same package serves both the raw report payload and this
// internal pressed-key bitmap.
type keyBitmap struct {
	bits.Bits
}

func newKeyBitmap() keyBitmap {
	return keyBitmap{bits.New(make([]byte, keyboardStateBits/8), 0)}
}

// setKey marks hidScancode pressed.
func (k keyBitmap) setKey(hidScancode uint8) {
	k.Set(int(hidScancode))
}

// diff invokes cb(scancode, pressed) for every scancode whose bit
// differs between k (the just-decoded report) and prev (the
// previously decoded report), then copies k into prev and clears k,
// matching the reference's XOR-then-swap sequence in ParseReport.
func (k keyBitmap) diff(prev keyBitmap, cb func(hidScancode uint8, pressed bool)) {
	for byteIdx, cur := range k.Bytes() {
		old := prev.Bytes()[byteIdx]
		xorred := cur ^ old
		if xorred == 0 {
			continue
		}
		for bit := 0; bit < 8; bit++ {
			if xorred&(1<<bit) == 0 {
				continue
			}
			hidCode := uint8(byteIdx<<3 | bit)
			pressed := cur&(1<<bit) != 0
			cb(hidCode, pressed)
		}
	}
	copy(prev.Bytes(), k.Bytes())
	k.ClearAll()
}
