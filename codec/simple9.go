package codec

import "math/bits"

// simple9Selector describes one of Simple9/Simple16's packings: how many
// values a 28-bit payload holds and how many bits each value consumes.
type simple9Selector struct {
	numValues int
	bitWidth  uint
}

// Simple-9 selectors, in the exact order required by spec.md §4.1:
// (28x1),(14x2),(9x3 w/ 1 unused),(7x4),(5x5 w/ 3 unused),(4x7),(3x9 w/
// 1 unused),(2x14),(1x28). Index in this slice is the 4-bit selector value.
var simple9Selectors = []simple9Selector{
	{28, 1},
	{14, 2},
	{9, 3},
	{7, 4},
	{5, 5},
	{4, 7},
	{3, 9},
	{2, 14},
	{1, 28},
}

// Simple9 packs runs of values into 32-bit words: a 4-bit selector in the
// high bits plus a fixed packing of the remaining 28 bits, as standardized
// by Anh & Moffat. The encoder greedily chooses, at each word, the
// selector that packs the most remaining values that still fit.
//
// Grounded on original_source/src/compressor/compressor.rs's dispatch to
// a simple9 module (the d-gap/raw split is identical; the bit-packing
// itself follows spec.md §4.1's table directly since the Rust crate does
// not document bit layout in a form translatable verbatim).
type Simple9 struct{}

func (Simple9) ID() string { return "simple9" }

func fitsWidth(v uint32, width uint) bool {
	if width >= 32 {
		return true
	}
	return v < (uint32(1) << width)
}

func chooseSelector(block []uint32, pos int, selectors []simple9Selector) int {
	for sel, s := range selectors {
		n := s.numValues
		if pos+n > len(block) {
			n = len(block) - pos
		}
		ok := true
		for i := 0; i < n; i++ {
			if !fitsWidth(block[pos+i], s.bitWidth) {
				ok = false
				break
			}
		}
		if ok {
			return sel
		}
	}
	// No selector fits a value >= 2^28; fall back to the single 28-bit
	// packing, in which such a value keeps only its low 28 bits.
	return len(selectors) - 1
}

func (c Simple9) Encode(block []uint32) []byte {
	out := make([]byte, 0, len(block))
	pos := 0
	for pos < len(block) {
		sel := chooseSelector(block, pos, simple9Selectors)
		s := simple9Selectors[sel]
		word := uint32(sel) << 28
		for i := 0; i < s.numValues; i++ {
			var v uint32
			if pos+i < len(block) {
				v = block[pos+i]
			}
			word |= (v & ((uint32(1) << s.bitWidth) - 1)) << (uint(i) * s.bitWidth)
		}
		out = append(out, byte(word), byte(word>>8), byte(word>>16), byte(word>>24))
		pos += s.numValues
	}
	return out
}

func (c Simple9) Decode(data []byte, expectedLen int) ([]uint32, error) {
	out := make([]uint32, expectedLen)
	n, err := c.DecodeInto(data, expectedLen, out)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

func (Simple9) DecodeInto(data []byte, expectedLen int, out []uint32) (int, error) {
	decoded := 0
	pos := 0
	for decoded < expectedLen {
		if pos+4 > len(data) {
			return decoded, corrupt("simple9", "premature EOF")
		}
		word := uint32(data[pos]) | uint32(data[pos+1])<<8 | uint32(data[pos+2])<<16 | uint32(data[pos+3])<<24
		pos += 4
		sel := int(word >> 28)
		if sel >= len(simple9Selectors) {
			return decoded, corrupt("simple9", "invalid selector")
		}
		s := simple9Selectors[sel]
		mask := (uint32(1) << s.bitWidth) - 1
		for i := 0; i < s.numValues && decoded < expectedLen; i++ {
			out[decoded] = (word >> (uint(i) * s.bitWidth)) & mask
			decoded++
		}
	}
	return decoded, nil
}

// bitsNeeded returns the minimum number of bits required to represent v.
func bitsNeeded(v uint32) uint {
	if v == 0 {
		return 0
	}
	return uint(bits.Len32(v))
}
