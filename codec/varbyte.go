package codec

// VarByte encodes each integer as a little-endian base-128 sequence of
// 7-bit groups. Continuation bytes have their high bit set; the final
// byte of a value has it clear. Zero encodes as a single 0x00 byte.
//
// Grounded on the teacher's own base-128 continuation-byte varint in
// performance.go's encodeVarint/decodeVarint, generalized here from a
// signed zigzag varint to the unsigned 7-bit-group form spec.md §4.1
// requires.
type VarByte struct{}

func (VarByte) ID() string { return "varbyte" }

func (VarByte) Encode(block []uint32) []byte {
	out := make([]byte, 0, len(block)*2)
	for _, v := range block {
		for {
			b := byte(v & 0x7f)
			v >>= 7
			if v != 0 {
				out = append(out, b|0x80)
				continue
			}
			out = append(out, b)
			break
		}
	}
	return out
}

func (c VarByte) Decode(data []byte, expectedLen int) ([]uint32, error) {
	out := make([]uint32, expectedLen)
	n, err := c.DecodeInto(data, expectedLen, out)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}

func (VarByte) DecodeInto(data []byte, expectedLen int, out []uint32) (int, error) {
	pos := 0
	for i := 0; i < expectedLen; i++ {
		var v uint32
		var shift uint
		for {
			if pos >= len(data) {
				return i, corrupt("varbyte", "premature EOF")
			}
			b := data[pos]
			pos++
			v |= uint32(b&0x7f) << shift
			if b&0x80 == 0 {
				break
			}
			shift += 7
			if shift > 35 {
				return i, corrupt("varbyte", "integer overflow")
			}
		}
		out[i] = v
	}
	return expectedLen, nil
}
