// Package codec implements the five interchangeable integer-block
// compression strategies shared by the SPIMI builder and the block
// postings store: VarByte, Simple-9, Simple-16, PForDelta, and Rice.
package codec

import "fmt"

// ErrCorrupt is returned by Decode/DecodeInto when the encoded byte
// sequence is malformed or ends before the requested count of values has
// been produced.
type ErrCorrupt struct {
	Codec string
	Cause string
}

func (e *ErrCorrupt) Error() string {
	return fmt.Sprintf("codec: %s corrupt: %s", e.Codec, e.Cause)
}

func corrupt(codecID, cause string) error {
	return &ErrCorrupt{Codec: codecID, Cause: cause}
}

// Codec encodes/decodes fixed-length runs of non-negative 32-bit integers.
// Implementations must be self-delimiting given expectedLen: the decoder
// never reads past data and never requires a length prefix inside data
// beyond what the format itself carries.
type Codec interface {
	// ID returns the codec's manifest identifier (e.g. "varbyte").
	ID() string
	// Encode packs block into a byte sequence.
	Encode(block []uint32) []byte
	// Decode unpacks exactly expectedLen values from data.
	Decode(data []byte, expectedLen int) ([]uint32, error)
	// DecodeInto decodes into a caller-supplied buffer, avoiding
	// allocation on hot query paths. out must have length >= expectedLen.
	DecodeInto(data []byte, expectedLen int, out []uint32) (int, error)
}

// ByID returns the Codec registered under name, matching the
// manifest.json "codec" field values from spec.md §6.
func ByID(name string) (Codec, error) {
	switch name {
	case "varbyte":
		return VarByte{}, nil
	case "simple9":
		return Simple9{}, nil
	case "simple16":
		return Simple16{}, nil
	case "pfordelta":
		return PForDelta{}, nil
	case "rice":
		return Rice{}, nil
	default:
		return nil, fmt.Errorf("codec: unknown codec id %q", name)
	}
}

// DGaps transforms a strictly increasing sequence of doc ids into its
// d-gap representation: gap[0] = doc_id[0], gap[i] = doc_id[i] - doc_id[i-1] - 1.
func DGaps(docIDs []uint32) []uint32 {
	gaps := make([]uint32, len(docIDs))
	var last uint32
	var first = true
	for i, id := range docIDs {
		if first {
			gaps[i] = id
			first = false
		} else {
			gaps[i] = id - last - 1
		}
		last = id
	}
	return gaps
}

// UndoDGaps reconstructs strictly increasing doc ids from their d-gap
// representation, the inverse of DGaps.
func UndoDGaps(gaps []uint32) []uint32 {
	docIDs := make([]uint32, len(gaps))
	var last uint32
	var first = true
	for i, g := range gaps {
		if first {
			docIDs[i] = g
			last = g
			first = false
		} else {
			last = last + g + 1
			docIDs[i] = last
		}
	}
	return docIDs
}
