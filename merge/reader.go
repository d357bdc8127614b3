// Package merge implements the Block Merger of spec.md §4.4: a k-way
// merge of SPIMI block files into the final postings stream plus an
// in-memory term dictionary ready for index package serialization.
package merge

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/oarkflow/kese/codec"
)

// record is one term's fully-decoded posting list as read from a
// single SPIMI block file (package spimi's writeBlockRecord layout).
type record struct {
	term string
	docs []uint32
	tfs  []uint32
}

// BlockFileReader sequentially decodes spimi block-file records
// (term_bytes_len | term_bytes | posting_count | doc_bytes_len |
// doc_bytes | tf_bytes_len | tf_bytes), reversing each term's d-gap
// transform as it reads.
type BlockFileReader struct {
	r     io.Reader
	codec codec.Codec
}

// NewBlockFileReader wraps r (the SPIMI block file contents) for
// sequential term-record decoding under codec c.
func NewBlockFileReader(r io.Reader, c codec.Codec) *BlockFileReader {
	return &BlockFileReader{r: r, codec: c}
}

func readUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// Next decodes the next term record, or returns io.EOF once the file
// is exhausted.
func (b *BlockFileReader) Next() (*record, error) {
	termLen, err := readUint32(b.r)
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("merge: read term length: %w", err)
	}
	termBytes := make([]byte, termLen)
	if _, err := io.ReadFull(b.r, termBytes); err != nil {
		return nil, fmt.Errorf("merge: read term bytes: %w", err)
	}
	count, err := readUint32(b.r)
	if err != nil {
		return nil, fmt.Errorf("merge: read posting count: %w", err)
	}
	docBytesLen, err := readUint32(b.r)
	if err != nil {
		return nil, fmt.Errorf("merge: read doc bytes length: %w", err)
	}
	docBytes := make([]byte, docBytesLen)
	if _, err := io.ReadFull(b.r, docBytes); err != nil {
		return nil, fmt.Errorf("merge: read doc bytes: %w", err)
	}
	tfBytesLen, err := readUint32(b.r)
	if err != nil {
		return nil, fmt.Errorf("merge: read tf bytes length: %w", err)
	}
	tfBytes := make([]byte, tfBytesLen)
	if _, err := io.ReadFull(b.r, tfBytes); err != nil {
		return nil, fmt.Errorf("merge: read tf bytes: %w", err)
	}

	gaps, err := b.codec.Decode(docBytes, int(count))
	if err != nil {
		return nil, fmt.Errorf("merge: decode doc ids for term %q: %w", termBytes, err)
	}
	tfs, err := b.codec.Decode(tfBytes, int(count))
	if err != nil {
		return nil, fmt.Errorf("merge: decode tfs for term %q: %w", termBytes, err)
	}
	return &record{term: string(termBytes), docs: codec.UndoDGaps(gaps), tfs: tfs}, nil
}
