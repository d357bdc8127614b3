// Package postings implements the Block Postings Store layered on top of
// package codec: writing and reading postings for a single term in
// fixed-size doc-id blocks with per-block skip metadata (max doc id, max
// BM25 score, and byte offsets), per spec.md §4.2.
package postings

import (
	"fmt"

	"github.com/oarkflow/kese/codec"
)

// DefaultBlockSize is B from spec.md §3: the number of postings per block.
const DefaultBlockSize = 128

// Descriptor is one block's skip-table entry: spec.md §6's
// (last_doc_id, max_score, byte_offset, byte_length, tf_byte_length),
// plus the posting count the codec needs to self-delimit decode (every
// block but the last holds the writer's block size in postings; the last may be
// short, so the count travels with the descriptor rather than being
// inferred).
type Descriptor struct {
	MaxDocID   uint32
	MaxScore   float32
	ByteOffset uint64
	ByteLength uint32
	TFLength   uint32
	Count      uint32
}

// ScoreFunc computes a single posting's BM25 contribution, used by the
// writer to derive each block's max_score skip entry (spec.md §4.2 step 3).
type ScoreFunc func(tf uint32, docID uint32) float32

// Writer accumulates (doc_id, tf) postings for one term and flushes full
// blocks through the chosen codec. offset tracks the writer's position in
// the shared postings file so descriptors carry absolute byte offsets.
type Writer struct {
	codec     codec.Codec
	blockSize int
	scoreFn   ScoreFunc
	out       ByteSink
	offset    uint64

	docs []uint32
	tfs  []uint32
	desc []Descriptor

	lastDocID uint32
	hasLast   bool
}

// ByteSink is the minimal append-only sink a Writer needs; *bufio.Writer
// and *bytes.Buffer both satisfy it.
type ByteSink interface {
	Write(p []byte) (int, error)
}

// NewWriter returns a Writer appending encoded blocks to out, starting at
// startOffset (the current length of the shared postings file).
func NewWriter(out ByteSink, startOffset uint64, c codec.Codec, blockSize int, scoreFn ScoreFunc) *Writer {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &Writer{
		codec:     c,
		blockSize: blockSize,
		scoreFn:   scoreFn,
		out:       out,
		offset:    startOffset,
		docs:      make([]uint32, 0, blockSize),
		tfs:       make([]uint32, 0, blockSize),
	}
}

// Add appends one posting. doc_id must be strictly greater than the
// previously added doc id for this term (spec.md §3 invariant).
func (w *Writer) Add(docID, tf uint32) error {
	if w.hasLast && docID <= w.lastDocID {
		return fmt.Errorf("postings: non-increasing doc id %d after %d", docID, w.lastDocID)
	}
	w.lastDocID = docID
	w.hasLast = true
	w.docs = append(w.docs, docID)
	w.tfs = append(w.tfs, tf)
	if len(w.docs) == w.blockSize {
		return w.flush()
	}
	return nil
}

func (w *Writer) flush() error {
	if len(w.docs) == 0 {
		return nil
	}
	gaps := codec.DGaps(w.docs)
	docBytes := w.codec.Encode(gaps)
	tfBytes := w.codec.Encode(w.tfs)

	var maxScore float32
	if w.scoreFn != nil {
		for i, docID := range w.docs {
			s := w.scoreFn(w.tfs[i], docID)
			if s > maxScore {
				maxScore = s
			}
		}
	}

	if _, err := w.out.Write(docBytes); err != nil {
		return fmt.Errorf("postings: write block: %w", err)
	}
	if _, err := w.out.Write(tfBytes); err != nil {
		return fmt.Errorf("postings: write block: %w", err)
	}

	w.desc = append(w.desc, Descriptor{
		MaxDocID:   w.docs[len(w.docs)-1],
		MaxScore:   maxScore,
		ByteOffset: w.offset,
		ByteLength: uint32(len(docBytes)),
		TFLength:   uint32(len(tfBytes)),
		Count:      uint32(len(w.docs)),
	})
	w.offset += uint64(len(docBytes) + len(tfBytes))
	w.docs = w.docs[:0]
	w.tfs = w.tfs[:0]
	return nil
}

// Finish flushes any residual partial block and returns the term's
// complete skip table.
func (w *Writer) Finish() ([]Descriptor, error) {
	if err := w.flush(); err != nil {
		return nil, err
	}
	return w.desc, nil
}

// Offset returns the writer's current position in the shared postings
// file, i.e. where the next term's first block will begin.
func (w *Writer) Offset() uint64 { return w.offset }

// ByteSource is the minimal random-access source a Reader needs; an
// *os.File (or an mmap-backed wrapper, per SPEC_FULL.md §6) satisfies it.
type ByteSource interface {
	ReadAt(p []byte, off int64) (int, error)
}

// Reader exposes a term's posting list for query-time access: block
// metadata without decoding (BlockIter) and on-demand block decode.
type Reader struct {
	src   ByteSource
	codec codec.Codec
	table []Descriptor
}

// NewReader builds a Reader over a term's skip table, backed by src (the
// shared, read-only postings file).
func NewReader(src ByteSource, c codec.Codec, table []Descriptor) *Reader {
	return &Reader{src: src, codec: c, table: table}
}

// NumBlocks returns the number of blocks in this term's posting list.
func (r *Reader) NumBlocks() int { return len(r.table) }

// BlockIter returns the block descriptors without decoding any payload.
func (r *Reader) BlockIter() []Descriptor { return r.table }

// Descriptor returns block i's skip-table entry.
func (r *Reader) Descriptor(i int) Descriptor { return r.table[i] }

// DecodeBlock decodes block i into caller-supplied buffers, returning the
// slices truncated to the actual number of postings in that block.
func (r *Reader) DecodeBlock(i int, outDocs, outTFs []uint32) ([]uint32, []uint32, error) {
	if i < 0 || i >= len(r.table) {
		return nil, nil, fmt.Errorf("postings: block index %d out of range", i)
	}
	d := r.table[i]
	n := int(d.Count)

	raw := make([]byte, int(d.ByteLength)+int(d.TFLength))
	if _, err := r.src.ReadAt(raw, int64(d.ByteOffset)); err != nil {
		return nil, nil, fmt.Errorf("postings: read block %d: %w", i, err)
	}

	if cap(outDocs) < n {
		outDocs = make([]uint32, n)
	}
	outDocs = outDocs[:n]
	if _, err := r.codec.DecodeInto(raw[:d.ByteLength], n, outDocs); err != nil {
		return nil, nil, fmt.Errorf("postings: decode block %d doc ids: %w", i, err)
	}
	gaps := outDocs
	docs := codec.UndoDGaps(gaps)
	copy(outDocs, docs)

	if cap(outTFs) < n {
		outTFs = make([]uint32, n)
	}
	outTFs = outTFs[:n]
	if _, err := r.codec.DecodeInto(raw[d.ByteLength:], n, outTFs); err != nil {
		return nil, nil, fmt.Errorf("postings: decode block %d tfs: %w", i, err)
	}
	return outDocs, outTFs, nil
}

// NextGeqBlock returns the index of the first block whose MaxDocID >=
// target, or -1 if no such block exists (the term's postings are
// exhausted below target). Used by cursor.Cursor.NextGeq for block-level
// skipping without decoding intermediate blocks (spec.md §4.6).
func (r *Reader) NextGeqBlock(from int, target uint32) int {
	for i := from; i < len(r.table); i++ {
		if r.table[i].MaxDocID >= target {
			return i
		}
	}
	return -1
}
