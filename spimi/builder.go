// Package spimi implements the SPIMI Builder of spec.md §4.3: a
// bounded-memory accumulator that buffers (doc_id, tf) postings per
// term and spills sorted, codec-compressed block files once a memory
// budget is exceeded.
//
// The in-memory term -> posting-buffer map is grounded on
// internal/bptree.BPlusTree (adapted from the teacher's btree.go),
// which keeps terms lexicographically ordered as they are inserted so
// Flush's "sort terms lexicographically" step (spec.md §4.3 step 1) is
// free: an in-order traversal already yields sorted terms.
package spimi

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/oarkflow/kese/codec"
	"github.com/oarkflow/kese/internal/bptree"
)

// termBuffer is one term's growable posting list, accumulated across
// calls to AddDocument until the next flush.
type termBuffer struct {
	docs []uint32
	tfs  []uint32
}

// approxBytes estimates the buffer's live memory footprint for the
// builder's memory counter: slice headers plus element storage, loosely
// matching the teacher's GenericRecord size-estimation approach in
// performance.go (approximate, conservatively rounded up rather than
// exact, per spec.md §4.3 "Memory accounting").
func (b *termBuffer) approxBytes() uint64 {
	return uint64(cap(b.docs))*4 + uint64(cap(b.tfs))*4 + 48
}

// BlockSink is the minimum a SPIMI block file target needs; *os.File
// satisfies it directly.
type BlockSink interface {
	io.Writer
	io.Closer
}

// NewBlockFileFunc creates the k'th block file (spimi_block_{k}.tmp in
// spec.md §4.3's naming) and returns it alongside the path/identifier
// the merger will later use to reopen it for reading.
type NewBlockFileFunc func(k int) (sink BlockSink, path string, err error)

// Config holds the SPIMI builder's tuning knobs (spec.md §4.3).
type Config struct {
	MemoryBudgetBytes uint64
	BlockSizePostings int
	Codec             codec.Codec
}

// BlockFile describes one flushed SPIMI block file, handed to the
// merger (package merge).
type BlockFile struct {
	Path string
}

// Builder is a single-goroutine SPIMI accumulator; see ParallelBuilder
// for the multi-worker variant spec.md §9 permits (independent
// dictionaries, no shared mutable state).
type Builder struct {
	cfg         Config
	newBlock    NewBlockFileFunc
	terms       *bptree.BPlusTree[string, *termBuffer]
	memUsed     uint64
	blockCount  int
	blockPaths  []string
	docLens     map[uint32]uint32
	n           uint32
	totalLength uint64
	seenDocs    map[uint32]bool
}

// NewBuilder returns a Builder that spills block files via newBlock
// (production wiring creates spimi_block_{k}.tmp under a work
// directory; tests can hand back in-memory buffers).
func NewBuilder(cfg Config, newBlock NewBlockFileFunc) *Builder {
	if cfg.BlockSizePostings <= 0 {
		cfg.BlockSizePostings = 128
	}
	if cfg.Codec == nil {
		cfg.Codec = codec.VarByte{}
	}
	return &Builder{
		cfg:      cfg,
		newBlock: newBlock,
		terms:    bptree.New[string, *termBuffer](64),
		docLens:  make(map[uint32]uint32),
		seenDocs: make(map[uint32]bool),
	}
}

// AddDocument materializes per-document term frequencies from
// tokenStream and appends one (doc_id, tf) posting per unique term,
// flushing when the memory budget is exceeded. doc_id must not have
// been seen before (spec.md §4.3 invariant: a doc id is fed to
// add_document at most once).
func (b *Builder) AddDocument(docID uint32, tokenStream []string) error {
	if b.seenDocs[docID] {
		return fmt.Errorf("spimi: doc id %d added more than once", docID)
	}
	b.seenDocs[docID] = true

	freq := make(map[string]uint32, len(tokenStream))
	for _, tok := range tokenStream {
		freq[tok]++
	}
	for term, tf := range freq {
		buf, ok := b.terms.Get(term)
		if !ok {
			buf = &termBuffer{}
			before := buf.approxBytes()
			b.memUsed += uint64(len(term)) + 16
			buf.docs = append(buf.docs, docID)
			buf.tfs = append(buf.tfs, tf)
			b.memUsed += buf.approxBytes() - before
			b.terms.Insert(term, buf)
			continue
		}
		before := buf.approxBytes()
		buf.docs = append(buf.docs, docID)
		buf.tfs = append(buf.tfs, tf)
		b.memUsed += buf.approxBytes() - before
	}

	b.docLens[docID] = uint32(len(tokenStream))
	b.totalLength += uint64(len(tokenStream))
	if docID+1 > b.n {
		b.n = docID + 1
	}

	if b.memUsed >= b.cfg.MemoryBudgetBytes && b.cfg.MemoryBudgetBytes > 0 {
		return b.Flush()
	}
	return nil
}

// Flush writes the current in-memory term dictionary to a new sorted
// block file and resets accumulator state (spec.md §4.3 "Flush").
func (b *Builder) Flush() error {
	if b.terms.Len() == 0 {
		return nil
	}
	sink, path, err := b.newBlock(b.blockCount)
	if err != nil {
		return fmt.Errorf("spimi: create block %d: %w", b.blockCount, err)
	}

	pairs := b.terms.InOrder()
	for _, p := range pairs {
		if err := writeBlockRecord(sink, p.Key, p.Value, b.cfg.Codec); err != nil {
			sink.Close()
			return fmt.Errorf("spimi: write block %d: %w", b.blockCount, err)
		}
	}
	if err := sink.Close(); err != nil {
		return fmt.Errorf("spimi: close block %d: %w", b.blockCount, err)
	}

	b.blockPaths = append(b.blockPaths, path)
	b.blockCount++
	b.terms = bptree.New[string, *termBuffer](64)
	b.memUsed = 0
	return nil
}

// writeBlockRecord encodes one term's header record:
// term_bytes_len | term_bytes | posting_count | doc_bytes_len |
// doc_bytes | tf_bytes_len | tf_bytes, per spec.md §4.3 step 3 (the two
// length-prefixed codec streams let the merger read doc ids and tfs
// back independently, mirroring package postings' block layout).
func writeBlockRecord(w io.Writer, term string, buf *termBuffer, c codec.Codec) error {
	gaps := codec.DGaps(buf.docs)
	docBytes := c.Encode(gaps)
	tfBytes := c.Encode(buf.tfs)

	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(term)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := io.WriteString(w, term); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(buf.docs)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(docBytes)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := w.Write(docBytes); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(tfBytes)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := w.Write(tfBytes); err != nil {
		return err
	}
	return nil
}

// DocStats summarizes the collection statistics SPIMI hands to the
// merger and ultimately to doc_meta.bin (spec.md §4.3 "Finalization").
type DocStats struct {
	N       uint32
	DocLens map[uint32]uint32
	AvgDL   float64
}

// Finish flushes any residual state and returns the block file list
// plus document statistics (N, doc lengths, avgdl).
func (b *Builder) Finish() ([]BlockFile, DocStats, error) {
	if err := b.Flush(); err != nil {
		return nil, DocStats{}, err
	}
	stats := DocStats{N: b.n, DocLens: b.docLens}
	if b.n > 0 {
		stats.AvgDL = float64(b.totalLength) / float64(b.n)
	}
	files := make([]BlockFile, len(b.blockPaths))
	for i, p := range b.blockPaths {
		files[i] = BlockFile{Path: p}
	}
	return files, stats, nil
}
