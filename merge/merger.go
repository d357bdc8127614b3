package merge

import (
	"container/heap"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/oarkflow/kese/codec"
	"github.com/oarkflow/kese/postings"
	"github.com/oarkflow/kese/scoring"
)

// TermEntry is one merged term's dictionary entry: spec.md §4.4's
// (term, df, postings_offset, block_count, skip_table_offset), with
// the skip table itself carried inline rather than as a byte offset —
// package index's termdict.go is responsible for serializing this into
// term_dict.bin / skip_tables.bin.
type TermEntry struct {
	Term          string
	DF            uint32
	PostingsBytes uint64
	SkipTable     []postings.Descriptor
}

// DocLenFunc resolves a document's token length, needed to compute
// each block's max BM25 score while writing merged postings.
type DocLenFunc func(docID uint32) uint32

// Config configures a merge run: the codec and block size postings
// are re-encoded with (independent of whatever codec each SPIMI block
// file used — spec.md does not require them to match, though callers
// in this codebase always keep them aligned), and the BM25 parameters
// and collection statistics needed for block-max-score computation.
type Config struct {
	Codec      codec.Codec
	BlockSize  int
	N          uint32
	AvgDL      float64
	DocLen     DocLenFunc
	BM25Params scoring.Params
}

// heapItem is one open block file's current (unconsumed) term record.
type heapItem struct {
	term    string
	fileIdx int
	rec     *record
	reader  *BlockFileReader
}

type itemHeap []*heapItem

func (h itemHeap) Len() int { return len(h) }
func (h itemHeap) Less(i, j int) bool {
	if h[i].term != h[j].term {
		return h[i].term < h[j].term
	}
	return h[i].fileIdx < h[j].fileIdx
}
func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *itemHeap) Push(x any)   { *h = append(*h, x.(*heapItem)) }
func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// Merge performs the k-way merge of spec.md §4.4: seed a min-heap with
// each block file's first term, repeatedly pop all entries sharing the
// current minimum term, gather their postings, sort by doc id, and
// emit the merged list through the Block Postings Store writer.
//
// SPIMI's add_document invariant guarantees each doc id was flushed by
// exactly one file, so within one term's gathered postings every doc
// id appears at most once; the sort makes the merge correct regardless
// of how those files were produced — a single sequential Builder's
// files are already doc-id-ascending by flush order and the sort is a
// no-op, while spimi.ParallelBuilder's workers each flush an
// interleaved subset of the doc-id space (round-robin by doc id), so
// file order alone no longer implies doc-id order for them.
func Merge(readers []*BlockFileReader, out postings.ByteSink, cfg Config) ([]TermEntry, error) {
	h := make(itemHeap, 0, len(readers))
	for i, r := range readers {
		rec, err := r.Next()
		if err != nil {
			if !isEOF(err) {
				return nil, fmt.Errorf("merge: seed file %d: %w", i, err)
			}
			continue
		}
		heap.Push(&h, &heapItem{term: rec.term, fileIdx: i, rec: rec, reader: r})
	}

	var entries []TermEntry
	var offset uint64

	for h.Len() > 0 {
		term := h[0].term
		var group []*heapItem
		for h.Len() > 0 && h[0].term == term {
			it := heap.Pop(&h).(*heapItem)
			group = append(group, it)
		}

		var allDocs, allTFs []uint32
		for _, it := range group {
			allDocs = append(allDocs, it.rec.docs...)
			allTFs = append(allTFs, it.rec.tfs...)
		}
		if len(group) > 1 {
			sortPostingsByDocID(allDocs, allTFs)
		}
		df := uint32(len(allDocs))

		scoreFn := func(tf, docID uint32) float32 {
			return scoring.TermScore(tf, cfg.DocLen(docID), cfg.AvgDL, cfg.N, df, cfg.BM25Params)
		}
		w := postings.NewWriter(out, offset, cfg.Codec, cfg.BlockSize, scoreFn)
		for i := range allDocs {
			if err := w.Add(allDocs[i], allTFs[i]); err != nil {
				return nil, fmt.Errorf("merge: term %q: %w", term, err)
			}
		}
		skipTable, err := w.Finish()
		if err != nil {
			return nil, fmt.Errorf("merge: term %q: finish: %w", term, err)
		}
		entries = append(entries, TermEntry{
			Term:          term,
			DF:            df,
			PostingsBytes: offset,
			SkipTable:     skipTable,
		})
		offset = w.Offset()

		for _, it := range group {
			nextRec, err := it.reader.Next()
			if err != nil {
				if isEOF(err) {
					continue
				}
				return nil, fmt.Errorf("merge: advance file %d: %w", it.fileIdx, err)
			}
			it.rec = nextRec
			it.term = nextRec.term
			heap.Push(&h, it)
		}
	}

	return entries, nil
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF)
}

// docIDPostings sorts parallel doc-id/tf slices by doc id, used when
// merging a term's postings from more than one flush file (see Merge).
type docIDPostings struct {
	docs []uint32
	tfs  []uint32
}

func (p docIDPostings) Len() int           { return len(p.docs) }
func (p docIDPostings) Less(i, j int) bool { return p.docs[i] < p.docs[j] }
func (p docIDPostings) Swap(i, j int) {
	p.docs[i], p.docs[j] = p.docs[j], p.docs[i]
	p.tfs[i], p.tfs[j] = p.tfs[j], p.tfs[i]
}

func sortPostingsByDocID(docs, tfs []uint32) {
	sort.Sort(docIDPostings{docs: docs, tfs: tfs})
}
