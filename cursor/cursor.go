// Package cursor implements the Postings Cursor abstraction of spec.md
// §4.6: a uniform iterator over one term's posting list that the five
// retrieval algorithms (Boolean, WAND, MaxScore, BMW, BMM) drive through
// doc_id(), next(), next_geq(), score(), and the block-skip metadata
// (block_max_doc_id, block_max_score, upper_bound).
//
// Per spec.md §9's note on cursor polymorphism ("a single cursor
// parameterized by codec suffices"), this package defines exactly one
// Cursor type; codec differences are already hidden behind
// postings.Reader's codec.Codec field, so no per-codec cursor subtype is
// needed.
package cursor

import (
	"fmt"
	"math"

	"github.com/oarkflow/kese/postings"
	"github.com/oarkflow/kese/scoring"
)

// ExhaustedDocID is the sentinel DocID() reports once a cursor has no
// more postings, chosen above any real doc id (doc ids are assigned
// densely from 0 during indexing).
const ExhaustedDocID = math.MaxUint32

// DocLenFunc resolves a document's token length, needed to evaluate
// BM25's length-normalization term at the cursor's current position.
type DocLenFunc func(docID uint32) uint32

// Cursor iterates one term's posting list, decoding blocks on demand
// (optionally through a shared postings.BlockCache) and exposing BM25
// scoring and block-max pruning metadata.
type Cursor struct {
	reader *postings.Reader
	cache  *postings.BlockCache
	term   string
	termID uint32

	n, df  uint32
	avgdl  float64
	params scoring.Params
	docLen DocLenFunc
	ub     float32

	blockIdx int
	docs     []uint32
	tfs      []uint32
	pos      int

	exhausted bool
}

// New builds a Cursor positioned at the term's first posting (or
// already exhausted, if the term has no postings). n is the collection
// size, df the term's document frequency, avgdl the collection's
// average doc length; docLen resolves a doc id to its token count.
// cache may be nil to disable block-decode caching.
func New(term string, termID uint32, reader *postings.Reader, cache *postings.BlockCache, n, df uint32, avgdl float64, params scoring.Params, docLen DocLenFunc) (*Cursor, error) {
	c := &Cursor{
		reader: reader,
		cache:  cache,
		term:   term,
		termID: termID,
		n:      n,
		df:     df,
		avgdl:  avgdl,
		params: params,
		docLen: docLen,
		ub:     scoring.UpperBound(n, df, params),
	}
	if reader.NumBlocks() == 0 {
		c.exhausted = true
		return c, nil
	}
	if err := c.loadBlock(0); err != nil {
		return nil, err
	}
	return c, nil
}

// Term returns the cursor's term string.
func (c *Cursor) Term() string { return c.term }

// TermID returns the term's dictionary-assigned id, used by callers to
// establish spec.md §9's canonical summation order (cursors sorted by
// term id ascending) before combining scores for a candidate document.
func (c *Cursor) TermID() uint32 { return c.termID }

// DF returns the term's document frequency.
func (c *Cursor) DF() uint32 { return c.df }

// Exhausted reports whether the cursor has no more postings.
func (c *Cursor) Exhausted() bool { return c.exhausted }

// DocID returns the doc id at the cursor's current position, or
// ExhaustedDocID if the cursor is exhausted.
func (c *Cursor) DocID() uint32 {
	if c.exhausted {
		return ExhaustedDocID
	}
	return c.docs[c.pos]
}

// TF returns the term frequency at the cursor's current position.
func (c *Cursor) TF() uint32 {
	if c.exhausted {
		return 0
	}
	return c.tfs[c.pos]
}

// Score returns the BM25 contribution of this term at the cursor's
// current doc id.
func (c *Cursor) Score() float32 {
	if c.exhausted {
		return 0
	}
	docID := c.docs[c.pos]
	return scoring.TermScore(c.tfs[c.pos], c.docLen(docID), c.avgdl, c.n, c.df, c.params)
}

// UpperBound returns the term's static upper bound ub(t), used by
// WAND/MaxScore/BMW/BMM pivot selection.
func (c *Cursor) UpperBound() float32 { return c.ub }

// BlockMaxDocID returns the current block's last (largest) doc id.
func (c *Cursor) BlockMaxDocID() uint32 {
	if c.exhausted {
		return ExhaustedDocID
	}
	return c.reader.Descriptor(c.blockIdx).MaxDocID
}

// BlockMaxScore returns the current block's precomputed max BM25
// contribution, used by Block-Max WAND/MaxScore to prune without
// decoding non-essential blocks.
func (c *Cursor) BlockMaxScore() float32 {
	if c.exhausted {
		return 0
	}
	return c.reader.Descriptor(c.blockIdx).MaxScore
}

// Next advances the cursor by one posting.
func (c *Cursor) Next() error {
	if c.exhausted {
		return nil
	}
	c.pos++
	if c.pos < len(c.docs) {
		return nil
	}
	return c.loadBlock(c.blockIdx + 1)
}

// NextGeq advances the cursor to the first doc id >= target, skipping
// whole blocks via the skip table (postings.Reader.NextGeqBlock) before
// falling back to a linear scan within the landing block, per spec.md
// §4.6's next_geq contract.
func (c *Cursor) NextGeq(target uint32) error {
	if c.exhausted {
		return nil
	}
	if c.docs[c.pos] >= target {
		return nil
	}
	if c.reader.Descriptor(c.blockIdx).MaxDocID < target {
		nextBlock := c.reader.NextGeqBlock(c.blockIdx+1, target)
		if nextBlock == -1 {
			c.exhausted = true
			return nil
		}
		if err := c.loadBlock(nextBlock); err != nil {
			return err
		}
	}
	for c.docs[c.pos] < target {
		c.pos++
		if c.pos >= len(c.docs) {
			if err := c.loadBlock(c.blockIdx + 1); err != nil {
				return err
			}
			if c.exhausted {
				return nil
			}
			if c.reader.Descriptor(c.blockIdx).MaxDocID < target {
				return c.NextGeq(target)
			}
		}
	}
	return nil
}

func (c *Cursor) loadBlock(idx int) error {
	if idx >= c.reader.NumBlocks() {
		c.exhausted = true
		c.docs, c.tfs = nil, nil
		c.pos = 0
		return nil
	}
	if docs, tfs, ok := c.cache.Get(c.term, idx); ok {
		c.docs, c.tfs = docs, tfs
		c.blockIdx = idx
		c.pos = 0
		return nil
	}
	docs, tfs, err := c.reader.DecodeBlock(idx, nil, nil)
	if err != nil {
		return fmt.Errorf("cursor: term %q: %w", c.term, err)
	}
	c.cache.Set(c.term, idx, docs, tfs)
	c.docs, c.tfs = docs, tfs
	c.blockIdx = idx
	c.pos = 0
	return nil
}
