// Package producer defines keSE's build-input boundary: a lazy
// sequence of already-tokenized documents with an explicit end of
// stream, per spec.md §6's "Producer interface (build input)". Source-
// document cleaning and decompression are explicitly out of scope
// (spec.md §1) — a Producer hands the builder tokens, never raw bytes.
//
// Grounded on the teacher's document.go DocumentAdapter/IDGenerator
// pair (Adapt(ctx, value, cfg) (Document, error), a single pull-style
// conversion call), narrowed to a Next-style iterator since keSE's
// corpus is a stream rather than a one-shot adapted value.
package producer

import "context"

// Document is one unit of build input: an optional external name (for
// result display, spec.md §3) and its already-normalized token
// sequence.
type Document struct {
	Name   string
	Tokens []string
}

// Producer yields documents in the order they should be assigned doc
// ids (spec.md §3: "assigned in the order the producer yields
// documents"). Next returns ok=false with a nil error at a clean end
// of stream; a non-nil err signals a producer-side failure distinct
// from exhaustion (spec.md §7 IoError).
type Producer interface {
	Next(ctx context.Context) (doc Document, ok bool, err error)
}

// Slice adapts an in-memory document list into a Producer, useful for
// tests and small corpora that already fit in memory.
type Slice struct {
	Docs []Document
	pos  int
}

// Next implements Producer.
func (s *Slice) Next(ctx context.Context) (Document, bool, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, false, err
	}
	if s.pos >= len(s.Docs) {
		return Document{}, false, nil
	}
	d := s.Docs[s.pos]
	s.pos++
	return d, true, nil
}
