package retrieval

import (
	"sort"

	"github.com/oarkflow/kese/cursor"
)

// liveCursors returns the subset of cursors that still have postings
// remaining.
func liveCursors(cursors []*cursor.Cursor) []*cursor.Cursor {
	out := cursors[:0:0]
	for _, c := range cursors {
		if !c.Exhausted() {
			out = append(out, c)
		}
	}
	return out
}

// sumScoreAtDoc sums the BM25 contribution of every cursor in matching
// that currently sits on the same doc id, always summing in ascending
// term-id order. Spec.md §9's "Floating-point determinism" note
// requires this fixed summation order so WAND, MaxScore, BMW, and BMM
// agree on scores bit-for-bit despite visiting cursors in different
// orders internally.
func sumScoreAtDoc(matching []*cursor.Cursor) float32 {
	sorted := make([]*cursor.Cursor, len(matching))
	copy(sorted, matching)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TermID() < sorted[j].TermID() })
	var score float32
	for _, c := range sorted {
		score += c.Score()
	}
	return score
}
