package retrieval

import (
	"sort"

	"github.com/oarkflow/kese/cursor"
)

// WAND implements spec.md §4.6's WAND: sort cursors by current doc id
// ascending, find the pivot (the shortest prefix whose cumulative
// upper_bound() exceeds the running threshold theta), fully score a
// match at the pivot's doc id if the first cursor already sits there,
// otherwise advance a cursor before the pivot via next_geq and retry.
//
// Grounded on original_source's retrieval_algorithms/wand.rs control
// flow (pivot search, the two branches on whether the first cursor's
// doc id already equals the pivot's, choosing the largest-upper-bound
// cursor still short of the pivot's doc id to advance), re-expressed over this package's Cursor/topKHeap
// types rather than translated line-for-line.
func WAND(cursors []*cursor.Cursor, k int) ([]ScoredDoc, error) {
	topK := newTopKHeap(k)
	threshold := float32(0)

	for {
		live := liveCursors(cursors)
		if len(live) == 0 {
			break
		}
		sort.Slice(live, func(i, j int) bool { return live[i].DocID() < live[j].DocID() })

		var cum float32
		pivot := -1
		for i, c := range live {
			cum += c.UpperBound()
			if cum > threshold {
				pivot = i
				break
			}
		}
		if pivot == -1 {
			break
		}

		pivotID := live[pivot].DocID()
		if pivotID == live[0].DocID() {
			// Cursors tied at pivotID are contiguous from index 0 (live
			// is sorted by doc id ascending), but that tie group can
			// extend past the pivot index itself — pivot only marks
			// where the cumulative upper bound first exceeded theta,
			// not the boundary of equal doc ids.
			var matching []*cursor.Cursor
			for _, c := range live {
				if c.DocID() == pivotID {
					matching = append(matching, c)
				} else {
					break
				}
			}
			score := sumScoreAtDoc(matching)
			topK.offer(ScoredDoc{DocID: pivotID, Score: score})
			threshold = topK.threshold()
			for _, c := range matching {
				if err := c.Next(); err != nil {
					return nil, err
				}
			}
		} else {
			chosen := 0
			for i := 1; i < pivot; i++ {
				if live[i].DocID() < pivotID && live[i].UpperBound() > live[chosen].UpperBound() {
					chosen = i
				}
			}
			if err := live[chosen].NextGeq(pivotID); err != nil {
				return nil, err
			}
		}
	}
	return topK.results(), nil
}
