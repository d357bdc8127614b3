package retrieval

import (
	"math"
	"sort"

	"github.com/oarkflow/kese/cursor"
)

// BMW implements spec.md §4.6's Block-Max WAND: as WAND, but once a
// pivot is chosen by per-term upper bounds, a tighter bound is
// recomputed from the current block_max_score() of each prefix cursor
// (the prefix extended over any cursors tied at the pivot doc id); when
// that tighter bound can't beat theta, the lowest-docid cursor is
// advanced to just past the smallest block boundary in the prefix, or
// to the next cursor's doc id if that comes first, instead of paying
// for a full score evaluation.
//
// Grounded on original_source's retrieval_algorithms/block_max_wand.rs
// (the two-phase pivot check — term-level bound, then block-level
// bound — and the "shallow advance" skip when the block-level bound
// fails), re-expressed over this package's Cursor/topKHeap types.
func BMW(cursors []*cursor.Cursor, k int) ([]ScoredDoc, error) {
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
		last := pivot
		for last+1 < len(live) && live[last+1].DocID() == pivotID {
			last++
		}

		var blockCum float32
		minBlockMaxDocID := uint32(math.MaxUint32)
		for i := 0; i <= last; i++ {
			blockCum += live[i].BlockMaxScore()
			if bm := live[i].BlockMaxDocID(); bm < minBlockMaxDocID {
				minBlockMaxDocID = bm
			}
		}
		if blockCum <= threshold {
			target := minBlockMaxDocID
			if target == math.MaxUint32 {
				target = pivotID
			} else {
				target++
			}
			if last+1 < len(live) && live[last+1].DocID() < target {
				target = live[last+1].DocID()
			}
			if err := live[0].NextGeq(target); err != nil {
				return nil, err
			}
			continue
		}

		if pivotID == live[0].DocID() {
			// As in WAND, the tie group at pivotID is contiguous from
			// index 0 but may extend past the pivot index.
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
