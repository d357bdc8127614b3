package retrieval

import (
	"sort"

	"github.com/oarkflow/kese/cursor"
)

// BMM implements spec.md §4.6's Block-Max MaxScore: as MaxScore, but
// each non-essential cursor's contribution is bounded by its current
// block_max_score() (cheap, already loaded with the block) rather than
// its static per-term upper bound, whenever that block can still hold
// the candidate and its bound is the smaller of the two; once the
// running score plus the remaining non-essential bounds can't beat
// theta, the remaining non-essential cursors are not consulted for that
// candidate. Non-essential cursors are only ever advanced to a
// candidate; none is skipped past its block boundary.
//
// The essential/non-essential partition follows MaxScore's (see that
// file's doc comment and original_source's max_score.rs): non-essential
// is the longest low-upper-bound suffix whose cumulative upper_bound()
// stays ≤ theta, essential is the remainder, starting as ALL cursors
// while theta is 0. Grounded on original_source's
// retrieval_algorithms/block_max_max_score.rs's block-max substitution
// for the non-essential tail, re-expressed over this package's
// Cursor/topKHeap types.
func BMM(cursors []*cursor.Cursor, k int) ([]ScoredDoc, error) {
	topK := newTopKHeap(k)
	threshold := float32(0)

	for {
		live := liveCursors(cursors)
		if len(live) == 0 {
			break
		}
		sort.Slice(live, func(i, j int) bool { return live[i].UpperBound() > live[j].UpperBound() })

		var nonessSum float32
		nonessCount := 0
		for i := len(live) - 1; i >= 0; i-- {
			ub := live[i].UpperBound()
			if nonessSum+ub > threshold {
				break
			}
			nonessSum += ub
			nonessCount++
		}
		essCount := len(live) - nonessCount
		if essCount == 0 {
			break
		}
		essential := live[:essCount]
		nonessential := live[essCount:]

		candidate := essential[0].DocID()
		for _, c := range essential[1:] {
			if c.DocID() < candidate {
				candidate = c.DocID()
			}
		}

		var matching []*cursor.Cursor
		for _, c := range essential {
			if c.DocID() == candidate {
				matching = append(matching, c)
			}
		}
		score := sumScoreAtDoc(matching)

		var remainingBlockMaxUB float32
		bounds := make([]float32, len(nonessential))
		for i, c := range nonessential {
			bounds[i] = c.UpperBound()
			if c.BlockMaxDocID() >= candidate && c.BlockMaxScore() < bounds[i] {
				bounds[i] = c.BlockMaxScore()
			}
			remainingBlockMaxUB += bounds[i]
		}
		for i, c := range nonessential {
			if score+remainingBlockMaxUB <= threshold {
				break
			}
			if err := c.NextGeq(candidate); err != nil {
				return nil, err
			}
			if !c.Exhausted() && c.DocID() == candidate {
				score += c.Score()
			}
			remainingBlockMaxUB -= bounds[i]
		}

		topK.offer(ScoredDoc{DocID: candidate, Score: score})
		threshold = topK.threshold()

		for _, c := range matching {
			if err := c.Next(); err != nil {
				return nil, err
			}
		}
	}
	return topK.results(), nil
}
