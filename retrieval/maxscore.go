package retrieval

import (
	"sort"

	"github.com/oarkflow/kese/cursor"
)

// MaxScore implements spec.md §4.6's MaxScore: cursors are sorted by
// upper_bound() descending. Non-essential cursors are grown from the
// low-upper-bound end: the longest suffix of the sort whose cumulative
// upper_bound() stays ≤ theta — that suffix alone could never beat the
// heap, so it is consulted only opportunistically. Essential is
// whatever is left (the remaining high-upper-bound prefix); a document
// absent from every essential cursor can still be found because the
// essential set always contains every cursor not yet provably
// incapable of mattering, starting with ALL cursors while theta is 0.
//
// Grounded on original_source's retrieval_algorithms/max_score.rs:
// term iterators are sorted ascending by max score there, with a
// `pivot` index grown forward (`while pivot < n && ub[pivot] <=
// threshold`) over the ascending cumulative-sum array — the mirror
// image, in ascending order, of the suffix grown here in descending
// order. Getting this partition backwards (treating the smallest
// leading high-upper-bound prefix as essential) silently drops any
// document that lives only in a "non-essential" cursor whose own
// upper bound individually exceeds theta, breaking spec.md §8.5's
// pruning-equivalence guarantee.
func MaxScore(cursors []*cursor.Cursor, k int) ([]ScoredDoc, error) {
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

		remainingUB := nonessSum
		for _, c := range nonessential {
			if score+remainingUB <= threshold {
				break
			}
			if err := c.NextGeq(candidate); err != nil {
				return nil, err
			}
			if !c.Exhausted() && c.DocID() == candidate {
				score += c.Score()
			}
			remainingUB -= c.UpperBound()
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
