// Package retrieval implements the five dynamic-pruning retrieval
// algorithms of spec.md §4.6 (Boolean, WAND, MaxScore, Block-Max WAND,
// Block-Max MaxScore) over the shared cursor.Cursor abstraction, plus
// the top-k result heap and query-string parser they share.
package retrieval

import "container/heap"

// ScoredDoc is one candidate result: a document id and its combined
// BM25 score across all query terms.
type ScoredDoc struct {
	DocID uint32
	Score float32
}

// topKHeap is a bounded min-heap of the k best ScoredDoc seen so far.
// Its root is always the *worst* kept candidate, so a new candidate
// only needs comparing against heap[0] to decide whether it displaces
// anything. "Worse" orders by ascending score, then — spec.md §9's
// deterministic tie-break — by descending doc id, since a smaller doc
// id must win (survive) over a larger one at equal score.
type topKHeap struct {
	items []ScoredDoc
	k     int
}

func newTopKHeap(k int) *topKHeap {
	return &topKHeap{k: k}
}

func (h *topKHeap) Len() int { return len(h.items) }
func (h *topKHeap) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.DocID > b.DocID
}
func (h *topKHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *topKHeap) Push(x any)    { h.items = append(h.items, x.(ScoredDoc)) }
func (h *topKHeap) Pop() any {
	old := h.items
	n := len(old)
	it := old[n-1]
	h.items = old[:n-1]
	return it
}

// worse reports whether candidate d would lose a tie-break against the
// heap's current worst kept element — i.e. whether d should be
// rejected outright once the heap is full.
func (h *topKHeap) worse(d ScoredDoc) bool {
	worst := h.items[0]
	if d.Score != worst.Score {
		return d.Score < worst.Score
	}
	return d.DocID > worst.DocID
}

// offer inserts a candidate, keeping at most k entries.
func (h *topKHeap) offer(d ScoredDoc) {
	if h.k <= 0 {
		return
	}
	if h.Len() < h.k {
		heap.Push(h, d)
		return
	}
	if h.worse(d) {
		return
	}
	heap.Pop(h)
	heap.Push(h, d)
}

// threshold returns the score a new candidate must strictly exceed to
// be worth considering once the heap is full (0 while it has spare
// capacity, since any score is worth keeping until then).
func (h *topKHeap) threshold() float32 {
	if h.Len() < h.k {
		return 0
	}
	return h.items[0].Score
}

// results drains the heap into descending-score order (ties broken by
// ascending doc id), the canonical top-k output order.
func (h *topKHeap) results() []ScoredDoc {
	out := make([]ScoredDoc, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(ScoredDoc)
	}
	return out
}
