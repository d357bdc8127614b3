package retrieval

import (
	"container/heap"
	"fmt"
	"sort"

	"github.com/oarkflow/kese/cursor"
	"github.com/oarkflow/kese/internal/textutil"
)

// NodeKind tags a Boolean query tree node (spec.md §4.6 "Boolean").
type NodeKind int

const (
	NodeTerm NodeKind = iota
	NodeAnd
	NodeOr
	NodeNot
)

// Node is a Boolean query AST node: a term leaf or an AND/OR/NOT
// combinator over child nodes. NOT is binary (left AND NOT right),
// matching the only form spec.md's S4 scenario exercises
// ("x AND NOT z").
type Node struct {
	Kind     NodeKind
	Term     string
	Children []*Node
}

// CursorFactory opens a fresh cursor positioned at a term's first
// posting; the Boolean evaluator calls it once per distinct term leaf
// it encounters.
type CursorFactory func(term string) (*cursor.Cursor, error)

// EvalBoolean evaluates a Boolean query tree into the sorted,
// deduplicated set of matching doc ids (spec.md §4.6: "Results are
// unranked (by doc_id)").
func EvalBoolean(node *Node, open CursorFactory) ([]uint32, error) {
	switch node.Kind {
	case NodeTerm:
		c, err := open(node.Term)
		if err != nil {
			return nil, err
		}
		return materialize(c)
	case NodeAnd:
		if allTermChildren(node.Children) {
			cursors, err := openAll(node.Children, open)
			if err != nil {
				return nil, err
			}
			return leapfrogIntersect(cursors)
		}
		sets, err := evalChildren(node.Children, open)
		if err != nil {
			return nil, err
		}
		return intersectAll(sets), nil
	case NodeOr:
		if allTermChildren(node.Children) {
			cursors, err := openAll(node.Children, open)
			if err != nil {
				return nil, err
			}
			return unionCursors(cursors)
		}
		sets, err := evalChildren(node.Children, open)
		if err != nil {
			return nil, err
		}
		return unionAll(sets), nil
	case NodeNot:
		if len(node.Children) != 2 {
			return nil, fmt.Errorf("retrieval: NOT node requires exactly 2 children (left AND NOT right)")
		}
		left, err := EvalBoolean(node.Children[0], open)
		if err != nil {
			return nil, err
		}
		right, err := EvalBoolean(node.Children[1], open)
		if err != nil {
			return nil, err
		}
		return textutil.SubtractSorted(left, right), nil
	default:
		return nil, fmt.Errorf("retrieval: unknown node kind %d", node.Kind)
	}
}

func allTermChildren(children []*Node) bool {
	for _, c := range children {
		if c.Kind != NodeTerm {
			return false
		}
	}
	return true
}

func openAll(children []*Node, open CursorFactory) ([]*cursor.Cursor, error) {
	cursors := make([]*cursor.Cursor, len(children))
	for i, c := range children {
		cur, err := open(c.Term)
		if err != nil {
			return nil, err
		}
		cursors[i] = cur
	}
	return cursors, nil
}

func evalChildren(children []*Node, open CursorFactory) ([][]uint32, error) {
	sets := make([][]uint32, len(children))
	for i, c := range children {
		s, err := EvalBoolean(c, open)
		if err != nil {
			return nil, err
		}
		sets[i] = s
	}
	return sets, nil
}

func intersectAll(sets [][]uint32) []uint32 {
	if len(sets) == 0 {
		return nil
	}
	result := sets[0]
	for _, s := range sets[1:] {
		result = textutil.IntersectSorted(result, s)
	}
	return result
}

func unionAll(sets [][]uint32) []uint32 {
	if len(sets) == 0 {
		return nil
	}
	result := sets[0]
	for _, s := range sets[1:] {
		result = textutil.UnionSorted(result, s)
	}
	return result
}

func materialize(c *cursor.Cursor) ([]uint32, error) {
	var out []uint32
	for !c.Exhausted() {
		out = append(out, c.DocID())
		if err := c.Next(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// leapfrogIntersect implements spec.md §4.6's "AND uses sort-by-df
// then leapfrog intersection via next_geq": cursors are visited
// round-robin, each advanced to the current candidate via next_geq;
// once all agree on a doc id, it is emitted and the ring advances past
// it. Sorting shortest-postings-list-first keeps the common case — a
// rare term pruning away most candidates in its first few comparisons
// — cheap.
func leapfrogIntersect(cursors []*cursor.Cursor) ([]uint32, error) {
	if len(cursors) == 0 {
		return nil, nil
	}
	sort.Slice(cursors, func(i, j int) bool { return cursors[i].DF() < cursors[j].DF() })
	for _, c := range cursors {
		if c.Exhausted() {
			return nil, nil
		}
	}

	var result []uint32
	n := len(cursors)
	i := 0
	target := cursors[0].DocID()
	agree := 0
	for {
		c := cursors[i]
		if err := c.NextGeq(target); err != nil {
			return nil, err
		}
		if c.Exhausted() {
			return result, nil
		}
		if c.DocID() == target {
			agree++
			if agree == n {
				result = append(result, target)
				if err := c.Next(); err != nil {
					return nil, err
				}
				if c.Exhausted() {
					return result, nil
				}
				target = c.DocID()
				agree = 1
				i = (i + 1) % n
				continue
			}
		} else {
			target = c.DocID()
			agree = 1
		}
		i = (i + 1) % n
	}
}

// unionHeapItem is one open cursor's current doc id, ordered for a
// min-heap merge.
type unionHeapItem struct {
	docID  uint32
	cursor *cursor.Cursor
}

type unionHeap []unionHeapItem

func (h unionHeap) Len() int            { return len(h) }
func (h unionHeap) Less(i, j int) bool  { return h[i].docID < h[j].docID }
func (h unionHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *unionHeap) Push(x any)         { *h = append(*h, x.(unionHeapItem)) }
func (h *unionHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// unionCursors implements "OR merges via a cursor heap" (spec.md
// §4.6): a min-heap over each cursor's current doc id, repeatedly
// popping the smallest and advancing its source, deduplicating doc ids
// shared by multiple terms.
func unionCursors(cursors []*cursor.Cursor) ([]uint32, error) {
	h := make(unionHeap, 0, len(cursors))
	for _, c := range cursors {
		if !c.Exhausted() {
			heap.Push(&h, unionHeapItem{docID: c.DocID(), cursor: c})
		}
	}
	var result []uint32
	var last uint32
	hasLast := false
	for h.Len() > 0 {
		item := heap.Pop(&h).(unionHeapItem)
		if !hasLast || item.docID != last {
			result = append(result, item.docID)
			last = item.docID
			hasLast = true
		}
		if err := item.cursor.Next(); err != nil {
			return nil, err
		}
		if !item.cursor.Exhausted() {
			heap.Push(&h, unionHeapItem{docID: item.cursor.DocID(), cursor: item.cursor})
		}
	}
	return result, nil
}
