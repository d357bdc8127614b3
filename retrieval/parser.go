package retrieval

import (
	"fmt"
	"strings"

	"github.com/oarkflow/kese/internal/textutil"
)

// ParseTerms tokenizes a free-text query into the term list a ranked
// retrieval algorithm (WAND/MaxScore/BMW/BMM) opens one cursor per
// term for, using the same normalization pipeline as document
// indexing (package textutil's Tokenize).
func ParseTerms(query string) []string {
	return textutil.Tokenize(query)
}

// ParseBooleanQuery parses spec.md §4.6's Boolean query surface:
// whitespace-separated terms joined left-to-right by AND, OR, or
// "AND NOT" (case-insensitive), e.g. "x AND y", "x OR z",
// "x AND NOT z" (spec.md §8 scenario S4). Precedence is strictly
// left-to-right; parenthesized sub-expressions are not part of the
// surface spec.md defines.
func ParseBooleanQuery(query string) (*Node, error) {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return nil, fmt.Errorf("retrieval: empty boolean query")
	}

	node := termNode(fields[0])
	i := 1
	for i < len(fields) {
		op := strings.ToUpper(fields[i])
		switch op {
		case "AND":
			if i+1 < len(fields) && strings.ToUpper(fields[i+1]) == "NOT" {
				if i+2 >= len(fields) {
					return nil, fmt.Errorf("retrieval: dangling AND NOT in query %q", query)
				}
				node = &Node{Kind: NodeNot, Children: []*Node{node, termNode(fields[i+2])}}
				i += 3
				continue
			}
			if i+1 >= len(fields) {
				return nil, fmt.Errorf("retrieval: dangling AND in query %q", query)
			}
			node = &Node{Kind: NodeAnd, Children: []*Node{node, termNode(fields[i+1])}}
			i += 2
		case "OR":
			if i+1 >= len(fields) {
				return nil, fmt.Errorf("retrieval: dangling OR in query %q", query)
			}
			node = &Node{Kind: NodeOr, Children: []*Node{node, termNode(fields[i+1])}}
			i += 2
		default:
			return nil, fmt.Errorf("retrieval: expected AND/OR, got %q in query %q", fields[i], query)
		}
	}
	return node, nil
}

func termNode(term string) *Node {
	return &Node{Kind: NodeTerm, Term: strings.ToLower(term)}
}
