// Package scoring implements the BM25 Scorer component of spec.md §4.5:
// per-document term scores and the static per-term upper bounds the
// dynamic-pruning retrieval algorithms prune against.
//
// Grounded on original_source/src/scoring/bm_25.rs (compute_idf,
// compute_tf_bm25, compute_term_score), adjusted to spec.md's explicit
// non-negative IDF variant (the "+ 1" inside the log, which
// bm_25.rs's compute_idf lacks and which can go negative for very
// common terms — spec.md §4.5 overrides the original here).
package scoring

import "math"

// Params holds the BM25 tuning constants, mirroring bm_25.rs's
// BM25Params/Default.
type Params struct {
	K1 float32
	B  float32
}

// DefaultParams returns k1=1.2, b=0.75, spec.md §4.5's defaults.
func DefaultParams() Params {
	return Params{K1: 1.2, B: 0.75}
}

// IDF computes idf(t) = ln((N - df + 0.5) / (df + 0.5) + 1), the
// non-negative variant spec.md §4.5 requires (df is clamped to [0, n]
// by the caller's term dictionary; this function does not itself
// guard against df > n).
func IDF(n, df uint32) float32 {
	nf := float64(n)
	dff := float64(df)
	return float32(math.Log((nf-dff+0.5)/(dff+0.5) + 1))
}

// TFBM25 computes the term-frequency-saturation factor
// tf * (k1+1) / (tf + k1*(1 - b + b*dl/avgdl)).
func TFBM25(tf, dl uint32, avgdl float64, p Params) float32 {
	tff := float32(tf)
	dlf := float32(dl)
	k1, b := p.K1, p.B
	numerator := tff * (k1 + 1)
	denominator := tff + k1*((1-b)+(b*dlf/float32(avgdl)))
	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}

// TermScore computes score(t, d) = idf(t) * tf_bm25(tf, dl, avgdl, k1, b),
// the single-term contribution a postings cursor reports from score().
func TermScore(tf, dl uint32, avgdl float64, n, df uint32, p Params) float32 {
	return IDF(n, df) * TFBM25(tf, dl, avgdl, p)
}

// UpperBound computes ub(t) = idf(t) * (k1+1), the supremum of a term's
// BM25 contribution as tf → ∞ and dl/avgdl → its minimum feasible
// ratio (spec.md §4.5: "the tf factor saturates at <= k1+1 as tf ->
// infinity, and 1 - b + b*dl/avgdl >= 1 - b"). This is the bound a
// Cursor.UpperBound() reports and that WAND/MaxScore/BMW/BMM prune
// against.
func UpperBound(n, df uint32, p Params) float32 {
	return IDF(n, df) * (p.K1 + 1)
}
