package index

import (
	"context"
	"sort"
	"testing"

	"github.com/oarkflow/kese/producer"
)

func approxEqual(a, b, tol float32) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}

func buildTiny(t *testing.T, dir, codecID string) *Index {
	t.Helper()
	docs := []producer.Document{
		{Tokens: []string{"a", "b", "a"}},
		{Tokens: []string{"b", "c"}},
		{Tokens: []string{"a", "c", "c"}},
	}
	idx, err := Build(context.Background(), BuildConfig{
		Dir:       dir,
		Codec:     codecID,
		BlockSize: 2,
	}, &producer.Slice{Docs: docs})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return idx
}

// TestS1TinyCorpusEndToEnd reproduces spec.md §8 scenario S1 through
// the full Build -> Search pipeline: d2 (contains both query terms,
// tf(c)=2) should outrank d0 (contains only "a", tf(a)=2).
func TestS1TinyCorpusEndToEnd(t *testing.T) {
	idx := buildTiny(t, t.TempDir(), "varbyte")
	defer idx.Close()

	res, err := idx.Search(context.Background(), Request{Query: "a c", Algo: "wand", K: 2})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(res.Hits))
	}
	if res.Hits[0].DocID != 2 {
		t.Fatalf("expected doc 2 first, got %d", res.Hits[0].DocID)
	}
	if res.Hits[1].DocID != 0 {
		t.Fatalf("expected doc 0 second, got %d", res.Hits[1].DocID)
	}
	if !approxEqual(res.Hits[0].Score, 1.071451, 1e-4) {
		t.Errorf("doc 2 score = %v, want ~1.071451", res.Hits[0].Score)
	}
	if !approxEqual(res.Hits[1].Score, 0.624313, 1e-4) {
		t.Errorf("doc 0 score = %v, want ~0.624313", res.Hits[1].Score)
	}
}

// TestS3CodecEquivalence builds the same corpus under all five codecs
// and asserts identical topk results (spec.md §8 scenario S3).
func TestS3CodecEquivalence(t *testing.T) {
	codecs := []string{"varbyte", "simple9", "simple16", "pfordelta", "rice"}
	var reference []ScoredResult
	for _, c := range codecs {
		idx := buildTiny(t, t.TempDir(), c)
		res, err := idx.Search(context.Background(), Request{Query: "a c", Algo: "wand", K: 2})
		idx.Close()
		if err != nil {
			t.Fatalf("codec %s: Search: %v", c, err)
		}
		if reference == nil {
			reference = res.Hits
			continue
		}
		if len(res.Hits) != len(reference) {
			t.Fatalf("codec %s: got %d hits, want %d", c, len(res.Hits), len(reference))
		}
		for i := range res.Hits {
			if res.Hits[i].DocID != reference[i].DocID {
				t.Errorf("codec %s: hit %d doc id = %d, want %d", c, i, res.Hits[i].DocID, reference[i].DocID)
			}
			if !approxEqual(res.Hits[i].Score, reference[i].Score, 1e-4) {
				t.Errorf("codec %s: hit %d score = %v, want %v", c, i, res.Hits[i].Score, reference[i].Score)
			}
		}
	}
}

// TestS4Boolean reproduces spec.md §8 scenario S4's Boolean query set.
func TestS4Boolean(t *testing.T) {
	dir := t.TempDir()
	docs := []producer.Document{
		{Tokens: []string{"x", "y"}},
		{Tokens: []string{"x", "z"}},
		{Tokens: []string{"y", "z"}},
	}
	idx, err := Build(context.Background(), BuildConfig{Dir: dir, Codec: "varbyte", BlockSize: 128}, &producer.Slice{Docs: docs})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer idx.Close()

	cases := []struct {
		query string
		want  []uint32
	}{
		{"x AND y", []uint32{0}},
		{"x OR z", []uint32{0, 1, 2}},
		{"x AND NOT z", []uint32{0}},
	}
	for _, c := range cases {
		res, err := idx.Search(context.Background(), Request{Query: c.query, Algo: "boolean"})
		if err != nil {
			t.Fatalf("query %q: %v", c.query, err)
		}
		got := make([]uint32, len(res.Hits))
		for i, h := range res.Hits {
			got[i] = h.DocID
		}
		sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
		if !equalUint32(got, c.want) {
			t.Errorf("query %q: got %v, want %v", c.query, got, c.want)
		}
	}
}

func equalUint32(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// TestDictionarySortedAndSearchable exercises spec.md §8 invariant 4:
// term_dict.bin is sorted and binary search resolves exact hits and
// signals not-found otherwise.
func TestDictionarySortedAndSearchable(t *testing.T) {
	idx := buildTiny(t, t.TempDir(), "varbyte")
	defer idx.Close()

	if !idx.dict.IsSorted() {
		t.Fatal("term dictionary is not sorted")
	}
	if _, ok := idx.dict.Lookup("a"); !ok {
		t.Error("expected term \"a\" to be found")
	}
	if _, ok := idx.dict.Lookup("nonexistent"); ok {
		t.Error("expected term \"nonexistent\" to be absent")
	}
}

// TestOpenReloadsBuiltIndex verifies a freshly built index directory
// can be closed and reopened via Open, exercising the on-disk format
// round trip (manifest.json / term_dict.bin / doc_meta.bin) rather
// than just the in-memory Build result.
func TestOpenReloadsBuiltIndex(t *testing.T) {
	dir := t.TempDir()
	idx := buildTiny(t, dir, "varbyte")
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(dir, OpenConfig{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reopened.Close()

	if reopened.NumDocs() != 3 {
		t.Errorf("NumDocs = %d, want 3", reopened.NumDocs())
	}
	res, err := reopened.Search(context.Background(), Request{Query: "a c", Algo: "wand", K: 2})
	if err != nil {
		t.Fatalf("Search after reopen: %v", err)
	}
	if len(res.Hits) != 2 || res.Hits[0].DocID != 2 {
		t.Errorf("unexpected reopened search result: %+v", res.Hits)
	}
}

// TestSearchCancelledContext exercises spec.md §5's cancellation
// requirement: a cancelled context surfaces ErrCancelled before any
// cursor work begins.
func TestSearchCancelledContext(t *testing.T) {
	idx := buildTiny(t, t.TempDir(), "varbyte")
	defer idx.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := idx.Search(ctx, Request{Query: "a", Algo: "wand"})
	if err != ErrCancelled {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

// TestSearchUnknownTermIsNotFatal verifies spec.md §7's TermNotFound:
// a query naming a term absent from the dictionary is not fatal, it
// simply contributes nothing.
func TestSearchUnknownTermIsNotFatal(t *testing.T) {
	idx := buildTiny(t, t.TempDir(), "varbyte")
	defer idx.Close()

	res, err := idx.Search(context.Background(), Request{Query: "zzz", Algo: "wand", K: 5})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Hits) != 0 {
		t.Errorf("expected no hits for unknown term, got %+v", res.Hits)
	}
}

// TestMetadataFilterNarrowsResults exercises the filters.ParseSQL
// post-ranking filter wiring (SPEC_FULL.md §6 domain-stack wiring).
func TestMetadataFilterNarrowsResults(t *testing.T) {
	dir := t.TempDir()
	docs := []producer.Document{
		{Name: "alpha", Tokens: []string{"a", "b"}},
		{Name: "beta", Tokens: []string{"a", "b"}},
	}
	idx, err := Build(context.Background(), BuildConfig{Dir: dir, Codec: "varbyte", BlockSize: 128}, &producer.Slice{Docs: docs})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer idx.Close()

	res, err := idx.Search(context.Background(), Request{
		Query:          "a",
		Algo:           "wand",
		K:              10,
		MetadataFilter: "name = 'alpha'",
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Hits) != 1 || res.Hits[0].Name != "alpha" {
		t.Fatalf("expected only 'alpha', got %+v", res.Hits)
	}
}

// TestMmapIndexMatchesBufferedReads verifies OpenConfig.MmapIndex
// produces identical search results to the default buffered-file path,
// since it only changes the ByteSource backing postings.Reader, never
// the decoded content.
func TestMmapIndexMatchesBufferedReads(t *testing.T) {
	dir := t.TempDir()
	buffered := buildTiny(t, dir, "varbyte")
	buffered.Close()

	mmapped, err := Open(dir, OpenConfig{MmapIndex: true})
	if err != nil {
		t.Fatalf("Open with MmapIndex: %v", err)
	}
	defer mmapped.Close()

	res, err := mmapped.Search(context.Background(), Request{Query: "a c", Algo: "wand", K: 2})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Hits) != 2 || res.Hits[0].DocID != 2 || res.Hits[1].DocID != 0 {
		t.Fatalf("unexpected mmap search hits: %+v", res.Hits)
	}
}
