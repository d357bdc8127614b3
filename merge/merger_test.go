package merge

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/oarkflow/kese/codec"
	"github.com/oarkflow/kese/postings"
	"github.com/oarkflow/kese/scoring"
	"github.com/oarkflow/kese/spimi"
)

type memSink struct{ *bytes.Buffer }

func (memSink) Close() error { return nil }

type memBlockStore struct {
	blocks map[int]*bytes.Buffer
}

func newMemBlockStore() *memBlockStore {
	return &memBlockStore{blocks: make(map[int]*bytes.Buffer)}
}

func (m *memBlockStore) newBlock(k int) (spimi.BlockSink, string, error) {
	buf := &bytes.Buffer{}
	m.blocks[k] = buf
	return memSink{buf}, fmt.Sprintf("mem://%d", k), nil
}

type memOut struct{ *bytes.Buffer }

func buildWithFlushEvery(t *testing.T, docs [][]string, flushEveryN int) ([]TermEntry, *bytes.Buffer, spimi.DocStats) {
	t.Helper()
	store := newMemBlockStore()
	cfg := spimi.Config{MemoryBudgetBytes: 1 << 30, BlockSizePostings: 128, Codec: codec.VarByte{}}
	b := spimi.NewBuilder(cfg, store.newBlock)

	for i, toks := range docs {
		if err := b.AddDocument(uint32(i), toks); err != nil {
			t.Fatalf("AddDocument(%d): %v", i, err)
		}
		if flushEveryN > 0 && (i+1)%flushEveryN == 0 {
			if err := b.Flush(); err != nil {
				t.Fatalf("Flush: %v", err)
			}
		}
	}
	files, stats, err := b.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}

	readers := make([]*BlockFileReader, 0, len(files))
	for i := range files {
		buf := store.blocks[i]
		readers = append(readers, NewBlockFileReader(bytes.NewReader(buf.Bytes()), codec.VarByte{}))
	}

	out := &bytes.Buffer{}
	docLen := func(id uint32) uint32 { return stats.DocLens[id] }
	mergeCfg := Config{
		Codec:      codec.VarByte{},
		BlockSize:  postings.DefaultBlockSize,
		N:          stats.N,
		AvgDL:      stats.AvgDL,
		DocLen:     docLen,
		BM25Params: scoring.DefaultParams(),
	}
	entries, err := Merge(readers, out, mergeCfg)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	return entries, out, stats
}

func wordsCorpus(n int) [][]string {
	var docs [][]string
	vocab := []string{"alpha", "beta", "gamma", "delta", "epsilon"}
	for i := 0; i < n; i++ {
		docs = append(docs, []string{vocab[i%len(vocab)], vocab[(i*3+1)%len(vocab)], "common"})
	}
	return docs
}

// TestS5MergeEquivalence reproduces spec.md §8 scenario S5: forcing a
// flush every 2 documents across a 100-doc corpus must produce a
// merged index equal to a single-flush build of the same corpus.
func TestS5MergeEquivalence(t *testing.T) {
	docs := wordsCorpus(100)

	entriesMulti, outMulti, statsMulti := buildWithFlushEvery(t, docs, 2)
	entriesSingle, outSingle, statsSingle := buildWithFlushEvery(t, docs, 0)

	if statsMulti.N != statsSingle.N || statsMulti.AvgDL != statsSingle.AvgDL {
		t.Fatalf("doc stats diverged: multi=%+v single=%+v", statsMulti, statsSingle)
	}
	if len(entriesMulti) != len(entriesSingle) {
		t.Fatalf("term count diverged: multi=%d single=%d", len(entriesMulti), len(entriesSingle))
	}

	byTermMulti := make(map[string]TermEntry, len(entriesMulti))
	for _, e := range entriesMulti {
		byTermMulti[e.Term] = e
	}
	for _, single := range entriesSingle {
		multi, ok := byTermMulti[single.Term]
		if !ok {
			t.Fatalf("term %q present in single-flush build but missing from multi-flush build", single.Term)
		}
		if multi.DF != single.DF {
			t.Fatalf("term %q: df diverged multi=%d single=%d", single.Term, multi.DF, single.DF)
		}
		if len(multi.SkipTable) != len(single.SkipTable) {
			t.Fatalf("term %q: skip table length diverged multi=%d single=%d", single.Term, len(multi.SkipTable), len(single.SkipTable))
		}
		for i := range multi.SkipTable {
			if multi.SkipTable[i].MaxDocID != single.SkipTable[i].MaxDocID {
				t.Fatalf("term %q block %d: MaxDocID diverged multi=%d single=%d", single.Term, i, multi.SkipTable[i].MaxDocID, single.SkipTable[i].MaxDocID)
			}
		}
	}

	if outMulti.Len() == 0 || outSingle.Len() == 0 {
		t.Fatalf("expected non-empty postings output from both builds")
	}
	if !bytes.Equal(outMulti.Bytes(), outSingle.Bytes()) {
		t.Fatalf("merged postings bytes diverged: multi=%d bytes single=%d bytes", outMulti.Len(), outSingle.Len())
	}
}

func TestMergeSortsTermsAndSumsDocFrequencies(t *testing.T) {
	docs := [][]string{
		{"zebra"},
		{"apple"},
		{"zebra", "apple"},
	}
	entries, _, _ := buildWithFlushEvery(t, docs, 1)
	var terms []string
	for _, e := range entries {
		terms = append(terms, e.Term)
	}
	for i := 1; i < len(terms); i++ {
		if terms[i-1] >= terms[i] {
			t.Fatalf("term dictionary not sorted: %v", terms)
		}
	}
	for _, e := range entries {
		if e.Term == "zebra" && e.DF != 2 {
			t.Fatalf("zebra df = %d, want 2", e.DF)
		}
		if e.Term == "apple" && e.DF != 2 {
			t.Fatalf("apple df = %d, want 2", e.DF)
		}
	}
}
