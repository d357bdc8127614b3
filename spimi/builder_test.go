package spimi

import (
	"bytes"
	"fmt"
	"io"
	"testing"

	"github.com/oarkflow/kese/codec"
)

type memSink struct {
	*bytes.Buffer
}

func (memSink) Close() error { return nil }

type memBlockStore struct {
	blocks map[int]*bytes.Buffer
}

func newMemBlockStore() *memBlockStore {
	return &memBlockStore{blocks: make(map[int]*bytes.Buffer)}
}

func (m *memBlockStore) newBlock(k int) (BlockSink, string, error) {
	buf := &bytes.Buffer{}
	m.blocks[k] = buf
	return memSink{buf}, fmt.Sprintf("mem://%d", k), nil
}

func tokens(words ...string) []string { return words }

func TestAddDocumentFlushesOnBudget(t *testing.T) {
	store := newMemBlockStore()
	cfg := Config{MemoryBudgetBytes: 1, BlockSizePostings: 4, Codec: codec.VarByte{}}
	b := NewBuilder(cfg, store.newBlock)

	if err := b.AddDocument(0, tokens("a", "b", "a")); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	if b.blockCount == 0 {
		t.Fatalf("expected an eager flush once the tiny memory budget was exceeded")
	}
}

func TestDuplicateDocIDRejected(t *testing.T) {
	store := newMemBlockStore()
	cfg := Config{MemoryBudgetBytes: 1 << 30, BlockSizePostings: 128, Codec: codec.VarByte{}}
	b := NewBuilder(cfg, store.newBlock)
	if err := b.AddDocument(0, tokens("a")); err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	if err := b.AddDocument(0, tokens("b")); err == nil {
		t.Fatalf("expected error re-adding doc id 0")
	}
}

func TestFinishProducesSortedBlockFile(t *testing.T) {
	store := newMemBlockStore()
	cfg := Config{MemoryBudgetBytes: 1 << 30, BlockSizePostings: 128, Codec: codec.VarByte{}}
	b := NewBuilder(cfg, store.newBlock)

	docs := [][]string{
		{"zebra", "apple"},
		{"mango", "apple"},
		{"zebra", "zebra", "banana"},
	}
	for i, toks := range docs {
		if err := b.AddDocument(uint32(i), toks); err != nil {
			t.Fatalf("AddDocument(%d): %v", i, err)
		}
	}
	files, stats, err := b.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected a single block file, got %d", len(files))
	}
	if stats.N != 3 {
		t.Fatalf("N = %d, want 3", stats.N)
	}
	wantAvgdl := float64(2+2+3) / 3.0
	if stats.AvgDL != wantAvgdl {
		t.Fatalf("AvgDL = %f, want %f", stats.AvgDL, wantAvgdl)
	}

	buf := store.blocks[0]
	reader := &blockReaderForTest{r: bytes.NewReader(buf.Bytes()), codec: codec.VarByte{}}
	var terms []string
	for {
		term, docIDs, err := reader.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read record: %v", err)
		}
		terms = append(terms, term)
		if term == "zebra" {
			want := []uint32{0, 2}
			if len(docIDs) != len(want) || docIDs[0] != want[0] || docIDs[1] != want[1] {
				t.Fatalf("zebra postings = %v, want %v", docIDs, want)
			}
		}
	}
	for i := 1; i < len(terms); i++ {
		if terms[i-1] >= terms[i] {
			t.Fatalf("block file terms not strictly sorted: %v", terms)
		}
	}
}

// blockReaderForTest duplicates just enough of package merge's record
// decoding to assert on spimi's on-disk layout without an import cycle
// (package merge already depends on package spimi's on-disk format,
// not the other way around).
type blockReaderForTest struct {
	r     io.Reader
	codec codec.Codec
}

func (b *blockReaderForTest) next() (string, []uint32, error) {
	readU32 := func() (uint32, error) {
		var buf [4]byte
		if _, err := io.ReadFull(b.r, buf[:]); err != nil {
			return 0, err
		}
		return uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24, nil
	}
	termLen, err := readU32()
	if err != nil {
		return "", nil, err
	}
	termBytes := make([]byte, termLen)
	if _, err := io.ReadFull(b.r, termBytes); err != nil {
		return "", nil, err
	}
	count, err := readU32()
	if err != nil {
		return "", nil, err
	}
	docLen, err := readU32()
	if err != nil {
		return "", nil, err
	}
	docBytes := make([]byte, docLen)
	if _, err := io.ReadFull(b.r, docBytes); err != nil {
		return "", nil, err
	}
	tfLen, err := readU32()
	if err != nil {
		return "", nil, err
	}
	tfBytes := make([]byte, tfLen)
	if _, err := io.ReadFull(b.r, tfBytes); err != nil {
		return "", nil, err
	}
	gaps, err := b.codec.Decode(docBytes, int(count))
	if err != nil {
		return "", nil, err
	}
	if _, err := b.codec.Decode(tfBytes, int(count)); err != nil {
		return "", nil, err
	}
	return string(termBytes), codec.UndoDGaps(gaps), nil
}
