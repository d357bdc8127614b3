package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oarkflow/xid"

	"github.com/oarkflow/kese/codec"
	"github.com/oarkflow/kese/internal/telemetry"
	"github.com/oarkflow/kese/merge"
	"github.com/oarkflow/kese/producer"
	"github.com/oarkflow/kese/scoring"
	"github.com/oarkflow/kese/spimi"
)

// BuildConfig configures Build: where to write the index directory,
// which codec and block size to use, the SPIMI memory budget, and the
// BM25 parameters baked into block-max scores at merge time.
type BuildConfig struct {
	Dir               string
	Codec             string
	BlockSize         int
	MemoryBudgetBytes uint64
	BM25              scoring.Params
	CacheBlocks       int
}

func (cfg *BuildConfig) applyDefaults() {
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = spimiDefaultBlockSize
	}
	if cfg.Codec == "" {
		cfg.Codec = "varbyte"
	}
	if cfg.BM25 == (scoring.Params{}) {
		cfg.BM25 = scoring.DefaultParams()
	}
	if cfg.CacheBlocks <= 0 {
		cfg.CacheBlocks = defaultCacheBlocks
	}
}

const spimiDefaultBlockSize = 128
const defaultCacheBlocks = 256

// Build runs the full SPIMI-builder-then-merger pipeline of spec.md
// §4.3/§4.4 over prod's document stream, writing a complete index
// directory (manifest.json, inverted_index.idx, term_dict.bin,
// term_strings.bin, skip_tables.bin, doc_meta.bin, doc_names.bin), and
// returns it open and ready for Search.
//
// Grounded on the teacher's index.go Build/BuildFromReader shape
// (a single entry point dispatching into a producer-specific ingest
// loop, tracked under an in-progress guard) generalized from the
// teacher's JSON-array-of-records input to keSE's producer.Producer
// pull interface; block-file naming/temp-dir disambiguation uses
// oarkflow/xid per the teacher's utils.NewID() id-generation pattern
// (document.go defaultIDGenerator).
func Build(ctx context.Context, cfg BuildConfig, prod producer.Producer) (*Index, error) {
	if cfg.Dir == "" {
		return nil, &ConfigInvalidError{Reason: "build: Dir must not be empty"}
	}
	cfg.applyDefaults()
	c, err := codec.ByID(cfg.Codec)
	if err != nil {
		return nil, &ConfigInvalidError{Reason: err.Error()}
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, &IoError{Path: cfg.Dir, Cause: err}
	}

	runID := xid.New().String()
	tmpDir := filepath.Join(cfg.Dir, ".tmp-"+runID)
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return nil, &IoError{Path: tmpDir, Cause: err}
	}

	builder := spimi.NewBuilder(spimi.Config{
		MemoryBudgetBytes: cfg.MemoryBudgetBytes,
		BlockSizePostings: cfg.BlockSize,
		Codec:             c,
	}, newBlockFileFunc(tmpDir))

	var names []string
	var docID uint32
	for {
		if err := ctx.Err(); err != nil {
			return nil, ErrCancelled
		}
		doc, ok, err := prod.Next(ctx)
		if err != nil {
			return nil, &IoError{Path: "producer", Cause: err}
		}
		if !ok {
			break
		}
		if err := builder.AddDocument(docID, doc.Tokens); err != nil {
			return nil, fmt.Errorf("index: add document %d: %w", docID, err)
		}
		names = append(names, doc.Name)
		docID++
	}

	blockFiles, docStats, err := builder.Finish()
	if err != nil {
		return nil, fmt.Errorf("index: finish spimi build: %w", err)
	}

	readers := make([]*merge.BlockFileReader, 0, len(blockFiles))
	var openFiles []*os.File
	closeAll := func() {
		for _, f := range openFiles {
			f.Close()
		}
	}
	for _, bf := range blockFiles {
		f, err := os.Open(bf.Path)
		if err != nil {
			closeAll()
			return nil, &IoError{Path: bf.Path, Cause: err}
		}
		openFiles = append(openFiles, f)
		readers = append(readers, merge.NewBlockFileReader(f, c))
	}

	postingsPath := filepath.Join(cfg.Dir, invertedIndexFile)
	postingsFile, err := os.Create(postingsPath)
	if err != nil {
		closeAll()
		return nil, &IoError{Path: postingsPath, Cause: err}
	}

	docLen := func(id uint32) uint32 { return docStats.DocLens[id] }
	entries, err := merge.Merge(readers, postingsFile, merge.Config{
		Codec:      c,
		BlockSize:  cfg.BlockSize,
		N:          docStats.N,
		AvgDL:      docStats.AvgDL,
		DocLen:     docLen,
		BM25Params: cfg.BM25,
	})
	closeAll()
	if cerr := postingsFile.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("index: merge block files: %w", err)
	}

	dict := BuildTermDict(entries, uint32(cfg.BlockSize))
	if err := dict.WriteTo(cfg.Dir); err != nil {
		return nil, fmt.Errorf("index: write term dictionary: %w", err)
	}

	lengths := make([]uint32, docStats.N)
	for id, l := range docStats.DocLens {
		lengths[id] = l
	}
	if err := WriteDocMeta(cfg.Dir, lengths, names); err != nil {
		return nil, fmt.Errorf("index: write doc metadata: %w", err)
	}

	manifest := Manifest{
		Version:   CurrentVersion,
		Codec:     cfg.Codec,
		BlockSize: uint32(cfg.BlockSize),
		NumDocs:   uint64(docStats.N),
		NumTerms:  uint64(len(entries)),
		AvgDL:     docStats.AvgDL,
	}
	if err := SaveManifest(cfg.Dir, manifest); err != nil {
		return nil, fmt.Errorf("index: write manifest: %w", err)
	}

	// Build succeeded: the SPIMI block files are no longer needed.
	// spec.md §7 only requires leaving them for diagnosis when the
	// build itself failed (they are cleaned up on the next `index`
	// command in that case, per cmd/kese's startup sweep).
	_ = os.RemoveAll(tmpDir)

	return Open(cfg.Dir, OpenConfig{BM25: cfg.BM25, CacheBlocks: cfg.CacheBlocks, Monitor: telemetry.NewMonitor()})
}

func newBlockFileFunc(tmpDir string) spimi.NewBlockFileFunc {
	return func(k int) (spimi.BlockSink, string, error) {
		path := filepath.Join(tmpDir, fmt.Sprintf("spimi_block_%d.tmp", k))
		f, err := os.Create(path)
		if err != nil {
			return nil, "", &IoError{Path: path, Cause: err}
		}
		return f, path, nil
	}
}
