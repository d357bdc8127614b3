package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/oarkflow/filters"

	"github.com/oarkflow/kese/codec"
	"github.com/oarkflow/kese/cursor"
	"github.com/oarkflow/kese/internal/telemetry"
	"github.com/oarkflow/kese/postings"
	"github.com/oarkflow/kese/retrieval"
	"github.com/oarkflow/kese/scoring"
)

const invertedIndexFile = "inverted_index.idx"

// Index is a fully loaded, read-only keSE index (spec.md §3: "once
// built, all structures are read-only"). Open loads one from disk;
// Build produces one from a producer.Producer.
type Index struct {
	dir        string
	manifest   Manifest
	dict       *TermDict
	docMeta    *DocMetaTable
	postings   *os.File
	postingSrc postings.ByteSource
	mmap       *postings.MmapSource
	cache      *postings.BlockCache
	monitor    *telemetry.Monitor
	bm25       scoring.Params
	codec      codec.Codec
}

// OpenConfig configures Open: BM25 parameters for query-time scoring
// (independent of whatever parameters were baked into block-max
// scores at build time — a tighter build-time bound never invalidates
// query-time re-scoring with different k1/b, only pruning tightness)
// and the shared block-decode cache's capacity.
type OpenConfig struct {
	BM25        scoring.Params
	CacheBlocks int
	Monitor     *telemetry.Monitor
	// MmapIndex, when true, serves postings reads from a read-only
	// mmap of inverted_index.idx (package postings' MmapSource)
	// instead of *os.File.ReadAt; the BlockCache still sits in front
	// of either source. Opt-in, per SPEC_FULL.md §6.
	MmapIndex bool
}

// Open loads a previously built index directory for querying.
func Open(dir string, cfg OpenConfig) (*Index, error) {
	manifest, err := LoadManifest(dir)
	if err != nil {
		return nil, err
	}
	c, err := codec.ByID(manifest.Codec)
	if err != nil {
		return nil, &InternalError{Reason: fmt.Sprintf("manifest names unknown codec %q: %v", manifest.Codec, err)}
	}
	dict, err := LoadTermDict(dir, manifest.BlockSize)
	if err != nil {
		return nil, err
	}
	if !dict.IsSorted() {
		return nil, &InternalError{Reason: "term_dict.bin is not lexicographically sorted"}
	}
	docMeta, err := LoadDocMeta(dir)
	if err != nil {
		return nil, err
	}
	postingsPath := filepath.Join(dir, invertedIndexFile)
	postingsFile, err := os.Open(postingsPath)
	if err != nil {
		return nil, &IoError{Path: postingsPath, Cause: err}
	}

	var src postings.ByteSource = postingsFile
	var mmapSrc *postings.MmapSource
	if cfg.MmapIndex {
		mmapSrc, err = postings.OpenMmapSource(postingsFile)
		if err != nil {
			postingsFile.Close()
			return nil, &IoError{Path: postingsPath, Cause: err}
		}
		src = mmapSrc
	}

	bm25 := cfg.BM25
	if bm25 == (scoring.Params{}) {
		bm25 = scoring.DefaultParams()
	}
	cacheBlocks := cfg.CacheBlocks
	if cacheBlocks <= 0 {
		cacheBlocks = defaultCacheBlocks
	}
	monitor := cfg.Monitor
	if monitor == nil {
		monitor = telemetry.NewMonitor()
	}

	return &Index{
		dir:        dir,
		manifest:   manifest,
		dict:       dict,
		docMeta:    docMeta,
		postings:   postingsFile,
		postingSrc: src,
		mmap:       mmapSrc,
		cache:      postings.NewBlockCache(cacheBlocks),
		monitor:    monitor,
		bm25:       bm25,
		codec:      c,
	}, nil
}

// Close releases the index's open postings file (and its mmap, if
// OpenConfig.MmapIndex was set).
func (idx *Index) Close() error {
	if idx.mmap != nil {
		idx.mmap.Close()
	}
	return idx.postings.Close()
}

// Manifest returns the index's loaded manifest.
func (idx *Index) Manifest() Manifest { return idx.manifest }

// Monitor returns the index's telemetry monitor.
func (idx *Index) Monitor() *telemetry.Monitor { return idx.monitor }

// NumDocs returns the number of documents in the index.
func (idx *Index) NumDocs() int { return idx.docMeta.NumDocs() }

func (idx *Index) docLenFunc() cursor.DocLenFunc {
	return func(docID uint32) uint32 { return idx.docMeta.Length(docID) }
}

// openCursor opens a term's postings for query-time iteration, or
// returns *TermNotFoundError (spec.md §7: not fatal) if the term is
// absent from the dictionary.
func (idx *Index) openCursor(term string, termID uint32) (*cursor.Cursor, error) {
	entry, ok := idx.dict.Lookup(term)
	if !ok {
		return nil, &TermNotFoundError{Term: term}
	}
	descs := idx.dict.Descriptors(entry)
	reader := postings.NewReader(idx.postingSrc, idx.codec, descs)
	return cursor.New(term, termID, reader, idx.cache, uint32(idx.manifest.NumDocs), entry.DF, idx.manifest.AvgDL, idx.bm25, idx.docLenFunc())
}

// openTermCursors opens one cursor per distinct term in terms, in
// lexicographic order, and assigns each a term id equal to its
// position in that order — a fixed, deterministic scheme establishing
// spec.md §9's canonical summation order regardless of the order terms
// appeared in the query string. Terms absent from the dictionary are
// silently skipped (TermNotFound is not fatal, spec.md §7).
func (idx *Index) openTermCursors(terms []string) ([]*cursor.Cursor, error) {
	seen := make(map[string]bool, len(terms))
	unique := make([]string, 0, len(terms))
	for _, t := range terms {
		if !seen[t] {
			seen[t] = true
			unique = append(unique, t)
		}
	}
	sort.Strings(unique)

	cursors := make([]*cursor.Cursor, 0, len(unique))
	for i, t := range unique {
		c, err := idx.openCursor(t, uint32(i))
		if err != nil {
			if _, ok := err.(*TermNotFoundError); ok {
				continue
			}
			return nil, err
		}
		cursors = append(cursors, c)
	}
	return cursors, nil
}

// Request describes one query, spec.md §4.7/§6.
type Request struct {
	// Query is the free-text query tokenized for ranked retrieval
	// (Algo != "boolean"), or the AND/OR/NOT expression for Algo ==
	// "boolean" (spec.md §4.7 "Boolean").
	Query string
	// Algo selects the retrieval algorithm: "wand" (default),
	// "maxscore", "bmw", "bmm", or "boolean".
	Algo string
	// K is the top-k heap capacity for ranked algorithms; ignored by
	// "boolean".
	K int
	// MetadataFilter, if non-empty, is a filters.ParseSQL expression
	// evaluated against each hit's {name, score, doc_id} record as a post-ranking
	// filter (SPEC_FULL.md §6 domain-stack wiring for
	// github.com/oarkflow/filters) — it never changes ranking, only
	// removes hits after top-k selection.
	MetadataFilter string
}

// ScoredResult is one query hit: a doc id, its score (0 for Boolean
// results), and its external name if the producer supplied one.
type ScoredResult struct {
	DocID uint32
	Score float32
	Name  string
}

// Result is a query's complete response.
type Result struct {
	Query string
	Algo  string
	Hits  []ScoredResult
}

// Search executes req against the index, per spec.md §4.7's retrieval
// algorithms. ctx is checked once, before dispatch: a ctx that is
// already done surfaces spec.md §7's Cancelled (ErrCancelled) before
// any cursor work begins, and a running algorithm is not interrupted
// (the pruning loops are CPU-only per spec.md §5's "no algorithmic step
// requires asynchronous waiting").
//
// Grounded on the teacher's manager.go Search (a thin dispatch into
// Index.Search keyed by a Request struct) and index.go's own
// query-algorithm switch, generalized from lookup's single fuzzy/exact
// term matcher to keSE's five retrieval algorithms.
func (idx *Index) Search(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	defer func() { idx.monitor.RecordSearchLatency(time.Since(start)) }()

	if err := ctx.Err(); err != nil {
		return nil, ErrCancelled
	}

	k := req.K
	if k <= 0 {
		k = 10
	}

	var hits []ScoredResult
	switch req.Algo {
	case "boolean":
		node, err := retrieval.ParseBooleanQuery(req.Query)
		if err != nil {
			return nil, &ConfigInvalidError{Reason: err.Error()}
		}
		var nextTermID uint32
		docs, err := retrieval.EvalBoolean(node, func(term string) (*cursor.Cursor, error) {
			id := nextTermID
			nextTermID++
			c, err := idx.openCursor(term, id)
			if _, ok := err.(*TermNotFoundError); ok {
				empty := postings.NewReader(idx.postingSrc, idx.codec, nil)
				return cursor.New(term, id, empty, idx.cache, uint32(idx.manifest.NumDocs), 0, idx.manifest.AvgDL, idx.bm25, idx.docLenFunc())
			}
			return c, err
		})
		if err != nil {
			return nil, fmt.Errorf("index: boolean query: %w", err)
		}
		hits = make([]ScoredResult, len(docs))
		for i, d := range docs {
			hits[i] = ScoredResult{DocID: d, Name: idx.docMeta.Name(d)}
		}

	case "", "wand", "maxscore", "bmw", "bmm":
		algo := req.Algo
		if algo == "" {
			algo = "wand"
		}
		terms := retrieval.ParseTerms(req.Query)
		cursors, err := idx.openTermCursors(terms)
		if err != nil {
			return nil, fmt.Errorf("index: open term cursors: %w", err)
		}
		var scored []retrieval.ScoredDoc
		switch algo {
		case "wand":
			scored, err = retrieval.WAND(cursors, k)
		case "maxscore":
			scored, err = retrieval.MaxScore(cursors, k)
		case "bmw":
			scored, err = retrieval.BMW(cursors, k)
		case "bmm":
			scored, err = retrieval.BMM(cursors, k)
		}
		if err != nil {
			return nil, fmt.Errorf("index: %s query: %w", algo, err)
		}
		hits = make([]ScoredResult, len(scored))
		for i, s := range scored {
			hits[i] = ScoredResult{DocID: s.DocID, Score: s.Score, Name: idx.docMeta.Name(s.DocID)}
		}

	default:
		return nil, &ConfigInvalidError{Reason: fmt.Sprintf("unknown query algorithm %q", req.Algo)}
	}

	if req.MetadataFilter != "" {
		rule, err := filters.ParseSQL(req.MetadataFilter)
		if err != nil {
			return nil, &ConfigInvalidError{Reason: fmt.Sprintf("invalid metadata filter: %v", err)}
		}
		filtered := hits[:0]
		for _, h := range hits {
			rec := map[string]any{"name": h.Name, "score": h.Score, "doc_id": h.DocID}
			if rule.Match(rec) {
				filtered = append(filtered, h)
			}
		}
		hits = filtered
	}

	return &Result{Query: req.Query, Algo: req.Algo, Hits: hits}, nil
}
