package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-reflect"

	"github.com/oarkflow/kese/index"
	"github.com/oarkflow/kese/internal/textutil"
	"github.com/oarkflow/kese/producer"
)

// session holds the CLI's mutable state across commands: the loaded
// config and, once built or loaded, an open Index.
type session struct {
	cfg Config
	idx *index.Index
}

// Config is the CLI's config.json shape, spec.md §6, reusing package
// index's Config/Validate rather than redeclaring the schema.
type Config = index.Config

// run drives the command loop: a bufio.Scanner over stdin dispatching
// on the first whitespace-separated token, the idiomatic Go shape for
// a small REPL (the teacher's own examples/ directory only ships
// one-shot demos, not an interactive loop, so this dispatcher follows
// the standard library's bufio.Scanner pattern directly rather than
// imitating a nonexistent teacher REPL).
func run(configPath string, in io.Reader, out io.Writer) int {
	var s session
	cfg, err := index.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
		return exitCode(err)
	}
	s.cfg = cfg

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "kese> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd := strings.ToLower(fields[0])
		args := fields[1:]

		if cmd == "quit" || cmd == "exit" {
			break
		}

		if err := dispatch(&s, cmd, args, out); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			code := exitCode(err)
			if code == 3 {
				return code
			}
		}
	}
	return 0
}

func dispatch(s *session, cmd string, args []string, out io.Writer) error {
	switch cmd {
	case "index":
		return cmdIndex(s, out)
	case "save":
		return cmdSave(s, out)
	case "load":
		return cmdLoad(s, out)
	case "metadata":
		return cmdMetadata(s, out)
	case "query":
		return cmdQuery(s, args, out)
	default:
		return &index.ConfigInvalidError{Reason: fmt.Sprintf("unknown command %q", cmd)}
	}
}

// cmdIndex builds a fresh index from cfg.DatasetDir into cfg.IndexDir,
// sweeping any leftover SPIMI temp directories from a previously
// aborted build first, per spec.md §7's "partial block files are left
// on disk for diagnosis and removed on next `index` command".
func cmdIndex(s *session, out io.Writer) error {
	sweepStaleTempDirs(s.cfg.IndexDir)

	prod, err := datasetProducer(s.cfg.DatasetDir)
	if err != nil {
		return err
	}
	codecID := s.cfg.CompressionAlgo
	if codecID == "" {
		codecID = "varbyte"
	}
	idx, err := index.Build(context.Background(), index.BuildConfig{
		Dir:   s.cfg.IndexDir,
		Codec: codecID,
	}, prod)
	if err != nil {
		return err
	}
	if s.idx != nil {
		s.idx.Close()
	}
	s.idx = idx
	fmt.Fprintf(out, "indexed %d documents into %s\n", idx.NumDocs(), s.cfg.IndexDir)
	return nil
}

// cmdSave is a no-op beyond confirming the index is already durable:
// Build/Open write directly to cfg.IndexDir, so there is no separate
// in-memory-to-disk flush step (spec.md §3: "once built, all
// structures are read-only").
func cmdSave(s *session, out io.Writer) error {
	if s.idx == nil {
		return &index.ConfigInvalidError{Reason: "no index loaded; run `index` or `load` first"}
	}
	fmt.Fprintf(out, "index already persisted at %s\n", s.cfg.IndexDir)
	return nil
}

func cmdLoad(s *session, out io.Writer) error {
	idx, err := index.Open(s.cfg.IndexDir, index.OpenConfig{})
	if err != nil {
		return err
	}
	if s.idx != nil {
		s.idx.Close()
	}
	s.idx = idx
	fmt.Fprintf(out, "loaded index with %d documents from %s\n", idx.NumDocs(), s.cfg.IndexDir)
	return nil
}

// cmdMetadata pretty-prints the loaded index's manifest via
// goccy/go-reflect, mirroring the teacher's use of go-reflect in
// index.go for generic record introspection (never on the hot
// build/query path, only this diagnostic command).
func cmdMetadata(s *session, out io.Writer) error {
	if s.idx == nil {
		return &index.ConfigInvalidError{Reason: "no index loaded; run `index` or `load` first"}
	}
	m := s.idx.Manifest()
	v := reflect.ValueOf(m)
	t := reflect.TypeOf(m)
	fmt.Fprintln(out, "manifest:")
	for i := 0; i < t.NumField(); i++ {
		fmt.Fprintf(out, "  %s: %v\n", t.Field(i).Name, v.Field(i).Interface())
	}
	snap := s.idx.Monitor().Snapshot()
	fmt.Fprintf(out, "cache hit rate: %.2f%% (%d hits, %d misses)\n", snap.CacheHitRate*100, snap.CacheHits, snap.CacheMisses)
	return nil
}

// cmdQuery parses "query <algo> <k> <text...>" or the shorter
// "query <text...>" (defaulting algo to the config's query_algo, or
// wand when that is empty, and k=10), per spec.md §6's
// `query <string>` CLI surface generalized to select an algorithm and
// result count.
func cmdQuery(s *session, args []string, out io.Writer) error {
	if s.idx == nil {
		return &index.ConfigInvalidError{Reason: "no index loaded; run `index` or `load` first"}
	}
	if len(args) == 0 {
		return &index.ConfigInvalidError{Reason: "query requires a search string"}
	}

	algo := s.cfg.QueryAlgo
	if algo == "" {
		algo = "wand"
	}
	k := 10
	rest := args
	if len(args) >= 2 {
		if n, err := strconv.Atoi(args[1]); err == nil {
			if _, ok := knownAlgos[strings.ToLower(args[0])]; ok {
				algo = strings.ToLower(args[0])
				k = n
				rest = args[2:]
			}
		}
	}
	query := strings.Join(rest, " ")
	if query == "" {
		return &index.ConfigInvalidError{Reason: "query requires a search string"}
	}

	res, err := s.idx.Search(context.Background(), index.Request{Query: query, Algo: algo, K: k})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d hits for %q (%s):\n", len(res.Hits), query, algo)
	for i, h := range res.Hits {
		name := h.Name
		if name == "" {
			name = fmt.Sprintf("doc %d", h.DocID)
		}
		fmt.Fprintf(out, "  %d. %s (score=%.4f)\n", i+1, name, h.Score)
	}
	return nil
}

var knownAlgos = map[string]bool{"boolean": true, "wand": true, "maxscore": true, "bmw": true, "bmm": true}

// datasetProducer builds a producer.Producer over cfg.DatasetDir: one
// document per line of every ".txt" file, tokenized the same way
// query strings are (package textutil, transitively via
// retrieval.ParseTerms's tokenizer) so build-time and query-time
// normalization agree. This is the CLI's own minimal reference
// producer; producer/sqlsource is the alternative wired for SQL-backed
// corpora (SPEC_FULL.md §6).
func datasetProducer(dir string) (producer.Producer, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &index.IoError{Path: dir, Cause: err}
	}
	var docs []producer.Document
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		f, err := os.Open(path)
		if err != nil {
			return nil, &index.IoError{Path: path, Cause: err}
		}
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			docs = append(docs, producer.Document{Name: e.Name(), Tokens: textutil.Tokenize(line)})
		}
		f.Close()
	}
	return &producer.Slice{Docs: docs}, nil
}

// sweepStaleTempDirs removes any ".tmp-*" SPIMI work directories left
// behind by a previously aborted build, per spec.md §7.
func sweepStaleTempDirs(indexDir string) {
	entries, err := os.ReadDir(indexDir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), ".tmp-") {
			os.RemoveAll(filepath.Join(indexDir, e.Name()))
		}
	}
}
