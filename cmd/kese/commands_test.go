package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oarkflow/json"
)

func writeConfig(t *testing.T, indexDir, datasetDir string) string {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.json")
	cfg := map[string]any{
		"index_dir":        indexDir,
		"dataset_dir":      datasetDir,
		"compression_algo": "varbyte",
		"query_algo":       "wand",
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(cfgPath, b, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cfgPath
}

func writeDataset(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	content := "the quick brown fox\nthe lazy dog sleeps\n"
	if err := os.WriteFile(filepath.Join(dir, "docs.txt"), []byte(content), 0o644); err != nil {
		t.Fatalf("write dataset: %v", err)
	}
	return dir
}

// TestIndexThenQuery exercises the CLI's index -> query command
// sequence end to end through the run() dispatcher.
func TestIndexThenQuery(t *testing.T) {
	datasetDir := writeDataset(t)
	indexDir := t.TempDir()
	cfgPath := writeConfig(t, indexDir, datasetDir)

	in := strings.NewReader("index\nquery fox\nquit\n")
	var out bytes.Buffer
	code := run(cfgPath, in, &out)
	if code != 0 {
		t.Fatalf("run: exit code %d, output:\n%s", code, out.String())
	}
	if !strings.Contains(out.String(), "indexed 2 documents") {
		t.Errorf("expected indexing confirmation, got:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "hits for \"fox\"") {
		t.Errorf("expected query result line, got:\n%s", out.String())
	}
}

// TestQueryWithoutIndexIsUserError verifies querying before an index
// is loaded reports a config error rather than panicking.
func TestQueryWithoutIndexIsUserError(t *testing.T) {
	datasetDir := writeDataset(t)
	indexDir := t.TempDir()
	cfgPath := writeConfig(t, indexDir, datasetDir)

	in := strings.NewReader("query fox\nquit\n")
	var out bytes.Buffer
	run(cfgPath, in, &out)
	if !strings.Contains(out.String(), "error:") {
		t.Errorf("expected error output, got:\n%s", out.String())
	}
}
