package index

import (
	"fmt"
	"os"

	"github.com/oarkflow/json"
)

// Config is the on-disk config.json spec.md §6 describes for the CLI:
// where the index lives, where the source dataset lives, and which
// codec/retrieval algorithm to build/query with. Loaded with
// oarkflow/json, matching the teacher's own config/struct marshaling
// convention throughout manager.go.
type Config struct {
	IndexDir        string `json:"index_dir"`
	DatasetDir      string `json:"dataset_dir"`
	CompressionAlgo string `json:"compression_algo"`
	QueryAlgo       string `json:"query_algo"`
}

var validCodecs = map[string]bool{
	"varbyte": true, "simple9": true, "simple16": true, "pfordelta": true, "rice": true,
}

var validQueryAlgos = map[string]bool{
	"boolean": true, "wand": true, "maxscore": true, "bmw": true, "bmm": true,
}

// LoadConfig reads and validates path as a config.json.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, &IoError{Path: path, Cause: err}
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return cfg, &ConfigInvalidError{Reason: fmt.Sprintf("malformed config.json: %v", err)}
	}
	return cfg, cfg.Validate()
}

// Validate checks that cfg's required fields are present and its
// enum-valued fields (compression_algo, query_algo) name a real
// implementation, spec.md §6.
func (cfg Config) Validate() error {
	if cfg.IndexDir == "" {
		return &ConfigInvalidError{Reason: "index_dir must not be empty"}
	}
	if cfg.CompressionAlgo != "" && !validCodecs[cfg.CompressionAlgo] {
		return &ConfigInvalidError{Reason: fmt.Sprintf("unknown compression_algo %q", cfg.CompressionAlgo)}
	}
	if cfg.QueryAlgo != "" && !validQueryAlgos[cfg.QueryAlgo] {
		return &ConfigInvalidError{Reason: fmt.Sprintf("unknown query_algo %q", cfg.QueryAlgo)}
	}
	return nil
}
