// Package index ties the SPIMI builder, block merger, term dictionary,
// document metadata, and retrieval engine together into the on-disk
// index format spec.md §6 defines, and the Build/Search operations
// spec.md §4.3/§4.4/§4.7 describe end to end.
package index

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/oarkflow/json"
)

// CurrentVersion is the manifest.json "version" field this build of
// keSE writes and expects on Open; a mismatch is spec.md §7's
// IndexVersionMismatch.
const CurrentVersion = 1

// Manifest is spec.md §6's manifest.json: codec id, block size,
// collection statistics, and the format version readers must match.
//
// Grounded on the teacher's config.json-shaped structs (manager.go's
// Request/Filter use the same tagged-struct-plus-oarkflow/json
// marshal pattern); serialized with oarkflow/json, a drop-in
// encoding/json-compatible marshaler the teacher uses throughout for
// GenericRecord and its own JSON payloads.
type Manifest struct {
	Version   uint32  `json:"version"`
	Codec     string  `json:"codec"`
	BlockSize uint32  `json:"block_size"`
	NumDocs   uint64  `json:"num_docs"`
	NumTerms  uint64  `json:"num_terms"`
	AvgDL     float64 `json:"avgdl"`
}

const manifestFile = "manifest.json"

// SaveManifest writes m as dir/manifest.json.
func SaveManifest(dir string, m Manifest) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("index: marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, manifestFile), b, 0o644); err != nil {
		return fmt.Errorf("index: write manifest: %w", err)
	}
	return nil
}

// LoadManifest reads dir/manifest.json and validates its version
// against CurrentVersion.
func LoadManifest(dir string) (Manifest, error) {
	var m Manifest
	b, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return m, fmt.Errorf("index: read manifest: %w", err)
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("index: unmarshal manifest: %w", err)
	}
	if m.Version != CurrentVersion {
		return m, &VersionMismatchError{Found: m.Version, Want: CurrentVersion}
	}
	return m, nil
}
