package index

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
)

// docMetaRecord is spec.md §6's doc_meta.bin fixed-stride record:
// (doc_length: u32, name_offset: u64, name_len: u32) — 16 bytes.
const docMetaRecordSize = 4 + 8 + 4

const (
	docMetaFile  = "doc_meta.bin"
	docNamesFile = "doc_names.bin"
)

// DocMetaTable is the loaded doc_meta.bin/doc_names.bin pair: per-doc
// length (for BM25 length normalization, cursor.DocLenFunc) and
// optional external name (for result display, spec.md §3).
type DocMetaTable struct {
	lengths []uint32
	offsets []uint64
	nameLen []uint32
	names   []byte
}

// WriteDocMeta writes doc_meta.bin and doc_names.bin for docs indexed
// 0..len(lengths)-1, in doc-id order. names may be shorter than
// lengths (docs beyond len(names) have no external name); a missing
// name is stored as a zero-length record.
func WriteDocMeta(dir string, lengths []uint32, names []string) error {
	metaPath := filepath.Join(dir, docMetaFile)
	namesPath := filepath.Join(dir, docNamesFile)

	namesFile, err := os.Create(namesPath)
	if err != nil {
		return &IoError{Path: namesPath, Cause: err}
	}
	defer namesFile.Close()
	namesW := bufio.NewWriter(namesFile)

	metaFile, err := os.Create(metaPath)
	if err != nil {
		return &IoError{Path: metaPath, Cause: err}
	}
	defer metaFile.Close()
	metaW := bufio.NewWriter(metaFile)

	var nameOffset uint64
	var rec [docMetaRecordSize]byte
	for docID, length := range lengths {
		var name string
		if docID < len(names) {
			name = names[docID]
		}
		binary.LittleEndian.PutUint32(rec[0:4], length)
		binary.LittleEndian.PutUint64(rec[4:12], nameOffset)
		binary.LittleEndian.PutUint32(rec[12:16], uint32(len(name)))
		if _, err := metaW.Write(rec[:]); err != nil {
			return &IoError{Path: metaPath, Cause: err}
		}
		if len(name) > 0 {
			if _, err := namesW.WriteString(name); err != nil {
				return &IoError{Path: namesPath, Cause: err}
			}
			nameOffset += uint64(len(name))
		}
	}
	if err := metaW.Flush(); err != nil {
		return &IoError{Path: metaPath, Cause: err}
	}
	if err := namesW.Flush(); err != nil {
		return &IoError{Path: namesPath, Cause: err}
	}
	return nil
}

// LoadDocMeta reads doc_meta.bin/doc_names.bin fully into memory; N is
// bounded by the corpus size, so this mirrors the term dictionary's
// whole-file load rather than paging.
func LoadDocMeta(dir string) (*DocMetaTable, error) {
	metaPath := filepath.Join(dir, docMetaFile)
	namesPath := filepath.Join(dir, docNamesFile)

	metaBytes, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, &IoError{Path: metaPath, Cause: err}
	}
	names, err := os.ReadFile(namesPath)
	if err != nil {
		return nil, &IoError{Path: namesPath, Cause: err}
	}
	if len(metaBytes)%docMetaRecordSize != 0 {
		return nil, &InternalError{Reason: fmt.Sprintf("doc_meta.bin length %d not a multiple of record size %d", len(metaBytes), docMetaRecordSize)}
	}
	n := len(metaBytes) / docMetaRecordSize
	t := &DocMetaTable{
		lengths: make([]uint32, n),
		offsets: make([]uint64, n),
		nameLen: make([]uint32, n),
		names:   names,
	}
	for i := 0; i < n; i++ {
		rec := metaBytes[i*docMetaRecordSize : (i+1)*docMetaRecordSize]
		t.lengths[i] = binary.LittleEndian.Uint32(rec[0:4])
		t.offsets[i] = binary.LittleEndian.Uint64(rec[4:12])
		t.nameLen[i] = binary.LittleEndian.Uint32(rec[12:16])
	}
	return t, nil
}

// NumDocs returns the number of documents in the table.
func (t *DocMetaTable) NumDocs() int { return len(t.lengths) }

// Length returns doc_id's token length.
func (t *DocMetaTable) Length(docID uint32) uint32 {
	if int(docID) >= len(t.lengths) {
		return 0
	}
	return t.lengths[docID]
}

// Name returns doc_id's external name, or "" if none was recorded.
func (t *DocMetaTable) Name(docID uint32) string {
	if int(docID) >= len(t.offsets) {
		return ""
	}
	off := t.offsets[docID]
	n := t.nameLen[docID]
	if n == 0 {
		return ""
	}
	return string(t.names[off : off+uint64(n)])
}
