package index

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/oarkflow/kese/merge"
	"github.com/oarkflow/kese/postings"
)

// termDictRecordSize is spec.md §6's term_dict.bin fixed-stride record:
// (term_offset: u64, term_len: u32, df: u32, skip_table_offset: u64,
// block_count: u32) — 28 bytes.
const termDictRecordSize = 8 + 4 + 4 + 8 + 4

// skipRecordSize is spec.md §6's skip_tables.bin per-block record:
// (last_doc_id: u32, max_score: f32, byte_offset: u64, byte_length:
// u32, tf_byte_length: u32) — 24 bytes. Posting count per block is not
// stored on disk (spec.md leaves it implicit): every block holds
// exactly manifest.BlockSize postings except the term's last block,
// whose count is recovered as df - blockSize*(blockCount-1). This
// mirrors how postings.Writer only ever shortens the final block.
const skipRecordSize = 4 + 4 + 8 + 4 + 4

const (
	termDictFileName    = "term_dict.bin"
	termStringsFileName = "term_strings.bin"
	skipTablesFileName  = "skip_tables.bin"
)

// TermDictEntry is one binary-searchable dictionary entry, spec.md
// §4.4's (term, df, postings_offset, block_count, skip_table_offset).
type TermDictEntry struct {
	Term            string
	TermHash        uint64
	DF              uint32
	SkipTableOffset uint64
	BlockCount      uint32
}

// TermDict is the loaded term dictionary: a lexicographically sorted
// entry array plus its flattened skip-table records, both held
// entirely in memory (the corpus sizes keSE targets make this
// cheaper than paging, and spec.md §4.4 requires binary search over
// the whole array).
//
// Grounded on internal/bptree's ordered traversal for construction and
// on the teacher's xxhash-keyed cache lookups (performance.go) for the
// TermHash accelerator field — xxhash never substitutes for the
// lexicographic byte comparison binary search performs, per
// SPEC_FULL.md §9's "term interning is an accelerator" note.
type TermDict struct {
	entries   []TermDictEntry
	blockSize uint32
	skips     []postings.Descriptor
}

// BuildTermDict assembles an in-memory TermDict from the block
// merger's output. entries must already be in ascending term order
// (merge.Merge's min-heap guarantees this).
func BuildTermDict(entries []merge.TermEntry, blockSize uint32) *TermDict {
	d := &TermDict{blockSize: blockSize}
	var skipOffset uint64
	for _, e := range entries {
		d.entries = append(d.entries, TermDictEntry{
			Term:            e.Term,
			TermHash:        xxhash.Sum64String(e.Term),
			DF:              e.DF,
			SkipTableOffset: skipOffset,
			BlockCount:      uint32(len(e.SkipTable)),
		})
		d.skips = append(d.skips, e.SkipTable...)
		skipOffset += uint64(len(e.SkipTable))
	}
	return d
}

// WriteTo persists the dictionary as term_dict.bin/term_strings.bin/
// skip_tables.bin under dir.
func (d *TermDict) WriteTo(dir string) error {
	stringsPath := filepath.Join(dir, termStringsFileName)
	dictPath := filepath.Join(dir, termDictFileName)
	skipPath := filepath.Join(dir, skipTablesFileName)

	stringsFile, err := os.Create(stringsPath)
	if err != nil {
		return &IoError{Path: stringsPath, Cause: err}
	}
	defer stringsFile.Close()
	stringsW := bufio.NewWriter(stringsFile)

	dictFile, err := os.Create(dictPath)
	if err != nil {
		return &IoError{Path: dictPath, Cause: err}
	}
	defer dictFile.Close()
	dictW := bufio.NewWriter(dictFile)

	var termOffset uint64
	var rec [termDictRecordSize]byte
	for _, e := range d.entries {
		if _, err := stringsW.WriteString(e.Term); err != nil {
			return &IoError{Path: stringsPath, Cause: err}
		}
		binary.LittleEndian.PutUint64(rec[0:8], termOffset)
		binary.LittleEndian.PutUint32(rec[8:12], uint32(len(e.Term)))
		binary.LittleEndian.PutUint32(rec[12:16], e.DF)
		binary.LittleEndian.PutUint64(rec[16:24], e.SkipTableOffset)
		binary.LittleEndian.PutUint32(rec[24:28], e.BlockCount)
		if _, err := dictW.Write(rec[:]); err != nil {
			return &IoError{Path: dictPath, Cause: err}
		}
		termOffset += uint64(len(e.Term))
	}
	if err := stringsW.Flush(); err != nil {
		return &IoError{Path: stringsPath, Cause: err}
	}
	if err := dictW.Flush(); err != nil {
		return &IoError{Path: dictPath, Cause: err}
	}

	skipFile, err := os.Create(skipPath)
	if err != nil {
		return &IoError{Path: skipPath, Cause: err}
	}
	defer skipFile.Close()
	skipW := bufio.NewWriter(skipFile)
	var srec [skipRecordSize]byte
	for _, s := range d.skips {
		binary.LittleEndian.PutUint32(srec[0:4], s.MaxDocID)
		binary.LittleEndian.PutUint32(srec[4:8], math.Float32bits(s.MaxScore))
		binary.LittleEndian.PutUint64(srec[8:16], s.ByteOffset)
		binary.LittleEndian.PutUint32(srec[16:20], s.ByteLength)
		binary.LittleEndian.PutUint32(srec[20:24], s.TFLength)
		if _, err := skipW.Write(srec[:]); err != nil {
			return &IoError{Path: skipPath, Cause: err}
		}
	}
	return skipW.Flush()
}

// LoadTermDict reads term_dict.bin/term_strings.bin/skip_tables.bin
// under dir, reconstructing per-block posting counts from blockSize
// (manifest.BlockSize).
func LoadTermDict(dir string, blockSize uint32) (*TermDict, error) {
	dictPath := filepath.Join(dir, termDictFileName)
	stringsPath := filepath.Join(dir, termStringsFileName)
	skipPath := filepath.Join(dir, skipTablesFileName)

	dictBytes, err := os.ReadFile(dictPath)
	if err != nil {
		return nil, &IoError{Path: dictPath, Cause: err}
	}
	strBytes, err := os.ReadFile(stringsPath)
	if err != nil {
		return nil, &IoError{Path: stringsPath, Cause: err}
	}
	skipBytes, err := os.ReadFile(skipPath)
	if err != nil {
		return nil, &IoError{Path: skipPath, Cause: err}
	}
	if len(dictBytes)%termDictRecordSize != 0 {
		return nil, &InternalError{Reason: fmt.Sprintf("term_dict.bin length %d not a multiple of record size %d", len(dictBytes), termDictRecordSize)}
	}
	if len(skipBytes)%skipRecordSize != 0 {
		return nil, &InternalError{Reason: fmt.Sprintf("skip_tables.bin length %d not a multiple of record size %d", len(skipBytes), skipRecordSize)}
	}

	d := &TermDict{blockSize: blockSize}
	n := len(dictBytes) / termDictRecordSize
	for i := 0; i < n; i++ {
		rec := dictBytes[i*termDictRecordSize : (i+1)*termDictRecordSize]
		termOffset := binary.LittleEndian.Uint64(rec[0:8])
		termLen := binary.LittleEndian.Uint32(rec[8:12])
		df := binary.LittleEndian.Uint32(rec[12:16])
		skipOffset := binary.LittleEndian.Uint64(rec[16:24])
		blockCount := binary.LittleEndian.Uint32(rec[24:28])
		if int(termOffset+uint64(termLen)) > len(strBytes) {
			return nil, &InternalError{Reason: "term_strings.bin truncated relative to term_dict.bin"}
		}
		term := string(strBytes[termOffset : termOffset+uint64(termLen)])
		d.entries = append(d.entries, TermDictEntry{
			Term:            term,
			TermHash:        xxhash.Sum64String(term),
			DF:              df,
			SkipTableOffset: skipOffset,
			BlockCount:      blockCount,
		})
	}

	numSkips := len(skipBytes) / skipRecordSize
	d.skips = make([]postings.Descriptor, numSkips)
	for i := 0; i < numSkips; i++ {
		rec := skipBytes[i*skipRecordSize : (i+1)*skipRecordSize]
		d.skips[i] = postings.Descriptor{
			MaxDocID:   binary.LittleEndian.Uint32(rec[0:4]),
			MaxScore:   math.Float32frombits(binary.LittleEndian.Uint32(rec[4:8])),
			ByteOffset: binary.LittleEndian.Uint64(rec[8:16]),
			ByteLength: binary.LittleEndian.Uint32(rec[16:20]),
			TFLength:   binary.LittleEndian.Uint32(rec[20:24]),
		}
	}
	return d, nil
}

// Len returns the number of terms in the dictionary.
func (d *TermDict) Len() int { return len(d.entries) }

// Lookup binary-searches the dictionary for term, spec.md §6 "Binary
// search over this array" / §8 invariant 4.
func (d *TermDict) Lookup(term string) (TermDictEntry, bool) {
	i := sort.Search(len(d.entries), func(i int) bool { return d.entries[i].Term >= term })
	if i < len(d.entries) && d.entries[i].Term == term {
		return d.entries[i], true
	}
	return TermDictEntry{}, false
}

// Descriptors reconstructs e's block skip table, filling in the
// per-block posting count implied by blockSize and e.DF.
func (d *TermDict) Descriptors(e TermDictEntry) []postings.Descriptor {
	if e.BlockCount == 0 {
		return nil
	}
	out := make([]postings.Descriptor, e.BlockCount)
	copy(out, d.skips[e.SkipTableOffset:e.SkipTableOffset+uint64(e.BlockCount)])
	full := uint32(d.blockSize)
	consumed := full * (e.BlockCount - 1)
	for i := range out {
		if i == len(out)-1 {
			out[i].Count = e.DF - consumed
		} else {
			out[i].Count = full
		}
	}
	return out
}

// IsSorted reports whether the dictionary's terms are in strictly
// ascending lexicographic order, spec.md §3/§8 invariant 4.
func (d *TermDict) IsSorted() bool {
	for i := 1; i < len(d.entries); i++ {
		if d.entries[i-1].Term >= d.entries[i].Term {
			return false
		}
	}
	return true
}
