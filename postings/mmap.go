//go:build unix

package postings

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// MmapSource is a read-only, memory-mapped ByteSource over the shared
// postings file, for deployments that prefer relying on the OS page
// cache over the BlockCache's own LRU (spec.md §9 leaves the choice of
// I/O strategy open; SPEC_FULL.md §6 wires golang.org/x/sys here,
// behind the opt-in index.OpenConfig.MmapIndex flag, since unconditionally
// mmap'ing changes failure modes around truncated/corrupt files in a
// way a plain *os.File ReadAt does not).
type MmapSource struct {
	data []byte
}

// OpenMmapSource maps f's current contents read-only. f may be closed
// by the caller once a process that no longer needs the mapping exits;
// the mapping itself does not keep the *os.File open.
func OpenMmapSource(f *os.File) (*MmapSource, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("postings: stat for mmap: %w", err)
	}
	size := info.Size()
	if size == 0 {
		return &MmapSource{data: nil}, nil
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("postings: mmap: %w", err)
	}
	return &MmapSource{data: data}, nil
}

// ReadAt implements ByteSource by copying out of the mapped region. An
// offset outside the region or a read that cannot fill p returns a
// non-nil error describing the offset and sizes (not io.EOF).
func (m *MmapSource) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(m.data)) {
		return 0, fmt.Errorf("postings: mmap read offset %d out of range (size %d)", off, len(m.data))
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, fmt.Errorf("postings: mmap short read at offset %d: wanted %d, got %d", off, len(p), n)
	}
	return n, nil
}

// Close unmaps the region. Safe to call once; a nil or already-empty
// source is a no-op.
func (m *MmapSource) Close() error {
	if len(m.data) == 0 {
		return nil
	}
	data := m.data
	m.data = nil
	return unix.Munmap(data)
}
