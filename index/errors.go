package index

import "fmt"

// This file declares the error kinds of spec.md §7 as local error
// variables/types, following the teacher's per-file errors.New idiom
// (document.go's errNoAdapter, manager.go's inline fmt.Errorf) rather
// than a single centralized error package.

// ConfigInvalidError is spec.md §7's ConfigInvalid: bad config.json or
// build/search request.
type ConfigInvalidError struct {
	Reason string
}

func (e *ConfigInvalidError) Error() string {
	return fmt.Sprintf("config invalid: %s", e.Reason)
}

// IoError wraps a failed filesystem operation with the offending path,
// spec.md §7's IoError(path, cause).
type IoError struct {
	Path  string
	Cause error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("io error: %s: %v", e.Path, e.Cause)
}

func (e *IoError) Unwrap() error { return e.Cause }

// CodecCorruptError is spec.md §7's CodecCorrupt(term, block): a
// postings block failed to decode.
type CodecCorruptError struct {
	Term  string
	Block int
	Cause error
}

func (e *CodecCorruptError) Error() string {
	return fmt.Sprintf("codec corrupt: term %q block %d: %v", e.Term, e.Block, e.Cause)
}

func (e *CodecCorruptError) Unwrap() error { return e.Cause }

// VersionMismatchError is spec.md §7's IndexVersionMismatch.
type VersionMismatchError struct {
	Found, Want uint32
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("index version mismatch: found %d, want %d", e.Found, e.Want)
}

// TermNotFoundError is spec.md §7's TermNotFound: not fatal, callers
// treat it as an empty contribution from that term rather than
// aborting the query.
type TermNotFoundError struct {
	Term string
}

func (e *TermNotFoundError) Error() string {
	return fmt.Sprintf("term not found: %q", e.Term)
}

// OutOfMemoryError is spec.md §7's OutOfMemory: the SPIMI budget could
// not be honored even after a flush (e.g. a single document's own
// terms already exceed the budget).
type OutOfMemoryError struct {
	BudgetBytes uint64
}

func (e *OutOfMemoryError) Error() string {
	return fmt.Sprintf("out of memory: budget %d bytes exceeded even after flush", e.BudgetBytes)
}

// InternalError is spec.md §7's Internal: an invariant violation that
// indicates a bug and must not be silently corrected.
type InternalError struct {
	Reason string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal: %s", e.Reason)
}

// ErrCancelled is spec.md §7's Cancelled. Build returns it when ctx is
// done between documents; Search returns it when ctx is already done
// before the retrieval algorithm starts, and a running algorithm is not
// interrupted.
var ErrCancelled = fmt.Errorf("cancelled")
