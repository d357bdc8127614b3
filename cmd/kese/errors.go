package main

import (
	"errors"

	"github.com/oarkflow/kese/codec"
	"github.com/oarkflow/kese/index"
)

// exitCode classifies err into spec.md §6's CLI exit codes: 0 success,
// 1 user error, 2 I/O error, 3 corrupt index. Grounded on SPEC_FULL.md
// §7's plan to map each package's local error kinds to exit codes at
// the CLI boundary rather than centralizing error types.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var cfgErr *index.ConfigInvalidError
	if errors.As(err, &cfgErr) {
		return 1
	}
	var ioErr *index.IoError
	if errors.As(err, &ioErr) {
		return 2
	}
	var codecErr *index.CodecCorruptError
	if errors.As(err, &codecErr) {
		return 3
	}
	var decodeErr *codec.ErrCorrupt
	if errors.As(err, &decodeErr) {
		return 3
	}
	var verErr *index.VersionMismatchError
	if errors.As(err, &verErr) {
		return 3
	}
	var internalErr *index.InternalError
	if errors.As(err, &internalErr) {
		return 3
	}
	if errors.Is(err, index.ErrCancelled) {
		return 1
	}
	return 1
}
