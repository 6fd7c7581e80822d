// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package igzip

import (
	"errors"
	"fmt"
	"io"
)

// errIgzip is the base error for all igzip errors. Every exported
// sentinel below wraps it, so errors.Is(err, errIgzip) is true for any
// error this package returns.
var errIgzip = errors.New("igzip")

var (
	// ErrBadMagic indicates a member did not begin with the gzip magic
	// bytes 0x1f 0x8b.
	ErrBadMagic = fmt.Errorf("%w: bad magic", errIgzip)

	// ErrUnknownMethod indicates a member's compression method was not 8
	// (deflate).
	ErrUnknownMethod = fmt.Errorf("%w: unknown compression method", errIgzip)

	// ErrTruncatedStream indicates the source ended before an end-of-stream
	// marker, or before a declared byte count was satisfied.
	ErrTruncatedStream = fmt.Errorf("%w: truncated stream", errIgzip)

	// ErrCrcMismatch indicates a member's trailer CRC did not match the
	// CRC of its decompressed bytes.
	ErrCrcMismatch = fmt.Errorf("%w: CRC mismatch", errIgzip)

	// ErrSizeMismatch indicates a member's decompressed length did not
	// match its declared ISIZE (or, for indexed members, the declared
	// uncompressed job size).
	ErrSizeMismatch = fmt.Errorf("%w: size mismatch", errIgzip)

	// ErrNotIndexable indicates BuildIndex was called on a stream
	// containing at least one member without the "IG" indexing subfield.
	ErrNotIndexable = fmt.Errorf("%w: not indexable", errIgzip)

	// ErrInvalidMode indicates an option combination that is not valid
	// for the requested stream mode.
	ErrInvalidMode = fmt.Errorf("%w: invalid mode", errIgzip)

	// ErrWriteOnReader indicates Write was called on a Reader.
	ErrWriteOnReader = fmt.Errorf("%w: write on reader", errIgzip)

	// ErrReadOnWriter indicates Read was called on a Writer.
	ErrReadOnWriter = fmt.Errorf("%w: read on writer", errIgzip)

	// ErrCompress indicates the underlying DEFLATE primitive failed while
	// compressing a block.
	ErrCompress = fmt.Errorf("%w: compress", errIgzip)

	// ErrDecompress indicates the underlying DEFLATE primitive failed
	// while decompressing a member.
	ErrDecompress = fmt.Errorf("%w: decompress", errIgzip)

	// ErrClosedStream indicates an operation was attempted on a stream
	// whose underlying source or sink has already been released.
	ErrClosedStream = fmt.Errorf("%w: closed stream", errIgzip)
)

// headerErr folds EOF-ish errors encountered while parsing a member header
// into ErrTruncatedStream, and wraps everything else under errIgzip.
func headerErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %w", ErrTruncatedStream, err)
	}
	return fmt.Errorf("%w: %w", errIgzip, err)
}
