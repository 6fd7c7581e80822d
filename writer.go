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
	"bytes"
	"context"
	"fmt"
	"io"
	"runtime"
	"time"
)

const (
	// DefaultBlockSize is the default block size used for both reading
	// and writing, 10**8 bytes.
	DefaultBlockSize = 100_000_000

	// DefaultCompressionLevel is the default compression level used when
	// writing, matching gzip's own default of "best compression".
	DefaultCompressionLevel = 9

	// unsetCompressionLevel marks a WriterOptions.CompressionLevel that
	// the caller never set, distinguishing it from an explicit request
	// for level 0 (no compression). Mirrors flate.DefaultCompression's
	// own use of a negative sentinel.
	unsetCompressionLevel = -1
)

// WriterOptions configures a Writer. The zero value is not valid on its
// own; use NewWriterOptions, which fills in defaults for any zero field.
type WriterOptions struct {
	// CompressionLevel is passed to the deflate compressor for every
	// block, 0 (none) through 9 (best). Unlike the other fields here,
	// CompressionLevel's zero value is itself a valid, explicit level
	// (no compression), so it does not mean "use the default." Leave it
	// at -1 to get DefaultCompressionLevel, matching flate's own
	// DefaultCompression convention. NewWriter does this for you.
	CompressionLevel int

	// Threads bounds the number of blocks compressed concurrently. 0
	// selects runtime.NumCPU().
	Threads int

	// BlockSize is the number of uncompressed bytes per member. It must be
	// at least 1. A single Write of at least BlockSize but less than
	// 2*BlockSize bytes becomes one member, and buffered small-write
	// content is prepended to the first block of a large Write, so such
	// members hold more than BlockSize bytes.
	BlockSize int

	// ModTime is embedded in every member's MTIME field. The zero value
	// selects the current time when the Writer is created.
	ModTime time.Time
}

// Writer implements the write pipeline of spec.md section 4.2: it splits
// input into blocks as described for WriterOptions.BlockSize, compresses each block on
// a worker pool, and emits the ordered sequence of resulting members to
// the underlying io.Writer. Writer does not take ownership of that
// io.Writer; callers are responsible for closing it themselves.
type Writer struct {
	w         io.Writer
	name      string
	level     int
	blockSize int
	thread    int
	modTime   time.Time

	pool    *pool[compressJob, compressResult]
	pending []*handle[compressResult]

	small bytes.Buffer

	tell   int64
	closed bool
}

// NewWriter returns a Writer with default options: compression level 9,
// one worker per CPU, and a 10**8 byte block size. name is embedded as
// the member filename; pass "" to omit it.
func NewWriter(w io.Writer, name string) (*Writer, error) {
	return NewWriterOptions(w, name, WriterOptions{CompressionLevel: unsetCompressionLevel})
}

// NewWriterOptions returns a Writer configured by opts. Zero-valued
// fields of opts take their documented defaults.
func NewWriterOptions(w io.Writer, name string, opts WriterOptions) (*Writer, error) {
	level := opts.CompressionLevel
	if level == unsetCompressionLevel {
		level = DefaultCompressionLevel
	}
	if level < 0 || level > 9 {
		return nil, fmt.Errorf("%w: compression level %d out of range", ErrInvalidMode, level)
	}

	blockSize := opts.BlockSize
	if blockSize == 0 {
		blockSize = DefaultBlockSize
	}
	if blockSize < 1 {
		return nil, fmt.Errorf("%w: block size must be at least 1", ErrInvalidMode)
	}

	thread := opts.Threads
	if thread <= 0 {
		thread = runtime.NumCPU()
	}

	modTime := opts.ModTime
	if modTime.IsZero() {
		modTime = time.Now()
	}

	z := &Writer{
		w:         w,
		name:      name,
		level:     level,
		blockSize: blockSize,
		thread:    thread,
		modTime:   modTime,
		pool:      newPool(thread, runCompressJob),
	}
	z.small.Grow(blockSize)
	return z, nil
}

// Write implements io.Writer. It accepts the full input and returns
// len(p), matching spec.md's write(data) contract; on a hard failure it
// returns 0 and the error.
func (z *Writer) Write(p []byte) (int, error) {
	if z.closed {
		return 0, ErrClosedStream
	}
	if len(p) == 0 {
		return 0, nil
	}

	var err error
	switch {
	case len(p) >= z.blockSize && len(p) < 2*z.blockSize:
		err = z.submitBlock(p, true)

	case len(p) >= 2*z.blockSize:
		offset := 0
		first := true
		for offset < len(p) {
			end := offset + z.blockSize
			if end > len(p) {
				end = len(p)
			}
			if subErr := z.submitBlock(p[offset:end], first); subErr != nil {
				err = subErr
				break
			}
			first = false
			if drainErr := z.flushPool(false); drainErr != nil && err == nil {
				err = drainErr
			}
			offset = end
		}

	default:
		z.small.Write(p)
		if z.small.Len() >= z.blockSize {
			err = z.submitBlock(z.takeSmall(), false)
		}
	}

	if drainErr := z.flushPool(false); drainErr != nil && err == nil {
		err = drainErr
	}
	if err != nil {
		return 0, err
	}
	z.tell += int64(len(p))
	return len(p), nil
}

// submitBlock submits payload as a compression job, applying the prefix
// rule (prepending any pending small-buffer content) when applyPrefix is
// true.
func (z *Writer) submitBlock(payload []byte, applyPrefix bool) error {
	var chunks [][]byte
	if applyPrefix && z.small.Len() > 0 {
		chunks = [][]byte{z.takeSmall(), payload}
	} else {
		chunks = [][]byte{payload}
	}

	h, err := z.pool.submit(context.Background(), compressJob{chunks: chunks, level: z.level})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCompress, err)
	}
	z.pending = append(z.pending, h)
	return nil
}

// takeSmall returns a copy of the small buffer's contents and resets it,
// preserving its reserved capacity.
func (z *Writer) takeSmall() []byte {
	out := make([]byte, z.small.Len())
	copy(out, z.small.Bytes())
	z.small.Reset()
	return out
}

// flushPool drains completed jobs in FIFO submission order, writing each
// one's member to the underlying sink. With force false it stops once at
// most z.thread jobs remain pending, bounding memory; with force true it
// drains everything.
func (z *Writer) flushPool(force bool) error {
	limit := z.thread
	if force {
		limit = 0
	}

	for len(z.pending) > limit {
		h := z.pending[0]
		z.pending = z.pending[1:]

		res, err := h.wait()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCompress, err)
		}
		if err := writeMember(z.w, res.compressed, res.crc, res.size, z.name, z.modTime); err != nil {
			return err
		}
	}
	return nil
}

// Flush forces a full drain of pending jobs and flushes the underlying
// sink, if it supports flushing. Calling Flush twice in a row is
// equivalent to calling it once.
func (z *Writer) Flush() error {
	if z.closed {
		return ErrClosedStream
	}
	if err := z.flushPool(true); err != nil {
		return err
	}
	if f, ok := z.w.(interface{ Flush() error }); ok {
		if err := f.Flush(); err != nil {
			return fmt.Errorf("%w: flushing sink: %w", errIgzip, err)
		}
	}
	return nil
}

// Close flushes any buffered small-write content as a final member,
// drains all outstanding jobs, and releases the worker pool. It does not
// close the underlying io.Writer. Calling Close more than once is a
// no-op after the first call.
func (z *Writer) Close() error {
	if z.closed {
		return nil
	}
	z.closed = true

	if z.small.Len() > 0 {
		if err := z.submitBlock(z.takeSmall(), false); err != nil {
			return err
		}
	}
	if err := z.flushPool(true); err != nil {
		return err
	}
	return z.pool.close()
}

// Tell returns the number of uncompressed bytes accepted by Write so far.
func (z *Writer) Tell() int64 {
	return z.tell
}
