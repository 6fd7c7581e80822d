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
	"bufio"
	"bytes"
	"context"
	"fmt"
	"hash/crc32"
	"io"
	"runtime"
	"time"

	"github.com/klauspost/compress/flate"
)

// ReaderOptions configures a Reader. The zero value is not valid on its
// own; use NewReaderOptions, which fills in defaults for any zero field.
type ReaderOptions struct {
	// Threads bounds the number of indexed members decompressed
	// concurrently. 0 selects half of runtime.NumCPU() (minimum 1).
	Threads int

	// BlockSize is a hint for the decompressed output buffer's starting
	// capacity. 0 selects DefaultBlockSize.
	BlockSize int
}

// Reader implements the read pipeline of spec.md section 4.3: it scans
// member headers, dispatches whole indexed members to a worker pool for
// decompression, validates each member's CRC and ISIZE, and exposes the
// concatenation of their decompressed bytes as an ordered io.Reader.
// Members without the indexing subfield are decoded synchronously inline,
// so a Reader can consume any RFC 1952 stream, not just ones this package
// produced.
//
// Reader does not take ownership of the underlying io.Reader; Close does
// not close it.
type Reader struct {
	raw io.Reader
	buf *bufio.Reader

	pool    *pool[decompressJob, decompressResult]
	pending []*handle[decompressResult]
	thread  int

	outBuf bytes.Buffer

	// Name and ModTime reflect the most recently parsed member's header.
	Name    string
	ModTime time.Time

	eof    bool
	closed bool
	tell   int64

	index *Index
}

// NewReader returns a Reader with default options: half of runtime.NumCPU()
// workers and a DefaultBlockSize output buffer hint.
func NewReader(r io.Reader) (*Reader, error) {
	return NewReaderOptions(r, ReaderOptions{})
}

// NewReaderOptions returns a Reader configured by opts. Zero-valued fields
// of opts take their documented defaults.
func NewReaderOptions(r io.Reader, opts ReaderOptions) (*Reader, error) {
	thread := opts.Threads
	if thread <= 0 {
		thread = runtime.NumCPU() / 2
		if thread < 1 {
			thread = 1
		}
	}

	blockSize := opts.BlockSize
	if blockSize == 0 {
		blockSize = DefaultBlockSize
	}

	z := &Reader{
		raw:    r,
		buf:    bufio.NewReader(r),
		thread: thread,
		pool:   newPool(thread, runDecompressJob),
	}
	z.outBuf.Grow(blockSize)
	return z, nil
}

// Read implements io.Reader. It returns up to len(p) bytes and 0, io.EOF
// once every member has been consumed.
func (z *Reader) Read(p []byte) (int, error) {
	if z.closed {
		return 0, ErrClosedStream
	}
	if len(p) == 0 {
		return 0, nil
	}

	for {
		if z.outBuf.Len() > 0 {
			n, _ := z.outBuf.Read(p)
			z.tell += int64(n)
			return n, nil
		}
		if !z.eof {
			if err := z.advance(); err != nil {
				return 0, err
			}
			continue
		}
		if len(z.pending) > 0 {
			if err := z.drainOne(); err != nil {
				return 0, err
			}
			continue
		}
		return 0, io.EOF
	}
}

// advance makes one unit of progress: it parses the next member header and
// either submits a decompression job (indexed member), decodes a member
// synchronously into outBuf (non-indexed member), or marks the stream EOF.
func (z *Reader) advance() error {
	if err := skipZeroPadding(z.buf); err != nil {
		if err == io.EOF {
			z.eof = true
			return nil
		}
		return err
	}

	hdr, err := readMemberHeader(z.buf)
	if err == io.EOF {
		z.eof = true
		return nil
	}
	if err != nil {
		return err
	}
	z.Name = hdr.Name
	z.ModTime = hdr.ModTime

	if hdr.Indexable {
		return z.dispatchIndexed(hdr)
	}
	// Drain earlier indexed members first so their bytes reach outBuf
	// ahead of this member's.
	for len(z.pending) > 0 {
		if err := z.drainOne(); err != nil {
			return err
		}
	}
	return z.syncDecode(hdr)
}

// dispatchIndexed reads an indexed member's whole compressed body and
// trailer off the source, then submits it to the worker pool.
func (z *Reader) dispatchIndexed(hdr *memberHeader) error {
	bodySize := int64(hdr.MemberSize) - hdr.HeaderSize - trailerSize
	if bodySize < 0 {
		return fmt.Errorf("%w: member size smaller than its own header", ErrTruncatedStream)
	}

	body := make([]byte, bodySize)
	if _, err := io.ReadFull(z.buf, body); err != nil {
		return headerErr(err)
	}
	trailerCRC, trailerISize, err := readTrailer(z.buf)
	if err != nil {
		return err
	}

	h, err := z.pool.submit(context.Background(), decompressJob{
		body:       body,
		rsize:      uint64(trailerISize),
		trailerCRC: trailerCRC,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDecompress, err)
	}
	z.pending = append(z.pending, h)

	// Cap in-flight jobs at z.thread: block on the oldest one before
	// parsing further headers once the pool is full.
	if len(z.pending) >= z.thread {
		return z.drainOne()
	}
	return nil
}

// syncDecode decodes a non-indexed member synchronously, relying on the
// shared bufio.Reader to leave the CRC/ISIZE trailer bytes unconsumed the
// way compress/gzip's own multistream support does.
func (z *Reader) syncDecode(hdr *memberHeader) error {
	_ = hdr
	fr := flate.NewReader(z.buf)
	data, err := io.ReadAll(fr)
	closeErr := fr.Close()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDecompress, err)
	}
	if closeErr != nil {
		return fmt.Errorf("%w: %w", ErrDecompress, closeErr)
	}

	trailerCRC, trailerISize, err := readTrailer(z.buf)
	if err != nil {
		return err
	}
	if crc32.ChecksumIEEE(data) != trailerCRC {
		return ErrCrcMismatch
	}
	//nolint:gosec // ISIZE is truth-mod-2^32 by the gzip format's own design.
	if uint32(len(data)) != trailerISize {
		return ErrSizeMismatch
	}

	z.outBuf.Write(data)
	return nil
}

// drainOne blocks on the oldest pending job, validates its result, and
// appends its decompressed bytes to outBuf.
func (z *Reader) drainOne() error {
	h := z.pending[0]
	z.pending = z.pending[1:]

	res, err := h.wait()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDecompress, err)
	}
	if res.crc != res.trailerCRC {
		return ErrCrcMismatch
	}
	//nolint:gosec // ISIZE is truth-mod-2^32 by the gzip format's own design.
	if uint32(res.size) != uint32(res.rsize) {
		return ErrSizeMismatch
	}
	z.outBuf.Write(res.data)
	return nil
}

// discardPending waits out every outstanding job without using its
// result, for use by Reset/Close/Seek when abandoning the current
// position.
func (z *Reader) discardPending() {
	for _, h := range z.pending {
		h.wait() //nolint:errcheck // intentionally discarded
	}
	z.pending = nil
}

// skipZeroPadding consumes zero bytes up to (but not including) the first
// non-zero byte, or returns io.EOF if the source ends first.
func skipZeroPadding(r *bufio.Reader) error {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		if b != 0 {
			return r.UnreadByte()
		}
	}
}

// ReadAll reads and returns the remainder of the decompressed stream.
func (z *Reader) ReadAll() ([]byte, error) {
	return io.ReadAll(readerFunc(z.Read))
}

type readerFunc func([]byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) { return f(p) }

// Tell returns the number of uncompressed bytes produced by Read so far.
func (z *Reader) Tell() int64 {
	return z.tell
}

// Reset discards the Reader's state and rewinds it to the start of r,
// which must support Seek. The next Read begins a fresh member parse.
func (z *Reader) Reset(r io.ReadSeeker) error {
	z.discardPending()
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%w: %w", errIgzip, err)
	}
	z.raw = r
	z.buf = bufio.NewReader(r)
	z.outBuf.Reset()
	z.eof = false
	z.tell = 0
	z.index = nil
	return nil
}

// Close releases the Reader's worker pool. It does not close the
// underlying io.Reader. Calling Close more than once is a no-op after the
// first call.
func (z *Reader) Close() error {
	if z.closed {
		return nil
	}
	z.closed = true
	z.discardPending()
	return z.pool.close()
}
