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
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// IndexEntry describes one member's place in the file, per spec.md
// section 4.4: block_id, offset, member_size, isize.
type IndexEntry struct {
	BlockID    int
	Offset     int64
	MemberSize uint32
	ISize      uint32
}

// Index is the built offset/size table for a stream, supporting
// uncompressed-offset seeking.
type Index struct {
	entries []IndexEntry
}

// Show enumerates the index's entries in member order.
func (idx *Index) Show() []IndexEntry {
	out := make([]IndexEntry, len(idx.entries))
	copy(out, idx.entries)
	return out
}

// TotalSize returns the on-disk byte length implied by the index: the
// offset past the last member.
func (idx *Index) TotalSize() int64 {
	if len(idx.entries) == 0 {
		return 0
	}
	last := idx.entries[len(idx.entries)-1]
	return last.Offset + int64(last.MemberSize)
}

// BuildIndex walks the underlying stream from its start, recording the
// (offset, member_size, isize) of every member, and restores the prior
// read position when done. The source must implement io.Seeker; every
// member must carry the "IG" indexing subfield, or ErrNotIndexable is
// returned.
func (z *Reader) BuildIndex() (*Index, error) {
	if z.index != nil {
		return z.index, nil
	}

	seeker, ok := z.raw.(io.Seeker)
	if !ok {
		return nil, fmt.Errorf("%w: source does not support seeking", ErrInvalidMode)
	}

	prior, err := seeker.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errIgzip, err)
	}
	defer seeker.Seek(prior, io.SeekStart) //nolint:errcheck // best-effort restore

	var entries []IndexEntry
	var offset int64
	for {
		if _, err := seeker.Seek(offset+fixedHdrSize+2, io.SeekStart); err != nil {
			return nil, fmt.Errorf("%w: %w", errIgzip, err)
		}

		sub := make([]byte, indexedExtraBodyLen)
		n, err := io.ReadFull(z.raw, sub)
		if n == 0 && errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, fmt.Errorf("%w: %w", ErrTruncatedStream, err)
			}
			return nil, fmt.Errorf("%w: %w", errIgzip, err)
		}

		if sub[0] != sfID1 || sub[1] != sfID2 {
			return nil, ErrNotIndexable
		}
		memberSize := binary.LittleEndian.Uint32(sub[4:8])
		if int64(memberSize) < indexedHeaderSize+trailerSize {
			return nil, fmt.Errorf("%w: implausible member size", ErrTruncatedStream)
		}

		if _, err := seeker.Seek(offset+int64(memberSize)-4, io.SeekStart); err != nil {
			return nil, fmt.Errorf("%w: %w", errIgzip, err)
		}
		isizeBuf := make([]byte, 4)
		if _, err := io.ReadFull(z.raw, isizeBuf); err != nil {
			return nil, headerErr(fmt.Errorf("reading ISIZE: %w", err))
		}

		entries = append(entries, IndexEntry{
			BlockID:    len(entries),
			Offset:     offset,
			MemberSize: memberSize,
			ISize:      binary.LittleEndian.Uint32(isizeBuf),
		})
		offset += int64(memberSize)
	}

	idx := &Index{entries: entries}
	z.index = idx
	return idx, nil
}

// ShowIndex builds the index if necessary and returns its entries.
func (z *Reader) ShowIndex() ([]IndexEntry, error) {
	idx, err := z.BuildIndex()
	if err != nil {
		return nil, err
	}
	return idx.Show(), nil
}

// SeekUncompressed repositions the Reader so the next Read returns bytes
// starting at uncompressed offset pos, using a binary search over
// cumulative ISIZE to find the containing member and decompressing only
// that member. The source must implement io.ReadSeeker.
func (z *Reader) SeekUncompressed(pos int64) error {
	if pos < 0 {
		return fmt.Errorf("%w: negative offset", ErrInvalidMode)
	}
	seeker, ok := z.raw.(io.ReadSeeker)
	if !ok {
		return fmt.Errorf("%w: source does not support seeking", ErrInvalidMode)
	}

	idx, err := z.BuildIndex()
	if err != nil {
		return err
	}
	if len(idx.entries) == 0 {
		if pos == 0 {
			return nil
		}
		return io.EOF
	}

	lo, hi := 0, len(idx.entries)-1
	cum := make([]int64, len(idx.entries)+1)
	for i, e := range idx.entries {
		cum[i+1] = cum[i] + int64(e.ISize)
	}
	if pos >= cum[len(cum)-1] {
		return io.EOF
	}
	for lo < hi {
		mid := (lo + hi) / 2
		if pos < cum[mid+1] {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	target := idx.entries[lo]

	z.discardPending()
	if _, err := seeker.Seek(target.Offset, io.SeekStart); err != nil {
		return fmt.Errorf("%w: %w", errIgzip, err)
	}
	z.buf = bufio.NewReader(seeker)
	z.outBuf.Reset()
	z.eof = false

	hdr, err := readMemberHeader(z.buf)
	if err != nil {
		return err
	}

	var data []byte
	if hdr.Indexable {
		bodySize := int64(hdr.MemberSize) - hdr.HeaderSize - trailerSize
		body := make([]byte, bodySize)
		if _, err := io.ReadFull(z.buf, body); err != nil {
			return headerErr(err)
		}
		trailerCRC, trailerISize, err := readTrailer(z.buf)
		if err != nil {
			return err
		}
		res, err := runDecompressJob(decompressJob{body: body, rsize: uint64(trailerISize), trailerCRC: trailerCRC})
		if err != nil {
			return err
		}
		if res.crc != trailerCRC {
			return ErrCrcMismatch
		}
		if uint32(res.size) != trailerISize {
			return ErrSizeMismatch
		}
		data = res.data
	} else {
		if err := z.syncDecode(hdr); err != nil {
			return err
		}
		data = z.outBuf.Bytes()
		z.outBuf.Reset()
	}

	within := pos - cum[lo]
	if within > int64(len(data)) {
		within = int64(len(data))
	}
	z.outBuf.Write(data[within:])
	z.tell = pos
	return nil
}
