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
	"fmt"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/flate"
)

// compressJob is the unit of work submitted for each block on the write
// path. chunks are fed into a fresh deflate stream in order; this is how
// the writer's "prefix rule" (small-buffer content ahead of a large write)
// is folded into a single member without an extra copy.
type compressJob struct {
	chunks [][]byte
	level  int
}

// compressResult is what a compressJob produces.
type compressResult struct {
	compressed []byte
	crc        uint32
	size       uint64
}

// runCompressJob creates a fresh raw-deflate compressor, feeds chunks into
// it in order, and fully flushes it to produce one complete member body.
func runCompressJob(j compressJob) (compressResult, error) {
	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, j.level)
	if err != nil {
		return compressResult{}, fmt.Errorf("%w: %w", ErrCompress, err)
	}

	digest := crc32.NewIEEE()
	var size uint64
	for _, chunk := range j.chunks {
		if len(chunk) == 0 {
			continue
		}
		if _, err := fw.Write(chunk); err != nil {
			return compressResult{}, fmt.Errorf("%w: %w", ErrCompress, err)
		}
		digest.Write(chunk)
		size += uint64(len(chunk))
	}
	if err := fw.Close(); err != nil {
		return compressResult{}, fmt.Errorf("%w: %w", ErrCompress, err)
	}

	return compressResult{
		compressed: buf.Bytes(),
		crc:        digest.Sum32(),
		size:       size,
	}, nil
}

// decompressJob is the unit of work submitted for each indexed member on
// the read path.
type decompressJob struct {
	body       []byte
	rsize      uint64
	trailerCRC uint32
}

// decompressResult is what a decompressJob produces.
type decompressResult struct {
	data       []byte
	size       uint64
	rsize      uint64
	crc        uint32
	trailerCRC uint32
}

// runDecompressJob creates a fresh raw-deflate decompressor and decodes
// the whole member body. Because the body passed in is already bounded to
// exactly one member's compressed bytes (via the indexing subfield's
// MEMBER_SIZE), the deflate stream's own end-of-block marker is reached
// with no residue; there is no separate "unconsumed tail" to push back,
// unlike an incremental-buffer C binding.
func runDecompressJob(j decompressJob) (decompressResult, error) {
	fr := flate.NewReader(bytes.NewReader(j.body))
	defer fr.Close()

	data, err := io.ReadAll(fr)
	if err != nil {
		return decompressResult{}, fmt.Errorf("%w: %w", ErrDecompress, err)
	}

	return decompressResult{
		data:       data,
		size:       uint64(len(data)),
		rsize:      j.rsize,
		crc:        crc32.ChecksumIEEE(data),
		trailerCRC: j.trailerCRC,
	}, nil
}
