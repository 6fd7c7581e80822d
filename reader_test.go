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
	"compress/gzip"
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// writeIgzip is a test helper that compresses writes into a complete
// igzip stream using the package's own Writer.
func writeIgzip(t *testing.T, blockSize int, writes ...[]byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	z, err := NewWriterOptions(&buf, "", WriterOptions{
		BlockSize:        blockSize,
		CompressionLevel: DefaultCompressionLevel,
		Threads:          3,
	})
	if err != nil {
		t.Fatalf("NewWriterOptions: %v", err)
	}
	for _, w := range writes {
		if _, err := z.Write(w); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := z.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return buf.Bytes()
}

func TestReaderRoundTrip(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name      string
		writes    [][]byte
		blockSize int
		threads   int
	}{
		{
			name:      "single member",
			writes:    [][]byte{[]byte("the quick brown fox")},
			blockSize: 1024,
			threads:   1,
		},
		{
			name:      "many members, single reader thread",
			writes:    [][]byte{bytes.Repeat([]byte("abcdefgh"), 20)},
			blockSize: 16,
			threads:   1,
		},
		{
			name:      "many members, several reader threads",
			writes:    [][]byte{bytes.Repeat([]byte("abcdefgh"), 40)},
			blockSize: 16,
			threads:   4,
		},
		{
			name:      "empty stream",
			writes:    [][]byte{},
			blockSize: 1024,
			threads:   2,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			compressed := writeIgzip(t, tc.blockSize, tc.writes...)

			r, err := NewReaderOptions(bytes.NewReader(compressed), ReaderOptions{Threads: tc.threads})
			if err != nil {
				t.Fatalf("NewReaderOptions: %v", err)
			}
			defer r.Close()

			got, err := r.ReadAll()
			if err != nil {
				t.Fatalf("ReadAll: %v", err)
			}

			var want []byte
			for _, w := range tc.writes {
				want = append(want, w...)
			}

			if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("round trip (-want, +got):\n%s", diff)
			}
		})
	}
}

func TestReaderSmallReads(t *testing.T) {
	t.Parallel()

	payload := bytes.Repeat([]byte("0123456789"), 10)
	compressed := writeIgzip(t, 17, payload)

	r, err := NewReader(bytes.NewReader(compressed))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	var got []byte
	buf := make([]byte, 7)
	for {
		n, err := r.Read(buf)
		got = append(got, buf[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
	}

	if diff := cmp.Diff(payload, got); diff != "" {
		t.Errorf("Read accumulation (-want, +got):\n%s", diff)
	}
}

func TestReaderInteropWithStdlibGzip(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	gw.Name = "stdlib.txt"
	if _, err := gw.Write([]byte("written by the standard library")); err != nil {
		t.Fatalf("gzip.Write: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("gzip.Close: %v", err)
	}

	r, err := NewReader(&buf)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	got, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if diff := cmp.Diff("written by the standard library", string(got)); diff != "" {
		t.Errorf("interop round trip (-want, +got):\n%s", diff)
	}
}

func TestReaderCrcMismatch(t *testing.T) {
	t.Parallel()

	compressed := writeIgzip(t, 1024, []byte("tamper with me"))
	corrupted := append([]byte(nil), compressed...)
	// Flip a bit inside the trailer's CRC32 field, which sits in the
	// last 8 bytes of the single member written here.
	corrupted[len(corrupted)-8] ^= 0xff

	r, err := NewReader(bytes.NewReader(corrupted))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	_, err = r.ReadAll()
	if !errors.Is(err, ErrCrcMismatch) {
		t.Errorf("ReadAll with corrupted CRC = %v, want ErrCrcMismatch", err)
	}
}

func TestReaderTruncatedStream(t *testing.T) {
	t.Parallel()

	compressed := writeIgzip(t, 1024, []byte("truncate me please"))
	truncated := compressed[:len(compressed)-4]

	r, err := NewReader(bytes.NewReader(truncated))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	_, err = r.ReadAll()
	if !errors.Is(err, ErrTruncatedStream) {
		t.Errorf("ReadAll on truncated stream = %v, want ErrTruncatedStream", err)
	}
}

func TestReaderTell(t *testing.T) {
	t.Parallel()

	compressed := writeIgzip(t, 1024, []byte("0123456789"))

	r, err := NewReader(bytes.NewReader(compressed))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	buf := make([]byte, 4)
	if _, err := io.ReadFull(r, buf); err != nil {
		t.Fatalf("ReadFull: %v", err)
	}
	if diff := cmp.Diff(int64(4), r.Tell()); diff != "" {
		t.Errorf("Tell (-want, +got):\n%s", diff)
	}
}

func TestReaderReset(t *testing.T) {
	t.Parallel()

	compressed := writeIgzip(t, 1024, []byte("reset me"))

	r, err := NewReader(bytes.NewReader(compressed))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	first, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}

	if err := r.Reset(bytes.NewReader(compressed)); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	second, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll after Reset: %v", err)
	}

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Reset round trip (-want, +got):\n%s", diff)
	}
}

func TestReaderCloseIdempotent(t *testing.T) {
	t.Parallel()

	compressed := writeIgzip(t, 1024, []byte("x"))

	r, err := NewReader(bytes.NewReader(compressed))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestReaderReadAfterCloseFails(t *testing.T) {
	t.Parallel()

	compressed := writeIgzip(t, 1024, []byte("x"))

	r, err := NewReader(bytes.NewReader(compressed))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	_, err = r.Read(make([]byte, 1))
	if !errors.Is(err, ErrClosedStream) {
		t.Errorf("Read after Close = %v, want ErrClosedStream", err)
	}
}
