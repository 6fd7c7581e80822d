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
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestWriteReadMemberHeaderRoundTrip(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		body    []byte
		crc     uint32
		isize   uint64
		fname   string
		modTime time.Time

		wantName    string
		wantModTime time.Time
	}{
		{
			name:  "no name",
			body:  []byte("hello"),
			crc:   0x12345678,
			isize: 5,
		},
		{
			name:     "with name",
			body:     []byte("world"),
			crc:      0xabcdef01,
			isize:    5,
			fname:    "notes.txt",
			wantName: "notes.txt",
		},
		{
			name:        "name with .gz suffix stripped",
			body:        []byte{},
			fname:       "archive.tar.gz",
			wantName:    "archive.tar",
			modTime:     time.Unix(1700000000, 0),
			wantModTime: time.Unix(1700000000, 0),
		},
		{
			name:  "non-latin1 name omitted",
			body:  []byte("x"),
			fname: "café中.txt",
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			if err := writeMember(&buf, tc.body, tc.crc, tc.isize, tc.fname, tc.modTime); err != nil {
				t.Fatalf("writeMember: %v", err)
			}

			hdr, err := readMemberHeader(&buf)
			if err != nil {
				t.Fatalf("readMemberHeader: %v", err)
			}

			if diff := cmp.Diff(tc.wantName, hdr.Name); diff != "" {
				t.Errorf("Name (-want, +got):\n%s", diff)
			}
			if diff := cmp.Diff(tc.wantModTime, hdr.ModTime); diff != "" {
				t.Errorf("ModTime (-want, +got):\n%s", diff)
			}
			if !hdr.Indexable {
				t.Fatalf("Indexable = false, want true")
			}

			gotBody := make([]byte, int(hdr.MemberSize)-int(hdr.HeaderSize)-trailerSize)
			if _, err := buf.Read(gotBody); err != nil {
				t.Fatalf("reading body: %v", err)
			}
			if diff := cmp.Diff(tc.body, gotBody, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("body (-want, +got):\n%s", diff)
			}

			gotCRC, gotISize, err := readTrailer(&buf)
			if err != nil {
				t.Fatalf("readTrailer: %v", err)
			}
			if diff := cmp.Diff(tc.crc, gotCRC); diff != "" {
				t.Errorf("crc (-want, +got):\n%s", diff)
			}
			if diff := cmp.Diff(uint32(tc.isize), gotISize); diff != "" {
				t.Errorf("isize (-want, +got):\n%s", diff)
			}

			wantMemberSize := indexedHeaderSize + len(tc.body) + trailerSize
			if tc.wantName != "" {
				wantMemberSize += len(tc.wantName) + 1
			}
			if diff := cmp.Diff(int64(wantMemberSize), int64(hdr.MemberSize)); diff != "" {
				t.Errorf("MemberSize (-want, +got):\n%s", diff)
			}
		})
	}
}

func TestReadMemberHeaderEOF(t *testing.T) {
	t.Parallel()

	_, err := readMemberHeader(bytes.NewReader(nil))
	if err != io.EOF {
		t.Fatalf("readMemberHeader on empty input = %v, want io.EOF", err)
	}
}

func TestReadMemberHeaderBadMagic(t *testing.T) {
	t.Parallel()

	_, err := readMemberHeader(bytes.NewReader([]byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0}))
	if err == nil {
		t.Fatal("readMemberHeader: want error, got nil")
	}
	if !errors.Is(err, ErrBadMagic) {
		t.Errorf("readMemberHeader error = %v, want ErrBadMagic", err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		in       string
		wantName string
		wantOK   bool
	}{
		{name: "plain", in: "foo.txt", wantName: "foo.txt", wantOK: true},
		{name: "gz suffix stripped", in: "foo.txt.gz", wantName: "foo.txt", wantOK: true},
		{name: "empty after strip", in: ".gz", wantOK: false},
		{name: "empty", in: "", wantOK: false},
		{name: "non latin1", in: "中.txt", wantOK: false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			gotName, gotOK := sanitizeFilename(tc.in)
			if diff := cmp.Diff(tc.wantName, gotName); diff != "" {
				t.Errorf("name (-want, +got):\n%s", diff)
			}
			if gotOK != tc.wantOK {
				t.Errorf("ok = %v, want %v", gotOK, tc.wantOK)
			}
		})
	}
}
