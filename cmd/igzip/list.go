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

package main

import (
	"fmt"
	"os"

	"github.com/rodaine/table"

	"github.com/parallelgzip/igzip"
)

type list struct {
	path string
}

func (l *list) Run() error {
	f, err := os.Open(l.path)
	if err != nil {
		return fmt.Errorf("%w: opening file: %w", ErrIgzipCLI, err)
	}
	defer f.Close()

	z, err := igzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("%w: reading archive: %w", ErrIgzipCLI, err)
	}
	defer z.Close()

	entries, err := z.ShowIndex()
	if err != nil {
		return fmt.Errorf("%w: building index: %w", ErrIgzipCLI, err)
	}

	var totalISize, totalMember int64
	tbl := table.New("block", "offset", "member_size", "isize")
	for _, e := range entries {
		tbl.AddRow(e.BlockID, e.Offset, e.MemberSize, e.ISize)
		totalISize += int64(e.ISize)
		totalMember += int64(e.MemberSize)
	}
	tbl.Print()

	fmt.Printf("%d members, %d bytes uncompressed, %d bytes on disk\n", len(entries), totalISize, totalMember)
	return nil
}
