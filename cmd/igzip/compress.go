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
	"io"
	"os"
	"path/filepath"

	"github.com/parallelgzip/igzip"
)

// runOptions collects the flags shared by the compress and decompress
// paths, both for stdin/stdout and for file arguments.
type runOptions struct {
	path       string
	decompress bool
	force      bool
	keep       bool
	verbose    bool
	level      int
	threads    int
	blockSize  int
}

func (o runOptions) writerOptions() igzip.WriterOptions {
	return igzip.WriterOptions{
		CompressionLevel: o.level,
		Threads:          o.threads,
		BlockSize:        o.blockSize,
	}
}

func (o runOptions) readerOptions() igzip.ReaderOptions {
	return igzip.ReaderOptions{
		Threads:   o.threads,
		BlockSize: o.blockSize,
	}
}

// runStdio compresses stdin to stdout, or decompresses stdin to stdout
// when opts.decompress is set, matching spec.md's `igzip [-d] < in > out`.
func runStdio(opts runOptions) error {
	if opts.decompress {
		z, err := igzip.NewReaderOptions(os.Stdin, opts.readerOptions())
		if err != nil {
			return fmt.Errorf("%w: creating reader: %w", ErrIgzipCLI, err)
		}
		defer z.Close()

		if _, err := io.Copy(os.Stdout, z); err != nil {
			return fmt.Errorf("%w: decompressing stdin: %w", ErrIgzipCLI, err)
		}
		return nil
	}

	z, err := igzip.NewWriterOptions(os.Stdout, "", opts.writerOptions())
	if err != nil {
		return fmt.Errorf("%w: creating writer: %w", ErrIgzipCLI, err)
	}
	if _, err := io.Copy(z, os.Stdin); err != nil {
		return fmt.Errorf("%w: compressing stdin: %w", ErrIgzipCLI, err)
	}
	if err := z.Close(); err != nil {
		return fmt.Errorf("%w: closing output: %w", ErrIgzipCLI, err)
	}
	return nil
}

// runPath compresses or decompresses a single file in place, writing a
// sibling file and removing the input unless opts.keep is set.
func runPath(opts runOptions) error {
	if opts.decompress {
		return runDecompressPath(opts)
	}
	return runCompressPath(opts)
}

func runCompressPath(opts runOptions) error {
	newPath := opts.path + ".gz"

	from, err := os.Open(opts.path)
	if err != nil {
		return fmt.Errorf("%w: opening file: %w", ErrIgzipCLI, err)
	}
	defer from.Close()

	fInfo, err := from.Stat()
	if err != nil {
		return fmt.Errorf("%w: stat %q: %w", ErrIgzipCLI, opts.path, err)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if !opts.force {
		flags |= os.O_EXCL
	}
	dst, err := os.OpenFile(newPath, flags, 0o644)
	if err != nil {
		return fmt.Errorf("%w: opening target file: %w", ErrIgzipCLI, err)
	}
	defer dst.Close()

	wopts := opts.writerOptions()
	wopts.ModTime = fInfo.ModTime()
	z, err := igzip.NewWriterOptions(dst, filepath.Base(opts.path), wopts)
	if err != nil {
		return fmt.Errorf("%w: creating writer: %w", ErrIgzipCLI, err)
	}

	n, err := io.Copy(z, from)
	if err != nil {
		return fmt.Errorf("%w: compressing file %q: %w", ErrIgzipCLI, opts.path, err)
	}
	if err := z.Close(); err != nil {
		return fmt.Errorf("%w: closing %q: %w", ErrIgzipCLI, newPath, err)
	}

	if opts.verbose {
		fmt.Fprintf(os.Stderr, "%s:\t%d -> uncompressed, %d bytes\n", opts.path, n, n) //nolint:errcheck
	}

	if !opts.keep {
		if err := os.Remove(opts.path); err != nil {
			return fmt.Errorf("%w: removing file: %w", ErrIgzipCLI, err)
		}
	}
	return nil
}

func runDecompressPath(opts runOptions) error {
	ext := filepath.Ext(opts.path)
	if ext != ".gz" {
		return fmt.Errorf("%w: %q does not end in .gz", ErrIgzipCLI, opts.path)
	}
	newPath := opts.path[:len(opts.path)-len(ext)]

	from, err := os.Open(opts.path)
	if err != nil {
		return fmt.Errorf("%w: opening file: %w", ErrIgzipCLI, err)
	}
	defer from.Close()

	flags := os.O_CREATE | os.O_WRONLY
	if !opts.force {
		flags |= os.O_EXCL
	}
	dst, err := os.OpenFile(newPath, flags, 0o644)
	if err != nil {
		return fmt.Errorf("%w: opening target file: %w", ErrIgzipCLI, err)
	}
	defer dst.Close()

	z, err := igzip.NewReaderOptions(from, opts.readerOptions())
	if err != nil {
		return fmt.Errorf("%w: reading archive: %w", ErrIgzipCLI, err)
	}
	defer z.Close()

	if _, err := io.Copy(dst, z); err != nil {
		return fmt.Errorf("%w: decompressing file %q: %w", ErrIgzipCLI, opts.path, err)
	}

	if !opts.keep {
		if err := os.Remove(opts.path); err != nil {
			return fmt.Errorf("%w: removing file: %w", ErrIgzipCLI, err)
		}
	}
	return nil
}
