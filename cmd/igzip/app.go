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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/parallelgzip/igzip"
)

const (
	// ExitCodeSuccess is the successful exit code.
	ExitCodeSuccess int = iota

	// ExitCodeFlagParseError is the exit code for a flag parsing error.
	ExitCodeFlagParseError

	// ExitCodeUnknownError is the exit code for any other core error.
	ExitCodeUnknownError
)

// ErrFlagParse is a flag parsing error.
var ErrFlagParse = errors.New("parsing flags")

// ErrIgzipCLI is the base error for igzip command errors.
var ErrIgzipCLI = errors.New("igzip")

func init() {
	cli.HelpFlag = &cli.BoolFlag{
		Name:               "d41d8cd98f00b204e980",
		DisableDefaultText: true,
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  filepath.Base(os.Args[0]),
		Usage: "Parallel, indexed gzip compression.",
		Description: strings.Join([]string{
			"igzip reads and writes gzip streams made of independently",
			"compressible members, each carrying an index subfield that",
			"lets igzip-aware readers parallelize decompression or seek",
			"to a member without scanning the whole file.",
		}, "\n"),
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:               "decompress",
				Usage:              "decompress instead of compress",
				Aliases:            []string{"d"},
				DisableDefaultText: true,
			},
			&cli.BoolFlag{
				Name:               "force",
				Usage:              "force overwrite of output file",
				Aliases:            []string{"f"},
				DisableDefaultText: true,
			},
			&cli.BoolFlag{
				Name:               "keep",
				Usage:              "do not delete the input file",
				Aliases:            []string{"k"},
				DisableDefaultText: true,
			},
			&cli.BoolFlag{
				Name:               "verbose",
				Usage:              "after compressing a file, report its uncompressed size (no per-member sizes)",
				Aliases:            []string{"v"},
				DisableDefaultText: true,
			},
			&cli.IntFlag{
				Name:  "level",
				Usage: "compression level, 0 (none) through 9 (best)",
				Value: igzip.DefaultCompressionLevel,
			},
			&cli.IntFlag{
				Name:  "threads",
				Usage: "worker count; 0 selects a CPU-count-based default",
			},
			&cli.Int64Flag{
				Name:  "blocksize",
				Usage: "uncompressed bytes per member (one write of up to twice this size stays one member)",
				Value: igzip.DefaultBlockSize,
			},
			&cli.BoolFlag{
				Name:               "help",
				Usage:              "print this help text and exit",
				Aliases:            []string{"h"},
				DisableDefaultText: true,
			},
			&cli.BoolFlag{
				Name:               "version",
				Usage:              "print version information and exit",
				DisableDefaultText: true,
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "list",
				Usage:     "print the member index of an igzip file",
				ArgsUsage: "PATH",
				Action: func(c *cli.Context) error {
					if c.Args().Len() != 1 {
						return fmt.Errorf("%w: list requires exactly one PATH argument", ErrFlagParse)
					}
					l := list{path: c.Args().First()}
					return l.Run()
				},
			},
		},
		ArgsUsage:       "[PATH]...",
		HideHelp:        true,
		HideHelpCommand: true,
		Action: func(c *cli.Context) error {
			if c.Bool("help") {
				return cli.ShowAppHelp(c)
			}
			if c.Bool("version") {
				return printVersion(c)
			}

			opts := runOptions{
				decompress: c.Bool("decompress"),
				force:      c.Bool("force"),
				keep:       c.Bool("keep"),
				verbose:    c.Bool("verbose"),
				level:      c.Int("level"),
				threads:    c.Int("threads"),
				blockSize:  int(c.Int64("blocksize")),
			}

			paths := c.Args().Slice()
			if len(paths) == 0 {
				return runStdio(opts)
			}
			for _, path := range paths {
				opts.path = path
				if err := runPath(opts); err != nil {
					return err
				}
			}
			return nil
		},
		ExitErrHandler: func(c *cli.Context, err error) {
			if err == nil {
				return
			}
			fmt.Fprintf(c.App.ErrWriter, "%s: %v\n", c.App.Name, err) //nolint:errcheck
			if errors.Is(err, ErrFlagParse) {
				cli.OsExiter(ExitCodeFlagParseError)
				return
			}
			cli.OsExiter(ExitCodeUnknownError)
		},
	}
}
