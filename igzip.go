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

// Package igzip implements a parallel, random-access-capable gzip codec
// that is wire-compatible with RFC 1952.
//
// A stream written by this package is a concatenation of independent gzip
// members, one per input block, so that compression and decompression can
// be spread across a worker pool. Every member written by this package
// carries an "IG" subfield in its extra-header giving the member's total
// on-disk size, which lets a Reader from this package dispatch whole
// members to workers and lets BuildIndex locate member boundaries without
// decompressing anything.
//
// Any standard gzip tool can read the output; only readers that understand
// the "IG" subfield can parallelize or randomly access it.
//
// Unless otherwise informed clients should not assume implementations in
// this package are safe for parallel execution on the same Writer or
// Reader; a single stream has exactly one owner goroutine, though that
// owner dispatches work to an internal pool.
package igzip
