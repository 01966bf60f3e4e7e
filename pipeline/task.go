/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package pipeline implements the concurrent ingestion engine (spec.md
// §4.7): a worker pool running CPU-bound parallel tasks and a single
// writer goroutine applying the resulting store mutations in order.
package pipeline

import (
	libdig "github.com/nabbar/cratestore/digest"
	"github.com/nabbar/cratestore/crate"
)

// Item is one unit of ingestion input: an archive's identity, its bytes,
// and the digest it is expected to reconstruct to.
type Item struct {
	Spec           crate.Spec
	Archive        []byte
	ExpectedDigest libdig.Digest
}

// ChainMember is one node of a candidate multi-blob delta chain, root
// first, ordered the way graph.Build would order a path-group.
type ChainMember struct {
	Digest libdig.Digest
	Text   []byte
}

type parallelKind uint8

const (
	taskDecompose parallelKind = iota
	taskCompress
	taskBuildMultiBlob
)

// parallelTask is pure CPU work dispatched to the worker pool; workers
// never touch the store directly.
type parallelTask struct {
	kind parallelKind

	// taskDecompose
	spec           crate.Spec
	archive        []byte
	expectedDigest libdig.Digest

	// taskCompress
	digest  libdig.Digest
	payload []byte

	// taskBuildMultiBlob
	chain []ChainMember
}

type blockingKind uint8

const (
	taskStoreOpaque blockingKind = iota
	taskStoreDecomposed
	taskStoreBlob
	taskStoreMultiBlob
)

// blockingTask mutates the store and is applied exclusively by the
// writer goroutine, in the order it is received.
type blockingTask struct {
	kind blockingKind

	// taskStoreOpaque
	name  string
	bytes []byte

	// taskStoreDecomposed
	ccb crate.ContentBlobs

	// taskStoreBlob
	blobDigest     libdig.Digest
	compressedBlob []byte

	// taskStoreMultiBlob
	multiDigest libdig.Digest
	covered     []libdig.Digest
	compressedM []byte
}
