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

// Package multiblob implements the delta-chain encoding that replaces a
// set of near-identical blobs (typically the same file path across
// consecutive package versions) with one root text plus a chain of
// line-diffs (spec.md §4.5).
package multiblob

import (
	libdig "github.com/nabbar/cratestore/digest"
	libdiff "github.com/nabbar/cratestore/diff"
	liberr "github.com/nabbar/cratestore/errors"
)

// Edge is one step of the delta chain: the text reachable by applying
// Diff to the text identified by From produces the text identified by To.
type Edge struct {
	From libdig.Digest
	To   libdig.Digest
	Diff libdiff.LineDiff
}

// MultiBlob is a root text plus a depth-first-linearized list of edges
// covering every other member of the chain.
type MultiBlob struct {
	RootDigest libdig.Digest
	RootText   string
	Edges      []Edge
}

// GetBlob retrieves the text for digest d, returning ok=false if d is
// neither the root nor covered by any edge.
//
// Resolution walks Edges from the tail, matching the edge whose To
// equals the current target and replacing the target with its From,
// until the target equals RootDigest. The matched edges are then
// applied in reverse of collection order (root-to-leaf) to RootText.
func (m MultiBlob) GetBlob(d libdig.Digest) (string, bool) {
	if d == m.RootDigest {
		return m.RootText, true
	}

	var chain []Edge
	target := d
	for {
		idx := lastEdgeTo(m.Edges, target)
		if idx < 0 {
			return "", false
		}
		e := m.Edges[idx]
		chain = append(chain, e)
		target = e.From
		if target == m.RootDigest {
			break
		}
	}

	text := m.RootText
	for i := len(chain) - 1; i >= 0; i-- {
		text = libdiff.Reconstruct(text, chain[i].Diff)
	}
	return text, true
}

func lastEdgeTo(edges []Edge, to libdig.Digest) int {
	for i := len(edges) - 1; i >= 0; i-- {
		if edges[i].To == to {
			return i
		}
	}
	return -1
}

// Digest returns the content-address of the multi-blob's own serialized
// form (the key used to store it and in digest_to_multi_blob mappings).
func (m MultiBlob) Digest() (libdig.Digest, liberr.Error) {
	payload, err := m.serializeBytes()
	if err != nil {
		return libdig.Digest{}, err
	}
	return libdig.Sum(payload), nil
}
