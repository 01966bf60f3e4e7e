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

// Package graph builds the similarity graph (spec.md §4.6) that the
// multi-blob builder consults to pick candidate delta chains: within one
// package, the blob at a given file path usually changes little between
// consecutive versions.
package graph

import (
	"sort"
	"strings"

	"golang.org/x/mod/semver"

	libdig "github.com/nabbar/cratestore/digest"
)

// longLinkPath is the synthetic GNU long-name pseudo-entry path skipped
// when grouping, since it carries no real per-version content.
const longLinkPath = "././@LongLink"

// FileDigest is one (content digest, archive-relative path) pair drawn
// from a single archive's manifest.
type FileDigest struct {
	Digest libdig.Digest
	Path   string
}

// VersionFiles is one package version's file list, used as grouping
// input.
type VersionFiles struct {
	Version string
	Files   []FileDigest
}

// Edge is a directed hint: the blob at To is usually a small diff away
// from the blob at From, observed because they share a stripped path
// within one package, ordered by version.
type Edge struct {
	From libdig.Digest
	To   libdig.Digest
}

// Graph is a forest of per-path chains, possibly joined across paths
// that happen to share a blob digest.
type Graph struct {
	Nodes map[libdig.Digest]struct{}
	Edges []Edge
	Roots map[libdig.Digest]struct{}
}

// newGraph returns an empty, ready-to-populate Graph.
func newGraph() *Graph {
	return &Graph{
		Nodes: make(map[libdig.Digest]struct{}),
		Edges: nil,
		Roots: make(map[libdig.Digest]struct{}),
	}
}

// Build constructs the similarity graph for all packages in pkgs, a map
// from package name to its versions' file lists.
func Build(pkgs map[string][]VersionFiles) *Graph {
	g := newGraph()
	for name, versions := range pkgs {
		buildPackage(g, name, versions)
	}
	return g
}

func buildPackage(g *Graph, name string, versions []VersionFiles) {
	pathToDigests := make(map[string]map[libdig.Digest]struct{})
	digestToVersion := make(map[libdig.Digest]string)

	for _, v := range versions {
		prefix := name + "-" + v.Version + "/"
		for _, fd := range v.Files {
			if fd.Path == longLinkPath {
				continue
			}
			stripped := strings.TrimPrefix(fd.Path, prefix)

			digests, ok := pathToDigests[stripped]
			if !ok {
				digests = make(map[libdig.Digest]struct{})
				pathToDigests[stripped] = digests
			}
			digests[fd.Digest] = struct{}{}
			if _, seen := digestToVersion[fd.Digest]; !seen {
				digestToVersion[fd.Digest] = v.Version
			}
		}
	}

	for _, v := range versions {
		for _, fd := range v.Files {
			if _, exists := g.Nodes[fd.Digest]; !exists {
				g.Nodes[fd.Digest] = struct{}{}
				g.Roots[fd.Digest] = struct{}{}
			}
		}
	}

	for _, digests := range pathToDigests {
		ordered := orderBySemver(digests, digestToVersion)
		for i := 1; i < len(ordered); i++ {
			delete(g.Roots, ordered[i])
			g.Edges = append(g.Edges, Edge{From: ordered[i-1], To: ordered[i]})
		}
	}
}

// orderBySemver sorts the digests in a path-group by the semantic
// version of the archive they were first seen in, so "0.2.0" sorts
// before "0.10.0" rather than lexicographically.
func orderBySemver(digests map[libdig.Digest]struct{}, digestToVersion map[libdig.Digest]string) []libdig.Digest {
	ordered := make([]libdig.Digest, 0, len(digests))
	for d := range digests {
		ordered = append(ordered, d)
	}
	sort.Slice(ordered, func(i, j int) bool {
		vi, vj := digestToVersion[ordered[i]], digestToVersion[ordered[j]]
		if c := semver.Compare(normalizeSemver(vi), normalizeSemver(vj)); c != 0 {
			return c < 0
		}
		return ordered[i].Hex() < ordered[j].Hex()
	})
	return ordered
}

// normalizeSemver adapts a bare "x.y.z" crate version into the "vX.Y.Z"
// form golang.org/x/mod/semver requires.
func normalizeSemver(v string) string {
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}
