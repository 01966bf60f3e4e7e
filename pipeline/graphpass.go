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

package pipeline

import (
	"bytes"
	"sort"

	"github.com/nabbar/cratestore/crate"
	libdig "github.com/nabbar/cratestore/digest"
	liberr "github.com/nabbar/cratestore/errors"
	"github.com/nabbar/cratestore/graph"
)

// BuildChainsForSpecs runs the similarity-graph pass (spec.md §4.6, §4.7)
// over the manifests named by specs: it groups their per-path content
// digests with graph.Build, then materializes a multi-blob for every
// resulting chain worth encoding as a diff (see BuildChains). Specs whose
// name resolves to an opaquely-stored archive, rather than a manifest,
// contribute no files and are silently skipped: they carry no per-path
// digests to group.
func (p *Pipeline) BuildChainsForSpecs(specs []crate.Spec) (int, error) {
	pkgs := make(map[string][]graph.VersionFiles)
	for _, spec := range specs {
		manifest, ok, err := p.loadManifestByName(spec)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}

		files := manifest.Files()
		vf := graph.VersionFiles{Version: spec.Version, Files: make([]graph.FileDigest, 0, len(files))}
		for _, f := range files {
			vf.Files = append(vf.Files, graph.FileDigest{Digest: f.Digest, Path: f.Path})
		}
		pkgs[spec.Name] = append(pkgs[spec.Name], vf)
	}

	return p.BuildChains(graph.Build(pkgs))
}

// loadManifestByName resolves spec's name mapping and parses it as a
// manifest, reporting ok=false (not an error) both when the name is
// unknown and when it names an opaquely-stored archive instead of a
// manifest.
func (p *Pipeline) loadManifestByName(spec crate.Spec) (crate.RecMetadata, bool, liberr.Error) {
	digest, ok := p.st.ResolveName(spec.FileName())
	if !ok {
		return crate.RecMetadata{}, false, nil
	}
	compressed, found, err := p.st.Get(digest)
	if err != nil {
		return crate.RecMetadata{}, false, err
	}
	if !found {
		return crate.RecMetadata{}, false, nil
	}
	raw, err := DecompressBlob(compressed)
	if err != nil {
		return crate.RecMetadata{}, false, err
	}
	manifest, derr := crate.DeserializeManifest(bytes.NewReader(raw))
	if derr != nil {
		return crate.RecMetadata{}, false, nil
	}
	return manifest, true, nil
}

// BuildChains materializes a multi-blob for each simple root-to-leaf
// chain in g that is both new (its tail digest is not already covered by
// an existing multi-blob) and actually smaller diff-encoded than the sum
// of its members' separately compressed blobs, per spec.md §4.6's "Edges
// are hints, not contracts: the multi-blob builder chooses which chains
// to materialize, subject to whether the diff-encoded chain is actually
// smaller than separate compressed blobs." It returns the number of
// multi-blobs it stored.
func (p *Pipeline) BuildChains(g *graph.Graph) (int, error) {
	built := 0
	for _, chain := range linearChains(g) {
		if len(chain) < 2 {
			continue
		}

		tail := chain[len(chain)-1]
		if _, already := p.st.MultiBlobFor(tail); already {
			continue
		}

		members, separateSize, ok, rerr := p.resolveChainMembers(chain)
		if rerr != nil {
			return built, rerr
		}
		if !ok {
			// Some member never made it into the store on its own (it
			// only ever appeared inside an opaque archive); nothing to
			// chain.
			continue
		}

		bt, berr := p.runBuildMultiBlob(parallelTask{kind: taskBuildMultiBlob, chain: members})
		if berr != nil {
			return built, berr
		}
		if len(bt.compressedM) >= separateSize {
			p.lg.WithField("chainLen", len(chain)).Debug("diff-encoded chain not smaller than separate blobs, skipping")
			continue
		}

		inserted, ierr := p.st.Insert(bt.multiDigest, bt.compressedM)
		if ierr != nil {
			return built, ierr
		}
		for _, leaf := range bt.covered {
			p.st.PutMulti(leaf, bt.multiDigest)
		}
		if inserted {
			built++
		}
	}
	return built, nil
}

func (p *Pipeline) resolveChainMembers(chain []libdig.Digest) ([]ChainMember, int, bool, liberr.Error) {
	members := make([]ChainMember, 0, len(chain))
	separateSize := 0
	for _, d := range chain {
		compressed, found, err := p.st.Get(d)
		if err != nil {
			return nil, 0, false, err
		}
		if !found {
			return nil, 0, false, nil
		}
		separateSize += len(compressed)

		text, err := DecompressBlob(compressed)
		if err != nil {
			return nil, 0, false, err
		}
		members = append(members, ChainMember{Digest: d, Text: text})
	}
	return members, separateSize, true, nil
}

// linearChains extracts one digest chain per root in g, following edges
// forward and, on a branch, always taking the lexicographically-lowest
// successor digest, for a deterministic result.
func linearChains(g *graph.Graph) [][]libdig.Digest {
	next := make(map[libdig.Digest][]libdig.Digest, len(g.Edges))
	for _, e := range g.Edges {
		next[e.From] = append(next[e.From], e.To)
	}
	for from := range next {
		succs := next[from]
		sort.Slice(succs, func(i, j int) bool { return succs[i].Hex() < succs[j].Hex() })
	}

	roots := make([]libdig.Digest, 0, len(g.Roots))
	for d := range g.Roots {
		roots = append(roots, d)
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i].Hex() < roots[j].Hex() })

	chains := make([][]libdig.Digest, 0, len(roots))
	for _, root := range roots {
		chain := []libdig.Digest{root}
		cur := root
		for {
			succs := next[cur]
			if len(succs) == 0 {
				break
			}
			cur = succs[0]
			chain = append(chain, cur)
		}
		chains = append(chains, chain)
	}
	return chains
}
