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

package crate

import (
	"bytes"

	libdig "github.com/nabbar/cratestore/digest"
	liberr "github.com/nabbar/cratestore/errors"
	libgz "github.com/nabbar/cratestore/gzip"
	libtar "github.com/nabbar/cratestore/tar"
)

// ContentBlobs is the decomposed form of one .crate archive: the gzip
// envelope it was produced with, plus the ordered list of raw tar header
// blocks and their content bytes (spec.md §4.3, "CrateContentBlobs").
type ContentBlobs struct {
	Envelope libgz.Envelope
	Entries  []libtar.Entry
}

// Decompose splits a gzip-wrapped tar archive into its envelope and raw
// tar entries. It does not validate that the result reconstructs to the
// original bytes; call DigestOfReconstructed for that.
func Decompose(archive []byte) (ContentBlobs, liberr.Error) {
	zr, env, err := libgz.Decode(bytes.NewReader(archive))
	if err != nil {
		return ContentBlobs{}, err
	}
	defer zr.Close()

	entries, terr := libtar.ReadEntries(zr)
	if terr != nil {
		return ContentBlobs{}, terr
	}

	return ContentBlobs{Envelope: env, Entries: entries}, nil
}

// Recompose rebuilds the archive bytes from the decomposed form: tar
// entries written verbatim, then gzip-compressed at best level with the
// captured envelope fields.
func (c ContentBlobs) Recompose() ([]byte, liberr.Error) {
	var tarBuf bytes.Buffer
	if err := libtar.WriteEntries(&tarBuf, c.Entries); err != nil {
		return nil, err
	}
	return libgz.Encode(c.Envelope, tarBuf.Bytes())
}

// DigestOfReconstructed recomposes the archive and returns the SHA-256
// digest of the result, for comparison against the expected digest from
// the source-of-truth iterator (the dedup admission rule, spec.md §4.3).
func (c ContentBlobs) DigestOfReconstructed() (libdig.Digest, liberr.Error) {
	reconstructed, err := c.Recompose()
	if err != nil {
		return libdig.Digest{}, err
	}
	return libdig.Sum(reconstructed), nil
}

// EntryBlob pairs one entry's raw header with its content digest and
// bytes, the unit of work handed to the pipeline for compression and
// storage.
type EntryBlob struct {
	Header  libtar.Header
	Digest  libdig.Digest
	Content []byte
}

// ToEntryBlobs hashes every entry's content, producing the manifest's
// (header, digest) pairs alongside the blob bytes that must be stored.
func (c ContentBlobs) ToEntryBlobs() []EntryBlob {
	blobs := make([]EntryBlob, 0, len(c.Entries))
	for _, e := range c.Entries {
		blobs = append(blobs, EntryBlob{
			Header:  e.Header,
			Digest:  libdig.Sum(e.Content),
			Content: e.Content,
		})
	}
	return blobs
}
