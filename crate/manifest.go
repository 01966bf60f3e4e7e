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
	"encoding/binary"
	"io"
	"math"

	libdig "github.com/nabbar/cratestore/digest"
	liberr "github.com/nabbar/cratestore/errors"
	libgz "github.com/nabbar/cratestore/gzip"
	libtar "github.com/nabbar/cratestore/tar"
)

// noFilenameSentinel marks "no original gzip filename" in the serialized
// manifest, per spec.md §4.3.
const noFilenameSentinel = math.MaxUint64

// maxManifestNameLen and maxManifestEntries bound the two length-prefixed
// fields DeserializeManifest trusts from its input, well above anything a
// real manifest ever contains. Without a bound, bytes that are not a
// manifest at all (an opaquely-stored archive's raw gzip bytes, whose
// first 8 bytes are gzip's magic plus flags read as an enormous
// big-endian u64) turn into a makeslice panic instead of a clean error.
const (
	maxManifestNameLen = 1 << 20
	maxManifestEntries = 1 << 24
)

// entryMeta is one (tar header, content digest) pair in manifest order.
type entryMeta struct {
	Header libtar.Header
	Digest libdig.Digest
}

// RecMetadata is the manifest enabling reconstruction of one archive:
// the gzip envelope plus the ordered list of (header, digest) pairs.
// Order is the source archive's tar entry order and is significant.
type RecMetadata struct {
	Envelope libgz.Envelope
	Entries  []entryMeta
}

// ManifestFromContentBlobs produces the manifest and the set of
// (digest, content) blobs that must exist in the store for it to be
// retrievable, from a freshly decomposed archive.
func ManifestFromContentBlobs(c ContentBlobs) (RecMetadata, []EntryBlob) {
	blobs := c.ToEntryBlobs()
	entries := make([]entryMeta, 0, len(blobs))
	for _, b := range blobs {
		entries = append(entries, entryMeta{Header: b.Header, Digest: b.Digest})
	}
	return RecMetadata{Envelope: c.Envelope, Entries: entries}, blobs
}

// ToContentBlobs rebuilds a ContentBlobs by pairing each manifest entry
// with its content bytes, resolved by the caller (normally via the blob
// store, following any multi-blob indirection).
func (m RecMetadata) ToContentBlobs(resolve func(libdig.Digest) ([]byte, liberr.Error)) (ContentBlobs, liberr.Error) {
	entries := make([]libtar.Entry, 0, len(m.Entries))
	for _, em := range m.Entries {
		content, err := resolve(em.Digest)
		if err != nil {
			return ContentBlobs{}, err
		}
		entries = append(entries, libtar.Entry{Header: em.Header, Content: content})
	}
	return ContentBlobs{Envelope: m.Envelope, Entries: entries}, nil
}

// FileList returns the tar entry names in manifest order, reading each
// verbatim header's name field directly (raw mode: GNU long-name
// pseudo-entries such as "././@LongLink" are listed like any other
// entry, never merged into a following name, per spec.md §9).
func (m RecMetadata) FileList() []string {
	names := make([]string, 0, len(m.Entries))
	for _, em := range m.Entries {
		names = append(names, headerName(em.Header))
	}
	return names
}

// FileEntry pairs one manifest entry's tar path with its content digest,
// for callers (the similarity-graph builder) that need path+digest
// without the raw 512-byte header.
type FileEntry struct {
	Path   string
	Digest libdig.Digest
}

// Files returns the manifest's entries as (path, digest) pairs, in
// manifest order.
func (m RecMetadata) Files() []FileEntry {
	out := make([]FileEntry, 0, len(m.Entries))
	for _, em := range m.Entries {
		out = append(out, FileEntry{Path: headerName(em.Header), Digest: em.Digest})
	}
	return out
}

func headerName(h libtar.Header) string {
	name := h[0:100]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return string(name)
}

// Serialize writes the manifest using the prefix-length encoding from
// spec.md §4.3.
func (m RecMetadata) Serialize(w io.Writer) liberr.Error {
	if m.Envelope.Name == nil {
		if err := binary.Write(w, binary.BigEndian, uint64(noFilenameSentinel)); err != nil {
			return liberr.IOError.Error(err)
		}
	} else {
		name := []byte(*m.Envelope.Name)
		if err := binary.Write(w, binary.BigEndian, uint64(len(name))); err != nil {
			return liberr.IOError.Error(err)
		}
		if _, err := w.Write(name); err != nil {
			return liberr.IOError.Error(err)
		}
	}

	if _, err := w.Write([]byte{m.Envelope.OS}); err != nil {
		return liberr.IOError.Error(err)
	}

	if err := binary.Write(w, binary.BigEndian, uint64(len(m.Entries))); err != nil {
		return liberr.IOError.Error(err)
	}
	for _, em := range m.Entries {
		if _, err := w.Write(em.Header[:]); err != nil {
			return liberr.IOError.Error(err)
		}
		if _, err := w.Write(em.Digest[:]); err != nil {
			return liberr.IOError.Error(err)
		}
	}
	return nil
}

// DeserializeManifest reads back a manifest written by Serialize.
func DeserializeManifest(r io.Reader) (RecMetadata, liberr.Error) {
	var nameLen uint64
	if err := binary.Read(r, binary.BigEndian, &nameLen); err != nil {
		return RecMetadata{}, liberr.CorruptRecord.Error(err)
	}

	var env libgz.Envelope
	if nameLen != noFilenameSentinel {
		if nameLen > maxManifestNameLen {
			return RecMetadata{}, liberr.CorruptRecord.Errorf("manifest name length %d exceeds sane bound %d", nameLen, maxManifestNameLen)
		}
		buf := make([]byte, nameLen)
		if _, err := io.ReadFull(r, buf); err != nil {
			return RecMetadata{}, liberr.CorruptRecord.Error(err)
		}
		name := string(buf)
		env.Name = &name
	}

	var osByte [1]byte
	if _, err := io.ReadFull(r, osByte[:]); err != nil {
		return RecMetadata{}, liberr.CorruptRecord.Error(err)
	}
	env.OS = osByte[0]

	var count uint64
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return RecMetadata{}, liberr.CorruptRecord.Error(err)
	}
	if count > maxManifestEntries {
		return RecMetadata{}, liberr.CorruptRecord.Errorf("manifest entry count %d exceeds sane bound %d", count, maxManifestEntries)
	}

	entries := make([]entryMeta, 0, count)
	for i := uint64(0); i < count; i++ {
		var em entryMeta
		if _, err := io.ReadFull(r, em.Header[:]); err != nil {
			return RecMetadata{}, liberr.CorruptRecord.Error(err)
		}
		if _, err := io.ReadFull(r, em.Digest[:]); err != nil {
			return RecMetadata{}, liberr.CorruptRecord.Error(err)
		}
		entries = append(entries, em)
	}

	return RecMetadata{Envelope: env, Entries: entries}, nil
}
