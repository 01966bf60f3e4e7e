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

// Package store implements the append-only, content-addressed blob file:
// a fixed header, a body region of length-prefixed blobs, and a trailing
// index region holding three tables (digest->offset, name->digest,
// digest->multi-blob digest). See spec.md §4.2.
package store

import (
	"encoding/binary"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	libdig "github.com/nabbar/cratestore/digest"
	liberr "github.com/nabbar/cratestore/errors"
)

// Magic is the fixed 8-byte file signature, ASCII "BLOBSTRE" read as a
// big-endian u64.
const Magic uint64 = 0x424C4F4253545245

// HeaderSize is the fixed size of the header region; the body starts here.
const HeaderSize int64 = 64

// Store is a single-writer, append-only blob file with three in-memory
// indices mirroring the on-disk tables. Not safe for concurrent writers;
// a single Store value may be shared by concurrent readers under RLock.
type Store struct {
	mu sync.RWMutex
	f  *os.File
	lg *logrus.Entry

	indexOffset int64

	byDigest    map[libdig.Digest]int64
	byName      map[string]libdig.Digest
	multiByLeaf map[libdig.Digest]libdig.Digest
}

// Open opens or initializes a Store backed by f. An empty file is
// initialized as a fresh store; a non-empty file is validated against
// Magic and its index is loaded.
func Open(f *os.File) (*Store, liberr.Error) {
	s := &Store{
		f:           f,
		lg:          logrus.WithField("component", "store"),
		indexOffset: HeaderSize,
		byDigest:    make(map[libdig.Digest]int64),
		byName:      make(map[string]libdig.Digest),
		multiByLeaf: make(map[libdig.Digest]libdig.Digest),
	}

	fi, err := f.Stat()
	if err != nil {
		return nil, liberr.IOError.Error(err)
	}
	if fi.Size() == 0 {
		s.lg.Debug("initializing empty blob store")
		if ferr := s.flushIndexLocked(); ferr != nil {
			return nil, ferr
		}
		return s, nil
	}

	if lerr := s.load(); lerr != nil {
		return nil, lerr
	}
	return s, nil
}

func (s *Store) load() liberr.Error {
	hdr := make([]byte, HeaderSize)
	if _, err := io.ReadFull(io.NewSectionReader(s.f, 0, HeaderSize), hdr); err != nil {
		return liberr.CorruptIndex.Error(err)
	}

	magic := binary.BigEndian.Uint64(hdr[0:8])
	if magic != Magic {
		return liberr.BadMagic.Errorf("got magic 0x%X, want 0x%X", magic, Magic)
	}
	s.indexOffset = int64(binary.BigEndian.Uint64(hdr[8:16]))

	r := io.NewSectionReader(s.f, s.indexOffset, 1<<62)

	offsets, err := readOffsetTable(r)
	if err != nil {
		return err
	}
	names, err := readNameTable(r)
	if err != nil {
		return err
	}
	multis, err := readDigestTable(r)
	if err != nil {
		return err
	}

	s.byDigest = offsets
	s.byName = names
	s.multiByLeaf = multis

	s.lg.WithFields(logrus.Fields{
		"blobs":   len(offsets),
		"names":   len(names),
		"multis":  len(multis),
		"bodyEnd": s.indexOffset,
	}).Debug("loaded blob store index")
	return nil
}

// Has reports whether digest is present in the blob offset table.
func (s *Store) Has(digest libdig.Digest) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byDigest[digest]
	return ok
}

// Get returns the raw payload bytes stored under digest, or ok=false if
// absent. The returned bytes are exactly what was passed to Insert; any
// compression is the caller's concern.
func (s *Store) Get(digest libdig.Digest) (payload []byte, ok bool, rerr liberr.Error) {
	s.mu.RLock()
	offset, present := s.byDigest[digest]
	s.mu.RUnlock()
	if !present {
		return nil, false, nil
	}

	var lenBuf [8]byte
	if _, err := s.f.ReadAt(lenBuf[:], offset); err != nil {
		return nil, false, liberr.IOError.Error(err)
	}
	length := binary.BigEndian.Uint64(lenBuf[:])

	buf := make([]byte, length)
	if _, err := s.f.ReadAt(buf, offset+8); err != nil {
		return nil, false, liberr.IOError.Error(err)
	}
	return buf, true, nil
}

// MultiBlobFor looks digest up in the digest->multi-blob table; it
// returns the covering multi-blob's own digest and true if one covers
// it, else false.
func (s *Store) MultiBlobFor(digest libdig.Digest) (libdig.Digest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.multiByLeaf[digest]
	return m, ok
}

// ResolveName returns the digest a name was bound to via PutName.
func (s *Store) ResolveName(name string) (libdig.Digest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.byName[name]
	return d, ok
}

// Insert appends payload to the body region keyed by digest. Returns
// false without writing if digest is already present: the store's
// primary deduplication guarantee.
func (s *Store) Insert(digest libdig.Digest, payload []byte) (bool, liberr.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, present := s.byDigest[digest]; present {
		return false, nil
	}

	offset := s.indexOffset
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(payload)))

	if _, err := s.f.WriteAt(lenBuf[:], offset); err != nil {
		return false, liberr.IOError.Error(err)
	}
	if _, err := s.f.WriteAt(payload, offset+8); err != nil {
		return false, liberr.IOError.Error(err)
	}

	s.indexOffset = offset + 8 + int64(len(payload))
	s.byDigest[digest] = offset

	s.lg.WithFields(logrus.Fields{"digest": digest.Hex(), "size": len(payload)}).Debug("inserted blob")
	return true, nil
}

// PutName binds name to digest in the name index. Unconditional: a
// re-ingested archive rewrites the mapping even though its content blob
// was already present (spec.md §6 supplemented rule).
func (s *Store) PutName(name string, digest libdig.Digest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byName[name] = digest
}

// PutMulti records that digest is now served by the multi-blob entry
// multiDigest.
func (s *Store) PutMulti(digest, multiDigest libdig.Digest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.multiByLeaf[digest] = multiDigest
}

// FlushIndex rewrites the header and the three index tables at the
// current indexOffset, making the file self-contained and reopenable.
func (s *Store) FlushIndex() liberr.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushIndexLocked()
}

func (s *Store) flushIndexLocked() liberr.Error {
	var hdr [HeaderSize]byte
	binary.BigEndian.PutUint64(hdr[0:8], Magic)
	binary.BigEndian.PutUint64(hdr[8:16], uint64(s.indexOffset))
	if _, err := s.f.WriteAt(hdr[:], 0); err != nil {
		return liberr.IOError.Error(err)
	}

	w := &countingWriterAt{f: s.f, off: s.indexOffset}

	if err := writeOffsetTable(w, s.byDigest); err != nil {
		return err
	}
	if err := writeNameTable(w, s.byName); err != nil {
		return err
	}
	if err := writeDigestTable(w, s.multiByLeaf); err != nil {
		return err
	}

	if err := s.f.Truncate(w.off); err != nil {
		return liberr.IOError.Error(err)
	}

	s.lg.WithField("indexOffset", s.indexOffset).Debug("flushed blob store index")
	return nil
}

// Stats reports the current size of the three in-memory indices, for
// operator-facing introspection (the cratestore CLI's "stats" command).
func (s *Store) Stats() (blobs, names, multis int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byDigest), len(s.byName), len(s.multiByLeaf)
}

// Close flushes the index and closes the underlying file handle.
func (s *Store) Close() liberr.Error {
	if err := s.FlushIndex(); err != nil {
		return err
	}
	if err := s.f.Close(); err != nil {
		return liberr.IOError.Error(err)
	}
	return nil
}

// countingWriterAt sequentially appends to f starting at off, tracking
// the write cursor so index serialization can run the same table-writing
// helpers used for in-memory buffers.
type countingWriterAt struct {
	f   *os.File
	off int64
}

func (w *countingWriterAt) Write(p []byte) (int, error) {
	n, err := w.f.WriteAt(p, w.off)
	w.off += int64(n)
	return n, err
}
