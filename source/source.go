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

// Package source implements the polymorphic read side (spec.md §4.8):
// a uniform interface over archive data backed by a sharded directory
// tree, a flat cache directory, the blob store, or an overlay of two
// other sources. Callers that only need a subset of files (the
// read-only UI) can open a Handle and stream individual entries
// without materializing the whole archive.
package source

import (
	"bytes"

	"github.com/nabbar/cratestore/crate"
	liberr "github.com/nabbar/cratestore/errors"
	libtar "github.com/nabbar/cratestore/tar"
)

// entryName reads a raw tar entry's verbatim name field, the same way
// crate.RecMetadata.FileList does for manifest entries.
func entryName(e libtar.Entry) string {
	name := e.Header[0:100]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return string(name)
}

// Handle exposes one archive's entries without requiring the caller to
// hold the whole reconstructed archive in memory at once.
type Handle interface {
	// ListFiles returns the archive's tar entry names, in archive order.
	ListFiles() []string
	// ReadFile returns the content of the entry at path, or ok=false if
	// no entry has that name.
	ReadFile(path string) (content []byte, ok bool, rerr liberr.Error)
}

// Source is the uniform read interface implemented by every backend.
type Source interface {
	// GetArchive returns the full reconstructed archive bytes for spec,
	// or ok=false if it is not known to this source.
	GetArchive(spec crate.Spec) (archive []byte, ok bool, rerr liberr.Error)
	// OpenHandle returns a Handle for spec without reconstructing the
	// full archive up front, or ok=false if it is not known to this
	// source.
	OpenHandle(spec crate.Spec) (h Handle, ok bool, rerr liberr.Error)
}

// entriesHandle is the Handle implementation shared by every backend
// once it has produced a crate.ContentBlobs: list/read just walk the
// already-decoded entries, so decomposition happens exactly once.
type entriesHandle struct {
	ccb crate.ContentBlobs
}

func newEntriesHandle(ccb crate.ContentBlobs) entriesHandle {
	return entriesHandle{ccb: ccb}
}

func (h entriesHandle) ListFiles() []string {
	names := make([]string, 0, len(h.ccb.Entries))
	for _, e := range h.ccb.Entries {
		names = append(names, entryName(e))
	}
	return names
}

func (h entriesHandle) ReadFile(path string) ([]byte, bool, liberr.Error) {
	for _, e := range h.ccb.Entries {
		if entryName(e) == path {
			return e.Content, true, nil
		}
	}
	return nil, false, nil
}
