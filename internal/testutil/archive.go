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

// Package testutil holds fixture builders shared by _test.go files in
// more than one package. It is not itself a _test.go file because Go
// does not let one package's test sources import another's.
package testutil

import (
	"bytes"
	gz "compress/gzip"
	"os"
	"path/filepath"
	"testing"

	libgz "github.com/nabbar/cratestore/gzip"
	"github.com/nabbar/cratestore/store"
	libtar "github.com/nabbar/cratestore/tar"
)

// BuildArchive constructs a gzip+tar archive using exactly the codec
// crate.Decompose/Recompose use, so the result is guaranteed
// reconstructible byte-for-byte (a real .crate producer using the same
// deterministic gzip parameters would satisfy the same property).
func BuildArchive(t testing.TB, files map[string][]byte) []byte {
	t.Helper()

	entries := make([]libtar.Entry, 0, len(files))
	for name, content := range files {
		var h libtar.Header
		copy(h[0:100], []byte(name))
		copy(h[124:136], []byte(octalSize(len(content))))
		entries = append(entries, libtar.Entry{Header: h, Content: content})
	}

	var tarBuf bytes.Buffer
	if err := libtar.WriteEntries(&tarBuf, entries); err != nil {
		t.Fatalf("WriteEntries: %v", err)
	}

	archive, err := libgz.Encode(libgz.Envelope{OS: 3}, tarBuf.Bytes())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return archive
}

func octalSize(n int) string {
	buf := make([]byte, 11)
	for i := 10; i >= 0; i-- {
		buf[i] = byte('0' + n%8)
		n /= 8
	}
	return string(buf) + "\x00"
}

// GzipCompress gzip-compresses content at best level, the same way the
// pipeline's own (unexported) compressBlob does, for tests that must
// populate a Store without going through the pipeline.
func GzipCompress(t testing.TB, content []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := gz.NewWriterLevel(&buf, gz.BestCompression)
	if err != nil {
		t.Fatalf("NewWriterLevel: %v", err)
	}
	if _, err := w.Write(content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return buf.Bytes()
}

// OpenTempStore opens a fresh Store backed by a temp file, closed
// automatically via t.Cleanup.
func OpenTempStore(t testing.TB) *store.Store {
	t.Helper()
	dir := t.TempDir()
	f, err := os.OpenFile(filepath.Join(dir, "blobs.store"), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	s, serr := store.Open(f)
	if serr != nil {
		t.Fatalf("store.Open: %v", serr)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}
