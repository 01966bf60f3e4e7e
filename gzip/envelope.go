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

// Package gzip wraps the standard library gzip codec to preserve the
// envelope fields (original filename, operating-system byte) a .crate
// file was produced with, so that a gzipped tar can be re-encoded to
// byte-identical output.
//
// nabbar-golib's archive/gzip package is extraction-oriented (it decodes
// straight to a temp file and discards the header), which is the wrong
// shape for byte-exact recomposition; this package stays closer to the
// standard library so the envelope fields stay first-class values the
// caller can capture and replay. See SPEC_FULL.md §5.
package gzip

import (
	gz "compress/gzip"
	"bytes"
	"io"
	"time"

	liberr "github.com/nabbar/cratestore/errors"
)

// Envelope carries the gzip header fields that must round-trip exactly
// for a recomposed archive to reproduce the original bytes.
type Envelope struct {
	// Name holds the original filename field, or nil if the source
	// stream carried none (the FNAME flag was unset).
	Name *string
	OS   byte
}

// Decode opens a gzip reader over r, capturing its envelope fields. The
// returned io.Reader yields the decompressed payload; the caller must
// drain it fully (and ideally Close the underlying gzip.Reader) before
// relying on any trailing state.
func Decode(r io.Reader) (*gz.Reader, Envelope, liberr.Error) {
	zr, err := gz.NewReader(r)
	if err != nil {
		return nil, Envelope{}, liberr.GzipDecode.Error(err)
	}

	env := Envelope{OS: zr.OS}
	if zr.Name != "" {
		name := zr.Name
		env.Name = &name
	}
	return zr, env, nil
}

// Encode gzip-compresses payload at best compression, reproducing env's
// header fields (filename, OS byte) and a zeroed modification time so
// encoding is deterministic byte-for-byte across repeated calls.
func Encode(env Envelope, payload []byte) ([]byte, liberr.Error) {
	var buf bytes.Buffer

	zw, err := gz.NewWriterLevel(&buf, gz.BestCompression)
	if err != nil {
		return nil, liberr.GzipDecode.Error(err)
	}
	if env.Name != nil {
		zw.Name = *env.Name
	}
	zw.OS = env.OS
	zw.ModTime = time.Time{}

	if _, err := zw.Write(payload); err != nil {
		return nil, liberr.IOError.Error(err)
	}
	if err := zw.Close(); err != nil {
		return nil, liberr.IOError.Error(err)
	}
	return buf.Bytes(), nil
}
