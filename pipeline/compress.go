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
	gz "compress/gzip"
	"io"

	liberr "github.com/nabbar/cratestore/errors"
)

// compressBlob gzip-compresses arbitrary blob content at best level. This
// is unrelated to the archive-level gzipenv codec: blob bodies are
// re-compressed fresh on every store and carry no envelope metadata, so
// a plain stdlib gzip writer is all that's needed.
func compressBlob(content []byte) ([]byte, liberr.Error) {
	var buf bytes.Buffer
	w, err := gz.NewWriterLevel(&buf, gz.BestCompression)
	if err != nil {
		return nil, liberr.GzipDecode.Error(err)
	}
	if _, err := w.Write(content); err != nil {
		return nil, liberr.IOError.Error(err)
	}
	if err := w.Close(); err != nil {
		return nil, liberr.IOError.Error(err)
	}
	return buf.Bytes(), nil
}

// DecompressBlob reverses compressBlob; exported for source/retrieval
// code that reads raw payload bytes back out of the store.
func DecompressBlob(compressed []byte) ([]byte, liberr.Error) {
	r, err := gz.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, liberr.GzipDecode.Error(err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, liberr.IOError.Error(err)
	}
	return out, nil
}
