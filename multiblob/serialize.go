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

package multiblob

import (
	"bytes"
	"encoding/binary"
	"io"

	libdiff "github.com/nabbar/cratestore/diff"
	liberr "github.com/nabbar/cratestore/errors"
)

// Serialize writes m as: 32-byte root digest, length-prefixed root text,
// u64 edge count, then per edge (32-byte from, 32-byte to, serialized
// LineDiff), per spec.md §4.5.
func (m MultiBlob) Serialize(w io.Writer) liberr.Error {
	if _, err := w.Write(m.RootDigest[:]); err != nil {
		return liberr.IOError.Error(err)
	}

	text := []byte(m.RootText)
	if err := binary.Write(w, binary.BigEndian, uint64(len(text))); err != nil {
		return liberr.IOError.Error(err)
	}
	if _, err := w.Write(text); err != nil {
		return liberr.IOError.Error(err)
	}

	if err := binary.Write(w, binary.BigEndian, uint64(len(m.Edges))); err != nil {
		return liberr.IOError.Error(err)
	}
	for _, e := range m.Edges {
		if _, err := w.Write(e.From[:]); err != nil {
			return liberr.IOError.Error(err)
		}
		if _, err := w.Write(e.To[:]); err != nil {
			return liberr.IOError.Error(err)
		}
		if err := e.Diff.Serialize(w); err != nil {
			return err
		}
	}
	return nil
}

// serializeBytes is Serialize into an in-memory buffer, used to compute
// the multi-blob's own content digest.
func (m MultiBlob) serializeBytes() ([]byte, liberr.Error) {
	var buf bytes.Buffer
	if err := m.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Deserialize reads back a MultiBlob written by Serialize.
func Deserialize(r io.Reader) (MultiBlob, liberr.Error) {
	var m MultiBlob

	if _, err := io.ReadFull(r, m.RootDigest[:]); err != nil {
		return MultiBlob{}, liberr.CorruptRecord.Error(err)
	}

	var textLen uint64
	if err := binary.Read(r, binary.BigEndian, &textLen); err != nil {
		return MultiBlob{}, liberr.CorruptRecord.Error(err)
	}
	textBuf := make([]byte, textLen)
	if _, err := io.ReadFull(r, textBuf); err != nil {
		return MultiBlob{}, liberr.CorruptRecord.Error(err)
	}
	m.RootText = string(textBuf)

	var edgeCount uint64
	if err := binary.Read(r, binary.BigEndian, &edgeCount); err != nil {
		return MultiBlob{}, liberr.CorruptRecord.Error(err)
	}

	m.Edges = make([]Edge, 0, edgeCount)
	for i := uint64(0); i < edgeCount; i++ {
		var e Edge
		if _, err := io.ReadFull(r, e.From[:]); err != nil {
			return MultiBlob{}, liberr.CorruptRecord.Error(err)
		}
		if _, err := io.ReadFull(r, e.To[:]); err != nil {
			return MultiBlob{}, liberr.CorruptRecord.Error(err)
		}
		d, derr := libdiff.Deserialize(r)
		if derr != nil {
			return MultiBlob{}, derr
		}
		e.Diff = d
		m.Edges = append(m.Edges, e)
	}

	return m, nil
}
