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

package store

import (
	"encoding/binary"
	"io"

	libdig "github.com/nabbar/cratestore/digest"
	liberr "github.com/nabbar/cratestore/errors"
)

// Each table is prefixed by a u64 count, per spec.md §4.2.

func writeOffsetTable(w io.Writer, m map[libdig.Digest]int64) liberr.Error {
	if err := writeCount(w, len(m)); err != nil {
		return err
	}
	for d, off := range m {
		if _, err := w.Write(d[:]); err != nil {
			return liberr.IOError.Error(err)
		}
		if err := binary.Write(w, binary.BigEndian, uint64(off)); err != nil {
			return liberr.IOError.Error(err)
		}
	}
	return nil
}

func readOffsetTable(r io.Reader) (map[libdig.Digest]int64, liberr.Error) {
	count, err := readCount(r)
	if err != nil {
		return nil, err
	}
	m := make(map[libdig.Digest]int64, count)
	for i := uint64(0); i < count; i++ {
		var d libdig.Digest
		if _, rerr := io.ReadFull(r, d[:]); rerr != nil {
			return nil, liberr.CorruptIndex.Error(rerr)
		}
		var off uint64
		if rerr := binary.Read(r, binary.BigEndian, &off); rerr != nil {
			return nil, liberr.CorruptIndex.Error(rerr)
		}
		m[d] = int64(off)
	}
	return m, nil
}

func writeNameTable(w io.Writer, m map[string]libdig.Digest) liberr.Error {
	if err := writeCount(w, len(m)); err != nil {
		return err
	}
	for name, d := range m {
		nb := []byte(name)
		if err := binary.Write(w, binary.BigEndian, uint64(len(nb))); err != nil {
			return liberr.IOError.Error(err)
		}
		if _, err := w.Write(nb); err != nil {
			return liberr.IOError.Error(err)
		}
		if _, err := w.Write(d[:]); err != nil {
			return liberr.IOError.Error(err)
		}
	}
	return nil
}

func readNameTable(r io.Reader) (map[string]libdig.Digest, liberr.Error) {
	count, err := readCount(r)
	if err != nil {
		return nil, err
	}
	m := make(map[string]libdig.Digest, count)
	for i := uint64(0); i < count; i++ {
		var nameLen uint64
		if rerr := binary.Read(r, binary.BigEndian, &nameLen); rerr != nil {
			return nil, liberr.CorruptIndex.Error(rerr)
		}
		nb := make([]byte, nameLen)
		if _, rerr := io.ReadFull(r, nb); rerr != nil {
			return nil, liberr.CorruptIndex.Error(rerr)
		}
		var d libdig.Digest
		if _, rerr := io.ReadFull(r, d[:]); rerr != nil {
			return nil, liberr.CorruptIndex.Error(rerr)
		}
		m[string(nb)] = d
	}
	return m, nil
}

func writeDigestTable(w io.Writer, m map[libdig.Digest]libdig.Digest) liberr.Error {
	if err := writeCount(w, len(m)); err != nil {
		return err
	}
	for leaf, multi := range m {
		if _, err := w.Write(leaf[:]); err != nil {
			return liberr.IOError.Error(err)
		}
		if _, err := w.Write(multi[:]); err != nil {
			return liberr.IOError.Error(err)
		}
	}
	return nil
}

func readDigestTable(r io.Reader) (map[libdig.Digest]libdig.Digest, liberr.Error) {
	count, err := readCount(r)
	if err != nil {
		return nil, err
	}
	m := make(map[libdig.Digest]libdig.Digest, count)
	for i := uint64(0); i < count; i++ {
		var leaf, multi libdig.Digest
		if _, rerr := io.ReadFull(r, leaf[:]); rerr != nil {
			return nil, liberr.CorruptIndex.Error(rerr)
		}
		if _, rerr := io.ReadFull(r, multi[:]); rerr != nil {
			return nil, liberr.CorruptIndex.Error(rerr)
		}
		m[leaf] = multi
	}
	return m, nil
}

func writeCount(w io.Writer, n int) liberr.Error {
	if err := binary.Write(w, binary.BigEndian, uint64(n)); err != nil {
		return liberr.IOError.Error(err)
	}
	return nil
}

func readCount(r io.Reader) (uint64, liberr.Error) {
	var n uint64
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return 0, liberr.CorruptIndex.Error(err)
	}
	return n, nil
}
