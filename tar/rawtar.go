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

// Package tar reads and writes tar entries in "raw" mode: the 512-byte
// header block is treated as an opaque, verbatim value rather than being
// parsed into a structured Header, and GNU long-name/long-link pseudo
// entries (e.g. "././@LongLink") are passed through untouched instead of
// being merged into the following entry's name.
//
// The standard library's archive/tar always parses headers and folds GNU
// long names into Header.Name; nabbar-golib's archive/tar package goes
// further and extracts entries straight to the filesystem. Neither keeps
// the raw header bytes around, and byte-exact recomposition (spec.md
// §4.1, §9 "Preserving tar/gzip bytes") depends on exactly that. This
// package implements the minimal subset of the POSIX/GNU tar header
// layout needed to find entry boundaries without reinterpreting them,
// matching the "raw(true)" iteration mode of the original Rust
// implementation's tar crate (see SPEC_FULL.md §5).
package tar

import (
	"bytes"
	"io"

	liberr "github.com/nabbar/cratestore/errors"
)

// BlockSize is the fixed size of a tar header block.
const BlockSize = 512

// Header is an opaque, verbatim 512-byte tar header block.
type Header [BlockSize]byte

// Entry is one raw tar entry: its header block exactly as it appeared in
// the source stream, and its content bytes (without block padding).
type Entry struct {
	Header  Header
	Content []byte
}

// ReadEntries reads raw tar entries from r until the first all-zero
// header block (the start of the end-of-archive marker) or EOF. The
// second terminator block is not read or checked.
func ReadEntries(r io.Reader) ([]Entry, liberr.Error) {
	var entries []Entry

	for {
		var hdr Header
		n, err := io.ReadFull(r, hdr[:])
		if err == io.EOF {
			break
		}
		if err == io.ErrUnexpectedEOF {
			if n == 0 {
				break
			}
			return nil, liberr.TarDecode.Errorf("truncated tar header block (%d of %d bytes)", n, BlockSize)
		}
		if err != nil {
			return nil, liberr.IOError.Error(err)
		}

		if isZeroBlock(hdr[:]) {
			// End-of-archive marker; there should be one more zero
			// block, but we don't require it to be present to accept
			// the stream as terminated.
			break
		}

		size, perr := parseSize(hdr)
		if perr != nil {
			return nil, liberr.TarDecode.Error(perr)
		}

		content := make([]byte, size)
		if size > 0 {
			if _, err := io.ReadFull(r, content); err != nil {
				return nil, liberr.TarDecode.Errorf("truncated tar entry content: %v", err)
			}
		}

		if padding := paddingFor(size); padding > 0 {
			if _, err := io.CopyN(io.Discard, r, padding); err != nil {
				return nil, liberr.TarDecode.Errorf("truncated tar entry padding: %v", err)
			}
		}

		entries = append(entries, Entry{Header: hdr, Content: content})
	}

	return entries, nil
}

// WriteEntries writes raw tar entries verbatim (header block, content,
// then zero-padding to the next 512-byte boundary) followed by the
// two-block end-of-archive terminator.
func WriteEntries(w io.Writer, entries []Entry) liberr.Error {
	for _, e := range entries {
		if _, err := w.Write(e.Header[:]); err != nil {
			return liberr.IOError.Error(err)
		}
		if len(e.Content) > 0 {
			if _, err := w.Write(e.Content); err != nil {
				return liberr.IOError.Error(err)
			}
		}
		if padding := paddingFor(int64(len(e.Content))); padding > 0 {
			if _, err := w.Write(make([]byte, padding)); err != nil {
				return liberr.IOError.Error(err)
			}
		}
	}

	// End-of-archive: two all-zero blocks, matching the tar crate's
	// Builder::finish behavior (no further record-size rounding).
	if _, err := w.Write(make([]byte, BlockSize*2)); err != nil {
		return liberr.IOError.Error(err)
	}
	return nil
}

func paddingFor(size int64) int64 {
	rem := size % BlockSize
	if rem == 0 {
		return 0
	}
	return BlockSize - rem
}

func isZeroBlock(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

// parseSize extracts the entry's content length from the 124..136 size
// field: either a NUL/space-terminated octal ASCII string (POSIX/ustar),
// or a GNU base-256 binary extension when the field's top bit is set.
func parseSize(hdr Header) (int64, error) {
	field := hdr[124:136]

	if field[0]&0x80 != 0 {
		return parseBase256(field), nil
	}

	trimmed := bytes.TrimRight(field, " \x00")
	if len(trimmed) == 0 {
		return 0, nil
	}

	var size int64
	for _, c := range trimmed {
		if c < '0' || c > '7' {
			return 0, errBadOctal
		}
		size = size*8 + int64(c-'0')
	}
	return size, nil
}

func parseBase256(field []byte) int64 {
	var v int64
	// Clear the marker bit in the first byte before accumulating.
	first := field[0] & 0x7f
	v = int64(first)
	for _, b := range field[1:] {
		v = v<<8 | int64(b)
	}
	return v
}
