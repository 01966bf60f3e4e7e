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

package diff

import (
	"encoding/binary"
	"io"

	liberr "github.com/nabbar/cratestore/errors"
)

// Serialize writes d as: u64 instruction count, then per instruction a
// u8 tag (1=Same, 2=Insert, 3=Delete) followed by a u64 length (Same,
// Delete) or length-prefixed UTF-8 bytes (Insert).
func (d LineDiff) Serialize(w io.Writer) liberr.Error {
	if err := binary.Write(w, binary.BigEndian, uint64(len(d.Instructions))); err != nil {
		return liberr.IOError.Error(err)
	}
	for _, ins := range d.Instructions {
		if _, err := w.Write([]byte{byte(ins.Kind)}); err != nil {
			return liberr.IOError.Error(err)
		}
		switch ins.Kind {
		case Insert:
			text := []byte(ins.Text)
			if err := binary.Write(w, binary.BigEndian, uint64(len(text))); err != nil {
				return liberr.IOError.Error(err)
			}
			if _, err := w.Write(text); err != nil {
				return liberr.IOError.Error(err)
			}
		default:
			if err := binary.Write(w, binary.BigEndian, ins.Length); err != nil {
				return liberr.IOError.Error(err)
			}
		}
	}
	return nil
}

// Deserialize reads back a LineDiff written by Serialize.
func Deserialize(r io.Reader) (LineDiff, liberr.Error) {
	var count uint64
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return LineDiff{}, liberr.CorruptRecord.Error(err)
	}

	d := LineDiff{Instructions: make([]Instruction, 0, count)}
	for i := uint64(0); i < count; i++ {
		var tag [1]byte
		if _, err := io.ReadFull(r, tag[:]); err != nil {
			return LineDiff{}, liberr.CorruptRecord.Error(err)
		}

		kind := Kind(tag[0])
		switch kind {
		case Same, Delete:
			var length uint64
			if err := binary.Read(r, binary.BigEndian, &length); err != nil {
				return LineDiff{}, liberr.CorruptRecord.Error(err)
			}
			d.Instructions = append(d.Instructions, Instruction{Kind: kind, Length: length})
		case Insert:
			var textLen uint64
			if err := binary.Read(r, binary.BigEndian, &textLen); err != nil {
				return LineDiff{}, liberr.CorruptRecord.Error(err)
			}
			buf := make([]byte, textLen)
			if _, err := io.ReadFull(r, buf); err != nil {
				return LineDiff{}, liberr.CorruptRecord.Error(err)
			}
			d.Instructions = append(d.Instructions, Instruction{Kind: Insert, Text: string(buf)})
		default:
			return LineDiff{}, liberr.CorruptRecord.Errorf("unknown diff instruction tag %d", tag[0])
		}
	}
	return d, nil
}
