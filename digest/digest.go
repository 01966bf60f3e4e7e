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

// Package digest provides the 32-byte SHA-256 content key used throughout
// cratestore, plus its lowercase-hex human form.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
)

// Size is the length in bytes of a Digest.
const Size = sha256.Size

// Digest is a 32-byte SHA-256 value, the primary key for every stored blob.
type Digest [Size]byte

// Zero reports whether d is the all-zero digest (never a real content key).
func (d Digest) Zero() bool {
	return d == Digest{}
}

// Hex returns the lowercase, fixed 64-character hex encoding of d.
func (d Digest) Hex() string {
	var buf [Size * 2]byte
	hex.Encode(buf[:], d[:])
	return string(buf[:])
}

// String implements fmt.Stringer.
func (d Digest) String() string {
	return d.Hex()
}

// FromHex parses a lowercase 64-character hex string back into a Digest.
func FromHex(s string) (Digest, error) {
	var d Digest
	if len(s) != Size*2 {
		return d, errShortHex
	}
	n, err := hex.Decode(d[:], []byte(s))
	if err != nil {
		return Digest{}, err
	}
	if n != Size {
		return Digest{}, errShortHex
	}
	return d, nil
}

// Sum computes the Digest of p in one shot.
func Sum(p []byte) Digest {
	return Digest(sha256.Sum256(p))
}

// Ctx is a streaming SHA-256 sink. It implements io.Writer so callers can
// io.Copy arbitrary byte streams into it before finalizing.
type Ctx struct {
	h hash.Hash
}

// NewCtx returns a ready-to-use streaming digest context.
func NewCtx() *Ctx {
	return &Ctx{h: sha256.New()}
}

// Write implements io.Writer, feeding p into the running hash.
func (c *Ctx) Write(p []byte) (int, error) {
	return c.h.Write(p)
}

var _ io.Writer = (*Ctx)(nil)

// Finish finalizes the hash and returns the resulting Digest. The Ctx must
// not be reused after calling Finish.
func (c *Ctx) Finish() Digest {
	var d Digest
	copy(d[:], c.h.Sum(nil))
	return d
}

// Reset clears the running hash so the Ctx can be reused.
func (c *Ctx) Reset() {
	c.h.Reset()
}

// Of computes the Digest of everything read from r.
func Of(r io.Reader) (Digest, error) {
	c := NewCtx()
	if _, err := io.Copy(c, r); err != nil {
		return Digest{}, err
	}
	return c.Finish(), nil
}
