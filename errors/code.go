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

package errors

import "strconv"

// CodeError is a numeric classification for an error, similar in spirit
// to an HTTP status code. Zero means "unclassified".
type CodeError uint16

const (
	UnknownError CodeError = 0

	// Corruption: fail fast on open, no recovery attempted.
	BadMagic      CodeError = 100
	CorruptIndex  CodeError = 101
	CorruptRecord CodeError = 102

	// I/O: propagated unchanged from the underlying call.
	IOError CodeError = 200

	// Archive decompose errors: downgrade to opaque storage, not fatal.
	GzipDecode CodeError = 300
	TarDecode  CodeError = 301

	// Digest mismatch after reconstruction: downgrade to opaque storage.
	DigestMismatch CodeError = 400

	// Invariant violations: bugs, not input issues. Callers should treat
	// these as programmer errors.
	Invariant CodeError = 500
)

var messages = map[CodeError]string{
	UnknownError:  "unknown error",
	BadMagic:      "blob store header magic mismatch",
	CorruptIndex:  "blob store index is truncated or malformed",
	CorruptRecord: "serialized record is truncated or malformed",
	IOError:       "i/o operation failed",
	GzipDecode:    "gzip stream could not be decoded",
	TarDecode:     "tar stream could not be decoded",
	DigestMismatch: "reconstructed archive digest does not match expected digest",
	Invariant:     "internal invariant violated",
}

// Message returns the registered human-readable message for the code,
// or UnknownError's message if none is registered.
func (c CodeError) Message() string {
	if m, ok := messages[c]; ok {
		return m
	}
	return messages[UnknownError]
}

// String implements fmt.Stringer.
func (c CodeError) String() string {
	return strconv.Itoa(int(c))
}

// Error constructs a new Error value carrying this code, wrapping the
// given parent errors (if any).
func (c CodeError) Error(parents ...error) Error {
	return newErr(c, c.Message(), parents...)
}

// Errorf is like Error but formats the message with args.
func (c CodeError) Errorf(format string, args ...interface{}) Error {
	return newErrf(c, format, args...)
}
