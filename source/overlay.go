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

package source

import (
	"github.com/nabbar/cratestore/crate"
	liberr "github.com/nabbar/cratestore/errors"
)

// Overlay queries a default Source first and falls back to a secondary
// one only when the default has no entry for the requested spec
// (spec.md §4.8, "Overlay"). A query error from the default is returned
// as-is and never triggers fallback: fallback is for absence, not for
// failure.
type Overlay struct {
	primary  Source
	fallback Source
}

// NewOverlay returns an Overlay that prefers primary over fallback.
func NewOverlay(primary, fallback Source) *Overlay {
	return &Overlay{primary: primary, fallback: fallback}
}

// GetArchive implements Source.
func (s *Overlay) GetArchive(spec crate.Spec) ([]byte, bool, liberr.Error) {
	archive, ok, err := s.primary.GetArchive(spec)
	if err != nil || ok {
		return archive, ok, err
	}
	return s.fallback.GetArchive(spec)
}

// OpenHandle implements Source.
func (s *Overlay) OpenHandle(spec crate.Spec) (Handle, bool, liberr.Error) {
	h, ok, err := s.primary.OpenHandle(spec)
	if err != nil || ok {
		return h, ok, err
	}
	return s.fallback.OpenHandle(spec)
}
