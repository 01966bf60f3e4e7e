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

// Package crate implements the archive decomposition/recomposition
// pipeline (spec.md C3) and its reconstruction manifest (C4): splitting
// a gzipped tar package archive into per-entry content blobs plus an
// ordered header list, and rebuilding the original archive bit-for-bit.
package crate

import "fmt"

// Spec identifies one archive by package name and version.
type Spec struct {
	Name    string
	Version string
}

// FileName returns the canonical on-disk/name-index key for this Spec,
// e.g. "serde-1.0.188.crate".
func (s Spec) FileName() string {
	return fmt.Sprintf("%s-%s.crate", s.Name, s.Version)
}

// NamePath returns the directory-sharding path used by the registry's
// FileTree source layout: "1/{name}", "2/{name}", "3/{first}/{name}",
// or "{first2}/{next2}/{name}" for names of 4+ characters. This is a
// compatibility contract with existing on-disk mirrors (spec.md §6).
func NamePath(name string) string {
	switch len(name) {
	case 0:
		return name
	case 1:
		return "1/" + name
	case 2:
		return "2/" + name
	case 3:
		return "3/" + name[:1] + "/" + name
	default:
		return name[:2] + "/" + name[2:4] + "/" + name
	}
}
