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
	"os"
	"path/filepath"

	"github.com/nabbar/cratestore/crate"
	liberr "github.com/nabbar/cratestore/errors"
)

// FileTree serves archives from a directory sharded by crate.NamePath,
// mirroring the registry mirror's on-disk layout: {base}/{name_path}/{name}-{version}.crate.
type FileTree struct {
	base string
}

// NewFileTree returns a FileTree rooted at base.
func NewFileTree(base string) *FileTree {
	return &FileTree{base: base}
}

func (s *FileTree) path(spec crate.Spec) string {
	return filepath.Join(s.base, crate.NamePath(spec.Name), spec.FileName())
}

// GetArchive implements Source.
func (s *FileTree) GetArchive(spec crate.Spec) ([]byte, bool, liberr.Error) {
	return readFile(s.path(spec))
}

// OpenHandle implements Source.
func (s *FileTree) OpenHandle(spec crate.Spec) (Handle, bool, liberr.Error) {
	return openFileHandle(s.path(spec))
}

// FlatCache serves archives from a single directory keyed by
// crate.Spec.FileName, with no sharding.
type FlatCache struct {
	base string
}

// NewFlatCache returns a FlatCache rooted at base.
func NewFlatCache(base string) *FlatCache {
	return &FlatCache{base: base}
}

func (s *FlatCache) path(spec crate.Spec) string {
	return filepath.Join(s.base, spec.FileName())
}

// GetArchive implements Source.
func (s *FlatCache) GetArchive(spec crate.Spec) ([]byte, bool, liberr.Error) {
	return readFile(s.path(spec))
}

// OpenHandle implements Source.
func (s *FlatCache) OpenHandle(spec crate.Spec) (Handle, bool, liberr.Error) {
	return openFileHandle(s.path(spec))
}

func readFile(path string) ([]byte, bool, liberr.Error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, liberr.IOError.Error(err)
	}
	return b, true, nil
}

func openFileHandle(path string) (Handle, bool, liberr.Error) {
	archive, ok, err := readFile(path)
	if err != nil || !ok {
		return nil, ok, err
	}
	ccb, derr := crate.Decompose(archive)
	if derr != nil {
		return nil, false, derr
	}
	return newEntriesHandle(ccb), true, nil
}
