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

// Package errors provides the coded-error type used across cratestore.
//
// It layers a numeric CodeError classification and parent-error chaining
// on top of Go's standard error interface, while staying compatible with
// errors.Is/errors.As.
package errors

import (
	"fmt"
	"strings"
)

// Error is a coded error that may wrap one or more parent errors.
type Error interface {
	error
	Code() CodeError
	IsCode(c CodeError) bool
	Unwrap() error
	Add(parents ...error)
}

type ers struct {
	code    CodeError
	message string
	parents []error
}

func newErr(c CodeError, msg string, parents ...error) Error {
	e := &ers{code: c, message: msg}
	e.Add(parents...)
	return e
}

func newErrf(c CodeError, format string, args ...interface{}) Error {
	return &ers{code: c, message: fmt.Sprintf(format, args...)}
}

// New builds a bare coded error with no registered message lookup.
func New(c CodeError, msg string, parents ...error) Error {
	return newErr(c, msg, parents...)
}

func (e *ers) Error() string {
	if len(e.parents) == 0 {
		return e.message
	}
	parts := make([]string, 0, len(e.parents)+1)
	parts = append(parts, e.message)
	for _, p := range e.parents {
		if p != nil {
			parts = append(parts, p.Error())
		}
	}
	return strings.Join(parts, ": ")
}

func (e *ers) Code() CodeError {
	return e.code
}

func (e *ers) IsCode(c CodeError) bool {
	return e.code == c
}

// Unwrap exposes the first parent for errors.Is/errors.As chains.
func (e *ers) Unwrap() error {
	if len(e.parents) == 0 {
		return nil
	}
	return e.parents[0]
}

func (e *ers) Add(parents ...error) {
	for _, p := range parents {
		if p != nil {
			e.parents = append(e.parents, p)
		}
	}
}
