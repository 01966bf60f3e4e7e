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

// Package diff implements a line-granularity diff/patch codec used to
// express one text as an edit script against another (spec.md §4.4),
// the building block for the multi-blob delta chains in package
// multiblob.
package diff

import "strings"

// Kind tags one Instruction.
type Kind uint8

const (
	Same   Kind = 1
	Insert Kind = 2
	Delete Kind = 3
)

// Instruction is one step of a LineDiff: Same/Delete carry a byte length
// to advance through the old text; Insert carries literal text to emit.
type Instruction struct {
	Kind   Kind
	Length uint64
	Text   string
}

// LineDiff is an ordered edit script transforming an old text into a new
// one at line granularity.
type LineDiff struct {
	Instructions []Instruction
}

// splitKeepSep splits s on every occurrence of sep, leaving sep attached
// to the end of every resulting piece except possibly the last (which
// lacks it only if s does not end in sep). Concatenating the pieces
// always reproduces s exactly.
func splitKeepSep(s, sep string) []string {
	if s == "" {
		return nil
	}
	var parts []string
	for {
		idx := strings.Index(s, sep)
		if idx < 0 {
			parts = append(parts, s)
			return parts
		}
		parts = append(parts, s[:idx+len(sep)])
		s = s[idx+len(sep):]
	}
}

// Diff computes a LineDiff transforming old into new, splitting both on
// sep. Each instruction's Same/Delete length, and each Insert's text,
// includes the trailing separator exactly when the source line actually
// carried one — this removes the need for a special case on the final
// instruction, since only a text's true last line can lack one.
func Diff(old, new string, sep string) LineDiff {
	oldLines := splitKeepSep(old, sep)
	newLines := splitKeepSep(new, sep)

	ops := lcsOps(oldLines, newLines)

	var d LineDiff
	for _, op := range ops {
		appendOp(&d, op)
	}
	return d
}

type opKind uint8

const (
	opSame opKind = iota
	opDelete
	opInsert
)

type op struct {
	kind opKind
	line string
}

// lcsOps runs the classic dynamic-programming longest-common-subsequence
// alignment over two line slices and returns the resulting same/delete/
// insert script in emission order.
func lcsOps(a, b []string) []op {
	n, m := len(a), len(b)
	dp := make([][]int32, n+1)
	for i := range dp {
		dp[i] = make([]int32, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if a[i] == b[j] {
				dp[i][j] = dp[i+1][j+1] + 1
			} else if dp[i+1][j] >= dp[i][j+1] {
				dp[i][j] = dp[i+1][j]
			} else {
				dp[i][j] = dp[i][j+1]
			}
		}
	}

	ops := make([]op, 0, n+m)
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case a[i] == b[j]:
			ops = append(ops, op{kind: opSame, line: a[i]})
			i++
			j++
		case dp[i+1][j] >= dp[i][j+1]:
			ops = append(ops, op{kind: opDelete, line: a[i]})
			i++
		default:
			ops = append(ops, op{kind: opInsert, line: b[j]})
			j++
		}
	}
	for ; i < n; i++ {
		ops = append(ops, op{kind: opDelete, line: a[i]})
	}
	for ; j < m; j++ {
		ops = append(ops, op{kind: opInsert, line: b[j]})
	}
	return ops
}

// appendOp merges op into d's last instruction when kinds match, else
// starts a new one.
func appendOp(d *LineDiff, o op) {
	var kind Kind
	switch o.kind {
	case opSame:
		kind = Same
	case opDelete:
		kind = Delete
	case opInsert:
		kind = Insert
	}

	if n := len(d.Instructions); n > 0 && d.Instructions[n-1].Kind == kind {
		last := &d.Instructions[n-1]
		if kind == Insert {
			last.Text += o.line
		} else {
			last.Length += uint64(len(o.line))
		}
		return
	}

	switch kind {
	case Insert:
		d.Instructions = append(d.Instructions, Instruction{Kind: Insert, Text: o.line})
	default:
		d.Instructions = append(d.Instructions, Instruction{Kind: kind, Length: uint64(len(o.line))})
	}
}

// Reconstruct rebuilds the new text from old by replaying d: Same/Delete
// advance through old by Length bytes (Same also copies them to the
// output), Insert emits its literal Text.
func Reconstruct(old string, d LineDiff) string {
	var b strings.Builder
	pos := 0
	for _, ins := range d.Instructions {
		switch ins.Kind {
		case Same:
			b.WriteString(old[pos : pos+int(ins.Length)])
			pos += int(ins.Length)
		case Delete:
			pos += int(ins.Length)
		case Insert:
			b.WriteString(ins.Text)
		}
	}
	return b.String()
}
