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

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nabbar/cratestore/crate"
	libdig "github.com/nabbar/cratestore/digest"
	"github.com/nabbar/cratestore/source"
)

func newVerifyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <name> <version>",
		Short: "reconstruct one archive and print its recomputed digest",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(args[0], args[1])
		},
	}
	return cmd
}

func runVerify(name, version string) error {
	st, closeStore, err := openStore(viper.GetString("store"))
	if err != nil {
		return err
	}
	defer closeStore()

	src := source.NewBlobStore(st)
	spec := crate.Spec{Name: name, Version: version}

	archive, ok, rerr := src.GetArchive(spec)
	if rerr != nil {
		return rerr
	}
	if !ok {
		return fmt.Errorf("no stored archive for %s", spec.FileName())
	}

	fmt.Printf("%s: reconstructed %d bytes, digest=%s\n", spec.FileName(), len(archive), libdig.Sum(archive).Hex())
	return nil
}
