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
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nabbar/cratestore/crate"
	libdig "github.com/nabbar/cratestore/digest"
	"github.com/nabbar/cratestore/pipeline"
	"github.com/nabbar/cratestore/store"
)

// indexRecord is one line of the ingest index: the source-of-truth
// iterator spec.md §4.7 assumes, reduced to what a registry mirror's
// own index already records per release. Path is resolved relative to
// the index file's directory when not absolute.
type indexRecord struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Path    string `json:"path"`
}

func newIngestCommand() *cobra.Command {
	var indexPath string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "decompose and store every archive listed in an index file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), indexPath)
		},
	}
	cmd.Flags().StringVar(&indexPath, "index", "", "path to a newline-delimited JSON index of {name,version,path}")
	_ = cmd.MarkFlagRequired("index")
	return cmd
}

func runIngest(ctx context.Context, indexPath string) error {
	records, err := readIndex(indexPath)
	if err != nil {
		return err
	}

	st, closeStore, err := openStore(viper.GetString("store"))
	if err != nil {
		return err
	}
	defer closeStore()

	items := make(chan pipeline.Item, viper.GetInt("queue-size"))
	go func() {
		defer close(items)
		dir := filepath.Dir(indexPath)
		for _, rec := range records {
			path := rec.Path
			if !filepath.IsAbs(path) {
				path = filepath.Join(dir, path)
			}
			archive, rerr := os.ReadFile(path)
			if rerr != nil {
				logrus.WithError(rerr).WithField("path", path).Warn("skipping archive that could not be read")
				continue
			}
			item := pipeline.Item{
				Spec:           crate.Spec{Name: rec.Name, Version: rec.Version},
				Archive:        archive,
				ExpectedDigest: libdig.Sum(archive),
			}
			select {
			case items <- item:
			case <-ctx.Done():
				return
			}
		}
	}()

	p := pipeline.New(st, pipeline.Config{
		Workers:   viper.GetInt("workers"),
		QueueSize: viper.GetInt("queue-size"),
	})
	stats, rerr := p.Run(ctx, items)
	if rerr != nil {
		return rerr
	}

	specs := make([]crate.Spec, 0, len(records))
	for _, rec := range records {
		specs = append(specs, crate.Spec{Name: rec.Name, Version: rec.Version})
	}
	chains, cerr := p.BuildChainsForSpecs(specs)
	if cerr != nil {
		return cerr
	}

	fmt.Printf("ingested: decomposed=%d opaque=%d blobs_stored=%d multi_blobs=%d chains_built=%d\n",
		stats.Decomposed, stats.Opaque, stats.BlobsStored, stats.MultiBlobs, chains)
	return nil
}

func readIndex(path string) ([]indexRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []indexRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec indexRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("parsing index line: %w", err)
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func openStore(path string) (*store.Store, func(), error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, nil, err
	}
	st, serr := store.Open(f)
	if serr != nil {
		_ = f.Close()
		return nil, nil, serr
	}
	return st, func() {
		if cerr := st.Close(); cerr != nil {
			logrus.WithError(cerr).Error("failed to close blob store cleanly")
		}
	}, nil
}
