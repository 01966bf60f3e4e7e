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

// Command cratestore runs the archive store's ingest/verify/stats
// operations. Argument parsing and config loading are thin glue over
// the engine packages (crate, store, pipeline, source); none of the
// byte-exact reconstruction or concurrency logic lives here.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		logrus.WithError(err).Error("cratestore exited with an error")
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "cratestore",
		Short: "content-addressed, deduplicating archive store for a package-registry mirror",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cfgFile)
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./cratestore.yaml)")
	root.PersistentFlags().String("store", "cratestore.blob", "path to the blob store file")
	root.PersistentFlags().Int("workers", 4, "number of parallel-task worker goroutines")
	root.PersistentFlags().Int("queue-size", 64, "bound on the parallel/blocking task channels")
	_ = viper.BindPFlag("store", root.PersistentFlags().Lookup("store"))
	_ = viper.BindPFlag("workers", root.PersistentFlags().Lookup("workers"))
	_ = viper.BindPFlag("queue-size", root.PersistentFlags().Lookup("queue-size"))

	root.AddCommand(newIngestCommand())
	root.AddCommand(newVerifyCommand())
	root.AddCommand(newStatsCommand())
	return root
}

func initConfig(cfgFile string) error {
	viper.SetEnvPrefix("CRATESTORE")
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("cratestore")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return err
		}
		logrus.Debug("no cratestore config file found, using flags and defaults")
	}
	return nil
}
