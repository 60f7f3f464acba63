// Copyright 2025 The Sigstore Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cli wires the artifactctl cobra command tree: the key-expiry
// inspector and the save/load harness subcommands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kensho-technologies/signedartifact/pkg/logging"
)

// EnvPrefix is the prefix reserved for artifactctl environment variables.
// No flag reads an environment variable through it.
const EnvPrefix = "ARTIFACTCTL"

// ValidLogLevels lists the recognized --log-level values.
var ValidLogLevels = []string{"debug", "info", "warn", "error", "silent"}

// ValidLogFormats lists the recognized --log-format values.
var ValidLogFormats = []string{"text", "json"}

// RootOptions holds flags shared by every subcommand.
type RootOptions struct {
	OutputFile string
	LogLevel   string
	LogFormat  string
}

// AddFlags registers the persistent root flags on cmd.
func (o *RootOptions) AddFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&o.OutputFile, "output-file", "",
		"redirect command output to a file instead of stdout")
	cmd.PersistentFlags().StringVar(&o.LogLevel, "log-level", "info",
		"minimum log level (debug, info, warn, error, silent)")
	cmd.PersistentFlags().StringVar(&o.LogFormat, "log-format", "text",
		"log output format (text, json)")
}

// NewLogger builds a logger from the resolved root flags.
func (o *RootOptions) NewLogger() logging.Logger {
	return logging.NewLoggerWithOptions(logging.LoggerOptions{
		Level:  logging.ParseLogLevel(o.LogLevel),
		Format: logging.ParseLogFormat(o.LogFormat),
	})
}

var ro = &RootOptions{}

// New builds the artifactctl root command.
func New() *cobra.Command {
	var (
		out, stdout *os.File
	)

	cmd := &cobra.Command{
		Use:               "artifactctl",
		Short:             "Inspect and exchange signed composite artifacts.",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if ro.OutputFile != "" {
				var err error
				out, err = os.Create(ro.OutputFile)
				if err != nil {
					return fmt.Errorf("creating output file %s: %w", ro.OutputFile, err)
				}
				stdout = os.Stdout
				os.Stdout = out
				cmd.SetOut(out)
			}
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if out != nil {
				_ = out.Close()
				os.Stdout = stdout
			}
		},
	}
	ro.AddFlags(cmd)

	cmd.AddCommand(newKeyExpiryCommand())
	cmd.AddCommand(newSaveCommand())
	cmd.AddCommand(newLoadCommand())
	return cmd
}
