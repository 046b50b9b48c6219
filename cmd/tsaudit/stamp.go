// Copyright 2025 The Tsaudit Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/researchspace/tsaudit/pkg/identity"
	"github.com/researchspace/tsaudit/pkg/pipeline"
)

// fileFlags is the identity tuple shared by stamp and check.
type fileFlags struct {
	user      string
	fileID    string
	projectID string
	provider  string
	path      string
	localFile string
}

func (f *fileFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.user, "user", "", "acting user guid")
	cmd.Flags().StringVar(&f.fileID, "file-id", "", "stable file id (internal provider only)")
	cmd.Flags().StringVar(&f.projectID, "project", "", "owning project id")
	cmd.Flags().StringVar(&f.provider, "provider", identity.InternalProvider, "storage provider name")
	cmd.Flags().StringVar(&f.path, "path", "", "file path within the provider")
	cmd.Flags().StringVar(&f.localFile, "file", "", "local copy of the file contents")
	cmd.MarkFlagRequired("user") //nolint:errcheck
	cmd.MarkFlagRequired("file") //nolint:errcheck
}

func (f *fileFlags) validate() error {
	if f.provider == identity.InternalProvider && f.fileID == "" {
		return errors.New("--file-id is required for the internal provider")
	}
	return nil
}

func (f *fileFlags) identity() identity.FileIdentity {
	if f.provider == identity.InternalProvider {
		return identity.Internal(f.fileID, f.projectID, f.path)
	}
	return identity.External(f.projectID, f.provider, f.path)
}

func printResult(res *pipeline.Result) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func newStampCmd() *cobra.Command {
	var flags fileFlags
	cmd := &cobra.Command{
		Use:   "stamp",
		Short: "Request a timestamp token for a file and verify it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := flags.validate(); err != nil {
				return err
			}
			a, err := buildApp()
			if err != nil {
				return err
			}
			if err := a.cfg.ValidateIssuance(); err != nil {
				return err
			}
			if err := a.cfg.ValidateVerification(); err != nil {
				return err
			}
			res, err := a.issuer.Stamp(cmd.Context(), pipeline.StampRequest{
				User:          flags.user,
				Identity:      flags.identity(),
				LocalFileName: filepath.Base(flags.localFile),
				WorkDir:       filepath.Dir(flags.localFile),
			})
			if err != nil {
				return err
			}
			return printResult(res)
		},
	}
	flags.register(cmd)
	return cmd
}

func init() {
	rootCmd.AddCommand(newStampCmd())
}
