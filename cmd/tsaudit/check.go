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
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/researchspace/tsaudit/pkg/pipeline"
)

func newCheckCmd() *cobra.Command {
	var flags fileFlags
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify a file's stored timestamp token against its current contents",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := flags.validate(); err != nil {
				return err
			}
			a, err := buildApp()
			if err != nil {
				return err
			}
			if err := a.cfg.ValidateVerification(); err != nil {
				return err
			}
			res, err := a.checker.Check(cmd.Context(), pipeline.CheckRequest{
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
	rootCmd.AddCommand(newCheckCmd())
}
