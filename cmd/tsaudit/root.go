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
	"fmt"
	"os"

	"github.com/moby/locker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/researchspace/tsaudit/pkg/config"
	"github.com/researchspace/tsaudit/pkg/keyreg"
	"github.com/researchspace/tsaudit/pkg/openssl"
	"github.com/researchspace/tsaudit/pkg/pipeline"
	"github.com/researchspace/tsaudit/pkg/platform"
	"github.com/researchspace/tsaudit/pkg/store"
	"github.com/researchspace/tsaudit/pkg/tsa"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "tsaudit",
	Short: "RFC 3161 timestamp issuance and verification for research files",
	Long: `tsaudit stamps files with RFC 3161 timestamp tokens from a configured
Time Stamping Authority and re-verifies stored tokens against current file
contents, tracking the verification status of every file it has seen.`,
	SilenceUsage: true,
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); TSAUDIT_* env vars override")
}

// app is the fully wired pipeline plus everything the commands need.
type app struct {
	cfg     *config.Config
	log     *logrus.Logger
	store   *store.Store
	issuer  *pipeline.Issuer
	checker *pipeline.Checker
}

func buildApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	log := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}
	log.SetLevel(level)
	if cfg.LogJSON {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	keys, err := keyreg.NewGormRegistry(st.DB())
	if err != nil {
		return nil, err
	}
	dir, err := platform.NewDirectory(st.DB())
	if err != nil {
		return nil, err
	}

	tool := &openssl.Tool{Binary: cfg.OpenSSLBinary, Timeout: cfg.OpenSSLTimeout}
	source := tsa.New(tsa.Options{
		URL:           cfg.TSAURL,
		MaxAttempts:   cfg.TSAMaxAttempts,
		BackoffFactor: cfg.TSABackoffFactor,
		Timeout:       cfg.TSATimeout,
		UserAgent:     "tsaudit",
	})

	locks := locker.New()
	metrics := pipeline.NewMetrics(prometheus.DefaultRegisterer)

	checker := pipeline.NewChecker(pipeline.CheckerConfig{
		Store:      st,
		Files:      dir,
		Projects:   dir,
		Verifier:   tool,
		RootCAFile: cfg.RootCAFile,
		Log:        log,
		Locks:      locks,
		Metrics:    metrics,
	})
	issuer := pipeline.NewIssuer(pipeline.IssuerConfig{
		Store:   st,
		Keys:    keys,
		Guids:   dir,
		Querier: tool,
		Source:  source,
		Checker: checker,
		Log:     log,
		Locks:   locks,
		Metrics: metrics,
	})

	return &app{cfg: cfg, log: log, store: st, issuer: issuer, checker: checker}, nil
}
