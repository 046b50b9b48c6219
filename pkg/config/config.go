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

// Package config loads runtime settings from a YAML file and TSAUDIT_*
// environment variables via viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is everything the pipeline and its wrappers need at runtime.
type Config struct {
	// TSAURL is the timestamp authority endpoint.
	TSAURL string `mapstructure:"tsa_url"`
	// TSAMaxAttempts is the total number of tries per token request.
	TSAMaxAttempts int `mapstructure:"tsa_max_attempts"`
	// TSABackoffFactor scales the exponential retry sleep, in seconds.
	TSABackoffFactor float64 `mapstructure:"tsa_backoff_factor"`
	// TSATimeout bounds each individual authority request.
	TSATimeout time.Duration `mapstructure:"tsa_timeout"`

	// RootCAFile is the certificate bundle trusted when verifying tokens.
	RootCAFile string `mapstructure:"root_ca_file"`

	// OpenSSLBinary is the openssl executable; resolved from PATH when
	// not absolute.
	OpenSSLBinary string `mapstructure:"openssl_binary"`
	// OpenSSLTimeout bounds every subprocess invocation.
	OpenSSLTimeout time.Duration `mapstructure:"openssl_timeout"`

	// DatabasePath is the SQLite file holding records and directory data.
	DatabasePath string `mapstructure:"database_path"`

	// ListenAddr is the serve-mode bind address.
	ListenAddr string `mapstructure:"listen_addr"`

	// LogLevel is a logrus level name; LogJSON switches to the JSON
	// formatter.
	LogLevel string `mapstructure:"log_level"`
	LogJSON  bool   `mapstructure:"log_json"`
}

// Every mapstructure key needs a default entry, even a zero one, or
// viper's Unmarshal never sees a value supplied only through the
// environment.
func setDefaults(v *viper.Viper) {
	v.SetDefault("tsa_url", "")
	v.SetDefault("tsa_max_attempts", 3)
	v.SetDefault("tsa_backoff_factor", 1.0)
	v.SetDefault("tsa_timeout", 30*time.Second)
	v.SetDefault("root_ca_file", "")
	v.SetDefault("openssl_binary", "openssl")
	v.SetDefault("openssl_timeout", 30*time.Second)
	v.SetDefault("database_path", "tsaudit.db")
	v.SetDefault("listen_addr", ":8085")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
}

// Load reads cfgFile (optional) plus the environment and validates the
// result.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TSAUDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields every mode needs.
func (c *Config) Validate() error {
	if c.TSAMaxAttempts < 1 {
		return fmt.Errorf("tsa_max_attempts must be at least 1, got %d", c.TSAMaxAttempts)
	}
	if c.TSABackoffFactor <= 0 {
		return fmt.Errorf("tsa_backoff_factor must be positive, got %v", c.TSABackoffFactor)
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path is required")
	}
	return nil
}

// ValidateIssuance checks the additional fields needed to request tokens
// from the authority.
func (c *Config) ValidateIssuance() error {
	if c.TSAURL == "" {
		return fmt.Errorf("tsa_url is required to request timestamp tokens")
	}
	return nil
}

// ValidateVerification checks the additional fields needed to verify
// stored tokens.
func (c *Config) ValidateVerification() error {
	if c.RootCAFile == "" {
		return fmt.Errorf("root_ca_file is required to verify timestamp tokens")
	}
	return nil
}
