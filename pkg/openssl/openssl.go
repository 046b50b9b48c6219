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

// Package openssl shells out to the openssl binary for the two RFC 3161
// operations this system needs: building a timestamp query over file
// contents and verifying a stored token against them. All structural
// interpretation of TSQ/TSR blobs is delegated to OpenSSL; the only output
// parsing done here is scanning the verify subcommand's report for its
// literal success marker.
package openssl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// successMarker is the line openssl ts -verify prints on success.
const successMarker = "Verification: OK"

// DefaultTimeout bounds every subprocess invocation unless overridden.
const DefaultTimeout = 30 * time.Second

// ExecError reports that an invocation could not run to completion: the
// binary was missing, failed to spawn, or exceeded its deadline. It is
// distinct from OpenSSL running and rejecting the input.
type ExecError struct {
	Args []string
	Err  error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("openssl: exec %v: %v", e.Args, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// Tool invokes a configured openssl binary with a bounded deadline per
// call. The zero value uses "openssl" from PATH and DefaultTimeout.
type Tool struct {
	Binary  string
	Timeout time.Duration
}

func (t *Tool) binary() string {
	if t.Binary == "" {
		return "openssl"
	}
	return t.Binary
}

func (t *Tool) timeout() time.Duration {
	if t.Timeout <= 0 {
		return DefaultTimeout
	}
	return t.Timeout
}

// CreateQuery builds a certificate-requesting SHA-512 timestamp query over
// the file at dataPath and returns the raw TSQ bytes.
func (t *Tool) CreateQuery(ctx context.Context, dataPath string) ([]byte, error) {
	args := queryArgs(dataPath)
	stdout, stderr, err := t.run(ctx, args)
	if err != nil {
		var exit *exec.ExitError
		if errors.As(err, &exit) {
			return nil, fmt.Errorf("openssl ts -query exited %d: %s", exit.ExitCode(), firstLine(stderr))
		}
		return nil, &ExecError{Args: args, Err: err}
	}
	if len(stdout) == 0 {
		return nil, fmt.Errorf("openssl ts -query produced no output: %s", firstLine(stderr))
	}
	return stdout, nil
}

// VerifyToken checks the token at tokenPath against the file at dataPath,
// trusting caPath as the certificate root. It returns true when OpenSSL
// reported success, false when OpenSSL ran and rejected the token, and a
// non-nil error only when the verification could not be carried out at all.
func (t *Tool) VerifyToken(ctx context.Context, dataPath, tokenPath, caPath string) (bool, error) {
	args := verifyArgs(dataPath, tokenPath, caPath)
	stdout, _, err := t.run(ctx, args)
	if err != nil {
		var exit *exec.ExitError
		if errors.As(err, &exit) {
			// OpenSSL ran and rejected the token. Its report goes to
			// stdout even on failure, but the exit code is authoritative.
			return false, nil
		}
		return false, &ExecError{Args: args, Err: err}
	}
	return verified(stdout), nil
}

func (t *Tool) run(ctx context.Context, args []string) (stdout, stderr []byte, err error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout())
	defer cancel()

	cmd := exec.CommandContext(ctx, t.binary(), args...)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err = cmd.Run()
	if ctx.Err() != nil {
		err = ctx.Err()
	}
	return outBuf.Bytes(), errBuf.Bytes(), err
}

func queryArgs(dataPath string) []string {
	return []string{"ts", "-query", "-data", dataPath, "-cert", "-sha512"}
}

func verifyArgs(dataPath, tokenPath, caPath string) []string {
	return []string{"ts", "-verify", "-data", dataPath, "-in", tokenPath, "-CAfile", caPath}
}

// verified scans the verify subcommand's report for the success marker.
func verified(out []byte) bool {
	return bytes.Contains(out, []byte(successMarker))
}

func firstLine(b []byte) string {
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		b = b[:i]
	}
	return string(bytes.TrimSpace(b))
}
