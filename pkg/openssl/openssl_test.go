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

package openssl

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryArgs(t *testing.T) {
	assert.Equal(t,
		[]string{"ts", "-query", "-data", "/work/f.txt", "-cert", "-sha512"},
		queryArgs("/work/f.txt"))
}

func TestVerifyArgs(t *testing.T) {
	assert.Equal(t,
		[]string{"ts", "-verify", "-data", "/work/f.txt", "-in", "/work/u.tsr", "-CAfile", "/etc/root.pem"},
		verifyArgs("/work/f.txt", "/work/u.tsr", "/etc/root.pem"))
}

func TestVerified(t *testing.T) {
	assert.True(t, verified([]byte("Using configuration from ...\nVerification: OK\n")))
	assert.False(t, verified([]byte("Verification: FAILED\n")))
	assert.False(t, verified(nil))
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "error line", firstLine([]byte("error line\nsecond line\n")))
	assert.Equal(t, "bare", firstLine([]byte("bare")))
	assert.Equal(t, "", firstLine(nil))
}

func TestDefaults(t *testing.T) {
	var tool Tool
	assert.Equal(t, "openssl", tool.binary())
	assert.Equal(t, DefaultTimeout, tool.timeout())

	tool = Tool{Binary: "/opt/openssl/bin/openssl", Timeout: time.Second}
	assert.Equal(t, "/opt/openssl/bin/openssl", tool.binary())
	assert.Equal(t, time.Second, tool.timeout())
}

func TestMissingBinaryIsExecError(t *testing.T) {
	tool := &Tool{Binary: "/nonexistent/openssl"}

	_, err := tool.CreateQuery(context.Background(), "/tmp/f.txt")
	var execErr *ExecError
	require.ErrorAs(t, err, &execErr)

	// A spawn failure in the verify branch must not read as a mismatch.
	ok, err := tool.VerifyToken(context.Background(), "/tmp/f.txt", "/tmp/f.tsr", "/tmp/root.pem")
	assert.False(t, ok)
	require.ErrorAs(t, err, &execErr)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tool := &Tool{}
	_, err := tool.CreateQuery(ctx, "/tmp/f.txt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
