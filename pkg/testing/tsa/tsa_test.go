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

package tsa_test

import (
	"bytes"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/digitorus/timestamp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tsatest "github.com/researchspace/tsaudit/pkg/testing/tsa"
)

func TestRoundTrip(t *testing.T) {
	authority, err := tsatest.NewVirtualAuthority()
	require.NoError(t, err)

	content := []byte("some research data")
	tsq, err := authority.QueryFor(bytes.NewReader(content))
	require.NoError(t, err)

	tsr, err := authority.Respond(tsq)
	require.NoError(t, err)

	ts, err := timestamp.ParseResponse(tsr)
	require.NoError(t, err)

	req, err := timestamp.ParseRequest(tsq)
	require.NoError(t, err)
	assert.Equal(t, req.HashedMessage, ts.HashedMessage)
	assert.NotEmpty(t, ts.Certificates, "certificate was requested and must be embedded")
}

func TestRootPEM(t *testing.T) {
	authority, err := tsatest.NewVirtualAuthority()
	require.NoError(t, err)

	block, rest := pem.Decode(authority.RootPEM())
	require.NotNil(t, block)
	assert.Empty(t, rest)

	cert, err := x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)
	assert.True(t, cert.IsCA)
}

func TestRejectsGarbageQuery(t *testing.T) {
	authority, err := tsatest.NewVirtualAuthority()
	require.NoError(t, err)

	_, err = authority.Respond([]byte("not a tsq"))
	assert.Error(t, err)
}
