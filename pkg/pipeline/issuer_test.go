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

package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/researchspace/tsaudit/pkg/identity"
	"github.com/researchspace/tsaudit/pkg/keyreg"
	"github.com/researchspace/tsaudit/pkg/pipeline"
	"github.com/researchspace/tsaudit/pkg/store"
)

type fakeGuids map[string]int64

func (g fakeGuids) InternalID(_ context.Context, guid string) (int64, error) {
	id, ok := g[guid]
	if !ok {
		return 0, fmt.Errorf("unknown guid %q", guid)
	}
	return id, nil
}

type fakeKeys struct {
	name string
	err  error
}

func (k fakeKeys) KeyFileName(context.Context, int64, keyreg.Kind) (string, error) {
	return k.name, k.err
}

type fakeQuerier struct {
	tsq []byte
	err error
}

func (q fakeQuerier) CreateQuery(context.Context, string) ([]byte, error) {
	return q.tsq, q.err
}

type fakeSource struct {
	token []byte
	err   error
	calls int
}

func (s *fakeSource) RequestToken(context.Context, []byte) ([]byte, error) {
	s.calls++
	return s.token, s.err
}

type issuerEnv struct {
	*checkerEnv
	source *fakeSource
	keys   fakeKeys
	issuer *pipeline.Issuer
}

func newIssuerEnv(t *testing.T) *issuerEnv {
	t.Helper()
	env := &issuerEnv{
		checkerEnv: newCheckerEnv(t),
		source:     &fakeSource{token: []byte("tsr-bytes")},
		keys:       fakeKeys{name: "42_pub.pem"},
	}
	env.issuer = pipeline.NewIssuer(pipeline.IssuerConfig{
		Store:   env.store,
		Keys:    env.keys,
		Guids:   fakeGuids{"usr1": 42},
		Querier: fakeQuerier{tsq: []byte("tsq-bytes")},
		Source:  env.source,
		Checker: env.checker,
		Log:     discardLogger(),
	})
	return env
}

func stampReq(id identity.FileIdentity, workDir string) pipeline.StampRequest {
	return pipeline.StampRequest{
		User:          "usr1",
		Identity:      id,
		LocalFileName: "f.txt",
		WorkDir:       workDir,
	}
}

func TestStampFirstSeenFile(t *testing.T) {
	env := newIssuerEnv(t)
	id := identity.Internal("abc123", "proj1", "/f.txt")
	env.addFile(id, false)
	env.verifier.ok = true

	res, err := env.issuer.Stamp(context.Background(), stampReq(id, env.workDir))
	require.NoError(t, err)
	assert.Equal(t, 1, res.VerifyResult)
	assert.Equal(t, "OK", res.VerifyResultTitle)

	rec, err := env.store.FindByIdentity(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, []byte("tsr-bytes"), rec.TimestampToken)
	assert.Equal(t, "42_pub.pem", rec.KeyFileName)
	assert.Equal(t, 1, env.source.calls)
}

func TestStampReplacesExistingToken(t *testing.T) {
	env := newIssuerEnv(t)
	id := identity.Internal("abc123", "proj1", "/f.txt")
	env.addFile(id, false)
	env.verifier.ok = true
	ctx := context.Background()

	_, err := env.issuer.Stamp(ctx, stampReq(id, env.workDir))
	require.NoError(t, err)
	env.source.token = []byte("fresh-tsr")
	_, err = env.issuer.Stamp(ctx, stampReq(id, env.workDir))
	require.NoError(t, err)

	// Uniqueness invariant: still exactly one record for the file.
	var count int64
	require.NoError(t, env.store.DB().Model(&store.VerificationRecord{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	rec, err := env.store.FindByIdentity(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte("fresh-tsr"), rec.TimestampToken)
	require.NotNil(t, rec.UpdateUser)
	assert.Equal(t, "usr1", *rec.UpdateUser)
}

func TestStampAuthorityDownDegradesToRetryState(t *testing.T) {
	env := newIssuerEnv(t)
	id := identity.External("proj1", "s3", "/f.txt")
	env.source.token = nil
	env.source.err = errors.New("connection refused")

	res, err := env.issuer.Stamp(context.Background(), stampReq(id, env.workDir))
	require.NoError(t, err)
	assert.Equal(t, 4, res.VerifyResult)
	assert.Equal(t, "TST missing(Retrieving Failed)", res.VerifyResultTitle)

	rec, err := env.store.FindByIdentity(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.False(t, rec.HasToken())
}

func TestStampUnknownUserAborts(t *testing.T) {
	env := newIssuerEnv(t)
	id := identity.External("proj1", "s3", "/f.txt")

	req := stampReq(id, env.workDir)
	req.User = "nobody"
	_, err := env.issuer.Stamp(context.Background(), req)
	require.Error(t, err)

	// Nothing was registered.
	rec, err := env.store.FindByIdentity(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestStampMissingKeyAborts(t *testing.T) {
	env := newIssuerEnv(t)
	env.issuer = pipeline.NewIssuer(pipeline.IssuerConfig{
		Store:   env.store,
		Keys:    fakeKeys{err: keyreg.ErrKeyNotFound},
		Guids:   fakeGuids{"usr1": 42},
		Querier: fakeQuerier{tsq: []byte("tsq")},
		Source:  env.source,
		Checker: env.checker,
		Log:     discardLogger(),
	})

	_, err := env.issuer.Stamp(context.Background(), stampReq(identity.External("proj1", "s3", "/f.txt"), env.workDir))
	require.ErrorIs(t, err, keyreg.ErrKeyNotFound)
	assert.Equal(t, 0, env.source.calls, "no token must be requested without key material")
}

func TestStampQueryFailureAborts(t *testing.T) {
	env := newIssuerEnv(t)
	env.issuer = pipeline.NewIssuer(pipeline.IssuerConfig{
		Store:   env.store,
		Keys:    env.keys,
		Guids:   fakeGuids{"usr1": 42},
		Querier: fakeQuerier{err: errors.New("openssl exploded")},
		Source:  env.source,
		Checker: env.checker,
		Log:     discardLogger(),
	})

	_, err := env.issuer.Stamp(context.Background(), stampReq(identity.External("proj1", "s3", "/f.txt"), env.workDir))
	require.Error(t, err)
	assert.Equal(t, 0, env.source.calls)
}
