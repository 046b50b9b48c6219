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

package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/moby/locker"
	"github.com/sirupsen/logrus"

	"github.com/researchspace/tsaudit/pkg/identity"
	"github.com/researchspace/tsaudit/pkg/keyreg"
	"github.com/researchspace/tsaudit/pkg/status"
	"github.com/researchspace/tsaudit/pkg/store"
)

// Issuer obtains fresh timestamp tokens and registers them.
type Issuer struct {
	store   *store.Store
	keys    keyreg.Registry
	guids   GuidResolver
	querier TokenQuerier
	source  TokenSource
	checker *Checker

	log     *logrus.Logger
	locks   *locker.Locker
	metrics *Metrics
}

// IssuerConfig wires an Issuer. All fields except Metrics are required;
// Locks should be the same instance the Checker uses so issuance and
// verification serialize on the same identities.
type IssuerConfig struct {
	Store   *store.Store
	Keys    keyreg.Registry
	Guids   GuidResolver
	Querier TokenQuerier
	Source  TokenSource
	Checker *Checker
	Log     *logrus.Logger
	Locks   *locker.Locker
	Metrics *Metrics
}

// NewIssuer builds an Issuer.
func NewIssuer(cfg IssuerConfig) *Issuer {
	locks := cfg.Locks
	if locks == nil {
		locks = locker.New()
	}
	return &Issuer{
		store:   cfg.Store,
		keys:    cfg.Keys,
		guids:   cfg.Guids,
		querier: cfg.Querier,
		source:  cfg.Source,
		checker: cfg.Checker,
		log:     cfg.Log,
		locks:   locks,
		metrics: cfg.Metrics,
	}
}

// StampRequest identifies one issuance. LocalFileName is the freshly
// downloaded copy of the file inside WorkDir.
type StampRequest struct {
	User          string
	Identity      identity.FileIdentity
	LocalFileName string
	WorkDir       string
}

// Stamp builds a TSQ over the local file, requests a token from the
// authority, registers it, and re-verifies. The returned result is always
// the post-verification status, never the transient unchecked state.
//
// An unreachable authority does not fail the call: the record is
// registered with no token so a later pass can retry, and verification
// reports that state. Key-lookup and registration failures do fail the
// call, so a stale prior token is never silently re-verified as if it were
// the new one.
func (i *Issuer) Stamp(ctx context.Context, req StampRequest) (*Result, error) {
	userID, err := i.guids.InternalID(ctx, req.User)
	if err != nil {
		return nil, fmt.Errorf("resolving user %q: %w", req.User, err)
	}

	keyName, err := i.keys.KeyFileName(ctx, userID, keyreg.KindPublic)
	if err != nil {
		return nil, fmt.Errorf("looking up key for user %q: %w", req.User, err)
	}

	dataPath := filepath.Join(req.WorkDir, req.LocalFileName)
	tsq, err := i.querier.CreateQuery(ctx, dataPath)
	if err != nil {
		return nil, fmt.Errorf("building timestamp query: %w", err)
	}

	token := i.requestToken(ctx, tsq)

	if err := i.register(ctx, req, keyName, token); err != nil {
		return nil, fmt.Errorf("registering token: %w", err)
	}

	return i.checker.Check(ctx, CheckRequest{
		User:          req.User,
		Identity:      req.Identity,
		LocalFileName: req.LocalFileName,
		WorkDir:       req.WorkDir,
	})
}

// requestToken degrades to nil on any authority failure; verification then
// records the retrieval failure instead of aborting issuance.
func (i *Issuer) requestToken(ctx context.Context, tsq []byte) []byte {
	start := time.Now()
	token, err := i.source.RequestToken(ctx, tsq)
	if i.metrics != nil {
		i.metrics.observeTSARequest(time.Since(start), err == nil)
	}
	if err != nil {
		i.log.WithError(err).Warn("timestamp authority request failed, registering without token")
		return nil
	}
	return token
}

// register creates or updates the record for the file under its identity
// lock. New records start in the unchecked state; existing ones take the
// new key and token in place.
func (i *Issuer) register(ctx context.Context, req StampRequest, keyName string, token []byte) error {
	i.locks.Lock(req.Identity.LockKey())
	defer i.locks.Unlock(req.Identity.LockKey()) //nolint:errcheck

	rec, err := i.store.FindByIdentity(ctx, req.Identity)
	if err != nil {
		return err
	}

	now := timeNow()
	if rec == nil {
		rec = &store.VerificationRecord{
			FileID:                 req.Identity.FileID,
			ProjectID:              req.Identity.ProjectID,
			Provider:               req.Identity.Provider,
			Path:                   req.Identity.Path,
			KeyFileName:            keyName,
			TimestampToken:         token,
			InspectionResultStatus: status.TokenMissing,
			CreateUser:             req.User,
			CreateDate:             now,
		}
		return i.store.Create(ctx, rec)
	}

	rec.KeyFileName = keyName
	rec.TimestampToken = token
	rec.MarkUpdated(req.User, now)
	return i.store.Save(ctx, rec)
}
