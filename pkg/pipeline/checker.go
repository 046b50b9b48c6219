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

// Package pipeline implements timestamp issuance and verification for one
// file at a time. Verification is the single source of truth for the
// persisted status; issuance always ends by running it.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/moby/locker"
	"github.com/sirupsen/logrus"

	"github.com/researchspace/tsaudit/pkg/identity"
	"github.com/researchspace/tsaudit/pkg/status"
	"github.com/researchspace/tsaudit/pkg/store"
)

// Checker resolves and persists the verification status of files.
type Checker struct {
	store    *store.Store
	files    FileMetadata
	projects Projects
	verifier TokenVerifier
	rootCA   string

	log     *logrus.Logger
	locks   *locker.Locker
	metrics *Metrics
}

// CheckerConfig wires a Checker. Store, Files, Verifier, RootCAFile and
// Log are required; Projects and Metrics are optional.
type CheckerConfig struct {
	Store    *store.Store
	Files    FileMetadata
	Projects Projects
	Verifier TokenVerifier
	// RootCAFile is the certificate bundle OpenSSL trusts when checking
	// tokens.
	RootCAFile string
	Log        *logrus.Logger
	// Locks serializes record mutations per file identity. When shared
	// with an Issuer, both sides serialize on the same keys.
	Locks   *locker.Locker
	Metrics *Metrics
}

// NewChecker builds a Checker.
func NewChecker(cfg CheckerConfig) *Checker {
	locks := cfg.Locks
	if locks == nil {
		locks = locker.New()
	}
	return &Checker{
		store:    cfg.Store,
		files:    cfg.Files,
		projects: cfg.Projects,
		verifier: cfg.Verifier,
		rootCA:   cfg.RootCAFile,
		log:      cfg.Log,
		locks:    locks,
		metrics:  cfg.Metrics,
	}
}

// CheckRequest identifies one verification pass. LocalFileName is the name
// of the freshly downloaded copy inside WorkDir; the caller owns WorkDir
// and its lifetime.
type CheckRequest struct {
	// User is the acting user's guid, recorded on the validation columns.
	User     string
	Identity identity.FileIdentity
	// LocalFileName is relative to WorkDir.
	LocalFileName string
	WorkDir       string
}

// Check computes, persists, and returns the current verification status of
// one file. Expected degraded conditions (missing token, deleted file)
// come back as their status codes with a nil error; a non-nil error always
// accompanies an Indeterminate result and means the pass itself could not
// establish anything.
func (c *Checker) Check(ctx context.Context, req CheckRequest) (*Result, error) {
	c.locks.Lock(req.Identity.LockKey())
	defer c.locks.Unlock(req.Identity.LockKey()) //nolint:errcheck

	filePath := req.Identity.LogicalPath()

	deleted := false
	if req.Identity.IsInternal() {
		info, err := c.files.Lookup(ctx, req.Identity.FileID)
		if err != nil {
			return c.fail(ctx, req, filePath, fmt.Errorf("resolving file metadata: %w", err))
		}
		deleted = info.Deleted
		filePath = req.Identity.Provider + info.Path
	}

	rec, err := c.store.FindByIdentity(ctx, req.Identity)
	if err != nil {
		return c.fail(ctx, req, filePath, err)
	}

	outcome := status.OutcomeNotRun
	if rec != nil && rec.HasToken() && !deleted {
		outcome, err = c.runVerify(ctx, req, rec)
		if err != nil {
			return c.fail(ctx, req, filePath, err)
		}
	}

	code := status.Resolve(status.Inputs{
		RecordExists: rec != nil,
		HasToken:     rec != nil && rec.HasToken(),
		FileDeleted:  deleted,
		Outcome:      outcome,
	})

	now := timeNow()
	created := rec == nil
	if created {
		rec = &store.VerificationRecord{
			FileID:                 req.Identity.FileID,
			ProjectID:              req.Identity.ProjectID,
			Provider:               req.Identity.Provider,
			Path:                   req.Identity.Path,
			InspectionResultStatus: code,
			CreateUser:             req.User,
			CreateDate:             now,
		}
	} else if rec.InspectionResultStatus != code {
		rec.InspectionResultStatus = code
		rec.MarkUpdated(req.User, now)
	}
	rec.MarkValidated(req.User, now)

	if created {
		err = c.store.Create(ctx, rec)
	} else {
		err = c.store.Save(ctx, rec)
	}
	if err != nil {
		return c.fail(ctx, req, filePath, err)
	}

	c.audit(ctx, req, code, filePath)
	if c.metrics != nil {
		c.metrics.observeCheck(code)
	}
	return newResult(code, rec, filePath), nil
}

// runVerify writes the stored token to a scratch file and asks OpenSSL to
// check it against the downloaded bytes.
func (c *Checker) runVerify(ctx context.Context, req CheckRequest, rec *store.VerificationRecord) (status.Outcome, error) {
	tokenPath := filepath.Join(req.WorkDir, req.User+".tsr")
	if err := os.WriteFile(tokenPath, rec.TimestampToken, 0o600); err != nil {
		return status.OutcomeNotRun, fmt.Errorf("writing token scratch file: %w", err)
	}
	defer os.Remove(tokenPath)

	dataPath := filepath.Join(req.WorkDir, req.LocalFileName)
	ok, err := c.verifier.VerifyToken(ctx, dataPath, tokenPath, c.rootCA)
	if err != nil {
		if c.metrics != nil {
			c.metrics.observeVerifierFailure()
		}
		return status.OutcomeNotRun, fmt.Errorf("running token verification: %w", err)
	}
	if ok {
		return status.OutcomeOK, nil
	}
	return status.OutcomeMismatch, nil
}

// fail logs the pass and returns an Indeterminate result alongside err.
func (c *Checker) fail(ctx context.Context, req CheckRequest, filePath string, err error) (*Result, error) {
	c.audit(ctx, req, status.Indeterminate, filePath)
	if c.metrics != nil {
		c.metrics.observeCheck(status.Indeterminate)
	}
	return indeterminateResult(filePath), err
}

// audit emits the unconditional end-of-pass record.
func (c *Checker) audit(ctx context.Context, req CheckRequest, code status.Code, filePath string) {
	title := ""
	if c.projects != nil {
		// Best effort: a missing title never affects the outcome.
		if t, err := c.projects.Title(ctx, req.Identity.ProjectID); err == nil {
			title = t
		}
	}
	c.log.WithFields(logrus.Fields{
		"status":    int(code),
		"user":      req.User,
		"project":   title,
		"file_path": filePath,
	}).Info("timestamp verification completed")
}
