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

// Package status defines the persisted verification states of a timestamped
// file and the pure transition function that resolves the next state from
// what is known about the record, the file, and the cryptographic check.
package status

import "fmt"

// Code is the persisted inspection result of one file.
//
// The numeric values are part of the storage contract and must not be
// renumbered.
type Code int

const (
	// Indeterminate marks a pass that failed before any real state could be
	// established (collaborator error, subprocess would not start). It is a
	// terminal result for that pass, never a persisted steady state.
	Indeterminate Code = 0

	// Verified: a token is stored and OpenSSL confirmed it matches the
	// current file bytes.
	Verified Code = 1

	// Mismatch: a token is stored but OpenSSL rejected it against the
	// current file bytes. Either the content changed after stamping or the
	// token is invalid.
	Mismatch Code = 2

	// TokenMissing: the file has never completed an issuance; no record
	// existed before this pass, or the record was just created by issuance
	// and not yet checked.
	TokenMissing Code = 3

	// TokenRetrieveFailed: a record exists but holds no token; a prior
	// issuance reached the registration step without a TSA response.
	TokenRetrieveFailed Code = 4

	// FileMissing: the file is flagged deleted and was never recorded.
	FileMissing Code = 5

	// FileMissingTokenMissing: the file is flagged deleted and a record
	// already exists.
	FileMissingTokenMissing Code = 6
)

// Title returns the operator-facing label for the code. These strings are a
// display contract with the admin surface and are matched verbatim there.
func (c Code) Title() string {
	switch c {
	case Verified:
		return "OK"
	case Mismatch:
		return "NG"
	case TokenMissing:
		return "TST missing(Unverify)"
	case TokenRetrieveFailed:
		return "TST missing(Retrieving Failed)"
	case FileMissing:
		return "FILE missing"
	case FileMissingTokenMissing:
		return "FILE missing(Unverify)"
	case Indeterminate:
		return "Indeterminate"
	}
	return fmt.Sprintf("Unknown(%d)", int(c))
}

func (c Code) String() string {
	return fmt.Sprintf("%d(%s)", int(c), c.Title())
}

// Outcome is the result of the external OpenSSL verification, when it ran.
type Outcome int

const (
	// OutcomeNotRun means the check was not applicable: no token, no file,
	// or no record.
	OutcomeNotRun Outcome = iota
	// OutcomeOK means OpenSSL printed its success marker.
	OutcomeOK
	// OutcomeMismatch means OpenSSL ran and rejected the token.
	OutcomeMismatch
)

// Inputs captures everything the transition function needs. Outcome is only
// consulted when a token is present on an existing record for a live file.
type Inputs struct {
	RecordExists bool
	HasToken     bool
	FileDeleted  bool
	Outcome      Outcome
}

// Resolve computes the next persisted state. It is total over Inputs and
// performs no I/O.
func Resolve(in Inputs) Code {
	if in.FileDeleted {
		if !in.RecordExists {
			return FileMissing
		}
		return FileMissingTokenMissing
	}
	if !in.RecordExists {
		return TokenMissing
	}
	if !in.HasToken {
		return TokenRetrieveFailed
	}
	if in.Outcome == OutcomeOK {
		return Verified
	}
	return Mismatch
}
