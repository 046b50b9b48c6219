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

import "context"

// FileInfo is what the surrounding storage subsystem knows about an
// internal-provider file.
type FileInfo struct {
	ID        string
	ProjectID string
	Path      string
	Name      string
	Deleted   bool
}

// FileMetadata resolves internal-provider file state. External providers
// have no durable metadata visible to this pipeline.
type FileMetadata interface {
	Lookup(ctx context.Context, fileID string) (*FileInfo, error)
}

// GuidResolver maps a user's public guid to the internal numeric id the
// key registry is keyed by.
type GuidResolver interface {
	InternalID(ctx context.Context, guid string) (int64, error)
}

// Projects resolves project display titles for audit output.
type Projects interface {
	Title(ctx context.Context, projectID string) (string, error)
}

// TokenQuerier builds a raw TSQ over a local file. Satisfied by
// *openssl.Tool.
type TokenQuerier interface {
	CreateQuery(ctx context.Context, dataPath string) ([]byte, error)
}

// TokenVerifier checks a stored token against a local file. Satisfied by
// *openssl.Tool. The bool is the cryptographic verdict; a non-nil error
// means the check could not run at all.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, dataPath, tokenPath, caPath string) (bool, error)
}

// TokenSource obtains a TSR for a TSQ. Satisfied by *tsa.Client.
type TokenSource interface {
	RequestToken(ctx context.Context, tsq []byte) ([]byte, error)
}
