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

// Package identity models how a stamped file is addressed across storage
// backends. Files on the platform's own content store carry a stable opaque
// id; files on third-party storage connectors are only addressable by the
// (project, provider, path) triple.
package identity

import "fmt"

// InternalProvider is the name of the platform's own content-addressed store.
const InternalProvider = "osfstorage"

// ExternalFileID is the sentinel stored in the file-id column for records
// belonging to external providers, where no stable file id exists.
const ExternalFileID = "-"

// FileIdentity addresses exactly one file for timestamp purposes.
// Construct values with Internal or External; the zero value is not valid.
type FileIdentity struct {
	FileID    string
	ProjectID string
	Provider  string
	Path      string
}

// Internal addresses a file on the platform's own store by its stable id.
func Internal(fileID, projectID, path string) FileIdentity {
	return FileIdentity{
		FileID:    fileID,
		ProjectID: projectID,
		Provider:  InternalProvider,
		Path:      path,
	}
}

// External addresses a file on a third-party storage connector.
func External(projectID, provider, path string) FileIdentity {
	return FileIdentity{
		FileID:    ExternalFileID,
		ProjectID: projectID,
		Provider:  provider,
		Path:      path,
	}
}

// IsInternal reports whether the file lives on the platform's own store,
// where deletion is observable and the file id is authoritative.
func (id FileIdentity) IsInternal() bool {
	return id.Provider == InternalProvider
}

// LockKey returns the advisory-lock key serializing record mutations for
// this file. Internal files lock on their id; external files lock on the
// full triple.
func (id FileIdentity) LockKey() string {
	if id.IsInternal() {
		return id.Provider + ":" + id.FileID
	}
	return fmt.Sprintf("%s:%s:%s", id.ProjectID, id.Provider, id.Path)
}

// LogicalPath is the provider-qualified path shown in audit output.
func (id FileIdentity) LogicalPath() string {
	return id.Provider + id.Path
}
