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

package identity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/researchspace/tsaudit/pkg/identity"
)

func TestInternal(t *testing.T) {
	id := identity.Internal("abc123", "proj1", "/data/f.txt")
	assert.True(t, id.IsInternal())
	assert.Equal(t, "abc123", id.FileID)
	assert.Equal(t, identity.InternalProvider, id.Provider)
	assert.Equal(t, "osfstorage/data/f.txt", id.LogicalPath())
}

func TestExternal(t *testing.T) {
	id := identity.External("proj1", "s3", "/bucket/f.txt")
	assert.False(t, id.IsInternal())
	assert.Equal(t, identity.ExternalFileID, id.FileID)
	assert.Equal(t, "s3/bucket/f.txt", id.LogicalPath())
}

func TestLockKeys(t *testing.T) {
	internal := identity.Internal("abc123", "proj1", "/f.txt")
	external := identity.External("proj1", "s3", "/f.txt")
	assert.NotEqual(t, internal.LockKey(), external.LockKey())

	// Same identity always yields the same key.
	assert.Equal(t, internal.LockKey(), identity.Internal("abc123", "proj2", "/moved.txt").LockKey())

	// External identities differing in any leg get distinct keys.
	assert.NotEqual(t, external.LockKey(), identity.External("proj1", "box", "/f.txt").LockKey())
	assert.NotEqual(t, external.LockKey(), identity.External("proj2", "s3", "/f.txt").LockKey())
}
