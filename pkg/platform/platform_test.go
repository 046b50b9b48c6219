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

package platform_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/researchspace/tsaudit/pkg/platform"
)

func openDirectory(t *testing.T) (*platform.Directory, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "dir.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	dir, err := platform.NewDirectory(db)
	require.NoError(t, err)
	return dir, db
}

func TestInternalID(t *testing.T) {
	dir, db := openDirectory(t)
	require.NoError(t, db.Create(&platform.UserAccount{GUID: "usr1"}).Error)

	id, err := dir.InternalID(context.Background(), "usr1")
	require.NoError(t, err)
	assert.Positive(t, id)

	_, err = dir.InternalID(context.Background(), "ghost")
	assert.ErrorIs(t, err, platform.ErrNotFound)
}

func TestProjectTitle(t *testing.T) {
	dir, db := openDirectory(t)
	require.NoError(t, db.Create(&platform.Project{GUID: "proj1", Title: "Ocean Drift Samples"}).Error)

	title, err := dir.Title(context.Background(), "proj1")
	require.NoError(t, err)
	assert.Equal(t, "Ocean Drift Samples", title)
}

func TestFileLookup(t *testing.T) {
	dir, db := openDirectory(t)
	require.NoError(t, db.Create(&platform.FileNode{
		ID:        "abc123",
		ProjectID: "proj1",
		Path:      "/data/f.txt",
		Name:      "f.txt",
		Deleted:   true,
	}).Error)

	info, err := dir.Lookup(context.Background(), "abc123")
	require.NoError(t, err)
	assert.True(t, info.Deleted)
	assert.Equal(t, "/data/f.txt", info.Path)

	_, err = dir.Lookup(context.Background(), "missing")
	assert.ErrorIs(t, err, platform.ErrNotFound)
}
