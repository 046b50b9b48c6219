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

package keyreg_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/researchspace/tsaudit/pkg/keyreg"
)

func openRegistry(t *testing.T) (*keyreg.GormRegistry, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "keys.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	reg, err := keyreg.NewGormRegistry(db)
	require.NoError(t, err)
	return reg, db
}

func TestKeyFileName(t *testing.T) {
	reg, db := openRegistry(t)
	require.NoError(t, db.Create(&keyreg.KeyMaterial{
		UserID:  42,
		Kind:    keyreg.KindPublic,
		KeyName: "42_pub.pem",
	}).Error)

	name, err := reg.KeyFileName(context.Background(), 42, keyreg.KindPublic)
	require.NoError(t, err)
	assert.Equal(t, "42_pub.pem", name)
}

func TestKeyNotFound(t *testing.T) {
	reg, _ := openRegistry(t)
	_, err := reg.KeyFileName(context.Background(), 42, keyreg.KindPublic)
	assert.ErrorIs(t, err, keyreg.ErrKeyNotFound)
}

func TestKindIsDiscriminating(t *testing.T) {
	reg, db := openRegistry(t)
	require.NoError(t, db.Create(&keyreg.KeyMaterial{
		UserID:  42,
		Kind:    keyreg.KindPrivate,
		KeyName: "42_priv.pem",
	}).Error)

	_, err := reg.KeyFileName(context.Background(), 42, keyreg.KindPublic)
	assert.ErrorIs(t, err, keyreg.ErrKeyNotFound)
}
