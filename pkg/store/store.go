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

// Package store persists verification records. The backing database is
// SQLite through GORM; the handle is constructed explicitly and passed in,
// never held in package state.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/researchspace/tsaudit/pkg/identity"
)

// Store reads and writes VerificationRecords.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the SQLite database at path and migrates
// the record schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	return NewWithDB(db)
}

// NewWithDB wraps an already-open GORM handle, migrating the record schema.
func NewWithDB(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&VerificationRecord{}); err != nil {
		return nil, fmt.Errorf("migrating verification records: %w", err)
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying handle so collaborator implementations can
// share one database file.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// FindByFileID looks up the record for an internal-provider file.
// Returns (nil, nil) when no record exists.
func (s *Store) FindByFileID(ctx context.Context, fileID string) (*VerificationRecord, error) {
	var rec VerificationRecord
	err := s.db.WithContext(ctx).Where("file_id = ?", fileID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding record by file id: %w", err)
	}
	return &rec, nil
}

// FindByTriple looks up the record for an external-provider file.
// Returns (nil, nil) when no record exists.
func (s *Store) FindByTriple(ctx context.Context, projectID, provider, path string) (*VerificationRecord, error) {
	var rec VerificationRecord
	err := s.db.WithContext(ctx).
		Where("project_id = ? AND provider = ? AND path = ?", projectID, provider, path).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding record by project/provider/path: %w", err)
	}
	return &rec, nil
}

// FindByIdentity dispatches on the identity kind: stable file id for the
// internal provider, the full triple otherwise.
func (s *Store) FindByIdentity(ctx context.Context, id identity.FileIdentity) (*VerificationRecord, error) {
	if id.IsInternal() {
		return s.FindByFileID(ctx, id.FileID)
	}
	return s.FindByTriple(ctx, id.ProjectID, id.Provider, id.Path)
}

// Create inserts a new record.
func (s *Store) Create(ctx context.Context, rec *VerificationRecord) error {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("creating verification record: %w", err)
	}
	return nil
}

// Save writes back all columns of an existing record.
func (s *Store) Save(ctx context.Context, rec *VerificationRecord) error {
	if err := s.db.WithContext(ctx).Save(rec).Error; err != nil {
		return fmt.Errorf("saving verification record: %w", err)
	}
	return nil
}
