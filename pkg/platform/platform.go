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

// Package platform holds reference implementations of the collaborator
// interfaces the pipeline consumes: user guid resolution, project titles,
// and internal-provider file metadata. Deployments embedded in a larger
// system supply their own implementations instead.
package platform

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/researchspace/tsaudit/pkg/pipeline"
)

// ErrNotFound reports a guid, project, or file unknown to the directory.
var ErrNotFound = errors.New("platform: not found")

// UserAccount maps a public guid to the internal numeric id keys are
// registered under.
type UserAccount struct {
	ID   int64  `gorm:"primaryKey;autoIncrement"`
	GUID string `gorm:"column:guid;uniqueIndex"`
}

func (UserAccount) TableName() string { return "user_accounts" }

// Project carries the display title used in audit output.
type Project struct {
	ID    uint   `gorm:"primaryKey;autoIncrement"`
	GUID  string `gorm:"column:guid;uniqueIndex"`
	Title string `gorm:"column:title"`
}

func (Project) TableName() string { return "projects" }

// FileNode is internal-provider file metadata: path, display name, and the
// deletion flag the verification state machine branches on.
type FileNode struct {
	ID        string `gorm:"primaryKey;column:id"`
	ProjectID string `gorm:"column:project_id;index"`
	Path      string `gorm:"column:path"`
	Name      string `gorm:"column:name"`
	Deleted   bool   `gorm:"column:deleted"`
}

func (FileNode) TableName() string { return "file_nodes" }

// Directory implements pipeline.GuidResolver, pipeline.Projects, and
// pipeline.FileMetadata over one database.
type Directory struct {
	db *gorm.DB
}

// NewDirectory migrates the directory tables and returns a Directory
// over db.
func NewDirectory(db *gorm.DB) (*Directory, error) {
	if err := db.AutoMigrate(&UserAccount{}, &Project{}, &FileNode{}); err != nil {
		return nil, fmt.Errorf("migrating directory tables: %w", err)
	}
	return &Directory{db: db}, nil
}

func (d *Directory) InternalID(ctx context.Context, guid string) (int64, error) {
	var u UserAccount
	err := d.db.WithContext(ctx).Where("guid = ?", guid).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("%w: user guid %q", ErrNotFound, guid)
	}
	if err != nil {
		return 0, fmt.Errorf("resolving guid %q: %w", guid, err)
	}
	return u.ID, nil
}

func (d *Directory) Title(ctx context.Context, projectID string) (string, error) {
	var p Project
	err := d.db.WithContext(ctx).Where("guid = ?", projectID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("%w: project %q", ErrNotFound, projectID)
	}
	if err != nil {
		return "", fmt.Errorf("resolving project %q: %w", projectID, err)
	}
	return p.Title, nil
}

func (d *Directory) Lookup(ctx context.Context, fileID string) (*pipeline.FileInfo, error) {
	var f FileNode
	err := d.db.WithContext(ctx).Where("id = ?", fileID).First(&f).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: file %q", ErrNotFound, fileID)
	}
	if err != nil {
		return nil, fmt.Errorf("resolving file %q: %w", fileID, err)
	}
	return &pipeline.FileInfo{
		ID:        f.ID,
		ProjectID: f.ProjectID,
		Path:      f.Path,
		Name:      f.Name,
		Deleted:   f.Deleted,
	}, nil
}
