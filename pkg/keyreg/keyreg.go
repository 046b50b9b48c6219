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

// Package keyreg resolves the key material registered for a user. Key
// provisioning itself is owned elsewhere; this package only answers "which
// key file does this user sign with".
package keyreg

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Kind discriminates the role of a registered key.
type Kind int

const (
	KindPublic  Kind = 1
	KindPrivate Kind = 2
)

// ErrKeyNotFound reports that no key of the requested kind is registered
// for the user.
var ErrKeyNotFound = errors.New("keyreg: key not found")

// Registry answers key lookups. Implementations must be safe for
// concurrent use.
type Registry interface {
	// KeyFileName returns the file name identifying the user's key
	// material of the given kind, or ErrKeyNotFound.
	KeyFileName(ctx context.Context, userID int64, kind Kind) (string, error)
}

// KeyMaterial is one registered key, as provisioned by the surrounding
// platform.
type KeyMaterial struct {
	ID      uint   `gorm:"primaryKey;autoIncrement"`
	UserID  int64  `gorm:"column:user_id;index:idx_key_user_kind,unique"`
	Kind    Kind   `gorm:"column:kind;index:idx_key_user_kind,unique"`
	KeyName string `gorm:"column:key_name"`
}

func (KeyMaterial) TableName() string {
	return "key_materials"
}

// GormRegistry is a Registry reading KeyMaterial rows.
type GormRegistry struct {
	db *gorm.DB
}

// NewGormRegistry migrates the key table and returns a registry over db.
func NewGormRegistry(db *gorm.DB) (*GormRegistry, error) {
	if err := db.AutoMigrate(&KeyMaterial{}); err != nil {
		return nil, fmt.Errorf("migrating key materials: %w", err)
	}
	return &GormRegistry{db: db}, nil
}

func (r *GormRegistry) KeyFileName(ctx context.Context, userID int64, kind Kind) (string, error) {
	var key KeyMaterial
	err := r.db.WithContext(ctx).Where("user_id = ? AND kind = ?", userID, kind).First(&key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("%w: user %d kind %d", ErrKeyNotFound, userID, kind)
	}
	if err != nil {
		return "", fmt.Errorf("looking up key for user %d: %w", userID, err)
	}
	return key.KeyName, nil
}
