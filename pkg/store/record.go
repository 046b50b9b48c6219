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

package store

import (
	"time"

	"github.com/researchspace/tsaudit/pkg/status"
)

// VerificationRecord is the latest known timestamp state for one file.
//
// For the internal provider at most one record exists per FileID; for
// external providers at most one exists per (ProjectID, Provider, Path).
// The pipeline maintains that invariant under its per-identity lock.
// Records are created lazily the first time a file is seen and are never
// deleted here: deleting the underlying file transitions the status
// instead of removing the row.
type VerificationRecord struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	FileID    string `gorm:"column:file_id;index:idx_record_file_id"`
	ProjectID string `gorm:"column:project_id;index:idx_record_triple"`
	Provider  string `gorm:"column:provider;index:idx_record_triple"`
	Path      string `gorm:"column:path;index:idx_record_triple"`

	KeyFileName            string      `gorm:"column:key_file_name"`
	TimestampToken         []byte      `gorm:"column:timestamp_token"`
	InspectionResultStatus status.Code `gorm:"column:inspection_result_status"`

	CreateUser     string     `gorm:"column:create_user"`
	CreateDate     time.Time  `gorm:"column:create_date"`
	UpdateUser     *string    `gorm:"column:update_user"`
	UpdateDate     *time.Time `gorm:"column:update_date"`
	ValidationUser *string    `gorm:"column:validation_user"`
	ValidationDate *time.Time `gorm:"column:validation_date"`
}

func (VerificationRecord) TableName() string {
	return "verification_records"
}

// HasToken reports whether a TSR is stored on the record.
func (r *VerificationRecord) HasToken() bool {
	return len(r.TimestampToken) > 0
}

// MarkUpdated stamps the mutation audit columns.
func (r *VerificationRecord) MarkUpdated(user string, at time.Time) {
	r.UpdateUser = &user
	r.UpdateDate = &at
}

// MarkValidated stamps the validation audit columns. Called on every
// verification pass whether or not anything else changed.
func (r *VerificationRecord) MarkValidated(user string, at time.Time) {
	r.ValidationUser = &user
	r.ValidationDate = &at
}

// Operator returns who last touched the record and when, preferring the
// update columns and falling back to the creation ones. Display-side only.
func (r *VerificationRecord) Operator() (string, time.Time) {
	if r.UpdateUser != nil && r.UpdateDate != nil {
		return *r.UpdateUser, *r.UpdateDate
	}
	return r.CreateUser, r.CreateDate
}
