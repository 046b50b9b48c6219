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

import (
	"time"

	"github.com/researchspace/tsaudit/pkg/status"
	"github.com/researchspace/tsaudit/pkg/store"
)

// operatorDateLayout is the display format the admin surface expects.
const operatorDateLayout = "2006/01/02 15:04:05"

// Result is the externally visible outcome of one issuance or verification
// pass.
type Result struct {
	VerifyResult      int    `json:"verify_result"`
	VerifyResultTitle string `json:"verify_result_title"`
	OperatorUser      string `json:"operator_user,omitempty"`
	OperatorDate      string `json:"operator_date,omitempty"`
	FilePath          string `json:"filepath"`
}

func newResult(code status.Code, rec *store.VerificationRecord, filePath string) *Result {
	res := &Result{
		VerifyResult:      int(code),
		VerifyResultTitle: code.Title(),
		FilePath:          filePath,
	}
	if rec != nil {
		user, date := rec.Operator()
		res.OperatorUser = user
		if !date.IsZero() {
			res.OperatorDate = date.Format(operatorDateLayout)
		}
	}
	return res
}

// indeterminateResult is returned for passes that failed before any real
// state could be established.
func indeterminateResult(filePath string) *Result {
	return &Result{
		VerifyResult:      int(status.Indeterminate),
		VerifyResultTitle: status.Indeterminate.Title(),
		FilePath:          filePath,
	}
}

var timeNow = time.Now
