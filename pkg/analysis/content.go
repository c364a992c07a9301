// Copyright 2025 KrakLabs
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
//
// SPDX-License-Identifier: Apache-2.0

package analysis

import (
	"context"

	"github.com/kraklabs/tokmd/pkg/tokmd"
)

const defaultMaxFileBytes = 128 * 1024

// readWithinLimits reads a file's content through the shared FileOracle,
// honoring both the per-file byte cap and, if budget is non-nil, the
// run's cumulative byte budget. It returns ok=false when the row is too
// large, the budget is exhausted, the context is cancelled, or the
// underlying read fails — callers treat all of these as "skip this file"
// rather than a hard error. Only a failed read leaves the row's bytes
// charged to the budget; the other cases consume nothing.
func readWithinLimits(ctx context.Context, ac *AnalysisContext, budget *byteBudget, row tokmd.FileRow) ([]byte, bool) {
	if ctx.Err() != nil {
		return nil, false
	}
	maxFileBytes := ac.Limits.MaxFileBytes
	if maxFileBytes <= 0 {
		maxFileBytes = defaultMaxFileBytes
	}
	if row.Bytes > maxFileBytes {
		return nil, false
	}
	if budget != nil && !budget.tryConsume(row.Bytes) {
		return nil, false
	}
	content, err := ac.Files.ReadFile(ctx, row.Path)
	if err != nil {
		return nil, false
	}
	return content, true
}
