// Copyright 2020-2021 Dolthub, Inc.
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

package sql

import "gopkg.in/src-d/go-errors.v1"

// Typed error kinds, one per spec.md §7 trigger. Declared with
// gopkg.in/src-d/go-errors.v1, the same package the teacher declares
// ErrTableNotFound and its siblings with in sql/errors_test.go.
var (
	// Invalid user input.
	ErrInvalidOrderByPosition = errors.NewKind("INVALID_VALUE: ORDER BY position %d is out of range for %d columns")
	ErrFetchPercentOutOfRange = errors.NewKind("INVALID_VALUE: FETCH PERCENT value %v is out of range [0, 100]")
	ErrOffsetOutOfRange       = errors.NewKind("INVALID_VALUE: OFFSET %v exceeds the supported range for a materialized result")
	ErrWithTiesWithoutOrderBy = errors.NewKind("WITH_TIES_WITHOUT_ORDER_BY: FETCH ... WITH TIES requires an ORDER BY")
	ErrTableOrViewNotFound    = errors.NewKind("TABLE_OR_VIEW_NOT_FOUND: no table or view found for qualifier %q")

	// Unsupported feature combinations.
	ErrDistinctOnWithDistinct  = errors.NewKind("unsupported: DISTINCT ON cannot be combined with DISTINCT")
	ErrMVCCForUpdateGroup      = errors.NewKind("unsupported: SELECT ... FOR UPDATE is not supported under MVCC for a GROUP BY query")
	ErrMVCCForUpdateDistinct   = errors.NewKind("unsupported: SELECT ... FOR UPDATE is not supported under MVCC with DISTINCT")
	ErrMVCCForUpdateQuickAgg   = errors.NewKind("unsupported: SELECT ... FOR UPDATE is not supported under MVCC for an aggregate-only query")
	ErrMVCCForUpdateJoin       = errors.NewKind("unsupported: SELECT ... FOR UPDATE is not supported under MVCC over a joined top filter")

	// Internal consistency.
	ErrDoubleInit            = errors.NewKind("internal error: Select.Init called twice")
	ErrPrepareBeforeInit     = errors.NewKind("internal error: Select.Prepare called before Select.Init")
	ErrDoublePrepare         = errors.NewKind("internal error: Select.Prepare called twice")

	// Collaborator / execution.
	ErrQueryAborted = errors.NewKind("query execution aborted")
	ErrInvalidType  = errors.NewKind("invalid type: %v")
)
