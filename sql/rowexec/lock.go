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

package rowexec

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/queryforge/selectcore/sql"
	"github.com/queryforge/selectcore/sql/plan"
)

// validateForUpdate implements spec.md §4.3/§6's MVCC FOR UPDATE
// restrictions: under MVCC batching, FOR UPDATE cannot be combined with
// grouping, DISTINCT, the quick-aggregate path, or a joined top filter,
// since none of those strategies produce one lockable row per source row
// in scan order.
func validateForUpdate(sel *plan.Select) error {
	if !sel.IsForUpdate || !sel.IsForUpdateMvcc {
		return nil
	}
	switch {
	case sel.IsGroupQuery:
		return sql.ErrMVCCForUpdateGroup.New()
	case sel.IsDistinct:
		return sql.ErrMVCCForUpdateDistinct.New()
	case sel.IsQuickAggregateQuery:
		return sql.ErrMVCCForUpdateQuickAgg.New()
	}
	if sel.TopTableFilter != nil && sel.TopTableFilter.GetJoin() != nil {
		return sql.ErrMVCCForUpdateJoin.New()
	}
	return nil
}

// lockTop acquires the non-MVCC exclusive table lock spec.md §6 describes
// by calling TableFilter.Lock(ctx, true, false) on the top filter, tagging
// the log line and any wrapped error with a fresh uuid for the statement.
// MVCC FOR UPDATE instead defers to per-row LockRowAdd/LockRows, performed
// by the flat strategy (flat.go), the only strategy validateForUpdate
// leaves eligible; the lazy driver is never used for FOR UPDATE.
func lockTop(ctx *sql.Context, sel *plan.Select) error {
	if !sel.IsForUpdate || sel.IsForUpdateMvcc {
		return nil
	}
	f := sel.TopTableFilter
	if f == nil {
		return nil
	}
	statementID := uuid.New()
	ctx.GetLogger().WithField("lock_id", statementID.String()).Trace("rowexec: acquiring exclusive table lock for FOR UPDATE")
	if err := f.Lock(ctx, true, false); err != nil {
		return errors.Wrapf(err, "rowexec: unable to acquire exclusive lock for statement %s", statementID)
	}
	return nil
}
