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
	"io"

	"github.com/queryforge/selectcore/sql"
	"github.com/queryforge/selectcore/sql/plan"
)

// runFlat implements spec.md §4.3's flat strategy: scan the top filter,
// apply WHERE, project, hand every surviving row to the sink. All
// sort/distinct/offset/limit/fetch-percent/with-ties handling is deferred
// to the sink's Done() — this strategy's job, when run against a
// MaterializedSink, is purely to populate it (the streaming offset/limit
// variant of this same loop is LazyResult.advanceFlat in lazy.go, which has
// no post-scan Done phase to defer to; WITH TIES never takes that path).
//
// Under SELECT ... FOR UPDATE with MVCC batching enabled, every surviving
// row's id is buffered via LockRowAdd and committed in one LockRows call
// after the scan completes, rather than locked row-by-row (spec.md §4.3,
// §6).
func runFlat(ctx *sql.Context, sel *plan.Select, sink plan.ResultSink) error {
	f := sel.TopTableFilter
	for {
		row, err := f.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		ok, err := passesWhere(ctx, sel, row)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		if sel.IsForUpdateMvcc {
			if err := f.LockRowAdd(ctx, row); err != nil {
				return err
			}
		}

		outRow, err := projectRow(ctx, sel, row)
		if err != nil {
			return err
		}
		if err := sink.AddRow(outRow); err != nil {
			return err
		}

		ctx.IncrementRowCount()
		if sampleSize := ctx.Session.SampleSize(); sampleSize > 0 && int(ctx.RowCount()) >= sampleSize {
			break
		}
		if ctx.Aborted() {
			return sql.ErrQueryAborted.New()
		}
	}
	if sel.IsForUpdateMvcc {
		return f.LockRows(ctx)
	}
	return nil
}
