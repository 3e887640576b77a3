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

// runDistinctScan implements spec.md §4.3's distinct single-column index
// scan: Select.Prepare already installed a non-hash, ascending index on the
// sole filter (plan.prepareDistinctFastPath); walking it key-by-key already
// yields distinct values, so no in-memory dedup set is needed. Seeking
// "just past the last key returned" is the index cursor's own concern
// (spec.md §1 treats the access layer as opaque) — each FindNext call is
// re-seeded with the previous iteration's row as its lower bound, and the
// index is responsible for the exclusive-of-from semantics that makes that
// advance the cursor rather than repeat it.
//
// Per spec.md:117, when there is no sort (or the index already satisfies
// it) and the statement is not WITH TIES, limit+offset bounds the number of
// distinct keys that can possibly matter: the scan stops as soon as it has
// produced that many rows instead of walking the rest of the index. The
// final OFFSET/LIMIT trim still happens downstream in sink.Done() — this
// only elides reading rows the sink would discard anyway.
func runDistinctScan(ctx *sql.Context, sel *plan.Select, sink plan.ResultSink, offset, limit int) error {
	pushedLimit := -1
	if limit >= 0 && !sel.WithTies && (sel.Sort == nil || sel.SortUsingIndex) {
		pushedLimit = limit + offset
	}

	idx := sel.Filters[0].GetIndex()
	var from sql.Row
	rows := 0
	for {
		iter, err := idx.FindNext(ctx, from, nil)
		if err != nil {
			return err
		}
		row, nextErr := iter.Next(ctx)
		closeErr := iter.Close(ctx)
		if nextErr == io.EOF {
			if closeErr != nil {
				return closeErr
			}
			return nil
		}
		if nextErr != nil {
			return nextErr
		}
		if closeErr != nil {
			return closeErr
		}

		outRow, err := projectRow(ctx, sel, row)
		if err != nil {
			return err
		}
		if err := sink.AddRow(outRow); err != nil {
			return err
		}
		rows++
		from = row
		ctx.IncrementRowCount()
		if pushedLimit >= 0 && rows >= pushedLimit {
			return nil
		}
		if sampleSize := ctx.Session.SampleSize(); sampleSize > 0 && rows >= sampleSize {
			return nil
		}
		if ctx.Aborted() {
			return sql.ErrQueryAborted.New()
		}
	}
}
