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
	"github.com/queryforge/selectcore/sql/expression"
	"github.com/queryforge/selectcore/sql/plan"
)

// isLazyEligible implements spec.md §4.4's eligibility test: a caller can
// pull rows one at a time, without this core ever buffering the full
// result, only when nothing downstream of the scan needs to see every row
// before producing the first one. Revoked by: an explicit materialization
// target, FOR UPDATE (both locking modes run on the materialized path, which
// takes the table lock before the scan or commits MVCC row locks after it), the
// quick-aggregate path (inherently single-row, not a streaming concern),
// hashed grouping or a distinct index scan (neither names a lazy driver in
// spec.md §4.4), FETCH PERCENT or WITH TIES (both need the final row count
// or a materialized tail to detect), a non-zero OFFSET quick-skip combined
// with an unsatisfied sort, and — critically — any ORDER BY that is not
// already satisfied by the chosen index (an unsatisfied sort needs every
// row before it can emit the first one).
func isLazyEligible(sel *plan.Select, offset, limit int) bool {
	if sel.IsForUpdate {
		return false
	}
	if sel.IsQuickAggregateQuery || sel.IsDistinctQuery {
		return false
	}
	if sel.IsGroupQuery && !sel.IsGroupSortedQuery {
		return false
	}
	if sel.FetchPercent || sel.WithTies {
		return false
	}
	if limit == 0 {
		return false
	}
	if sel.Sort != nil && len(sel.Sort.Columns) > 0 && !sel.SortUsingIndex {
		return false
	}
	return sel.IsReadOnly()
}

// lazyKind selects which of the two lazy drivers spec.md §4.4 names
// (Flat, Sorted-group) a LazyResult wraps.
type lazyKind int

const (
	lazyFlat lazyKind = iota
	lazySortedGroup
)

// LazyResult is the pull-based driver of spec.md §4.4: Next()/Reset()/
// Close() wrapping either the flat or the sorted-group strategy, applying
// quick-offset and the hard row limit incrementally instead of through a
// buffered Done() pass. It implements sql.RowIter directly — the same
// surface a drained MaterializedSink exposes — so QueryWithoutCache's
// caller never needs to know which path ran. Grounded on the teacher's
// sql.RowIter implementations in rowexec/*_iter.go, which are themselves
// always pull-based.
type LazyResult struct {
	ctx *sql.Context
	sel *plan.Select
	kind lazyKind
	f    plan.TableFilter

	initialOffset   int
	offsetRemaining int
	hardLimit       int // -1 means unlimited
	emitted         int

	// sorted-group scan state
	havePending  bool
	finished     bool
	pendingKey   sql.ValueArray
	pendingState []interface{}
	rowID        int64
}

func newLazyResult(ctx *sql.Context, sel *plan.Select, offset, limit int) *LazyResult {
	kind := lazyFlat
	if sel.IsGroupQuery {
		kind = lazySortedGroup
	}
	return &LazyResult{
		ctx:             ctx,
		sel:             sel,
		kind:            kind,
		f:               sel.TopTableFilter,
		initialOffset:   offset,
		offsetRemaining: offset,
		hardLimit:       limit,
	}
}

// Next implements sql.RowIter (and plan.ResultSink's subset of it, so the
// caller-facing surface is identical whichever path ran).
func (l *LazyResult) Next(ctx *sql.Context) (sql.Row, error) {
	for {
		if l.hardLimit >= 0 && l.emitted >= l.hardLimit {
			return nil, io.EOF
		}
		var row sql.Row
		var ok bool
		var err error
		if l.kind == lazySortedGroup {
			row, ok, err = l.advanceSortedGroup(ctx)
		} else {
			row, ok, err = l.advanceFlat(ctx)
		}
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, io.EOF
		}
		if l.offsetRemaining > 0 {
			l.offsetRemaining--
			continue
		}
		l.emitted++
		return row, nil
	}
}

func (l *LazyResult) advanceFlat(ctx *sql.Context) (sql.Row, bool, error) {
	for {
		row, err := l.f.Next(ctx)
		if err == io.EOF {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		passed, err := passesWhere(ctx, l.sel, row)
		if err != nil {
			return nil, false, err
		}
		if !passed {
			continue
		}
		if l.sel.IsForUpdateMvcc {
			if err := l.f.LockRowAdd(ctx, row); err != nil {
				return nil, false, err
			}
		}
		outRow, err := projectRow(ctx, l.sel, row)
		if err != nil {
			return nil, false, err
		}
		ctx.IncrementRowCount()
		return outRow, true, nil
	}
}

func (l *LazyResult) advanceSortedGroup(ctx *sql.Context) (sql.Row, bool, error) {
	width := l.sel.AggregateSlotCount
	for {
		if l.finished {
			return nil, false, nil
		}
		row, err := l.f.Next(ctx)
		if err == io.EOF {
			l.finished = true
			if !l.havePending {
				return nil, false, nil
			}
			out, ok, err := buildGroupRow(ctx, l.sel, l.pendingKey, l.pendingState)
			l.havePending = false
			if err != nil {
				return nil, false, err
			}
			if !ok {
				return nil, false, nil
			}
			return out, true, nil
		}
		if err != nil {
			return nil, false, err
		}
		passed, err := passesWhere(ctx, l.sel, row)
		if err != nil {
			return nil, false, err
		}
		if !passed {
			continue
		}
		key, err := groupKeyOf(ctx, l.sel, row)
		if err != nil {
			return nil, false, err
		}
		ctx.IncrementRowCount()

		if l.havePending && sameKey(l.pendingKey, key) {
			l.rowID++
			gctx := &expression.AggContext{CurrentGroupState: l.pendingState, CurrentGroupRowID: l.rowID, CurrentGroupKey: key}
			if err := updateNonKeyAggregates(ctx, l.sel, gctx, row); err != nil {
				return nil, false, err
			}
			continue
		}

		var emit sql.Row
		emitOK := false
		if l.havePending {
			out, ok, err := buildGroupRow(ctx, l.sel, l.pendingKey, l.pendingState)
			if err != nil {
				return nil, false, err
			}
			emit, emitOK = out, ok
		}
		l.pendingKey = key
		l.pendingState = make([]interface{}, width)
		l.havePending = true
		l.rowID = 1
		gctx := &expression.AggContext{CurrentGroupState: l.pendingState, CurrentGroupRowID: l.rowID, CurrentGroupKey: key}
		if err := updateNonKeyAggregates(ctx, l.sel, gctx, row); err != nil {
			return nil, false, err
		}
		if emitOK {
			return emit, true, nil
		}
		// First group ever seen: nothing to flush yet, keep scanning.
	}
}

// Reset implements spec.md §4.4's teardown/re-arm: rewinding the top
// filter through its own Reset (this driver holds no join-batching state),
// then clearing every piece of this driver's own streaming state back to
// its initial values.
func (l *LazyResult) Reset() error {
	if err := l.f.Reset(l.ctx); err != nil {
		return err
	}
	l.emitted = 0
	l.offsetRemaining = l.initialOffset
	l.finished = false
	l.havePending = false
	l.pendingState = nil
	l.rowID = 0
	return nil
}

func (l *LazyResult) Close(ctx *sql.Context) error {
	return l.f.Close(ctx)
}
