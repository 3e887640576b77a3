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
	"github.com/queryforge/selectcore/sql"
	"github.com/queryforge/selectcore/sql/plan"
)

// QueryWithoutCache drives a prepared Select through exactly one of the
// five execution strategies spec.md §4.3 names and returns a pull-based
// sql.RowIter over the result — either the lazy driver (spec.md §4.4), or a
// MaterializedSink that has already run Done(). maxRows caps the total rows
// returned regardless of the statement's own LIMIT (0 means uncapped); when
// target is non-nil, rows are appended to it directly instead of a fresh
// MaterializedSink, and it is returned once fully populated (spec.md §4.3,
// "if a caller target was provided, drain into it").
//
// Grounded on the teacher's queryWithoutCache in plan/process.go, which
// plays the same role: the single seam between a prepared statement and
// row production, dispatching on the node-tree shape rather than this
// core's explicit strategy flags.
func QueryWithoutCache(ctx *sql.Context, sel *plan.Select, maxRows int, target plan.ResultSink) (sql.RowIter, error) {
	limit, err := resolveLimit(ctx, sel, maxRows)
	if err != nil {
		return nil, err
	}
	offset, err := resolveOffset(ctx, sel)
	if err != nil {
		return nil, err
	}
	if err := validateForUpdate(sel); err != nil {
		return nil, err
	}
	if err := lockTop(ctx, sel); err != nil {
		return nil, err
	}

	if target == nil && isLazyEligible(sel, offset, limit) {
		return newLazyResult(ctx, sel, offset, limit), nil
	}

	sink := target
	if sink == nil {
		sink = plan.NewMaterializedSink()
	}

	switch {
	case sel.IsQuickAggregateQuery:
		err = runQuickAggregate(ctx, sel, sink, offset)
	case sel.IsGroupQuery && sel.IsGroupSortedQuery:
		err = runGroupSorted(ctx, sel, sink)
	case sel.IsGroupQuery:
		err = runHashedGroup(ctx, sel, sink)
	case sel.IsDistinctQuery:
		err = runDistinctScan(ctx, sel, sink, offset, limit)
	default:
		err = runFlat(ctx, sel, sink)
	}
	if err != nil {
		return nil, err
	}

	if !sink.LimitsWereApplied() {
		configureSink(sel, sink, offset, limit)
		if err := sink.Done(ctx); err != nil {
			return nil, err
		}
	}
	if ms, ok := sink.(*plan.MaterializedSink); ok {
		if err := ms.Reset(); err != nil {
			return nil, err
		}
	}
	return sink, nil
}

func configureSink(sel *plan.Select, sink plan.ResultSink, offset, limit int) {
	sink.SetOffset(offset)
	sink.SetLimit(limit)
	sink.SetFetchPercent(sel.FetchPercent)
	sink.SetWithTies(sel.WithTies)
	sink.SetSortOrder(sel.Sort)

	switch {
	case len(sel.DistinctIndexes) > 0:
		sink.SetDistinct(sel.DistinctIndexes)
	case sel.IsDistinct:
		idx := make([]int, sel.DistinctColumnCount)
		for i := range idx {
			idx[i] = i
		}
		sink.SetDistinct(idx)
	}
}

// resolveLimit implements spec.md §4.3's limit resolution: the smaller of
// the caller's maxRows (0 meaning uncapped) and the statement's own
// evaluated LIMIT/FETCH FIRST clause (nil meaning uncapped); a negative
// LIMIT value is treated as uncapped. Returns -1 for "uncapped".
func resolveLimit(ctx *sql.Context, sel *plan.Select, maxRows int) (int, error) {
	limit := -1
	if sel.LimitExpr != nil {
		v, err := sel.LimitExpr.Eval(ctx, nil)
		if err != nil {
			return 0, err
		}
		if !v.IsNull() {
			n := int(v.Int64())
			if n >= 0 {
				limit = n
			}
		}
	}
	if maxRows > 0 && (limit < 0 || maxRows < limit) {
		limit = maxRows
	}
	return limit, nil
}

// resolveOffset evaluates the statement's OFFSET clause, clamping a negative
// result to 0.
func resolveOffset(ctx *sql.Context, sel *plan.Select) (int, error) {
	if sel.OffsetExpr == nil {
		return 0, nil
	}
	v, err := sel.OffsetExpr.Eval(ctx, nil)
	if err != nil {
		return 0, err
	}
	if v.IsNull() {
		return 0, nil
	}
	n := int(v.Int64())
	if n < 0 {
		return 0, nil
	}
	return n, nil
}
