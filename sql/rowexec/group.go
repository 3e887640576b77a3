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

// groupKeyOf evaluates the GROUP BY expressions against row, producing the
// composite key the group-state store hashes on (spec.md §3).
func groupKeyOf(ctx *sql.Context, sel *plan.Select, row sql.Row) (sql.ValueArray, error) {
	if len(sel.GroupIndex) == 0 {
		return sql.ValueArray{}, nil
	}
	key := make(sql.ValueArray, len(sel.GroupIndex))
	for i, idx := range sel.GroupIndex {
		v, err := sel.Expressions[idx].Eval(ctx, row)
		if err != nil {
			return nil, err
		}
		key[i] = v
	}
	return key, nil
}

func groupPosOf(sel *plan.Select, exprIndex int) (int, bool) {
	for pos, idx := range sel.GroupIndex {
		if idx == exprIndex {
			return pos, true
		}
	}
	return 0, false
}

// updateNonKeyAggregates feeds row into every distinct aggregate reachable
// from the projection and HAVING (spec.md §4.3, "for each non-key
// expression, call update_aggregate"); Select.UpdateAggregate already
// dedupes by instance, so an AddGlobalCondition predicate that reuses an
// existing projection aggregate doesn't double-count a row.
func updateNonKeyAggregates(ctx *sql.Context, sel *plan.Select, gctx *expression.AggContext, row sql.Row) error {
	return sel.UpdateAggregate(ctx, gctx, row)
}

// buildGroupRow projects one finished group's output row: key expressions
// read straight from the key, everything GroupAware reads out of state, and
// HAVING (if present) is checked last, against the full (not yet
// distinct-trimmed) row (spec.md §4.3, §4.1 step 7).
func buildGroupRow(ctx *sql.Context, sel *plan.Select, key sql.ValueArray, state []interface{}) (sql.Row, bool, error) {
	gctx := &expression.AggContext{CurrentGroupState: state, CurrentGroupKey: key}
	row := make(sql.Row, len(sel.Expressions))
	for i, e := range sel.Expressions {
		if pos, ok := groupPosOf(sel, i); ok {
			row[i] = key[pos]
			continue
		}
		if ga, ok := e.(expression.GroupAware); ok {
			// row, not nil: a composite GroupAware expression (HAVING's
			// Comparison, now that it propagates EvalGrouped) may contain a
			// non-aggregate child — e.g. a GetField referencing a GROUP BY
			// key column already filled in earlier in this same loop — that
			// needs the being-built row to resolve against, the same way
			// the plain-Eval fallback below does.
			v, err := ga.EvalGrouped(ctx, row, gctx)
			if err != nil {
				return nil, false, err
			}
			row[i] = v
			continue
		}
		v, err := e.Eval(ctx, row)
		if err != nil {
			return nil, false, err
		}
		row[i] = v
	}
	if sel.HavingIndex >= 0 {
		// row[HavingIndex] was already computed above through the same
		// GroupAware-or-Eval dispatch as every other column, so HAVING sees
		// exactly what the caller would see in the output row; but HAVING's
		// own predicate, if it embeds an aggregate (e.g. a HAVING clause
		// reusing the same SUM(b) instance as the projection, or an
		// AddGlobalCondition-spliced predicate), must be read the same way.
		v := row[sel.HavingIndex]
		if v.IsNull() || v.Kind() != sql.KindBool || !v.Bool() {
			return nil, false, nil
		}
	}
	if len(row) > sel.DistinctColumnCount {
		row = row[:sel.DistinctColumnCount]
	}
	return row, true, nil
}

// runHashedGroup implements spec.md §4.3's hashed-grouping strategy: scan
// the top filter once, fold every row into its group's state vector via the
// arena+index store, then emit every group (HAVING-filtered) in whatever
// order the arena happened to fill in. Grounded on the teacher's
// group_by_iter.go buffer-per-key loop, replacing its map-of-buffers with
// groupStore's arena+index indirection.
func runHashedGroup(ctx *sql.Context, sel *plan.Select, sink plan.ResultSink) error {
	store := newGroupStore()
	width := sel.AggregateSlotCount
	var rowID int64

	f := sel.TopTableFilter
	for {
		row, err := f.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if sel.Condition != nil {
			ok, err := sel.Condition.BooleanValue(ctx, row)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
		}
		key, err := groupKeyOf(ctx, sel, row)
		if err != nil {
			return err
		}
		entry := store.getOrCreate(key, width)
		rowID++
		gctx := &expression.AggContext{CurrentGroupState: entry.state, CurrentGroupRowID: rowID, CurrentGroupKey: key}
		if err := updateNonKeyAggregates(ctx, sel, gctx, row); err != nil {
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

	if store.len() == 0 && len(sel.GroupIndex) == 0 {
		// A bare aggregate with no GROUP BY and no input rows still produces
		// one group (COUNT(*) = 0, SUM = NULL, etc).
		store.getOrCreate(sql.ValueArray{}, width)
	}

	return store.each(func(entry *groupEntry) error {
		outRow, ok, err := buildGroupRow(ctx, sel, entry.key, entry.state)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		return sink.AddRow(outRow)
	})
}

// runGroupSorted implements spec.md §4.3's sorted-grouping strategy: the top
// filter's index already delivers rows in group-key order, so at most one
// group's state is ever live at a time. Grounded on the teacher's
// group_by.go "GroupByStreaming" variant.
func runGroupSorted(ctx *sql.Context, sel *plan.Select, sink plan.ResultSink) error {
	f := sel.TopTableFilter
	width := sel.AggregateSlotCount

	var pendingKey sql.ValueArray
	var pendingState []interface{}
	have := false
	var rowID int64

	flush := func() error {
		if !have {
			return nil
		}
		outRow, ok, err := buildGroupRow(ctx, sel, pendingKey, pendingState)
		if err != nil {
			return err
		}
		if ok {
			return sink.AddRow(outRow)
		}
		return nil
	}

	for {
		row, err := f.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if sel.Condition != nil {
			ok, err := sel.Condition.BooleanValue(ctx, row)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
		}
		key, err := groupKeyOf(ctx, sel, row)
		if err != nil {
			return err
		}
		if !have || !sameKey(pendingKey, key) {
			if err := flush(); err != nil {
				return err
			}
			pendingKey = key
			pendingState = make([]interface{}, width)
			have = true
			rowID = 0
		}
		rowID++
		gctx := &expression.AggContext{CurrentGroupState: pendingState, CurrentGroupRowID: rowID, CurrentGroupKey: key}
		if err := updateNonKeyAggregates(ctx, sel, gctx, row); err != nil {
			return err
		}
		ctx.IncrementRowCount()
		if ctx.Aborted() {
			return sql.ErrQueryAborted.New()
		}
	}
	return flush()
}
