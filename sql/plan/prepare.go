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

package plan

import (
	"fmt"

	"github.com/queryforge/selectcore/sql"
	"github.com/queryforge/selectcore/sql/expression"
)

const distinctSelectivityThreshold = 20

// Prepare plans the statement: sort-order construction, name allocation,
// optimization, quick-aggregate/distinct-fast-path/sort-by-index/
// group-sorted access-path selection (spec.md §4.2). Requires Init to have
// already run; a second call after a successful Prepare is a no-op.
func (s *Select) Prepare(ctx *sql.Context) error {
	if !s.initialized {
		return sql.ErrPrepareBeforeInit.New()
	}
	if s.prepared {
		return nil
	}
	span, ctx := ctx.Span("plan.Select.Prepare")
	defer span.Finish()

	// Step 1: build the concrete sort order, then drop orderList.
	if len(s.orderList) > 0 {
		order := &SortOrder{}
		for _, item := range s.orderList {
			order.Columns = append(order.Columns, item.ResolvedIndex)
			order.Desc = append(order.Desc, item.Desc)
			order.NullsFirst = append(order.NullsFirst, item.NullsFirst)
		}
		s.Sort = order
	}
	s.orderList = nil

	// Step 2: allocate collision-free output names, then optimize.
	s.allocateColumnNames()
	for i, e := range s.Expressions {
		s.Expressions[i] = e.Optimize(ctx)
	}

	// Step 3: optimize WHERE; push index conditions to eligible filters.
	if s.Condition != nil {
		s.Condition = s.Condition.Optimize(ctx)
	}
	for _, f := range s.Filters {
		if f.IsJoinOuter() || f.IsJoinOuterIndirect() {
			continue
		}
		if err := f.Prepare(ctx); err != nil {
			return err
		}
	}

	// Step 4: detect quick aggregate.
	s.detectQuickAggregate(ctx)

	// Step 5: resolve the top table filter from the join-optimizer's output
	// (an external collaborator, spec.md §1; this core only consumes the
	// ordered chain it produces).
	if len(s.TopFilters) > 0 {
		s.TopTableFilter = s.TopFilters[0]
	}
	s.propagateEvaluability()

	// Step 6: distinct fast-path.
	s.prepareDistinctFastPath(ctx)

	// Step 7: sort-by-index.
	if !s.IsGroupQuery && !s.IsQuickAggregateQuery {
		s.prepareSortByIndex(ctx)
	}

	// Step 8: group-sorted.
	if s.IsGroupQuery && len(s.GroupIndex) > 0 {
		s.prepareGroupSorted(ctx)
	}

	s.prepared = true
	ctx.GetLogger().Tracef("plan.Select.Prepare: quickAgg=%v distinct=%v groupSorted=%v sortUsingIndex=%v",
		s.IsQuickAggregateQuery, s.IsDistinctQuery, s.IsGroupSortedQuery, s.SortUsingIndex)
	return nil
}

// allocateColumnNames implements spec.md §4.2 step 2: each visible
// expression gets a unique derived name, wrapping it in an Alias when the
// allocated name differs from its natural one.
func (s *Select) allocateColumnNames() {
	used := map[string]int{}
	for i := 0; i < s.VisibleColumnCount; i++ {
		e := s.Expressions[i]
		name := e.Alias()
		if name == "" {
			name = e.SQLText()
		}
		n := used[name]
		used[name]++
		final := name
		if n > 0 {
			final = fmt.Sprintf("%s_%d", name, n)
		}
		if final != e.Alias() {
			s.Expressions[i] = expression.NewAlias(final, e)
		}
	}
}

// detectQuickAggregate implements spec.md §4.2 step 4: single filter, no
// WHERE, no GROUP BY, no HAVING. Note this checks len(s.GroupIndex) rather
// than s.IsGroupQuery: Init sets IsGroupQuery for a bare "SELECT COUNT(*)
// FROM t" too (one implicit whole-table group, no GROUP BY clause) — exactly
// the shape this step exists to serve — and only GroupIndex distinguishes
// that case from a real "GROUP BY" query, which this step must still reject.
func (s *Select) detectQuickAggregate(ctx *sql.Context) {
	if len(s.Filters) != 1 || s.Condition != nil || len(s.GroupIndex) > 0 || s.HavingIndex >= 0 {
		return
	}
	f := s.Filters[0]
	for i := 0; i < s.VisibleColumnCount; i++ {
		if !isDirectLookupOptimizable(ctx, s.Expressions[i], f) {
			return
		}
	}
	s.IsQuickAggregateQuery = true
	s.addOptimizationComment("direct lookup")
	ctx.GetLogger().Trace("plan.Select.Prepare: quick-aggregate path selected")
}

// quickAggregateCount is the structural capability aggregation.Count's
// IsRowCountAggregate exposes; checked without this package importing the
// aggregation package, the same convention slotAssignable follows.
type quickAggregateCount interface {
	IsRowCountAggregate() bool
}

// quickAggregateExtreme is the structural capability aggregation.Extreme's
// QuickAggregateColumn exposes.
type quickAggregateExtreme interface {
	QuickAggregateColumn() (name string, isMin bool, ok bool)
}

// isDirectLookupOptimizable reports whether expr can be answered from
// table/index metadata without scanning a row — a bare COUNT(*) from the
// table's row count, or a MIN/MAX over a plain column from an ascending
// index's first/last key (spec.md §4.2 step 4). SUM/AVG/GROUP_CONCAT and
// COUNT(col)/COUNT(DISTINCT ...) are never answerable this way and
// correctly fall through to false, since they satisfy neither structural
// capability below. expr is unwrapped via NonAlias() since
// Select.allocateColumnNames (step 2) runs before this check (step 4) and
// will already have wrapped a bare aggregate whose Alias() is empty.
func isDirectLookupOptimizable(ctx *sql.Context, expr expression.Expression, f TableFilter) bool {
	e := expr.NonAlias()
	if rc, ok := e.(quickAggregateCount); ok {
		if !rc.IsRowCountAggregate() {
			return false
		}
		_, supported := f.RowCount(ctx)
		return supported
	}
	if ex, ok := e.(quickAggregateExtreme); ok {
		name, _, valid := ex.QuickAggregateColumn()
		if !valid {
			return false
		}
		idx := f.GetIndex()
		if idx == nil {
			return false
		}
		cols := idx.IndexColumns()
		return len(cols) > 0 && cols[0].Name == name && !cols[0].Desc
	}
	return false
}

// propagateEvaluability marks the WHERE condition evaluatable for every
// filter (spec.md §4.2 step 5). Nested join conditions are not lifted into
// the main WHERE: a filter with a non-outer nested join is skipped, and its
// join condition stays with the nested join.
func (s *Select) propagateEvaluability() {
	for i, f := range s.Filters {
		if s.Condition != nil {
			s.Condition.SetEvaluatable(i, true)
		}
		if nested := f.GetNestedJoin(); nested != nil && !f.IsJoinOuter() {
			// The nested join's own condition is opaque to this package
			// (owned by the join optimizer); lifting it means this filter's
			// evaluability is marked true for the parent WHERE, allowing the
			// optimizer's pushdown to have already done the work.
			continue
		}
	}
}

// prepareDistinctFastPath implements spec.md §4.2 step 6, supplemented with
// the covering-index preference noted in SPEC_FULL.md §10.
func (s *Select) prepareDistinctFastPath(ctx *sql.Context) {
	if !s.IsDistinct || s.IsGroupQuery || s.Condition != nil {
		return
	}
	if s.DistinctColumnCount-s.VisibleColumnCount != 0 && len(s.DistinctIndexes) != 1 {
		return
	}
	if s.VisibleColumnCount != 1 || len(s.Filters) != 1 {
		return
	}
	gf, ok := s.Expressions[0].NonAlias().(*expression.GetField)
	if !ok {
		return
	}
	f := s.Filters[0]

	var best Index
	for _, candidate := range candidateIndexesFor(f) {
		t := candidate.Type()
		if t.IsHash || (t.IsUnique && len(candidate.Columns()) == 1) {
			continue
		}
		cols := candidate.IndexColumns()
		if len(cols) == 0 || cols[0].Desc {
			continue
		}
		if cols[0].Name != gf.Name {
			continue
		}
		if best == nil || len(candidate.Columns()) > len(best.Columns()) {
			best = candidate
		}
	}
	if best == nil {
		return
	}
	f.SetIndex(best)
	s.IsDistinctQuery = true
	s.addOptimizationComment("distinct")
	ctx.GetLogger().Trace("plan.Select.Prepare: distinct single-column index scan selected")
}

// candidateIndexesFor returns the indexes available for fast-path
// selection; this core only ever sees the one currently installed on the
// filter (index enumeration/catalog lookup is an external collaborator per
// spec.md §1), so a one-element slice is the opaque stand-in.
func candidateIndexesFor(f TableFilter) []Index {
	if idx := f.GetIndex(); idx != nil {
		return []Index{idx}
	}
	return nil
}

// prepareSortByIndex implements spec.md §4.2 step 7.
func (s *Select) prepareSortByIndex(ctx *sql.Context) {
	if s.Sort == nil || len(s.Filters) == 0 {
		return
	}
	f := s.Filters[0]
	if f.HasInComparisons() {
		return
	}
	idx := f.GetIndex()
	if idx == nil {
		return
	}
	cols := idx.IndexColumns()
	colOf := func(name string) (int, bool) {
		for i := 0; i < s.VisibleColumnCount; i++ {
			if gf, ok := s.Expressions[i].NonAlias().(*expression.GetField); ok && gf.Name == name {
				return i, true
			}
		}
		return 0, false
	}
	if s.Sort.MatchesIndexPrefix(cols, colOf) {
		s.SortUsingIndex = true
		s.addOptimizationComment("index sorted")
		ctx.GetLogger().Trace("plan.Select.Prepare: existing index already satisfies ORDER BY")
		return
	}
	for _, candidate := range candidateIndexesFor(f) {
		if candidate.Type().IsScan {
			continue
		}
		candCols := candidate.IndexColumns()
		if len(candCols) < len(cols) {
			continue
		}
		if s.Sort.MatchesIndexPrefix(candCols, colOf) {
			f.SetIndex(candidate)
			s.SortUsingIndex = true
			s.addOptimizationComment("index sorted")
			ctx.GetLogger().Trace("plan.Select.Prepare: swapped to index matching ORDER BY prefix")
			return
		}
	}
}

// prepareGroupSorted implements spec.md §4.2 step 8.
func (s *Select) prepareGroupSorted(ctx *sql.Context) {
	if len(s.Filters) == 0 {
		return
	}
	f := s.Filters[0]
	idx := f.GetIndex()
	if idx == nil {
		return
	}
	cols := idx.IndexColumns()
	groupColNames := make(map[string]bool, len(s.GroupIndex))
	for _, gi := range s.GroupIndex {
		if gf, ok := s.Expressions[gi].NonAlias().(*expression.GetField); ok {
			groupColNames[gf.Name] = true
		}
	}
	if len(groupColNames) != len(s.GroupIndex) {
		return
	}
	if len(cols) < len(groupColNames) {
		return
	}
	for i := 0; i < len(groupColNames); i++ {
		if !groupColNames[cols[i].Name] {
			return
		}
	}
	s.IsGroupSortedQuery = true
	s.addOptimizationComment("group sorted")
	ctx.GetLogger().Trace("plan.Select.Prepare: group-sorted execution selected")
}
