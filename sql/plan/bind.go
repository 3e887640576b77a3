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
	"strings"

	"github.com/queryforge/selectcore/sql"
	"github.com/queryforge/selectcore/sql/expression"
)

// identEqual implements the "identifier-aware SQL comparison" spec.md §4.1
// asks for, honoring the Settings.IdentifiersCaseSensitive knob (spec.md §6).
func identEqual(ctx *sql.Context, a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if ctx.GetSettings().IdentifiersCaseSensitive {
		return a == b
	}
	return strings.EqualFold(a, b)
}

// containsAggregate reports whether expr is, or contains, a genuine
// aggregate leaf (one that owns a group-state slot) — the signal this core
// uses in place of a dedicated "is this an Aggregate" visitor (spec.md §9,
// "Expression polymorphism"). Checked via slotAssignable rather than
// expression.GroupAware: Comparison/Logic/IsNull/Alias all implement
// GroupAware too, purely to propagate EvalGrouped down to a child that
// might be an aggregate, and are not themselves aggregates.
func containsAggregate(e expression.Expression) bool {
	if _, ok := e.(slotAssignable); ok {
		return true
	}
	for _, c := range e.Children() {
		if containsAggregate(c) {
			return true
		}
	}
	return false
}

// findOrAppendExpr implements the match-or-append policy spec.md §4.1
// steps 4 and 5 share: match expr's non-alias SQL text against already
// snapshotted visible expressions, then fall back to an alias match (the
// "ORDER BY alias" / "DISTINCT ON alias" case), appending when neither
// matches.
func (s *Select) findOrAppendExpr(ctx *sql.Context, expr expression.Expression) int {
	text := expr.NonAlias().SQLText()
	for i, snap := range s.snapshotSQLText {
		if snap == text {
			return i
		}
	}
	if gf, ok := expr.NonAlias().(*expression.GetField); ok {
		for i := 0; i < s.VisibleColumnCount; i++ {
			if identEqual(ctx, s.Expressions[i].Alias(), gf.Name) {
				return i
			}
		}
	}
	s.Expressions = append(s.Expressions, expr)
	return len(s.Expressions) - 1
}

// compositeResolver resolves a column reference against the Select's
// TableFilters in FROM-clause order, offsetting each filter's local column
// index by the running width of the filters before it — the Go-native
// stand-in for the cyclic expression↔filter graph spec.md §9's Design
// Notes ask to model as non-owning index lookups.
type compositeResolver struct {
	ctx     *sql.Context
	filters []TableFilter
}

func (r *compositeResolver) ResolveColumn(table, name string) (int, sql.Kind, bool) {
	offset := 0
	for _, f := range r.filters {
		schema := f.Schema()
		if table == "" || identEqual(r.ctx, f.Alias(), table) {
			for i, col := range schema {
				if identEqual(r.ctx, col.Name, name) {
					return offset + i, col.Kind, true
				}
			}
		}
		offset += len(schema)
	}
	return 0, sql.KindNull, false
}

// projectionResolver lets HAVING resolve against the Select's own
// projection list before falling back to the underlying table columns
// (spec.md §4.1 step 10, "a resolver that treats the projection list
// itself as a column source").
type projectionResolver struct {
	ctx      *sql.Context
	sel      *Select
	fallback expression.ColumnResolver
}

func (r *projectionResolver) ResolveColumn(table, name string) (int, sql.Kind, bool) {
	if table == "" {
		for i := 0; i < r.sel.VisibleColumnCount; i++ {
			e := r.sel.Expressions[i]
			if identEqual(r.ctx, e.Alias(), name) {
				return i, kindOf(e), true
			}
			if gf, ok := e.NonAlias().(*expression.GetField); ok && identEqual(r.ctx, gf.Name, name) {
				return i, gf.Kind, true
			}
		}
	}
	if r.fallback != nil {
		return r.fallback.ResolveColumn(table, name)
	}
	return 0, sql.KindNull, false
}

// slotAssignable is the structural capability aggregation.Aggregation
// exposes (Slot/SetSlot) without this package importing the aggregation
// package directly — plan only needs to know an expression owns a
// group-state slot, not what kind of aggregate it is.
type slotAssignable interface {
	SetSlot(i int)
}

// assignAggregateSlots walks every expression reachable from Expressions —
// recursing into Children(), since HAVING's aggregate is bound as its own,
// independently-constructed instance even when it sums the same column as a
// SELECT-list aggregate (spec.md §4.1 step 10's projectionResolver matches
// column names, not whole aggregate subtrees) — assigning each distinct
// aggregate node found a unique, sequential slot in the group-state vector
// (spec.md §3's exprToIndexInGroupByData), and recording the deduplicated
// list in aggregateNodes so the executor can feed each one exactly one
// UpdateState call per row regardless of how many top-level expressions
// happen to reference it (AddGlobalCondition splices a predicate that
// reuses an existing projection aggregate's own instance rather than
// binding a fresh one). Run once, at the end of Init, after MapColumns has
// produced the final bound expression tree.
func (s *Select) assignAggregateSlots() {
	next := 0
	seen := map[expression.Expression]bool{}
	var walk func(e expression.Expression)
	walk = func(e expression.Expression) {
		if sa, ok := e.(slotAssignable); ok && !seen[e] {
			seen[e] = true
			sa.SetSlot(next)
			next++
			s.aggregateNodes = append(s.aggregateNodes, e)
		}
		for _, c := range e.Children() {
			walk(c)
		}
	}
	for _, e := range s.Expressions {
		walk(e)
	}
	s.AggregateSlotCount = next
}

func kindOf(e expression.Expression) sql.Kind {
	if gf, ok := e.NonAlias().(*expression.GetField); ok {
		return gf.Kind
	}
	return sql.KindNull
}
