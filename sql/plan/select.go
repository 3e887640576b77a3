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
	"github.com/dolthub/vitess/go/sqltypes"

	"github.com/queryforge/selectcore/sql"
	"github.com/queryforge/selectcore/sql/expression"
)

// Select is the bound-and-prepared state of one SELECT statement (spec.md
// §3, "Select statement state"). Grounded on the teacher's closest
// equivalent — the cluster of plan.GroupBy/plan.Sort/plan.Distinct/
// plan.Limit/plan.Offset/plan.Having/plan.Lock nodes wrapping a
// plan.Project over a plan.Filter — collapsed into a single struct since
// spec.md models one Select owning all of that state directly rather than
// as a wrapped Node tree.
type Select struct {
	Expressions []expression.Expression

	VisibleColumnCount  int
	DistinctColumnCount int

	Filters        []TableFilter
	TopFilters     []TableFilter
	TopTableFilter TableFilter

	Condition expression.Expression

	group             []expression.Expression // pre-binding GROUP BY list; nil after Init
	GroupIndex        []int
	GroupByExpression []bool

	havingExpr  expression.Expression // raw HAVING predicate, appended to Expressions by Init step 7
	HavingIndex int                   // -1 if no HAVING

	DistinctExpressions []expression.Expression
	DistinctIndexes     []int

	// AggregateSlotCount is the width of the group-state vector every
	// strategy allocates per group, assigned by assignAggregateSlots during
	// Init (spec.md §3's exprToIndexInGroupByData).
	AggregateSlotCount int
	aggregateNodes     []expression.Expression

	Sort      *SortOrder
	orderList []OrderByItem // pre-binding ORDER BY list; nil after Prepare

	IsDistinct           bool
	IsGroupQuery         bool
	IsGroupSortedQuery   bool
	IsDistinctQuery      bool
	IsQuickAggregateQuery bool
	IsForUpdate          bool
	IsForUpdateMvcc      bool
	SortUsingIndex       bool
	WithTies             bool
	FetchPercent         bool

	LimitExpr  expression.Expression
	OffsetExpr expression.Expression

	wildcard bool

	initialized bool
	prepared    bool

	snapshotSQLText []string // non-alias SQL text of each visible expr, for match-by-text binding
	planComments    []string // inline optimization comments for PlanSQL (spec.md §4.5)

	// havingConditionAdded records whether AddGlobalCondition has ever
	// spliced a predicate into HAVING; the double-registration bug spec.md
	// §9's Design Notes calls out is avoided by always merging into an
	// already-set HavingIndex rather than by branching on this flag.
	havingConditionAdded bool
}

// NewSelect constructs an empty, uninitialized Select.
func NewSelect() *Select {
	return &Select{HavingIndex: -1}
}

// -- spec.md §6 setters ------------------------------------------------------

func (s *Select) SetExpressions(exprs []expression.Expression) { s.Expressions = exprs }
func (s *Select) SetWildcard(b bool)                            { s.wildcard = b }
func (s *Select) SetGroupBy(exprs []expression.Expression)      { s.group = exprs }

// SetHaving stores the raw HAVING predicate; Init step 7 appends it to
// Expressions and records HavingIndex (spec.md §4.1 step 7).
func (s *Select) SetHaving(expr expression.Expression) { s.havingExpr = expr }
func (s *Select) SetForUpdate(forUpdate, mvcc bool) {
	s.IsForUpdate, s.IsForUpdateMvcc = forUpdate, mvcc
}
func (s *Select) SetDistinct(exprs []expression.Expression) {
	s.IsDistinct = true
	s.DistinctExpressions = exprs
}
func (s *Select) SetOrderBy(items []OrderByItem) { s.orderList = items }
func (s *Select) SetLimit(expr expression.Expression)  { s.LimitExpr = expr }
func (s *Select) SetOffset(expr expression.Expression) { s.OffsetExpr = expr }
func (s *Select) SetFetchPercent(b bool)               { s.FetchPercent = b }
func (s *Select) SetWithTies(b bool)                   { s.WithTies = b }

func (s *Select) AddTableFilter(f TableFilter, isTop bool) {
	s.Filters = append(s.Filters, f)
	if isTop {
		s.TopFilters = append(s.TopFilters, f)
	}
}

func (s *Select) AddCondition(expr expression.Expression) {
	if s.Condition == nil {
		s.Condition = expr
		return
	}
	s.Condition = expression.NewAnd(s.Condition, expr)
}

// GetColumnCount returns the column count exposed to the caller.
func (s *Select) GetColumnCount() int { return s.VisibleColumnCount }

func (s *Select) GetTables() []TableFilter { return s.Filters }

func (s *Select) GetSortOrder() *SortOrder { return s.Sort }

func (s *Select) IsCacheable() bool {
	return !s.IsForUpdate
}

func (s *Select) IsReadOnly() bool { return !s.IsForUpdate }

// MapColumns rebinds every expression through resolver at the given nesting
// level (spec.md §6 surface method, reused internally by Init step 10).
func (s *Select) MapColumns(resolver expression.ColumnResolver, level int) {
	for i, e := range s.Expressions {
		s.Expressions[i] = e.MapColumns(resolver, level)
	}
	if s.Condition != nil {
		s.Condition = s.Condition.MapColumns(resolver, level)
	}
}

func (s *Select) SetEvaluatable(filter int, evaluatable bool) {
	if s.Condition != nil {
		s.Condition.SetEvaluatable(filter, evaluatable)
	}
}

// UpdateAggregate feeds one row into every distinct aggregate node reachable
// from Expressions (spec.md §4.3), deduplicated so an aggregate instance
// referenced from more than one place — e.g. AddGlobalCondition splicing a
// predicate that reuses an existing projection aggregate — is only updated
// once per row.
func (s *Select) UpdateAggregate(ctx *sql.Context, gctx *expression.AggContext, row sql.Row) error {
	for _, e := range s.aggregateNodes {
		if err := e.UpdateAggregate(ctx, gctx, row); err != nil {
			return err
		}
	}
	return nil
}

// addOptimizationComment records a PlanSQL inline comment (spec.md §4.5 /
// SPEC_FULL.md §10, "Plan-printer optimization comments").
func (s *Select) addOptimizationComment(c string) {
	s.planComments = append(s.planComments, c)
}

// -- addGlobalCondition (spec.md §4.6) ---------------------------------------

// CompareType enumerates the comparison operators addGlobalCondition can
// splice in, mirroring spec.md §6's `addGlobalCondition(param, colId, cmpType)`.
type CompareType int

const (
	CompareEqualTo CompareType = iota
	CompareNotEqualTo
)

// AddGlobalCondition splices a parameterized predicate onto one projection
// column (spec.md §4.6). If the column is not group-comparable, a
// tautological null-safe self-equality keeps the parameter bound without
// changing the result. Re-entrant calls merge into the existing HavingIndex
// slot instead of appending a second copy, avoiding the double-registration
// bug spec.md §9's Design Notes calls out explicitly.
func (s *Select) AddGlobalCondition(ctx *sql.Context, param expression.Expression, colID int, cmp CompareType) error {
	if colID < 0 || colID >= len(s.Expressions) {
		return nil
	}
	col := s.Expressions[colID]

	// A column that is or contains an aggregate cannot be compared directly
	// to param before grouping collapses its rows into one — whether it
	// happens to be a group-by key is irrelevant to that; only its
	// structural shape is. Splice a tautological null-safe self-equality
	// in that case so the parameter is still bound without changing the
	// result.
	groupComparable := !containsAggregate(col)
	var predicate expression.Expression
	if !groupComparable {
		predicate = expression.NewNullSafeEquals(col, col)
	} else if cmp == CompareNotEqualTo {
		predicate = expression.NewNot(expression.NewEquals(col, param))
	} else {
		predicate = expression.NewEquals(col, param)
	}

	isGroupKey := s.GroupByExpression != nil && colID < len(s.GroupByExpression) && s.GroupByExpression[colID]
	if s.IsGroupQuery && !isGroupKey {
		if s.HavingIndex >= 0 {
			// HavingIndex already names a slot, whether from the statement's
			// own HAVING clause or an earlier AddGlobalCondition call: AND the
			// new predicate into it instead of appending a second copy.
			s.Expressions[s.HavingIndex] = expression.NewAnd(s.Expressions[s.HavingIndex], predicate)
		} else {
			s.Expressions = append(s.Expressions, predicate)
			s.HavingIndex = len(s.Expressions) - 1
		}
		s.havingConditionAdded = true
		return nil
	}
	s.AddCondition(predicate)
	return nil
}

// GlobalConditionParam converts a wire-level bind value — as an external
// driver rewriting a parameterized view or prepared statement would hold
// one (spec.md §4.6) — into the literal expression AddGlobalCondition
// expects. Grounded on the teacher's Engine.bindingsToExprs in engine.go,
// which performs the same sqltypes.Value-to-expression conversion at the
// same kind of boundary (binding a driver-supplied parameter before it
// reaches the plan).
func GlobalConditionParam(v sqltypes.Value) (expression.Expression, error) {
	val, err := sql.FromSQLTypesValue(v)
	if err != nil {
		return nil, err
	}
	return expression.NewLiteral(val), nil
}
