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

// Package aggregation implements the concrete Aggregation expressions —
// COUNT, SUM, AVG, MIN, MAX, GROUP_CONCAT — that exercise the group-state
// store's arena+index protocol (spec.md §3, §9). Grounded on the teacher's
// sql/expression/function/aggregation package, whose
// NewBuffer()/Update(ctx,row)/Merge(ctx,other)/Eval(ctx) buffer idiom maps
// directly onto the "explicit execution context... arena+index pattern"
// spec.md §9's Design Notes recommend in place of the source's shared map.
package aggregation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/queryforge/selectcore/sql"
	"github.com/queryforge/selectcore/sql/expression"
)

// Aggregation is an Expression that also owns a slot in the group-state
// vector (spec.md §3's exprToIndexInGroupByData / group-state vector) and
// knows how to seed, fold in a row, merge two partial states (needed when
// growth rebinds a vector, or when a quick-aggregate path wants to combine
// partition-local results), and read out a final value.
type Aggregation interface {
	expression.Expression

	// NewState returns a fresh per-group accumulator, stored at Slot() in
	// the group's state vector the first time a group is seen.
	NewState() interface{}
	// UpdateState folds one input row into state, returning the (possibly
	// new, e.g. if state grows) accumulator.
	UpdateState(ctx *sql.Context, state interface{}, row sql.Row) (interface{}, error)
	// MergeState combines two partial accumulators.
	MergeState(ctx *sql.Context, state, other interface{}) (interface{}, error)
	// EvalState reads the final value out of an accumulator.
	EvalState(ctx *sql.Context, state interface{}) (sql.Value, error)

	Slot() int
	SetSlot(i int)
}

// aggBase is embedded by every concrete aggregation below; it carries the
// group-state slot spec.md §3's exprToIndexInGroupByData assigns at the end
// of Select.Init, and the introspection methods with one obvious answer.
type aggBase struct {
	slot int
}

func (a *aggBase) Slot() int     { return a.slot }
func (a *aggBase) SetSlot(i int) { a.slot = i }

func (a *aggBase) SetEvaluatable(int, bool) {}
func (a *aggBase) IsWildcard() bool         { return false }
func (a *aggBase) IsConstant() bool         { return false }
func (a *aggBase) Resolved() bool           { return true }

// updateAggregateSlot implements the UpdateAggregate half of
// expression.Expression for any Aggregation: it is called once per input
// row during hashed- or sorted-group execution, after the executor has
// pointed gctx.CurrentGroupState at the active group's vector, which it
// sizes to the statement's AggregateSlotCount so every slot is in range.
func updateAggregateSlot(ctx *sql.Context, gctx *expression.AggContext, row sql.Row, slot int, a Aggregation) error {
	if gctx.CurrentGroupState[slot] == nil {
		gctx.CurrentGroupState[slot] = a.NewState()
	}
	next, err := a.UpdateState(ctx, gctx.CurrentGroupState[slot], row)
	if err != nil {
		return err
	}
	gctx.CurrentGroupState[slot] = next
	return nil
}

// evalGroupedSlot implements expression.GroupAware for any Aggregation:
// during group emission the executor calls this instead of Eval, since the
// aggregate's value lives in the group's state vector, not in any single
// input row.
func evalGroupedSlot(ctx *sql.Context, gctx *expression.AggContext, slot int, a Aggregation) (sql.Value, error) {
	state := gctx.CurrentGroupState[slot]
	if state == nil {
		state = a.NewState()
	}
	return a.EvalState(ctx, state)
}

// -- Count -------------------------------------------------------------

type Count struct {
	aggBase
	Child    expression.Expression
	Distinct bool
}

func NewCount(ctx *sql.Context, child expression.Expression) *Count {
	c := &Count{Child: child}
	return c
}

func NewCountDistinct(child expression.Expression) *Count {
	c := &Count{Child: child, Distinct: true}
	return c
}

func (c *Count) String() string {
	if c.Distinct {
		return fmt.Sprintf("COUNT(DISTINCT %s)", c.Child)
	}
	return fmt.Sprintf("COUNT(%s)", c.Child)
}

// IsRowCountAggregate reports whether c is a bare, non-DISTINCT COUNT(*) —
// the one shape answerable from a table's row-count metadata alone, without
// scanning a row (spec.md §4.2 step 4). COUNT(col) is not, even when col
// happens to be NOT NULL, since that fact isn't metadata this core's
// TableFilter contract exposes; COUNT(DISTINCT ...) never is.
func (c *Count) IsRowCountAggregate() bool {
	if c.Distinct {
		return false
	}
	_, ok := c.Child.(*expression.Star)
	return ok
}

func (c *Count) NewState() interface{} {
	if c.Distinct {
		return &countDistinctState{seen: map[string]struct{}{}}
	}
	var n int64
	return &n
}

type countDistinctState struct {
	seen map[string]struct{}
}

func (c *Count) UpdateState(ctx *sql.Context, state interface{}, row sql.Row) (interface{}, error) {
	if _, isStar := c.Child.(*expression.Star); !isStar {
		v, err := c.Child.Eval(ctx, row)
		if err != nil {
			return state, err
		}
		if v.IsNull() {
			return state, nil
		}
		if c.Distinct {
			st := state.(*countDistinctState)
			st.seen[v.String()] = struct{}{}
			return st, nil
		}
	} else if c.Distinct {
		// COUNT(DISTINCT *) keys on the whole row.
		st := state.(*countDistinctState)
		key := sql.ValueArray(row).Encode()
		st.seen[key] = struct{}{}
		return st, nil
	}
	n := state.(*int64)
	*n++
	return n, nil
}

func (c *Count) MergeState(ctx *sql.Context, state, other interface{}) (interface{}, error) {
	if c.Distinct {
		a, b := state.(*countDistinctState), other.(*countDistinctState)
		for k := range b.seen {
			a.seen[k] = struct{}{}
		}
		return a, nil
	}
	a, b := state.(*int64), other.(*int64)
	*a += *b
	return a, nil
}

func (c *Count) EvalState(ctx *sql.Context, state interface{}) (sql.Value, error) {
	if c.Distinct {
		return sql.Int64Value(int64(len(state.(*countDistinctState).seen))), nil
	}
	return sql.Int64Value(*state.(*int64)), nil
}

func (c *Count) Eval(ctx *sql.Context, row sql.Row) (sql.Value, error) {
	return sql.Value{}, fmt.Errorf("aggregation.Count: must be evaluated through the group-state store, not directly")
}
func (c *Count) BooleanValue(ctx *sql.Context, row sql.Row) (bool, error) { return false, nil }
func (c *Count) UpdateAggregate(ctx *sql.Context, gctx *expression.AggContext, row sql.Row) error {
	return updateAggregateSlot(ctx, gctx, row, c.slot, c)
}
func (c *Count) EvalGrouped(ctx *sql.Context, row sql.Row, gctx *expression.AggContext) (sql.Value, error) {
	return evalGroupedSlot(ctx, gctx, c.slot, c)
}
func (c *Count) Optimize(*sql.Context) expression.Expression { return c }
func (c *Count) MapColumns(r expression.ColumnResolver, level int) expression.Expression {
	return &Count{Child: c.Child.MapColumns(r, level), Distinct: c.Distinct}
}
func (c *Count) NonAlias() expression.Expression { return c }
func (c *Count) SQLText() string                 { return c.String() }
func (c *Count) Alias() string                   { return "" }
func (c *Count) Children() []expression.Expression { return []expression.Expression{c.Child} }
func (c *Count) WithChildren(ch ...expression.Expression) (expression.Expression, error) {
	if len(ch) != 1 {
		return nil, fmt.Errorf("aggregation.Count: 1 child expected, got %d", len(ch))
	}
	return &Count{Child: ch[0], Distinct: c.Distinct, aggBase: aggBase{slot: c.slot}}, nil
}

// -- Sum -----------------------------------------------------------------

type Sum struct {
	aggBase
	Child expression.Expression
}

func NewSum(ctx *sql.Context, child expression.Expression) *Sum {
	s := &Sum{Child: child}
	return s
}

func (s *Sum) String() string { return fmt.Sprintf("SUM(%s)", s.Child) }

type sumState struct {
	total decimal.Decimal
	any   bool
}

func (s *Sum) NewState() interface{} { return &sumState{} }

func (s *Sum) UpdateState(ctx *sql.Context, state interface{}, row sql.Row) (interface{}, error) {
	st := state.(*sumState)
	v, err := s.Child.Eval(ctx, row)
	if err != nil {
		return st, err
	}
	if v.IsNull() {
		return st, nil
	}
	st.total = st.total.Add(toDecimal(v))
	st.any = true
	return st, nil
}

func (s *Sum) MergeState(ctx *sql.Context, state, other interface{}) (interface{}, error) {
	a, b := state.(*sumState), other.(*sumState)
	a.total = a.total.Add(b.total)
	a.any = a.any || b.any
	return a, nil
}

func (s *Sum) EvalState(ctx *sql.Context, state interface{}) (sql.Value, error) {
	st := state.(*sumState)
	if !st.any {
		return sql.NullValue(), nil
	}
	return sql.DecimalValue(st.total), nil
}

func toDecimal(v sql.Value) decimal.Decimal {
	switch v.Kind() {
	case sql.KindDecimal:
		return v.Decimal()
	case sql.KindInt64:
		return decimal.NewFromInt(v.Int64())
	case sql.KindUint64:
		return decimal.NewFromInt(int64(v.Uint64()))
	case sql.KindFloat64:
		return decimal.NewFromFloat(v.Float64())
	default:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Zero
		}
		return d
	}
}

func (s *Sum) Eval(ctx *sql.Context, row sql.Row) (sql.Value, error) {
	return sql.Value{}, fmt.Errorf("aggregation.Sum: must be evaluated through the group-state store, not directly")
}
func (s *Sum) BooleanValue(ctx *sql.Context, row sql.Row) (bool, error) { return false, nil }
func (s *Sum) UpdateAggregate(ctx *sql.Context, gctx *expression.AggContext, row sql.Row) error {
	return updateAggregateSlot(ctx, gctx, row, s.slot, s)
}
func (s *Sum) EvalGrouped(ctx *sql.Context, row sql.Row, gctx *expression.AggContext) (sql.Value, error) {
	return evalGroupedSlot(ctx, gctx, s.slot, s)
}
func (s *Sum) Optimize(*sql.Context) expression.Expression { return s }
func (s *Sum) MapColumns(r expression.ColumnResolver, level int) expression.Expression {
	return NewSum(nil, s.Child.MapColumns(r, level))
}
func (s *Sum) NonAlias() expression.Expression       { return s }
func (s *Sum) SQLText() string                       { return s.String() }
func (s *Sum) Alias() string                         { return "" }
func (s *Sum) Children() []expression.Expression     { return []expression.Expression{s.Child} }
func (s *Sum) WithChildren(ch ...expression.Expression) (expression.Expression, error) {
	if len(ch) != 1 {
		return nil, fmt.Errorf("aggregation.Sum: 1 child expected, got %d", len(ch))
	}
	return &Sum{Child: ch[0], aggBase: aggBase{slot: s.slot}}, nil
}

// -- Avg -------------------------------------------------------------------

type Avg struct {
	aggBase
	Child expression.Expression
}

func NewAvg(ctx *sql.Context, child expression.Expression) *Avg {
	a := &Avg{Child: child}
	return a
}

func (a *Avg) String() string { return fmt.Sprintf("AVG(%s)", a.Child) }

type avgState struct {
	total decimal.Decimal
	count int64
}

func (a *Avg) NewState() interface{} { return &avgState{} }

func (a *Avg) UpdateState(ctx *sql.Context, state interface{}, row sql.Row) (interface{}, error) {
	st := state.(*avgState)
	v, err := a.Child.Eval(ctx, row)
	if err != nil {
		return st, err
	}
	if v.IsNull() {
		return st, nil
	}
	st.total = st.total.Add(toDecimal(v))
	st.count++
	return st, nil
}

func (a *Avg) MergeState(ctx *sql.Context, state, other interface{}) (interface{}, error) {
	x, y := state.(*avgState), other.(*avgState)
	x.total = x.total.Add(y.total)
	x.count += y.count
	return x, nil
}

func (a *Avg) EvalState(ctx *sql.Context, state interface{}) (sql.Value, error) {
	st := state.(*avgState)
	if st.count == 0 {
		return sql.NullValue(), nil
	}
	return sql.DecimalValue(st.total.Div(decimal.NewFromInt(st.count))), nil
}

func (a *Avg) Eval(ctx *sql.Context, row sql.Row) (sql.Value, error) {
	return sql.Value{}, fmt.Errorf("aggregation.Avg: must be evaluated through the group-state store, not directly")
}
func (a *Avg) BooleanValue(ctx *sql.Context, row sql.Row) (bool, error) { return false, nil }
func (a *Avg) UpdateAggregate(ctx *sql.Context, gctx *expression.AggContext, row sql.Row) error {
	return updateAggregateSlot(ctx, gctx, row, a.slot, a)
}
func (a *Avg) EvalGrouped(ctx *sql.Context, row sql.Row, gctx *expression.AggContext) (sql.Value, error) {
	return evalGroupedSlot(ctx, gctx, a.slot, a)
}
func (a *Avg) Optimize(*sql.Context) expression.Expression { return a }
func (a *Avg) MapColumns(r expression.ColumnResolver, level int) expression.Expression {
	return NewAvg(nil, a.Child.MapColumns(r, level))
}
func (a *Avg) NonAlias() expression.Expression   { return a }
func (a *Avg) SQLText() string                   { return a.String() }
func (a *Avg) Alias() string                     { return "" }
func (a *Avg) Children() []expression.Expression { return []expression.Expression{a.Child} }
func (a *Avg) WithChildren(ch ...expression.Expression) (expression.Expression, error) {
	if len(ch) != 1 {
		return nil, fmt.Errorf("aggregation.Avg: 1 child expected, got %d", len(ch))
	}
	return &Avg{Child: ch[0], aggBase: aggBase{slot: a.slot}}, nil
}

// -- Min / Max ---------------------------------------------------------------

type extremeOp int

const (
	opMin extremeOp = iota
	opMax
)

type Extreme struct {
	aggBase
	Op    extremeOp
	Child expression.Expression
}

func NewMin(ctx *sql.Context, child expression.Expression) *Extreme {
	e := &Extreme{Op: opMin, Child: child}
	return e
}

func NewMax(ctx *sql.Context, child expression.Expression) *Extreme {
	e := &Extreme{Op: opMax, Child: child}
	return e
}

func (e *Extreme) String() string {
	if e.Op == opMin {
		return fmt.Sprintf("MIN(%s)", e.Child)
	}
	return fmt.Sprintf("MAX(%s)", e.Child)
}

// QuickAggregateColumn reports the plain column this MIN/MAX aggregates
// over, when it is answerable from an index's first/last key alone (spec.md
// §4.2 step 4) instead of a scan-and-fold; ok is false when the child is
// anything other than a bare column reference.
func (e *Extreme) QuickAggregateColumn() (name string, isMin bool, ok bool) {
	gf, isCol := e.Child.(*expression.GetField)
	if !isCol {
		return "", false, false
	}
	return gf.Name, e.Op == opMin, true
}

type extremeState struct {
	val sql.Value
	any bool
}

func (e *Extreme) NewState() interface{} { return &extremeState{} }

func (e *Extreme) UpdateState(ctx *sql.Context, state interface{}, row sql.Row) (interface{}, error) {
	st := state.(*extremeState)
	v, err := e.Child.Eval(ctx, row)
	if err != nil {
		return st, err
	}
	if v.IsNull() {
		return st, nil
	}
	if !st.any {
		st.val, st.any = v, true
		return st, nil
	}
	cmp := sql.Compare(v, st.val)
	if (e.Op == opMin && cmp == sql.CompareLess) || (e.Op == opMax && cmp == sql.CompareGreater) {
		st.val = v
	}
	return st, nil
}

func (e *Extreme) MergeState(ctx *sql.Context, state, other interface{}) (interface{}, error) {
	a, b := state.(*extremeState), other.(*extremeState)
	if !b.any {
		return a, nil
	}
	if !a.any {
		return b, nil
	}
	cmp := sql.Compare(b.val, a.val)
	if (e.Op == opMin && cmp == sql.CompareLess) || (e.Op == opMax && cmp == sql.CompareGreater) {
		a.val = b.val
	}
	return a, nil
}

func (e *Extreme) EvalState(ctx *sql.Context, state interface{}) (sql.Value, error) {
	st := state.(*extremeState)
	if !st.any {
		return sql.NullValue(), nil
	}
	return st.val, nil
}

func (e *Extreme) Eval(ctx *sql.Context, row sql.Row) (sql.Value, error) {
	return sql.Value{}, fmt.Errorf("aggregation.Extreme: must be evaluated through the group-state store, not directly")
}
func (e *Extreme) BooleanValue(ctx *sql.Context, row sql.Row) (bool, error) { return false, nil }
func (e *Extreme) UpdateAggregate(ctx *sql.Context, gctx *expression.AggContext, row sql.Row) error {
	return updateAggregateSlot(ctx, gctx, row, e.slot, e)
}
func (e *Extreme) EvalGrouped(ctx *sql.Context, row sql.Row, gctx *expression.AggContext) (sql.Value, error) {
	return evalGroupedSlot(ctx, gctx, e.slot, e)
}
func (e *Extreme) Optimize(*sql.Context) expression.Expression { return e }
func (e *Extreme) MapColumns(r expression.ColumnResolver, level int) expression.Expression {
	return &Extreme{Op: e.Op, Child: e.Child.MapColumns(r, level), aggBase: aggBase{}}
}
func (e *Extreme) NonAlias() expression.Expression   { return e }
func (e *Extreme) SQLText() string                   { return e.String() }
func (e *Extreme) Alias() string                     { return "" }
func (e *Extreme) Children() []expression.Expression { return []expression.Expression{e.Child} }
func (e *Extreme) WithChildren(ch ...expression.Expression) (expression.Expression, error) {
	if len(ch) != 1 {
		return nil, fmt.Errorf("aggregation.Extreme: 1 child expected, got %d", len(ch))
	}
	return &Extreme{Op: e.Op, Child: ch[0], aggBase: aggBase{slot: e.slot}}, nil
}

// -- GroupConcat -------------------------------------------------------------

// GroupConcat is an order-sensitive aggregate: unlike SUM/MIN/MAX it must
// see rows within a group in arrival order (spec.md §3's currentGroupRowId
// counter exists for exactly this). Grounded on the teacher's
// aggregation.NewGroupConcat (SPEC_FULL.md "Supplemented features").
type GroupConcat struct {
	aggBase
	Child     expression.Expression
	Separator string
}

func NewGroupConcat(child expression.Expression, separator string) *GroupConcat {
	g := &GroupConcat{Child: child, Separator: separator}
	return g
}

func (g *GroupConcat) String() string {
	return fmt.Sprintf("GROUP_CONCAT(%s SEPARATOR %q)", g.Child, g.Separator)
}

type groupConcatState struct {
	parts []string
}

func (g *GroupConcat) NewState() interface{} { return &groupConcatState{} }

func (g *GroupConcat) UpdateState(ctx *sql.Context, state interface{}, row sql.Row) (interface{}, error) {
	st := state.(*groupConcatState)
	v, err := g.Child.Eval(ctx, row)
	if err != nil {
		return st, err
	}
	if v.IsNull() {
		return st, nil
	}
	st.parts = append(st.parts, v.String())
	return st, nil
}

func (g *GroupConcat) MergeState(ctx *sql.Context, state, other interface{}) (interface{}, error) {
	a, b := state.(*groupConcatState), other.(*groupConcatState)
	a.parts = append(a.parts, b.parts...)
	return a, nil
}

func (g *GroupConcat) EvalState(ctx *sql.Context, state interface{}) (sql.Value, error) {
	st := state.(*groupConcatState)
	if len(st.parts) == 0 {
		return sql.NullValue(), nil
	}
	out := st.parts[0]
	for _, p := range st.parts[1:] {
		out += g.Separator + p
	}
	return sql.StringValue(out), nil
}

func (g *GroupConcat) Eval(ctx *sql.Context, row sql.Row) (sql.Value, error) {
	return sql.Value{}, fmt.Errorf("aggregation.GroupConcat: must be evaluated through the group-state store, not directly")
}
func (g *GroupConcat) BooleanValue(ctx *sql.Context, row sql.Row) (bool, error) { return false, nil }
func (g *GroupConcat) UpdateAggregate(ctx *sql.Context, gctx *expression.AggContext, row sql.Row) error {
	return updateAggregateSlot(ctx, gctx, row, g.slot, g)
}
func (g *GroupConcat) EvalGrouped(ctx *sql.Context, row sql.Row, gctx *expression.AggContext) (sql.Value, error) {
	return evalGroupedSlot(ctx, gctx, g.slot, g)
}
func (g *GroupConcat) Optimize(*sql.Context) expression.Expression { return g }
func (g *GroupConcat) MapColumns(r expression.ColumnResolver, level int) expression.Expression {
	return NewGroupConcat(g.Child.MapColumns(r, level), g.Separator)
}
func (g *GroupConcat) NonAlias() expression.Expression   { return g }
func (g *GroupConcat) SQLText() string                   { return g.String() }
func (g *GroupConcat) Alias() string                     { return "" }
func (g *GroupConcat) Children() []expression.Expression { return []expression.Expression{g.Child} }
func (g *GroupConcat) WithChildren(ch ...expression.Expression) (expression.Expression, error) {
	if len(ch) != 1 {
		return nil, fmt.Errorf("aggregation.GroupConcat: 1 child expected, got %d", len(ch))
	}
	return &GroupConcat{Child: ch[0], Separator: g.Separator, aggBase: aggBase{slot: g.slot}}, nil
}
