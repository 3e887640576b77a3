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

// Package expression defines the Expression capability spec.md §3/§9 treats
// as an opaque, externally-supplied node: the evaluator proper (scalar
// function implementations, type coercion rules) is out of this core's
// scope. What lives here is the contract the core consumes, plus the small
// set of concrete expressions (column references, literals, boolean logic,
// aliasing, the wildcard marker) the executor and its tests need to drive
// without a real parser/analyzer in front of them.
package expression

import (
	"fmt"
	"strings"

	"github.com/queryforge/selectcore/sql"
)

// Expression is the capability set spec.md §3 lists: evaluate, boolean
// test, aggregate-state update, self-optimization, column remapping, plus
// the handful of introspection methods the preparer needs (is_wildcard,
// non_alias, sql_text, alias, is_constant). Grounded on the teacher's
// sql.Expression interface, generalized with the exact method set spec.md
// names instead of the teacher's larger surface (Type/IsNullable/Children/
// WithChildren are kept too, since Walk-style tree transforms need them).
type Expression interface {
	fmt.Stringer

	// Eval computes the expression's value against a single input row.
	Eval(ctx *sql.Context, row sql.Row) (sql.Value, error)

	// BooleanValue evaluates a predicate; NULL is treated as false
	// (spec.md §3).
	BooleanValue(ctx *sql.Context, row sql.Row) (bool, error)

	// UpdateAggregate feeds one input row into this expression's
	// aggregation state, if it is (or contains) an aggregate; a no-op for
	// plain scalar expressions.
	UpdateAggregate(ctx *sql.Context, gctx *AggContext, row sql.Row) error

	// Optimize returns a (possibly) simplified equivalent expression,
	// called once during Select.Prepare.
	Optimize(ctx *sql.Context) Expression

	// MapColumns rebinds every column reference through resolver at the
	// given nesting level (spec.md §4.1 step 10).
	MapColumns(resolver ColumnResolver, level int) Expression

	// SetEvaluatable marks whether this expression, when it appears inside
	// filter's join condition, can be evaluated before the join (spec.md
	// §4.2 step 5, "propagate evaluability flags").
	SetEvaluatable(filter int, evaluatable bool)

	IsWildcard() bool
	NonAlias() Expression
	SQLText() string
	Alias() string
	IsConstant() bool

	Resolved() bool
	Children() []Expression
	WithChildren(children ...Expression) (Expression, error)
}

// ColumnResolver looks a column name up against a known set of sources
// (table filters, or — for HAVING — the Select's own projection list, per
// spec.md §4.1 step 10: "a resolver that treats the projection list itself
// as a column source").
type ColumnResolver interface {
	ResolveColumn(table, name string) (index int, kind sql.Kind, ok bool)
}

// GroupAware is implemented by expressions whose value during group
// emission is read out of per-group aggregate state rather than computed
// from a single row (spec.md §3/§9: aggregates project through the
// group-state vector, not through Eval). The executor type-asserts for
// this interface when it builds the output row of a finished group, and
// falls back to Eval for anything that doesn't implement it.
type GroupAware interface {
	EvalGrouped(ctx *sql.Context, row sql.Row, gctx *AggContext) (sql.Value, error)
}

// evalMaybeGrouped evaluates e against row, routing through EvalGrouped
// instead of Eval whenever e (or, transitively, whatever it wraps) is
// GroupAware — an aggregate's value lives in gctx's state vector, never in
// row itself, so any composite expression that might embed one (a HAVING
// comparison, an AND/OR, an alias around a bare aggregate) must check this
// instead of calling Eval directly.
func evalMaybeGrouped(ctx *sql.Context, e Expression, row sql.Row, gctx *AggContext) (sql.Value, error) {
	if ga, ok := e.(GroupAware); ok {
		return ga.EvalGrouped(ctx, row, gctx)
	}
	return e.Eval(ctx, row)
}

// boolMaybeGrouped is evalMaybeGrouped's BooleanValue counterpart, used by
// Logic's AND/OR/NOT short-circuiting.
func boolMaybeGrouped(ctx *sql.Context, e Expression, row sql.Row, gctx *AggContext) (bool, error) {
	if ga, ok := e.(GroupAware); ok {
		v, err := ga.EvalGrouped(ctx, row, gctx)
		if err != nil {
			return false, err
		}
		return !v.IsNull() && v.Kind() == sql.KindBool && v.Bool(), nil
	}
	return e.BooleanValue(ctx, row)
}

// AggContext is the explicit execution context passed into evaluation,
// replacing the source's reliance on a shared, Select-owned map (spec.md
// §9, Design Notes: "pass an explicit execution context... rather than rely
// on process-level or heap-shared globals"). The hashed-group strategy
// allocates one, points CurrentGroupState at the active group's state slice
// before evaluating each non-key column, and bumps CurrentGroupRowID once
// per input row.
type AggContext struct {
	CurrentGroupState []interface{}
	CurrentGroupRowID int64
	CurrentGroupKey   sql.ValueArray
}

// base is embedded by every concrete expression below to provide the parts
// of Expression that have one obvious implementation (non-aggregate, not a
// wildcard, not an alias).
type base struct{}

func (base) UpdateAggregate(*sql.Context, *AggContext, sql.Row) error { return nil }
func (base) SetEvaluatable(int, bool)                                 {}
func (base) IsWildcard() bool                                         { return false }
func (base) IsConstant() bool                                         { return false }

// -- Literal -----------------------------------------------------------

type Literal struct {
	base
	Val  sql.Value
	Kind sql.Kind
}

func NewLiteral(v sql.Value) *Literal { return &Literal{Val: v, Kind: v.Kind()} }

func (l *Literal) String() string { return l.Val.String() }
func (l *Literal) Eval(ctx *sql.Context, row sql.Row) (sql.Value, error) {
	return l.Val, nil
}
func (l *Literal) BooleanValue(ctx *sql.Context, row sql.Row) (bool, error) {
	if l.Val.IsNull() {
		return false, nil
	}
	return l.Val.Kind() == sql.KindBool && l.Val.Bool(), nil
}
func (l *Literal) Optimize(*sql.Context) Expression       { return l }
func (l *Literal) MapColumns(ColumnResolver, int) Expression { return l }
func (l *Literal) NonAlias() Expression                   { return l }
func (l *Literal) SQLText() string                        { return l.Val.String() }
func (l *Literal) Alias() string                           { return "" }
func (l *Literal) IsConstant() bool                        { return true }
func (l *Literal) Resolved() bool                          { return true }
func (l *Literal) Children() []Expression                  { return nil }
func (l *Literal) WithChildren(c ...Expression) (Expression, error) {
	if len(c) != 0 {
		return nil, fmt.Errorf("expression.Literal: 0 children expected, got %d", len(c))
	}
	return l, nil
}

// -- GetField ------------------------------------------------------------

// GetField references a single column by its fixed position, the column
// model spec.md §3 requires ("column positions are fixed after
// preparation").
type GetField struct {
	base
	Index    int
	Kind     sql.Kind
	Name     string
	Nullable bool
}

func NewGetField(index int, kind sql.Kind, name string, nullable bool) *GetField {
	return &GetField{Index: index, Kind: kind, Name: name, Nullable: nullable}
}

func (g *GetField) String() string { return g.Name }
func (g *GetField) Eval(ctx *sql.Context, row sql.Row) (sql.Value, error) {
	if g.Index < 0 || g.Index >= len(row) {
		return sql.Value{}, fmt.Errorf("expression.GetField: index %d out of range for row of length %d", g.Index, len(row))
	}
	return row[g.Index], nil
}
func (g *GetField) BooleanValue(ctx *sql.Context, row sql.Row) (bool, error) {
	v, err := g.Eval(ctx, row)
	if err != nil {
		return false, err
	}
	return !v.IsNull() && v.Kind() == sql.KindBool && v.Bool(), nil
}
func (g *GetField) Optimize(*sql.Context) Expression { return g }
func (g *GetField) MapColumns(r ColumnResolver, level int) Expression {
	if idx, kind, ok := r.ResolveColumn("", g.Name); ok {
		return NewGetField(idx, kind, g.Name, g.Nullable)
	}
	return g
}
func (g *GetField) NonAlias() Expression  { return g }
func (g *GetField) SQLText() string        { return g.Name }
func (g *GetField) Alias() string          { return "" }
func (g *GetField) Resolved() bool         { return true }
func (g *GetField) Children() []Expression { return nil }
func (g *GetField) WithChildren(c ...Expression) (Expression, error) {
	if len(c) != 0 {
		return nil, fmt.Errorf("expression.GetField: 0 children expected, got %d", len(c))
	}
	return g, nil
}

// -- Star (wildcard marker) ----------------------------------------------

// Star stands in for an unexpanded `*` (or `alias.*`) until Select.Init
// expands it into GetFields (spec.md §4.1 step 1).
type Star struct {
	base
	Qualifier string
}

func NewStar() *Star                  { return &Star{} }
func NewQualifiedStar(q string) *Star { return &Star{Qualifier: q} }

func (s *Star) String() string {
	if s.Qualifier != "" {
		return s.Qualifier + ".*"
	}
	return "*"
}
func (s *Star) Eval(*sql.Context, sql.Row) (sql.Value, error) {
	return sql.Value{}, fmt.Errorf("expression.Star: cannot be evaluated, must be expanded first")
}
func (s *Star) BooleanValue(*sql.Context, sql.Row) (bool, error) { return false, nil }
func (s *Star) Optimize(*sql.Context) Expression                 { return s }
func (s *Star) MapColumns(ColumnResolver, int) Expression        { return s }
func (s *Star) IsWildcard() bool                                 { return true }
func (s *Star) NonAlias() Expression                              { return s }
func (s *Star) SQLText() string                                   { return s.String() }
func (s *Star) Alias() string                                     { return "" }
func (s *Star) Resolved() bool                                    { return false }
func (s *Star) Children() []Expression                            { return nil }
func (s *Star) WithChildren(c ...Expression) (Expression, error) {
	if len(c) != 0 {
		return nil, fmt.Errorf("expression.Star: 0 children expected, got %d", len(c))
	}
	return s, nil
}

// -- Alias -----------------------------------------------------------------

// Alias names an expression for output-column naming and for DISTINCT ON /
// ORDER BY / GROUP BY match-by-alias binding (spec.md §4.1 steps 4 and 9).
type Alias struct {
	name  string
	Child Expression
}

func NewAlias(name string, child Expression) *Alias { return &Alias{name: name, Child: child} }

func (a *Alias) String() string { return fmt.Sprintf("%s AS %s", a.Child, a.name) }
func (a *Alias) Eval(ctx *sql.Context, row sql.Row) (sql.Value, error) {
	return a.Child.Eval(ctx, row)
}
func (a *Alias) BooleanValue(ctx *sql.Context, row sql.Row) (bool, error) {
	return a.Child.BooleanValue(ctx, row)
}
func (a *Alias) UpdateAggregate(ctx *sql.Context, gctx *AggContext, row sql.Row) error {
	return a.Child.UpdateAggregate(ctx, gctx, row)
}

// EvalGrouped makes Alias transparent to GroupAware dispatch: Select.Prepare
// wraps any bare aggregate whose allocated output name differs from its
// natural one in an Alias (spec.md §4.2 step 2), so the executor's
// group-emission loop must be able to see through it to the aggregate
// underneath.
func (a *Alias) EvalGrouped(ctx *sql.Context, row sql.Row, gctx *AggContext) (sql.Value, error) {
	return evalMaybeGrouped(ctx, a.Child, row, gctx)
}
func (a *Alias) SetEvaluatable(filter int, evaluatable bool) { a.Child.SetEvaluatable(filter, evaluatable) }
func (a *Alias) Optimize(ctx *sql.Context) Expression {
	return NewAlias(a.name, a.Child.Optimize(ctx))
}
func (a *Alias) MapColumns(r ColumnResolver, level int) Expression {
	return NewAlias(a.name, a.Child.MapColumns(r, level))
}
func (a *Alias) IsWildcard() bool         { return false }
func (a *Alias) NonAlias() Expression     { return a.Child.NonAlias() }
func (a *Alias) SQLText() string          { return a.Child.SQLText() }
func (a *Alias) Alias() string            { return a.name }
func (a *Alias) IsConstant() bool         { return a.Child.IsConstant() }
func (a *Alias) Resolved() bool           { return a.Child.Resolved() }
func (a *Alias) Children() []Expression   { return []Expression{a.Child} }
func (a *Alias) WithChildren(c ...Expression) (Expression, error) {
	if len(c) != 1 {
		return nil, fmt.Errorf("expression.Alias: 1 child expected, got %d", len(c))
	}
	return NewAlias(a.name, c[0]), nil
}

// -- IsNull ----------------------------------------------------------------

type IsNull struct {
	base
	Child Expression
}

func NewIsNull(child Expression) *IsNull { return &IsNull{Child: child} }

func (e *IsNull) String() string { return fmt.Sprintf("%s IS NULL", e.Child) }
func (e *IsNull) Eval(ctx *sql.Context, row sql.Row) (sql.Value, error) {
	v, err := e.Child.Eval(ctx, row)
	if err != nil {
		return sql.Value{}, err
	}
	return sql.BoolValue(v.IsNull()), nil
}
func (e *IsNull) BooleanValue(ctx *sql.Context, row sql.Row) (bool, error) {
	v, err := e.Child.Eval(ctx, row)
	if err != nil {
		return false, err
	}
	return v.IsNull(), nil
}
func (e *IsNull) UpdateAggregate(ctx *sql.Context, gctx *AggContext, row sql.Row) error {
	return e.Child.UpdateAggregate(ctx, gctx, row)
}
func (e *IsNull) EvalGrouped(ctx *sql.Context, row sql.Row, gctx *AggContext) (sql.Value, error) {
	v, err := evalMaybeGrouped(ctx, e.Child, row, gctx)
	if err != nil {
		return sql.Value{}, err
	}
	return sql.BoolValue(v.IsNull()), nil
}
func (e *IsNull) Optimize(ctx *sql.Context) Expression { return NewIsNull(e.Child.Optimize(ctx)) }
func (e *IsNull) MapColumns(r ColumnResolver, level int) Expression {
	return NewIsNull(e.Child.MapColumns(r, level))
}
func (e *IsNull) NonAlias() Expression   { return e }
func (e *IsNull) SQLText() string        { return e.String() }
func (e *IsNull) Alias() string          { return "" }
func (e *IsNull) Resolved() bool         { return e.Child.Resolved() }
func (e *IsNull) Children() []Expression { return []Expression{e.Child} }
func (e *IsNull) WithChildren(c ...Expression) (Expression, error) {
	if len(c) != 1 {
		return nil, fmt.Errorf("expression.IsNull: 1 child expected, got %d", len(c))
	}
	return NewIsNull(c[0]), nil
}

// -- comparisons ------------------------------------------------------------

type compareOp int

const (
	opEquals compareOp = iota
	opLess
	opLessEq
	opGreater
	opGreaterEq
	opNullSafeEquals
)

// Comparison is a binary relational predicate; grounded on the teacher's
// expression/comparison.go family (Equals/LessThan/...), collapsed to one
// type parameterized on the operator since the core only needs to evaluate
// them, never rewrite them individually.
type Comparison struct {
	base
	Op          compareOp
	Left, Right Expression
}

func NewEquals(l, r Expression) *Comparison         { return &Comparison{Op: opEquals, Left: l, Right: r} }
func NewNullSafeEquals(l, r Expression) *Comparison { return &Comparison{Op: opNullSafeEquals, Left: l, Right: r} }
func NewLessThan(l, r Expression) *Comparison       { return &Comparison{Op: opLess, Left: l, Right: r} }
func NewLessThanOrEqual(l, r Expression) *Comparison { return &Comparison{Op: opLessEq, Left: l, Right: r} }
func NewGreaterThan(l, r Expression) *Comparison    { return &Comparison{Op: opGreater, Left: l, Right: r} }
func NewGreaterThanOrEqual(l, r Expression) *Comparison {
	return &Comparison{Op: opGreaterEq, Left: l, Right: r}
}

var compareOpText = map[compareOp]string{
	opEquals: "=", opLess: "<", opLessEq: "<=", opGreater: ">", opGreaterEq: ">=", opNullSafeEquals: "<=>",
}

func (c *Comparison) String() string {
	return fmt.Sprintf("%s %s %s", c.Left, compareOpText[c.Op], c.Right)
}

func (c *Comparison) Eval(ctx *sql.Context, row sql.Row) (sql.Value, error) {
	ok, err := c.BooleanValue(ctx, row)
	if err != nil {
		return sql.Value{}, err
	}
	return sql.BoolValue(ok), nil
}

func (c *Comparison) BooleanValue(ctx *sql.Context, row sql.Row) (bool, error) {
	l, err := c.Left.Eval(ctx, row)
	if err != nil {
		return false, err
	}
	r, err := c.Right.Eval(ctx, row)
	if err != nil {
		return false, err
	}
	return c.compare(l, r)
}

// UpdateAggregate feeds row into both sides, since either may embed an
// aggregate (a HAVING predicate over SUM(b), say) that needs to see every
// row in the group, not just the one finalizing the comparison.
func (c *Comparison) UpdateAggregate(ctx *sql.Context, gctx *AggContext, row sql.Row) error {
	if err := c.Left.UpdateAggregate(ctx, gctx, row); err != nil {
		return err
	}
	return c.Right.UpdateAggregate(ctx, gctx, row)
}

// EvalGrouped is BooleanValue's counterpart for group emission, reading
// either side out of group state when it is GroupAware instead of calling
// Eval directly (spec.md §4.3, HAVING checked "against the full row").
func (c *Comparison) EvalGrouped(ctx *sql.Context, row sql.Row, gctx *AggContext) (sql.Value, error) {
	l, err := evalMaybeGrouped(ctx, c.Left, row, gctx)
	if err != nil {
		return sql.Value{}, err
	}
	r, err := evalMaybeGrouped(ctx, c.Right, row, gctx)
	if err != nil {
		return sql.Value{}, err
	}
	ok, err := c.compare(l, r)
	if err != nil {
		return sql.Value{}, err
	}
	return sql.BoolValue(ok), nil
}

func (c *Comparison) compare(l, r sql.Value) (bool, error) {
	if c.Op == opNullSafeEquals {
		return sql.NullSafeEqual(l, r), nil
	}
	cmp := sql.Compare(l, r)
	if cmp == sql.CompareUnknown {
		return false, nil
	}
	switch c.Op {
	case opEquals:
		return cmp == sql.CompareEqual, nil
	case opLess:
		return cmp == sql.CompareLess, nil
	case opLessEq:
		return cmp != sql.CompareGreater, nil
	case opGreater:
		return cmp == sql.CompareGreater, nil
	case opGreaterEq:
		return cmp != sql.CompareLess, nil
	default:
		return false, fmt.Errorf("expression.Comparison: unknown operator %d", c.Op)
	}
}

func (c *Comparison) Optimize(ctx *sql.Context) Expression {
	return &Comparison{Op: c.Op, Left: c.Left.Optimize(ctx), Right: c.Right.Optimize(ctx)}
}
func (c *Comparison) MapColumns(r ColumnResolver, level int) Expression {
	return &Comparison{Op: c.Op, Left: c.Left.MapColumns(r, level), Right: c.Right.MapColumns(r, level)}
}
func (c *Comparison) SetEvaluatable(filter int, evaluatable bool) {
	c.Left.SetEvaluatable(filter, evaluatable)
	c.Right.SetEvaluatable(filter, evaluatable)
}
func (c *Comparison) NonAlias() Expression { return c }
func (c *Comparison) SQLText() string      { return c.String() }
func (c *Comparison) Alias() string        { return "" }
func (c *Comparison) IsConstant() bool     { return c.Left.IsConstant() && c.Right.IsConstant() }
func (c *Comparison) Resolved() bool       { return c.Left.Resolved() && c.Right.Resolved() }
func (c *Comparison) Children() []Expression { return []Expression{c.Left, c.Right} }
func (c *Comparison) WithChildren(ch ...Expression) (Expression, error) {
	if len(ch) != 2 {
		return nil, fmt.Errorf("expression.Comparison: 2 children expected, got %d", len(ch))
	}
	return &Comparison{Op: c.Op, Left: ch[0], Right: ch[1]}, nil
}

// -- boolean connectives ----------------------------------------------------

type logicOp int

const (
	opAnd logicOp = iota
	opOr
	opNot
)

// Logic implements AND/OR/NOT over its operands' two-valued BooleanValue
// results, in which NULL reads as false, matching spec.md §3's
// "boolean_value... NULL treated as false". It is not SQL three-valued
// logic: NOT of a NULL operand yields true.
type Logic struct {
	base
	Op          logicOp
	Left, Right Expression // Right is nil for NOT
}

func NewAnd(l, r Expression) *Logic { return &Logic{Op: opAnd, Left: l, Right: r} }
func NewOr(l, r Expression) *Logic  { return &Logic{Op: opOr, Left: l, Right: r} }
func NewNot(l Expression) *Logic    { return &Logic{Op: opNot, Left: l} }

func (l *Logic) String() string {
	switch l.Op {
	case opAnd:
		return fmt.Sprintf("(%s AND %s)", l.Left, l.Right)
	case opOr:
		return fmt.Sprintf("(%s OR %s)", l.Left, l.Right)
	default:
		return fmt.Sprintf("NOT %s", l.Left)
	}
}
func (l *Logic) Eval(ctx *sql.Context, row sql.Row) (sql.Value, error) {
	b, err := l.BooleanValue(ctx, row)
	if err != nil {
		return sql.Value{}, err
	}
	return sql.BoolValue(b), nil
}
func (l *Logic) BooleanValue(ctx *sql.Context, row sql.Row) (bool, error) {
	lv, err := l.Left.BooleanValue(ctx, row)
	if err != nil {
		return false, err
	}
	switch l.Op {
	case opNot:
		return !lv, nil
	case opAnd:
		if !lv {
			return false, nil
		}
		return l.Right.BooleanValue(ctx, row)
	case opOr:
		if lv {
			return true, nil
		}
		return l.Right.BooleanValue(ctx, row)
	default:
		return false, fmt.Errorf("expression.Logic: unknown operator %d", l.Op)
	}
}
// UpdateAggregate propagates to both operands (NOT has no Right).
func (l *Logic) UpdateAggregate(ctx *sql.Context, gctx *AggContext, row sql.Row) error {
	if err := l.Left.UpdateAggregate(ctx, gctx, row); err != nil {
		return err
	}
	if l.Right != nil {
		return l.Right.UpdateAggregate(ctx, gctx, row)
	}
	return nil
}

// EvalGrouped mirrors BooleanValue's short-circuiting, routing through
// group state for any operand that is GroupAware.
func (l *Logic) EvalGrouped(ctx *sql.Context, row sql.Row, gctx *AggContext) (sql.Value, error) {
	lv, err := boolMaybeGrouped(ctx, l.Left, row, gctx)
	if err != nil {
		return sql.Value{}, err
	}
	switch l.Op {
	case opNot:
		return sql.BoolValue(!lv), nil
	case opAnd:
		if !lv {
			return sql.BoolValue(false), nil
		}
		rv, err := boolMaybeGrouped(ctx, l.Right, row, gctx)
		if err != nil {
			return sql.Value{}, err
		}
		return sql.BoolValue(rv), nil
	case opOr:
		if lv {
			return sql.BoolValue(true), nil
		}
		rv, err := boolMaybeGrouped(ctx, l.Right, row, gctx)
		if err != nil {
			return sql.Value{}, err
		}
		return sql.BoolValue(rv), nil
	default:
		return sql.Value{}, fmt.Errorf("expression.Logic: unknown operator %d", l.Op)
	}
}

func (l *Logic) Optimize(ctx *sql.Context) Expression {
	right := l.Right
	if right != nil {
		right = right.Optimize(ctx)
	}
	return &Logic{Op: l.Op, Left: l.Left.Optimize(ctx), Right: right}
}
func (l *Logic) MapColumns(r ColumnResolver, level int) Expression {
	right := l.Right
	if right != nil {
		right = right.MapColumns(r, level)
	}
	return &Logic{Op: l.Op, Left: l.Left.MapColumns(r, level), Right: right}
}
func (l *Logic) SetEvaluatable(filter int, evaluatable bool) {
	l.Left.SetEvaluatable(filter, evaluatable)
	if l.Right != nil {
		l.Right.SetEvaluatable(filter, evaluatable)
	}
}
func (l *Logic) NonAlias() Expression { return l }
func (l *Logic) SQLText() string      { return l.String() }
func (l *Logic) Alias() string        { return "" }
func (l *Logic) Resolved() bool {
	if l.Right == nil {
		return l.Left.Resolved()
	}
	return l.Left.Resolved() && l.Right.Resolved()
}
func (l *Logic) Children() []Expression {
	if l.Right == nil {
		return []Expression{l.Left}
	}
	return []Expression{l.Left, l.Right}
}
func (l *Logic) WithChildren(c ...Expression) (Expression, error) {
	if l.Op == opNot {
		if len(c) != 1 {
			return nil, fmt.Errorf("expression.Logic(NOT): 1 child expected, got %d", len(c))
		}
		return &Logic{Op: opNot, Left: c[0]}, nil
	}
	if len(c) != 2 {
		return nil, fmt.Errorf("expression.Logic: 2 children expected, got %d", len(c))
	}
	return &Logic{Op: l.Op, Left: c[0], Right: c[1]}, nil
}

// SQLTextOf renders a slice of expressions as a comma-joined SQL fragment,
// used by the plan printer (spec.md §4.5).
func SQLTextOf(exprs []Expression) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.SQLText()
	}
	return strings.Join(parts, ", ")
}
