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

package plan_test

import (
	"testing"

	"github.com/dolthub/vitess/go/sqltypes"
	"github.com/stretchr/testify/require"

	"github.com/queryforge/selectcore/memory"
	"github.com/queryforge/selectcore/sql"
	"github.com/queryforge/selectcore/sql/expression"
	"github.com/queryforge/selectcore/sql/expression/aggregation"
	"github.com/queryforge/selectcore/sql/plan"
)

func tSchema() sql.Schema {
	return sql.Schema{
		{Name: "a", Kind: sql.KindInt64, Source: "t"},
		{Name: "b", Kind: sql.KindInt64, Source: "t"},
	}
}

func tRow(a, b int64) sql.Row {
	return sql.NewRow(sql.Int64Value(a), sql.Int64Value(b))
}

// col builds an unbound column reference the way a parser would hand one to
// Select before Init runs: by name only, resolved later via MapColumns.
func col(name string) expression.Expression {
	return expression.NewGetField(-1, sql.KindNull, name, true)
}

func TestSelectInitPlainProjection(t *testing.T) {
	ctx := sql.NewEmptyContext()
	tbl := memory.NewTable("t", tSchema(), tRow(1, 10), tRow(2, 30))

	s := plan.NewSelect()
	s.SetExpressions([]expression.Expression{col("a"), col("b")})
	s.AddTableFilter(tbl, true)

	require.NoError(t, s.Init(ctx))
	require.Equal(t, 2, s.VisibleColumnCount)
	require.Equal(t, 2, s.DistinctColumnCount)
	require.False(t, s.IsGroupQuery)

	// a second Init must fail (spec.md §8 idempotence property).
	require.Error(t, s.Init(ctx))

	require.NoError(t, s.Prepare(ctx))
	require.NoError(t, s.Prepare(ctx)) // second Prepare is a no-op
}

func TestSelectPrepareBeforeInitFails(t *testing.T) {
	ctx := sql.NewEmptyContext()
	s := plan.NewSelect()
	require.Error(t, s.Prepare(ctx))
}

func TestSelectGroupByDetectedFromAggregateProjection(t *testing.T) {
	ctx := sql.NewEmptyContext()
	tbl := memory.NewTable("t", tSchema(), tRow(1, 10), tRow(1, 20), tRow(2, 30))

	s := plan.NewSelect()
	s.SetExpressions([]expression.Expression{col("a"), aggregation.NewSum(ctx, col("b"))})
	s.AddTableFilter(tbl, true)
	s.SetGroupBy([]expression.Expression{col("a")})
	s.SetOrderBy([]plan.OrderByItem{{Position: 1}})

	require.NoError(t, s.Init(ctx))
	require.True(t, s.IsGroupQuery)
	require.Equal(t, []int{0}, s.GroupIndex)
	require.True(t, s.GroupByExpression[0])
	require.False(t, s.GroupByExpression[1])

	require.NoError(t, s.Prepare(ctx))
	require.NotNil(t, s.Sort)
	require.Equal(t, []int{0}, s.Sort.Columns)
}

func TestSelectWithTiesWithoutOrderByRejected(t *testing.T) {
	ctx := sql.NewEmptyContext()
	tbl := memory.NewTable("t", tSchema())

	s := plan.NewSelect()
	s.SetExpressions([]expression.Expression{col("a")})
	s.AddTableFilter(tbl, true)
	s.SetWithTies(true)

	err := s.Init(ctx)
	require.Error(t, err)
	require.True(t, sql.ErrWithTiesWithoutOrderBy.Is(err))
}

func TestSelectQuickAggregateDetection(t *testing.T) {
	ctx := sql.NewEmptyContext()
	tbl := memory.NewTable("t", tSchema(), tRow(1, 10), tRow(2, 30))
	tbl.SetIndex(memory.NewColumnIndex(tbl, 0))

	s := plan.NewSelect()
	s.SetExpressions([]expression.Expression{aggregation.NewCount(ctx, expression.NewStar())})
	s.AddTableFilter(tbl, true)

	require.NoError(t, s.Init(ctx))
	require.NoError(t, s.Prepare(ctx))
	require.True(t, s.IsQuickAggregateQuery)
	require.Contains(t, s.PlanSQL(), "/* direct lookup */")
}

func TestSelectDistinctFastPathSelectsColumnIndex(t *testing.T) {
	ctx := sql.NewEmptyContext()
	tbl := memory.NewTable("t", tSchema(), tRow(1, 10), tRow(1, 20), tRow(2, 30))
	tbl.SetIndex(memory.NewColumnIndex(tbl, 0))

	s := plan.NewSelect()
	s.SetExpressions([]expression.Expression{col("a")})
	s.SetDistinct([]expression.Expression{col("a")})
	s.AddTableFilter(tbl, true)

	require.NoError(t, s.Init(ctx))
	require.NoError(t, s.Prepare(ctx))
	require.True(t, s.IsDistinctQuery)
	require.Contains(t, s.PlanSQL(), "/* distinct */")
}

func TestAddGlobalConditionGuardsDoubleRegistration(t *testing.T) {
	ctx := sql.NewEmptyContext()
	tbl := memory.NewTable("t", tSchema(), tRow(1, 10), tRow(1, 20), tRow(2, 30))

	s := plan.NewSelect()
	s.SetExpressions([]expression.Expression{col("a"), aggregation.NewSum(ctx, col("b"))})
	s.AddTableFilter(tbl, true)
	s.SetGroupBy([]expression.Expression{col("a")})

	require.NoError(t, s.Init(ctx))
	require.NoError(t, s.Prepare(ctx))

	param := expression.NewLiteral(sql.Int64Value(70))
	require.NoError(t, s.AddGlobalCondition(ctx, param, 1, plan.CompareEqualTo))
	firstHavingIndex := s.HavingIndex
	require.GreaterOrEqual(t, firstHavingIndex, 0)

	// A second call must not append a second copy of the predicate.
	require.NoError(t, s.AddGlobalCondition(ctx, param, 1, plan.CompareEqualTo))
	require.Equal(t, firstHavingIndex, s.HavingIndex)
}

func TestAddGlobalConditionOnGroupKeyAddsWhereNotHaving(t *testing.T) {
	ctx := sql.NewEmptyContext()
	tbl := memory.NewTable("t", tSchema(), tRow(1, 10), tRow(2, 30))

	s := plan.NewSelect()
	s.SetExpressions([]expression.Expression{col("a"), aggregation.NewSum(ctx, col("b"))})
	s.AddTableFilter(tbl, true)
	s.SetGroupBy([]expression.Expression{col("a")})

	require.NoError(t, s.Init(ctx))
	require.NoError(t, s.Prepare(ctx))

	param := expression.NewLiteral(sql.Int64Value(1))
	require.NoError(t, s.AddGlobalCondition(ctx, param, 0, plan.CompareEqualTo))
	require.NotNil(t, s.Condition)
	require.Equal(t, -1, s.HavingIndex)
}

// TestAddGlobalConditionOnGroupKeyFiltersByParamValue guards against the
// predicate being a tautology (e.g. a null-safe self-equality that ignores
// param entirely): a real "keycol = param" condition must match a different
// number of rows depending on param's value.
func TestAddGlobalConditionOnGroupKeyFiltersByParamValue(t *testing.T) {
	rows := []sql.Row{tRow(1, 10), tRow(2, 30)}

	countMatches := func(t *testing.T, paramValue int64) int {
		ctx := sql.NewEmptyContext()
		tbl := memory.NewTable("t", tSchema(), rows...)

		s := plan.NewSelect()
		s.SetExpressions([]expression.Expression{col("a"), aggregation.NewSum(ctx, col("b"))})
		s.AddTableFilter(tbl, true)
		s.SetGroupBy([]expression.Expression{col("a")})

		require.NoError(t, s.Init(ctx))
		require.NoError(t, s.Prepare(ctx))

		param := expression.NewLiteral(sql.Int64Value(paramValue))
		require.NoError(t, s.AddGlobalCondition(ctx, param, 0, plan.CompareEqualTo))
		require.NotNil(t, s.Condition)
		require.Equal(t, -1, s.HavingIndex)

		n := 0
		for _, row := range rows {
			v, err := s.Condition.Eval(ctx, row)
			require.NoError(t, err)
			if v.Bool() {
				n++
			}
		}
		return n
	}

	require.Equal(t, 1, countMatches(t, 1))
	require.Equal(t, 0, countMatches(t, 99))
}

// TestGlobalConditionParamFromWireValue exercises the sqltypes.Value
// boundary directly: a driver holding a raw wire parameter (rather than an
// already-built sql.Value) must still be able to splice a working
// AddGlobalCondition predicate through GlobalConditionParam.
func TestGlobalConditionParamFromWireValue(t *testing.T) {
	ctx := sql.NewEmptyContext()
	tbl := memory.NewTable("t", tSchema(), tRow(1, 10), tRow(2, 30))

	s := plan.NewSelect()
	s.SetExpressions([]expression.Expression{col("a"), col("b")})
	s.AddTableFilter(tbl, true)

	require.NoError(t, s.Init(ctx))
	require.NoError(t, s.Prepare(ctx))

	wire, err := sqltypes.NewValue(sqltypes.Int64, []byte("1"))
	require.NoError(t, err)
	param, err := plan.GlobalConditionParam(wire)
	require.NoError(t, err)

	require.NoError(t, s.AddGlobalCondition(ctx, param, 0, plan.CompareEqualTo))
	require.NotNil(t, s.Condition)

	v, err := s.Condition.Eval(ctx, tRow(1, 10))
	require.NoError(t, err)
	require.True(t, v.Bool())

	v, err = s.Condition.Eval(ctx, tRow(2, 30))
	require.NoError(t, err)
	require.False(t, v.Bool())
}
