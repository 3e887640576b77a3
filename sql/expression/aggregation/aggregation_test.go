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

package aggregation_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/queryforge/selectcore/sql"
	"github.com/queryforge/selectcore/sql/expression"
	"github.com/queryforge/selectcore/sql/expression/aggregation"
)

func bCol() expression.Expression {
	return expression.NewGetField(0, sql.KindInt64, "b", true)
}

func bRow(v int64) sql.Row { return sql.NewRow(sql.Int64Value(v)) }

func nullRow() sql.Row { return sql.NewRow(sql.NullValue()) }

func fold(t *testing.T, ctx *sql.Context, a aggregation.Aggregation, rows ...sql.Row) sql.Value {
	t.Helper()
	state := a.NewState()
	for _, row := range rows {
		var err error
		state, err = a.UpdateState(ctx, state, row)
		require.NoError(t, err)
	}
	v, err := a.EvalState(ctx, state)
	require.NoError(t, err)
	return v
}

func TestSumAccumulatesAndSkipsNull(t *testing.T) {
	ctx := sql.NewEmptyContext()
	s := aggregation.NewSum(ctx, bCol())
	v := fold(t, ctx, s, bRow(10), nullRow(), bRow(20))
	require.Equal(t, decimal.NewFromInt(30), v.Decimal())
}

func TestSumOverNoRowsIsNull(t *testing.T) {
	ctx := sql.NewEmptyContext()
	s := aggregation.NewSum(ctx, bCol())
	v := fold(t, ctx, s)
	require.True(t, v.IsNull())
}

func TestSumOverAllNullRowsIsNull(t *testing.T) {
	ctx := sql.NewEmptyContext()
	s := aggregation.NewSum(ctx, bCol())
	v := fold(t, ctx, s, nullRow(), nullRow())
	require.True(t, v.IsNull())
}

func TestAvgComputesMean(t *testing.T) {
	ctx := sql.NewEmptyContext()
	a := aggregation.NewAvg(ctx, bCol())
	v := fold(t, ctx, a, bRow(10), bRow(20), bRow(30))
	require.True(t, decimal.NewFromInt(20).Equal(v.Decimal()))
}

func TestAvgOverNoRowsIsNull(t *testing.T) {
	ctx := sql.NewEmptyContext()
	a := aggregation.NewAvg(ctx, bCol())
	v := fold(t, ctx, a)
	require.True(t, v.IsNull())
}

func TestCountStarCountsAllRowsIncludingNull(t *testing.T) {
	ctx := sql.NewEmptyContext()
	c := aggregation.NewCount(ctx, expression.NewStar())
	v := fold(t, ctx, c, bRow(10), nullRow(), bRow(30))
	require.Equal(t, int64(3), v.Int64())
}

func TestCountColumnSkipsNull(t *testing.T) {
	ctx := sql.NewEmptyContext()
	c := aggregation.NewCount(ctx, bCol())
	v := fold(t, ctx, c, bRow(10), nullRow(), bRow(30))
	require.Equal(t, int64(2), v.Int64())
}

func TestCountDistinctDedupesValues(t *testing.T) {
	ctx := sql.NewEmptyContext()
	c := aggregation.NewCountDistinct(bCol())
	v := fold(t, ctx, c, bRow(10), bRow(20), bRow(10), nullRow())
	require.Equal(t, int64(2), v.Int64())
}

func TestMinMaxTrackExtremesAndSkipNull(t *testing.T) {
	ctx := sql.NewEmptyContext()
	min := aggregation.NewMin(ctx, bCol())
	max := aggregation.NewMax(ctx, bCol())
	rows := []sql.Row{bRow(30), nullRow(), bRow(10), bRow(20)}
	require.Equal(t, int64(10), fold(t, ctx, min, rows...).Int64())
	require.Equal(t, int64(30), fold(t, ctx, max, rows...).Int64())
}

func TestMinMaxOverNoRowsIsNull(t *testing.T) {
	ctx := sql.NewEmptyContext()
	min := aggregation.NewMin(ctx, bCol())
	require.True(t, fold(t, ctx, min).IsNull())
}

func TestGroupConcatJoinsInArrivalOrder(t *testing.T) {
	ctx := sql.NewEmptyContext()
	g := aggregation.NewGroupConcat(bCol(), ",")
	v := fold(t, ctx, g, bRow(10), nullRow(), bRow(20), bRow(30))
	require.Equal(t, "10,20,30", v.String())
}

func TestGroupConcatOverNoRowsIsNull(t *testing.T) {
	ctx := sql.NewEmptyContext()
	g := aggregation.NewGroupConcat(bCol(), ",")
	require.True(t, fold(t, ctx, g).IsNull())
}

func TestMergeStateCombinesTwoPartials(t *testing.T) {
	ctx := sql.NewEmptyContext()
	s := aggregation.NewSum(ctx, bCol())

	left := s.NewState()
	left, err := s.UpdateState(ctx, left, bRow(10))
	require.NoError(t, err)

	right := s.NewState()
	right, err = s.UpdateState(ctx, right, bRow(25))
	require.NoError(t, err)

	merged, err := s.MergeState(ctx, left, right)
	require.NoError(t, err)
	v, err := s.EvalState(ctx, merged)
	require.NoError(t, err)
	require.Equal(t, decimal.NewFromInt(35), v.Decimal())
}

func TestSlotIsSettableAndReadable(t *testing.T) {
	ctx := sql.NewEmptyContext()
	s := aggregation.NewSum(ctx, bCol())
	require.Equal(t, 0, s.Slot())
	s.SetSlot(3)
	require.Equal(t, 3, s.Slot())
}

// TestDirectEvalRejected guards the "must be evaluated through the
// group-state store" invariant every concrete aggregate documents: Eval is
// never a valid path to an aggregate's value.
func TestDirectEvalRejected(t *testing.T) {
	ctx := sql.NewEmptyContext()
	aggs := []aggregation.Aggregation{
		aggregation.NewSum(ctx, bCol()),
		aggregation.NewAvg(ctx, bCol()),
		aggregation.NewCount(ctx, bCol()),
		aggregation.NewMin(ctx, bCol()),
		aggregation.NewMax(ctx, bCol()),
		aggregation.NewGroupConcat(bCol(), ","),
	}
	for _, a := range aggs {
		_, err := a.Eval(ctx, bRow(1))
		require.Error(t, err)
	}
}

func TestUpdateAggregateAndEvalGroupedRoundTripThroughSlot(t *testing.T) {
	ctx := sql.NewEmptyContext()
	s := aggregation.NewSum(ctx, bCol())
	s.SetSlot(1)

	gctx := &expression.AggContext{CurrentGroupState: make([]interface{}, 2)}
	require.NoError(t, s.UpdateAggregate(ctx, gctx, bRow(10)))
	require.NoError(t, s.UpdateAggregate(ctx, gctx, bRow(15)))

	v, err := s.EvalGrouped(ctx, nil, gctx)
	require.NoError(t, err)
	require.Equal(t, decimal.NewFromInt(25), v.Decimal())
	// Slot 0 must be untouched.
	require.Nil(t, gctx.CurrentGroupState[0])
}
