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

package memory

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/queryforge/selectcore/sql"
)

func testSchema() sql.Schema {
	return sql.Schema{
		{Name: "a", Kind: sql.KindInt64, Source: "t"},
		{Name: "b", Kind: sql.KindInt64, Source: "t"},
	}
}

func row(a, b int64) sql.Row {
	return sql.NewRow(sql.Int64Value(a), sql.Int64Value(b))
}

func TestTableScan(t *testing.T) {
	ctx := sql.NewEmptyContext()
	tbl := NewTable("t", testSchema(), row(1, 10), row(2, 30))

	var got []sql.Row
	for {
		r, err := tbl.Next(ctx)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, r)
	}
	require.Equal(t, []sql.Row{row(1, 10), row(2, 30)}, got)

	require.NoError(t, tbl.Reset(ctx))
	r, err := tbl.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, row(1, 10), r)
}

func TestTableLockRoundTrip(t *testing.T) {
	ctx := sql.NewEmptyContext()
	tbl := NewTable("t", testSchema())

	require.NoError(t, tbl.Lock(ctx, true, false))
	require.True(t, tbl.lockHolder)

	lockable := tbl.GetTable()
	require.NoError(t, lockable.Lock(ctx, true))
	require.NoError(t, lockable.Unlock(ctx, 0))
	require.False(t, tbl.lockHolder)
}

func TestTableMVCCLockBatch(t *testing.T) {
	ctx := sql.NewEmptyContext()
	tbl := NewTable("t", testSchema())

	require.NoError(t, tbl.LockRowAdd(ctx, row(1, 10)))
	require.NoError(t, tbl.LockRowAdd(ctx, row(2, 20)))
	require.Len(t, tbl.lockedRows, 2)
	require.NoError(t, tbl.LockRows(ctx))
	require.Empty(t, tbl.lockedRows)
}

func TestColumnResolver(t *testing.T) {
	tbl := NewTable("t", testSchema())
	resolver := tbl.ColumnResolver()

	idx, kind, ok := resolver.ResolveColumn("", "b")
	require.True(t, ok)
	require.Equal(t, 1, idx)
	require.Equal(t, sql.KindInt64, kind)

	_, _, ok = resolver.ResolveColumn("other", "b")
	require.False(t, ok)

	_, _, ok = resolver.ResolveColumn("", "missing")
	require.False(t, ok)
}

func TestColumnIndexFindNextAscendsAndSkipsTo(t *testing.T) {
	ctx := sql.NewEmptyContext()
	tbl := NewTable("t", testSchema(), row(3, 50), row(1, 10), row(2, 30))
	idx := NewColumnIndex(tbl, 0)

	require.Equal(t, []string{"a"}, idx.Columns())
	require.True(t, idx.CanFindNext())
	require.False(t, idx.IsRowIDIndex())

	it, err := idx.FindNext(ctx, nil, nil)
	require.NoError(t, err)
	first, err := it.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, row(1, 10), first)

	it, err = idx.FindNext(ctx, first, nil)
	require.NoError(t, err)
	second, err := it.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, row(2, 30), second)

	it, err = idx.FindNext(ctx, row(3, 50), nil)
	require.NoError(t, err)
	_, err = it.Next(ctx)
	require.ErrorIs(t, err, io.EOF)
}
