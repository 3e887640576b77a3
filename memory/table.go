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

// Package memory is an in-memory fixture implementing plan.TableFilter and
// plan.Index, simplified from the teacher's memory.Table (partitioned,
// sql.IndexLookup-driven) down to a single partition and a direct slice
// scan — sufficient to drive this core's tests without a real storage
// engine or query optimizer behind it.
package memory

import (
	"io"
	"sort"

	"github.com/queryforge/selectcore/sql"
	"github.com/queryforge/selectcore/sql/expression"
	"github.com/queryforge/selectcore/sql/plan"
)

// Table is a single-partition, wholly-buffered table, grounded on the
// teacher's memory.Table minus partitioning, foreign keys, and the
// checks/triggers machinery (out of scope per spec.md §1).
type Table struct {
	name   string
	schema sql.Schema
	rows   []sql.Row

	index plan.Index
	join  plan.TableFilter

	pos int

	lockHolder bool
	lockedRows []sql.Row

	joinOuter        bool
	joinOuterIndirect bool
	naturalJoinCols  map[int]bool

	joinBatch int
	hasIn     bool
}

func NewTable(name string, schema sql.Schema, rows ...sql.Row) *Table {
	return &Table{name: name, schema: schema, rows: rows}
}

func (t *Table) Name() string      { return t.name }
func (t *Table) AllRows() []sql.Row { return t.rows }

func (t *Table) Insert(row sql.Row) { t.rows = append(t.rows, row) }

// tableLock is a separate type backing GetTable()'s sql.Lockable, since
// Lockable.Lock(ctx, write bool) and TableFilter.Lock(ctx, exclusive, shared
// bool) share a name but not a signature and so cannot both be methods of
// Table itself.
type tableLock struct{ t *Table }

func (l *tableLock) Lock(ctx *sql.Context, write bool) error {
	l.t.lockHolder = true
	return nil
}

func (l *tableLock) Unlock(ctx *sql.Context, id uint32) error {
	l.t.lockHolder = false
	return nil
}

// -- plan.TableFilter -----------------------------------------------------

func (t *Table) Next(ctx *sql.Context) (sql.Row, error) {
	if t.pos >= len(t.rows) {
		return nil, io.EOF
	}
	r := t.rows[t.pos]
	t.pos++
	return r, nil
}

func (t *Table) Close(ctx *sql.Context) error { return nil }

func (t *Table) Reset(ctx *sql.Context) error {
	t.pos = 0
	return nil
}

func (t *Table) StartQuery(ctx *sql.Context) error {
	t.pos = 0
	return nil
}

// Lock acquires the non-MVCC FOR UPDATE lock (spec.md §6); exclusive when
// the statement is FOR UPDATE, shared otherwise.
func (t *Table) Lock(ctx *sql.Context, exclusive, shared bool) error {
	t.lockHolder = true
	return nil
}

// LockRowAdd buffers one row for the MVCC FOR UPDATE batched path
// (spec.md §6); LockRows commits the whole buffer at once.
func (t *Table) LockRowAdd(ctx *sql.Context, row sql.Row) error {
	t.lockedRows = append(t.lockedRows, row)
	return nil
}

func (t *Table) LockRows(ctx *sql.Context) error {
	t.lockedRows = nil
	return nil
}

func (t *Table) GetIndex() plan.Index    { return t.index }
func (t *Table) SetIndex(idx plan.Index) { t.index = idx }

// RowCount reports the table's exact row count; a wholly-buffered fixture
// always has this metadata on hand.
func (t *Table) RowCount(ctx *sql.Context) (int64, bool) { return int64(len(t.rows)), true }

func (t *Table) GetTable() sql.Lockable { return &tableLock{t} }

func (t *Table) GetJoin() plan.TableFilter       { return t.join }
func (t *Table) GetNestedJoin() plan.TableFilter { return nil }
func (t *Table) SetJoin(f plan.TableFilter)      { t.join = f }

func (t *Table) Prepare(ctx *sql.Context) error { return nil }
func (t *Table) PrepareJoinBatch(ctx *sql.Context, child plan.TableFilter, siblings []plan.TableFilter, i int) error {
	t.joinBatch = i
	return nil
}
func (t *Table) GetJoinBatch() int { return t.joinBatch }

func (t *Table) HasInComparisons() bool        { return t.hasIn }
func (t *Table) SetHasInComparisons(b bool)    { t.hasIn = b }
func (t *Table) IsJoinOuter() bool             { return t.joinOuter }
func (t *Table) SetJoinOuter(b bool)           { t.joinOuter = b }
func (t *Table) IsJoinOuterIndirect() bool     { return t.joinOuterIndirect }
func (t *Table) SetJoinOuterIndirect(b bool)   { t.joinOuterIndirect = b }
func (t *Table) IsNaturalJoinColumn(col int) bool {
	return t.naturalJoinCols != nil && t.naturalJoinCols[col]
}
func (t *Table) SetNaturalJoinColumn(col int) {
	if t.naturalJoinCols == nil {
		t.naturalJoinCols = map[int]bool{}
	}
	t.naturalJoinCols[col] = true
}

func (t *Table) Alias() string    { return t.name }
func (t *Table) Schema() sql.Schema { return t.schema }

func (t *Table) ColumnResolver() expression.ColumnResolver {
	return &tableResolver{t}
}

type tableResolver struct{ t *Table }

func (r *tableResolver) ResolveColumn(table, name string) (int, sql.Kind, bool) {
	if table != "" && table != r.t.name {
		return 0, sql.KindNull, false
	}
	for i, col := range r.t.schema {
		if col.Name == name {
			return i, col.Kind, true
		}
	}
	return 0, sql.KindNull, false
}

// -- single-column index fixture -------------------------------------------

// ColumnIndex is a simple ascending, non-unique, non-hash single-column
// index fixture: it sorts a snapshot of the table's rows by one column and
// answers FindNext by binary-searching the bound, the way the teacher's
// test_util ascend/descend index fakes stand in for a real storage engine
// index in tests.
type ColumnIndex struct {
	table  *Table
	colIdx int
	name   string
}

func NewColumnIndex(t *Table, colIdx int) *ColumnIndex {
	return &ColumnIndex{table: t, colIdx: colIdx, name: t.schema[colIdx].Name}
}

func (i *ColumnIndex) Columns() []string { return []string{i.name} }
func (i *ColumnIndex) IndexColumns() []plan.IndexColumn {
	return []plan.IndexColumn{{Name: i.name}}
}
func (i *ColumnIndex) Type() plan.IndexType { return plan.IndexType{} }
func (i *ColumnIndex) CanFindNext() bool    { return true }
func (i *ColumnIndex) IsRowIDIndex() bool   { return false }
func (i *ColumnIndex) CreateSQL() string {
	return "INDEX ON " + i.table.name + " (" + i.name + ")"
}

// FindNext returns a one-row iterator holding the first row, in ascending
// column order, whose column value is strictly greater than from's (the
// smallest row when from is nil); to is ignored. The distinct-scan strategy
// calls it once per distinct key.
func (i *ColumnIndex) FindNext(ctx *sql.Context, from, to sql.Row) (sql.RowIter, error) {
	rows := append([]sql.Row(nil), i.table.rows...)
	sort.SliceStable(rows, func(a, b int) bool {
		return sql.Compare(rows[a][i.colIdx], rows[b][i.colIdx]) == sql.CompareLess
	})
	if from == nil {
		if len(rows) == 0 {
			return sql.RowsToRowIter(), nil
		}
		return sql.RowsToRowIter(rows[0]), nil
	}
	bound := from[i.colIdx]
	for _, r := range rows {
		if sql.Compare(r[i.colIdx], bound) == sql.CompareGreater {
			return sql.RowsToRowIter(r), nil
		}
	}
	return sql.RowsToRowIter(), nil
}

// FirstKey and LastKey scan the indexed column directly for its smallest/
// largest non-NULL value, skipping NULLs the same way aggregation.Extreme's
// UpdateState does, so the quick-aggregate MIN/MAX path (spec.md §4.2 step
// 4) agrees with a real scan-and-fold MIN/MAX over the same column.
func (i *ColumnIndex) FirstKey(ctx *sql.Context) (sql.Value, bool, error) {
	return extremeOf(i.table.rows, i.colIdx, sql.CompareLess)
}

func (i *ColumnIndex) LastKey(ctx *sql.Context) (sql.Value, bool, error) {
	return extremeOf(i.table.rows, i.colIdx, sql.CompareGreater)
}

func extremeOf(rows []sql.Row, colIdx int, want sql.CompareResult) (sql.Value, bool, error) {
	var best sql.Value
	found := false
	for _, r := range rows {
		v := r[colIdx]
		if v.IsNull() {
			continue
		}
		if !found || sql.Compare(v, best) == want {
			best, found = v, true
		}
	}
	return best, found, nil
}
