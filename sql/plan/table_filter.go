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

// Package plan holds the Select statement's bound-and-prepared state
// (spec.md §3 "Select statement state") plus the collaborator contracts it
// is built against: TableFilter (the join-optimizer's output, spec.md §6)
// and Index (the access layer, spec.md §6). Both are treated as opaque
// externally-supplied capabilities, the same way the teacher treats
// sql.Table/sql.IndexLookup as interfaces the analyzer wires up and
// rowexec only consumes.
package plan

import (
	"github.com/queryforge/selectcore/sql"
	"github.com/queryforge/selectcore/sql/expression"
)

// TableFilter is the pull-based row source over one table in the FROM
// clause, carrying join structure (spec.md §6). Grounded on the teacher's
// sql.Table/sql.Node duo, collapsed into one interface since this core
// only ever walks a single top-level chain, never an optimizer search tree.
type TableFilter interface {
	sql.RowIter

	Reset(ctx *sql.Context) error
	StartQuery(ctx *sql.Context) error

	// Lock acquires the table's lock for FOR UPDATE (non-MVCC path):
	// exclusive when the statement is FOR UPDATE, shared otherwise.
	Lock(ctx *sql.Context, exclusive, shared bool) error
	// LockRowAdd buffers one row's id for the MVCC FOR UPDATE batched path.
	LockRowAdd(ctx *sql.Context, row sql.Row) error
	// LockRows commits every buffered row id from LockRowAdd in one batch.
	LockRows(ctx *sql.Context) error

	GetIndex() Index
	SetIndex(idx Index)

	// RowCount returns the table's total row count and whether the filter
	// can answer it from metadata alone, without a scan — the collaborator
	// the quick-aggregate COUNT(*) path (spec.md §4.2 step 4) reads from.
	RowCount(ctx *sql.Context) (int64, bool)

	// GetTable returns the Lockable backing this filter, for the non-MVCC
	// exclusive-lock path.
	GetTable() sql.Lockable

	GetJoin() TableFilter
	GetNestedJoin() TableFilter

	Prepare(ctx *sql.Context) error
	PrepareJoinBatch(ctx *sql.Context, child TableFilter, siblings []TableFilter, i int) error
	GetJoinBatch() int

	HasInComparisons() bool
	IsJoinOuter() bool
	IsJoinOuterIndirect() bool
	IsNaturalJoinColumn(col int) bool

	Alias() string
	Schema() sql.Schema
	// ColumnResolver lets binding (spec.md §4.1 step 10) resolve column
	// references qualified by this filter's alias/table name.
	ColumnResolver() expression.ColumnResolver
}

// IndexColumn is one column of an Index, with the sort metadata spec.md §6
// requires for sort-by-index elision (spec.md §4.2 step 7).
type IndexColumn struct {
	Name       string
	Desc       bool
	NullsFirst bool
}

// IndexType classifies an Index for the access-path chooser (spec.md §4.2
// steps 6–8).
type IndexType struct {
	IsScan  bool
	IsHash  bool
	IsUnique bool
}

// Index is the opaque access-layer capability spec.md §6 lists. Grounded
// on the teacher's sql.Index plus test_util's UnmergeableIndex/AscendIndex
// fakes.
type Index interface {
	Columns() []string
	IndexColumns() []IndexColumn
	Type() IndexType

	CanFindNext() bool
	// FindNext returns a cursor-shaped RowIter whose first row is the
	// smallest entry strictly after from (from the start when from is nil),
	// bounded by to when to is non-nil; the distinct scan reads only that
	// first row.
	FindNext(ctx *sql.Context, from, to sql.Row) (sql.RowIter, error)

	// FirstKey and LastKey return this index's leading column's smallest
	// and largest non-NULL value (ok false when the index has no non-NULL
	// entries) — the collaborators the quick-aggregate MIN/MAX path
	// (spec.md §4.2 step 4) reads from instead of scanning every row.
	FirstKey(ctx *sql.Context) (sql.Value, bool, error)
	LastKey(ctx *sql.Context) (sql.Value, bool, error)

	IsRowIDIndex() bool
	CreateSQL() string
}
