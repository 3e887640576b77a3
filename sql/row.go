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

package sql

import "io"

// Row is an ordered sequence of values sized to expressionCount; column
// positions are fixed after preparation (spec.md §3).
type Row []Value

// NewRow builds a Row from already-tagged Values.
func NewRow(values ...Value) Row {
	r := make(Row, len(values))
	copy(r, values)
	return r
}

func (r Row) Copy() Row {
	cp := make(Row, len(r))
	copy(cp, r)
	return cp
}

// RowIter is the pull-based protocol every table filter, strategy, and
// lazy-result driver in this core is built on (spec.md §9, "uniformly model
// a result as a pull iterator"). Next returns io.EOF, same as the teacher's
// sql.RowIter, once exhausted.
type RowIter interface {
	Next(ctx *Context) (Row, error)
	Close(ctx *Context) error
}

type sliceRowIter struct {
	rows []Row
	pos  int
}

// RowsToRowIter adapts a fixed slice of rows to the RowIter protocol —
// used by quick-aggregate (one row) and by tests.
func RowsToRowIter(rows ...Row) RowIter {
	return &sliceRowIter{rows: rows}
}

func (i *sliceRowIter) Next(ctx *Context) (Row, error) {
	if i.pos >= len(i.rows) {
		return nil, io.EOF
	}
	r := i.rows[i.pos]
	i.pos++
	return r, nil
}

func (i *sliceRowIter) Close(ctx *Context) error { return nil }

// RowIterToRows drains a RowIter into a slice, honoring cancellation at the
// granularity of each Next call (spec.md §5, "Cancellation").
func RowIterToRows(ctx *Context, iter RowIter) ([]Row, error) {
	var rows []Row
	for {
		if ctx.Aborted() {
			return rows, ErrQueryAborted.New()
		}
		row, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, iter.Close(ctx)
}
