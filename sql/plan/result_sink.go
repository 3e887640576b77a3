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
	"io"
	"sort"

	"github.com/queryforge/selectcore/sql"
)

// ResultSink is the opaque collaborator spec.md §6 lists: a buffer the
// executor feeds rows into, which knows how to apply distinctness, sort
// order, offset/limit/fetch-percent/with-ties once scanning is done
// (spec.md §4.3, "After execution"). Grounded on the teacher's
// sql.RowIter-returning result builders, generalized to the explicit
// method set spec.md names.
type ResultSink interface {
	AddRow(row sql.Row) error
	RowCount() int

	SetDistinct(indexes []int)
	SetSortOrder(order *SortOrder)
	SetOffset(offset int)
	SetLimit(limit int) // -1 means unlimited
	SetFetchPercent(isPercent bool)
	SetWithTies(withTies bool)

	// Done applies sorting, distinct filtering, and limit/tie application
	// to the buffered rows. Called exactly once, after scanning finishes.
	Done(ctx *sql.Context) error
	// LimitsWereApplied reports whether Done already enforced limit/offset,
	// so callers don't double-apply them.
	LimitsWereApplied() bool

	Reset() error
	Next(ctx *sql.Context) (sql.Row, error)
	CurrentRow() sql.Row
	Close(ctx *sql.Context) error
}

// MaterializedSink is the concrete ResultSink this core ships: a plain
// in-memory row buffer, sufficient for every strategy in spec.md §4.3 since
// none of them require spilling to disk (out of scope, per spec.md §1).
type MaterializedSink struct {
	rows []sql.Row

	distinctIndexes []int
	sortOrder       *SortOrder
	offset          int
	limit           int
	fetchPercent    bool
	withTies        bool

	limitsApplied bool
	pos           int
}

func NewMaterializedSink() *MaterializedSink {
	return &MaterializedSink{limit: -1}
}

func (m *MaterializedSink) AddRow(row sql.Row) error {
	m.rows = append(m.rows, row)
	return nil
}

func (m *MaterializedSink) RowCount() int { return len(m.rows) }

func (m *MaterializedSink) SetDistinct(indexes []int) { m.distinctIndexes = indexes }
func (m *MaterializedSink) SetSortOrder(order *SortOrder) { m.sortOrder = order }
func (m *MaterializedSink) SetOffset(offset int)      { m.offset = offset }
func (m *MaterializedSink) SetLimit(limit int)        { m.limit = limit }
func (m *MaterializedSink) SetFetchPercent(b bool)    { m.fetchPercent = b }
func (m *MaterializedSink) SetWithTies(b bool)        { m.withTies = b }
func (m *MaterializedSink) LimitsWereApplied() bool   { return m.limitsApplied }

// Done implements spec.md §4.3's post-scan pipeline: sort, then distinct,
// then fetch-percent conversion, then offset/limit/with-ties.
func (m *MaterializedSink) Done(ctx *sql.Context) error {
	if m.sortOrder != nil && len(m.sortOrder.Columns) > 0 {
		sort.SliceStable(m.rows, func(i, j int) bool {
			return m.sortOrder.Less(m.rows[i], m.rows[j])
		})
	}
	if len(m.distinctIndexes) > 0 {
		m.rows = dedupe(m.rows, m.distinctIndexes)
	}

	limit := m.limit
	if m.fetchPercent {
		if limit < 0 || limit > 100 {
			return sql.ErrFetchPercentOutOfRange.New(limit)
		}
		limit = (len(m.rows)*limit + 99) / 100
	}

	start := m.offset
	if start > len(m.rows) {
		start = len(m.rows)
	}
	end := len(m.rows)
	if limit >= 0 && start+limit < end {
		end = start + limit
		if m.withTies && m.sortOrder != nil && end > 0 && end < len(m.rows) {
			last := m.rows[end-1]
			for end < len(m.rows) && m.sortOrder.Equal(m.rows[end], last) {
				end++
			}
		}
	}
	m.rows = m.rows[start:end]
	m.limitsApplied = true
	return nil
}

func dedupe(rows []sql.Row, indexes []int) []sql.Row {
	seen := make(map[string]struct{}, len(rows))
	out := rows[:0:0]
	for _, row := range rows {
		key := make(sql.ValueArray, len(indexes))
		for i, idx := range indexes {
			key[i] = row[idx]
		}
		k := key.Encode()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, row)
	}
	return out
}

func (m *MaterializedSink) Reset() error { m.pos = 0; return nil }

func (m *MaterializedSink) Next(ctx *sql.Context) (sql.Row, error) {
	if m.pos >= len(m.rows) {
		return nil, io.EOF
	}
	r := m.rows[m.pos]
	m.pos++
	return r, nil
}

func (m *MaterializedSink) CurrentRow() sql.Row {
	if m.pos == 0 || m.pos > len(m.rows) {
		return nil
	}
	return m.rows[m.pos-1]
}

func (m *MaterializedSink) Close(ctx *sql.Context) error { return nil }

// Rows exposes the buffered rows directly, for drain-into-target callers
// (spec.md §4.3, "if a caller target was provided, drain into it").
func (m *MaterializedSink) Rows() []sql.Row { return m.rows }
