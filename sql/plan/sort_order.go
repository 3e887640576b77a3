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
	"fmt"
	"strings"

	"github.com/queryforge/selectcore/sql"
	"github.com/queryforge/selectcore/sql/expression"
)

// OrderByItem is one pre-binding ORDER BY entry (spec.md §3 "orderList").
// Position is a 1-based column reference (`ORDER BY 2`); Expr is nil in
// that case until binding resolves it.
type OrderByItem struct {
	Expr       expression.Expression
	Position   int // 0 means "not a positional reference"
	Desc       bool
	NullsFirst bool

	// ResolvedIndex is filled in by Select.Init's ORDER BY binding step
	// (spec.md §4.1 step 5); Select.Prepare step 1 consumes it to build the
	// final SortOrder.
	ResolvedIndex int
}

// SortOrder is the materialized sort order built from orderList during
// Select.Prepare (spec.md §4.2 step 1): fixed column indices into
// Select.expressions, with direction and null-placement per column.
type SortOrder struct {
	Columns    []int
	Desc       []bool
	NullsFirst []bool
}

func (s *SortOrder) String() string {
	if s == nil || len(s.Columns) == 0 {
		return ""
	}
	parts := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		dir := "ASC"
		if s.Desc[i] {
			dir = "DESC"
		}
		parts[i] = fmt.Sprintf("%d %s", c+1, dir)
	}
	return strings.Join(parts, ", ")
}

// Less reports whether row a sorts before row b under this order.
func (s *SortOrder) Less(a, b sql.Row) bool {
	for i, col := range s.Columns {
		cmp := sql.Compare(a[col], b[col])
		if cmp == sql.CompareEqual || cmp == sql.CompareUnknown {
			if cmp == sql.CompareUnknown {
				an, bn := a[col].IsNull(), b[col].IsNull()
				if an != bn {
					if s.NullsFirst[i] {
						return an
					}
					return bn
				}
			}
			continue
		}
		if s.Desc[i] {
			return cmp == sql.CompareGreater
		}
		return cmp == sql.CompareLess
	}
	return false
}

// Equal reports whether a and b compare equal on every sort column — the
// comparator WITH TIES uses to decide whether to keep emitting past the
// limit (spec.md §4.3, strategy "Flat").
func (s *SortOrder) Equal(a, b sql.Row) bool {
	for _, col := range s.Columns {
		if !sql.NullSafeEqual(a[col], b[col]) {
			if a[col].IsNull() != b[col].IsNull() {
				return false
			}
			if sql.Compare(a[col], b[col]) != sql.CompareEqual {
				return false
			}
		}
	}
	return true
}

// MatchesIndexPrefix reports whether this order's leading columns match
// cols exactly in column identity, direction, and null placement — the
// test spec.md §4.2 step 7 performs before eliding a sort.
func (s *SortOrder) MatchesIndexPrefix(cols []IndexColumn, colOf func(name string) (int, bool)) bool {
	if len(cols) < len(s.Columns) {
		return false
	}
	for i, want := range s.Columns {
		idx, ok := colOf(cols[i].Name)
		if !ok || idx != want {
			return false
		}
		if cols[i].Desc != s.Desc[i] || cols[i].NullsFirst != s.NullsFirst[i] {
			return false
		}
	}
	return true
}
