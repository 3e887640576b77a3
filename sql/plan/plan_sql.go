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

	"github.com/queryforge/selectcore/sql/expression"
)

// PlanSQL regenerates a canonical SQL reconstruction of the prepared
// statement (spec.md §4.5). A method on Select rather than a separate
// visitor type, mirroring the teacher's convention of a String()/
// DebugString() method living directly on each sql/plan node
// (SPEC_FULL.md "Plan printer" addendum).
func (s *Select) PlanSQL() string {
	var b strings.Builder
	b.WriteString("SELECT ")
	if s.IsDistinct {
		b.WriteString("DISTINCT ")
		if len(s.DistinctIndexes) > 0 {
			b.WriteString("ON (")
			b.WriteString(s.exprListText(s.DistinctIndexes))
			b.WriteString(") ")
		}
	}
	b.WriteString(expression.SQLTextOf(s.Expressions[:s.VisibleColumnCount]))

	if len(s.Filters) > 0 {
		b.WriteString(" FROM ")
		for i, f := range s.Filters {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(f.Alias())
		}
	}
	if s.Condition != nil {
		fmt.Fprintf(&b, " WHERE %s", s.Condition.SQLText())
	}
	if len(s.GroupIndex) > 0 {
		b.WriteString(" GROUP BY ")
		b.WriteString(s.exprListText(s.GroupIndex))
	}
	if s.HavingIndex >= 0 {
		fmt.Fprintf(&b, " HAVING %s", s.Expressions[s.HavingIndex].SQLText())
	}
	if s.Sort != nil && len(s.Sort.Columns) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(s.Sort.String())
	}
	if s.OffsetExpr != nil {
		fmt.Fprintf(&b, " OFFSET %s", s.OffsetExpr.SQLText())
	}
	if s.LimitExpr != nil {
		if s.FetchPercent {
			fmt.Fprintf(&b, " FETCH FIRST %s PERCENT ROWS", s.LimitExpr.SQLText())
		} else {
			fmt.Fprintf(&b, " LIMIT %s", s.LimitExpr.SQLText())
		}
		if s.WithTies {
			b.WriteString(" WITH TIES")
		}
	}
	if s.IsForUpdate {
		b.WriteString(" FOR UPDATE")
	}
	for _, c := range s.planComments {
		fmt.Fprintf(&b, " /* %s */", c)
	}
	return b.String()
}

func (s *Select) exprListText(indexes []int) string {
	parts := make([]string, len(indexes))
	for i, idx := range indexes {
		parts[i] = s.Expressions[idx].SQLText()
	}
	return strings.Join(parts, ", ")
}
