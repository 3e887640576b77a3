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
	"github.com/queryforge/selectcore/sql"
	"github.com/queryforge/selectcore/sql/expression"
)

// Init binds the statement: wildcard expansion, DISTINCT ON/ORDER BY/GROUP
// BY/HAVING binding, and column mapping (spec.md §4.1). It is
// idempotent-guarded: calling it twice is a fatal internal error, matching
// the teacher's pattern of panicking on a double-Analyze of the same node.
func (s *Select) Init(ctx *sql.Context) error {
	if s.initialized {
		return sql.ErrDoubleInit.New()
	}

	// Step 1: expand wildcards.
	if err := s.expandWildcards(ctx); err != nil {
		return err
	}
	// Step 2.
	s.VisibleColumnCount = len(s.Expressions)

	// Step 3: snapshot SQL text for match-by-text binding, only when one of
	// DISTINCT ON / ORDER BY / GROUP BY needs it.
	if len(s.DistinctExpressions) > 0 || len(s.orderList) > 0 || len(s.group) > 0 {
		s.snapshotSQLText = make([]string, s.VisibleColumnCount)
		for i := 0; i < s.VisibleColumnCount; i++ {
			s.snapshotSQLText[i] = s.Expressions[i].NonAlias().SQLText()
		}
	}

	// Step 4: bind DISTINCT ON.
	if len(s.DistinctExpressions) > 0 {
		seen := map[int]bool{}
		for _, e := range s.DistinctExpressions {
			idx := s.findOrAppendExpr(ctx, e)
			if !seen[idx] {
				seen[idx] = true
				s.DistinctIndexes = append(s.DistinctIndexes, idx)
			}
		}
	}

	// Step 5: bind ORDER BY.
	for i := range s.orderList {
		item := &s.orderList[i]
		if item.Position > 0 {
			if item.Position > s.VisibleColumnCount {
				return sql.ErrInvalidOrderByPosition.New(item.Position, s.VisibleColumnCount)
			}
			item.ResolvedIndex = item.Position - 1
			continue
		}
		item.ResolvedIndex = s.findOrAppendExpr(ctx, item.Expr)
	}

	// Step 6.
	s.DistinctColumnCount = len(s.Expressions)

	// Step 7: append HAVING.
	if s.havingExpr != nil {
		s.Expressions = append(s.Expressions, s.havingExpr)
		s.HavingIndex = len(s.Expressions) - 1
	}

	// Step 8.
	if s.WithTies && len(s.orderList) == 0 {
		return sql.ErrWithTiesWithoutOrderBy.New()
	}

	// Step 9: bind GROUP BY.
	if len(s.group) > 0 {
		for _, g := range s.group {
			idx := -1
			text := g.NonAlias().SQLText()
			for i, e := range s.Expressions {
				if e.NonAlias().SQLText() == text {
					idx = i
					break
				}
			}
			if idx < 0 {
				name := g.Alias()
				if name == "" {
					if gf, ok := g.NonAlias().(*expression.GetField); ok {
						name = gf.Name
					}
				}
				if name != "" {
					for i, e := range s.Expressions {
						if identEqual(ctx, e.Alias(), name) {
							idx = i
							break
						}
					}
				}
			}
			if idx < 0 {
				s.Expressions = append(s.Expressions, g)
				idx = len(s.Expressions) - 1
			}
			s.GroupIndex = append(s.GroupIndex, idx)
		}
	}
	s.GroupByExpression = make([]bool, len(s.Expressions))
	for _, idx := range s.GroupIndex {
		s.GroupByExpression[idx] = true
	}

	s.IsGroupQuery = len(s.group) > 0
	if !s.IsGroupQuery {
		for i := 0; i < s.VisibleColumnCount; i++ {
			if containsAggregate(s.Expressions[i]) {
				s.IsGroupQuery = true
				break
			}
		}
	}
	s.group = nil

	// Step 10: map_columns over every filter for all expressions; HAVING
	// binds through a resolver that treats the projection list as a column
	// source too.
	base := &compositeResolver{ctx: ctx, filters: s.Filters}
	having := &projectionResolver{ctx: ctx, sel: s, fallback: base}
	for i, e := range s.Expressions {
		if i == s.HavingIndex {
			s.Expressions[i] = e.MapColumns(having, 0)
		} else {
			s.Expressions[i] = e.MapColumns(base, 0)
		}
	}
	if s.Condition != nil {
		s.Condition = s.Condition.MapColumns(base, 0)
	}

	s.assignAggregateSlots()

	s.initialized = true
	return nil
}

// expandWildcards implements spec.md §4.1 step 1.
func (s *Select) expandWildcards(ctx *sql.Context) error {
	var out []expression.Expression
	for _, e := range s.Expressions {
		star, ok := e.(*expression.Star)
		if !ok {
			out = append(out, e)
			continue
		}
		matched := false
		offset := 0
		for _, f := range s.Filters {
			schema := f.Schema()
			isMatch := star.Qualifier == "" || identEqual(ctx, f.Alias(), star.Qualifier)
			if star.Qualifier != "" && isMatch {
				matched = true
			}
			if isMatch {
				for i, col := range schema {
					if f.IsNaturalJoinColumn(i) {
						continue
					}
					out = append(out, expression.NewGetField(offset+i, col.Kind, col.Name, col.Nullable))
				}
			}
			offset += len(schema)
		}
		if star.Qualifier != "" && !matched {
			return sql.ErrTableOrViewNotFound.New(star.Qualifier)
		}
	}
	s.Expressions = out
	return nil
}
