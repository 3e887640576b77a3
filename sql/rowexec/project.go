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

package rowexec

import (
	"github.com/queryforge/selectcore/sql"
	"github.com/queryforge/selectcore/sql/plan"
)

// projectRow evaluates the DISTINCT-column-count prefix of the projection
// list against an input row — the non-grouped counterpart of buildGroupRow,
// used by the flat and distinct-scan strategies.
func projectRow(ctx *sql.Context, sel *plan.Select, row sql.Row) (sql.Row, error) {
	out := make(sql.Row, sel.DistinctColumnCount)
	for i := 0; i < sel.DistinctColumnCount; i++ {
		v, err := sel.Expressions[i].Eval(ctx, row)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func passesWhere(ctx *sql.Context, sel *plan.Select, row sql.Row) (bool, error) {
	if sel.Condition == nil {
		return true, nil
	}
	return sel.Condition.BooleanValue(ctx, row)
}
