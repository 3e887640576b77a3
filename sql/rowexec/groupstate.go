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

// Package rowexec drives a prepared plan.Select through exactly one of the
// five execution strategies spec.md §4.3 names, and implements the lazy
// pull-based driver of spec.md §4.4. Grounded on the teacher's
// sql/rowexec package (builder_gen.go's Node-to-RowIter dispatch,
// group_by.go/distinct.go/having.go/limit.go), generalized since this core
// dispatches on a single Select's flags rather than walking a Node tree.
package rowexec

import "github.com/queryforge/selectcore/sql"

// groupEntry is one group's state: its key and its per-aggregate state
// vector. Grounded on spec.md §9's Design Notes recommendation of "a
// stable, index-keyed arena of per-group vectors" in place of the source's
// map-of-vectors (whose values must be rebound whenever a vector grows).
type groupEntry struct {
	key   sql.ValueArray
	state []interface{}
}

// groupStore is the group-state store of spec.md §3: a map from a
// composite key to an arena slot. Growing an entry's state vector mutates
// it in place rather than rebinding the map value, since the map holds an
// arena index, not the vector itself.
type groupStore struct {
	arena []*groupEntry
	index map[string]int
}

func newGroupStore() *groupStore {
	return &groupStore{index: map[string]int{}}
}

// getOrCreate returns the entry for key, creating one sized to width if
// absent, and growing an existing one in place to exactly width if it is
// narrower.
func (g *groupStore) getOrCreate(key sql.ValueArray, width int) *groupEntry {
	k := key.Encode()
	if i, ok := g.index[k]; ok {
		e := g.arena[i]
		if len(e.state) < width {
			grown := make([]interface{}, width)
			copy(grown, e.state)
			e.state = grown
		}
		return e
	}
	e := &groupEntry{key: key, state: make([]interface{}, width)}
	g.arena = append(g.arena, e)
	g.index[k] = len(g.arena) - 1
	return e
}

func (g *groupStore) len() int { return len(g.arena) }

// each visits every group in arena-append order (unspecified relative to
// key, per spec.md §5: "Hashed grouping produces groups in unspecified
// order and must be sorted downstream if ORDER BY is present").
func (g *groupStore) each(fn func(*groupEntry) error) error {
	for _, e := range g.arena {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func sameKey(a, b sql.ValueArray) bool {
	return a.Encode() == b.Encode()
}
