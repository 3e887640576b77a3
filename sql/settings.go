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

import "context"

// Settings carries the database-level knobs spec.md §6 lists as a
// collaborator contract, grounded on the teacher's Config/database-settings
// pattern in engine.go. A *Settings hangs off the Context the way the
// teacher hangs sql.Catalog/sql.ProcessList off it.
type Settings struct {
	OptimizeInsertFromSelect      bool
	OptimizeDistinct              bool
	OptimizeEvaluatableSubqueries bool
	SelectForUpdateMvcc           bool
	IsMVStore                     bool
	// IdentifiersCaseSensitive controls the comparison used to match SQL
	// text/aliases during binding (spec.md §4.1, "identifier-aware SQL
	// comparison").
	IdentifiersCaseSensitive bool
}

// DefaultSettings mirrors the teacher's zero-value Config being mostly
// usable out of the box: case-insensitive identifiers, no MVCC FOR UPDATE,
// optimizations on.
func DefaultSettings() *Settings {
	return &Settings{
		OptimizeDistinct:              true,
		OptimizeEvaluatableSubqueries: true,
	}
}

type settingsKey struct{}

// WithSettings attaches Settings to a Context, readable back via GetSettings.
func (c *Context) WithSettings(s *Settings) *Context {
	cp := *c
	cp.Context = context.WithValue(cp.Context, settingsKey{}, s)
	return &cp
}

// GetSettings returns the Context's Settings, or DefaultSettings if none
// were attached.
func (c *Context) GetSettings() *Settings {
	if s, ok := c.Context.Value(settingsKey{}).(*Settings); ok {
		return s
	}
	return DefaultSettings()
}
