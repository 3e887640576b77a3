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

// Column describes one output position of a Schema.
type Column struct {
	Name     string
	Kind     Kind
	Nullable bool
	Source   string // originating table/filter alias, "" if synthetic
}

// Schema is the ordered output shape of a Node or a prepared Select.
type Schema []*Column

func (s Schema) Copy() Schema {
	cp := make(Schema, len(s))
	for i, c := range s {
		cc := *c
		cp[i] = &cc
	}
	return cp
}

func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}
