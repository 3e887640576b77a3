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

// Lockable is implemented by tables that support SELECT ... FOR UPDATE.
// Grounded on the teacher's sql.Lockable, exercised by
// sql/plan/lock_test.go's LockTables/UnlockTables.
type Lockable interface {
	Lock(ctx *Context, write bool) error
	Unlock(ctx *Context, id uint32) error
}
