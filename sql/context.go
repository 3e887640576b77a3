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

import (
	"context"
	"sync/atomic"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"
)

// Session is the collaborator contract spec.md §6 asks for: database
// handle, lazy-execution preference and sample size. The per-query row
// counter and the abort flag live on Context, not on Session.
type Session interface {
	ID() uint32
	Database() string
	IsLazyQueryExecution() bool
	// SampleSize is a session-scoped cap on the number of condition-passing
	// rows a scan will consume (spec.md §5, "Sample size"); 0 means
	// unlimited.
	SampleSize() int
}

// BasicSession is the minimal concrete Session this core ships, sufficient
// to drive tests and a single-process embedding, mirroring the teacher's
// pattern of a small built-in session plus an interface integrators can
// replace (sql.Session in the teacher).
type BasicSession struct {
	id         uint32
	db         string
	lazy       bool
	sampleSize int
}

func NewBasicSession(id uint32, db string) *BasicSession {
	return &BasicSession{id: id, db: db}
}

func (s *BasicSession) ID() uint32               { return s.id }
func (s *BasicSession) Database() string         { return s.db }
func (s *BasicSession) IsLazyQueryExecution() bool { return s.lazy }
func (s *BasicSession) SampleSize() int           { return s.sampleSize }
func (s *BasicSession) SetLazyQueryExecution(b bool) { s.lazy = b }
func (s *BasicSession) SetSampleSize(n int)       { s.sampleSize = n }

// Context carries everything a query needs besides the plan tree itself:
// the Go context for cancellation, the Session, a logrus entry, and an
// opentracing tracer — the same four the teacher's sql.Context bundles.
type Context struct {
	context.Context
	Session Session

	logger  *logrus.Entry
	tracer  opentracing.Tracer
	aborted atomic.Bool
	rowCount int64
}

func NewContext(parent context.Context, session Session) *Context {
	return &Context{
		Context: parent,
		Session: session,
		logger:  logrus.NewEntry(logrus.StandardLogger()),
		tracer:  opentracing.NoopTracer{},
	}
}

func NewEmptyContext() *Context {
	return NewContext(context.Background(), NewBasicSession(0, ""))
}

func (c *Context) GetLogger() *logrus.Entry { return c.logger }

func (c *Context) WithLogger(l *logrus.Entry) *Context {
	cp := *c
	cp.logger = l
	return &cp
}

func (c *Context) WithTracer(t opentracing.Tracer) *Context {
	cp := *c
	cp.tracer = t
	return &cp
}

// Span opens a span named "pkg.Component", matching the teacher's
// "plan.Project"/"plan.Sort" naming convention observed in its engine test
// suite's span assertions.
func (c *Context) Span(name string) (opentracing.Span, *Context) {
	span, goCtx := opentracing.StartSpanFromContextWithTracer(c.Context, c.tracer, name)
	cp := *c
	cp.Context = goCtx
	return span, &cp
}

// Abort flags the context so every RowIter.Next call along the pull chain
// observes it at its next granularity point (spec.md §5, "Cancellation").
func (c *Context) Abort()          { c.aborted.Store(true) }
func (c *Context) Aborted() bool   { return c.aborted.Load() }

// IncrementRowCount is called once per row a scan accepts past WHERE;
// ProcessList-style progress reporting in the teacher reads this counter.
func (c *Context) IncrementRowCount() int64 {
	return atomic.AddInt64(&c.rowCount, 1)
}

func (c *Context) RowCount() int64 { return atomic.LoadInt64(&c.rowCount) }
