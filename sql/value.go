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
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dolthub/vitess/go/sqltypes"
	"github.com/shopspring/decimal"
)

// Kind tags the dynamic type carried by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt64
	KindUint64
	KindFloat64
	KindDecimal
	KindString
	KindBytes
	KindDate
	KindDatetime
	KindTime
	KindArray
)

// Value is a tagged variant covering every scalar the executor needs to
// compare, hash, and hand back to a result sink, plus ValueArray (KindArray)
// used as a composite grouping key. Values are immutable once constructed.
type Value struct {
	kind  Kind
	b     bool
	i     int64
	u     uint64
	f     float64
	dec   decimal.Decimal
	s     string
	bs    []byte
	t     time.Time
	array ValueArray
}

// ValueArray is an ordered sequence of Values used as a map key for
// hashed-group aggregation (spec.md §3, "composite ValueArray").
type ValueArray []Value

func NullValue() Value                { return Value{kind: KindNull} }
func BoolValue(b bool) Value          { return Value{kind: KindBool, b: b} }
func Int64Value(i int64) Value        { return Value{kind: KindInt64, i: i} }
func Uint64Value(u uint64) Value       { return Value{kind: KindUint64, u: u} }
func Float64Value(f float64) Value     { return Value{kind: KindFloat64, f: f} }
func DecimalValue(d decimal.Decimal) Value { return Value{kind: KindDecimal, dec: d} }
func StringValue(s string) Value      { return Value{kind: KindString, s: s} }
func BytesValue(b []byte) Value       { return Value{kind: KindBytes, bs: b} }
func DateValue(t time.Time) Value     { return Value{kind: KindDate, t: t} }
func DatetimeValue(t time.Time) Value { return Value{kind: KindDatetime, t: t} }
func TimeValue(t time.Time) Value     { return Value{kind: KindTime, t: t} }
func ArrayValue(vs ValueArray) Value  { return Value{kind: KindArray, array: vs} }

func (v Value) Kind() Kind    { return v.kind }
func (v Value) IsNull() bool  { return v.kind == KindNull }
func (v Value) Bool() bool    { return v.b }
func (v Value) Int64() int64  { return v.i }
func (v Value) Uint64() uint64 { return v.u }
func (v Value) Float64() float64 { return v.f }
func (v Value) Decimal() decimal.Decimal { return v.dec }
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "NULL"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt64:
		return strconv.FormatInt(v.i, 10)
	case KindUint64:
		return strconv.FormatUint(v.u, 10)
	case KindFloat64:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindDecimal:
		return v.dec.String()
	case KindString:
		return v.s
	case KindBytes:
		return string(v.bs)
	case KindDate, KindDatetime, KindTime:
		return v.t.String()
	case KindArray:
		parts := make([]string, len(v.array))
		for i, e := range v.array {
			parts[i] = e.String()
		}
		return "(" + strings.Join(parts, ", ") + ")"
	default:
		return fmt.Sprintf("<value kind %d>", v.kind)
	}
}
func (v Value) Bytes() []byte { return v.bs }
func (v Value) Time() time.Time { return v.t }
func (v Value) Array() ValueArray { return v.array }

// FromSQLTypesValue converts a wire-level sqltypes.Value (as produced by a
// parameter binder upstream of this core) into a sql.Value. Grounded on the
// teacher's Engine.bindingsToExprs switch in engine.go, which performs the
// same dispatch when binding prepared-statement parameters.
func FromSQLTypesValue(v sqltypes.Value) (Value, error) {
	raw := v.ToBytes()
	switch {
	case v.Type() == sqltypes.Null:
		return NullValue(), nil
	case sqltypes.IsSigned(v.Type()):
		i, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return Value{}, err
		}
		return Int64Value(i), nil
	case sqltypes.IsUnsigned(v.Type()):
		u, err := strconv.ParseUint(string(raw), 10, 64)
		if err != nil {
			return Value{}, err
		}
		return Uint64Value(u), nil
	case sqltypes.IsFloat(v.Type()):
		f, err := strconv.ParseFloat(string(raw), 64)
		if err != nil {
			return Value{}, err
		}
		return Float64Value(f), nil
	case v.Type() == sqltypes.Decimal:
		d, err := decimal.NewFromString(string(raw))
		if err != nil {
			return Value{}, err
		}
		return DecimalValue(d), nil
	case v.Type() == sqltypes.Text || v.Type() == sqltypes.VarChar || v.Type() == sqltypes.Char:
		return StringValue(string(raw)), nil
	case v.Type() == sqltypes.Blob || v.Type() == sqltypes.VarBinary || v.Type() == sqltypes.Binary:
		return BytesValue(append([]byte(nil), raw...)), nil
	default:
		return StringValue(string(raw)), nil
	}
}

// CompareResult is the outcome of a normal (non-null-safe) comparison.
type CompareResult int

const (
	CompareUnknown CompareResult = iota // either side is NULL
	CompareLess
	CompareEqual
	CompareGreater
)

// Compare implements SQL comparison semantics: NULL compares as
// CompareUnknown against anything, including another NULL (spec.md §3).
func Compare(a, b Value) CompareResult {
	if a.IsNull() || b.IsNull() {
		return CompareUnknown
	}
	switch {
	case a.kind == KindString || b.kind == KindString:
		sa, sb := a.String(), b.String()
		switch {
		case sa < sb:
			return CompareLess
		case sa > sb:
			return CompareGreater
		default:
			return CompareEqual
		}
	case a.kind == KindDecimal || b.kind == KindDecimal:
		da, db := asDecimal(a), asDecimal(b)
		switch da.Cmp(db) {
		case -1:
			return CompareLess
		case 1:
			return CompareGreater
		default:
			return CompareEqual
		}
	case a.kind == KindDate || a.kind == KindDatetime || a.kind == KindTime:
		switch {
		case a.t.Before(b.t):
			return CompareLess
		case a.t.After(b.t):
			return CompareGreater
		default:
			return CompareEqual
		}
	default:
		fa, fb := asFloat(a), asFloat(b)
		switch {
		case fa < fb:
			return CompareLess
		case fa > fb:
			return CompareGreater
		default:
			return CompareEqual
		}
	}
}

// NullSafeEqual implements `<=>`: two NULLs are equal, a NULL and a non-NULL
// are unequal, otherwise ordinary equality (spec.md §3).
func NullSafeEqual(a, b Value) bool {
	if a.IsNull() && b.IsNull() {
		return true
	}
	if a.IsNull() || b.IsNull() {
		return false
	}
	return Compare(a, b) == CompareEqual
}

func asFloat(v Value) float64 {
	switch v.kind {
	case KindBool:
		if v.b {
			return 1
		}
		return 0
	case KindInt64:
		return float64(v.i)
	case KindUint64:
		return float64(v.u)
	case KindFloat64:
		return v.f
	case KindDecimal:
		f, _ := v.dec.Float64()
		return f
	default:
		return 0
	}
}

func asDecimal(v Value) decimal.Decimal {
	switch v.kind {
	case KindDecimal:
		return v.dec
	case KindInt64:
		return decimal.NewFromInt(v.i)
	case KindUint64:
		return decimal.NewFromInt(int64(v.u))
	case KindFloat64:
		return decimal.NewFromFloat(v.f)
	default:
		return decimal.Zero
	}
}

// Encode produces a stable, collision-free string key for use as a Go map
// key, replacing the source's reliance on ValueArray object identity/hash
// (spec.md §9, Design Notes: "arena+index pattern" needs a concrete key).
func (va ValueArray) Encode() string {
	var sb strings.Builder
	for _, v := range va {
		sb.WriteByte(byte(v.kind))
		sb.WriteByte(0)
		sb.WriteString(v.String())
		sb.WriteByte(0)
	}
	return sb.String()
}
