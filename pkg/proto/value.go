/*
 * Copyright 2022 CECTC, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package proto

import "time"

// Kind discriminates the variant held by a Value. It replaces the dynamic
// interface{} container the teacher codebase stores row values in with a
// closed tagged union over the host types this driver actually produces.
type Kind byte

const (
	KindNull Kind = iota
	KindBool
	KindI64
	KindU64
	KindF32
	KindF64
	KindBytes
	KindString
	KindDate
	KindTime
	KindDateTime
)

// Value is a single decoded column value. Exactly one of the typed fields
// is meaningful, selected by kind; callers use the accessor methods rather
// than touching the fields directly so a kind mismatch is a defined (ok ==
// false) outcome instead of a panic or a silent zero value.
type Value struct {
	kind Kind

	b    bool
	i64  int64
	u64  uint64
	f32  float32
	f64  float64
	str  string
	buf  []byte
	time time.Time
	dur  time.Duration
}

// NullValue is the canonical SQL NULL.
var NullValue = Value{kind: KindNull}

func BoolValue(v bool) Value             { return Value{kind: KindBool, b: v} }
func Int64Value(v int64) Value           { return Value{kind: KindI64, i64: v} }
func Uint64Value(v uint64) Value         { return Value{kind: KindU64, u64: v} }
func Float32Value(v float32) Value       { return Value{kind: KindF32, f32: v} }
func Float64Value(v float64) Value       { return Value{kind: KindF64, f64: v} }
func StringValue(v string) Value         { return Value{kind: KindString, str: v} }
func BytesValue(v []byte) Value          { return Value{kind: KindBytes, buf: v} }
func DateValue(v time.Time) Value        { return Value{kind: KindDate, time: v} }
func DateTimeValue(v time.Time) Value    { return Value{kind: KindDateTime, time: v} }
func TimeValue(v time.Duration) Value    { return Value{kind: KindTime, dur: v} }

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) Bool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

func (v Value) Int64() (int64, bool) {
	switch v.kind {
	case KindI64:
		return v.i64, true
	case KindU64:
		return int64(v.u64), true
	}
	return 0, false
}

func (v Value) Uint64() (uint64, bool) {
	switch v.kind {
	case KindU64:
		return v.u64, true
	case KindI64:
		return uint64(v.i64), true
	}
	return 0, false
}

func (v Value) Float64() (float64, bool) {
	switch v.kind {
	case KindF64:
		return v.f64, true
	case KindF32:
		return float64(v.f32), true
	}
	return 0, false
}

func (v Value) Bytes() ([]byte, bool) {
	switch v.kind {
	case KindBytes:
		return v.buf, true
	case KindString:
		return []byte(v.str), true
	}
	return nil, false
}

func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindBytes:
		return string(v.buf)
	case KindNull:
		return "<nil>"
	}
	return ""
}

func (v Value) Time() (time.Time, bool) {
	switch v.kind {
	case KindDate, KindDateTime:
		return v.time, true
	}
	return time.Time{}, false
}

func (v Value) Duration() (time.Duration, bool) {
	if v.kind != KindTime {
		return 0, false
	}
	return v.dur, true
}
