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

import "sync/atomic"

// Stmt is a client-held handle to a prepared statement. StatementID and
// ParamsCount come from the COM_STMT_PREPARE response. refCount tracks how
// many callers (the EXECUTE call itself, plus an in-flight row cursor bound
// to it) currently hold it open; the holder that drives refCount to zero is
// the one responsible for sending COM_STMT_CLOSE.
type Stmt struct {
	StatementID uint32
	SQLText     string
	ParamsCount uint16
	ColumnNames []string

	refCount int32
}

// Retain adds a reference and must be paired with a later Release.
func (s *Stmt) Retain() {
	atomic.AddInt32(&s.refCount, 1)
}

// Release drops a reference. It reports true exactly once, to whichever
// caller's Release call observes the count reaching zero - that caller
// owns issuing COM_STMT_CLOSE.
func (s *Stmt) Release() bool {
	return atomic.AddInt32(&s.refCount, -1) == 0
}

// LongDataProvider supplies a prepared-statement parameter's value as a
// sequence of chunks sent via COM_STMT_SEND_LONG_DATA, instead of a single
// in-memory value. NextChunk is invoked zero or more times; a call that
// fills fewer bytes than len(buf), or sets final, ends the upload -
// whichever happens first.
type LongDataProvider interface {
	NextChunk(buf []byte) (n int, final bool, err error)
}

// ParameterSpecialization carries the per-parameter extra a plain Value
// can't: an optional long-data chunk producer. It has no wire-type
// override.
type ParameterSpecialization struct {
	LongData LongDataProvider
}
