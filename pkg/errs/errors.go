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

// Package errs defines the driver's error taxonomy. Every exported type
// here satisfies error; most are produced at exactly one layer of the
// driver (the packet framer, the handshake, the command dispatcher) so a
// caller doing errors.As can tell precisely what went wrong without parsing
// a message string.
package errs

import (
	"fmt"
	"reflect"

	"github.com/pkg/errors"
)

// SQLError is a server-reported error (an ERR packet received mid-session)
// or a client-synthesized error using the same shape (e.g. a handshake
// failure, which borrows the client error-code numbering documented in
// pkg/constant). Authentication failures are reported as AuthError, a
// separate type that embeds SQLError.
type SQLError struct {
	Code     int
	SQLState string
	Message  string
	Query    string
}

func (e *SQLError) Error() string {
	if e.SQLState != "" {
		return fmt.Sprintf("mysql: error %d (%s): %s", e.Code, e.SQLState, e.Message)
	}
	return fmt.Sprintf("mysql: error %d: %s", e.Code, e.Message)
}

// NewSQLError builds a SQLError with a printf-style message, matching the
// construction idiom used throughout the handshake and command layers.
func NewSQLError(code int, sqlState string, format string, args ...interface{}) *SQLError {
	return &SQLError{
		Code:     code,
		SQLState: sqlState,
		Message:  fmt.Sprintf(format, args...),
	}
}

// TransportError wraps a failure of the underlying byte-stream transport:
// a dial failure, a short read, a write that didn't complete, or the
// connection-reset/EOF family from net.Conn. Always fatal to the
// connection.
type TransportError struct {
	cause error
}

func NewTransportError(cause error) *TransportError {
	return &TransportError{cause: errors.WithStack(cause)}
}

func (e *TransportError) Error() string { return "mysql: transport error: " + e.cause.Error() }
func (e *TransportError) Unwrap() error { return e.cause }

// ProtocolError signals that bytes received from the server violate the
// documented wire protocol: a sequence-number mismatch, a malformed
// packet, an unexpected leading byte, or a short packet where a fixed-size
// field was expected. Always fatal to the connection.
type ProtocolError struct {
	Message string
}

func NewProtocolError(format string, args ...interface{}) *ProtocolError {
	return &ProtocolError{Message: fmt.Sprintf(format, args...)}
}

func (e *ProtocolError) Error() string { return "mysql: protocol error: " + e.Message }

// AuthError reports a failed handshake or login: the server sent an ERR
// packet before the connection reached the authenticated state.
type AuthError struct {
	*SQLError
}

func NewAuthError(code int, sqlState, message string) *AuthError {
	return &AuthError{SQLError: &SQLError{Code: code, SQLState: sqlState, Message: message}}
}

// DataPendingError is returned when a new command is attempted while a
// prior result cursor is still outstanding on the same connection.
type DataPendingError struct{}

func (e *DataPendingError) Error() string {
	return "mysql: a result set from a previous command is still pending"
}

// InvalidatedRangeError is returned by a ResultStream that a newer command
// on the same connection has invalidated.
type InvalidatedRangeError struct{}

func (e *InvalidatedRangeError) Error() string {
	return "mysql: result stream invalidated by a later command on the same connection"
}

// NotPreparedError is returned by any operation on a prepared-statement
// handle that has already been released.
type NotPreparedError struct {
	StatementID uint32
}

func (e *NotPreparedError) Error() string {
	return fmt.Sprintf("mysql: prepared statement %d is no longer valid", e.StatementID)
}

// ResultReceivedError is returned by Exec when the statement unexpectedly
// produced a result set; the result is purged before this error is raised.
type ResultReceivedError struct {
	SQL string
}

func (e *ResultReceivedError) Error() string {
	return fmt.Sprintf("mysql: exec produced a result set: %s", e.SQL)
}

// NoResultReceivedError is returned by Query when the statement produced
// no result set (an OK packet instead).
type NoResultReceivedError struct {
	SQL string
}

func (e *NoResultReceivedError) Error() string {
	return fmt.Sprintf("mysql: query produced no result set: %s", e.SQL)
}

// UnsupportedParameterError is returned when a prepared-statement argument
// isn't one of the host types the binary protocol encoder understands.
type UnsupportedParameterError struct {
	Index int
	Type  reflect.Type
}

func (e *UnsupportedParameterError) Error() string {
	return fmt.Sprintf("mysql: unsupported parameter type at index %d: %s", e.Index, e.Type)
}

// Sentinel protocol errors raised during the connection handshake, where
// there is no useful index or field name to attach to a ProtocolError.
var (
	ErrMalformedPkt      = NewProtocolError("malformed packet")
	ErrUnknownAuthPlugin = NewProtocolError("unknown auth plugin")
)

// Sentinel errors raised while parsing a DSN-style data source name.
var (
	ErrInvalidDSNUnescaped        = NewProtocolError("invalid DSN: did you forget to escape a param value?")
	ErrInvalidDSNAddr             = NewProtocolError("invalid DSN: network address not terminated (missing closing brace)")
	ErrInvalidDSNNoSlash          = NewProtocolError("invalid DSN: missing the slash separating the database name")
	ErrInvalidDSNUnsafeCollation  = NewProtocolError("invalid DSN: interpolateParams can not be used with unsafe collations")
)

// IsFatal reports whether err, if it escaped a connection operation,
// requires the connection to be killed before the error is returned to the
// caller. TransportError and ProtocolError are fatal; everything else in
// this package is recoverable once any pending result has been drained.
func IsFatal(err error) bool {
	switch err.(type) {
	case *TransportError, *ProtocolError:
		return true
	default:
		return false
	}
}
