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

import (
	"reflect"

	"github.com/go-dbpack/dbpack/pkg/constant"
)

// Field describes one column of a result set, built once from its
// FieldDescription packet and immutable thereafter.
type Field interface {
	Name() string
	TableName() string
	DatabaseName() string
	OrgName() string
	OrgTable() string

	// Type is the column's wire type code.
	Type() constant.FieldType
	// Flags is the column's field-flags bit-set (constant.UnsignedFlag etc).
	Flags() uint
	// CharSet is the column's negotiated character set id.
	CharSet() uint16
	// ColumnLength is the server-declared display width.
	ColumnLength() uint32
	// Decimals is the number of digits after the decimal point, for
	// fixed/floating-point columns.
	Decimals() uint8

	// TypeDatabaseName returns the SQL type name a database/sql driver
	// would report for this column (e.g. "VARCHAR", "BLOB").
	TypeDatabaseName() string

	// ScanType returns the Go type a caller should scan this column's
	// values into, mirroring database/sql/driver's RowsColumnTypeScanType.
	ScanType() reflect.Type
}

// Row is one decoded result row paired with its owning column list.
type Row interface {
	// Columns returns the column names in order.
	Columns() []string
	// Fields returns the full column metadata in order.
	Fields() []Field
	// Values returns the decoded column values in order. Implementations
	// decode lazily on first call and cache the result.
	Values() ([]Value, error)
}

// Result is the outcome of a command that did not yield a result set.
type Result interface {
	LastInsertId() (uint64, error)
	RowsAffected() (uint64, error)
}
