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

package mysql

import (
	"database/sql"
	"reflect"

	"github.com/go-dbpack/dbpack/pkg/constant"
)

var (
	scanTypeFloat32   = reflect.TypeOf(float32(0))
	scanTypeFloat64   = reflect.TypeOf(float64(0))
	scanTypeInt8      = reflect.TypeOf(int8(0))
	scanTypeInt16     = reflect.TypeOf(int16(0))
	scanTypeInt32     = reflect.TypeOf(int32(0))
	scanTypeInt64     = reflect.TypeOf(int64(0))
	scanTypeNullFloat = reflect.TypeOf(sql.NullFloat64{})
	scanTypeNullInt   = reflect.TypeOf(sql.NullInt64{})
	scanTypeNullTime  = reflect.TypeOf(sql.NullTime{})
	scanTypeUint8     = reflect.TypeOf(uint8(0))
	scanTypeUint16    = reflect.TypeOf(uint16(0))
	scanTypeUint32    = reflect.TypeOf(uint32(0))
	scanTypeUint64    = reflect.TypeOf(uint64(0))
	scanTypeRawBytes  = reflect.TypeOf(sql.RawBytes{})
	scanTypeUnknown   = reflect.TypeOf(new(interface{}))
)

// Field is the concrete implementation of proto.Field, built once from a
// result set's column-definition packets.
type Field struct {
	table        string
	orgTable     string
	database     string
	name         string
	orgName      string
	flags        uint
	fieldType    constant.FieldType
	decimals     uint8
	charSet      uint16
	columnLength uint32

	DefaultValueLength uint64
	DefaultValue       []byte
}

// NewField builds a Field from a decoded column-definition packet.
func NewField(database, table, orgTable, name, orgName string, charSet uint16, columnLength uint32, fieldType constant.FieldType, flags uint, decimals uint8) *Field {
	return &Field{
		database:     database,
		table:        table,
		orgTable:     orgTable,
		name:         name,
		orgName:      orgName,
		charSet:      charSet,
		columnLength: columnLength,
		fieldType:    fieldType,
		flags:        flags,
		decimals:     decimals,
	}
}

func (mf *Field) Name() string         { return mf.name }
func (mf *Field) TableName() string    { return mf.table }
func (mf *Field) DatabaseName() string { return mf.database }
func (mf *Field) OrgName() string      { return mf.orgName }
func (mf *Field) OrgTable() string     { return mf.orgTable }

func (mf *Field) Type() constant.FieldType { return mf.fieldType }
func (mf *Field) Flags() uint              { return mf.flags }
func (mf *Field) CharSet() uint16          { return mf.charSet }
func (mf *Field) ColumnLength() uint32     { return mf.columnLength }
func (mf *Field) Decimals() uint8          { return mf.decimals }

func (mf *Field) TypeDatabaseName() string {
	switch mf.fieldType {
	case constant.FieldTypeBit:
		return "BIT"
	case constant.FieldTypeBLOB:
		if mf.charSet != uint16(constant.Collations[constant.BinaryCollation]) {
			return "TEXT"
		}
		return "BLOB"
	case constant.FieldTypeDate:
		return "DATE"
	case constant.FieldTypeDateTime:
		return "DATETIME"
	case constant.FieldTypeDecimal:
		return "DECIMAL"
	case constant.FieldTypeDouble:
		return "DOUBLE"
	case constant.FieldTypeEnum:
		return "ENUM"
	case constant.FieldTypeFloat:
		return "FLOAT"
	case constant.FieldTypeGeometry:
		return "GEOMETRY"
	case constant.FieldTypeInt24:
		return "MEDIUMINT"
	case constant.FieldTypeJSON:
		return "JSON"
	case constant.FieldTypeLong:
		return "INT"
	case constant.FieldTypeLongBLOB:
		if mf.charSet != uint16(constant.Collations[constant.BinaryCollation]) {
			return "LONGTEXT"
		}
		return "LONGBLOB"
	case constant.FieldTypeLongLong:
		return "BIGINT"
	case constant.FieldTypeMediumBLOB:
		if mf.charSet != uint16(constant.Collations[constant.BinaryCollation]) {
			return "MEDIUMTEXT"
		}
		return "MEDIUMBLOB"
	case constant.FieldTypeNewDate:
		return "DATE"
	case constant.FieldTypeNewDecimal:
		return "DECIMAL"
	case constant.FieldTypeNULL:
		return "NULL"
	case constant.FieldTypeSet:
		return "SET"
	case constant.FieldTypeShort:
		return "SMALLINT"
	case constant.FieldTypeString:
		if mf.charSet == uint16(constant.Collations[constant.BinaryCollation]) {
			return "BINARY"
		}
		return "CHAR"
	case constant.FieldTypeTime:
		return "TIME"
	case constant.FieldTypeTimestamp:
		return "TIMESTAMP"
	case constant.FieldTypeTiny:
		return "TINYINT"
	case constant.FieldTypeTinyBLOB:
		if mf.charSet != uint16(constant.Collations[constant.BinaryCollation]) {
			return "TINYTEXT"
		}
		return "TINYBLOB"
	case constant.FieldTypeVarChar:
		if mf.charSet == uint16(constant.Collations[constant.BinaryCollation]) {
			return "VARBINARY"
		}
		return "VARCHAR"
	case constant.FieldTypeVarString:
		if mf.charSet == uint16(constant.Collations[constant.BinaryCollation]) {
			return "VARBINARY"
		}
		return "VARCHAR"
	case constant.FieldTypeYear:
		return "YEAR"
	default:
		return ""
	}
}

// ScanType returns the Go type a caller should scan this column's values
// into, mirroring database/sql/driver's RowsColumnTypeScanType.
func (mf *Field) ScanType() reflect.Type {
	switch mf.fieldType {
	case constant.FieldTypeTiny:
		if mf.flags&constant.NotNullFlag != 0 {
			if mf.flags&constant.UnsignedFlag != 0 {
				return scanTypeUint8
			}
			return scanTypeInt8
		}
		return scanTypeNullInt

	case constant.FieldTypeShort, constant.FieldTypeYear:
		if mf.flags&constant.NotNullFlag != 0 {
			if mf.flags&constant.UnsignedFlag != 0 {
				return scanTypeUint16
			}
			return scanTypeInt16
		}
		return scanTypeNullInt

	case constant.FieldTypeInt24, constant.FieldTypeLong:
		if mf.flags&constant.NotNullFlag != 0 {
			if mf.flags&constant.UnsignedFlag != 0 {
				return scanTypeUint32
			}
			return scanTypeInt32
		}
		return scanTypeNullInt

	case constant.FieldTypeLongLong:
		if mf.flags&constant.NotNullFlag != 0 {
			if mf.flags&constant.UnsignedFlag != 0 {
				return scanTypeUint64
			}
			return scanTypeInt64
		}
		return scanTypeNullInt

	case constant.FieldTypeFloat:
		if mf.flags&constant.NotNullFlag != 0 {
			return scanTypeFloat32
		}
		return scanTypeNullFloat

	case constant.FieldTypeDouble:
		if mf.flags&constant.UnsignedFlag != 0 {
			return scanTypeFloat64
		}
		return scanTypeNullFloat

	case constant.FieldTypeDecimal, constant.FieldTypeNewDecimal, constant.FieldTypeVarChar,
		constant.FieldTypeBit, constant.FieldTypeEnum, constant.FieldTypeSet, constant.FieldTypeTinyBLOB,
		constant.FieldTypeMediumBLOB, constant.FieldTypeLongBLOB, constant.FieldTypeBLOB,
		constant.FieldTypeVarString, constant.FieldTypeString, constant.FieldTypeGeometry, constant.FieldTypeJSON,
		constant.FieldTypeTime:
		return scanTypeRawBytes

	case constant.FieldTypeDate, constant.FieldTypeNewDate,
		constant.FieldTypeTimestamp, constant.FieldTypeDateTime:
		// NullTime is always returned for more consistent behavior as it can
		// handle both cases of parseTime regardless if the field is nullable.
		return scanTypeNullTime

	default:
		return scanTypeUnknown
	}
}
