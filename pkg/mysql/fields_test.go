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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/go-dbpack/dbpack/pkg/constant"
)

func TestFieldAccessors(t *testing.T) {
	f := NewField("testdb", "users", "users", "name", "name", 33, 255, constant.FieldTypeVarChar, constant.NotNullFlag, 0)
	assert.Equal(t, "name", f.Name())
	assert.Equal(t, "users", f.TableName())
	assert.Equal(t, "testdb", f.DatabaseName())
	assert.EqualValues(t, 33, f.CharSet())
	assert.EqualValues(t, 255, f.ColumnLength())
	assert.Equal(t, constant.FieldTypeVarChar, f.Type())
}

func TestFieldTypeDatabaseName(t *testing.T) {
	cases := []struct {
		typ      constant.FieldType
		charSet  uint16
		expected string
	}{
		{constant.FieldTypeLong, 33, "INT"},
		{constant.FieldTypeLongLong, 33, "BIGINT"},
		{constant.FieldTypeVarChar, 33, "VARCHAR"},
		{constant.FieldTypeVarChar, uint16(constant.Collations[constant.BinaryCollation]), "VARBINARY"},
		{constant.FieldTypeBLOB, uint16(constant.Collations[constant.BinaryCollation]), "BLOB"},
		{constant.FieldTypeBLOB, 33, "TEXT"},
		{constant.FieldTypeDateTime, 33, "DATETIME"},
		{constant.FieldTypeTiny, 33, "TINYINT"},
	}
	for _, c := range cases {
		f := NewField("", "", "", "", "", c.charSet, 0, c.typ, 0, 0)
		assert.Equal(t, c.expected, f.TypeDatabaseName())
	}
}

func TestFieldScanType(t *testing.T) {
	notNullUnsigned := NewField("", "", "", "", "", 0, 0, constant.FieldTypeLong, constant.NotNullFlag|constant.UnsignedFlag, 0)
	assert.Equal(t, scanTypeUint32, notNullUnsigned.ScanType())

	nullable := NewField("", "", "", "", "", 0, 0, constant.FieldTypeLong, 0, 0)
	assert.Equal(t, scanTypeNullInt, nullable.ScanType())

	text := NewField("", "", "", "", "", 0, 0, constant.FieldTypeVarChar, 0, 0)
	assert.Equal(t, scanTypeRawBytes, text.ScanType())

	temporal := NewField("", "", "", "", "", 0, 0, constant.FieldTypeDateTime, 0, 0)
	assert.Equal(t, scanTypeNullTime, temporal.ScanType())
}
