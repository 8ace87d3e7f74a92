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
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/go-dbpack/dbpack/pkg/constant"
	"github.com/go-dbpack/dbpack/pkg/errs"
	"github.com/go-dbpack/dbpack/pkg/misc"
)

func intColumn(name string) *Field {
	return NewField("testdb", "t", "t", name, name, 33, 11, constant.FieldTypeLong, constant.NotNullFlag, 0)
}

func stringColumn(name string) *Field {
	return NewField("testdb", "t", "t", name, name, 33, 255, constant.FieldTypeVarChar, 0, 0)
}

func pipedConn() (*Conn, net.Conn) {
	client, server := net.Pipe()
	return NewConn(server), client
}

func sendPacket(t *testing.T, peer net.Conn, data []byte) {
	t.Helper()
	wrapper := NewConn(peer)
	go func() {
		_ = wrapper.WritePacket(data)
	}()
}

func TestRowsNextTextRow(t *testing.T) {
	conn, peer := pipedConn()
	defer peer.Close()

	cols := []*Field{intColumn("id"), stringColumn("name")}
	rows := NewRows(conn, cols, false)

	buf := make([]byte, misc.LenEncStringSize("42")+misc.LenEncStringSize("alice"))
	pos := misc.WriteLenEncString(buf, 0, "42")
	pos = misc.WriteLenEncString(buf, pos, "alice")

	sendPacket(t, peer, buf[:pos])

	row, err := rows.Next()
	assert.NoError(t, err)
	values, err := row.Values()
	assert.NoError(t, err)
	assert.Len(t, values, 2)
	assert.Equal(t, "42", values[0].String())
	assert.Equal(t, "alice", values[1].String())
	assert.Equal(t, []string{"t.id", "t.name"}, row.Columns())
}

func TestRowsNextTextRowWithNull(t *testing.T) {
	conn, peer := pipedConn()
	defer peer.Close()

	cols := []*Field{intColumn("id"), stringColumn("name")}
	rows := NewRows(conn, cols, false)

	buf := make([]byte, misc.LenEncStringSize("7")+1)
	pos := misc.WriteLenEncString(buf, 0, "7")
	buf[pos] = 0xfb
	pos++

	sendPacket(t, peer, buf[:pos])

	row, err := rows.Next()
	assert.NoError(t, err)
	values, err := row.Values()
	assert.NoError(t, err)
	assert.True(t, values[1].IsNull())
}

func TestRowsNextEOFEndsResultSet(t *testing.T) {
	conn, peer := pipedConn()
	defer peer.Close()

	rows := NewRows(conn, []*Field{intColumn("id")}, false)
	sendPacket(t, peer, []byte{constant.EOFPacket, 0x00, 0x00, 0x00, 0x00})

	_, err := rows.Next()
	assert.Equal(t, io.EOF, err)

	// Once exhausted, a further Next fails with InvalidatedRangeError without
	// touching the connection again.
	_, err = rows.Next()
	assert.IsType(t, &errs.InvalidatedRangeError{}, err)
}

func TestRowsNextErrorPacket(t *testing.T) {
	conn, peer := pipedConn()
	defer peer.Close()

	rows := NewRows(conn, []*Field{intColumn("id")}, false)

	errBody := []byte{constant.ErrPacket}
	errBody = append(errBody, 0x20, 0x04) // 1056
	errBody = append(errBody, '#')
	errBody = append(errBody, []byte("HY000")...)
	errBody = append(errBody, []byte("boom")...)
	sendPacket(t, peer, errBody)

	_, err := rows.Next()
	assert.Error(t, err)
}

func TestRowsNextBinaryRow(t *testing.T) {
	conn, peer := pipedConn()
	defer peer.Close()

	idField := NewField("", "t", "t", "id", "id", 33, 11, constant.FieldTypeLong, constant.NotNullFlag, 0)
	nameField := NewField("", "t", "t", "name", "name", 33, 255, constant.FieldTypeVarChar, 0, 0)
	cols := []*Field{idField, nameField}
	rows := NewRows(conn, cols, true)

	// header byte + null bitmap ((2 cols + 7 + 2)/8 = 1 byte), no nulls.
	buf := make([]byte, 0, 32)
	buf = append(buf, constant.OKPacket, 0x00)
	idBytes := make([]byte, 4)
	idBytes[0], idBytes[1], idBytes[2], idBytes[3] = 7, 0, 0, 0
	buf = append(buf, idBytes...)
	nameBuf := make([]byte, misc.LenEncStringSize("bob"))
	misc.WriteLenEncString(nameBuf, 0, "bob")
	buf = append(buf, nameBuf...)

	sendPacket(t, peer, buf)

	row, err := rows.Next()
	assert.NoError(t, err)
	values, err := row.Values()
	assert.NoError(t, err)
	id, ok := values[0].Int64()
	assert.True(t, ok)
	assert.EqualValues(t, 7, id)
	assert.Equal(t, "bob", values[1].String())
}

func TestRowsNextBinaryRowWithNull(t *testing.T) {
	conn, peer := pipedConn()
	defer peer.Close()

	idField := NewField("", "t", "t", "id", "id", 33, 11, constant.FieldTypeLong, constant.NotNullFlag, 0)
	nameField := NewField("", "t", "t", "name", "name", 33, 255, constant.FieldTypeVarChar, 0, 0)
	cols := []*Field{idField, nameField}
	rows := NewRows(conn, cols, true)

	// Bit (i+2) for column 1 (name, index 1) set -> bit index 3 -> byte 0, bit 3.
	buf := []byte{constant.OKPacket, byte(1 << 3)}
	idBytes := []byte{9, 0, 0, 0}
	buf = append(buf, idBytes...)

	sendPacket(t, peer, buf)

	row, err := rows.Next()
	assert.NoError(t, err)
	values, err := row.Values()
	assert.NoError(t, err)
	id, _ := values[0].Int64()
	assert.EqualValues(t, 9, id)
	assert.True(t, values[1].IsNull())
}

func TestRowsSetOnDoneFiresOnceOnEOF(t *testing.T) {
	conn, peer := pipedConn()
	defer peer.Close()

	rows := NewRows(conn, []*Field{intColumn("id")}, false)
	calls := 0
	rows.SetOnDone(func() { calls++ })

	sendPacket(t, peer, []byte{constant.EOFPacket, 0x00, 0x00, 0x00, 0x00})
	_, err := rows.Next()
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, 1, calls)

	_, err = rows.Next()
	assert.IsType(t, &errs.InvalidatedRangeError{}, err)
	assert.Equal(t, 1, calls)
}

func TestRowsSetOnDoneFiresOnceOnError(t *testing.T) {
	conn, peer := pipedConn()
	defer peer.Close()

	rows := NewRows(conn, []*Field{intColumn("id")}, false)
	calls := 0
	rows.SetOnDone(func() { calls++ })

	errBody := []byte{constant.ErrPacket, 0x20, 0x04, '#'}
	errBody = append(errBody, []byte("HY000")...)
	errBody = append(errBody, []byte("boom")...)
	sendPacket(t, peer, errBody)

	_, err := rows.Next()
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRowsNextBinaryRowBitColumn(t *testing.T) {
	conn, peer := pipedConn()
	defer peer.Close()

	bitField := NewField("", "t", "t", "flag", "flag", 63, 1, constant.FieldTypeBit, constant.UnsignedFlag, 0)
	cols := []*Field{bitField}
	rows := NewRows(conn, cols, true)

	buf := []byte{constant.OKPacket, 0x00}
	bitBuf := make([]byte, misc.LenEncStringSize(string([]byte{1})))
	misc.WriteLenEncString(bitBuf, 0, string([]byte{1}))
	buf = append(buf, bitBuf...)

	sendPacket(t, peer, buf)

	row, err := rows.Next()
	assert.NoError(t, err)
	values, err := row.Values()
	assert.NoError(t, err)
	b, ok := values[0].Bool()
	assert.True(t, ok)
	assert.True(t, b)
}

func TestRowsNextTextRowBitColumn(t *testing.T) {
	conn, peer := pipedConn()
	defer peer.Close()

	bitField := NewField("", "t", "t", "flag", "flag", 63, 1, constant.FieldTypeBit, constant.UnsignedFlag, 0)
	rows := NewRows(conn, []*Field{bitField}, false)

	buf := make([]byte, misc.LenEncStringSize(string([]byte{0})))
	pos := misc.WriteLenEncString(buf, 0, string([]byte{0}))

	sendPacket(t, peer, buf[:pos])

	row, err := rows.Next()
	assert.NoError(t, err)
	values, err := row.Values()
	assert.NoError(t, err)
	b, ok := values[0].Bool()
	assert.True(t, ok)
	assert.False(t, b)
}

func TestRowsNextBinaryRowTemporal(t *testing.T) {
	conn, peer := pipedConn()
	defer peer.Close()

	dtField := NewField("", "t", "t", "created_at", "created_at", 33, 19, constant.FieldTypeDateTime, constant.NotNullFlag, 0)
	cols := []*Field{dtField}
	rows := NewRows(conn, cols, true)

	want := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	buf := []byte{constant.OKPacket, 0x00}
	buf = misc.WriteBinaryDateTime(buf, want)

	sendPacket(t, peer, buf)

	row, err := rows.Next()
	assert.NoError(t, err)
	values, err := row.Values()
	assert.NoError(t, err)
	got, ok := values[0].Time()
	assert.True(t, ok)
	assert.True(t, want.Equal(got))
}
