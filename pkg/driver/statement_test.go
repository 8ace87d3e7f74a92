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

package driver

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/go-dbpack/dbpack/pkg/constant"
	"github.com/go-dbpack/dbpack/pkg/mysql"
	"github.com/go-dbpack/dbpack/pkg/proto"
)

// fakeLongDataProvider hands its whole payload back on the first call,
// simulating a caller streaming a BLOB/TEXT value it doesn't want to
// pre-materialize as a single []byte.
type fakeLongDataProvider struct {
	data []byte
	sent bool
}

func (p *fakeLongDataProvider) NextChunk(buf []byte) (int, bool, error) {
	if p.sent {
		return 0, true, nil
	}
	n := copy(buf, p.data)
	p.sent = true
	return n, true, nil
}

func newTestStatement() (*BackendStatement, net.Conn) {
	conn, server := newTestBackendConnection()
	stmt := &BackendStatement{conn: conn, sql: "select * from t where id = ?"}
	return stmt, server
}

func TestReadPrepareResultPacketOK(t *testing.T) {
	stmt, server := newTestStatement()
	defer server.Close()
	defer stmt.conn.Conn.Close()

	data := []byte{constant.OKPacket}
	data = appendUint32Bytes(data, 7) // statement id
	data = append(data, 1, 0)         // column count
	data = append(data, 1, 0)         // param count
	data = append(data, 0)            // reserved
	data = append(data, 0, 0)         // warning count

	serverSend(t, server, data)

	colCount, err := stmt.readPrepareResultPacket()
	assert.NoError(t, err)
	assert.EqualValues(t, 1, colCount)
	assert.EqualValues(t, 7, stmt.id)
	assert.Equal(t, 1, stmt.paramCount)
}

func TestReadPrepareResultPacketError(t *testing.T) {
	stmt, server := newTestStatement()
	defer server.Close()
	defer stmt.conn.Conn.Close()

	errData := []byte{constant.ErrPacket, 0x19, 0x04, '#'}
	errData = append(errData, []byte("42000")...)
	errData = append(errData, []byte("syntax error")...)
	serverSend(t, server, errData)

	_, err := stmt.readPrepareResultPacket()
	assert.Error(t, err)
}

func TestWriteExecutePacketArgumentCountMismatch(t *testing.T) {
	stmt, server := newTestStatement()
	defer server.Close()
	defer stmt.conn.Conn.Close()

	stmt.paramCount = 2
	err := stmt.writeExecutePacket([]interface{}{int64(1)})
	assert.Error(t, err)
}

func TestWriteExecutePacketNoArgs(t *testing.T) {
	stmt, server := newTestStatement()
	defer server.Close()
	defer stmt.conn.Conn.Close()

	serverWrapper := mysql.NewConn(server)
	done := make(chan []byte, 1)
	go func() {
		got, _ := serverWrapper.ReadPacket()
		done <- got
	}()

	err := stmt.writeExecutePacket(nil)
	assert.NoError(t, err)

	got := <-done
	assert.Equal(t, byte(constant.ComStmtExecute), got[0])
}

func TestWriteExecutePacketMixedArgs(t *testing.T) {
	stmt, server := newTestStatement()
	defer server.Close()
	defer stmt.conn.Conn.Close()
	stmt.paramCount = 3

	serverWrapper := mysql.NewConn(server)
	done := make(chan []byte, 1)
	go func() {
		got, _ := serverWrapper.ReadPacket()
		done <- got
	}()

	err := stmt.writeExecutePacket([]interface{}{int64(42), "hello", nil})
	assert.NoError(t, err)

	got := <-done
	assert.Equal(t, byte(constant.ComStmtExecute), got[0])
	// statement id (4 bytes), flags (1 byte), iteration count (4 bytes)
	assert.EqualValues(t, stmt.id, uint32(got[1])|uint32(got[2])<<8|uint32(got[3])<<16|uint32(got[4])<<24)
}

func TestWriteExecutePacketLongDataProvider(t *testing.T) {
	stmt, server := newTestStatement()
	defer server.Close()
	defer stmt.conn.Conn.Close()
	stmt.paramCount = 1

	serverWrapper := mysql.NewConn(server)
	longDataPkt := make(chan []byte, 1)
	execPkt := make(chan []byte, 1)
	go func() {
		got, _ := serverWrapper.ReadPacket()
		longDataPkt <- got
		serverWrapper.ResetSequence()
		got2, _ := serverWrapper.ReadPacket()
		execPkt <- got2
	}()

	provider := &fakeLongDataProvider{data: []byte("blob payload")}
	err := stmt.writeExecutePacket([]interface{}{&proto.ParameterSpecialization{LongData: provider}})
	assert.NoError(t, err)

	gotLongData := <-longDataPkt
	assert.Equal(t, byte(constant.ComStmtSendLongData), gotLongData[0])
	assert.Contains(t, string(gotLongData), "blob payload")

	gotExec := <-execPkt
	assert.Equal(t, byte(constant.ComStmtExecute), gotExec[0])
}

func TestWriteExecutePacketLongDataProviderRequiresProvider(t *testing.T) {
	stmt, server := newTestStatement()
	defer server.Close()
	defer stmt.conn.Conn.Close()
	stmt.paramCount = 1

	err := stmt.writeExecutePacket([]interface{}{&proto.ParameterSpecialization{}})
	assert.Error(t, err)
}

func TestStatementHandleClosesOnceRefCountReachesZero(t *testing.T) {
	handle := &proto.Stmt{StatementID: 1}
	handle.Retain()
	handle.Retain()

	assert.False(t, handle.Release())
	assert.True(t, handle.Release())
}
