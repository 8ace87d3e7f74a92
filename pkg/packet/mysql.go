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

// Package packet parses the generic response packets every command
// dispatch has to classify - OK, ERR, and EOF. The three-way dispatch that
// drives result ingestion is ReadComQueryResponse in pkg/driver.
// Row-specific and parameter-specific encoding live in pkg/mysql and
// pkg/driver respectively, next to the state they're threaded through.
package packet

import (
	"github.com/pkg/errors"

	"github.com/go-dbpack/dbpack/pkg/constant"
	"github.com/go-dbpack/dbpack/pkg/errs"
	"github.com/go-dbpack/dbpack/pkg/misc"
)

// IsEOFPacket determines whether or not a packet is a "true" EOF. DO NOT
// blindly compare the first byte of a packet to EOFPacket as you might do
// for other packet types, as 0xfe is overloaded as a first byte.
//
// Per https://dev.mysql.com/doc/internals/en/packet-EOF_Packet.html, a
// packet starting with 0xfe but having length >= 9 (on top of the 4 byte
// header) is not a true EOF but a length-encoded integer (typically
// preceding a length-encoded string). Thus, all EOF checks must validate
// the payload size before exiting.
func IsEOFPacket(data []byte) bool {
	return len(data) > 0 && data[0] == constant.EOFPacket && len(data) < 9
}

// ParseEOFPacket returns the warning count and whether more result sets
// follow (the SERVER_MORE_RESULTS_EXISTS status flag).
func ParseEOFPacket(data []byte) (warnings uint16, more bool, err error) {
	warnings, _, _ = misc.ReadUint16(data, 1)

	statusFlags, _, ok := misc.ReadUint16(data, 3)
	if !ok {
		return 0, false, errors.Errorf("invalid EOF packet statusFlags: %v", data)
	}
	return warnings, (statusFlags & constant.ServerMoreResultsExists) != 0, nil
}

// ParseOKPacket returns affected rows, last insert id, status flags, and
// warning count from an OK packet.
func ParseOKPacket(data []byte) (affectedRows, lastInsertID uint64, statusFlags, warnings uint16, err error) {
	pos := 1

	affectedRows, pos, ok := misc.ReadLenEncInt(data, pos)
	if !ok {
		return 0, 0, 0, 0, errors.Errorf("invalid OK packet affectedRows: %v", data)
	}

	lastInsertID, pos, ok = misc.ReadLenEncInt(data, pos)
	if !ok {
		return 0, 0, 0, 0, errors.Errorf("invalid OK packet lastInsertID: %v", data)
	}

	statusFlags, pos, ok = misc.ReadUint16(data, pos)
	if !ok {
		return 0, 0, 0, 0, errors.Errorf("invalid OK packet statusFlags: %v", data)
	}

	warnings, _, ok = misc.ReadUint16(data, pos)
	if !ok {
		return 0, 0, 0, 0, errors.Errorf("invalid OK packet warnings: %v", data)
	}

	return affectedRows, lastInsertID, statusFlags, warnings, nil
}

// IsErrorPacket determines whether or not the packet is an error packet.
// Kept distinct from IsEOFPacket: both read the first byte, but
// IsEOFPacket also bounds the payload length, which this check does not.
func IsErrorPacket(data []byte) bool {
	return len(data) > 0 && data[0] == constant.ErrPacket
}

// ParseErrorPacket parses an ERR packet and returns it as *errs.SQLError.
func ParseErrorPacket(data []byte) error {
	pos := 1

	code, pos, ok := misc.ReadUint16(data, pos)
	if !ok {
		return errs.NewSQLError(constant.CRUnknownError, constant.SSUnknownSQLState, "invalid error packet code: %v", data)
	}

	// '#' marker of the SQL state is 1 byte. Ignored.
	pos++

	sqlState, pos, ok := misc.ReadBytes(data, pos, 5)
	if !ok {
		return errs.NewSQLError(constant.CRUnknownError, constant.SSUnknownSQLState, "invalid error packet sqlState: %v", data)
	}

	msg := string(data[pos:])

	return errs.NewSQLError(int(code), string(sqlState), "%s", msg)
}
