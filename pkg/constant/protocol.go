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

package constant

// ProtocolVersion is the only handshake protocol version this driver speaks.
// https://dev.mysql.com/doc/internals/en/connection-phase-packets.html
const ProtocolVersion = 10

// MaxPacketSize is the boundary at which a logical packet's payload is split
// across multiple physical frames (2^24 - 1).
const MaxPacketSize = (1 << 24) - 1

// Packet discriminants. A packet's first payload byte classifies it; an EOF
// packet is further disambiguated by total payload length (< 9 bytes).
const (
	OKPacket  = 0x00
	EOFPacket = 0xfe
	ErrPacket = 0xff
)

// NullValue is the length-coded-binary marker for SQL NULL.
const NullValue = 0xfb

// Command codes. https://dev.mysql.com/doc/internals/en/command-phase.html
const (
	ComQuit            = 0x01
	ComInitDB          = 0x02
	ComQuery           = 0x03
	ComFieldList       = 0x04
	ComRefresh         = 0x07
	ComStatistics      = 0x09
	ComProcessKill     = 0x0c
	ComPing            = 0x0e
	ComChangeUser      = 0x11
	ComPrepare         = 0x16 // COM_STMT_PREPARE
	ComStmtExecute     = 0x17
	ComStmtSendLongData = 0x18
	ComStmtClose       = 0x19
	ComStmtReset       = 0x1a
	ComSetOption       = 0x1b
	ComStmtFetch       = 0x1c
)

// Client capability flags. https://dev.mysql.com/doc/internals/en/capability-flags.html
const (
	CapabilityClientLongPassword = 1 << iota
	CapabilityClientFoundRows
	CapabilityClientLongFlag
	CapabilityClientConnectWithDB
	CapabilityClientNoSchema
	CapabilityClientCompress
	CapabilityClientODBC
	CapabilityClientLocalFiles
	CapabilityClientIgnoreSpace
	CapabilityClientProtocol41
	CapabilityClientInteractive
	CapabilityClientSSL
	CapabilityClientIgnoreSIGPIPE
	CapabilityClientTransactions
	CapabilityClientReserved
	CapabilityClientSecureConnection
	CapabilityClientMultiStatements
	CapabilityClientMultiResults
	CapabilityClientPSMultiResults
	CapabilityClientPluginAuth
	CapabilityClientConnectAttrs
	CapabilityClientPluginAuthLenencClientData
	CapabilityClientCanHandleExpiredPasswords
	CapabilityClientSessionTrack
	CapabilityClientDeprecateEOF
)

// BaseClientCapabilities is the capability set this driver always requests;
// it is ANDed against the server's advertised capabilities, then
// CapabilityClientProtocol41 and CapabilityClientSecureConnection are forced
// back on (the driver refuses to speak to a server lacking either).
const BaseClientCapabilities = CapabilityClientLongPassword |
	CapabilityClientLongFlag |
	CapabilityClientConnectWithDB |
	CapabilityClientProtocol41 |
	CapabilityClientTransactions |
	CapabilityClientSecureConnection |
	CapabilityClientPluginAuth

// Server status flags (subset this driver reads out of OK/EOF packets).
const (
	ServerStatusInTrans            = 0x0001
	ServerStatusAutocommit         = 0x0002
	ServerMoreResultsExists        = 0x0008
	ServerStatusNoGoodIndexUsed    = 0x0010
	ServerStatusNoIndexUsed        = 0x0020
	ServerStatusCursorExists       = 0x0040
	ServerStatusLastRowSent        = 0x0080
	ServerStatusDBDropped          = 0x0100
	ServerStatusNoBackslashEscapes = 0x0200
)

// MysqlNativePassword is the only auth plugin this driver implements.
const MysqlNativePassword = "mysql_native_password"

// SSUnknownSQLState is used for client-generated errors that have no
// server-assigned SQLSTATE.
const SSUnknownSQLState = "HY000"

// Client error codes (CR_*), mirroring the stable numbering from the MySQL
// client library headers. These never collide with server error codes
// (ER_*), which live above 1000.
const (
	CRUnknownError       = 2000
	CRServerGone         = 2006
	CRVersionError       = 2007
	CRServerHandshakeErr = 2012
	CRServerLost         = 2013
	CRCommandsOutOfSync  = 2014
	CRMalformedPacket    = 2027
)

// ERUnknownError is the catch-all server error code used when this driver
// synthesizes an error packet of its own (it never originates from the wire).
const ERUnknownError = 1105

// DefaultCollation is the collation advertised in the login packet absent a
// caller override: utf8_general_ci, wire id 0x21 (33), matching this spec's
// handshake charset byte.
const DefaultCollation = "utf8_general_ci"

// BinaryCollation is the collation MySQL reports for BLOB/BINARY columns;
// used to disambiguate "true" blobs from TEXT columns that share wire type
// 0xFC (see the FieldType table).
const BinaryCollation = "binary"

// DefaultMaxAllowedPacket is the Config.MaxAllowedPacket default used when
// the caller hasn't set one explicitly. It is not sent in the login packet.
const DefaultMaxAllowedPacket = 4 << 20

// Collations maps collation names to their protocol-level numeric ids. Not
// exhaustive: only the collations this driver's test matrix and the common
// default configurations exercise are listed; unknown names fail DSN parsing
// rather than silently falling back to a guess.
var Collations = map[string]uint8{
	"big5_chinese_ci":    1,
	"latin1_swedish_ci":  8,
	"ascii_general_ci":   11,
	"utf8_general_ci":    33,
	"binary":             63,
	"utf8mb4_general_ci": 45,
	"utf8mb4_unicode_ci": 224,
}

// UnsafeCollations marks collations whose sort order can make
// multi-byte characters compare unequal to their single-byte prefix,
// making client-side parameter interpolation (not used by this driver,
// which always binds through prepared statements or escapes text queries
// byte-for-byte) unsafe. No code in this driver reads it.
var UnsafeCollations = map[string]bool{
	"big5_chinese_ci": true,
}
