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

// Authentication covers exactly one plugin: mysql_native_password, the
// SHA1-based challenge-response every MySQL/MariaDB server still accepts
// for a plain user/password login. Newer plugins (caching_sha2_password,
// sha256_password) need an RSA key exchange or a TLS channel this driver
// has no call to implement, and the pre-4.1 mysql_old_password scheme is
// deliberately out of scope - a server that asks for either fails the
// handshake with ErrUnknownAuthPlugin instead of silently downgrading.
package driver

import (
	"bytes"
	"crypto/sha1"

	"go.uber.org/zap"

	"github.com/go-dbpack/dbpack/pkg/constant"
	"github.com/go-dbpack/dbpack/pkg/errs"
	"github.com/go-dbpack/dbpack/pkg/packet"
)

// scramblePassword computes the mysql_native_password response:
// SHA1(password) XOR SHA1(scramble + SHA1(SHA1(password)))
// https://dev.mysql.com/doc/dev/mysql-server/latest/page_protocol_connection_phase_authentication_methods_native_password_authentication.html
func scramblePassword(scramble []byte, password string) []byte {
	if len(password) == 0 {
		return nil
	}

	crypt := sha1.New()
	crypt.Write([]byte(password))
	stage1 := crypt.Sum(nil)

	crypt.Reset()
	crypt.Write(stage1)
	stage2 := crypt.Sum(nil)

	crypt.Reset()
	crypt.Write(scramble)
	crypt.Write(stage2)
	token := crypt.Sum(nil)

	for i := range token {
		token[i] ^= stage1[i]
	}
	return token
}

// auth computes the initial auth response for plugin, using the challenge
// bytes the server sent in the handshake (or in an auth-switch request).
func (conn *BackendConnection) auth(authData []byte, plugin string) ([]byte, error) {
	if plugin != constant.MysqlNativePassword {
		conn.conf.Logger.Error("unsupported auth plugin", zap.String("plugin", plugin))
		return nil, errs.ErrUnknownAuthPlugin
	}
	// https://dev.mysql.com/doc/internals/en/secure-password-authentication.html
	// the native password challenge is always a 20-byte scramble.
	return scramblePassword(authData[:20], conn.conf.Passwd), nil
}

// handleAuthResult processes the server's reply to the initial handshake
// response, following an auth-plugin switch at most once if the server
// requests one.
func (conn *BackendConnection) handleAuthResult(oldAuthData []byte, plugin string) error {
	authData, newPlugin, err := conn.readAuthResult()
	if err != nil {
		return err
	}

	if newPlugin == "" {
		return nil // auth successful
	}

	// If CLIENT_PLUGIN_AUTH isn't negotiated, the server doesn't resend a
	// fresh scramble and the one from the initial handshake is reused.
	if authData == nil {
		authData = oldAuthData
	}

	authResp, err := conn.auth(authData, newPlugin)
	if err != nil {
		return err
	}
	if err := conn.writeAuthSwitchPacket(authResp); err != nil {
		return err
	}

	_, secondPlugin, err := conn.readAuthResult()
	if err != nil {
		return err
	}
	if secondPlugin != "" {
		// A server that switches plugins twice in one handshake is
		// violating the protocol, not asking for a feature we lack.
		return errs.ErrMalformedPkt
	}
	return nil
}

// readAuthResult reads the packet following an auth response: an OK packet
// on success, or an EOF-shaped auth-switch-request packet naming the
// plugin and challenge to retry with.
func (conn *BackendConnection) readAuthResult() ([]byte, string, error) {
	data, err := conn.ReadPacket()
	if err != nil {
		return nil, "", err
	}

	switch data[0] {
	case constant.OKPacket:
		_, _, _, _, err := packet.ParseOKPacket(data)
		return nil, "", err

	case constant.EOFPacket:
		if len(data) == 1 {
			// https://dev.mysql.com/doc/internals/en/connection-phase-packets.html#packet-Protocol::OldAuthSwitchRequest
			return nil, "mysql_old_password", nil
		}
		pluginEndIndex := bytes.IndexByte(data, 0x00)
		if pluginEndIndex < 0 {
			return nil, "", errs.ErrMalformedPkt
		}
		return data[pluginEndIndex+1:], string(data[1:pluginEndIndex]), nil

	default: // error packet
		return nil, "", packet.ParseErrorPacket(data)
	}
}

// http://dev.mysql.com/doc/internals/en/connection-phase-packets.html#packet-Protocol::AuthSwitchResponse
func (conn *BackendConnection) writeAuthSwitchPacket(authData []byte) error {
	return conn.WritePacket(authData)
}

// readResultOK reads one packet and fails unless it's an OK packet.
func (conn *BackendConnection) readResultOK() error {
	data, err := conn.ReadPacket()
	if err != nil {
		return err
	}

	if data[0] == constant.OKPacket {
		_, _, _, _, err := packet.ParseOKPacket(data)
		return err
	}
	return packet.ParseErrorPacket(data)
}
