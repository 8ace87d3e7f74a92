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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDSNBasic(t *testing.T) {
	cfg, err := ParseDSN("root:secret@tcp(127.0.0.1:3306)/testdb")
	assert.NoError(t, err)
	assert.Equal(t, "root", cfg.User)
	assert.Equal(t, "secret", cfg.Passwd)
	assert.Equal(t, "tcp", cfg.Net)
	assert.Equal(t, "127.0.0.1:3306", cfg.Addr)
	assert.Equal(t, "testdb", cfg.DBName)
}

func TestParseDSNNoPassword(t *testing.T) {
	cfg, err := ParseDSN("root@tcp(127.0.0.1:3306)/testdb")
	assert.NoError(t, err)
	assert.Equal(t, "root", cfg.User)
	assert.Equal(t, "", cfg.Passwd)
}

func TestParseDSNDefaultAddr(t *testing.T) {
	cfg, err := ParseDSN("root:secret@/testdb")
	assert.NoError(t, err)
	assert.Equal(t, "tcp", cfg.Net)
	assert.Equal(t, "127.0.0.1:3306", cfg.Addr)
}

func TestParseDSNAddrWithoutPort(t *testing.T) {
	cfg, err := ParseDSN("root:secret@tcp(127.0.0.1)/testdb")
	assert.NoError(t, err)
	assert.Equal(t, "127.0.0.1:3306", cfg.Addr)
}

func TestParseDSNParams(t *testing.T) {
	cfg, err := ParseDSN("root:secret@tcp(127.0.0.1:3306)/testdb?clientFoundRows=true&timeout=5s&collation=utf8mb4_general_ci")
	assert.NoError(t, err)
	assert.True(t, cfg.ClientFoundRows)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, "utf8mb4_general_ci", cfg.Collation)
}

func TestParseDSNUnknownParamGoesToParams(t *testing.T) {
	cfg, err := ParseDSN("root:secret@tcp(127.0.0.1:3306)/testdb?charset=utf8")
	assert.NoError(t, err)
	assert.Equal(t, "utf8", cfg.Params["charset"])
}

func TestParseDSNInvalidBool(t *testing.T) {
	_, err := ParseDSN("root:secret@tcp(127.0.0.1:3306)/testdb?clientFoundRows=maybe")
	assert.Error(t, err)
}

func TestParseDSNMissingSlash(t *testing.T) {
	_, err := ParseDSN("root:secret@tcp(127.0.0.1:3306)")
	assert.Error(t, err)
}

func TestParseDSNUnclosedAddr(t *testing.T) {
	_, err := ParseDSN("root:secret@tcp(127.0.0.1:3306/testdb")
	assert.Error(t, err)
}

func TestParseDSNTLSTrue(t *testing.T) {
	cfg, err := ParseDSN("root:secret@tcp(127.0.0.1:3306)/testdb?tls=true")
	assert.NoError(t, err)
	assert.Equal(t, "true", cfg.TLSConfig)
}

func TestParseDSNTLSUnknownName(t *testing.T) {
	_, err := ParseDSN("root:secret@tcp(127.0.0.1:3306)/testdb?tls=does-not-exist")
	assert.Error(t, err)
}

func TestParseDSNTLSSkipVerify(t *testing.T) {
	cfg, err := ParseDSN("root:secret@tcp(127.0.0.1:3306)/testdb?tls=skip-verify")
	assert.NoError(t, err)
	assert.Equal(t, "skip-verify", cfg.TLSConfig)
}

func TestConfigClone(t *testing.T) {
	cfg, err := ParseDSN("root:secret@tcp(127.0.0.1:3306)/testdb?charset=utf8")
	assert.NoError(t, err)
	clone := cfg.Clone()
	clone.Params["charset"] = "latin1"
	assert.Equal(t, "utf8", cfg.Params["charset"])
	assert.Equal(t, "latin1", clone.Params["charset"])
}
