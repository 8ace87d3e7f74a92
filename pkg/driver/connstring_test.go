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

	"github.com/stretchr/testify/assert"
)

func TestParseConnectionString(t *testing.T) {
	cfg, err := ParseConnectionString("host=10.0.0.1;user=root;pwd=secret;db=testdb;port=3307")
	assert.NoError(t, err)
	assert.Equal(t, "root", cfg.User)
	assert.Equal(t, "secret", cfg.Passwd)
	assert.Equal(t, "testdb", cfg.DBName)
	assert.Equal(t, "10.0.0.1:3307", cfg.Addr)
}

func TestParseConnectionStringDefaults(t *testing.T) {
	cfg, err := ParseConnectionString("user=root;pwd=secret;db=testdb")
	assert.NoError(t, err)
	assert.Equal(t, "127.0.0.1:3306", cfg.Addr)
}

func TestParseConnectionStringIgnoresBlankSegments(t *testing.T) {
	cfg, err := ParseConnectionString("user=root;;pwd=secret;db=testdb;")
	assert.NoError(t, err)
	assert.Equal(t, "root", cfg.User)
}

func TestParseConnectionStringUnknownKey(t *testing.T) {
	_, err := ParseConnectionString("user=root;bogus=1")
	assert.Error(t, err)
}

func TestParseConnectionStringInvalidPort(t *testing.T) {
	_, err := ParseConnectionString("user=root;port=notanumber")
	assert.Error(t, err)
}

func TestParseConnectionStringMissingValue(t *testing.T) {
	_, err := ParseConnectionString("user")
	assert.Error(t, err)
}
