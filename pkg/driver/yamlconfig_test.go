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

func TestParseDialConfig(t *testing.T) {
	content := []byte(`
net: tcp
addr: 127.0.0.1:3306
user: root
pwd: secret
db: testdb
timeout: 3s
tls:
  enabled: true
  insecure_skip_verify: true
`)
	dc, err := ParseDialConfig(content)
	assert.NoError(t, err)
	assert.Equal(t, "tcp", dc.Net)
	assert.Equal(t, "127.0.0.1:3306", dc.Addr)
	assert.Equal(t, 3*time.Second, dc.Timeout)
	assert.True(t, dc.TLS.Enabled)
	assert.True(t, dc.TLS.InsecureSkipVerify)
}

func TestDialConfigToConfig(t *testing.T) {
	dc := &DialConfig{
		Net:    "tcp",
		Addr:   "127.0.0.1:3306",
		User:   "root",
		Passwd: "secret",
		DBName: "testdb",
		TLS:    &TLSConfig{Enabled: true, InsecureSkipVerify: true},
	}
	cfg := dc.Config()
	assert.Equal(t, "root", cfg.User)
	assert.Equal(t, "testdb", cfg.DBName)
	assert.Equal(t, "skip-verify", cfg.TLSConfig)
}

func TestDialConfigToConfigNoTLS(t *testing.T) {
	dc := &DialConfig{Net: "tcp", Addr: "127.0.0.1:3306"}
	cfg := dc.Config()
	assert.Equal(t, "", cfg.TLSConfig)
}

func TestParseDialConfigInvalidYAML(t *testing.T) {
	_, err := ParseDialConfig([]byte("not: [valid"))
	assert.Error(t, err)
}
