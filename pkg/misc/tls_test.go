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

package misc

import (
	"crypto/tls"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegisterTLSConfig(t *testing.T) {
	err := RegisterTLSConfig("custom", &tls.Config{
		ServerName:         "localhost",
		InsecureSkipVerify: true,
	})
	assert.NoError(t, err)

	cfg1 := GetTLSConfigClone("custom")
	assert.Equal(t, "localhost", cfg1.ServerName)
	assert.Equal(t, true, cfg1.InsecureSkipVerify)

	DeregisterTLSConfig("custom")
	cfg2 := GetTLSConfigClone("custom")
	assert.Nil(t, cfg2)
}

func TestRegisterTLSConfigReservedName(t *testing.T) {
	err := RegisterTLSConfig("skip-verify", &tls.Config{})
	assert.Error(t, err)
}

func TestGetTLSConfigCloneUnknown(t *testing.T) {
	assert.Nil(t, GetTLSConfigClone("does-not-exist"))
}
