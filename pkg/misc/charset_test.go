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
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/encoding/charmap"
)

func TestDecodeTextPassesThroughUnknownCollation(t *testing.T) {
	s, err := DecodeText(33, []byte("hello")) // utf8_general_ci
	assert.NoError(t, err)
	assert.Equal(t, "hello", s)
}

func TestDecodeTextLatin1(t *testing.T) {
	raw, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte("café"))
	assert.NoError(t, err)

	s, err := DecodeText(8, raw) // latin1_swedish_ci
	assert.NoError(t, err)
	assert.Equal(t, "café", s)
}
