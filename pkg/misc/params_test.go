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
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAppendLengthEncodedIntegerRanges(t *testing.T) {
	assert.Equal(t, []byte{0x05}, AppendLengthEncodedInteger(nil, 5))
	assert.Equal(t, []byte{0xfc, 0x00, 0x01}, AppendLengthEncodedInteger(nil, 256))
	assert.Equal(t, []byte{0xfd, 0x00, 0x00, 0x01}, AppendLengthEncodedInteger(nil, 1<<16))
	assert.Equal(t, []byte{0xfe, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00}, AppendLengthEncodedInteger(nil, 1<<24))
}

func TestAppendLengthEncodedIntegerAppendsAfterExistingBuffer(t *testing.T) {
	buf := []byte{0xaa, 0xbb}
	got := AppendLengthEncodedInteger(buf, 10)
	assert.Equal(t, []byte{0xaa, 0xbb, 0x0a}, got)
}

func TestUint64ToBytesLittleEndian(t *testing.T) {
	got := Uint64ToBytes(0x0102030405060708)
	assert.Equal(t, []byte{0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01}, got)
}

func TestAppendDateTimeDateOnly(t *testing.T) {
	tm := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	got, err := AppendDateTime(nil, tm)
	assert.NoError(t, err)
	assert.Equal(t, "2024-05-01", string(got))
}

func TestAppendDateTimeWithoutFraction(t *testing.T) {
	tm := time.Date(2024, 5, 1, 10, 30, 15, 0, time.UTC)
	got, err := AppendDateTime(nil, tm)
	assert.NoError(t, err)
	assert.Equal(t, "2024-05-01 10:30:15", string(got))
}

func TestAppendDateTimeWithFraction(t *testing.T) {
	tm := time.Date(2024, 5, 1, 10, 30, 15, 123000000, time.UTC)
	got, err := AppendDateTime(nil, tm)
	assert.NoError(t, err)
	assert.Equal(t, "2024-05-01 10:30:15.123000", string(got))
}

func TestAppendDateTimeRejectsOutOfRangeYear(t *testing.T) {
	tm := time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := AppendDateTime(nil, tm)
	assert.Error(t, err)
}

func TestAppendDateTimeAppendsAfterExistingBuffer(t *testing.T) {
	buf := []byte("prefix:")
	tm := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	got, err := AppendDateTime(buf, tm)
	assert.NoError(t, err)
	assert.Equal(t, "prefix:2024-05-01", string(got))
}
