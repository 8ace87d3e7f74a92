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
)

func TestLenEncIntRoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 250, 251, 65535, 65536, 1<<24 - 1, 1 << 24, 1<<64 - 1}
	for _, v := range cases {
		buf := make([]byte, LenEncIntSize(v))
		end := WriteLenEncInt(buf, 0, v)
		assert.Equal(t, len(buf), end)

		got, pos, ok := ReadLenEncInt(buf, 0)
		assert.True(t, ok)
		assert.Equal(t, v, got)
		assert.Equal(t, len(buf), pos)
	}
}

func TestReadLenEncIntOrNull(t *testing.T) {
	value, isNull, pos, ok := ReadLenEncIntOrNull([]byte{0xfb}, 0)
	assert.True(t, ok)
	assert.True(t, isNull)
	assert.Equal(t, 1, pos)
	assert.EqualValues(t, 0, value)

	buf := make([]byte, LenEncIntSize(42))
	WriteLenEncInt(buf, 0, 42)
	value, isNull, pos, ok = ReadLenEncIntOrNull(buf, 0)
	assert.True(t, ok)
	assert.False(t, isNull)
	assert.EqualValues(t, 42, value)
	assert.Equal(t, len(buf), pos)
}

func TestReadLenEncIntTruncated(t *testing.T) {
	_, _, ok := ReadLenEncInt([]byte{0xfe, 0x01}, 0)
	assert.False(t, ok)
}

func TestNullStringRoundTrip(t *testing.T) {
	buf := make([]byte, LenNullString("hello")+4)
	end := WriteNullString(buf, 0, "hello")
	got, pos, ok := ReadNullString(buf, 0)
	assert.True(t, ok)
	assert.Equal(t, "hello", got)
	assert.Equal(t, end, pos)
}

func TestReadNullStringMissingTerminator(t *testing.T) {
	_, _, ok := ReadNullString([]byte("no-terminator"), 0)
	assert.False(t, ok)
}

func TestLenEncStringRoundTrip(t *testing.T) {
	buf := make([]byte, LenEncStringSize("dbpack"))
	end := WriteLenEncString(buf, 0, "dbpack")
	assert.Equal(t, len(buf), end)

	got, pos, ok := ReadLenEncString(buf, 0)
	assert.True(t, ok)
	assert.Equal(t, "dbpack", got)
	assert.Equal(t, len(buf), pos)
}

func TestReadLenEncStringOrNull(t *testing.T) {
	value, isNull, pos, ok := ReadLenEncStringOrNull([]byte{0xfb}, 0)
	assert.True(t, ok)
	assert.True(t, isNull)
	assert.Equal(t, 1, pos)
	assert.Equal(t, "", value)
}

func TestFixedWidthIntegersRoundTrip(t *testing.T) {
	buf16 := make([]byte, 2)
	WriteUint16(buf16, 0, 0xABCD)
	got16, _, ok := ReadUint16(buf16, 0)
	assert.True(t, ok)
	assert.EqualValues(t, 0xABCD, got16)

	buf32 := make([]byte, 4)
	WriteUint32(buf32, 0, 0xDEADBEEF)
	got32, _, ok := ReadUint32(buf32, 0)
	assert.True(t, ok)
	assert.EqualValues(t, 0xDEADBEEF, got32)

	buf64 := make([]byte, 8)
	WriteUint64(buf64, 0, 0x0123456789ABCDEF)
	got64, _, ok := ReadUint64(buf64, 0)
	assert.True(t, ok)
	assert.EqualValues(t, 0x0123456789ABCDEF, got64)
}

func TestReadBytesOutOfBounds(t *testing.T) {
	_, _, ok := ReadBytes([]byte{1, 2, 3}, 1, 10)
	assert.False(t, ok)
}

func TestReadBytesCopyIsIndependent(t *testing.T) {
	data := []byte{1, 2, 3, 4}
	copied, pos, ok := ReadBytesCopy(data, 1, 2)
	assert.True(t, ok)
	assert.Equal(t, 3, pos)
	data[1] = 0xFF
	assert.Equal(t, byte(2), copied[0])
}

func TestWriteZeroes(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5}
	end := WriteZeroes(buf, 1, 3)
	assert.Equal(t, 4, end)
	assert.Equal(t, []byte{1, 0, 0, 0, 5}, buf)
}
