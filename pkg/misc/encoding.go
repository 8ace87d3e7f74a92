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

// Package misc's codec functions implement the wire encoding MySQL calls
// "length-encoded integer/string": a value preceded by a tag byte that
// either is the value itself (0..250) or says how many little-endian bytes
// follow (0xfc -> 2, 0xfd -> 3, 0xfe -> 8). Every function here writes or
// reads starting at 'pos' in a caller-owned buffer and returns the next
// position; write functions assume the buffer is already sized correctly
// and will panic out of bounds rather than grow it.
package misc

import (
	"bytes"
	"encoding/binary"
)

// lcbWidth reports how many bytes the length-encoded form of i occupies,
// tag byte included.
func lcbWidth(i uint64) int {
	switch {
	case i < 251:
		return 1
	case i < 1<<16:
		return 3
	case i < 1<<24:
		return 4
	default:
		return 9
	}
}

// LenEncIntSize returns the number of bytes WriteLenEncInt will use to
// encode i.
func LenEncIntSize(i uint64) int {
	return lcbWidth(i)
}

// WriteLenEncInt writes i as a length-encoded integer and returns the
// position after it.
func WriteLenEncInt(data []byte, pos int, i uint64) int {
	switch lcbWidth(i) {
	case 1:
		data[pos] = byte(i)
		return pos + 1
	case 3:
		data[pos] = 0xfc
		binary.LittleEndian.PutUint16(data[pos+1:], uint16(i))
		return pos + 3
	case 4:
		data[pos] = 0xfd
		data[pos+1] = byte(i)
		data[pos+2] = byte(i >> 8)
		data[pos+3] = byte(i >> 16)
		return pos + 4
	default:
		data[pos] = 0xfe
		binary.LittleEndian.PutUint64(data[pos+1:], i)
		return pos + 9
	}
}

// ReadLenEncInt reads a length-encoded integer starting at pos.
func ReadLenEncInt(data []byte, pos int) (value uint64, newPos int, ok bool) {
	if pos >= len(data) {
		return 0, 0, false
	}
	switch tag := data[pos]; tag {
	case 0xfc:
		if pos+2 >= len(data) {
			return 0, 0, false
		}
		return uint64(binary.LittleEndian.Uint16(data[pos+1:])), pos + 3, true
	case 0xfd:
		if pos+3 >= len(data) {
			return 0, 0, false
		}
		return uint64(data[pos+1]) | uint64(data[pos+2])<<8 | uint64(data[pos+3])<<16, pos + 4, true
	case 0xfe:
		if pos+8 >= len(data) {
			return 0, 0, false
		}
		return binary.LittleEndian.Uint64(data[pos+1:]), pos + 9, true
	default:
		return uint64(tag), pos + 1, true
	}
}

// ReadLenEncIntOrNull reads a length-coded-binary integer the same way
// ReadLenEncInt does, except it treats a leading 0xfb as the NULL marker
// (no bytes consumed beyond the marker itself) instead of the literal value
// 251. Only contexts where NULL is contextually possible - row column
// values - use this; count fields such as affected-rows LCBs never carry
// NULL and keep using ReadLenEncInt directly.
func ReadLenEncIntOrNull(data []byte, pos int) (value uint64, isNull bool, newPos int, ok bool) {
	if pos >= len(data) {
		return 0, false, 0, false
	}
	if data[pos] == 0xfb {
		return 0, true, pos + 1, true
	}
	value, newPos, ok = ReadLenEncInt(data, pos)
	return value, false, newPos, ok
}

// LenEncStringSize returns the number of bytes WriteLenEncString will use
// to encode value.
func LenEncStringSize(value string) int {
	return lcbWidth(uint64(len(value))) + len(value)
}

// WriteLenEncString writes value as a length-encoded string: a
// length-encoded integer byte count followed by the raw bytes.
func WriteLenEncString(data []byte, pos int, value string) int {
	pos = WriteLenEncInt(data, pos, uint64(len(value)))
	return WriteEOFString(data, pos, value)
}

// ReadLenEncString reads a length-encoded string starting at pos.
func ReadLenEncString(data []byte, pos int) (string, int, bool) {
	b, newPos, ok := readLenEncBytes(data, pos)
	if !ok {
		return "", 0, false
	}
	return string(b), newPos, true
}

// ReadLenEncStringOrNull reads a length-coded string, reporting isNull when
// the length prefix is the NULL marker (0xfb) rather than a real length.
func ReadLenEncStringOrNull(data []byte, pos int) (value string, isNull bool, newPos int, ok bool) {
	size, isNull, pos, ok := ReadLenEncIntOrNull(data, pos)
	if !ok || isNull {
		return "", isNull, pos, ok
	}
	s := int(size)
	if pos+s-1 >= len(data) && s > 0 {
		return "", false, 0, false
	}
	return string(data[pos : pos+s]), false, pos + s, true
}

// SkipLenEncString advances pos past a length-encoded string without
// copying its bytes.
func SkipLenEncString(data []byte, pos int) (int, bool) {
	_, newPos, ok := readLenEncBytes(data, pos)
	return newPos, ok
}

// ReadLenEncStringAsBytes reads a length-encoded string as a slice into the
// original buffer - not a copy, so it's only valid as long as data is.
func ReadLenEncStringAsBytes(data []byte, pos int) ([]byte, int, bool) {
	return readLenEncBytes(data, pos)
}

// ReadLenEncStringAsBytesCopy is ReadLenEncStringAsBytes, but the returned
// slice is independent of data.
func ReadLenEncStringAsBytesCopy(data []byte, pos int) ([]byte, int, bool) {
	b, newPos, ok := readLenEncBytes(data, pos)
	if !ok {
		return nil, 0, false
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, newPos, true
}

func readLenEncBytes(data []byte, pos int) ([]byte, int, bool) {
	size, pos, ok := ReadLenEncInt(data, pos)
	if !ok {
		return nil, 0, false
	}
	s := int(size)
	if pos+s-1 >= len(data) {
		return nil, 0, false
	}
	return data[pos : pos+s], pos + s, true
}

// LenNullString returns the number of bytes WriteNullString will use to
// encode value.
func LenNullString(value string) int {
	return len(value) + 1
}

// WriteNullString writes value followed by a single 0x00 terminator.
func WriteNullString(data []byte, pos int, value string) int {
	pos += copy(data[pos:], value)
	data[pos] = 0
	return pos + 1
}

// ReadNullString reads a 0x00-terminated string starting at pos.
func ReadNullString(data []byte, pos int) (string, int, bool) {
	end := bytes.IndexByte(data[pos:], 0)
	if end == -1 {
		return "", 0, false
	}
	return string(data[pos : pos+end]), pos + end + 1, true
}

// LenEOFString returns the number of bytes WriteEOFString will use to
// encode value - just its length, since this form carries no terminator or
// length prefix and runs to the end of the packet.
func LenEOFString(value string) int {
	return len(value)
}

// WriteEOFString writes value with no length prefix or terminator.
func WriteEOFString(data []byte, pos int, value string) int {
	pos += copy(data[pos:], value)
	return pos
}

// ReadEOFString reads the remainder of data starting at pos as a string.
func ReadEOFString(data []byte, pos int) (string, int, bool) {
	return string(data[pos:]), len(data) - pos, true
}

// WriteByte writes a single byte.
func WriteByte(data []byte, pos int, value byte) int {
	data[pos] = value
	return pos + 1
}

// ReadByte reads a single byte.
func ReadByte(data []byte, pos int) (byte, int, bool) {
	if pos >= len(data) {
		return 0, 0, false
	}
	return data[pos], pos + 1, true
}

// WriteUint16 writes value as 2 little-endian bytes.
func WriteUint16(data []byte, pos int, value uint16) int {
	binary.LittleEndian.PutUint16(data[pos:], value)
	return pos + 2
}

// ReadUint16 reads 2 little-endian bytes as a uint16.
func ReadUint16(data []byte, pos int) (uint16, int, bool) {
	if pos+1 >= len(data) {
		return 0, 0, false
	}
	return binary.LittleEndian.Uint16(data[pos : pos+2]), pos + 2, true
}

// WriteUint32 writes value as 4 little-endian bytes.
func WriteUint32(data []byte, pos int, value uint32) int {
	binary.LittleEndian.PutUint32(data[pos:], value)
	return pos + 4
}

// ReadUint32 reads 4 little-endian bytes as a uint32.
func ReadUint32(data []byte, pos int) (uint32, int, bool) {
	if pos+3 >= len(data) {
		return 0, 0, false
	}
	return binary.LittleEndian.Uint32(data[pos : pos+4]), pos + 4, true
}

// WriteUint64 writes value as 8 little-endian bytes.
func WriteUint64(data []byte, pos int, value uint64) int {
	binary.LittleEndian.PutUint64(data[pos:], value)
	return pos + 8
}

// ReadUint64 reads 8 little-endian bytes as a uint64.
func ReadUint64(data []byte, pos int) (uint64, int, bool) {
	if pos+7 >= len(data) {
		return 0, 0, false
	}
	return binary.LittleEndian.Uint64(data[pos : pos+8]), pos + 8, true
}

// WriteZeroes writes n zero bytes.
func WriteZeroes(data []byte, pos int, n int) int {
	for i := 0; i < n; i++ {
		data[pos+i] = 0
	}
	return pos + n
}

// ReadBytes reads size bytes as a slice into the original buffer - not a
// copy, so it's only valid as long as data is.
func ReadBytes(data []byte, pos int, size int) ([]byte, int, bool) {
	if pos+size-1 >= len(data) {
		return nil, 0, false
	}
	return data[pos : pos+size], pos + size, true
}

// ReadBytesCopy is ReadBytes, but the returned slice is independent of
// data - needed when the source buffer is an ephemeral one about to be
// recycled.
func ReadBytesCopy(data []byte, pos int, size int) ([]byte, int, bool) {
	b, newPos, ok := ReadBytes(data, pos, size)
	if !ok {
		return nil, 0, false
	}
	out := make([]byte, size)
	copy(out, b)
	return out, newPos, true
}
