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
	"fmt"
	"time"
)

// This file implements the binary-mode temporal codec: MySQL prepends a
// one-byte length to DATE/TIME/DATETIME/TIMESTAMP values in prepared-
// statement result rows and in COM_STMT_EXECUTE parameter values. The byte
// itself is not a wire type, it only says how many of the following bytes
// are present; the layout is the same whichever direction the value travels.

// ReadBinaryDate reads a length-prefixed DATE value starting at pos (pos
// points at the length byte). Returns the decoded time (UTC, no location
// attached since the wire format carries none) and the position following
// the value.
func ReadBinaryDate(data []byte, pos int) (time.Time, int, bool) {
	return readBinaryTemporal(data, pos, false)
}

// ReadBinaryDateTime reads a length-prefixed DATETIME or TIMESTAMP value.
func ReadBinaryDateTime(data []byte, pos int) (time.Time, int, bool) {
	return readBinaryTemporal(data, pos, false)
}

func readBinaryTemporal(data []byte, pos int, _ bool) (time.Time, int, bool) {
	if pos >= len(data) {
		return time.Time{}, 0, false
	}
	length := int(data[pos])
	pos++
	if pos+length > len(data) {
		return time.Time{}, 0, false
	}
	if length == 0 {
		return time.Time{}, pos, true
	}
	year := int(uint16(data[pos]) | uint16(data[pos+1])<<8)
	month := int(data[pos+2])
	day := int(data[pos+3])
	hour, minute, second, microsecond := 0, 0, 0, 0
	if length >= 7 {
		hour = int(data[pos+4])
		minute = int(data[pos+5])
		second = int(data[pos+6])
	}
	if length >= 11 {
		microsecond = int(uint32(data[pos+7]) | uint32(data[pos+8])<<8 |
			uint32(data[pos+9])<<16 | uint32(data[pos+10])<<24)
	}
	t := time.Date(year, time.Month(month), day, hour, minute, second, microsecond*1000, time.UTC)
	return t, pos + length, true
}

// ReadBinaryTime reads a length-prefixed TIME-of-day value: a negative
// flag, a day count, and an hour/minute/second/microsecond breakdown. It is
// returned as a time.Duration since TIME has no associated calendar date.
func ReadBinaryTime(data []byte, pos int) (time.Duration, int, bool) {
	if pos >= len(data) {
		return 0, 0, false
	}
	length := int(data[pos])
	pos++
	if pos+length > len(data) {
		return 0, 0, false
	}
	if length == 0 {
		return 0, pos, true
	}
	negative := data[pos] != 0
	days := uint32(data[pos+1]) | uint32(data[pos+2])<<8 |
		uint32(data[pos+3])<<16 | uint32(data[pos+4])<<24
	hours := int(data[pos+5])
	minutes := int(data[pos+6])
	seconds := int(data[pos+7])
	microseconds := 0
	if length >= 12 {
		microseconds = int(uint32(data[pos+8]) | uint32(data[pos+9])<<8 |
			uint32(data[pos+10])<<16 | uint32(data[pos+11])<<24)
	}
	d := time.Duration(days)*24*time.Hour +
		time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(microseconds)*time.Microsecond
	if negative {
		d = -d
	}
	return d, pos + length, true
}

// WriteBinaryDateTime appends the length-prefixed binary encoding of t to
// buf, choosing the shortest form that loses no information: 0 bytes for
// the zero value, 4 for a bare date, 7 when a time-of-day is present, 11
// when sub-second precision is present.
func WriteBinaryDateTime(buf []byte, t time.Time) []byte {
	if t.IsZero() {
		return append(buf, 0)
	}
	hasTime := t.Hour() != 0 || t.Minute() != 0 || t.Second() != 0
	hasFrac := t.Nanosecond() != 0
	length := byte(4)
	switch {
	case hasFrac:
		length = 11
	case hasTime:
		length = 7
	}
	buf = append(buf, length)
	buf = appendUint16(buf, uint16(t.Year()))
	buf = append(buf, byte(t.Month()), byte(t.Day()))
	if length >= 7 {
		buf = append(buf, byte(t.Hour()), byte(t.Minute()), byte(t.Second()))
	}
	if length >= 11 {
		buf = appendUint32(buf, uint32(t.Nanosecond()/1000))
	}
	return buf
}

// WriteBinaryTime appends the length-prefixed binary encoding of a
// time-of-day duration to buf.
func WriteBinaryTime(buf []byte, d time.Duration) []byte {
	if d == 0 {
		return append(buf, 0)
	}
	negative := d < 0
	if negative {
		d = -d
	}
	days := uint32(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	hours := byte(d / time.Hour)
	d -= time.Duration(hours) * time.Hour
	minutes := byte(d / time.Minute)
	d -= time.Duration(minutes) * time.Minute
	seconds := byte(d / time.Second)
	d -= time.Duration(seconds) * time.Second
	micros := uint32(d / time.Microsecond)

	length := byte(8)
	if micros != 0 {
		length = 12
	}
	buf = append(buf, length)
	if negative {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = appendUint32(buf, days)
	buf = append(buf, hours, minutes, seconds)
	if length == 12 {
		buf = appendUint32(buf, micros)
	}
	return buf
}

func appendUint16(buf []byte, v uint16) []byte {
	return append(buf, byte(v), byte(v>>8))
}

func appendUint32(buf []byte, v uint32) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

// FormatSQLDate renders t using the canonical SQL date format, for
// text-mode queries and for stringifying a Date-kind Value.
func FormatSQLDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// FormatTimeOfDay renders d using the canonical SQL time format. Durations
// outside a single day print with a day-overflowed hour count, matching
// how MySQL itself prints TIME values beyond 838:59:59 (which we don't
// clamp to, since this driver never writes values the server would reject).
func FormatTimeOfDay(d time.Duration) string {
	negative := d < 0
	if negative {
		d = -d
	}
	totalSeconds := int64(d / time.Second)
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60
	sign := ""
	if negative {
		sign = "-"
	}
	return fmt.Sprintf("%s%02d:%02d:%02d", sign, hours, minutes, seconds)
}

// FormatDateTime renders t using the canonical SQL datetime format.
func FormatDateTime(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

// ParseDate parses a canonical SQL date string (as sent in a text-mode
// result row) into a time.Time.
func ParseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

// ParseDateTime parses a canonical SQL datetime string, tolerating a
// fractional-seconds suffix the server appends when the column has
// microsecond precision.
func ParseDateTime(s string) (time.Time, error) {
	if len(s) > 19 && s[19] == '.' {
		return time.Parse("2006-01-02 15:04:05.999999", s)
	}
	return time.Parse("2006-01-02 15:04:05", s)
}

// ParseTimeOfDay parses a canonical SQL time string into a duration,
// accepting the server's hour-overflow form (e.g. "838:59:59") and a
// leading sign.
func ParseTimeOfDay(s string) (time.Duration, error) {
	negative := false
	if len(s) > 0 && s[0] == '-' {
		negative = true
		s = s[1:]
	}
	var hours, minutes, seconds int
	var fraction string
	if dot := indexByte(s, '.'); dot >= 0 {
		fraction = s[dot+1:]
		s = s[:dot]
	}
	n, err := fmt.Sscanf(s, "%d:%d:%d", &hours, &minutes, &seconds)
	if err != nil || n != 3 {
		return 0, fmt.Errorf("misc: invalid TIME value %q", s)
	}
	d := time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second
	if fraction != "" {
		for len(fraction) < 6 {
			fraction += "0"
		}
		var micros int
		fmt.Sscanf(fraction[:6], "%d", &micros)
		d += time.Duration(micros) * time.Microsecond
	}
	if negative {
		d = -d
	}
	return d, nil
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}
