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

// This file holds the append-style helpers COM_STMT_EXECUTE parameter
// binding needs on top of the position-based codec in encoding.go: the
// parameter buffer is grown incrementally as each bound argument is typed
// and appended, rather than written at a known offset.

// AppendLengthEncodedInteger is WriteLenEncInt's append-style counterpart,
// used while building the COM_STMT_EXECUTE parameter value buffer whose
// final length isn't known up front.
func AppendLengthEncodedInteger(b []byte, n uint64) []byte {
	switch {
	case n <= 250:
		return append(b, byte(n))
	case n <= 0xffff:
		return append(b, 0xfc, byte(n), byte(n>>8))
	case n <= 0xffffff:
		return append(b, 0xfd, byte(n), byte(n>>8), byte(n>>16))
	default:
		return append(b, 0xfe,
			byte(n), byte(n>>8), byte(n>>16), byte(n>>24),
			byte(n>>32), byte(n>>40), byte(n>>48), byte(n>>56))
	}
}

// Uint64ToBytes renders n as 8 little-endian bytes, used when the
// parameter-value buffer has no spare capacity for an in-place PutUint64.
func Uint64ToBytes(n uint64) []byte {
	return []byte{
		byte(n), byte(n >> 8), byte(n >> 16), byte(n >> 24),
		byte(n >> 32), byte(n >> 40), byte(n >> 48), byte(n >> 56),
	}
}

// ReadBool parses a DSN boolean parameter value. It accepts "1"/"0" and
// "true"/"false" in lower, upper or title case ("true", "TRUE", "True");
// any other input is reported invalid via the second return value.
func ReadBool(input string) (value bool, valid bool) {
	switch input {
	case "1", "true", "TRUE", "True":
		return true, true
	case "0", "false", "FALSE", "False":
		return false, true
	}
	return
}

// AppendDateTime appends t's canonical SQL text representation to buf,
// trimming the time-of-day and fractional-seconds parts when they're zero,
// for binding a time.Time as a COM_STMT_EXECUTE string parameter.
func AppendDateTime(buf []byte, t time.Time) ([]byte, error) {
	year := t.Year()
	if year < 1 || year > 9999 {
		return buf, fmt.Errorf("misc: year %d out of range for DATETIME", year)
	}
	switch {
	case t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0:
		return append(buf, t.Format("2006-01-02")...), nil
	case t.Nanosecond() == 0:
		return append(buf, t.Format("2006-01-02 15:04:05")...), nil
	default:
		return append(buf, t.Format("2006-01-02 15:04:05.000000")...), nil
	}
}
