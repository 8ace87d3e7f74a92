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
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/traditionalchinese"
)

// textDecoders maps a column's collation id, as reported in its column
// definition packet, to the x/text Encoding needed to read that column's
// bytes as UTF-8. Collations not listed here (utf8, utf8mb4, ascii,
// binary) are already UTF-8 or a UTF-8 subset and pass through unchanged.
var textDecoders = map[uint16]encoding.Encoding{
	8: charmap.ISO8859_1,       // latin1_swedish_ci
	1: traditionalchinese.Big5, // big5_chinese_ci
}

// DecodeText converts raw column bytes, in the charset implied by
// collation, into a UTF-8 string. A collation this driver doesn't have a
// decoder for is passed through as-is rather than rejected, since it may
// already be UTF-8-compatible (utf8mb4, ascii) or a column this driver's
// caller only ever treats as opaque bytes (binary).
func DecodeText(collation uint16, raw []byte) (string, error) {
	dec, ok := textDecoders[collation]
	if !ok {
		return string(raw), nil
	}
	out, err := dec.NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
