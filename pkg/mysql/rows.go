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

package mysql

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/go-dbpack/dbpack/pkg/constant"
	"github.com/go-dbpack/dbpack/pkg/errs"
	"github.com/go-dbpack/dbpack/pkg/misc"
	"github.com/go-dbpack/dbpack/pkg/packet"
	"github.com/go-dbpack/dbpack/pkg/proto"
)

// ResultSet is the column metadata shared by every Row decoded from the
// same result set; it is built once from the FieldDescription packets and
// handed to each Row that follows.
type ResultSet struct {
	Columns     []*Field
	ColumnNames []string
}

func (rs *ResultSet) columnNames() []string {
	if rs.ColumnNames != nil {
		return rs.ColumnNames
	}
	names := make([]string, len(rs.Columns))
	for i, field := range rs.Columns {
		if table := field.TableName(); table != "" {
			names[i] = table + "." + field.Name()
		} else {
			names[i] = field.Name()
		}
	}
	rs.ColumnNames = names
	return names
}

func (rs *ResultSet) fields() []proto.Field {
	fields := make([]proto.Field, len(rs.Columns))
	for i, f := range rs.Columns {
		fields[i] = f
	}
	return fields
}

// Rows is a cursor over the row packets of one result set, reading them
// one at a time off the connection until the terminating EOF/ERR packet.
type Rows struct {
	conn    *Conn
	binary  bool
	columns *ResultSet
	onDone  func()
	done    bool
}

// NewRows builds a cursor for a result set whose columns have already been
// read off the wire. binary selects the COM_STMT_EXECUTE row encoding.
func NewRows(conn *Conn, columns []*Field, binary bool) *Rows {
	return &Rows{
		conn:    conn,
		binary:  binary,
		columns: &ResultSet{Columns: columns},
	}
}

// SetOnDone registers a callback fired exactly once, the moment the result
// set is exhausted or aborted by an error. A prepared statement behind a
// query cursor can't be closed until then - COM_STMT_CLOSE would otherwise
// race the still-streaming row packets on the wire.
func (rows *Rows) SetOnDone(f func()) {
	rows.onDone = f
}

func (rows *Rows) finish() {
	if rows.done {
		return
	}
	rows.done = true
	if rows.onDone != nil {
		rows.onDone()
	}
}

// Drain reads and discards every remaining row. Used to purge a result set
// that arrived where the caller expected none.
func (rows *Rows) Drain() error {
	for {
		_, err := rows.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// Next reads and returns the next row, or io.EOF once the result set is
// exhausted. Once io.EOF or an error is returned the Rows must not be used
// again - a further call reports InvalidatedRangeError instead of repeating
// the terminal error, so a caller that keeps pulling on a closed cursor
// gets a distinct signal from "this cursor ended normally."
func (rows *Rows) Next() (proto.Row, error) {
	if rows.done {
		return nil, &errs.InvalidatedRangeError{}
	}
	if rows.conn == nil {
		rows.finish()
		return nil, io.EOF
	}

	data, err := rows.conn.ReadPacket()
	if err != nil {
		rows.conn = nil
		rows.finish()
		return nil, err
	}

	if packet.IsEOFPacket(data) {
		rows.conn = nil
		rows.finish()
		return nil, io.EOF
	}
	if packet.IsErrorPacket(data) {
		rows.conn = nil
		rows.finish()
		return nil, packet.ParseErrorPacket(data)
	}

	if rows.binary {
		return &binaryRow{row{content: data, resultSet: rows.columns}}, nil
	}
	return &textRow{row{content: data, resultSet: rows.columns}}, nil
}

// row carries the raw packet bytes and the owning column list common to
// both row encodings; decoding is deferred to Values on first call.
type row struct {
	content   []byte
	resultSet *ResultSet
	decoded   []proto.Value
}

func (r *row) Columns() []string  { return r.resultSet.columnNames() }
func (r *row) Fields() []proto.Field { return r.resultSet.fields() }

type textRow struct{ row }
type binaryRow struct{ row }

func (r *textRow) Values() ([]proto.Value, error) {
	if r.decoded != nil {
		return r.decoded, nil
	}
	columns := r.resultSet.Columns
	dest := make([]proto.Value, len(columns))

	pos := 0
	for i, field := range columns {
		s, isNull, newPos, ok := misc.ReadLenEncStringOrNull(r.content, pos)
		if !ok {
			return nil, errs.NewProtocolError("short text row while reading column %d", i)
		}
		pos = newPos
		if isNull {
			dest[i] = proto.NullValue
			continue
		}
		v, err := textValue(field.Type(), field.CharSet(), s)
		if err != nil {
			return nil, err
		}
		dest[i] = v
	}
	r.decoded = dest
	return dest, nil
}

// textValue converts one text-protocol column string into a typed Value
// according to its declared wire type. Temporal types are converted so
// ParseDate/ParseDateTime failures surface at decode time rather than on
// first use; everything else keeps its textual form, decoded from the
// column's collation to UTF-8 first.
func textValue(t constant.FieldType, collation uint16, s string) (proto.Value, error) {
	switch t {
	case constant.FieldTypeTimestamp, constant.FieldTypeDateTime:
		v, err := misc.ParseDateTime(s)
		if err != nil {
			return proto.Value{}, err
		}
		return proto.DateTimeValue(v), nil
	case constant.FieldTypeDate, constant.FieldTypeNewDate:
		v, err := misc.ParseDate(s)
		if err != nil {
			return proto.Value{}, err
		}
		return proto.DateValue(v), nil
	case constant.FieldTypeTime:
		d, err := misc.ParseTimeOfDay(s)
		if err != nil {
			return proto.Value{}, err
		}
		return proto.TimeValue(d), nil
	case constant.FieldTypeBit:
		if len(s) == 1 {
			return proto.BoolValue(s[0] != 0), nil
		}
		return proto.BytesValue([]byte(s)), nil
	default:
		decoded, err := misc.DecodeText(collation, []byte(s))
		if err != nil {
			return proto.Value{}, err
		}
		return proto.StringValue(decoded), nil
	}
}

func (r *binaryRow) Values() ([]proto.Value, error) {
	if r.decoded != nil {
		return r.decoded, nil
	}
	columns := r.resultSet.Columns
	dest := make([]proto.Value, len(columns))

	if len(r.content) == 0 || r.content[0] != constant.OKPacket {
		return nil, errs.NewProtocolError("binary row %v does not start with the 0x00 packet header", r.content)
	}

	// NULL-bitmap, (column-count + 7 + 2) / 8 bytes, offset by 2 reserved bits.
	pos := 1 + (len(dest)+7+2)>>3
	nullMask := r.content[1:pos]

	for i, field := range columns {
		if ((nullMask[(i+2)>>3] >> uint((i+2)&7)) & 1) == 1 {
			dest[i] = proto.NullValue
			continue
		}

		v, newPos, err := binaryValue(field, r.content, pos)
		if err != nil {
			return nil, err
		}
		dest[i] = v
		pos = newPos
	}
	r.decoded = dest
	return dest, nil
}

func binaryValue(field *Field, data []byte, pos int) (proto.Value, int, error) {
	switch field.Type() {
	case constant.FieldTypeNULL:
		return proto.NullValue, pos, nil

	case constant.FieldTypeTiny:
		return proto.Int64Value(int64(int8(data[pos]))), pos + 1, nil
	case constant.FieldTypeUint8:
		return proto.Uint64Value(uint64(data[pos])), pos + 1, nil

	case constant.FieldTypeShort, constant.FieldTypeYear:
		return proto.Int64Value(int64(int16(binary.LittleEndian.Uint16(data[pos : pos+2])))), pos + 2, nil
	case constant.FieldTypeUint16:
		return proto.Uint64Value(uint64(binary.LittleEndian.Uint16(data[pos : pos+2]))), pos + 2, nil

	case constant.FieldTypeInt24, constant.FieldTypeLong:
		return proto.Int64Value(int64(int32(binary.LittleEndian.Uint32(data[pos : pos+4])))), pos + 4, nil
	case constant.FieldTypeUint24, constant.FieldTypeUint32:
		return proto.Uint64Value(uint64(binary.LittleEndian.Uint32(data[pos : pos+4]))), pos + 4, nil

	case constant.FieldTypeLongLong:
		return proto.Int64Value(int64(binary.LittleEndian.Uint64(data[pos : pos+8]))), pos + 8, nil
	case constant.FieldTypeUint64:
		return proto.Uint64Value(binary.LittleEndian.Uint64(data[pos : pos+8])), pos + 8, nil

	case constant.FieldTypeFloat:
		return proto.Float32Value(math.Float32frombits(binary.LittleEndian.Uint32(data[pos : pos+4]))), pos + 4, nil
	case constant.FieldTypeDouble:
		return proto.Float64Value(math.Float64frombits(binary.LittleEndian.Uint64(data[pos : pos+8]))), pos + 8, nil

	case constant.FieldTypeTinyBLOB, constant.FieldTypeMediumBLOB, constant.FieldTypeLongBLOB, constant.FieldTypeBLOB:
		// These wire types also carry TEXT columns (see the FieldType table);
		// BinaryCollation disambiguates a true blob from text that merely
		// shares the wire type, so only text gets charset-decoded.
		b, isNull, newPos, ok := misc.ReadLenEncStringOrNull(data, pos)
		if !ok {
			return proto.Value{}, 0, errs.NewProtocolError("short binary row reading column %s", field.Name())
		}
		if isNull {
			return proto.NullValue, newPos, nil
		}
		if field.CharSet() == uint16(constant.Collations[constant.BinaryCollation]) {
			return proto.BytesValue([]byte(b)), newPos, nil
		}
		s, err := misc.DecodeText(field.CharSet(), []byte(b))
		if err != nil {
			return proto.Value{}, 0, err
		}
		return proto.StringValue(s), newPos, nil

	case constant.FieldTypeBit:
		b, isNull, newPos, ok := misc.ReadLenEncStringOrNull(data, pos)
		if !ok {
			return proto.Value{}, 0, errs.NewProtocolError("short binary row reading BIT column %s", field.Name())
		}
		if isNull {
			return proto.NullValue, newPos, nil
		}
		// A bit(1) column's payload is exactly one byte; treat it as the
		// boolean MySQL clients conventionally read it as. Wider bit(N)
		// columns carry more than one byte and stay opaque bytes - there's
		// no single bit to speak of once N > 1.
		if len(b) == 1 {
			return proto.BoolValue(b[0] != 0), newPos, nil
		}
		return proto.BytesValue([]byte(b)), newPos, nil

	case constant.FieldTypeDecimal, constant.FieldTypeNewDecimal, constant.FieldTypeVarChar,
		constant.FieldTypeEnum, constant.FieldTypeSet,
		constant.FieldTypeVarString, constant.FieldTypeString, constant.FieldTypeGeometry, constant.FieldTypeJSON:
		b, isNull, newPos, ok := misc.ReadLenEncStringOrNull(data, pos)
		if !ok {
			return proto.Value{}, 0, errs.NewProtocolError("short binary row reading column %s", field.Name())
		}
		if isNull {
			return proto.NullValue, newPos, nil
		}
		s, err := misc.DecodeText(field.CharSet(), []byte(b))
		if err != nil {
			return proto.Value{}, 0, err
		}
		return proto.StringValue(s), newPos, nil

	case constant.FieldTypeDate, constant.FieldTypeNewDate:
		t, newPos, ok := misc.ReadBinaryDate(data, pos)
		if !ok {
			return proto.Value{}, 0, errs.NewProtocolError("short binary row reading DATE column %s", field.Name())
		}
		return proto.DateValue(t), newPos, nil

	case constant.FieldTypeTimestamp, constant.FieldTypeDateTime:
		t, newPos, ok := misc.ReadBinaryDateTime(data, pos)
		if !ok {
			return proto.Value{}, 0, errs.NewProtocolError("short binary row reading DATETIME column %s", field.Name())
		}
		return proto.DateTimeValue(t), newPos, nil

	case constant.FieldTypeTime:
		d, newPos, ok := misc.ReadBinaryTime(data, pos)
		if !ok {
			return proto.Value{}, 0, errs.NewProtocolError("short binary row reading TIME column %s", field.Name())
		}
		return proto.TimeValue(d), newPos, nil

	default:
		return proto.Value{}, 0, errs.NewProtocolError("unknown field type %d for column %s", field.Type(), field.Name())
	}
}
