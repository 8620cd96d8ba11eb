// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package flight

import (
	"github.com/coredb-io/colscan/ion"
	"github.com/coredb-io/colscan/rowgroup"
)

// encodeSchema renders the framed columnar schema message: a struct
// carrying one field list entry per column, "name" and "type"
// (spec.md section 4.7 step 3's "one schema message").
func encodeSchema(schema *rowgroup.Schema) []byte {
	var st ion.Symtab
	fields := st.Intern("fields")
	name := st.Intern("name")
	typ := st.Intern("type")

	var body ion.Buffer
	body.BeginStruct(-1)
	body.BeginField(fields)
	body.BeginList(-1)
	for _, f := range schema.Fields {
		body.BeginStruct(-1)
		body.BeginField(name)
		body.WriteString(f.Name)
		body.BeginField(typ)
		body.WriteString(f.Type.String())
		body.EndStruct()
	}
	body.EndList()
	body.EndStruct()

	var framed ion.Buffer
	st.Marshal(&framed, true)
	framed.UnsafeAppend(body.Bytes())
	return framed.Bytes()
}

// encodeBatch renders one framed record-batch message: a struct
// carrying the row count and, per column, an ion list of its values
// (a null scalar is written as an ion null). This engine's Scalar
// set (bool/int32/int64/float32/float64/utf8) needs no dictionary encoding, so
// do_get never emits a dictionary message ahead of a batch message --
// see server.go's DoGet.
func encodeBatch(batch *rowgroup.RecordBatch) []byte {
	var st ion.Symtab
	rows := st.Intern("rows")
	columns := st.Intern("columns")

	var body ion.Buffer
	body.BeginStruct(-1)
	body.BeginField(rows)
	body.WriteInt(int64(batch.NumRows()))
	body.BeginField(columns)
	body.BeginList(-1)
	for _, col := range batch.Columns {
		body.BeginList(-1)
		for _, v := range col {
			writeScalar(&body, v)
		}
		body.EndList()
	}
	body.EndList()
	body.EndStruct()

	var framed ion.Buffer
	st.Marshal(&framed, true)
	framed.UnsafeAppend(body.Bytes())
	return framed.Bytes()
}

func writeScalar(b *ion.Buffer, v rowgroup.Scalar) {
	if v.IsNull() {
		b.WriteNull()
		return
	}
	switch v.Type() {
	case rowgroup.TypeBoolean:
		x, _ := v.Bool()
		b.WriteBool(x)
	case rowgroup.TypeInt32:
		x, _ := v.Int32()
		b.WriteInt(int64(x))
	case rowgroup.TypeInt64:
		x, _ := v.Int64()
		b.WriteInt(x)
	case rowgroup.TypeFloat32:
		x, _ := v.Float32()
		b.WriteFloat64(float64(x))
	case rowgroup.TypeFloat64:
		x, _ := v.Float64()
		b.WriteFloat64(x)
	case rowgroup.TypeUtf8:
		x, _ := v.Utf8()
		b.WriteString(x)
	default:
		b.WriteNull()
	}
}
