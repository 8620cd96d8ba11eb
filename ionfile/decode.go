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

package ionfile

import (
	"github.com/coredb-io/colscan/ion"
	"github.com/coredb-io/colscan/rowgroup"
)

// unifySchema derives the file's schema from the union of every
// top-level struct field encountered across every row group, in
// order of first appearance. A field's logical Type is the type of
// its first non-null occurrence; rows that don't carry a field, or
// carry it with a conflicting type, read back as that field's null
// scalar (the same "no statistics" treatment the pruning adapter
// gives absent columns).
func unifySchema(chunks [][]ion.Datum) *rowgroup.Schema {
	schema := &rowgroup.Schema{}
	seen := make(map[string]int)
	for _, rows := range chunks {
		for _, d := range rows {
			s, ok := d.Struct()
			if !ok {
				continue
			}
			s.Each(func(f ion.Field) bool {
				if _, ok := seen[f.Label]; ok {
					return true
				}
				typ, ok := scalarType(f.Value)
				if !ok {
					return true
				}
				seen[f.Label] = len(schema.Fields)
				schema.Fields = append(schema.Fields, rowgroup.Field{Name: f.Label, Type: typ})
				return true
			})
		}
	}
	return schema
}

// scalarType maps an ion.Datum to the logical Type it would occupy
// in a Schema, or (_, false) if the datum's ion type has no Scalar
// representation (list, struct, symbol, null, etc. -- see spec.md
// section 3's closed scalar type set).
func scalarType(d ion.Datum) (rowgroup.Type, bool) {
	switch d.Type() {
	case ion.BoolType:
		return rowgroup.TypeBoolean, true
	case ion.IntType, ion.UintType:
		return rowgroup.TypeInt64, true
	case ion.FloatType:
		return rowgroup.TypeFloat64, true
	case ion.StringType:
		return rowgroup.TypeUtf8, true
	default:
		return rowgroup.TypeNull, false
	}
}

// toScalar converts d to a Scalar of wantType, or the null scalar of
// wantType if d cannot be represented as that type -- the same
// "unrepresentable means unknown" rule spec.md section 4.3 specifies
// for row-group statistics, applied here to row values too.
func toScalar(d ion.Datum, wantType rowgroup.Type) rowgroup.Scalar {
	switch wantType {
	case rowgroup.TypeBoolean:
		if v, ok := d.Bool(); ok {
			return rowgroup.Bool(v)
		}
	case rowgroup.TypeInt64:
		if v, ok := d.Int(); ok {
			return rowgroup.Int64(v)
		}
		if v, ok := d.Uint(); ok {
			return rowgroup.Int64(int64(v))
		}
	case rowgroup.TypeFloat64:
		if v, ok := d.Float(); ok {
			return rowgroup.Float64(v)
		}
	case rowgroup.TypeUtf8:
		if v, ok := d.String(); ok {
			return rowgroup.Utf8(v)
		}
	}
	return rowgroup.Null(wantType)
}

// buildGroup decodes one row group's raw datums into rows aligned to
// schema's field order, and folds per-column min/max/null-count
// statistics over them.
func buildGroup(schema *rowgroup.Schema, rawRows []ion.Datum) group {
	rows := make([][]rowgroup.Scalar, 0, len(rawRows))
	stats := make(map[string]rowgroup.ColumnStats, len(schema.Fields))
	for _, f := range schema.Fields {
		stats[f.Name] = rowgroup.ColumnStats{Physical: logicalToPhysical(f.Type)}
	}
	for _, d := range rawRows {
		s, ok := d.Struct()
		if !ok {
			continue
		}
		row := make([]rowgroup.Scalar, len(schema.Fields))
		for i, f := range schema.Fields {
			field, ok := s.FieldByName(f.Name)
			if !ok || field.Value.Empty() || field.Value.Null() {
				row[i] = rowgroup.Null(f.Type)
				cs := stats[f.Name]
				cs.NullCount++
				stats[f.Name] = cs
				continue
			}
			v := toScalar(field.Value, f.Type)
			row[i] = v
			cs := stats[f.Name]
			if v.IsNull() {
				cs.NullCount++
			} else {
				cs = foldMinMax(cs, v)
			}
			stats[f.Name] = cs
		}
		rows = append(rows, row)
	}
	return group{
		meta: rowgroup.Meta{
			RowCount: int64(len(rows)),
			ByteSize: int64(totalBytes(rawRows)),
			Columns:  stats,
		},
		rows: rows,
		keep: true,
	}
}

func foldMinMax(cs rowgroup.ColumnStats, v rowgroup.Scalar) rowgroup.ColumnStats {
	if !cs.HasMinMax {
		cs.HasMinMax = true
		cs.Min, cs.Max = v, v
		return cs
	}
	if v.Compare(cs.Min) < 0 {
		cs.Min = v
	}
	if v.Compare(cs.Max) > 0 {
		cs.Max = v
	}
	return cs
}

func logicalToPhysical(t rowgroup.Type) rowgroup.PhysicalType {
	switch t {
	case rowgroup.TypeBoolean:
		return rowgroup.PhysicalBoolean
	case rowgroup.TypeInt32:
		return rowgroup.PhysicalInt32
	case rowgroup.TypeInt64:
		return rowgroup.PhysicalInt64
	case rowgroup.TypeFloat32:
		return rowgroup.PhysicalFloat
	case rowgroup.TypeFloat64:
		return rowgroup.PhysicalDouble
	default:
		return rowgroup.PhysicalByteArray
	}
}

func totalBytes(rows []ion.Datum) int {
	var buf ion.Buffer
	var st ion.Symtab
	n := 0
	for _, d := range rows {
		buf.Set(nil)
		d.Encode(&buf, &st)
		n += len(buf.Bytes())
	}
	return n
}
