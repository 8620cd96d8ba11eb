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

package rowgroup

// Field is one column of a Schema: a name and the logical type used
// to derive its null Scalar (see Schema.NullScalar).
type Field struct {
	Name string
	Type Type
}

// Schema is an ordered list of Fields, shared between a source file
// and a projected scan output.
type Schema struct {
	Fields []Field
}

// IndexOf returns the index of the named field, or (-1, false) if
// the schema has no such field.
func (s *Schema) IndexOf(name string) (int, bool) {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return i, true
		}
	}
	return -1, false
}

// NullScalar derives the null scalar for the named column, or
// returns (Scalar{}, false) if the column is absent or its type
// cannot be represented as a Scalar.
func (s *Schema) NullScalar(name string) (Scalar, bool) {
	i, ok := s.IndexOf(name)
	if !ok {
		return Scalar{}, false
	}
	return Null(s.Fields[i].Type), true
}

// Project builds the schema consisting of exactly the fields at the
// given source indices, in order. Scan's invariant (spec.md section
// 3) is that the projected schema's columns are exactly the fields
// at the projection indices of the source schema.
func (s *Schema) Project(indices []int) *Schema {
	out := &Schema{Fields: make([]Field, len(indices))}
	for i, idx := range indices {
		out.Fields[i] = s.Fields[idx]
	}
	return out
}

// Equal reports whether two schemas have the same fields in the
// same order; used by the planner to detect a SchemaMismatch across
// the files being unified into one scan.
func (s *Schema) Equal(o *Schema) bool {
	if len(s.Fields) != len(o.Fields) {
		return false
	}
	for i := range s.Fields {
		if s.Fields[i] != o.Fields[i] {
			return false
		}
	}
	return true
}
