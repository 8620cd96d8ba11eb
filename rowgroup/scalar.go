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

// Package rowgroup defines the row-group metadata and scalar value
// types shared by the pruning and scan packages. It replaces any
// class-hierarchy representation of column values with a single
// closed tagged union, per the "tagged union for scalar values"
// design note: unsupported physical types map to a null Scalar
// rather than raising an error.
package rowgroup

import "fmt"

// Type tags the variant held by a Scalar.
type Type int

const (
	TypeNull Type = iota
	TypeBoolean
	TypeInt32
	TypeInt64
	TypeFloat32
	TypeFloat64
	TypeUtf8
)

func (t Type) String() string {
	switch t {
	case TypeNull:
		return "null"
	case TypeBoolean:
		return "bool"
	case TypeInt32:
		return "int32"
	case TypeInt64:
		return "int64"
	case TypeFloat32:
		return "float32"
	case TypeFloat64:
		return "float64"
	case TypeUtf8:
		return "utf8"
	default:
		return "unknown"
	}
}

// PhysicalType identifies the on-disk physical encoding of a
// row-group column. Int96 and FixedLenByteArray are accepted by
// the file format but are explicitly unsupported by the statistics
// model: a row group using either always reports "no statistics"
// for that column (see Scalar.IsNull and ColumnStats.HasMinMax).
type PhysicalType int

const (
	PhysicalBoolean PhysicalType = iota
	PhysicalInt32
	PhysicalInt64
	PhysicalFloat
	PhysicalDouble
	PhysicalByteArray
	PhysicalInt96           // unsupported: statistics always null
	PhysicalFixedLenByteArray // unsupported: statistics always null
)

// Unsupported reports whether values of this physical type can
// ever produce a non-null Scalar.
func (p PhysicalType) Unsupported() bool {
	return p == PhysicalInt96 || p == PhysicalFixedLenByteArray
}

// Scalar is a tagged union over the primitive types the pruning
// engine understands. The zero value is a null scalar of type
// TypeNull.
type Scalar struct {
	typ  Type
	null bool
	b    bool
	i32  int32
	i64  int64
	f32  float32
	f64  float64
	s    string
}

// Null returns the null scalar of the given type. A null scalar
// means "unknown" to the predicate engine: predicates must treat
// it as if the row group could not be pruned.
func Null(t Type) Scalar { return Scalar{typ: t, null: true} }

func Bool(v bool) Scalar        { return Scalar{typ: TypeBoolean, b: v} }
func Int32(v int32) Scalar      { return Scalar{typ: TypeInt32, i32: v} }
func Int64(v int64) Scalar      { return Scalar{typ: TypeInt64, i64: v} }
func Float32(v float32) Scalar  { return Scalar{typ: TypeFloat32, f32: v} }
func Float64(v float64) Scalar  { return Scalar{typ: TypeFloat64, f64: v} }
func Utf8(v string) Scalar      { return Scalar{typ: TypeUtf8, s: v} }

// Type returns the tag of this scalar.
func (s Scalar) Type() Type { return s.typ }

// IsNull returns whether this scalar represents an unknown value.
func (s Scalar) IsNull() bool { return s.null }

func (s Scalar) Bool() (bool, bool)       { return s.b, s.typ == TypeBoolean && !s.null }
func (s Scalar) Int32() (int32, bool)     { return s.i32, s.typ == TypeInt32 && !s.null }
func (s Scalar) Int64() (int64, bool)     { return s.i64, s.typ == TypeInt64 && !s.null }
func (s Scalar) Float32() (float32, bool) { return s.f32, s.typ == TypeFloat32 && !s.null }
func (s Scalar) Float64() (float64, bool) { return s.f64, s.typ == TypeFloat64 && !s.null }
func (s Scalar) Utf8() (string, bool)     { return s.s, s.typ == TypeUtf8 && !s.null }

func (s Scalar) String() string {
	if s.null {
		return fmt.Sprintf("%s(null)", s.typ)
	}
	switch s.typ {
	case TypeBoolean:
		return fmt.Sprintf("%v", s.b)
	case TypeInt32:
		return fmt.Sprintf("%d", s.i32)
	case TypeInt64:
		return fmt.Sprintf("%d", s.i64)
	case TypeFloat32:
		return fmt.Sprintf("%g", s.f32)
	case TypeFloat64:
		return fmt.Sprintf("%g", s.f64)
	case TypeUtf8:
		return s.s
	default:
		return "null"
	}
}

// Compare orders two scalars of the same type. It panics if the
// scalars have different types or either is null; callers (the
// pruning adapter) are required to check Type and IsNull first.
func (s Scalar) Compare(o Scalar) int {
	if s.typ != o.typ {
		panic("rowgroup: Scalar.Compare on mismatched types")
	}
	switch s.typ {
	case TypeBoolean:
		if s.b == o.b {
			return 0
		}
		if !s.b {
			return -1
		}
		return 1
	case TypeInt32:
		return cmp(s.i32, o.i32)
	case TypeInt64:
		return cmp(s.i64, o.i64)
	case TypeFloat32:
		return cmp(s.f32, o.f32)
	case TypeFloat64:
		return cmp(s.f64, o.f64)
	case TypeUtf8:
		return cmp(s.s, o.s)
	default:
		return 0
	}
}

func cmp[T int32 | int64 | float32 | float64 | string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
