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

import "testing"

func TestScalarCompare(t *testing.T) {
	cases := []struct {
		a, b Scalar
		want int
	}{
		{Int64(1), Int64(2), -1},
		{Int64(2), Int64(1), 1},
		{Int64(2), Int64(2), 0},
		{Utf8("a"), Utf8("b"), -1},
		{Float64(1.5), Float64(1.5), 0},
		{Bool(false), Bool(true), -1},
	}
	for _, c := range cases {
		if got := c.a.Compare(c.b); got != c.want {
			t.Errorf("%v.Compare(%v) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestScalarCompareMismatchedTypesPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic comparing mismatched scalar types")
		}
	}()
	Int64(1).Compare(Utf8("1"))
}

func TestNullScalarIsNull(t *testing.T) {
	n := Null(TypeInt64)
	if !n.IsNull() {
		t.Errorf("Null(TypeInt64).IsNull() = false, want true")
	}
	if n.Type() != TypeInt64 {
		t.Errorf("Null(TypeInt64).Type() = %v, want TypeInt64", n.Type())
	}
}

func TestColumnStatisticsAddFileMerges(t *testing.T) {
	var stats ColumnStatistics
	stats.AddFile([]Meta{
		{RowCount: 10, ByteSize: 100, Columns: map[string]ColumnStats{
			"age": {Min: Int64(5), Max: Int64(20), HasMinMax: true, Physical: PhysicalInt64},
		}},
	})
	stats.AddFile([]Meta{
		{RowCount: 20, ByteSize: 200, Columns: map[string]ColumnStats{
			"age": {Min: Int64(1), Max: Int64(30), HasMinMax: true, Physical: PhysicalInt64},
		}},
	})

	if stats.RowCount != 30 {
		t.Errorf("RowCount = %d, want 30", stats.RowCount)
	}
	if stats.ByteSize != 300 {
		t.Errorf("ByteSize = %d, want 300", stats.ByteSize)
	}
	age := stats.Columns["age"]
	if min, ok := age.Min.Int64(); !ok || min != 1 {
		t.Errorf("merged min = %v, want 1", age.Min)
	}
	if max, ok := age.Max.Int64(); !ok || max != 30 {
		t.Errorf("merged max = %v, want 30", age.Max)
	}
}

func TestColumnStatisticsProjectPreservesOrder(t *testing.T) {
	var stats ColumnStatistics
	stats.AddFile([]Meta{
		{Columns: map[string]ColumnStats{
			"a": {Min: Int64(1), Max: Int64(2), HasMinMax: true},
			"b": {Min: Int64(3), Max: Int64(4), HasMinMax: true},
		}},
	})
	proj := stats.Project([]string{"b", "a"})
	if len(proj.Columns) != 2 {
		t.Fatalf("Project produced %d columns, want 2", len(proj.Columns))
	}
	if _, ok := proj.Columns["a"]; !ok {
		t.Errorf("Project dropped column a")
	}
	if _, ok := proj.Columns["b"]; !ok {
		t.Errorf("Project dropped column b")
	}
}

func TestSchemaProjectAndEqual(t *testing.T) {
	s := &Schema{Fields: []Field{
		{Name: "a", Type: TypeInt64},
		{Name: "b", Type: TypeUtf8},
	}}
	proj := s.Project([]int{1})
	if len(proj.Fields) != 1 || proj.Fields[0].Name != "b" {
		t.Fatalf("Project([1]) = %+v, want [{b Utf8}]", proj.Fields)
	}
	if s.Equal(proj) {
		t.Errorf("schemas of different length must not be Equal")
	}
	if !proj.Equal(proj) {
		t.Errorf("a schema must Equal itself")
	}
}
