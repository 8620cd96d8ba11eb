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

package scan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/coredb-io/colscan/ion"
	"github.com/coredb-io/colscan/objstore"
)

// writeIonFile writes a single row group with the given number of
// rows, each carrying an int64 "id" field, to a new file under dir.
func writeIonFile(t *testing.T, dir, name string, rows int) string {
	t.Helper()
	var buf ion.Buffer
	var st ion.Symtab
	id := st.Intern("id")
	buf.StartChunk(&st)
	for i := 0; i < rows; i++ {
		buf.BeginStruct(-1)
		buf.BeginField(id)
		buf.WriteInt(int64(i))
		buf.EndStruct()
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestTryFromPathBasicScan(t *testing.T) {
	dir := t.TempDir()
	writeIonFile(t, dir, "a.ion", 8)

	store := objstore.NewLocalStore()
	s, err := TryFromPath(store, dir, Options{
		Extension:      ".ion",
		BatchSize:      1024,
		MaxConcurrency: 4,
	})
	if err != nil {
		t.Fatalf("TryFromPath: %v", err)
	}
	if got := s.OutputPartitioning(); got != "Unknown(1)" {
		t.Fatalf("OutputPartitioning() = %q, want Unknown(1)", got)
	}
	if len(s.Partitions) != 1 || len(s.Partitions[0].Files) != 1 {
		t.Fatalf("unexpected partitions: %+v", s.Partitions)
	}
	if s.Statistics.RowCount != 8 {
		t.Fatalf("RowCount = %d, want 8", s.Statistics.RowCount)
	}
}

func TestPartitionFilesBoundaryCases(t *testing.T) {
	mk := func(n int) []FileDescriptor {
		out := make([]FileDescriptor, n)
		return out
	}
	cases := []struct {
		files, n int
		sizes    []int
	}{
		{5, 1, []int{5}},
		{5, 2, []int{3, 2}},
		{5, 5, []int{1, 1, 1, 1, 1}},
		{5, 123, []int{1, 1, 1, 1, 1}},
	}
	for _, c := range cases {
		got := partitionFiles(mk(c.files), c.n)
		if len(got) != len(c.sizes) {
			t.Fatalf("split(%d,%d): got %d partitions, want %d", c.files, c.n, len(got), len(c.sizes))
		}
		for i, p := range got {
			if len(p.Files) != c.sizes[i] {
				t.Fatalf("split(%d,%d): partition %d has %d files, want %d", c.files, c.n, i, len(p.Files), c.sizes[i])
			}
			if p.Index != i {
				t.Fatalf("partition index = %d, want %d", p.Index, i)
			}
		}
	}
}

func TestTryFromPathSchemaMismatch(t *testing.T) {
	dir := t.TempDir()
	writeIonFile(t, dir, "a.ion", 1)

	var buf ion.Buffer
	var st ion.Symtab
	other := st.Intern("other_field")
	buf.StartChunk(&st)
	buf.BeginStruct(-1)
	buf.BeginField(other)
	buf.WriteString("x")
	buf.EndStruct()
	if err := os.WriteFile(filepath.Join(dir, "b.ion"), buf.Bytes(), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	store := objstore.NewLocalStore()
	_, err := TryFromPath(store, dir, Options{
		Extension:      ".ion",
		BatchSize:      1024,
		MaxConcurrency: 1,
	})
	if err == nil {
		t.Fatalf("expected SchemaMismatch error")
	}
}

func TestFilenamesAndStatistics(t *testing.T) {
	dir := t.TempDir()
	writeIonFile(t, dir, "a.ion", 3)
	writeIonFile(t, dir, "b.ion", 4)

	store := objstore.NewLocalStore()
	s, err := TryFromPath(store, dir, Options{
		Extension:      ".ion",
		BatchSize:      1024,
		MaxConcurrency: 1,
	})
	if err != nil {
		t.Fatalf("TryFromPath: %v", err)
	}
	if len(s.Partitions) != 1 {
		t.Fatalf("expected 1 partition, got %d", len(s.Partitions))
	}
	names := s.Partitions[0].Filenames()
	if len(names) != 2 {
		t.Fatalf("Filenames() = %v, want 2 entries", names)
	}
	stats := s.Partitions[0].Statistics()
	if stats.RowCount != 7 {
		t.Fatalf("Statistics().RowCount = %d, want 7", stats.RowCount)
	}
}
