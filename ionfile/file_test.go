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
	"bytes"
	"testing"

	"github.com/coredb-io/colscan/ion"
	"github.com/coredb-io/colscan/pruning"
	"github.com/coredb-io/colscan/rowgroup"
	"github.com/coredb-io/colscan/scanmetrics"
)

// writeRowGroup appends one chunk (BVM + symtab + rows) to buf, each
// row carrying an int64 field "c1" and a string field "name".
func writeRowGroup(t *testing.T, buf *ion.Buffer, rows []int64) {
	t.Helper()
	var st ion.Symtab
	c1 := st.Intern("c1")
	name := st.Intern("name")
	buf.StartChunk(&st)
	for _, v := range rows {
		buf.BeginStruct(-1)
		buf.BeginField(c1)
		buf.WriteInt(v)
		buf.BeginField(name)
		buf.WriteString("row")
		buf.EndStruct()
	}
}

func TestOpenBasicScan(t *testing.T) {
	var buf ion.Buffer
	writeRowGroup(t, &buf, []int64{1, 2, 3, 4, 5, 6, 7, 8})

	f, err := Open(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	groups := f.RowGroups()
	if len(groups) != 1 {
		t.Fatalf("len(groups) = %d, want 1", len(groups))
	}
	if groups[0].RowCount != 8 {
		t.Fatalf("RowCount = %d, want 8", groups[0].RowCount)
	}
	idx, ok := f.Schema().IndexOf("c1")
	if !ok || idx != 0 {
		t.Fatalf("IndexOf(c1) = %d, %v", idx, ok)
	}

	br := f.ProjectedBatches([]int{0}, 1024)
	batch, ok, err := br.Next()
	if err != nil || !ok {
		t.Fatalf("Next: ok=%v err=%v", ok, err)
	}
	if batch.NumRows() != 8 {
		t.Fatalf("NumRows = %d, want 8", batch.NumRows())
	}
	if _, ok, err := br.Next(); ok || err != nil {
		t.Fatalf("expected end of stream, got ok=%v err=%v", ok, err)
	}
}

func TestMinMaxPruningDropsFirstGroup(t *testing.T) {
	var buf ion.Buffer
	writeRowGroup(t, &buf, []int64{1, 5, 10})
	writeRowGroup(t, &buf, []int64{11, 15, 20})

	f, err := Open(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	groups := f.RowGroups()
	if len(groups) != 2 {
		t.Fatalf("len(groups) = %d, want 2", len(groups))
	}
	cs, ok := groups[0].Column("c1")
	if !ok || !cs.Usable() {
		t.Fatalf("group 0 c1 stats not usable: %+v", cs)
	}
	if min, _ := cs.Min.Int64(); min != 1 {
		t.Fatalf("group0 min = %d, want 1", min)
	}
	if max, _ := cs.Max.Int64(); max != 10 {
		t.Fatalf("group0 max = %d, want 10", max)
	}

	pred := pruning.Compare("c1", pruning.OpGreaterThan, rowgroup.Int64(15))
	keep := pruning.BuildKeepFunc(pred, scanmetrics.NewBundle(), f.Schema(), groups)
	if keep(0) {
		t.Fatalf("group 0 should be pruned")
	}
	if !keep(1) {
		t.Fatalf("group 1 should be kept")
	}

	f.FilterRowGroups(keep)
	br := f.ProjectedBatches([]int{0}, 1024)
	batch, ok, err := br.Next()
	if err != nil || !ok {
		t.Fatalf("Next: ok=%v err=%v", ok, err)
	}
	if batch.NumRows() != 3 {
		t.Fatalf("NumRows = %d, want 3 (only second group's rows)", batch.NumRows())
	}
}
