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

package scanexec

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/coredb-io/colscan/ion"
	"github.com/coredb-io/colscan/objstore"
	"github.com/coredb-io/colscan/scan"
)

func writeIonFile(t *testing.T, dir, name string, rows int) {
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
	if err := os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func planScan(t *testing.T, dir string, limit *int64) *scan.Scan {
	t.Helper()
	store := objstore.NewLocalStore()
	s, err := scan.TryFromPath(store, dir, scan.Options{
		Extension:      ".ion",
		BatchSize:      4,
		MaxConcurrency: 1,
		Limit:          limit,
	})
	if err != nil {
		t.Fatalf("TryFromPath: %v", err)
	}
	return s
}

func TestExecuteStreamsAllRows(t *testing.T) {
	dir := t.TempDir()
	writeIonFile(t, dir, "a.ion", 10)
	s := planScan(t, dir, nil)

	stream, err := Execute(s, 0)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	ctx := context.Background()
	total := 0
	for {
		batch, err, ok := stream.Next(ctx)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		total += batch.NumRows()
	}
	if total != 10 {
		t.Fatalf("total rows = %d, want 10", total)
	}
}

func TestExecuteRespectsLimit(t *testing.T) {
	dir := t.TempDir()
	writeIonFile(t, dir, "a.ion", 10)
	limit := int64(5)
	s := planScan(t, dir, &limit)

	stream, err := Execute(s, 0)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	ctx := context.Background()
	total := 0
	for {
		batch, err, ok := stream.Next(ctx)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		total += batch.NumRows()
	}
	// batches hold at most 4 rows and the worker stops once it has
	// sent at least 5, so it sends between 5 and 5+4-1 rows.
	if total < 5 || total > 8 {
		t.Fatalf("total rows = %d, want between 5 and 8", total)
	}
}

func TestCloseStopsWorker(t *testing.T) {
	dir := t.TempDir()
	writeIonFile(t, dir, "a.ion", 1000)
	s := planScan(t, dir, nil)

	stream, err := Execute(s, 0)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	ctx := context.Background()
	batch, err, ok := stream.Next(ctx)
	if err != nil || !ok || batch == nil {
		t.Fatalf("expected first batch, got err=%v ok=%v", err, ok)
	}
	stream.Close()

	// after Close, the worker exits; draining the channel must
	// terminate (either via a cancellation error or a closed
	// channel) rather than block forever.
	for {
		_, _, ok := stream.Next(ctx)
		if !ok {
			break
		}
	}
}

func TestExecuteRejectsOutOfRangePartition(t *testing.T) {
	dir := t.TempDir()
	writeIonFile(t, dir, "a.ion", 1)
	s := planScan(t, dir, nil)

	if _, err := Execute(s, 5); err == nil {
		t.Fatalf("expected error for out-of-range partition index")
	}
}
