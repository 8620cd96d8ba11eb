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
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/coredb-io/colscan/ion"
	"github.com/coredb-io/colscan/objstore"
)

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

// dial returns a connected in-process pipe, and runs Serve on one end
// in the background, returning the client-facing end.
func dial(t *testing.T, store objstore.Store) net.Conn {
	t.Helper()
	client, server := net.Pipe()
	go Serve(server, store)
	t.Cleanup(func() { client.Close() })
	return client
}

func writeRequest(t *testing.T, conn net.Conn, body []byte) {
	t.Helper()
	hdr := make([]byte, framesize)
	mkframe(framerequest, len(body)).put(hdr)
	if _, err := conn.Write(hdr); err != nil {
		t.Fatalf("write header: %v", err)
	}
	if _, err := conn.Write(body); err != nil {
		t.Fatalf("write body: %v", err)
	}
}

func readFrame(t *testing.T, conn net.Conn) (frameKind, []byte) {
	t.Helper()
	hdr := make([]byte, framesize)
	if _, err := io.ReadFull(conn, hdr); err != nil {
		t.Fatalf("read header: %v", err)
	}
	f := getframe(hdr)
	payload := make([]byte, f.length())
	if len(payload) > 0 {
		if _, err := io.ReadFull(conn, payload); err != nil {
			t.Fatalf("read payload: %v", err)
		}
	}
	return f.kind(), payload
}

func TestDoGetStreamsSchemaThenBatchesThenFin(t *testing.T) {
	dir := t.TempDir()
	path := writeIonFile(t, dir, "a.ion", 3)

	conn := dial(t, objstore.NewLocalStore())
	writeRequest(t, conn, encodeAction(actionFetchPartition, Ticket{Path: path}))

	kind, _ := readFrame(t, conn)
	if kind != frameschema {
		t.Fatalf("first frame kind = %v, want frameschema", kind)
	}
	kind, payload := readFrame(t, conn)
	if kind != framebatch {
		t.Fatalf("second frame kind = %v, want framebatch", kind)
	}
	if len(payload) == 0 {
		t.Fatalf("expected non-empty batch payload")
	}
	kind, _ = readFrame(t, conn)
	if kind != framefin {
		t.Fatalf("third frame kind = %v, want framefin", kind)
	}
}

func TestDoGetUnknownPathIsInternalError(t *testing.T) {
	conn := dial(t, objstore.NewLocalStore())
	writeRequest(t, conn, encodeAction(actionFetchPartition, Ticket{Path: "/no/such/file.ion"}))

	kind, payload := readFrame(t, conn)
	if kind != frameerr {
		t.Fatalf("frame kind = %v, want frameerr", kind)
	}
	if len(payload) == 0 {
		t.Fatalf("expected non-empty error payload")
	}
}

func TestDoPutDrainsThenUnimplemented(t *testing.T) {
	conn := dial(t, objstore.NewLocalStore())
	writeRequest(t, conn, encodeAction(actionDoPut, Ticket{}))

	hdr := make([]byte, framesize)
	mkframe(framedata, 3).put(hdr)
	conn.Write(hdr)
	conn.Write([]byte("abc"))
	finHdr := make([]byte, framesize)
	mkframe(framefin, 0).put(finHdr)
	conn.Write(finHdr)

	kind, _ := readFrame(t, conn)
	if kind != frameerr {
		t.Fatalf("frame kind = %v, want frameerr", kind)
	}
}

func TestDoActionUnimplemented(t *testing.T) {
	conn := dial(t, objstore.NewLocalStore())
	writeRequest(t, conn, encodeAction("Inspect", Ticket{}))

	kind, _ := readFrame(t, conn)
	if kind != frameerr {
		t.Fatalf("frame kind = %v, want frameerr", kind)
	}
}
