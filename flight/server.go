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

// Package flight implements the flight streaming service: it answers
// a remote FetchPartition ticket by opening a local columnar file and
// pushing a schema message, then per-batch dictionary and batch
// messages, over a bounded channel adapted as a framed connection
// reply. do_put and do_action are recognized but unimplemented.
//
// Grounded on plan.server's framekind/frame wire format and
// sync.Pool-recycled per-connection server loop (plan/partition.go),
// generalized from "query result frames" to "columnar schema /
// dictionary / batch frames" -- see wire.go.
package flight

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/coredb-io/colscan/ionfile"
	"github.com/coredb-io/colscan/objstore"
	"github.com/coredb-io/colscan/runtimeenv"
	"github.com/coredb-io/colscan/scanerr"
)

// channelCapacity is fixed at 2 by spec.md section 4.7: "a slow
// remote consumer back-pressures the file reader."
const channelCapacity = 2

// reply is one frame queued for a do_get response: either a payload
// of the given kind, or a terminal error.
type reply struct {
	kind frameKind
	data []byte
	err  error
}

// MessageStream is the lazy, channel-backed reply to a do_get
// request: a schema message, then per-batch dictionary (always zero,
// see encode.go) and batch messages, terminated by frameerr or
// framefin.
type MessageStream struct {
	ch     chan reply
	cancel context.CancelFunc
	done   bool
}

// Next returns the next frame kind and payload. ok is false once the
// stream has ended, whether cleanly or with a terminal error (err
// non-nil in that case).
func (s *MessageStream) Next() (kind frameKind, payload []byte, err error, ok bool) {
	if s.done {
		return 0, nil, nil, false
	}
	r, open := <-s.ch
	if !open {
		s.done = true
		return 0, nil, nil, false
	}
	if r.err != nil {
		s.done = true
		return frameerr, nil, r.err, true
	}
	return r.kind, r.data, nil, true
}

// Close stops the background producer. It must be called whenever a
// caller stops draining Next before it returns ok == false, e.g. when
// the outbound connection breaks mid-stream -- otherwise runDoGet
// blocks forever trying to push its next frame into a channel nobody
// is reading. Grounded on scanexec.BatchStream.Close's cancellation
// idiom (scanexec/exec.go), reused here for the same reason: Go has
// no RAII-based stream-drop semantics.
func (s *MessageStream) Close() {
	s.cancel()
}

// DoGet implements spec.md section 4.7's do_get: decode happens in
// the caller (Serve already decoded the ticket by the time this is
// called); DoGet opens path, reads its row groups, and starts a
// worker that streams the schema message followed by one batch
// message per decoded RecordBatch.
func DoGet(store objstore.Store, path string) (*MessageStream, error) {
	r, err := store.GetReader(path)
	if err != nil {
		return nil, scanerr.New(scanerr.Internal, "flight.DoGet", fmt.Errorf("failed to open partition file: %w", err))
	}
	length, err := r.Length()
	if err != nil {
		r.Close()
		return nil, scanerr.New(scanerr.Internal, "flight.DoGet", fmt.Errorf("failed to open partition file: %w", err))
	}
	body, err := r.Segment(0, int64(length))
	if err != nil {
		r.Close()
		return nil, scanerr.New(scanerr.Internal, "flight.DoGet", fmt.Errorf("failed to open partition file: %w", err))
	}
	file, err := ionfile.Open(body)
	body.Close()
	r.Close()
	if err != nil {
		return nil, scanerr.New(scanerr.Internal, "flight.DoGet", fmt.Errorf("failed to open partition file: %w", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan reply, channelCapacity)
	s := &MessageStream{ch: ch, cancel: cancel}
	go runDoGet(ctx, file, ch)
	return s, nil
}

// runDoGet emits the schema message, then walks every row group's
// batches (no projection, full batch size: do_get exposes the
// materialized partition file as-is) pushing one batch message per
// RecordBatch. A decode error terminates the stream with that error,
// matching spec.md section 4.7 step 4. ctx is cancelled by
// MessageStream.Close when nobody is draining Next anymore.
func runDoGet(ctx context.Context, file *ionfile.File, ch chan<- reply) {
	defer close(ch)
	if !trySend(ctx, ch, reply{kind: frameschema, data: encodeSchema(file.Schema())}) {
		return
	}

	full := make([]int, len(file.Schema().Fields))
	for i := range full {
		full[i] = i
	}
	batches := file.ProjectedBatches(full, runtimeenv.DefaultBatchSize)
	for {
		batch, ok, err := batches.Next()
		if err != nil {
			trySend(ctx, ch, reply{err: scanerr.New(scanerr.Decode, "flight.DoGet", err)})
			return
		}
		if !ok {
			return
		}
		if !trySend(ctx, ch, reply{kind: framebatch, data: encodeBatch(batch)}) {
			return
		}
	}
}

// trySend pushes r onto ch, giving up and returning false if ctx is
// cancelled first.
func trySend(ctx context.Context, ch chan<- reply, r reply) bool {
	select {
	case ch <- r:
		return true
	case <-ctx.Done():
		return false
	}
}

// Serve runs the per-connection request/response loop: it reads
// exactly one framerequest frame carrying an encoded Action, then
// dispatches to do_get, do_put, or do_action. Serve returns once that
// one request has been answered, with nil if the peer closes the
// connection before sending a request (io.EOF), or on an I/O fault.
//
// Grounded on plan.Serve/plan.server: a sync.Pool-recycled server
// struct wrapping a bufio.Reader over the connection, reading one
// frame header at a time via Peek+Discard.
func Serve(rw io.ReadWriteCloser, store objstore.Store) error {
	s := serverPool.Get().(*server)
	s.rw = rw
	if s.rd == nil {
		s.rd = bufio.NewReader(rw)
	} else {
		s.rd.Reset(rw)
	}
	err := s.serve(store)
	serverPool.Put(s)
	return err
}

type server struct {
	rw  io.ReadWriteCloser
	rd  *bufio.Reader
	tmp []byte
}

var serverPool = sync.Pool{
	New: func() any { return &server{} },
}

func (s *server) readFrame() (frame, error) {
	buf, err := s.rd.Peek(framesize)
	if err != nil {
		return 0, err
	}
	f := getframe(buf)
	s.rd.Discard(framesize)
	return f, nil
}

func (s *server) readn(n int) ([]byte, error) {
	if cap(s.tmp) < n {
		s.tmp = make([]byte, 0, n)
	}
	s.tmp = s.tmp[:n]
	_, err := io.ReadFull(s.rd, s.tmp)
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return s.tmp, nil
}

func (s *server) writeFrame(kind frameKind, payload []byte) error {
	hdr := make([]byte, framesize)
	mkframe(kind, len(payload)).put(hdr)
	if _, err := s.rw.Write(hdr); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := s.rw.Write(payload)
	return err
}

func (s *server) senderr(err error) error {
	return s.writeFrame(frameerr, []byte(err.Error()))
}

func (s *server) serve(store objstore.Store) error {
	defer s.rw.Close()
	f, err := s.readFrame()
	if err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	if f.kind() != framerequest {
		return fmt.Errorf("flight.Serve: expected request frame, got %x", f)
	}
	body, err := s.readn(f.length())
	if err != nil {
		return err
	}
	kind, ticket, err := decodeAction(body)
	if err != nil {
		return s.senderr(err)
	}

	switch kind {
	case actionFetchPartition:
		return s.serveDoGet(store, ticket)
	case actionDoPut:
		return s.serveDoPut()
	default:
		return s.senderr(scanerr.Newf(scanerr.Unimplemented, "flight.DoAction", "action %q is not implemented", kind))
	}
}

// serveDoGet drives a MessageStream to completion, relaying every
// frame to the connection and stopping at the first error.
func (s *server) serveDoGet(store objstore.Store, ticket Ticket) error {
	stream, err := DoGet(store, ticket.Path)
	if err != nil {
		return s.senderr(err)
	}
	defer stream.Close()
	for {
		kind, payload, err, ok := stream.Next()
		if !ok {
			return s.writeFrame(framefin, nil)
		}
		if err != nil {
			return s.senderr(err)
		}
		if werr := s.writeFrame(kind, payload); werr != nil {
			return werr
		}
	}
}

// serveDoPut drains every inbound framedata frame the client sends
// until it sees framefin, then replies Unimplemented -- spec.md
// section 4.7: "do_put consumes all inbound frames and then returns
// Unimplemented."
func (s *server) serveDoPut() error {
	for {
		f, err := s.readFrame()
		if err != nil {
			return err
		}
		if f.kind() == framefin {
			break
		}
		if _, err := s.readn(f.length()); err != nil {
			return err
		}
	}
	return s.senderr(scanerr.Newf(scanerr.Unimplemented, "flight.DoPut", "do_put is not implemented"))
}
