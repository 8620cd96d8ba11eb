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

// Package scanexec implements the partitioned scan executor: one
// blocking worker goroutine per partition, opening files sequentially,
// applying row-group pruning, and streaming projected RecordBatches
// into a bounded channel that backs a BatchStream. This is the
// handoff spec.md section 9 calls out as mandatory: the underlying
// columnar decoder is not safe to share across goroutines and must
// never be driven from the cooperative/consumer side directly.
package scanexec

import (
	"context"
	"fmt"

	"github.com/coredb-io/colscan/ionfile"
	"github.com/coredb-io/colscan/pruning"
	"github.com/coredb-io/colscan/rowgroup"
	"github.com/coredb-io/colscan/scan"
	"github.com/coredb-io/colscan/scanerr"
	"github.com/coredb-io/colscan/scanmetrics"
)

// channelCapacity is fixed at 2 by spec.md section 4.6: one batch
// being consumed, one pre-fetched.
const channelCapacity = 2

type item struct {
	batch *rowgroup.RecordBatch
	err   error
}

// BatchStream is a lazy, cancellation-aware iterator over the
// batches of one scan partition. The underlying worker starts
// eagerly in Execute; Next blocks until a batch, an error, or
// cancellation is observed.
type BatchStream struct {
	ch     chan item
	cancel context.CancelFunc
	done   bool
}

// Next returns the next batch. ok is false once the stream has
// ended, either naturally or after delivering a single terminal
// error. ctx additionally bounds how long Next is willing to wait,
// per spec.md section 5's "callers wrap the stream with timeouts"
// policy -- the core itself imposes none.
func (s *BatchStream) Next(ctx context.Context) (*rowgroup.RecordBatch, error, bool) {
	if s.done {
		return nil, nil, false
	}
	select {
	case it, open := <-s.ch:
		if !open {
			s.done = true
			return nil, nil, false
		}
		if it.err != nil {
			s.done = true
			return nil, it.err, true
		}
		return it.batch, nil, true
	case <-ctx.Done():
		return nil, ctx.Err(), true
	}
}

// Close drops the stream: the worker's next send fails against the
// cancelled context and it exits, releasing any open file handle.
// Close is idempotent.
func (s *BatchStream) Close() {
	s.cancel()
}

// Execute starts the blocking worker for sc.Partitions[partitionIndex]
// and returns immediately with a lazy stream, per spec.md section
// 4.6's execute(partition_index) contract.
func Execute(sc *scan.Scan, partitionIndex int) (*BatchStream, error) {
	if partitionIndex < 0 || partitionIndex >= len(sc.Partitions) {
		return nil, scanerr.Internalf("scanexec.Execute", "no such partition %d", partitionIndex)
	}
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan item, channelCapacity)
	s := &BatchStream{ch: ch, cancel: cancel}
	go runWorker(ctx, sc, partitionIndex, ch)
	return s, nil
}

// runWorker implements the worker algorithm of spec.md section 4.6:
// sequential per-file processing, row-group pruning, projected batch
// emission, limit-based early termination, and channel-close-on-
// cancellation.
func runWorker(ctx context.Context, sc *scan.Scan, partitionIndex int, ch chan<- item) {
	defer close(ch)
	partition := sc.Partitions[partitionIndex]
	metrics := sc.PartitionMetrics[partitionIndex]
	var totalRows int64

	for _, desc := range partition.Files {
		if !sendLoop(ctx, sc, metrics, desc, &totalRows, ch) {
			return
		}
		if sc.Limit != nil && totalRows >= *sc.Limit {
			return
		}
	}
}

// sendLoop processes one file, returning false if the worker should
// stop entirely (cancellation or a terminal error already sent).
func sendLoop(ctx context.Context, sc *scan.Scan, metrics *scanmetrics.Bundle, desc scan.FileDescriptor, totalRows *int64, ch chan<- item) bool {
	reader, err := sc.Store.GetReader(desc.Path)
	if err != nil {
		return trySend(ctx, ch, item{err: wrapOpenErr(desc.Path, err)})
	}
	defer reader.Close()

	length, err := reader.Length()
	if err != nil {
		return trySend(ctx, ch, item{err: wrapOpenErr(desc.Path, err)})
	}
	body, err := reader.Segment(0, int64(length))
	if err != nil {
		return trySend(ctx, ch, item{err: wrapOpenErr(desc.Path, err)})
	}
	defer body.Close()
	// The whole file is fetched as one segment above, so its full
	// size is the bytes pulled from the store for this file,
	// independent of how many row groups pruning later discards.
	metrics.Counter("bytes_scanned").Add(desc.ByteSize)

	file, err := ionfile.Open(body)
	if err != nil {
		return trySend(ctx, ch, item{err: wrapOpenErr(desc.Path, err)})
	}

	if sc.Predicate != nil {
		keep := pruning.BuildKeepFunc(sc.Predicate, metrics, sc.SourceSchema, file.RowGroups())
		file.FilterRowGroups(keep)
	}

	batches := file.ProjectedBatches(sc.Projection, sc.BatchSize)
	for {
		batch, ok, err := batches.Next()
		if err != nil {
			return trySend(ctx, ch, item{err: scanerr.New(scanerr.Decode, "scanexec", err)})
		}
		if !ok {
			return true
		}
		*totalRows += int64(batch.NumRows())
		if !trySend(ctx, ch, item{batch: batch}) {
			return false
		}
		if sc.Limit != nil && *totalRows >= *sc.Limit {
			return false
		}
	}
}

// trySend delivers it on ch, returning false if ctx was cancelled
// first -- the cancellation-on-drop signal from spec.md section 4.6.
func trySend(ctx context.Context, ch chan<- item, it item) bool {
	select {
	case ch <- it:
		return it.err == nil
	case <-ctx.Done():
		return false
	}
}

func wrapOpenErr(path string, err error) error {
	if scanerr.Is(err, scanerr.IO) {
		return err
	}
	return scanerr.New(scanerr.IO, fmt.Sprintf("open %s", path), err)
}
