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
	"github.com/coredb-io/colscan/ionfile"
	"github.com/coredb-io/colscan/objstore"
	"github.com/coredb-io/colscan/pruning"
	"github.com/coredb-io/colscan/rowgroup"
	"github.com/coredb-io/colscan/scanerr"
	"github.com/coredb-io/colscan/scanmetrics"
)

// PredicateFactory compiles an optional user predicate against the
// source schema. This is the external collaborator spec.md section 1
// excludes from scope ("expression compilation itself"); the planner
// only knows how to invoke it and handle its failure.
type PredicateFactory func(schema *rowgroup.Schema) (*pruning.Predicate, error)

// Options configures a Planner run.
type Options struct {
	// Extension selects files by name suffix (e.g. ".ion").
	Extension string
	// Projection is the list of source-column indices to keep, in
	// output order. Nil means "all source columns in source order".
	Projection []int
	// Predicate optionally compiles a pruning predicate against the
	// unified source schema.
	Predicate PredicateFactory
	// BatchSize is the target row count per emitted batch.
	BatchSize int
	// MaxConcurrency bounds the number of partitions produced.
	MaxConcurrency int
	// Limit, if non-nil, caps both statistics aggregation and (at
	// execution time) the rows each partition's worker returns; the
	// row count is kept per partition, not summed across partitions.
	Limit *int64
}

// TryFromPath implements the six-step procedure of spec.md section
// 4.5: enumerate files under path, unify their schemas, partition
// them into at most opts.MaxConcurrency contiguous chunks, resolve
// the projection, compile the pruning predicate, and allocate the
// scan's metric bundles.
func TryFromPath(store objstore.Store, path string, opts Options) (*Scan, error) {
	if opts.BatchSize <= 0 {
		return nil, scanerr.Newf(scanerr.Config, "scan.TryFromPath", "batch_size must be > 0, got %d", opts.BatchSize)
	}
	if opts.MaxConcurrency <= 0 {
		return nil, scanerr.Newf(scanerr.Config, "scan.TryFromPath", "max_concurrency must be > 0, got %d", opts.MaxConcurrency)
	}

	paths, err := store.ListAllFiles(path, opts.Extension)
	if err != nil {
		return nil, err
	}

	var sourceSchema *rowgroup.Schema
	descriptors := make([]FileDescriptor, len(paths))
	aggregated := &rowgroup.ColumnStatistics{}
	cumRows := int64(0)
	statsClosed := false

	for i, p := range paths {
		desc, schema, err := describeFile(store, p)
		if err != nil {
			return nil, err
		}
		if sourceSchema == nil {
			sourceSchema = schema
		} else if !sourceSchema.Equal(schema) {
			return nil, scanerr.Newf(scanerr.SchemaMismatch, "scan.TryFromPath",
				"file %q schema disagrees with %q", p, paths[0])
		}
		descriptors[i] = desc

		if !statsClosed {
			aggregated.AddFile(desc.Groups)
			cumRows += desc.RowCount
			if opts.Limit != nil && cumRows >= *opts.Limit {
				statsClosed = true
			}
		}
	}
	if sourceSchema == nil {
		sourceSchema = &rowgroup.Schema{}
	}

	partitions := partitionFiles(descriptors, opts.MaxConcurrency)

	projection := opts.Projection
	if projection == nil {
		projection = make([]int, len(sourceSchema.Fields))
		for i := range projection {
			projection[i] = i
		}
	}
	projectedSchema := sourceSchema.Project(projection)

	scanMetrics := scanmetrics.NewBundle()
	var predicate *pruning.Predicate
	if opts.Predicate != nil {
		p, err := opts.Predicate(sourceSchema)
		if err != nil {
			scanMetrics.Counter("predicate_creation_errors").Add(1)
		} else {
			predicate = p
		}
	}

	partitionMetrics := make([]*scanmetrics.Bundle, len(partitions))
	for i := range partitions {
		b := scanmetrics.NewBundle()
		// Pre-register the counters pruning.BuildKeepFunc and
		// scanexec populate from partition worker goroutines, so a
		// concurrent Scan.Metrics() call never has to race the first
		// Bundle.Counter call for a name that hasn't been touched yet.
		b.Counter("predicate_evaluation_errors")
		b.Counter("row_groups_pruned")
		b.Counter("bytes_scanned")
		partitionMetrics[i] = b
	}

	return &Scan{
		Partitions:       partitions,
		Store:            store,
		Schema:           projectedSchema,
		SourceSchema:     sourceSchema,
		Projection:       projection,
		BatchSize:        opts.BatchSize,
		Statistics:       aggregated,
		Predicate:        predicate,
		Limit:            opts.Limit,
		ScanMetrics:      scanMetrics,
		PartitionMetrics: partitionMetrics,
	}, nil
}

// describeFile opens path once to derive its schema and per-row-group
// statistics, closing the reader before returning.
func describeFile(store objstore.Store, path string) (FileDescriptor, *rowgroup.Schema, error) {
	r, err := store.GetReader(path)
	if err != nil {
		return FileDescriptor{}, nil, err
	}
	defer r.Close()
	length, err := r.Length()
	if err != nil {
		return FileDescriptor{}, nil, scanerr.New(scanerr.IO, "scan.describeFile", err)
	}
	body, err := r.Segment(0, int64(length))
	if err != nil {
		return FileDescriptor{}, nil, scanerr.New(scanerr.IO, "scan.describeFile", err)
	}
	defer body.Close()
	f, err := ionfile.Open(body)
	if err != nil {
		return FileDescriptor{}, nil, err
	}
	groups := f.RowGroups()
	var rows, byteSize int64
	for _, g := range groups {
		rows += g.RowCount
		byteSize += g.ByteSize
	}
	return FileDescriptor{Path: path, RowCount: rows, ByteSize: byteSize, Groups: groups}, f.Schema(), nil
}

// partitionFiles splits files into at most n contiguous chunks, per
// the boundary cases in spec.md section 8: chunk size is
// ceil(len(files)/n), so len(files) < n yields len(files)
// single-file partitions and never more partitions than files.
func partitionFiles(files []FileDescriptor, n int) []Partition {
	if len(files) == 0 {
		return nil
	}
	chunkSize := (len(files) + n - 1) / n
	var partitions []Partition
	for start := 0; start < len(files); start += chunkSize {
		end := start + chunkSize
		if end > len(files) {
			end = len(files)
		}
		partitions = append(partitions, Partition{
			Index: len(partitions),
			Files: files[start:end],
		})
	}
	return partitions
}
