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

// Package scan implements the scan planner: enumerating files under
// a root path, unifying their schemas, partitioning them across a
// configurable degree of parallelism, and compiling a pruning
// predicate into metric-bearing KeepFuncs ready for the executor.
package scan

import (
	"github.com/coredb-io/colscan/rowgroup"
)

// FileDescriptor is an opaque path plus the pre-fetched column
// statistics summary for that file (spec.md section 3).
type FileDescriptor struct {
	Path     string
	RowCount int64
	ByteSize int64
	Groups   []rowgroup.Meta
}

// Partition is an ordered sequence of file descriptors assigned a
// stable index in [0, N). The union of all partitions of a Scan
// equals the discovered file set; partitions are disjoint and
// retain each file's discovery order.
type Partition struct {
	Index int
	Files []FileDescriptor
}

// Filenames returns the partition's file paths in partition order,
// resolving spec.md section 9's "filenames() unimplemented" note.
func (p *Partition) Filenames() []string {
	out := make([]string, len(p.Files))
	for i, f := range p.Files {
		out[i] = f.Path
	}
	return out
}

// Statistics returns the sum of per-file statistics for this
// partition, resolving spec.md section 9's "statistics()
// unimplemented" note.
func (p *Partition) Statistics() *rowgroup.ColumnStatistics {
	stats := &rowgroup.ColumnStatistics{}
	for _, f := range p.Files {
		stats.AddFile(f.Groups)
	}
	return stats
}
