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
	"fmt"
	"strings"

	"github.com/coredb-io/colscan/objstore"
	"github.com/coredb-io/colscan/pruning"
	"github.com/coredb-io/colscan/rowgroup"
	"github.com/coredb-io/colscan/scanmetrics"
)

// Scan is the immutable value a Planner produces: a fixed set of
// partitions, a shared object store handle, the projected schema and
// its source-column indices, the target batch row count, aggregated
// statistics, an optional compiled pruning predicate and row limit,
// and the metric bundles observers read from. Invariants (spec.md
// section 3): the projected schema's columns are exactly the fields
// at Projection's indices of the source schema; BatchSize > 0; if
// Limit is set, Statistics were aggregated only over the file prefix
// whose cumulative row count reaches it.
type Scan struct {
	Partitions   []Partition
	Store        objstore.Store
	Schema       *rowgroup.Schema // projected
	SourceSchema *rowgroup.Schema
	Projection   []int
	BatchSize    int
	Statistics   *rowgroup.ColumnStatistics
	Predicate    *pruning.Predicate
	Limit        *int64

	ScanMetrics      *scanmetrics.Bundle
	PartitionMetrics []*scanmetrics.Bundle
}

// OutputPartitioning reports the partitioning scheme upstream
// planners should assume: values within a partition have no
// guaranteed ordering beyond file-then-row-group-then-row order
// within a file (spec.md section 4.5).
func (s *Scan) OutputPartitioning() string {
	return fmt.Sprintf("Unknown(%d)", len(s.Partitions))
}

// FmtAs renders the scan's default display form.
func (s *Scan) FmtAs() string {
	limit := "None"
	if s.Limit != nil {
		limit = fmt.Sprintf("%d", *s.Limit)
	}
	parts := make([]string, len(s.Partitions))
	for i, p := range s.Partitions {
		parts[i] = fmt.Sprintf("p%d", i)
	}
	return fmt.Sprintf("Scan: batch_size=%d, limit=%s, partitions=[%s]",
		s.BatchSize, limit, strings.Join(parts, ", "))
}

// Metrics flattens the scan-level and per-partition metric bundles
// into the names spec.md section 6 specifies:
// "numPredicateCreationErrors", and per partition
// "numPredicateEvaluationErrors for <files>" /
// "numRowGroupsPruned for <files>", plus the SPEC_FULL.md section 6
// addition "bytesScanned", the sum across partitions of bytes pulled
// from the store for files whose segment was fetched.
func (s *Scan) Metrics() map[string]int64 {
	out := make(map[string]int64)
	if v, ok := s.ScanMetrics.Snapshot()["predicate_creation_errors"]; ok {
		out["numPredicateCreationErrors"] = v
	} else {
		out["numPredicateCreationErrors"] = 0
	}
	var bytesScanned int64
	for i, p := range s.Partitions {
		files := strings.Join(p.Filenames(), ",")
		snap := s.PartitionMetrics[i].Snapshot()
		out[fmt.Sprintf("numPredicateEvaluationErrors for %s", files)] = snap["predicate_evaluation_errors"]
		out[fmt.Sprintf("numRowGroupsPruned for %s", files)] = snap["row_groups_pruned"]
		bytesScanned += snap["bytes_scanned"]
	}
	out["bytesScanned"] = bytesScanned
	return out
}

// Children reports the scan's child operators: always empty, since
// Scan is a leaf of the physical plan.
func (s *Scan) Children() []*Scan { return nil }
