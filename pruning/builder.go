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

package pruning

import (
	"github.com/coredb-io/colscan/rowgroup"
	"github.com/coredb-io/colscan/scanmetrics"
)

// KeepFunc decides, given a row group's index within the slice it
// was built from, whether the row group must be read. It is backed
// by a precomputed []bool (per the "predicate decision as a
// first-class vector" design note) rather than nested per-row-group
// closures, so it is trivially cloneable and inspectable in tests.
type KeepFunc func(index int) bool

// BuildKeepFunc evaluates pred against schema/groups and returns a
// KeepFunc, following the procedure in spec.md section 4.4:
//
//  1. evaluate the predicate against the statistics adapter;
//  2. on success, count false entries into metrics' row_groups_pruned
//     counter and return a function indexing the resulting vector;
//  3. on error, bump predicate_evaluation_errors and return a
//     function that always returns true (never prune).
//
// BuildKeepFunc never fails the caller: predicate-evaluation errors
// are soft (spec.md section 7), downgrading pruning but never
// failing the scan.
func BuildKeepFunc(pred *Predicate, metrics *scanmetrics.Bundle, schema *rowgroup.Schema, groups []rowgroup.Meta) KeepFunc {
	src := NewStatisticsSource(schema, groups)
	vec, err := pred.Evaluate(src)
	if err != nil {
		metrics.Counter("predicate_evaluation_errors").Add(1)
		return func(int) bool { return true }
	}
	pruned := int64(0)
	for _, keep := range vec {
		if !keep {
			pruned++
		}
	}
	metrics.Counter("row_groups_pruned").Add(pruned)
	return func(index int) bool { return vec[index] }
}
