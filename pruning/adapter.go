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

// Package pruning implements row-group pruning: mapping a compiled
// predicate plus per-row-group min/max statistics onto a boolean
// keep/drop vector, without ever reading the underlying column
// data. It is this engine's analogue of ion/blockfmt's SparseIndex
// and Filter, generalized from date-range intervals to an arbitrary
// typed min/max scalar algebra over named columns.
package pruning

import (
	"github.com/coredb-io/colscan/rowgroup"
)

// StatisticsSource exposes, for a frozen slice of row-group
// metadata, the per-column min/max arrays a Predicate evaluates
// against. It is built once per Row-Group Predicate Builder call and
// is immutable thereafter.
type StatisticsSource struct {
	schema *rowgroup.Schema
	groups []rowgroup.Meta
}

// NewStatisticsSource builds an adapter over groups, typed against
// schema.
func NewStatisticsSource(schema *rowgroup.Schema, groups []rowgroup.Meta) *StatisticsSource {
	return &StatisticsSource{schema: schema, groups: groups}
}

// NumContainers returns the number of row groups (K) in this
// adapter.
func (s *StatisticsSource) NumContainers() int { return len(s.groups) }

// MinValues returns the per-row-group array of minimum values for
// column, or (nil, false) if the predicate engine should not
// attempt to prune on this column at all (column absent from the
// schema, or its type is not representable as a Scalar).
func (s *StatisticsSource) MinValues(column string) ([]rowgroup.Scalar, bool) {
	return s.values(column, true)
}

// MaxValues is MinValues for the maximum side of the range.
func (s *StatisticsSource) MaxValues(column string) ([]rowgroup.Scalar, bool) {
	return s.values(column, false)
}

func (s *StatisticsSource) values(column string, min bool) ([]rowgroup.Scalar, bool) {
	nullScalar, ok := s.schema.NullScalar(column)
	if !ok {
		return nil, false
	}
	out := make([]rowgroup.Scalar, len(s.groups))
	wantType := nullScalar.Type()
	for i := range s.groups {
		cs, ok := s.groups[i].Column(column)
		if !ok || !cs.Usable() {
			out[i] = nullScalar
			continue
		}
		v := cs.Max
		if min {
			v = cs.Min
		}
		// Byte-array statistics are already materialized as Utf8
		// scalars (with lossy fallback to a null Utf8 applied at
		// row-group-metadata construction time); a type mismatch
		// here means the column changed type across row groups,
		// which this adapter treats the same as "no statistics" for
		// that row group rather than failing the whole column.
		if v.Type() != wantType {
			out[i] = nullScalar
			continue
		}
		out[i] = v
	}
	return out, true
}
