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

package rowgroup

// ColumnStats is the per-column summary carried in a row group's
// footer: min/max, null count, distinct count, and whether the
// min/max fields are actually populated.
type ColumnStats struct {
	Min, Max      Scalar
	HasMinMax     bool
	NullCount     int64
	DistinctCount int64
	Physical      PhysicalType
}

// Meta describes one row group within a file: its row count, byte
// size, and the per-column statistics available for pruning.
type Meta struct {
	RowCount int64
	ByteSize int64
	Columns  map[string]ColumnStats
}

// Column looks up the statistics for the named column, returning
// (stats, true) if present. A missing column, a column with
// HasMinMax == false, or a column with an Unsupported physical type
// all mean the same thing to the pruning engine: "no statistics,"
// which is why ColumnStats.Usable folds all three cases together.
func (m *Meta) Column(name string) (ColumnStats, bool) {
	cs, ok := m.Columns[name]
	return cs, ok
}

// Usable reports whether cs actually carries a usable min/max pair.
func (cs ColumnStats) Usable() bool {
	return cs.HasMinMax && !cs.Physical.Unsupported()
}

// ColumnStatistics is the scan-level aggregate of per-file row-group
// statistics, summed up to an optional row-count cutoff (spec.md
// section 3: "if limit is Some(L) then statistics are computed only
// over the prefix of files whose cumulative row count reaches L").
type ColumnStatistics struct {
	RowCount int64
	ByteSize int64
	Columns  map[string]ColumnStats
}

// AddFile folds a file's row groups into the aggregate.
func (c *ColumnStatistics) AddFile(groups []Meta) {
	if c.Columns == nil {
		c.Columns = make(map[string]ColumnStats)
	}
	for i := range groups {
		g := &groups[i]
		c.RowCount += g.RowCount
		c.ByteSize += g.ByteSize
		for name, cs := range g.Columns {
			c.Columns[name] = mergeColumnStats(c.Columns[name], cs)
		}
	}
}

// Project restricts the statistics to the named columns. Columns is
// a map keyed by column name, so the result holds the projected
// columns' statistics but does not record the projection order.
func (c *ColumnStatistics) Project(columns []string) *ColumnStatistics {
	out := &ColumnStatistics{
		RowCount: c.RowCount,
		ByteSize: c.ByteSize,
		Columns:  make(map[string]ColumnStats, len(columns)),
	}
	for _, name := range columns {
		if cs, ok := c.Columns[name]; ok {
			out.Columns[name] = cs
		}
	}
	return out
}

func mergeColumnStats(a, b ColumnStats) ColumnStats {
	out := ColumnStats{
		NullCount: a.NullCount + b.NullCount,
		Physical:  b.Physical,
	}
	out.DistinctCount = maxInt64(a.DistinctCount, b.DistinctCount)
	switch {
	case !a.HasMinMax && !b.HasMinMax:
		out.HasMinMax = false
	case a.HasMinMax && !b.HasMinMax:
		out.HasMinMax = true
		out.Min, out.Max = a.Min, a.Max
	case !a.HasMinMax && b.HasMinMax:
		out.HasMinMax = true
		out.Min, out.Max = b.Min, b.Max
	default:
		out.HasMinMax = true
		out.Min = a.Min
		if a.Min.Type() == b.Min.Type() && !a.Min.IsNull() && !b.Min.IsNull() && b.Min.Compare(a.Min) < 0 {
			out.Min = b.Min
		}
		out.Max = a.Max
		if a.Max.Type() == b.Max.Type() && !a.Max.IsNull() && !b.Max.IsNull() && b.Max.Compare(a.Max) > 0 {
			out.Max = b.Max
		}
	}
	return out
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
