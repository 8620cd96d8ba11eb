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

package runtimeenv

import (
	"fmt"
	"sync"

	"github.com/coredb-io/colscan/scanerr"
)

// MemoryManager tracks aggregate bytes reserved by consumers (scan
// workers, spill buffers) against a configured ceiling. It does not
// allocate memory itself -- it is a bookkeeping gate a worker
// consults before growing a buffer, mirroring the advisory role
// cgroup-based accounting plays in the teacher's process (see
// cgroup.Dir): a consumer that ignores it can still over-allocate,
// but cooperating code fails fast with a Config error instead.
type MemoryManager struct {
	mu        sync.Mutex
	limit     int64 // 0 means unbounded
	reserved  map[string]int64
	totalUsed int64
}

// NewMemoryManager builds a MemoryManager bounded by limit bytes.
// limit == 0 means unbounded.
func NewMemoryManager(limit int64) *MemoryManager {
	return &MemoryManager{limit: limit, reserved: make(map[string]int64)}
}

// Reserve grows (or, for a smaller n, shrinks) the allocation
// attributed to consumer by setting it to n bytes. Reservation is
// idempotent by consumer identity: calling Reserve again with the
// same consumer replaces its prior reservation rather than adding to
// it. It returns a Config-flavored scanerr.Error if doing so would
// exceed the configured limit.
func (m *MemoryManager) Reserve(consumer string, n int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.reserved[consumer]
	next := m.totalUsed - prev + n
	if m.limit > 0 && next > m.limit {
		return scanerr.Newf(scanerr.Config, "runtimeenv.Reserve",
			"memory limit exceeded: %d bytes requested for %q, %d/%d already reserved",
			n, consumer, m.totalUsed-prev, m.limit)
	}
	m.reserved[consumer] = n
	m.totalUsed = next
	return nil
}

// Release forgets consumer's reservation entirely.
func (m *MemoryManager) Release(consumer string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalUsed -= m.reserved[consumer]
	delete(m.reserved, consumer)
}

// Used returns the current aggregate reservation across all
// consumers.
func (m *MemoryManager) Used() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalUsed
}

// Limit returns the configured ceiling, or 0 if unbounded.
func (m *MemoryManager) Limit() int64 {
	return m.limit
}

func (m *MemoryManager) String() string {
	if m.limit == 0 {
		return fmt.Sprintf("MemoryManager(used=%d, unbounded)", m.Used())
	}
	return fmt.Sprintf("MemoryManager(used=%d, limit=%d)", m.Used(), m.limit)
}
