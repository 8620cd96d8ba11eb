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

// Package scanmetrics implements the atomic, lock-free
// counters exposed by a Scan and its partitions.
package scanmetrics

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Counter is an atomic, monotonically non-decreasing integer
// counter that can be read from any goroutine without blocking
// the goroutine that is incrementing it.
type Counter struct {
	v int64
}

// Add increments the counter by delta and returns the new value.
func (c *Counter) Add(delta int64) int64 {
	return atomic.AddInt64(&c.v, delta)
}

// Value returns the current value of the counter.
func (c *Counter) Value() int64 {
	return atomic.LoadInt64(&c.v)
}

// Bundle is a named collection of counters. A Bundle is safe
// for concurrent use: reading the set for display never blocks
// a producer incrementing one of its counters, and registering a
// new counter (Counter) is safe to call concurrently with Snapshot
// from another goroutine. mu guards only names/byName themselves;
// once a *Counter is returned its Add/Value are lock-free atomics,
// so producers never block on mu except for the brief first-use
// registration.
type Bundle struct {
	mu     sync.RWMutex
	names  []string
	byName map[string]*Counter
}

// NewBundle returns an empty Bundle.
func NewBundle() *Bundle {
	return &Bundle{byName: make(map[string]*Counter)}
}

// Counter returns the named counter, creating it if necessary.
// Counter is idempotent: calling it twice with the same name
// returns the same *Counter.
func (b *Bundle) Counter(name string) *Counter {
	b.mu.RLock()
	c, ok := b.byName[name]
	b.mu.RUnlock()
	if ok {
		return c
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.byName[name]; ok {
		return c
	}
	c = &Counter{}
	b.byName[name] = c
	b.names = append(b.names, name)
	return c
}

// Snapshot returns the current value of every counter in the
// bundle as a map. Reads are monotonic for each individual
// counter but are not taken atomically with respect to one
// another, so the returned map is not a consistent snapshot
// across counters.
func (b *Bundle) Snapshot() map[string]int64 {
	b.mu.RLock()
	names := append([]string(nil), b.names...)
	counters := make([]*Counter, len(names))
	for i, name := range names {
		counters[i] = b.byName[name]
	}
	b.mu.RUnlock()
	out := make(map[string]int64, len(names))
	for i, name := range names {
		out[name] = counters[i].Value()
	}
	return out
}

// Merge copies every counter of a snapshot of b into dst under
// the given key prefix, for a caller that wants to fold
// per-partition bundles into one scan-level map.
func Merge(dst map[string]int64, prefix string, b *Bundle) {
	for name, v := range b.Snapshot() {
		dst[fmt.Sprintf("%s%s", prefix, name)] = v
	}
}
