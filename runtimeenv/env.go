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
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/coredb-io/colscan/cgroup"
)

// Env is the runtime environment: the batch size new scans default
// to, a MemoryManager gating buffer growth, and a DiskManager owning
// spill directories. Unlike the teacher's core.Env, which is reached
// for as a package singleton, an Env here is built once by the
// process entry point, which passes its BatchSize into the scan
// planner's Options; the planner and executor do not take the Env
// itself. Tests can build several independently configured
// environments in the same process.
type Env struct {
	cfg    Config
	Memory *MemoryManager
	Disk   *DiskManager
}

// New builds an Env from cfg. If cfg.MaxMemory is 0, New attempts to
// discover a cgroup2 memory ceiling for the current process before
// falling back to unbounded; this mirrors cgroup.Dir's use elsewhere
// in the teacher's process for container-aware resource discovery.
// If cfg.LocalDirs is empty, a single ephemeral temp directory is
// created and used.
func New(cfg Config) (*Env, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxMemory == 0 {
		cfg.MaxMemory = discoverCgroupMemoryLimit()
	}
	dirs := cfg.LocalDirs
	if len(dirs) == 0 {
		dir, err := ephemeralTempDir()
		if err != nil {
			return nil, err
		}
		dirs = []string{dir}
	}
	disk, err := NewDiskManager(dirs, DefaultSpillCompression)
	if err != nil {
		return nil, err
	}
	return &Env{
		cfg:    cfg,
		Memory: NewMemoryManager(cfg.MaxMemory),
		Disk:   disk,
	}, nil
}

// BatchSize returns the number of rows new scans should target per
// emitted batch absent an explicit override.
func (e *Env) BatchSize() int { return e.cfg.BatchSize }

// discoverCgroupMemoryLimit best-effort reads the current cgroup2
// memory.max for the process; it returns 0 (unbounded) if no cgroup2
// hierarchy is mounted, the current process isn't in one, or the
// limit is itself set to "max".
func discoverCgroupMemoryLimit() int64 {
	self, err := cgroup.Self()
	if self.IsZero() || err != nil {
		return 0
	}
	raw, err := os.ReadFile(filepath.Join(string(self), "memory.max"))
	if err != nil {
		return 0
	}
	text := strings.TrimSpace(string(raw))
	if text == "max" || text == "" {
		return 0
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
