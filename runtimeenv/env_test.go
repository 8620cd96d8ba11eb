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
	"testing"

	"github.com/coredb-io/colscan/scanerr"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.BatchSize != DefaultBatchSize {
		t.Fatalf("batch size = %d, want %d", cfg.BatchSize, DefaultBatchSize)
	}
	if cfg.MaxMemory != 0 {
		t.Fatalf("max memory = %d, want 0 (unbounded)", cfg.MaxMemory)
	}
}

func TestConfigBuilderPanicsOnInvalid(t *testing.T) {
	cases := []struct {
		name string
		fn   func()
	}{
		{"batch size", func() { DefaultConfig().WithBatchSize(0) }},
		{"max memory", func() { DefaultConfig().WithMaxMemory(-1) }},
		{"local dirs", func() { DefaultConfig().WithLocalDirs(nil) }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Fatalf("expected panic")
				}
			}()
			c.fn()
		})
	}
}

func TestNewWithEphemeralTempDir(t *testing.T) {
	env, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(env.Disk.Dirs()) != 1 {
		t.Fatalf("expected one ephemeral dir, got %v", env.Disk.Dirs())
	}
	if env.BatchSize() != DefaultBatchSize {
		t.Fatalf("batch size = %d", env.BatchSize())
	}
}

func TestNewWithExplicitDirs(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig().WithLocalDirs([]string{dir})
	env, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := env.Disk.Dirs(); len(got) != 1 || got[0] != dir {
		t.Fatalf("Dirs() = %v, want [%s]", got, dir)
	}
}

func TestNewDiskManagerRejectsEmpty(t *testing.T) {
	_, err := NewDiskManager(nil, "")
	if !scanerr.Is(err, scanerr.Config) {
		t.Fatalf("expected Config error, got %v", err)
	}
}

func TestNewDiskManagerRejectsUnwritable(t *testing.T) {
	_, err := NewDiskManager([]string{"/nonexistent/path/for/colscan/test"}, "")
	if !scanerr.Is(err, scanerr.Config) {
		t.Fatalf("expected Config error, got %v", err)
	}
}

func TestNewDiskManagerSkipsUnwritableAmongMany(t *testing.T) {
	good := t.TempDir()
	dm, err := NewDiskManager([]string{"/nonexistent/path/for/colscan/test", good}, "s2")
	if err != nil {
		t.Fatalf("NewDiskManager: %v", err)
	}
	if got := dm.Dirs(); len(got) != 1 || got[0] != good {
		t.Fatalf("Dirs() = %v, want only %s", got, good)
	}
}

func TestSpillPathRoundRobin(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	dm, err := NewDiskManager([]string{a, b}, "s2")
	if err != nil {
		t.Fatalf("NewDiskManager: %v", err)
	}
	if got := dm.SpillPath(0, "x.spill"); got != a+"/x.spill" {
		t.Fatalf("SpillPath(0) = %s", got)
	}
	if got := dm.SpillPath(1, "x.spill"); got != b+"/x.spill" {
		t.Fatalf("SpillPath(1) = %s", got)
	}
}

func TestMemoryManagerReserveAndRelease(t *testing.T) {
	m := NewMemoryManager(100)
	if err := m.Reserve("a", 60); err != nil {
		t.Fatalf("Reserve a: %v", err)
	}
	if err := m.Reserve("b", 60); err == nil {
		t.Fatalf("expected limit exceeded error")
	}
	m.Release("a")
	if err := m.Reserve("b", 60); err != nil {
		t.Fatalf("Reserve b after release: %v", err)
	}
	if m.Used() != 60 {
		t.Fatalf("Used() = %d, want 60", m.Used())
	}
}

func TestMemoryManagerReserveIsIdempotentByConsumer(t *testing.T) {
	m := NewMemoryManager(0)
	if err := m.Reserve("a", 10); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if err := m.Reserve("a", 20); err != nil {
		t.Fatalf("Reserve (replace): %v", err)
	}
	if m.Used() != 20 {
		t.Fatalf("Used() = %d, want 20 (replaced, not accumulated)", m.Used())
	}
}

func TestMemoryManagerUnbounded(t *testing.T) {
	m := NewMemoryManager(0)
	if err := m.Reserve("a", 1<<40); err != nil {
		t.Fatalf("unbounded reserve failed: %v", err)
	}
}
