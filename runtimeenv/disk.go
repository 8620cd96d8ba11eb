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
	"os"
	"path/filepath"

	"github.com/coredb-io/colscan/compr"
	"github.com/coredb-io/colscan/scanerr"
)

// DiskManager owns the set of local directories spill files may be
// written into, and the compressor/decompressor pair applied to
// them. It validates at construction time rather than at first
// write, so a misconfigured Env fails during startup instead of
// mid-scan.
type DiskManager struct {
	dirs   []string
	compr  compr.Compressor
	decomp compr.Decompressor
}

// DefaultSpillCompression names the algorithm DiskManager uses
// unless overridden: "s2" trades ratio for the encode/decode speed
// spill traffic needs, the same tradeoff the teacher's ion writer
// makes for its default block compression.
const DefaultSpillCompression = "s2"

// NewDiskManager validates dirs (each must exist and be writable)
// and returns a DiskManager over them using the named compression
// algorithm. It fails with scanerr.Config if dirs is empty or none
// of the entries are usable.
func NewDiskManager(dirs []string, algorithm string) (*DiskManager, error) {
	if len(dirs) == 0 {
		return nil, scanerr.New(scanerr.Config, "runtimeenv.NewDiskManager", fmt.Errorf("local_dirs must be non-empty"))
	}
	var usable []string
	for _, d := range dirs {
		if probeWritable(d) {
			usable = append(usable, d)
		}
	}
	if len(usable) == 0 {
		return nil, scanerr.Newf(scanerr.Config, "runtimeenv.NewDiskManager", "no writable directory among %v", dirs)
	}
	if algorithm == "" {
		algorithm = DefaultSpillCompression
	}
	return &DiskManager{
		dirs:   usable,
		compr:  compr.Compression(algorithm),
		decomp: compr.Decompression(algorithm),
	}, nil
}

func probeWritable(dir string) bool {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return false
	}
	f, err := os.CreateTemp(dir, ".colscan-probe-*")
	if err != nil {
		return false
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return true
}

// Dirs returns the validated, writable spill directories.
func (d *DiskManager) Dirs() []string {
	return append([]string(nil), d.dirs...)
}

// SpillPath builds a path for a new spill file named name under one
// of the managed directories, chosen round-robin by the low bits of
// shard to spread I/O across disks.
func (d *DiskManager) SpillPath(shard int, name string) string {
	dir := d.dirs[shard%len(d.dirs)]
	return filepath.Join(dir, name)
}

// Compressor returns the compressor spill writers should use.
func (d *DiskManager) Compressor() compr.Compressor { return d.compr }

// Decompressor returns the decompressor spill readers should use.
func (d *DiskManager) Decompressor() compr.Decompressor { return d.decomp }
