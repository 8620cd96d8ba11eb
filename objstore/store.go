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

// Package objstore abstracts file enumeration and random-access
// reads over a local or remote backing store, so that the scan
// planner and executor never need to know whether a file lives
// on local disk or in an object store.
package objstore

import (
	"io"

	"github.com/coredb-io/colscan/scanerr"
)

// Store is the capability set a backing store must provide.
type Store interface {
	// ListAllFiles recursively walks the directory subtree rooted
	// at root, returning every file whose name ends with extension,
	// in lexicographic discovery order. If root is itself a regular
	// file whose name matches extension, the result is the
	// single-element sequence containing root.
	//
	// Unreadable entries fail with scanerr.IO. Paths that cannot be
	// represented as valid UTF-8 fail with scanerr.InvalidPath.
	ListAllFiles(root, extension string) ([]string, error)

	// GetReader returns a Reader over the object at path, or fails
	// with scanerr.IO if the object cannot be opened.
	GetReader(path string) (Reader, error)
}

// Reader is a random-access view of a single object.
type Reader interface {
	// Length returns the total byte length of the object.
	Length() (uint64, error)

	// Segment returns a stream of exactly length bytes positioned
	// at the absolute offset start within the object (seek-from-start,
	// not seek-from-current). The caller must Close the returned
	// stream. Multiple concurrently open segments over the same
	// Reader must not interfere with one another.
	Segment(start, length int64) (io.ReadCloser, error)

	// Close releases any underlying file handle. It is called by
	// the scan executor on normal completion, on consumer-side
	// cancellation, and on error.
	Close() error
}

// wrapIO tags err as a scanerr.IO error for the given operation,
// passing through nil and already-tagged errors unchanged.
func wrapIO(op string, err error) error {
	if err == nil {
		return nil
	}
	if scanerr.Is(err, scanerr.IO) || scanerr.Is(err, scanerr.InvalidPath) {
		return err
	}
	return scanerr.New(scanerr.IO, op, err)
}
