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

package flight

import "encoding/binary"

// frame is a 32-bit (kind, length) pair packed into the first word
// of every message on the wire, generalized from plan.server's
// framekind/frame type: the high byte names the frame's purpose, the
// low three bytes carry its payload length.
type frame uint32

type frameKind uint32

const (
	framesize = 4
	maxframe  = (1 << 24) - 1
)

const (
	_ frameKind = iota // zero frame is invalid

	// client-to-server
	framerequest // one encoded Action, sent once at connection start
	framedata    // do_put inbound payload frame

	// server-to-client
	frameschema     // framed columnar schema, always first on a do_get reply
	framedictionary // dictionary payload (never emitted by this engine; see encode.go)
	framebatch      // record-batch payload
	frameerr        // the reply terminates with this error
	framefin        // the reply terminates cleanly
)

func mkframe(kind frameKind, size int) frame {
	if size > maxframe {
		panic("flight: frame payload exceeds maxframe")
	}
	return frame(uint32(kind)<<24 | (uint32(size) & maxframe))
}

func (f frame) kind() frameKind { return frameKind(f >> 24) }
func (f frame) length() int     { return int(f & maxframe) }

func (f frame) put(dst []byte) {
	binary.LittleEndian.PutUint32(dst, uint32(f))
}

func getframe(src []byte) frame {
	return frame(binary.LittleEndian.Uint32(src))
}
