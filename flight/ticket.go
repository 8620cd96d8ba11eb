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

import (
	"fmt"

	"github.com/coredb-io/colscan/ion"
	"github.com/coredb-io/colscan/scanerr"
)

// actionKind names the three flight methods a client can invoke,
// carried as the "action" field of the request Action struct.
type actionKind string

const (
	actionFetchPartition actionKind = "FetchPartition"
	actionDoPut          actionKind = "DoPut"
	actionDoAction       actionKind = "DoAction"
)

// Ticket is the decoded form of a FetchPartition request: "an opaque
// ticket that decodes to { path, ... }" (spec.md section 4.7). Only
// path is interpreted; unrecognized fields are ignored, matching the
// corpus's general UnpackStruct convention of tolerating unknown
// fields for forward compatibility.
type Ticket struct {
	Path string
}

// encodeAction writes the request envelope the Serve loop reads from
// a new connection: the action kind, and for FetchPartition, the
// ticket path. This is the length-prefixed ion-encoded struct
// convention spec.md section 4.7 and SPEC_FULL.md section 4.7
// describe ("reuses the corpus's length-prefixed ion-encoded struct
// convention"), using a fresh Symtab per message the way plan.server
// resets its symbol table between independent encodes.
func encodeAction(kind actionKind, ticket Ticket) []byte {
	var st ion.Symtab
	action := st.Intern("action")
	path := st.Intern("path")

	var body ion.Buffer
	body.BeginStruct(-1)
	body.BeginField(action)
	body.WriteString(string(kind))
	if kind == actionFetchPartition {
		body.BeginField(path)
		body.WriteString(ticket.Path)
	}
	body.EndStruct()

	var framed ion.Buffer
	st.Marshal(&framed, true)
	framed.UnsafeAppend(body.Bytes())
	return framed.Bytes()
}

// decodeAction reads the action kind and, for FetchPartition, the
// ticket path, from an ion-encoded struct produced by encodeAction.
// A decode failure is always surfaced as scanerr.Internal, matching
// spec.md section 4.7 step 1: "a decode failure returns Internal
// with the decode error text."
func decodeAction(body []byte) (actionKind, Ticket, error) {
	var st ion.Symtab
	rest, err := st.Unmarshal(body)
	if err != nil {
		return "", Ticket{}, scanerr.New(scanerr.Internal, "flight.decodeAction", err)
	}
	var kind actionKind
	var ticket Ticket
	_, err = ion.UnpackStruct(&st, rest, func(name string, field []byte) error {
		switch name {
		case "action":
			v, _, err := ion.ReadString(field)
			if err != nil {
				return err
			}
			kind = actionKind(v)
		case "path":
			v, _, err := ion.ReadString(field)
			if err != nil {
				return err
			}
			ticket.Path = v
		}
		return nil
	})
	if err != nil {
		return "", Ticket{}, scanerr.New(scanerr.Internal, "flight.decodeAction", err)
	}
	if kind == "" {
		return "", Ticket{}, scanerr.Newf(scanerr.Internal, "flight.decodeAction", "missing action field")
	}
	return kind, ticket, nil
}

func (k actionKind) String() string {
	return fmt.Sprintf("Action(%s)", string(k))
}
