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

import "testing"

func TestEncodeDecodeFetchPartitionTicket(t *testing.T) {
	body := encodeAction(actionFetchPartition, Ticket{Path: "s3://bucket/key.ion"})
	kind, ticket, err := decodeAction(body)
	if err != nil {
		t.Fatalf("decodeAction: %v", err)
	}
	if kind != actionFetchPartition {
		t.Fatalf("kind = %v, want %v", kind, actionFetchPartition)
	}
	if ticket.Path != "s3://bucket/key.ion" {
		t.Fatalf("ticket.Path = %q", ticket.Path)
	}
}

func TestDecodeActionRejectsMalformedBody(t *testing.T) {
	if _, _, err := decodeAction([]byte{0x00, 0x01, 0x02}); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestDecodeActionRequiresActionField(t *testing.T) {
	body := encodeAction("", Ticket{})
	if _, _, err := decodeAction(body); err == nil {
		t.Fatalf("expected missing-action-field error")
	}
}
