package main

import (
	"encoding/json"
	"testing"
)

// TestFriendRequestAcceptListDelete exercises the full friend lifecycle
// (§4.10): request, acceptance notification, list visibility, and removal.
func TestFriendRequestAcceptListDelete(t *testing.T) {
	addr := startTestServer(t)

	eve := registerAndLogin(t, addr, "eve", "pw")
	frank := registerAndLogin(t, addr, "frank", "pw")

	// frank's login broadcast already landed on eve's socket; drain it.
	eve.recv(t)

	eve.send(t, "fr1", CmdFriendRequest, FriendRequestPayload{TargetID: "frank", Message: "hi"})
	ack := eve.recv(t)
	var reqAck friendAckPayload
	if err := json.Unmarshal(ack.Payload, &reqAck); err != nil {
		t.Fatalf("unmarshal request ack: %v", err)
	}
	if reqAck.RequestID == 0 {
		t.Fatal("expected a non-zero request id")
	}

	event := frank.recv(t)
	if event.Command != CmdFriendEvent {
		t.Fatalf("command = %q, want %q", event.Command, CmdFriendEvent)
	}
	var evPayload friendEventPayload
	if err := json.Unmarshal(event.Payload, &evPayload); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if evPayload.EventType != "new_request" {
		t.Fatalf("event_type = %q, want new_request", evPayload.EventType)
	}

	frank.send(t, "fa1", CmdFriendAccept, FriendRequestIDPayload{RequestID: reqAck.RequestID})
	frank.recv(t) // accept ack

	accepted := eve.recv(t)
	var acceptedPayload friendEventPayload
	if err := json.Unmarshal(accepted.Payload, &acceptedPayload); err != nil {
		t.Fatalf("unmarshal accepted event: %v", err)
	}
	if acceptedPayload.EventType != "request_accepted" {
		t.Fatalf("event_type = %q, want request_accepted", acceptedPayload.EventType)
	}

	eve.send(t, "fl1", CmdFriendList, nil)
	list := eve.recv(t)
	var listPayload friendAckPayload
	if err := json.Unmarshal(list.Payload, &listPayload); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(listPayload.Friends) != 1 || listPayload.Friends[0] != "frank" {
		t.Fatalf("friends = %v, want [frank]", listPayload.Friends)
	}

	eve.send(t, "fd1", CmdFriendDelete, FriendDeletePayload{FriendID: "frank"})
	eve.recv(t) // delete ack
	frank.recv(t) // friend_deleted event
}

// TestFriendRequestRejectsSelfTarget confirms §4.10's self-request guard.
func TestFriendRequestRejectsSelfTarget(t *testing.T) {
	addr := startTestServer(t)
	gail := registerAndLogin(t, addr, "gail", "pw")

	gail.send(t, "fr1", CmdFriendRequest, FriendRequestPayload{TargetID: "gail"})
	resp := gail.recv(t)
	var errPayload errorPayload
	if err := json.Unmarshal(resp.Payload, &errPayload); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if errPayload.ErrorCode != "BAD_REQUEST" {
		t.Fatalf("error_code = %q, want BAD_REQUEST", errPayload.ErrorCode)
	}
}
