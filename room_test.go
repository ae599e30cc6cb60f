package main

import (
	"encoding/json"
	"testing"
)

// TestRoomOwnershipRules exercises §4.9: only the owner may kick or delete,
// and the owner can never be kicked.
func TestRoomOwnershipRules(t *testing.T) {
	addr := startTestServer(t)

	owner := registerAndLogin(t, addr, "jack", "pw")
	member := registerAndLogin(t, addr, "kim", "pw")

	// kim's login broadcast already landed on jack's socket; drain it.
	owner.recv(t)

	owner.send(t, "rc1", CmdRoomCreate, RoomCreatePayload{RoomID: "team"})
	owner.recv(t)
	member.send(t, "rj1", CmdRoomJoin, RoomJoinPayload{RoomID: "team"})
	member.recv(t)

	// A non-owner may not kick.
	member.send(t, "rk1", CmdRoomKick, RoomKickPayload{RoomID: "team", UserID: "jack"})
	resp := member.recv(t)
	var errPayload errorPayload
	if err := json.Unmarshal(resp.Payload, &errPayload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if errPayload.ErrorCode != "FORBIDDEN" {
		t.Fatalf("error_code = %q, want FORBIDDEN", errPayload.ErrorCode)
	}

	// The owner cannot be kicked, even by themself.
	owner.send(t, "rk2", CmdRoomKick, RoomKickPayload{RoomID: "team", UserID: "jack"})
	resp = owner.recv(t)
	if err := json.Unmarshal(resp.Payload, &errPayload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if errPayload.ErrorCode != "FORBIDDEN" {
		t.Fatalf("error_code = %q, want FORBIDDEN", errPayload.ErrorCode)
	}

	// The owner may kick a regular member.
	owner.send(t, "rk3", CmdRoomKick, RoomKickPayload{RoomID: "team", UserID: "kim"})
	ack := owner.recv(t)
	var roomAck roomAckPayload
	if err := json.Unmarshal(ack.Payload, &roomAck); err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}
	if roomAck.Status != 200 {
		t.Fatalf("status = %d, want 200", roomAck.Status)
	}

	owner.send(t, "rm1", CmdRoomMembers, RoomIDPayload{RoomID: "team"})
	members := owner.recv(t)
	if err := json.Unmarshal(members.Payload, &roomAck); err != nil {
		t.Fatalf("unmarshal members: %v", err)
	}
	if len(roomAck.Members) != 1 || roomAck.Members[0] != "jack" {
		t.Fatalf("members = %v, want [jack]", roomAck.Members)
	}

	// A non-owner may not delete the room.
	member.send(t, "rd1", CmdRoomDelete, RoomIDPayload{RoomID: "team"})
	resp = member.recv(t)
	if err := json.Unmarshal(resp.Payload, &errPayload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if errPayload.ErrorCode != "FORBIDDEN" {
		t.Fatalf("error_code = %q, want FORBIDDEN", errPayload.ErrorCode)
	}

	owner.send(t, "rd2", CmdRoomDelete, RoomIDPayload{RoomID: "team"})
	ack = owner.recv(t)
	if err := json.Unmarshal(ack.Payload, &roomAck); err != nil {
		t.Fatalf("unmarshal delete ack: %v", err)
	}
	if roomAck.Status != 200 {
		t.Fatalf("status = %d, want 200", roomAck.Status)
	}
}

// TestRoomJoinRequiresCorrectPassword exercises §4.9's encrypted-room
// password gate.
func TestRoomJoinRequiresCorrectPassword(t *testing.T) {
	addr := startTestServer(t)

	owner := registerAndLogin(t, addr, "leo", "pw")
	joiner := registerAndLogin(t, addr, "mia", "pw")

	owner.send(t, "rc1", CmdRoomCreate, RoomCreatePayload{RoomID: "vault", Encrypted: true, Password: "secret"})
	owner.recv(t)

	joiner.send(t, "rj1", CmdRoomJoin, RoomJoinPayload{RoomID: "vault", Password: "wrong"})
	resp := joiner.recv(t)
	var errPayload errorPayload
	if err := json.Unmarshal(resp.Payload, &errPayload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if errPayload.ErrorCode != "FORBIDDEN" {
		t.Fatalf("error_code = %q, want FORBIDDEN", errPayload.ErrorCode)
	}

	joiner.send(t, "rj2", CmdRoomJoin, RoomJoinPayload{RoomID: "vault", Password: "secret"})
	ack := joiner.recv(t)
	var roomAck roomAckPayload
	if err := json.Unmarshal(ack.Payload, &roomAck); err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}
	if roomAck.Status != 200 {
		t.Fatalf("status = %d, want 200", roomAck.Status)
	}
}
