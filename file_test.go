package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"relay/server/store"
)

// startTestBridge boots a standalone FileBridge (no control-plane server
// needed) for testing the data-plane splice in isolation.
func startTestBridge(t *testing.T) (*FileBridge, string) {
	t.Helper()
	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	hub := &Hub{store: st, registry: NewRegistry(), metrics: NewMetrics()}
	addr := fmt.Sprintf("127.0.0.1:%d", getFreePort(t))
	bridge := NewFileBridge(hub, addr)
	hub.bridge = bridge

	go bridge.Listen(addr)
	t.Cleanup(func() { bridge.Close() })
	time.Sleep(100 * time.Millisecond)

	return bridge, fmt.Sprintf("127.0.0.1:%d", bridge.Port())
}

// TestFileBridgeSpliceByteExact exercises spec.md §8 scenario 6: bytes
// written by the sender arrive byte-for-byte at the receiver, and the
// session is marked completed once the sender closes its half.
func TestFileBridgeSpliceByteExact(t *testing.T) {
	bridge, addr := startTestBridge(t)

	fs, err := bridge.hub.store.CreateFileSession("photo.png", 5, "", "sender-1", "user", "receiver-1", store.FileStatusAccepted)
	if err != nil {
		t.Fatalf("create file session: %v", err)
	}
	bridge.Provision(fs.SessionID, "sender-1", "receiver-1")

	senderConn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial sender: %v", err)
	}
	defer senderConn.Close()
	receiverConn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial receiver: %v", err)
	}
	defer receiverConn.Close()

	senderHS, _ := json.Marshal(bridgeHandshake{SessionID: fs.SessionID, Role: "sender", UserID: "sender-1"})
	receiverHS, _ := json.Marshal(bridgeHandshake{SessionID: fs.SessionID, Role: "receiver", UserID: "receiver-1"})
	if _, err := senderConn.Write(append(senderHS, '\n')); err != nil {
		t.Fatalf("write sender handshake: %v", err)
	}
	if _, err := receiverConn.Write(append(receiverHS, '\n')); err != nil {
		t.Fatalf("write receiver handshake: %v", err)
	}

	payload := []byte("hello")
	if _, err := senderConn.Write(payload); err != nil {
		t.Fatalf("write payload: %v", err)
	}
	senderConn.(*net.TCPConn).CloseWrite()

	got := make([]byte, len(payload))
	if _, err := io.ReadFull(bufio.NewReader(receiverConn), got); err != nil {
		t.Fatalf("read payload: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		updated, err := bridge.hub.store.GetFileSession(fs.SessionID)
		if err != nil {
			t.Fatalf("get file session: %v", err)
		}
		if updated.Status == store.FileStatusCompleted {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("expected file session to reach completed status")
}

// TestFileRequestUnreachableTarget exercises §4.11's offline-target
// handling: a request to a user with no live connection is recorded as
// unreachable, no request event is pushed, and the ack reports NOT_FOUND
// with no session listed in sessions.
func TestFileRequestUnreachableTarget(t *testing.T) {
	addr := startTestServer(t)
	sender := registerAndLogin(t, addr, "sender1", "pw")

	// Register the target but never log it in, so it has no live connection.
	targetClient := dialTestServer(t, addr)
	targetClient.send(t, "r1", CmdAuthRegister, RegisterPayload{Username: "target1", Password: "pw"})
	targetClient.recv(t)
	targetClient.conn.Close()
	time.Sleep(50 * time.Millisecond)

	sender.send(t, "f1", CmdFileRequest, FileRequestPayload{
		Target:   TargetPayload{Type: "user", ID: "target1"},
		FileName: "doc.txt",
		FileSize: 10,
	})
	ack := sender.recv(t)
	var ackPayload fileAckPayload
	if err := json.Unmarshal(ack.Payload, &ackPayload); err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}
	if ackPayload.Status != 404 {
		t.Fatalf("status = %d, want 404", ackPayload.Status)
	}
	if len(ackPayload.Sessions) != 0 {
		t.Fatalf("len(sessions) = %d, want 0", len(ackPayload.Sessions))
	}
	if ackPayload.SessionID == "" {
		t.Fatal("expected session_id on the unreachable ack")
	}
}
