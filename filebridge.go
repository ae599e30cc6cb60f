package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
)

const bridgeBlockSize = 64 * 1024

// bridgeHandshake is the single-line JSON greeting each data-plane socket
// sends before the bridge pairs it with its counterpart (§4.11).
type bridgeHandshake struct {
	SessionID string `json:"session_id"`
	Role      string `json:"role"`
	UserID    string `json:"user_id"`
}

// bridgeSlot holds the two identities a session is allowed to pair and
// whichever half has already connected.
type bridgeSlot struct {
	senderID   string
	receiverID string
	sender     net.Conn
	receiver   net.Conn
}

// FileBridge is the data-plane TCP listener for file transfers: a pure byte
// splice between a sender socket and a receiver socket, keyed by file
// session id (§4.11).
type FileBridge struct {
	hub      *Hub
	host     string
	port     int
	listener net.Listener

	mu    sync.Mutex
	slots map[string]*bridgeSlot
}

// NewFileBridge constructs a bridge bound to addr ("host:port"); Listen
// must be called to actually start accepting.
func NewFileBridge(h *Hub, addr string) *FileBridge {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		host, portStr = addr, "0"
	}
	port, _ := strconv.Atoi(portStr)
	return &FileBridge{hub: h, host: host, port: port, slots: make(map[string]*bridgeSlot)}
}

// Provision registers the identities allowed to claim a session's two
// halves. Called once the session target has accepted (§4.11).
func (b *FileBridge) Provision(sessionID, senderID, receiverID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.slots[sessionID] = &bridgeSlot{senderID: senderID, receiverID: receiverID}
}

func (b *FileBridge) Host() string { return b.host }
func (b *FileBridge) Port() int    { return b.port }

// Listen opens the data-plane socket and accepts connections until the
// listener is closed.
func (b *FileBridge) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("file bridge listen: %w", err)
	}
	b.listener = ln
	if _, portStr, err := net.SplitHostPort(ln.Addr().String()); err == nil {
		if port, err := strconv.Atoi(portStr); err == nil {
			b.port = port
		}
	}
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go b.handleConn(conn)
	}
}

// Close stops accepting new data-plane connections.
func (b *FileBridge) Close() error {
	if b.listener == nil {
		return nil
	}
	return b.listener.Close()
}

func (b *FileBridge) handleConn(conn net.Conn) {
	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil {
		conn.Close()
		return
	}
	var hs bridgeHandshake
	if err := json.Unmarshal([]byte(strings.TrimSpace(line)), &hs); err != nil {
		conn.Close()
		return
	}

	b.mu.Lock()
	slot, ok := b.slots[hs.SessionID]
	if !ok {
		b.mu.Unlock()
		conn.Close()
		return
	}
	var ready bool
	switch hs.Role {
	case "sender":
		if hs.UserID != slot.senderID || slot.sender != nil {
			b.mu.Unlock()
			conn.Close()
			return
		}
		slot.sender = conn
	case "receiver":
		if hs.UserID != slot.receiverID || slot.receiver != nil {
			b.mu.Unlock()
			conn.Close()
			return
		}
		slot.receiver = conn
	default:
		b.mu.Unlock()
		conn.Close()
		return
	}
	ready = slot.sender != nil && slot.receiver != nil
	b.mu.Unlock()

	if ready {
		go b.splice(hs.SessionID, slot)
	}
}

// splice copies sender -> receiver in fixed blocks until EOF, then reports
// completion or failure and tears the slot down (§4.11).
func (b *FileBridge) splice(sessionID string, slot *bridgeSlot) {
	b.hub.metrics.BridgeOpened()
	defer func() {
		b.mu.Lock()
		delete(b.slots, sessionID)
		b.mu.Unlock()
		slot.sender.Close()
		slot.receiver.Close()
		b.hub.metrics.BridgeClosed()
	}()

	buf := make([]byte, bridgeBlockSize)
	_, err := io.CopyBuffer(slot.receiver, slot.sender, buf)

	fs, lookupErr := b.hub.store.GetFileSession(sessionID)
	if lookupErr != nil {
		slog.Error("file bridge: session vanished at splice completion", "session_id", sessionID, "err", lookupErr)
		return
	}

	if err != nil {
		slog.Warn("file bridge: splice failed", "session_id", sessionID, "err", err)
		if updErr := b.hub.store.UpdateFileSessionStatus(sessionID, "error"); updErr != nil {
			slog.Error("file bridge: mark error failed", "session_id", sessionID, "err", updErr)
		}
		payload := fileStatusEventPayload{SessionID: sessionID, EventType: "error", ErrorMessage: err.Error()}
		b.hub.deliverOrQueue(fs.SenderID, newEvent(CmdFileError, payload))
		b.hub.deliverOrQueue(fs.TargetID, newEvent(CmdFileError, payload))
		return
	}

	if updErr := b.hub.store.UpdateFileSessionStatus(sessionID, "completed"); updErr != nil {
		slog.Error("file bridge: mark completed failed", "session_id", sessionID, "err", updErr)
	}
	payload := fileStatusEventPayload{SessionID: sessionID, EventType: "completed"}
	b.hub.deliverOrQueue(fs.SenderID, newEvent(CmdFileComplete, payload))
	b.hub.deliverOrQueue(fs.TargetID, newEvent(CmdFileComplete, payload))
}
