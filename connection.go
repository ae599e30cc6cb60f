package main

import (
	"bufio"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// outboxSize bounds the per-connection outbound buffer. A full outbox is
// treated the same as a hard send error (§4.4) — the caller sees
// delivered=false and falls back to offline enqueueing; a slow reader on
// one connection never blocks delivery to any other.
const outboxSize = 256

// Connection is the per-connection context (§3 "Connection Context",
// §4.4). Its lifetime is the TCP connection's; it becomes authenticated
// once the Auth Service binds a user id to it.
type Connection struct {
	conn net.Conn
	peer string

	mu       sync.RWMutex
	userID   string
	token    string
	lastSeen time.Time

	outbox chan Envelope
	closed atomic.Bool

	// onDisconnect, if set, runs once when the connection's read loop
	// exits (clean EOF or error), before the registry unregisters it. Used
	// by the Voice Service to synthesize a voice/end for a dropped
	// participant (§4.12 "Disconnect handling").
	onDisconnect func(*Connection)
}

func newConnection(conn net.Conn) *Connection {
	return &Connection{
		conn:     conn,
		peer:     conn.RemoteAddr().String(),
		lastSeen: time.Now(),
		outbox:   make(chan Envelope, outboxSize),
	}
}

// UserID returns the bound user id, or "" if unauthenticated.
func (c *Connection) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

// Token returns the bound session token, or "" if unauthenticated.
func (c *Connection) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Connection) setBinding(userID, token string) {
	c.mu.Lock()
	c.userID, c.token = userID, token
	c.mu.Unlock()
}

func (c *Connection) clearBinding() {
	c.mu.Lock()
	c.userID, c.token = "", ""
	c.mu.Unlock()
}

// Touch refreshes last_seen, called on every frame received (§4.13).
func (c *Connection) Touch() {
	c.mu.Lock()
	c.lastSeen = time.Now()
	c.mu.Unlock()
}

func (c *Connection) LastSeen() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSeen
}

// enqueue posts env to the connection's outbox. Returns false without
// blocking if the outbox is full or the connection already closed — the
// caller treats that exactly like a failed network write. A close() racing
// with this call can still close the channel after the Load check passes;
// the recover guards against the resulting "send on closed channel" panic.
func (c *Connection) enqueue(env Envelope) (ok bool) {
	if c.closed.Load() {
		return false
	}
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case c.outbox <- env:
		return true
	default:
		return false
	}
}

// runWriter drains the outbox to the wire until the connection closes.
// Runs in its own goroutine so a slow reader on this connection never
// blocks senders elsewhere (§5).
func (c *Connection) runWriter(w *bufio.Writer) {
	for env := range c.outbox {
		if err := writeFrame(w, env); err != nil {
			return
		}
	}
}

func (c *Connection) close() {
	if c.closed.CompareAndSwap(false, true) {
		close(c.outbox)
		_ = c.conn.Close()
	}
}
