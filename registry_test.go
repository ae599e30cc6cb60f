package main

import (
	"net"
	"testing"
	"time"
)

func pipeConnection(t *testing.T) *Connection {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() { client.Close() })
	c := newConnection(server)
	// Drain the outbox so enqueue never blocks on an unread net.Pipe.
	go func() {
		for range c.outbox {
		}
	}()
	return c
}

func TestRegistryBindUnbind(t *testing.T) {
	r := NewRegistry()
	c := pipeConnection(t)
	r.Register(c)

	r.BindUser(c, "alice", "tok-1")
	if !r.Connected("alice") {
		t.Fatal("expected alice to be connected after bind")
	}
	if got := c.UserID(); got != "alice" {
		t.Fatalf("UserID() = %q, want alice", got)
	}

	r.UnbindUser(c)
	if r.Connected("alice") {
		t.Fatal("expected alice to be disconnected after unbind")
	}
	if got := c.UserID(); got != "" {
		t.Fatalf("UserID() = %q, want empty after unbind", got)
	}
}

func TestRegistryLastLoginWins(t *testing.T) {
	r := NewRegistry()
	first := pipeConnection(t)
	second := pipeConnection(t)
	r.Register(first)
	r.Register(second)

	r.BindUser(first, "bob", "tok-a")
	r.BindUser(second, "bob", "tok-b")

	if first.UserID() != "" {
		t.Fatal("expected displaced connection to lose its binding")
	}
	if second.UserID() != "bob" {
		t.Fatal("expected newest connection to hold the binding")
	}

	// The displaced connection's unregister must not clear the new binding.
	r.Unregister(first)
	if !r.Connected("bob") {
		t.Fatal("expected bob to remain connected after the displaced connection unregisters")
	}
}

func TestRegistrySendToUserRequiresBinding(t *testing.T) {
	r := NewRegistry()
	c := pipeConnection(t)
	r.Register(c)

	env := Envelope{ID: "e1", Type: TypeEvent, Command: CmdPresenceEvent}
	if r.SendToUser("nobody", env) {
		t.Fatal("expected SendToUser to fail for an unbound user")
	}

	r.BindUser(c, "carol", "tok")
	if !r.SendToUser("carol", env) {
		t.Fatal("expected SendToUser to succeed once bound")
	}
}

func TestRegistryCleanupIdle(t *testing.T) {
	r := NewRegistry()
	c := pipeConnection(t)
	r.Register(c)
	r.BindUser(c, "dave", "tok")

	c.mu.Lock()
	c.lastSeen = time.Now().Add(-time.Hour)
	c.mu.Unlock()

	evicted := r.CleanupIdle(time.Now().Add(-time.Minute))
	if _, ok := evicted["dave"]; !ok {
		t.Fatal("expected dave to be evicted as idle")
	}
	if r.Connected("dave") {
		t.Fatal("expected dave to be unbound after cleanup")
	}
}
