package main

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"relay/server/store"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return NewHub(Config{}, st, "127.0.0.1:0")
}

func TestAdminHealthz(t *testing.T) {
	hub := newTestHub(t)
	admin := NewAdminServer(hub)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	admin.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body healthzResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.DB != "ok" {
		t.Fatalf("db = %q, want ok", body.DB)
	}
}

func TestAdminMetricsz(t *testing.T) {
	hub := newTestHub(t)
	hub.metrics.ConnectionOpened()
	admin := NewAdminServer(hub)

	req := httptest.NewRequest(http.MethodGet, "/metricsz", nil)
	rec := httptest.NewRecorder()
	admin.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var snap Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if snap.ConnectionsTotal != 1 {
		t.Fatalf("connections_total = %d, want 1", snap.ConnectionsTotal)
	}
}

func TestAdminSessions(t *testing.T) {
	hub := newTestHub(t)
	server, client := net.Pipe()
	t.Cleanup(func() { client.Close() })
	c := newConnection(server)
	go func() {
		for range c.outbox {
		}
	}()
	hub.registry.Register(c)
	hub.registry.BindUser(c, "noor", "tok")

	admin := NewAdminServer(hub)
	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	rec := httptest.NewRecorder()
	admin.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var views []sessionView
	if err := json.Unmarshal(rec.Body.Bytes(), &views); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(views) != 1 || views[0].UserID != "noor" {
		t.Fatalf("views = %+v, want one entry for noor", views)
	}
}
