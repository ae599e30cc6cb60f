package main

import (
	"context"
	"log/slog"
)

// offlineDrainQueueSize bounds how many pending drain signals can be
// buffered; once it is full SignalDrain drops every new signal, whichever
// user it is for.
const offlineDrainQueueSize = 256

// OfflineDispatcher owns the background drain loop that redelivers a
// user's queued offline messages once they reconnect (§4.3, §4.8, §5's
// shared-resource policy: Auth Service signals drains, this worker
// performs them).
type OfflineDispatcher struct {
	hub     *Hub
	signals chan string
}

func NewOfflineDispatcher(h *Hub) *OfflineDispatcher {
	return &OfflineDispatcher{hub: h, signals: make(chan string, offlineDrainQueueSize)}
}

// SignalDrain requests a drain for userID. Non-blocking: if the signal
// channel is full the request is dropped, since the next login/refresh for
// the same user will signal again.
func (d *OfflineDispatcher) SignalDrain(userID string) {
	select {
	case d.signals <- userID:
	default:
		slog.Warn("offline dispatcher: signal queue full, dropping drain request", "user_id", userID)
	}
}

// Run processes drain signals until ctx is canceled.
func (d *OfflineDispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case userID := <-d.signals:
			d.drain(userID)
		}
	}
}

// drain consumes every queued event for userID and attempts live delivery.
// An event that fails to redeliver (the user disconnected again mid-drain)
// is re-enqueued rather than lost (§4.8).
func (d *OfflineDispatcher) drain(userID string) {
	entries, err := d.hub.store.ConsumeOfflineMessages(userID)
	if err != nil {
		slog.Error("offline dispatcher: consume failed", "user_id", userID, "err", err)
		return
	}
	for _, entry := range entries {
		env, err := unmarshalEnvelope(entry.Event)
		if err != nil {
			slog.Error("offline dispatcher: malformed queued event", "user_id", userID, "id", entry.ID, "err", err)
			continue
		}
		if d.hub.registry.SendToUser(userID, env) {
			continue
		}
		if err := d.hub.store.EnqueueOfflineMessage(userID, entry.Event); err != nil {
			slog.Error("offline dispatcher: re-enqueue failed", "user_id", userID, "id", entry.ID, "err", err)
		}
	}
}
