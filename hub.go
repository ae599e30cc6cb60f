package main

import (
	"log/slog"

	"relay/server/store"
)

// Hub wires together every service the command router dispatches into. It
// is the server-wide shared state; individual services (Auth, Presence,
// Message, Room, Friend, File, Voice) are methods grouped by concern on
// this one type, matching the teacher's Room-as-shared-state pattern
// generalized across many more concerns than voice alone.
type Hub struct {
	cfg       Config
	store     *store.Store
	registry  *Registry
	validator *Validator
	offline   *OfflineDispatcher
	voice     *VoiceService
	bridge    *FileBridge
	metrics   *Metrics
}

func NewHub(cfg Config, st *store.Store, bridgeAddr string) *Hub {
	h := &Hub{
		cfg:       cfg,
		store:     st,
		registry:  NewRegistry(),
		validator: NewValidator(),
		metrics:   NewMetrics(),
	}
	h.offline = NewOfflineDispatcher(h)
	h.voice = NewVoiceService(h)
	h.bridge = NewFileBridge(h, bridgeAddr)
	return h
}

// requireAuth fetches the connection's bound user id or raises
// UNAUTHORIZED (§4.6, §7).
func requireAuth(c *Connection) (string, error) {
	userID := c.UserID()
	if userID == "" {
		return "", errUnauthorized("authentication required")
	}
	return userID, nil
}

// deliverOrQueue sends event to userID live; if undelivered, it enqueues it
// in the offline queue (§4.8). Logs but does not fail the caller on a
// store error — message fan-out is best-effort beyond the sender's own ack.
func (h *Hub) deliverOrQueue(userID string, event Envelope) {
	if h.registry.SendToUser(userID, event) {
		return
	}
	raw, err := marshalEnvelope(event)
	if err != nil {
		slog.Error("deliverOrQueue: encode event failed", "user_id", userID, "command", event.Command, "err", err)
		return
	}
	if err := h.store.EnqueueOfflineMessage(userID, raw); err != nil {
		slog.Error("deliverOrQueue: enqueue offline failed", "user_id", userID, "command", event.Command, "err", err)
	}
}

// broadcastToOnline pushes event to every online user except excludeUserID.
func (h *Hub) broadcastToOnline(event Envelope, excludeUserID string) {
	for _, userID := range h.registry.GetAllUsers() {
		if userID == excludeUserID {
			continue
		}
		h.registry.SendToUser(userID, event)
	}
}
