package main

import (
	"context"
	"log/slog"
	"time"

	"relay/server/store"
)

type presenceListPayload struct {
	Users []string `json:"users"`
}

// handlePresenceList returns every currently online user (§4.7). Note
// (spec.md §9 Open Question, carried forward unresolved): this is not
// scoped to friends — any authenticated user can enumerate the full
// roster, by design of the current protocol.
func (h *Hub) handlePresenceList(c *Connection, env Envelope, payload any) (*Envelope, error) {
	if _, err := requireAuth(c); err != nil {
		return nil, err
	}
	users, err := h.store.ListOnlineUsers()
	if err != nil {
		return nil, errInternal(err.Error())
	}
	resp := newResponse(env.ID, CmdPresenceList, presenceListPayload{Users: users})
	return &resp, nil
}

// handlePresenceUpdate sets the requester's presence state and broadcasts
// the change (§4.7).
func (h *Hub) handlePresenceUpdate(c *Connection, env Envelope, payload any) (*Envelope, error) {
	userID, err := requireAuth(c)
	if err != nil {
		return nil, err
	}
	p := payload.(*PresenceUpdatePayload)

	if err := h.store.UpdatePresence(userID, p.State); err != nil {
		return nil, errInternal(err.Error())
	}
	h.broadcastToOnline(newEvent(CmdPresenceEvent, presenceEventPayload{
		UserID: userID,
		State:  p.State,
	}), userID)

	resp := newResponse(env.ID, CmdPresenceUpdate, map[string]any{"status": 200})
	return &resp, nil
}

// handlePresenceHeartbeat is a no-op that sends no response; last_seen is already
// refreshed generically for every frame by the server loop (§4.7, §4.13).
func (h *Hub) handlePresenceHeartbeat(c *Connection, env Envelope, payload any) (*Envelope, error) {
	return nil, nil
}

// PresenceCleaner periodically evicts idle connections (§4.7).
type PresenceCleaner struct {
	hub      *Hub
	interval time.Duration
	cutoff   time.Duration
}

func NewPresenceCleaner(h *Hub, interval, cutoff time.Duration) *PresenceCleaner {
	return &PresenceCleaner{hub: h, interval: interval, cutoff: cutoff}
}

// Run ticks until ctx is canceled, evicting connections idle past cutoff.
func (p *PresenceCleaner) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

func (p *PresenceCleaner) tick() {
	cutoff := time.Now().Add(-p.cutoff)
	evicted := p.hub.registry.CleanupIdle(cutoff)
	for userID, c := range evicted {
		c.close()
		if userID == "" {
			continue
		}
		if err := p.hub.store.UpdatePresence(userID, store.StateOffline); err != nil {
			slog.Error("presence cleaner: update presence failed", "user_id", userID, "err", err)
		}
		p.hub.broadcastToOnline(newEvent(CmdPresenceEvent, presenceEventPayload{
			UserID: userID,
			State:  store.StateOffline,
		}), userID)
	}
}
