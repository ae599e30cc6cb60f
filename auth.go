package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"relay/server/store"
)

// newToken generates a fresh 128-bit session token, hex-encoded (§3, §8
// scenario 1: "<32-hex>").
func newToken() (string, error) {
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw[:]), nil
}

type authAckPayload struct {
	Status       int    `json:"status"`
	Token        string `json:"token"`
	UserID       string `json:"user_id"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type presenceEventPayload struct {
	UserID   string `json:"user_id"`
	State    string `json:"state"`
	LastSeen int64  `json:"last_seen"`
}

// handleAuthRegister creates a user but does not log them in (§4.6): no
// token is issued and presence does not change.
func (h *Hub) handleAuthRegister(c *Connection, env Envelope, payload any) (*Envelope, error) {
	p := payload.(*RegisterPayload)

	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errInternal("hash password: " + err.Error())
	}

	if _, err := h.store.CreateUser(p.Username, "", string(hash)); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, errUserExists("user already registered")
		}
		return nil, errInternal(err.Error())
	}

	resp := newResponse(env.ID, CmdAuthRegisterAck, authAckPayload{
		Status: 200,
		Token:  "",
		UserID: p.Username,
	})
	return &resp, nil
}

// handleAuthLogin verifies credentials, issues a token, binds the
// connection, flips presence online, triggers the offline drain, and
// broadcasts a presence event (§4.6).
func (h *Hub) handleAuthLogin(c *Connection, env Envelope, payload any) (*Envelope, error) {
	p := payload.(*LoginPayload)

	user, err := h.store.GetUser(p.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errUnauthorized("invalid credentials")
		}
		return nil, errInternal(err.Error())
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(p.Password)) != nil {
		return nil, errUnauthorized("invalid credentials")
	}

	token, err := newToken()
	if err != nil {
		return nil, errInternal("generate token: " + err.Error())
	}
	sess, err := h.store.UpsertSession(token, user.UserID, store.DefaultSessionTTL)
	if err != nil {
		return nil, errInternal(err.Error())
	}

	h.registry.BindUser(c, user.UserID, token)
	if err := h.store.UpdatePresence(user.UserID, store.StateOnline); err != nil {
		slog.Error("login: update presence failed", "user_id", user.UserID, "err", err)
	}

	h.offline.SignalDrain(user.UserID)
	h.broadcastToOnline(newEvent(CmdPresenceEvent, presenceEventPayload{
		UserID: user.UserID,
		State:  store.StateOnline,
	}), user.UserID)

	resp := newResponse(env.ID, CmdAuthLoginAck, authAckPayload{
		Status:    200,
		Token:     token,
		UserID:    user.UserID,
		ExpiresIn: sess.ExpiresAt - sess.CreatedAt,
	})
	return &resp, nil
}

// handleAuthLogout deletes the session, unbinds, flips presence offline,
// and broadcasts the offline event (§4.6).
func (h *Hub) handleAuthLogout(c *Connection, env Envelope, payload any) (*Envelope, error) {
	userID, err := requireAuth(c)
	if err != nil {
		return nil, err
	}
	token := c.Token()

	if err := h.store.DeleteSession(token); err != nil {
		slog.Error("logout: delete session failed", "user_id", userID, "err", err)
	}
	h.registry.UnbindUser(c)
	if err := h.store.UpdatePresence(userID, store.StateOffline); err != nil {
		slog.Error("logout: update presence failed", "user_id", userID, "err", err)
	}
	h.broadcastToOnline(newEvent(CmdPresenceEvent, presenceEventPayload{
		UserID: userID,
		State:  store.StateOffline,
	}), userID)
	return nil, nil
}

// handleAuthRefresh requires an authenticated context, issues a new token,
// deletes the old one, re-binds (keeping the user online), and re-triggers
// the offline drain (§4.6). Every exit path below completes the response —
// the original source's "refresh future not completed on all paths" bug
// (spec.md §9 Open Question) is resolved here by always returning either a
// filled *Envelope or a non-nil error, never a silent nil/nil.
func (h *Hub) handleAuthRefresh(c *Connection, env Envelope, payload any) (*Envelope, error) {
	userID, err := requireAuth(c)
	if err != nil {
		return nil, err
	}
	oldToken := c.Token()

	newTok, err := newToken()
	if err != nil {
		return nil, errInternal("generate token: " + err.Error())
	}
	sess, err := h.store.UpsertSession(newTok, userID, store.DefaultSessionTTL)
	if err != nil {
		return nil, errInternal(err.Error())
	}
	if oldToken != "" && oldToken != newTok {
		if err := h.store.DeleteSession(oldToken); err != nil {
			slog.Error("refresh: delete old session failed", "user_id", userID, "err", err)
		}
	}

	h.registry.BindUser(c, userID, newTok)
	h.offline.SignalDrain(userID)

	resp := newResponse(env.ID, CmdAuthRefreshAck, authAckPayload{
		Status:    200,
		Token:     newTok,
		UserID:    userID,
		ExpiresIn: sess.ExpiresAt - sess.CreatedAt,
	})
	return &resp, nil
}
