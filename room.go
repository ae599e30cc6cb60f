package main

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"relay/server/store"
)

type roomAckPayload struct {
	Status       int      `json:"status"`
	RoomID       string   `json:"room_id,omitempty"`
	Owner        string   `json:"owner,omitempty"`
	Encrypted    bool     `json:"encrypted,omitempty"`
	Members      []string `json:"members,omitempty"`
	Rooms        []string `json:"rooms,omitempty"`
	ErrorMessage string   `json:"error_message,omitempty"`
}

func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// handleRoomCreate creates a room; encrypted rooms require a password,
// stored only as a hash. The creator becomes owner and first member in one
// transaction (§4.9).
func (h *Hub) handleRoomCreate(c *Connection, env Envelope, payload any) (*Envelope, error) {
	userID, err := requireAuth(c)
	if err != nil {
		return nil, err
	}
	p := payload.(*RoomCreatePayload)

	if p.Encrypted && p.Password == "" {
		return nil, errBadRequest("encrypted room requires a password")
	}
	passwordHash := ""
	if p.Encrypted {
		passwordHash = hashPassword(p.Password)
	}

	room, err := h.store.CreateRoom(p.RoomID, userID, p.Encrypted, passwordHash, "")
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, errConflict("room already exists")
		}
		return nil, errInternal(err.Error())
	}

	resp := newResponse(env.ID, CmdRoomCreate, roomAckPayload{
		Status: 200, RoomID: room.RoomID, Owner: room.Owner, Encrypted: room.Encrypted,
	})
	return &resp, nil
}

// handleRoomJoin adds the requester as a member, checking the password
// hash for encrypted rooms. Idempotent (§4.9).
func (h *Hub) handleRoomJoin(c *Connection, env Envelope, payload any) (*Envelope, error) {
	userID, err := requireAuth(c)
	if err != nil {
		return nil, err
	}
	p := payload.(*RoomJoinPayload)

	room, err := h.store.GetRoom(p.RoomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errNotFound("room not found")
		}
		return nil, errInternal(err.Error())
	}
	if room.Encrypted && hashPassword(p.Password) != room.PasswordHash {
		return nil, errForbidden("invalid room password")
	}
	if err := h.store.AddMember(p.RoomID, userID); err != nil {
		return nil, errInternal(err.Error())
	}

	resp := newResponse(env.ID, CmdRoomJoin, roomAckPayload{Status: 200, RoomID: p.RoomID})
	return &resp, nil
}

// handleRoomLeave removes the requester from a room; ownership is
// unaffected (§4.9).
func (h *Hub) handleRoomLeave(c *Connection, env Envelope, payload any) (*Envelope, error) {
	userID, err := requireAuth(c)
	if err != nil {
		return nil, err
	}
	p := payload.(*RoomIDPayload)

	if err := h.store.RemoveMember(p.RoomID, userID); err != nil {
		return nil, errInternal(err.Error())
	}
	resp := newResponse(env.ID, CmdRoomLeave, roomAckPayload{Status: 200, RoomID: p.RoomID})
	return &resp, nil
}

// handleRoomList returns the requester's rooms (§4.9).
func (h *Hub) handleRoomList(c *Connection, env Envelope, payload any) (*Envelope, error) {
	userID, err := requireAuth(c)
	if err != nil {
		return nil, err
	}
	rooms, err := h.store.ListRoomsForUser(userID)
	if err != nil {
		return nil, errInternal(err.Error())
	}
	resp := newResponse(env.ID, CmdRoomList, roomAckPayload{Status: 200, Rooms: rooms})
	return &resp, nil
}

// handleRoomMembers returns a room's membership (§4.9).
func (h *Hub) handleRoomMembers(c *Connection, env Envelope, payload any) (*Envelope, error) {
	if _, err := requireAuth(c); err != nil {
		return nil, err
	}
	p := payload.(*RoomIDPayload)

	members, err := h.store.ListRoomMembers(p.RoomID)
	if err != nil {
		return nil, errInternal(err.Error())
	}
	resp := newResponse(env.ID, CmdRoomMembers, roomAckPayload{Status: 200, RoomID: p.RoomID, Members: members})
	return &resp, nil
}

// handleRoomInfo returns room metadata (§4.9).
func (h *Hub) handleRoomInfo(c *Connection, env Envelope, payload any) (*Envelope, error) {
	if _, err := requireAuth(c); err != nil {
		return nil, err
	}
	p := payload.(*RoomIDPayload)

	room, err := h.store.GetRoom(p.RoomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errNotFound("room not found")
		}
		return nil, errInternal(err.Error())
	}
	resp := newResponse(env.ID, CmdRoomInfo, roomAckPayload{
		Status: 200, RoomID: room.RoomID, Owner: room.Owner, Encrypted: room.Encrypted,
	})
	return &resp, nil
}

// handleRoomKick removes a member; only the owner may do this, and the
// owner cannot be kicked (it is simply not a supported operation — the
// owner is never the target per the protocol's own kick-self check) (§4.9).
func (h *Hub) handleRoomKick(c *Connection, env Envelope, payload any) (*Envelope, error) {
	userID, err := requireAuth(c)
	if err != nil {
		return nil, err
	}
	p := payload.(*RoomKickPayload)

	room, err := h.store.GetRoom(p.RoomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errNotFound("room not found")
		}
		return nil, errInternal(err.Error())
	}
	if room.Owner != userID {
		return nil, errForbidden("only the room owner may kick")
	}
	if p.UserID == room.Owner {
		return nil, errForbidden("cannot kick the room owner")
	}
	if err := h.store.RemoveMember(p.RoomID, p.UserID); err != nil {
		return nil, errInternal(err.Error())
	}
	resp := newResponse(env.ID, CmdRoomKick, roomAckPayload{Status: 200, RoomID: p.RoomID})
	return &resp, nil
}

// handleRoomDelete removes a room and cascades membership; only the owner
// may do this (§4.9).
func (h *Hub) handleRoomDelete(c *Connection, env Envelope, payload any) (*Envelope, error) {
	userID, err := requireAuth(c)
	if err != nil {
		return nil, err
	}
	p := payload.(*RoomIDPayload)

	room, err := h.store.GetRoom(p.RoomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errNotFound("room not found")
		}
		return nil, errInternal(err.Error())
	}
	if room.Owner != userID {
		return nil, errForbidden("only the room owner may delete")
	}
	if err := h.store.DeleteRoom(p.RoomID); err != nil {
		return nil, errInternal(err.Error())
	}
	resp := newResponse(env.ID, CmdRoomDelete, roomAckPayload{Status: 200, RoomID: p.RoomID})
	return &resp, nil
}
