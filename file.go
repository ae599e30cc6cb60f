package main

import (
	"errors"

	"relay/server/store"
)

type fileSessionView struct {
	SessionID string `json:"session_id"`
	TargetID  string `json:"target_id"`
}

type fileAckPayload struct {
	Status       int               `json:"status"`
	Sessions     []fileSessionView `json:"sessions,omitempty"`
	SessionID    string            `json:"session_id,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
}

type fileRequestEventPayload struct {
	SessionID string `json:"session_id"`
	SenderID  string `json:"sender_id"`
	FileName  string `json:"file_name"`
	FileSize  int64  `json:"file_size"`
	Checksum  string `json:"checksum,omitempty"`
}

type fileAcceptEventPayload struct {
	SessionID   string `json:"session_id"`
	FileName    string `json:"file_name"`
	FileSize    int64  `json:"file_size"`
	ChannelHost string `json:"channel_host"`
	ChannelPort int    `json:"channel_port"`
}

type fileStatusEventPayload struct {
	SessionID    string `json:"session_id"`
	EventType    string `json:"event_type"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// handleFileRequest creates one file session per target (a single session
// for a user target, one per room member excluding the sender for a room
// target), marking offline targets unreachable, and pushes a request event
// to every reachable target (§4.11).
func (h *Hub) handleFileRequest(c *Connection, env Envelope, payload any) (*Envelope, error) {
	senderID, err := requireAuth(c)
	if err != nil {
		return nil, err
	}
	p := payload.(*FileRequestPayload)

	var targets []string
	switch p.Target.Type {
	case "user":
		targets = []string{p.Target.ID}
	case "room":
		if _, err := h.store.GetRoom(p.Target.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, errNotFound("room not found")
			}
			return nil, errInternal(err.Error())
		}
		members, err := h.store.ListRoomMembers(p.Target.ID)
		if err != nil {
			return nil, errInternal(err.Error())
		}
		for _, m := range members {
			if m != senderID {
				targets = append(targets, m)
			}
		}
	default:
		return nil, errBadRequest("unknown target type")
	}

	views := make([]fileSessionView, 0, len(targets))
	var unreachableSingle *store.FileSession
	for _, target := range targets {
		status := store.FileStatusPending
		if !h.registry.Connected(target) {
			status = store.FileStatusUnreachable
		}
		fs, err := h.store.CreateFileSession(p.FileName, p.FileSize, p.Checksum, senderID, p.Target.Type, target, status)
		if err != nil {
			return nil, errInternal(err.Error())
		}
		if status == store.FileStatusUnreachable {
			if p.Target.Type == "user" {
				unreachableSingle = &fs
			}
			continue
		}
		views = append(views, fileSessionView{SessionID: fs.SessionID, TargetID: target})
		h.deliverOrQueue(target, newEvent(CmdFileRequest, fileRequestEventPayload{
			SessionID: fs.SessionID,
			SenderID:  senderID,
			FileName:  fs.FileName,
			FileSize:  fs.FileSize,
			Checksum:  fs.Checksum,
		}))
	}

	if p.Target.Type == "user" && unreachableSingle != nil {
		ack := fileAckPayload{Status: 404, SessionID: unreachableSingle.SessionID, ErrorMessage: "Target user offline"}
		resp := newResponse(env.ID, CmdFileRequestAck, ack)
		return &resp, nil
	}
	if len(views) == 0 {
		ack := fileAckPayload{Status: 404, ErrorMessage: "No recipients available"}
		resp := newResponse(env.ID, CmdFileRequestAck, ack)
		return &resp, nil
	}

	ack := fileAckPayload{Status: 200, Sessions: views}
	if len(views) == 1 {
		ack.SessionID = views[0].SessionID
	}
	resp := newResponse(env.ID, CmdFileRequestAck, ack)
	return &resp, nil
}

// handleFileAccept marks the session accepted, provisions a bridge slot,
// and notifies both ends with the data-plane channel address (§4.11). Only
// the session's target may accept.
func (h *Hub) handleFileAccept(c *Connection, env Envelope, payload any) (*Envelope, error) {
	userID, err := requireAuth(c)
	if err != nil {
		return nil, err
	}
	p := payload.(*FileSessionIDPayload)

	fs, err := h.store.GetFileSession(p.SessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errNotFound("file session not found")
		}
		return nil, errInternal(err.Error())
	}
	if fs.TargetType == "user" && fs.TargetID != userID {
		return nil, errForbidden("only the session target may accept")
	}
	if fs.TargetType == "room" && fs.TargetID != userID {
		return nil, errForbidden("only the session target may accept")
	}

	if err := h.store.UpdateFileSessionStatus(p.SessionID, store.FileStatusAccepted); err != nil {
		return nil, errInternal(err.Error())
	}
	h.bridge.Provision(fs.SessionID, fs.SenderID, userID)

	event := newEvent(CmdFileAccept, fileAcceptEventPayload{
		SessionID:   fs.SessionID,
		FileName:    fs.FileName,
		FileSize:    fs.FileSize,
		ChannelHost: h.bridge.Host(),
		ChannelPort: h.bridge.Port(),
	})
	h.deliverOrQueue(fs.SenderID, event)

	resp := newResponse(env.ID, CmdFileAcceptAck, fileAcceptEventPayload{
		SessionID:   fs.SessionID,
		FileName:    fs.FileName,
		FileSize:    fs.FileSize,
		ChannelHost: h.bridge.Host(),
		ChannelPort: h.bridge.Port(),
	})
	return &resp, nil
}

// handleFileReject marks the session rejected and notifies the sender
// (§4.11). Only the session's target may reject.
func (h *Hub) handleFileReject(c *Connection, env Envelope, payload any) (*Envelope, error) {
	userID, err := requireAuth(c)
	if err != nil {
		return nil, err
	}
	p := payload.(*FileSessionIDPayload)

	fs, err := h.store.GetFileSession(p.SessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errNotFound("file session not found")
		}
		return nil, errInternal(err.Error())
	}
	if fs.TargetID != userID {
		return nil, errForbidden("only the session target may reject")
	}
	if err := h.store.UpdateFileSessionStatus(p.SessionID, store.FileStatusRejected); err != nil {
		return nil, errInternal(err.Error())
	}
	h.deliverOrQueue(fs.SenderID, newEvent(CmdFileReject, fileStatusEventPayload{
		SessionID: fs.SessionID,
		EventType: "rejected",
	}))

	resp := newResponse(env.ID, CmdFileRejectAck, fileAckPayload{Status: 200, SessionID: fs.SessionID})
	return &resp, nil
}

// handleFileComplete marks the session completed and notifies the
// counterpart; either end may report completion (§4.11).
func (h *Hub) handleFileComplete(c *Connection, env Envelope, payload any) (*Envelope, error) {
	userID, err := requireAuth(c)
	if err != nil {
		return nil, err
	}
	p := payload.(*FileSessionIDPayload)

	fs, err := h.store.GetFileSession(p.SessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errNotFound("file session not found")
		}
		return nil, errInternal(err.Error())
	}
	if err := h.store.UpdateFileSessionStatus(p.SessionID, store.FileStatusCompleted); err != nil {
		return nil, errInternal(err.Error())
	}
	h.notifyFileCounterpart(fs, userID, CmdFileComplete, fileStatusEventPayload{SessionID: fs.SessionID, EventType: "completed"})

	return nil, nil
}

// handleFileError marks the session errored and notifies the counterpart;
// either end may report a failure (§4.11).
func (h *Hub) handleFileError(c *Connection, env Envelope, payload any) (*Envelope, error) {
	userID, err := requireAuth(c)
	if err != nil {
		return nil, err
	}
	p := payload.(*FileErrorPayload)

	fs, err := h.store.GetFileSession(p.SessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errNotFound("file session not found")
		}
		return nil, errInternal(err.Error())
	}
	if err := h.store.UpdateFileSessionStatus(p.SessionID, store.FileStatusError); err != nil {
		return nil, errInternal(err.Error())
	}
	h.notifyFileCounterpart(fs, userID, CmdFileError, fileStatusEventPayload{
		SessionID:    fs.SessionID,
		EventType:    "error",
		ErrorMessage: p.ErrorMessage,
	})

	return nil, nil
}

func (h *Hub) notifyFileCounterpart(fs store.FileSession, reportingUser, command string, payload fileStatusEventPayload) {
	other := fs.TargetID
	if reportingUser == fs.TargetID {
		other = fs.SenderID
	}
	h.deliverOrQueue(other, newEvent(command, payload))
}
