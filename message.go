package main

import (
	"errors"

	"relay/server/store"
)

type messageAckPayload struct {
	Status    int    `json:"status"`
	MessageID string `json:"message_id"`
}

type messageEventPayload struct {
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	Content        any    `json:"content"`
	MessageID      string `json:"message_id"`
}

// handleMessageSend persists the message, fans it out to the target(s) —
// live delivery where possible, offline enqueue otherwise — preserving
// per-(sender,recipient) FIFO order, then returns the sender's ack (§4.8).
func (h *Hub) handleMessageSend(c *Connection, env Envelope, payload any) (*Envelope, error) {
	senderID, err := requireAuth(c)
	if err != nil {
		return nil, err
	}
	p := payload.(*MessageSendPayload)

	msg, err := h.store.InsertMessage(p.ConversationID, senderID, string(p.Content))
	if err != nil {
		return nil, errInternal(err.Error())
	}

	var recipients []string
	switch p.Target.Type {
	case "user":
		recipients = []string{p.Target.ID}
	case "room":
		if _, err := h.store.GetRoom(p.Target.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, errNotFound("room not found")
			}
			return nil, errInternal(err.Error())
		}
		isMember, err := h.store.IsMember(p.Target.ID, senderID)
		if err != nil {
			return nil, errInternal(err.Error())
		}
		if !isMember {
			return nil, errForbidden("sender is not a room member")
		}
		members, err := h.store.ListRoomMembers(p.Target.ID)
		if err != nil {
			return nil, errInternal(err.Error())
		}
		for _, m := range members {
			if m != senderID {
				recipients = append(recipients, m)
			}
		}
	default:
		return nil, errBadRequest("unknown target type")
	}

	event := newEvent(CmdMessageEvent, messageEventPayload{
		ConversationID: p.ConversationID,
		SenderID:       senderID,
		Content:        p.Content,
		MessageID:      msg.MessageID,
	})
	for _, recipient := range recipients {
		h.deliverOrQueue(recipient, event)
	}

	resp := newResponse(env.ID, CmdMessageAck, messageAckPayload{Status: 200, MessageID: msg.MessageID})
	return &resp, nil
}
