package main

import (
	"errors"

	"relay/server/store"
)

type friendAckPayload struct {
	Status        int      `json:"status"`
	RequestID     int64    `json:"request_id,omitempty"`
	Friends       []string `json:"friends,omitempty"`
	Pending       []friendRequestView `json:"pending_requests,omitempty"`
	Sent          []friendRequestView `json:"sent_requests,omitempty"`
}

type friendRequestView struct {
	ID       int64  `json:"id"`
	FromUser string `json:"from_user"`
	ToUser   string `json:"to_user"`
	Message  string `json:"message"`
}

type friendEventPayload struct {
	EventType string `json:"event_type"`
	FromUser  string `json:"from_user,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	RequestID int64  `json:"request_id,omitempty"`
	Message   string `json:"message,omitempty"`
}

// handleFriendRequest rejects self-targeting, a non-existent target, or an
// existing friendship, then creates/re-opens a request and notifies the
// target (§4.10).
func (h *Hub) handleFriendRequest(c *Connection, env Envelope, payload any) (*Envelope, error) {
	userID, err := requireAuth(c)
	if err != nil {
		return nil, err
	}
	p := payload.(*FriendRequestPayload)

	if p.TargetID == userID {
		return nil, errBadRequest("cannot friend-request yourself")
	}
	if _, err := h.store.GetUser(p.TargetID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errNotFound("target user not found")
		}
		return nil, errInternal(err.Error())
	}
	areFriends, err := h.store.AreFriends(userID, p.TargetID)
	if err != nil {
		return nil, errInternal(err.Error())
	}
	if areFriends {
		return nil, errConflict("already friends")
	}

	req, err := h.store.SendFriendRequest(userID, p.TargetID, p.Message)
	if err != nil {
		return nil, errInternal(err.Error())
	}

	h.deliverOrQueue(p.TargetID, newEvent(CmdFriendEvent, friendEventPayload{
		EventType: "new_request",
		FromUser:  userID,
		RequestID: req.ID,
		Message:   p.Message,
	}))

	resp := newResponse(env.ID, CmdFriendRequest, friendAckPayload{Status: 200, RequestID: req.ID})
	return &resp, nil
}

// handleFriendAccept creates the friendship and notifies the requester;
// only the addressee may accept (§4.10).
func (h *Hub) handleFriendAccept(c *Connection, env Envelope, payload any) (*Envelope, error) {
	userID, err := requireAuth(c)
	if err != nil {
		return nil, err
	}
	p := payload.(*FriendRequestIDPayload)

	req, err := h.store.GetFriendRequest(p.RequestID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errNotFound("friend request not found")
		}
		return nil, errInternal(err.Error())
	}
	if req.ToUser != userID {
		return nil, errForbidden("only the addressee may accept")
	}

	req, err = h.store.AcceptFriendRequest(p.RequestID)
	if err != nil {
		return nil, errInternal(err.Error())
	}

	h.deliverOrQueue(req.FromUser, newEvent(CmdFriendEvent, friendEventPayload{
		EventType: "request_accepted",
		UserID:    userID,
		RequestID: req.ID,
	}))

	resp := newResponse(env.ID, CmdFriendAccept, friendAckPayload{Status: 200, RequestID: req.ID})
	return &resp, nil
}

// handleFriendReject notifies the requester; only the addressee may reject
// (§4.10).
func (h *Hub) handleFriendReject(c *Connection, env Envelope, payload any) (*Envelope, error) {
	userID, err := requireAuth(c)
	if err != nil {
		return nil, err
	}
	p := payload.(*FriendRequestIDPayload)

	req, err := h.store.GetFriendRequest(p.RequestID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errNotFound("friend request not found")
		}
		return nil, errInternal(err.Error())
	}
	if req.ToUser != userID {
		return nil, errForbidden("only the addressee may reject")
	}

	req, err = h.store.RejectFriendRequest(p.RequestID)
	if err != nil {
		return nil, errInternal(err.Error())
	}

	h.deliverOrQueue(req.FromUser, newEvent(CmdFriendEvent, friendEventPayload{
		EventType: "request_rejected",
		UserID:    userID,
		RequestID: req.ID,
	}))

	resp := newResponse(env.ID, CmdFriendReject, friendAckPayload{Status: 200, RequestID: req.ID})
	return &resp, nil
}

// handleFriendDelete removes a friendship and notifies the other party
// (§4.10).
func (h *Hub) handleFriendDelete(c *Connection, env Envelope, payload any) (*Envelope, error) {
	userID, err := requireAuth(c)
	if err != nil {
		return nil, err
	}
	p := payload.(*FriendDeletePayload)

	if err := h.store.DeleteFriend(userID, p.FriendID); err != nil {
		return nil, errInternal(err.Error())
	}

	h.deliverOrQueue(p.FriendID, newEvent(CmdFriendEvent, friendEventPayload{
		EventType: "friend_deleted",
		UserID:    userID,
	}))

	resp := newResponse(env.ID, CmdFriendDelete, friendAckPayload{Status: 200})
	return &resp, nil
}

// handleFriendList returns friends, pending (incoming), and sent (outgoing)
// requests (§4.10).
func (h *Hub) handleFriendList(c *Connection, env Envelope, payload any) (*Envelope, error) {
	userID, err := requireAuth(c)
	if err != nil {
		return nil, err
	}

	friends, err := h.store.ListFriends(userID)
	if err != nil {
		return nil, errInternal(err.Error())
	}
	pending, err := h.store.ListPendingRequestsTo(userID)
	if err != nil {
		return nil, errInternal(err.Error())
	}
	sent, err := h.store.ListSentRequestsFrom(userID)
	if err != nil {
		return nil, errInternal(err.Error())
	}

	resp := newResponse(env.ID, CmdFriendList, friendAckPayload{
		Status:  200,
		Friends: friends,
		Pending: toFriendRequestViews(pending),
		Sent:    toFriendRequestViews(sent),
	})
	return &resp, nil
}

func toFriendRequestViews(reqs []store.FriendRequest) []friendRequestView {
	views := make([]friendRequestView, 0, len(reqs))
	for _, r := range reqs {
		views = append(views, friendRequestView{ID: r.ID, FromUser: r.FromUser, ToUser: r.ToUser, Message: r.Message})
	}
	return views
}
