package main

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	callRinging   = "ringing"
	callConnected = "connected"
	callEnded     = "ended"
)

// call is the in-memory state of one voice call (§3, §4.12). Calls never
// touch the persistent store — they live only as long as the process, and
// every participant's binding disappears with the process anyway.
type call struct {
	mu sync.Mutex

	id           string
	callType     string
	targetType   string
	targetID     string
	initiator    string
	status       string
	participants map[string]struct{}
	connectedAt  time.Time
}

func (cl *call) membersLocked() []string {
	members := make([]string, 0, len(cl.participants))
	for u := range cl.participants {
		members = append(members, u)
	}
	return members
}

// VoiceService owns every active call's state machine (§4.12).
type VoiceService struct {
	hub *Hub

	mu          sync.Mutex
	activeCalls map[string]*call
	userToCall  map[string]string
}

func NewVoiceService(h *Hub) *VoiceService {
	return &VoiceService{
		hub:         h,
		activeCalls: make(map[string]*call),
		userToCall:  make(map[string]string),
	}
}

type voiceAckPayload struct {
	Status int    `json:"status"`
	CallID string `json:"call_id"`
}

type voiceIncomingEventPayload struct {
	EventType string        `json:"event_type"`
	CallID    string        `json:"call_id"`
	FromUser  string        `json:"from_user"`
	CallType  string        `json:"call_type"`
	Target    TargetPayload `json:"target"`
}

type voiceMembersEventPayload struct {
	EventType string   `json:"event_type"`
	Members   []string `json:"members"`
}

type voiceMemberEventPayload struct {
	EventType string   `json:"event_type"`
	UserID    string   `json:"user_id"`
	Members   []string `json:"members"`
}

type voiceRejectedEventPayload struct {
	EventType string `json:"event_type"`
	ByUser    string `json:"by_user"`
}

type voiceEndedEventPayload struct {
	EventType  string   `json:"event_type"`
	CallID     string   `json:"call_id"`
	CallType   string   `json:"call_type"`
	TargetType string   `json:"target_type"`
	TargetID   string   `json:"target_id"`
	Participants []string `json:"participants"`
	Duration   int64    `json:"duration"`
	Initiator  string   `json:"initiator"`
}

type voiceDataEventPayload struct {
	CallID string `json:"call_id"`
	Data   string `json:"data"`
	Codec  string `json:"codec,omitempty"`
	Seq    int64  `json:"seq,omitempty"`
}

// handleVoiceCall rejects a second concurrent call from the same
// initiator, then rings the target user or every other room member
// (§4.12).
func (h *Hub) handleVoiceCall(c *Connection, env Envelope, payload any) (*Envelope, error) {
	userID, err := requireAuth(c)
	if err != nil {
		return nil, err
	}
	p := payload.(*VoiceCallPayload)
	vs := h.voice

	vs.mu.Lock()
	if existingID, ok := vs.userToCall[userID]; ok {
		if existing := vs.activeCalls[existingID]; existing != nil && existing.status != callEnded {
			vs.mu.Unlock()
			return nil, errConflict("already in a call")
		}
	}
	cl := &call{
		id:           uuid.NewString(),
		callType:     p.CallType,
		targetType:   p.Target.Type,
		targetID:     p.Target.ID,
		initiator:    userID,
		status:       callRinging,
		participants: map[string]struct{}{userID: {}},
	}
	vs.activeCalls[cl.id] = cl
	vs.userToCall[userID] = cl.id
	vs.mu.Unlock()

	event := newEvent(CmdVoiceEvent, voiceIncomingEventPayload{
		EventType: "incoming",
		CallID:    cl.id,
		FromUser:  userID,
		CallType:  p.CallType,
		Target:    p.Target,
	})

	switch p.Target.Type {
	case "user":
		h.registry.SendToUser(p.Target.ID, event)
	case "room":
		members, err := h.store.ListRoomMembers(p.Target.ID)
		if err != nil {
			return nil, errInternal(err.Error())
		}
		for _, m := range members {
			if m != userID {
				h.registry.SendToUser(m, event)
			}
		}
	default:
		return nil, errBadRequest("unknown target type")
	}

	resp := newResponse(env.ID, CmdVoiceCallAck, voiceAckPayload{Status: 200, CallID: cl.id})
	return &resp, nil
}

// handleVoiceAnswer admits the caller as a participant; the first answer
// (while the call is still ringing) transitions it to connected, and a later
// answer on a group call is announced as member_joined (§4.12).
func (h *Hub) handleVoiceAnswer(c *Connection, env Envelope, payload any) (*Envelope, error) {
	userID, err := requireAuth(c)
	if err != nil {
		return nil, err
	}
	p := payload.(*VoiceCallIDPayload)
	vs := h.voice

	vs.mu.Lock()
	cl, ok := vs.activeCalls[p.CallID]
	vs.mu.Unlock()
	if !ok {
		return nil, errNotFound("call not found")
	}

	cl.mu.Lock()
	if cl.callType == "direct" && cl.status != callRinging {
		cl.mu.Unlock()
		return nil, errConflict("call is not ringing")
	}
	if cl.callType == "group" && cl.status == callEnded {
		cl.mu.Unlock()
		return nil, errConflict("call has ended")
	}
	wasRinging := cl.status == callRinging
	cl.participants[userID] = struct{}{}
	if wasRinging {
		cl.status = callConnected
		cl.connectedAt = time.Now()
	}
	members := cl.membersLocked()
	cl.mu.Unlock()

	vs.mu.Lock()
	vs.userToCall[userID] = p.CallID
	vs.mu.Unlock()

	var event Envelope
	if wasRinging {
		event = newEvent(CmdVoiceEvent, voiceMembersEventPayload{EventType: "connected", Members: members})
	} else {
		event = newEvent(CmdVoiceEvent, voiceMemberEventPayload{EventType: "member_joined", UserID: userID, Members: members})
	}
	for _, m := range members {
		h.registry.SendToUser(m, event)
	}

	resp := newResponse(env.ID, CmdVoiceAnswerAck, voiceAckPayload{Status: 200, CallID: p.CallID})
	return &resp, nil
}

// handleVoiceReject notifies the initiator; a direct call ends immediately
// on rejection (§4.12).
func (h *Hub) handleVoiceReject(c *Connection, env Envelope, payload any) (*Envelope, error) {
	userID, err := requireAuth(c)
	if err != nil {
		return nil, err
	}
	p := payload.(*VoiceCallIDPayload)
	vs := h.voice

	vs.mu.Lock()
	cl, ok := vs.activeCalls[p.CallID]
	vs.mu.Unlock()
	if !ok {
		return nil, errNotFound("call not found")
	}

	cl.mu.Lock()
	initiator := cl.initiator
	isDirect := cl.callType == "direct"
	cl.mu.Unlock()

	h.registry.SendToUser(initiator, newEvent(CmdVoiceEvent, voiceRejectedEventPayload{EventType: "rejected", ByUser: userID}))

	if isDirect {
		h.endCall(cl, userID)
	}

	resp := newResponse(env.ID, CmdVoiceRejectAck, voiceAckPayload{Status: 200, CallID: p.CallID})
	return &resp, nil
}

// handleVoiceEnd removes the caller from the call; the last participant's
// departure (or any departure from a direct call) ends it for everyone
// (§4.12).
func (h *Hub) handleVoiceEnd(c *Connection, env Envelope, payload any) (*Envelope, error) {
	userID, err := requireAuth(c)
	if err != nil {
		return nil, err
	}
	p := payload.(*VoiceCallIDPayload)
	vs := h.voice

	vs.mu.Lock()
	cl, ok := vs.activeCalls[p.CallID]
	vs.mu.Unlock()
	if !ok {
		return nil, errNotFound("call not found")
	}
	h.endCall(cl, userID)

	resp := newResponse(env.ID, CmdVoiceEndAck, voiceAckPayload{Status: 200, CallID: p.CallID})
	return &resp, nil
}

// endCall removes userID from cl's participants, ending the call for
// everyone if it was a direct call or the last remaining participant left.
// Also the disconnect-synthesized path (§4.12 "Disconnect handling").
func (h *Hub) endCall(cl *call, userID string) {
	cl.mu.Lock()
	if cl.status == callEnded {
		cl.mu.Unlock()
		return
	}
	preRemoval := cl.membersLocked()
	delete(cl.participants, userID)
	remaining := len(cl.participants)
	isDirect := cl.callType == "direct"
	duration := int64(0)
	if !cl.connectedAt.IsZero() {
		duration = int64(time.Since(cl.connectedAt).Seconds())
	}

	last := isDirect || remaining == 0
	if last {
		cl.status = callEnded
	}
	callID, callType, targetType, targetID, initiator := cl.id, cl.callType, cl.targetType, cl.targetID, cl.initiator
	cl.mu.Unlock()

	h.voice.mu.Lock()
	if h.voice.userToCall[userID] == callID {
		delete(h.voice.userToCall, userID)
	}
	h.voice.mu.Unlock()

	if !last {
		event := newEvent(CmdVoiceEvent, voiceMemberEventPayload{EventType: "member_left", UserID: userID, Members: cl.membersLocked()})
		for _, m := range preRemoval {
			if m == userID {
				continue
			}
			h.registry.SendToUser(m, event)
		}
		return
	}

	event := newEvent(CmdVoiceEvent, voiceEndedEventPayload{
		EventType:    "ended",
		CallID:       callID,
		CallType:     callType,
		TargetType:   targetType,
		TargetID:     targetID,
		Participants: preRemoval,
		Duration:     duration,
		Initiator:    initiator,
	})
	for _, m := range preRemoval {
		h.registry.SendToUser(m, event)
	}

	h.voice.mu.Lock()
	delete(h.voice.activeCalls, callID)
	for _, m := range preRemoval {
		if h.voice.userToCall[m] == callID {
			delete(h.voice.userToCall, m)
		}
	}
	h.voice.mu.Unlock()
}

// handleVoiceData forwards a raw frame to every other current participant
// verbatim; non-participants are silently dropped and no response is
// generated (§4.12).
func (h *Hub) handleVoiceData(c *Connection, env Envelope, payload any) (*Envelope, error) {
	userID, err := requireAuth(c)
	if err != nil {
		return nil, err
	}
	p := payload.(*VoiceDataPayload)
	vs := h.voice

	vs.mu.Lock()
	cl, ok := vs.activeCalls[p.CallID]
	vs.mu.Unlock()
	if !ok {
		return nil, nil
	}

	cl.mu.Lock()
	_, isParticipant := cl.participants[userID]
	members := cl.membersLocked()
	cl.mu.Unlock()
	if !isParticipant {
		return nil, nil
	}

	event := newEvent(CmdVoiceData, voiceDataEventPayload{CallID: p.CallID, Data: p.Data, Codec: p.Codec, Seq: p.Seq})
	for _, m := range members {
		if m != userID {
			h.registry.SendToUser(m, event)
		}
	}
	return nil, nil
}

// onDisconnect synthesizes an `end` for a user's active call, if any
// (§4.12 "Disconnect handling").
func (vs *VoiceService) onDisconnect(userID string) {
	vs.mu.Lock()
	callID, ok := vs.userToCall[userID]
	var cl *call
	if ok {
		cl = vs.activeCalls[callID]
	}
	vs.mu.Unlock()
	if cl == nil {
		return
	}
	vs.hub.endCall(cl, userID)
}
