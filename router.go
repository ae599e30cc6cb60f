package main

// handlerFunc is the shape every command handler implements: decode the
// already-validated payload, act, and return either a response envelope to
// write back (nil if the command is fire-and-forget) or an error that the
// server loop converts into the paired error ack (§4.5).
type handlerFunc func(h *Hub, c *Connection, env Envelope, payload any) (*Envelope, error)

// router dispatches a command string to its handler. An unrecognized
// command is silently ignored by the caller (§4.5) rather than looked up
// here, so router only ever holds known commands.
var router = map[string]handlerFunc{
	CmdAuthRegister: (*Hub).handleAuthRegister,
	CmdAuthLogin:    (*Hub).handleAuthLogin,
	CmdAuthLogout:   (*Hub).handleAuthLogout,
	CmdAuthRefresh:  (*Hub).handleAuthRefresh,

	CmdPresenceList:      (*Hub).handlePresenceList,
	CmdPresenceUpdate:    (*Hub).handlePresenceUpdate,
	CmdPresenceHeartbeat: (*Hub).handlePresenceHeartbeat,

	CmdMessageSend: (*Hub).handleMessageSend,

	CmdRoomCreate:  (*Hub).handleRoomCreate,
	CmdRoomJoin:    (*Hub).handleRoomJoin,
	CmdRoomLeave:   (*Hub).handleRoomLeave,
	CmdRoomList:    (*Hub).handleRoomList,
	CmdRoomMembers: (*Hub).handleRoomMembers,
	CmdRoomInfo:    (*Hub).handleRoomInfo,
	CmdRoomKick:    (*Hub).handleRoomKick,
	CmdRoomDelete:  (*Hub).handleRoomDelete,

	CmdFriendRequest: (*Hub).handleFriendRequest,
	CmdFriendAccept:  (*Hub).handleFriendAccept,
	CmdFriendReject:  (*Hub).handleFriendReject,
	CmdFriendDelete:  (*Hub).handleFriendDelete,
	CmdFriendList:    (*Hub).handleFriendList,

	CmdFileRequest:  (*Hub).handleFileRequest,
	CmdFileAccept:   (*Hub).handleFileAccept,
	CmdFileReject:   (*Hub).handleFileReject,
	CmdFileComplete: (*Hub).handleFileComplete,
	CmdFileError:    (*Hub).handleFileError,

	CmdVoiceCall:   (*Hub).handleVoiceCall,
	CmdVoiceAnswer: (*Hub).handleVoiceAnswer,
	CmdVoiceReject: (*Hub).handleVoiceReject,
	CmdVoiceEnd:    (*Hub).handleVoiceEnd,
	CmdVoiceData:   (*Hub).handleVoiceData,
}

// dispatch routes env to its handler, or returns (nil, nil) for an unknown
// command — silently ignored per §4.5.
func dispatch(h *Hub, c *Connection, env Envelope, payload any) (*Envelope, error) {
	fn, ok := router[env.Command]
	if !ok {
		return nil, nil
	}
	return fn(h, c, env, payload)
}
