package main

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// mustMarshal panics only on a programmer error (a payload type that
// cannot be JSON-encoded) — every payload type in this file is a plain
// struct of marshalable fields, so this never fires in practice.
func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic("marshal payload: " + err.Error())
	}
	return data
}

// newResponse builds a response envelope echoing the request id (§4.1).
func newResponse(requestID, command string, payload any) Envelope {
	return Envelope{
		ID:        requestID,
		Type:      TypeResponse,
		Timestamp: time.Now().Unix(),
		Command:   command,
		Headers:   Headers{Version: Version},
		Payload:   mustMarshal(payload),
	}
}

// newEvent builds a server-pushed event envelope with a fresh id (§4.1).
func newEvent(command string, payload any) Envelope {
	return Envelope{
		ID:        uuid.NewString(),
		Type:      TypeEvent,
		Timestamp: time.Now().Unix(),
		Command:   command,
		Headers:   Headers{Version: Version},
		Payload:   mustMarshal(payload),
	}
}

// marshalEnvelope encodes a full envelope (e.g. for offline-queue storage,
// where the stored "event" is replayed verbatim on drain).
func marshalEnvelope(env Envelope) (string, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// unmarshalEnvelope decodes a previously-stored offline-queue event back
// into an Envelope.
func unmarshalEnvelope(raw string) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal([]byte(raw), &env)
	return env, err
}

// errorPayload is the shape of every non-2xx response payload (§4.5). ErrNum
// is the numeric sub-code from §6 (e.g. PARAM_MISSING 1004); omitted for
// errors that only carry a status + code string.
type errorPayload struct {
	Status       int    `json:"status"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrNum       int    `json:"err_num,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// newErrorResponse converts a protoError into the paired *_ack (or the
// original command if unpaired) error response (§4.5).
func newErrorResponse(requestID, command string, pe *protoError) Envelope {
	ack, ok := ackCommand[command]
	if !ok {
		ack = command
	}
	return newResponse(requestID, ack, errorPayload{
		Status:       pe.status,
		ErrorCode:    pe.code,
		ErrNum:       pe.errNum,
		ErrorMessage: pe.message,
	})
}
