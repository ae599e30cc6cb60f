package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestWriteFrameReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	sent := Envelope{
		ID:      "req-1",
		Type:    TypeRequest,
		Command: CmdAuthLogin,
		Headers: Headers{Version: Version},
		Payload: json.RawMessage(`{"user_id":"alice","password":"hunter2"}`),
	}
	if err := writeFrame(w, sent); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}

	if !strings.HasSuffix(buf.String(), "\n") {
		t.Fatal("expected frame to end with newline delimiter")
	}

	got, err := readFrame(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if got.ID != sent.ID || got.Command != sent.Command || got.Type != sent.Type {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, sent)
	}
}

func TestReadFrameRejectsOversizedFrame(t *testing.T) {
	huge := bytes.Repeat([]byte("a"), maxFrameSize+10)
	line := append([]byte(`{"command":"`), huge...)
	line = append(line, '"', '}', '\n')

	_, err := readFrame(bufio.NewReader(bytes.NewReader(line)))
	if err == nil {
		t.Fatal("expected an error for an oversized frame")
	}
	pe, ok := err.(*protoError)
	if !ok {
		t.Fatalf("expected *protoError, got %T", err)
	}
	if pe.code != "BAD_REQUEST" {
		t.Fatalf("code = %q, want BAD_REQUEST", pe.code)
	}
}

func TestReadFrameRejectsMalformedJSON(t *testing.T) {
	_, err := readFrame(bufio.NewReader(strings.NewReader("not json\n")))
	if err == nil {
		t.Fatal("expected an error for malformed JSON")
	}
	if _, ok := err.(*protoError); !ok {
		t.Fatalf("expected *protoError, got %T", err)
	}
}

func TestReadFrameEOFOnEmptyStream(t *testing.T) {
	_, err := readFrame(bufio.NewReader(strings.NewReader("")))
	if err == nil {
		t.Fatal("expected EOF on an empty stream")
	}
}
