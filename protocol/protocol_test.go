// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"bytes"
	"encoding/binary"
	"io"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestWriteReadMessage(t *testing.T) {
	var buffer bytes.Buffer
	messages := []Message{
		NewDataMessage([]byte("hello")),
		NewHeartbeatMessage(),
		NewExitStatusMessage(-3),
	}
	for _, message := range messages {
		if err := WriteMessage(&buffer, message); err != nil {
			t.Fatalf("WriteMessage: %v", err)
		}
	}

	for _, want := range messages {
		got, err := ReadMessage(&buffer)
		if err != nil {
			t.Fatalf("ReadMessage: %v", err)
		}
		if got.Type != want.Type || !bytes.Equal(got.Payload, want.Payload) {
			t.Fatalf("ReadMessage = %+v, want %+v", got, want)
		}
	}

	if _, err := ReadMessage(&buffer); err == nil {
		t.Fatal("ReadMessage on empty stream should fail")
	}
}

func TestReadMessageRejectsOversizedPayload(t *testing.T) {
	var header [messageHeaderLength]byte
	header[0] = MessageTypeData
	binary.BigEndian.PutUint32(header[1:], maxPayloadLength+1)

	_, err := ReadMessage(bytes.NewReader(header[:]))
	if err == nil || !strings.Contains(err.Error(), "exceeds maximum") {
		t.Fatalf("ReadMessage error = %v, want size rejection", err)
	}
}

func TestReadMessageTruncatedPayload(t *testing.T) {
	var buffer bytes.Buffer
	WriteMessage(&buffer, NewDataMessage([]byte("truncated")))
	data := buffer.Bytes()[:buffer.Len()-3]

	_, err := ReadMessage(bytes.NewReader(data))
	if err == nil {
		t.Fatal("expected error for truncated payload")
	}
}

func TestExitStatusPayload(t *testing.T) {
	for _, code := range []int32{0, 1, 127, -1} {
		message := NewExitStatusMessage(code)
		got, err := ParseExitStatusPayload(message.Payload)
		if err != nil || got != code {
			t.Fatalf("ParseExitStatusPayload(%d) = %d, %v", code, got, err)
		}
	}
	if _, err := ParseExitStatusPayload([]byte{1, 2}); err == nil {
		t.Fatal("short payload should be rejected")
	}
}

func TestHeaderDoesNotConsumeFollowingBytes(t *testing.T) {
	var buffer bytes.Buffer
	header := ConnectHeader{
		Action: ActionAttach,
		Attach: &AttachHeader{
			Name:         "main",
			LocalTTYSize: TTYSize{Rows: 24, Cols: 80},
			LocalEnv:     []string{"TERM=xterm"},
			TTL:          90 * time.Minute,
		},
	}
	if err := WriteHeader(&buffer, header); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	if err := WriteMessage(&buffer, NewDataMessage([]byte("ls\n"))); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	var decoded ConnectHeader
	if err := ReadHeader(&buffer, &decoded); err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if !reflect.DeepEqual(decoded, header) {
		t.Fatalf("decoded %+v, want %+v", decoded, header)
	}

	data, err := ReadMessage(&buffer)
	if err != nil {
		t.Fatalf("ReadMessage after header: %v", err)
	}
	if string(data.Payload) != "ls\n" {
		t.Fatalf("data after header = %q", data.Payload)
	}
}

func TestReadHeaderRejectsDataFrame(t *testing.T) {
	var buffer bytes.Buffer
	WriteMessage(&buffer, NewDataMessage([]byte{0xa0}))

	var header VersionHeader
	if err := ReadHeader(&buffer, &header); err == nil {
		t.Fatal("ReadHeader accepted a data frame")
	}
}

func TestReadHeaderEOF(t *testing.T) {
	var header VersionHeader
	err := ReadHeader(bytes.NewReader(nil), &header)
	if err == nil || !strings.Contains(err.Error(), io.EOF.Error()) {
		t.Fatalf("ReadHeader on empty stream = %v", err)
	}
}

func TestConnectHeaderValidate(t *testing.T) {
	tests := []struct {
		name    string
		header  ConnectHeader
		wantErr string
	}{
		{"list", ConnectHeader{Action: ActionList}, ""},
		{"attach", ConnectHeader{Action: ActionAttach, Attach: &AttachHeader{Name: "a"}}, ""},
		{"kill", ConnectHeader{Action: ActionKill, Kill: &KillRequest{Sessions: []string{"a"}}}, ""},
		{"detach", ConnectHeader{Action: ActionDetach, Detach: &DetachRequest{}}, ""},
		{"resize", ConnectHeader{Action: ActionSessionMessage, SessionMessage: &SessionMessageRequest{
			Name: "a", Payload: SessionMessagePayload{Resize: &ResizeRequest{}},
		}}, ""},
		{"unknown action", ConnectHeader{Action: "teleport"}, "unknown action"},
		{"missing attach payload", ConnectHeader{Action: ActionAttach}, "no payload"},
		{"missing kill payload", ConnectHeader{Action: ActionKill}, "no payload"},
		{"empty session message", ConnectHeader{Action: ActionSessionMessage, SessionMessage: &SessionMessageRequest{Name: "a"}}, "empty"},
		{"double session message", ConnectHeader{Action: ActionSessionMessage, SessionMessage: &SessionMessageRequest{
			Name: "a", Payload: SessionMessagePayload{Resize: &ResizeRequest{}, Detach: true},
		}}, "both"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.header.Validate()
			if test.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), test.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, test.wantErr)
			}
		})
	}
}

func TestAttachReplyValidate(t *testing.T) {
	for _, status := range []AttachStatus{AttachBusy, AttachForbidden, AttachAttached, AttachCreated, AttachUnexpectedError} {
		reply := AttachReplyHeader{Status: status}
		if err := reply.Validate(); err != nil {
			t.Errorf("Validate(%q) = %v", status, err)
		}
	}
	reply := AttachReplyHeader{Status: "teleported"}
	if err := reply.Validate(); err == nil {
		t.Fatal("unknown status accepted")
	}
	if !AttachCreated.Streams() || !AttachAttached.Streams() || AttachBusy.Streams() {
		t.Fatal("Streams() reports the wrong statuses")
	}
}

func TestListReplyJSONKeysInCBOR(t *testing.T) {
	var buffer bytes.Buffer
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reply := ListReply{Sessions: []Session{{
		Name:            "main",
		StartedAt:       started,
		LastConnectedAt: started.Add(time.Hour),
		Status:          SessionAttached,
		Attachment:      "4b0e",
	}}}
	if err := WriteHeader(&buffer, reply); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	if !bytes.Contains(buffer.Bytes(), []byte("last_connected_at")) {
		t.Fatal("CBOR encoding should use the json tag names")
	}

	var decoded ListReply
	if err := ReadHeader(&buffer, &decoded); err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	got := decoded.Sessions[0]
	if got.Name != "main" || !got.StartedAt.Equal(started) || got.Status != SessionAttached {
		t.Fatalf("decoded %+v", got)
	}
}
