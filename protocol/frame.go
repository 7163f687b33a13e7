// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/bureau-foundation/tether/lib/codec"
)

// Message type constants. Each message is a 5-byte header (1 byte type
// + 4 byte big-endian payload length) followed by the payload.
const (
	// MessageTypeHeader carries one CBOR-encoded header struct.
	MessageTypeHeader byte = 0x01

	// MessageTypeData carries raw terminal bytes in either direction.
	MessageTypeData byte = 0x02

	// MessageTypeHeartbeat has an empty payload. Daemon→client only,
	// sent while the shell is idle so a vanished client is noticed by a
	// failing write.
	MessageTypeHeartbeat byte = 0x03

	// MessageTypeExitStatus carries the shell's exit status as a 4-byte
	// big-endian int32. Daemon→client only, last message on the stream.
	MessageTypeExitStatus byte = 0x04
)

// messageHeaderLength is the fixed size of a frame header.
const messageHeaderLength = 5

// maxPayloadLength bounds a single frame. Restore buffers for a large
// lines spool are the biggest payloads.
const maxPayloadLength = 16 * 1024 * 1024

// Message is a single framed message.
type Message struct {
	Type    byte
	Payload []byte
}

// WriteMessage writes a framed message to w as a single Write call so
// concurrent writers guarded by one mutex never interleave frames.
func WriteMessage(w io.Writer, message Message) error {
	if len(message.Payload) > maxPayloadLength {
		return fmt.Errorf("payload length %d exceeds maximum %d", len(message.Payload), maxPayloadLength)
	}
	buffer := make([]byte, messageHeaderLength+len(message.Payload))
	buffer[0] = message.Type
	binary.BigEndian.PutUint32(buffer[1:5], uint32(len(message.Payload)))
	copy(buffer[messageHeaderLength:], message.Payload)
	if _, err := w.Write(buffer); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// ReadMessage reads one framed message from r.
func ReadMessage(r io.Reader) (Message, error) {
	var header [messageHeaderLength]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Message{}, fmt.Errorf("read message header: %w", err)
	}
	messageType := header[0]
	payloadLength := binary.BigEndian.Uint32(header[1:5])
	if payloadLength > maxPayloadLength {
		return Message{}, fmt.Errorf("payload length %d exceeds maximum %d", payloadLength, maxPayloadLength)
	}
	payload := make([]byte, payloadLength)
	if payloadLength > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Message{}, fmt.Errorf("read message payload: %w", err)
		}
	}
	return Message{Type: messageType, Payload: payload}, nil
}

// NewDataMessage creates a data message carrying raw terminal bytes.
func NewDataMessage(data []byte) Message {
	return Message{Type: MessageTypeData, Payload: data}
}

// NewHeartbeatMessage creates a heartbeat message.
func NewHeartbeatMessage() Message {
	return Message{Type: MessageTypeHeartbeat}
}

// NewExitStatusMessage creates an exit status message.
func NewExitStatusMessage(code int32) Message {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint32(payload, uint32(code))
	return Message{Type: MessageTypeExitStatus, Payload: payload}
}

// ParseExitStatusPayload extracts the exit code from an exit status
// message payload.
func ParseExitStatusPayload(payload []byte) (int32, error) {
	if len(payload) != 4 {
		return 0, fmt.Errorf("exit status payload must be 4 bytes, got %d", len(payload))
	}
	return int32(binary.BigEndian.Uint32(payload)), nil
}

// WriteHeader encodes header as CBOR and writes it as a header frame.
func WriteHeader(w io.Writer, header any) error {
	payload, err := codec.Marshal(header)
	if err != nil {
		return fmt.Errorf("encode %T: %w", header, err)
	}
	return WriteMessage(w, Message{Type: MessageTypeHeader, Payload: payload})
}

// ReadHeader reads a header frame from r and decodes it into header.
// Any other frame type is a protocol error.
func ReadHeader(r io.Reader, header any) error {
	message, err := ReadMessage(r)
	if err != nil {
		return err
	}
	if message.Type != MessageTypeHeader {
		return fmt.Errorf("expected header frame, got message type 0x%02x", message.Type)
	}
	if err := codec.Unmarshal(message.Payload, header); err != nil {
		return fmt.Errorf("decode %T: %w", header, err)
	}
	return nil
}
