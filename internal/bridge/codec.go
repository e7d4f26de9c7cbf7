package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// frameDelimiter terminates every record on the framed-socket transport.
const frameDelimiter byte = 0x00

// Inbound message constants.
const (
	MethodMessageStream          = "message/stream"
	DataKindToolCallConfirmation = "TOOL_CALL_CONFIRMATION"
)

// jsonrpcEnvelope wraps an event for SSE delivery.
type jsonrpcEnvelope struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Result  *Event `json:"result"`
}

// EncodeSocketFrame serializes an event for the framed-socket transport:
// the event JSON followed by a single null byte.
func EncodeSocketFrame(ev *Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to encode socket frame: %w", err)
	}
	return append(data, frameDelimiter), nil
}

// EncodeSSEFrame serializes an event for the SSE transport: the JSON-RPC
// envelope wrapped as a data: line with a blank-line terminator.
func EncodeSSEFrame(ev *Event) ([]byte, error) {
	env := jsonrpcEnvelope{JSONRPC: "2.0", ID: ev.TaskID, Result: ev}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode sse frame: %w", err)
	}

	frame := make([]byte, 0, len(data)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, data...)
	frame = append(frame, "\n\n"...)
	return frame, nil
}

// InboundMessage is the JSON-RPC-shaped request peers send on either
// transport.
type InboundMessage struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      any           `json:"id,omitempty"`
	Method  string        `json:"method"`
	Params  InboundParams `json:"params"`
}

// InboundParams carries the peer message payload.
type InboundParams struct {
	Message InboundPeerMessage `json:"message"`
}

// InboundPeerMessage holds the content a peer wants delivered.
type InboundPeerMessage struct {
	Content *InboundContent `json:"content"`
}

// InboundContent is either a prompt (Text is a string) or structured data
// such as a tool confirmation response.
type InboundContent struct {
	Text any          `json:"text,omitempty"`
	Data *InboundData `json:"data,omitempty"`
}

// InboundData is the structured payload of a peer message.
type InboundData struct {
	Kind             string `json:"kind"`
	ToolCallID       string `json:"tool_call_id"`
	SelectedOptionID string `json:"selected_option_id"`
}

// DecodeInbound parses a raw peer frame. A trailing record delimiter, as
// sent on the framed-socket transport, is tolerated and stripped.
func DecodeInbound(raw []byte) (*InboundMessage, error) {
	raw = bytes.TrimRight(raw, "\x00")
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty frame")
	}

	var msg InboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse inbound frame: %w", err)
	}
	return &msg, nil
}
