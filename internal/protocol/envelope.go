// Package protocol defines the JSON-RPC 2.0 message envelope exchanged
// between MCP clients and the browser extension worker. The bridge treats
// envelope contents as opaque; only the one control notification it emits
// itself is constructed here.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// Version is the JSON-RPC protocol version carried by every envelope.
const Version = "2.0"

// MethodCancelled is the method of the notification the bridge sends to a
// session that is being superseded by a newer client connection.
const MethodCancelled = "notifications/cancelled"

// Envelope is one unit of the request/response/notification message format.
// All content fields are kept raw; the bridge never interprets them.
type Envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

// ErrorObject is the error member of a JSON-RPC response envelope.
type ErrorObject struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Kind classifies an envelope by its populated fields.
type Kind string

const (
	KindRequest      Kind = "request"
	KindNotification Kind = "notification"
	KindResponse     Kind = "response"
	KindInvalid      Kind = "invalid"
)

// Kind returns the classification of the envelope.
func (e *Envelope) Kind() Kind {
	switch {
	case e.Method != "" && len(e.ID) > 0:
		return KindRequest
	case e.Method != "":
		return KindNotification
	case len(e.Result) > 0 || e.Error != nil:
		return KindResponse
	default:
		return KindInvalid
	}
}

// String renders the envelope as compact JSON for log output.
func (e *Envelope) String() string {
	data, err := json.Marshal(e)
	if err != nil {
		return "<unmarshalable envelope>"
	}
	return string(data)
}

// Parse decodes raw bytes into an Envelope. Any payload that is not a JSON
// object fails to decode; the caller is expected to drop such messages
// rather than forward them.
func Parse(raw []byte) (*Envelope, error) {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("envelope is not a JSON object")
	}
	var env Envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("failed to parse envelope: %w", err)
	}
	return &env, nil
}

// Marshal encodes an envelope back to wire bytes.
func Marshal(env *Envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return data, nil
}

// CancelledParams is the params payload of the supersession notification.
type CancelledParams struct {
	Reason string `json:"reason"`
}

// NewCancelledNotification builds the synthetic notification sent to a
// session transport that is being replaced by a newer client connection.
// The reason is always non-empty.
func NewCancelledNotification(reason string) *Envelope {
	if reason == "" {
		reason = "session superseded"
	}
	params, _ := json.Marshal(CancelledParams{Reason: reason})
	return &Envelope{
		JSONRPC: Version,
		Method:  MethodCancelled,
		Params:  params,
	}
}

// Preview returns a log-safe summary of a payload, truncated to max bytes.
// Binary payloads are summarized by length instead of dumped.
func Preview(payload []byte, max int) string {
	if max <= 0 {
		max = 120
	}
	if !utf8.Valid(payload) {
		return fmt.Sprintf("<%d bytes binary>", len(payload))
	}
	if len(payload) <= max {
		return string(payload)
	}
	// Cut on a rune boundary so the preview stays valid UTF-8.
	cut := max
	for cut > 0 && !utf8.RuneStart(payload[cut]) {
		cut--
	}
	return fmt.Sprintf("%s... (%d bytes total)", payload[:cut], len(payload))
}
