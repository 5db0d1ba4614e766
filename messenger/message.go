package messenger

import (
	"encoding/json"
	"strings"
)

// Kind discriminates the frames exchanged over a Port.
type Kind string

const (
	KindSyn      Kind = "syn"
	KindAck      Kind = "ack"
	KindRequest  Kind = "request"
	KindResponse Kind = "response"
)

// AnyOrigin disables origin pinning.
const AnyOrigin = "*"

const (
	requestPrefix  = "request:"
	responsePrefix = "response:"
)

// Message is the wire frame. Payload is set on requests and successful
// responses, Error on failed responses.
type Message struct {
	Kind    Kind            `json:"kind"`
	ID      string          `json:"id,omitempty"`
	Event   string          `json:"event,omitempty"`
	Origin  string          `json:"origin,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// RequestEvent returns the inbound event name for an operation.
func RequestEvent(op string) string {
	return requestPrefix + op
}

// ResponseEvent returns the outbound event name for an operation.
func ResponseEvent(op string) string {
	return responsePrefix + op
}

// responseEventFor maps "request:<op>" to "response:<op>". Other names are
// answered under the same name.
func responseEventFor(event string) string {
	if op, ok := strings.CutPrefix(event, requestPrefix); ok {
		return ResponseEvent(op)
	}
	return event
}
