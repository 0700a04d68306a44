package relay

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Event is the closed set of outward stream events. Exactly one Start is
// emitted per streaming request, zero or more Token, and exactly one terminal
// Done or Error.
type Event interface {
	isEvent()
}

type Start struct {
	ConversationID string
}

type Token struct {
	Token string
}

type Done struct {
	Message        string
	ConversationID string
}

type Error struct {
	Error string
}

func (Start) isEvent() {}
func (Token) isEvent() {}
func (Done) isEvent()  {}
func (Error) isEvent() {}

// EventWriter serializes events to the line-delimited JSON wire format: one
// object followed by a single newline per call, the newline being the sole
// framing delimiter. Response metadata is set once, before the first byte.
type EventWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
	closed  bool
}

// NewEventWriter wraps a response writer. Returns an error when the
// underlying transport cannot flush incrementally.
func NewEventWriter(w http.ResponseWriter) (*EventWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}
	return &EventWriter{w: w, flusher: flusher}, nil
}

// Send writes one event line and flushes it. Writes after Close are no-ops.
func (ew *EventWriter) Send(ev Event) error {
	if ew.closed {
		return nil
	}
	payload, err := marshalEvent(ev)
	if err != nil {
		return err
	}
	if !ew.started {
		header := ew.w.Header()
		header.Set("Content-Type", "application/x-ndjson")
		header.Set("Cache-Control", "no-store")
		header.Set("Connection", "keep-alive")
		header.Set("X-Accel-Buffering", "no")
		ew.w.WriteHeader(http.StatusOK)
		ew.started = true
	}
	if _, err := ew.w.Write(append(payload, '\n')); err != nil {
		return err
	}
	ew.flusher.Flush()
	return nil
}

// Started reports whether any response bytes have been sent; failure handling
// branches on it.
func (ew *EventWriter) Started() bool {
	return ew.started
}

// Close terminates the stream; subsequent Sends are silently dropped.
func (ew *EventWriter) Close() {
	ew.closed = true
}

// marshalEvent is the single serialization boundary for the event set; an
// unhandled variant is an error, never a silently dropped line.
func marshalEvent(ev Event) ([]byte, error) {
	switch e := ev.(type) {
	case Start:
		return json.Marshal(struct {
			Type           string `json:"type"`
			ConversationID string `json:"conversationId"`
		}{"start", e.ConversationID})
	case Token:
		return json.Marshal(struct {
			Type  string `json:"type"`
			Token string `json:"token"`
		}{"token", e.Token})
	case Done:
		return json.Marshal(struct {
			Type           string `json:"type"`
			Message        string `json:"message"`
			ConversationID string `json:"conversationId"`
		}{"done", e.Message, e.ConversationID})
	case Error:
		return json.Marshal(struct {
			Type  string `json:"type"`
			Error string `json:"error"`
		}{"error", e.Error})
	default:
		return nil, fmt.Errorf("unknown event type %T", ev)
	}
}
