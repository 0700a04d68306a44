package relay

import (
	"fmt"
	"regexp"
)

// ChatRequest is the inbound chat submission shape.
type ChatRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

// ChatTurn is a request that passed validation; downstream states only ever
// see this type.
type ChatTurn struct {
	SessionID string
	Message   string
}

// Limits bounds the accepted request fields.
type Limits struct {
	MaxSessionChars int
	MaxMessageChars int
}

// ValidationError carries field-level detail. The detail is surfaced to the
// caller only in development configurations.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Validate checks the declarative field contract once, at the entry of the
// relay pipeline.
func (r ChatRequest) Validate(limits Limits) (ChatTurn, error) {
	if r.SessionID == "" {
		return ChatTurn{}, &ValidationError{Field: "sessionId", Reason: "must not be empty"}
	}
	if len(r.SessionID) > limits.MaxSessionChars {
		return ChatTurn{}, &ValidationError{Field: "sessionId", Reason: fmt.Sprintf("must be at most %d characters", limits.MaxSessionChars)}
	}
	if !sessionIDPattern.MatchString(r.SessionID) {
		return ChatTurn{}, &ValidationError{Field: "sessionId", Reason: "contains characters outside [A-Za-z0-9._-]"}
	}
	if r.Message == "" {
		return ChatTurn{}, &ValidationError{Field: "message", Reason: "must not be empty"}
	}
	if len(r.Message) > limits.MaxMessageChars {
		return ChatTurn{}, &ValidationError{Field: "message", Reason: fmt.Sprintf("must be at most %d characters", limits.MaxMessageChars)}
	}
	return ChatTurn{SessionID: r.SessionID, Message: r.Message}, nil
}
