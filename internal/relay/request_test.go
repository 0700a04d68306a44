package relay

import (
	"errors"
	"strings"
	"testing"
)

var testLimits = Limits{MaxSessionChars: 128, MaxMessageChars: 4000}

func TestValidateAcceptsWellFormedRequest(t *testing.T) {
	turn, err := ChatRequest{SessionID: "visitor_42.a-b", Message: "hello"}.Validate(testLimits)
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if turn.SessionID != "visitor_42.a-b" || turn.Message != "hello" {
		t.Fatalf("unexpected turn: %+v", turn)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name  string
		req   ChatRequest
		field string
	}{
		{"empty session", ChatRequest{SessionID: "", Message: "hi"}, "sessionId"},
		{"long session", ChatRequest{SessionID: strings.Repeat("a", 129), Message: "hi"}, "sessionId"},
		{"bad charset", ChatRequest{SessionID: "has space", Message: "hi"}, "sessionId"},
		{"empty message", ChatRequest{SessionID: "s", Message: ""}, "message"},
		{"long message", ChatRequest{SessionID: "s", Message: strings.Repeat("x", 4001)}, "message"},
	}
	for _, tc := range cases {
		_, err := tc.req.Validate(testLimits)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("%s: expected ValidationError, got %v", tc.name, err)
		}
		if verr.Field != tc.field {
			t.Fatalf("%s: field = %q, want %q", tc.name, verr.Field, tc.field)
		}
	}
}

func TestValidateBoundaryLengths(t *testing.T) {
	req := ChatRequest{SessionID: strings.Repeat("a", 128), Message: strings.Repeat("x", 4000)}
	if _, err := req.Validate(testLimits); err != nil {
		t.Fatalf("lengths at the limit must pass: %v", err)
	}
}
