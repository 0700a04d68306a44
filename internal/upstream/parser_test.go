package upstream

import (
	"strings"
	"testing"
)

func chunkLine(content string) string {
	return `data: {"choices":[{"delta":{"content":"` + content + `"}}]}` + "\n\n"
}

func TestParserYieldsFragmentsInOrder(t *testing.T) {
	stream := chunkLine("Hello") + chunkLine(" world") + "data: [DONE]\n\n"

	var got []string
	final, err := Drain(strings.NewReader(stream), func(fragment string) error {
		got = append(got, fragment)
		return nil
	})
	if err != nil {
		t.Fatalf("Drain error: %v", err)
	}
	if len(got) != 2 || got[0] != "Hello" || got[1] != " world" {
		t.Fatalf("unexpected fragments: %q", got)
	}
	if final != "Hello world" {
		t.Fatalf("final = %q, want %q", final, "Hello world")
	}
}

func TestParserTrailingUnterminatedEvent(t *testing.T) {
	// no closing blank line after the last event
	stream := chunkLine("first") + `data: {"choices":[{"delta":{"content":"last"}}]}`

	var got []string
	final, err := Drain(strings.NewReader(stream), func(fragment string) error {
		got = append(got, fragment)
		return nil
	})
	if err != nil {
		t.Fatalf("Drain error: %v", err)
	}
	if len(got) != 2 || got[1] != "last" {
		t.Fatalf("trailing fragment not yielded: %q", got)
	}
	if final != "firstlast" {
		t.Fatalf("final = %q", final)
	}
}

func TestParserEventSplitAcrossFeeds(t *testing.T) {
	whole := chunkLine("piece")
	parser := NewParser()

	var got []string
	sink := func(fragment string) error {
		got = append(got, fragment)
		return nil
	}
	for i := 0; i < len(whole); i++ {
		if err := parser.Feed([]byte{whole[i]}, sink); err != nil {
			t.Fatalf("Feed error: %v", err)
		}
	}
	if err := parser.Finish(sink); err != nil {
		t.Fatalf("Finish error: %v", err)
	}
	if len(got) != 1 || got[0] != "piece" {
		t.Fatalf("byte-at-a-time feed lost the fragment: %q", got)
	}
}

func TestParserSkipsUndecodableChunks(t *testing.T) {
	stream := "data: {not json}\n\n" + chunkLine("ok") + "data: [DONE]\n\n"

	var got []string
	final, err := Drain(strings.NewReader(stream), func(fragment string) error {
		got = append(got, fragment)
		return nil
	})
	if err != nil {
		t.Fatalf("decode failure must not be fatal: %v", err)
	}
	if len(got) != 1 || got[0] != "ok" {
		t.Fatalf("unexpected fragments: %q", got)
	}
	if final != "ok" {
		t.Fatalf("final = %q", final)
	}
}

func TestParserIgnoresNonDataLines(t *testing.T) {
	stream := "event: message\n" + chunkLine("x") + ": comment\n\ndata: [DONE]\n\n"

	var got []string
	if _, err := Drain(strings.NewReader(stream), func(fragment string) error {
		got = append(got, fragment)
		return nil
	}); err != nil {
		t.Fatalf("Drain error: %v", err)
	}
	if len(got) != 1 || got[0] != "x" {
		t.Fatalf("unexpected fragments: %q", got)
	}
}

func TestFinalSubstitutesFallback(t *testing.T) {
	stream := chunkLine(" ") + "data: [DONE]\n\n"

	final, err := Drain(strings.NewReader(stream), func(string) error { return nil })
	if err != nil {
		t.Fatalf("Drain error: %v", err)
	}
	if final != FallbackMessage {
		t.Fatalf("whitespace-only accumulation must fall back, got %q", final)
	}

	final, err = Drain(strings.NewReader("data: [DONE]\n\n"), func(string) error { return nil })
	if err != nil {
		t.Fatalf("Drain error: %v", err)
	}
	if final != FallbackMessage {
		t.Fatalf("empty accumulation must fall back, got %q", final)
	}
}

func TestParserSinkErrorPropagates(t *testing.T) {
	stream := chunkLine("a") + chunkLine("b")

	calls := 0
	_, err := Drain(strings.NewReader(stream), func(string) error {
		calls++
		return errTestSink
	})
	if err != errTestSink {
		t.Fatalf("expected sink error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("processing must stop at the first sink error, got %d calls", calls)
	}
}

var errTestSink = &sinkError{}

type sinkError struct{}

func (*sinkError) Error() string { return "sink failed" }

func TestParserCRLFFraming(t *testing.T) {
	crlfChunk := func(content string) string {
		return `data: {"choices":[{"delta":{"content":"` + content + `"}}]}` + "\r\n\r\n"
	}
	parser := NewParser()

	var got []string
	sink := func(fragment string) error {
		got = append(got, fragment)
		return nil
	}

	// each complete CRLF-framed event yields its fragment immediately,
	// not deferred to the end of the stream
	if err := parser.Feed([]byte(crlfChunk("Hel")), sink); err != nil {
		t.Fatalf("Feed error: %v", err)
	}
	if len(got) != 1 || got[0] != "Hel" {
		t.Fatalf("fragment not yielded mid-stream: %q", got)
	}
	if err := parser.Feed([]byte(crlfChunk("lo")), sink); err != nil {
		t.Fatalf("Feed error: %v", err)
	}
	if err := parser.Feed([]byte("data: [DONE]\r\n\r\n"), sink); err != nil {
		t.Fatalf("Feed error: %v", err)
	}
	if err := parser.Finish(sink); err != nil {
		t.Fatalf("Finish error: %v", err)
	}
	if len(got) != 2 || got[1] != "lo" {
		t.Fatalf("unexpected fragments: %q", got)
	}
	if final := parser.Final(); final != "Hello" {
		t.Fatalf("final = %q", final)
	}
}
