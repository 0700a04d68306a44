package upstream

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
)

// FallbackMessage replaces an assistant turn whose accumulated text came out
// empty or whitespace-only. Clients never receive an empty reply.
const FallbackMessage = "I wasn't able to produce a response. Please try again."

const (
	dataMarker   = "data:"
	doneSentinel = "[DONE]"
)

// Events end at a blank line; upstreams frame with either LF or CRLF.
var eventBoundaries = [][]byte{[]byte("\n\n"), []byte("\r\n\r\n")}

func findBoundary(raw []byte) (start, width int) {
	start = -1
	for _, boundary := range eventBoundaries {
		if i := bytes.Index(raw, boundary); i >= 0 && (start < 0 || i < start) {
			start, width = i, len(boundary)
		}
	}
	return start, width
}

type chunkDelta struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Parser reconstructs event boundaries from the raw completion byte stream
// and extracts incremental text tokens. Feed may be called with arbitrary
// byte slices as they arrive; complete events are handled immediately and
// partial ones wait in the buffer for more input.
type Parser struct {
	buf bytes.Buffer
	acc strings.Builder
}

func NewParser() *Parser {
	return &Parser{}
}

// Feed appends newly received bytes, slices out every complete event, and
// hands each extracted fragment to sink. Fragments are also accumulated for
// Final. A sink error stops processing and propagates.
func (p *Parser) Feed(data []byte, sink func(string) error) error {
	p.buf.Write(data)
	for {
		raw := p.buf.Bytes()
		idx, width := findBoundary(raw)
		if idx < 0 {
			return nil
		}
		event := string(raw[:idx])
		p.buf.Next(idx + width)
		if err := p.extractLines(event, sink); err != nil {
			return err
		}
	}
}

// Finish runs line extraction once over an unterminated trailing event left
// in the buffer; the upstream does not always close with a final blank line.
func (p *Parser) Finish(sink func(string) error) error {
	rest := strings.TrimSpace(p.buf.String())
	p.buf.Reset()
	if rest == "" {
		return nil
	}
	return p.extractLines(rest, sink)
}

// Final returns the accumulated assistant text, substituting the fallback
// when accumulation yielded nothing visible.
func (p *Parser) Final() string {
	out := p.acc.String()
	if strings.TrimSpace(out) == "" {
		return FallbackMessage
	}
	return out
}

func (p *Parser) extractLines(event string, sink func(string) error) error {
	for _, line := range strings.Split(event, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if !strings.HasPrefix(line, dataMarker) {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, dataMarker))
		if payload == "" || payload == doneSentinel {
			continue
		}
		var chunk chunkDelta
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			// best-effort: a malformed chunk is skipped, never fatal
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		fragment := chunk.Choices[0].Delta.Content
		if fragment == "" {
			continue
		}
		p.acc.WriteString(fragment)
		if err := sink(fragment); err != nil {
			return err
		}
	}
	return nil
}

// Drain consumes the whole upstream body through a parser, forwarding each
// fragment to sink, and returns the finalized assistant text.
func Drain(body io.Reader, sink func(string) error) (string, error) {
	parser := NewParser()
	buf := make([]byte, 4096)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			if ferr := parser.Feed(buf[:n], sink); ferr != nil {
				return "", ferr
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	if err := parser.Finish(sink); err != nil {
		return "", err
	}
	return parser.Final(), nil
}
