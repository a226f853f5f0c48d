// Package decode turns a raw model output stream into a sequence of typed
// events: text, tool calls, heartbeats, and completion. It multiplexes two
// wire dialects (SSE content blocks, and an inline TOOL_CALL: line protocol)
// over chunks that can split at arbitrary byte boundaries.
package decode

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

// EventKind tags the variant carried by an Event.
type EventKind string

const (
	EventText      EventKind = "text"
	EventToolStart EventKind = "tool_start" // heartbeat: TOOL_STARTING:<name>
	EventToolCall  EventKind = "tool_call"  // complete, parsed tool invocation
	EventDone      EventKind = "done"
	EventError     EventKind = "error"
)

// ToolCall is a fully decoded tool invocation.
type ToolCall struct {
	ID    string
	Name  string
	Input map[string]any
}

// Event is one decoded unit handed to the agent loop.
type Event struct {
	Kind EventKind
	Text string
	Tool *ToolCall
	Err  error
}

// blockState tracks the in-progress content block while its input streams.
type blockState struct {
	id, name string
	jsonBuf  strings.Builder
}

// Decoder accumulates raw chunks and emits decoded Events. It is not
// goroutine-safe; callers feed it from a single reader loop.
type Decoder struct {
	block      *blockState
	textBuf    strings.Builder // carries a partial inline-protocol line across chunks
	sawToolUse bool
}

// New creates a Decoder ready to receive Feed calls.
func New() *Decoder {
	return &Decoder{}
}

// Feed processes one SSE-framed chunk (event:/data: lines, blank-line
// delimited) and returns the events it produced, in causal order.
func (d *Decoder) Feed(raw []byte) []Event {
	var events []Event
	for _, frame := range splitSSEFrames(string(raw)) {
		events = append(events, d.feedFrame(frame)...)
	}
	return events
}

// FeedText processes a chunk of the inline TOOL_CALL: dialect, scanning for
// complete lines and passing everything else through as text. A line split
// across chunk boundaries is held in textBuf until it completes.
func (d *Decoder) FeedText(raw string) []Event {
	d.textBuf.WriteString(raw)
	buffered := d.textBuf.String()

	lastNewline := strings.LastIndexByte(buffered, '\n')
	if lastNewline < 0 {
		return nil // no complete line yet
	}

	complete := buffered[:lastNewline]
	d.textBuf.Reset()
	d.textBuf.WriteString(buffered[lastNewline+1:])

	var events []Event
	for _, line := range strings.Split(complete, "\n") {
		if tc, ok := parseInlineToolCall(line); ok {
			events = append(events, Event{Kind: EventToolStart, Text: tc.Name})
			events = append(events, Event{Kind: EventToolCall, Tool: tc})
			continue
		}
		if line != "" {
			events = append(events, Event{Kind: EventText, Text: line + "\n"})
		}
	}
	return events
}

// Flush finalizes the decoder at stream end: any buffered inline text is
// emitted, and an in-progress tool-use block is repaired or abandoned.
func (d *Decoder) Flush() []Event {
	var events []Event
	if d.textBuf.Len() > 0 {
		if tc, ok := parseInlineToolCall(d.textBuf.String()); ok {
			events = append(events, Event{Kind: EventToolStart, Text: tc.Name})
			events = append(events, Event{Kind: EventToolCall, Tool: tc})
		} else {
			events = append(events, Event{Kind: EventText, Text: d.textBuf.String()})
		}
		d.textBuf.Reset()
	}
	if d.block != nil {
		if ev, ok := d.closeBlock(); ok {
			events = append(events, ev)
		}
		d.block = nil
	}
	return events
}

func (d *Decoder) feedFrame(frame sseFrame) []Event {
	switch frame.event {
	case "content_block_start":
		var body struct {
			ContentBlock struct {
				Type string `json:"type"`
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"content_block"`
		}
		if err := json.Unmarshal([]byte(frame.data), &body); err != nil {
			return nil
		}
		if body.ContentBlock.Type != "tool_use" {
			return nil
		}
		d.block = &blockState{id: body.ContentBlock.ID, name: body.ContentBlock.Name}
		d.sawToolUse = true
		return []Event{{Kind: EventToolStart, Text: body.ContentBlock.Name}}

	case "content_block_delta":
		var body struct {
			Delta struct {
				Type        string `json:"type"`
				Text        string `json:"text"`
				PartialJSON string `json:"partial_json"`
			} `json:"delta"`
		}
		if err := json.Unmarshal([]byte(frame.data), &body); err != nil {
			return nil
		}
		switch body.Delta.Type {
		case "text_delta":
			if body.Delta.Text == "" {
				return nil
			}
			return []Event{{Kind: EventText, Text: body.Delta.Text}}
		case "input_json_delta":
			if d.block != nil {
				d.block.jsonBuf.WriteString(body.Delta.PartialJSON)
			}
		}
		return nil

	case "content_block_stop":
		if d.block == nil {
			return nil
		}
		ev, ok := d.closeBlock()
		d.block = nil
		if !ok {
			return nil
		}
		return []Event{ev}

	case "message_stop":
		return []Event{{Kind: EventDone}}

	case "error":
		var body struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.Unmarshal([]byte(frame.data), &body)
		return []Event{{Kind: EventError, Err: &DecodeError{Msg: body.Error.Message}}}
	}
	return nil
}

// closeBlock attempts to parse the accumulated partial-JSON buffer for the
// current tool-use block, applying the repair ladder on failure.
func (d *Decoder) closeBlock() (Event, bool) {
	raw := d.block.jsonBuf.String()
	input, ok := parseToolInput(raw)
	if !ok {
		return Event{Kind: EventText, Text: "API Response Truncated"}, true
	}
	return Event{Kind: EventToolCall, Tool: &ToolCall{ID: d.block.id, Name: d.block.name, Input: input}}, true
}

// parseToolInput runs the partial-JSON repair ladder: parse as-is, then
// append a closing quote, then a closing brace, then give up.
func parseToolInput(raw string) (map[string]any, bool) {
	if raw == "" {
		return map[string]any{}, true
	}
	if m, ok := tryUnmarshal(raw); ok {
		return m, true
	}
	if needsClosingQuote(raw) {
		if m, ok := tryUnmarshal(raw + `"`); ok {
			return m, true
		}
		if m, ok := tryUnmarshal(raw + `"}`); ok {
			return m, true
		}
	}
	if m, ok := tryUnmarshal(raw + "}"); ok {
		return m, true
	}
	return nil, false
}

func tryUnmarshal(raw string) (map[string]any, bool) {
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, false
	}
	return m, true
}

// needsClosingQuote reports whether raw looks like it ends mid-string: an
// odd number of unescaped quotes and no trailing comma/brace.
func needsClosingQuote(raw string) bool {
	trimmed := strings.TrimRight(raw, " \t\n")
	if strings.HasSuffix(trimmed, ",") || strings.HasSuffix(trimmed, "}") {
		return false
	}
	count := 0
	escaped := false
	for _, r := range raw {
		if escaped {
			escaped = false
			continue
		}
		if r == '\\' {
			escaped = true
			continue
		}
		if r == '"' {
			count++
		}
	}
	return count%2 == 1
}

// parseInlineToolCall matches a Dialect B line: TOOL_CALL:<id>:<name>:<base64-json>
func parseInlineToolCall(line string) (*ToolCall, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "TOOL_CALL:") {
		return nil, false
	}
	parts := strings.SplitN(strings.TrimPrefix(line, "TOOL_CALL:"), ":", 3)
	if len(parts) != 3 {
		return nil, false
	}
	id, name, enc := parts[0], parts[1], parts[2]
	decoded, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return nil, false
	}
	input, ok := tryUnmarshal(string(decoded))
	if !ok {
		return nil, false
	}
	return &ToolCall{ID: id, Name: name, Input: input}, true
}

// DecodeError wraps a stream-reported error event.
type DecodeError struct {
	Msg string
}

func (e *DecodeError) Error() string { return e.Msg }
