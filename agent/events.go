package agent

import (
	"bytes"
	"encoding/json"
)

// Kind classifies a canonical stream event
type Kind string

const (
	KindText    Kind = "text"
	KindThought Kind = "thought"
	KindError   Kind = "error"
)

// Event is the canonical record produced from one upstream frame. Events are
// ephemeral; only the concatenated text of an assistant turn is persisted.
type Event struct {
	Kind    Kind   `json:"type"`
	Content string `json:"content"`
}

// Upstream frame shapes, decoded once at the boundary. The agent speaks
// JSON-RPC over SSE; each data payload is either an error envelope or a
// result whose "kind" discriminates the event shape.
type rpcFrame struct {
	Result json.RawMessage `json:"result"`
	Error  json.RawMessage `json:"error"`
}

type rpcErrorBody struct {
	Message string `json:"message"`
}

type framePart struct {
	Type string `json:"type"`
	Kind string `json:"kind"`
	Text string `json:"text"`
}

func (p framePart) textual() bool {
	t := p.Type
	if t == "" {
		t = p.Kind
	}
	return t == "text"
}

type frameArtifact struct {
	Parts []framePart `json:"parts"`
}

type frameBody struct {
	Kind     string         `json:"kind"`
	Text     string         `json:"text"`
	Parts    []framePart    `json:"parts"`
	Artifact *frameArtifact `json:"artifact"`
}

// Frame kinds the agent is known to emit. Anything else is dropped for
// forward compatibility.
const (
	frameKindMessage  = "message"
	frameKindThought  = "thought"
	frameKindArtifact = "artifact-update"
	frameKindStatus   = "status-update"
)

// Normalize parses one upstream data payload into zero or more canonical
// events. Malformed payloads and unknown frame kinds yield no events; they
// never abort the stream.
func Normalize(data []byte) []Event {
	var frame rpcFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil
	}

	if present(frame.Error) {
		return []Event{{Kind: KindError, Content: errorMessage(frame.Error)}}
	}

	body := data
	if present(frame.Result) {
		body = frame.Result
	}

	var event frameBody
	if err := json.Unmarshal(body, &event); err != nil {
		return nil
	}

	switch event.Kind {
	case frameKindMessage:
		return textEvents(event.Parts)

	case frameKindArtifact:
		if event.Artifact == nil {
			return nil
		}
		return textEvents(event.Artifact.Parts)

	case frameKindThought:
		if event.Text == "" {
			return nil
		}
		return []Event{{Kind: KindThought, Content: event.Text}}

	case frameKindStatus:
		// Status frames carry no plain text field; forward the whole frame
		// so the client still sees progress instead of silence.
		var compact bytes.Buffer
		if err := json.Compact(&compact, body); err != nil {
			return nil
		}
		return []Event{{Kind: KindThought, Content: compact.String()}}
	}

	return nil
}

func textEvents(parts []framePart) []Event {
	var events []Event
	for _, p := range parts {
		if !p.textual() || p.Text == "" {
			continue
		}
		events = append(events, Event{Kind: KindText, Content: p.Text})
	}
	return events
}

// errorMessage extracts a human-readable message from a JSON-RPC error,
// which may be a structured object, a bare string, or anything else.
func errorMessage(raw json.RawMessage) string {
	var body rpcErrorBody
	if err := json.Unmarshal(raw, &body); err == nil && body.Message != "" {
		return body.Message
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}
