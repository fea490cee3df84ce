package protocol

import (
	"encoding/json"
	"fmt"
)

// FrameKind discriminates the inbound frame variants.
type FrameKind int

const (
	FrameUnknown FrameKind = iota
	FrameStart
	FrameToken
	FrameEnd
	FrameWelcome
	FrameHistory
	FrameError
	FramePong
	FrameConversationID
	FrameSystem
)

// String returns the string representation of FrameKind.
func (k FrameKind) String() string {
	switch k {
	case FrameStart:
		return "START"
	case FrameToken:
		return "TOKEN"
	case FrameEnd:
		return "END"
	case FrameWelcome:
		return "WELCOME"
	case FrameHistory:
		return "HISTORY"
	case FrameError:
		return "ERROR"
	case FramePong:
		return "PONG"
	case FrameConversationID:
		return "CONVERSATION_ID"
	case FrameSystem:
		return "SYSTEM"
	default:
		return "UNKNOWN"
	}
}

// Sentinel texts used by the bare-text wire dialect, where turn boundaries
// travel inside the text field instead of a type tag.
const (
	StartSentinel = "<start>"
	EndSentinel   = "<end>"
)

// Frame is one decoded inbound frame. Only the fields relevant to the
// frame's Kind are populated.
type Frame struct {
	Kind FrameKind

	// Text carries a token fragment (FrameToken), the full turn text when
	// the server sends it on the end frame (FrameEnd), a greeting
	// (FrameWelcome), or a system notice (FrameSystem).
	Text string

	// Streams carries per-stream text keyed by the stream's wire name
	// (e.g. with_data/without_data) in comparison mode. A stream absent
	// from the frame is absent from the map.
	Streams map[string]string

	// Records is the ordered prior conversation (FrameHistory).
	Records []HistoryRecord

	// ConversationID is the server-assigned session identity
	// (FrameConversationID).
	ConversationID string

	// ErrorMessage is the human-readable server error (FrameError).
	ErrorMessage string

	// ResponseType optionally classifies the upcoming turn (FrameStart).
	ResponseType string

	// Greeting marks the frame's text as the session greeting, letting
	// receivers deduplicate it without comparing text.
	Greeting bool
}

// Wire type tags of the typed dialect.
const (
	typeWelcome        = "welcome"
	typeStart          = "start"
	typeChunk          = "chunk"
	typeEnd            = "end"
	typeError          = "error"
	typePong           = "pong"
	typeHistory        = "history"
	typeSystem         = "system"
	typeConversationID = "conversation_id"
)

// reservedKeys are the envelope fields of the typed dialect; every other
// string-valued field on a welcome/chunk/end frame names a stream.
var reservedKeys = map[string]bool{
	"type":            true,
	"text":            true,
	"message":         true,
	"messages":        true,
	"conversation_id": true,
	"response_type":   true,
	"greeting":        true,
	"timestamp":       true,
}

// Decode maps a raw inbound payload to a typed Frame. It understands both
// wire dialects: the bare-text one ({"text": "<start>"|"<end>"|fragment})
// and the tagged one ({"type": ..., ...}). Decoding fails closed: a
// malformed payload yields an error and a zero Frame, never a partially
// populated one.
func Decode(data []byte) (Frame, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Frame{}, fmt.Errorf("malformed frame: %w", err)
	}

	if raw, ok := fields["type"]; ok {
		var tag string
		if err := json.Unmarshal(raw, &tag); err != nil {
			return Frame{}, fmt.Errorf("malformed frame type: %w", err)
		}
		return decodeTagged(tag, fields)
	}

	if raw, ok := fields["text"]; ok {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return Frame{}, fmt.Errorf("malformed frame text: %w", err)
		}
		switch text {
		case StartSentinel:
			return Frame{Kind: FrameStart}, nil
		case EndSentinel:
			return Frame{Kind: FrameEnd}, nil
		default:
			return Frame{Kind: FrameToken, Text: text}, nil
		}
	}

	return Frame{}, fmt.Errorf("frame has neither type nor text")
}

func decodeTagged(tag string, fields map[string]json.RawMessage) (Frame, error) {
	f := Frame{}
	if err := decodeString(fields, "text", &f.Text); err != nil {
		return Frame{}, err
	}
	if err := decodeBool(fields, "greeting", &f.Greeting); err != nil {
		return Frame{}, err
	}

	switch tag {
	case typeStart:
		f.Kind = FrameStart
		if err := decodeString(fields, "response_type", &f.ResponseType); err != nil {
			return Frame{}, err
		}
	case typeChunk:
		f.Kind = FrameToken
		f.Streams = collectStreams(fields)
	case typeEnd:
		f.Kind = FrameEnd
		f.Streams = collectStreams(fields)
	case typeWelcome:
		f.Kind = FrameWelcome
		f.Greeting = true
		f.Streams = collectStreams(fields)
	case typeHistory:
		f.Kind = FrameHistory
		if raw, ok := fields["messages"]; ok {
			if err := json.Unmarshal(raw, &f.Records); err != nil {
				return Frame{}, fmt.Errorf("malformed history records: %w", err)
			}
		}
	case typeError:
		f.Kind = FrameError
		if err := decodeString(fields, "message", &f.ErrorMessage); err != nil {
			return Frame{}, err
		}
	case typePong:
		f.Kind = FramePong
	case typeSystem:
		f.Kind = FrameSystem
		if err := decodeString(fields, "message", &f.Text); err != nil {
			return Frame{}, err
		}
	case typeConversationID:
		f.Kind = FrameConversationID
		if err := decodeString(fields, "conversation_id", &f.ConversationID); err != nil {
			return Frame{}, err
		}
	default:
		// Unknown tags are tolerated so servers can add frame types
		// without breaking older clients.
		f = Frame{Kind: FrameUnknown}
	}
	return f, nil
}

// collectStreams gathers the non-envelope string fields of a frame, which
// name the logical streams in comparison mode.
func collectStreams(fields map[string]json.RawMessage) map[string]string {
	var streams map[string]string
	for key, raw := range fields {
		if reservedKeys[key] {
			continue
		}
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			continue
		}
		if streams == nil {
			streams = make(map[string]string)
		}
		streams[key] = value
	}
	return streams
}

func decodeString(fields map[string]json.RawMessage, key string, dst *string) error {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("malformed frame field %q: %w", key, err)
	}
	return nil
}

func decodeBool(fields map[string]json.RawMessage, key string, dst *bool) error {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("malformed frame field %q: %w", key, err)
	}
	return nil
}
