// Package protocol defines the wire format spoken over the chat socket:
// the Message record shared by client and server, the inbound frame
// variants, and the outbound request payloads.
package protocol

import "time"

// Speaker identifies who produced a message.
type Speaker int

const (
	SpeakerAssistant Speaker = 0
	SpeakerUser      Speaker = 1
)

// String returns the string representation of Speaker.
func (s Speaker) String() string {
	switch s {
	case SpeakerAssistant:
		return "ASSISTANT"
	case SpeakerUser:
		return "USER"
	default:
		return "UNKNOWN"
	}
}

// History record roles as they appear in history frames.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of the conversation log. Messages are immutable
// once appended; the log itself is append-only during a session.
type Message struct {
	SpeakerID Speaker `json:"speakerId"`
	Text      string  `json:"text"`
	// Timestamp is milliseconds since the Unix epoch, zero when the
	// producing endpoint does not stamp its messages.
	Timestamp int64 `json:"timestamp,omitempty"`
}

// NewMessage builds an unstamped message.
func NewMessage(speaker Speaker, text string) Message {
	return Message{SpeakerID: speaker, Text: text}
}

// NewStampedMessage builds a message stamped with the current time.
func NewStampedMessage(speaker Speaker, text string) Message {
	return Message{SpeakerID: speaker, Text: text, Timestamp: time.Now().UnixMilli()}
}

// HistoryRecord is one persisted turn as carried by a history frame.
type HistoryRecord struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Speaker maps the record role onto a log speaker. Unknown roles map to
// the assistant, mirroring how the log treats any non-user text.
func (r HistoryRecord) Speaker() Speaker {
	if r.Role == RoleUser {
		return SpeakerUser
	}
	return SpeakerAssistant
}
