package client

import "github.com/lawflow/streamchat/pkg/protocol"

// EventKind discriminates the events a session client surfaces to its UI.
type EventKind int

const (
	// EventState reports a connection-state change; dependents disable
	// input while the state is not open.
	EventState EventKind = iota
	// EventPartial reports a change to an in-flight turn's buffer.
	EventPartial
	// EventMessage reports a message appended to a log, user or
	// assistant.
	EventMessage
	// EventLog reports a wholesale log replacement (history replay or
	// reset).
	EventLog
	// EventNotice reports a server error for one-off display; it is not
	// part of any transcript.
	EventNotice
	// EventConversation reports a server-assigned session identity.
	EventConversation
)

// Event is one observable session change. Only the fields relevant to
// Kind are populated; Stream names the side in comparison mode and is
// empty otherwise.
type Event struct {
	Kind   EventKind
	Stream string

	State          State
	Fragment       string
	Partial        string
	Message        protocol.Message
	Messages       []protocol.Message
	Notice         string
	ConversationID string
}
