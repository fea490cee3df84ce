package protocol

// ChatRequest is the outbound payload for one user turn: the conversation
// so far, minus the client-seeded greetings which are never replayed to
// the server.
type ChatRequest struct {
	Messages []Message `json:"messages"`
	// Genre is the selected topic tag, attached when the user picked one.
	Genre string `json:"genre,omitempty"`
	// ConversationID echoes the server-assigned identity on resumed
	// sessions.
	ConversationID string `json:"conversation_id,omitempty"`
}

// Ping is the liveness frame sent on the keepalive interval.
type Ping struct {
	Type string `json:"type"`
}

// NewPing builds a keepalive frame.
func NewPing() Ping {
	return Ping{Type: "ping"}
}

// HistoryRequest asks the server to replay the persisted conversation for
// the session identity carried on the connect URL.
type HistoryRequest struct {
	Type string `json:"type"`
}

// NewHistoryRequest builds a history replay request.
func NewHistoryRequest() HistoryRequest {
	return HistoryRequest{Type: "history_request"}
}
