package client

import (
	"fmt"
	"net/url"
	"strings"
)

// Mode selects the logical duplex endpoint.
type Mode int

const (
	// ModeGuest is the unauthenticated single-stream chat.
	ModeGuest Mode = iota
	// ModeAuth is the authenticated single-stream chat, parameterized by
	// bearer token and optional conversation identifier.
	ModeAuth
	// ModeComparison is the context-augmented vs. plain dual stream.
	ModeComparison
	// ModeRagComparison is the retrieval-augmented vs. plain dual stream.
	ModeRagComparison
)

// Path returns the endpoint path for the mode.
func (m Mode) Path() string {
	switch m {
	case ModeAuth:
		return "/ws/chat"
	case ModeComparison:
		return "/ws/comparison"
	case ModeRagComparison:
		return "/ws/comparison/rag"
	default:
		return "/chat"
	}
}

// String returns the string representation of Mode.
func (m Mode) String() string {
	switch m {
	case ModeGuest:
		return "GUEST"
	case ModeAuth:
		return "AUTH"
	case ModeComparison:
		return "COMPARISON"
	case ModeRagComparison:
		return "RAG_COMPARISON"
	default:
		return "UNKNOWN"
	}
}

// Endpoint builds the websocket URL for a mode from an http(s) or ws(s)
// base URL, mirroring the scheme (https becomes wss). Token and
// conversation identifier are carried as query parameters in
// authenticated mode only.
func Endpoint(base string, mode Mode, token, conversationID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	u.Path = strings.TrimSuffix(u.Path, "/") + mode.Path()

	if mode == ModeAuth {
		q := u.Query()
		if token != "" {
			q.Set("token", token)
		}
		if conversationID != "" {
			q.Set("conversation_id", conversationID)
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
