package server

import (
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/lawflow/streamchat/pkg/protocol"
)

// Registry holds per-conversation memory for the lifetime of the server
// process: enough for history replay and reconnect testing, not a store.
type Registry struct {
	mu            sync.RWMutex
	conversations map[string][]protocol.HistoryRecord
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{conversations: make(map[string][]protocol.HistoryRecord)}
}

// Create allocates a fresh conversation identity.
func (r *Registry) Create() string {
	id := uuid.NewString()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conversations[id] = nil
	return id
}

// Append records one turn of a conversation.
func (r *Registry) Append(id, role, content string) {
	if id == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conversations[id] = append(r.conversations[id], protocol.HistoryRecord{Role: role, Content: content})
}

// History returns the recorded turns of a conversation in order.
func (r *Registry) History(id string) []protocol.HistoryRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.conversations[id])
}

// Count returns the number of known conversations.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conversations)
}
