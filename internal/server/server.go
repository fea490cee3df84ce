// Package server implements a scriptable stand-in for the language-model
// service: it speaks the chat wire protocol on all four duplex endpoints
// so the clients in internal/client can be exercised locally and in
// integration tests. It generates no language; replies come from a
// pluggable Responder.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/rs/zerolog"

	"github.com/lawflow/streamchat/pkg/protocol"
)

const defaultChunkSize = 6

// Config configures the mock server.
type Config struct {
	// Addr is the listen address, e.g. ":8080" or ":0".
	Addr string
	// Welcome, when non-empty, is the greeting turn sent on every
	// connect. On single-stream endpoints it is streamed like a normal
	// turn, which is why clients need the greeting guard.
	Welcome string
	// Responder produces replies; nil falls back to EchoResponder.
	Responder Responder
	// ChunkSize is the number of runes per token frame.
	ChunkSize int
	// StreamDelay paces token frames for demo realism; zero streams
	// at full speed.
	StreamDelay time.Duration
	Logger      zerolog.Logger
}

// Server is the mock chat server.
type Server struct {
	cfg      Config
	registry *Registry
	listener net.Listener
	server   *http.Server
	quit     chan struct{}
	wg       sync.WaitGroup
}

// New creates a stopped server.
func New(cfg Config) *Server {
	if cfg.Responder == nil {
		cfg.Responder = EchoResponder{}
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	return &Server{
		cfg:      cfg,
		registry: NewRegistry(),
		quit:     make(chan struct{}),
	}
}

// Start listens and serves until Stop. It blocks; run it in a goroutine
// when the caller needs to keep going.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc("/chat", s.handleGuest)
	mux.HandleFunc("/ws/chat", s.handleAuth)
	mux.HandleFunc("/ws/comparison", s.handleComparison)
	mux.HandleFunc("/ws/comparison/rag", s.handleRagComparison)

	s.server = &http.Server{Handler: mux}

	s.cfg.Logger.Info().Str("addr", listener.Addr().String()).Msg("mock chat server started")

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server failed: %w", err)
	case <-s.quit:
		return nil
	}
}

// Stop shuts the server down and waits for connection handlers.
func (s *Server) Stop() {
	close(s.quit)
	if s.server != nil {
		s.server.Shutdown(context.Background())
	}
	s.wg.Wait()
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// Registry exposes the per-conversation memory, mainly for tests.
func (s *Server) Registry() *Registry {
	return s.registry
}

func (s *Server) upgrade(w http.ResponseWriter, r *http.Request) (*frameConn, bool) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.cfg.Logger.Warn().Err(err).Msg("websocket upgrade failed")
		return nil, false
	}
	return newFrameConn(conn), true
}

func (s *Server) handleGuest(w http.ResponseWriter, r *http.Request) {
	fc, ok := s.upgrade(w, r)
	if !ok {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer fc.Close()
		s.serveChat(fc, false, "")
	}()
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	conversationID := r.URL.Query().Get("conversation_id")
	fc, ok := s.upgrade(w, r)
	if !ok {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer fc.Close()
		if token == "" {
			fc.WriteJSON(map[string]string{"type": "error", "message": "missing token"})
			return
		}
		s.serveChat(fc, true, conversationID)
	}()
}

func (s *Server) handleComparison(w http.ResponseWriter, r *http.Request) {
	fc, ok := s.upgrade(w, r)
	if !ok {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer fc.Close()
		s.serveComparison(fc, "with_data", "without_data", false)
	}()
}

func (s *Server) handleRagComparison(w http.ResponseWriter, r *http.Request) {
	fc, ok := s.upgrade(w, r)
	if !ok {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer fc.Close()
		s.serveComparison(fc, "with_rag", "without_rag", true)
	}()
}

// serveChat runs one single-stream connection: a streamed greeting turn,
// then one streamed reply per user turn. Authenticated sessions get a
// conversation identity on their first turn and history replay on
// request.
func (s *Server) serveChat(fc *frameConn, authed bool, conversationID string) {
	if s.cfg.Welcome != "" {
		s.streamText(fc, s.cfg.Welcome)
	}
	for {
		data, err := fc.ReadRaw()
		if err != nil {
			return
		}
		in, err := decodeInbound(data)
		if err != nil {
			s.cfg.Logger.Warn().Err(err).Msg("bad request payload")
			fc.WriteJSON(map[string]string{"type": "error", "message": "malformed request"})
			continue
		}
		switch in.kind {
		case inboundPing:
			fc.WriteJSON(map[string]string{"type": "pong"})

		case inboundHistory:
			fc.WriteJSON(map[string]any{
				"type":     "history",
				"messages": s.registry.History(conversationID),
			})

		case inboundTurn:
			if len(in.req.Messages) == 0 {
				fc.WriteJSON(map[string]string{"type": "error", "message": "empty conversation"})
				continue
			}
			if authed && conversationID == "" {
				conversationID = s.registry.Create()
				fc.WriteJSON(map[string]string{
					"type":            "conversation_id",
					"conversation_id": conversationID,
				})
			}
			last := in.req.Messages[len(in.req.Messages)-1]
			s.registry.Append(conversationID, protocol.RoleUser, last.Text)

			reply := s.cfg.Responder.Reply("", in.req.Messages, in.req.Genre)
			s.streamText(fc, reply)
			s.registry.Append(conversationID, protocol.RoleAssistant, reply)
		}
	}
}

// serveComparison runs one dual-stream connection, answering each user
// turn on both named streams over a single start/chunk/end cycle.
func (s *Server) serveComparison(fc *frameConn, primary, secondary string, rag bool) {
	if rag {
		fc.WriteJSON(map[string]string{"type": "system", "message": "retrieval index ready"})
	}
	if s.cfg.Welcome != "" {
		fc.WriteJSON(map[string]string{
			"type":    "welcome",
			primary:   s.cfg.Welcome,
			secondary: s.cfg.Welcome,
		})
	}
	for {
		data, err := fc.ReadRaw()
		if err != nil {
			return
		}
		in, err := decodeInbound(data)
		if err != nil {
			s.cfg.Logger.Warn().Err(err).Msg("bad request payload")
			fc.WriteJSON(map[string]string{"type": "error", "message": "malformed request"})
			continue
		}
		switch in.kind {
		case inboundPing:
			fc.WriteJSON(map[string]string{"type": "pong"})

		case inboundHistory:
			fc.WriteJSON(map[string]string{"type": "error", "message": "history is not available in comparison mode"})

		case inboundTurn:
			start := map[string]string{"type": "start"}
			if rag {
				start["response_type"] = "answer"
			}
			fc.WriteJSON(start)

			primaryReply := s.cfg.Responder.Reply(primary, in.req.Messages, in.req.Genre)
			secondaryReply := s.cfg.Responder.Reply(secondary, in.req.Messages, in.req.Genre)
			primaryChunks := splitChunks(primaryReply, s.cfg.ChunkSize)
			secondaryChunks := splitChunks(secondaryReply, s.cfg.ChunkSize)

			for i := 0; i < max(len(primaryChunks), len(secondaryChunks)); i++ {
				frame := map[string]string{"type": "chunk"}
				if i < len(primaryChunks) {
					frame[primary] = primaryChunks[i]
				}
				if i < len(secondaryChunks) {
					frame[secondary] = secondaryChunks[i]
				}
				fc.WriteJSON(frame)
				s.pace()
			}

			fc.WriteJSON(map[string]string{
				"type":    "end",
				primary:   primaryReply,
				secondary: secondaryReply,
			})
		}
	}
}

// streamText sends one turn in the bare-text dialect: start sentinel,
// token fragments, end sentinel.
func (s *Server) streamText(fc *frameConn, text string) {
	fc.WriteJSON(map[string]string{"text": protocol.StartSentinel})
	for _, chunk := range splitChunks(text, s.cfg.ChunkSize) {
		fc.WriteJSON(map[string]string{"text": chunk})
		s.pace()
	}
	fc.WriteJSON(map[string]string{"text": protocol.EndSentinel})
}

func (s *Server) pace() {
	if s.cfg.StreamDelay > 0 {
		time.Sleep(s.cfg.StreamDelay)
	}
}

// splitChunks cuts text into rune groups of the given size.
func splitChunks(text string, size int) []string {
	runes := []rune(text)
	var out []string
	for i := 0; i < len(runes); i += size {
		end := min(i+size, len(runes))
		out = append(out, string(runes[i:end]))
	}
	return out
}

type inboundKind int

const (
	inboundTurn inboundKind = iota
	inboundPing
	inboundHistory
)

type inbound struct {
	kind inboundKind
	req  protocol.ChatRequest
}

// decodeInbound parses a client payload: a bare message array (the oldest
// client dialect), a {messages, genre, conversation_id} object, a ping,
// or a history request.
func decodeInbound(data []byte) (inbound, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var messages []protocol.Message
		if err := json.Unmarshal(trimmed, &messages); err != nil {
			return inbound{}, fmt.Errorf("malformed message array: %w", err)
		}
		return inbound{kind: inboundTurn, req: protocol.ChatRequest{Messages: messages}}, nil
	}

	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return inbound{}, fmt.Errorf("malformed request: %w", err)
	}
	switch probe.Type {
	case "ping":
		return inbound{kind: inboundPing}, nil
	case "history_request":
		return inbound{kind: inboundHistory}, nil
	case "":
		var req protocol.ChatRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return inbound{}, fmt.Errorf("malformed request: %w", err)
		}
		return inbound{kind: inboundTurn, req: req}, nil
	default:
		return inbound{}, fmt.Errorf("unknown request type %q", probe.Type)
	}
}
