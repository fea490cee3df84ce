package client

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lawflow/streamchat/internal/session"
	"github.com/lawflow/streamchat/pkg/protocol"
)

// ChatConfig configures a single-stream session client.
type ChatConfig struct {
	// BaseURL is the server root, http(s) or ws(s).
	BaseURL string
	// Tokens supplies the bearer token; nil or an empty store means
	// guest mode.
	Tokens TokenStore
	// ConversationID resumes a known session.
	ConversationID string
	// Genre is the selected topic tag.
	Genre string
	// Intro and Welcome seed the message log.
	Intro   string
	Welcome string

	KeepaliveInterval time.Duration
	ReconnectDelay    time.Duration
	Logger            zerolog.Logger
}

// ChatClient drives one single-stream chat session: it owns a Manager for
// the socket and a Session for the state, and funnels every mutation
// through one event-loop goroutine so frames, submissions, and resets are
// processed strictly in order. Observable changes are delivered on
// Events; the consumer must drain the channel until Stop.
type ChatClient struct {
	cfg     ChatConfig
	manager *Manager

	mu      sync.Mutex
	session *session.Session

	events  chan Event
	submits chan string
	resets  chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewChat creates a stopped chat client.
func NewChat(cfg ChatConfig) *ChatClient {
	c := &ChatClient{
		cfg: cfg,
		session: session.New(session.Config{
			Intro:          cfg.Intro,
			Welcome:        cfg.Welcome,
			Genre:          cfg.Genre,
			ConversationID: cfg.ConversationID,
		}),
		events:  make(chan Event, 32),
		submits: make(chan string, 1),
		resets:  make(chan struct{}, 1),
	}
	c.manager = NewManager(ManagerConfig{
		URL: func() (string, error) {
			token, mode := c.credentials()
			return Endpoint(cfg.BaseURL, mode, token, c.ConversationID())
		},
		KeepaliveInterval: cfg.KeepaliveInterval,
		ReconnectDelay:    cfg.ReconnectDelay,
		Logger:            cfg.Logger,
	})
	return c
}

// Start connects and begins processing. The client runs until Stop or
// until the parent context is cancelled.
func (c *ChatClient) Start(ctx context.Context) {
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.manager.Start(c.ctx)
	c.wg.Add(1)
	go c.loop()
}

// Stop tears the session down: pending reconnects and the keepalive are
// cancelled, the socket closes, and the event channel is closed once the
// loop drains.
func (c *ChatClient) Stop() {
	c.cancel()
	c.manager.Stop()
	c.wg.Wait()
}

// Events returns the channel of observable session changes.
func (c *ChatClient) Events() <-chan Event {
	return c.events
}

// Submit queues one user turn. Blank text, an in-flight turn, or a closed
// connection make it a no-op; at most one outbound send happens per
// accepted submission.
func (c *ChatClient) Submit(text string) {
	select {
	case c.submits <- text:
	case <-c.ctx.Done():
	}
}

// Reset queues a return to the freshly seeded session state. The socket
// stays up.
func (c *ChatClient) Reset() {
	select {
	case c.resets <- struct{}{}:
	case <-c.ctx.Done():
	}
}

// SetGenre changes the topic tag attached to subsequent turns.
func (c *ChatClient) SetGenre(genre string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.SetGenre(genre)
}

// State returns the current connection state.
func (c *ChatClient) State() State {
	return c.manager.State()
}

// Messages returns a snapshot of the message log.
func (c *ChatClient) Messages() []protocol.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Messages()
}

// PartialText returns the in-flight turn text so far.
func (c *ChatClient) PartialText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.PartialText()
}

// Awaiting reports whether a turn is in flight.
func (c *ChatClient) Awaiting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Awaiting()
}

// ConversationID returns the current session identity, empty for new or
// guest sessions.
func (c *ChatClient) ConversationID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.ConversationID()
}

func (c *ChatClient) credentials() (string, Mode) {
	if c.cfg.Tokens != nil {
		if token, ok := c.cfg.Tokens.Token(); ok {
			return token, ModeAuth
		}
	}
	return "", ModeGuest
}

// loop is the single goroutine that mutates session state. Frames,
// submissions, and resets are handled to completion, one at a time, in
// arrival order.
func (c *ChatClient) loop() {
	defer c.wg.Done()
	defer close(c.events)
	for {
		select {
		case payload, ok := <-c.manager.Frames():
			if !ok {
				return
			}
			frame, err := protocol.Decode(payload)
			if err != nil {
				c.cfg.Logger.Warn().Err(err).Msg("dropping malformed frame")
				continue
			}
			c.apply(frame)

		case st, ok := <-c.manager.States():
			if !ok {
				return
			}
			c.emit(Event{Kind: EventState, State: st})
			if st == StateOpen {
				c.requestHistory()
			}

		case text := <-c.submits:
			c.submit(text)

		case <-c.resets:
			c.mu.Lock()
			c.session.Reset()
			messages := c.session.Messages()
			c.mu.Unlock()
			c.emit(Event{Kind: EventLog, Messages: messages})

		case <-c.ctx.Done():
			return
		}
	}
}

// requestHistory asks for a replay after each successful (re)connect of a
// resumed authenticated session.
func (c *ChatClient) requestHistory() {
	if _, mode := c.credentials(); mode != ModeAuth {
		return
	}
	if c.ConversationID() == "" {
		return
	}
	if err := c.manager.Send(protocol.NewHistoryRequest()); err != nil {
		c.cfg.Logger.Warn().Err(err).Msg("history request failed")
	}
}

func (c *ChatClient) submit(text string) {
	if c.manager.State() != StateOpen {
		c.cfg.Logger.Debug().Msg("dropping submission while not connected")
		return
	}
	c.mu.Lock()
	req, ok := c.session.Submit(text)
	var last protocol.Message
	if ok {
		messages := c.session.Messages()
		last = messages[len(messages)-1]
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	c.emit(Event{Kind: EventMessage, Message: last})
	if err := c.manager.Send(req); err != nil {
		c.cfg.Logger.Warn().Err(err).Msg("failed to send turn")
	}
}

func (c *ChatClient) apply(f protocol.Frame) {
	c.mu.Lock()
	change := c.session.HandleFrame(f)
	var ev Event
	switch change {
	case session.PartialChanged:
		ev = Event{Kind: EventPartial, Fragment: f.Text, Partial: c.session.PartialText()}
	case session.TurnFinalized:
		messages := c.session.Messages()
		ev = Event{Kind: EventMessage, Message: messages[len(messages)-1]}
	case session.HistoryReplaced:
		ev = Event{Kind: EventLog, Messages: c.session.Messages()}
	case session.NoticeRaised:
		ev = Event{Kind: EventNotice, Notice: c.session.Notice()}
	case session.ConversationAssigned:
		ev = Event{Kind: EventConversation, ConversationID: c.session.ConversationID()}
	default:
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.emit(ev)
}

func (c *ChatClient) emit(ev Event) {
	select {
	case c.events <- ev:
	case <-c.ctx.Done():
	}
}
