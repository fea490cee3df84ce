package client

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lawflow/streamchat/internal/session"
	"github.com/lawflow/streamchat/pkg/protocol"
)

// CompareConfig configures a dual-stream comparison client.
type CompareConfig struct {
	// BaseURL is the server root, http(s) or ws(s).
	BaseURL string
	// Mode selects the comparison variant; ModeComparison and
	// ModeRagComparison are valid.
	Mode Mode

	KeepaliveInterval time.Duration
	ReconnectDelay    time.Duration
	Logger            zerolog.Logger
}

// CompareClient drives a dual-stream comparison session: one socket, two
// logical streams kept in lockstep for each user turn. Same concurrency
// shape as ChatClient — a single event-loop goroutine owns all state.
type CompareClient struct {
	cfg     CompareConfig
	manager *Manager

	mu      sync.Mutex
	session *session.DualSession

	events  chan Event
	submits chan string
	resets  chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCompare creates a stopped comparison client.
func NewCompare(cfg CompareConfig) *CompareClient {
	keys := session.DataStreams
	if cfg.Mode == ModeRagComparison {
		keys = session.RagStreams
	}
	c := &CompareClient{
		cfg:     cfg,
		session: session.NewDual(keys),
		events:  make(chan Event, 32),
		submits: make(chan string, 1),
		resets:  make(chan struct{}, 1),
	}
	c.manager = NewManager(ManagerConfig{
		URL: func() (string, error) {
			return Endpoint(cfg.BaseURL, cfg.Mode, "", "")
		},
		KeepaliveInterval: cfg.KeepaliveInterval,
		ReconnectDelay:    cfg.ReconnectDelay,
		Logger:            cfg.Logger,
	})
	return c
}

// Start connects and begins processing.
func (c *CompareClient) Start(ctx context.Context) {
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.manager.Start(c.ctx)
	c.wg.Add(1)
	go c.loop()
}

// Stop tears the session down and closes the event channel.
func (c *CompareClient) Stop() {
	c.cancel()
	c.manager.Stop()
	c.wg.Wait()
}

// Events returns the channel of observable session changes; comparison
// events carry the stream name they concern.
func (c *CompareClient) Events() <-chan Event {
	return c.events
}

// Keys returns the stream names of this session.
func (c *CompareClient) Keys() session.StreamKeys {
	return c.session.Keys()
}

// Submit queues one user turn, mirrored onto both transcripts.
func (c *CompareClient) Submit(text string) {
	select {
	case c.submits <- text:
	case <-c.ctx.Done():
	}
}

// Reset queues a wipe of both transcripts. The socket stays up.
func (c *CompareClient) Reset() {
	select {
	case c.resets <- struct{}{}:
	case <-c.ctx.Done():
	}
}

// State returns the current connection state.
func (c *CompareClient) State() State {
	return c.manager.State()
}

// Messages returns a snapshot of one side's transcript.
func (c *CompareClient) Messages(key string) []protocol.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Messages(key)
}

// PartialText returns one side's in-flight turn text so far.
func (c *CompareClient) PartialText(key string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.PartialText(key)
}

// Awaiting reports whether a turn is in flight.
func (c *CompareClient) Awaiting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Awaiting()
}

// ResponseType returns the server's classification of the latest turn,
// when the variant provides one.
func (c *CompareClient) ResponseType() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.ResponseType()
}

func (c *CompareClient) loop() {
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

		case text := <-c.submits:
			c.submit(text)

		case <-c.resets:
			c.mu.Lock()
			c.session.Reset()
			c.mu.Unlock()
			for _, key := range c.session.Keys().Each() {
				c.emit(Event{Kind: EventLog, Stream: key})
			}

		case <-c.ctx.Done():
			return
		}
	}
}

func (c *CompareClient) submit(text string) {
	if c.manager.State() != StateOpen {
		c.cfg.Logger.Debug().Msg("dropping submission while not connected")
		return
	}
	c.mu.Lock()
	req, ok := c.session.Submit(text)
	var last protocol.Message
	if ok {
		messages := c.session.Messages(c.session.Keys().Primary)
		last = messages[len(messages)-1]
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	for _, key := range c.session.Keys().Each() {
		c.emit(Event{Kind: EventMessage, Stream: key, Message: last})
	}
	if err := c.manager.Send(req); err != nil {
		c.cfg.Logger.Warn().Err(err).Msg("failed to send turn")
	}
}

func (c *CompareClient) apply(f protocol.Frame) {
	keys := c.session.Keys().Each()

	c.mu.Lock()
	before := make(map[string]int, len(keys))
	for _, key := range keys {
		before[key] = c.session.Len(key)
	}
	change := c.session.HandleFrame(f)

	var events []Event
	switch change {
	case session.PartialChanged:
		for _, key := range keys {
			fragment, touched := f.Streams[key]
			if f.Kind == protocol.FrameStart {
				touched = true
			}
			if !touched {
				continue
			}
			events = append(events, Event{
				Kind:     EventPartial,
				Stream:   key,
				Fragment: fragment,
				Partial:  c.session.PartialText(key),
			})
		}
	case session.TurnFinalized:
		for _, key := range keys {
			if c.session.Len(key) == before[key] {
				continue
			}
			messages := c.session.Messages(key)
			events = append(events, Event{
				Kind:    EventMessage,
				Stream:  key,
				Message: messages[len(messages)-1],
			})
		}
	case session.NoticeRaised:
		events = append(events, Event{Kind: EventNotice, Notice: c.session.Notice()})
	}
	c.mu.Unlock()

	for _, ev := range events {
		c.emit(ev)
	}
}

func (c *CompareClient) emit(ev Event) {
	select {
	case c.events <- ev:
	case <-c.ctx.Done():
	}
}
