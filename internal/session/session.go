package session

import (
	"slices"
	"strings"

	"github.com/lawflow/streamchat/pkg/protocol"
)

// Change describes what a frame did to the session, so the owning client
// knows which event to surface.
type Change int

const (
	// NoChange means the frame was a no-op (pong, system, unknown).
	NoChange Change = iota
	// PartialChanged means the in-flight buffer changed.
	PartialChanged
	// TurnFinalized means a message was appended to the log.
	TurnFinalized
	// HistoryReplaced means the log was rebuilt from persisted history.
	HistoryReplaced
	// NoticeRaised means the server reported an error for the caller to
	// surface as a transient notice.
	NoticeRaised
	// ConversationAssigned means the server issued a session identity.
	ConversationAssigned
)

// Config seeds a single-stream session.
type Config struct {
	// Intro is the first seeded assistant message (the service
	// disclaimer). Empty means no intro.
	Intro string
	// Welcome is the second seeded assistant message. It doubles as the
	// greeting the accumulator deduplicates after history replay.
	Welcome string
	// Genre is the selected topic tag attached to outbound turns.
	Genre string
	// ConversationID resumes a known session when non-empty.
	ConversationID string
}

// Session is the single-stream session state: the ordered message log, the
// awaiting-response flag, and the session metadata threaded into outbound
// requests. Not safe for concurrent use; the owning client serializes
// access through its event loop.
type Session struct {
	seed           []protocol.Message
	welcome        string
	genre          string
	conversationID string

	log      []protocol.Message
	acc      *Accumulator
	awaiting bool
	notice   string
}

// New builds a session seeded with the configured greeting messages.
func New(cfg Config) *Session {
	var seed []protocol.Message
	if cfg.Intro != "" {
		seed = append(seed, protocol.NewMessage(protocol.SpeakerAssistant, cfg.Intro))
	}
	if cfg.Welcome != "" {
		seed = append(seed, protocol.NewMessage(protocol.SpeakerAssistant, cfg.Welcome))
	}
	return &Session{
		seed:           seed,
		welcome:        cfg.Welcome,
		genre:          cfg.Genre,
		conversationID: cfg.ConversationID,
		log:            slices.Clone(seed),
		acc:            NewAccumulator(cfg.Welcome),
	}
}

// Submit stages one outbound user turn: it appends the user message to the
// log, sets the awaiting flag, and builds the request payload as the log
// minus the seeded greetings. ok is false, with no state change, when text
// is blank or a turn is already in flight.
func (s *Session) Submit(text string) (req protocol.ChatRequest, ok bool) {
	if strings.TrimSpace(text) == "" || s.awaiting {
		return protocol.ChatRequest{}, false
	}
	s.log = append(s.log, protocol.NewMessage(protocol.SpeakerUser, text))
	s.awaiting = true
	return protocol.ChatRequest{
		Messages:       slices.Clone(s.log[len(s.seed):]),
		Genre:          s.genre,
		ConversationID: s.conversationID,
	}, true
}

// HandleFrame routes one decoded frame through the state machine and
// reports what changed.
func (s *Session) HandleFrame(f protocol.Frame) Change {
	switch f.Kind {
	case protocol.FrameStart:
		s.acc.Start()
		return PartialChanged

	case protocol.FrameToken:
		s.acc.Append(f.Text)
		return PartialChanged

	case protocol.FrameEnd:
		s.awaiting = false
		text, suppressed := s.acc.Finalize(f.Text, f.Greeting)
		if suppressed {
			return PartialChanged
		}
		s.log = append(s.log, protocol.NewMessage(protocol.SpeakerAssistant, text))
		return TurnFinalized

	case protocol.FrameWelcome:
		text, suppressed := s.acc.Finalize(f.Text, true)
		if suppressed || text == "" {
			return NoChange
		}
		s.log = append(s.log, protocol.NewMessage(protocol.SpeakerAssistant, text))
		return TurnFinalized

	case protocol.FrameHistory:
		s.hydrate(f.Records)
		return HistoryReplaced

	case protocol.FrameError:
		s.awaiting = false
		s.notice = f.ErrorMessage
		return NoticeRaised

	case protocol.FrameConversationID:
		s.conversationID = f.ConversationID
		return ConversationAssigned

	default:
		return NoChange
	}
}

// hydrate rebuilds the log wholesale from persisted history: the seeded
// greetings followed by each record, skipping a persisted copy of the
// greeting while the guard is armed so it is not displayed twice.
func (s *Session) hydrate(records []protocol.HistoryRecord) {
	log := slices.Clone(s.seed)
	guard := s.welcome != ""
	for _, r := range records {
		if guard && r.Content == s.welcome {
			continue
		}
		log = append(log, protocol.NewMessage(r.Speaker(), r.Content))
		if r.Content == s.welcome {
			guard = true
		}
	}
	s.log = log
	s.acc.Reset()
}

// Reset returns the session to its freshly seeded state. It does not touch
// the connection.
func (s *Session) Reset() {
	s.log = slices.Clone(s.seed)
	s.acc.Reset()
	s.awaiting = false
	s.notice = ""
	s.conversationID = ""
}

// Messages returns a snapshot of the message log.
func (s *Session) Messages() []protocol.Message {
	return slices.Clone(s.log)
}

// Partial returns a snapshot of the in-flight fragments.
func (s *Session) Partial() []string {
	return s.acc.Parts()
}

// PartialText returns the in-flight turn text so far.
func (s *Session) PartialText() string {
	return s.acc.Text()
}

// Awaiting reports whether a turn is in flight.
func (s *Session) Awaiting() bool {
	return s.awaiting
}

// Notice returns the last server-reported error text.
func (s *Session) Notice() string {
	return s.notice
}

// ConversationID returns the current session identity, empty for a new or
// guest session.
func (s *Session) ConversationID() string {
	return s.conversationID
}

// SetGenre changes the topic tag attached to subsequent outbound turns.
func (s *Session) SetGenre(genre string) {
	s.genre = genre
}
