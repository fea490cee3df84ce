package session

import (
	"reflect"
	"testing"

	"github.com/lawflow/streamchat/pkg/protocol"
)

const (
	testIntro   = "注意事項をお読みください。"
	testWelcome = "こんにちは。ご相談やご質問があればお気軽にお知らせください。"
)

func newTestSession() *Session {
	return New(Config{Intro: testIntro, Welcome: testWelcome})
}

func texts(messages []protocol.Message) []string {
	out := make([]string, len(messages))
	for i, m := range messages {
		out[i] = m.Text
	}
	return out
}

func TestSession_SeededGreetings(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want []string
	}{
		{name: "intro and welcome", cfg: Config{Intro: testIntro, Welcome: testWelcome}, want: []string{testIntro, testWelcome}},
		{name: "intro only", cfg: Config{Intro: testIntro}, want: []string{testIntro}},
		{name: "no seeds", cfg: Config{}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.cfg)
			got := texts(s.Messages())
			if len(got) != len(tt.want) {
				t.Fatalf("seeded log = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("seed[%d] = %q, want %q", i, got[i], tt.want[i])
				}
				if s.Messages()[i].SpeakerID != protocol.SpeakerAssistant {
					t.Errorf("seed[%d] speaker = %v, want assistant", i, s.Messages()[i].SpeakerID)
				}
			}
		})
	}
}

func TestSession_SubmitAndStreamTurn(t *testing.T) {
	s := newTestSession()

	req, ok := s.Submit("逮捕されそうです")
	if !ok {
		t.Fatal("Submit() rejected a valid turn")
	}
	if !s.Awaiting() {
		t.Error("Awaiting() = false after Submit")
	}

	log := s.Messages()
	last := log[len(log)-1]
	if last.SpeakerID != protocol.SpeakerUser || last.Text != "逮捕されそうです" {
		t.Errorf("last log entry = %+v, want user message", last)
	}

	// The payload is the log minus the seeded greetings, ending with the
	// new user message.
	if len(req.Messages) != 1 {
		t.Fatalf("payload carries %d messages, want 1", len(req.Messages))
	}
	sent := req.Messages[len(req.Messages)-1]
	if sent.SpeakerID != protocol.SpeakerUser || sent.Text != "逮捕されそうです" {
		t.Errorf("payload tail = %+v, want the submitted message", sent)
	}

	before := len(s.Messages())
	for _, f := range []protocol.Frame{
		{Kind: protocol.FrameStart},
		{Kind: protocol.FrameToken, Text: "対応"},
		{Kind: protocol.FrameToken, Text: "方法"},
	} {
		if got := s.HandleFrame(f); got != PartialChanged {
			t.Fatalf("HandleFrame(%v) = %v, want PartialChanged", f.Kind, got)
		}
	}
	if got := s.PartialText(); got != "対応方法" {
		t.Errorf("PartialText() = %q, want %q", got, "対応方法")
	}

	if got := s.HandleFrame(protocol.Frame{Kind: protocol.FrameEnd}); got != TurnFinalized {
		t.Fatalf("HandleFrame(end) = %v, want TurnFinalized", got)
	}
	log = s.Messages()
	if len(log) != before+1 {
		t.Fatalf("log grew by %d entries, want 1", len(log)-before)
	}
	final := log[len(log)-1]
	if final.SpeakerID != protocol.SpeakerAssistant || final.Text != "対応方法" {
		t.Errorf("finalized entry = %+v, want assistant %q", final, "対応方法")
	}
	if s.Awaiting() {
		t.Error("Awaiting() = true after end frame")
	}
	if got := s.PartialText(); got != "" {
		t.Errorf("PartialText() = %q after end, want empty", got)
	}
}

func TestSession_SubmitRejections(t *testing.T) {
	s := newTestSession()

	tests := []struct {
		name string
		text string
	}{
		{name: "empty", text: ""},
		{name: "whitespace", text: "   \n\t "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(s.Messages())
			if _, ok := s.Submit(tt.text); ok {
				t.Error("Submit() accepted blank input")
			}
			if len(s.Messages()) != before {
				t.Error("rejected Submit changed the log")
			}
			if s.Awaiting() {
				t.Error("rejected Submit set awaiting")
			}
		})
	}

	t.Run("while awaiting", func(t *testing.T) {
		if _, ok := s.Submit("first"); !ok {
			t.Fatal("Submit() rejected the first turn")
		}
		before := len(s.Messages())
		if _, ok := s.Submit("second"); ok {
			t.Error("Submit() accepted a turn while one is in flight")
		}
		if len(s.Messages()) != before {
			t.Error("rejected Submit changed the log")
		}
	})
}

func TestSession_PayloadCarriesMetadata(t *testing.T) {
	s := New(Config{Intro: testIntro, Welcome: testWelcome, Genre: "criminal", ConversationID: "c-42"})
	req, ok := s.Submit("質問です")
	if !ok {
		t.Fatal("Submit() rejected a valid turn")
	}
	if req.Genre != "criminal" {
		t.Errorf("Genre = %q, want %q", req.Genre, "criminal")
	}
	if req.ConversationID != "c-42" {
		t.Errorf("ConversationID = %q, want %q", req.ConversationID, "c-42")
	}
}

func TestSession_GreetingSuppression(t *testing.T) {
	s := newTestSession()
	before := len(s.Messages())

	s.HandleFrame(protocol.Frame{Kind: protocol.FrameStart})
	s.HandleFrame(protocol.Frame{Kind: protocol.FrameToken, Text: testWelcome})
	got := s.HandleFrame(protocol.Frame{Kind: protocol.FrameEnd})
	if got == TurnFinalized {
		t.Error("duplicate greeting turn was appended")
	}
	if len(s.Messages()) != before {
		t.Errorf("log length changed by suppressed turn: %d -> %d", before, len(s.Messages()))
	}
	if got := s.PartialText(); got != "" {
		t.Errorf("buffer not cleared by suppressed turn: %q", got)
	}
}

func TestSession_HistoryReplacesLog(t *testing.T) {
	s := newTestSession()
	s.Submit("old user turn")

	got := s.HandleFrame(protocol.Frame{
		Kind: protocol.FrameHistory,
		Records: []protocol.HistoryRecord{
			{Role: "user", Content: "X"},
			{Role: "assistant", Content: "Y"},
		},
	})
	if got != HistoryReplaced {
		t.Fatalf("HandleFrame(history) = %v, want HistoryReplaced", got)
	}

	want := []string{testIntro, testWelcome, "X", "Y"}
	if gotTexts := texts(s.Messages()); !reflect.DeepEqual(gotTexts, want) {
		t.Errorf("log after history = %v, want %v", gotTexts, want)
	}
	log := s.Messages()
	if log[2].SpeakerID != protocol.SpeakerUser {
		t.Errorf("record X speaker = %v, want user", log[2].SpeakerID)
	}
	if log[3].SpeakerID != protocol.SpeakerAssistant {
		t.Errorf("record Y speaker = %v, want assistant", log[3].SpeakerID)
	}
}

func TestSession_HistorySkipsPersistedGreeting(t *testing.T) {
	s := newTestSession()
	s.HandleFrame(protocol.Frame{
		Kind: protocol.FrameHistory,
		Records: []protocol.HistoryRecord{
			{Role: "assistant", Content: testWelcome},
			{Role: "user", Content: "X"},
		},
	})
	want := []string{testIntro, testWelcome, "X"}
	if got := texts(s.Messages()); !reflect.DeepEqual(got, want) {
		t.Errorf("log after history = %v, want %v", got, want)
	}
}

func TestSession_ErrorFrame(t *testing.T) {
	s := newTestSession()
	s.Submit("質問です")
	before := len(s.Messages())

	got := s.HandleFrame(protocol.Frame{Kind: protocol.FrameError, ErrorMessage: "model unavailable"})
	if got != NoticeRaised {
		t.Fatalf("HandleFrame(error) = %v, want NoticeRaised", got)
	}
	if s.Awaiting() {
		t.Error("Awaiting() = true after error frame")
	}
	if s.Notice() != "model unavailable" {
		t.Errorf("Notice() = %q, want the server message", s.Notice())
	}
	if len(s.Messages()) != before {
		t.Error("error frame changed the log")
	}
}

func TestSession_ConversationAssignment(t *testing.T) {
	s := newTestSession()
	got := s.HandleFrame(protocol.Frame{Kind: protocol.FrameConversationID, ConversationID: "abc-123"})
	if got != ConversationAssigned {
		t.Fatalf("HandleFrame(conversation_id) = %v, want ConversationAssigned", got)
	}
	if s.ConversationID() != "abc-123" {
		t.Errorf("ConversationID() = %q, want %q", s.ConversationID(), "abc-123")
	}
}

func TestSession_NoOpFrames(t *testing.T) {
	s := newTestSession()
	before := s.Messages()
	for _, kind := range []protocol.FrameKind{protocol.FramePong, protocol.FrameSystem, protocol.FrameUnknown} {
		if got := s.HandleFrame(protocol.Frame{Kind: kind}); got != NoChange {
			t.Errorf("HandleFrame(%v) = %v, want NoChange", kind, got)
		}
	}
	if !reflect.DeepEqual(texts(before), texts(s.Messages())) {
		t.Error("no-op frames changed the log")
	}
}

func TestSession_ResetIsIdempotent(t *testing.T) {
	s := newTestSession()
	s.Submit("質問です")
	s.HandleFrame(protocol.Frame{Kind: protocol.FrameStart})
	s.HandleFrame(protocol.Frame{Kind: protocol.FrameToken, Text: "途中"})
	s.HandleFrame(protocol.Frame{Kind: protocol.FrameConversationID, ConversationID: "abc"})

	s.Reset()
	once := texts(s.Messages())
	s.Reset()
	twice := texts(s.Messages())

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("Reset not idempotent: %v vs %v", once, twice)
	}
	if !reflect.DeepEqual(once, []string{testIntro, testWelcome}) {
		t.Errorf("Reset log = %v, want seeds only", once)
	}
	if s.Awaiting() {
		t.Error("Awaiting() = true after Reset")
	}
	if s.PartialText() != "" {
		t.Error("buffer not empty after Reset")
	}
	if s.ConversationID() != "" {
		t.Error("conversation id survived Reset")
	}
}

func TestSession_TypedWelcomeAppendsOnce(t *testing.T) {
	s := New(Config{Intro: testIntro}) // no welcome seed; guard unarmed
	got := s.HandleFrame(protocol.Frame{Kind: protocol.FrameWelcome, Text: "ようこそ"})
	if got != TurnFinalized {
		t.Fatalf("HandleFrame(welcome) = %v, want TurnFinalized", got)
	}
	if got := s.HandleFrame(protocol.Frame{Kind: protocol.FrameWelcome, Text: "ようこそ"}); got != NoChange {
		t.Errorf("second welcome = %v, want NoChange", got)
	}
	want := []string{testIntro, "ようこそ"}
	if gotTexts := texts(s.Messages()); !reflect.DeepEqual(gotTexts, want) {
		t.Errorf("log = %v, want %v", gotTexts, want)
	}
}
