package session

import (
	"reflect"
	"testing"

	"github.com/lawflow/streamchat/pkg/protocol"
)

func TestDualSession_SubmitMirrorsBothSides(t *testing.T) {
	d := NewDual(DataStreams)

	req, ok := d.Submit("質問です")
	if !ok {
		t.Fatal("Submit() rejected a valid turn")
	}
	if !d.Awaiting() {
		t.Error("Awaiting() = false after Submit")
	}

	for _, key := range DataStreams.Each() {
		log := d.Messages(key)
		if len(log) != 1 {
			t.Fatalf("side %s log = %d entries, want 1", key, len(log))
		}
		if log[0].SpeakerID != protocol.SpeakerUser || log[0].Text != "質問です" {
			t.Errorf("side %s entry = %+v, want the user message", key, log[0])
		}
	}

	// One shared outbound history, not two.
	if len(req.Messages) != 1 || req.Messages[0].Text != "質問です" {
		t.Errorf("payload = %+v, want the single shared history", req.Messages)
	}
}

func TestDualSession_ChunkIsolation(t *testing.T) {
	d := NewDual(DataStreams)
	d.Submit("q")
	d.HandleFrame(protocol.Frame{Kind: protocol.FrameStart})

	d.HandleFrame(protocol.Frame{
		Kind:    protocol.FrameToken,
		Streams: map[string]string{"with_data": "abc"},
	})

	before := d.Partial("without_data")
	d.HandleFrame(protocol.Frame{
		Kind:    protocol.FrameToken,
		Streams: map[string]string{"with_data": "def"},
	})
	after := d.Partial("without_data")

	if !reflect.DeepEqual(before, after) {
		t.Errorf("untargeted side changed: %v -> %v", before, after)
	}
	if got := d.PartialText("with_data"); got != "abcdef" {
		t.Errorf("targeted side = %q, want %q", got, "abcdef")
	}
}

func TestDualSession_EndFinalizesBothSides(t *testing.T) {
	d := NewDual(DataStreams)
	d.Submit("q")
	d.HandleFrame(protocol.Frame{Kind: protocol.FrameStart})
	d.HandleFrame(protocol.Frame{
		Kind:    protocol.FrameToken,
		Streams: map[string]string{"with_data": "partial a", "without_data": "partial b"},
	})

	got := d.HandleFrame(protocol.Frame{
		Kind:    protocol.FrameEnd,
		Streams: map[string]string{"with_data": "full A", "without_data": "full B"},
	})
	if got != TurnFinalized {
		t.Fatalf("HandleFrame(end) = %v, want TurnFinalized", got)
	}
	if d.Awaiting() {
		t.Error("Awaiting() = true after end")
	}

	wantFinal := map[string]string{"with_data": "full A", "without_data": "full B"}
	for key, want := range wantFinal {
		log := d.Messages(key)
		final := log[len(log)-1]
		if final.SpeakerID != protocol.SpeakerAssistant || final.Text != want {
			t.Errorf("side %s final = %+v, want %q", key, final, want)
		}
		if d.PartialText(key) != "" {
			t.Errorf("side %s buffer not cleared", key)
		}
	}
}

func TestDualSession_EndFallsBackToBufferedText(t *testing.T) {
	d := NewDual(RagStreams)
	d.Submit("q")
	d.HandleFrame(protocol.Frame{Kind: protocol.FrameStart})
	d.HandleFrame(protocol.Frame{
		Kind:    protocol.FrameToken,
		Streams: map[string]string{"with_rag": "str", "without_rag": "other"},
	})
	d.HandleFrame(protocol.Frame{
		Kind:    protocol.FrameToken,
		Streams: map[string]string{"with_rag": "eamed"},
	})

	d.HandleFrame(protocol.Frame{Kind: protocol.FrameEnd})

	if final := d.Messages("with_rag"); final[len(final)-1].Text != "streamed" {
		t.Errorf("with_rag final = %q, want %q", final[len(final)-1].Text, "streamed")
	}
	if final := d.Messages("without_rag"); final[len(final)-1].Text != "other" {
		t.Errorf("without_rag final = %q, want %q", final[len(final)-1].Text, "other")
	}
}

func TestDualSession_WelcomeAppendsPerSide(t *testing.T) {
	d := NewDual(DataStreams)
	got := d.HandleFrame(protocol.Frame{
		Kind:    protocol.FrameWelcome,
		Streams: map[string]string{"with_data": "hi A", "without_data": "hi B"},
	})
	if got != TurnFinalized {
		t.Fatalf("HandleFrame(welcome) = %v, want TurnFinalized", got)
	}
	if msgs := d.Messages("with_data"); len(msgs) != 1 || msgs[0].Text != "hi A" {
		t.Errorf("with_data log = %+v", msgs)
	}
	if msgs := d.Messages("without_data"); len(msgs) != 1 || msgs[0].Text != "hi B" {
		t.Errorf("without_data log = %+v", msgs)
	}
}

func TestDualSession_StartRecordsResponseType(t *testing.T) {
	d := NewDual(RagStreams)
	d.HandleFrame(protocol.Frame{Kind: protocol.FrameStart, ResponseType: "answer"})
	if got := d.ResponseType(); got != "answer" {
		t.Errorf("ResponseType() = %q, want %q", got, "answer")
	}
	if !d.Awaiting() {
		t.Error("Awaiting() = false after start")
	}
}

func TestDualSession_ErrorClearsAwaiting(t *testing.T) {
	d := NewDual(DataStreams)
	d.Submit("q")
	got := d.HandleFrame(protocol.Frame{Kind: protocol.FrameError, ErrorMessage: "boom"})
	if got != NoticeRaised {
		t.Fatalf("HandleFrame(error) = %v, want NoticeRaised", got)
	}
	if d.Awaiting() {
		t.Error("Awaiting() = true after error")
	}
	if d.Notice() != "boom" {
		t.Errorf("Notice() = %q, want %q", d.Notice(), "boom")
	}
}

func TestDualSession_SubmitRejections(t *testing.T) {
	d := NewDual(DataStreams)
	if _, ok := d.Submit("  "); ok {
		t.Error("Submit() accepted blank input")
	}
	if _, ok := d.Submit("first"); !ok {
		t.Fatal("Submit() rejected a valid turn")
	}
	if _, ok := d.Submit("second"); ok {
		t.Error("Submit() accepted a turn while one is in flight")
	}
}

func TestDualSession_ResetIsIdempotent(t *testing.T) {
	d := NewDual(DataStreams)
	d.Submit("q")
	d.HandleFrame(protocol.Frame{Kind: protocol.FrameStart})
	d.HandleFrame(protocol.Frame{
		Kind:    protocol.FrameToken,
		Streams: map[string]string{"with_data": "x"},
	})

	d.Reset()
	d.Reset()

	for _, key := range DataStreams.Each() {
		if got := d.Messages(key); len(got) != 0 {
			t.Errorf("side %s log = %v after Reset, want empty", key, got)
		}
		if d.PartialText(key) != "" {
			t.Errorf("side %s buffer survived Reset", key)
		}
	}
	if d.Awaiting() {
		t.Error("Awaiting() = true after Reset")
	}
}
