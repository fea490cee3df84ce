package session

import (
	"slices"
	"strings"

	"github.com/lawflow/streamchat/pkg/protocol"
)

// StreamKeys names the two sides of a comparison session as they appear in
// the wire frames.
type StreamKeys struct {
	Primary   string
	Secondary string
}

// The two comparison variants the server exposes.
var (
	DataStreams = StreamKeys{Primary: "with_data", Secondary: "without_data"}
	RagStreams  = StreamKeys{Primary: "with_rag", Secondary: "without_rag"}
)

// Each returns the keys in a fixed order.
func (k StreamKeys) Each() []string {
	return []string{k.Primary, k.Secondary}
}

// DualSession demultiplexes two independent logical streams over one
// connection for side-by-side comparison. Both sides share one awaiting
// flag and one outbound history; a user submission is mirrored onto both
// logs so the transcripts stay turn-aligned. Like Session, it is confined
// to a single goroutine by the owning client.
type DualSession struct {
	keys StreamKeys
	accs map[string]*Accumulator
	logs map[string][]protocol.Message

	awaiting     bool
	notice       string
	responseType string
}

// NewDual builds a comparison session. Both logs start empty; greetings in
// comparison mode arrive from the server as welcome frames.
func NewDual(keys StreamKeys) *DualSession {
	d := &DualSession{
		keys: keys,
		accs: make(map[string]*Accumulator, 2),
		logs: make(map[string][]protocol.Message, 2),
	}
	for _, key := range keys.Each() {
		d.accs[key] = NewAccumulator("")
		d.logs[key] = nil
	}
	return d
}

// Keys returns the stream names of this session.
func (d *DualSession) Keys() StreamKeys {
	return d.keys
}

// Submit mirrors one user turn onto both logs and builds the shared
// outbound payload: the primary transcript, which by construction carries
// every user message and the primary side's replies. ok is false, with no
// state change, when text is blank or a turn is in flight.
func (d *DualSession) Submit(text string) (req protocol.ChatRequest, ok bool) {
	if strings.TrimSpace(text) == "" || d.awaiting {
		return protocol.ChatRequest{}, false
	}
	msg := protocol.NewStampedMessage(protocol.SpeakerUser, text)
	for _, key := range d.keys.Each() {
		d.logs[key] = append(d.logs[key], msg)
	}
	d.awaiting = true
	return protocol.ChatRequest{Messages: slices.Clone(d.logs[d.keys.Primary])}, true
}

// HandleFrame routes one decoded frame. Stream-keyed text reaches only the
// accumulator it names; a side absent from the frame is untouched.
func (d *DualSession) HandleFrame(f protocol.Frame) Change {
	switch f.Kind {
	case protocol.FrameStart:
		for _, key := range d.keys.Each() {
			d.accs[key].Start()
		}
		d.awaiting = true
		if f.ResponseType != "" {
			d.responseType = f.ResponseType
		}
		return PartialChanged

	case protocol.FrameToken:
		changed := false
		for _, key := range d.keys.Each() {
			if fragment, ok := f.Streams[key]; ok {
				d.accs[key].Append(fragment)
				changed = true
			}
		}
		if !changed {
			return NoChange
		}
		return PartialChanged

	case protocol.FrameEnd:
		d.awaiting = false
		for _, key := range d.keys.Each() {
			text, suppressed := d.accs[key].Finalize(f.Streams[key], f.Greeting)
			if suppressed || text == "" {
				continue
			}
			d.logs[key] = append(d.logs[key], protocol.NewStampedMessage(protocol.SpeakerAssistant, text))
		}
		return TurnFinalized

	case protocol.FrameWelcome:
		appended := false
		for _, key := range d.keys.Each() {
			if text, ok := f.Streams[key]; ok && text != "" {
				d.logs[key] = append(d.logs[key], protocol.NewStampedMessage(protocol.SpeakerAssistant, text))
				appended = true
			}
		}
		if !appended {
			return NoChange
		}
		return TurnFinalized

	case protocol.FrameError:
		d.awaiting = false
		d.notice = f.ErrorMessage
		return NoticeRaised

	default:
		return NoChange
	}
}

// Reset clears both transcripts, both buffers, and the awaiting flag.
func (d *DualSession) Reset() {
	for _, key := range d.keys.Each() {
		d.accs[key].Reset()
		d.logs[key] = nil
	}
	d.awaiting = false
	d.notice = ""
	d.responseType = ""
}

// Messages returns a snapshot of one side's transcript.
func (d *DualSession) Messages(key string) []protocol.Message {
	return slices.Clone(d.logs[key])
}

// Len returns the length of one side's transcript.
func (d *DualSession) Len(key string) int {
	return len(d.logs[key])
}

// Partial returns a snapshot of one side's in-flight fragments.
func (d *DualSession) Partial(key string) []string {
	if acc, ok := d.accs[key]; ok {
		return acc.Parts()
	}
	return nil
}

// PartialText returns one side's in-flight turn text so far.
func (d *DualSession) PartialText(key string) string {
	if acc, ok := d.accs[key]; ok {
		return acc.Text()
	}
	return ""
}

// Awaiting reports whether a turn is in flight on either side.
func (d *DualSession) Awaiting() bool {
	return d.awaiting
}

// Notice returns the last server-reported error text.
func (d *DualSession) Notice() string {
	return d.notice
}

// ResponseType returns the classification the server attached to the most
// recent turn, when the variant provides one.
func (d *DualSession) ResponseType() string {
	return d.responseType
}
