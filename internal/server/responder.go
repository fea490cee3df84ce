package server

import (
	"fmt"

	"github.com/lawflow/streamchat/pkg/protocol"
)

// Responder produces the assistant reply for one user turn. stream is the
// logical stream name in comparison mode and empty otherwise.
type Responder interface {
	Reply(stream string, messages []protocol.Message, genre string) string
}

// EchoResponder answers with a canned acknowledgement quoting the last
// user message, labeled per stream so comparison sides are
// distinguishable.
type EchoResponder struct{}

// Reply implements Responder.
func (EchoResponder) Reply(stream string, messages []protocol.Message, genre string) string {
	var last string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].SpeakerID == protocol.SpeakerUser {
			last = messages[i].Text
			break
		}
	}
	reply := fmt.Sprintf("ご相談内容「%s」を確認しました。", last)
	if genre != "" {
		reply = fmt.Sprintf("[%s] %s", genre, reply)
	}
	if stream != "" {
		reply = fmt.Sprintf("(%s) %s", stream, reply)
	}
	return reply
}

// ResponderFunc adapts a function to the Responder interface.
type ResponderFunc func(stream string, messages []protocol.Message, genre string) string

// Reply implements Responder.
func (f ResponderFunc) Reply(stream string, messages []protocol.Message, genre string) string {
	return f(stream, messages, genre)
}
