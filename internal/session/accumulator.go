// Package session implements the in-memory state of a chat session: the
// per-stream accumulator, the single-stream session, and the dual-stream
// comparison session. Everything here is pure and synchronous; the owning
// client confines each session to a single goroutine, so no type in this
// package takes locks.
package session

import (
	"slices"
	"strings"
)

// Accumulator owns the in-flight text of one logical stream. Fragments are
// appended in arrival order and never reordered; their concatenation is
// the candidate text of the turn. The accumulator also owns the greeting
// guard that suppresses a duplicate greeting after history replay.
type Accumulator struct {
	greeting     string
	greetingSeen bool
	streaming    bool
	parts        []string
}

// NewAccumulator returns an idle accumulator. greeting is the predeclared
// greeting text; when non-empty the guard starts armed, because the
// greeting is already seeded into the visible log.
func NewAccumulator(greeting string) *Accumulator {
	return &Accumulator{greeting: greeting, greetingSeen: greeting != ""}
}

// Start begins a new turn, discarding any in-flight buffer.
func (a *Accumulator) Start() {
	a.parts = a.parts[:0]
	a.streaming = true
}

// Append adds one fragment in arrival order.
func (a *Accumulator) Append(fragment string) {
	a.parts = append(a.parts, fragment)
	a.streaming = true
}

// Streaming reports whether a turn is in progress.
func (a *Accumulator) Streaming() bool {
	return a.streaming
}

// Parts returns a snapshot of the in-flight fragments for rendering.
func (a *Accumulator) Parts() []string {
	return slices.Clone(a.parts)
}

// Text returns the concatenation of the in-flight fragments.
func (a *Accumulator) Text() string {
	return strings.Join(a.parts, "")
}

// Finalize ends the turn and clears the buffer. final, when non-empty,
// overrides the accumulated text (servers on the tagged dialect send the
// full reply on the end frame). greetingFlag marks the turn as a greeting
// regardless of its text. The returned text is the turn's full text;
// suppressed reports that the turn was a duplicate greeting and must not
// be appended to the log.
func (a *Accumulator) Finalize(final string, greetingFlag bool) (text string, suppressed bool) {
	text = a.Text()
	if final != "" {
		text = final
	}
	a.parts = a.parts[:0]
	a.streaming = false

	if greetingFlag || (a.greeting != "" && text == a.greeting) {
		if a.greetingSeen {
			return text, true
		}
		a.greetingSeen = true
	}
	return text, false
}

// Reset clears the buffer and re-arms the greeting guard.
func (a *Accumulator) Reset() {
	a.parts = a.parts[:0]
	a.streaming = false
	a.greetingSeen = a.greeting != ""
}
