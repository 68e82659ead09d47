package sse

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrStreamFailure wraps any error reported by the underlying byte
	// stream. It is never used for clean completion.
	ErrStreamFailure = errors.New("sse: stream failure")

	// errNotObject is returned for payloads that are valid JSON but not an
	// object, e.g. arrays, strings or null.
	errNotObject = errors.New("payload is not a JSON object")

	errInvalidJSON = errors.New("payload is not valid JSON")
)

var (
	dataPrefix   = []byte("data: ")
	doneSentinel = []byte("[DONE]")
)

// Handler receives the output of a Decoder. Every callback is optional and is
// invoked synchronously from within Feed, End or Fail.
type Handler struct {
	// OnEvent is called once per decoded frame, in stream order.
	OnEvent func(Event)

	// OnComplete is called exactly once when the session completes cleanly.
	OnComplete func(Completion)

	// OnError is called exactly once when the underlying stream fails. The
	// error wraps ErrStreamFailure.
	OnError func(error)

	// OnMalformed is called for each frame whose payload failed to parse.
	// The frame has already been dropped; this exists for diagnostics.
	OnMalformed func(payload []byte, err error)
}

// Decoder is a push-based decoder for one SSE session.
//
// A Decoder is not safe for concurrent use. It is driven by the caller's read
// loop and never starts goroutines or blocks.
type Decoder struct {
	handler Handler

	// buf holds bytes that do not yet form a complete line. After every
	// call to Feed it contains at most one partial line.
	buf []byte

	state      State
	completion Completion
	stats      Stats
}

// NewDecoder returns a Decoder that reports to h.
func NewDecoder(h Handler) *Decoder {
	return &Decoder{handler: h}
}

// Feed appends chunk to the line buffer and processes every complete line it
// now contains. Feeding an empty chunk, or feeding after the session reached
// a terminal state, is a no-op.
//
// Lines are split on '\n' with an optional trailing '\r'. Splitting happens
// on raw bytes and '\n' never occurs inside a multi-byte UTF-8 sequence, so a
// character split across chunks is decoded once its line is complete.
func (d *Decoder) Feed(chunk []byte) {
	if d.state != StateStreaming || len(chunk) == 0 {
		return
	}

	d.buf = append(d.buf, chunk...)

	for d.state == StateStreaming {
		idx := bytes.IndexByte(d.buf, '\n')
		if idx < 0 {
			break
		}

		line := bytes.TrimSuffix(d.buf[:idx], []byte("\r"))
		d.buf = d.buf[idx+1:]
		d.processLine(line)
	}

	switch {
	case d.state != StateStreaming:
		d.buf = nil
	case len(d.buf) == 0:
		// Release the consumed prefix of the backing array.
		d.buf = nil
	}
}

// End reports that the underlying stream reached end-of-data. Any buffered
// partial line is discarded without being parsed. If the session has not
// already completed, completion is reported with CompletionEOF.
func (d *Decoder) End() {
	if d.state != StateStreaming {
		return
	}

	d.buf = nil
	d.complete(CompletionEOF)
}

// Fail reports that the underlying stream failed. The buffered partial line is
// discarded and the handler receives an error wrapping both ErrStreamFailure
// and err. Fail after the session reached a terminal state is a no-op.
func (d *Decoder) Fail(err error) {
	if d.state != StateStreaming {
		return
	}

	d.buf = nil
	d.state = StateFailed

	if err == nil {
		err = errors.New("unknown error")
	}

	if d.handler.OnError != nil {
		d.handler.OnError(fmt.Errorf("%w: %w", ErrStreamFailure, err))
	}
}

// State returns the lifecycle state of the session.
func (d *Decoder) State() State {
	return d.state
}

// Completion returns how the session completed, or CompletionNone.
func (d *Decoder) Completion() Completion {
	return d.completion
}

// Stats returns the counters accumulated so far.
func (d *Decoder) Stats() Stats {
	return d.stats
}

// Buffered returns the number of bytes held for an incomplete line.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

func (d *Decoder) processLine(line []byte) {
	payload, ok := bytes.CutPrefix(line, dataPrefix)
	if !ok {
		// Blank separators, comments, "id:" and "event:" lines.
		d.stats.Ignored++
		return
	}

	d.stats.Frames++

	// The sentinel is a literal token. Unlike JSON payloads it is not trimmed.
	if bytes.Equal(payload, doneSentinel) {
		d.complete(CompletionSentinel)
		return
	}

	ev, recognized, err := parsePayload(payload)
	if err != nil {
		d.stats.Malformed++
		if d.handler.OnMalformed != nil {
			d.handler.OnMalformed(payload, err)
		}
		return
	}

	if !recognized {
		d.stats.Ignored++
		return
	}

	d.emit(ev)

	if ev.Done {
		d.complete(CompletionDoneFrame)
	}
}

func (d *Decoder) emit(ev Event) {
	d.stats.Events++
	if d.handler.OnEvent != nil {
		d.handler.OnEvent(ev)
	}
}

func (d *Decoder) complete(c Completion) {
	d.state = StateComplete
	d.completion = c
	d.buf = nil

	if d.handler.OnComplete != nil {
		d.handler.OnComplete(c)
	}
}

// wireFrame distinguishes an absent field from its zero value.
type wireFrame struct {
	Text *string `json:"text"`
	Done *bool   `json:"done"`
}

// parsePayload decodes a frame payload. recognized is false for a valid JSON
// object that carries neither a text delta nor a true done marker.
func parsePayload(payload []byte) (Event, bool, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		if !json.Valid(trimmed) {
			return Event{}, false, errInvalidJSON
		}
		return Event{}, false, errNotObject
	}

	var frame wireFrame
	if err := json.Unmarshal(trimmed, &frame); err != nil {
		return Event{}, false, err
	}

	ev := Event{}
	if frame.Text != nil {
		ev.Text = *frame.Text
	}
	if frame.Done != nil {
		ev.Done = *frame.Done
	}

	return ev, frame.Text != nil || ev.Done, nil
}
