// Package sse decodes the Server-Sent Events stream returned by the chat
// service while a reply is being generated.
//
// The stream is a sequence of "data: " lines, each carrying a small JSON
// payload: {"text": "..."} for a text delta and {"done": true} for the end of
// the reply. A literal "data: [DONE]" line is also accepted as the end of the
// stream. Bytes arrive in arbitrary chunks from the network, so the decoder
// keeps at most one partial line buffered between reads and only ever parses
// complete lines.
//
// Two consumption styles are offered over the same state machine:
//
//   - Decoder is push based. The caller hands it chunks with Feed and reports
//     the end of the byte stream with End or Fail. Events are delivered
//     synchronously through a Handler.
//   - Reader is pull based. It wraps an io.Reader (typically an HTTP response
//     body) and yields one Event per call to Next, returning io.EOF once the
//     stream has completed.
//
// This package intentionally does NOT provide SSE writer or server
// capabilities.
package sse

// Event is a decoded frame payload.
type Event struct {
	// Text is the text delta carried by the frame. It may be empty when the
	// frame only marks the end of the reply.
	Text string

	// Done is true when the frame was a {"done": true} terminal marker. A
	// terminal frame may still carry a final Text.
	Done bool
}

// Completion describes how a decoding session finished cleanly.
type Completion int

const (
	// CompletionNone means the session has not completed.
	CompletionNone Completion = iota

	// CompletionSentinel means a "data: [DONE]" frame ended the session.
	CompletionSentinel

	// CompletionDoneFrame means a {"done": true} frame ended the session.
	CompletionDoneFrame

	// CompletionEOF means the byte stream ended without a terminal frame.
	CompletionEOF
)

func (c Completion) String() string {
	switch c {
	case CompletionSentinel:
		return "sentinel"
	case CompletionDoneFrame:
		return "done_frame"
	case CompletionEOF:
		return "eof"
	default:
		return "none"
	}
}

// State is the lifecycle state of a decoding session.
type State int

const (
	// StateStreaming accepts input.
	StateStreaming State = iota

	// StateComplete is terminal: the stream finished cleanly.
	StateComplete

	// StateFailed is terminal: the underlying stream failed.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStreaming:
		return "streaming"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Stats counts what a session has seen so far.
type Stats struct {
	// Frames is the number of "data: " lines processed.
	Frames int

	// Events is the number of events delivered.
	Events int

	// Malformed is the number of frames dropped because their payload could
	// not be parsed.
	Malformed int

	// Ignored is the number of complete lines that were not frames, plus
	// frames whose JSON object carried neither a text nor a done field.
	Ignored int
}
