package sse

import (
	"errors"
	"io"
	"log/slog"
)

const defaultReadSize = 4 * 1024

// Reader pulls events from a source io.Reader, typically an HTTP response
// body, using a Decoder. Raw bytes can optionally be copied verbatim to a
// destination writer, which is how chat transcripts are recorded.
//
// ┌──────────────────┐
// │ source io.Reader │
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐   ┌────────────────────────────┐
// │  Reader.Next()   │──▶│ tee io.Writer (optional)   │
// └──────────────────┘   └────────────────────────────┘
// │
// ▼
// ┌──────────────────┐
// │      Event       │
// └──────────────────┘
//
// Reader is not safe for concurrent use.
type Reader struct {
	src    io.Reader
	tee    io.Writer
	logger *slog.Logger

	dec     *Decoder
	chunk   []byte
	pending []Event

	// err is the terminal result returned once pending is drained:
	// io.EOF after clean completion, or an ErrStreamFailure wrapped error.
	err error
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithTee copies every byte read from the source to w before it is decoded.
func WithTee(w io.Writer) ReaderOption {
	return func(r *Reader) {
		r.tee = w
	}
}

// WithLogger sets the logger used for dropped frame diagnostics.
func WithLogger(l *slog.Logger) ReaderOption {
	return func(r *Reader) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithReadSize sets the size of each read from the source.
func WithReadSize(n int) ReaderOption {
	return func(r *Reader) {
		if n > 0 {
			r.chunk = make([]byte, n)
		}
	}
}

// NewReader returns a Reader decoding events from src.
func NewReader(src io.Reader, opts ...ReaderOption) *Reader {
	r := &Reader{
		src:    src,
		logger: slog.New(slog.DiscardHandler),
		chunk:  make([]byte, defaultReadSize),
	}

	for _, opt := range opts {
		opt(r)
	}

	r.dec = NewDecoder(Handler{
		OnEvent: func(ev Event) {
			r.pending = append(r.pending, ev)
		},
		OnComplete: func(c Completion) {
			r.logger.Debug("stream completed", "completion", c.String())
			r.err = io.EOF
		},
		OnError: func(err error) {
			r.err = err
		},
		OnMalformed: func(payload []byte, err error) {
			r.logger.Debug("dropping malformed frame",
				"payload", string(payload),
				"error", err,
			)
		},
	})

	return r
}

// Next returns the next decoded event. It blocks on the source until an event
// is available or the session reaches a terminal state.
//
// Next returns io.EOF once the stream completed cleanly, whether by a
// terminal frame or by the end of the source. It returns an error wrapping
// ErrStreamFailure when the source failed. Events decoded before a terminal
// state are always returned first, and the source is not read any further
// after a terminal frame.
func (r *Reader) Next() (Event, error) {
	for {
		if len(r.pending) > 0 {
			ev := r.pending[0]
			r.pending = r.pending[1:]
			return ev, nil
		}

		if r.err != nil {
			return Event{}, r.err
		}

		n, err := r.src.Read(r.chunk)
		if n > 0 {
			if teeErr := r.writeTee(r.chunk[:n]); teeErr != nil {
				r.dec.Fail(teeErr)
				continue
			}
			r.dec.Feed(r.chunk[:n])
		}

		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			r.dec.End()
		default:
			r.dec.Fail(err)
		}
	}
}

// State returns the lifecycle state of the underlying session.
func (r *Reader) State() State {
	return r.dec.State()
}

// Completion returns how the session completed, or CompletionNone.
func (r *Reader) Completion() Completion {
	return r.dec.Completion()
}

// Stats returns the decoder counters accumulated so far.
func (r *Reader) Stats() Stats {
	return r.dec.Stats()
}

func (r *Reader) writeTee(p []byte) error {
	if r.tee == nil {
		return nil
	}

	_, err := r.tee.Write(p)
	return err
}
