// Package chat drives streamed chat turns against the chat service: it
// prints the reply as it arrives and publishes an event for every completed
// turn.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudlearn/study/pkg/client"
	"github.com/cloudlearn/study/pkg/eventstream"
	"github.com/cloudlearn/study/pkg/eventstream/nop"
	"github.com/cloudlearn/study/pkg/sse"
)

// Config holds configuration for a Runner.
type Config struct {
	Client *client.Client

	// Publisher receives an event per completed turn. Defaults to nop.
	Publisher eventstream.Publisher

	// Source identifies this client in published events.
	Source eventstream.EventSource

	// Transcript receives the raw bytes of every reply stream when set.
	Transcript io.Writer

	Logger *slog.Logger
}

// Reply is the outcome of one turn.
type Reply struct {
	// Text is the assembled reply. On failure it holds the part received
	// before the stream broke.
	Text string

	Completion sse.Completion
	Stats      sse.Stats
	Duration   time.Duration
}

// Runner runs chat turns. It is not safe for concurrent use.
type Runner struct {
	client     *client.Client
	publisher  eventstream.Publisher
	source     eventstream.EventSource
	transcript io.Writer
	logger     *slog.Logger
}

// NewRunner creates a new Runner.
func NewRunner(c Config) (*Runner, error) {
	if c.Client == nil {
		return nil, errors.New("chat client is required")
	}

	publisher := c.Publisher
	if publisher == nil {
		publisher = nop.NewPublisher()
	}

	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Runner{
		client:     c.Client,
		publisher:  publisher,
		source:     c.Source,
		transcript: c.Transcript,
		logger:     logger,
	}, nil
}

// Turn sends message to a conversation and writes the reply text to out as
// each delta arrives. Text already written stays written if the stream
// fails; the partial reply is returned together with the error.
func (r *Runner) Turn(ctx context.Context, conversationID, message string, out io.Writer) (*Reply, error) {
	start := time.Now()

	var opts []sse.ReaderOption
	if r.transcript != nil {
		opts = append(opts, sse.WithTee(r.transcript))
	}

	stream, err := r.client.SendMessage(ctx, conversationID, message, opts...)
	if err != nil {
		return nil, fmt.Errorf("sending message: %w", err)
	}
	defer stream.Close()

	var text strings.Builder
	reply := &Reply{}

	for {
		ev, err := stream.Next()
		if err != nil {
			reply.Text = text.String()
			reply.Completion = stream.Completion()
			reply.Stats = stream.Stats()
			reply.Duration = time.Since(start)

			if errors.Is(err, io.EOF) {
				break
			}
			return reply, fmt.Errorf("receiving reply: %w", err)
		}

		if ev.Text == "" {
			continue
		}

		text.WriteString(ev.Text)
		if _, err := io.WriteString(out, ev.Text); err != nil {
			reply.Text = text.String()
			reply.Duration = time.Since(start)
			return reply, fmt.Errorf("writing reply: %w", err)
		}
	}

	r.logger.Debug("chat turn completed",
		"conversation_id", conversationID,
		"completion", reply.Completion.String(),
		"events", reply.Stats.Events,
		"malformed", reply.Stats.Malformed,
		"duration", reply.Duration,
	)

	r.publish(ctx, conversationID, message, reply, start)

	return reply, nil
}

// publish emits the turn event. Failures are logged and never fail the turn.
func (r *Runner) publish(ctx context.Context, conversationID, message string, reply *Reply, start time.Time) {
	var userID string
	if s := r.client.Session(); s != nil {
		userID = s.UserID
	}

	event := eventstream.NewChatTurnEvent(r.source, eventstream.ChatTurn{
		ConversationID:   conversationID,
		UserID:           userID,
		UserMessage:      message,
		AssistantMessage: reply.Text,
		Completion:       reply.Completion.String(),
		Events:           reply.Stats.Events,
		MalformedFrames:  reply.Stats.Malformed,
		StartedAt:        start.UTC(),
		CompletedAt:      start.Add(reply.Duration).UTC(),
	})

	if err := r.publisher.Publish(ctx, event); err != nil {
		r.logger.Warn("could not publish chat turn event",
			"event_id", event.EventID,
			"error", err,
		)
	}
}
