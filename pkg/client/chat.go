package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/cloudlearn/study/pkg/sse"
)

type chatRequest struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
	Stream         bool   `json:"stream"`
}

// ChatStream is a streamed assistant reply. It owns the response body and
// must be closed. ChatStream is not safe for concurrent use.
type ChatStream struct {
	reader *sse.Reader
	body   io.ReadCloser
	closed bool
}

// Next returns the next event of the reply. It returns io.EOF once the reply
// completed and an error wrapping sse.ErrStreamFailure if the connection
// failed part way.
func (s *ChatStream) Next() (sse.Event, error) {
	if s.closed {
		return sse.Event{}, ErrStreamClosed
	}
	return s.reader.Next()
}

// Completion returns how the reply ended, or sse.CompletionNone.
func (s *ChatStream) Completion() sse.Completion {
	return s.reader.Completion()
}

// Stats returns the decoder counters of the reply.
func (s *ChatStream) Stats() sse.Stats {
	return s.reader.Stats()
}

// Close releases the connection. Closing a stream before it completed stops
// the reply; no further events are delivered.
func (s *ChatStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}

// SendMessage posts message to a conversation and returns the streamed
// reply. The request is bound to ctx for its whole lifetime, so no client
// timeout applies; cancel ctx to abandon the reply.
func (c *Client) SendMessage(ctx context.Context, conversationID, message string, opts ...sse.ReaderOption) (*ChatStream, error) {
	req, err := c.newChatRequest(ctx, conversationID, message, true)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.do(ServiceChat, req)
	if err != nil {
		return nil, err
	}

	opts = append([]sse.ReaderOption{sse.WithLogger(c.logger)}, opts...)

	return &ChatStream{
		reader: sse.NewReader(resp.Body, opts...),
		body:   resp.Body,
	}, nil
}

// SendMessageSync posts message to a conversation and waits for the full
// reply.
func (c *Client) SendMessageSync(ctx context.Context, conversationID, message string) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := c.newChatRequest(ctx, conversationID, message, false)
	if err != nil {
		return "", err
	}

	resp, err := c.do(ServiceChat, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding chat response: %w", err)
	}

	return out.Response, nil
}

func (c *Client) newChatRequest(ctx context.Context, conversationID, message string, stream bool) (*http.Request, error) {
	userID, err := c.userID()
	if err != nil {
		return nil, err
	}
	if conversationID == "" {
		return nil, errors.New("conversation id is required")
	}
	if message == "" {
		return nil, errors.New("message is empty")
	}

	payload, err := json.Marshal(chatRequest{
		UserID:         userID,
		ConversationID: conversationID,
		Message:        message,
		Stream:         stream,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling chat request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, ServiceChat, "/api/chat/message", nil, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	return req, nil
}
