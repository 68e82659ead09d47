package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
)

// DefaultConversationTitle is the title the chat service gives untitled
// conversations.
const DefaultConversationTitle = "New Conversation"

// CreateConversation starts a new conversation for the session user.
func (c *Client) CreateConversation(ctx context.Context, title string) (*Conversation, error) {
	userID, err := c.userID()
	if err != nil {
		return nil, err
	}

	if title == "" {
		title = DefaultConversationTitle
	}

	in := map[string]string{
		"user_id": userID,
		"title":   title,
	}

	out := &Conversation{}
	if err := c.doJSON(ctx, http.MethodPost, ServiceChat, "/api/chat/conversations/new", nil, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListConversations returns the session user's conversations, most recently
// active first.
func (c *Client) ListConversations(ctx context.Context) ([]Conversation, error) {
	userID, err := c.userID()
	if err != nil {
		return nil, err
	}

	var out []Conversation
	query := url.Values{"user_id": {userID}}
	if err := c.doJSON(ctx, http.MethodGet, ServiceChat, "/api/chat/conversations/list", query, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ConversationMessages returns up to limit messages of a conversation in
// chronological order. A zero limit uses the service default.
func (c *Client) ConversationMessages(ctx context.Context, conversationID string, limit uint) (*ConversationHistory, error) {
	if conversationID == "" {
		return nil, errors.New("conversation id is required")
	}

	var query url.Values
	if limit > 0 {
		query = url.Values{"limit": {strconv.FormatUint(uint64(limit), 10)}}
	}

	out := &ConversationHistory{}
	path := "/api/chat/conversations/" + url.PathEscape(conversationID) + "/messages"
	if err := c.doJSON(ctx, http.MethodGet, ServiceChat, path, query, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// RenameConversation changes the title of a conversation.
func (c *Client) RenameConversation(ctx context.Context, conversationID, title string) error {
	if conversationID == "" {
		return errors.New("conversation id is required")
	}
	if title == "" {
		return errors.New("title is required")
	}

	in := map[string]string{"title": title}
	path := "/api/chat/conversations/" + url.PathEscape(conversationID) + "/title"
	return c.doJSON(ctx, http.MethodPatch, ServiceChat, path, nil, in, &statusResponse{})
}

// DeleteConversation deletes a conversation and its messages.
func (c *Client) DeleteConversation(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return errors.New("conversation id is required")
	}

	path := "/api/chat/conversations/" + url.PathEscape(conversationID)
	return c.doJSON(ctx, http.MethodDelete, ServiceChat, path, nil, nil, &statusResponse{})
}
