package client

import (
	"context"
	"net/http"

	"github.com/cloudlearn/study/pkg/credentials"
)

// Register creates a new account and returns its token.
func (c *Client) Register(ctx context.Context, username, email, password string) (*Token, error) {
	in := map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}

	out := &Token{}
	if err := c.doJSON(ctx, http.MethodPost, ServiceAuth, "/api/auth/register", nil, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Login exchanges an email and password for a token.
func (c *Client) Login(ctx context.Context, email, password string) (*Token, error) {
	in := map[string]string{
		"email":    email,
		"password": password,
	}

	out := &Token{}
	if err := c.doJSON(ctx, http.MethodPost, ServiceAuth, "/api/auth/login", nil, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Me returns the user the session belongs to.
func (c *Client) Me(ctx context.Context) (*User, error) {
	if _, err := c.userID(); err != nil {
		return nil, err
	}

	out := &User{}
	if err := c.doJSON(ctx, http.MethodGet, ServiceAuth, "/api/auth/me", nil, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Session converts a token into a storable session.
func (t *Token) Session() *credentials.Session {
	return &credentials.Session{
		Token:    t.Token,
		UserID:   t.UserID.String(),
		Username: t.Username,
		Email:    t.Email,
	}
}
