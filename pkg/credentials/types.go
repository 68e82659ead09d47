package credentials

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"
)

// Credentials represents the stored login state in credentials.toml.
type Credentials struct {
	Version int      `toml:"version"`
	Session *Session `toml:"session,omitempty"`
}

// Session is the authenticated identity returned by the auth service. It is
// passed explicitly to the API client rather than read from global state.
type Session struct {
	Token    string    `toml:"token"`
	UserID   string    `toml:"user_id"`
	Username string    `toml:"username"`
	Email    string    `toml:"email"`
	SavedAt  time.Time `toml:"saved_at"`
}

// Authorization returns the value of the Authorization header for s.
func (s *Session) Authorization() string {
	if s == nil || s.Token == "" {
		return ""
	}
	return "Bearer " + s.Token
}

// ExpiresAt returns the "exp" claim of the session token. The token is not
// verified; this only lets the CLI warn before the gateway rejects it.
// ok is false when the token carries no readable expiry.
func (s *Session) ExpiresAt() (time.Time, bool) {
	if s == nil {
		return time.Time{}, false
	}

	parts := strings.Split(s.Token, ".")
	if len(parts) != 3 {
		return time.Time{}, false
	}

	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return time.Time{}, false
	}

	var claims struct {
		Exp *json.Number `json:"exp"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil || claims.Exp == nil {
		return time.Time{}, false
	}

	secs, err := claims.Exp.Float64()
	if err != nil {
		return time.Time{}, false
	}

	return time.Unix(int64(secs), 0).UTC(), true
}

// Expired reports whether the token expiry is known and before now.
func (s *Session) Expired(now time.Time) bool {
	exp, ok := s.ExpiresAt()
	return ok && !now.Before(exp)
}
