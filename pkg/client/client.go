// Package client is the HTTP client for the learning platform services:
// auth, chat, documents, quizzes and audio. Each service may live behind its
// own base URL; unset targets fall back to the shared API gateway.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/cloudlearn/study/pkg/credentials"
)

// Service names one of the platform's backend services.
type Service string

const (
	ServiceAuth     Service = "auth"
	ServiceChat     Service = "chat"
	ServiceDocument Service = "document"
	ServiceQuiz     Service = "quiz"
	ServiceAudio    Service = "audio"
)

// Services lists every service in display order.
var Services = []Service{ServiceAuth, ServiceChat, ServiceDocument, ServiceQuiz, ServiceAudio}

// Default circuit breaker settings.
const (
	defaultBreakerMaxFailures uint32 = 3
	defaultBreakerTimeout            = 30 * time.Second
	defaultBreakerInterval           = 60 * time.Second
)

// Targets holds the base URL of every service.
type Targets struct {
	// API is the gateway URL used for any service without its own target.
	API      string
	Auth     string
	Chat     string
	Document string
	Quiz     string
	Audio    string
}

// URL returns the base URL for svc without a trailing slash.
func (t Targets) URL(svc Service) string {
	var target string
	switch svc {
	case ServiceAuth:
		target = t.Auth
	case ServiceChat:
		target = t.Chat
	case ServiceDocument:
		target = t.Document
	case ServiceQuiz:
		target = t.Quiz
	case ServiceAudio:
		target = t.Audio
	}

	if target == "" {
		target = t.API
	}

	return strings.TrimRight(target, "/")
}

// BreakerConfig configures the per-service circuit breakers.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures before a circuit opens.
	MaxFailures uint32

	// Timeout is how long a circuit stays open before a trial request is let through.
	Timeout time.Duration

	// Interval is the cyclic period of the closed state for clearing counts.
	Interval time.Duration
}

// Config holds configuration for a Client.
type Config struct {
	Targets Targets

	// HTTPClient is used for every request. It must not set a Timeout, which
	// would cut off long chat streams; use Timeout instead.
	HTTPClient *http.Client

	// Session authenticates requests. Nil for anonymous calls such as login.
	Session *credentials.Session

	Logger *slog.Logger

	// Timeout bounds each non-streaming request. Audio synthesis only waits
	// this long for response headers. Zero means no limit.
	Timeout time.Duration

	Breaker BreakerConfig
}

// Client calls the platform services. It is safe for concurrent use.
type Client struct {
	targets  Targets
	http     *http.Client
	session  *credentials.Session
	logger   *slog.Logger
	timeout  time.Duration
	breakers map[Service]*gobreaker.CircuitBreaker[*http.Response]
}

// New creates a new Client.
func New(c Config) (*Client, error) {
	for _, svc := range Services {
		target := c.Targets.URL(svc)
		if target == "" {
			return nil, fmt.Errorf("no target configured for %s service", svc)
		}
		if _, err := url.Parse(target); err != nil {
			return nil, fmt.Errorf("invalid %s target %q: %w", svc, target, err)
		}
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	cl := &Client{
		targets:  c.Targets,
		http:     httpClient,
		session:  c.Session,
		logger:   logger,
		timeout:  c.Timeout,
		breakers: make(map[Service]*gobreaker.CircuitBreaker[*http.Response], len(Services)),
	}

	for _, svc := range Services {
		cl.breakers[svc] = newBreaker(svc, c.Breaker, logger)
	}

	return cl, nil
}

func newBreaker(svc Service, cfg BreakerConfig, logger *slog.Logger) *gobreaker.CircuitBreaker[*http.Response] {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultBreakerMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultBreakerTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultBreakerInterval
	}

	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "service:" + string(svc),
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			// Client errors mean the service answered.
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return !apiErr.serverError()
			}
			// The caller gave up; the service may be fine.
			return errors.Is(err, context.Canceled)
		},
	})
}

// Session returns the session used to authenticate requests, if any.
func (c *Client) Session() *credentials.Session {
	return c.session
}

// WithSession returns a copy of c authenticating as s. The copy shares the
// HTTP client and circuit breakers of c.
func (c *Client) WithSession(s *credentials.Session) *Client {
	cp := *c
	cp.session = s
	return &cp
}

// Targets returns the configured service targets.
func (c *Client) Targets() Targets {
	return c.targets
}

// BreakerState returns the circuit breaker state for svc.
func (c *Client) BreakerState(svc Service) gobreaker.State {
	return c.breakers[svc].State()
}

func (c *Client) userID() (string, error) {
	if c.session == nil || c.session.Token == "" {
		return "", credentials.ErrNotLoggedIn
	}
	return c.session.UserID, nil
}

// newRequest builds a request against svc. path must start with a slash.
func (c *Client) newRequest(ctx context.Context, method string, svc Service, path string, query url.Values, body io.Reader) (*http.Request, error) {
	u := c.targets.URL(svc) + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("creating %s request: %w", svc, err)
	}

	req.Header.Set("Accept", "application/json")
	if auth := c.session.Authorization(); auth != "" {
		req.Header.Set("Authorization", auth)
	}

	return req, nil
}

// do sends req through the circuit breaker of svc. A non-2xx response is
// returned as an *APIError with its body already closed.
func (c *Client) do(svc Service, req *http.Request) (*http.Response, error) {
	start := time.Now()

	resp, err := c.breakers[svc].Execute(func() (*http.Response, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("sending %s request: %w", svc, err)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, newAPIError(svc, resp)
		}

		return resp, nil
	})

	c.logger.Debug("service request",
		"service", string(svc),
		"method", req.Method,
		"path", req.URL.Path,
		"duration", time.Since(start),
		"error", err,
	)

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%s service circuit open: %w", svc, err)
		}
		return nil, err
	}

	return resp, nil
}

// withTimeout applies the per-request timeout to ctx.
func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// withHeaderTimeout applies the per-request timeout to the wait for response
// headers only. Calling stop lifts the limit so a slow body can finish; it
// reports false if the limit had already expired.
func (c *Client) withHeaderTimeout(ctx context.Context) (context.Context, context.CancelFunc, func() bool) {
	ctx, cancel := context.WithCancel(ctx)
	if c.timeout <= 0 {
		return ctx, cancel, func() bool { return true }
	}
	timer := time.AfterFunc(c.timeout, cancel)
	return ctx, cancel, timer.Stop
}

// doJSON sends in as a JSON body (when non-nil) and decodes the response
// into out (when non-nil).
func (c *Client) doJSON(ctx context.Context, method string, svc Service, path string, query url.Values, in, out any) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling %s request: %w", svc, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := c.newRequest(ctx, method, svc, path, query, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.do(svc, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", svc, err)
	}

	return nil
}
