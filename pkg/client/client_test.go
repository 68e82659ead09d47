package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sony/gobreaker/v2"

	"github.com/cloudlearn/study/pkg/client"
	"github.com/cloudlearn/study/pkg/credentials"
)

var testSession = &credentials.Session{Token: "tok-123", UserID: "42", Username: "ada"}

// newTestClient returns a client whose every target is server.
func newTestClient(server *httptest.Server, session *credentials.Session) *client.Client {
	c, err := client.New(client.Config{
		Targets: client.Targets{API: server.URL},
		Session: session,
		Breaker: client.BreakerConfig{MaxFailures: 3},
	})
	Expect(err).NotTo(HaveOccurred())
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var _ = Describe("Targets", func() {
	It("falls back to the API gateway for unset services", func() {
		t := client.Targets{API: "http://gateway:8000/", Chat: "http://chat:8001"}

		Expect(t.URL(client.ServiceChat)).To(Equal("http://chat:8001"))
		Expect(t.URL(client.ServiceQuiz)).To(Equal("http://gateway:8000"))
	})
})

var _ = Describe("New", func() {
	It("requires a target for every service", func() {
		_, err := client.New(client.Config{Targets: client.Targets{Chat: "http://chat"}})
		Expect(err).To(MatchError(ContainSubstring("no target configured for auth service")))
	})
})

var _ = Describe("Client", func() {
	var (
		mux    *http.ServeMux
		server *httptest.Server
		ctx    context.Context
	)

	BeforeEach(func() {
		mux = http.NewServeMux()
		server = httptest.NewServer(mux)
		ctx = context.Background()
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("auth", func() {
		It("logs in and converts the token into a session", func() {
			mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				var body map[string]string
				Expect(json.NewDecoder(r.Body).Decode(&body)).To(Succeed())
				Expect(body).To(Equal(map[string]string{"email": "ada@example.com", "password": "hunter22"}))

				writeJSON(w, http.StatusOK, map[string]any{
					"token": "jwt", "user_id": 42, "username": "ada", "email": "ada@example.com",
				})
			})

			tok, err := newTestClient(server, nil).Login(ctx, "ada@example.com", "hunter22")
			Expect(err).NotTo(HaveOccurred())

			s := tok.Session()
			Expect(s.Token).To(Equal("jwt"))
			Expect(s.UserID).To(Equal("42"))
			Expect(s.Username).To(Equal("ada"))
		})

		It("maps invalid credentials to ErrUnauthorized", func() {
			mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid credentials"})
			})

			_, err := newTestClient(server, nil).Login(ctx, "ada@example.com", "nope")
			Expect(errors.Is(err, client.ErrUnauthorized)).To(BeTrue())

			var apiErr *client.APIError
			Expect(errors.As(err, &apiErr)).To(BeTrue())
			Expect(apiErr.Detail).To(Equal("Invalid credentials"))
			Expect(apiErr.Service).To(Equal(client.ServiceAuth))
		})

		It("sends the bearer token to /me", func() {
			mux.HandleFunc("GET /api/auth/me", func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(r.Header.Get("Authorization")).To(Equal("Bearer tok-123"))
				writeJSON(w, http.StatusOK, map[string]any{
					"id": 42, "username": "ada", "email": "ada@example.com",
					"created_at": "2025-01-02 03:04:05.123456+00:00", "is_active": true,
				})
			})

			u, err := newTestClient(server, testSession).Me(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(u.ID.String()).To(Equal("42"))
			Expect(u.CreatedAt.Year()).To(Equal(2025))
			Expect(u.IsActive).To(BeTrue())
		})

		It("refuses /me without a session", func() {
			_, err := newTestClient(server, nil).Me(ctx)
			Expect(err).To(MatchError(credentials.ErrNotLoggedIn))
		})
	})

	Describe("errors", func() {
		It("keeps structured validation details", func() {
			mux.HandleFunc("POST /api/auth/register", func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
					"detail": []map[string]any{{"loc": []string{"body", "email"}, "msg": "value is not a valid email address"}},
				})
			})

			_, err := newTestClient(server, nil).Register(ctx, "ada", "bad", "hunter22")
			Expect(err).To(MatchError(ContainSubstring("status 422")))
			Expect(err).To(MatchError(ContainSubstring("not a valid email")))
		})

		It("uses the plain body when there is no detail", func() {
			mux.HandleFunc("GET /api/documents/{id}", func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "upstream gone", http.StatusNotFound)
			})

			_, err := newTestClient(server, testSession).Document(ctx, "d1")
			Expect(errors.Is(err, client.ErrNotFound)).To(BeTrue())
			Expect(err).To(MatchError(ContainSubstring("upstream gone")))
		})
	})

	Describe("circuit breaker", func() {
		It("opens after consecutive server errors and fails fast", func() {
			var hits atomic.Int32
			mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
				hits.Add(1)
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"detail": "down"})
			})

			c := newTestClient(server, nil)
			for range 3 {
				_, err := c.Health(ctx, client.ServiceQuiz)
				Expect(err).To(HaveOccurred())
			}
			Expect(c.BreakerState(client.ServiceQuiz)).To(Equal(gobreaker.StateOpen))

			_, err := c.Health(ctx, client.ServiceQuiz)
			Expect(errors.Is(err, gobreaker.ErrOpenState)).To(BeTrue())
			Expect(err).To(MatchError(ContainSubstring("quiz service circuit open")))
			Expect(hits.Load()).To(Equal(int32(3)))

			// Other services keep their own breaker.
			Expect(c.BreakerState(client.ServiceChat)).To(Equal(gobreaker.StateClosed))
		})

		It("does not trip on client errors", func() {
			mux.HandleFunc("GET /api/quiz/{id}", func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Quiz not found"})
			})

			c := newTestClient(server, nil)
			for range 5 {
				_, err := c.Quiz(ctx, "missing")
				Expect(errors.Is(err, client.ErrNotFound)).To(BeTrue())
			}
			Expect(c.BreakerState(client.ServiceQuiz)).To(Equal(gobreaker.StateClosed))
		})
	})

	Describe("Health", func() {
		It("checks auth on its root path and others on /health", func() {
			mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusOK, map[string]string{"service": "auth", "status": "healthy"})
			})
			mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusOK, map[string]string{
					"status": "healthy", "service": "chat-service", "gemini_ai": "configured", "database": "connected",
				})
			})

			c := newTestClient(server, nil)

			h, err := c.Health(ctx, client.ServiceAuth)
			Expect(err).NotTo(HaveOccurred())
			Expect(h.Service).To(Equal("auth"))

			h, err = c.Health(ctx, client.ServiceChat)
			Expect(err).NotTo(HaveOccurred())
			Expect(h.AI).To(Equal("configured"))
			Expect(h.Database).To(Equal("connected"))
		})
	})

	Describe("Speak", func() {
		It("writes the synthesized audio", func() {
			mux.HandleFunc("POST /api/audio/tts", func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				var body map[string]string
				Expect(json.NewDecoder(r.Body).Decode(&body)).To(Succeed())
				Expect(body["voice"]).To(Equal("alloy"))
				w.Header().Set("Content-Type", "audio/mpeg")
				_, _ = io.WriteString(w, "ID3-audio")
			})

			var out fakeFile
			ct, n, err := newTestClient(server, testSession).Speak(ctx, "hello", "alloy", &out)
			Expect(err).NotTo(HaveOccurred())
			Expect(ct).To(Equal("audio/mpeg"))
			Expect(n).To(Equal(int64(9)))
			Expect(string(out)).To(Equal("ID3-audio"))
		})

		Context("with a request timeout", func() {
			var c *client.Client

			BeforeEach(func() {
				var err error
				c, err = client.New(client.Config{
					Targets: client.Targets{API: server.URL},
					Session: testSession,
					Timeout: 100 * time.Millisecond,
				})
				Expect(err).NotTo(HaveOccurred())
			})

			It("lets a slow body finish after the headers arrive", func() {
				mux.HandleFunc("POST /api/audio/tts", func(w http.ResponseWriter, _ *http.Request) {
					w.Header().Set("Content-Type", "audio/mpeg")
					_, _ = io.WriteString(w, "ID3-")
					w.(http.Flusher).Flush()
					time.Sleep(250 * time.Millisecond)
					_, _ = io.WriteString(w, "audio")
				})

				var out fakeFile
				_, n, err := c.Speak(ctx, "hello", "alloy", &out)
				Expect(err).NotTo(HaveOccurred())
				Expect(n).To(Equal(int64(9)))
				Expect(string(out)).To(Equal("ID3-audio"))
			})

			It("times out waiting for the headers", func() {
				mux.HandleFunc("POST /api/audio/tts", func(w http.ResponseWriter, r *http.Request) {
					select {
					case <-r.Context().Done():
					case <-time.After(time.Second):
					}
				})

				_, _, err := c.Speak(ctx, "hello", "alloy", io.Discard)
				Expect(err).To(MatchError(context.DeadlineExceeded))
			})
		})

		It("rejects empty text", func() {
			_, _, err := newTestClient(server, testSession).Speak(ctx, "", "alloy", io.Discard)
			Expect(err).To(HaveOccurred())
		})
	})
})

type fakeFile []byte

func (f *fakeFile) Write(p []byte) (int, error) {
	*f = append(*f, p...)
	return len(p), nil
}

var _ = Describe("ID", func() {
	DescribeTable("unmarshals numbers and strings",
		func(raw, want string) {
			var id client.ID
			Expect(json.Unmarshal([]byte(raw), &id)).To(Succeed())
			Expect(id.String()).To(Equal(want))
		},
		Entry("number", `42`, "42"),
		Entry("string", `"b3f1"`, "b3f1"),
		Entry("null", `null`, ""),
	)

	It("rejects objects", func() {
		var id client.ID
		Expect(json.Unmarshal([]byte(`{}`), &id)).NotTo(Succeed())
	})
})

var _ = Describe("Timestamp", func() {
	DescribeTable("parses Python isoformat output",
		func(raw string, wantZero bool) {
			var ts client.Timestamp
			Expect(json.Unmarshal([]byte(raw), &ts)).To(Succeed())
			Expect(ts.IsZero()).To(Equal(wantZero))
		},
		Entry("naive", `"2025-03-01T10:11:12.123456"`, false),
		Entry("aware", `"2025-03-01T10:11:12+00:00"`, false),
		Entry("str()", `"2025-03-01 10:11:12.5+00:00"`, false),
		Entry("null", `null`, true),
	)

	It("rejects garbage", func() {
		var ts client.Timestamp
		Expect(json.Unmarshal([]byte(fmt.Sprintf("%q", "yesterday")), &ts)).NotTo(Succeed())
	})
})
