package chatcmder

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/cloudlearn/study/cmd/study/cmdenv"
	"github.com/cloudlearn/study/pkg/credentials"
	"github.com/cloudlearn/study/pkg/dotdir"
)

const (
	convA = "3f2504e0-4f89-11d3-9a0c-0305e82c3301"
	convB = "7c9e6679-7425-40de-944b-e07fc1f90ae7"
)

type chatRequest struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
	Stream         bool   `json:"stream"`
}

// fakeChatService records requests and streams a canned reply.
type fakeChatService struct {
	mu       sync.Mutex
	requests []chatRequest
	created  []string
	renamed  []string
	frames   []string
	abort    bool
}

func (f *fakeChatService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat/message", func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		f.mu.Lock()
		f.requests = append(f.requests, req)
		frames, abort := f.frames, f.abort
		f.mu.Unlock()

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, frame := range frames {
			_, _ = io.WriteString(w, frame)
			flusher.Flush()
		}
		if abort {
			panic(http.ErrAbortHandler)
		}
	})
	mux.HandleFunc("POST /api/chat/conversations/new", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)

		f.mu.Lock()
		f.created = append(f.created, in["title"])
		f.mu.Unlock()

		_, _ = w.Write([]byte(`{"id":"` + convB + `","title":"` + in["title"] + `"}`))
	})
	mux.HandleFunc("GET /api/chat/conversations/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"conversation_id":"` + r.PathValue("id") + `","title":"Cell biology","messages":[
			{"id":1,"message":"What is a cell?","role":"user","timestamp":"2026-05-02T09:59:00"}
		]}`))
	})
	mux.HandleFunc("PATCH /api/chat/conversations/{id}/title", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)

		f.mu.Lock()
		f.renamed = append(f.renamed, in["title"])
		f.mu.Unlock()

		_, _ = w.Write([]byte(`{"status":"updated"}`))
	})
	return mux
}

func newRoot() *cobra.Command {
	root := &cobra.Command{Use: "study", SilenceUsage: true, SilenceErrors: true}
	cmdenv.AddGlobalFlags(root)
	root.AddCommand(NewChatCmd())
	return root
}

var _ = Describe("Chat Command", func() {
	var (
		tmpDir string
		fake   *fakeChatService
		server *httptest.Server
		out    *bytes.Buffer
		errOut *bytes.Buffer
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "chat-test-*")
		Expect(err).NotTo(HaveOccurred())

		fake = &fakeChatService{
			frames: []string{
				"data: {\"text\": \"Osmosis is \"}\n\n",
				"data: {\"text\": \"diffusion of water.\"}\n\n",
				"data: {\"done\": true}\n\n",
			},
		}
		server = httptest.NewServer(fake.handler())
		out = &bytes.Buffer{}
		errOut = &bytes.Buffer{}

		mgr, err := credentials.NewManager(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(mgr.SaveSession(&credentials.Session{Token: "tok", UserID: "12", Username: "ada"})).To(Succeed())
	})

	AfterEach(func() {
		server.Close()
		os.RemoveAll(tmpDir)
	})

	run := func(stdin string, args ...string) error {
		root := newRoot()
		root.SetIn(strings.NewReader(stdin))
		root.SetOut(out)
		root.SetErr(errOut)
		root.SetArgs(append(append([]string{"chat"}, args...), "--config-dir", tmpDir, "--api-target", server.URL))
		return root.Execute()
	}

	active := func() *dotdir.ConversationState {
		state, err := dotdir.NewManager().LoadConversation(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		return state
	}

	It("creates a conversation and streams a one-shot reply", func() {
		Expect(run("", "-m", "What is osmosis?", "--title", "Biology")).To(Succeed())

		Expect(fake.created).To(Equal([]string{"Biology"}))
		Expect(fake.requests).To(HaveLen(1))
		Expect(fake.requests[0]).To(Equal(chatRequest{
			UserID:         "12",
			ConversationID: convB,
			Message:        "What is osmosis?",
			Stream:         true,
		}))
		Expect(out.String()).To(ContainSubstring("Osmosis is diffusion of water.\n"))
		Expect(active().ID).To(Equal(convB))
	})

	It("resumes the remembered conversation", func() {
		Expect(dotdir.NewManager().SaveConversation(&dotdir.ConversationState{ID: convA, Title: "Cell biology", UserID: "12"}, tmpDir)).To(Succeed())

		Expect(run("", "-m", "next question")).To(Succeed())

		Expect(fake.created).To(BeEmpty())
		Expect(fake.requests[0].ConversationID).To(Equal(convA))
		Expect(out.String()).To(ContainSubstring("Resuming"))
	})

	It("starts over with --new", func() {
		Expect(dotdir.NewManager().SaveConversation(&dotdir.ConversationState{ID: convA, UserID: "12"}, tmpDir)).To(Succeed())

		Expect(run("", "-m", "hi", "--new")).To(Succeed())

		Expect(fake.created).To(HaveLen(1))
		Expect(fake.requests[0].ConversationID).To(Equal(convB))
		Expect(active().ID).To(Equal(convB))
	})

	It("continues an explicit conversation", func() {
		Expect(run("", "-m", "hi", "--conversation", strings.ToUpper(convA))).To(Succeed())

		Expect(fake.requests[0].ConversationID).To(Equal(convA))
		Expect(active().Title).To(Equal("Cell biology"))
	})

	It("runs an interactive session with slash commands", func() {
		Expect(dotdir.NewManager().SaveConversation(&dotdir.ConversationState{ID: convA, UserID: "12"}, tmpDir)).To(Succeed())

		stdin := "first\n\n/history\n/title Osmosis\n/bogus\nsecond\n/exit\nnever sent\n"
		Expect(run(stdin, "--plain")).To(Succeed())

		Expect(fake.requests).To(HaveLen(2))
		Expect(fake.requests[1].Message).To(Equal("second"))
		Expect(fake.renamed).To(Equal([]string{"Osmosis"}))
		Expect(out.String()).To(ContainSubstring("What is a cell?"))
		Expect(errOut.String()).To(ContainSubstring("unknown command /bogus"))
		Expect(active().Title).To(Equal("Osmosis"))
	})

	It("keeps the partial reply and reports a broken stream", func() {
		fake.frames = []string{"data: {\"text\": \"Osmosis is\"}\n\n"}
		fake.abort = true

		err := run("", "-m", "What is osmosis?")
		Expect(err).To(MatchError(ContainSubstring("receiving reply")))
		Expect(out.String()).To(ContainSubstring("Osmosis is"))
	})

	It("appends raw streams to the transcript", func() {
		transcript := filepath.Join(tmpDir, "stream.log")
		fake.frames = []string{": ping\n\ndata: {\"text\": \"hello\"}\n\ndata: [DONE]\n"}

		Expect(run("", "-m", "hi", "--transcript", transcript)).To(Succeed())

		data, err := os.ReadFile(transcript)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal(strings.Join(fake.frames, "")))
	})

	It("requires a session", func() {
		mgr, err := credentials.NewManager(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(mgr.ClearSession()).To(Succeed())

		err = run("", "-m", "hi")
		Expect(errors.Is(err, credentials.ErrNotLoggedIn)).To(BeTrue())
	})

	It("rejects an invalid events provider configuration", func() {
		err := run("", "-m", "hi", "--events-provider", "kafka", "--events-brokers", "")
		Expect(err).To(MatchError(ContainSubstring("kafka brokers are required")))
	})
})
