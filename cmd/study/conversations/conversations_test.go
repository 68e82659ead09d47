package conversationscmder_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/cloudlearn/study/cmd/study/cmdenv"
	conversationscmder "github.com/cloudlearn/study/cmd/study/conversations"
	"github.com/cloudlearn/study/pkg/credentials"
	"github.com/cloudlearn/study/pkg/dotdir"
)

const (
	convA = "3f2504e0-4f89-11d3-9a0c-0305e82c3301"
	convB = "7c9e6679-7425-40de-944b-e07fc1f90ae7"
)

func newRoot() *cobra.Command {
	root := &cobra.Command{Use: "study", SilenceUsage: true, SilenceErrors: true}
	cmdenv.AddGlobalFlags(root)
	root.AddCommand(conversationscmder.NewConversationsCmd())
	return root
}

var _ = Describe("Conversations Command", func() {
	var (
		tmpDir  string
		server  *httptest.Server
		out     *bytes.Buffer
		renamed map[string]string
		deleted []string
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "conversations-test-*")
		Expect(err).NotTo(HaveOccurred())

		out = &bytes.Buffer{}
		renamed = map[string]string{}
		deleted = nil

		mux := http.NewServeMux()
		mux.HandleFunc("GET /api/chat/conversations/list", func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.URL.Query().Get("user_id")).To(Equal("12"))
			_, _ = w.Write([]byte(`[
				{"id":"` + convA + `","title":"Cell biology","last_active":"2026-05-02T10:00:00","message_count":4,"last_message":"Mitochondria\nare the powerhouse"},
				{"id":"` + convB + `","title":"Algebra","last_active":"2026-05-01T09:00:00","message_count":0,"last_message":null}
			]`))
		})
		mux.HandleFunc("POST /api/chat/conversations/new", func(w http.ResponseWriter, r *http.Request) {
			var in map[string]string
			_ = json.NewDecoder(r.Body).Decode(&in)
			_, _ = w.Write([]byte(`{"id":"` + convB + `","title":"` + in["title"] + `"}`))
		})
		mux.HandleFunc("GET /api/chat/conversations/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
			if r.PathValue("id") != convA {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"detail":"Conversation not found"}`))
				return
			}
			_, _ = w.Write([]byte(`{"conversation_id":"` + convA + `","title":"Cell biology","messages":[
				{"id":1,"message":"What is a cell?","role":"user","timestamp":"2026-05-02T09:59:00"},
				{"id":2,"message":"The basic unit of life.","role":"assistant","timestamp":"2026-05-02T10:00:00"}
			]}`))
		})
		mux.HandleFunc("PATCH /api/chat/conversations/{id}/title", func(w http.ResponseWriter, r *http.Request) {
			var in map[string]string
			_ = json.NewDecoder(r.Body).Decode(&in)
			renamed[r.PathValue("id")] = in["title"]
			_, _ = w.Write([]byte(`{"status":"updated"}`))
		})
		mux.HandleFunc("DELETE /api/chat/conversations/{id}", func(w http.ResponseWriter, r *http.Request) {
			deleted = append(deleted, r.PathValue("id"))
			_, _ = w.Write([]byte(`{"status":"deleted"}`))
		})
		server = httptest.NewServer(mux)

		mgr, err := credentials.NewManager(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(mgr.SaveSession(&credentials.Session{Token: "tok", UserID: "12", Username: "ada"})).To(Succeed())
	})

	AfterEach(func() {
		server.Close()
		os.RemoveAll(tmpDir)
	})

	run := func(args ...string) error {
		root := newRoot()
		root.SetOut(out)
		root.SetErr(&bytes.Buffer{})
		root.SetArgs(append(args, "--config-dir", tmpDir, "--chat-target", server.URL))
		return root.Execute()
	}

	active := func() *dotdir.ConversationState {
		state, err := dotdir.NewManager().LoadConversation(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		return state
	}

	It("lists conversations with previews and the active marker", func() {
		Expect(dotdir.NewManager().SaveConversation(&dotdir.ConversationState{ID: convA, UserID: "12"}, tmpDir)).To(Succeed())

		Expect(run("conversations", "list")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Cell biology"))
		Expect(out.String()).To(ContainSubstring("Mitochondria are the powerhouse"))
		Expect(out.String()).To(ContainSubstring("✓ " + convA))
		Expect(out.String()).To(ContainSubstring("(0 messages"))
	})

	It("starts a conversation and makes it active", func() {
		Expect(run("conversations", "new", "Algebra")).To(Succeed())

		state := active()
		Expect(state.ID).To(Equal(convB))
		Expect(state.Title).To(Equal("Algebra"))
		Expect(state.UserID).To(Equal("12"))
	})

	It("shows the active conversation", func() {
		Expect(dotdir.NewManager().SaveConversation(&dotdir.ConversationState{ID: convA, UserID: "12"}, tmpDir)).To(Succeed())

		Expect(run("conversations", "show", "--limit", "10")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("What is a cell?"))
		Expect(out.String()).To(ContainSubstring("basic unit of life"))
		Expect(out.String()).To(ContainSubstring("(2 messages)"))
	})

	It("ignores an active conversation of another user", func() {
		Expect(dotdir.NewManager().SaveConversation(&dotdir.ConversationState{ID: convA, UserID: "99"}, tmpDir)).To(Succeed())

		Expect(run("conversations", "show")).To(MatchError(ContainSubstring("no active conversation")))
	})

	It("switches the active conversation with use", func() {
		Expect(run("conversations", "use", convA)).To(Succeed())
		Expect(active().Title).To(Equal("Cell biology"))

		Expect(run("conversations", "use", convB)).To(MatchError(ContainSubstring("Conversation not found")))
	})

	It("renames the active conversation locally too", func() {
		Expect(dotdir.NewManager().SaveConversation(&dotdir.ConversationState{ID: convA, Title: "Cell biology", UserID: "12"}, tmpDir)).To(Succeed())

		Expect(run("conversations", "rename", convA, " Mitosis ")).To(Succeed())
		Expect(renamed).To(HaveKeyWithValue(convA, "Mitosis"))
		Expect(active().Title).To(Equal("Mitosis"))
	})

	It("deletes a conversation and forgets it when active", func() {
		Expect(dotdir.NewManager().SaveConversation(&dotdir.ConversationState{ID: convA, UserID: "12"}, tmpDir)).To(Succeed())

		Expect(run("conversations", "delete", convA)).To(Succeed())
		Expect(deleted).To(Equal([]string{convA}))
		Expect(active()).To(BeNil())
	})

	It("rejects ids that are not conversation ids", func() {
		Expect(run("conversations", "delete", "latest")).To(MatchError(ContainSubstring("invalid conversation id")))
	})

	It("requires a session", func() {
		mgr, err := credentials.NewManager(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(mgr.ClearSession()).To(Succeed())

		err = run("conversations", "list")
		Expect(errors.Is(err, credentials.ErrNotLoggedIn)).To(BeTrue())
	})
})
