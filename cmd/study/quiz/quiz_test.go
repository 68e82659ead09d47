package quizcmder

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/cloudlearn/study/cmd/study/cmdenv"
	"github.com/cloudlearn/study/pkg/client"
	"github.com/cloudlearn/study/pkg/credentials"
)

// fakeQuizService records requests against an in-memory quiz.
type fakeQuizService struct {
	mu        sync.Mutex
	generated []client.QuizRequest
	submitted []map[string]any
	deleted   []string
}

func (f *fakeQuizService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/quiz/generate", func(w http.ResponseWriter, r *http.Request) {
		var req client.QuizRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.generated = append(f.generated, req)
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"quiz_id":4,"title":"Quiz: cells.pdf","num_questions":3,"status":"created"}`))
	})
	mux.HandleFunc("GET /api/quiz/history", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"quiz_id":4,"title":"Quiz: cells.pdf","score":66.7,"submitted_at":"2026-05-03T10:00:00"}]`))
	})
	mux.HandleFunc("GET /api/quiz/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "9" {
			_, _ = w.Write([]byte(`{"id":9,"title":"Empty","questions":[],"created_at":"2026-05-03T09:00:00"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":4,"title":"Quiz: cells.pdf","created_at":"2026-05-03T09:00:00","questions":[
			{"id":1,"type":"multiple_choice","question":"Where is DNA stored?","options":["A) Nucleus","B) Ribosome"]},
			{"id":2,"type":"true_false","question":"Mitochondria make ATP.","options":["True","False"]},
			{"id":3,"type":"short_answer","question":"Name the process of cell division."}
		]}`))
	})
	mux.HandleFunc("POST /api/quiz/{id}/submit", func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.submitted = append(f.submitted, body)
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"score":66.7,"correct_count":2,"total_questions":3,"submitted_at":"2026-05-03T10:00:00","feedback":[
			{"question_id":1,"question":"Where is DNA stored?","user_answer":"A","correct_answer":"A","is_correct":true,"explanation":"The nucleus holds DNA."},
			{"question_id":2,"question":"Mitochondria make ATP.","user_answer":"true","correct_answer":"true","is_correct":true,"explanation":""},
			{"question_id":3,"question":"Name the process of cell division.","user_answer":"","correct_answer":"mitosis","is_correct":false,"explanation":"Mitosis splits a cell in two."}
		]}`))
	})
	mux.HandleFunc("GET /api/quiz/{id}/results", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("user_id") != "12" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"No results found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"score":100,"correct_count":1,"total_questions":1,"submitted_at":"2026-05-03T10:00:00","feedback":[
			{"question_id":1,"question":"Where is DNA stored?","user_answer":"A","correct_answer":"A","is_correct":true,"explanation":""}
		]}`))
	})
	mux.HandleFunc("DELETE /api/quiz/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.deleted = append(f.deleted, r.PathValue("id"))
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"status":"deleted"}`))
	})
	return mux
}

func newRoot() *cobra.Command {
	root := &cobra.Command{Use: "study", SilenceUsage: true, SilenceErrors: true}
	cmdenv.AddGlobalFlags(root)
	root.AddCommand(NewQuizCmd())
	return root
}

var _ = Describe("Quiz Command", func() {
	var (
		tmpDir string
		fake   *fakeQuizService
		server *httptest.Server
		out    *bytes.Buffer
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "quiz-test-*")
		Expect(err).NotTo(HaveOccurred())

		fake = &fakeQuizService{}
		server = httptest.NewServer(fake.handler())
		out = &bytes.Buffer{}

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
		root.SetArgs(append(args, "--config-dir", tmpDir, "--quiz-target", server.URL))
		return root.Execute()
	}

	Describe("generate", func() {
		It("requests a quiz with the chosen size and types", func() {
			Expect(run("quiz", "generate", "17", "-n", "3", "--types", "multiple_choice,short_answer")).To(Succeed())

			Expect(fake.generated).To(HaveLen(1))
			Expect(fake.generated[0].DocumentID).To(Equal("17"))
			Expect(fake.generated[0].NumQuestions).To(Equal(3))
			Expect(fake.generated[0].QuestionTypes).To(Equal([]string{"multiple_choice", "short_answer"}))
			Expect(out.String()).To(ContainSubstring("study quiz take 4"))
		})

		It("rejects unknown question types", func() {
			err := run("quiz", "generate", "17", "--types", "essay")
			Expect(err).To(MatchError(ContainSubstring(`unknown question type "essay"`)))
			Expect(fake.generated).To(BeEmpty())
		})
	})

	Describe("show", func() {
		It("lists questions and options", func() {
			Expect(run("quiz", "show", "4")).To(Succeed())

			Expect(out.String()).To(ContainSubstring("Where is DNA stored?"))
			Expect(out.String()).To(ContainSubstring("B) Ribosome"))
			Expect(out.String()).To(ContainSubstring("(short answer)"))
		})
	})

	Describe("take --answers", func() {
		It("submits answers in question order and prints feedback", func() {
			Expect(run("quiz", "take", "4", "--answers", "A,true,")).To(Succeed())

			Expect(fake.submitted).To(HaveLen(1))
			Expect(fake.submitted[0]["quiz_id"]).To(Equal("4"))
			Expect(fake.submitted[0]["user_id"]).To(Equal("12"))
			Expect(fake.submitted[0]["answers"]).To(Equal([]any{
				map[string]any{"question_id": 1.0, "answer": "A"},
				map[string]any{"question_id": 2.0, "answer": "true"},
			}))

			Expect(out.String()).To(ContainSubstring("(2 of 3 correct)"))
			Expect(out.String()).To(ContainSubstring("(no answer)"))
			Expect(out.String()).To(ContainSubstring("mitosis"))
			Expect(out.String()).To(ContainSubstring("Mitosis splits a cell in two."))
		})

		It("accepts quoted answers containing commas", func() {
			Expect(run("quiz", "take", "4", "--answers", `B,false,"mitosis, then cytokinesis"`)).To(Succeed())

			answers := fake.submitted[0]["answers"].([]any)
			Expect(answers).To(HaveLen(3))
			Expect(answers[2]).To(HaveKeyWithValue("answer", "mitosis, then cytokinesis"))
		})

		It("rejects more answers than questions", func() {
			err := run("quiz", "take", "4", "--answers", "A,true,mitosis,extra")
			Expect(err).To(MatchError("got 4 answers for 3 questions"))
			Expect(fake.submitted).To(BeEmpty())
		})

		It("refuses a quiz without questions", func() {
			err := run("quiz", "take", "9", "--answers", "A")
			Expect(err).To(MatchError("quiz 9 has no questions"))
		})
	})

	Describe("results", func() {
		It("prints the latest graded attempt", func() {
			Expect(run("quiz", "results", "4")).To(Succeed())

			Expect(out.String()).To(ContainSubstring("(1 of 1 correct)"))
			Expect(out.String()).To(ContainSubstring("Where is DNA stored?"))
		})
	})

	Describe("history", func() {
		It("lists attempts", func() {
			Expect(run("quiz", "history")).To(Succeed())

			Expect(out.String()).To(ContainSubstring("Quiz: cells.pdf"))
			Expect(out.String()).To(ContainSubstring("67%"))
		})
	})

	Describe("delete", func() {
		It("deletes the quiz", func() {
			Expect(run("quiz", "delete", "4")).To(Succeed())
			Expect(fake.deleted).To(Equal([]string{"4"}))
		})
	})

	It("requires a session", func() {
		mgr, err := credentials.NewManager(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(mgr.ClearSession()).To(Succeed())

		Expect(run("quiz", "history")).To(MatchError(credentials.ErrNotLoggedIn))
	})
})
