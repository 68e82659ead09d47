package quizcmder

import (
	"errors"
	"io"

	bubbletea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/cloudlearn/study/pkg/client"
)

func sampleQuiz() *client.Quiz {
	return &client.Quiz{
		ID:    "4",
		Title: "Cell biology",
		Questions: []client.Question{
			{ID: 1, Type: client.QuestionMultipleChoice, Question: "Where is DNA stored?", Options: []string{"A) Nucleus", "B) Ribosome", "C) Membrane"}},
			{ID: 2, Type: client.QuestionTrueFalse, Question: "Mitochondria make ATP."},
			{ID: 3, Type: client.QuestionShortAnswer, Question: "Name the process of cell division."},
		},
	}
}

func keyRunes(s string) bubbletea.KeyMsg {
	return bubbletea.KeyMsg{Type: bubbletea.KeyRunes, Runes: []rune(s)}
}

func keyType(t bubbletea.KeyType) bubbletea.KeyMsg {
	return bubbletea.KeyMsg{Type: t}
}

// press feeds msgs to m and returns the resulting model and last command.
func press(m quizModel, msgs ...bubbletea.Msg) (quizModel, bubbletea.Cmd) {
	var cmd bubbletea.Cmd
	for _, msg := range msgs {
		var next bubbletea.Model
		next, cmd = m.Update(msg)
		m = next.(quizModel)
	}
	return m, cmd
}

var _ = Describe("quizModel", func() {
	var (
		submitted [][]client.Answer
		model     quizModel
	)

	BeforeEach(func() {
		submitted = nil
		submit := func(a []client.Answer) (*client.QuizResult, error) {
			submitted = append(submitted, a)
			return &client.QuizResult{Score: 100, CorrectCount: 3, TotalQuestions: 3}, nil
		}
		model = newQuizModel(sampleQuiz(), submit, lipgloss.NewRenderer(io.Discard))
	})

	It("starts on the first question", func() {
		Expect(model.stage).To(Equal(stageAnswering))
		Expect(model.index).To(BeZero())
		Expect(model.View()).To(ContainSubstring("Question 1 of 3"))
		Expect(model.View()).To(ContainSubstring("Where is DNA stored?"))
	})

	It("answers every question and submits in question order", func() {
		m, _ := press(model,
			keyRunes("j"), keyRunes("k"), keyType(bubbletea.KeyEnter), // A
			keyRunes("j"), keyType(bubbletea.KeyEnter), // false
			keyRunes("mitosis"), keyType(bubbletea.KeySpace), keyRunes("x"), keyType(bubbletea.KeyBackspace), keyType(bubbletea.KeyBackspace),
			keyType(bubbletea.KeyEnter),
		)
		Expect(m.stage).To(Equal(stageConfirm))
		Expect(m.View()).To(ContainSubstring("You answered 3 of 3 questions."))

		m, cmd := press(m, keyType(bubbletea.KeyEnter))
		Expect(m.stage).To(Equal(stageSubmitting))
		Expect(cmd).NotTo(BeNil())

		msg := cmd()
		Expect(submitted).To(Equal([][]client.Answer{{
			{QuestionID: 1, Answer: "A"},
			{QuestionID: 2, Answer: "false"},
			{QuestionID: 3, Answer: "mitosis"},
		}}))

		m, cmd = press(m, msg)
		Expect(m.stage).To(Equal(stageDone))
		Expect(m.result.Score).To(Equal(100.0))
		Expect(cmd).NotTo(BeNil())
	})

	It("keeps the cursor inside the options", func() {
		m, _ := press(model, keyRunes("j"), keyRunes("j"), keyRunes("j"), keyRunes("j"))
		Expect(m.cursor).To(Equal(2))

		m, _ = press(m, keyRunes("k"), keyRunes("k"), keyRunes("k"))
		Expect(m.cursor).To(BeZero())
	})

	It("ignores enter on an empty short answer", func() {
		m, _ := press(model, keyType(bubbletea.KeyEnter), keyType(bubbletea.KeyEnter))
		Expect(m.index).To(Equal(2))

		m, _ = press(m, keyRunes("   "), keyType(bubbletea.KeyEnter))
		Expect(m.index).To(Equal(2))
		Expect(m.stage).To(Equal(stageAnswering))
	})

	It("restores previous answers when going back", func() {
		m, _ := press(model, keyRunes("j"), keyRunes("j"), keyType(bubbletea.KeyEnter))
		Expect(m.index).To(Equal(1))
		Expect(m.cursor).To(BeZero())

		m, _ = press(m, keyType(bubbletea.KeyEsc))
		Expect(m.index).To(BeZero())
		Expect(m.cursor).To(Equal(2))

		m, _ = press(m, keyType(bubbletea.KeyEsc))
		Expect(m.index).To(BeZero())
	})

	It("returns to the last question from the confirm stage", func() {
		m, _ := press(model,
			keyType(bubbletea.KeyEnter), keyType(bubbletea.KeyEnter),
			keyRunes("meiosis"), keyType(bubbletea.KeyEnter),
		)
		Expect(m.stage).To(Equal(stageConfirm))

		m, _ = press(m, keyType(bubbletea.KeyEsc))
		Expect(m.stage).To(Equal(stageAnswering))
		Expect(m.index).To(Equal(2))
		Expect(string(m.input)).To(Equal("meiosis"))
	})

	It("aborts on ctrl+c without submitting", func() {
		m, cmd := press(model, keyType(bubbletea.KeyCtrlC))
		Expect(m.aborted).To(BeTrue())
		Expect(cmd).NotTo(BeNil())
		Expect(submitted).To(BeEmpty())
	})

	It("keeps a submission error for the caller", func() {
		m, _ := press(model, submittedMsg{err: errors.New("quiz service unavailable")})
		Expect(m.stage).To(Equal(stageDone))
		Expect(m.err).To(MatchError("quiz service unavailable"))
		Expect(m.View()).To(ContainSubstring("quiz service unavailable"))
	})
})

var _ = Describe("choiceAnswer", func() {
	DescribeTable("maps options to graded answers",
		func(q client.Question, i int, want string) {
			Expect(choiceAnswer(q, i)).To(Equal(want))
		},
		Entry("lettered option", client.Question{Type: client.QuestionMultipleChoice, Options: []string{"A) Nucleus", "B) Ribosome"}}, 1, "B"),
		Entry("bare letter", client.Question{Type: client.QuestionMultipleChoice, Options: []string{"a", "b"}}, 0, "A"),
		Entry("dotted letter", client.Question{Type: client.QuestionMultipleChoice, Options: []string{"C. Golgi"}}, 0, "C"),
		Entry("plain text option", client.Question{Type: client.QuestionMultipleChoice, Options: []string{"A cell wall", "Chloroplast"}}, 0, "A cell wall"),
		Entry("default true/false", client.Question{Type: client.QuestionTrueFalse}, 0, "true"),
		Entry("explicit true/false", client.Question{Type: client.QuestionTrueFalse, Options: []string{"True", "False"}}, 1, "false"),
		Entry("out of range", client.Question{Type: client.QuestionMultipleChoice, Options: []string{"A"}}, 3, ""),
	)

	It("treats questions without options as short answer unless true/false", func() {
		Expect(isShortAnswer(client.Question{Type: client.QuestionMultipleChoice})).To(BeTrue())
		Expect(isShortAnswer(client.Question{Type: client.QuestionTrueFalse})).To(BeFalse())
		Expect(isShortAnswer(client.Question{Type: client.QuestionShortAnswer, Options: []string{"x"}})).To(BeTrue())
	})
})
