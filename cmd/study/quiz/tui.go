package quizcmder

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	bubbletea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cloudlearn/study/pkg/client"
)

type quizStage int

const (
	stageAnswering quizStage = iota
	stageConfirm
	stageSubmitting
	stageDone
)

type quizKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Back   key.Binding
	Quit   key.Binding
}

func (k quizKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Down, k.Up, k.Select, k.Back, k.Quit}
}

func (k quizKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Down, k.Up, k.Select}, {k.Back, k.Quit}}
}

func defaultKeyMap() quizKeyMap {
	return quizKeyMap{
		Up:     key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k", "up")),
		Down:   key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j", "down")),
		Select: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "answer")),
		Back:   key.NewBinding(key.WithKeys("esc", "shift+tab"), key.WithHelp("esc", "previous")),
		Quit:   key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
}

type quizStyles struct {
	title    lipgloss.Style
	muted    lipgloss.Style
	question lipgloss.Style
	selected lipgloss.Style
	answered lipgloss.Style
	input    lipgloss.Style
	errStyle lipgloss.Style
}

func newQuizStyles(r *lipgloss.Renderer) quizStyles {
	return quizStyles{
		title:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
		muted:    r.NewStyle().Foreground(lipgloss.Color("240")),
		question: r.NewStyle().Bold(true).Foreground(lipgloss.Color("252")),
		selected: r.NewStyle().Foreground(lipgloss.Color("235")).Background(lipgloss.Color("214")).Bold(true),
		answered: r.NewStyle().Foreground(lipgloss.Color("70")),
		input:    r.NewStyle().Foreground(lipgloss.Color("111")),
		errStyle: r.NewStyle().Foreground(lipgloss.Color("203")),
	}
}

// submitFunc grades answers. It runs outside the bubbletea event loop.
type submitFunc func(answers []client.Answer) (*client.QuizResult, error)

type submittedMsg struct {
	result *client.QuizResult
	err    error
}

type quizModel struct {
	quiz   *client.Quiz
	submit submitFunc

	stage  quizStage
	index  int
	cursor int
	input  []rune

	// answers maps question ids to the answer sent for grading.
	answers map[int]string

	result  *client.QuizResult
	err     error
	aborted bool

	width  int
	keys   quizKeyMap
	help   help.Model
	styles quizStyles
}

func newQuizModel(quiz *client.Quiz, submit submitFunc, r *lipgloss.Renderer) quizModel {
	m := quizModel{
		quiz:    quiz,
		submit:  submit,
		answers: map[int]string{},
		keys:    defaultKeyMap(),
		help:    help.New(),
		styles:  newQuizStyles(r),
	}
	m.loadQuestion()
	return m
}

func (m quizModel) Init() bubbletea.Cmd {
	return nil
}

func (m quizModel) Update(msg bubbletea.Msg) (bubbletea.Model, bubbletea.Cmd) {
	switch msg := msg.(type) {
	case bubbletea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil
	case submittedMsg:
		m.result = msg.result
		m.err = msg.err
		m.stage = stageDone
		return m, bubbletea.Quit
	case bubbletea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m quizModel) handleKey(msg bubbletea.KeyMsg) (bubbletea.Model, bubbletea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.aborted = true
		return m, bubbletea.Quit
	}

	switch m.stage {
	case stageConfirm:
		switch {
		case key.Matches(msg, m.keys.Select):
			m.stage = stageSubmitting
			return m, m.submitCmd()
		case key.Matches(msg, m.keys.Back):
			m.stage = stageAnswering
			m.loadQuestion()
		}
		return m, nil
	case stageAnswering:
	default:
		return m, nil
	}

	q := m.current()

	if key.Matches(msg, m.keys.Back) {
		if m.index > 0 {
			m.index--
			m.loadQuestion()
		}
		return m, nil
	}

	if key.Matches(msg, m.keys.Select) {
		if isShortAnswer(q) {
			text := strings.TrimSpace(string(m.input))
			if text == "" {
				return m, nil
			}
			m.answers[q.ID] = text
		} else {
			m.answers[q.ID] = choiceAnswer(q, m.cursor)
		}
		return m.advance(), nil
	}

	if isShortAnswer(q) {
		switch msg.Type {
		case bubbletea.KeyRunes, bubbletea.KeySpace:
			m.input = append(m.input, msg.Runes...)
			if msg.Type == bubbletea.KeySpace && len(msg.Runes) == 0 {
				m.input = append(m.input, ' ')
			}
		case bubbletea.KeyBackspace:
			if len(m.input) > 0 {
				m.input = m.input[:len(m.input)-1]
			}
		}
		return m, nil
	}

	options := optionsFor(q)
	switch {
	case key.Matches(msg, m.keys.Down):
		m.cursor = min(m.cursor+1, len(options)-1)
	case key.Matches(msg, m.keys.Up):
		m.cursor = max(m.cursor-1, 0)
	}
	return m, nil
}

func (m quizModel) advance() quizModel {
	if m.index >= len(m.quiz.Questions)-1 {
		m.stage = stageConfirm
		return m
	}
	m.index++
	m.loadQuestion()
	return m
}

// loadQuestion restores the cursor or input of the current question.
func (m *quizModel) loadQuestion() {
	m.cursor = 0
	m.input = nil

	if len(m.quiz.Questions) == 0 {
		return
	}

	q := m.current()
	prev, ok := m.answers[q.ID]
	if !ok {
		return
	}

	if isShortAnswer(q) {
		m.input = []rune(prev)
		return
	}
	for i := range optionsFor(q) {
		if choiceAnswer(q, i) == prev {
			m.cursor = i
		}
	}
}

func (m quizModel) current() client.Question {
	return m.quiz.Questions[m.index]
}

func (m quizModel) submitCmd() bubbletea.Cmd {
	answers := m.answerList()
	submit := m.submit
	return func() bubbletea.Msg {
		result, err := submit(answers)
		return submittedMsg{result: result, err: err}
	}
}

// answerList returns the given answers in question order.
func (m quizModel) answerList() []client.Answer {
	answers := make([]client.Answer, 0, len(m.answers))
	for _, q := range m.quiz.Questions {
		if a, ok := m.answers[q.ID]; ok {
			answers = append(answers, client.Answer{QuestionID: q.ID, Answer: a})
		}
	}
	return answers
}

func (m quizModel) View() string {
	var b strings.Builder

	b.WriteString(m.styles.title.Render(m.quiz.Title))
	b.WriteString("\n\n")

	switch m.stage {
	case stageAnswering:
		m.viewQuestion(&b)
	case stageConfirm:
		fmt.Fprintf(&b, "You answered %d of %d questions.\n\n", len(m.answers), len(m.quiz.Questions))
		b.WriteString(m.styles.muted.Render("enter submit · esc review answers"))
		b.WriteString("\n")
		return b.String()
	case stageSubmitting:
		b.WriteString(m.styles.muted.Render("Grading your answers..."))
		b.WriteString("\n")
		return b.String()
	case stageDone:
		if m.err != nil {
			b.WriteString(m.styles.errStyle.Render(m.err.Error()))
			b.WriteString("\n")
		}
		return b.String()
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	b.WriteString("\n")
	return b.String()
}

func (m quizModel) viewQuestion(b *strings.Builder) {
	q := m.current()

	fmt.Fprintf(b, "%s\n", m.styles.muted.Render(fmt.Sprintf("Question %d of %d · %s", m.index+1, len(m.quiz.Questions), questionLabel(q.Type))))
	b.WriteString(m.styles.question.Render(q.Question))
	b.WriteString("\n\n")

	if isShortAnswer(q) {
		fmt.Fprintf(b, "  > %s█\n", m.styles.input.Render(string(m.input)))
		return
	}

	prev, answered := m.answers[q.ID]
	for i, opt := range optionsFor(q) {
		line := "    " + opt
		if answered && choiceAnswer(q, i) == prev {
			line = "  " + m.styles.answered.Render("✓ "+opt)
		}
		if i == m.cursor {
			line = "  " + m.styles.selected.Render("› "+opt)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
}

func isShortAnswer(q client.Question) bool {
	return q.Type == client.QuestionShortAnswer || (q.Type != client.QuestionTrueFalse && len(q.Options) == 0)
}

func optionsFor(q client.Question) []string {
	if len(q.Options) == 0 && q.Type == client.QuestionTrueFalse {
		return []string{"True", "False"}
	}
	return q.Options
}

// choiceAnswer is the answer sent for option i. Options labelled with a
// letter ("B", "B) Mitosis") are answered with the letter, true/false with
// the lower-case word, anything else with the option text.
func choiceAnswer(q client.Question, i int) string {
	options := optionsFor(q)
	if i < 0 || i >= len(options) {
		return ""
	}

	opt := strings.TrimSpace(options[i])
	if q.Type == client.QuestionTrueFalse {
		return strings.ToLower(opt)
	}
	if l := optionLetter(opt); l != "" {
		return l
	}
	return opt
}

func optionLetter(opt string) string {
	r := []rune(opt)
	if len(r) == 0 || !unicode.IsLetter(r[0]) || r[0] > unicode.MaxASCII {
		return ""
	}
	if len(r) == 1 || strings.ContainsRune(").:", r[1]) {
		return strings.ToUpper(string(r[0]))
	}
	return ""
}

func questionLabel(t string) string {
	switch t {
	case client.QuestionMultipleChoice:
		return "multiple choice"
	case client.QuestionTrueFalse:
		return "true or false"
	case client.QuestionShortAnswer:
		return "short answer"
	}
	return t
}
