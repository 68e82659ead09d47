package quizcmder

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	bubbletea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/cloudlearn/study/pkg/client"
)

const takeLongDesc string = `Take a quiz.

Opens an interactive quiz in the terminal: pick options with j/k or the
arrow keys, type short answers, and press enter to answer. Esc goes back to
the previous question. After the last question the answers are submitted
for grading and the feedback is printed.

--answers skips the interactive quiz and submits a comma separated list of
answers in question order; use it for scripting.`

// errQuizAborted is returned when the quiz is quit before submitting.
var errQuizAborted = errors.New("quiz aborted, nothing submitted")

func newTakeCmd() *cobra.Command {
	var answers string

	cmd := &cobra.Command{
		Use:   "take <quiz-id>",
		Short: "Take a quiz interactively",
		Long:  takeLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadSession(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			ctx := cmd.Context()

			quiz, err := env.Client.Quiz(ctx, args[0])
			if err != nil {
				return fmt.Errorf("fetching quiz: %w", err)
			}
			if len(quiz.Questions) == 0 {
				return fmt.Errorf("quiz %s has no questions", args[0])
			}

			submit := func(a []client.Answer) (*client.QuizResult, error) {
				return env.Client.SubmitQuiz(ctx, args[0], a)
			}

			var result *client.QuizResult
			if cmd.Flags().Changed("answers") {
				list, err := parseAnswers(quiz, answers)
				if err != nil {
					return err
				}
				result, err = submit(list)
				if err != nil {
					return fmt.Errorf("submitting quiz: %w", err)
				}
			} else {
				result, err = runQuizTUI(ctx, quiz, submit, cmd.InOrStdin(), cmd.OutOrStdout())
				if err != nil {
					return err
				}
			}

			printResult(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().StringVar(&answers, "answers", "", "Comma separated answers in question order")

	return cmd
}

func runQuizTUI(ctx context.Context, quiz *client.Quiz, submit submitFunc, in io.Reader, out io.Writer) (*client.QuizResult, error) {
	renderer := lipgloss.NewRenderer(out, termenv.WithProfile(termenv.TrueColor))

	program := bubbletea.NewProgram(newQuizModel(quiz, submit, renderer),
		bubbletea.WithContext(ctx),
		bubbletea.WithInput(in),
		bubbletea.WithOutput(out),
		bubbletea.WithAltScreen(),
	)

	final, err := program.Run()
	if err != nil {
		return nil, err
	}

	m := final.(quizModel)
	switch {
	case m.aborted:
		return nil, errQuizAborted
	case m.err != nil:
		return nil, fmt.Errorf("submitting quiz: %w", m.err)
	case m.result == nil:
		return nil, errQuizAborted
	}
	return m.result, nil
}

// parseAnswers maps a comma separated answer list onto the quiz questions.
// Quoted fields may contain commas; empty fields leave a question unanswered.
func parseAnswers(quiz *client.Quiz, raw string) ([]client.Answer, error) {
	r := csv.NewReader(strings.NewReader(raw))
	r.TrimLeadingSpace = true

	fields, err := r.Read()
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing answers: %w", err)
	}
	if len(fields) > len(quiz.Questions) {
		return nil, fmt.Errorf("got %d answers for %d questions", len(fields), len(quiz.Questions))
	}

	answers := make([]client.Answer, 0, len(fields))
	for i, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		answers = append(answers, client.Answer{QuestionID: quiz.Questions[i].ID, Answer: f})
	}
	return answers, nil
}
