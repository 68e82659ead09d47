// Package quizcmder provides the quiz command for generating quizzes from
// documents, taking them and reviewing results.
package quizcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cloudlearn/study/cmd/study/cmdenv"
	"github.com/cloudlearn/study/pkg/cliui"
	"github.com/cloudlearn/study/pkg/client"
	"github.com/cloudlearn/study/pkg/utils"
)

const quizLongDesc string = `Generate and take quizzes about your documents.

Quizzes are written by the quiz service from the text of an uploaded
document. "study quiz take" opens an interactive quiz in the terminal and
shows graded feedback at the end.

Examples:
  study quiz generate 17 -n 10 --types multiple_choice,short_answer
  study quiz take 4
  study quiz take 4 --answers B,true,"cell membrane"
  study quiz results 4
  study quiz history`

const quizShortDesc string = "Generate and take quizzes"

func NewQuizCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quiz",
		Short: quizShortDesc,
		Long:  quizLongDesc,
	}

	cmd.AddCommand(newGenerateCmd())
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newTakeCmd())
	cmd.AddCommand(newResultsCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newDeleteCmd())

	return cmd
}

func loadSession(cmd *cobra.Command) (*cmdenv.Env, error) {
	env, err := cmdenv.Load(cmd)
	if err != nil {
		return nil, err
	}
	if err := env.RequireSession(); err != nil {
		env.Close()
		return nil, err
	}
	return env, nil
}

func newGenerateCmd() *cobra.Command {
	var (
		num   int
		types []string
	)

	cmd := &cobra.Command{
		Use:   "generate <document-id>",
		Short: "Generate a quiz from a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadSession(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			for _, t := range types {
				switch t {
				case client.QuestionMultipleChoice, client.QuestionTrueFalse, client.QuestionShortAnswer:
				default:
					return fmt.Errorf("unknown question type %q (available: %s, %s, %s)", t,
						client.QuestionMultipleChoice, client.QuestionTrueFalse, client.QuestionShortAnswer)
				}
			}

			var generated *client.GeneratedQuiz
			err = cliui.Step(cmd.ErrOrStderr(), "Generating quiz", func() error {
				var err error
				generated, err = env.Client.GenerateQuiz(cmd.Context(), client.QuizRequest{
					DocumentID:    args[0],
					NumQuestions:  num,
					QuestionTypes: types,
				})
				return err
			})
			if err != nil {
				return fmt.Errorf("generating quiz: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\n  %s %s %s\n  Take it with: study quiz take %s\n\n",
				cliui.SuccessMark,
				cliui.NameStyle.Render(generated.Title),
				cliui.DimStyle.Render(fmt.Sprintf("(%d questions, quiz %s)", generated.NumQuestions, generated.QuizID)),
				generated.QuizID,
			)
			return nil
		},
	}

	cmd.Flags().IntVarP(&num, "questions", "n", 5, "Number of questions")
	cmd.Flags().StringSliceVar(&types, "types", nil, "Question types (multiple_choice, true_false, short_answer)")

	return cmd
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <quiz-id>",
		Short: "Show the questions of a quiz",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadSession(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			quiz, err := env.Client.Quiz(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("fetching quiz: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\n  %s %s\n\n", cliui.HeaderStyle.Render(quiz.Title), cliui.DimStyle.Render(cliui.FormatTime(quiz.CreatedAt.Time)))
			for i, q := range quiz.Questions {
				fmt.Fprintf(out, "  %s %s %s\n",
					cliui.DimStyle.Render(fmt.Sprintf("%d.", i+1)),
					q.Question,
					cliui.DimStyle.Render("("+questionLabel(q.Type)+")"),
				)
				for _, opt := range q.Options {
					fmt.Fprintf(out, "       %s\n", cliui.PreviewStyle.Render(opt))
				}
			}
			fmt.Fprintln(out)
			return nil
		},
	}
}

func newResultsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "results <quiz-id>",
		Short: "Show your latest graded attempt at a quiz",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadSession(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			result, err := env.Client.QuizResults(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("fetching results: %w", err)
			}

			printResult(cmd.OutOrStdout(), result)
			return nil
		},
	}
}

func newHistoryCmd() *cobra.Command {
	var limit uint

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List your quiz attempts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := loadSession(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			attempts, err := env.Client.QuizHistory(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("fetching quiz history: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(attempts) == 0 {
				fmt.Fprintf(out, "\n  %s No quiz attempts yet.\n\n", cliui.DimStyle.Render("●"))
				return nil
			}

			fmt.Fprintf(out, "\n  %s\n\n", cliui.HeaderStyle.Render("Quiz history"))
			for _, a := range attempts {
				fmt.Fprintf(out, "  %s  %s  %s  %s\n",
					cliui.IDStyle.Render(fmt.Sprintf("%6s", a.QuizID.String())),
					cliui.Score(a.Score),
					cliui.NameStyle.Render(utils.Truncate(a.Title, 48)),
					cliui.DimStyle.Render(cliui.FormatTime(a.SubmittedAt.Time)),
				)
			}
			fmt.Fprintln(out)
			return nil
		},
	}

	cmd.Flags().UintVarP(&limit, "limit", "n", 0, "Maximum number of attempts")

	return cmd
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <quiz-id>",
		Short: "Delete a quiz",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadSession(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			if err := env.Client.DeleteQuiz(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("deleting quiz: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\n  %s Deleted quiz %s\n\n", cliui.SuccessMark, cliui.IDStyle.Render(args[0]))
			return nil
		},
	}
}

// printResult writes a graded attempt with per-question feedback.
func printResult(out io.Writer, r *client.QuizResult) {
	fmt.Fprintf(out, "\n  %s %s %s\n\n",
		cliui.KeyStyle.Render("Score:"),
		cliui.Score(r.Score),
		cliui.DimStyle.Render(fmt.Sprintf("(%d of %d correct)", r.CorrectCount, r.TotalQuestions)),
	)

	for i, f := range r.Feedback {
		mark := cliui.SuccessMark
		if !f.IsCorrect {
			mark = cliui.FailMark
		}

		fmt.Fprintf(out, "  %s %s %s\n", mark, cliui.DimStyle.Render(fmt.Sprintf("%d.", i+1)), f.Question)

		answer := f.UserAnswer
		if strings.TrimSpace(answer) == "" {
			answer = "(no answer)"
		}
		fmt.Fprintf(out, "      %s %s\n", cliui.KeyStyle.Render("Your answer:"), answer)
		if !f.IsCorrect {
			fmt.Fprintf(out, "      %s %s\n", cliui.KeyStyle.Render("Correct:    "), cliui.ValueStyle.Render(f.CorrectAnswer))
		}
		if f.Explanation != "" {
			fmt.Fprintf(out, "      %s\n", cliui.PreviewStyle.Render(f.Explanation))
		}
	}
	fmt.Fprintln(out)
}
