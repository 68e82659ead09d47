// Package statuscmder provides the status command for displaying the local
// session, the active conversation and the health of the platform services.
package statuscmder

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloudlearn/study/cmd/study/cmdenv"
	conversationscmder "github.com/cloudlearn/study/cmd/study/conversations"
	"github.com/cloudlearn/study/pkg/cliui"
	"github.com/cloudlearn/study/pkg/client"
	"github.com/cloudlearn/study/pkg/utils"
)

const statusLongDesc string = `Show the current study state.

Displays the logged in user and token expiry, the active chat conversation
and, unless --offline is given, the health of every platform service.

Examples:
  study status
  study status --offline
  study status --api-target https://learn.example.com`

const statusShortDesc string = "Show session, conversation and service health"

func NewStatusCmd() *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: statusShortDesc,
		Long:  statusLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := cmdenv.Load(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			out := cmd.OutOrStdout()
			printSession(out, env)
			if err := printConversation(out, env); err != nil {
				return err
			}
			if !offline {
				printHealth(cmd, env)
			}
			fmt.Fprintln(out)
			return nil
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Skip service health checks")

	return cmd
}

func printSession(out io.Writer, env *cmdenv.Env) {
	fmt.Fprintln(out)
	s := env.Session
	if s == nil {
		fmt.Fprintf(out, "  %s Not logged in. Run 'study auth login'.\n", cliui.DimStyle.Render("●"))
		return
	}

	fmt.Fprintf(out, "  %s  %s %s\n",
		cliui.KeyStyle.Render("User:        "),
		cliui.NameStyle.Render(s.Username),
		cliui.DimStyle.Render("(id "+s.UserID+")"),
	)

	exp, ok := s.ExpiresAt()
	switch {
	case !ok:
	case s.Expired(time.Now()):
		fmt.Fprintf(out, "  %s  %s\n", cliui.KeyStyle.Render("Token:       "), cliui.WarnStyle.Render("expired "+cliui.FormatTime(exp)))
	default:
		fmt.Fprintf(out, "  %s  %s\n", cliui.KeyStyle.Render("Token:       "), cliui.ValueStyle.Render("valid until "+cliui.FormatTime(exp)))
	}
}

func printConversation(out io.Writer, env *cmdenv.Env) error {
	state, err := conversationscmder.Active(env)
	if err != nil {
		return fmt.Errorf("loading conversation state: %w", err)
	}

	if state == nil {
		if env.Session != nil {
			fmt.Fprintf(out, "  %s  %s\n", cliui.KeyStyle.Render("Conversation:"), cliui.DimStyle.Render("none, the next chat starts a new one"))
		}
		return nil
	}

	fmt.Fprintf(out, "  %s  %s %s\n",
		cliui.KeyStyle.Render("Conversation:"),
		cliui.NameStyle.Render(utils.Truncate(state.Title, 48)),
		cliui.IDStyle.Render(state.ID),
	)
	return nil
}

type healthResult struct {
	health *client.Health
	err    error
}

func printHealth(cmd *cobra.Command, env *cmdenv.Env) {
	out := cmd.OutOrStdout()
	results := make([]healthResult, len(client.Services))

	var wg sync.WaitGroup
	for i, svc := range client.Services {
		wg.Go(func() {
			h, err := env.Client.Health(cmd.Context(), svc)
			results[i] = healthResult{health: h, err: err}
		})
	}
	wg.Wait()

	targets := env.Client.Targets()
	fmt.Fprintf(out, "\n  %s\n\n", cliui.HeaderStyle.Render("Services"))
	for i, svc := range client.Services {
		r := results[i]

		detail := ""
		if r.err != nil {
			detail = cliui.WarnStyle.Render(utils.Truncate(utils.OneLine(r.err.Error()), 60))
		} else {
			detail = cliui.ValueStyle.Render(healthDetail(r.health))
		}

		fmt.Fprintf(out, "  %s %s %s  %s  %s\n",
			cliui.Mark(r.err),
			cliui.NameStyle.Render(fmt.Sprintf("%-8s", svc)),
			cliui.DimStyle.Render(targets.URL(svc)),
			detail,
			cliui.DimStyle.Render("breaker "+env.Client.BreakerState(svc).String()),
		)
	}
}

func healthDetail(h *client.Health) string {
	parts := []string{h.Status}
	if h.Database != "" {
		parts = append(parts, "database "+h.Database)
	}
	if h.AI != "" {
		parts = append(parts, "ai "+h.AI)
	}
	return strings.Join(parts, ", ")
}
