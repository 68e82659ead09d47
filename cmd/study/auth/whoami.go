package authcmder

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloudlearn/study/cmd/study/cmdenv"
	"github.com/cloudlearn/study/pkg/cliui"
)

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := cmdenv.Load(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			out := cmd.OutOrStdout()
			if env.Session == nil {
				fmt.Fprintf(out, "\n  %s Not logged in.\n\n", cliui.DimStyle.Render("●"))
				return nil
			}

			if err := env.Credentials.ClearSession(); err != nil {
				return fmt.Errorf("clearing session: %w", err)
			}

			fmt.Fprintf(out, "\n  %s Logged out %s\n\n", cliui.SuccessMark, cliui.NameStyle.Render(env.Session.Username))
			return nil
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := cmdenv.Load(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			if err := env.RequireSession(); err != nil {
				return err
			}

			user, err := env.Client.Me(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetching user: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\n  %s %s\n", cliui.KeyStyle.Render("User:   "), cliui.NameStyle.Render(user.Username))
			fmt.Fprintf(out, "  %s %s\n", cliui.KeyStyle.Render("Email:  "), cliui.ValueStyle.Render(user.Email))
			fmt.Fprintf(out, "  %s %s\n", cliui.KeyStyle.Render("ID:     "), cliui.IDStyle.Render(user.ID.String()))
			fmt.Fprintf(out, "  %s %s\n", cliui.KeyStyle.Render("Joined: "), cliui.ValueStyle.Render(cliui.FormatTime(user.CreatedAt.Time)))
			if !user.IsActive {
				fmt.Fprintf(out, "  %s account is inactive\n", cliui.WarnStyle.Render("!"))
			}
			if exp, ok := env.Session.ExpiresAt(); ok {
				label := "Expires:"
				if exp.Before(time.Now()) {
					label = "Expired:"
				}
				fmt.Fprintf(out, "  %s %s\n", cliui.KeyStyle.Render(label), cliui.ValueStyle.Render(cliui.FormatTime(exp)))
			}
			fmt.Fprintln(out)
			return nil
		},
	}
}
