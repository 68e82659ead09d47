package authcmder

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cloudlearn/study/cmd/study/cmdenv"
	"github.com/cloudlearn/study/pkg/cliui"
	"github.com/cloudlearn/study/pkg/client"
)

const loginShortDesc string = "Log in with email and password"

const registerShortDesc string = "Create an account and log in"

func newLoginCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "login",
		Short: loginShortDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := cmdenv.Load(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			if strings.TrimSpace(email) == "" {
				return errors.New("--email is required")
			}

			password, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr(), "Password: ")
			if err != nil {
				return err
			}

			tok, err := env.Client.Login(cmd.Context(), strings.TrimSpace(email), password)
			if err != nil {
				return fmt.Errorf("logging in: %w", err)
			}

			return saveToken(cmd.OutOrStdout(), env, tok, "Logged in as")
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")

	return cmd
}

func newRegisterCmd() *cobra.Command {
	var username, email string

	cmd := &cobra.Command{
		Use:   "register",
		Short: registerShortDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := cmdenv.Load(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			username = strings.TrimSpace(username)
			email = strings.TrimSpace(email)
			if username == "" || email == "" {
				return errors.New("--username and --email are required")
			}

			password, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr(), "Choose a password: ")
			if err != nil {
				return err
			}

			tok, err := env.Client.Register(cmd.Context(), username, email, password)
			if err != nil {
				return fmt.Errorf("registering: %w", err)
			}

			return saveToken(cmd.OutOrStdout(), env, tok, "Registered")
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")

	return cmd
}

func saveToken(out io.Writer, env *cmdenv.Env, tok *client.Token, verb string) error {
	session := tok.Session()
	if err := env.Credentials.SaveSession(session); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	env.SetSession(session)

	fmt.Fprintf(out, "\n  %s %s %s %s\n",
		cliui.SuccessMark,
		verb,
		cliui.NameStyle.Render(session.Username),
		cliui.DimStyle.Render("<"+session.Email+">"),
	)
	if exp, ok := session.ExpiresAt(); ok {
		fmt.Fprintf(out, "  %s %s\n", cliui.KeyStyle.Render("Session expires:"), cliui.FormatTime(exp))
	}
	fmt.Fprintln(out)
	return nil
}
