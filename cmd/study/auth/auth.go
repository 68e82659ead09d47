// Package authcmder provides the auth command for logging in to the learning
// platform.
package authcmder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const authLongDesc string = `Manage your learning platform session.

The session token returned by the auth service is stored in credentials.toml
in the .study/ directory and sent with every request made by other commands.

Passwords are read with hidden input from the terminal, or from the first
line of stdin when it is piped.

Examples:
  study auth register --username ada --email ada@example.com
  study auth login --email ada@example.com
  echo "$PASSWORD" | study auth login --email ada@example.com
  study auth whoami
  study auth logout`

const authShortDesc string = "Manage your learning platform session"

func NewAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: authShortDesc,
		Long:  authLongDesc,
	}

	cmd.AddCommand(newRegisterCmd())
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newWhoamiCmd())

	return cmd
}

// readPassword reads a password from in. A terminal gets a hidden prompt on
// out; anything else is read up to the first newline.
func readPassword(in io.Reader, out io.Writer, prompt string) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(out, prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return checkPassword(string(b))
	}

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return checkPassword(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return "", errors.New("no password received on stdin")
}

func checkPassword(p string) (string, error) {
	p = strings.TrimRight(p, "\r\n")
	if strings.TrimSpace(p) == "" {
		return "", errors.New("password cannot be empty")
	}
	return p, nil
}
