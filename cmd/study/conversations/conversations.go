// Package conversationscmder provides the conversations command for managing
// chat conversations and the conversation "study chat" resumes.
package conversationscmder

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloudlearn/study/cmd/study/cmdenv"
	"github.com/cloudlearn/study/pkg/cliui"
	"github.com/cloudlearn/study/pkg/client"
	"github.com/cloudlearn/study/pkg/dotdir"
	"github.com/cloudlearn/study/pkg/utils"
)

const conversationsLongDesc string = `Manage chat conversations.

The active conversation is remembered in conversation.json in the .study/
directory and is resumed by "study chat". Commands that take an id default
to the active conversation.

Examples:
  study conversations list
  study conversations new "Cell biology"
  study conversations show
  study conversations use 3f2504e0-4f89-11d3-9a0c-0305e82c3301
  study conversations rename 3f2504e0-4f89-11d3-9a0c-0305e82c3301 "Mitosis"
  study conversations delete 3f2504e0-4f89-11d3-9a0c-0305e82c3301`

const conversationsShortDesc string = "Manage chat conversations"

func NewConversationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv"},
		Short:   conversationsShortDesc,
		Long:    conversationsLongDesc,
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newNewCmd())
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newUseCmd())
	cmd.AddCommand(newRenameCmd())
	cmd.AddCommand(newDeleteCmd())

	return cmd
}

// Active returns the active conversation if it belongs to the session user.
func Active(env *cmdenv.Env) (*dotdir.ConversationState, error) {
	state, err := dotdir.NewManager().LoadConversation(env.ConfigDir)
	if err != nil {
		return nil, err
	}
	if state == nil || env.Session == nil || state.UserID != env.Session.UserID {
		return nil, nil
	}
	return state, nil
}

// SetActive remembers conv as the active conversation.
func SetActive(env *cmdenv.Env, id, title string) error {
	return dotdir.NewManager().SaveConversation(&dotdir.ConversationState{
		ID:        id,
		Title:     title,
		UserID:    env.Session.UserID,
		UpdatedAt: time.Now().UTC().Truncate(time.Second),
	}, env.ConfigDir)
}

// idArg returns the conversation id in args, or the active one.
func idArg(env *cmdenv.Env, args []string) (string, error) {
	if len(args) > 0 {
		return cmdenv.ParseConversationID(args[0])
	}

	state, err := Active(env)
	if err != nil {
		return "", err
	}
	if state == nil {
		return "", fmt.Errorf("no active conversation: pass a conversation id")
	}
	return state.ID, nil
}

// PrintHistory writes the messages of a conversation. Assistant messages are
// rendered as markdown when markdown is set.
func PrintHistory(out io.Writer, hist *client.ConversationHistory, markdown bool) {
	title := hist.Title
	if title == "" {
		title = client.DefaultConversationTitle
	}

	fmt.Fprintf(out, "\n  %s %s\n\n",
		cliui.HeaderStyle.Render(title),
		cliui.DimStyle.Render(fmt.Sprintf("(%d messages)", len(hist.Messages))),
	)

	for _, msg := range hist.Messages {
		prompt := cliui.UserPrompt
		if msg.Role == "assistant" {
			prompt = cliui.AssistantPrompt
		}

		text := msg.Message
		if markdown && msg.Role == "assistant" {
			if rendered, err := cliui.RenderMarkdown(text); err == nil {
				text = "\n" + strings.TrimRight(rendered, "\n")
			}
		}

		fmt.Fprintf(out, "%s%s %s\n", prompt, text, cliui.DimStyle.Render(cliui.FormatTime(msg.Timestamp.Time)))
	}
	fmt.Fprintln(out)
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

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your conversations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := loadSession(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			convs, err := env.Client.ListConversations(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing conversations: %w", err)
			}

			active, err := Active(env)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(convs) == 0 {
				fmt.Fprintf(out, "\n  %s No conversations yet. Start one with 'study chat'.\n\n", cliui.DimStyle.Render("●"))
				return nil
			}

			fmt.Fprintf(out, "\n  %s\n\n", cliui.HeaderStyle.Render("Conversations"))
			for _, c := range convs {
				marker := " "
				if active != nil && active.ID == c.ID.String() {
					marker = cliui.SuccessMark
				}
				fmt.Fprintf(out, "  %s %s  %s %s\n",
					marker,
					cliui.IDStyle.Render(c.ID.String()),
					cliui.NameStyle.Render(c.Title),
					cliui.DimStyle.Render(fmt.Sprintf("(%d messages, %s)", c.MessageCount, cliui.FormatTime(c.LastActive.Time))),
				)
				if c.LastMessage != "" {
					fmt.Fprintf(out, "      %s\n", cliui.PreviewStyle.Render(utils.Truncate(utils.OneLine(c.LastMessage), 72)))
				}
			}
			fmt.Fprintln(out)
			return nil
		},
	}
}

func newNewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new [title]",
		Short: "Start a conversation and make it active",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadSession(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			var title string
			if len(args) > 0 {
				title = strings.TrimSpace(args[0])
			}

			conv, err := env.Client.CreateConversation(cmd.Context(), title)
			if err != nil {
				return fmt.Errorf("creating conversation: %w", err)
			}

			if err := SetActive(env, conv.ID.String(), conv.Title); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\n  %s Started %s %s\n\n",
				cliui.SuccessMark,
				cliui.NameStyle.Render(conv.Title),
				cliui.IDStyle.Render(conv.ID.String()),
			)
			return nil
		},
	}
}

func newShowCmd() *cobra.Command {
	var limit uint

	cmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Show the messages of a conversation",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadSession(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			id, err := idArg(env, args)
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("limit") {
				limit = env.Config.Chat.HistoryLimit
			}

			hist, err := env.Client.ConversationMessages(cmd.Context(), id, limit)
			if err != nil {
				return fmt.Errorf("fetching conversation: %w", err)
			}

			PrintHistory(cmd.OutOrStdout(), hist, env.Config.Chat.RenderMarkdown)
			return nil
		},
	}

	cmd.Flags().UintVarP(&limit, "limit", "n", 0, "Maximum number of messages (defaults to chat.history_limit)")

	return cmd
}

func newUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <id>",
		Short: "Make a conversation the one 'study chat' resumes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadSession(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			id, err := cmdenv.ParseConversationID(args[0])
			if err != nil {
				return err
			}

			hist, err := env.Client.ConversationMessages(cmd.Context(), id, 1)
			if err != nil {
				return fmt.Errorf("fetching conversation: %w", err)
			}

			if err := SetActive(env, id, hist.Title); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\n  %s Active conversation is now %s\n\n",
				cliui.SuccessMark, cliui.NameStyle.Render(hist.Title))
			return nil
		},
	}
}

func newRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <title>",
		Short: "Rename a conversation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadSession(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			id, err := cmdenv.ParseConversationID(args[0])
			if err != nil {
				return err
			}
			title := strings.TrimSpace(args[1])

			if err := env.Client.RenameConversation(cmd.Context(), id, title); err != nil {
				return fmt.Errorf("renaming conversation: %w", err)
			}

			if active, err := Active(env); err == nil && active != nil && active.ID == id {
				if err := SetActive(env, id, title); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\n  %s Renamed to %s\n\n", cliui.SuccessMark, cliui.NameStyle.Render(title))
			return nil
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a conversation and its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadSession(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			id, err := cmdenv.ParseConversationID(args[0])
			if err != nil {
				return err
			}

			if err := env.Client.DeleteConversation(cmd.Context(), id); err != nil {
				return fmt.Errorf("deleting conversation: %w", err)
			}

			if active, err := Active(env); err == nil && active != nil && active.ID == id {
				if err := dotdir.NewManager().ClearConversation(env.ConfigDir); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\n  %s Deleted %s\n\n", cliui.SuccessMark, cliui.IDStyle.Render(id))
			return nil
		},
	}
}
