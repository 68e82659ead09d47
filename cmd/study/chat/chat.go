// Package chatcmder provides the chat command for interactive tutoring
// sessions with the chat service.
package chatcmder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/cloudlearn/study/cmd/study/cmdenv"
	conversationscmder "github.com/cloudlearn/study/cmd/study/conversations"
	"github.com/cloudlearn/study/pkg/chat"
	"github.com/cloudlearn/study/pkg/cliui"
	"github.com/cloudlearn/study/pkg/config"
	"github.com/cloudlearn/study/pkg/utils"
)

const chatLongDesc string = `Start an interactive tutoring session with the chat service.

Replies are streamed as they are generated. The conversation is remembered
in the .study/ directory and resumed the next time "study chat" runs; use
--new to start over or --conversation to pick one.

When events.provider is "kafka", every completed reply is published as a
study.chat.turn event.

Inside the session:
  /history        Show the conversation so far
  /new [title]    Start a new conversation
  /title <title>  Rename the conversation
  /exit           Leave (Ctrl+D works too)

Examples:
  study chat
  study chat --new --title "Cell biology"
  study chat -m "Explain osmosis in two sentences"
  study chat --transcript stream.log`

const chatShortDesc string = "Chat with your AI tutor"

type chatCommander struct {
	conversationID string
	newConv        bool
	title          string
	transcript     string
	plain          bool
	message        string

	eventsProvider string
	eventsBrokers  string
	eventsTopic    string

	env    *cmdenv.Env
	runner *chat.Runner
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	// width is the terminal width; zero when out is not a terminal.
	width int

	current conversation
}

type conversation struct {
	id    string
	title string
}

var chatFlags = []string{
	config.FlagEventsProvider,
	config.FlagEventsBrokers,
	config.FlagEventsTopic,
}

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := cmdenv.Load(cmd, chatFlags...)
			if err != nil {
				return err
			}
			defer env.Close()

			if err := env.RequireSession(); err != nil {
				return err
			}

			cmder.env = env
			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			cmder.errOut = cmd.ErrOrStderr()
			return cmder.run(cmd)
		},
	}

	cmd.Flags().StringVar(&cmder.conversationID, "conversation", "", "Conversation id to continue")
	cmd.Flags().BoolVar(&cmder.newConv, "new", false, "Start a new conversation")
	cmd.Flags().StringVarP(&cmder.title, "title", "t", "", "Title for a new conversation")
	cmd.Flags().StringVar(&cmder.transcript, "transcript", "", "Append the raw reply streams to this file")
	cmd.Flags().BoolVar(&cmder.plain, "plain", false, "Do not render replies as markdown")
	cmd.Flags().StringVarP(&cmder.message, "message", "m", "", "Send one message and exit")

	config.AddStringFlag(cmd, config.ClientFlags, config.FlagEventsProvider, &cmder.eventsProvider)
	config.AddStringFlag(cmd, config.ClientFlags, config.FlagEventsBrokers, &cmder.eventsBrokers)
	config.AddStringFlag(cmd, config.ClientFlags, config.FlagEventsTopic, &cmder.eventsTopic)

	return cmd
}

func (c *chatCommander) run(cmd *cobra.Command) error {
	ctx := cmd.Context()

	if err := c.selectConversation(cmd); err != nil {
		return err
	}

	publisher, err := c.env.Publisher()
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			c.env.Logger.Warn("closing event publisher", "error", err)
		}
	}()

	runnerConfig := chat.Config{
		Client:    c.env.Client,
		Publisher: publisher,
		Source:    c.env.EventSource(),
		Logger:    c.env.Logger,
	}

	if c.transcript != "" {
		f, err := os.OpenFile(c.transcript, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("opening transcript: %w", err)
		}
		defer f.Close()
		runnerConfig.Transcript = f
	}

	c.runner, err = chat.NewRunner(runnerConfig)
	if err != nil {
		return err
	}

	if f, ok := c.out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil {
			c.width = w
		}
	}

	if c.message != "" {
		return c.turn(cmd, c.message)
	}

	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /exit or Ctrl+D to quit."))

	scanner := bufio.NewScanner(c.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprint(c.out, cliui.UserPrompt)
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			done, err := c.command(cmd, input)
			if err != nil {
				fmt.Fprintf(c.errOut, "  %s %v\n", cliui.FailMark, err)
			}
			if done {
				break
			}
			continue
		}

		if err := c.turn(cmd, input); err != nil {
			fmt.Fprintf(c.errOut, "  %s %v\n", cliui.FailMark, err)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(c.out)
	return nil
}

// selectConversation picks the conversation from flags, the remembered
// state, or by creating one.
func (c *chatCommander) selectConversation(cmd *cobra.Command) error {
	ctx := cmd.Context()

	switch {
	case c.conversationID != "":
		id, err := cmdenv.ParseConversationID(c.conversationID)
		if err != nil {
			return err
		}
		hist, err := c.env.Client.ConversationMessages(ctx, id, 1)
		if err != nil {
			return fmt.Errorf("fetching conversation: %w", err)
		}
		c.current = conversation{id: id, title: hist.Title}
		c.printResume()

	case !c.newConv:
		state, err := conversationscmder.Active(c.env)
		if err != nil {
			return err
		}
		if state != nil {
			c.current = conversation{id: state.ID, title: state.Title}
			c.printResume()
			break
		}
		fallthrough

	default:
		if err := c.startConversation(cmd, c.title); err != nil {
			return err
		}
	}

	return conversationscmder.SetActive(c.env, c.current.id, c.current.title)
}

func (c *chatCommander) startConversation(cmd *cobra.Command, title string) error {
	conv, err := c.env.Client.CreateConversation(cmd.Context(), title)
	if err != nil {
		return fmt.Errorf("creating conversation: %w", err)
	}

	c.current = conversation{id: conv.ID.String(), title: conv.Title}
	fmt.Fprintf(c.out, "\n  %s New conversation %s\n",
		cliui.DimStyle.Render("●"),
		cliui.NameStyle.Render(conv.Title),
	)
	return nil
}

func (c *chatCommander) printResume() {
	fmt.Fprintf(c.out, "\n  %s Resuming %s %s\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(c.current.title),
		cliui.IDStyle.Render(utils.Truncate(c.current.id, 8)),
	)
}

// turn sends one message and shows the reply.
func (c *chatCommander) turn(cmd *cobra.Command, message string) error {
	fmt.Fprint(c.out, cliui.AssistantPrompt)

	markdown := c.env.Config.Chat.RenderMarkdown && !c.plain && c.width > 0

	var live *liveMarkdown
	var w io.Writer = c.out
	if markdown {
		live = newLiveMarkdown(c.out, c.width, lipgloss.Width(cliui.AssistantPrompt))
		w = live
	}

	reply, err := c.runner.Turn(cmd.Context(), c.current.id, message, w)
	if err != nil {
		if reply != nil && reply.Text != "" {
			fmt.Fprintln(c.out)
		}
		return err
	}

	if live != nil {
		if err := live.Finish(); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(c.out)
	}

	return conversationscmder.SetActive(c.env, c.current.id, c.current.title)
}

// command runs a slash command. It reports whether the session should end.
func (c *chatCommander) command(cmd *cobra.Command, input string) (bool, error) {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/exit", "/quit":
		return true, nil

	case "/history":
		hist, err := c.env.Client.ConversationMessages(cmd.Context(), c.current.id, c.env.Config.Chat.HistoryLimit)
		if err != nil {
			return false, fmt.Errorf("fetching history: %w", err)
		}
		conversationscmder.PrintHistory(c.out, hist, c.env.Config.Chat.RenderMarkdown && !c.plain)
		return false, nil

	case "/new":
		if err := c.startConversation(cmd, arg); err != nil {
			return false, err
		}
		fmt.Fprintln(c.out)
		return false, conversationscmder.SetActive(c.env, c.current.id, c.current.title)

	case "/title":
		if arg == "" {
			return false, errors.New("usage: /title <title>")
		}
		if err := c.env.Client.RenameConversation(cmd.Context(), c.current.id, arg); err != nil {
			return false, fmt.Errorf("renaming conversation: %w", err)
		}
		c.current.title = arg
		fmt.Fprintf(c.out, "  %s Renamed to %s\n", cliui.SuccessMark, cliui.NameStyle.Render(arg))
		return false, conversationscmder.SetActive(c.env, c.current.id, c.current.title)

	default:
		return false, fmt.Errorf("unknown command %s", name)
	}
}
