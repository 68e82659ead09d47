// Package studycmder
package studycmder

import (
	"github.com/spf13/cobra"

	audiocmder "github.com/cloudlearn/study/cmd/study/audio"
	authcmder "github.com/cloudlearn/study/cmd/study/auth"
	chatcmder "github.com/cloudlearn/study/cmd/study/chat"
	"github.com/cloudlearn/study/cmd/study/cmdenv"
	configcmder "github.com/cloudlearn/study/cmd/study/config"
	conversationscmder "github.com/cloudlearn/study/cmd/study/conversations"
	docscmder "github.com/cloudlearn/study/cmd/study/docs"
	quizcmder "github.com/cloudlearn/study/cmd/study/quiz"
	statuscmder "github.com/cloudlearn/study/cmd/study/status"
	versioncmder "github.com/cloudlearn/study/cmd/version"
)

const studyLongDesc string = `Study is a terminal client for the learning platform.

Chat with the AI tutor, upload course documents, read generated notes and
take quizzes without leaving the terminal.

Get started:
  study auth register -u ada -e ada@example.com
  study docs upload lecture.pdf
  study chat
  study quiz generate <document-id>

Point the client at a deployment with --api-target or:
  study config set client.api_target https://learn.example.com`

const studyShortDesc string = "Study - learning platform client"

func NewStudyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           cmdenv.ClientName,
		Short:         studyShortDesc,
		Long:          studyLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	cmdenv.AddGlobalFlags(cmd)

	// Add subcommands
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(conversationscmder.NewConversationsCmd())
	cmd.AddCommand(docscmder.NewDocsCmd())
	cmd.AddCommand(quizcmder.NewQuizCmd())
	cmd.AddCommand(audiocmder.NewAudioCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(statuscmder.NewStatusCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
