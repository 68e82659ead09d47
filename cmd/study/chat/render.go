package chatcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/cloudlearn/study/pkg/cliui"
)

// liveMarkdown shows reply deltas as they arrive and, once the reply is
// complete, redraws it rendered as markdown.
type liveMarkdown struct {
	out   io.Writer
	width int

	// prefix is the display width of the prompt before the first line.
	prefix int
	raw    strings.Builder
}

func newLiveMarkdown(out io.Writer, width, prefix int) *liveMarkdown {
	return &liveMarkdown{out: out, width: width, prefix: prefix}
}

func (l *liveMarkdown) Write(p []byte) (int, error) {
	l.raw.Write(p)
	return l.out.Write(p)
}

// Finish replaces the raw text with its rendering. The raw text is left in
// place when it cannot be rendered.
func (l *liveMarkdown) Finish() error {
	raw := l.raw.String()
	if strings.TrimSpace(raw) == "" {
		_, err := fmt.Fprintln(l.out)
		return err
	}

	rendered, err := cliui.RenderMarkdown(raw)
	if err != nil {
		_, err := fmt.Fprintln(l.out)
		return err
	}

	// Back to the first row of the reply, then clear to the end of screen.
	up := rowsUsed(raw, l.prefix, l.width) - 1
	if up > 0 {
		fmt.Fprintf(l.out, "\r\x1b[%dA\x1b[J", up)
	} else {
		fmt.Fprint(l.out, "\r\x1b[J")
	}

	_, err = fmt.Fprintf(l.out, "%s\n%s\n", cliui.AssistantPrompt, strings.TrimRight(rendered, "\n"))
	return err
}

// rowsUsed is the number of terminal rows text occupies at the given width
// when its first line starts after prefix columns.
func rowsUsed(text string, prefix, width int) int {
	rows := 0
	for i, line := range strings.Split(text, "\n") {
		w := lipgloss.Width(line)
		if i == 0 {
			w += prefix
		}
		if width <= 0 || w <= width {
			rows++
			continue
		}
		rows += (w + width - 1) / width
	}
	return rows
}
