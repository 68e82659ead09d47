package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	studycmder "github.com/cloudlearn/study/cmd/study"
	"github.com/cloudlearn/study/pkg/cliui"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := studycmder.NewStudyCmd()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", cliui.FailMark, err)
		stop()
		os.Exit(1)
	}
}
