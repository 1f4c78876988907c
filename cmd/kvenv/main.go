package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/jongio/kvenv/cliout"
	"github.com/jongio/kvenv/cmd/kvenv/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := cmd.NewRootCommand(cmd.DefaultApp()).ExecuteContext(ctx)
	stop()

	if err != nil {
		cliout.Error("%s", err)
		os.Exit(1)
	}
}
