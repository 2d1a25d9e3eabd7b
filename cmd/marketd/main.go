package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/energymarket/marketclient/cmd/marketd/commands"
	"github.com/energymarket/marketclient/config"
	"github.com/energymarket/marketclient/libs/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rcmd := commands.RootCommand(config.DefaultConfig())
	if err := cli.RunWithTrace(ctx, rcmd); err != nil {
		// Reset the signal handler and exit; the error was already printed.
		stop()
		os.Exit(2)
	}
}
