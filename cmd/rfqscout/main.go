package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/use-agent/rfqscout/cmd/rfqscout/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(commands.ExecuteContext(ctx))
}
