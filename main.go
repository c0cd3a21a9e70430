package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"switchboard/app"
	"syscall"
)

func main() {
	// Cancelling the context closes any in-flight stream.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "switchboard: %v\n", err)
		stop()
		os.Exit(1)
	}
}
