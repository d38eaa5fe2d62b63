// Command pushctl is a terminal client for the push notification API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCLI(deps{}).execute(ctx, nil); err != nil {
		os.Exit(1)
	}
}
