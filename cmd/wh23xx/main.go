package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chrissnell/wh23xx/cmd/wh23xx/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		// Failsafe if a USB transfer never returns
		<-time.After(30 * time.Second)
		fmt.Fprintln(os.Stderr, "took too long to shut down, forcefully exiting")
		os.Exit(2)
	}()

	if err := cmd.Execute(ctx); err != nil {
		os.Exit(1)
	}
}
