package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ligun0805/batch-broadcaster/internal/config"
)

const (
	exitOK    = 0
	exitSetup = 1
	exitUsage = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config.LoadEnv()
	os.Exit(run(ctx, os.Args[1:]))
}

func run(ctx context.Context, args []string) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, config.ErrConfigCreated):
		fmt.Fprintf(os.Stderr, "%v\nReview the new config file, then run again.\n", err)
		return exitOK
	}
	var se *setupError
	if errors.As(err, &se) {
		fmt.Fprintln(os.Stderr, "Error:", se.err)
		return exitSetup
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	return exitUsage
}
