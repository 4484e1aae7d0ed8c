// Command cli is an interactive console for a running grader instance.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"dezolver/internal/cli"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "grader base URL")
	userID := flag.Int64("user", 1, "user id to submit as")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repl := cli.NewREPL(cli.NewClient(*serverURL), *userID)
	if err := repl.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "cli: %v\n", err)
		os.Exit(1)
	}
}
