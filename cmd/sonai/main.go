// Package main is the entry point for the sonai CLI binary.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/DaviMelooficial/CESAR-PROJETO-SONAI/pkg/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
