package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cursos-vacacionales/panel/cmd/panelctl/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := cli.LoadConfig()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "panelctl: %v\n", err)
		os.Exit(cli.ExitError)
	}

	code := cli.Run(ctx, os.Args[1:], cli.Options{Config: cfg})
	stop()
	os.Exit(code)
}
