package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/burgrp-go/meshbridge/cmd/meshctl/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.GetRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
