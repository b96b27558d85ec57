package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dkeye/Trio/internal/cli"
	"github.com/rs/zerolog/log"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cli.Execute(ctx); err != nil {
		log.Error().Err(err).Msg("trio")
		cancel()
		os.Exit(1)
	}
}
