package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/poiesic/knowledgebot"
	"github.com/poiesic/knowledgebot/server"
	"github.com/urfave/cli/v2"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the pipeline HTTP service",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (overrides server.addr)",
			},
			&cli.StringFlag{
				Name:  "prefix",
				Usage: "Route prefix (overrides server.prefix)",
			},
		},
	}
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("addr") {
		cfg.Server.Addr = c.String("addr")
	}
	if c.IsSet("prefix") {
		cfg.Server.Prefix = c.String("prefix")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// An unavailable handle still serves: pipeline routes answer 503.
	handle := knowledgebot.Open(ctx, cfg)
	defer handle.Close()

	srv, err := server.New(server.FromHandle(handle), server.WithPrefix(cfg.Server.Prefix))
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Embedding model: %s (%s)\n", cfg.AI.EmbeddingModel, cfg.AI.Host)
	fmt.Fprintf(os.Stderr, "Generation backend: %s\n", cfg.AI.Generation.Backend)
	fmt.Fprintf(os.Stderr, "Listening on %s%s\n", cfg.Server.Addr, cfg.Server.Prefix)

	return srv.ListenAndServe(ctx, cfg.Server.Addr)
}
