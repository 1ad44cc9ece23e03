// Command searcher answers questions against the local vector store,
// logging every retrieval step.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/poiesic/knowledgebot"
	"github.com/poiesic/knowledgebot/config"
	"github.com/poiesic/knowledgebot/core"
	"github.com/poiesic/knowledgebot/retrieval"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:      "searcher",
		Usage:     "Query a workspace in the local store",
		ArgsUsage: "<question>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "workspace",
				Aliases:  []string{"w"},
				Usage:    "Workspace ID (UUID)",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "TOML config file",
			},
			&cli.IntFlag{
				Name:  "top-k",
				Usage: "Candidates to retrieve (overrides retrieval.top_k)",
			},
			&cli.Float64Flag{
				Name:  "threshold",
				Usage: "Maximum cosine distance (overrides retrieval.threshold)",
			},
		},
		Action: search,
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func search(c *cli.Context) error {
	question := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(question) == "" {
		return errors.New("a question is required")
	}

	cfg, err := config.Load(c.StringSlice("config")...)
	if err != nil {
		return err
	}
	if c.IsSet("top-k") {
		cfg.Retrieval.TopK = c.Int("top-k")
	}
	if c.IsSet("threshold") {
		cfg.Retrieval.Threshold = c.Float64("threshold")
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	ctx := context.Background()
	svc, err := knowledgebot.NewService(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	monitor := &retrieval.LogMonitor{Logger: logger.With("component", "searcher")}
	result := svc.Retrieval().AnswerWithMonitor(ctx, c.String("workspace"), question, monitor)
	printResult(c.App.Writer, result)
	return nil
}

func printResult(w io.Writer, result core.QueryResult) {
	fmt.Fprintf(w, "%s\n\nFound %d sources\n", result.Answer, len(result.Sources))
	for i, s := range result.Sources {
		page := "N/A"
		if s.Page != nil {
			page = fmt.Sprint(*s.Page)
		}
		fmt.Fprintf(w, "%d: '%s' (page %s)\n    %s\n", i, s.Name, page, s.TextChunk)
	}
}
