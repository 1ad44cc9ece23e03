// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command seeder ingests every supported file under a directory into one
// workspace, in-process and rate limited.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/poiesic/knowledgebot"
	"github.com/poiesic/knowledgebot/chunker"
	"github.com/poiesic/knowledgebot/config"
	"github.com/urfave/cli/v2"
	"golang.org/x/time/rate"
)

func main() {
	app := &cli.App{
		Name:  "seeder",
		Usage: "Ingest a directory of documents into a workspace",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "dir",
				Aliases:  []string{"d"},
				Usage:    "Directory to scan for PDF, DOCX and TXT files",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "workspace",
				Aliases: []string{"w"},
				Usage:   "Workspace ID (a new one is generated when empty)",
			},
			&cli.StringSliceFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "TOML config file",
			},
			&cli.Float64Flag{
				Name:  "rate",
				Usage: "Files per second",
				Value: 2,
			},
			&cli.IntFlag{
				Name:  "burst",
				Usage: "Files allowed in a burst",
				Value: 1,
			},
		},
		Action: seed,
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func seed(c *cli.Context) error {
	if c.Float64("rate") <= 0 || c.Int("burst") <= 0 {
		return errors.New("rate and burst must be greater than 0")
	}
	cfg, err := config.Load(c.StringSlice("config")...)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	workspace := c.String("workspace")
	if workspace == "" {
		workspace = uuid.NewString()
	}

	files, err := collectFiles(c.String("dir"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no supported files under %s", c.String("dir"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	svc, err := knowledgebot.NewService(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	fmt.Fprintf(os.Stderr, "Workspace: %s\n", workspace)
	fmt.Fprintf(os.Stderr, "Files: %d\n", len(files))

	limiter := rate.NewLimiter(rate.Limit(c.Float64("rate")), c.Int("burst"))
	_, failed, err := ingestFiles(ctx, svc, limiter, workspace, files, os.Stderr)
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}

// collectFiles returns the supported files under dir in lexical order.
func collectFiles(dir string) ([]string, error) {
	supported := chunker.DefaultLoaders()
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := supported[strings.ToLower(filepath.Ext(path))]; ok {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	slices.Sort(files)
	return files, nil
}

// fileIngester is the part of the service the seeder drives.
type fileIngester interface {
	ProcessFile(ctx context.Context, workspaceID, sourceID, path, filename string) error
}

// ingestFiles feeds files to the service one at a time, waiting on the
// limiter before each. Per-file failures are logged and counted.
func ingestFiles(ctx context.Context, svc fileIngester, limiter *rate.Limiter, workspace string, files []string, out io.Writer) (done, failed int, err error) {
	progress := newProgressTracker(out, len(files))
	progress.Start()
	defer progress.Finish()

	for _, path := range files {
		if err := limiter.Wait(ctx); err != nil {
			done, failed = progress.Counts()
			return done, failed, err
		}
		sourceID := uuid.NewString()
		ferr := svc.ProcessFile(ctx, workspace, sourceID, path, filepath.Base(path))
		if ferr != nil {
			slog.Warn("failed to ingest file", "path", path, "source_id", sourceID, "err", ferr)
		}
		progress.Done(ferr != nil)
	}
	done, failed = progress.Counts()
	return done, failed, nil
}
