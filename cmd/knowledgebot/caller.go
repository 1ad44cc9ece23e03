package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/knowledgebot/config"
	"github.com/poiesic/knowledgebot/knowledge"
	"github.com/poiesic/knowledgebot/orchestrator"
	"github.com/poiesic/knowledgebot/sources"
	"github.com/urfave/cli/v2"
)

// caller is the client side of the system: source records, the task
// queue and the pipeline client.
type caller struct {
	knowledge *knowledge.Service
	orch      *orchestrator.Orchestrator
	store     sources.Store
}

func newCaller(ctx context.Context, cfg *config.Config) (*caller, error) {
	store, err := sources.Open(ctx, cfg.Sources.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open source store: %w", err)
	}

	client, err := orchestrator.NewClient(cfg.Client.BaseURL,
		orchestrator.WithPrefix(cfg.Client.Prefix),
		orchestrator.WithTimeout(cfg.Client.Timeout.Std()),
	)
	if err != nil {
		store.Close()
		return nil, err
	}

	queue, err := orchestrator.NewQueue(
		orchestrator.WithWorkers(cfg.Client.Workers),
		orchestrator.WithRetryPolicy(orchestrator.RetryPolicy{
			MaxAttempts: cfg.Client.MaxAttempts,
			BaseDelay:   cfg.Client.RetryDelay.Std(),
		}),
	)
	if err != nil {
		store.Close()
		return nil, err
	}

	orch, err := orchestrator.New(client, queue, store)
	if err != nil {
		queue.Close()
		store.Close()
		return nil, err
	}

	svc, err := knowledge.NewService(store, orch, knowledge.WithStorageDir(cfg.Sources.StorageDir))
	if err != nil {
		orch.Close()
		store.Close()
		return nil, err
	}
	return &caller{knowledge: svc, orch: orch, store: store}, nil
}

// close waits for dispatched tasks before releasing resources.
func (c *caller) close() error {
	c.orch.Close()
	return c.store.Close()
}

// withCaller loads config, builds the caller and runs fn. Background tasks
// are drained before it returns.
func withCaller(fn func(ctx context.Context, c *cli.Context, k *caller) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		ctx := context.Background()
		k, err := newCaller(ctx, cfg)
		if err != nil {
			return err
		}
		defer k.close()
		return fn(ctx, c, k)
	}
}

var (
	workspaceFlag = &cli.StringFlag{
		Name:     "workspace",
		Aliases:  []string{"w"},
		Usage:    "Workspace ID (UUID)",
		Required: true,
	}
	sourceFlag = &cli.StringFlag{
		Name:     "source",
		Aliases:  []string{"s"},
		Usage:    "Source ID (UUID)",
		Required: true,
	}
)

func addFileCommand() *cli.Command {
	return &cli.Command{
		Name:      "add-file",
		Usage:     "Upload a PDF, DOCX or TXT file and wait for ingestion",
		ArgsUsage: "<file>",
		Flags:     []cli.Flag{workspaceFlag},
		Action: withCaller(func(ctx context.Context, c *cli.Context, k *caller) error {
			if c.NArg() != 1 {
				return errors.New("exactly one file is required")
			}
			path := c.Args().First()
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("failed to open file: %w", err)
			}
			defer f.Close()

			src, err := k.knowledge.AddFile(ctx, c.String("workspace"), filepath.Base(path), f)
			if err != nil {
				return err
			}
			return k.report(ctx, c.App.Writer, src.ID)
		}),
	}
}

func addQACommand() *cli.Command {
	return &cli.Command{
		Name:  "add-qa",
		Usage: "Add a question/answer pair and wait for ingestion",
		Flags: []cli.Flag{
			workspaceFlag,
			&cli.StringFlag{Name: "question", Aliases: []string{"q"}, Required: true},
			&cli.StringFlag{Name: "answer", Aliases: []string{"a"}, Required: true},
		},
		Action: withCaller(func(ctx context.Context, c *cli.Context, k *caller) error {
			src, err := k.knowledge.AddQA(ctx, c.String("workspace"), c.String("question"), c.String("answer"))
			if err != nil {
				return err
			}
			return k.report(ctx, c.App.Writer, src.ID)
		}),
	}
}

func addArticleCommand() *cli.Command {
	return &cli.Command{
		Name:  "add-article",
		Usage: "Add an article and wait for ingestion",
		Flags: []cli.Flag{
			workspaceFlag,
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Required: true},
			&cli.StringFlag{Name: "content", Usage: "Article body"},
			&cli.StringFlag{Name: "content-file", Usage: "Read the article body from a file ('-' for stdin)"},
		},
		Action: withCaller(func(ctx context.Context, c *cli.Context, k *caller) error {
			content, err := articleContent(c)
			if err != nil {
				return err
			}
			src, err := k.knowledge.AddArticle(ctx, c.String("workspace"), c.String("title"), content)
			if err != nil {
				return err
			}
			return k.report(ctx, c.App.Writer, src.ID)
		}),
	}
}

func articleContent(c *cli.Context) (string, error) {
	switch {
	case c.IsSet("content") && c.IsSet("content-file"):
		return "", errors.New("use either --content or --content-file")
	case c.IsSet("content-file"):
		var r io.Reader = os.Stdin
		if name := c.String("content-file"); name != "-" {
			f, err := os.Open(name)
			if err != nil {
				return "", fmt.Errorf("failed to open content file: %w", err)
			}
			defer f.Close()
			r = f
		}
		data, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("failed to read content: %w", err)
		}
		return string(data), nil
	default:
		return c.String("content"), nil
	}
}

func updateQACommand() *cli.Command {
	return &cli.Command{
		Name:  "update-qa",
		Usage: "Replace the content of a Q&A source and reprocess it",
		Flags: []cli.Flag{
			workspaceFlag,
			sourceFlag,
			&cli.StringFlag{Name: "question", Aliases: []string{"q"}, Required: true},
			&cli.StringFlag{Name: "answer", Aliases: []string{"a"}, Required: true},
		},
		Action: withCaller(func(ctx context.Context, c *cli.Context, k *caller) error {
			src, err := k.knowledge.UpdateQA(ctx, c.String("workspace"), c.String("source"),
				c.String("question"), c.String("answer"))
			if err != nil {
				return err
			}
			return k.report(ctx, c.App.Writer, src.ID)
		}),
	}
}

func removeCommand() *cli.Command {
	return &cli.Command{
		Name:  "remove",
		Usage: "Delete a source with its chunks and stored file",
		Flags: []cli.Flag{workspaceFlag, sourceFlag},
		Action: withCaller(func(ctx context.Context, c *cli.Context, k *caller) error {
			if err := k.knowledge.Remove(ctx, c.String("workspace"), c.String("source")); err != nil {
				return err
			}
			k.orch.Wait()
			fmt.Fprintf(c.App.Writer, "removed %s\n", c.String("source"))
			return nil
		}),
	}
}

func sourcesCommand() *cli.Command {
	return &cli.Command{
		Name:  "sources",
		Usage: "List the sources of a workspace",
		Flags: []cli.Flag{workspaceFlag},
		Action: withCaller(func(ctx context.Context, c *cli.Context, k *caller) error {
			list, err := k.knowledge.List(ctx, c.String("workspace"))
			if err != nil {
				return err
			}
			printSources(c.App.Writer, list)
			return nil
		}),
	}
}

func printSources(w io.Writer, list []sources.Source) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tSTATUS\tCREATED\tNAME")
	for _, s := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.Type, s.Status, s.CreatedAt.Local().Format(time.DateTime), s.Name)
	}
	tw.Flush()
}

func askCommand() *cli.Command {
	return &cli.Command{
		Name:      "ask",
		Usage:     "Ask a question against a workspace",
		ArgsUsage: "<question>",
		Flags: []cli.Flag{
			workspaceFlag,
			&cli.StringFlag{Name: "session", Usage: "Session ID (a new one by default)"},
		},
		Action: withCaller(func(ctx context.Context, c *cli.Context, k *caller) error {
			question := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(question) == "" {
				return errors.New("a question is required")
			}
			session := c.String("session")
			if session == "" {
				session = uuid.NewString()
			}

			result, escalate, err := k.knowledge.Ask(ctx, c.String("workspace"), session, question)
			if err != nil {
				code, msg := orchestrator.HTTPStatus(err)
				return fmt.Errorf("query failed (%d): %s", code, msg)
			}

			w := c.App.Writer
			fmt.Fprintln(w, result.Answer)
			if escalate {
				fmt.Fprintln(w, "\n(no relevant knowledge found; escalate to an administrator)")
				return nil
			}
			fmt.Fprintln(w, "\nSources:")
			for i, s := range result.Sources {
				page := "N/A"
				if s.Page != nil {
					page = fmt.Sprint(*s.Page)
				}
				fmt.Fprintf(w, "%d: %s, page %s\n", i+1, s.Name, page)
			}
			return nil
		}),
	}
}

// report waits for the dispatched work and prints the final status.
func (k *caller) report(ctx context.Context, w io.Writer, sourceID string) error {
	k.orch.Wait()
	src, err := k.store.Get(ctx, sourceID)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s %s %s\n", src.ID, src.Type, src.Status)
	return nil
}
