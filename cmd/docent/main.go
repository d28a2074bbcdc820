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


package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/docent"
	"github.com/poiesic/docent/config"
	"github.com/poiesic/docent/core"
	"github.com/poiesic/docent/ingestion"
	"github.com/poiesic/docent/reenrich"
	"github.com/poiesic/docent/storage"
	"github.com/poiesic/docent/watch"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// newApp builds the CLI. Options are passed to docent.Open by every command.
func newApp(opts ...docent.Option) *cli.App {
	return &cli.App{
		Name:  "docent",
		Usage: "Index a document folder and ask questions about it",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a TOML or YAML config file",
				Value:   "docent.toml",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory (overrides storage.path)",
			},
			&cli.StringFlag{
				Name:  "llm-backend",
				Usage: "LLM backend: openai or ollama (overrides llm.backend)",
			},
			&cli.StringFlag{
				Name:  "llm-host",
				Usage: "LLM service host URL (overrides llm.host)",
			},
			&cli.StringFlag{
				Name:  "llm-model",
				Usage: "LLM model name (overrides llm.model)",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "watch",
				Usage:     "Index a directory and keep the index in sync until interrupted",
				ArgsUsage: "[root]",
				Action: func(c *cli.Context) error {
					return watchCommand(c, opts)
				},
			},
			{
				Name:      "ingest",
				Usage:     "Index files or directories once",
				ArgsUsage: "<path>...",
				Action: func(c *cli.Context) error {
					return ingestCommand(c, opts)
				},
			},
			{
				Name:      "ask",
				Usage:     "Ask a question about the indexed documents",
				ArgsUsage: "<question>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "session",
						Aliases: []string{"s"},
						Usage:   "Session id; a new session is started when omitted",
					},
				},
				Action: func(c *cli.Context) error {
					return askCommand(c, opts)
				},
			},
			{
				Name:  "docs",
				Usage: "List indexed documents, most recently indexed first",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "topic", Usage: "Only documents with this topic"},
					&cli.StringFlag{Name: "keyword", Usage: "Only documents with this keyword"},
					&cli.StringFlag{Name: "format", Usage: "Only documents of this format"},
				},
				Action: func(c *cli.Context) error {
					return docsCommand(c, opts)
				},
			},
			{
				Name:  "history",
				Usage: "Show the questions and answers of a session",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "session",
						Aliases:  []string{"s"},
						Usage:    "Session id",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Show at most this many exchanges (0 for all retained)",
					},
				},
				Action: func(c *cli.Context) error {
					return historyCommand(c, opts)
				},
			},
			{
				Name:  "reenrich",
				Usage: "Re-run enrichment over every indexed document",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Value: reenrich.DefaultBatchSize,
						Usage: "Documents per batch between checkpoints",
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Value: reenrich.DefaultBatchSize,
						Usage: "Report progress every N documents",
					},
					&cli.BoolFlag{
						Name:  "resume",
						Usage: "Continue after the last checkpoint of an interrupted run",
					},
				},
				Action: func(c *cli.Context) error {
					return reenrichCommand(c, opts)
				},
			},
		},
	}
}

// loadConfig reads the config file and applies global flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if v := c.String("db"); v != "" {
		cfg.Storage.Path = v
		cfg.Storage.InMemory = false
	}
	if v := c.String("llm-backend"); v != "" {
		cfg.LLM.Backend = v
	}
	if v := c.String("llm-host"); v != "" {
		cfg.LLM.Host = v
	}
	if v := c.String("llm-model"); v != "" {
		cfg.LLM.Model = v
	}
	return cfg, nil
}

func openSystem(c *cli.Context, opts []docent.Option) (*docent.System, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	return docent.Open(cfg, append([]docent.Option{docent.WithLogger(slog.Default())}, opts...)...)
}

func watchCommand(c *cli.Context, opts []docent.Option) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if root := c.Args().First(); root != "" {
		cfg.Watch.Root = root
	}
	sys, err := docent.Open(cfg, append([]docent.Option{docent.WithLogger(slog.Default())}, opts...)...)
	if err != nil {
		return err
	}
	defer sys.Close()

	pipeline, err := sys.NewIngestionPipeline()
	if err != nil {
		return err
	}
	defer pipeline.Release()

	out := c.App.Writer
	svc, err := sys.NewWatchService(pipeline, watch.WithOnResult(func(r ingestion.Result) {
		printResult(out, r)
	}))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("watching", "root", svc.Root())
	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func ingestCommand(c *cli.Context, opts []docent.Option) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one path is required")
	}
	sys, err := openSystem(c, opts)
	if err != nil {
		return err
	}
	defer sys.Close()

	pipeline, err := sys.NewIngestionPipeline()
	if err != nil {
		return err
	}
	defer pipeline.Release()

	results, err := pipeline.IngestPaths(c.Context, c.Args().Slice()...)
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		printResult(c.App.Writer, r)
		if r.Outcome == ingestion.OutcomeFailed {
			failed++
		}
	}
	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d files failed", failed, len(results)), 1)
	}
	return nil
}

func printResult(w io.Writer, r ingestion.Result) {
	switch {
	case r.Err != nil:
		fmt.Fprintf(w, "%-9s %s: %v\n", r.Outcome, r.Path, r.Err)
	case r.Document != nil:
		fmt.Fprintf(w, "%-9s %s (%s)\n", r.Outcome, r.Path, r.Document.ID)
	default:
		fmt.Fprintf(w, "%-9s %s\n", r.Outcome, r.Path)
	}
}

func askCommand(c *cli.Context, opts []docent.Option) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return fmt.Errorf("a question is required")
	}
	sessionID := c.String("session")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	sys, err := openSystem(c, opts)
	if err != nil {
		return err
	}
	defer sys.Close()

	orchestrator, err := sys.NewOrchestrator()
	if err != nil {
		return err
	}

	turn, err := orchestrator.Ask(c.Context, sessionID, question)
	if err != nil {
		return err
	}

	out := c.App.Writer
	fmt.Fprintln(out, turn.Answer)
	if len(turn.Documents) > 0 {
		ids := make([]string, len(turn.Documents))
		for i, id := range turn.Documents {
			ids[i] = string(id)
		}
		fmt.Fprintf(out, "\ndocuments: %s\n", strings.Join(ids, ", "))
	}
	if turn.Forced {
		fmt.Fprintln(out, "(answer based on partial results)")
	}
	fmt.Fprintf(out, "session: %s\n", sessionID)
	return nil
}

func docsCommand(c *cli.Context, opts []docent.Option) error {
	sys, err := openSystem(c, opts)
	if err != nil {
		return err
	}
	defer sys.Close()

	docs, err := sys.Documents().ListDocuments(c.Context, storage.DocumentFilter{
		Topic:   c.String("topic"),
		Keyword: c.String("keyword"),
		Format:  core.Format(c.String("format")),
	})
	if err != nil {
		return err
	}

	out := c.App.Writer
	if len(docs) == 0 {
		fmt.Fprintln(out, "no documents")
		return nil
	}
	for _, doc := range docs {
		fmt.Fprintf(out, "%s  %-8s  %s\n", doc.ID, doc.Format, doc.Title)
		if len(doc.Topics) > 0 {
			fmt.Fprintf(out, "    topics: %s\n", strings.Join(doc.Topics, ", "))
		}
	}
	return nil
}

func historyCommand(c *cli.Context, opts []docent.Option) error {
	sys, err := openSystem(c, opts)
	if err != nil {
		return err
	}
	defer sys.Close()

	history, err := sys.History().GetHistory(c.Context, c.String("session"), c.Int("limit"))
	if err != nil {
		return err
	}

	out := c.App.Writer
	if len(history) == 0 {
		fmt.Fprintln(out, "no history")
		return nil
	}
	for _, qa := range history {
		fmt.Fprintf(out, "[%s]\nQ: %s\nA: %s\n\n", qa.Timestamp.Local().Format("2006-01-02 15:04:05"), qa.Question, qa.Answer)
	}
	return nil
}

func reenrichCommand(c *cli.Context, opts []docent.Option) error {
	sys, err := openSystem(c, opts)
	if err != nil {
		return err
	}
	defer sys.Close()

	r, err := sys.NewReenricher(&reenrich.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		Resume:         c.Bool("resume"),
	}, c.App.ErrWriter)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := r.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return cli.Exit("interrupted; rerun with --resume to continue", 130)
		}
		return err
	}
	fmt.Fprintf(c.App.Writer, "re-enriched %d documents (%d skipped)\n", summary.Processed, summary.Skipped)
	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
