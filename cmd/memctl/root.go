package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/blueberrycongee/recall/internal/cache"
	"github.com/blueberrycongee/recall/internal/config"
	"github.com/blueberrycongee/recall/internal/memory"
	"github.com/blueberrycongee/recall/internal/memory/backend"
	"github.com/blueberrycongee/recall/internal/observability"
	"github.com/blueberrycongee/recall/internal/ollama"
	"github.com/blueberrycongee/recall/internal/resolver"
)

// session is the set of components a single command runs against.
type session struct {
	svc    *memory.Service
	models *resolver.Resolver
	close  func()
}

type cli struct {
	out     io.Writer
	cfgPath string
	verbose bool
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out}
	root := &cobra.Command{
		Use:           "memctl",
		Short:         "Inspect and edit the recall memory store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVarP(&c.cfgPath, "config", "c", "", "config file path")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log to stderr")

	root.AddCommand(
		c.addCMD(),
		c.searchCMD(),
		c.listCMD(),
		c.updateCMD(),
		c.deleteCMD(),
		c.clearCMD(),
		c.modelsCMD(),
	)
	return root
}

func (c *cli) logger() *slog.Logger {
	if !c.verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	level := new(slog.LevelVar)
	level.Set(slog.LevelDebug)
	return observability.NewLogger(observability.LoggerConfig{Level: level, Output: os.Stderr}, observability.NewRedactor())
}

// open loads the configuration and wires the memory service the same way
// the server does. Cache and store are released by session.close.
func (c *cli) open(ctx context.Context) (*session, error) {
	cfg, err := config.Load(c.cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	logger := c.logger()

	store, err := backend.Open(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, err
	}
	embedCache, err := cache.New(cfg.Cache)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("init embedding cache: %w", err)
	}

	client := ollama.New(ollama.Config{BaseURL: cfg.Ollama.BaseURL, Timeout: cfg.Ollama.Timeout})
	models := resolver.New(client, logger)
	return &session{
		svc:    memory.NewService(store, cache.NewEmbedder(client, embedCache, logger), models, logger),
		models: models,
		close: func() {
			if embedCache != nil {
				_ = embedCache.Close()
			}
			_ = store.Close()
		},
	}, nil
}

// run opens a session, calls fn and prints its result as indented JSON.
func (c *cli) run(cmd *cobra.Command, fn func(ctx context.Context, s *session) (any, error)) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	result, err := fn(ctx, s)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

var errNotConfirmed = errors.New("refusing to clear memories without --yes")
