package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blueberrycongee/recall/internal/memory"
	"github.com/blueberrycongee/recall/pkg/types"
)

func (c *cli) addCMD() *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "add <content>",
		Short: "Store a memory",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content := strings.Join(args, " ")
			return c.run(cmd, func(ctx context.Context, s *session) (any, error) {
				return types.SuccessResponse{Success: s.svc.AddMemory(ctx, content, category)}, nil
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", memory.DefaultCategory, "memory category")
	return cmd
}

func (c *cli) searchCMD() *cobra.Command {
	var (
		limit     int
		threshold float64
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find memories similar to a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			opts := memory.SearchOptions{}
			if cmd.Flags().Changed("limit") {
				opts.Limit = &limit
			}
			if cmd.Flags().Changed("threshold") {
				opts.Threshold = &threshold
			}
			return c.run(cmd, func(ctx context.Context, s *session) (any, error) {
				matches := s.svc.SearchMemories(ctx, query, opts)
				return types.QueryResponse{Results: memory.QueryResults(matches)}, nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", memory.DefaultSearchLimit, "maximum number of results")
	cmd.Flags().Float64Var(&threshold, "threshold", memory.DefaultSearchThreshold, "minimum similarity score")
	return cmd
}

func (c *cli) listCMD() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List memories, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, s *session) (any, error) {
				return types.MemoriesResponse{Memories: memory.Memories(s.svc.ListMemories(ctx, limit))}, nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", memory.DefaultListLimit, "maximum number of memories")
	return cmd
}

func (c *cli) updateCMD() *cobra.Command {
	return &cobra.Command{
		Use:   "update <id> <content>",
		Short: "Replace the content of a memory",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			content := strings.Join(args[1:], " ")
			return c.run(cmd, func(ctx context.Context, s *session) (any, error) {
				return types.SuccessResponse{Success: s.svc.UpdateMemory(ctx, id, content)}, nil
			})
		},
	}
}

func (c *cli) deleteCMD() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return c.run(cmd, func(ctx context.Context, s *session) (any, error) {
				return types.SuccessResponse{Success: s.svc.DeleteMemory(ctx, id)}, nil
			})
		},
	}
}

func (c *cli) clearCMD() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every memory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errNotConfirmed
			}
			return c.run(cmd, func(ctx context.Context, s *session) (any, error) {
				return types.SuccessResponse{Success: s.svc.ClearAllMemories(ctx)}, nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm deletion")
	return cmd
}

type modelsOutput struct {
	EmbeddingModel *string `json:"embedding_model"`
	ToolModel      *string `json:"tool_model"`
}

func (c *cli) modelsCMD() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "Show the resolved embedding and tool models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, s *session) (any, error) {
				return modelsOutput{
					EmbeddingModel: optional(s.models.ResolveEmbeddingModel(ctx)),
					ToolModel:      optional(s.models.ResolveToolModel(ctx)),
				}, nil
			})
		},
	}
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid memory id %q", arg)
	}
	return id, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
