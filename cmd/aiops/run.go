package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joss/aiops/internal/config"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <request...>",
		Short: "Run a single request without operator review",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// One-shot has no operator at the review gate, so it
			// always runs in auto mode.
			cfg.Execution.Mode = config.ModeAuto

			request := strings.Join(args, " ")
			engine, err := buildEngine(strings.NewReader(request + "\nexit\n"))
			if err != nil {
				return err
			}
			return engine.Run(context.Background())
		},
	}
}
