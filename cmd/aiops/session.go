package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joss/aiops/internal/render"
	"github.com/joss/aiops/internal/state"
)

func sessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "session",
		Aliases: []string{"sessions"},
		Short:   "Session management commands",
	}

	cmd.AddCommand(
		sessionListCmd(),
		sessionDeleteCmd(),
		sessionRenameCmd(),
		sessionRunsCmd(),
	)
	return cmd
}

func openStore() (*state.Store, error) {
	return state.Open(paths.StateFile)
}

func sessionListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}

			sessions := store.ListSessions()
			order := make([]string, 0, len(sessions))
			for id := range sessions {
				order = append(order, id)
			}
			sort.Slice(order, func(i, j int) bool {
				return sessions[order[i]].Created < sessions[order[j]].Created
			})

			render.New(os.Stdout).Sessions(sessions, store.GetCurrent(), order)
			return nil
		},
	}
}

func sessionDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			if err := store.Delete(args[0]); err != nil {
				if state.IsNotFound(err) {
					return fmt.Errorf("no session %q", args[0])
				}
				return err
			}
			fmt.Printf("Deleted session %s\n", args[0])
			return nil
		},
	}
}

func sessionRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <title...>",
		Short: "Rename a session",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			title := strings.Join(args[1:], " ")
			if err := store.Rename(args[0], title); err != nil {
				if state.IsNotFound(err) {
					return fmt.Errorf("no session %q", args[0])
				}
				return err
			}
			fmt.Printf("Renamed session %s to %q\n", args[0], title)
			return nil
		},
	}
}

func sessionRunsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs [id]",
		Short: "Show recent model calls, patches and executions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if auditStore == nil {
				return fmt.Errorf("execution history unavailable")
			}

			sessionID := ""
			if len(args) == 1 {
				sessionID = args[0]
			}

			events, err := auditStore.Recent(context.Background(), sessionID, limit)
			if err != nil {
				return err
			}
			render.New(os.Stdout).Runs(events)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum events to show")
	return cmd
}
