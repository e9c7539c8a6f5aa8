package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joss/aiops/internal/render"
	"github.com/joss/aiops/internal/skills"
)

func skillCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "skill",
		Aliases: []string{"skills"},
		Short:   "Skill catalogue commands",
	}

	cmd.AddCommand(
		skillListCmd(),
		skillShowCmd(),
	)
	return cmd
}

func loadRegistry() (*skills.Registry, error) {
	dir := cfg.Skills.Dir
	if dir == "" {
		dir = paths.Skills
	}
	return skills.Load(dir)
}

func skillListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available skills",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := loadRegistry()
			if err != nil {
				return err
			}

			out := render.New(os.Stdout)
			if registry.Len() == 0 {
				out.Println("No skills installed.")
				return nil
			}
			for _, s := range registry.Summaries() {
				out.Println("%-24s %s", s.Name, s.Description)
			}
			return nil
		},
	}
}

func skillShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show a skill's definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := loadRegistry()
			if err != nil {
				return err
			}

			sk, ok := registry.Get(args[0])
			if !ok {
				return fmt.Errorf("no skill %q", args[0])
			}

			out := render.New(os.Stdout)
			out.Println("Name:        %s", sk.Name)
			out.Println("Description: %s", sk.Description)
			if len(sk.Intents) > 0 {
				out.Println("Intents:     %s", strings.Join(sk.Intents, ", "))
			}
			if len(sk.Keywords) > 0 {
				out.Println("Keywords:    %s", strings.Join(sk.Keywords, ", "))
			}
			if sk.Entrypoint != "" {
				out.Println("Entrypoint:  %s", sk.Entrypoint)
			}
			for name, desc := range sk.Parameters {
				out.Println("Param %-12s %s", name+":", desc)
			}
			if sk.SystemPrompt != "" {
				out.Println("\n%s", sk.SystemPrompt)
			}
			return nil
		},
	}
}
