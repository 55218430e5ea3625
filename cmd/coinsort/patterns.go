package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ledgersmith/coinsort/internal/cli"
	"github.com/ledgersmith/coinsort/internal/model"
)

func patternsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "Manage matching patterns",
	}

	cmd.AddCommand(patternsListCmd())
	cmd.AddCommand(patternsAddCmd())
	cmd.AddCommand(patternsDeactivateCmd())

	return cmd
}

func patternsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active patterns",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, _, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			patterns, err := store.GetActivePatterns(cmd.Context())
			if err != nil {
				return err
			}
			if len(patterns) == 0 {
				cmd.Println(cli.SubtleStyle.Render("No active patterns."))
				return nil
			}

			cmd.Println(cli.TableHeaderStyle.Render(fmt.Sprintf(
				"%-6s %-8s %-12s %-30s %-7s %-6s %-8s %s",
				"ID", "CAT", "TYPE", "VALUE", "WEIGHT", "USES", "SUCCESS", "USER")))
			for _, p := range patterns {
				cmd.Printf("%-6d %-8d %-12s %-30s %-7.2f %-6d %-8.2f %t\n",
					p.ID, p.CategoryID, p.Kind, p.Value, p.ConfidenceWeight,
					p.UsageCount, p.SuccessRate, p.UserCreated)
			}
			return nil
		},
	}
}

func patternsAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a new pattern",
		Long: `Create a pattern for a category. Value grammar depends on --type:
merchant, keyword, and description take a substring; amount_range takes
"min-max"; regex takes a Go regular expression; time takes a named
bucket (morning, afternoon, evening, night), weekend, weekday, or an
"HH:MM-HH:MM" range.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			categoryID, _ := cmd.Flags().GetInt64("category")
			kind, _ := cmd.Flags().GetString("type")
			value, _ := cmd.Flags().GetString("value")
			weight, _ := cmd.Flags().GetFloat64("weight")

			p, err := model.NewPattern(categoryID, model.PatternKind(kind), value, weight)
			if err != nil {
				return err
			}
			p.UserCreated = true

			store, cfg, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := newEngine(store, cfg).CreatePattern(cmd.Context(), p); err != nil {
				return err
			}
			cmd.Println(cli.SuccessStyle.Render(fmt.Sprintf("Created %s pattern %d", p.Kind, p.ID)))
			return nil
		},
	}

	cmd.Flags().Int64("category", 0, "category id the pattern belongs to")
	cmd.Flags().String("type", "", "pattern type (merchant, keyword, description, amount_range, regex, time)")
	cmd.Flags().String("value", "", "pattern value")
	cmd.Flags().Float64("weight", 1.0, "confidence weight")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("value")

	return cmd
}

func patternsDeactivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <id>",
		Short: "Deactivate a pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid pattern id %q", args[0])
			}

			store, cfg, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := newEngine(store, cfg).DeactivatePattern(cmd.Context(), id); err != nil {
				return err
			}
			cmd.Println(cli.WarningStyle.Render(fmt.Sprintf("Deactivated pattern %d", id)))
			return nil
		},
	}
}
