package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/ledgersmith/coinsort/internal/cli"
	"github.com/ledgersmith/coinsort/internal/model"
)

func compositesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "composites",
		Short: "Manage composite patterns",
	}

	cmd.AddCommand(compositesListCmd())
	cmd.AddCommand(compositesAddCmd())
	cmd.AddCommand(compositesDeactivateCmd())

	return cmd
}

func compositesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active composite patterns",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, _, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			composites, err := store.GetActiveComposites(cmd.Context())
			if err != nil {
				return err
			}
			if len(composites) == 0 {
				cmd.Println(cli.SubtleStyle.Render("No active composite patterns."))
				return nil
			}

			cmd.Println(cli.TableHeaderStyle.Render(fmt.Sprintf(
				"%-6s %-8s %-20s %-4s %-18s %-7s %-6s %s",
				"ID", "CAT", "NAME", "OP", "PATTERNS", "WEIGHT", "USES", "SUCCESS")))
			for _, c := range composites {
				ids := make([]string, len(c.PatternIDs))
				for i, id := range c.PatternIDs {
					ids[i] = strconv.FormatInt(id, 10)
				}
				cmd.Printf("%-6d %-8d %-20s %-4s %-18s %-7.2f %-6d %.2f\n",
					c.ID, c.CategoryID, c.Name, c.Operator, strings.Join(ids, ","),
					c.ConfidenceWeight, c.UsageCount, c.SuccessRate)
			}
			return nil
		},
	}
}

func compositesAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a new composite pattern",
		Long: `Combine existing patterns with AND, OR, or NOT, optionally gated by
conditions. Every referenced pattern must belong to the composite's
category. Time range conditions use "HH:MM-HH:MM".`,
		RunE: runCompositesAdd,
	}

	cmd.Flags().Int64("category", 0, "category id the composite belongs to")
	cmd.Flags().String("name", "", "human-readable name")
	cmd.Flags().String("operator", "", "combination operator (AND, OR, NOT)")
	cmd.Flags().Int64Slice("patterns", nil, "component pattern ids")
	cmd.Flags().Float64("weight", 1.0, "confidence weight")
	cmd.Flags().String("min-amount", "", "only match amounts at or above this")
	cmd.Flags().String("max-amount", "", "only match amounts at or below this")
	cmd.Flags().StringSlice("days", nil, "only match these days of the week")
	cmd.Flags().StringSlice("time-ranges", nil, "only match inside these clock ranges")
	cmd.Flags().StringSlice("blacklist", nil, "never match these merchant substrings")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("operator")
	_ = cmd.MarkFlagRequired("patterns")

	return cmd
}

func runCompositesAdd(cmd *cobra.Command, _ []string) error {
	categoryID, _ := cmd.Flags().GetInt64("category")
	name, _ := cmd.Flags().GetString("name")
	operator, _ := cmd.Flags().GetString("operator")
	patternIDs, _ := cmd.Flags().GetInt64Slice("patterns")
	weight, _ := cmd.Flags().GetFloat64("weight")

	conditions, err := conditionsFromFlags(cmd)
	if err != nil {
		return err
	}

	composite, err := model.NewCompositePattern(categoryID,
		model.CompositeOperator(strings.ToUpper(operator)), patternIDs, conditions, weight)
	if err != nil {
		return err
	}
	composite.Name = name
	composite.UserCreated = true

	store, cfg, err := initStorage(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := newEngine(store, cfg).CreateComposite(cmd.Context(), composite); err != nil {
		return err
	}
	cmd.Println(cli.SuccessStyle.Render(fmt.Sprintf("Created composite pattern %d", composite.ID)))
	return nil
}

func conditionsFromFlags(cmd *cobra.Command) (*model.CompositeConditions, error) {
	conditions := &model.CompositeConditions{}

	if raw, _ := cmd.Flags().GetString("min-amount"); raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid min amount %q: %w", raw, err)
		}
		conditions.MinAmount = &amount
	}
	if raw, _ := cmd.Flags().GetString("max-amount"); raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid max amount %q: %w", raw, err)
		}
		conditions.MaxAmount = &amount
	}
	conditions.DaysOfWeek, _ = cmd.Flags().GetStringSlice("days")
	conditions.MerchantBlacklist, _ = cmd.Flags().GetStringSlice("blacklist")

	ranges, _ := cmd.Flags().GetStringSlice("time-ranges")
	for _, raw := range ranges {
		r, err := model.ParseClockRange(raw)
		if err != nil {
			return nil, err
		}
		conditions.TimeRanges = append(conditions.TimeRanges, r)
	}

	if conditions.IsEmpty() {
		return nil, nil
	}
	return conditions, nil
}

func compositesDeactivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <id>",
		Short: "Deactivate a composite pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid composite id %q", args[0])
			}

			store, cfg, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := newEngine(store, cfg).DeactivateComposite(cmd.Context(), id); err != nil {
				return err
			}
			cmd.Println(cli.WarningStyle.Render(fmt.Sprintf("Deactivated composite %d", id)))
			return nil
		},
	}
}
