package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ledgersmith/coinsort/internal/cli"
	"github.com/ledgersmith/coinsort/internal/model"
)

func feedbackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback <expense id> <category id>",
		Short: "Record feedback on a category suggestion",
		Long: `Record how a suggestion worked out so the engine can learn from it.
Feedback types: accepted (suggestion was right), rejected (it was
wrong), corrected (a different suggestion was picked), correction (the
user supplied a category no rule suggested; a new pattern is learned
from the expense).`,
		Args: cobra.ExactArgs(2),
		RunE: runFeedback,
	}

	cmd.Flags().String("type", "accepted", "feedback type (accepted, rejected, corrected, correction)")
	cmd.Flags().Int64("pattern", 0, "id of the pattern that produced the suggestion")
	cmd.Flags().Int64("composite", 0, "id of the composite that produced the suggestion")
	cmd.Flags().Float64("confidence", 0, "confidence the suggestion carried, 0 to 1")

	return cmd
}

func runFeedback(cmd *cobra.Command, args []string) error {
	categoryID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid category id %q", args[1])
	}

	kind, _ := cmd.Flags().GetString("type")
	event := model.NewFeedbackEvent(args[0], categoryID, model.FeedbackKind(kind))

	if patternID, _ := cmd.Flags().GetInt64("pattern"); patternID > 0 {
		event.PatternID = &patternID
	}
	if compositeID, _ := cmd.Flags().GetInt64("composite"); compositeID > 0 {
		event.CompositeID = &compositeID
	}
	if cmd.Flags().Changed("confidence") {
		confidence, _ := cmd.Flags().GetFloat64("confidence")
		event.ConfidenceScore = &confidence
	}

	store, cfg, err := initStorage(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := newEngine(store, cfg).ProcessFeedback(cmd.Context(), event); err != nil {
		return err
	}
	cmd.Println(cli.SuccessStyle.Render(fmt.Sprintf("Recorded %s feedback for expense %s", event.Kind, event.ExpenseID)))
	return nil
}
