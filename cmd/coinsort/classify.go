package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/ledgersmith/coinsort/internal/cli"
	"github.com/ledgersmith/coinsort/internal/model"
	"github.com/ledgersmith/coinsort/internal/service"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Suggest categories for an expense",
		Long: `Evaluate every active rule against an expense and print ranked
category suggestions. Pass --id for a stored expense, or describe an
ad-hoc expense with --merchant, --description, --amount, and --date.`,
		RunE: runClassify,
	}

	cmd.Flags().String("id", "", "classify a stored expense by id")
	cmd.Flags().String("merchant", "", "merchant name")
	cmd.Flags().String("description", "", "expense description")
	cmd.Flags().String("amount", "", "expense amount, e.g. 12.50")
	cmd.Flags().String("date", "", "when the expense occurred (RFC 3339 or 2006-01-02 15:04)")
	cmd.Flags().Int("top", 0, "only show the top N suggestions")

	return cmd
}

func runClassify(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, cfg, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	expense, err := expenseFromFlags(cmd, store)
	if err != nil {
		return err
	}

	suggestions, err := newEngine(store, cfg).Classify(ctx, *expense)
	if err != nil {
		return err
	}

	if top, _ := cmd.Flags().GetInt("top"); top > 0 {
		suggestions = suggestions.TopN(top)
	}

	if len(suggestions) == 0 {
		cmd.Println(cli.SubtleStyle.Render("No rules matched this expense."))
		return nil
	}

	categories, err := store.ListCategories(ctx)
	if err != nil {
		return err
	}
	names := make(map[int64]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	cmd.Println(cli.TitleStyle.Render("Suggestions"))
	cmd.Println(cli.TableHeaderStyle.Render(suggestionRow("CATEGORY", "CONFIDENCE", "USES", "REASON")))
	for _, s := range suggestions {
		name := names[s.CategoryID]
		if name == "" {
			name = fmt.Sprintf("category %d", s.CategoryID)
		}
		cmd.Println(suggestionRow(name, fmt.Sprintf("%.3f", s.Confidence),
			strconv.Itoa(s.UsageCount), s.Reason))
	}
	return nil
}

// suggestionRow lays out one line of the suggestions table; the reason cell
// runs unpadded to the end of the line.
func suggestionRow(category, confidence, uses, reason string) string {
	return cli.TableCellStyle.Width(20).Render(category) +
		cli.TableCellStyle.Width(12).Render(confidence) +
		cli.TableCellStyle.Width(8).Render(uses) +
		reason
}

// expenseFromFlags builds the expense to classify, either loaded by id or
// assembled from the describing flags.
func expenseFromFlags(cmd *cobra.Command, store service.ExpenseStore) (*model.Expense, error) {
	if id, _ := cmd.Flags().GetString("id"); id != "" {
		return store.GetExpense(cmd.Context(), id)
	}

	merchantName, _ := cmd.Flags().GetString("merchant")
	description, _ := cmd.Flags().GetString("description")
	if merchantName == "" && description == "" {
		return nil, fmt.Errorf("provide --id or at least one of --merchant and --description")
	}

	amountStr, _ := cmd.Flags().GetString("amount")
	amount := decimal.Zero
	if amountStr != "" {
		var err error
		amount, err = decimal.NewFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("invalid amount %q: %w", amountStr, err)
		}
	}

	var occurredAt time.Time
	if dateStr, _ := cmd.Flags().GetString("date"); dateStr != "" {
		var err error
		occurredAt, err = parseFlexibleTime(dateStr)
		if err != nil {
			return nil, err
		}
	}

	expense := model.NewExpense(merchantName, description, amount, occurredAt)
	return &expense, nil
}

// parseFlexibleTime accepts the timestamp formats users actually type.
func parseFlexibleTime(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, strings.TrimSpace(value), time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}
