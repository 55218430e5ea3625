package main

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ledgersmith/coinsort/internal/cli"
	"github.com/ledgersmith/coinsort/internal/model"
	"github.com/ledgersmith/coinsort/internal/ofx"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file.ofx> [more files...]",
		Short: "Import expenses from OFX/QFX bank exports",
		Long: `Parse one or more OFX/QFX statement files, register each merchant with
the canonicalizer, and store the expenses. Already imported expenses
are skipped by id.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runImport,
	}

	cmd.Flags().Bool("skip-merchants", false, "do not resolve merchants during import")

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, cfg, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	parser := ofx.NewParser()
	var expenses []model.Expense

	for _, path := range args {
		file, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		parsed, err := parser.ParseFile(ctx, file)
		_ = file.Close()
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		expenses = append(expenses, parsed...)
	}

	if len(expenses) == 0 {
		cmd.Println(cli.SubtleStyle.Render("No expenses found in the given files."))
		return nil
	}

	if skip, _ := cmd.Flags().GetBool("skip-merchants"); !skip {
		canonicalizer := newCanonicalizer(store, cfg)
		bar := progressbar.Default(int64(len(expenses)), "Resolving merchants")
		for i := range expenses {
			if expenses[i].MerchantName != "" {
				if _, err := canonicalizer.FindOrCreate(ctx, expenses[i].MerchantName); err != nil {
					return fmt.Errorf("failed to resolve merchant %q: %w", expenses[i].MerchantName, err)
				}
			}
			_ = bar.Add(1)
		}
		_ = bar.Finish()
	}

	saved, err := store.SaveExpenses(ctx, expenses)
	if err != nil {
		return err
	}

	cmd.Println(cli.SuccessStyle.Render(fmt.Sprintf(
		"Imported %d expenses (%d new, %d already known)", len(expenses), saved, len(expenses)-saved)))
	return nil
}
