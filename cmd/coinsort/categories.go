package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ledgersmith/coinsort/internal/cli"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage spending categories",
	}

	cmd.AddCommand(categoriesListCmd())
	cmd.AddCommand(categoriesAddCmd())
	cmd.AddCommand(categoriesDeleteCmd())

	return cmd
}

func categoriesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, _, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			categories, err := store.ListCategories(cmd.Context())
			if err != nil {
				return err
			}
			if len(categories) == 0 {
				cmd.Println(cli.SubtleStyle.Render("No categories yet. Add one with: coinsort categories add <name>"))
				return nil
			}

			cmd.Println(cli.TableHeaderStyle.Render(fmt.Sprintf("%-6s %-30s %s", "ID", "NAME", "ACTIVE")))
			for _, c := range categories {
				cmd.Printf("%-6d %-30s %t\n", c.ID, c.Name, c.Active)
			}
			return nil
		},
	}
}

func categoriesAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <name>",
		Short: "Create a new category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			category, err := store.CreateCategory(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			cmd.Println(cli.SuccessStyle.Render(fmt.Sprintf("Created category %q (id %d)", category.Name, category.ID)))
			return nil
		},
	}
}

func categoriesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a category and the rules it owns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid category id %q", args[0])
			}

			store, _, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.DeleteCategory(cmd.Context(), id); err != nil {
				return err
			}
			cmd.Println(cli.WarningStyle.Render(fmt.Sprintf("Deleted category %d and its rules", id)))
			return nil
		},
	}
}
