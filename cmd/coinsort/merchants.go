package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ledgersmith/coinsort/internal/cli"
)

func merchantsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merchants",
		Short: "Manage canonical merchants",
	}

	cmd.AddCommand(merchantsListCmd())
	cmd.AddCommand(merchantsResolveCmd())
	cmd.AddCommand(merchantsAliasesCmd())
	cmd.AddCommand(merchantsMergeCmd())

	return cmd
}

func merchantsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List canonical merchants",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, _, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			merchants, err := store.ListCanonicalMerchants(cmd.Context())
			if err != nil {
				return err
			}
			if len(merchants) == 0 {
				cmd.Println(cli.SubtleStyle.Render("No merchants yet. Import some expenses first."))
				return nil
			}

			cmd.Println(cli.TableHeaderStyle.Render(fmt.Sprintf(
				"%-6s %-25s %-25s %s", "ID", "NAME", "DISPLAY", "EXPENSES")))
			for _, m := range merchants {
				cmd.Printf("%-6d %-25s %-25s %d\n", m.ID, m.Name, m.DisplayName, m.UsageCount)
			}
			return nil
		},
	}
}

func merchantsResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <raw name>",
		Short: "Resolve a raw merchant string to its canonical merchant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, cfg, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			canonical, err := newCanonicalizer(store, cfg).FindOrCreate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			cmd.Printf("%s resolves to %s (id %d)\n",
				cli.BoldStyle.Render(args[0]),
				cli.SuccessStyle.Render(canonical.DisplayName),
				canonical.ID)
			return nil
		},
	}
}

func merchantsAliasesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "aliases",
		Short: "List merchant aliases",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, _, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			aliases, err := store.ListAliases(cmd.Context())
			if err != nil {
				return err
			}
			if len(aliases) == 0 {
				cmd.Println(cli.SubtleStyle.Render("No aliases yet."))
				return nil
			}

			cmd.Println(cli.TableHeaderStyle.Render(fmt.Sprintf(
				"%-6s %-30s %-25s %-10s %s", "ID", "RAW", "NORMALIZED", "CONFIDENCE", "MATCHES")))
			for _, a := range aliases {
				cmd.Printf("%-6d %-30s %-25s %-10.2f %d\n",
					a.ID, a.RawName, a.NormalizedName, a.Confidence, a.MatchCount)
			}
			return nil
		},
	}
}

func merchantsMergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge <target id> <source id>",
		Short: "Merge one canonical merchant into another",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			targetID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid target id %q", args[0])
			}
			sourceID, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid source id %q", args[1])
			}

			store, _, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.MergeCanonicalMerchants(cmd.Context(), targetID, sourceID); err != nil {
				return err
			}
			cmd.Println(cli.SuccessStyle.Render(fmt.Sprintf("Merged merchant %d into %d", sourceID, targetID)))
			return nil
		},
	}
}
