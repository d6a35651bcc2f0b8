package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newFAQCommand(ctx *commandContext) *cobra.Command {
	faqCmd := &cobra.Command{
		Use:   "faq",
		Short: "FAQ utilities",
	}
	faqCmd.AddCommand(newFAQGroupsCommand(ctx))
	return faqCmd
}

func newFAQGroupsCommand(ctx *commandContext) *cobra.Command {
	var refresh bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "groups",
		Short: "Show the FAQ grouped by category",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := ctx.runtime(cmd.Context())
			if err != nil {
				return err
			}
			groups, res, err := catalog.FAQGroups(cmd.Context(), refresh)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, groups)
			}

			rows := make([][]string, 0, len(groups))
			for _, g := range groups {
				first := ""
				if len(g.Rows) > 0 {
					first = g.Rows[0].Question
				}
				rows = append(rows, []string{strconv.Itoa(g.Order()), g.Label, strconv.Itoa(len(g.Rows)), first})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"Order", "Category", "Questions", "First question"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignRight},
			))
			printOrigin(out, res.Origin, res.StoredAt, res.Err, len(res.Items))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&refresh, "refresh", "r", false, "Bypass a fresh cache entry and fetch from the network")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the groups as JSON")
	return cmd
}
