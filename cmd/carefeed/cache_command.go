package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clear the local cache",
	}
	cacheCmd.AddCommand(newCacheListCommand(ctx))
	cacheCmd.AddCommand(newCacheAgeCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))
	return cacheCmd
}

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List cached entries and their age",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := ctx.runtime(cmd.Context())
			if err != nil {
				return err
			}
			store := catalog.Store()
			keys := store.Keys(cmd.Context())
			out := cmd.OutOrStdout()
			if len(keys) == 0 {
				fmt.Fprintln(out, "Cache is empty")
				return nil
			}
			rows := make([][]string, 0, len(keys))
			for _, key := range keys {
				age, state := "-", "stale"
				if hours, ok := store.Age(cmd.Context(), key); ok {
					age, state = strconv.Itoa(hours)+"h", "fresh"
				}
				rows = append(rows, []string{key, state, age})
			}
			fmt.Fprintln(out, renderTable([]string{"Key", "State", "Age"}, rows, []columnAlignment{alignLeft, alignLeft, alignRight}))
			return nil
		},
	}
}

func newCacheAgeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "age <source>",
		Short: "Show how many hours ago a source was cached",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := ctx.runtime(cmd.Context())
			if err != nil {
				return err
			}
			src, err := catalog.Lookup(args[0])
			if err != nil {
				return err
			}
			hours, ok := catalog.Store().Age(cmd.Context(), src.Key())
			if !ok {
				return fmt.Errorf("no fresh cache entry for %s", src.Name())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: cached %dh ago\n", src.Name(), hours)
			return nil
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "clear [source]",
		Short: "Remove one source, or every entry with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return errors.New("pass either a source name or --all")
			}
			catalog, err := ctx.runtime(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if all {
				catalog.Store().ClearAll(cmd.Context())
				fmt.Fprintln(out, "Cleared all cache entries")
				return nil
			}
			src, err := catalog.Lookup(args[0])
			if err != nil {
				return err
			}
			catalog.Store().Clear(cmd.Context(), src.Key())
			fmt.Fprintf(out, "Cleared %s\n", src.Name())
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Clear every cached source")
	return cmd
}
