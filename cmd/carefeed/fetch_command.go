package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/adeilh/carefeed/content"
	"github.com/adeilh/carefeed/sheet"
	"github.com/adeilh/carefeed/source"
)

func newFetchCommand(ctx *commandContext) *cobra.Command {
	var refresh bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:       "fetch <source>",
		Short:     "Show a content source, from cache when fresh",
		Long:      "Show a content source. Sources: faq, tips, videos, ratings, share.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{source.FAQ, source.Tips, source.Videos, source.Ratings, source.Share},
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := ctx.runtime(cmd.Context())
			if err != nil {
				return err
			}
			src, err := catalog.Lookup(strings.ToLower(args[0]))
			if err != nil {
				return err
			}
			snap, err := src.Snapshot(cmd.Context(), refresh)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, snap)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderItems(snap.Items))
			printOrigin(out, snap.Origin, snap.StoredAt, snap.Err, snap.Count)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&refresh, "refresh", "r", false, "Bypass a fresh cache entry and fetch from the network")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

func renderItems(items any) string {
	switch v := items.(type) {
	case []sheet.Row:
		rows := make([][]string, 0, len(v))
		for _, r := range v {
			rows = append(rows, []string{strconv.Itoa(r.ID), r.Category, r.Question})
		}
		return renderTable([]string{"ID", "Category", "Question"}, rows, []columnAlignment{alignRight})
	case []content.Tip:
		rows := make([][]string, 0, len(v))
		for _, t := range v {
			rows = append(rows, []string{strconv.Itoa(t.ID.Int()), t.Order.String(), t.Title.String(), t.Category.String()})
		}
		return renderTable([]string{"ID", "Order", "Title", "Category"}, rows, []columnAlignment{alignRight, alignRight})
	case []content.Video:
		rows := make([][]string, 0, len(v))
		for _, vid := range v {
			rows = append(rows, []string{strconv.Itoa(vid.ID.Int()), vid.Date.String(), vid.Title.String(), vid.URL.String()})
		}
		return renderTable([]string{"ID", "Date", "Title", "URL"}, rows, []columnAlignment{alignRight})
	case []content.Rating:
		rows := make([][]string, 0, len(v))
		for _, r := range v {
			rows = append(rows, []string{strconv.Itoa(r.ID.Int()), r.Platform.String(), r.Title.String(), r.StoreURL.String()})
		}
		return renderTable([]string{"ID", "Platform", "Title", "URL"}, rows, []columnAlignment{alignRight})
	case []content.ShareLink:
		rows := make([][]string, 0, len(v))
		for _, s := range v {
			rows = append(rows, []string{strconv.Itoa(s.ID.Int()), s.Priority.String(), s.Channel.String(), s.URL.String()})
		}
		return renderTable([]string{"ID", "Priority", "Channel", "URL"}, rows, []columnAlignment{alignRight, alignRight})
	default:
		return fmt.Sprint(items)
	}
}

func printOrigin(out io.Writer, origin source.Origin, storedAt time.Time, fetchErr error, count int) {
	switch origin {
	case source.OriginStale:
		fmt.Fprintf(out, "%d items, showing cached data from %s (%s ago)\n",
			count, storedAt.Local().Format(time.DateTime), time.Since(storedAt).Round(time.Minute))
	case source.OriginEmpty:
		fmt.Fprintf(out, "source unavailable, nothing cached\n")
	default:
		fmt.Fprintf(out, "%d items from %s\n", count, origin)
	}
	if fetchErr != nil {
		fmt.Fprintf(out, "fetch failed: %v\n", fetchErr)
	}
}
