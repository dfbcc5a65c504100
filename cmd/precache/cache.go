package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

// NewCacheCmd creates the cache command group.
func NewCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the offline caches",
	}
	cmd.AddCommand(newCacheKeysCmd())
	cmd.AddCommand(newCacheClearCmd())
	return cmd
}

func newCacheKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "List cached URLs",
		Long: `Keys lists the URLs held by the response caches and, with --images,
the image cache.`,
		RunE: runCacheKeysCmd,
	}
	cmd.Flags().StringP("name", "n", "", "Only list this named cache")
	cmd.Flags().Bool("images", false, "Also list cached images")
	return cmd
}

// cacheRow is one line of the keys table.
type cacheRow struct {
	Cache string
	URL   string
}

func runCacheKeysCmd(cmd *cobra.Command, _ []string) error {
	name, err := cmd.Flags().GetString("name")
	if err != nil {
		return err
	}
	withImages, err := cmd.Flags().GetBool("images")
	if err != nil {
		return err
	}

	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	if err := a.openStores(); err != nil {
		a.Close()
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	names := []string{name}
	if name == "" {
		names, err = a.store.Names(ctx)
		if err != nil {
			return err
		}
	} else if ok, err := a.store.Has(ctx, name); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("no cache named %q", name)
	}

	var rows []cacheRow
	for _, n := range names {
		c, err := a.store.Open(ctx, n)
		if err != nil {
			return err
		}
		keys, err := c.Keys(ctx)
		if err != nil {
			return err
		}
		for _, k := range keys {
			rows = append(rows, cacheRow{Cache: n, URL: k})
		}
	}
	if withImages {
		for _, k := range a.images.Keys() {
			rows = append(rows, cacheRow{Cache: "images", URL: k})
		}
	}

	renderCacheTable(cmd.OutOrStdout(), rows)
	return nil
}

// renderCacheTable writes rows grouped by cache name.
func renderCacheTable(out io.Writer, rows []cacheRow) {
	if len(rows) == 0 {
		fmt.Fprintln(out, "No cached entries.")
		return
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Cache < rows[j].Cache })

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "Cache", "URL"})
	for i, r := range rows {
		tw.AppendRow(table.Row{i + 1, r.Cache, r.URL})
	}
	tw.AppendFooter(table.Row{"", "Total", len(rows)})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	fmt.Fprintln(out, tw.Render())
}

func newCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every cached response, image and the run status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			if err := a.open(ctx); err != nil {
				a.Close()
				return err
			}
			defer a.Close()

			res := a.orch.ClearCache(ctx)
			if !res.Success {
				return fmt.Errorf("failed to clear caches: %w", res.Err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All offline caches cleared.")
			return nil
		},
	}
}
