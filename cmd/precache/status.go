package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/precache/internal/cachestore"
	"github.com/nao1215/precache/internal/model"
	"github.com/nao1215/precache/internal/report"
)

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the last pre-cache run and storage usage",
		Long: `Status prints the persisted result of the last run together with the
size of the response store and the image cache. It does not touch the
network.

Examples:
  precache status
  precache status --json
  precache status --markdown -o status.md`,
		RunE: runStatusCmd,
	}

	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.MarkFlagsMutuallyExclusive("json", "markdown")

	return cmd
}

func runStatusCmd(cmd *cobra.Command, _ []string) error {
	jsonOut, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOut, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}
	outputPath, err := cmd.Flags().GetString("output")
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

	rep, err := buildStatusReport(cmd.Context(), a)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if outputPath != "" {
		if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
		}
		f, err := os.Create(outputPath) //nolint:gosec // User-provided output path is intentional
		if err != nil {
			return fmt.Errorf("failed to create report file: %w", err)
		}
		defer f.Close()
		out = f
	}

	_, err = newReportWriter(out, jsonOut, markdownOut, a.cfg.Verbose).Write(rep)
	return err
}

func newReportWriter(out io.Writer, jsonOut, markdownOut, verbose bool) report.Writer {
	switch {
	case jsonOut:
		return report.NewJSONWriter(out, report.WithPrettyPrint())
	case markdownOut:
		return report.NewMarkdownWriter(out)
	default:
		return report.NewSimpleWriter(out, report.WithVerbose(verbose))
	}
}

// buildStatusReport collects the persisted status and storage usage.
func buildStatusReport(ctx context.Context, a *app) (*model.StatusReport, error) {
	if a.store == nil || a.images == nil {
		return nil, errors.New("stores are not open")
	}

	status, err := cachestore.NewStatusRecord(a.store).Read(ctx)
	if err != nil {
		a.logger.Warn("failed to read pre-cache status", slog.String("error", err.Error()))
		status = nil
	}
	usage, err := a.store.Usage(ctx)
	if err != nil {
		return nil, err
	}

	return &model.StatusReport{
		GeneratedAt:  time.Now(),
		Origin:       a.cfg.APIBaseURL,
		CacheName:    a.cfg.CacheName,
		IsFirstVisit: a.cfg.AlwaysReprime || !status.IsCurrent(),
		Status:       status,
		Storage: model.StorageUsage{
			Caches:  usage.Caches,
			Entries: usage.Entries,
			Bytes:   usage.Bytes,
		},
		Images: model.ImageUsage{
			Entries: a.images.Len(),
			Bytes:   a.images.TotalSize(),
			Budget:  int64(a.cfg.ImageCacheMax),
		},
	}, nil
}
