package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/jpalmerr/fanfetch"
	"github.com/jpalmerr/fanfetch/config"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Dispatch every configured request once and print the report",
	Long: `Dispatch every configured descriptor and grid once, wait for all of
them to finish, and print one row per request in submission order.

A failed request never hides the others: the report always holds exactly
one outcome per configured request.

Exit codes:
  0 - Dispatch completed (and no failures, with --fail-on-error)
  1 - Config invalid, or at least one failure with --fail-on-error

Example:
  fanfetch fetch -c config.yaml
  fanfetch fetch -c config.yaml --capacity 4 -o json`,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	fetchCmd.Flags().StringP("output", "o", outputTable, "output format: table or json")
	fetchCmd.Flags().Int("capacity", 0, "override the configured concurrency bound (0 = unbounded)")
	fetchCmd.Flags().Bool("fail-on-error", false, "exit non-zero if any request failed")
	fetchCmd.Flags().Bool("no-progress", false, "disable the progress bar")
	_ = fetchCmd.MarkFlagRequired("config")
}

func runFetch(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	output, _ := cmd.Flags().GetString("output")
	failOnError, _ := cmd.Flags().GetBool("fail-on-error")
	noProgress, _ := cmd.Flags().GetBool("no-progress")

	if output != outputTable && output != outputJSON {
		return fmt.Errorf("unknown output format %q (want %s or %s)", output, outputTable, outputJSON)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	descriptors, err := config.BuildDescriptors(cfg)
	if err != nil {
		return fmt.Errorf("failed to build descriptors: %w", err)
	}

	// stdout carries the report, so keep logs to real problems
	opts := append(config.Options(cfg), fanfetch.WithLogger(newLogger(slog.LevelError)))
	if cmd.Flags().Changed("capacity") {
		capacity, _ := cmd.Flags().GetInt("capacity")
		opts = append(opts, fanfetch.WithCapacity(capacity))
	}

	var bar *progressbar.ProgressBar
	if output == outputTable && !noProgress {
		bar = progressbar.NewOptions(len(descriptors),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("Fetching"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
		opts = append(opts, fanfetch.WithOutcomeCallback(func(fanfetch.Outcome) {
			_ = bar.Add(1)
		}))
	}

	d, err := fanfetch.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	defer d.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report := d.Dispatch(ctx, descriptors)
	if bar != nil {
		_ = bar.Finish()
	}

	out := cmd.OutOrStdout()
	switch output {
	case outputJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
	default:
		renderReport(out, cfg.Title, report)
	}

	if failOnError && !report.OK() {
		return fmt.Errorf("%d of %d requests failed", len(report.Failures()), report.Len())
	}
	return nil
}

// renderReport prints the outcome table followed by a one-line summary.
func renderReport(w io.Writer, title string, report fanfetch.Report) {
	if title != "" {
		color.New(color.Bold).Fprintln(w, title)
	}

	table := tablewriter.NewWriter(w)
	table.Header("#", "Name", "Result", "Bytes", "Latency", "Error")
	for _, o := range report.Outcomes() {
		_ = table.Append(outcomeRow(o))
	}
	_ = table.Render()

	failed := len(report.Failures())
	summary := color.New(color.FgGreen)
	if failed > 0 {
		summary = color.New(color.FgRed)
	}
	summary.Fprintf(w, "%d requests, %d ok, %d failed in %s (run %s)\n",
		report.Len(), report.Len()-failed, failed,
		report.Duration().Round(time.Millisecond), report.RunID())
}

func outcomeRow(o fanfetch.Outcome) []string {
	return fanfetch.Fold(o,
		func(s fanfetch.Success) []string {
			return []string{
				strconv.Itoa(s.Index),
				s.Source.Name(),
				"ok",
				strconv.Itoa(len(s.Payload)),
				formatLatency(s.Latency),
				"",
			}
		},
		func(f fanfetch.Failure) []string {
			latency := "-"
			if f.Attempted {
				latency = formatLatency(f.Latency)
			}
			return []string{
				strconv.Itoa(f.Index),
				f.Source.Name(),
				f.Kind.String(),
				"-",
				latency,
				f.Err.Error(),
			}
		},
	)
}

func formatLatency(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
