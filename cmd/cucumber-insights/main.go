package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lirany1/cucumber-insights/pkg/analytics"
	"github.com/lirany1/cucumber-insights/pkg/builder"
	"github.com/lirany1/cucumber-insights/pkg/config"
	"github.com/lirany1/cucumber-insights/pkg/dashboard"
	"github.com/lirany1/cucumber-insights/pkg/export"
	"github.com/lirany1/cucumber-insights/pkg/locator"
	"github.com/lirany1/cucumber-insights/pkg/logger"
	"github.com/lirany1/cucumber-insights/pkg/mailer"
	"github.com/lirany1/cucumber-insights/pkg/server"
	"github.com/lirany1/cucumber-insights/pkg/storage"
)

var (
	version = "1.0.0"
	commit  = "dev"
	date    = "unknown"
)

const (
	exitUsage   = 1
	exitNoInput = 2

	mailTimeout = time.Minute
)

// exitError carries the process exit code for an error
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	if errors.Is(err, locator.ErrNoInput) {
		return exitNoInput
	}
	return exitUsage
}

// app holds the configuration resolved for one invocation
type app struct {
	cfg        *config.Config
	configPath string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logger.Error(err)
		os.Exit(exitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	var rootCmd = &cobra.Command{
		Use:   "cucumber-insights",
		Short: "Summaries, dashboards and digests from Cucumber HTML reports",
		Long: `cucumber-insights parses Cucumber HTML reports into a JSON summary and a
markdown digest, renders a static QA dashboard, mails the digest and keeps a
history of runs.`,
		Version:           fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: a.loadConfig,
	}

	var parseCmd = &cobra.Command{
		Use:   "parse",
		Short: "Parse HTML reports into report_summary.json and summary.md",
		RunE:  a.runParse,
	}

	var dashboardCmd = &cobra.Command{
		Use:   "dashboard <input.json> <output.html>",
		Short: "Render the QA dashboard from a summary JSON",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 2 {
				return &exitError{code: exitUsage, err: fmt.Errorf("usage: %s", cmd.UseLine())}
			}
			return nil
		},
		RunE: a.runDashboard,
	}

	var emailCmd = &cobra.Command{
		Use:   "email",
		Short: "Send the markdown summary over SMTP",
		RunE:  a.runEmail,
	}

	var historyCmd = &cobra.Command{
		Use:   "history",
		Short: "List recorded runs, the quality trend and flaky tests",
		RunE:  a.runHistory,
	}

	var serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard and history API",
		RunE:  a.runServe,
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to configuration file (yaml, json or toml)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	parseCmd.Flags().StringP("input", "i", "", "HTML file or directory of html reports (required)")
	parseCmd.Flags().StringP("output", "o", "", "Output json file (default: report_summary.json)")
	parseCmd.Flags().String("summary", "", "Output markdown file (default: summary.md)")
	parseCmd.Flags().String("history-dir", "", "Directory of the run history database")
	_ = parseCmd.MarkFlagRequired("input")

	emailCmd.Flags().String("summary", "", "Markdown summary to send (default: summary.md)")

	historyCmd.Flags().String("history-dir", "", "Directory of the run history database")
	historyCmd.Flags().Int("limit", 20, "Number of runs to list")
	historyCmd.Flags().Int("days", 30, "Window for the trend and flaky tests")

	serveCmd.Flags().String("summary", "", "Summary JSON to render (default: report_summary.json)")
	serveCmd.Flags().StringP("host", "H", "", "Host to bind server to")
	serveCmd.Flags().IntP("port", "p", 0, "Port to run server on")
	serveCmd.Flags().String("history-dir", "", "Directory of the run history database")

	rootCmd.AddCommand(parseCmd, dashboardCmd, emailCmd, historyCmd, serveCmd)
	return rootCmd
}

func (a *app) loadConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger.SetLevel(cfg.LogLevel)
	a.cfg = cfg
	return nil
}

func (a *app) runParse(cmd *cobra.Command, args []string) error {
	input, _ := cmd.Flags().GetString("input")
	overrideString(cmd, "output", &a.cfg.ReportOutput)
	overrideString(cmd, "summary", &a.cfg.SummaryPath)
	overrideString(cmd, "history-dir", &a.cfg.HistoryDir)

	db, err := a.openHistory()
	if err != nil {
		return err
	}
	var history builder.RunRecorder
	if db != nil {
		defer db.Close()
		history = db
	}

	agg, err := builder.NewReportBuilder(a.cfg, history).Build(input)
	if err != nil {
		if errors.Is(err, locator.ErrNoInput) {
			fmt.Fprintln(cmd.OutOrStdout(), "No input files found.")
			return &exitError{code: exitNoInput, err: err}
		}
		return err
	}

	if err := export.NewExporter(a.cfg).Export(agg); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Wrote:", a.cfg.ReportOutput, "and", a.cfg.SummaryPath)
	fmt.Fprintln(out, "Totals:", agg.Counts)

	if db != nil {
		if _, err := db.CleanupOldData(a.cfg.RetentionDays); err != nil {
			logger.Warnf("Failed to prune run history: %v", err)
		}
	}
	return nil
}

func (a *app) runDashboard(cmd *cobra.Command, args []string) error {
	in, out := args[0], args[1]
	if err := dashboard.GenerateFile(in, out, dashboard.OptionsFromConfig(a.cfg)); err != nil {
		if errors.Is(err, locator.ErrNoInput) {
			return &exitError{code: exitNoInput, err: fmt.Errorf("input file not found: %s", in)}
		}
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Wrote dashboard:", out)
	return nil
}

func (a *app) runEmail(cmd *cobra.Command, args []string) error {
	overrideString(cmd, "summary", &a.cfg.SummaryPath)

	mc := mailer.FromSettings(a.cfg.SMTP)
	if err := mc.Validate(); err != nil {
		return err
	}

	body, err := os.ReadFile(a.cfg.SummaryPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &exitError{code: exitNoInput, err: fmt.Errorf("summary not found: %s", a.cfg.SummaryPath)}
		}
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), mailTimeout)
	defer cancel()
	if err := mailer.Send(ctx, mc, string(body)); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Email sent to", strings.Join(mc.To, ", "))
	return nil
}

func (a *app) runHistory(cmd *cobra.Command, args []string) error {
	overrideString(cmd, "history-dir", &a.cfg.HistoryDir)
	limit, _ := cmd.Flags().GetInt("limit")
	days, _ := cmd.Flags().GetInt("days")

	if a.cfg.HistoryDir == "" {
		return fmt.Errorf("history directory not set; use --history-dir or CUCUMBER_INSIGHTS_HISTORY_DIR")
	}
	db, err := a.openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.RecentRuns(limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run history for %s\n\n", a.cfg.ProjectName)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tTIME\tFILES\tTOTAL\tPASSED\tFAILED\tSKIPPED\tPASS RATE")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%.1f%%\n",
			r.ID, r.Timestamp.Local().Format("2006-01-02 15:04:05"),
			r.FilesParsed, r.Total, r.Passed, r.Failed, r.Skipped, r.PassRate)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	trends, err := analytics.NewEngine(db).GenerateTrends(days)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nQuality trend (last %d days): %s\n", days, trends.QualityTrend)
	if len(trends.FlakyTests) == 0 {
		fmt.Fprintln(out, "No flaky tests detected.")
		return nil
	}
	fmt.Fprintln(out, "Flaky tests:")
	for _, f := range trends.FlakyTests {
		fmt.Fprintf(out, "  - %s: failed in %d of %d runs\n", f.Name, f.FailedRuns, f.TotalRuns)
	}
	return nil
}

func (a *app) runServe(cmd *cobra.Command, args []string) error {
	summary := a.cfg.ReportOutput
	overrideString(cmd, "summary", &summary)
	overrideString(cmd, "host", &a.cfg.ServerHost)
	overrideString(cmd, "history-dir", &a.cfg.HistoryDir)
	if cmd.Flags().Changed("port") {
		a.cfg.ServerPort, _ = cmd.Flags().GetInt("port")
	}

	db, err := a.openHistory()
	if err != nil {
		return err
	}
	var history server.History
	if db != nil {
		defer db.Close()
		history = db
	}

	logger.Infof("Serving dashboard for %s", summary)
	srv := server.NewServer(&server.Config{
		Host:        a.cfg.ServerHost,
		Port:        a.cfg.ServerPort,
		SummaryPath: summary,
		Dashboard:   dashboard.OptionsFromConfig(a.cfg),
	}, history)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Start(ctx)
}

// openHistory opens the run store, or returns nil when no directory is set
func (a *app) openHistory() (*storage.Database, error) {
	if a.cfg.HistoryDir == "" {
		return nil, nil
	}
	db, err := storage.NewDatabase(a.cfg.HistoryDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open run history: %w", err)
	}
	logger.Debugf("Run history at %s", db.Path())
	return db, nil
}

// overrideString copies a flag into dst when it was set on the command line
func overrideString(cmd *cobra.Command, name string, dst *string) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetString(name)
	}
}
