package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/seabed-tools/cbreplay/internal/catalog"
	"github.com/seabed-tools/cbreplay/internal/config"
	"github.com/seabed-tools/cbreplay/internal/output"
	"github.com/seabed-tools/cbreplay/internal/query"
	"github.com/seabed-tools/cbreplay/internal/runner"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Exit codes per outcome severity.
const (
	exitOK          = 0
	exitFailed      = 1
	exitConfigError = 2
)

var (
	runCatalogPath string
	runFilter      string
	runConcurrency int
	runTimeout     time.Duration
	runVerbose     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Replay catalog examples and validate results",
	Long: `Load a catalog, execute each example against the configured cluster
in setup-dependency order, and validate results against expectations.

Setup examples run before their dependents; an example whose setup did
not pass is marked errored without executing. Independent examples may
run concurrently (--concurrency).

Exit codes: 0 all passed, 1 any failed, 2 errored or configuration failure.

Example:
  cbreplay run --catalog catalogs/travel-sample.yaml
  cbreplay run --catalog catalogs/travel-sample.yaml --filter 'tx-*' --concurrency 8`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runCatalogPath, "catalog", "", "Path to the catalog YAML file (required)")
	runCmd.Flags().StringVar(&runFilter, "filter", "", "Glob pattern selecting example ids (setup closure is kept)")
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 1, "Number of examples to run in parallel")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 15*time.Minute, "Overall run timeout")
	runCmd.Flags().BoolVar(&runVerbose, "verbose", false, "Verbose output")
	_ = runCmd.MarkFlagRequired("catalog")
}

func runRun(_ *cobra.Command, _ []string) error {
	log := newLogger(runVerbose)

	cat, err := loadCatalog(log, runCatalogPath, runFilter)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitConfigError)
	}

	os.Exit(executeCatalog(log, cat, runConcurrency, runTimeout, runVerbose))

	return nil
}

// executeCatalog connects to the cluster, runs the catalog, prints the
// results, and returns the process exit code.
func executeCatalog(log *logrus.Logger, cat *catalog.Catalog, concurrency int, timeout time.Duration, verbose bool) int {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfigError
	}

	client := query.NewClient(log, cfg)
	if err := client.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfigError
	}
	defer func() {
		if err := client.Stop(); err != nil {
			log.WithError(err).Warn("stopping query client")
		}
	}()

	setupCancelHandler(cancel, log)

	start := time.Now()

	outcomes, runErr := runner.NewRunner(log, client, concurrency).Run(ctx, cat)

	formatter := output.NewFormatter(os.Stdout, verbose)
	formatter.PrintOutcomes(outcomes)

	summary := runner.Summarize(outcomes, time.Since(start))
	formatter.PrintSummary(summary)

	if runErr != nil {
		log.WithError(runErr).Error("run aborted")
	}

	return exitCode(summary, runErr)
}

// loadCatalog loads and optionally filters the catalog.
func loadCatalog(log *logrus.Logger, path, filter string) (*catalog.Catalog, error) {
	cat, err := catalog.NewLoader(log).Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}

	if filter != "" {
		cat, err = cat.Filter(filter)
		if err != nil {
			return nil, fmt.Errorf("filtering catalog: %w", err)
		}
	}

	return cat, nil
}

// exitCode derives the process exit code from the run summary.
func exitCode(summary runner.Summary, runErr error) int {
	switch {
	case runErr != nil || summary.Errored > 0:
		return exitConfigError
	case summary.Failed > 0:
		return exitFailed
	default:
		return exitOK
	}
}

// setupCancelHandler cancels outstanding work on Ctrl+C.
func setupCancelHandler(cancel context.CancelFunc, log *logrus.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Warn("received interrupt signal, canceling run")
		cancel()
	}()
}
