// Package main reconstructs a wallet's DLMM position history from chain data
// and reports per-position and aggregate profit.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"dlmm-profit-lab/internal/analyzer"
	"dlmm-profit-lab/internal/assembler"
	"dlmm-profit-lab/internal/config"
	"dlmm-profit-lab/internal/decoder"
	"dlmm-profit-lab/internal/domain"
	"dlmm-profit-lab/internal/enrichment"
	"dlmm-profit-lab/internal/idhash"
	"dlmm-profit-lab/internal/meteora"
	"dlmm-profit-lab/internal/observability"
	"dlmm-profit-lab/internal/registry"
	"dlmm-profit-lab/internal/reporting"
	"dlmm-profit-lab/internal/solana"
	"dlmm-profit-lab/internal/storage/migrations"
	"dlmm-profit-lab/internal/storage/postgres"
	"dlmm-profit-lab/internal/stream"
	"dlmm-profit-lab/internal/valuation"
)

func main() {
	walletFlag := flag.String("wallet", "", "Wallet address to analyze (required)")
	configPath := flag.String("config", "", "Path to YAML config file")
	rpcEndpoint := flag.String("rpc-endpoint", "", "Solana RPC endpoint (overrides config)")
	minDate := flag.String("min-date", "", "Skip transactions older than this date, YYYY-MM-DD (overrides config)")
	databaseURL := flag.String("database-url", "", "Postgres DSN for run persistence (overrides config)")
	metricsAddr := flag.String("metrics-addr", "", "Expose Prometheus metrics on this address (overrides config)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV and markdown exports (overrides config)")
	reportLatest := flag.Bool("report-latest", false, "Skip analysis and re-export the wallet's newest stored run")
	verbose := flag.Bool("verbose", false, "Verbose output")
	flag.Parse()

	if *walletFlag == "" {
		fmt.Fprintln(os.Stderr, "Usage: analyze -wallet <address> [flags]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	applyFlagOverrides(cfg, *rpcEndpoint, *minDate, *databaseURL, *metricsAddr, *outputDir)

	wallet, err := solanago.PublicKeyFromBase58(*walletFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid wallet address %q: %v\n", *walletFlag, err)
		os.Exit(1)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *reportLatest {
		if err := reportFromStore(ctx, cfg, wallet.String()); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating report: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, logger)
	}

	a, err := buildAnalyzer(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building pipeline: %v\n", err)
		os.Exit(1)
	}

	// First interrupt stops the stream at the next batch boundary and reports
	// on what was already fetched; the second aborts.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nInterrupt received, reporting on work fetched so far...")
		a.Cancel()
		<-sigCh
		os.Exit(1)
	}()

	progressDone := make(chan struct{})
	go printProgress(a.Events(), progressDone)

	res, err := a.Analyze(ctx, wallet)
	<-progressDone
	if err != nil {
		fmt.Fprintf(os.Stderr, "Analysis error: %v\n", err)
		os.Exit(1)
	}

	report := reporting.NewReport(res.Wallet, res.SignatureCount, res.Transactions, res.Positions, res.Profit)
	if err := writeExports(cfg.Output.Dir, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing exports: %v\n", err)
		os.Exit(1)
	}

	if cfg.DatabaseURL != "" {
		if err := persistRun(ctx, cfg.DatabaseURL, res); err != nil {
			fmt.Fprintf(os.Stderr, "Error persisting run: %v\n", err)
			os.Exit(1)
		}
	}

	printSummary(res)
}

// applyFlagOverrides layers non-empty command-line flags over the config.
func applyFlagOverrides(cfg *config.Config, rpcEndpoint, minDate, databaseURL, metricsAddr, outputDir string) {
	if rpcEndpoint != "" {
		cfg.RPCEndpoint = rpcEndpoint
	}
	if minDate != "" {
		cfg.MinDate = minDate
	}
	if databaseURL != "" {
		cfg.DatabaseURL = databaseURL
	}
	if metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}
	if outputDir != "" {
		cfg.Output.Dir = outputDir
	}
}

// buildAnalyzer wires the pipeline stages from the config.
func buildAnalyzer(cfg *config.Config, logger *logrus.Logger) (*analyzer.Analyzer, error) {
	chain := solana.NewClient(cfg.RPCEndpoint,
		solana.WithMaxRetries(cfg.Limits.MaxRetries),
		solana.WithSignatureLimit(cfg.Limits.SignatureRPS, time.Second),
		solana.WithTransactionLimit(cfg.Limits.TransactionRPS, time.Second),
		solana.WithAccountLimit(cfg.Limits.AccountRPS, time.Second),
		solana.WithStateLimit(cfg.Limits.StateRPS, time.Second),
	)

	apiOpts := []meteora.Option{meteora.WithRateLimit(cfg.Meteora.RateLimit, 2)}
	if cfg.Meteora.BaseURL != "" {
		apiOpts = append(apiOpts, meteora.WithBaseURL(cfg.Meteora.BaseURL))
	}
	if cfg.Meteora.TokenListURL != "" {
		apiOpts = append(apiOpts, meteora.WithTokenListURL(cfg.Meteora.TokenListURL))
	}
	if cfg.Meteora.PriceURL != "" {
		apiOpts = append(apiOpts, meteora.WithPriceURL(cfg.Meteora.PriceURL))
	}
	api := meteora.NewClient(logger, apiOpts...)

	reg := registry.New(api, chain, logger)

	var streamOpts []stream.Option
	if minDate, err := cfg.MinDateTime(); err != nil {
		return nil, err
	} else if !minDate.IsZero() {
		streamOpts = append(streamOpts, stream.WithMinDate(minDate))
	}
	src := stream.New(chain, logger, streamOpts...)

	return analyzer.New(
		src,
		decoder.New(reg, reg, logger),
		assembler.New(reg, reg, logger),
		valuation.New(chain, logger),
		enrichment.New(api, logger),
		logger,
	), nil
}

// serveMetrics exposes /metrics for Prometheus scraping.
func serveMetrics(addr string, logger *logrus.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	logger.WithField("addr", addr).Info("serving metrics")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.WithError(err).Error("metrics server stopped")
	}
}

// printProgress renders the analyzer's progress feed.
func printProgress(events <-chan analyzer.Event, done chan<- struct{}) {
	defer close(done)
	for ev := range events {
		switch ev.Kind {
		case analyzer.EventSignatures:
			fmt.Printf("Signatures found: %d\n", ev.SignatureCount)
		case analyzer.EventBatch:
			fmt.Printf("Processed %d transactions, %d positions so far\n", ev.Transactions, ev.Positions)
		case analyzer.EventPhase:
			fmt.Printf("=== %s ===\n", ev.Phase)
		case analyzer.EventDone:
			fmt.Printf("Done: %d signatures, %d transactions, %d positions\n",
				ev.SignatureCount, ev.Transactions, ev.Positions)
		}
	}
}

// writeExports writes the CSV and markdown reports to dir.
func writeExports(dir string, report *reporting.Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	exports := map[string]string{
		"transactions.csv": reporting.RenderTransactionsCSV(report.Positions),
		"positions.csv":    reporting.RenderPositionsCSV(report.Positions),
		"report.md":        reporting.RenderMarkdown(report),
	}
	for name, content := range exports {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		fmt.Printf("Wrote %s\n", path)
	}
	return nil
}

// reportFromStore re-exports the wallet's newest persisted run without
// touching the chain.
func reportFromStore(ctx context.Context, cfg *config.Config, wallet string) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("-report-latest requires a database URL")
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := migrations.RunPostgres(ctx, pool); err != nil {
		return err
	}

	gen := reporting.NewGenerator(postgres.NewAnalysisRunStore(pool), postgres.NewPositionStore(pool))
	report, err := gen.GenerateLatest(ctx, wallet)
	if err != nil {
		return err
	}
	return writeExports(cfg.Output.Dir, report)
}

// persistRun saves the finished analysis to Postgres.
func persistRun(ctx context.Context, dsn string, res *analyzer.Result) error {
	pool, err := postgres.NewPool(ctx, dsn)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := migrations.RunPostgres(ctx, pool); err != nil {
		return err
	}

	runID := idhash.ComputeRunID(res.Wallet, res.StartedAt, res.SignatureCount)
	run := &domain.AnalysisRun{
		RunID:            runID,
		Wallet:           res.Wallet,
		SignatureCount:   res.SignatureCount,
		TransactionCount: res.Transactions,
		PositionCount:    len(res.Positions),
		StartedAt:        res.StartedAt,
		FinishedAt:       res.FinishedAt,
	}

	if err := postgres.NewAnalysisRunStore(pool).Insert(ctx, run); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	if err := postgres.NewPositionStore(pool).InsertBulk(ctx, runID, res.Positions); err != nil {
		return fmt.Errorf("insert positions: %w", err)
	}

	fmt.Printf("Saved run %s\n", runID)
	return nil
}

// printSummary prints the wallet rollup to stdout.
func printSummary(res *analyzer.Result) {
	if res.Profit == nil {
		fmt.Println("No positions found.")
		return
	}
	s := res.Profit.Summary
	fmt.Println("=== Summary ===")
	fmt.Printf("Positions: %d (%d without USD coverage)\n", s.PositionCount, s.ErrorPositionCount)
	fmt.Printf("Deposits:  %.4f native | %.2f USD\n", s.Deposits, s.USDDeposits)
	fmt.Printf("Fees:      %.4f claimed, %.4f unclaimed\n", s.ClaimedFees, s.UnclaimedFees)
	fmt.Printf("Profit:    %.4f native (%.2f%%) | %.2f USD (%.2f%%)\n",
		s.Profit, s.ProfitPercent*100, s.USDProfit, s.USDProfitPercent*100)
	fmt.Printf("Duration:  %.1fh total, average balance %.4f\n",
		s.TotalDuration.Hours(), s.AverageBalance)
}
