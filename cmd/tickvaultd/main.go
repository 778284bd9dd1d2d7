// tickvaultd collects market data into monthly parquet files and mirrors
// them to the remote object store.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quantfold/tickvault/internal/collector"
	"github.com/quantfold/tickvault/internal/config"
	"github.com/quantfold/tickvault/internal/ledger"
	"github.com/quantfold/tickvault/internal/ledger/postgres"
	"github.com/quantfold/tickvault/internal/logging"
	"github.com/quantfold/tickvault/internal/market"
	"github.com/quantfold/tickvault/internal/storage/monthly"
	"github.com/quantfold/tickvault/internal/storage/paths"
	"github.com/quantfold/tickvault/internal/storage/parquet"
	"github.com/quantfold/tickvault/internal/upload"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// CLI flags
	cfgPath := flag.String("config", "config.yaml", "config file path")
	once := flag.Bool("once", false, "run one collect+upload cycle and exit")
	uploadOnly := flag.Bool("upload-only", false, "skip collection, only run the upload batch")
	interval := flag.Duration("interval", 24*time.Hour, "delay between cycles")
	startDate := flag.String("start", "", "override collection start date (YYYY-MM-DD)")
	endDate := flag.String("end", "", "override collection end date (YYYY-MM-DD)")
	jsonLogs := flag.Bool("json-logs", false, "log as JSON")
	debug := flag.Bool("debug", false, "debug logging")
	memLedger := flag.Bool("mem-ledger", false, "use an in-memory ledger (no database)")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logging.Init(level, *jsonLogs)
	log := logging.Component("tickvaultd")
	log.Info("starting", "version", Version)

	// Load config
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("no config file found, using defaults", "path", *cfgPath)
			cfg = config.DefaultConfig()
		} else {
			log.Error("load config", "error", err)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Progress ledger
	var store ledger.Ledger
	if *memLedger {
		mem := ledger.NewMemory()
		for _, a := range cfg.Assets {
			mem.SetActive(a.Ticker, a.Exchange, true)
		}
		store = mem
	} else {
		pg, err := postgres.Open(ctx, cfg.Ledger)
		if err != nil {
			log.Error("open ledger", "error", err)
			os.Exit(1)
		}
		defer pg.Close()

		if err := pg.SyncAssets(ctx, cfg.Assets); err != nil {
			log.Error("sync assets", "error", err)
			os.Exit(1)
		}
		store = pg
	}

	// Storage
	resolver := paths.NewResolver(cfg.Storage.DataDir, cfg.Remote.Prefix)
	popts := parquet.Options{
		Compression:      parquet.ParseCompressionType(cfg.Storage.Compression.Algorithm),
		CompressionLevel: cfg.Storage.Compression.Level,
	}
	writer := monthly.NewWriter(resolver, popts)

	// Upload pipeline
	s3c, err := upload.NewS3Client(ctx, cfg.Remote)
	if err != nil {
		log.Error("create upload client", "error", err)
		os.Exit(1)
	}
	driver := upload.NewDriver(store, s3c, resolver, upload.DriverOptions{
		MaxAttempts:    cfg.Upload.MaxAttempts,
		BaseDelay:      cfg.Upload.BaseDelay.Duration(),
		Workers:        cfg.Upload.Workers,
		PerFileTimeout: cfg.Upload.PerFileTimeout.Duration(),
		MinMonthAge:    cfg.Upload.MinMonthAge,
	})

	// Collector
	client := collector.NewClient(cfg.Collector.BaseURL, cfg.Collector.Token,
		collector.WithResampleFreq(cfg.Collector.ResampleFreq),
		collector.WithRetries(cfg.Collector.MaxRetries, cfg.Collector.RetryBackoff.Duration()),
		collector.WithTimeout(cfg.Collector.Timeout.Duration()),
		collector.WithLogger(logging.Component("collector")),
	)

	for {
		runCycle(ctx, log, cfg, client, writer, resolver, store, driver, *uploadOnly, *startDate, *endDate)

		if *once {
			return
		}

		log.Info("cycle complete, sleeping", "interval", *interval)
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return
		case <-time.After(*interval):
		}
	}
}

// runCycle collects every configured asset and runs one upload batch.
func runCycle(
	ctx context.Context,
	log *slog.Logger,
	cfg *config.Config,
	client *collector.Client,
	writer *monthly.Writer,
	resolver *paths.Resolver,
	store ledger.Ledger,
	driver *upload.Driver,
	uploadOnly bool,
	startDate, endDate string,
) {
	if !uploadOnly {
		for _, asset := range cfg.Assets {
			if ctx.Err() != nil {
				return
			}
			if err := collectAsset(ctx, client, writer, resolver, store, asset, startDate, endDate); err != nil {
				log.Error("collection failed",
					"ticker", asset.Ticker,
					"exchange", asset.Exchange,
					"error", err,
				)
				// One asset's failure must not starve the others.
				continue
			}
		}
	}

	report, err := driver.RunBatch(ctx)
	if err != nil {
		log.Error("batch upload aborted", "error", err)
		return
	}

	for _, r := range report.Results {
		if !r.Success {
			log.Warn("file not mirrored", "key", r.Key.String(), "error", r.Err)
		}
	}
}

// collectAsset fetches one asset's window, persists it across monthly files,
// and records progress in the ledger.
func collectAsset(
	ctx context.Context,
	client *collector.Client,
	writer *monthly.Writer,
	resolver *paths.Resolver,
	store ledger.Ledger,
	asset config.AssetConfig,
	startDate, endDate string,
) error {
	start := startDate
	if start == "" {
		start = asset.StartDate
	}
	if start == "" {
		start = lastCollectedDate(ctx, store, asset)
	}

	records, err := client.FetchRange(ctx, asset.Ticker, asset.Exchange, start, endDate)
	if err != nil {
		return err
	}

	results, err := writer.WriteBatch(ctx, records)
	if err != nil {
		return err
	}

	for _, res := range results {
		remoteKey, err := resolver.RemoteKey(res.Key)
		if err != nil {
			return err
		}
		if err := store.RecordWrite(ctx, res.Key, res, remoteKey); err != nil {
			return err
		}
	}

	return nil
}

// lastCollectedDate finds the newest collected date for an asset by probing
// recent months, falling back to the current month's start.
func lastCollectedDate(ctx context.Context, store ledger.Ledger, asset config.AssetConfig) string {
	now := time.Now().UTC()
	for i := 0; i < 12; i++ {
		m := now.AddDate(0, -i, 0)
		key := market.MonthKey{
			Ticker:   asset.Ticker,
			Exchange: asset.Exchange,
			Year:     m.Year(),
			Month:    m.Month(),
		}
		entry, err := store.Entry(ctx, key)
		if err != nil || entry.LastCollectedMs == 0 {
			continue
		}
		return time.UnixMilli(entry.LastCollectedMs).UTC().Format("2006-01-02")
	}
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
}
