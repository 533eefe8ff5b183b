// Command forecast prints a prediction for the records in an export file.
//
//	forecast -file smartfin-backup-2026-10-18.json [-months 6] [-date 2026-10-18] [-full]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"smartfin/internal/archive"
	"smartfin/internal/cli"
	"smartfin/internal/config"
	"smartfin/internal/core"
	"smartfin/internal/forecast"
	"smartfin/internal/ledger"
	"smartfin/internal/llm"
	"smartfin/internal/log"
	"smartfin/internal/watch"
)

func main() {
	file := flag.String("file", "", "export file to read (required)")
	months := flag.Int("months", forecast.DefaultHistoryMonths, "months of history in the full report")
	date := flag.String("date", "", "reference date YYYY-MM-DD (default today)")
	full := flag.Bool("full", false, "print history, projection and breakdown along with the prediction")
	flag.Parse()

	cli.LoadEnvFile()
	cfg := config.Load()
	// stdout carries the JSON result
	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentForecast, os.Stderr)

	if *file == "" {
		fmt.Fprintln(os.Stderr, "Error: -file is required")
		flag.Usage()
		os.Exit(2)
	}
	ref := time.Now()
	if *date != "" {
		d, err := core.ParseDate(*date)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid -date %q: must be YYYY-MM-DD\n", *date)
			os.Exit(2)
		}
		ref = d.Time
	}

	snap, err := archive.ReadFile(*file)
	if err != nil {
		cli.Exit(logger, "Failed to read export file", err, "path", *file)
	}

	thresholds := watch.DefaultThresholds()
	if cfg.WatchThresholdsFile != "" {
		if thresholds, err = watch.LoadThresholds(cfg.WatchThresholdsFile); err != nil {
			cli.Exit(logger, "Failed to load watch thresholds", err, "path", cfg.WatchThresholdsFile)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.AITimeout+5*time.Second)
	defer cancel()

	completer, err := llm.New(ctx, cfg.LLM())
	if err != nil {
		cli.Exit(logger, "Failed to initialize AI gateway", err, log.FieldProvider, cfg.AIProvider)
	}
	svc := forecast.NewService(completer,
		forecast.WithThresholds(thresholds),
		forecast.WithTimeout(cfg.AITimeout),
		forecast.WithLogger(logger),
	)

	txs, profile := records(snap)
	var out any
	if *full {
		out = svc.Insights(ctx, txs, profile, ref, *months)
	} else {
		out = svc.Predict(ctx, txs, profile)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		cli.Exit(logger, "Failed to write result", err)
	}
}

// records returns the transactions in store order and the profile, or the
// default profile when the file has none.
func records(snap ledger.Snapshot) ([]core.Transaction, core.UserProfile) {
	profile := core.DefaultProfile()
	if snap.Profile != nil {
		profile = *snap.Profile
	}
	txs := append([]core.Transaction(nil), snap.Transactions...)
	ledger.SortTransactions(txs)
	return txs, profile
}
