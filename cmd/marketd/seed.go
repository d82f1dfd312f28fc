package main

import (
	"fmt"
	"log"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"marketcore/internal/broadcast"
	"marketcore/internal/cache"
	"marketcore/internal/generator"
	"marketcore/internal/market"
)

var seedCount int

var seedCmd = &cobra.Command{
	Use:   "seed [SYMBOL...]",
	Short: "Backfill generated bars into the store",
	Long:  "Backfill generated bars ending now for the given symbols, or the configured universe when none are named. Existing bars are kept.",
	RunE:  runSeed,
}

func init() {
	seedCmd.Flags().IntVarP(&seedCount, "count", "n", 500, fmt.Sprintf("bars per symbol, at most %d", generator.MaxBackfill))
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logCloser := setupLogging(cfg)
	defer logCloser.Close()

	ctx, cancel := exitOnSignal()
	defer cancel()

	st, _, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeStore(st)

	svc := market.New(marketConfig(cfg), st, newGenerator(cfg), cache.New(cfg.Cache.Size), broadcast.New(1), nil)

	symbols := args
	if len(symbols) == 0 {
		symbols = cfg.Market.Symbols
	}

	var total atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Scheduler.Workers)
	for _, sym := range symbols {
		g.Go(func() error {
			n, err := svc.Seed(gctx, sym, seedCount)
			if err != nil {
				return err
			}
			total.Add(int64(n))
			log.Printf("[seed] %s: %d new bars", sym, n)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "seeded %s bars across %d symbols\n", humanize.Comma(total.Load()), len(symbols))
	return nil
}
