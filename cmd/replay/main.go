// Package main is the background worker: it replays unreconciled days, relays
// the event outbox and purges expired idempotency keys.
//
// Usage: replay -from 2026-03-01 -to 2026-03-10 [-station <uuid>] [-include-faulty]
//        replay -watch [-days 7]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"fuelstation/internal/app"
	appctx "fuelstation/internal/core/context"
	"fuelstation/internal/core/id"
	"fuelstation/internal/core/types"
	"fuelstation/internal/domain/reconciliation"
	"fuelstation/internal/infrastructure/config"
	"fuelstation/internal/infrastructure/storage/postgres"
	"fuelstation/pkg/logger"
)

type options struct {
	from, to      string
	station       string
	includeFaulty bool
	watch         bool
	days          int
	replayEvery   time.Duration
	pollEvery     time.Duration
}

func main() {
	var opts options
	flag.StringVar(&opts.from, "from", "", "first business date (YYYY-MM-DD)")
	flag.StringVar(&opts.to, "to", "", "last business date (YYYY-MM-DD), defaults to today")
	flag.StringVar(&opts.station, "station", "", "restrict to one station id")
	flag.BoolVar(&opts.includeFaulty, "include-faulty", false, "retry days with a recorded fault")
	flag.BoolVar(&opts.watch, "watch", false, "keep running: replay, relay the outbox and clean up periodically")
	flag.IntVar(&opts.days, "days", 7, "lookback window in watch mode")
	flag.DurationVar(&opts.replayEvery, "replay-interval", 15*time.Minute, "replay period in watch mode")
	flag.DurationVar(&opts.pollEvery, "poll-interval", 2*time.Second, "outbox poll period in watch mode")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Service:     "replay",
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development || cfg.App.IsDevelopment(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	replayOpts, err := opts.replay(time.Now())
	if err != nil {
		log.Fatalw("invalid arguments", "error", err)
	}

	ctx, cancel := context.WithCancel(logger.WithLogger(context.Background(), log.WithComponent("replay")))
	defer cancel()
	// Replay runs as the system administrator.
	ctx = appctx.WithUser(ctx, &appctx.UserContext{UserID: "system-replay", Role: appctx.RoleAdmin})

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to initialize application", "error", err)
	}
	defer application.Close()

	if !opts.watch {
		report, err := application.Services.Engine.ReplayGaps(ctx, replayOpts)
		if err != nil {
			log.Fatalw("replay failed", "error", err)
		}
		log.Infow("replay completed",
			"reconciled", report.Reconciled,
			"failed", report.Failed,
			"skipped", report.Skipped,
		)
		return
	}

	w := &worker{
		app:   application,
		relay: postgres.NewOutboxRelay(application.TxManager, 100, application.OutboxHandler()),
		opts:  opts,
		base:  replayOpts,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.run(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// replay converts the flags into engine options. Without -from the window is the
// last -days days ending at -to.
func (o options) replay(now time.Time) (reconciliation.ReplayOptions, error) {
	to := types.DateOnly(now)
	if o.to != "" {
		d, err := types.ParseDate(o.to)
		if err != nil {
			return reconciliation.ReplayOptions{}, err
		}
		to = d
	}
	from := to.AddDate(0, 0, -o.days)
	if o.from != "" {
		d, err := types.ParseDate(o.from)
		if err != nil {
			return reconciliation.ReplayOptions{}, err
		}
		from = d
	}
	if from.After(to) {
		return reconciliation.ReplayOptions{}, fmt.Errorf("-from %s is after -to %s", types.FormatDate(from), types.FormatDate(to))
	}

	out := reconciliation.ReplayOptions{From: from, To: to, IncludeFaulty: o.includeFaulty}
	if o.station != "" {
		stationID, err := id.ParseField("station", o.station)
		if err != nil {
			return reconciliation.ReplayOptions{}, err
		}
		out.StationID = &stationID
	}
	return out, nil
}

type worker struct {
	app   *app.App
	relay *postgres.OutboxRelay
	opts  options
	base  reconciliation.ReplayOptions
}

func (w *worker) run(ctx context.Context) {
	pollTicker := time.NewTicker(w.opts.pollEvery)
	defer pollTicker.Stop()

	replayTicker := time.NewTicker(w.opts.replayEvery)
	defer replayTicker.Stop()

	cleanupTicker := time.NewTicker(1 * time.Hour)
	defer cleanupTicker.Stop()

	w.replay(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			w.processOutbox(ctx)
		case <-replayTicker.C:
			w.replay(ctx)
		case <-cleanupTicker.C:
			w.cleanup(ctx)
		}
	}
}

// replay slides the window so it always ends today.
func (w *worker) replay(ctx context.Context) {
	opts := w.base
	opts.To = types.DateOnly(time.Now())
	opts.From = opts.To.AddDate(0, 0, -w.opts.days)

	if w.app.Pool.Stats().Saturated() {
		logger.Warn(ctx, "database pool saturated, replay pass skipped")
		return
	}

	report, err := w.app.Services.Engine.ReplayGaps(ctx, opts)
	if err != nil {
		logger.Error(ctx, "replay failed", "error", err)
		return
	}
	if report != (reconciliation.ReplayReport{}) {
		logger.Info(ctx, "replay pass finished",
			"reconciled", report.Reconciled,
			"failed", report.Failed,
			"skipped", report.Skipped,
		)
	}
}

func (w *worker) processOutbox(ctx context.Context) {
	n, err := w.relay.ProcessBatch(ctx)
	if err != nil {
		logger.Error(ctx, "outbox relay failed", "error", err)
		return
	}
	if n > 0 {
		logger.Debug(ctx, "processed outbox batch", "count", n)
	}
}

func (w *worker) cleanup(ctx context.Context) {
	if n, err := w.app.Idempotency.CleanupExpired(ctx); err != nil {
		logger.Warn(ctx, "idempotency cleanup failed", "error", err)
	} else if n > 0 {
		logger.Info(ctx, "cleaned up idempotency keys", "count", n)
	}

	if n, err := w.relay.Purge(ctx, 7*24*time.Hour); err != nil {
		logger.Warn(ctx, "outbox purge failed", "error", err)
	} else if n > 0 {
		logger.Info(ctx, "purged published outbox messages", "count", n)
	}

	w.app.Pool.LogStats(ctx)
}
