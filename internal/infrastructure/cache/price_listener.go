package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"fuelstation/internal/core/id"
	"fuelstation/internal/domain/registry"
	"fuelstation/pkg/logger"
)

// PriceChangedChannel is the NOTIFY channel raised by the fuel_prices trigger.
// Payload format: "<station_id>:<fuel_type>".
const PriceChangedChannel = "fuel_prices_changed"

// priceInvalidator is the part of PriceCache the listener drives.
type priceInvalidator interface {
	Invalidate(ctx context.Context, stationID id.ID, fuel registry.FuelType) error
	InvalidateAll(ctx context.Context) error
}

// PriceListener evicts cached prices on PostgreSQL NOTIFY, so a price edit
// is visible before the cache TTL runs out.
type PriceListener struct {
	pool  *pgxpool.Pool
	cache priceInvalidator

	lifecycleMu sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	started     bool
}

// NewPriceListener creates a listener that invalidates cache.
func NewPriceListener(pool *pgxpool.Pool, cache *PriceCache) *PriceListener {
	return &PriceListener{pool: pool, cache: cache}
}

// Start begins listening in the background.
func (l *PriceListener) Start(ctx context.Context) {
	l.lifecycleMu.Lock()
	defer l.lifecycleMu.Unlock()
	if l.started {
		return
	}
	l.ctx, l.cancel = context.WithCancel(ctx)
	l.started = true

	l.wg.Add(1)
	go l.listenLoop()
	logger.Info(l.ctx, "price listener started")
}

// Stop cancels the listener and waits for it to exit.
func (l *PriceListener) Stop() {
	l.lifecycleMu.Lock()
	if !l.started {
		l.lifecycleMu.Unlock()
		return
	}
	cancel := l.cancel
	l.started = false
	l.cancel = nil
	l.lifecycleMu.Unlock()

	cancel()
	l.wg.Wait()
	logger.Info(context.Background(), "price listener stopped")
}

func (l *PriceListener) listenLoop() {
	defer l.wg.Done()

	for l.ctx.Err() == nil {
		conn, err := l.pool.Acquire(l.ctx)
		if err != nil {
			logger.Error(l.ctx, "failed to acquire connection for LISTEN", "error", err)
			sleepCtx(l.ctx, time.Second)
			continue
		}

		if _, err := conn.Exec(l.ctx, "LISTEN "+PriceChangedChannel); err != nil {
			logger.Error(l.ctx, "failed to LISTEN", "error", err)
			conn.Release()
			sleepCtx(l.ctx, time.Second)
			continue
		}

		// Notifications missed while reconnecting are unknown, so start clean.
		if err := l.cache.InvalidateAll(l.ctx); err != nil {
			logger.Warn(l.ctx, "price cache reset failed", "error", err)
		}

		l.waitForNotifications(conn)
		conn.Release()
	}
}

func (l *PriceListener) waitForNotifications(conn *pgxpool.Conn) {
	for {
		ctx, cancel := context.WithTimeout(l.ctx, 30*time.Second)
		n, err := conn.Conn().WaitForNotification(ctx)
		cancel()

		if err != nil {
			if l.ctx.Err() != nil {
				return
			}
			if ctx.Err() != nil {
				continue
			}
			logger.Warn(l.ctx, "LISTEN connection lost", "error", err)
			return
		}
		l.handle(l.ctx, n.Payload)
	}
}

func (l *PriceListener) handle(ctx context.Context, payload string) {
	stationPart, fuel, ok := strings.Cut(strings.TrimSpace(payload), ":")
	stationID, err := id.Parse(stationPart)
	if !ok || err != nil || fuel == "" {
		if err := l.cache.InvalidateAll(ctx); err != nil {
			logger.Warn(ctx, "price cache reset failed", "payload", payload, "error", err)
		}
		return
	}
	if err := l.cache.Invalidate(ctx, stationID, registry.FuelType(fuel)); err != nil {
		logger.Warn(ctx, "price cache invalidation failed", "payload", payload, "error", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
