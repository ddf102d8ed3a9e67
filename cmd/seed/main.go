// Package main provides a CLI tool for seeding a demo station and printing API tokens.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	appctx "fuelstation/internal/core/context"
	"fuelstation/internal/core/id"
	"fuelstation/internal/domain/auth"
	"fuelstation/internal/domain/registry"
	"fuelstation/internal/infrastructure/config"
	"fuelstation/internal/infrastructure/storage/postgres"
	"fuelstation/pkg/logger"
)

type tankSeed struct {
	number   string
	meter    string
	fuel     registry.FuelType
	capacity int64
	opening  int64
	cost     int64 // UGX per liter of the opening layer
	price    int64 // UGX per liter selling price
}

var demoTanks = []tankSeed{
	{"T1", "M1", registry.FuelDiesel, 20000, 8000, 3800, 5000},
	{"T2", "M2", registry.FuelPetrol, 15000, 6000, 4100, 5200},
	{"T3", "M3", registry.FuelKerosene, 5000, 1500, 3300, 4300},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Service:     "seed",
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := logger.WithLogger(context.Background(), log)

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.Database.URL))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	txm := postgres.NewTxManager(pool, cfg.Database.StatementTimeout)

	log.Info("connected to database")

	code := getEnv("SEED_STATION_CODE", "KLA-01")
	var stationID id.ID
	err = txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		stationID, err = seedStation(ctx, txm, code, getEnv("SEED_STATION_NAME", "Kampala Road"))
		if err != nil {
			return err
		}
		for _, t := range demoTanks {
			if err := seedTank(ctx, txm, stationID, t); err != nil {
				return fmt.Errorf("seed tank %s: %w", t.number, err)
			}
		}
		return nil
	})
	if err != nil {
		log.Fatalw("failed to seed demo station", "error", err)
	}
	log.Infow("demo station ready", "code", code, "station_id", stationID)

	jwtCfg := auth.DefaultJWTConfig(cfg.JWT.Secret)
	jwtCfg.Issuer = cfg.JWT.Issuer
	printTokens(log, auth.NewJWTService(jwtCfg), stationID)

	log.Info("seeding completed successfully")
}

func seedStation(ctx context.Context, txm *postgres.TxManager, code, name string) (id.ID, error) {
	q := txm.GetQuerier(ctx)

	var stationID id.ID
	err := q.QueryRow(ctx, `SELECT id FROM stations WHERE code = $1`, code).Scan(&stationID)
	if err == nil {
		logger.Info(ctx, "station already exists", "code", code, "station_id", stationID)
		return stationID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return id.ID{}, fmt.Errorf("check station exists: %w", err)
	}

	stationID = id.New()
	if _, err := q.Exec(ctx, `INSERT INTO stations (id, name, code) VALUES ($1, $2, $3)`, stationID, name, code); err != nil {
		return id.ID{}, fmt.Errorf("insert station: %w", err)
	}
	return stationID, nil
}

// seedTank creates the tank with one meter, a selling price and an opening FIFO layer
// that backs its current volume. Existing tanks are left untouched.
func seedTank(ctx context.Context, txm *postgres.TxManager, stationID id.ID, t tankSeed) error {
	q := txm.GetQuerier(ctx)

	tankID := id.New()
	tag, err := q.Exec(ctx, `
		INSERT INTO tanks (id, station_id, tank_number, fuel_type, capacity_liters, current_volume_liters)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (station_id, tank_number) DO NOTHING
	`, tankID, stationID, t.number, t.fuel, decimal.NewFromInt(t.capacity), decimal.NewFromInt(t.opening))
	if err != nil {
		return fmt.Errorf("insert tank: %w", err)
	}
	if tag.RowsAffected() == 0 {
		logger.Info(ctx, "tank already exists", "tank_number", t.number)
		return nil
	}

	if _, err := q.Exec(ctx, `
		INSERT INTO meters (id, tank_id, meter_number, current_reading_liters, is_active)
		VALUES ($1, $2, $3, 0, TRUE)
	`, id.New(), tankID, t.meter); err != nil {
		return fmt.Errorf("insert meter: %w", err)
	}

	since := time.Date(time.Now().Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := q.Exec(ctx, `
		INSERT INTO fuel_prices (id, station_id, fuel_type, price_per_liter_ugx, effective_from, is_active)
		SELECT $1::uuid, $2::uuid, $3::text, $4::numeric, $5::date, TRUE
		WHERE NOT EXISTS (
			SELECT 1 FROM fuel_prices WHERE station_id = $2::uuid AND fuel_type = $3::text AND is_active
		)
	`, id.New(), stationID, t.fuel, decimal.NewFromInt(t.price), since); err != nil {
		return fmt.Errorf("insert price: %w", err)
	}

	if _, err := q.Exec(ctx, `
		INSERT INTO fifo_layers (
			id, tank_id, layer_sequence, delivery_date,
			original_volume_liters, remaining_volume_liters, cost_per_liter_ugx
		)
		VALUES ($1, $2, 1, $3, $4, $4, $5)
	`, id.New(), tankID, since, decimal.NewFromInt(t.opening), decimal.NewFromInt(t.cost)); err != nil {
		return fmt.Errorf("insert opening layer: %w", err)
	}

	logger.Info(ctx, "tank seeded",
		"tank_number", t.number,
		"fuel_type", t.fuel,
		"opening_liters", t.opening,
	)
	return nil
}

func printTokens(log *logger.Logger, jwt *auth.JWTService, stationID id.ID) {
	users := []appctx.UserContext{
		{UserID: "seed-admin", Role: appctx.RoleAdmin},
		{UserID: "seed-manager", Role: appctx.RoleManager, StationID: stationID.String()},
		{UserID: "seed-attendant", Role: appctx.RoleAttendant, StationID: stationID.String()},
	}
	for _, u := range users {
		token, expiresAt, err := jwt.GenerateAccessToken(u, 0)
		if err != nil {
			log.Warnw("failed to sign token", "role", u.Role, "error", err)
			continue
		}
		fmt.Printf("%-10s %s\n           expires %s\n", u.Role, token, expiresAt.Format(time.RFC3339))
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
