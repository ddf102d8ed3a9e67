// Package config loads service configuration from config.toml and FUEL_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"fuelstation/internal/domain/readings"
	"fuelstation/internal/domain/variance"
)

// Config holds all application configuration.
type Config struct {
	App            AppConfig
	Database       DatabaseConfig
	Redis          RedisConfig
	JWT            JWTConfig
	Log            LogConfig
	Reconciliation ReconciliationConfig
}

// AppConfig holds application-specific settings.
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// IsDevelopment reports whether the service runs in development mode.
func (a AppConfig) IsDevelopment() bool {
	return a.Env == "development"
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	URL              string
	MaxConns         int32
	MinConns         int32
	ConnMaxLifetime  time.Duration
	ConnMaxIdleTime  time.Duration
	StatementTimeout time.Duration
}

// RedisConfig holds Redis settings. Redis is optional.
type RedisConfig struct {
	Enabled       bool
	Addr          string
	Password      string
	DB            int
	PriceCacheTTL time.Duration
	LockTTL       time.Duration
}

// JWTConfig holds bearer token settings.
type JWTConfig struct {
	Secret string
	Issuer string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level       string
	Development bool
}

// ReconciliationConfig holds the reading rules and variance thresholds.
type ReconciliationConfig struct {
	Timeout                 time.Duration
	MeterCeiling            decimal.Decimal
	MeterResetRatio         decimal.Decimal
	MeterResetFloor         decimal.Decimal
	MaxWaterRiseMM          decimal.Decimal
	MaxTemperatureSwingC    decimal.Decimal
	MaxOvernightVariancePct decimal.Decimal
	Thresholds              variance.Thresholds
}

// Rules returns the reading validation rules.
func (r ReconciliationConfig) Rules() readings.Rules {
	return readings.Rules{
		MeterCeiling:            r.MeterCeiling,
		MeterResetRatio:         r.MeterResetRatio,
		MeterResetFloor:         r.MeterResetFloor,
		MaxWaterRiseMM:          r.MaxWaterRiseMM,
		MaxTemperatureSwingC:    r.MaxTemperatureSwingC,
		MaxOvernightVariancePct: r.MaxOvernightVariancePct,
	}
}

// Load reads configuration from file and environment.
// A missing config file is fine; defaults and env vars apply.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/fuelstation")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("FUEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	rec, err := loadReconciliation(v)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			URL:              v.GetString("database.url"),
			MaxConns:         v.GetInt32("database.max_conns"),
			MinConns:         v.GetInt32("database.min_conns"),
			ConnMaxLifetime:  v.GetDuration("database.conn_max_lifetime"),
			ConnMaxIdleTime:  v.GetDuration("database.conn_max_idle_time"),
			StatementTimeout: v.GetDuration("database.statement_timeout"),
		},
		Redis: RedisConfig{
			Enabled:       v.GetBool("redis.enabled"),
			Addr:          v.GetString("redis.addr"),
			Password:      v.GetString("redis.password"),
			DB:            v.GetInt("redis.db"),
			PriceCacheTTL: v.GetDuration("redis.price_cache_ttl"),
			LockTTL:       v.GetDuration("redis.lock_ttl"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("jwt.secret"),
			Issuer: v.GetString("jwt.issuer"),
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
		},
		Reconciliation: rec,
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "fuelstation")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")

	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", 30*time.Minute)
	v.SetDefault("database.statement_timeout", 30*time.Second)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.price_cache_ttl", 10*time.Minute)
	v.SetDefault("redis.lock_ttl", 2*time.Minute)

	v.SetDefault("jwt.issuer", "fuelstation")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	rules := readings.DefaultRules()
	th := variance.DefaultThresholds()
	v.SetDefault("reconciliation.timeout", time.Minute)
	v.SetDefault("reconciliation.meter_ceiling", rules.MeterCeiling.String())
	v.SetDefault("reconciliation.meter_reset_ratio", rules.MeterResetRatio.String())
	v.SetDefault("reconciliation.meter_reset_floor", rules.MeterResetFloor.String())
	v.SetDefault("reconciliation.max_water_rise_mm", rules.MaxWaterRiseMM.String())
	v.SetDefault("reconciliation.max_temperature_swing_c", rules.MaxTemperatureSwingC.String())
	v.SetDefault("reconciliation.max_overnight_variance_pct", rules.MaxOvernightVariancePct.String())
	v.SetDefault("reconciliation.variance_low", th.Low.String())
	v.SetDefault("reconciliation.variance_medium", th.Medium.String())
	v.SetDefault("reconciliation.variance_high", th.High.String())
	v.SetDefault("reconciliation.variance_critical", th.Critical.String())
}

func loadReconciliation(v *viper.Viper) (ReconciliationConfig, error) {
	var errs []error
	dec := func(key string) decimal.Decimal {
		d, err := decimal.NewFromString(v.GetString(key))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
		return d
	}

	rc := ReconciliationConfig{
		Timeout:                 v.GetDuration("reconciliation.timeout"),
		MeterCeiling:            dec("reconciliation.meter_ceiling"),
		MeterResetRatio:         dec("reconciliation.meter_reset_ratio"),
		MeterResetFloor:         dec("reconciliation.meter_reset_floor"),
		MaxWaterRiseMM:          dec("reconciliation.max_water_rise_mm"),
		MaxTemperatureSwingC:    dec("reconciliation.max_temperature_swing_c"),
		MaxOvernightVariancePct: dec("reconciliation.max_overnight_variance_pct"),
		Thresholds: variance.Thresholds{
			Low:      dec("reconciliation.variance_low"),
			Medium:   dec("reconciliation.variance_medium"),
			High:     dec("reconciliation.variance_high"),
			Critical: dec("reconciliation.variance_critical"),
		},
	}
	if len(errs) > 0 {
		return rc, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return rc, nil
}

func (c *Config) validate() error {
	var errs []error

	if c.Database.URL == "" {
		errs = append(errs, errors.New("database.url is required"))
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, errors.New("database.max_conns must be positive"))
	}
	if c.Database.MinConns < 0 || c.Database.MinConns > c.Database.MaxConns {
		errs = append(errs, errors.New("database.min_conns must be between 0 and max_conns"))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt.secret is required"))
	} else if !c.App.IsDevelopment() && len(c.JWT.Secret) < 32 {
		errs = append(errs, errors.New("jwt.secret must be at least 32 characters outside development"))
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required when redis is enabled"))
	}
	if c.Redis.Enabled && c.Redis.LockTTL <= c.Reconciliation.Timeout {
		errs = append(errs, errors.New("redis.lock_ttl must exceed reconciliation.timeout"))
	}

	r := c.Reconciliation
	if r.Timeout <= 0 {
		errs = append(errs, errors.New("reconciliation.timeout must be positive"))
	}
	if !r.MeterCeiling.IsPositive() {
		errs = append(errs, errors.New("reconciliation.meter_ceiling must be positive"))
	}
	if !r.MeterResetRatio.IsPositive() || r.MeterResetRatio.GreaterThan(decimal.NewFromInt(1)) {
		errs = append(errs, errors.New("reconciliation.meter_reset_ratio must be in (0, 1]"))
	}
	for name, d := range map[string]decimal.Decimal{
		"meter_reset_floor":          r.MeterResetFloor,
		"max_water_rise_mm":          r.MaxWaterRiseMM,
		"max_temperature_swing_c":    r.MaxTemperatureSwingC,
		"max_overnight_variance_pct": r.MaxOvernightVariancePct,
	} {
		if d.IsNegative() {
			errs = append(errs, fmt.Errorf("reconciliation.%s must not be negative", name))
		}
	}
	th := r.Thresholds
	if !th.Low.IsPositive() || !th.Low.LessThan(th.Medium) || !th.Medium.LessThan(th.High) || !th.High.LessThan(th.Critical) {
		errs = append(errs, errors.New("variance thresholds must be positive and strictly increasing"))
	}

	return errors.Join(errs...)
}
