// Package numerator provides gapless journal numbering for ledger postings.
// Numbers are allocated with UPSERT ... RETURNING on sys_sequences, so callers
// must run inside the transaction that writes the numbered rows: a rollback
// returns the number to the pool.
package numerator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// Querier interface for database operations.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// QuerierFunc resolves the querier for ctx (the active transaction, when any).
type QuerierFunc func(ctx context.Context) Querier

// Config holds numbering configuration.
type Config struct {
	// Prefix added to all numbers (e.g., "JV")
	Prefix string

	// IncludeYear adds year to the number
	IncludeYear bool

	// PadWidth is the minimum number width (default 5)
	PadWidth int

	// ResetPeriod: "year", "month", "never"
	ResetPeriod string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(prefix string) Config {
	return Config{
		Prefix:      prefix,
		IncludeYear: true,
		PadWidth:    5,
		ResetPeriod: "year",
	}
}

// JournalConfig numbers ledger journals as JV-YYYY-NNNNN.
func JournalConfig() Config {
	return DefaultConfig("JV")
}

// Service provides journal numbering functionality.
type Service struct {
	querier QuerierFunc
	cfg     Config
}

// New creates a numerator that resolves its querier per call.
func New(querier QuerierFunc, cfg Config) *Service {
	return &Service{querier: querier, cfg: cfg}
}

// NewStatic creates a numerator bound to a single querier. Used by tests and CLIs.
func NewStatic(q Querier, cfg Config) *Service {
	return New(func(context.Context) Querier { return q }, cfg)
}

// Next allocates the next number for period.
// Pattern: PREFIX-YEAR-XXXXX (e.g., JV-2026-00001)
func (s *Service) Next(ctx context.Context, period time.Time) (string, error) {
	if s == nil || s.querier == nil {
		return "", fmt.Errorf("numerator service is not initialized")
	}

	key := s.buildKey(period)
	var num int64
	err := s.querier(ctx).QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, 1)
		ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + 1
		RETURNING current_val
	`, key).Scan(&num)
	if err != nil {
		return "", fmt.Errorf("next number %s: %w", key, err)
	}

	return s.formatNumber(period, num), nil
}

// buildKey creates the sequence key based on config and period.
func (s *Service) buildKey(period time.Time) string {
	switch s.cfg.ResetPeriod {
	case "month":
		return fmt.Sprintf("%s_%s", s.cfg.Prefix, period.Format("2006_01"))
	case "year":
		return fmt.Sprintf("%s_%s", s.cfg.Prefix, period.Format("2006"))
	default:
		return s.cfg.Prefix
	}
}

// formatNumber creates the final number string.
func (s *Service) formatNumber(period time.Time, num int64) string {
	padWidth := s.cfg.PadWidth
	if padWidth == 0 {
		padWidth = 5
	}

	if s.cfg.IncludeYear {
		return fmt.Sprintf("%s-%s-%0*d", s.cfg.Prefix, period.Format("2006"), padWidth, num)
	}
	return fmt.Sprintf("%s-%0*d", s.cfg.Prefix, padWidth, num)
}

// ParseNumber extracts numeric part from formatted number.
// Returns -1 if parsing fails.
func ParseNumber(formatted string) int64 {
	i := strings.LastIndex(formatted, "-")
	if i < 0 {
		return -1
	}
	num, err := strconv.ParseInt(formatted[i+1:], 10, 64)
	if err != nil {
		return -1
	}
	return num
}
