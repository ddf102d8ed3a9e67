package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"fuelstation/internal/core/apperror"
)

func TestMapError(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505", ConstraintName: "uq_daily_readings_tank_date"}
	err := MapError(fmt.Errorf("insert: %w", unique), "daily reading", "date", "2026-03-10")

	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, "uq_daily_readings_tank_date", appErr.Details["constraint"])
	assert.ErrorIs(t, err, unique)

	fk := MapError(&pgconn.PgError{Code: "23503"}, "delivery", "", "")
	assert.True(t, apperror.HasCode(fk, apperror.CodeValidation))

	plain := errors.New("connection reset")
	assert.Same(t, plain, MapError(plain, "x", "", ""))
	assert.NoError(t, MapError(nil, "x", "", ""))
}

func TestIsNoRows(t *testing.T) {
	assert.True(t, IsNoRows(fmt.Errorf("get tank: %w", pgx.ErrNoRows)))
	assert.False(t, IsNoRows(errors.New("boom")))
}

func TestTranslateTimeout(t *testing.T) {
	err := translateTimeout(fmt.Errorf("exec: %w", &pgconn.PgError{Code: "57014"}))
	assert.True(t, apperror.HasCode(err, apperror.CodeTimeout))

	dup := apperror.NewDuplicate("x", "y", "z")
	assert.Same(t, error(dup), translateTimeout(dup))
}
