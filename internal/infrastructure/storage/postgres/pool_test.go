package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoolStats_Saturated(t *testing.T) {
	assert.False(t, PoolStats{}.Saturated())
	assert.False(t, PoolStats{MaxConns: 10, AcquiredConns: 9}.Saturated())
	assert.True(t, PoolStats{MaxConns: 10, AcquiredConns: 10}.Saturated())
}

func TestDefaultPoolConfig(t *testing.T) {
	cfg := DefaultPoolConfig("postgres://localhost/fuel")
	assert.Equal(t, "postgres://localhost/fuel", cfg.DSN)
	assert.Equal(t, "fuelstation", cfg.ApplicationName)
	assert.Greater(t, cfg.MaxConns, cfg.MinConns)
}
