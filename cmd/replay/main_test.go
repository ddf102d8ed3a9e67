package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsReplay(t *testing.T) {
	now := time.Date(2026, 3, 10, 21, 30, 0, 0, time.UTC)

	t.Run("DefaultWindow", func(t *testing.T) {
		got, err := options{days: 7}.replay(now)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), got.From)
		assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), got.To)
		assert.Nil(t, got.StationID)
	})

	t.Run("ExplicitRange", func(t *testing.T) {
		got, err := options{from: "2026-02-01", to: "2026-02-28", station: "0194f7a0-0000-7000-8000-000000000001", includeFaulty: true}.replay(now)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), got.From)
		assert.Equal(t, time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC), got.To)
		require.NotNil(t, got.StationID)
		assert.True(t, got.IncludeFaulty)
	})

	t.Run("Rejected", func(t *testing.T) {
		for _, o := range []options{
			{from: "2026-03-05", to: "2026-03-01"},
			{from: "03/01/2026"},
			{station: "station-1"},
		} {
			_, err := o.replay(now)
			assert.Error(t, err)
		}
	})
}
