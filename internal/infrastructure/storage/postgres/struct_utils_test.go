package postgres

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fuelstation/internal/core/id"
	"fuelstation/internal/domain/fifo"
	"fuelstation/internal/domain/readings"
)

type auditedLayer struct {
	fifo.Layer
	Note string `db:"note"`
	Skip string `db:"-"`
}

func TestExtractDBColumns_Embedded(t *testing.T) {
	cols := ExtractDBColumns[auditedLayer]()

	for _, expected := range []string{"id", "tank_id", "layer_sequence", "remaining_volume_liters", "is_exhausted", "note"} {
		assert.Contains(t, cols, expected)
	}
	assert.NotContains(t, cols, "-")
}

func TestExtractDBColumns_Omit(t *testing.T) {
	cols := ExtractDBColumns[readings.MeterReading]("meter_active")

	assert.NotContains(t, cols, "meter_active")
	assert.Equal(t, "id", cols[0])
	assert.Contains(t, cols, "closed_at")
}

func TestStructToMap_Values(t *testing.T) {
	layerID := id.New()
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	l := auditedLayer{
		Layer: fifo.Layer{
			ID:                    layerID,
			LayerSequence:         3,
			DeliveryDate:          now,
			RemainingVolumeLiters: decimal.NewFromInt(250),
			IsExhausted:           false,
		},
		Note: "topped up",
	}

	m := StructToMap(&l)

	assert.Equal(t, layerID, m["id"])
	assert.Equal(t, int64(3), m["layer_sequence"])
	assert.Equal(t, now, m["delivery_date"])
	assert.True(t, decimal.NewFromInt(250).Equal(m["remaining_volume_liters"].(decimal.Decimal)))
	assert.Equal(t, "topped up", m["note"])
	_, ok := m["-"]
	assert.False(t, ok)
}

func TestInsertMap_RestrictsColumns(t *testing.T) {
	r := readings.MeterReading{ID: id.New(), MeterActive: true}

	m := InsertMap(r, []string{"id", "meter_id", "unknown"})

	require.Len(t, m, 2)
	assert.Equal(t, r.ID, m["id"])
	assert.Contains(t, m, "meter_id")
	assert.NotContains(t, m, "meter_active")
}

func TestStructToMap_NonStruct(t *testing.T) {
	assert.Nil(t, StructToMap(42))
}
