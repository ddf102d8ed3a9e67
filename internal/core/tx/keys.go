package tx

import (
	"fmt"
	"time"

	"fuelstation/internal/core/id"
	"fuelstation/internal/core/types"
)

// Lock keys shared by the services that touch a tank's day.
// Holders take DayKey before LayerKey.

// DayKey guards the readings, deliveries and reconciliation of (tank, date).
func DayKey(tankID id.ID, date time.Time) string {
	return fmt.Sprintf("recon:%s:%s", tankID, types.FormatDate(date))
}

// LayerKey guards a tank's FIFO layer sequence and remaining volumes.
func LayerKey(tankID id.ID) string {
	return "fifo:" + tankID.String()
}
