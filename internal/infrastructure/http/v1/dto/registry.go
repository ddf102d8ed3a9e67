package dto

import "fuelstation/internal/domain/registry"

// TankResponse represents a tank in API responses.
type TankResponse struct {
	ID                  string `json:"id"`
	StationID           string `json:"stationId"`
	TankNumber          string `json:"tankNumber"`
	FuelType            string `json:"fuelType"`
	CapacityLiters      string `json:"capacityLiters"`
	CurrentVolumeLiters string `json:"currentVolumeLiters"`
}

// FromTank converts entity to response DTO.
func FromTank(t registry.Tank) TankResponse {
	return TankResponse{
		ID:                  t.ID.String(),
		StationID:           t.StationID.String(),
		TankNumber:          t.TankNumber,
		FuelType:            string(t.FuelType),
		CapacityLiters:      t.CapacityLiters.StringFixed(2),
		CurrentVolumeLiters: t.CurrentVolumeLiters.StringFixed(2),
	}
}
