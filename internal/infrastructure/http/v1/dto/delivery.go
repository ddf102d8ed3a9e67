package dto

import (
	"time"

	"fuelstation/internal/domain/delivery"
)

// DeliveryRequest records a fuel delivery into a tank.
type DeliveryRequest struct {
	TankID            string `json:"tankId" binding:"required,uuid"`
	DeliveryDate      string `json:"deliveryDate" binding:"required,date"`
	VolumeLiters      string `json:"volumeLiters" binding:"required,numeric"`
	CostPerLiterUGX   string `json:"costPerLiterUgx" binding:"required,numeric"`
	SupplierReference string `json:"supplierReference" binding:"max=100"`
}

// DeliveryResponse represents a delivery in API responses.
type DeliveryResponse struct {
	ID                string         `json:"id"`
	TankID            string         `json:"tankId"`
	DeliveryDate      string         `json:"deliveryDate"`
	VolumeLiters      string         `json:"volumeLiters"`
	CostPerLiterUGX   string         `json:"costPerLiterUgx"`
	SupplierReference string         `json:"supplierReference,omitempty"`
	RecordedByUserID  string         `json:"recordedByUserId"`
	CreatedAt         time.Time      `json:"createdAt"`
	Layer             *LayerResponse `json:"layer,omitempty"`
	OverCapacity      bool           `json:"overCapacity,omitempty"`
}

// FromDelivery converts entity to response DTO.
func FromDelivery(d delivery.Delivery) DeliveryResponse {
	return DeliveryResponse{
		ID:                d.ID.String(),
		TankID:            d.TankID.String(),
		DeliveryDate:      DateString(d.DeliveryDate),
		VolumeLiters:      d.VolumeLiters.StringFixed(2),
		CostPerLiterUGX:   d.CostPerLiterUGX.StringFixed(2),
		SupplierReference: d.SupplierReference,
		RecordedByUserID:  d.RecordedByUserID,
		CreatedAt:         d.CreatedAt,
	}
}

// FromDeliveryResult includes the FIFO layer the delivery created.
func FromDeliveryResult(r *delivery.Result) DeliveryResponse {
	resp := FromDelivery(*r.Delivery)
	if r.Layer != nil {
		l := FromLayer(*r.Layer)
		resp.Layer = &l
	}
	resp.OverCapacity = r.OverCapacity
	return resp
}
