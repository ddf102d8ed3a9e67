package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"fuelstation/internal/domain/fifo"
	"fuelstation/internal/domain/reconciliation"
)

func decimalPtr(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

// TankDateRequest names a tank and a business day.
type TankDateRequest struct {
	TankID string `json:"tankId" binding:"required,uuid"`
	Date   string `json:"date" binding:"required,date"`
}

// GapQuery selects the range scanned for unreconciled days.
type GapQuery struct {
	StationID string `form:"stationId" binding:"omitempty,uuid"`
	From      string `form:"from" binding:"required,date"`
	To        string `form:"to" binding:"required,date"`
}

// ReconciliationResponse represents a daily reconciliation in API responses.
type ReconciliationResponse struct {
	ID                            string    `json:"id"`
	TankID                        string    `json:"tankId"`
	StationID                     string    `json:"stationId"`
	ReconciliationDate            string    `json:"reconciliationDate"`
	OpeningStockLiters            string    `json:"openingStockLiters"`
	TotalDeliveredLiters          string    `json:"totalDeliveredLiters"`
	TotalDispensedLiters          string    `json:"totalDispensedLiters"`
	TheoreticalClosingStockLiters string    `json:"theoreticalClosingStockLiters"`
	ActualClosingStockLiters      string    `json:"actualClosingStockLiters"`
	VolumeVarianceLiters          string    `json:"volumeVarianceLiters"`
	VariancePercentage            string    `json:"variancePercentage"`
	SellingPricePerLiterUGX       string    `json:"sellingPricePerLiterUgx"`
	TotalSalesUGX                 string    `json:"totalSalesUgx"`
	TotalCOGSUGX                  string    `json:"totalCogsUgx"`
	GrossProfitUGX                string    `json:"grossProfitUgx"`
	ProfitMarginPercentage        string    `json:"profitMarginPercentage"`
	JournalNumber                 *string   `json:"journalNumber,omitempty"`
	ReconciledByUserID            string    `json:"reconciledByUserId"`
	ReconciledAt                  time.Time `json:"reconciledAt"`
}

// FromReconciliation converts entity to response DTO.
func FromReconciliation(r reconciliation.DailyReconciliation) ReconciliationResponse {
	return ReconciliationResponse{
		ID:                            r.ID.String(),
		TankID:                        r.TankID.String(),
		StationID:                     r.StationID.String(),
		ReconciliationDate:            DateString(r.ReconciliationDate),
		OpeningStockLiters:            r.OpeningStockLiters.StringFixed(2),
		TotalDeliveredLiters:          r.TotalDeliveredLiters.StringFixed(2),
		TotalDispensedLiters:          r.TotalDispensedLiters.StringFixed(2),
		TheoreticalClosingStockLiters: r.TheoreticalClosingStockLiters.StringFixed(2),
		ActualClosingStockLiters:      r.ActualClosingStockLiters.StringFixed(2),
		VolumeVarianceLiters:          r.VolumeVarianceLiters.StringFixed(2),
		VariancePercentage:            r.VariancePercentage.StringFixed(2),
		SellingPricePerLiterUGX:       r.SellingPricePerLiterUGX.StringFixed(2),
		TotalSalesUGX:                 r.TotalSalesUGX.StringFixed(2),
		TotalCOGSUGX:                  r.TotalCOGSUGX.StringFixed(2),
		GrossProfitUGX:                r.GrossProfitUGX.StringFixed(2),
		ProfitMarginPercentage:        r.ProfitMarginPercentage.StringFixed(2),
		JournalNumber:                 r.JournalNumber,
		ReconciledByUserID:            r.ReconciledByUserID,
		ReconciledAt:                  r.ReconciledAt,
	}
}

// StateResponse is the reconciliation state of a tank-day.
type StateResponse struct {
	TankID string `json:"tankId"`
	Date   string `json:"date"`
	State  string `json:"state"`
}

// GapResponse is a tank-day awaiting reconciliation.
type GapResponse struct {
	TankID    string `json:"tankId"`
	StationID string `json:"stationId"`
	Date      string `json:"date"`
	State     string `json:"state"`
}

// FromGap converts entity to response DTO.
func FromGap(g reconciliation.Gap) GapResponse {
	state := reconciliation.StateReady
	if g.Faulty {
		state = reconciliation.StateFaulty
	}
	return GapResponse{
		TankID:    g.TankID.String(),
		StationID: g.StationID.String(),
		Date:      DateString(g.Date),
		State:     string(state),
	}
}

// LayerQuery controls layer listing.
type LayerQuery struct {
	IncludeExhausted bool `form:"includeExhausted"`
}

// ConsumptionQuery filters FIFO consumption logs.
type ConsumptionQuery struct {
	RangeQuery
	ReconciliationID string `form:"reconciliationId" binding:"omitempty,uuid"`
}

// LayerResponse represents a FIFO layer in API responses.
type LayerResponse struct {
	ID                    string  `json:"id"`
	TankID                string  `json:"tankId"`
	LayerSequence         int64   `json:"layerSequence"`
	DeliveryID            *string `json:"deliveryId,omitempty"`
	DeliveryDate          string  `json:"deliveryDate"`
	OriginalVolumeLiters  string  `json:"originalVolumeLiters"`
	RemainingVolumeLiters string  `json:"remainingVolumeLiters"`
	CostPerLiterUGX       string  `json:"costPerLiterUgx"`
	IsExhausted           bool    `json:"isExhausted"`
}

// FromLayer converts entity to response DTO.
func FromLayer(l fifo.Layer) LayerResponse {
	var deliveryID *string
	if l.DeliveryID != nil {
		s := l.DeliveryID.String()
		deliveryID = &s
	}
	return LayerResponse{
		ID:                    l.ID.String(),
		TankID:                l.TankID.String(),
		LayerSequence:         l.LayerSequence,
		DeliveryID:            deliveryID,
		DeliveryDate:          DateString(l.DeliveryDate),
		OriginalVolumeLiters:  l.OriginalVolumeLiters.StringFixed(2),
		RemainingVolumeLiters: l.RemainingVolumeLiters.StringFixed(2),
		CostPerLiterUGX:       l.CostPerLiterUGX.StringFixed(2),
		IsExhausted:           l.IsExhausted,
	}
}

// ConsumptionResponse represents a FIFO consumption log in API responses.
type ConsumptionResponse struct {
	ID                   string    `json:"id"`
	ReconciliationID     string    `json:"reconciliationId"`
	FIFOLayerID          string    `json:"fifoLayerId"`
	TankID               string    `json:"tankId"`
	VolumeConsumedLiters string    `json:"volumeConsumedLiters"`
	CostPerLiterUGX      string    `json:"costPerLiterUgx"`
	TotalCostUGX         string    `json:"totalCostUgx"`
	CreatedAt            time.Time `json:"createdAt"`
}

// FromConsumption converts entity to response DTO.
func FromConsumption(c fifo.ConsumptionLog) ConsumptionResponse {
	return ConsumptionResponse{
		ID:                   c.ID.String(),
		ReconciliationID:     c.ReconciliationID.String(),
		FIFOLayerID:          c.FIFOLayerID.String(),
		TankID:               c.TankID.String(),
		VolumeConsumedLiters: c.VolumeConsumedLiters.StringFixed(2),
		CostPerLiterUGX:      c.CostPerLiterUGX.StringFixed(2),
		TotalCostUGX:         c.TotalCostUGX.StringFixed(2),
		CreatedAt:            c.CreatedAt,
	}
}
