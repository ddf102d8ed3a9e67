package dto

import (
	"time"

	"fuelstation/internal/domain/readings"
	"fuelstation/internal/domain/reconciliation"
)

// MeterReadingRequest is a morning opening or evening closing meter value.
type MeterReadingRequest struct {
	Date  string `json:"date" binding:"required,date"`
	Value string `json:"value" binding:"required,numeric"`
}

// DipRequest is a morning or evening dip.
type DipRequest struct {
	Date         string  `json:"date" binding:"required,date"`
	DipLiters    string  `json:"dipLiters" binding:"required,numeric"`
	WaterLevelMM *string `json:"waterLevelMm" binding:"omitempty,numeric"`
	TemperatureC *string `json:"temperatureC" binding:"omitempty,numeric"`
}

// DateQuery selects a business day.
type DateQuery struct {
	Date string `form:"date" binding:"required,date"`
}

// MeterReadingResponse represents a meter reading in API responses.
type MeterReadingResponse struct {
	ID               string     `json:"id"`
	MeterID          string     `json:"meterId"`
	ReadingDate      string     `json:"readingDate"`
	OpeningLiters    string     `json:"openingLiters"`
	ClosingLiters    string     `json:"closingLiters"`
	Closed           bool       `json:"closed"`
	MeterActive      bool       `json:"meterActive"`
	RecordedByUserID string     `json:"recordedByUserId"`
	ClosedAt         *time.Time `json:"closedAt,omitempty"`
}

// FromMeterReading converts entity to response DTO.
func FromMeterReading(r readings.MeterReading) MeterReadingResponse {
	return MeterReadingResponse{
		ID:               r.ID.String(),
		MeterID:          r.MeterID.String(),
		ReadingDate:      DateString(r.ReadingDate),
		OpeningLiters:    r.OpeningReadingLiters.StringFixed(2),
		ClosingLiters:    r.ClosingReadingLiters.StringFixed(2),
		Closed:           r.IsClosed(),
		MeterActive:      r.MeterActive,
		RecordedByUserID: r.RecordedByUserID,
		ClosedAt:         r.ClosedAt,
	}
}

// DailyReadingResponse represents a tank's dips for a day.
type DailyReadingResponse struct {
	ID                        string  `json:"id"`
	TankID                    string  `json:"tankId"`
	ReadingDate               string  `json:"readingDate"`
	MorningDipLiters          string  `json:"morningDipLiters"`
	EveningDipLiters          *string `json:"eveningDipLiters"`
	WaterLevelMM              *string `json:"waterLevelMm,omitempty"`
	TemperatureCelsius        *string `json:"temperatureC,omitempty"`
	EveningWaterLevelMM       *string `json:"eveningWaterLevelMm,omitempty"`
	EveningTemperatureCelsius *string `json:"eveningTemperatureC,omitempty"`
	RecordedByUserID          string  `json:"recordedByUserId"`
}

// FromDailyReading converts entity to response DTO.
func FromDailyReading(d readings.DailyReading) DailyReadingResponse {
	resp := DailyReadingResponse{
		ID:                        d.ID.String(),
		TankID:                    d.TankID.String(),
		ReadingDate:               DateString(d.ReadingDate),
		MorningDipLiters:          d.MorningDipLiters.StringFixed(2),
		WaterLevelMM:              decimalPtr(d.WaterLevelMM),
		TemperatureCelsius:        decimalPtr(d.TemperatureCelsius),
		EveningWaterLevelMM:       decimalPtr(d.EveningWaterLevelMM),
		EveningTemperatureCelsius: decimalPtr(d.EveningTemperatureCelsius),
		RecordedByUserID:          d.RecordedByUserID,
	}
	if d.HasEvening() {
		s := d.EveningDipLiters.StringFixed(2)
		resp.EveningDipLiters = &s
	}
	return resp
}

// TankDayResponse is everything recorded for a tank on a day.
type TankDayResponse struct {
	TankID        string                 `json:"tankId"`
	Date          string                 `json:"date"`
	State         string                 `json:"state"`
	Dips          *DailyReadingResponse  `json:"dips"`
	MeterReadings []MeterReadingResponse `json:"meterReadings"`
}

// EveningDipResponse reports the stored reading and the reconciliation it triggered.
type EveningDipResponse struct {
	Reading        DailyReadingResponse    `json:"reading"`
	Reconciliation *ReconciliationResponse `json:"reconciliation,omitempty"`
	// ReconcileError is set when the reading was stored but the day could not be reconciled.
	ReconcileError *ErrorBody `json:"reconcileError,omitempty"`
}

// ErrorBody mirrors the error envelope rendered by the error middleware.
type ErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// FromEveningDip converts the engine result.
func FromEveningDip(res *reconciliation.EveningDipResult, errBody *ErrorBody) EveningDipResponse {
	resp := EveningDipResponse{Reading: FromDailyReading(*res.Reading), ReconcileError: errBody}
	if res.Reconciliation != nil {
		r := FromReconciliation(*res.Reconciliation)
		resp.Reconciliation = &r
	}
	return resp
}
