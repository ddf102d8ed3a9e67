package handlers

import (
	"github.com/gin-gonic/gin"

	"fuelstation/internal/core/apperror"
	"fuelstation/internal/core/types"
	"fuelstation/internal/domain/readings"
	"fuelstation/internal/domain/reconciliation"
	"fuelstation/internal/infrastructure/http/v1/dto"
)

// ReadingsHandler handles meter readings and tank dips.
type ReadingsHandler struct {
	*BaseHandler
	intake *readings.Service
	engine *reconciliation.Engine
}

// NewReadingsHandler creates a new readings handler.
func NewReadingsHandler(base *BaseHandler, intake *readings.Service, engine *reconciliation.Engine) *ReadingsHandler {
	return &ReadingsHandler{BaseHandler: base, intake: intake, engine: engine}
}

// MorningMeter handles POST /meters/:meterId/readings/morning
func (h *ReadingsHandler) MorningMeter(c *gin.Context) {
	meterID, ok := h.ParamID(c, "meterId")
	if !ok {
		return
	}
	var req dto.MeterReadingRequest
	if !h.BindJSON(c, &req) {
		return
	}
	date, err := types.ParseDate(req.Date)
	if err != nil {
		h.Error(c, err)
		return
	}
	opening, err := dto.ParseDecimal("value", req.Value)
	if err != nil {
		h.Error(c, err)
		return
	}

	m, err := h.intake.RecordMorningMeterReading(c.Request.Context(), readings.MorningMeterInput{
		MeterID: meterID,
		Date:    date,
		Opening: opening,
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromMeterReading(*m))
}

// EveningMeter handles POST /meters/:meterId/readings/evening
func (h *ReadingsHandler) EveningMeter(c *gin.Context) {
	meterID, ok := h.ParamID(c, "meterId")
	if !ok {
		return
	}
	var req dto.MeterReadingRequest
	if !h.BindJSON(c, &req) {
		return
	}
	date, err := types.ParseDate(req.Date)
	if err != nil {
		h.Error(c, err)
		return
	}
	closing, err := dto.ParseDecimal("value", req.Value)
	if err != nil {
		h.Error(c, err)
		return
	}

	m, err := h.intake.RecordEveningMeterReading(c.Request.Context(), readings.EveningMeterInput{
		MeterID: meterID,
		Date:    date,
		Closing: closing,
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromMeterReading(*m))
}

// parseDip reads a dip body into the morning shape; the evening leg copies the fields.
func (h *ReadingsHandler) parseDip(c *gin.Context) (readings.MorningDipInput, bool) {
	tankID, ok := h.ParamID(c, "tankId")
	if !ok {
		return readings.MorningDipInput{}, false
	}
	var req dto.DipRequest
	if !h.BindJSON(c, &req) {
		return readings.MorningDipInput{}, false
	}

	in := readings.MorningDipInput{TankID: tankID}
	var err error
	if in.Date, err = types.ParseDate(req.Date); err != nil {
		h.Error(c, err)
		return in, false
	}
	if in.MorningDip, err = dto.ParseDecimal("dipLiters", req.DipLiters); err != nil {
		h.Error(c, err)
		return in, false
	}
	if in.WaterLevelMM, err = dto.ParseOptionalDecimal("waterLevelMm", req.WaterLevelMM); err != nil {
		h.Error(c, err)
		return in, false
	}
	if in.TemperatureC, err = dto.ParseOptionalDecimal("temperatureC", req.TemperatureC); err != nil {
		h.Error(c, err)
		return in, false
	}
	return in, true
}

// MorningDip handles POST /tanks/:tankId/dips/morning
func (h *ReadingsHandler) MorningDip(c *gin.Context) {
	in, ok := h.parseDip(c)
	if !ok {
		return
	}
	d, err := h.intake.RecordMorningDip(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromDailyReading(*d))
}

// EveningDip handles POST /tanks/:tankId/dips/evening
// The reading is stored even when the reconciliation it triggers fails;
// the failure is reported in reconcileError.
func (h *ReadingsHandler) EveningDip(c *gin.Context) {
	parsed, ok := h.parseDip(c)
	if !ok {
		return
	}
	res, err := h.engine.RecordEveningDip(c.Request.Context(), h.intake, readings.EveningDipInput{
		TankID:       parsed.TankID,
		Date:         parsed.Date,
		EveningDip:   parsed.MorningDip,
		WaterLevelMM: parsed.WaterLevelMM,
		TemperatureC: parsed.TemperatureC,
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromEveningDip(res, errorBody(res.ReconcileErr)))
}

// TankDay handles GET /tanks/:tankId/readings?date=
func (h *ReadingsHandler) TankDay(c *gin.Context) {
	tankID, ok := h.ParamID(c, "tankId")
	if !ok {
		return
	}
	var q dto.DateQuery
	if !h.BindQuery(c, &q) {
		return
	}
	date, err := types.ParseDate(q.Date)
	if err != nil {
		h.Error(c, err)
		return
	}
	ctx := c.Request.Context()

	state, err := h.engine.State(ctx, tankID, date)
	if err != nil {
		h.Error(c, err)
		return
	}
	resp := dto.TankDayResponse{
		TankID: tankID.String(),
		Date:   types.FormatDate(date),
		State:  string(state),
	}

	daily, err := h.intake.GetDailyReading(ctx, tankID, date)
	switch {
	case err == nil:
		d := dto.FromDailyReading(*daily)
		resp.Dips = &d
	case !apperror.IsNotFound(err):
		h.Error(c, err)
		return
	}

	meters, err := h.intake.ListMeterReadings(ctx, tankID, date)
	if err != nil {
		h.Error(c, err)
		return
	}
	resp.MeterReadings = dto.NewList(meters, dto.FromMeterReading).Items

	h.OK(c, resp)
}

// errorBody renders a reconciliation failure the way the error middleware would.
func errorBody(err error) *dto.ErrorBody {
	if err == nil {
		return nil
	}
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code == apperror.CodeInternal {
		return &dto.ErrorBody{Code: apperror.CodeInternal, Message: "Internal server error"}
	}
	return &dto.ErrorBody{Code: appErr.Code, Message: appErr.Message, Details: appErr.Details}
}
