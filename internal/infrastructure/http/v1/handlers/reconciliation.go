package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"fuelstation/internal/core/id"
	"fuelstation/internal/core/types"
	"fuelstation/internal/domain/fifo"
	"fuelstation/internal/domain/reconciliation"
	"fuelstation/internal/infrastructure/http/v1/dto"
)

// ReconciliationHandler exposes the reconciliation engine and its FIFO read side.
type ReconciliationHandler struct {
	*BaseHandler
	engine *reconciliation.Engine
}

// NewReconciliationHandler creates a new reconciliation handler.
func NewReconciliationHandler(base *BaseHandler, engine *reconciliation.Engine) *ReconciliationHandler {
	return &ReconciliationHandler{BaseHandler: base, engine: engine}
}

// List handles GET /reconciliations
func (h *ReconciliationHandler) List(c *gin.Context) {
	var q dto.RangeQuery
	if !h.BindQuery(c, &q) {
		return
	}
	r, err := q.Parse()
	if err != nil {
		h.Error(c, err)
		return
	}
	items, err := h.engine.List(c.Request.Context(), reconciliation.Filter{
		StationID: r.StationID,
		TankID:    r.TankID,
		From:      r.From,
		To:        r.To,
		Limit:     r.Limit,
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewList(items, dto.FromReconciliation))
}

// Get handles GET /reconciliations/:id
func (h *ReconciliationHandler) Get(c *gin.Context) {
	recID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	rec, err := h.engine.Get(c.Request.Context(), recID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromReconciliation(*rec))
}

// State handles GET /tanks/:tankId/reconciliation-state?date=
func (h *ReconciliationHandler) State(c *gin.Context) {
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
	state, err := h.engine.State(c.Request.Context(), tankID, date)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.StateResponse{TankID: tankID.String(), Date: types.FormatDate(date), State: string(state)})
}

func (h *ReconciliationHandler) bindTankDate(c *gin.Context) (id.ID, time.Time, bool) {
	var req dto.TankDateRequest
	if !h.BindJSON(c, &req) {
		return id.ID{}, time.Time{}, false
	}
	tankID, err := id.ParseField("tankId", req.TankID)
	if err != nil {
		h.Error(c, err)
		return id.ID{}, time.Time{}, false
	}
	date, err := types.ParseDate(req.Date)
	if err != nil {
		h.Error(c, err)
		return id.ID{}, time.Time{}, false
	}
	return tankID, date, true
}

// Manual handles POST /reconciliations/manual
func (h *ReconciliationHandler) Manual(c *gin.Context) {
	tankID, date, ok := h.bindTankDate(c)
	if !ok {
		return
	}
	rec, err := h.engine.ProcessManual(c.Request.Context(), tankID, date)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromReconciliation(*rec))
}

// Reprocess handles POST /reconciliations/reprocess
func (h *ReconciliationHandler) Reprocess(c *gin.Context) {
	tankID, date, ok := h.bindTankDate(c)
	if !ok {
		return
	}
	rec, err := h.engine.Reprocess(c.Request.Context(), tankID, date)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromReconciliation(*rec))
}

// Delete handles DELETE /tanks/:tankId/reconciliations/:date
func (h *ReconciliationHandler) Delete(c *gin.Context) {
	tankID, ok := h.ParamID(c, "tankId")
	if !ok {
		return
	}
	date, ok := h.ParamDate(c, "date")
	if !ok {
		return
	}
	if err := h.engine.Delete(c.Request.Context(), tankID, date); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// Gaps handles GET /reconciliations/gaps?from=&to=
func (h *ReconciliationHandler) Gaps(c *gin.Context) {
	var q dto.GapQuery
	if !h.BindQuery(c, &q) {
		return
	}
	r, err := dto.RangeQuery{StationID: q.StationID, From: q.From, To: q.To}.Parse()
	if err != nil {
		h.Error(c, err)
		return
	}
	gaps, err := h.engine.Gaps(c.Request.Context(), r.StationID, *r.From, *r.To)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewList(gaps, dto.FromGap))
}

// Layers handles GET /tanks/:tankId/layers
func (h *ReconciliationHandler) Layers(c *gin.Context) {
	tankID, ok := h.ParamID(c, "tankId")
	if !ok {
		return
	}
	var q dto.LayerQuery
	if !h.BindQuery(c, &q) {
		return
	}
	layers, err := h.engine.Layers(c.Request.Context(), tankID, q.IncludeExhausted)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewList(layers, dto.FromLayer))
}

// Consumption handles GET /fifo/consumption
func (h *ReconciliationHandler) Consumption(c *gin.Context) {
	var q dto.ConsumptionQuery
	if !h.BindQuery(c, &q) {
		return
	}
	r, err := q.RangeQuery.Parse()
	if err != nil {
		h.Error(c, err)
		return
	}
	recID, err := dto.ParseOptionalID("reconciliationId", q.ReconciliationID)
	if err != nil {
		h.Error(c, err)
		return
	}
	logs, err := h.engine.Consumption(c.Request.Context(), fifo.ConsumptionFilter{
		ReconciliationID: recID,
		StationID:        r.StationID,
		TankID:           r.TankID,
		From:             r.From,
		To:               r.To,
		Limit:            r.Limit,
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewList(logs, dto.FromConsumption))
}
