package handlers

import (
	"github.com/gin-gonic/gin"

	"fuelstation/internal/domain/variance"
	"fuelstation/internal/infrastructure/http/v1/dto"
)

// VarianceHandler handles variance notifications and their investigation workflow.
type VarianceHandler struct {
	*BaseHandler
	service *variance.Service
}

// NewVarianceHandler creates a new variance handler.
func NewVarianceHandler(base *BaseHandler, service *variance.Service) *VarianceHandler {
	return &VarianceHandler{BaseHandler: base, service: service}
}

// List handles GET /variance-notifications
func (h *VarianceHandler) List(c *gin.Context) {
	var q dto.VarianceQuery
	if !h.BindQuery(c, &q) {
		return
	}
	r, err := q.RangeQuery.Parse()
	if err != nil {
		h.Error(c, err)
		return
	}
	filter := variance.Filter{
		StationID: r.StationID,
		TankID:    r.TankID,
		From:      r.From,
		To:        r.To,
		Limit:     r.Limit,
	}
	if q.Status != "" {
		st := variance.Status(q.Status)
		filter.Status = &st
	}
	if q.Severity != "" {
		sev := variance.Severity(q.Severity)
		filter.Severity = &sev
	}

	items, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewList(items, dto.FromNotification))
}

// Get handles GET /variance-notifications/:id
func (h *VarianceHandler) Get(c *gin.Context) {
	notificationID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	n, err := h.service.Get(c.Request.Context(), notificationID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromNotification(*n))
}

// Transition handles POST /variance-notifications/:id/status
func (h *VarianceHandler) Transition(c *gin.Context) {
	notificationID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.VarianceStatusRequest
	if !h.BindJSON(c, &req) {
		return
	}
	n, err := h.service.Transition(c.Request.Context(), notificationID, variance.Status(req.Status), req.Notes)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromNotification(*n))
}
