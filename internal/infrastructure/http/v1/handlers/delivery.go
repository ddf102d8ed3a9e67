package handlers

import (
	"github.com/gin-gonic/gin"

	"fuelstation/internal/core/id"
	"fuelstation/internal/core/types"
	"fuelstation/internal/domain/delivery"
	"fuelstation/internal/domain/registry"
	"fuelstation/internal/infrastructure/http/v1/dto"
)

// DeliveryHandler handles fuel deliveries and the tank list.
type DeliveryHandler struct {
	*BaseHandler
	service  *delivery.Service
	registry *registry.Service
}

// NewDeliveryHandler creates a new delivery handler.
func NewDeliveryHandler(base *BaseHandler, service *delivery.Service, reg *registry.Service) *DeliveryHandler {
	return &DeliveryHandler{BaseHandler: base, service: service, registry: reg}
}

// Create handles POST /deliveries
func (h *DeliveryHandler) Create(c *gin.Context) {
	var req dto.DeliveryRequest
	if !h.BindJSON(c, &req) {
		return
	}
	tankID, err := id.ParseField("tankId", req.TankID)
	if err != nil {
		h.Error(c, err)
		return
	}
	date, err := types.ParseDate(req.DeliveryDate)
	if err != nil {
		h.Error(c, err)
		return
	}
	volume, err := dto.ParseDecimal("volumeLiters", req.VolumeLiters)
	if err != nil {
		h.Error(c, err)
		return
	}
	cost, err := dto.ParseDecimal("costPerLiterUgx", req.CostPerLiterUGX)
	if err != nil {
		h.Error(c, err)
		return
	}

	res, err := h.service.RecordDelivery(c.Request.Context(), delivery.Input{
		TankID:            tankID,
		Volume:            volume,
		CostPerLiter:      cost,
		DeliveryDate:      date,
		SupplierReference: req.SupplierReference,
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromDeliveryResult(res))
}

// List handles GET /deliveries
func (h *DeliveryHandler) List(c *gin.Context) {
	var q dto.RangeQuery
	if !h.BindQuery(c, &q) {
		return
	}
	r, err := q.Parse()
	if err != nil {
		h.Error(c, err)
		return
	}
	items, err := h.service.List(c.Request.Context(), delivery.Filter{
		StationID: r.StationID,
		TankID:    r.TankID,
		From:      r.From,
		To:        r.To,
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewList(items, dto.FromDelivery))
}

// Tanks handles GET /tanks
func (h *DeliveryHandler) Tanks(c *gin.Context) {
	var q dto.RangeQuery
	if !h.BindQuery(c, &q) {
		return
	}
	r, err := q.Parse()
	if err != nil {
		h.Error(c, err)
		return
	}
	tanks, err := h.registry.ListTanks(c.Request.Context(), r.StationID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewList(tanks, dto.FromTank))
}
