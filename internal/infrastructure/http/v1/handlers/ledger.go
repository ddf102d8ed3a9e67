package handlers

import (
	"github.com/gin-gonic/gin"

	"fuelstation/internal/domain/ledger"
	"fuelstation/internal/infrastructure/http/v1/dto"
)

// LedgerHandler exposes ledger postings read-only.
type LedgerHandler struct {
	*BaseHandler
	service *ledger.Service
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(base *BaseHandler, service *ledger.Service) *LedgerHandler {
	return &LedgerHandler{BaseHandler: base, service: service}
}

func (h *LedgerHandler) filter(c *gin.Context) (ledger.Filter, bool) {
	var q dto.LedgerQuery
	if !h.BindQuery(c, &q) {
		return ledger.Filter{}, false
	}
	f, err := q.Parse()
	if err != nil {
		h.Error(c, err)
		return ledger.Filter{}, false
	}
	return f, true
}

// Entries handles GET /ledger/entries
func (h *LedgerHandler) Entries(c *gin.Context) {
	f, ok := h.filter(c)
	if !ok {
		return
	}
	entries, err := h.service.Entries(c.Request.Context(), f)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewList(entries, dto.FromLedgerEntry))
}

// Balance handles GET /ledger/balance
func (h *LedgerHandler) Balance(c *gin.Context) {
	f, ok := h.filter(c)
	if !ok {
		return
	}
	b, err := h.service.Balance(c.Request.Context(), f)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromBalance(b))
}
