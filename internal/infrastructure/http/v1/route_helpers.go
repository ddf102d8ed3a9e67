package v1

import (
	"github.com/gin-gonic/gin"

	appctx "fuelstation/internal/core/context"
	"fuelstation/internal/infrastructure/http/v1/handlers"
	"fuelstation/internal/infrastructure/http/v1/middleware"
)

// adminOnly guards the corrective reconciliation endpoints.
// The engine checks the role again, so this only rejects early.
var adminOnly = middleware.RequireRole(appctx.RoleAdmin)

// registerReadingRoutes registers meter reading and dip intake.
func registerReadingRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, s Services) {
	h := handlers.NewReadingsHandler(base, s.Readings, s.Engine)

	meters := rg.Group("/meters/:meterId/readings")
	meters.POST("/morning", h.MorningMeter)
	meters.POST("/evening", h.EveningMeter)

	tanks := rg.Group("/tanks/:tankId")
	tanks.POST("/dips/morning", h.MorningDip)
	tanks.POST("/dips/evening", h.EveningDip)
	tanks.GET("/readings", h.TankDay)
}

// registerDeliveryRoutes registers delivery intake and the tank list.
func registerDeliveryRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, s Services) {
	h := handlers.NewDeliveryHandler(base, s.Delivery, s.Registry)

	rg.GET("/tanks", h.Tanks)
	rg.GET("/deliveries", h.List)
	rg.POST("/deliveries", h.Create)
}

// registerReconciliationRoutes registers the engine, its admin operations and FIFO reads.
func registerReconciliationRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, s Services) {
	h := handlers.NewReconciliationHandler(base, s.Engine)

	recs := rg.Group("/reconciliations")
	recs.GET("", h.List)
	recs.GET("/gaps", h.Gaps)
	recs.GET("/:id", h.Get)
	recs.POST("/manual", adminOnly, h.Manual)
	recs.POST("/reprocess", adminOnly, h.Reprocess)

	tanks := rg.Group("/tanks/:tankId")
	tanks.GET("/reconciliation-state", h.State)
	tanks.GET("/layers", h.Layers)
	tanks.DELETE("/reconciliations/:date", adminOnly, h.Delete)

	rg.GET("/fifo/consumption", h.Consumption)
}

// registerVarianceRoutes registers variance notifications.
func registerVarianceRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, s Services) {
	h := handlers.NewVarianceHandler(base, s.Variance)

	g := rg.Group("/variance-notifications")
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.POST("/:id/status", middleware.RequireRole(appctx.RoleAdmin, appctx.RoleManager), h.Transition)
}

// registerLedgerRoutes registers ledger reads.
func registerLedgerRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, s Services) {
	h := handlers.NewLedgerHandler(base, s.Ledger)

	g := rg.Group("/ledger")
	g.GET("/entries", h.Entries)
	g.GET("/balance", h.Balance)
}
