package router

// This file registers the reservation routes.  Role requirements follow
// the operator model: clients book and move their own reservations
// through the lifecycle, employers read, administrators do everything.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-reservation/internal/handler"
	"github.com/iliyamo/parking-reservation/internal/middleware"
	"github.com/iliyamo/parking-reservation/internal/model"
)

// RegisterReservations mounts /v1/reservations.  cache wraps the read
// routes only; pass nil to disable response caching.
func RegisterReservations(e *echo.Echo, h *handler.ReservationHandler, jwtSecret string, cache echo.MiddlewareFunc) {
	g := e.Group("/v1/reservations", middleware.JWTAuth(jwtSecret))
	reads := []echo.MiddlewareFunc{}
	if cache != nil {
		reads = append(reads, cache)
	}
	admin := middleware.RequireRole(model.RoleAdmin)

	g.POST("", h.Create, middleware.RequireRole(model.RoleClient, model.RoleAdmin))
	g.GET("", h.List, append([]echo.MiddlewareFunc{middleware.RequireRole(model.RoleEmployer, model.RoleAdmin)}, reads...)...)
	// static segment before :id
	g.GET("/status-summary", h.StatusSummary, append([]echo.MiddlewareFunc{admin}, reads...)...)
	g.PATCH("/status/:id", h.UpdateStatus, middleware.RequireRole(model.RoleClient, model.RoleAdmin))
	g.GET("/:id", h.Get, append([]echo.MiddlewareFunc{admin}, reads...)...)
	g.PATCH("/:id", h.Update, admin)
	g.DELETE("/:id", h.Delete, admin)
}
