package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-reservation/internal/handler"
	"github.com/iliyamo/parking-reservation/internal/middleware"
	"github.com/iliyamo/parking-reservation/internal/model"
)

// RegisterParkings mounts /v1/parkings.  Availability is served by the
// reservation handler since it runs the same capacity check as booking,
// and is never cached.
func RegisterParkings(e *echo.Echo, p *handler.ParkingHandler, r *handler.ReservationHandler, jwtSecret string) {
	g := e.Group("/v1/parkings", middleware.JWTAuth(jwtSecret))
	admin := middleware.RequireRole(model.RoleAdmin)

	g.POST("", p.Create, admin)
	g.GET("/:id", p.Get, middleware.RequireRole(model.RoleAdmin, model.RoleEmployer))
	g.PATCH("/:id", p.Update, admin)
	g.DELETE("/:id", p.Delete, admin)
	g.GET("/:id/availability", r.Availability, middleware.RequireRole(allRoles...))
}
