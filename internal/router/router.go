package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/parking-reservation/internal/handler"    // import the handlers that implement business logic
	"github.com/iliyamo/parking-reservation/internal/middleware" // import middleware for JWT authentication and role enforcement
	"github.com/iliyamo/parking-reservation/internal/model"
)

// allRoles is every role an access token may carry.
var allRoles = []string{model.RoleAdmin, model.RoleEmployer, model.RoleClient}

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check, which
// pings the database.
func RegisterRoutes(e *echo.Echo, db *sqlx.DB) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterAuth registers all authentication-related routes.  Token
// operations live under /v1/auth and need no session; /v1/me requires a
// valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/login", a.Login)
	// rotates the refresh token
	g.POST("/refresh", a.Refresh)
	// new access token only
	g.POST("/refresh-access", a.RefreshAccess)
	// accepts a refresh_token body and/or a bearer token
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret), middleware.RequireRole(allRoles...))
	auth.GET("/me", a.Me)
}
