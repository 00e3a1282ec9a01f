package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"net/http" // HTTP status codes for responses
	"strings"  // string utilities for prefix checking and trimming

	"github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

	"github.com/iliyamo/parking-reservation/internal/utils"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects the caller's identity into the request context.  The provided
// secret must match the one used when issuing tokens.  Downstream handlers
// read the identity with IdentityFrom; the individual values are also set
// under "user_id" (uint64), "parking_id" (uint64) and "role" (string).
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// A valid header starts with "Bearer " followed by the JWT.
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			// Signature, algorithm, expiry and the sub/parking_id claims are
			// all checked by ParseAccessToken.
			id, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			c.Set(identityKey, id)
			c.Set("user_id", id.UserID)
			c.Set("parking_id", id.ParkingID)
			c.Set("role", id.Role)
			return next(c)
		}
	}
}
