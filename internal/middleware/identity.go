package middleware

// identity.go defines helpers shared across middleware files and handlers for
// reading the authenticated caller that JWTAuth stored in the Echo context.

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-reservation/internal/model"
)

const identityKey = "identity"

// IdentityFrom returns the caller set by JWTAuth.  ok is false on routes
// that are not behind JWTAuth.
func IdentityFrom(c echo.Context) (model.Identity, bool) {
	id, ok := c.Get(identityKey).(model.Identity)
	return id, ok && id.UserID != 0 && id.ParkingID != 0
}

// userID is the caller's id as a string for keys, or "guest".
func userID(c echo.Context) string {
	if id, ok := IdentityFrom(c); ok {
		return strconv.FormatUint(id.UserID, 10)
	}
	return "guest"
}
