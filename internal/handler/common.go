package handler // handler defines http handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-reservation/internal/middleware"
	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/repository"
	"github.com/iliyamo/parking-reservation/internal/service"
)

// HTTPErrorHandler renders errors returned by handlers and middleware as
// {"error": message}, the shape every handler uses for its own responses.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		_ = writeError(c, err)
		return
	}
	msg, ok := he.Message.(string)
	if !ok {
		msg = fmt.Sprint(he.Message)
	}
	_ = c.JSON(he.Code, echo.Map{"error": msg})
}

// parseID reads a positive integer path parameter.
func parseID(c echo.Context, name string) (uint64, error) {
	raw := c.Param(name)
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("%q is not a valid number.", raw))
	}
	if n < 1 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" must be a positive integer.")
	}
	return uint64(n), nil
}

// identity returns the caller stored by JWTAuth.  Routes are always behind
// JWTAuth, so a missing identity is answered with 401.
func identity(c echo.Context) (model.Identity, error) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return id, echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return id, nil
}

// writeError maps service and repository errors to HTTP responses.
// Anything unrecognised is logged and reported as a database error.
func writeError(c echo.Context, err error) error {
	var se *service.Error
	if errors.As(err, &se) {
		return c.JSON(statusFor(se.Kind), echo.Map{"error": se.Message})
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, repository.ErrDuplicate):
		return c.JSON(http.StatusConflict, echo.Map{"error": "already exists"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflict"})
	}
	log.Printf("handler: %s %s: %v", c.Request().Method, c.Path(), err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
}

func statusFor(kind error) int {
	switch kind {
	case service.ErrNotFound:
		return http.StatusNotFound
	case service.ErrForbidden:
		return http.StatusForbidden
	case service.ErrPersistence:
		return http.StatusInternalServerError
	default: // validation, capacity, transition, precondition
		return http.StatusBadRequest
	}
}
