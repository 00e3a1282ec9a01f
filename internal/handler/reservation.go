package handler

// This file defines HTTP handlers for reservations.  Every operation runs
// inside the tenant of the caller: the parking id comes from the access
// token, never from the request body.

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/service"
)

// ReservationService is what the handlers need from the service layer.
type ReservationService interface {
	Create(ctx context.Context, in service.CreateInput, who model.Identity) (model.ReservationResponse, error)
	Update(ctx context.Context, id uint64, in service.UpdateInput, who model.Identity) (model.ReservationResponse, error)
	Transition(ctx context.Context, id uint64, status string, who model.Identity) (model.ReservationResponse, error)
	Get(ctx context.Context, id uint64, who model.Identity) (model.ReservationResponse, error)
	Delete(ctx context.Context, id uint64, who model.Identity) (model.ReservationResponse, error)
	List(ctx context.Context, q service.ListQuery, who model.Identity) (service.Page, error)
	StatusSummary(ctx context.Context, parkingID *uint64, who model.Identity) (model.StatusSummary, error)
	Availability(ctx context.Context, parkingID uint64, start, end string, who model.Identity) (service.Availability, error)
}

// ReservationHandler serves /v1/reservations and the availability query.
type ReservationHandler struct {
	Svc ReservationService
}

func NewReservationHandler(svc ReservationService) *ReservationHandler {
	if svc == nil {
		panic("nil service passed to NewReservationHandler")
	}
	return &ReservationHandler{Svc: svc}
}

type createReservationReq struct {
	UserID           uint64 `json:"userId"`
	VehicleID        uint64 `json:"vehicleId"`
	ReservationStart string `json:"reservationStart"`
	ReservationEnd   string `json:"reservationEnd"`
}

type updateReservationReq struct {
	UserID           *uint64 `json:"userId"`
	VehicleID        *uint64 `json:"vehicleId"`
	ReservationStart *string `json:"reservationStart"`
	ReservationEnd   *string `json:"reservationEnd"`
}

type statusReq struct {
	Status string `json:"status"`
}

// Create handles POST /v1/reservations.
func (h *ReservationHandler) Create(c echo.Context) error {
	who, err := identity(c)
	if err != nil {
		return err
	}
	var req createReservationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.Svc.Create(ctx, service.CreateInput{
		UserID:           req.UserID,
		VehicleID:        req.VehicleID,
		ReservationStart: req.ReservationStart,
		ReservationEnd:   req.ReservationEnd,
	}, who)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// List handles GET /v1/reservations?page=&perPage=&reservationStart=&reservationEnd=.
func (h *ReservationHandler) List(c echo.Context) error {
	who, err := identity(c)
	if err != nil {
		return err
	}
	var q service.ListQuery
	for name, dst := range map[string]*int{"page": &q.Page, "perPage": &q.PerPage} {
		raw := c.QueryParam(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": name + " must be a positive integer."})
		}
		*dst = n
	}
	if v := c.QueryParam("reservationStart"); v != "" {
		q.ReservationStart = &v
	}
	if v := c.QueryParam("reservationEnd"); v != "" {
		q.ReservationEnd = &v
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	page, err := h.Svc.List(ctx, q, who)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

// StatusSummary handles GET /v1/reservations/status-summary[?parkingId=].
func (h *ReservationHandler) StatusSummary(c echo.Context) error {
	who, err := identity(c)
	if err != nil {
		return err
	}
	var parkingID *uint64
	if raw := c.QueryParam("parkingId"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 1 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "parkingId must be a positive integer."})
		}
		pid := uint64(n)
		parkingID = &pid
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sum, err := h.Svc.StatusSummary(ctx, parkingID, who)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, sum)
}

// Get handles GET /v1/reservations/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
	who, err := identity(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.Svc.Get(ctx, id, who)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Update handles PATCH /v1/reservations/:id.
func (h *ReservationHandler) Update(c echo.Context) error {
	who, err := identity(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req updateReservationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.Svc.Update(ctx, id, service.UpdateInput{
		UserID:           req.UserID,
		VehicleID:        req.VehicleID,
		ReservationStart: req.ReservationStart,
		ReservationEnd:   req.ReservationEnd,
	}, who)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusAccepted, res)
}

// UpdateStatus handles PATCH /v1/reservations/status/:id.
func (h *ReservationHandler) UpdateStatus(c echo.Context) error {
	who, err := identity(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req statusReq
	if err := c.Bind(&req); err != nil || req.Status == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status is required"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.Svc.Transition(ctx, id, req.Status, who)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Delete handles DELETE /v1/reservations/:id.
func (h *ReservationHandler) Delete(c echo.Context) error {
	who, err := identity(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.Svc.Delete(ctx, id, who)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusAccepted, res)
}

// Availability handles GET /v1/parkings/:id/availability?reservationStart=&reservationEnd=.
func (h *ReservationHandler) Availability(c echo.Context) error {
	who, err := identity(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	av, err := h.Svc.Availability(ctx, id, c.QueryParam("reservationStart"), c.QueryParam("reservationEnd"), who)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, av)
}
