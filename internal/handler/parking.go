package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/repository"
	"github.com/iliyamo/parking-reservation/internal/service"
)

// ParkingHandler lets administrators manage parking lots.  Reading and
// changing a lot is limited to the caller's own parking.
type ParkingHandler struct {
	Repo  *repository.ParkingRepo
	Cache service.CacheInvalidator // optional
}

func NewParkingHandler(repo *repository.ParkingRepo, cache service.CacheInvalidator) *ParkingHandler {
	if repo == nil {
		panic("nil repository passed to NewParkingHandler")
	}
	return &ParkingHandler{Repo: repo, Cache: cache}
}

type createParkingReq struct {
	Name       string `json:"name"`
	TotalSpots *int   `json:"totalSpots"`
}

type updateParkingReq struct {
	Name       *string `json:"name"`
	TotalSpots *int    `json:"totalSpots"`
}

// Create handles POST /v1/parkings.
func (h *ParkingHandler) Create(c echo.Context) error {
	who, err := identity(c)
	if err != nil {
		return err
	}
	var req createParkingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}
	if req.TotalSpots == nil || *req.TotalSpots < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "totalSpots must be zero or more"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p, err := h.Repo.Create(ctx, req.Name, *req.TotalSpots, who.UserID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, p.ToResponse())
}

// Get handles GET /v1/parkings/:id.
func (h *ParkingHandler) Get(c echo.Context) error {
	_, id, err := h.ownParking(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p, err := h.Repo.GetByID(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, p.ToResponse())
}

// Update handles PATCH /v1/parkings/:id.  Lowering totalSpots never
// touches existing reservations; it only affects later availability checks.
func (h *ParkingHandler) Update(c echo.Context) error {
	who, id, err := h.ownParking(c)
	if err != nil {
		return err
	}
	var req updateParkingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Name == nil && req.TotalSpots == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "At least one field must be provided."})
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "name must not be empty"})
		}
		req.Name = &name
	}
	if req.TotalSpots != nil && *req.TotalSpots < 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "totalSpots must be zero or more"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	n, err := h.Repo.Update(ctx, id, who.UserID, repository.ParkingPatch{Name: req.Name, TotalSpots: req.TotalSpots})
	if err != nil {
		return writeError(c, err)
	}
	if n == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "The parking does not exist."})
	}
	h.invalidate(ctx, id)

	p, err := h.Repo.GetByID(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusAccepted, p.ToResponse())
}

// Delete handles DELETE /v1/parkings/:id.  A parking with active
// reservations is kept (409).
func (h *ParkingHandler) Delete(c echo.Context) error {
	who, id, err := h.ownParking(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Repo.SoftDelete(ctx, id, who.UserID); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "The parking still has active reservations."})
		}
		return writeError(c, err)
	}
	h.invalidate(ctx, id)
	return c.NoContent(http.StatusAccepted)
}

// ownParking parses :id and checks it is the caller's tenant.
func (h *ParkingHandler) ownParking(c echo.Context) (model.Identity, uint64, error) {
	who, err := identity(c)
	if err != nil {
		return who, 0, err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return who, 0, err
	}
	if id != who.ParkingID {
		return who, 0, echo.NewHTTPError(http.StatusForbidden, "forbidden")
	}
	return who, id, nil
}

func (h *ParkingHandler) invalidate(ctx context.Context, id uint64) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.Invalidate(ctx, id); err != nil {
		log.Printf("parking-handler: cache invalidation for parking %d failed: %v", id, err)
	}
}
