package service

import (
	"context"
	"errors"
	"log"
	"math"
	"time"

	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/queue"
	"github.com/iliyamo/parking-reservation/internal/repository"
	"github.com/iliyamo/parking-reservation/internal/utils"
)

// Auditor receives audit events.  Publishing must not block a request for
// long; failures are the auditor's business.
type Auditor interface {
	Publish(ctx context.Context, ev queue.AuditEvent) error
}

// CacheInvalidator drops cached responses of a tenant after a write.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, parkingID uint64) error
}

const (
	defaultPerPage = 50
	maxPerPage     = 100
	// maxOffset bounds (page-1)*perPage so it cannot overflow.
	maxOffset = math.MaxInt32
)

// ReservationService orchestrates reservation commands and queries: it
// validates input, normalizes time zones, runs the availability check and
// the lifecycle state machine, and maps rows to the public projection.
type ReservationService struct {
	store   repository.ReservationStore
	zone    *utils.Zone
	checker *AvailabilityChecker
	life    Lifecycle
	audit   Auditor
	cache   CacheInvalidator
}

// NewReservationService wires the service.  audit and cache may be nil.
func NewReservationService(store repository.ReservationStore, zone *utils.Zone, audit Auditor, cache CacheInvalidator) *ReservationService {
	return &ReservationService{
		store:   store,
		zone:    zone,
		checker: NewAvailabilityChecker(zone),
		audit:   audit,
		cache:   cache,
	}
}

// CreateInput is a new reservation as sent by a client.  Dates are
// ISO-8601 strings.
type CreateInput struct {
	UserID           uint64
	VehicleID        uint64
	ReservationStart string
	ReservationEnd   string
}

// UpdateInput is a partial update; nil fields are left unchanged.
type UpdateInput struct {
	UserID           *uint64
	VehicleID        *uint64
	ReservationStart *string
	ReservationEnd   *string
}

// ListQuery selects a page of reservations.  Zero Page/PerPage mean the
// defaults; the optional bounds keep reservations overlapping the range.
type ListQuery struct {
	Page             int
	PerPage          int
	ReservationStart *string
	ReservationEnd   *string
}

// Page is one page of a listing.
type Page struct {
	Data  []model.ReservationResponse `json:"data"`
	Total int64                       `json:"total"`
}

// Availability is the answer of the read-only availability query.
type Availability struct {
	ParkingID   uint64 `json:"parkingId"`
	TotalSpots  int    `json:"totalSpots"`
	Overlapping int    `json:"overlapping"`
	Available   bool   `json:"available"`
}

// Create books a spot.  The parking row is locked for the duration of the
// capacity check and the insert, so concurrent bookings of the same parking
// are admitted one at a time and cannot overbook it.
func (s *ReservationService) Create(ctx context.Context, in CreateInput, who model.Identity) (model.ReservationResponse, error) {
	if in.UserID == 0 {
		return model.ReservationResponse{}, newError(ErrValidation, "User ID must be at least 1.")
	}
	if in.VehicleID == 0 {
		return model.ReservationResponse{}, newError(ErrValidation, "Vehicle ID must be at least 1.")
	}
	iv, err := parseInterval(in.ReservationStart, in.ReservationEnd)
	if err != nil {
		return model.ReservationResponse{}, err
	}

	var id uint64
	err = s.store.InTx(ctx, func(tx repository.ReservationOps) error {
		if err := s.lockParking(ctx, tx, who.ParkingID); err != nil {
			return err
		}
		if err := s.checker.Check(ctx, tx, who.ParkingID, iv, 0); err != nil {
			return err
		}
		var err error
		id, err = tx.CreateReservation(ctx, repository.NewReservation{
			ParkingID: who.ParkingID,
			UserID:    in.UserID,
			VehicleID: in.VehicleID,
			Start:     s.zone.ToStore(iv.Start),
			End:       s.zone.ToStore(iv.End),
			Status:    model.StatusReserved,
			CreatedBy: who.UserID,
		})
		return err
	})
	if err != nil {
		return model.ReservationResponse{}, s.fail(ctx, "create", who, 0, err)
	}

	r, err := s.load(ctx, s.store, repository.Scope{ID: id, ParkingID: who.ParkingID})
	if err != nil {
		return model.ReservationResponse{}, s.fail(ctx, "create", who, id, err)
	}
	s.written(ctx, queue.EventReservationCreated, who, r, "")
	return r.ToResponse(), nil
}

// Update changes a reservation.  When only one bound of the interval is
// given the other is taken from the stored reservation of the same tenant,
// and the combined interval is checked for capacity again with the
// reservation itself left out of the count.
func (s *ReservationService) Update(ctx context.Context, id uint64, in UpdateInput, who model.Identity) (model.ReservationResponse, error) {
	patch := repository.ReservationPatch{UserID: in.UserID, VehicleID: in.VehicleID}
	if in.UserID != nil && *in.UserID == 0 {
		return model.ReservationResponse{}, newError(ErrValidation, "User ID must be at least 1.")
	}
	if in.VehicleID != nil && *in.VehicleID == 0 {
		return model.ReservationResponse{}, newError(ErrValidation, "Vehicle ID must be at least 1.")
	}
	start, err := parseOptional(in.ReservationStart, "Reservation start")
	if err != nil {
		return model.ReservationResponse{}, err
	}
	end, err := parseOptional(in.ReservationEnd, "Reservation end")
	if err != nil {
		return model.ReservationResponse{}, err
	}
	if patch.Empty() && start == nil && end == nil {
		return model.ReservationResponse{}, newError(ErrValidation, "At least one field must be provided.")
	}

	scope := repository.Scope{ID: id, ParkingID: who.ParkingID}
	err = s.store.InTx(ctx, func(tx repository.ReservationOps) error {
		if start != nil || end != nil {
			if err := s.lockParking(ctx, tx, who.ParkingID); err != nil {
				return err
			}
			cur, err := s.load(ctx, tx, scope)
			if err != nil {
				return err
			}
			iv := cur.Interval()
			if start != nil {
				iv.Start = *start
			}
			if end != nil {
				iv.End = *end
			}
			if iv, err = model.NewInterval(iv.Start, iv.End); err != nil {
				return newError(ErrValidation, "%s", err.Error())
			}
			if err := s.checker.Check(ctx, tx, who.ParkingID, iv, id); err != nil {
				return err
			}
			if start != nil {
				v := s.zone.ToStore(iv.Start)
				patch.Start = &v
			}
			if end != nil {
				v := s.zone.ToStore(iv.End)
				patch.End = &v
			}
		}
		n, err := tx.UpdateReservation(ctx, scope, who.UserID, patch)
		if err != nil {
			return err
		}
		if n == 0 {
			return newError(ErrNotFound, msgReservationAbsent, id)
		}
		return nil
	})
	if err != nil {
		return model.ReservationResponse{}, s.fail(ctx, "update", who, id, err)
	}

	r, err := s.load(ctx, s.store, scope)
	if err != nil {
		return model.ReservationResponse{}, s.fail(ctx, "update", who, id, err)
	}
	s.written(ctx, queue.EventReservationUpdated, who, r, "")
	return r.ToResponse(), nil
}

// Transition changes the status of a reservation through the lifecycle
// state machine and returns the updated reservation.
func (s *ReservationService) Transition(ctx context.Context, id uint64, rawStatus string, who model.Identity) (model.ReservationResponse, error) {
	target, err := model.ParseStatus(rawStatus)
	if err != nil {
		return model.ReservationResponse{}, newError(ErrValidation, "%s", err.Error())
	}
	scope := repository.Scope{ID: id, ParkingID: who.ParkingID}
	from, err := s.life.Transition(ctx, s.store, scope, who.UserID, target)
	if err != nil {
		return model.ReservationResponse{}, s.fail(ctx, "transition", who, id, err)
	}
	r, err := s.load(ctx, s.store, scope)
	if err != nil {
		return model.ReservationResponse{}, s.fail(ctx, "transition", who, id, err)
	}
	s.written(ctx, queue.EventStatusChanged, who, r, from)
	return r.ToResponse(), nil
}

// Get returns one reservation of the caller's tenant.
func (s *ReservationService) Get(ctx context.Context, id uint64, who model.Identity) (model.ReservationResponse, error) {
	r, err := s.load(ctx, s.store, repository.Scope{ID: id, ParkingID: who.ParkingID})
	if err != nil {
		return model.ReservationResponse{}, s.fail(ctx, "get", who, id, err)
	}
	return r.ToResponse(), nil
}

// Delete soft-deletes a reservation and returns it as it was.  A deleted
// reservation no longer counts against capacity.
func (s *ReservationService) Delete(ctx context.Context, id uint64, who model.Identity) (model.ReservationResponse, error) {
	scope := repository.Scope{ID: id, ParkingID: who.ParkingID}
	var r model.Reservation
	err := s.store.InTx(ctx, func(tx repository.ReservationOps) error {
		var err error
		if r, err = s.load(ctx, tx, scope); err != nil {
			return err
		}
		n, err := tx.SoftDeleteReservation(ctx, scope, who.UserID)
		if err != nil {
			return err
		}
		if n == 0 {
			return newError(ErrPreconditionFailed, msgPrecondition)
		}
		return nil
	})
	if err != nil {
		return model.ReservationResponse{}, s.fail(ctx, "delete", who, id, err)
	}
	s.written(ctx, queue.EventReservationDeleted, who, r, "")
	return r.ToResponse(), nil
}

// List returns one page of the tenant's reservations ordered by start.
func (s *ReservationService) List(ctx context.Context, q ListQuery, who model.Identity) (Page, error) {
	if q.Page < 0 {
		return Page{}, newError(ErrValidation, "page must be a positive integer.")
	}
	if q.PerPage < 0 || q.PerPage > maxPerPage {
		return Page{}, newError(ErrValidation, "perPage must be between 1 and %d.", maxPerPage)
	}
	if q.Page == 0 {
		q.Page = 1
	}
	if q.PerPage == 0 {
		q.PerPage = defaultPerPage
	}
	if q.Page-1 > maxOffset/q.PerPage {
		return Page{}, newError(ErrValidation, "page is out of range.")
	}
	start, err := parseOptional(q.ReservationStart, "Reservation start")
	if err != nil {
		return Page{}, err
	}
	end, err := parseOptional(q.ReservationEnd, "Reservation end")
	if err != nil {
		return Page{}, err
	}

	f := repository.ListFilter{
		ParkingID: who.ParkingID,
		Limit:     q.PerPage,
		Offset:    (q.Page - 1) * q.PerPage,
	}
	if start != nil && end != nil {
		if _, err := model.NewInterval(*start, *end); err != nil {
			return Page{}, newError(ErrValidation, "%s", err.Error())
		}
	}
	if start != nil {
		v := s.zone.ToStore(*start)
		f.Start = &v
	}
	if end != nil {
		v := s.zone.ToStore(*end)
		f.End = &v
	}

	rows, total, err := s.store.List(ctx, f)
	if err != nil {
		return Page{}, s.fail(ctx, "list", who, 0, err)
	}
	page := Page{Data: make([]model.ReservationResponse, 0, len(rows)), Total: total}
	for _, r := range rows {
		page.Data = append(page.Data, s.fromStore(r).ToResponse())
	}
	return page, nil
}

// StatusSummary counts the tenant's reservations per status.  Every status
// is present in the result.  parkingID, when given, must be the caller's
// own parking.
func (s *ReservationService) StatusSummary(ctx context.Context, parkingID *uint64, who model.Identity) (model.StatusSummary, error) {
	if parkingID != nil && *parkingID != who.ParkingID {
		return nil, newError(ErrForbidden, "You can only summarize reservations of your own parking.")
	}
	pid := who.ParkingID
	counts, err := s.store.StatusCounts(ctx, &pid)
	if err != nil {
		return nil, s.fail(ctx, "status-summary", who, 0, err)
	}
	out := model.NewStatusSummary()
	for st, n := range counts {
		if _, known := out[st]; known {
			out[st] = n
		}
	}
	return out, nil
}

// Availability reports capacity and occupancy of a parking for an
// interval without reserving anything.
func (s *ReservationService) Availability(ctx context.Context, parkingID uint64, startRaw, endRaw string, who model.Identity) (Availability, error) {
	if parkingID != who.ParkingID {
		return Availability{}, newError(ErrForbidden, "You can only query your own parking.")
	}
	iv, err := parseInterval(startRaw, endRaw)
	if err != nil {
		return Availability{}, err
	}
	occ, err := s.checker.Inspect(ctx, s.store, parkingID, iv, 0)
	if err != nil {
		return Availability{}, s.fail(ctx, "availability", who, 0, err)
	}
	return Availability{
		ParkingID:   parkingID,
		TotalSpots:  occ.TotalSpots,
		Overlapping: occ.Overlapping,
		Available:   occ.Overlapping < occ.TotalSpots,
	}, nil
}

func (s *ReservationService) lockParking(ctx context.Context, ops repository.ReservationOps, parkingID uint64) error {
	err := ops.LockParking(ctx, parkingID)
	if errors.Is(err, repository.ErrNotFound) {
		return newError(ErrNotFound, msgParkingMissing)
	}
	return err
}

// load fetches a reservation, converts its interval to UTC and re-checks
// the date invariant.
func (s *ReservationService) load(ctx context.Context, ops repository.ReservationOps, scope repository.Scope) (model.Reservation, error) {
	r, err := ops.FindReservation(ctx, scope)
	if errors.Is(err, repository.ErrNotFound) {
		return r, newError(ErrNotFound, msgReservationAbsent, scope.ID)
	}
	if err != nil {
		return r, err
	}
	r = s.fromStore(r)
	if err := r.Validate(); err != nil {
		return r, newError(ErrValidation, "Reservation %d has an invalid interval.", r.ID)
	}
	return r, nil
}

func (s *ReservationService) fromStore(r model.Reservation) model.Reservation {
	r.ReservationStart = s.zone.FromStore(r.ReservationStart)
	r.ReservationEnd = s.zone.FromStore(r.ReservationEnd)
	return r
}

// fail passes user-facing errors through.  Anything else is an
// infrastructure failure: it is logged and audited once with full detail
// and replaced by a generic persistence error.
func (s *ReservationService) fail(ctx context.Context, op string, who model.Identity, reservationID uint64, err error) error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	log.Printf("reservation-service: %s failed (parking=%d user=%d reservation=%d): %v",
		op, who.ParkingID, who.UserID, reservationID, err)
	ev := queue.NewAuditEvent(queue.EventPersistenceError)
	ev.Operation = op
	ev.ParkingID = who.ParkingID
	ev.UserID = who.UserID
	ev.ReservationID = reservationID
	ev.Detail = err.Error()
	s.publish(ctx, ev)
	return newError(ErrPersistence, msgPersistence)
}

// written records a successful write: audit event plus cache invalidation.
func (s *ReservationService) written(ctx context.Context, eventType string, who model.Identity, r model.Reservation, from model.Status) {
	ev := queue.NewAuditEvent(eventType)
	ev.ParkingID = r.ParkingID
	ev.UserID = who.UserID
	ev.ReservationID = r.ID
	ev.ToStatus = string(r.Status)
	ev.FromStatus = string(from)
	ev.Start = r.ReservationStart.UTC().Format(time.RFC3339)
	ev.End = r.ReservationEnd.UTC().Format(time.RFC3339)
	ev.LocalWindow = s.zone.Local(r.ReservationStart) + ".." + s.zone.Local(r.ReservationEnd)
	s.publish(ctx, ev)

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, r.ParkingID); err != nil {
			log.Printf("reservation-service: cache invalidation for parking %d failed: %v", r.ParkingID, err)
		}
	}
}

func (s *ReservationService) publish(ctx context.Context, ev queue.AuditEvent) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Publish(context.WithoutCancel(ctx), ev); err != nil {
		log.Printf("reservation-service: audit %s dropped: %v", ev.Type, err)
	}
}

func parseInterval(startRaw, endRaw string) (model.Interval, error) {
	if startRaw == "" {
		return model.Interval{}, newError(ErrValidation, "Reservation start is required.")
	}
	if endRaw == "" {
		return model.Interval{}, newError(ErrValidation, "Reservation end is required.")
	}
	start, err := model.ParseTimestamp(startRaw)
	if err != nil {
		return model.Interval{}, newError(ErrValidation, "Reservation start %s.", err.Error())
	}
	end, err := model.ParseTimestamp(endRaw)
	if err != nil {
		return model.Interval{}, newError(ErrValidation, "Reservation end %s.", err.Error())
	}
	iv, err := model.NewInterval(start, end)
	if err != nil {
		return model.Interval{}, newError(ErrValidation, "%s", err.Error())
	}
	return iv, nil
}

func parseOptional(raw *string, field string) (*time.Time, error) {
	if raw == nil {
		return nil, nil
	}
	t, err := model.ParseTimestamp(*raw)
	if err != nil {
		return nil, newError(ErrValidation, "%s %s.", field, err.Error())
	}
	return &t, nil
}
