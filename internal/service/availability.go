package service

import (
	"context"
	"errors"

	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/repository"
	"github.com/iliyamo/parking-reservation/internal/utils"
)

// AvailabilityChecker decides whether a parking has a free spot for an
// interval.  It only reads; reserving the spot is the caller's insert,
// which must run in the same transaction (after LockParking) to be safe
// against concurrent bookings.
type AvailabilityChecker struct {
	zone *utils.Zone
}

func NewAvailabilityChecker(zone *utils.Zone) *AvailabilityChecker {
	return &AvailabilityChecker{zone: zone}
}

// Inspect returns the capacity of the parking and how many occupying
// reservations overlap iv.  excludeID leaves one reservation out, which is
// how a reservation being rescheduled avoids competing with itself.
func (a *AvailabilityChecker) Inspect(ctx context.Context, ops repository.ReservationOps, parkingID uint64, iv model.Interval, excludeID uint64) (repository.Occupancy, error) {
	occ, err := ops.CountOverlapping(ctx, parkingID, a.zone.ToStore(iv.Start), a.zone.ToStore(iv.End), excludeID)
	if errors.Is(err, repository.ErrNotFound) {
		return occ, newError(ErrNotFound, msgParkingMissing)
	}
	return occ, err
}

// Check succeeds when at least one spot is free for the whole interval.
// It fails with ErrNotFound for an unknown parking and ErrCapacityExceeded
// when overlapping >= totalSpots (so a parking with zero spots is always
// full).
func (a *AvailabilityChecker) Check(ctx context.Context, ops repository.ReservationOps, parkingID uint64, iv model.Interval, excludeID uint64) error {
	occ, err := a.Inspect(ctx, ops, parkingID, iv, excludeID)
	if err != nil {
		return err
	}
	if occ.Overlapping >= occ.TotalSpots {
		return newError(ErrCapacityExceeded, msgNoSpots)
	}
	return nil
}
