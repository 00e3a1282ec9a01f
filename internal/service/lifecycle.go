package service

import (
	"context"
	"errors"

	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/repository"
)

// Lifecycle applies status transitions.  The legal moves come from the
// transition table in model; the write itself is conditional on the status
// that was read, so of two concurrent transitions of the same reservation
// only one can succeed.
type Lifecycle struct{}

// Transition moves the reservation selected by scope to target and returns
// the status it left.
//
// Failures: ErrInvalidTransition when nothing leads into target or the
// reservation could never have made the move, ErrNotFound when the
// reservation is not a live row of the tenant, ErrPreconditionFailed when
// the reservation has already moved past the states that lead into target
// (another caller got there first) or the status changed between the read
// and the write.
func (Lifecycle) Transition(ctx context.Context, ops repository.ReservationOps, scope repository.Scope, actor uint64, target model.Status) (model.Status, error) {
	if !model.Reachable(target) {
		return "", newError(ErrInvalidTransition, "Reservations cannot be moved to status %s.", target)
	}
	cur, err := ops.FindReservation(ctx, scope)
	if errors.Is(err, repository.ErrNotFound) {
		return "", newError(ErrNotFound, msgReservationAbsent, scope.ID)
	}
	if err != nil {
		return "", err
	}
	if model.Superseded(cur.Status, target) {
		return cur.Status, newError(ErrPreconditionFailed, msgPrecondition)
	}
	if !model.CanTransition(cur.Status, target) {
		return cur.Status, newError(ErrInvalidTransition, "Invalid status transition from %s to %s.", cur.Status, target)
	}
	n, err := ops.UpdateStatus(ctx, scope, actor, cur.Status, target)
	if err != nil {
		return cur.Status, err
	}
	if n == 0 {
		return cur.Status, newError(ErrPreconditionFailed, msgPrecondition)
	}
	return cur.Status, nil
}
