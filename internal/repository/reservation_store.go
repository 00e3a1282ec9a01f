package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/parking-reservation/internal/model"
)

// ReservationOps are the reservation primitives the service needs.  They
// run either on the pool or inside a transaction opened by InTx.
type ReservationOps interface {
	// LockParking takes the parking row lock (inside a transaction) and
	// returns ErrNotFound for a missing or deleted parking.
	LockParking(ctx context.Context, parkingID uint64) error
	CountOverlapping(ctx context.Context, parkingID uint64, start, end string, excludeID uint64) (Occupancy, error)
	FindReservation(ctx context.Context, scope Scope) (model.Reservation, error)
	CreateReservation(ctx context.Context, in NewReservation) (uint64, error)
	UpdateReservation(ctx context.Context, scope Scope, actor uint64, p ReservationPatch) (int64, error)
	UpdateStatus(ctx context.Context, scope Scope, actor uint64, from, to model.Status) (int64, error)
	SoftDeleteReservation(ctx context.Context, scope Scope, actor uint64) (int64, error)
}

// ReservationStore is the tenant-scoped record store behind the
// reservation service.
type ReservationStore interface {
	ReservationOps
	// InTx runs fn in one transaction; it commits when fn returns nil and
	// rolls back otherwise.
	InTx(ctx context.Context, fn func(tx ReservationOps) error) error
	List(ctx context.Context, f ListFilter) ([]model.Reservation, int64, error)
	StatusCounts(ctx context.Context, parkingID *uint64) (map[model.Status]int64, error)
	ListOverdue(ctx context.Context, before string, limit int) ([]model.Reservation, error)
}

// SQLReservationStore implements ReservationStore on top of ParkingRepo and
// ReservationRepo.
type SQLReservationStore struct {
	parkings     *ParkingRepo
	reservations *ReservationRepo
	ex           sqlx.ExtContext
	tx           *sqlx.Tx // nil outside InTx
}

// NewSQLReservationStore binds the store to the pool of the repositories.
func NewSQLReservationStore(parkings *ParkingRepo, reservations *ReservationRepo) *SQLReservationStore {
	return &SQLReservationStore{parkings: parkings, reservations: reservations, ex: reservations.DB()}
}

func (s *SQLReservationStore) InTx(ctx context.Context, fn func(tx ReservationOps) error) error {
	tx, err := s.reservations.DB().BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&SQLReservationStore{parkings: s.parkings, reservations: s.reservations, ex: tx, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *SQLReservationStore) LockParking(ctx context.Context, parkingID uint64) error {
	if s.tx == nil {
		_, err := s.parkings.GetByID(ctx, parkingID)
		return err
	}
	_, err := s.parkings.LockTx(ctx, s.tx, parkingID)
	return err
}

func (s *SQLReservationStore) CountOverlapping(ctx context.Context, parkingID uint64, start, end string, excludeID uint64) (Occupancy, error) {
	return s.reservations.CountOverlapping(ctx, s.ex, parkingID, start, end, excludeID)
}

func (s *SQLReservationStore) FindReservation(ctx context.Context, scope Scope) (model.Reservation, error) {
	return s.reservations.FindByID(ctx, s.ex, scope)
}

func (s *SQLReservationStore) CreateReservation(ctx context.Context, in NewReservation) (uint64, error) {
	return s.reservations.CreateTx(ctx, s.ex, in)
}

func (s *SQLReservationStore) UpdateReservation(ctx context.Context, scope Scope, actor uint64, p ReservationPatch) (int64, error) {
	return s.reservations.UpdateTx(ctx, s.ex, scope, actor, p)
}

func (s *SQLReservationStore) UpdateStatus(ctx context.Context, scope Scope, actor uint64, from, to model.Status) (int64, error) {
	return s.reservations.UpdateStatus(ctx, s.ex, scope, actor, from, to)
}

func (s *SQLReservationStore) SoftDeleteReservation(ctx context.Context, scope Scope, actor uint64) (int64, error) {
	return s.reservations.SoftDeleteTx(ctx, s.ex, scope, actor)
}

func (s *SQLReservationStore) List(ctx context.Context, f ListFilter) ([]model.Reservation, int64, error) {
	return s.reservations.List(ctx, f)
}

func (s *SQLReservationStore) StatusCounts(ctx context.Context, parkingID *uint64) (map[model.Status]int64, error) {
	return s.reservations.StatusCounts(ctx, parkingID)
}

func (s *SQLReservationStore) ListOverdue(ctx context.Context, before string, limit int) ([]model.Reservation, error) {
	return s.reservations.ListOverdue(ctx, before, limit)
}
