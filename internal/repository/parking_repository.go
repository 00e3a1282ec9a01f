package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/parking-reservation/internal/model"
)

// ParkingRepo manages parking lots.  A parking is its own tenant, so the
// scope filter only matches on id; callers check that the id belongs to
// the caller.
type ParkingRepo struct {
	db    *sqlx.DB
	store TenantStore[model.Parking]
}

var parkingColumns = []string{
	"id", "name", "total_spots",
	"created_at", "created_by", "updated_at", "updated_by", "deleted_at", "deleted_by",
}

func NewParkingRepo(db *sqlx.DB) *ParkingRepo {
	return &ParkingRepo{db: db, store: NewTenantStore[model.Parking]("parkings", "", parkingColumns...)}
}

// DB exposes the pool for transactions.
func (r *ParkingRepo) DB() *sqlx.DB { return r.db }

// Create inserts a parking and returns the stored row.  ErrDuplicate when
// the name is taken.
func (r *ParkingRepo) Create(ctx context.Context, name string, totalSpots int, actor uint64) (model.Parking, error) {
	id, err := insert(ctx, r.db, "INSERT INTO parkings (name, total_spots, created_by) VALUES (?, ?, ?)", name, totalSpots, actor)
	if err != nil {
		return model.Parking{}, err
	}
	return r.GetByID(ctx, id)
}

// GetByID returns a live parking or ErrNotFound.
func (r *ParkingRepo) GetByID(ctx context.Context, id uint64) (model.Parking, error) {
	return r.store.FindByID(ctx, r.db, Scope{ID: id})
}

// LockTx loads a live parking with a row lock held until tx ends.
// Reservation writes for the same parking serialize on this lock, which
// keeps the capacity check and the insert that follows it atomic.
func (r *ParkingRepo) LockTx(ctx context.Context, tx *sqlx.Tx, id uint64) (model.Parking, error) {
	var p model.Parking
	query := "SELECT " + r.store.columns + " FROM parkings WHERE id = ? AND deleted_at IS NULL FOR UPDATE"
	err := tx.GetContext(ctx, &p, tx.Rebind(query), id)
	return p, mapErr(err)
}

// ParkingPatch lists the columns an update may change.
type ParkingPatch struct {
	Name       *string
	TotalSpots *int
}

// Update applies a patch and returns rows affected.
func (r *ParkingRepo) Update(ctx context.Context, id, actor uint64, p ParkingPatch) (int64, error) {
	var sets []Set
	if p.Name != nil {
		sets = append(sets, Set{"name", *p.Name})
	}
	if p.TotalSpots != nil {
		sets = append(sets, Set{"total_spots", *p.TotalSpots})
	}
	return r.store.Update(ctx, r.db, Scope{ID: id}, actor, sets)
}

// SoftDelete tombstones a parking.  A parking that still has RESERVED or
// CHECKED_IN reservations cannot be deleted (ErrConflict).
func (r *ParkingRepo) SoftDelete(ctx context.Context, id, actor uint64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := r.LockTx(ctx, tx, id); err != nil {
		return err
	}
	statuses := model.OccupyingStatuses()
	args := []interface{}{id}
	for _, s := range statuses {
		args = append(args, s)
	}
	var active int
	query := "SELECT COUNT(*) FROM reservations WHERE parking_id = ? AND deleted_at IS NULL AND status IN (" + placeholders(len(statuses)) + ")"
	if err := tx.GetContext(ctx, &active, tx.Rebind(query), args...); err != nil {
		return err
	}
	if active > 0 {
		return ErrConflict
	}
	if _, err := r.store.SoftDelete(ctx, tx, Scope{ID: id}, actor); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
