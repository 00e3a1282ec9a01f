package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/parking-reservation/internal/model"
)

// ReservationRepo provides tenant-scoped access to the reservations table.
// Interval bounds are passed in as store-format strings (UTC wall clock);
// scanned rows carry the same wall clock, which the service reads back as
// UTC.
type ReservationRepo struct {
	db    *sqlx.DB
	store TenantStore[model.Reservation]
}

var reservationColumns = []string{
	"id", "parking_id", "user_id", "vehicle_id", "reservation_start", "reservation_end", "status",
	"created_at", "created_by", "updated_at", "updated_by", "deleted_at", "deleted_by",
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sqlx.DB) *ReservationRepo {
	return &ReservationRepo{
		db:    db,
		store: NewTenantStore[model.Reservation]("reservations", "parking_id", reservationColumns...),
	}
}

// DB exposes the underlying pool so callers can open transactions that
// span several repositories.
func (r *ReservationRepo) DB() *sqlx.DB { return r.db }

// NewReservation is the insert payload.  Start and End are store-format.
type NewReservation struct {
	ParkingID uint64
	UserID    uint64
	VehicleID uint64
	Start     string
	End       string
	Status    model.Status
	CreatedBy uint64
}

// CreateTx inserts a reservation and returns its id.
func (r *ReservationRepo) CreateTx(ctx context.Context, ex sqlx.ExtContext, in NewReservation) (uint64, error) {
	const q = `INSERT INTO reservations (parking_id, user_id, vehicle_id, reservation_start, reservation_end, status, created_by)
VALUES (?, ?, ?, ?, ?, ?, ?)`
	return insert(ctx, ex, q, in.ParkingID, in.UserID, in.VehicleID, in.Start, in.End, in.Status, in.CreatedBy)
}

// FindByID loads a live reservation of the tenant.
func (r *ReservationRepo) FindByID(ctx context.Context, q sqlx.ExtContext, scope Scope) (model.Reservation, error) {
	return r.store.FindByID(ctx, q, scope)
}

// ReservationPatch lists the columns an update may change.  Nil fields are
// left untouched.
type ReservationPatch struct {
	UserID    *uint64
	VehicleID *uint64
	Start     *string
	End       *string
}

// Empty reports whether the patch changes nothing.
func (p ReservationPatch) Empty() bool {
	return p.UserID == nil && p.VehicleID == nil && p.Start == nil && p.End == nil
}

// UpdateTx applies a patch and returns the rows affected.
func (r *ReservationRepo) UpdateTx(ctx context.Context, ex sqlx.ExtContext, scope Scope, actor uint64, p ReservationPatch) (int64, error) {
	var sets []Set
	if p.UserID != nil {
		sets = append(sets, Set{"user_id", *p.UserID})
	}
	if p.VehicleID != nil {
		sets = append(sets, Set{"vehicle_id", *p.VehicleID})
	}
	if p.Start != nil {
		sets = append(sets, Set{"reservation_start", *p.Start})
	}
	if p.End != nil {
		sets = append(sets, Set{"reservation_end", *p.End})
	}
	return r.store.Update(ctx, ex, scope, actor, sets)
}

// UpdateStatus moves a reservation from one status to another in a single
// conditional write.  The row is only touched while its status still equals
// from, so zero rows affected means the precondition failed.
func (r *ReservationRepo) UpdateStatus(ctx context.Context, ex sqlx.ExtContext, scope Scope, actor uint64, from, to model.Status) (int64, error) {
	return r.store.Update(ctx, ex, scope, actor, []Set{{"status", to}}, Cond{"status = ?", from})
}

// SoftDeleteTx tombstones a reservation of the tenant.
func (r *ReservationRepo) SoftDeleteTx(ctx context.Context, ex sqlx.ExtContext, scope Scope, actor uint64) (int64, error) {
	return r.store.SoftDelete(ctx, ex, scope, actor)
}

// Occupancy is the result of the availability aggregate.
type Occupancy struct {
	TotalSpots  int `db:"total_spots"`
	Overlapping int `db:"overlapping"`
}

// CountOverlapping reads, in one statement, the capacity of a parking and
// the number of live reservations in an occupying status whose interval
// overlaps [start, end] with inclusive bounds.  excludeID (when non-zero)
// leaves one reservation out of the count.  ErrNotFound means the parking
// does not exist or is deleted.
func (r *ReservationRepo) CountOverlapping(ctx context.Context, q sqlx.ExtContext, parkingID uint64, start, end string, excludeID uint64) (Occupancy, error) {
	statuses := model.OccupyingStatuses()
	query := `SELECT p.total_spots, COUNT(r.id) AS overlapping
FROM parkings p
LEFT JOIN reservations r
  ON r.parking_id = p.id
 AND r.deleted_at IS NULL
 AND r.status IN (` + placeholders(len(statuses)) + `)
 AND r.reservation_start <= ?
 AND r.reservation_end >= ?
 AND r.id <> ?
WHERE p.id = ? AND p.deleted_at IS NULL
GROUP BY p.id, p.total_spots`
	args := make([]interface{}, 0, len(statuses)+4)
	for _, s := range statuses {
		args = append(args, s)
	}
	args = append(args, end, start, excludeID, parkingID)

	var occ Occupancy
	err := sqlx.GetContext(ctx, q, &occ, q.Rebind(query), args...)
	return occ, mapErr(err)
}

// ListFilter narrows a listing.  Start and End are optional store-format
// bounds; a reservation matches when it overlaps the given range.
type ListFilter struct {
	ParkingID uint64
	Start     *string
	End       *string
	Limit     int
	Offset    int
}

// List returns one page of live reservations ordered by start time, and
// the total number of matches.
func (r *ReservationRepo) List(ctx context.Context, f ListFilter) ([]model.Reservation, int64, error) {
	where := "parking_id = ? AND deleted_at IS NULL"
	args := []interface{}{f.ParkingID}
	if f.End != nil {
		where += " AND reservation_start <= ?"
		args = append(args, *f.End)
	}
	if f.Start != nil {
		where += " AND reservation_end >= ?"
		args = append(args, *f.Start)
	}

	var total int64
	if err := sqlx.GetContext(ctx, r.db, &total, r.db.Rebind("SELECT COUNT(*) FROM reservations WHERE "+where), args...); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + r.store.columns + " FROM reservations WHERE " + where +
		" ORDER BY reservation_start ASC, id ASC LIMIT ? OFFSET ?"
	out := []model.Reservation{}
	if err := sqlx.SelectContext(ctx, r.db, &out, r.db.Rebind(query), append(args, f.Limit, f.Offset)...); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// StatusCounts groups live reservations by status.  A nil parkingID counts
// across every parking.
func (r *ReservationRepo) StatusCounts(ctx context.Context, parkingID *uint64) (map[model.Status]int64, error) {
	query := "SELECT status, COUNT(*) AS n FROM reservations WHERE deleted_at IS NULL"
	var args []interface{}
	if parkingID != nil {
		query += " AND parking_id = ?"
		args = append(args, *parkingID)
	}
	query += " GROUP BY status"

	var rows []struct {
		Status model.Status `db:"status"`
		N      int64        `db:"n"`
	}
	if err := sqlx.SelectContext(ctx, r.db, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	out := make(map[model.Status]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.N
	}
	return out, nil
}

// ListOverdue returns live RESERVED reservations whose end is before the
// given store-format instant, oldest first.  The no-show sweeper uses it.
func (r *ReservationRepo) ListOverdue(ctx context.Context, before string, limit int) ([]model.Reservation, error) {
	query := "SELECT " + r.store.columns + " FROM reservations" +
		" WHERE status = ? AND reservation_end < ? AND deleted_at IS NULL" +
		" ORDER BY reservation_end ASC LIMIT ?"
	out := []model.Reservation{}
	err := sqlx.SelectContext(ctx, r.db, &out, r.db.Rebind(query), model.StatusReserved, before, limit)
	return out, err
}
