package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/queue"
	"github.com/iliyamo/parking-reservation/internal/repository"
)

const storeLayout = "2006-01-02 15:04:05"

// memStore is an in-memory ReservationStore.  Values are kept the way the
// database keeps them: UTC wall-clock strings.  InTx serializes
// transactions, standing in for the parking row lock.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	parkings map[uint64]int
	rows     map[uint64]*memRow
	nextID   uint64
	failWith error
}

type memRow struct {
	r          model.Reservation
	start, end string
	deleted    bool
}

func newMemStore() *memStore {
	return &memStore{parkings: map[uint64]int{}, rows: map[uint64]*memRow{}}
}

func (m *memStore) addParking(id uint64, spots int) { m.parkings[id] = spots }

// seed inserts a row directly with store-format bounds.
func (m *memStore) seed(parkingID uint64, start, end string, st model.Status) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.rows[m.nextID] = &memRow{
		r:     model.Reservation{ID: m.nextID, ParkingID: parkingID, UserID: 1, VehicleID: 1, Status: st},
		start: start,
		end:   end,
	}
	return m.nextID
}

func (m *memStore) status(id uint64) model.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id].r.Status
}

func (m *memStore) InTx(ctx context.Context, fn func(tx repository.ReservationOps) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return fn(m)
}

func (m *memStore) LockParking(ctx context.Context, parkingID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if _, ok := m.parkings[parkingID]; !ok {
		return repository.ErrNotFound
	}
	return nil
}

func (m *memStore) CountOverlapping(ctx context.Context, parkingID uint64, start, end string, excludeID uint64) (repository.Occupancy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	spots, ok := m.parkings[parkingID]
	if !ok {
		return repository.Occupancy{}, repository.ErrNotFound
	}
	occ := repository.Occupancy{TotalSpots: spots}
	for id, row := range m.rows {
		if row.deleted || id == excludeID || row.r.ParkingID != parkingID || !row.r.Status.Occupying() {
			continue
		}
		if row.start <= end && row.end >= start {
			occ.Overlapping++
		}
	}
	return occ, nil
}

func (m *memStore) FindReservation(ctx context.Context, scope repository.Scope) (model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[scope.ID]
	if !ok || row.deleted || row.r.ParkingID != scope.ParkingID {
		return model.Reservation{}, repository.ErrNotFound
	}
	return m.project(row), nil
}

// project mimics the driver: wall clock handed back as UTC.
func (m *memStore) project(row *memRow) model.Reservation {
	r := row.r
	r.ReservationStart, _ = time.Parse(storeLayout, row.start)
	r.ReservationEnd, _ = time.Parse(storeLayout, row.end)
	return r
}

func (m *memStore) CreateReservation(ctx context.Context, in repository.NewReservation) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.rows[m.nextID] = &memRow{
		r: model.Reservation{
			ID: m.nextID, ParkingID: in.ParkingID, UserID: in.UserID,
			VehicleID: in.VehicleID, Status: in.Status,
		},
		start: in.Start,
		end:   in.End,
	}
	return m.nextID, nil
}

func (m *memStore) live(scope repository.Scope) *memRow {
	row, ok := m.rows[scope.ID]
	if !ok || row.deleted || row.r.ParkingID != scope.ParkingID {
		return nil
	}
	return row
}

func (m *memStore) UpdateReservation(ctx context.Context, scope repository.Scope, actor uint64, p repository.ReservationPatch) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := m.live(scope)
	if row == nil {
		return 0, nil
	}
	if p.UserID != nil {
		row.r.UserID = *p.UserID
	}
	if p.VehicleID != nil {
		row.r.VehicleID = *p.VehicleID
	}
	if p.Start != nil {
		row.start = *p.Start
	}
	if p.End != nil {
		row.end = *p.End
	}
	return 1, nil
}

func (m *memStore) UpdateStatus(ctx context.Context, scope repository.Scope, actor uint64, from, to model.Status) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := m.live(scope)
	if row == nil || row.r.Status != from {
		return 0, nil
	}
	row.r.Status = to
	return 1, nil
}

func (m *memStore) SoftDeleteReservation(ctx context.Context, scope repository.Scope, actor uint64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := m.live(scope)
	if row == nil {
		return 0, nil
	}
	row.deleted = true
	return 1, nil
}

func (m *memStore) List(ctx context.Context, f repository.ListFilter) ([]model.Reservation, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var match []*memRow
	for _, row := range m.rows {
		if row.deleted || row.r.ParkingID != f.ParkingID {
			continue
		}
		if f.End != nil && row.start > *f.End {
			continue
		}
		if f.Start != nil && row.end < *f.Start {
			continue
		}
		match = append(match, row)
	}
	sort.Slice(match, func(i, j int) bool {
		if match[i].start != match[j].start {
			return match[i].start < match[j].start
		}
		return match[i].r.ID < match[j].r.ID
	})
	out := []model.Reservation{}
	for i := f.Offset; i < len(match) && i < f.Offset+f.Limit; i++ {
		out = append(out, m.project(match[i]))
	}
	return out, int64(len(match)), nil
}

func (m *memStore) StatusCounts(ctx context.Context, parkingID *uint64) (map[model.Status]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[model.Status]int64{}
	for _, row := range m.rows {
		if row.deleted || (parkingID != nil && row.r.ParkingID != *parkingID) {
			continue
		}
		out[row.r.Status]++
	}
	return out, nil
}

func (m *memStore) ListOverdue(ctx context.Context, before string, limit int) ([]model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Reservation{}
	for _, row := range m.rows {
		if !row.deleted && row.r.Status == model.StatusReserved && row.end < before {
			out = append(out, m.project(row))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type recordingAuditor struct {
	mu     sync.Mutex
	events []queue.AuditEvent
}

func (a *recordingAuditor) Publish(ctx context.Context, ev queue.AuditEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, ev)
	return nil
}

func (a *recordingAuditor) types() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.events))
	for _, ev := range a.events {
		out = append(out, ev.Type)
	}
	return out
}

type recordingCache struct {
	mu       sync.Mutex
	parkings []uint64
}

func (c *recordingCache) Invalidate(ctx context.Context, parkingID uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.parkings = append(c.parkings, parkingID)
	return nil
}
