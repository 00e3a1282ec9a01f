package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/queue"
	"github.com/iliyamo/parking-reservation/internal/utils"
)

var owner = model.Identity{UserID: 7, ParkingID: 1, Role: model.RoleAdmin}

func newTestService(t *testing.T, spots int) (*ReservationService, *memStore, *recordingAuditor, *recordingCache) {
	t.Helper()
	zone, err := utils.LoadZone("America/New_York")
	require.NoError(t, err)
	store := newMemStore()
	store.addParking(1, spots)
	audit := &recordingAuditor{}
	cache := &recordingCache{}
	return NewReservationService(store, zone, audit, cache), store, audit, cache
}

func booking(start, end string) CreateInput {
	return CreateInput{UserID: 3, VehicleID: 4, ReservationStart: start, ReservationEnd: end}
}

func strPtr(s string) *string { return &s }

func TestCreateStoresUTCAndAnswersUTC(t *testing.T) {
	svc, store, audit, cache := newTestService(t, 1)

	res, err := svc.Create(context.Background(), booking("2025-03-10T14:00:00Z", "2025-03-10T15:00:00Z"), owner)
	require.NoError(t, err)

	assert.Equal(t, model.StatusReserved, res.Status)
	assert.Equal(t, uint64(1), res.ParkingID)
	assert.Equal(t, "2025-03-10T14:00:00Z", res.ReservationStart)
	assert.Equal(t, "2025-03-10T15:00:00Z", res.ReservationEnd)

	row := store.rows[res.ID]
	assert.Equal(t, "2025-03-10 14:00:00", row.start)
	assert.Equal(t, "2025-03-10 15:00:00", row.end)

	assert.Equal(t, []string{queue.EventReservationCreated}, audit.types())
	assert.Equal(t, []uint64{1}, cache.parkings)
}

func TestCreateAcrossFallBackKeepsOrder(t *testing.T) {
	svc, store, audit, _ := newTestService(t, 1)

	// 01:50 EDT to 01:10 EST on the night clocks go back
	res, err := svc.Create(context.Background(), booking("2025-11-02T05:50:00Z", "2025-11-02T06:10:00Z"), owner)
	require.NoError(t, err)
	assert.Equal(t, "2025-11-02T05:50:00Z", res.ReservationStart)
	assert.Equal(t, "2025-11-02T06:10:00Z", res.ReservationEnd)

	row := store.rows[res.ID]
	assert.Equal(t, "2025-11-02 05:50:00", row.start)
	assert.Equal(t, "2025-11-02 06:10:00", row.end)

	require.Len(t, audit.events, 1)
	assert.Equal(t, "2025-11-02T01:50:00-04:00..2025-11-02T01:10:00-05:00", audit.events[0].LocalWindow)
}

func TestRepeatedLocalHourDoesNotOverlap(t *testing.T) {
	svc, _, _, _ := newTestService(t, 1)
	ctx := context.Background()

	// 01:00-01:20 EDT, then 01:00-01:20 EST an hour later
	_, err := svc.Create(ctx, booking("2025-11-02T05:00:00Z", "2025-11-02T05:20:00Z"), owner)
	require.NoError(t, err)
	_, err = svc.Create(ctx, booking("2025-11-02T06:00:00Z", "2025-11-02T06:20:00Z"), owner)
	require.NoError(t, err)

	_, err = svc.Create(ctx, booking("2025-11-02T06:10:00Z", "2025-11-02T06:30:00Z"), owner)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
}

func TestCreateRespectsCapacity(t *testing.T) {
	svc, _, _, _ := newTestService(t, 2)
	ctx := context.Background()
	in := booking("2025-03-10T14:00:00Z", "2025-03-10T15:00:00Z")

	_, err := svc.Create(ctx, in, owner)
	require.NoError(t, err)
	_, err = svc.Create(ctx, in, owner)
	require.NoError(t, err)

	_, err = svc.Create(ctx, in, owner)
	require.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, "No parking spots are available for the specified date range.", err.Error())
}

func TestCreateTreatsTouchingIntervalsAsOverlapping(t *testing.T) {
	svc, store, _, _ := newTestService(t, 1)
	store.seed(1, "2025-03-10 14:00:00", "2025-03-10 15:00:00", model.StatusReserved)

	_, err := svc.Create(context.Background(), booking("2025-03-10T15:00:00Z", "2025-03-10T16:00:00Z"), owner)
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	_, err = svc.Create(context.Background(), booking("2025-03-10T15:00:01Z", "2025-03-10T16:00:00Z"), owner)
	assert.NoError(t, err)
}

func TestCreateIgnoresReleasedReservations(t *testing.T) {
	svc, store, _, _ := newTestService(t, 1)
	store.seed(1, "2025-03-10 14:00:00", "2025-03-10 15:00:00", model.StatusCancelled)
	store.seed(1, "2025-03-10 14:00:00", "2025-03-10 15:00:00", model.StatusCheckedOut)

	_, err := svc.Create(context.Background(), booking("2025-03-10T14:00:00Z", "2025-03-10T15:00:00Z"), owner)
	assert.NoError(t, err)
}

func TestCreateZeroSpotParkingIsAlwaysFull(t *testing.T) {
	svc, _, _, _ := newTestService(t, 0)
	_, err := svc.Create(context.Background(), booking("2025-03-10T14:00:00Z", "2025-03-10T15:00:00Z"), owner)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
}

func TestCreateValidation(t *testing.T) {
	svc, _, _, _ := newTestService(t, 1)
	ctx := context.Background()

	cases := map[string]CreateInput{
		"end before start": booking("2025-03-10T15:00:00Z", "2025-03-10T14:00:00Z"),
		"bad start":        booking("tomorrow", "2025-03-10T14:00:00Z"),
		"missing end":      booking("2025-03-10T14:00:00Z", ""),
		"zero user":        {VehicleID: 1, ReservationStart: "2025-03-10T14:00:00Z", ReservationEnd: "2025-03-10T15:00:00Z"},
		"zero vehicle":     {UserID: 1, ReservationStart: "2025-03-10T14:00:00Z", ReservationEnd: "2025-03-10T15:00:00Z"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(ctx, in, owner)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestCreateAcceptsZeroLengthInterval(t *testing.T) {
	svc, _, _, _ := newTestService(t, 1)
	_, err := svc.Create(context.Background(), booking("2025-03-10T14:00:00Z", "2025-03-10T14:00:00Z"), owner)
	assert.NoError(t, err)
}

func TestCreateUnknownParking(t *testing.T) {
	svc, _, _, _ := newTestService(t, 1)
	stranger := model.Identity{UserID: 7, ParkingID: 42, Role: model.RoleAdmin}

	_, err := svc.Create(context.Background(), booking("2025-03-10T14:00:00Z", "2025-03-10T15:00:00Z"), stranger)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "The parking does not exist.", err.Error())
}

func TestConcurrentCreatesNeverOverbook(t *testing.T) {
	svc, _, _, _ := newTestService(t, 3)
	in := booking("2025-03-10T14:00:00Z", "2025-03-10T15:00:00Z")

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok, full := 0, 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(context.Background(), in, owner)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrCapacityExceeded):
				full++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, ok)
	assert.Equal(t, 17, full)
}

func TestPersistenceErrorsAreMaskedAndAudited(t *testing.T) {
	svc, store, audit, _ := newTestService(t, 1)
	store.failWith = errors.New("dial tcp 10.0.0.3:3306: connection refused")

	_, err := svc.Create(context.Background(), booking("2025-03-10T14:00:00Z", "2025-03-10T15:00:00Z"), owner)
	require.ErrorIs(t, err, ErrPersistence)
	assert.Equal(t, "database error", err.Error())

	require.Len(t, audit.events, 1)
	ev := audit.events[0]
	assert.Equal(t, queue.EventPersistenceError, ev.Type)
	assert.Equal(t, "create", ev.Operation)
	assert.Contains(t, ev.Detail, "connection refused")
}

func TestUpdateBackFillsMissingBound(t *testing.T) {
	svc, store, _, _ := newTestService(t, 1)
	id := store.seed(1, "2025-03-10 14:00:00", "2025-03-10 15:00:00", model.StatusReserved)

	res, err := svc.Update(context.Background(), id, UpdateInput{ReservationEnd: strPtr("2025-03-10T17:00:00Z")}, owner)
	require.NoError(t, err)

	assert.Equal(t, "2025-03-10T14:00:00Z", res.ReservationStart)
	assert.Equal(t, "2025-03-10T17:00:00Z", res.ReservationEnd)
	assert.Equal(t, "2025-03-10 17:00:00", store.rows[id].end)
}

func TestUpdateRejectsBackFilledInversion(t *testing.T) {
	svc, store, _, _ := newTestService(t, 1)
	id := store.seed(1, "2025-03-10 14:00:00", "2025-03-10 15:00:00", model.StatusReserved)

	_, err := svc.Update(context.Background(), id, UpdateInput{ReservationEnd: strPtr("2025-03-10T13:00:00Z")}, owner)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdateDoesNotCompeteWithItself(t *testing.T) {
	svc, store, _, _ := newTestService(t, 1)
	id := store.seed(1, "2025-03-10 14:00:00", "2025-03-10 15:00:00", model.StatusReserved)

	_, err := svc.Update(context.Background(), id, UpdateInput{ReservationStart: strPtr("2025-03-10T14:30:00Z")}, owner)
	assert.NoError(t, err)
}

func TestUpdateChecksCapacityAgainstOthers(t *testing.T) {
	svc, store, _, _ := newTestService(t, 1)
	store.seed(1, "2025-03-10 16:00:00", "2025-03-10 17:00:00", model.StatusCheckedIn)
	id := store.seed(1, "2025-03-10 14:00:00", "2025-03-10 15:00:00", model.StatusReserved)

	_, err := svc.Update(context.Background(), id, UpdateInput{ReservationEnd: strPtr("2025-03-10T16:00:00Z")}, owner)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
}

func TestUpdateIsTenantScoped(t *testing.T) {
	svc, store, _, _ := newTestService(t, 1)
	store.addParking(2, 5)
	foreign := store.seed(2, "2025-03-10 14:00:00", "2025-03-10 15:00:00", model.StatusReserved)

	_, err := svc.Update(context.Background(), foreign, UpdateInput{ReservationEnd: strPtr("2025-03-10T17:00:00Z")}, owner)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "2025-03-10 15:00:00", store.rows[foreign].end)

	vehicle := uint64(9)
	_, err = svc.Update(context.Background(), foreign, UpdateInput{VehicleID: &vehicle}, owner)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateWithoutFields(t *testing.T) {
	svc, store, _, _ := newTestService(t, 1)
	id := store.seed(1, "2025-03-10 14:00:00", "2025-03-10 15:00:00", model.StatusReserved)

	_, err := svc.Update(context.Background(), id, UpdateInput{}, owner)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestTransitionFollowsLifecycle(t *testing.T) {
	svc, store, audit, _ := newTestService(t, 1)
	ctx := context.Background()
	id := store.seed(1, "2025-03-10 14:00:00", "2025-03-10 15:00:00", model.StatusReserved)

	_, err := svc.Transition(ctx, id, "CHECKED_OUT", owner)
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, "Invalid status transition from RESERVED to CHECKED_OUT.", err.Error())

	res, err := svc.Transition(ctx, id, "checked_in", owner)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCheckedIn, res.Status)

	res, err = svc.Transition(ctx, id, "CHECKED_OUT", owner)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCheckedOut, res.Status)

	// checked in and out before the cancellation arrived
	_, err = svc.Transition(ctx, id, "CANCELLED", owner)
	assert.ErrorIs(t, err, ErrPreconditionFailed)

	require.Len(t, audit.events, 2)
	assert.Equal(t, "RESERVED", audit.events[0].FromStatus)
	assert.Equal(t, "CHECKED_IN", audit.events[0].ToStatus)
}

func TestTransitionOutOfCancelledIsRejected(t *testing.T) {
	svc, store, _, _ := newTestService(t, 1)
	id := store.seed(1, "2025-03-10 14:00:00", "2025-03-10 15:00:00", model.StatusCancelled)

	for target, want := range map[string]error{
		"RESERVED":    ErrInvalidTransition,
		"CHECKED_OUT": ErrInvalidTransition,
		"CHECKED_IN":  ErrPreconditionFailed,
		"CANCELLED":   ErrPreconditionFailed,
	} {
		_, err := svc.Transition(context.Background(), id, target, owner)
		assert.ErrorIs(t, err, want, target)
	}
	assert.Equal(t, model.StatusCancelled, store.status(id))
}

func TestRepeatedTransitionIsStale(t *testing.T) {
	svc, store, audit, _ := newTestService(t, 1)
	ctx := context.Background()
	id := store.seed(1, "2025-03-10 14:00:00", "2025-03-10 15:00:00", model.StatusReserved)

	_, err := svc.Transition(ctx, id, "CHECKED_IN", owner)
	require.NoError(t, err)

	_, err = svc.Transition(ctx, id, "CHECKED_IN", owner)
	require.ErrorIs(t, err, ErrPreconditionFailed)
	assert.Equal(t, "The search preconditions were not met.", err.Error())
	assert.Len(t, audit.events, 1)
}

func TestTransitionUnknownStatus(t *testing.T) {
	svc, store, _, _ := newTestService(t, 1)
	id := store.seed(1, "2025-03-10 14:00:00", "2025-03-10 15:00:00", model.StatusReserved)

	_, err := svc.Transition(context.Background(), id, "PARKED", owner)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestTransitionMissingReservation(t *testing.T) {
	svc, _, _, _ := newTestService(t, 1)

	_, err := svc.Transition(context.Background(), 404, "CHECKED_IN", owner)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "The record with ID 404 does not exist", err.Error())
}

func TestConcurrentCheckInsExactlyOneWins(t *testing.T) {
	svc, store, _, _ := newTestService(t, 1)
	id := store.seed(1, "2025-03-10 14:00:00", "2025-03-10 15:00:00", model.StatusReserved)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Transition(context.Background(), id, "CHECKED_IN", owner)
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrPreconditionFailed)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, model.StatusCheckedIn, store.status(id))
}

func TestDeleteFreesCapacity(t *testing.T) {
	svc, store, audit, _ := newTestService(t, 1)
	ctx := context.Background()
	id := store.seed(1, "2025-03-10 14:00:00", "2025-03-10 15:00:00", model.StatusReserved)

	res, err := svc.Delete(ctx, id, owner)
	require.NoError(t, err)
	assert.Equal(t, id, res.ID)

	_, err = svc.Get(ctx, id, owner)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Create(ctx, booking("2025-03-10T14:00:00Z", "2025-03-10T15:00:00Z"), owner)
	assert.NoError(t, err)
	assert.Equal(t, []string{queue.EventReservationDeleted, queue.EventReservationCreated}, audit.types())
}

func TestListPagesInStartOrder(t *testing.T) {
	svc, store, _, _ := newTestService(t, 10)
	store.addParking(2, 10)
	store.seed(1, "2025-03-10 16:00:00", "2025-03-10 17:00:00", model.StatusReserved)
	first := store.seed(1, "2025-03-10 12:00:00", "2025-03-10 13:00:00", model.StatusReserved)
	store.seed(1, "2025-03-10 14:00:00", "2025-03-10 15:00:00", model.StatusCancelled)
	store.seed(2, "2025-03-10 11:00:00", "2025-03-10 12:00:00", model.StatusReserved)

	page, err := svc.List(context.Background(), ListQuery{Page: 1, PerPage: 2}, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	require.Len(t, page.Data, 2)
	assert.Equal(t, first, page.Data[0].ID)
	assert.Equal(t, "2025-03-10T12:00:00Z", page.Data[0].ReservationStart)

	page, err = svc.List(context.Background(), ListQuery{Page: 2, PerPage: 2}, owner)
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "2025-03-10T16:00:00Z", page.Data[0].ReservationStart)
}

func TestListFiltersByRange(t *testing.T) {
	svc, store, _, _ := newTestService(t, 10)
	store.seed(1, "2025-03-10 12:00:00", "2025-03-10 13:00:00", model.StatusReserved)
	hit := store.seed(1, "2025-03-10 16:00:00", "2025-03-10 17:00:00", model.StatusReserved)

	page, err := svc.List(context.Background(), ListQuery{
		ReservationStart: strPtr("2025-03-10T15:30:00Z"),
		ReservationEnd:   strPtr("2025-03-10T16:30:00Z"),
	}, owner)
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, hit, page.Data[0].ID)
}

func TestListRejectsPageBeyondOffsetRange(t *testing.T) {
	svc, _, _, _ := newTestService(t, 1)

	_, err := svc.List(context.Background(), ListQuery{Page: math.MaxInt, PerPage: 100}, owner)
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "page is out of range.", err.Error())

	_, err = svc.List(context.Background(), ListQuery{Page: math.MaxInt32/50 + 1}, owner)
	assert.NoError(t, err)
}

func TestListRejectsOversizedPage(t *testing.T) {
	svc, _, _, _ := newTestService(t, 1)
	_, err := svc.List(context.Background(), ListQuery{PerPage: 101}, owner)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestStatusSummaryCoversEveryStatus(t *testing.T) {
	svc, store, _, _ := newTestService(t, 10)
	store.addParking(2, 10)
	store.seed(1, "2025-03-10 12:00:00", "2025-03-10 13:00:00", model.StatusReserved)
	store.seed(1, "2025-03-10 12:00:00", "2025-03-10 13:00:00", model.StatusReserved)
	store.seed(1, "2025-03-10 12:00:00", "2025-03-10 13:00:00", model.StatusCheckedIn)
	store.seed(2, "2025-03-10 12:00:00", "2025-03-10 13:00:00", model.StatusCancelled)

	sum, err := svc.StatusSummary(context.Background(), nil, owner)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSummary{
		model.StatusReserved:   2,
		model.StatusCheckedIn:  1,
		model.StatusCheckedOut: 0,
		model.StatusCancelled:  0,
	}, sum)

	other := uint64(2)
	_, err = svc.StatusSummary(context.Background(), &other, owner)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAvailabilityReportsOccupancy(t *testing.T) {
	svc, store, _, _ := newTestService(t, 2)
	store.seed(1, "2025-03-10 14:00:00", "2025-03-10 15:00:00", model.StatusReserved)

	av, err := svc.Availability(context.Background(), 1, "2025-03-10T14:30:00Z", "2025-03-10T14:45:00Z", owner)
	require.NoError(t, err)
	assert.Equal(t, Availability{ParkingID: 1, TotalSpots: 2, Overlapping: 1, Available: true}, av)

	_, err = svc.Availability(context.Background(), 2, "2025-03-10T14:30:00Z", "2025-03-10T14:45:00Z", owner)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestSweeperCancelsNoShows(t *testing.T) {
	_, store, audit, cache := newTestService(t, 5)
	zone, err := utils.LoadZone("America/New_York")
	require.NoError(t, err)
	noShow := store.seed(1, "2025-03-10 12:00:00", "2025-03-10 13:00:00", model.StatusReserved)
	parked := store.seed(1, "2025-03-10 12:00:00", "2025-03-10 13:00:00", model.StatusCheckedIn)
	recent := store.seed(1, "2025-03-10 13:50:00", "2025-03-10 13:55:00", model.StatusReserved)

	sw := NewNoShowSweeper(store, zone, 15*time.Minute, audit, cache)
	// 10:00 local
	sw.now = func() time.Time { return time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC) }

	n, err := sw.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, model.StatusCancelled, store.status(noShow))
	assert.Equal(t, model.StatusCheckedIn, store.status(parked))
	assert.Equal(t, model.StatusReserved, store.status(recent))
	assert.Equal(t, []string{queue.EventNoShowCancelled}, audit.types())
	assert.Equal(t, []uint64{1}, cache.parkings)
}

func TestSweeperScheduleRejectsBadSpec(t *testing.T) {
	sw := NewNoShowSweeper(newMemStore(), nil, time.Minute, nil, nil)
	_, err := sw.Schedule(context.Background(), "every now and then")
	assert.Error(t, err)
}
