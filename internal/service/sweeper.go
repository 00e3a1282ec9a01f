package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/queue"
	"github.com/iliyamo/parking-reservation/internal/repository"
	"github.com/iliyamo/parking-reservation/internal/utils"
)

const sweepBatch = 200

// NoShowSweeper cancels RESERVED reservations whose end has passed by more
// than the grace period without a check-in, which frees their spot in the
// capacity count.  Cancellation goes through the lifecycle so it cannot
// race a late check-in.
type NoShowSweeper struct {
	store repository.ReservationStore
	zone  *utils.Zone
	grace time.Duration
	life  Lifecycle
	audit Auditor
	cache CacheInvalidator
	now   func() time.Time
}

// NewNoShowSweeper builds a sweeper.  audit and cache may be nil.
func NewNoShowSweeper(store repository.ReservationStore, zone *utils.Zone, grace time.Duration, audit Auditor, cache CacheInvalidator) *NoShowSweeper {
	return &NoShowSweeper{store: store, zone: zone, grace: grace, audit: audit, cache: cache, now: time.Now}
}

// Sweep runs one pass and returns how many reservations were cancelled.
func (s *NoShowSweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.zone.ToStore(s.now().Add(-s.grace))
	overdue, err := s.store.ListOverdue(ctx, cutoff, sweepBatch)
	if err != nil {
		return 0, err
	}
	cancelled := 0
	touched := map[uint64]bool{}
	for _, r := range overdue {
		scope := repository.Scope{ID: r.ID, ParkingID: r.ParkingID}
		from, err := s.life.Transition(ctx, s.store, scope, 0, model.StatusCancelled)
		if err != nil {
			// checked in or cancelled in the meantime
			if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrPreconditionFailed) || errors.Is(err, ErrNotFound) {
				continue
			}
			return cancelled, err
		}
		cancelled++
		touched[r.ParkingID] = true

		if s.audit != nil {
			ev := queue.NewAuditEvent(queue.EventNoShowCancelled)
			ev.ParkingID = r.ParkingID
			ev.UserID = r.UserID
			ev.ReservationID = r.ID
			ev.FromStatus = string(from)
			ev.ToStatus = string(model.StatusCancelled)
			start, end := s.zone.FromStore(r.ReservationStart), s.zone.FromStore(r.ReservationEnd)
			ev.Start = start.Format(time.RFC3339)
			ev.End = end.Format(time.RFC3339)
			ev.LocalWindow = s.zone.Local(start) + ".." + s.zone.Local(end)
			if err := s.audit.Publish(ctx, ev); err != nil {
				log.Printf("no-show-sweeper: audit for reservation %d dropped: %v", r.ID, err)
			}
		}
	}
	if s.cache != nil {
		for pid := range touched {
			if err := s.cache.Invalidate(ctx, pid); err != nil {
				log.Printf("no-show-sweeper: cache invalidation for parking %d failed: %v", pid, err)
			}
		}
	}
	return cancelled, nil
}

// Schedule registers the sweep on a new cron with the given spec (e.g.
// "@every 5m") and returns it unstarted.
func (s *NoShowSweeper) Schedule(ctx context.Context, spec string) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	_, err := c.AddFunc(spec, func() {
		n, err := s.Sweep(ctx)
		if err != nil {
			log.Printf("no-show-sweeper: sweep failed: %v", err)
			return
		}
		if n > 0 {
			log.Printf("no-show-sweeper: cancelled %d reservation(s)", n)
		}
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}
