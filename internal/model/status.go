package model

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of a reservation as stored in the
// reservations.status column.
type Status string

const (
	StatusReserved   Status = "RESERVED"
	StatusCheckedIn  Status = "CHECKED_IN"
	StatusCheckedOut Status = "CHECKED_OUT"
	StatusCancelled  Status = "CANCELLED"
)

// Statuses lists every status in display order.  Summaries and validation
// iterate over it so that adding a state only touches this file.
var Statuses = []Status{StatusReserved, StatusCheckedIn, StatusCheckedOut, StatusCancelled}

// transitions is the directed graph of legal status changes.  A state with
// no entry (or an empty slice) is terminal.
var transitions = map[Status][]Status{
	StatusReserved:  {StatusCheckedIn, StatusCancelled},
	StatusCheckedIn: {StatusCheckedOut},
}

// ParseStatus validates a raw status value.  Matching is case-insensitive
// so that clients may send "checked_in".
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	for _, known := range Statuses {
		if s == known {
			return s, nil
		}
	}
	return "", fmt.Errorf("status must be one of %s", joinStatuses(Statuses))
}

// CanTransition reports whether a reservation currently in from may move to to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Reachable reports whether any state leads into target.  RESERVED is only
// ever entered on creation, so it is not reachable through a transition.
func Reachable(target Status) bool {
	for _, nexts := range transitions {
		for _, next := range nexts {
			if next == target {
				return true
			}
		}
	}
	return false
}

// Superseded reports whether a request to move into target is stale for a
// reservation now in cur: some state that leads into target comes before
// cur, so the reservation could have made the move and has gone past it
// (typically another caller already applied target or a competing change).
func Superseded(cur, target Status) bool {
	for from, nexts := range transitions {
		for _, next := range nexts {
			if next == target && follows(from, cur) {
				return true
			}
		}
	}
	return false
}

// follows reports whether to can be reached from from in one or more steps.
func follows(from, to Status) bool {
	seen := map[Status]bool{}
	queue := append([]Status(nil), transitions[from]...)
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		if s == to {
			return true
		}
		if seen[s] {
			continue
		}
		seen[s] = true
		queue = append(queue, transitions[s]...)
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool { return len(transitions[s]) == 0 }

// Occupying reports whether a reservation in this status holds a spot for
// capacity purposes.  Cancelled and checked-out reservations have released
// theirs.
func (s Status) Occupying() bool { return s == StatusReserved || s == StatusCheckedIn }

// OccupyingStatuses returns the statuses counted by the availability query.
func OccupyingStatuses() []Status {
	out := make([]Status, 0, 2)
	for _, s := range Statuses {
		if s.Occupying() {
			out = append(out, s)
		}
	}
	return out
}

func joinStatuses(ss []Status) string {
	parts := make([]string, len(ss))
	for i, s := range ss {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}
