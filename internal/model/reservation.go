package model

import (
	"time"

	"gopkg.in/guregu/null.v4"
)

// Reservation records a vehicle's claim on one spot of a parking lot for
// a time interval.  It belongs to exactly one parking (the tenant) and
// references a user and a vehicle by id.
//
// Fields:
//  ID               – primary key identifier.
//  ParkingID        – tenant and target lot.
//  UserID           – user the reservation is for.
//  VehicleID        – vehicle occupying the spot.
//  ReservationStart – first instant of the reservation (inclusive).
//  ReservationEnd   – last instant of the reservation (inclusive).
//  Status           – RESERVED, CHECKED_IN, CHECKED_OUT or CANCELLED.
//  CreatedAt/By, UpdatedAt/By, DeletedAt/By – audit and tombstone columns.
type Reservation struct {
	ID               uint64    `db:"id"`                // reservations.id
	ParkingID        uint64    `db:"parking_id"`        // reservations.parking_id
	UserID           uint64    `db:"user_id"`           // reservations.user_id
	VehicleID        uint64    `db:"vehicle_id"`        // reservations.vehicle_id
	ReservationStart time.Time `db:"reservation_start"` // reservations.reservation_start
	ReservationEnd   time.Time `db:"reservation_end"`   // reservations.reservation_end
	Status           Status    `db:"status"`            // reservations.status
	CreatedAt        time.Time `db:"created_at"`
	CreatedBy        null.Int  `db:"created_by"`
	UpdatedAt        null.Time `db:"updated_at"`
	UpdatedBy        null.Int  `db:"updated_by"`
	DeletedAt        null.Time `db:"deleted_at"`
	DeletedBy        null.Int  `db:"deleted_by"`
}

// Interval returns the reservation's time range.
func (r Reservation) Interval() Interval {
	return Interval{Start: r.ReservationStart, End: r.ReservationEnd}
}

// Validate re-checks the date invariant on a loaded row.
func (r Reservation) Validate() error {
	_, err := NewInterval(r.ReservationStart, r.ReservationEnd)
	return err
}

// ReservationResponse is the public projection of a reservation.  Only
// these fields ever leave the service.
type ReservationResponse struct {
	ID               uint64 `json:"id"`
	ParkingID        uint64 `json:"parkingId"`
	UserID           uint64 `json:"userId"`
	VehicleID        uint64 `json:"vehicleId"`
	ReservationStart string `json:"reservationStart"`
	ReservationEnd   string `json:"reservationEnd"`
	Status           Status `json:"status"`
}

// ToResponse projects the reservation with UTC RFC 3339 timestamps.
func (r Reservation) ToResponse() ReservationResponse {
	return ReservationResponse{
		ID:               r.ID,
		ParkingID:        r.ParkingID,
		UserID:           r.UserID,
		VehicleID:        r.VehicleID,
		ReservationStart: r.ReservationStart.UTC().Format(time.RFC3339),
		ReservationEnd:   r.ReservationEnd.UTC().Format(time.RFC3339),
		Status:           r.Status,
	}
}

// StatusSummary maps every status to the number of reservations in it.
type StatusSummary map[Status]int64

// NewStatusSummary returns a summary with every status present and zero.
func NewStatusSummary() StatusSummary {
	s := make(StatusSummary, len(Statuses))
	for _, st := range Statuses {
		s[st] = 0
	}
	return s
}
