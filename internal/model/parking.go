package model

import (
	"time"

	"gopkg.in/guregu/null.v4"
)

// Parking is a parking lot and the tenant boundary of the system.  Every
// reservation is owned by exactly one parking through its parking_id.
// TotalSpots is the capacity checked by the availability query.
type Parking struct {
	ID         uint64    `db:"id"`          // parkings.id
	Name       string    `db:"name"`        // parkings.name (unique)
	TotalSpots int       `db:"total_spots"` // parkings.total_spots
	CreatedAt  time.Time `db:"created_at"`
	CreatedBy  null.Int  `db:"created_by"`
	UpdatedAt  null.Time `db:"updated_at"`
	UpdatedBy  null.Int  `db:"updated_by"`
	DeletedAt  null.Time `db:"deleted_at"`
	DeletedBy  null.Int  `db:"deleted_by"`
}

// ParkingResponse is the public projection of a parking lot.
type ParkingResponse struct {
	ID         uint64 `json:"id"`
	Name       string `json:"name"`
	TotalSpots int    `json:"totalSpots"`
}

// ToResponse projects the parking for API responses.
func (p Parking) ToResponse() ParkingResponse {
	return ParkingResponse{ID: p.ID, Name: p.Name, TotalSpots: p.TotalSpots}
}
