package model

import "time"

// Role names carried in the access token's "role" claim.
const (
	RoleAdmin    = "admin"
	RoleEmployer = "employer"
	RoleClient   = "client"
)

// User represents an account as stored in the `users` table.  Every user
// belongs to one parking; the parking id is copied into the access token
// and becomes the tenant of each request.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique email address.
//  PasswordHash – bcrypt hashed password.
//  Role         – admin, employer or client.
//  ParkingID    – tenant the user works in or books with.
//  IsActive     – whether the account may log in.
//  CreatedAt    – timestamp of creation.
type User struct {
	ID           uint64    `db:"id"`            // users.id
	Email        string    `db:"email"`         // users.email
	PasswordHash string    `db:"password_hash"` // users.password_hash
	Role         string    `db:"role"`          // users.role
	ParkingID    uint64    `db:"parking_id"`    // users.parking_id
	IsActive     bool      `db:"is_active"`     // users.is_active
	CreatedAt    time.Time `db:"created_at"`    // users.created_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  The plain
// token is not stored; only its SHA‑256 hash.
type RefreshToken struct {
	ID        uint64     `db:"id"`
	UserID    uint64     `db:"user_id"`
	TokenHash string     `db:"token_hash"`
	ExpiresAt time.Time  `db:"expires_at"`
	RevokedAt *time.Time `db:"revoked_at"`
	CreatedAt time.Time  `db:"created_at"`
}

// Identity is the authenticated caller of a request: who acts and in
// which tenant.  It is built from the JWT claims by the middleware.
type Identity struct {
	UserID    uint64
	ParkingID uint64
	Role      string
}
