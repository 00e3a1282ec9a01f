package repository

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/utils"
)

type UserRepo struct{ DB *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id, email, password_hash, role, parking_id, is_active, created_at"

// Create hashes the password, inserts the user and returns its ID.
// ErrDuplicate when the email is already registered.
func (r *UserRepo) Create(ctx context.Context, email, password, role string, parkingID uint64, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	return insert(ctx, r.DB,
		"INSERT INTO users (email, password_hash, role, parking_id) VALUES (?, ?, ?, ?)",
		email, hash, role, parkingID)
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var u model.User
	err := r.DB.GetContext(ctx, &u, r.DB.Rebind("SELECT "+userColumns+" FROM users WHERE email = ? LIMIT 1"), email)
	return u, mapErr(err)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	var u model.User
	err := r.DB.GetContext(ctx, &u, r.DB.Rebind("SELECT "+userColumns+" FROM users WHERE id = ? LIMIT 1"), id)
	return u, mapErr(err)
}
