package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/estate-claims/internal/model"
	"github.com/iliyamo/estate-claims/internal/utils"
)

type SellerRepo struct{ DB *sql.DB }

func NewSellerRepo(db *sql.DB) *SellerRepo { return &SellerRepo{DB: db} }

var ErrEmailExists = errors.New("email already exists")

// Create inserts a seller and returns its ID.
func (r *SellerRepo) Create(ctx context.Context, email, password string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO sellers (email, password_hash, created_at) VALUES (?,?,?)",
		email, hash, time.Now().UTC())
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// UpdatePassword replaces a seller's password hash.
func (r *SellerRepo) UpdatePassword(ctx context.Context, id uint64, password string, cost int) error {
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, "UPDATE sellers SET password_hash=? WHERE id=?", hash, id)
	return err
}

// GetByEmail fetches a seller by normalized email.
func (r *SellerRepo) GetByEmail(ctx context.Context, email string) (model.Seller, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var s model.Seller
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,email,password_hash,created_at FROM sellers WHERE email=? LIMIT 1",
		email).Scan(&s.ID, &s.Email, &s.PasswordHash, &s.CreatedAt)
	return s, err
}

// GetByID fetches a seller by id.
func (r *SellerRepo) GetByID(ctx context.Context, id uint64) (model.Seller, error) {
	var s model.Seller
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,email,password_hash,created_at FROM sellers WHERE id=? LIMIT 1",
		id).Scan(&s.ID, &s.Email, &s.PasswordHash, &s.CreatedAt)
	return s, err
}
