package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/estate-claims/internal/database"
	"github.com/iliyamo/estate-claims/internal/model"
)

// ErrSaleNotFound indicates that a sale was not located in the DB.
var ErrSaleNotFound = errors.New("sale not found")

const saleColumns = `id, seller_id, title, address, latitude, longitude, preview_start,
       claim_start, claim_end, pickup_start, pickup_end, access_code, status, created_at`

// SaleRepo manages persistence for sales.  Sales are never hard-deleted;
// a seller withdraws one by cancelling it.
type SaleRepo struct {
	db *sql.DB
}

// NewSaleRepo constructs a SaleRepo with the given DB handle.
func NewSaleRepo(db *sql.DB) *SaleRepo { return &SaleRepo{db: db} }

// DB exposes the underlying sql.DB so services can begin transactions
// spanning multiple repositories.
func (r *SaleRepo) DB() *sql.DB { return r.db }

func scanSale(s scanner) (model.Sale, error) {
	var (
		sale         model.Sale
		lat, lng     sql.NullFloat64
		previewStart sql.NullTime
		status       string
	)
	err := s.Scan(&sale.ID, &sale.SellerID, &sale.Title, &sale.Address, &lat, &lng, &previewStart,
		&sale.ClaimStart, &sale.ClaimEnd, &sale.PickupStart, &sale.PickupEnd, &sale.AccessCode, &status, &sale.CreatedAt)
	if err != nil {
		return model.Sale{}, err
	}
	if lat.Valid {
		sale.Latitude = &lat.Float64
	}
	if lng.Valid {
		sale.Longitude = &lng.Float64
	}
	if previewStart.Valid {
		t := previewStart.Time.UTC()
		sale.PreviewStart = &t
	}
	sale.Status = model.SaleStatus(status)
	sale.ClaimStart = sale.ClaimStart.UTC()
	sale.ClaimEnd = sale.ClaimEnd.UTC()
	sale.PickupStart = sale.PickupStart.UTC()
	sale.PickupEnd = sale.PickupEnd.UTC()
	return sale, nil
}

// Create inserts a new sale and assigns the generated ID back to s.  The
// access code must already be set; a collision yields ErrConflict.
func (r *SaleRepo) Create(ctx context.Context, s *model.Sale) error {
	const q = `INSERT INTO sales (seller_id, title, address, latitude, longitude, preview_start,
                                  claim_start, claim_end, pickup_start, pickup_end, access_code, status, created_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if s.Status == "" {
		s.Status = model.SaleActive
	}
	res, err := r.db.ExecContext(ctx, q, s.SellerID, s.Title, s.Address, s.Latitude, s.Longitude, utcOrNil(s.PreviewStart),
		s.ClaimStart.UTC(), s.ClaimEnd.UTC(), s.PickupStart.UTC(), s.PickupEnd.UTC(), s.AccessCode, string(s.Status), s.CreatedAt.UTC())
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return nil
}

func (r *SaleRepo) getByID(ctx context.Context, q database.Querier, id uint64) (*model.Sale, error) {
	sale, err := scanSale(q.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSaleNotFound
		}
		return nil, err
	}
	return &sale, nil
}

// GetByID retrieves a sale by its ID.  It returns ErrSaleNotFound if
// there is no matching row.
func (r *SaleRepo) GetByID(ctx context.Context, id uint64) (*model.Sale, error) {
	return r.getByID(ctx, r.db, id)
}

// GetByIDTx is GetByID inside the caller's transaction.
func (r *SaleRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Sale, error) {
	return r.getByID(ctx, tx, id)
}

// GetByAccessCode retrieves a sale by its public access code.
func (r *SaleRepo) GetByAccessCode(ctx context.Context, code string) (*model.Sale, error) {
	sale, err := scanSale(r.db.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM sales WHERE access_code = ?`, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSaleNotFound
		}
		return nil, err
	}
	return &sale, nil
}

// AccessCodeExists reports whether any sale already uses code.
func (r *SaleRepo) AccessCodeExists(ctx context.Context, code string) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sales WHERE access_code = ?`, code).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListBySeller returns the seller's sales, newest claim window first.
func (r *SaleRepo) ListBySeller(ctx context.Context, sellerID uint64) ([]model.Sale, error) {
	return database.QueryAll(ctx, r.db, func(rows *sql.Rows) (model.Sale, error) { return scanSale(rows) },
		`SELECT `+saleColumns+` FROM sales WHERE seller_id = ? ORDER BY claim_start DESC, id DESC`, sellerID)
}

// Cancel marks a sale owned by sellerID as cancelled.  It returns
// ErrSaleNotFound when the sale does not exist and ErrForbidden when it
// belongs to someone else.
func (r *SaleRepo) Cancel(ctx context.Context, id, sellerID uint64) error {
	sale, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if sale.SellerID != sellerID {
		return ErrForbidden
	}
	_, err = r.db.ExecContext(ctx, `UPDATE sales SET status = ? WHERE id = ?`, string(model.SaleCancelled), id)
	return err
}

// utcOrNil converts an optional timestamp into a driver argument.
func utcOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
