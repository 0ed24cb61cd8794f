package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/estate-claims/internal/database"
	"github.com/iliyamo/estate-claims/internal/model"
)

// ErrItemNotFound indicates that an item was not located in the DB.
var ErrItemNotFound = errors.New("item not found")

const itemColumns = `id, sale_id, title, description, starting_price, current_high_offer, offer_count,
       status, winning_offer_id, qr_code, created_at`

// ItemRepo encapsulates database operations for items.  The claim columns
// (status, winning_offer_id) are written only through ClaimTx.
type ItemRepo struct {
	db *sql.DB
}

// NewItemRepo constructs an ItemRepo given a DB handle.
func NewItemRepo(db *sql.DB) *ItemRepo { return &ItemRepo{db: db} }

func scanItem(s scanner) (model.Item, error) {
	var (
		it      model.Item
		status  string
		winning sql.NullInt64
	)
	err := s.Scan(&it.ID, &it.SaleID, &it.Title, &it.Description, &it.StartingPriceCents, &it.CurrentHighOfferCents,
		&it.OfferCount, &status, &winning, &it.QRCode, &it.CreatedAt)
	if err != nil {
		return model.Item{}, err
	}
	it.Status = model.ItemStatus(status)
	if winning.Valid {
		id := uint64(winning.Int64)
		it.WinningOfferID = &id
	}
	return it, nil
}

// Create inserts an available item and assigns the generated ID.
func (r *ItemRepo) Create(ctx context.Context, it *model.Item) error {
	const q = `INSERT INTO items (sale_id, title, description, starting_price, current_high_offer, offer_count, status, qr_code, created_at)
               VALUES (?, ?, ?, ?, 0, 0, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, it.SaleID, it.Title, it.Description, it.StartingPriceCents,
		string(model.ItemAvailable), it.QRCode, it.CreatedAt.UTC())
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
	it.ID = uint64(id)
	it.Status = model.ItemAvailable
	it.CurrentHighOfferCents = 0
	it.OfferCount = 0
	return nil
}

func (r *ItemRepo) getByID(ctx context.Context, q database.Querier, id uint64) (*model.Item, error) {
	it, err := scanItem(q.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	return &it, nil
}

// GetByID retrieves an item by ID or returns ErrItemNotFound.
func (r *ItemRepo) GetByID(ctx context.Context, id uint64) (*model.Item, error) {
	return r.getByID(ctx, r.db, id)
}

// GetByIDTx is GetByID inside the caller's transaction.
func (r *ItemRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Item, error) {
	return r.getByID(ctx, tx, id)
}

// ListBySale returns all items of a sale in listing order.
func (r *ItemRepo) ListBySale(ctx context.Context, saleID uint64) ([]model.Item, error) {
	return database.QueryAll(ctx, r.db, func(rows *sql.Rows) (model.Item, error) { return scanItem(rows) },
		`SELECT `+itemColumns+` FROM items WHERE sale_id = ? ORDER BY id ASC`, saleID)
}

// QRCodeExists reports whether any item already uses code.
func (r *ItemRepo) QRCodeExists(ctx context.Context, code string) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items WHERE qr_code = ?`, code).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// RecordOfferTx bumps offer_count and raises current_high_offer to amount
// when it is higher, in one statement so concurrent placements never lose
// an update.  The update only applies while the item is available; it
// returns false when the item is already claimed (or missing).  Touching
// the row first also holds its lock for the rest of the transaction.
func (r *ItemRepo) RecordOfferTx(ctx context.Context, tx *sql.Tx, itemID uint64, amount int64) (bool, error) {
	const q = `UPDATE items
               SET current_high_offer = CASE WHEN current_high_offer < ? THEN ? ELSE current_high_offer END,
                   offer_count = offer_count + 1
               WHERE id = ? AND status = ?`
	res, err := tx.ExecContext(ctx, q, amount, amount, itemID, string(model.ItemAvailable))
	if err != nil {
		return false, err
	}
	n, err := database.RowsAffected(res)
	return n == 1, err
}

// RaiseHighOfferTx raises current_high_offer to amount when it is higher
// without counting a new offer.  Like RecordOfferTx it only applies to an
// available item.
func (r *ItemRepo) RaiseHighOfferTx(ctx context.Context, tx *sql.Tx, itemID uint64, amount int64) (bool, error) {
	const q = `UPDATE items
               SET current_high_offer = CASE WHEN current_high_offer < ? THEN ? ELSE current_high_offer END
               WHERE id = ? AND status = ?`
	res, err := tx.ExecContext(ctx, q, amount, amount, itemID, string(model.ItemAvailable))
	if err != nil {
		return false, err
	}
	n, err := database.RowsAffected(res)
	return n == 1, err
}

// ClaimTx is the compare-and-set from available to claimed.  It returns
// false when zero rows matched, meaning another transaction already
// claimed the item.
func (r *ItemRepo) ClaimTx(ctx context.Context, tx *sql.Tx, itemID, offerID uint64) (bool, error) {
	const q = `UPDATE items SET status = ?, winning_offer_id = ? WHERE id = ? AND status = ?`
	res, err := tx.ExecContext(ctx, q, string(model.ItemClaimed), offerID, itemID, string(model.ItemAvailable))
	if err != nil {
		return false, err
	}
	n, err := database.RowsAffected(res)
	return n == 1, err
}
