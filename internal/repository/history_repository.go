package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/estate-claims/internal/database"
	"github.com/iliyamo/estate-claims/internal/model"
)

// HistoryRepo appends to and reads the offer_history audit trail.  There
// is deliberately no update or delete method.
type HistoryRepo struct {
	db *sql.DB
}

// NewHistoryRepo returns a HistoryRepo bound to the given database.
func NewHistoryRepo(db *sql.DB) *HistoryRepo { return &HistoryRepo{db: db} }

// AppendTx writes one entry inside the transaction of the operation that
// caused it, so entries commit (or vanish) together with that operation.
func (r *HistoryRepo) AppendTx(ctx context.Context, tx *sql.Tx, e *model.OfferHistoryEntry) error {
	const q = `INSERT INTO offer_history (offer_id, item_id, buyer_id, offer_amount, action, created_at)
               VALUES (?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, e.OfferID, e.ItemID, e.BuyerID, e.AmountCents, string(e.Action), e.CreatedAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = uint64(id)
	return nil
}

// ListByItem returns an item's history in append order.
func (r *HistoryRepo) ListByItem(ctx context.Context, itemID uint64) ([]model.OfferHistoryEntry, error) {
	return database.QueryAll(ctx, r.db, func(rows *sql.Rows) (model.OfferHistoryEntry, error) {
		var (
			e      model.OfferHistoryEntry
			action string
		)
		if err := rows.Scan(&e.ID, &e.OfferID, &e.ItemID, &e.BuyerID, &e.AmountCents, &action, &e.CreatedAt); err != nil {
			return e, err
		}
		e.Action = model.HistoryAction(action)
		return e, nil
	}, `SELECT id, offer_id, item_id, buyer_id, offer_amount, action, created_at
        FROM offer_history WHERE item_id = ? ORDER BY id ASC`, itemID)
}

// CountByItem returns the number of history entries recorded for an item.
func (r *HistoryRepo) CountByItem(ctx context.Context, itemID uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM offer_history WHERE item_id = ?`, itemID).Scan(&n)
	return n, err
}
