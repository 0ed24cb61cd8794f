package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/estate-claims/internal/database"
	"github.com/iliyamo/estate-claims/internal/model"
)

// ErrOfferNotFound indicates that an offer was not located in the DB.
var ErrOfferNotFound = errors.New("offer not found")

const offerColumns = `id, item_id, buyer_id, offer_amount, max_offer, status, seller_notes, created_at, updated_at`

// OfferRank is the one ordering used wherever "highest offer" is computed:
// amount descending, then first come, then lowest id.  model.RankOffers
// applies the same rule in memory.
const OfferRank = `offer_amount DESC, created_at ASC, id ASC`

// OfferRepo provides data access to the offers table.  Status changes are
// conditional updates so that a caller racing another transaction sees
// zero affected rows instead of overwriting a newer state.
type OfferRepo struct {
	db *sql.DB
}

// NewOfferRepo returns a new OfferRepo bound to the provided database.
func NewOfferRepo(db *sql.DB) *OfferRepo { return &OfferRepo{db: db} }

func scanOffer(s scanner) (model.Offer, error) {
	var (
		o      model.Offer
		maxOff sql.NullInt64
		status string
		notes  sql.NullString
	)
	if err := s.Scan(&o.ID, &o.ItemID, &o.BuyerID, &o.AmountCents, &maxOff, &status, &notes, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return model.Offer{}, err
	}
	if maxOff.Valid {
		v := maxOff.Int64
		o.MaxOfferCents = &v
	}
	o.Status = model.OfferStatus(status)
	o.SellerNotes = nullStringPtr(notes)
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	return o, nil
}

func scanOfferRows(rows *sql.Rows) (model.Offer, error) { return scanOffer(rows) }

// CreateTx inserts an active offer within the provided transaction and
// assigns the generated ID.
func (r *OfferRepo) CreateTx(ctx context.Context, tx *sql.Tx, o *model.Offer) error {
	const q = `INSERT INTO offers (item_id, buyer_id, offer_amount, max_offer, status, created_at, updated_at)
               VALUES (?, ?, ?, ?, ?, ?, ?)`
	o.Status = model.OfferActive
	res, err := tx.ExecContext(ctx, q, o.ItemID, o.BuyerID, o.AmountCents, o.MaxOfferCents, string(o.Status),
		o.CreatedAt.UTC(), o.CreatedAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	o.ID = uint64(id)
	o.UpdatedAt = o.CreatedAt
	return nil
}

func (r *OfferRepo) getByID(ctx context.Context, q database.Querier, id uint64) (*model.Offer, error) {
	o, err := scanOffer(q.QueryRowContext(ctx, `SELECT `+offerColumns+` FROM offers WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOfferNotFound
		}
		return nil, err
	}
	return &o, nil
}

// GetByID retrieves an offer or returns ErrOfferNotFound.
func (r *OfferRepo) GetByID(ctx context.Context, id uint64) (*model.Offer, error) {
	return r.getByID(ctx, r.db, id)
}

// GetByIDTx is GetByID inside the caller's transaction.
func (r *OfferRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Offer, error) {
	return r.getByID(ctx, tx, id)
}

// ActiveForBuyerItemTx returns the buyer's active offer on an item within
// the caller's transaction, or ErrOfferNotFound when there is none.
func (r *OfferRepo) ActiveForBuyerItemTx(ctx context.Context, tx *sql.Tx, buyerID, itemID uint64) (*model.Offer, error) {
	const query = `SELECT ` + offerColumns + ` FROM offers
               WHERE buyer_id = ? AND item_id = ? AND status = ?
               ORDER BY id DESC LIMIT 1`
	o, err := scanOffer(tx.QueryRowContext(ctx, query, buyerID, itemID, string(model.OfferActive)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOfferNotFound
		}
		return nil, err
	}
	return &o, nil
}

// ListByItem returns every offer on an item in rank order.  When statuses
// is non-empty only offers in those statuses are returned.
func (r *OfferRepo) ListByItem(ctx context.Context, itemID uint64, statuses ...model.OfferStatus) ([]model.Offer, error) {
	q := `SELECT ` + offerColumns + ` FROM offers WHERE item_id = ?`
	args := []any{itemID}
	if len(statuses) > 0 {
		q += ` AND status IN (`
		for i, st := range statuses {
			if i > 0 {
				q += ","
			}
			q += "?"
			args = append(args, string(st))
		}
		q += `)`
	}
	q += ` ORDER BY ` + OfferRank
	return database.QueryAll(ctx, r.db, scanOfferRows, q, args...)
}

// ListByBuyer returns a buyer's offers, newest first.
func (r *OfferRepo) ListByBuyer(ctx context.Context, buyerID uint64) ([]model.Offer, error) {
	return database.QueryAll(ctx, r.db, scanOfferRows,
		`SELECT `+offerColumns+` FROM offers WHERE buyer_id = ? ORDER BY created_at DESC, id DESC`, buyerID)
}

// UpdateAmountTx raises an active offer's amount.  It only applies while
// the offer is active and the stored amount is below newAmount.
func (r *OfferRepo) UpdateAmountTx(ctx context.Context, tx *sql.Tx, offerID uint64, newAmount int64, maxOffer *int64, now time.Time) (bool, error) {
	const q = `UPDATE offers SET offer_amount = ?, max_offer = COALESCE(?, max_offer), updated_at = ?
               WHERE id = ? AND status = ? AND offer_amount < ?`
	res, err := tx.ExecContext(ctx, q, newAmount, maxOffer, now.UTC(), offerID, string(model.OfferActive), newAmount)
	if err != nil {
		return false, err
	}
	n, err := database.RowsAffected(res)
	return n == 1, err
}

// TransitionTx moves an offer from one status to another and optionally
// records seller notes.  It returns false when the offer is not in from.
func (r *OfferRepo) TransitionTx(ctx context.Context, tx *sql.Tx, offerID uint64, from, to model.OfferStatus, notes *string, now time.Time) (bool, error) {
	const q = `UPDATE offers SET status = ?, seller_notes = COALESCE(?, seller_notes), updated_at = ?
               WHERE id = ? AND status = ?`
	res, err := tx.ExecContext(ctx, q, string(to), notes, now.UTC(), offerID, string(from))
	if err != nil {
		return false, err
	}
	n, err := database.RowsAffected(res)
	return n == 1, err
}

// OutbidOthersTx marks every other active offer on the item as outbid and
// returns how many rows changed.
func (r *OfferRepo) OutbidOthersTx(ctx context.Context, tx *sql.Tx, itemID, winnerID uint64, now time.Time) (int64, error) {
	const q = `UPDATE offers SET status = ?, updated_at = ? WHERE item_id = ? AND id <> ? AND status = ?`
	res, err := tx.ExecContext(ctx, q, string(model.OfferOutbid), now.UTC(), itemID, winnerID, string(model.OfferActive))
	if err != nil {
		return 0, err
	}
	return database.RowsAffected(res)
}

// ExpireOlderThan marks active offers created before cutoff as expired and
// returns how many rows changed.
func (r *OfferRepo) ExpireOlderThan(ctx context.Context, cutoff, now time.Time) (int64, error) {
	const q = `UPDATE offers SET status = ?, updated_at = ? WHERE status = ? AND created_at < ?`
	res, err := r.db.ExecContext(ctx, q, string(model.OfferExpired), now.UTC(), string(model.OfferActive), cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return database.RowsAffected(res)
}
