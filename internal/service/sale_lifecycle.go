package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/estate-claims/internal/model"
	"github.com/iliyamo/estate-claims/internal/repository"
	"github.com/iliyamo/estate-claims/internal/utils"
)

const (
	// codeAlphabet leaves out 0/O and 1/I/L so codes survive being read aloud.
	codeAlphabet     = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"
	accessCodeLength = 8
	qrCodeLength     = 12
	maxCodeAttempts  = 10
)

// SaleLifecycleManager computes sale phases, gates offer intake and issues
// unique access and QR codes.
type SaleLifecycleManager struct {
	sales *repository.SaleRepo
	items *repository.ItemRepo

	// Now and RandomCode are replaceable in tests.
	Now        func() time.Time
	RandomCode func(n int) (string, error)
}

// NewSaleLifecycleManager wires the manager to its repositories.
func NewSaleLifecycleManager(sales *repository.SaleRepo, items *repository.ItemRepo) *SaleLifecycleManager {
	return &SaleLifecycleManager{
		sales: sales,
		items: items,
		Now:   utcNow,
		RandomCode: func(n int) (string, error) {
			return utils.RandomString(codeAlphabet, n)
		},
	}
}

func utcNow() time.Time { return time.Now().UTC() }

func (m *SaleLifecycleManager) now() time.Time { return m.Now().UTC().Truncate(time.Microsecond) }

// Phase returns the phase sale is in at now.  Claim and pickup windows are
// inclusive at both ends.
func (m *SaleLifecycleManager) Phase(sale *model.Sale, now time.Time) model.SalePhase {
	switch {
	case sale.Status == model.SaleCancelled:
		return model.PhaseClosed
	case now.Before(sale.ClaimStart):
		if sale.PreviewStart != nil && !now.Before(*sale.PreviewStart) {
			return model.PhasePreview
		}
		return model.PhaseScheduled
	case !now.After(sale.ClaimEnd):
		return model.PhaseClaiming
	case !now.Before(sale.PickupStart) && !now.After(sale.PickupEnd):
		return model.PhasePickup
	default:
		return model.PhaseClosed
	}
}

// IsClaimingOpen is the single gate for new offers and offer increases.
func (m *SaleLifecycleManager) IsClaimingOpen(sale *model.Sale, now time.Time) bool {
	return m.Phase(sale, now) == model.PhaseClaiming
}

// GenerateAccessCode returns a sale access code not used by any sale.
func (m *SaleLifecycleManager) GenerateAccessCode(ctx context.Context) (string, error) {
	return m.uniqueCode(ctx, accessCodeLength, m.sales.AccessCodeExists)
}

// GenerateQRCode returns an item tag code not used by any item.
func (m *SaleLifecycleManager) GenerateQRCode(ctx context.Context) (string, error) {
	return m.uniqueCode(ctx, qrCodeLength, m.items.QRCodeExists)
}

func (m *SaleLifecycleManager) uniqueCode(ctx context.Context, n int, exists func(context.Context, string) (bool, error)) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := m.RandomCode(n)
		if err != nil {
			return "", fmt.Errorf("generating code: %w", err)
		}
		taken, err := exists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("checking code uniqueness: %w", err)
		}
		if !taken {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}

// NewSale is the seller input for CreateSale.
type NewSale struct {
	Title        string
	Address      string
	Latitude     *float64
	Longitude    *float64
	PreviewStart *time.Time
	ClaimStart   time.Time
	ClaimEnd     time.Time
	PickupStart  time.Time
	PickupEnd    time.Time
}

func (in NewSale) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return invalid("title is required")
	}
	if in.ClaimStart.IsZero() || in.ClaimEnd.IsZero() || in.PickupStart.IsZero() || in.PickupEnd.IsZero() {
		return invalid("claim and pickup windows are required")
	}
	if !in.ClaimStart.Before(in.ClaimEnd) {
		return invalid("claim_start must be before claim_end")
	}
	if in.PickupStart.Before(in.ClaimEnd) {
		return invalid("pickup_start must not be before claim_end")
	}
	if !in.PickupStart.Before(in.PickupEnd) {
		return invalid("pickup_start must be before pickup_end")
	}
	if in.PreviewStart != nil && !in.PreviewStart.Before(in.ClaimStart) {
		return invalid("preview_start must be before claim_start")
	}
	return nil
}

// CreateSale validates the windows, assigns a fresh access code and stores
// the sale.  A code taken between the uniqueness check and the insert is
// retried like any other collision.
func (m *SaleLifecycleManager) CreateSale(ctx context.Context, sellerID uint64, in NewSale) (*model.Sale, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	sale := &model.Sale{
		SellerID:     sellerID,
		Title:        strings.TrimSpace(in.Title),
		Address:      strings.TrimSpace(in.Address),
		Latitude:     in.Latitude,
		Longitude:    in.Longitude,
		PreviewStart: utcPtr(in.PreviewStart),
		ClaimStart:   in.ClaimStart.UTC(),
		ClaimEnd:     in.ClaimEnd.UTC(),
		PickupStart:  in.PickupStart.UTC(),
		PickupEnd:    in.PickupEnd.UTC(),
		Status:       model.SaleActive,
		CreatedAt:    m.now(),
	}
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := m.GenerateAccessCode(ctx)
		if err != nil {
			return nil, err
		}
		sale.AccessCode = code
		err = m.sales.Create(ctx, sale)
		if err == nil {
			return sale, nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("creating sale: %w", err)
		}
	}
	return nil, ErrCodeSpaceExhausted
}

// NewItem is the seller input for AddItem.
type NewItem struct {
	Title              string
	Description        string
	StartingPriceCents int64
}

// AddItem lists an item under a sale owned by sellerID.
func (m *SaleLifecycleManager) AddItem(ctx context.Context, sellerID, saleID uint64, in NewItem) (*model.Item, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, invalid("title is required")
	}
	if in.StartingPriceCents <= 0 {
		return nil, invalid("starting price must be positive")
	}
	sale, err := m.sales.GetByID(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if sale.SellerID != sellerID {
		return nil, ErrForbidden
	}
	item := &model.Item{
		SaleID:             saleID,
		Title:              strings.TrimSpace(in.Title),
		Description:        in.Description,
		StartingPriceCents: in.StartingPriceCents,
		CreatedAt:          m.now(),
	}
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := m.GenerateQRCode(ctx)
		if err != nil {
			return nil, err
		}
		item.QRCode = code
		err = m.items.Create(ctx, item)
		if err == nil {
			return item, nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("creating item: %w", err)
		}
	}
	return nil, ErrCodeSpaceExhausted
}

// CancelSale withdraws a sale; it moves to the closed phase immediately.
func (m *SaleLifecycleManager) CancelSale(ctx context.Context, sellerID, saleID uint64) error {
	return m.sales.Cancel(ctx, saleID, sellerID)
}

// SaleByAccessCode resolves a public code to the sale and its current phase.
func (m *SaleLifecycleManager) SaleByAccessCode(ctx context.Context, code string) (*model.Sale, model.SalePhase, error) {
	sale, err := m.sales.GetByAccessCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, "", err
	}
	return sale, m.Phase(sale, m.now()), nil
}

// ListItems returns the items listed under a sale.
func (m *SaleLifecycleManager) ListItems(ctx context.Context, saleID uint64) ([]model.Item, error) {
	return m.items.ListBySale(ctx, saleID)
}

// GetItem loads a single item.
func (m *SaleLifecycleManager) GetItem(ctx context.Context, itemID uint64) (*model.Item, error) {
	return m.items.GetByID(ctx, itemID)
}

// ListSellerSales returns the sales owned by a seller.
func (m *SaleLifecycleManager) ListSellerSales(ctx context.Context, sellerID uint64) ([]model.Sale, error) {
	return m.sales.ListBySeller(ctx, sellerID)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
