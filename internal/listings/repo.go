package listings

import (
	"context"
	"strings"
	"time"

	pkgdb "github.com/mintaro-labs/mintaro-backend/pkg/db"
	"github.com/mintaro-labs/mintaro-backend/pkg/db/models"
	"github.com/mintaro-labs/mintaro-backend/pkg/pagination"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Repository encapsulates listing persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a listing repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx runs fn against a repository bound to a single transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(*Repository) error) error {
	return pkgdb.FromGorm(r.db).WithTx(ctx, func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	})
}

// Create persists a freshly minted listing.
func (r *Repository) Create(ctx context.Context, listing *models.Listing) error {
	return r.db.WithContext(ctx).Create(listing).Error
}

// FindByTokenID loads one listing by its token id.
func (r *Repository) FindByTokenID(ctx context.Context, tokenID int64) (*models.Listing, error) {
	var listing models.Listing
	if err := r.db.WithContext(ctx).First(&listing, "token_id = ?", tokenID).Error; err != nil {
		return nil, err
	}
	return &listing, nil
}

// NextTokenID returns the next monotonically assigned token id.
func (r *Repository) NextTokenID(ctx context.Context) (int64, error) {
	var next int64
	err := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Select("COALESCE(MAX(token_id), 0) + 1").
		Scan(&next).Error
	if err != nil {
		return 0, err
	}
	return next, nil
}

// UpdateGuarded applies updates conditioned on the version the caller
// read, bumping the version on success. A zero rows-affected result
// means the record vanished or a concurrent writer won.
func (r *Repository) UpdateGuarded(ctx context.Context, tokenID, version int64, updates map[string]any) (int64, error) {
	merged := make(map[string]any, len(updates)+1)
	for k, v := range updates {
		merged[k] = v
	}
	merged["version"] = version + 1

	res := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("token_id = ? AND version = ?", tokenID, version).
		Updates(merged)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// IncrementVote bumps one vote counter, restricted to listings whose
// auction is still open. The increment happens in SQL so concurrent
// votes never lose updates. Returns rows affected.
func (r *Repository) IncrementVote(ctx context.Context, tokenID int64, column string, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("token_id = ? AND is_auction = ? AND auction_end_time > ?", tokenID, true, now).
		Updates(map[string]any{
			column:    gorm.Expr(column+" + 1"),
			"version": gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// FindExpiredAuctions returns the candidate batch for finalization:
// still in auction mode, still for sale, deadline in the past.
func (r *Repository) FindExpiredAuctions(ctx context.Context, now time.Time) ([]models.Listing, error) {
	var out []models.Listing
	err := r.db.WithContext(ctx).
		Where("is_auction = ? AND is_for_sale = ? AND auction_end_time < ?", true, true, now).
		Order("auction_end_time ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// List returns a keyset-paginated page of listings, newest first.
func (r *Repository) List(ctx context.Context, params ListParams, now time.Time) ([]models.Listing, error) {
	cursor, err := pagination.ParseCursor(strings.TrimSpace(params.Cursor))
	if err != nil {
		return nil, err
	}

	q := r.db.WithContext(ctx).Model(&models.Listing{})

	switch params.Scope {
	case ScopeForSale:
		q = q.Where("is_for_sale = ?", true)
	case ScopeForRent:
		q = q.Where("is_for_rent = ?", true)
	case ScopeAuction:
		q = q.Where("is_auction = ? AND auction_end_time > ?", true, now)
	}
	if params.Owner != "" {
		q = q.Where("owner = ?", strings.ToLower(params.Owner))
	}
	if search := strings.TrimSpace(params.Search); search != "" {
		// LIKE over lower(name) keeps the filter portable across
		// postgres and the sqlite test harness.
		q = q.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}
	if cursor != nil {
		q = q.Where("(created_at < ?) OR (created_at = ? AND token_id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.TokenID)
	}

	var out []models.Listing
	err = q.Order("created_at DESC, token_id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListFinalized returns ready-for-purchase listings, newest first.
func (r *Repository) ListFinalized(ctx context.Context, cursorValue string, limit int) ([]models.Listing, error) {
	cursor, err := pagination.ParseCursor(strings.TrimSpace(cursorValue))
	if err != nil {
		return nil, err
	}

	q := r.db.WithContext(ctx).Model(&models.Listing{}).
		Where("ready_for_purchase = ?", true)
	if cursor != nil {
		q = q.Where("(created_at < ?) OR (created_at = ? AND token_id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.TokenID)
	}

	var out []models.Listing
	err = q.Order("created_at DESC, token_id DESC").
		Limit(pagination.LimitWithBuffer(limit)).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

type statsRow struct {
	TotalListings         int64
	ForSale               int64
	ForRent               int64
	CurrentlyRented       int64
	ActiveAuctions        int64
	ReadyForPurchase      int64
	Purchased             int64
	TotalSales            int64
	TotalUpvotes          int64
	TotalDownvotes        int64
	AverageFinalizedPrice decimal.Decimal
}

// Stats aggregates marketplace-wide counts in one scan.
func (r *Repository) Stats(ctx context.Context, now time.Time) (MarketStatsDTO, error) {
	var row statsRow
	err := r.db.WithContext(ctx).Raw(`
SELECT
    COUNT(*) AS total_listings,
    COALESCE(SUM(CASE WHEN is_for_sale THEN 1 ELSE 0 END), 0) AS for_sale,
    COALESCE(SUM(CASE WHEN is_for_rent THEN 1 ELSE 0 END), 0) AS for_rent,
    COALESCE(SUM(CASE WHEN is_for_rent AND renter IS NOT NULL AND rental_end_time > ? THEN 1 ELSE 0 END), 0) AS currently_rented,
    COALESCE(SUM(CASE WHEN is_auction AND auction_end_time > ? THEN 1 ELSE 0 END), 0) AS active_auctions,
    COALESCE(SUM(CASE WHEN ready_for_purchase THEN 1 ELSE 0 END), 0) AS ready_for_purchase,
    COALESCE(SUM(CASE WHEN purchased_at IS NOT NULL THEN 1 ELSE 0 END), 0) AS purchased,
    COALESCE(SUM(total_sales), 0) AS total_sales,
    COALESCE(SUM(upvotes), 0) AS total_upvotes,
    COALESCE(SUM(downvotes), 0) AS total_downvotes,
    COALESCE(AVG(CASE WHEN finalized_at IS NOT NULL THEN base_price END), 0) AS average_finalized_price
FROM listings`, now, now).Scan(&row).Error
	if err != nil {
		return MarketStatsDTO{}, err
	}

	return MarketStatsDTO{
		TotalListings:         row.TotalListings,
		ForSale:               row.ForSale,
		ForRent:               row.ForRent,
		CurrentlyRented:       row.CurrentlyRented,
		ActiveAuctions:        row.ActiveAuctions,
		ReadyForPurchase:      row.ReadyForPurchase,
		Purchased:             row.Purchased,
		TotalSales:            row.TotalSales,
		TotalUpvotes:          row.TotalUpvotes,
		TotalDownvotes:        row.TotalDownvotes,
		AverageFinalizedPrice: row.AverageFinalizedPrice,
	}, nil
}
