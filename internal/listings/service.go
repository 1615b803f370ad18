package listings

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mintaro-labs/mintaro-backend/pkg/db"
	"github.com/mintaro-labs/mintaro-backend/pkg/db/models"
	pkgerrors "github.com/mintaro-labs/mintaro-backend/pkg/errors"
	"github.com/mintaro-labs/mintaro-backend/pkg/logger"
	"github.com/mintaro-labs/mintaro-backend/pkg/pagination"
	"gorm.io/gorm"
)

// ServiceParams groups dependencies for the listing service.
type ServiceParams struct {
	Repo   *Repository
	Logger *logger.Logger
	Now    func() time.Time
}

// Service exposes the listing lifecycle state machine.
type Service interface {
	Mint(ctx context.Context, params MintParams) (ListingDTO, error)
	Get(ctx context.Context, tokenID int64) (ListingDTO, error)
	List(ctx context.Context, params ListParams) (ListingsPageDTO, error)
	ListFinalized(ctx context.Context, cursor string, limit int) (ListingsPageDTO, error)
	SetForSale(ctx context.Context, tokenID int64, params SaleParams) (ListingDTO, error)
	DelistFromSale(ctx context.Context, tokenID int64, owner string) (ListingDTO, error)
	SetForRent(ctx context.Context, tokenID int64, params RentalParams) (ListingDTO, error)
	DelistFromRent(ctx context.Context, tokenID int64, owner string) (ListingDTO, error)
	Rent(ctx context.Context, tokenID int64, renter string) (ListingDTO, error)
	Like(ctx context.Context, tokenID int64) (VoteDTO, error)
	Dislike(ctx context.Context, tokenID int64) (VoteDTO, error)
	ExpiredAuctionIDs(ctx context.Context, now time.Time) ([]int64, error)
	Finalize(ctx context.Context, tokenID int64) (ListingDTO, error)
	RecordPurchase(ctx context.Context, tokenID int64, params PurchaseParams) (ListingDTO, error)
	MarketStats(ctx context.Context) (MarketStatsDTO, error)
}

type service struct {
	repo *Repository
	logg *logger.Logger
	now  func() time.Time
}

// NewService builds a listing service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "listing repo is required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "logger is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{repo: params.Repo, logg: params.Logger, now: now}, nil
}

// Mint creates the durable record for a freshly minted token.
func (s *service) Mint(ctx context.Context, params MintParams) (ListingDTO, error) {
	owner, err := normalizeAddress(params.Owner)
	if err != nil {
		return ListingDTO{}, err
	}
	if strings.TrimSpace(params.Name) == "" {
		return ListingDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if strings.TrimSpace(params.MetadataURI) == "" {
		return ListingDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "metadata uri is required")
	}
	if params.BasePrice.IsNegative() {
		return ListingDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "base price cannot be negative")
	}
	if params.Auction != nil && params.Auction.DurationHours <= 0 {
		return ListingDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "auction duration must be positive")
	}

	// Token assignment and the create run in one transaction so a
	// failed mint never burns a token id, and an immediate auction
	// never leaves a half-listed record behind.
	now := s.now()
	var record *models.Listing
	txErr := s.repo.WithTx(ctx, func(repo *Repository) error {
		tokenID, err := repo.NextTokenID(ctx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign token id")
		}
		record = newListingRecord(tokenID, owner, params)
		if params.Auction != nil {
			deadline := now.Add(time.Duration(params.Auction.DurationHours) * time.Hour)
			record.IsForSale = true
			record.IsAuction = true
			record.AuctionEndTime = &deadline
		}
		return repo.Create(ctx, record)
	})
	if txErr != nil {
		if db.IsUniqueViolation(txErr, "uq_listings_metadata_uri", "listings.metadata_uri") {
			return ListingDTO{}, pkgerrors.Wrap(pkgerrors.CodeConflict, txErr, "metadata uri already minted")
		}
		if typed := pkgerrors.As(txErr); typed != nil {
			return ListingDTO{}, txErr
		}
		return ListingDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "create listing")
	}

	s.logg.Info(s.logg.WithTokenID(ctx, record.TokenID), "listing minted")
	return ToDTO(record, now), nil
}

// Get returns one listing snapshot with derived fields.
func (s *service) Get(ctx context.Context, tokenID int64) (ListingDTO, error) {
	listing, err := s.load(ctx, tokenID)
	if err != nil {
		return ListingDTO{}, err
	}
	return ToDTO(listing, s.now()), nil
}

// List returns a paginated marketplace view.
func (s *service) List(ctx context.Context, params ListParams) (ListingsPageDTO, error) {
	now := s.now()
	rows, err := s.repo.List(ctx, params, now)
	if err != nil {
		return ListingsPageDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list listings")
	}
	return buildPage(rows, params.Limit, now), nil
}

// ListFinalized returns ready-for-purchase listings.
func (s *service) ListFinalized(ctx context.Context, cursor string, limit int) (ListingsPageDTO, error) {
	now := s.now()
	rows, err := s.repo.ListFinalized(ctx, cursor, limit)
	if err != nil {
		return ListingsPageDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list finalized listings")
	}
	return buildPage(rows, limit, now), nil
}

// SetForSale lists a token for sale, optionally opening crowd-priced mode.
// Entering auction mode starts a fresh voting round: the counters reset and
// any previous finalization result is cleared. Updating price or duration on
// an already-open auction keeps the counters.
func (s *service) SetForSale(ctx context.Context, tokenID int64, params SaleParams) (ListingDTO, error) {
	listing, err := s.loadOwned(ctx, tokenID, params.Owner)
	if err != nil {
		return ListingDTO{}, err
	}

	now := s.now()
	if IsCurrentlyRented(listing, now) {
		return ListingDTO{}, pkgerrors.New(pkgerrors.CodeConflict, "listing is currently rented")
	}
	if params.BasePrice != nil && !params.BasePrice.IsPositive() {
		return ListingDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "base price must be positive")
	}
	if params.Auction != nil && params.Auction.DurationHours <= 0 {
		return ListingDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "auction duration must be positive")
	}

	updates := map[string]any{
		"is_for_sale":           true,
		"is_for_rent":           false,
		"renter":                nil,
		"rental_fee":            nil,
		"rental_duration_hours": nil,
		"rental_end_time":       nil,
	}
	if params.BasePrice != nil {
		updates["base_price"] = *params.BasePrice
	}
	if params.Auction != nil {
		deadline := now.Add(time.Duration(params.Auction.DurationHours) * time.Hour)
		updates["is_auction"] = true
		updates["auction_end_time"] = deadline
		if !IsAuctionActive(listing, now) {
			updates["upvotes"] = 0
			updates["downvotes"] = 0
			updates["ready_for_purchase"] = false
			updates["finalized_at"] = nil
		}
	}

	return s.applyTransition(ctx, listing, updates, "listing set for sale")
}

// DelistFromSale withdraws a token from sale, clearing auction and
// finalization state.
func (s *service) DelistFromSale(ctx context.Context, tokenID int64, owner string) (ListingDTO, error) {
	listing, err := s.loadOwned(ctx, tokenID, owner)
	if err != nil {
		return ListingDTO{}, err
	}
	if !listing.IsForSale {
		return ListingDTO{}, pkgerrors.New(pkgerrors.CodeConflict, "listing is not for sale")
	}

	updates := map[string]any{
		"is_for_sale":        false,
		"is_auction":         false,
		"auction_end_time":   nil,
		"ready_for_purchase": false,
	}
	return s.applyTransition(ctx, listing, updates, "listing delisted from sale")
}

// SetForRent lists a token for rental.
func (s *service) SetForRent(ctx context.Context, tokenID int64, params RentalParams) (ListingDTO, error) {
	listing, err := s.loadOwned(ctx, tokenID, params.Owner)
	if err != nil {
		return ListingDTO{}, err
	}

	now := s.now()
	if listing.IsForSale {
		return ListingDTO{}, pkgerrors.New(pkgerrors.CodeConflict, "listing is currently for sale")
	}
	if IsCurrentlyRented(listing, now) {
		return ListingDTO{}, pkgerrors.New(pkgerrors.CodeConflict, "listing is currently rented")
	}
	if !params.Fee.IsPositive() {
		return ListingDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "rental fee must be positive")
	}
	if params.DurationHours <= 0 {
		return ListingDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "rental duration must be positive")
	}

	updates := map[string]any{
		"is_for_rent":           true,
		"rental_fee":            params.Fee,
		"rental_duration_hours": params.DurationHours,
		"renter":                nil,
		"rental_end_time":       nil,
	}
	return s.applyTransition(ctx, listing, updates, "listing set for rent")
}

// DelistFromRent withdraws a token from the rental market.
func (s *service) DelistFromRent(ctx context.Context, tokenID int64, owner string) (ListingDTO, error) {
	listing, err := s.loadOwned(ctx, tokenID, owner)
	if err != nil {
		return ListingDTO{}, err
	}

	now := s.now()
	if IsCurrentlyRented(listing, now) {
		return ListingDTO{}, pkgerrors.New(pkgerrors.CodeConflict, "rental is in progress")
	}
	if !listing.IsForRent {
		return ListingDTO{}, pkgerrors.New(pkgerrors.CodeConflict, "listing is not for rent")
	}

	updates := map[string]any{
		"is_for_rent":           false,
		"renter":                nil,
		"rental_fee":            nil,
		"rental_duration_hours": nil,
		"rental_end_time":       nil,
	}
	return s.applyTransition(ctx, listing, updates, "listing delisted from rent")
}

// Rent starts a rental for the listing's configured duration.
func (s *service) Rent(ctx context.Context, tokenID int64, renter string) (ListingDTO, error) {
	normalized, err := normalizeAddress(renter)
	if err != nil {
		return ListingDTO{}, err
	}

	listing, err := s.load(ctx, tokenID)
	if err != nil {
		return ListingDTO{}, err
	}

	now := s.now()
	if !listing.IsForRent {
		return ListingDTO{}, pkgerrors.New(pkgerrors.CodeStateConflict, "listing is not for rent")
	}
	if IsCurrentlyRented(listing, now) {
		return ListingDTO{}, pkgerrors.New(pkgerrors.CodeConflict, "listing is currently rented")
	}
	if listing.Owner == normalized {
		return ListingDTO{}, pkgerrors.New(pkgerrors.CodeConflict, "owner cannot rent own listing")
	}
	if listing.RentalDurationHours == nil || *listing.RentalDurationHours <= 0 {
		return ListingDTO{}, pkgerrors.New(pkgerrors.CodeStateConflict, "listing has no rental duration configured")
	}

	end := now.Add(time.Duration(*listing.RentalDurationHours) * time.Hour)
	updates := map[string]any{
		"renter":          normalized,
		"rental_end_time": end,
	}
	return s.applyTransition(ctx, listing, updates, "listing rented")
}

// Like records a positive community vote on an active auction.
func (s *service) Like(ctx context.Context, tokenID int64) (VoteDTO, error) {
	return s.vote(ctx, tokenID, "upvotes")
}

// Dislike records a negative community vote on an active auction.
func (s *service) Dislike(ctx context.Context, tokenID int64) (VoteDTO, error) {
	return s.vote(ctx, tokenID, "downvotes")
}

func (s *service) vote(ctx context.Context, tokenID int64, column string) (VoteDTO, error) {
	rows, err := s.repo.IncrementVote(ctx, tokenID, column, s.now())
	if err != nil {
		return VoteDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record vote")
	}
	if rows == 0 {
		// Distinguish a missing token from a closed auction.
		if _, loadErr := s.load(ctx, tokenID); loadErr != nil {
			return VoteDTO{}, loadErr
		}
		return VoteDTO{}, pkgerrors.New(pkgerrors.CodeStateConflict, "listing is not in an active auction")
	}

	listing, err := s.load(ctx, tokenID)
	if err != nil {
		return VoteDTO{}, err
	}
	return VoteDTO{
		TokenID:        listing.TokenID,
		Upvotes:        listing.Upvotes,
		Downvotes:      listing.Downvotes,
		EffectivePrice: EffectivePrice(listing.BasePrice, listing.Upvotes, listing.Downvotes),
	}, nil
}

// ExpiredAuctionIDs returns the finalization candidate batch.
func (s *service) ExpiredAuctionIDs(ctx context.Context, now time.Time) ([]int64, error) {
	rows, err := s.repo.FindExpiredAuctions(ctx, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "scan expired auctions")
	}
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.TokenID)
	}
	return ids, nil
}

// Finalize freezes the crowd-adjusted price for an expired auction and
// flips the listing into the purchasable state. The re-check against the
// current row guards the window between the engine's scan and this write;
// the version condition guards against concurrent user transitions. Vote
// counters are retained so operators can reconstruct the final price.
func (s *service) Finalize(ctx context.Context, tokenID int64) (ListingDTO, error) {
	listing, err := s.load(ctx, tokenID)
	if err != nil {
		return ListingDTO{}, err
	}

	now := s.now()
	if !listing.IsAuction || !listing.IsForSale || listing.AuctionEndTime == nil {
		return ListingDTO{}, pkgerrors.New(pkgerrors.CodeStateConflict, "listing is not in auction mode")
	}
	if listing.AuctionEndTime.After(now) {
		return ListingDTO{}, pkgerrors.New(pkgerrors.CodeStateConflict, "auction deadline has not passed")
	}

	finalPrice := EffectivePrice(listing.BasePrice, listing.Upvotes, listing.Downvotes)
	updates := map[string]any{
		"base_price":         finalPrice,
		"is_auction":         false,
		"auction_end_time":   nil,
		"ready_for_purchase": true,
		"finalized_at":       now,
	}

	dto, err := s.applyTransition(ctx, listing, updates, "auction finalized")
	if err != nil {
		return ListingDTO{}, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"token_id":    tokenID,
		"final_price": finalPrice.String(),
		"upvotes":     listing.Upvotes,
		"downvotes":   listing.Downvotes,
	}), "listing finalized at crowd price")
	return dto, nil
}

// RecordPurchase transfers ownership after off-chain settlement.
func (s *service) RecordPurchase(ctx context.Context, tokenID int64, params PurchaseParams) (ListingDTO, error) {
	buyer, err := normalizeAddress(params.Buyer)
	if err != nil {
		return ListingDTO{}, err
	}
	if strings.TrimSpace(params.TxRef) == "" {
		return ListingDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "transaction reference is required")
	}

	listing, err := s.load(ctx, tokenID)
	if err != nil {
		return ListingDTO{}, err
	}
	if !listing.ReadyForPurchase {
		return ListingDTO{}, pkgerrors.New(pkgerrors.CodeStateConflict, "listing is not ready for purchase")
	}
	if listing.Owner == buyer {
		return ListingDTO{}, pkgerrors.New(pkgerrors.CodeConflict, "owner cannot purchase own listing")
	}

	now := s.now()
	updates := map[string]any{
		"owner":              buyer,
		"is_for_sale":        false,
		"ready_for_purchase": false,
		"last_sale_price":    listing.BasePrice,
		"total_sales":        listing.TotalSales + 1,
		"purchased_at":       now,
		"purchase_tx_ref":    params.TxRef,
	}
	return s.applyTransition(ctx, listing, updates, "purchase recorded")
}

// MarketStats aggregates marketplace counters for the admin surface.
func (s *service) MarketStats(ctx context.Context) (MarketStatsDTO, error) {
	stats, err := s.repo.Stats(ctx, s.now())
	if err != nil {
		return MarketStatsDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate market stats")
	}
	return stats, nil
}

func (s *service) load(ctx context.Context, tokenID int64) (*models.Listing, error) {
	if tokenID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "token id is required")
	}
	listing, err := s.repo.FindByTokenID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "listing not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
	}
	return listing, nil
}

func (s *service) loadOwned(ctx context.Context, tokenID int64, owner string) (*models.Listing, error) {
	normalized, err := normalizeAddress(owner)
	if err != nil {
		return nil, err
	}
	listing, err := s.load(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if listing.Owner != normalized {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "caller does not own this listing")
	}
	return listing, nil
}

// applyTransition performs the optimistic-concurrency write and reloads
// the post-transition snapshot. A lost version race surfaces as Conflict.
func (s *service) applyTransition(ctx context.Context, listing *models.Listing, updates map[string]any, msg string) (ListingDTO, error) {
	rows, err := s.repo.UpdateGuarded(ctx, listing.TokenID, listing.Version, updates)
	if err != nil {
		return ListingDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist transition")
	}
	if rows == 0 {
		if _, loadErr := s.load(ctx, listing.TokenID); loadErr != nil {
			return ListingDTO{}, loadErr
		}
		return ListingDTO{}, pkgerrors.New(pkgerrors.CodeConflict, "listing was modified concurrently")
	}

	updated, err := s.load(ctx, listing.TokenID)
	if err != nil {
		return ListingDTO{}, err
	}
	s.logg.Info(s.logg.WithTokenID(ctx, listing.TokenID), msg)
	return ToDTO(updated, s.now()), nil
}

func buildPage(rows []models.Listing, limit int, now time.Time) ListingsPageDTO {
	normalized := pagination.NormalizeLimit(limit)
	hasMore := len(rows) > normalized
	if hasMore {
		rows = rows[:normalized]
	}

	items := make([]ListingDTO, 0, len(rows))
	for i := range rows {
		items = append(items, ToDTO(&rows[i], now))
	}

	page := ListingsPageDTO{
		Items: items,
		Pagination: PageInfo{
			HasMore: hasMore,
			Limit:   normalized,
		},
	}
	if hasMore && len(rows) > 0 {
		last := rows[len(rows)-1]
		page.Pagination.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			TokenID:   last.TokenID,
		})
	}
	return page
}

func normalizeAddress(addr string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(addr))
	if normalized == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "account address is required")
	}
	return normalized, nil
}

func newListingRecord(tokenID int64, owner string, params MintParams) *models.Listing {
	return &models.Listing{
		TokenID:     tokenID,
		Owner:       owner,
		Name:        strings.TrimSpace(params.Name),
		Description: strings.TrimSpace(params.Description),
		MetadataURI: strings.TrimSpace(params.MetadataURI),
		ImageURL:    strings.TrimSpace(params.ImageURL),
		BasePrice:   params.BasePrice,
	}
}
