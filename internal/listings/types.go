package listings

import (
	"time"

	"github.com/mintaro-labs/mintaro-backend/pkg/db/models"
	"github.com/shopspring/decimal"
)

// MintParams describes a freshly minted token entering the marketplace.
type MintParams struct {
	Owner       string
	Name        string
	Description string
	MetadataURI string
	ImageURL    string
	BasePrice   decimal.Decimal
	// Auction, when set, opens crowd-priced sale mode on the fresh
	// mint inside the same transaction.
	Auction *AuctionParams
}

// AuctionParams opens crowd-priced mode for the duration given.
type AuctionParams struct {
	DurationHours int
}

// SaleParams carries a sale-mode transition request.
type SaleParams struct {
	Owner     string
	BasePrice *decimal.Decimal
	Auction   *AuctionParams
}

// RentalParams carries a rent-mode transition request.
type RentalParams struct {
	Owner         string
	Fee           decimal.Decimal
	DurationHours int
}

// PurchaseParams records an off-chain settlement against a finalized listing.
type PurchaseParams struct {
	Buyer string
	TxRef string
}

// ListScope filters marketplace listing queries.
type ListScope string

const (
	ScopeAll     ListScope = ""
	ScopeForSale ListScope = "for_sale"
	ScopeForRent ListScope = "for_rent"
	ScopeAuction ListScope = "auction"
)

// ListParams holds listing query inputs.
type ListParams struct {
	Scope  ListScope
	Owner  string
	Search string
	Cursor string
	Limit  int
}

// ListingDTO is the API projection of a listing, including the derived
// fields every read path shares.
type ListingDTO struct {
	TokenID     int64  `json:"token_id"`
	Owner       string `json:"owner"`
	Renter      string `json:"renter,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MetadataURI string `json:"metadata_uri"`
	ImageURL    string `json:"image_url,omitempty"`

	BasePrice      decimal.Decimal `json:"base_price"`
	EffectivePrice decimal.Decimal `json:"effective_price"`

	IsForSale bool `json:"is_for_sale"`
	IsForRent bool `json:"is_for_rent"`

	RentalFee           *decimal.Decimal `json:"rental_fee,omitempty"`
	RentalDurationHours *int             `json:"rental_duration_hours,omitempty"`
	RentalEndTime       *time.Time       `json:"rental_end_time,omitempty"`
	IsCurrentlyRented   bool             `json:"is_currently_rented"`

	IsAuction       bool       `json:"is_auction"`
	IsAuctionActive bool       `json:"is_auction_active"`
	AuctionEndTime  *time.Time `json:"auction_end_time,omitempty"`
	Upvotes         int64      `json:"upvotes"`
	Downvotes       int64      `json:"downvotes"`

	ReadyForPurchase bool       `json:"ready_for_purchase"`
	FinalizedAt      *time.Time `json:"finalized_at,omitempty"`

	LastSalePrice *decimal.Decimal `json:"last_sale_price,omitempty"`
	TotalSales    int64            `json:"total_sales"`
	PurchasedAt   *time.Time       `json:"purchased_at,omitempty"`
	PurchaseTxRef string           `json:"purchase_tx_ref,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// VoteDTO returns the post-vote counters with the recomputed price.
type VoteDTO struct {
	TokenID        int64           `json:"token_id"`
	Upvotes        int64           `json:"upvotes"`
	Downvotes      int64           `json:"downvotes"`
	EffectivePrice decimal.Decimal `json:"effective_price"`
}

// PageInfo carries cursor pagination metadata.
type PageInfo struct {
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
	Limit      int    `json:"limit"`
}

// ListingsPageDTO is a cursor-paginated listing view.
type ListingsPageDTO struct {
	Items      []ListingDTO `json:"items"`
	Pagination PageInfo     `json:"pagination"`
}

// MarketStatsDTO aggregates marketplace-wide counts for operators.
type MarketStatsDTO struct {
	TotalListings         int64           `json:"total_listings"`
	ForSale               int64           `json:"for_sale"`
	ForRent               int64           `json:"for_rent"`
	CurrentlyRented       int64           `json:"currently_rented"`
	ActiveAuctions        int64           `json:"active_auctions"`
	ReadyForPurchase      int64           `json:"ready_for_purchase"`
	Purchased             int64           `json:"purchased"`
	TotalSales            int64           `json:"total_sales"`
	TotalUpvotes          int64           `json:"total_upvotes"`
	TotalDownvotes        int64           `json:"total_downvotes"`
	AverageFinalizedPrice decimal.Decimal `json:"average_finalized_price"`
}

// IsCurrentlyRented reports whether a rental is in progress at the given time.
func IsCurrentlyRented(m *models.Listing, now time.Time) bool {
	return m.IsForRent && m.Renter != nil && m.RentalEndTime != nil && m.RentalEndTime.After(now)
}

// IsAuctionActive reports whether crowd-priced mode is open for votes.
func IsAuctionActive(m *models.Listing, now time.Time) bool {
	return m.IsAuction && m.AuctionEndTime != nil && m.AuctionEndTime.After(now)
}

// ToDTO derives the API projection from a stored listing. All read
// paths go through this one function so derived fields cannot drift.
func ToDTO(m *models.Listing, now time.Time) ListingDTO {
	// Counters survive finalization for audit, but once the auction is
	// closed the base price already carries the crowd adjustment.
	effective := m.BasePrice
	if m.IsAuction {
		effective = EffectivePrice(m.BasePrice, m.Upvotes, m.Downvotes)
	}

	dto := ListingDTO{
		TokenID:     m.TokenID,
		Owner:       m.Owner,
		Name:        m.Name,
		Description: m.Description,
		MetadataURI: m.MetadataURI,
		ImageURL:    m.ImageURL,

		BasePrice:      m.BasePrice,
		EffectivePrice: effective,

		IsForSale: m.IsForSale,
		IsForRent: m.IsForRent,

		RentalFee:           m.RentalFee,
		RentalDurationHours: m.RentalDurationHours,
		RentalEndTime:       m.RentalEndTime,
		IsCurrentlyRented:   IsCurrentlyRented(m, now),

		IsAuction:       m.IsAuction,
		IsAuctionActive: IsAuctionActive(m, now),
		AuctionEndTime:  m.AuctionEndTime,
		Upvotes:         m.Upvotes,
		Downvotes:       m.Downvotes,

		ReadyForPurchase: m.ReadyForPurchase,
		FinalizedAt:      m.FinalizedAt,

		LastSalePrice: m.LastSalePrice,
		TotalSales:    m.TotalSales,
		PurchasedAt:   m.PurchasedAt,

		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if m.Renter != nil {
		dto.Renter = *m.Renter
	}
	if m.PurchaseTxRef != nil {
		dto.PurchaseTxRef = *m.PurchaseTxRef
	}
	return dto
}
