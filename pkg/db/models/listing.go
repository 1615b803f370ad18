package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Listing is the canonical marketplace record for a minted token.
//
// Sale, rental and auction state live on the same row so that the XOR
// between sale and rental mode can be enforced with a single guarded
// update. The Version column is the optimistic concurrency token: every
// state-changing write increments it and conditions on the value it read.
type Listing struct {
	TokenID int64 `gorm:"column:token_id;primaryKey"`

	Owner  string  `gorm:"column:owner;not null;index"`
	Renter *string `gorm:"column:renter"`

	Name        string `gorm:"column:name;not null"`
	Description string `gorm:"column:description"`
	MetadataURI string `gorm:"column:metadata_uri;not null;uniqueIndex:uq_listings_metadata_uri"`
	ImageURL    string `gorm:"column:image_url"`

	BasePrice decimal.Decimal `gorm:"column:base_price;type:numeric(20,8);not null"`
	IsForSale bool            `gorm:"column:is_for_sale;not null;default:false"`
	IsForRent bool            `gorm:"column:is_for_rent;not null;default:false"`

	RentalFee           *decimal.Decimal `gorm:"column:rental_fee;type:numeric(20,8)"`
	RentalDurationHours *int             `gorm:"column:rental_duration_hours"`
	RentalEndTime       *time.Time       `gorm:"column:rental_end_time"`

	IsAuction      bool       `gorm:"column:is_auction;not null;default:false"`
	AuctionEndTime *time.Time `gorm:"column:auction_end_time;index"`
	Upvotes        int64      `gorm:"column:upvotes;not null;default:0"`
	Downvotes      int64      `gorm:"column:downvotes;not null;default:0"`

	ReadyForPurchase bool       `gorm:"column:ready_for_purchase;not null;default:false"`
	FinalizedAt      *time.Time `gorm:"column:finalized_at"`

	LastSalePrice *decimal.Decimal `gorm:"column:last_sale_price;type:numeric(20,8)"`
	TotalSales    int64            `gorm:"column:total_sales;not null;default:0"`
	PurchasedAt   *time.Time       `gorm:"column:purchased_at"`
	PurchaseTxRef *string          `gorm:"column:purchase_tx_ref"`

	Version int64 `gorm:"column:version;not null;default:0"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the table used by migrations.
func (Listing) TableName() string {
	return "listings"
}
