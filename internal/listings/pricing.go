package listings

import "github.com/shopspring/decimal"

// UnitAdjustment is the price step applied per net community vote.
var UnitAdjustment = decimal.New(1, -4)

// EffectivePrice computes the crowd-adjusted price for a listing. The
// result never drops below the base price, which acts as the seller's
// reserve. Every read path and the finalization engine call this same
// function so displayed and settled prices cannot drift.
func EffectivePrice(basePrice decimal.Decimal, upvotes, downvotes int64) decimal.Decimal {
	adjusted := basePrice.Add(decimal.NewFromInt(upvotes - downvotes).Mul(UnitAdjustment))
	if adjusted.LessThan(basePrice) {
		return basePrice
	}
	return adjusted
}
