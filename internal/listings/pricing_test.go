package listings

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestEffectivePriceAppliesNetVotes(t *testing.T) {
	base := decimal.RequireFromString("1.0")

	got := EffectivePrice(base, 5, 2)
	assert.True(t, got.Equal(decimal.RequireFromString("1.0003")), "got %s", got)
}

func TestEffectivePriceFloorsAtBase(t *testing.T) {
	base := decimal.RequireFromString("1.0")

	got := EffectivePrice(base, 1, 50)
	assert.True(t, got.Equal(base), "got %s", got)
}

func TestEffectivePriceZeroVotes(t *testing.T) {
	base := decimal.RequireFromString("2.5")

	got := EffectivePrice(base, 0, 0)
	assert.True(t, got.Equal(base), "got %s", got)
}

func TestEffectivePriceIsDeterministic(t *testing.T) {
	base := decimal.RequireFromString("0.75")

	first := EffectivePrice(base, 120, 30)
	second := EffectivePrice(base, 120, 30)
	assert.True(t, first.Equal(second))
	assert.True(t, first.Equal(decimal.RequireFromString("0.759")), "got %s", first)
}
