package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

func TestQuoteCartUsesDiscountWhenPresent(t *testing.T) {
	discounted := decimal.NewFromInt(80)
	cart := &models.Cart{TotalCartPrice: decimal.NewFromInt(100), TotalAfterDiscount: &discounted}

	quote := Policy{}.QuoteCart(cart)
	assert.True(t, quote.Total.Equal(decimal.NewFromInt(80)), "total=%s", quote.Total)
	assert.True(t, quote.Base.Equal(discounted))
}

func TestQuoteCartFullPriceWithoutDiscount(t *testing.T) {
	cart := &models.Cart{TotalCartPrice: decimal.NewFromInt(100)}

	quote := NewPolicy(config.CheckoutConfig{}).QuoteCart(cart)
	assert.True(t, quote.Total.Equal(decimal.NewFromInt(100)))
	assert.True(t, quote.Tax.IsZero())
	assert.True(t, quote.Shipping.IsZero())
}

func TestQuoteCartAddsSurcharges(t *testing.T) {
	cart := &models.Cart{TotalCartPrice: decimal.RequireFromString("49.99")}
	policy := NewPolicy(config.CheckoutConfig{TaxPrice: 5, ShippingPrice: 2.5})

	quote := policy.QuoteCart(cart)
	assert.Equal(t, "57.49", quote.Total.StringFixed(2))
}

func TestMinorUnitConversion(t *testing.T) {
	assert.Equal(t, int64(10000), ToMinorUnits(decimal.NewFromInt(100)))
	assert.Equal(t, int64(1999), ToMinorUnits(decimal.RequireFromString("19.99")))
	assert.Equal(t, int64(1000), ToMinorUnits(decimal.RequireFromString("9.995")))
	assert.True(t, FromMinorUnits(10000).Equal(decimal.NewFromInt(100)))
	assert.Equal(t, "19.99", FromMinorUnits(1999).StringFixed(2))
}
