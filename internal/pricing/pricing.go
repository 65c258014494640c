// Package pricing turns a cart into the amounts charged for it.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

var hundred = decimal.NewFromInt(100)

// Policy holds the flat surcharges added to every order.
type Policy struct {
	Tax      decimal.Decimal
	Shipping decimal.Decimal
}

// Quote is the breakdown of one cart's payable amount.
type Quote struct {
	Base     decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
}

// NewPolicy reads the configured surcharges, rounded to cents.
func NewPolicy(cfg config.CheckoutConfig) Policy {
	return Policy{
		Tax:      decimal.NewFromFloat(cfg.TaxPrice).Round(2),
		Shipping: decimal.NewFromFloat(cfg.ShippingPrice).Round(2),
	}
}

// QuoteCart prices the discounted total when a coupon was applied, else the
// full cart total, plus tax and shipping.
func (p Policy) QuoteCart(cart *models.Cart) Quote {
	if cart == nil {
		return Quote{Tax: p.Tax, Shipping: p.Shipping, Total: p.Tax.Add(p.Shipping)}
	}
	base := cart.PayableBase()
	return Quote{
		Base:     base,
		Tax:      p.Tax,
		Shipping: p.Shipping,
		Total:    base.Add(p.Tax).Add(p.Shipping),
	}
}

// ToMinorUnits converts a base-currency amount to the smallest currency unit.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromMinorUnits converts provider amounts back to the base currency.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Div(hundred)
}
