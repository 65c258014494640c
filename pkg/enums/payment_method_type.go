package enums

import (
	"fmt"
	"strings"
)

// PaymentMethodType records how an order is settled.
type PaymentMethodType string

const (
	PaymentMethodTypeCash PaymentMethodType = "cash"
	PaymentMethodTypeCard PaymentMethodType = "card"
)

// Card orders only exist once the provider has captured payment; cash orders
// are collected on delivery.
var paidAtCreation = map[PaymentMethodType]bool{
	PaymentMethodTypeCash: false,
	PaymentMethodTypeCard: true,
}

func (p PaymentMethodType) String() string {
	return string(p)
}

func (p PaymentMethodType) IsValid() bool {
	_, ok := paidAtCreation[p]
	return ok
}

// PaidAtCreation reports whether orders using p start out paid.
func (p PaymentMethodType) PaidAtCreation() bool {
	return paidAtCreation[p]
}

// ParsePaymentMethodType accepts the lowercase wire values, ignoring case and padding.
func ParsePaymentMethodType(value string) (PaymentMethodType, error) {
	p := PaymentMethodType(strings.ToLower(strings.TrimSpace(value)))
	if !p.IsValid() {
		return "", fmt.Errorf("invalid payment method type %q", value)
	}
	return p, nil
}
