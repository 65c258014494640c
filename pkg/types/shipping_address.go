package types

import "strings"

// Metadata keys used when a shipping address travels through the payment
// provider's flat string map.
const (
	MetadataShippingCountry    = "shipping_country"
	MetadataShippingCity       = "shipping_city"
	MetadataShippingStreet     = "shipping_street"
	MetadataShippingDetails    = "shipping_details"
	MetadataShippingPostalCode = "shipping_postal_code"
	MetadataShippingPhone      = "shipping_phone"
)

// ShippingAddress is the free-form delivery address attached to an order.
// Every field is optional.
type ShippingAddress struct {
	Country    string `json:"country,omitempty" validate:"omitempty,max=100"`
	City       string `json:"city,omitempty" validate:"omitempty,max=100"`
	Street     string `json:"street,omitempty" validate:"omitempty,max=255"`
	Details    string `json:"details,omitempty" validate:"omitempty,max=500"`
	PostalCode string `json:"postal_code,omitempty" validate:"omitempty,max=20"`
	Phone      string `json:"phone,omitempty" validate:"omitempty,max=30"`
}

// Normalize trims surrounding whitespace from every field.
func (a ShippingAddress) Normalize() ShippingAddress {
	return ShippingAddress{
		Country:    strings.TrimSpace(a.Country),
		City:       strings.TrimSpace(a.City),
		Street:     strings.TrimSpace(a.Street),
		Details:    strings.TrimSpace(a.Details),
		PostalCode: strings.TrimSpace(a.PostalCode),
		Phone:      strings.TrimSpace(a.Phone),
	}
}

// IsZero reports whether no field carries a value.
func (a ShippingAddress) IsZero() bool {
	return a.Normalize() == ShippingAddress{}
}

// ToMetadata flattens the address field-by-field. Empty fields are omitted.
func (a ShippingAddress) ToMetadata() map[string]string {
	n := a.Normalize()
	out := make(map[string]string, 6)
	for key, value := range map[string]string{
		MetadataShippingCountry:    n.Country,
		MetadataShippingCity:       n.City,
		MetadataShippingStreet:     n.Street,
		MetadataShippingDetails:    n.Details,
		MetadataShippingPostalCode: n.PostalCode,
		MetadataShippingPhone:      n.Phone,
	} {
		if value != "" {
			out[key] = value
		}
	}
	return out
}

// ShippingAddressFromMetadata rebuilds an address from provider metadata,
// ignoring keys it does not own.
func ShippingAddressFromMetadata(metadata map[string]string) ShippingAddress {
	if len(metadata) == 0 {
		return ShippingAddress{}
	}
	return ShippingAddress{
		Country:    metadata[MetadataShippingCountry],
		City:       metadata[MetadataShippingCity],
		Street:     metadata[MetadataShippingStreet],
		Details:    metadata[MetadataShippingDetails],
		PostalCode: metadata[MetadataShippingPostalCode],
		Phone:      metadata[MetadataShippingPhone],
	}.Normalize()
}
