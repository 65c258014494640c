package orders

import (
	"net/http"
	"net/url"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type checkoutSessionResponse struct {
	Session any `json:"session"`
}

// CheckoutSession creates a hosted payment session for the caller's cart. The
// shipping address comes from the JSON body on POST and the query string on GET.
func CheckoutSession(builder checkout.Builder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if builder == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout builder unavailable"))
			return
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cartID, err := parsePathUUID(r, "cartId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var address types.ShippingAddress
		if r.Method == http.MethodGet {
			address, err = shippingAddressFromQuery(r.URL.Query())
		} else {
			address, err = decodeShippingAddress(r)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithCartID(r.Context(), cartID.String())
		session, err := builder.CreateSession(ctx, checkout.SessionInput{
			UserID:          actor.UserID,
			Email:           actor.Email,
			CartID:          cartID,
			ShippingAddress: address,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, checkoutSessionResponse{Session: session})
	}
}

func shippingAddressFromQuery(q url.Values) (types.ShippingAddress, error) {
	address := types.ShippingAddress{
		Country:    q.Get("country"),
		City:       q.Get("city"),
		Street:     q.Get("street"),
		Details:    q.Get("details"),
		PostalCode: q.Get("postal_code"),
		Phone:      q.Get("phone"),
	}.Normalize()
	if err := validators.ValidateStruct(address); err != nil {
		return types.ShippingAddress{}, err
	}
	return address, nil
}
