package stripe

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type fakeCreate struct {
	calls int
	err   error
	got   *stripe.CheckoutSessionParams
}

func (f *fakeCreate) create(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.calls++
	f.got = params
	if f.err != nil {
		return nil, f.err
	}
	return &stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.test/cs_test_1"}, nil
}

func breakerConfig(maxFailures uint32) config.StripeConfig {
	return config.StripeConfig{BreakerMaxFailures: maxFailures, BreakerOpenTimeout: time.Minute}
}

func TestCreateCheckoutSessionPassesContext(t *testing.T) {
	fake := &fakeCreate{}
	client := newBreakerSessionClient(fake.create, breakerConfig(2), nil)

	type ctxKey struct{}
	ctx := context.WithValue(context.Background(), ctxKey{}, "marker")
	sess, err := client.CreateCheckoutSession(ctx, &stripe.CheckoutSessionParams{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.ID != "cs_test_1" {
		t.Fatalf("unexpected session id %q", sess.ID)
	}
	if fake.got == nil || fake.got.Context != ctx {
		t.Fatalf("expected params to carry the request context")
	}
}

func TestCreateCheckoutSessionRejectsNilParams(t *testing.T) {
	fake := &fakeCreate{}
	client := newBreakerSessionClient(fake.create, breakerConfig(2), nil)

	_, err := client.CreateCheckoutSession(context.Background(), nil)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if fake.calls != 0 {
		t.Fatalf("provider should not be called")
	}
}

func TestProviderRejectionDoesNotTripBreaker(t *testing.T) {
	fake := &fakeCreate{err: &stripe.Error{
		HTTPStatusCode: http.StatusBadRequest,
		Type:           stripe.ErrorTypeInvalidRequest,
		Code:           stripe.ErrorCodeParameterMissing,
		Msg:            "Missing required param: line_items.",
		RequestID:      "req_123",
	}}
	client := newBreakerSessionClient(fake.create, breakerConfig(2), nil)

	for i := 0; i < 3; i++ {
		_, err := client.CreateCheckoutSession(context.Background(), &stripe.CheckoutSessionParams{})
		if !pkgerrors.IsCode(err, pkgerrors.CodeProvider) {
			t.Fatalf("attempt %d: expected provider error, got %v", i, err)
		}
	}
	if fake.calls != 3 {
		t.Fatalf("expected every call to reach the provider, got %d", fake.calls)
	}
	if client.State() != gobreaker.StateClosed {
		t.Fatalf("expected closed breaker, got %s", client.State())
	}
}

func TestTransportFailuresOpenBreaker(t *testing.T) {
	fake := &fakeCreate{err: errors.New("dial tcp: connection refused")}
	client := newBreakerSessionClient(fake.create, breakerConfig(2), nil)

	for i := 0; i < 2; i++ {
		_, err := client.CreateCheckoutSession(context.Background(), &stripe.CheckoutSessionParams{})
		if !pkgerrors.IsCode(err, pkgerrors.CodeProvider) {
			t.Fatalf("attempt %d: expected provider error, got %v", i, err)
		}
	}
	if client.State() != gobreaker.StateOpen {
		t.Fatalf("expected open breaker, got %s", client.State())
	}

	_, err := client.CreateCheckoutSession(context.Background(), &stripe.CheckoutSessionParams{})
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error while open, got %v", err)
	}
	if fake.calls != 2 {
		t.Fatalf("open breaker should short-circuit, calls=%d", fake.calls)
	}
}

func TestMapErrorCarriesStripeDetails(t *testing.T) {
	err := MapError(&stripe.Error{
		HTTPStatusCode: http.StatusPaymentRequired,
		Type:           stripe.ErrorTypeCard,
		Code:           stripe.ErrorCodeCardDeclined,
		RequestID:      "req_9",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeProvider {
		t.Fatalf("expected provider error, got %v", err)
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		t.Fatalf("expected map details, got %T", typed.Details())
	}
	if details["code"] != string(stripe.ErrorCodeCardDeclined) || details["request_id"] != "req_9" {
		t.Fatalf("unexpected details %+v", details)
	}
	if typed.Message() != "payment provider returned status 402" {
		t.Fatalf("unexpected message %q", typed.Message())
	}
	if MapError(nil) != nil {
		t.Fatalf("nil should map to nil")
	}
}

func TestNewSessionClientRequiresClient(t *testing.T) {
	if _, err := NewSessionClient(nil, breakerConfig(1), nil); err == nil {
		t.Fatalf("expected error for nil client")
	}
}
