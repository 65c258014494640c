package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	internalorders "github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type stubOrdersService struct {
	createCash    func(ctx context.Context, input internalorders.CashOrderInput) (*internalorders.OrderDTO, error)
	get           func(ctx context.Context, actor internalorders.Actor, id uuid.UUID) (*internalorders.OrderDTO, error)
	list          func(ctx context.Context, actor internalorders.Actor, params pagination.Params) (*internalorders.OrderList, error)
	markPaid      func(ctx context.Context, actor internalorders.Actor, id uuid.UUID) (*internalorders.OrderDTO, error)
	markDelivered func(ctx context.Context, actor internalorders.Actor, id uuid.UUID) (*internalorders.OrderDTO, error)
}

func (s *stubOrdersService) CreateCashOrder(ctx context.Context, input internalorders.CashOrderInput) (*internalorders.OrderDTO, error) {
	if s.createCash != nil {
		return s.createCash(ctx, input)
	}
	return &internalorders.OrderDTO{}, nil
}

func (s *stubOrdersService) Get(ctx context.Context, actor internalorders.Actor, id uuid.UUID) (*internalorders.OrderDTO, error) {
	if s.get != nil {
		return s.get(ctx, actor, id)
	}
	return &internalorders.OrderDTO{ID: id}, nil
}

func (s *stubOrdersService) List(ctx context.Context, actor internalorders.Actor, params pagination.Params) (*internalorders.OrderList, error) {
	if s.list != nil {
		return s.list(ctx, actor, params)
	}
	return &internalorders.OrderList{}, nil
}

func (s *stubOrdersService) MarkPaid(ctx context.Context, actor internalorders.Actor, id uuid.UUID) (*internalorders.OrderDTO, error) {
	if s.markPaid != nil {
		return s.markPaid(ctx, actor, id)
	}
	return &internalorders.OrderDTO{ID: id, IsPaid: true}, nil
}

func (s *stubOrdersService) MarkDelivered(ctx context.Context, actor internalorders.Actor, id uuid.UUID) (*internalorders.OrderDTO, error) {
	if s.markDelivered != nil {
		return s.markDelivered(ctx, actor, id)
	}
	return &internalorders.OrderDTO{ID: id, IsDelivered: true}, nil
}

type stubBuilder struct {
	input checkout.SessionInput
	err   error
}

func (s *stubBuilder) CreateSession(ctx context.Context, input checkout.SessionInput) (*stripe.CheckoutSession, error) {
	s.input = input
	if s.err != nil {
		return nil, s.err
	}
	return &stripe.CheckoutSession{ID: "cs_test_123", URL: "https://checkout.example/cs_test_123"}, nil
}

var (
	testUserID = uuid.MustParse("6f1f0c52-0f5a-4f4e-9d5e-0e1c2b3a4d5f")
	testEmail  = "buyer@example.com"
)

func authed(req *http.Request, role enums.UserRole) *http.Request {
	ctx := middleware.WithIdentity(req.Context(), testUserID, testEmail, role)
	return req.WithContext(ctx)
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error.Code
}

func TestCreateCashOrderPassesCartAndAddress(t *testing.T) {
	cartID := uuid.New()
	var captured internalorders.CashOrderInput
	svc := &stubOrdersService{
		createCash: func(ctx context.Context, input internalorders.CashOrderInput) (*internalorders.OrderDTO, error) {
			captured = input
			return &internalorders.OrderDTO{ID: uuid.New(), PaymentMethodType: enums.PaymentMethodTypeCash}, nil
		},
	}

	body := strings.NewReader(`{"city":" Cairo ","street":"Tahrir 1","phone":"0100"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+cartID.String(), body)
	req = withURLParam(authed(req, enums.UserRoleUser), "cartId", cartID.String())
	rec := httptest.NewRecorder()

	CreateCashOrder(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	if captured.CartID != cartID {
		t.Fatalf("expected cart %s, got %s", cartID, captured.CartID)
	}
	if captured.Actor.UserID != testUserID || captured.Actor.Email != testEmail {
		t.Fatalf("unexpected actor %+v", captured.Actor)
	}
	if captured.ShippingAddress.City != "Cairo" || captured.ShippingAddress.Phone != "0100" {
		t.Fatalf("unexpected address %+v", captured.ShippingAddress)
	}
}

func TestCreateCashOrderAllowsEmptyBody(t *testing.T) {
	cartID := uuid.New()
	called := false
	svc := &stubOrdersService{
		createCash: func(ctx context.Context, input internalorders.CashOrderInput) (*internalorders.OrderDTO, error) {
			called = true
			if !input.ShippingAddress.IsZero() {
				t.Fatalf("expected zero address, got %+v", input.ShippingAddress)
			}
			return &internalorders.OrderDTO{}, nil
		},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+cartID.String(), nil)
	req = withURLParam(authed(req, enums.UserRoleUser), "cartId", cartID.String())
	rec := httptest.NewRecorder()

	CreateCashOrder(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated || !called {
		t.Fatalf("expected 201 with service call, got %d", rec.Code)
	}
}

func TestCreateCashOrderRejectsBadInput(t *testing.T) {
	cartID := uuid.New()
	cases := []struct {
		name   string
		param  string
		body   string
		auth   bool
		status int
		code   string
	}{
		{name: "anonymous", param: cartID.String(), auth: false, status: http.StatusUnauthorized, code: string(pkgerrors.CodeUnauthorized)},
		{name: "bad cart id", param: "not-a-uuid", auth: true, status: http.StatusBadRequest, code: string(pkgerrors.CodeValidation)},
		{name: "unknown field", param: cartID.String(), body: `{"planet":"mars"}`, auth: true, status: http.StatusBadRequest, code: string(pkgerrors.CodeValidation)},
		{name: "too long", param: cartID.String(), body: `{"phone":"` + strings.Repeat("9", 31) + `"}`, auth: true, status: http.StatusBadRequest, code: string(pkgerrors.CodeValidation)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubOrdersService{
				createCash: func(ctx context.Context, input internalorders.CashOrderInput) (*internalorders.OrderDTO, error) {
					t.Fatalf("service should not be called")
					return nil, nil
				},
			}
			req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/x", strings.NewReader(tc.body))
			if tc.auth {
				req = authed(req, enums.UserRoleUser)
			}
			req = withURLParam(req, "cartId", tc.param)
			rec := httptest.NewRecorder()

			CreateCashOrder(svc, nil).ServeHTTP(rec, req)

			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d (%s)", tc.status, rec.Code, rec.Body.String())
			}
			if got := decodeErrorCode(t, rec); got != tc.code {
				t.Fatalf("expected code %s, got %s", tc.code, got)
			}
		})
	}
}

func TestCreateCashOrderMapsServiceErrors(t *testing.T) {
	cartID := uuid.New()
	svc := &stubOrdersService{
		createCash: func(ctx context.Context, input internalorders.CashOrderInput) (*internalorders.OrderDTO, error) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "cart is being checked out")
		},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+cartID.String(), nil)
	req = withURLParam(authed(req, enums.UserRoleUser), "cartId", cartID.String())
	rec := httptest.NewRecorder()

	CreateCashOrder(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestListForwardsPagination(t *testing.T) {
	var gotParams pagination.Params
	var gotActor internalorders.Actor
	svc := &stubOrdersService{
		list: func(ctx context.Context, actor internalorders.Actor, params pagination.Params) (*internalorders.OrderList, error) {
			gotActor = actor
			gotParams = params
			return &internalorders.OrderList{NextCursor: "next"}, nil
		},
	}
	cursor := pagination.EncodeCursor(pagination.Cursor{CreatedAt: time.Now(), ID: uuid.New()})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders?limit=10&cursor="+cursor, nil)
	req = authed(req, enums.UserRoleAdmin)
	rec := httptest.NewRecorder()

	List(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotParams.Limit != 10 || gotParams.Cursor != cursor {
		t.Fatalf("unexpected params %+v", gotParams)
	}
	if !gotActor.IsAdmin() {
		t.Fatalf("expected admin actor, got %+v", gotActor)
	}
	var body struct {
		Data internalorders.OrderList `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.NextCursor != "next" {
		t.Fatalf("expected next cursor, got %q", body.Data.NextCursor)
	}
}

func TestListDefaultsAndBounds(t *testing.T) {
	var gotParams pagination.Params
	svc := &stubOrdersService{
		list: func(ctx context.Context, actor internalorders.Actor, params pagination.Params) (*internalorders.OrderList, error) {
			gotParams = params
			return &internalorders.OrderList{}, nil
		},
	}

	req := authed(httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil), enums.UserRoleUser)
	rec := httptest.NewRecorder()
	List(svc, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || gotParams.Limit != pagination.DefaultLimit {
		t.Fatalf("expected default limit, got status=%d params=%+v", rec.Code, gotParams)
	}

	req = authed(httptest.NewRequest(http.MethodGet, "/api/v1/orders?limit=1000", nil), enums.UserRoleUser)
	rec = httptest.NewRecorder()
	List(svc, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized limit, got %d", rec.Code)
	}

	req = authed(httptest.NewRequest(http.MethodGet, "/api/v1/orders?cursor=garbage", nil), enums.UserRoleUser)
	rec = httptest.NewRecorder()
	List(svc, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest || decodeErrorCode(t, rec) != string(pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for bad cursor, got %d", rec.Code)
	}
}

func TestDetailReturnsNotFound(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOrdersService{
		get: func(ctx context.Context, actor internalorders.Actor, id uuid.UUID) (*internalorders.OrderDTO, error) {
			if id != orderID {
				t.Fatalf("unexpected order id %s", id)
			}
			return nil, pkgerrors.NotFound("order")
		},
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+orderID.String(), nil)
	req = withURLParam(authed(req, enums.UserRoleUser), "orderId", orderID.String())
	rec := httptest.NewRecorder()

	Detail(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestMarkPaidAndDeliveredDelegate(t *testing.T) {
	orderID := uuid.New()
	paid, delivered := 0, 0
	svc := &stubOrdersService{
		markPaid: func(ctx context.Context, actor internalorders.Actor, id uuid.UUID) (*internalorders.OrderDTO, error) {
			paid++
			return &internalorders.OrderDTO{ID: id, IsPaid: true}, nil
		},
		markDelivered: func(ctx context.Context, actor internalorders.Actor, id uuid.UUID) (*internalorders.OrderDTO, error) {
			delivered++
			return &internalorders.OrderDTO{ID: id, IsDelivered: true}, nil
		},
	}

	for _, handler := range []http.HandlerFunc{MarkPaid(svc, nil), MarkDelivered(svc, nil)} {
		req := httptest.NewRequest(http.MethodPut, "/api/v1/orders/"+orderID.String(), nil)
		req = withURLParam(authed(req, enums.UserRoleAdmin), "orderId", orderID.String())
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	}
	if paid != 1 || delivered != 1 {
		t.Fatalf("expected one call each, got paid=%d delivered=%d", paid, delivered)
	}
}

func TestMarkPaidSurfacesStateConflict(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOrdersService{
		markPaid: func(ctx context.Context, actor internalorders.Actor, id uuid.UUID) (*internalorders.OrderDTO, error) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order already paid")
		},
	}
	req := httptest.NewRequest(http.MethodPut, "/api/v1/orders/"+orderID.String()+"/pay", nil)
	req = withURLParam(authed(req, enums.UserRoleAdmin), "orderId", orderID.String())
	rec := httptest.NewRecorder()

	MarkPaid(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestCheckoutSessionFromQuery(t *testing.T) {
	cartID := uuid.New()
	builder := &stubBuilder{}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/checkout-session/"+cartID.String()+"?city=Giza&postal_code=12611", nil)
	req = withURLParam(authed(req, enums.UserRoleUser), "cartId", cartID.String())
	rec := httptest.NewRecorder()

	CheckoutSession(builder, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if builder.input.CartID != cartID || builder.input.UserID != testUserID || builder.input.Email != testEmail {
		t.Fatalf("unexpected input %+v", builder.input)
	}
	if builder.input.ShippingAddress.City != "Giza" || builder.input.ShippingAddress.PostalCode != "12611" {
		t.Fatalf("unexpected address %+v", builder.input.ShippingAddress)
	}
	var body struct {
		Data struct {
			Session struct {
				ID  string `json:"id"`
				URL string `json:"url"`
			} `json:"session"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.Session.ID != "cs_test_123" || body.Data.Session.URL == "" {
		t.Fatalf("unexpected session payload %+v", body.Data.Session)
	}
}

func TestCheckoutSessionFromBody(t *testing.T) {
	cartID := uuid.New()
	builder := &stubBuilder{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/checkout-session/"+cartID.String(), strings.NewReader(`{"country":"EG","street":"Nile St"}`))
	req = withURLParam(authed(req, enums.UserRoleUser), "cartId", cartID.String())
	rec := httptest.NewRecorder()

	CheckoutSession(builder, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if builder.input.ShippingAddress.Country != "EG" || builder.input.ShippingAddress.Street != "Nile St" {
		t.Fatalf("unexpected address %+v", builder.input.ShippingAddress)
	}
}

func TestCheckoutSessionRejectsOversizedQueryField(t *testing.T) {
	cartID := uuid.New()
	builder := &stubBuilder{}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/checkout-session/"+cartID.String()+"?postal_code="+strings.Repeat("1", 21), nil)
	req = withURLParam(authed(req, enums.UserRoleUser), "cartId", cartID.String())
	rec := httptest.NewRecorder()

	CheckoutSession(builder, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCheckoutSessionProviderFailure(t *testing.T) {
	cartID := uuid.New()
	builder := &stubBuilder{err: pkgerrors.New(pkgerrors.CodeProvider, "card declined")}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/checkout-session/"+cartID.String(), nil)
	req = withURLParam(authed(req, enums.UserRoleUser), "cartId", cartID.String())
	rec := httptest.NewRecorder()

	CheckoutSession(builder, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if got := decodeErrorCode(t, rec); got != string(pkgerrors.CodeProvider) {
		t.Fatalf("unexpected code %s", got)
	}
}
