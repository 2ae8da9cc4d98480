package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"storefront/internal/domain"
	"storefront/internal/middleware"

	"github.com/go-chi/chi/v5"
)

// stubCatalog records the arguments of each call and returns canned results
type stubCatalog struct {
	lastQuery *domain.ProductQuery
	lastInput *domain.ProductInput
	lastPatch *domain.ProductPatch
	lastID    string
	product   *domain.Product
	page      *domain.ProductPage
	err       error
}

func (s *stubCatalog) ListProducts(ctx context.Context, query domain.ProductQuery) (*domain.ProductPage, error) {
	s.lastQuery = &query
	if s.err != nil {
		return nil, s.err
	}
	if s.page != nil {
		return s.page, nil
	}
	return &domain.ProductPage{Items: []*domain.Product{}, Limit: query.Limit, Page: query.Page, TotalPages: 1}, nil
}

func (s *stubCatalog) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	s.lastID = id
	return s.product, s.err
}

func (s *stubCatalog) AddProduct(ctx context.Context, input domain.ProductInput) (*domain.Product, error) {
	s.lastInput = &input
	return s.product, s.err
}

func (s *stubCatalog) UpdateProduct(ctx context.Context, id string, patch domain.ProductPatch) (*domain.Product, error) {
	s.lastID = id
	s.lastPatch = &patch
	return s.product, s.err
}

func (s *stubCatalog) DeleteProduct(ctx context.Context, id string) error {
	s.lastID = id
	return s.err
}

// cartCall is one recorded CartService invocation
type cartCall struct {
	op        string
	cartID    string
	productID string
	quantity  int
	lines     []domain.CartLine
}

type stubCarts struct {
	calls []cartCall
	cart  *domain.Cart
	view  *domain.CartView
	err   error
}

func (s *stubCarts) record(c cartCall) (*domain.Cart, error) {
	s.calls = append(s.calls, c)
	if s.err != nil {
		return nil, s.err
	}
	if s.cart != nil {
		return s.cart, nil
	}
	return &domain.Cart{ID: c.cartID, Lines: []domain.CartLine{}}, nil
}

func (s *stubCarts) CreateCart(ctx context.Context) (*domain.Cart, error) {
	return s.record(cartCall{op: "create", cartID: "c1"})
}

func (s *stubCarts) GetCart(ctx context.Context, cartID string) (*domain.CartView, error) {
	s.calls = append(s.calls, cartCall{op: "get", cartID: cartID})
	if s.err != nil {
		return nil, s.err
	}
	return s.view, nil
}

func (s *stubCarts) AddProductToCart(ctx context.Context, cartID, productID string, quantity int) (*domain.Cart, error) {
	return s.record(cartCall{op: "add", cartID: cartID, productID: productID, quantity: quantity})
}

func (s *stubCarts) RemoveProductFromCart(ctx context.Context, cartID, productID string) (*domain.Cart, error) {
	return s.record(cartCall{op: "remove", cartID: cartID, productID: productID})
}

func (s *stubCarts) UpdateProductQuantity(ctx context.Context, cartID, productID string, quantity int) (*domain.Cart, error) {
	return s.record(cartCall{op: "update", cartID: cartID, productID: productID, quantity: quantity})
}

func (s *stubCarts) ReplaceProducts(ctx context.Context, cartID string, lines []domain.CartLine) (*domain.Cart, error) {
	return s.record(cartCall{op: "replace", cartID: cartID, lines: lines})
}

func (s *stubCarts) ClearCart(ctx context.Context, cartID string) (*domain.Cart, error) {
	return s.record(cartCall{op: "clear", cartID: cartID})
}

// routeRegistrar is implemented by every handler in this package
type routeRegistrar interface {
	RegisterRoutes(r chi.Router)
}

func serve(h routeRegistrar, method, target, body string) *httptest.ResponseRecorder {
	router := chi.NewRouter()
	h.RegisterRoutes(router)

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) middleware.ErrorDetail {
	t.Helper()

	var resp middleware.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp.Error
}
