package transport

import (
	"errors"
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// QuantityRequest is the body of add and set-quantity requests
type QuantityRequest struct {
	Quantity *int `json:"quantity"`
}

// ReplaceCartRequest is the body of a full cart replacement
type ReplaceCartRequest struct {
	Products []domain.CartLine `json:"products" validate:"required"`
}

// CartHandler handles HTTP requests for cart operations
type CartHandler struct {
	carts  service.CartService
	logger *zap.Logger
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(carts service.CartService, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		carts:  carts,
		logger: logger,
	}
}

// RegisterRoutes registers all cart routes
func (h *CartHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/carts", func(r chi.Router) {
		r.Post("/", h.CreateCart)

		r.Route("/{cid}", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Put("/", h.ReplaceProducts)
			r.Delete("/", h.ClearCart)

			r.Post("/products/{pid}", h.AddProduct)
			r.Put("/products/{pid}", h.UpdateQuantity)
			r.Delete("/products/{pid}", h.RemoveProduct)
		})
	})
}

// CreateCart handles empty cart creation
func (h *CartHandler) CreateCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.carts.CreateCart(r.Context())
	if err != nil {
		middleware.RespondWithDomainError(w, r, h.logger, err)
		return
	}

	h.logger.Info("Cart created", zap.String("cart_id", cart.ID))
	middleware.RespondWithJSON(w, http.StatusCreated, cart)
}

// GetCart returns the cart with its lines resolved against the catalog
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.carts.GetCart(r.Context(), chi.URLParam(r, "cid"))
	if err != nil {
		middleware.RespondWithDomainError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, view)
}

// AddProduct adds a product line; the quantity defaults to 1 when the body is empty or omits it
func (h *CartHandler) AddProduct(w http.ResponseWriter, r *http.Request) {
	var req QuantityRequest
	if err := middleware.DecodeJSON(w, r, &req); err != nil && !errors.Is(err, middleware.ErrEmptyBody) {
		middleware.RespondWithDomainError(w, r, h.logger, err)
		return
	}

	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	cart, err := h.carts.AddProductToCart(r.Context(), chi.URLParam(r, "cid"), chi.URLParam(r, "pid"), quantity)
	if err != nil {
		middleware.RespondWithDomainError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, cart)
}

// UpdateQuantity sets the quantity of an existing line
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req QuantityRequest
	if err := middleware.DecodeJSON(w, r, &req); err != nil {
		middleware.RespondWithDomainError(w, r, h.logger, err)
		return
	}

	if req.Quantity == nil {
		middleware.RespondWithDomainError(w, r, h.logger,
			domain.NewError(domain.KindInvalidQuantity, "quantity is required"))
		return
	}

	cart, err := h.carts.UpdateProductQuantity(r.Context(), chi.URLParam(r, "cid"), chi.URLParam(r, "pid"), *req.Quantity)
	if err != nil {
		middleware.RespondWithDomainError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, cart)
}

// RemoveProduct drops a product line
func (h *CartHandler) RemoveProduct(w http.ResponseWriter, r *http.Request) {
	cart, err := h.carts.RemoveProductFromCart(r.Context(), chi.URLParam(r, "cid"), chi.URLParam(r, "pid"))
	if err != nil {
		middleware.RespondWithDomainError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, cart)
}

// ReplaceProducts swaps the whole line list
func (h *CartHandler) ReplaceProducts(w http.ResponseWriter, r *http.Request) {
	var req ReplaceCartRequest
	if err := middleware.DecodeAndValidate(w, r, &req); err != nil {
		h.logger.Debug("Cart replacement rejected", zap.Error(err))
		middleware.RespondWithDomainError(w, r, h.logger, err)
		return
	}

	cart, err := h.carts.ReplaceProducts(r.Context(), chi.URLParam(r, "cid"), req.Products)
	if err != nil {
		middleware.RespondWithDomainError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, cart)
}

// ClearCart removes every line and keeps the cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.carts.ClearCart(r.Context(), chi.URLParam(r, "cid"))
	if err != nil {
		middleware.RespondWithDomainError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, cart)
}
