package transport

import (
	"net/http"
	"strconv"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	productsPath = "/api/products"
	defaultLimit = 10
	defaultPage  = 1
)

// ProductHandler handles HTTP requests for catalog operations
type ProductHandler struct {
	catalog service.CatalogService
	logger  *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(catalog service.CatalogService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		catalog: catalog,
		logger:  logger,
	}
}

// RegisterRoutes registers all product routes
func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Route(productsPath, func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Post("/", h.CreateProduct)

		r.Route("/{pid}", func(r chi.Router) {
			r.Get("/", h.GetProduct)
			r.Put("/", h.UpdateProduct)
			r.Patch("/", h.UpdateProduct)
			r.Delete("/", h.DeleteProduct)
		})
	})
}

// ListProducts handles paginated catalog listing
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	limit, err := intParam(params.Get("limit"), defaultLimit)
	if err != nil {
		middleware.RespondWithDomainError(w, r, h.logger,
			domain.NewError(domain.KindInvalidParameters, "limit must be an integer"))
		return
	}

	page, err := intParam(params.Get("page"), defaultPage)
	if err != nil {
		middleware.RespondWithDomainError(w, r, h.logger,
			domain.NewError(domain.KindInvalidParameters, "page must be an integer"))
		return
	}

	result, err := h.catalog.ListProducts(r.Context(), domain.ProductQuery{
		Query:        params.Get("query"),
		Availability: domain.Availability(params.Get("availability")),
		Sort:         params.Get("sort"),
		Limit:        limit,
		Page:         page,
		BasePath:     productsPath,
	})
	if err != nil {
		middleware.RespondWithDomainError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, result)
}

// GetProduct handles a single product lookup
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.GetProduct(r.Context(), chi.URLParam(r, "pid"))
	if err != nil {
		middleware.RespondWithDomainError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// CreateProduct handles product creation
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var input domain.ProductInput
	if err := middleware.DecodeJSON(w, r, &input); err != nil {
		h.logger.Debug("Product body rejected", zap.Error(err))
		middleware.RespondWithDomainError(w, r, h.logger, err)
		return
	}

	product, err := h.catalog.AddProduct(r.Context(), input)
	if err != nil {
		middleware.RespondWithDomainError(w, r, h.logger, err)
		return
	}

	h.logger.Info("Product created",
		zap.String("product_id", product.ID),
		zap.String("code", product.Code),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

// UpdateProduct handles partial product updates for both PUT and PATCH
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var patch domain.ProductPatch
	if err := middleware.DecodeJSON(w, r, &patch); err != nil {
		h.logger.Debug("Product patch rejected", zap.Error(err))
		middleware.RespondWithDomainError(w, r, h.logger, err)
		return
	}

	product, err := h.catalog.UpdateProduct(r.Context(), chi.URLParam(r, "pid"), patch)
	if err != nil {
		middleware.RespondWithDomainError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// DeleteProduct handles product removal
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	pid := chi.URLParam(r, "pid")
	if err := h.catalog.DeleteProduct(r.Context(), pid); err != nil {
		middleware.RespondWithDomainError(w, r, h.logger, err)
		return
	}

	h.logger.Info("Product deleted", zap.String("product_id", pid))
	w.WriteHeader(http.StatusNoContent)
}

// intParam parses an optional integer query parameter
func intParam(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
