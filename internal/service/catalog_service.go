package service

import (
	"context"
	"errors"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"storefront/internal/broadcast"
	"storefront/internal/domain"
	"storefront/internal/repository"

	"go.uber.org/zap"
)

// CatalogService defines the interface for catalog business logic
type CatalogService interface {
	ListProducts(ctx context.Context, query domain.ProductQuery) (*domain.ProductPage, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	AddProduct(ctx context.Context, input domain.ProductInput) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id string, patch domain.ProductPatch) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
}

// sortable maps the public sort names to store sort fields
var sortable = map[string]string{
	"title":    repository.SortFieldTitle,
	"price":    repository.SortFieldPrice,
	"stock":    repository.SortFieldStock,
	"category": repository.SortFieldCategory,
}

type catalogService struct {
	products  repository.ProductRepository
	publisher broadcast.Publisher
	logger    *zap.Logger
}

// NewCatalogService creates a new instance of CatalogService
func NewCatalogService(products repository.ProductRepository, publisher broadcast.Publisher, logger *zap.Logger) CatalogService {
	return &catalogService{
		products:  products,
		publisher: publisher,
		logger:    logger,
	}
}

// ListProducts filters, sorts and paginates the catalog and builds prev/next links
func (s *catalogService) ListProducts(ctx context.Context, q domain.ProductQuery) (*domain.ProductPage, error) {
	if q.Limit < 1 || q.Page < 1 {
		return nil, domain.NewError(domain.KindInvalidParameters, "limit and page must be positive integers")
	}

	switch q.Availability {
	case domain.AvailabilityAny, domain.AvailabilityAvailable, domain.AvailabilityUnavailable:
	default:
		return nil, domain.NewError(domain.KindInvalidParameters,
			"availability must be %q or %q", domain.AvailabilityAvailable, domain.AvailabilityUnavailable)
	}

	field, order, err := parseSort(q.Sort)
	if err != nil {
		return nil, err
	}

	items, total, err := s.products.List(ctx, repository.ProductFilter{
		Query:        q.Query,
		Availability: q.Availability,
		SortField:    field,
		SortOrder:    order,
		Limit:        q.Limit,
		Offset:       pageOffset(q.Page, q.Limit),
	})
	if err != nil {
		return nil, s.internal("list products", err)
	}

	totalPages := total / q.Limit
	if total%q.Limit != 0 {
		totalPages++
	}
	if totalPages < 1 {
		totalPages = 1
	}

	page := &domain.ProductPage{
		Items:       items,
		TotalDocs:   total,
		Limit:       q.Limit,
		Page:        q.Page,
		TotalPages:  totalPages,
		HasPrevPage: q.Page > 1,
		HasNextPage: q.Page < totalPages,
	}

	if page.HasPrevPage {
		prev := q.Page - 1
		link := pageLink(q, prev)
		page.PrevPage = &prev
		page.PrevLink = &link
	}
	if page.HasNextPage {
		next := q.Page + 1
		link := pageLink(q, next)
		page.NextPage = &next
		page.NextLink = &link
	}

	return page, nil
}

// pageOffset returns how many matches precede page, saturating at math.MaxInt.
// Any saturated offset is past the last match, so the page comes back empty.
func pageOffset(page, limit int) int {
	if page-1 > math.MaxInt/limit {
		return math.MaxInt
	}
	return (page - 1) * limit
}

// parseSort understands "", "asc", "desc", "<field>" and "-<field>".
// The bare asc/desc forms sort by price.
func parseSort(sort string) (string, repository.SortOrder, error) {
	sort = strings.TrimSpace(sort)

	switch sort {
	case "":
		return "", repository.SortOrderDesc, nil
	case "asc":
		return repository.SortFieldPrice, repository.SortOrderAsc, nil
	case "desc":
		return repository.SortFieldPrice, repository.SortOrderDesc, nil
	}

	order := repository.SortOrderAsc
	name := sort
	if strings.HasPrefix(name, "-") {
		order = repository.SortOrderDesc
		name = name[1:]
	}

	field, ok := sortable[name]
	if !ok {
		return "", "", domain.NewError(domain.KindInvalidSortField, "cannot sort by %q", name)
	}

	return field, order, nil
}

// pageLink rebuilds the listing request for another page on the caller's base path
func pageLink(q domain.ProductQuery, page int) string {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(q.Limit))
	params.Set("page", strconv.Itoa(page))
	if q.Sort != "" {
		params.Set("sort", q.Sort)
	}
	if q.Query != "" {
		params.Set("query", q.Query)
	}
	if q.Availability != domain.AvailabilityAny {
		params.Set("availability", string(q.Availability))
	}

	return q.BasePath + "?" + params.Encode()
}

func (s *catalogService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, s.productError("get product", id, err)
	}
	return product, nil
}

// AddProduct validates every field, rejects a taken code and stores the product.
// Status defaults to stock > 0 when not supplied.
func (s *catalogService) AddProduct(ctx context.Context, input domain.ProductInput) (*domain.Product, error) {
	if err := validateProduct(input); err != nil {
		return nil, err
	}

	if err := s.ensureCodeFree(ctx, input.Code, ""); err != nil {
		return nil, err
	}

	product := &domain.Product{
		Title:       input.Title,
		Description: input.Description,
		Price:       *input.Price,
		Stock:       *input.Stock,
		Category:    input.Category,
		Code:        input.Code,
		Status:      *input.Stock > 0,
		Thumbnails:  append([]string{}, input.Thumbnails...),
	}
	if input.Status != nil {
		product.Status = *input.Status
	}

	if err := s.products.Create(ctx, product); err != nil {
		return nil, s.productError("create product", "", err)
	}

	s.logger.Info("Product created",
		zap.String("product_id", product.ID),
		zap.String("code", product.Code),
	)

	s.publish(ctx, domain.Event{
		Type:      domain.EventProductCreated,
		ProductID: product.ID,
		Product:   product,
	})

	return product, nil
}

// UpdateProduct applies a partial update. Status is never derived from stock here.
func (s *catalogService) UpdateProduct(ctx context.Context, id string, patch domain.ProductPatch) (*domain.Product, error) {
	if patch.Empty() {
		return nil, domain.NewError(domain.KindValidation, "no fields to update")
	}

	if err := validateProduct(patch); err != nil {
		return nil, err
	}

	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, s.productError("update product", id, err)
	}

	if patch.Code != nil && *patch.Code != product.Code {
		if err := s.ensureCodeFree(ctx, *patch.Code, product.ID); err != nil {
			return nil, err
		}
	}

	patch.Apply(product)

	if err := s.products.Update(ctx, product); err != nil {
		return nil, s.productError("update product", id, err)
	}

	s.publish(ctx, domain.Event{
		Type:      domain.EventProductUpdated,
		ProductID: product.ID,
		Product:   product,
	})

	return product, nil
}

func (s *catalogService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.products.Delete(ctx, id); err != nil {
		return s.productError("delete product", id, err)
	}

	s.logger.Info("Product deleted", zap.String("product_id", id))

	s.publish(ctx, domain.Event{
		Type:      domain.EventProductDeleted,
		ProductID: id,
	})

	return nil
}

// ensureCodeFree fails with DuplicateCode when code belongs to a product other than ownerID
func (s *catalogService) ensureCodeFree(ctx context.Context, code, ownerID string) error {
	existing, err := s.products.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil
		}
		return s.internal("check product code", err)
	}

	if existing.ID != ownerID {
		return domain.NewError(domain.KindDuplicateCode, "product code %q already exists", code)
	}
	return nil
}

func (s *catalogService) productError(op, id string, err error) error {
	switch {
	case errors.Is(err, repository.ErrProductNotFound):
		return domain.NewError(domain.KindNotFound, "product %s not found", id)
	case errors.Is(err, repository.ErrDuplicateCode):
		return domain.NewError(domain.KindDuplicateCode, "product code already exists")
	default:
		return s.internal(op, err)
	}
}

func (s *catalogService) internal(op string, err error) error {
	s.logger.Error("Catalog store failure", zap.String("op", op), zap.Error(err))
	return domain.Internal(err)
}

func (s *catalogService) publish(ctx context.Context, event domain.Event) {
	event.OccurredAt = time.Now().UTC()
	s.publisher.Publish(ctx, event)
}
