package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"storefront/internal/broadcast"
	"storefront/internal/domain"
	"storefront/internal/repository"

	"go.uber.org/zap"
)

// CartService defines the interface for cart business logic
type CartService interface {
	CreateCart(ctx context.Context) (*domain.Cart, error)
	GetCart(ctx context.Context, cartID string) (*domain.CartView, error)
	AddProductToCart(ctx context.Context, cartID, productID string, quantity int) (*domain.Cart, error)
	RemoveProductFromCart(ctx context.Context, cartID, productID string) (*domain.Cart, error)
	UpdateProductQuantity(ctx context.Context, cartID, productID string, quantity int) (*domain.Cart, error)
	ReplaceProducts(ctx context.Context, cartID string, lines []domain.CartLine) (*domain.Cart, error)
	ClearCart(ctx context.Context, cartID string) (*domain.Cart, error)
}

// ProductLookup resolves product references held by carts
type ProductLookup interface {
	FindByID(ctx context.Context, id string) (*domain.Product, error)
}

type cartService struct {
	carts     repository.CartRepository
	products  ProductLookup
	publisher broadcast.Publisher
	logger    *zap.Logger
}

// NewCartService creates a new instance of CartService.
// products may be nil, in which case adds are not checked against the catalog
// and GetCart leaves lines unresolved.
func NewCartService(carts repository.CartRepository, products ProductLookup, publisher broadcast.Publisher, logger *zap.Logger) CartService {
	return &cartService{
		carts:     carts,
		products:  products,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *cartService) CreateCart(ctx context.Context) (*domain.Cart, error) {
	cart, err := s.carts.Create(ctx)
	if err != nil {
		return nil, s.cartError("create cart", "", "", err)
	}

	s.publish(ctx, domain.Event{
		Type:   domain.EventCartCreated,
		CartID: cart.ID,
		Cart:   cart,
	})

	return cart, nil
}

// GetCart returns the cart with each line resolved against the catalog.
// Lines whose product was deleted keep a nil Product and count zero toward the total.
func (s *cartService) GetCart(ctx context.Context, cartID string) (*domain.CartView, error) {
	cart, err := s.carts.FindByID(ctx, cartID)
	if err != nil {
		return nil, s.cartError("get cart", cartID, "", err)
	}

	view := &domain.CartView{
		ID:        cart.ID,
		Lines:     make([]domain.CartViewLine, 0, len(cart.Lines)),
		CreatedAt: cart.CreatedAt,
		UpdatedAt: cart.UpdatedAt,
	}

	for _, line := range cart.Lines {
		viewLine := domain.CartViewLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
		}

		if s.products != nil {
			product, err := s.products.FindByID(ctx, line.ProductID)
			switch {
			case err == nil:
				viewLine.Product = product
				viewLine.Available = product.Available()
				viewLine.Subtotal = product.Price * float64(line.Quantity)
			case errors.Is(err, repository.ErrProductNotFound):
			default:
				return nil, s.internal("resolve cart line", err)
			}
		}

		view.Total += viewLine.Subtotal
		view.Lines = append(view.Lines, viewLine)
	}

	return view, nil
}

// AddProductToCart merges into the existing line for productID or appends a new one
func (s *cartService) AddProductToCart(ctx context.Context, cartID, productID string, quantity int) (*domain.Cart, error) {
	if err := checkLine(productID, quantity); err != nil {
		return nil, err
	}

	if s.products != nil {
		if _, err := s.products.FindByID(ctx, productID); err != nil {
			if errors.Is(err, repository.ErrProductNotFound) {
				return nil, domain.NewError(domain.KindNotFound, "product %s not found", productID)
			}
			return nil, s.internal("look up product", err)
		}
	}

	cart, err := s.carts.AddLine(ctx, cartID, productID, quantity)
	if err != nil {
		return nil, s.cartError("add to cart", cartID, productID, err)
	}

	event := domain.Event{
		Type:      domain.EventCartUpdated,
		CartID:    cart.ID,
		ProductID: productID,
		Action:    domain.CartActionAdd,
		Cart:      cart,
	}
	if line, ok := cart.Line(productID); ok {
		qty := line.Quantity
		event.Quantity = &qty
	}
	s.publish(ctx, event)

	return cart, nil
}

// RemoveProductFromCart drops the line for productID. Removing an absent line succeeds.
func (s *cartService) RemoveProductFromCart(ctx context.Context, cartID, productID string) (*domain.Cart, error) {
	if strings.TrimSpace(productID) == "" {
		return nil, domain.NewError(domain.KindInvalidFormat, "product id is required")
	}

	cart, err := s.carts.RemoveLine(ctx, cartID, productID)
	if err != nil {
		return nil, s.cartError("remove from cart", cartID, productID, err)
	}

	s.publish(ctx, domain.Event{
		Type:      domain.EventCartUpdated,
		CartID:    cart.ID,
		ProductID: productID,
		Action:    domain.CartActionRemove,
		Cart:      cart,
	})

	return cart, nil
}

// UpdateProductQuantity sets the quantity of an existing line; it never deletes lines
func (s *cartService) UpdateProductQuantity(ctx context.Context, cartID, productID string, quantity int) (*domain.Cart, error) {
	if err := checkLine(productID, quantity); err != nil {
		return nil, err
	}

	cart, err := s.carts.SetLineQuantity(ctx, cartID, productID, quantity)
	if err != nil {
		return nil, s.cartError("update cart quantity", cartID, productID, err)
	}

	qty := quantity
	s.publish(ctx, domain.Event{
		Type:      domain.EventCartUpdated,
		CartID:    cart.ID,
		ProductID: productID,
		Action:    domain.CartActionUpdate,
		Quantity:  &qty,
		Cart:      cart,
	})

	return cart, nil
}

// ReplaceProducts swaps the whole line list. Duplicate product refs are rejected, not merged.
func (s *cartService) ReplaceProducts(ctx context.Context, cartID string, lines []domain.CartLine) (*domain.Cart, error) {
	if lines == nil {
		return nil, domain.NewError(domain.KindInvalidFormat, "products must be a list of {product, quantity}")
	}

	seen := make(map[string]struct{}, len(lines))
	for i, line := range lines {
		if strings.TrimSpace(line.ProductID) == "" {
			return nil, domain.NewError(domain.KindInvalidFormat, "products[%d]: product is required", i)
		}
		if len(line.ProductID) > repository.MaxProductRefLen {
			return nil, domain.NewError(domain.KindInvalidFormat, "products[%d]: product id is too long", i)
		}
		if line.Quantity <= 0 || line.Quantity > repository.MaxLineQuantity {
			return nil, domain.NewError(domain.KindInvalidFormat, "products[%d]: quantity must be between 1 and %d", i, repository.MaxLineQuantity)
		}
		if _, dup := seen[line.ProductID]; dup {
			return nil, domain.NewError(domain.KindInvalidFormat, "products[%d]: product %s listed twice", i, line.ProductID)
		}
		seen[line.ProductID] = struct{}{}
	}

	cart, err := s.carts.ReplaceLines(ctx, cartID, lines)
	if err != nil {
		return nil, s.cartError("replace cart", cartID, "", err)
	}

	s.publish(ctx, domain.Event{
		Type:   domain.EventCartReplaced,
		CartID: cart.ID,
		Action: domain.CartActionReplace,
		Cart:   cart,
	})

	return cart, nil
}

func (s *cartService) ClearCart(ctx context.Context, cartID string) (*domain.Cart, error) {
	cart, err := s.carts.Clear(ctx, cartID)
	if err != nil {
		return nil, s.cartError("clear cart", cartID, "", err)
	}

	s.publish(ctx, domain.Event{
		Type:   domain.EventCartCleared,
		CartID: cart.ID,
		Action: domain.CartActionClear,
		Cart:   cart,
	})

	return cart, nil
}

func checkLine(productID string, quantity int) error {
	if strings.TrimSpace(productID) == "" {
		return domain.NewError(domain.KindInvalidFormat, "product id is required")
	}
	if len(productID) > repository.MaxProductRefLen {
		return domain.NewError(domain.KindInvalidFormat, "product id must be at most %d characters", repository.MaxProductRefLen)
	}
	if quantity <= 0 {
		return domain.NewError(domain.KindInvalidQuantity, "quantity must be a positive integer, got %d", quantity)
	}
	if quantity > repository.MaxLineQuantity {
		return domain.NewError(domain.KindInvalidQuantity, "quantity must not exceed %d, got %d", repository.MaxLineQuantity, quantity)
	}
	return nil
}

func (s *cartService) cartError(op, cartID, productID string, err error) error {
	switch {
	case errors.Is(err, repository.ErrCartNotFound):
		return domain.NewError(domain.KindNotFound, "cart %s not found", cartID)
	case errors.Is(err, repository.ErrCartLineNotFound):
		return domain.NewError(domain.KindNotFound, "product %s is not in cart %s", productID, cartID)
	case errors.Is(err, repository.ErrQuantityOverflow):
		return domain.NewError(domain.KindInvalidQuantity, "quantity of product %s would exceed %d", productID, repository.MaxLineQuantity)
	default:
		return s.internal(op, err)
	}
}

func (s *cartService) internal(op string, err error) error {
	s.logger.Error("Cart store failure", zap.String("op", op), zap.Error(err))
	return domain.Internal(err)
}

func (s *cartService) publish(ctx context.Context, event domain.Event) {
	event.OccurredAt = time.Now().UTC()
	s.publisher.Publish(ctx, event)
}
