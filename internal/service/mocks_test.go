package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

// mockProductRepository is an in-memory ProductRepository
type mockProductRepository struct {
	mu       sync.Mutex
	products map[string]*domain.Product
	nextID   int
	failWith error
}

func newMockProductRepository() *mockProductRepository {
	return &mockProductRepository{products: make(map[string]*domain.Product)}
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWith != nil {
		return m.failWith
	}
	for _, p := range m.products {
		if p.Code == product.Code {
			return repository.ErrDuplicateCode
		}
	}

	m.nextID++
	now := time.Now().UTC().Add(time.Duration(m.nextID) * time.Millisecond)
	product.ID = fmt.Sprintf("p%04d", m.nextID)
	product.CreatedAt = now
	product.UpdatedAt = now

	copied := *product
	m.products[product.ID] = &copied
	return nil
}

func (m *mockProductRepository) Update(ctx context.Context, product *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWith != nil {
		return m.failWith
	}
	if _, ok := m.products[product.ID]; !ok {
		return repository.ErrProductNotFound
	}
	for _, p := range m.products {
		if p.Code == product.Code && p.ID != product.ID {
			return repository.ErrDuplicateCode
		}
	}

	product.UpdatedAt = time.Now().UTC()
	copied := *product
	m.products[product.ID] = &copied
	return nil
}

func (m *mockProductRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWith != nil {
		return m.failWith
	}
	if _, ok := m.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *mockProductRepository) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	copied := *p
	return &copied, nil
}

func (m *mockProductRepository) FindByCode(ctx context.Context, code string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.products {
		if p.Code == code {
			copied := *p
			return &copied, nil
		}
	}
	return nil, repository.ErrProductNotFound
}

// List implements the same predicate and ordering contract as the real stores
func (m *mockProductRepository) List(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWith != nil {
		return nil, 0, m.failWith
	}

	query := strings.ToLower(strings.TrimSpace(filter.Query))
	matched := []*domain.Product{}
	for _, p := range m.products {
		if query != "" &&
			!strings.Contains(strings.ToLower(p.Title), query) &&
			!strings.Contains(strings.ToLower(string(p.Category)), query) {
			continue
		}
		switch filter.Availability {
		case domain.AvailabilityAvailable:
			if !p.Available() {
				continue
			}
		case domain.AvailabilityUnavailable:
			if p.Available() {
				continue
			}
		}
		copied := *p
		matched = append(matched, &copied)
	}

	less := func(a, b *domain.Product) int {
		var c int
		switch filter.SortField {
		case repository.SortFieldPrice:
			c = compare(a.Price, b.Price)
		case repository.SortFieldStock:
			c = compare(a.Stock, b.Stock)
		case repository.SortFieldTitle:
			c = strings.Compare(a.Title, b.Title)
		case repository.SortFieldCategory:
			c = strings.Compare(string(a.Category), string(b.Category))
		default:
			c = a.CreatedAt.Compare(b.CreatedAt)
		}
		if c == 0 {
			c = strings.Compare(a.ID, b.ID)
		}
		if filter.SortOrder == repository.SortOrderDesc {
			c = -c
		}
		return c
	}
	sort.Slice(matched, func(i, j int) bool { return less(matched[i], matched[j]) < 0 })

	total := len(matched)
	start := filter.Offset
	if start > total {
		start = total
	}
	end := total
	if filter.Limit < total-start {
		end = start + filter.Limit
	}

	return matched[start:end], total, nil
}

func compare[T int | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// mockCartRepository is an in-memory CartRepository with merge-on-add
type mockCartRepository struct {
	mu       sync.Mutex
	carts    map[string]*domain.Cart
	nextID   int
	failWith error
}

func newMockCartRepository() *mockCartRepository {
	return &mockCartRepository{carts: make(map[string]*domain.Cart)}
}

func cloneCart(c *domain.Cart) *domain.Cart {
	copied := *c
	copied.Lines = append([]domain.CartLine{}, c.Lines...)
	return &copied
}

func (m *mockCartRepository) Create(ctx context.Context) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWith != nil {
		return nil, m.failWith
	}

	m.nextID++
	now := time.Now().UTC()
	cart := &domain.Cart{
		ID:        fmt.Sprintf("c%04d", m.nextID),
		Lines:     []domain.CartLine{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.carts[cart.ID] = cart
	return cloneCart(cart), nil
}

func (m *mockCartRepository) FindByID(ctx context.Context, id string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cart, ok := m.carts[id]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	return cloneCart(cart), nil
}

func (m *mockCartRepository) mutate(id string, fn func(c *domain.Cart) error) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWith != nil {
		return nil, m.failWith
	}

	cart, ok := m.carts[id]
	if !ok {
		return nil, repository.ErrCartNotFound
	}

	working := cloneCart(cart)
	if err := fn(working); err != nil {
		return nil, err
	}

	// Strictly increasing even on coarse clocks
	working.UpdatedAt = time.Now().UTC()
	if !working.UpdatedAt.After(cart.UpdatedAt) {
		working.UpdatedAt = cart.UpdatedAt.Add(time.Microsecond)
	}

	m.carts[id] = working
	return cloneCart(working), nil
}

func (m *mockCartRepository) AddLine(ctx context.Context, cartID, productID string, quantity int) (*domain.Cart, error) {
	return m.mutate(cartID, func(c *domain.Cart) error {
		for i := range c.Lines {
			if c.Lines[i].ProductID == productID {
				if c.Lines[i].Quantity > repository.MaxLineQuantity-quantity {
					return repository.ErrQuantityOverflow
				}
				c.Lines[i].Quantity += quantity
				return nil
			}
		}
		c.Lines = append(c.Lines, domain.CartLine{ProductID: productID, Quantity: quantity})
		return nil
	})
}

func (m *mockCartRepository) SetLineQuantity(ctx context.Context, cartID, productID string, quantity int) (*domain.Cart, error) {
	return m.mutate(cartID, func(c *domain.Cart) error {
		for i := range c.Lines {
			if c.Lines[i].ProductID == productID {
				c.Lines[i].Quantity = quantity
				return nil
			}
		}
		return repository.ErrCartLineNotFound
	})
}

func (m *mockCartRepository) RemoveLine(ctx context.Context, cartID, productID string) (*domain.Cart, error) {
	return m.mutate(cartID, func(c *domain.Cart) error {
		kept := c.Lines[:0]
		for _, l := range c.Lines {
			if l.ProductID != productID {
				kept = append(kept, l)
			}
		}
		c.Lines = kept
		return nil
	})
}

func (m *mockCartRepository) ReplaceLines(ctx context.Context, cartID string, lines []domain.CartLine) (*domain.Cart, error) {
	return m.mutate(cartID, func(c *domain.Cart) error {
		c.Lines = append([]domain.CartLine{}, lines...)
		return nil
	})
}

func (m *mockCartRepository) Clear(ctx context.Context, cartID string) (*domain.Cart, error) {
	return m.mutate(cartID, func(c *domain.Cart) error {
		c.Lines = []domain.CartLine{}
		return nil
	})
}

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recordingPublisher) Publish(_ context.Context, event domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingPublisher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *recordingPublisher) last() domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}
