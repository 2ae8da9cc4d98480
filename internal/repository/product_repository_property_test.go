package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"storefront/internal/domain"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func newTestProduct(code string, price float64, stock int) *domain.Product {
	return &domain.Product{
		Title:       "Product " + code,
		Description: "Description of " + code,
		Price:       price,
		Stock:       stock,
		Category:    domain.CategoryElectronics,
		Code:        code,
		Status:      stock > 0,
		Thumbnails:  []string{},
	}
}

// Feature: storefront, Property 10: Product creation preserves attributes
func TestProperty_ProductCreationPreservesAttributes(t *testing.T) {
	productRepo := NewProductRepository(testDB)

	properties := gopter.NewProperties(nil)

	properties.Property("creating and retrieving a product preserves all attributes", prop.ForAll(
		func(title string, description string, price float64, stock int, thumbnail string) bool {
			ctx := context.Background()

			product := &domain.Product{
				Title:       title,
				Description: description,
				Price:       price,
				Stock:       stock,
				Category:    domain.CategorySports,
				Code:        "SKU-" + uuid.New().String(),
				Status:      stock > 0,
				Thumbnails:  []string{thumbnail},
			}

			if err := productRepo.Create(ctx, product); err != nil {
				t.Logf("FAIL: Failed to create product: %v", err)
				return false
			}

			if _, err := uuid.Parse(product.ID); err != nil {
				t.Logf("FAIL: store did not assign a UUID: %q", product.ID)
				return false
			}

			retrieved, err := productRepo.FindByID(ctx, product.ID)
			if err != nil {
				t.Logf("FAIL: Failed to retrieve product: %v", err)
				return false
			}

			if retrieved.Title != product.Title || retrieved.Description != product.Description {
				t.Logf("FAIL: text mismatch. Expected %q/%q, got %q/%q",
					product.Title, product.Description, retrieved.Title, retrieved.Description)
				return false
			}

			if retrieved.Price < product.Price-0.001 || retrieved.Price > product.Price+0.001 {
				t.Logf("FAIL: Price mismatch. Expected %f, got %f", product.Price, retrieved.Price)
				return false
			}

			if retrieved.Stock != product.Stock || retrieved.Status != product.Status {
				t.Logf("FAIL: Stock/status mismatch")
				return false
			}

			if retrieved.Category != domain.CategorySports || retrieved.Code != product.Code {
				t.Logf("FAIL: Category/code mismatch")
				return false
			}

			if len(retrieved.Thumbnails) != 1 || retrieved.Thumbnails[0] != thumbnail {
				t.Logf("FAIL: Thumbnails mismatch: %v", retrieved.Thumbnails)
				return false
			}

			if retrieved.CreatedAt.IsZero() || retrieved.UpdatedAt.IsZero() {
				t.Logf("FAIL: timestamps not set")
				return false
			}

			_ = productRepo.Delete(ctx, product.ID)
			return true
		},
		gen.RegexMatch(`[A-Za-z0-9 ]{3,50}`),
		gen.RegexMatch(`[A-Za-z0-9 .,!?]{10,200}`),
		gen.Float64Range(0, 9999.99),
		gen.IntRange(0, 1000),
		gen.RegexMatch(`https?://[a-z0-9.-]+/[a-z0-9/._-]{1,50}`),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: storefront, Property 11: Product codes are unique
func TestProperty_DuplicateCodeIsRejected(t *testing.T) {
	productRepo := NewProductRepository(testDB)

	properties := gopter.NewProperties(nil)

	properties.Property("a second product with the same code fails with ErrDuplicateCode", prop.ForAll(
		func(suffix string) bool {
			ctx := context.Background()
			code := "DUP-" + suffix + "-" + uuid.New().String()[:8]

			first := newTestProduct(code, 10, 1)
			if err := productRepo.Create(ctx, first); err != nil {
				t.Logf("FAIL: Failed to create first product: %v", err)
				return false
			}
			defer productRepo.Delete(ctx, first.ID)

			second := newTestProduct(code, 20, 2)
			err := productRepo.Create(ctx, second)
			if !errors.Is(err, ErrDuplicateCode) {
				t.Logf("FAIL: expected ErrDuplicateCode, got %v", err)
				return false
			}

			// Updating another product onto the taken code collides too
			other := newTestProduct(code+"-other", 5, 0)
			if err := productRepo.Create(ctx, other); err != nil {
				t.Logf("FAIL: Failed to create other product: %v", err)
				return false
			}
			defer productRepo.Delete(ctx, other.ID)

			other.Code = code
			if err := productRepo.Update(ctx, other); !errors.Is(err, ErrDuplicateCode) {
				t.Logf("FAIL: expected ErrDuplicateCode on update, got %v", err)
				return false
			}

			return true
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: storefront, Property 14: Product updates are reflected
func TestProperty_ProductUpdatesAreReflected(t *testing.T) {
	productRepo := NewProductRepository(testDB)

	properties := gopter.NewProperties(nil)

	properties.Property("updating a product persists the new values and advances updatedAt", prop.ForAll(
		func(newTitle string, newPrice float64, newStock int) bool {
			ctx := context.Background()

			product := newTestProduct("UPD-"+uuid.New().String(), 1, 0)
			if err := productRepo.Create(ctx, product); err != nil {
				t.Logf("FAIL: Failed to create product: %v", err)
				return false
			}
			defer productRepo.Delete(ctx, product.ID)

			createdAt := product.CreatedAt

			product.Title = newTitle
			product.Price = newPrice
			product.Stock = newStock
			if err := productRepo.Update(ctx, product); err != nil {
				t.Logf("FAIL: Failed to update product: %v", err)
				return false
			}

			retrieved, err := productRepo.FindByID(ctx, product.ID)
			if err != nil {
				t.Logf("FAIL: Failed to retrieve product: %v", err)
				return false
			}

			if retrieved.Title != newTitle || retrieved.Stock != newStock {
				t.Logf("FAIL: update not reflected")
				return false
			}

			if retrieved.Price < newPrice-0.001 || retrieved.Price > newPrice+0.001 {
				t.Logf("FAIL: Price mismatch. Expected %f, got %f", newPrice, retrieved.Price)
				return false
			}

			// Status is only ever changed explicitly
			if retrieved.Status {
				t.Logf("FAIL: status flipped without being set")
				return false
			}

			if retrieved.UpdatedAt.Before(createdAt) {
				t.Logf("FAIL: updatedAt went backwards")
				return false
			}

			return true
		},
		gen.RegexMatch(`[A-Za-z0-9 ]{3,50}`),
		gen.Float64Range(0, 9999.99),
		gen.IntRange(1, 1000),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: storefront, Property 15: Deleted products are gone
func TestProperty_ProductDeletionRemovesFromCatalog(t *testing.T) {
	productRepo := NewProductRepository(testDB)

	properties := gopter.NewProperties(nil)

	properties.Property("a deleted product is not found and a second delete fails", prop.ForAll(
		func(stock int) bool {
			ctx := context.Background()

			product := newTestProduct("DEL-"+uuid.New().String(), 3, stock)
			if err := productRepo.Create(ctx, product); err != nil {
				t.Logf("FAIL: Failed to create product: %v", err)
				return false
			}

			if err := productRepo.Delete(ctx, product.ID); err != nil {
				t.Logf("FAIL: Failed to delete product: %v", err)
				return false
			}

			if _, err := productRepo.FindByID(ctx, product.ID); !errors.Is(err, ErrProductNotFound) {
				t.Logf("FAIL: expected ErrProductNotFound, got %v", err)
				return false
			}

			if err := productRepo.Delete(ctx, product.ID); !errors.Is(err, ErrProductNotFound) {
				t.Logf("FAIL: second delete should fail with ErrProductNotFound, got %v", err)
				return false
			}

			return true
		},
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProductRepository_MalformedIDIsNotFound(t *testing.T) {
	productRepo := NewProductRepository(testDB)
	ctx := context.Background()

	if _, err := productRepo.FindByID(ctx, "not-a-uuid"); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("expected ErrProductNotFound, got %v", err)
	}
	if err := productRepo.Delete(ctx, "42"); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("expected ErrProductNotFound, got %v", err)
	}
}

// Feature: storefront, Property 16: Listing filters, sorts and paginates
func TestProductRepository_List(t *testing.T) {
	resetTables(t)
	productRepo := NewProductRepository(testDB)
	ctx := context.Background()

	fixtures := []struct {
		title    string
		category domain.Category
		price    float64
		stock    int
		status   bool
	}{
		{"Laptop 100%", domain.CategoryElectronics, 900, 5, true},
		{"Running Shoes", domain.CategorySports, 80, 0, false},
		{"Desk Lamp", domain.CategoryHome, 25, 10, true},
		{"Winter Jacket", domain.CategoryClothing, 120, 3, false},
		{"Phone", domain.CategoryElectronics, 600, 0, true},
	}

	for i, f := range fixtures {
		p := newTestProduct(fmt.Sprintf("LIST-%d", i), f.price, f.stock)
		p.Title = f.title
		p.Category = f.category
		p.Status = f.status
		if err := productRepo.Create(ctx, p); err != nil {
			t.Fatalf("Failed to create fixture: %v", err)
		}
	}

	t.Run("query matches title or category case-insensitively", func(t *testing.T) {
		items, total, err := productRepo.List(ctx, ProductFilter{Query: "electronics", Limit: 10})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if total != 2 || len(items) != 2 {
			t.Errorf("expected 2 electronics, got total=%d items=%d", total, len(items))
		}

		items, total, err = productRepo.List(ctx, ProductFilter{Query: "lamp", Limit: 10})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if total != 1 || items[0].Title != "Desk Lamp" {
			t.Errorf("expected Desk Lamp, got total=%d", total)
		}
	})

	t.Run("query metacharacters are literal", func(t *testing.T) {
		_, total, err := productRepo.List(ctx, ProductFilter{Query: "100%", Limit: 10})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if total != 1 {
			t.Errorf("expected 1 literal match for 100%%, got %d", total)
		}

		_, total, err = productRepo.List(ctx, ProductFilter{Query: "_", Limit: 10})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if total != 0 {
			t.Errorf("expected underscore to match nothing, got %d", total)
		}
	})

	t.Run("availability", func(t *testing.T) {
		items, total, err := productRepo.List(ctx, ProductFilter{Availability: domain.AvailabilityAvailable, Limit: 10})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if total != 2 {
			t.Errorf("expected 2 available, got %d", total)
		}
		for _, p := range items {
			if !p.Available() {
				t.Errorf("unavailable product %q listed as available", p.Title)
			}
		}

		_, total, err = productRepo.List(ctx, ProductFilter{Availability: domain.AvailabilityUnavailable, Limit: 10})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if total != 3 {
			t.Errorf("expected 3 unavailable, got %d", total)
		}
	})

	t.Run("price ascending", func(t *testing.T) {
		items, _, err := productRepo.List(ctx, ProductFilter{SortField: SortFieldPrice, SortOrder: SortOrderAsc, Limit: 10})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		for i := 1; i < len(items); i++ {
			if items[i-1].Price > items[i].Price {
				t.Errorf("prices not ascending at %d: %f > %f", i, items[i-1].Price, items[i].Price)
			}
		}
	})

	t.Run("pages never overlap", func(t *testing.T) {
		seen := map[string]bool{}
		for offset := 0; offset < 6; offset += 2 {
			items, total, err := productRepo.List(ctx, ProductFilter{Limit: 2, Offset: offset})
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if total != len(fixtures) {
				t.Errorf("expected total %d, got %d", len(fixtures), total)
			}
			for _, p := range items {
				if seen[p.ID] {
					t.Errorf("product %s appears on two pages", p.ID)
				}
				seen[p.ID] = true
			}
		}
		if len(seen) != len(fixtures) {
			t.Errorf("expected %d distinct products across pages, got %d", len(fixtures), len(seen))
		}
	})

	t.Run("offset beyond the end is empty", func(t *testing.T) {
		items, total, err := productRepo.List(ctx, ProductFilter{Limit: 10, Offset: 100})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(items) != 0 || total != len(fixtures) {
			t.Errorf("expected empty page with total %d, got %d items total %d", len(fixtures), len(items), total)
		}
	})

	t.Run("unknown sort field", func(t *testing.T) {
		if _, _, err := productRepo.List(ctx, ProductFilter{SortField: "id; DROP TABLE products", Limit: 10}); err == nil {
			t.Error("expected error for unknown sort field")
		}
	})
}
