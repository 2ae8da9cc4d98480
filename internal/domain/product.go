package domain

import (
	"time"
)

// Category is the fixed set of catalog sections
type Category string

const (
	CategoryElectronics Category = "Electronics"
	CategoryClothing    Category = "Clothing"
	CategoryHome        Category = "Home"
	CategorySports      Category = "Sports"
	CategoryOther       Category = "Other"
)

// Categories lists every valid category in display order
var Categories = []Category{
	CategoryElectronics,
	CategoryClothing,
	CategoryHome,
	CategorySports,
	CategoryOther,
}

// Valid reports whether c is one of the known categories
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Product represents a product in the catalog
type Product struct {
	ID          string    `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Price       float64   `json:"price" db:"price"`
	Stock       int       `json:"stock" db:"stock"`
	Category    Category  `json:"category" db:"category"`
	Code        string    `json:"code" db:"code"`
	Status      bool      `json:"status" db:"status"`
	Thumbnails  []string  `json:"thumbnails" db:"thumbnails"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}

// Available reports whether the product can currently be bought
func (p *Product) Available() bool {
	return p.Status && p.Stock > 0
}

// ProductInput carries the fields of a product to create.
// Pointers distinguish a missing price/stock/status from a zero value.
type ProductInput struct {
	Title       string   `json:"title" validate:"required,max=255"`
	Description string   `json:"description" validate:"required"`
	Code        string   `json:"code" validate:"required,max=100"`
	Price       *float64 `json:"price" validate:"required,gte=0"`
	Stock       *int     `json:"stock" validate:"required,gte=0,max=2147483647"`
	Category    Category `json:"category" validate:"required,category"`
	Status      *bool    `json:"status,omitempty"`
	Thumbnails  []string `json:"thumbnails,omitempty"`
}

// ProductPatch carries a partial update; nil fields are left untouched
type ProductPatch struct {
	Title       *string   `json:"title,omitempty" validate:"omitempty,min=1,max=255"`
	Description *string   `json:"description,omitempty" validate:"omitempty,min=1"`
	Code        *string   `json:"code,omitempty" validate:"omitempty,min=1,max=100"`
	Price       *float64  `json:"price,omitempty" validate:"omitempty,gte=0"`
	Stock       *int      `json:"stock,omitempty" validate:"omitempty,gte=0,max=2147483647"`
	Category    *Category `json:"category,omitempty" validate:"omitempty,category"`
	Status      *bool     `json:"status,omitempty"`
	Thumbnails  *[]string `json:"thumbnails,omitempty"`
}

// Empty reports whether the patch changes nothing
func (p ProductPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Code == nil && p.Price == nil &&
		p.Stock == nil && p.Category == nil && p.Status == nil && p.Thumbnails == nil
}

// Apply copies the set fields of the patch onto product
func (p ProductPatch) Apply(product *Product) {
	if p.Title != nil {
		product.Title = *p.Title
	}
	if p.Description != nil {
		product.Description = *p.Description
	}
	if p.Code != nil {
		product.Code = *p.Code
	}
	if p.Price != nil {
		product.Price = *p.Price
	}
	if p.Stock != nil {
		product.Stock = *p.Stock
	}
	if p.Category != nil {
		product.Category = *p.Category
	}
	if p.Status != nil {
		product.Status = *p.Status
	}
	if p.Thumbnails != nil {
		product.Thumbnails = append([]string{}, (*p.Thumbnails)...)
	}
}

// Availability filters products by whether they can be bought
type Availability string

const (
	AvailabilityAny         Availability = ""
	AvailabilityAvailable   Availability = "available"
	AvailabilityUnavailable Availability = "unavailable"
)

// ProductQuery is a catalog listing request
type ProductQuery struct {
	Query        string
	Availability Availability
	Sort         string
	Limit        int
	Page         int
	// BasePath is the path prev/next links are built on, e.g. /api/products
	BasePath string
}

// ProductPage is one page of a catalog listing with navigation metadata
type ProductPage struct {
	Items       []*Product `json:"items"`
	TotalDocs   int        `json:"totalDocs"`
	Limit       int        `json:"limit"`
	Page        int        `json:"page"`
	TotalPages  int        `json:"totalPages"`
	HasPrevPage bool       `json:"hasPrevPage"`
	HasNextPage bool       `json:"hasNextPage"`
	PrevPage    *int       `json:"prevPage"`
	NextPage    *int       `json:"nextPage"`
	PrevLink    *string    `json:"prevLink"`
	NextLink    *string    `json:"nextLink"`
}
