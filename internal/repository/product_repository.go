package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrDuplicateCode   = errors.New("product code already exists")
)

// pgUniqueViolation is the SQLSTATE for unique constraint violations
const pgUniqueViolation = "23505"

// SortOrder represents the sort direction
type SortOrder string

const (
	SortOrderAsc  SortOrder = "ASC"
	SortOrderDesc SortOrder = "DESC"
)

// Sortable product fields. An empty SortField means creation time.
const (
	SortFieldTitle    = "title"
	SortFieldPrice    = "price"
	SortFieldStock    = "stock"
	SortFieldCategory = "category"
)

// ProductFilter is a store-level listing request
type ProductFilter struct {
	Query        string
	Availability domain.Availability
	SortField    string
	SortOrder    SortOrder
	Limit        int
	Offset       int
}

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*domain.Product, error)
	FindByCode(ctx context.Context, code string) (*domain.Product, error)
	List(ctx context.Context, filter ProductFilter) ([]*domain.Product, int, error)
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a PostgreSQL-backed ProductRepository
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

const productColumns = `id, title, description, price, stock, category, code, status, thumbnails, created_at, updated_at`

// Create assigns the id and timestamps, then inserts the product
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	thumbnails, err := encodeThumbnails(product.Thumbnails)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	id := uuid.New()

	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = r.db.ExecContext(
		ctx,
		query,
		id,
		product.Title,
		product.Description,
		product.Price,
		product.Stock,
		string(product.Category),
		product.Code,
		product.Status,
		thumbnails,
		now,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateCode
		}
		return fmt.Errorf("failed to create product: %w", err)
	}

	product.ID = id.String()
	product.CreatedAt = now
	product.UpdatedAt = now
	return nil
}

// Update overwrites every mutable field of an existing product
func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	id, err := uuid.Parse(product.ID)
	if err != nil {
		return ErrProductNotFound
	}

	thumbnails, err := encodeThumbnails(product.Thumbnails)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	query := `
		UPDATE products
		SET title = $2, description = $3, price = $4, stock = $5, category = $6,
		    code = $7, status = $8, thumbnails = $9, updated_at = $10
		WHERE id = $1
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		id,
		product.Title,
		product.Description,
		product.Price,
		product.Stock,
		string(product.Category),
		product.Code,
		product.Status,
		thumbnails,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateCode
		}
		return fmt.Errorf("failed to update product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	product.UpdatedAt = now
	return nil
}

// Delete removes a product; cart lines referencing it are left dangling
func (r *productRepository) Delete(ctx context.Context, id string) error {
	pid, err := uuid.Parse(id)
	if err != nil {
		return ErrProductNotFound
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, pid)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// FindByID retrieves a product by ID
func (r *productRepository) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	pid, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrProductNotFound
	}

	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	product, err := scanProduct(r.db.QueryRowContext(ctx, query, pid))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	return product, nil
}

// FindByCode retrieves a product by its unique code
func (r *productRepository) FindByCode(ctx context.Context, code string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE code = $1`
	product, err := scanProduct(r.db.QueryRowContext(ctx, query, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by code: %w", err)
	}

	return product, nil
}

// List retrieves one page of products matching the filter, plus the total match count
func (r *productRepository) List(ctx context.Context, filter ProductFilter) ([]*domain.Product, int, error) {
	// Whitelist of sort columns to prevent SQL injection
	sortColumns := map[string]string{
		"":                "created_at",
		SortFieldTitle:    "title",
		SortFieldPrice:    "price",
		SortFieldStock:    "stock",
		SortFieldCategory: "category",
	}

	sortColumn, ok := sortColumns[filter.SortField]
	if !ok {
		return nil, 0, fmt.Errorf("unsupported sort field %q", filter.SortField)
	}

	sortOrder := filter.SortOrder
	if sortOrder != SortOrderAsc && sortOrder != SortOrderDesc {
		sortOrder = SortOrderDesc
	}

	// Build the WHERE clause
	conditions := []string{}
	args := []interface{}{}
	argIndex := 1

	if q := strings.TrimSpace(filter.Query); q != "" {
		conditions = append(conditions, fmt.Sprintf("(title ILIKE $%d OR category ILIKE $%d)", argIndex, argIndex))
		args = append(args, "%"+escapeLike(q)+"%")
		argIndex++
	}

	switch filter.Availability {
	case domain.AvailabilityAvailable:
		conditions = append(conditions, "(status = TRUE AND stock > 0)")
	case domain.AvailabilityUnavailable:
		conditions = append(conditions, "(status = FALSE OR stock <= 0)")
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	// Count total products
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM products %s", whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	// id breaks ties so consecutive pages never overlap
	query := fmt.Sprintf(`
		SELECT %s
		FROM products
		%s
		ORDER BY %s %s, id %s
		LIMIT $%d OFFSET $%d
	`, productColumns, whereClause, sortColumn, sortOrder, sortOrder, argIndex, argIndex+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating products: %w", err)
	}

	return products, total, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	product := &domain.Product{}
	var (
		category   string
		thumbnails []byte
	)

	err := row.Scan(
		&product.ID,
		&product.Title,
		&product.Description,
		&product.Price,
		&product.Stock,
		&category,
		&product.Code,
		&product.Status,
		&thumbnails,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	product.Category = domain.Category(category)
	product.Thumbnails = []string{}
	if len(thumbnails) > 0 {
		if err := json.Unmarshal(thumbnails, &product.Thumbnails); err != nil {
			return nil, fmt.Errorf("failed to decode thumbnails: %w", err)
		}
	}

	return product, nil
}

func encodeThumbnails(thumbnails []string) (string, error) {
	if thumbnails == nil {
		thumbnails = []string{}
	}
	data, err := json.Marshal(thumbnails)
	if err != nil {
		return "", fmt.Errorf("failed to encode thumbnails: %w", err)
	}
	return string(data), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// escapeLike makes ILIKE treat the user's text literally
func escapeLike(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(s)
}
