package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"storefront/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrCartNotFound     = errors.New("cart not found")
	ErrCartLineNotFound = errors.New("product not in cart")
	ErrQuantityOverflow = errors.New("cart line quantity out of range")
)

// Limits of a stored cart line
const (
	MaxLineQuantity  = math.MaxInt32
	MaxProductRefLen = 64
)

// pgNumericOutOfRange is the SQLSTATE raised when a quantity sum overflows INTEGER
const pgNumericOutOfRange = "22003"

// CartRepository defines the interface for cart data access.
// Every mutation returns the cart as stored after the write.
type CartRepository interface {
	Create(ctx context.Context) (*domain.Cart, error)
	FindByID(ctx context.Context, id string) (*domain.Cart, error)
	// AddLine increments the matching line or appends a new one in a single atomic write
	AddLine(ctx context.Context, cartID, productID string, quantity int) (*domain.Cart, error)
	SetLineQuantity(ctx context.Context, cartID, productID string, quantity int) (*domain.Cart, error)
	RemoveLine(ctx context.Context, cartID, productID string) (*domain.Cart, error)
	ReplaceLines(ctx context.Context, cartID string, lines []domain.CartLine) (*domain.Cart, error)
	Clear(ctx context.Context, cartID string) (*domain.Cart, error)
}

type cartRepository struct {
	db *sql.DB
}

// NewCartRepository creates a PostgreSQL-backed CartRepository
func NewCartRepository(db *sql.DB) CartRepository {
	return &cartRepository{db: db}
}

// querier is satisfied by *sql.DB and *sql.Tx
type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Create inserts an empty cart
func (r *cartRepository) Create(ctx context.Context) (*domain.Cart, error) {
	now := time.Now().UTC()
	id := uuid.New()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO carts (id, created_at, updated_at) VALUES ($1, $2, $3)`,
		id, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}

	return &domain.Cart{
		ID:        id.String(),
		Lines:     []domain.CartLine{},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// FindByID retrieves a cart with its lines in insertion order
func (r *cartRepository) FindByID(ctx context.Context, id string) (*domain.Cart, error) {
	cid, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrCartNotFound
	}
	return r.load(ctx, r.db, cid)
}

// AddLine upserts the line; the unique (cart_id, product_ref) key makes merge-on-add atomic
func (r *cartRepository) AddLine(ctx context.Context, cartID, productID string, quantity int) (*domain.Cart, error) {
	return r.mutate(ctx, cartID, func(tx *sql.Tx, cid uuid.UUID) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cart_items (cart_id, product_ref, quantity)
			VALUES ($1, $2, $3)
			ON CONFLICT (cart_id, product_ref)
			DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
		`, cid, productID, quantity)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgNumericOutOfRange {
				return ErrQuantityOverflow
			}
			return fmt.Errorf("failed to add cart line: %w", err)
		}
		return nil
	})
}

// SetLineQuantity overwrites the quantity of an existing line
func (r *cartRepository) SetLineQuantity(ctx context.Context, cartID, productID string, quantity int) (*domain.Cart, error) {
	return r.mutate(ctx, cartID, func(tx *sql.Tx, cid uuid.UUID) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE cart_items SET quantity = $3 WHERE cart_id = $1 AND product_ref = $2`,
			cid, productID, quantity,
		)
		if err != nil {
			return fmt.Errorf("failed to update cart line: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return ErrCartLineNotFound
		}
		return nil
	})
}

// RemoveLine deletes the line for productID if present
func (r *cartRepository) RemoveLine(ctx context.Context, cartID, productID string) (*domain.Cart, error) {
	return r.mutate(ctx, cartID, func(tx *sql.Tx, cid uuid.UUID) error {
		_, err := tx.ExecContext(ctx,
			`DELETE FROM cart_items WHERE cart_id = $1 AND product_ref = $2`,
			cid, productID,
		)
		if err != nil {
			return fmt.Errorf("failed to remove cart line: %w", err)
		}
		return nil
	})
}

// ReplaceLines swaps the whole line list, keeping the given order
func (r *cartRepository) ReplaceLines(ctx context.Context, cartID string, lines []domain.CartLine) (*domain.Cart, error) {
	return r.mutate(ctx, cartID, func(tx *sql.Tx, cid uuid.UUID) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cid); err != nil {
			return fmt.Errorf("failed to clear cart lines: %w", err)
		}

		for _, line := range lines {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO cart_items (cart_id, product_ref, quantity) VALUES ($1, $2, $3)`,
				cid, line.ProductID, line.Quantity,
			)
			if err != nil {
				return fmt.Errorf("failed to insert cart line: %w", err)
			}
		}
		return nil
	})
}

// Clear removes every line
func (r *cartRepository) Clear(ctx context.Context, cartID string) (*domain.Cart, error) {
	return r.mutate(ctx, cartID, func(tx *sql.Tx, cid uuid.UUID) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cid); err != nil {
			return fmt.Errorf("failed to clear cart lines: %w", err)
		}
		return nil
	})
}

// mutate runs fn in a transaction after touching the cart row.
// The row update both checks existence and locks the cart for the rest of the transaction.
func (r *cartRepository) mutate(ctx context.Context, cartID string, fn func(tx *sql.Tx, cid uuid.UUID) error) (*domain.Cart, error) {
	cid, err := uuid.Parse(cartID)
	if err != nil {
		return nil, ErrCartNotFound
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE carts SET updated_at = $2 WHERE id = $1`,
		cid, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to touch cart: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, ErrCartNotFound
	}

	if err := fn(tx, cid); err != nil {
		return nil, err
	}

	cart, err := r.load(ctx, tx, cid)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit cart update: %w", err)
	}

	return cart, nil
}

func (r *cartRepository) load(ctx context.Context, q querier, cid uuid.UUID) (*domain.Cart, error) {
	cart := &domain.Cart{Lines: []domain.CartLine{}}

	err := q.QueryRowContext(ctx,
		`SELECT id, created_at, updated_at FROM carts WHERE id = $1`, cid,
	).Scan(&cart.ID, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to find cart by ID: %w", err)
	}

	// The serial id records insertion order; upserts keep it
	rows, err := q.QueryContext(ctx,
		`SELECT product_ref, quantity FROM cart_items WHERE cart_id = $1 ORDER BY id ASC`, cid,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.CartLine
		if err := rows.Scan(&line.ProductID, &line.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan cart line: %w", err)
		}
		cart.Lines = append(cart.Lines, line)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart lines: %w", err)
	}

	return cart, nil
}
