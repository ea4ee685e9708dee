// Package customers persists the people writing in over the chat channel.
package customers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the pgx surface the repository uses. *pgxpool.Pool satisfies it in
// production and pgxmock in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Customer is one chat contact, keyed by phone number.
type Customer struct {
	ID        string
	Phone     string
	Name      string
	CreatedAt time.Time
}

// Repository stores customers in Postgres.
type Repository struct {
	db DB
}

// NewRepository creates a customer repository.
func NewRepository(db DB) *Repository {
	if db == nil {
		panic("customers: db required")
	}
	return &Repository{db: db}
}

// GetOrCreate returns the customer for the phone number, inserting a new row
// on first contact. The upsert keeps concurrent first messages from the same
// number from racing into duplicate rows.
func (r *Repository) GetOrCreate(ctx context.Context, phone, name string) (Customer, error) {
	if phone == "" {
		return Customer{}, errors.New("customers: phone required")
	}

	var c Customer
	err := r.db.QueryRow(ctx, `
		INSERT INTO customers (id, phone, name, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (phone) DO UPDATE
		SET name = CASE WHEN customers.name = '' THEN EXCLUDED.name ELSE customers.name END
		RETURNING id, phone, name, created_at
	`, uuid.NewString(), phone, name).Scan(&c.ID, &c.Phone, &c.Name, &c.CreatedAt)
	if err != nil {
		return Customer{}, fmt.Errorf("customers: get or create %s: %w", phone, err)
	}
	return c, nil
}

// GetByID looks a customer up by primary key.
func (r *Repository) GetByID(ctx context.Context, id string) (Customer, error) {
	var c Customer
	err := r.db.QueryRow(ctx, `
		SELECT id, phone, name, created_at
		FROM customers
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Phone, &c.Name, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, fmt.Errorf("customers: %s not found: %w", id, err)
	}
	if err != nil {
		return Customer{}, fmt.Errorf("customers: get %s: %w", id, err)
	}
	return c, nil
}
