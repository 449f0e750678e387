package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	pingTimeout  = 1 * time.Second
	queryTimeout = 3 * time.Second
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return withTimeout(ctx, pingTimeout, func(ctx context.Context) error {
		return s.db.PingContext(ctx)
	})
}

const productCols = `id, name, description, price_cents, category, image_url, stock_quantity, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.PriceCents, &p.Category,
		&p.ImageURL, &p.StockQuantity, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (s *PostgresStore) List(ctx context.Context, f Filter) ([]Product, error) {
	query := `SELECT ` + productCols + ` FROM products`
	var (
		conds []string
		args  []any
	)

	if f.Category != "" {
		args = append(args, f.Category)
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id"

	var out []Product
	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			p, err := scanProduct(rows)
			if err != nil {
				return err
			}
			out = append(out, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Product{}
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Product, bool, error) {
	var p Product
	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		var err error
		p, err = scanProduct(s.db.QueryRowContext(ctx,
			`SELECT `+productCols+` FROM products WHERE id = $1`, id))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, false, nil
	}
	if err != nil {
		return Product{}, false, err
	}
	return p, true, nil
}

func (s *PostgresStore) Create(ctx context.Context, p Product) error {
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO products (id, name, description, price_cents, category, image_url, stock_quantity)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, p.ID, p.Name, p.Description, p.PriceCents, p.Category, p.ImageURL, p.StockQuantity)
		return err
	})
}

func (s *PostgresStore) Update(ctx context.Context, p Product) (bool, error) {
	var updated bool
	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, `
			UPDATE products
			SET name = $2, description = $3, price_cents = $4, category = $5,
			    image_url = $6, stock_quantity = $7, updated_at = now()
			WHERE id = $1
		`, p.ID, p.Name, p.Description, p.PriceCents, p.Category, p.ImageURL, p.StockQuantity)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		updated = n > 0
		return err
	})
	return updated, err
}

func (s *PostgresStore) Delete(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		deleted = n > 0
		return err
	})
	return deleted, err
}

func (s *PostgresStore) DecrementStock(ctx context.Context, lines map[string]int) (map[string]Product, error) {
	snap := make(map[string]Product, len(lines))

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		for id, qty := range lines {
			res, err := tx.ExecContext(ctx, `
				UPDATE products
				SET stock_quantity = stock_quantity - $2, updated_at = now()
				WHERE id = $1 AND stock_quantity >= $2
			`, id, qty)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				// Either missing or not enough stock; distinguish for the caller.
				var exists bool
				if err := tx.QueryRowContext(ctx,
					`SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, id).Scan(&exists); err != nil {
					return err
				}
				if !exists {
					return ErrNotFound
				}
				return ErrInsufficientStock
			}

			p, err := scanProduct(tx.QueryRowContext(ctx,
				`SELECT `+productCols+` FROM products WHERE id = $1`, id))
			if err != nil {
				return err
			}
			snap[id] = p
		}

		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func withTimeout(parent context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()
	return fn(ctx)
}
