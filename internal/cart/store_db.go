package cart

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"PharmaStore/internal/catalog"
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

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func loadCartByUser(ctx context.Context, q querier, userID string) (Cart, bool, error) {
	var c Cart
	err := q.QueryRowContext(ctx, `
		SELECT id, user_id, total_cents, created_at, updated_at
		FROM carts
		WHERE user_id = $1
	`, userID).Scan(&c.ID, &c.UserID, &c.TotalCents, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Cart{}, false, nil
	}
	if err != nil {
		return Cart{}, false, err
	}

	items, err := loadItems(ctx, q, c.ID)
	if err != nil {
		return Cart{}, false, err
	}
	c.Items = items
	return c, true, nil
}

func loadItems(ctx context.Context, q querier, cartID string) ([]Item, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, product_id, quantity, unit_price_cents, snapshot
		FROM cart_items
		WHERE cart_id = $1
		ORDER BY id
	`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var (
			it   Item
			snap []byte
		)
		if err := rows.Scan(&it.ID, &it.ProductID, &it.Quantity, &it.UnitPriceCents, &snap); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(snap, &it.Product); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *PostgresStore) Get(ctx context.Context, userID string) (Cart, bool, error) {
	var (
		c  Cart
		ok bool
	)
	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		var err error
		c, ok, err = loadCartByUser(ctx, s.db, userID)
		return err
	})
	return c, ok, err
}

func (s *PostgresStore) AddItem(ctx context.Context, userID string, p catalog.Product, qty int) (Cart, error) {
	var out Cart
	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		return s.inTx(ctx, func(tx *sql.Tx) error {
			c, ok, err := lockCartByUser(ctx, tx, userID)
			if err != nil {
				return err
			}
			if !ok {
				c = newCart(userID, time.Now().UTC())
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO carts (id, user_id, total_cents)
					VALUES ($1, $2, 0)
				`, c.ID, c.UserID); err != nil {
					return err
				}
			}

			snap, err := json.Marshal(p)
			if err != nil {
				return err
			}

			// Merge-on-add: one row per (cart, product).
			itemID := "ci_" + uuid.NewString()
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO cart_items (id, cart_id, product_id, quantity, unit_price_cents, snapshot)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (cart_id, product_id)
				DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
			`, itemID, c.ID, p.ID, qty, p.PriceCents, snap); err != nil {
				return err
			}

			if err := recomputeTotal(ctx, tx, c.ID); err != nil {
				return err
			}

			out, _, err = loadCartByUser(ctx, tx, userID)
			return err
		})
	})
	return out, err
}

func (s *PostgresStore) RemoveItem(ctx context.Context, userID, itemID string) (Cart, error) {
	var out Cart
	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		return s.inTx(ctx, func(tx *sql.Tx) error {
			c, ok, err := lockCartByUser(ctx, tx, userID)
			if err != nil {
				return err
			}
			if !ok {
				return ErrNotFound
			}

			res, err := tx.ExecContext(ctx, `
				DELETE FROM cart_items WHERE id = $1 AND cart_id = $2
			`, itemID, c.ID)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				return ErrNotFound
			}

			if err := recomputeTotal(ctx, tx, c.ID); err != nil {
				return err
			}

			out, _, err = loadCartByUser(ctx, tx, userID)
			return err
		})
	})
	return out, err
}

func (s *PostgresStore) Take(ctx context.Context, userID string) (Cart, bool, error) {
	var (
		out Cart
		ok  bool
	)
	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		return s.inTx(ctx, func(tx *sql.Tx) error {
			var err error
			out, ok, err = lockCartByUser(ctx, tx, userID)
			if err != nil || !ok {
				return err
			}

			items, err := loadItems(ctx, tx, out.ID)
			if err != nil {
				return err
			}
			out.Items = items

			// cart_items cascade on cart deletion
			_, err = tx.ExecContext(ctx, `DELETE FROM carts WHERE id = $1`, out.ID)
			return err
		})
	})
	return out, ok, err
}

func (s *PostgresStore) Restore(ctx context.Context, c Cart) error {
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		return s.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO carts (id, user_id, total_cents, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5)
			`, c.ID, c.UserID, c.TotalCents, c.CreatedAt, c.UpdatedAt); err != nil {
				return err
			}

			for _, it := range c.Items {
				snap, err := json.Marshal(it.Product)
				if err != nil {
					return err
				}
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO cart_items (id, cart_id, product_id, quantity, unit_price_cents, snapshot)
					VALUES ($1, $2, $3, $4, $5, $6)
				`, it.ID, c.ID, it.ProductID, it.Quantity, it.UnitPriceCents, snap); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

func (s *PostgresStore) PruneExpired(ctx context.Context, cutoff time.Time) (int, error) {
	var n int64
	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM carts WHERE updated_at < $1`, cutoff)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return int(n), err
}

func lockCartByUser(ctx context.Context, tx *sql.Tx, userID string) (Cart, bool, error) {
	var c Cart
	err := tx.QueryRowContext(ctx, `
		SELECT id, user_id, total_cents, created_at, updated_at
		FROM carts
		WHERE user_id = $1
		FOR UPDATE
	`, userID).Scan(&c.ID, &c.UserID, &c.TotalCents, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Cart{}, false, nil
	}
	if err != nil {
		return Cart{}, false, err
	}
	return c, true, nil
}

func recomputeTotal(ctx context.Context, tx *sql.Tx, cartID string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE carts
		SET total_cents = (
			SELECT COALESCE(SUM(quantity * unit_price_cents), 0)
			FROM cart_items
			WHERE cart_id = $1
		), updated_at = now()
		WHERE id = $1
	`, cartID)
	return err
}

func (s *PostgresStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func withTimeout(parent context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()
	return fn(ctx)
}
