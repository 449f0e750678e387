package order

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	pingTimeout  = 1 * time.Second
	queryTimeout = 5 * time.Second
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

// CreateFromCart is one transaction: lock the cart, snapshot its lines at
// current catalog prices, decrement stock, insert the order, delete the
// cart. Any failure rolls the whole conversion back.
func (s *PostgresStore) CreateFromCart(ctx context.Context, userID string, addr Address) (Order, error) {
	var out Order
	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		var cartID string
		err = tx.QueryRowContext(ctx, `
			SELECT id FROM carts WHERE user_id = $1 FOR UPDATE
		`, userID).Scan(&cartID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrCartEmpty
		}
		if err != nil {
			return err
		}

		rows, err := tx.QueryContext(ctx, `
			SELECT ci.product_id, ci.quantity, p.name, p.price_cents
			FROM cart_items ci
			JOIN products p ON p.id = ci.product_id
			WHERE ci.cart_id = $1
			ORDER BY ci.id
			FOR UPDATE OF p
		`, cartID)
		if err != nil {
			return err
		}

		var items []Item
		for rows.Next() {
			var it Item
			if err := rows.Scan(&it.ProductID, &it.Quantity, &it.Name, &it.UnitPriceCents); err != nil {
				rows.Close()
				return err
			}
			items = append(items, it)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		if len(items) == 0 {
			return ErrCartEmpty
		}

		now := time.Now().UTC()
		o := Order{
			ID:              "o_" + uuid.NewString(),
			UserID:          userID,
			Items:           items,
			Status:          StatusPending,
			ShippingAddress: addr,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		for _, it := range items {
			o.TotalCents += it.UnitPriceCents * int64(it.Quantity)
		}

		for _, it := range items {
			res, err := tx.ExecContext(ctx, `
				UPDATE products
				SET stock_quantity = stock_quantity - $2, updated_at = now()
				WHERE id = $1 AND stock_quantity >= $2
			`, it.ProductID, it.Quantity)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				return ErrInsufficientStock
			}
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO orders (id, user_id, total_cents, status,
				ship_street, ship_city, ship_state, ship_zip, ship_country,
				created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, o.ID, o.UserID, o.TotalCents, o.Status,
			addr.Street, addr.City, addr.State, addr.Zip, addr.Country,
			o.CreatedAt, o.UpdatedAt); err != nil {
			return err
		}

		for _, it := range items {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO order_items (order_id, product_id, name, quantity, unit_price_cents)
				VALUES ($1, $2, $3, $4, $5)
			`, o.ID, it.ProductID, it.Name, it.Quantity, it.UnitPriceCents); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM carts WHERE id = $1`, cartID); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return err
		}
		out = o
		return nil
	})
	return out, err
}

const orderCols = `id, user_id, total_cents, status,
	ship_street, ship_city, ship_state, ship_zip, ship_country,
	created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.UserID, &o.TotalCents, &o.Status,
		&o.ShippingAddress.Street, &o.ShippingAddress.City, &o.ShippingAddress.State,
		&o.ShippingAddress.Zip, &o.ShippingAddress.Country,
		&o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func (s *PostgresStore) loadItems(ctx context.Context, orderID string) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, name, quantity, unit_price_cents
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.Name, &it.Quantity, &it.UnitPriceCents); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Order, bool, error) {
	var o Order
	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		var err error
		o, err = scanOrder(s.db.QueryRowContext(ctx,
			`SELECT `+orderCols+` FROM orders WHERE id = $1`, id))
		if err != nil {
			return err
		}
		o.Items, err = s.loadItems(ctx, id)
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return Order{}, false, nil
	}
	if err != nil {
		return Order{}, false, err
	}
	return o, true, nil
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]Order, error) {
	var out []Order
	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			o, err := scanOrder(rows)
			if err != nil {
				return err
			}
			out = append(out, o)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		for i := range out {
			out[i].Items, err = s.loadItems(ctx, out[i].ID)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Order{}
	}
	return out, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	return s.list(ctx,
		`SELECT `+orderCols+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]Order, error) {
	return s.list(ctx,
		`SELECT `+orderCols+` FROM orders ORDER BY created_at DESC, id DESC`)
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, next Status) (Order, error) {
	var out Order
	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		var current Status
		err = tx.QueryRowContext(ctx,
			`SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if !current.CanTransitionTo(next) {
			return ErrBadTransition
		}

		out, err = scanOrder(tx.QueryRowContext(ctx, `
			UPDATE orders SET status = $2, updated_at = now()
			WHERE id = $1
			RETURNING `+orderCols, id, next))
		if err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return err
		}

		out.Items, err = s.loadItems(ctx, id)
		return err
	})
	if err != nil {
		return Order{}, err
	}
	return out, nil
}

func withTimeout(parent context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()
	return fn(ctx)
}
