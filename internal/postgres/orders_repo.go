package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-kitchen-orders/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const uniqueViolation = "23505"

const orderColumns = `id, user_id, user_name, total_amount::text, status, note, created_at, updated_at`

// OrderStore implements orders.Store on PostgreSQL.
type OrderStore struct{ DB *pgxpool.Pool }

func (r *OrderStore) Create(ctx context.Context, o orders.Order) (orders.Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return orders.Order{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, user_id, user_name, total_amount, status, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8)
	`, o.ID, o.UserID, o.UserName, o.TotalAmount.String(), string(o.Status), o.Note, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return orders.Order{}, orders.ErrDuplicateID
		}
		return orders.Order{}, err
	}

	batch := &pgx.Batch{}
	for i, it := range o.Items {
		batch.Queue(`
			INSERT INTO order_items(order_id, line_no, dish_id, dish_name, quantity, price)
			VALUES ($1, $2, $3, $4, $5, $6::numeric)`,
			o.ID, i, it.DishID, it.DishName, it.Quantity, it.Price.String(),
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return orders.Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return orders.Order{}, err
	}
	return o, nil
}

func (r *OrderStore) Get(ctx context.Context, id string) (orders.Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Order{}, orders.ErrNotFound
	}
	if err != nil {
		return orders.Order{}, err
	}
	return r.withItems(ctx, o)
}

func (r *OrderStore) List(ctx context.Context, f orders.Filter) ([]orders.Order, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status=$%d", len(args)))
	}
	if f.UserID != "" {
		args = append(args, f.UserID)
		where = append(where, fmt.Sprintf("user_id=$%d", len(args)))
	}
	q := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY seq`

	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []orders.Order{}
	index := map[string]int{}
	ids := []string{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		index[o.ID] = len(out)
		ids = append(ids, o.ID)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}

	itemRows, err := r.DB.Query(ctx, `
		SELECT order_id, dish_id, dish_name, quantity, price::text
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, line_no`, ids)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var orderID string
		it, err := scanItem(itemRows, &orderID)
		if err != nil {
			return nil, err
		}
		i := index[orderID]
		out[i].Items = append(out[i].Items, it)
	}
	return out, itemRows.Err()
}

func (r *OrderStore) UpdateStatus(ctx context.Context, id string, to orders.Status, at time.Time) (orders.Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `
		UPDATE orders SET status=$2, updated_at=$3 WHERE id=$1
		RETURNING `+orderColumns, id, string(to), at))
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Order{}, orders.ErrNotFound
	}
	if err != nil {
		return orders.Order{}, err
	}
	return r.withItems(ctx, o)
}

// CompareAndSetStatus relies on the row lock taken by UPDATE: of two
// concurrent callers with the same from, the second re-evaluates the WHERE
// clause after the first commits and matches nothing.
func (r *OrderStore) CompareAndSetStatus(ctx context.Context, id string, from, to orders.Status, at time.Time) (orders.Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `
		UPDATE orders SET status=$3, updated_at=$4 WHERE id=$1 AND status=$2
		RETURNING `+orderColumns, id, string(from), string(to), at))
	if errors.Is(err, pgx.ErrNoRows) {
		current, err := r.Get(ctx, id)
		if err != nil {
			return orders.Order{}, err
		}
		return current, orders.ErrStatusConflict
	}
	if err != nil {
		return orders.Order{}, err
	}
	return r.withItems(ctx, o)
}

func (r *OrderStore) withItems(ctx context.Context, o orders.Order) (orders.Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT order_id, dish_id, dish_name, quantity, price::text
		FROM order_items WHERE order_id=$1 ORDER BY line_no`, o.ID)
	if err != nil {
		return orders.Order{}, err
	}
	defer rows.Close()
	o.Items = []orders.OrderItem{}
	for rows.Next() {
		var orderID string
		it, err := scanItem(rows, &orderID)
		if err != nil {
			return orders.Order{}, err
		}
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

func scanOrder(row pgx.Row) (orders.Order, error) {
	var (
		o      orders.Order
		total  string
		status string
	)
	if err := row.Scan(&o.ID, &o.UserID, &o.UserName, &total, &status, &o.Note, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return orders.Order{}, err
	}
	d, err := decimal.NewFromString(total)
	if err != nil {
		return orders.Order{}, fmt.Errorf("order %s total: %w", o.ID, err)
	}
	o.TotalAmount = orders.NewMoney(d)
	o.Status = orders.Status(status)
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	return o, nil
}

func scanItem(row pgx.Row, orderID *string) (orders.OrderItem, error) {
	var (
		it    orders.OrderItem
		price string
	)
	if err := row.Scan(orderID, &it.DishID, &it.DishName, &it.Quantity, &price); err != nil {
		return orders.OrderItem{}, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return orders.OrderItem{}, fmt.Errorf("item price: %w", err)
	}
	it.Price = orders.NewMoney(d)
	return it, nil
}
