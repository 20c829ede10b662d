package postgres

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-kitchen-orders/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const dishColumns = `id, name, price::text, description, category,
	COALESCE(image_url, ''), COALESCE(cooking_instructions, ''), is_available`

// DishStore implements orders.Catalog on the dishes table.
type DishStore struct{ DB *pgxpool.Pool }

func (r *DishStore) Dish(ctx context.Context, id int64) (orders.Dish, error) {
	d, err := scanDish(r.DB.QueryRow(ctx, `SELECT `+dishColumns+` FROM dishes WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return orders.Dish{}, orders.ErrDishNotFound
	}
	return d, err
}

func (r *DishStore) Available(ctx context.Context) ([]orders.Dish, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+dishColumns+` FROM dishes WHERE is_available ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []orders.Dish{}
	for rows.Next() {
		d, err := scanDish(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanDish(row pgx.Row) (orders.Dish, error) {
	var (
		d     orders.Dish
		price string
	)
	if err := row.Scan(&d.ID, &d.Name, &price, &d.Description, &d.Category,
		&d.ImageURL, &d.CookingInstructions, &d.IsAvailable); err != nil {
		return orders.Dish{}, err
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return orders.Dish{}, err
	}
	d.Price = orders.NewMoney(p)
	return d, nil
}
