package orders

import "time"

type Dish struct {
	ID                  int64  `json:"id"`
	Name                string `json:"name"`
	Price               Money  `json:"price"`
	Description         string `json:"description"`
	Category            string `json:"category"`
	ImageURL            string `json:"image_url,omitempty"`
	CookingInstructions string `json:"cooking_instructions,omitempty"`
	IsAvailable         bool   `json:"is_available"`
}

type OrderItem struct {
	DishID   int64  `json:"dish_id"`
	DishName string `json:"dish_name"`
	Quantity int    `json:"quantity"`
	Price    Money  `json:"price"`
}

func (it OrderItem) Subtotal() Money { return it.Price.Mul(it.Quantity) }

type Order struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	UserName    string      `json:"user_name"`
	Items       []OrderItem `json:"items"`
	TotalAmount Money       `json:"total_amount"`
	Status      Status      `json:"status"`
	Note        string      `json:"note,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// clone copies o so callers never share the items slice with a store.
func (o Order) clone() Order {
	o.Items = append([]OrderItem(nil), o.Items...)
	return o
}

// DetailItem is an order line enriched with kitchen notes from the catalog.
type DetailItem struct {
	OrderItem
	CookingInstructions string `json:"cooking_instructions,omitempty"`
	Description         string `json:"description,omitempty"`
}

type OrderDetail struct {
	Order
	Items []DetailItem `json:"items"`
}

// ItemInput is one requested line; only dish id and quantity are trusted,
// name and price are taken from the catalog.
type ItemInput struct {
	DishID   int64  `json:"dish_id"`
	DishName string `json:"dish_name,omitempty"`
	Quantity int    `json:"quantity"`
	Price    *Money `json:"price,omitempty"`
}

type CreateOrderInput struct {
	UserID   string      `json:"user_id"`
	UserName string      `json:"user_name"`
	Items    []ItemInput `json:"items"`
	Note     string      `json:"note,omitempty"`
}
