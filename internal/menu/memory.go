package menu

import (
	"context"
	"sort"
	"sync"

	"github.com/ariefcatur/go-kitchen-orders/internal/orders"
)

// MemCatalog is an in-process dish catalog for development and tests.
type MemCatalog struct {
	mu     sync.RWMutex
	dishes map[int64]orders.Dish
}

func NewMemCatalog(dishes ...orders.Dish) *MemCatalog {
	c := &MemCatalog{dishes: make(map[int64]orders.Dish, len(dishes))}
	for _, d := range dishes {
		c.dishes[d.ID] = d
	}
	return c
}

func (c *MemCatalog) Put(d orders.Dish) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dishes[d.ID] = d
}

func (c *MemCatalog) Remove(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.dishes, id)
}

func (c *MemCatalog) Dish(_ context.Context, id int64) (orders.Dish, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.dishes[id]
	if !ok {
		return orders.Dish{}, orders.ErrDishNotFound
	}
	return d, nil
}

func (c *MemCatalog) Available(_ context.Context) ([]orders.Dish, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]orders.Dish, 0, len(c.dishes))
	for _, d := range c.dishes {
		if d.IsAvailable {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Seed is the starter menu used when no database is configured.
func Seed() []orders.Dish {
	return []orders.Dish{
		{ID: 1, Name: "Kung Pao Chicken", Price: orders.MustMoney("28.00"), Category: "Hot Dishes",
			Description:         "Diced chicken stir-fried with peanuts and dried chili",
			CookingInstructions: "Marinate chicken 10 min; flash-fry chili and peppercorn; add chicken, sauce, peanuts last",
			IsAvailable:         true},
		{ID: 2, Name: "Mapo Tofu", Price: orders.MustMoney("19.90"), Category: "Hot Dishes",
			Description:         "Silken tofu in spicy bean sauce with minced beef",
			CookingInstructions: "Blanch tofu in salted water; fry doubanjiang and beef; simmer tofu 3 min; thicken",
			IsAvailable:         true},
		{ID: 3, Name: "Smashed Cucumber", Price: orders.MustMoney("12.00"), Category: "Cold Dishes",
			Description:         "Cucumber with garlic and black vinegar",
			CookingInstructions: "Smash and salt cucumber 10 min; drain; dress with garlic, vinegar, chili oil",
			IsAvailable:         true},
		{ID: 4, Name: "Egg Fried Rice", Price: orders.MustMoney("15.50"), Category: "Staples",
			Description:         "Wok-fried rice with egg and scallion",
			CookingInstructions: "Use day-old rice; scramble egg first; high heat; scallion at the end",
			IsAvailable:         true},
		{ID: 5, Name: "Seasonal Soup", Price: orders.MustMoney("22.00"), Category: "Soups",
			Description: "Chef's soup of the day",
			IsAvailable: false},
	}
}
