package service

import (
	"context"
	"github.com/rookgm/storefront/internal/models"
	"sort"
)

// max quantity of one item added at once
const maxAddQuantity = 100

// CartRepository is interface for interacting with carts
type CartRepository interface {
	// Add increments item quantity and returns new quantity
	Add(ctx context.Context, session string, productSizeID int64, qty int) (int, error)
	// Quantities returns item quantities by product size id
	Quantities(ctx context.Context, session string) (map[int64]int, error)
	// Clear removes cart
	Clear(ctx context.Context, session string) error
}

// ProductRepository is interface for reading catalog
type ProductRepository interface {
	// GetProductSizes returns product variants by id
	GetProductSizes(ctx context.Context, ids []int64) (map[int64]models.ProductSize, error)
}

// CartService implements CartService interface
type CartService struct {
	carts    CartRepository
	products ProductRepository
}

// NewCartService creates new CartService instance
func NewCartService(carts CartRepository, products ProductRepository) *CartService {
	return &CartService{
		carts:    carts,
		products: products,
	}
}

// Add puts product size into cart
func (cs *CartService) Add(ctx context.Context, session string, productSizeID int64, qty int) (int, error) {
	if qty <= 0 || qty > maxAddQuantity {
		return 0, models.ErrInvalidQuantity
	}

	products, err := cs.products.GetProductSizes(ctx, []int64{productSizeID})
	if err != nil {
		return 0, err
	}
	if _, ok := products[productSizeID]; !ok {
		return 0, models.ErrProductNotFound
	}

	return cs.carts.Add(ctx, session, productSizeID, qty)
}

// Lines returns cart lines priced from catalog, ordered by product size id.
// Items no longer in catalog are left out.
func (cs *CartService) Lines(ctx context.Context, session string) ([]models.CartLine, error) {
	quantities, err := cs.carts.Quantities(ctx, session)
	if err != nil {
		return nil, err
	}
	if len(quantities) == 0 {
		return []models.CartLine{}, nil
	}

	ids := make([]int64, 0, len(quantities))
	for id := range quantities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	products, err := cs.products.GetProductSizes(ctx, ids)
	if err != nil {
		return nil, err
	}

	lines := make([]models.CartLine, 0, len(ids))
	for _, id := range ids {
		ps, ok := products[id]
		if !ok {
			continue
		}
		lines = append(lines, models.CartLine{
			ProductSizeID: id,
			ProductName:   ps.ProductName,
			SizeName:      ps.SizeName,
			UnitPrice:     ps.Price,
			Quantity:      quantities[id],
		})
	}

	return lines, nil
}

// Clear empties cart, it is safe to call more than once
func (cs *CartService) Clear(ctx context.Context, session string) error {
	return cs.carts.Clear(ctx, session)
}
