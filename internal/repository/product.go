package repository

import (
	"context"
	sq "github.com/Masterminds/squirrel"
	"github.com/rookgm/storefront/internal/models"
	"github.com/rookgm/storefront/internal/repository/postgres"
)

// ProductRepository reads catalog prices
type ProductRepository struct {
	db *postgres.DB
}

// NewProductRepository creates new ProductRepository instance
func NewProductRepository(db *postgres.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// GetProductSizes returns product variants by id. Unknown ids are absent from result.
func (pr *ProductRepository) GetProductSizes(ctx context.Context, ids []int64) (map[int64]models.ProductSize, error) {
	result := make(map[int64]models.ProductSize, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	statement := pr.db.QueryBuilder.
		Select("ps.id", "p.id", "p.name", "s.name", "p.price", "ps.stock").
		From("product_sizes ps").
		Join("products p ON p.id = ps.product_id").
		Join("sizes s ON s.id = ps.size_id").
		Where(sq.Eq{"ps.id": ids})

	query, args, err := statement.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := pr.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		ps := models.ProductSize{}
		err = rows.Scan(&ps.ID, &ps.ProductID, &ps.ProductName, &ps.SizeName, &ps.Price, &ps.Stock)
		if err != nil {
			return nil, err
		}
		result[ps.ID] = ps
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
