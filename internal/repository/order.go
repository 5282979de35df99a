package repository

import (
	"context"
	"errors"
	"fmt"
	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/rookgm/storefront/internal/models"
	"github.com/rookgm/storefront/internal/repository/postgres"
	"time"
)

const orderColumns = `id, cart_session, total, currency, status, payment_provider, payment_reference, payment_id, created_at, updated_at`

const (
	insertOrderQuery = `
						INSERT INTO orders (cart_session, total, currency, status)
						VALUES ($1, $2, $3, $4)
						RETURNING ` + orderColumns + `
`
	insertOrderItemQuery = `
						INSERT INTO order_items (order_id, product_size_id, name, unit_price, quantity)
						VALUES ($1, $2, $3, $4, $5)
`
	selectOrderByIDQuery = `
						SELECT ` + orderColumns + ` FROM orders
						WHERE id = $1
`
	selectOrderForUpdateQuery = `
						SELECT ` + orderColumns + ` FROM orders
						WHERE id = $1
						FOR UPDATE
`
	selectOrderByReferenceQuery = `
						SELECT ` + orderColumns + ` FROM orders
						WHERE payment_provider = $1 AND payment_reference = $2
`
	updateOrderQuery = `
						UPDATE orders
						SET status = $1, payment_provider = $2, payment_reference = $3, payment_id = $4, updated_at = now()
						WHERE id = $5
						RETURNING updated_at
`
	markCheckedQuery = `
						UPDATE orders
						SET last_checked_at = now()
						WHERE id = $1
`
)

// OrderRepository implements OrderRepository interface
type OrderRepository struct {
	db *postgres.DB
}

// NewOrderRepository creates new OrderRepository instance
func NewOrderRepository(db *postgres.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// CreateOrder inserts order with its lines
func (or *OrderRepository) CreateOrder(ctx context.Context, order *models.Order, lines []models.CartLine) (*models.Order, error) {
	var created *models.Order

	err := pgx.BeginFunc(ctx, or.db, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, insertOrderQuery, order.CartSession, order.Total, order.Currency, order.Status.String())
		o, err := scanOrder(row)
		if err != nil {
			return err
		}

		for _, l := range lines {
			if _, err := tx.Exec(ctx, insertOrderItemQuery, o.ID, l.ProductSizeID, l.Name(), l.UnitPrice, l.Quantity); err != nil {
				return err
			}
		}

		created = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

// GetOrder returns order by id
func (or *OrderRepository) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	order, err := scanOrder(or.db.QueryRow(ctx, selectOrderByIDQuery, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrOrderNotFound
		}
		return nil, err
	}

	return order, nil
}

// GetOrderByReference returns order by checkout handle issued by provider
func (or *OrderRepository) GetOrderByReference(ctx context.Context, provider models.Provider, ref string) (*models.Order, error) {
	order, err := scanOrder(or.db.QueryRow(ctx, selectOrderByReferenceQuery, provider.String(), ref))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrOrderNotFound
		}
		return nil, err
	}

	return order, nil
}

// UpdateOrderLocked loads order under row lock and passes it to fn.
// If fn returns true, changes made to order are saved in the same transaction.
// Concurrent calls for the same order run one after another.
func (or *OrderRepository) UpdateOrderLocked(ctx context.Context, id int64, fn func(order *models.Order) (bool, error)) (*models.Order, error) {
	var result *models.Order

	err := pgx.BeginFunc(ctx, or.db, func(tx pgx.Tx) error {
		order, err := scanOrder(tx.QueryRow(ctx, selectOrderForUpdateQuery, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return models.ErrOrderNotFound
			}
			return err
		}

		save, err := fn(order)
		if err != nil {
			return err
		}

		if save {
			err = tx.QueryRow(ctx, updateOrderQuery,
				order.Status.String(),
				order.PaymentProvider.String(),
				order.PaymentReference,
				order.PaymentID,
				order.ID,
			).Scan(&order.UpdatedAt)
			if err != nil {
				return err
			}
		}

		result = order
		return nil
	})
	if err != nil {
		if errCode := or.db.ErrorCode(err); errCode == pgerrcode.UniqueViolation {
			return nil, fmt.Errorf("%w: %w", models.ErrReferenceMismatch, models.ErrConflictData)
		}
		return nil, err
	}

	return result, nil
}

// ListStaleProcessing returns orders waiting for payment since before.
// Never checked orders come first, then the ones checked longest ago.
func (or *OrderRepository) ListStaleProcessing(ctx context.Context, before time.Time, limit uint64) ([]models.Order, error) {
	statement := or.db.QueryBuilder.
		Select(orderColumns).
		From("orders").
		Where(sq.Eq{"status": models.OrderStatusProcessing.String()}).
		Where(sq.Lt{"updated_at": before}).
		OrderBy("last_checked_at ASC NULLS FIRST", "updated_at", "id").
		Limit(limit)

	query, args, err := statement.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := or.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []models.Order{}

	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}

// MarkChecked records that provider was asked about order, status and updated_at are kept
func (or *OrderRepository) MarkChecked(ctx context.Context, id int64) error {
	tag, err := or.db.Exec(ctx, markCheckedQuery, id)
	if err != nil {
		return fmt.Errorf("mark order %d checked: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrOrderNotFound
	}
	return nil
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	var (
		order    models.Order
		status   string
		provider string
	)

	err := row.Scan(
		&order.ID,
		&order.CartSession,
		&order.Total,
		&order.Currency,
		&status,
		&provider,
		&order.PaymentReference,
		&order.PaymentID,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if order.Status, err = models.ParseOrderStatus(status); err != nil {
		return nil, err
	}
	if order.PaymentProvider, err = models.ParseProvider(provider); err != nil {
		return nil, err
	}

	return &order, nil
}
