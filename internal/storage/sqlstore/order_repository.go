package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type orderRepository struct {
	store *Store
}

type orderRow struct {
	ID                 string          `db:"id"`
	UserID             string          `db:"user_id"`
	Status             string          `db:"status"`
	OrderDate          time.Time       `db:"order_date"`
	TotalAmount        decimal.Decimal `db:"total_amount"`
	Recipient          string          `db:"recipient"`
	Street             string          `db:"street"`
	City               string          `db:"city"`
	PostalCode         string          `db:"postal_code"`
	Country            string          `db:"country"`
	Phone              string          `db:"phone"`
	DiscountCode       string          `db:"discount_code"`
	DiscountPercentOff int32           `db:"discount_percent_off"`
	DeletedAt          *time.Time      `db:"deleted_at"`
	Version            int64           `db:"version"`
	UpdatedAt          time.Time       `db:"updated_at"`
}

type orderLineRow struct {
	ID           string          `db:"id"`
	ProductID    string          `db:"product_id"`
	Quantity     int32           `db:"quantity"`
	PricePerUnit decimal.Decimal `db:"price_per_unit"`
	Subtotal     decimal.Decimal `db:"subtotal"`
	CreatedAt    time.Time       `db:"created_at"`
}

const orderColumns = `id, user_id, status, order_date, total_amount,
	recipient, street, city, postal_code, country, phone,
	discount_code, discount_percent_off, deleted_at, version, updated_at`

func (r orderRow) toDomain() domain.Order {
	return domain.Order{
		ID:          r.ID,
		UserID:      r.UserID,
		Status:      domain.OrderStatus(r.Status),
		OrderDate:   utc(r.OrderDate),
		TotalAmount: r.TotalAmount,
		Address: domain.ShippingAddress{
			Recipient:  r.Recipient,
			Street:     r.Street,
			City:       r.City,
			PostalCode: r.PostalCode,
			Country:    r.Country,
			Phone:      r.Phone,
		},
		DiscountCode:       r.DiscountCode,
		DiscountPercentOff: r.DiscountPercentOff,
		DeletedAt:          utcPtr(r.DeletedAt),
		Version:            r.Version,
		UpdatedAt:          utc(r.UpdatedAt),
	}
}

// NewOrderRepository создаёт SQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return store.Orders()
}

func (r *orderRepository) Create(ctx context.Context, order domain.Order) error {
	return r.store.WithinTx(ctx, func(ctx context.Context) error {
		a := order.Address
		_, err := r.store.ext(ctx).ExecContext(ctx, r.store.q(`
			INSERT INTO orders (`+orderColumns+`)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		`),
			order.ID, order.UserID, string(order.Status), order.OrderDate.UTC(), order.TotalAmount.StringFixed(2),
			a.Recipient, a.Street, a.City, a.PostalCode, a.Country, a.Phone,
			order.DiscountCode, order.DiscountPercentOff, utcPtr(order.DeletedAt), order.Version, order.UpdatedAt.UTC(),
		)
		if isUniqueViolation(err) {
			return domain.ErrOrderVersionConflict
		}
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		return r.insertLines(ctx, order)
	})
}

func (r *orderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	ext := r.store.ext(ctx)

	var row orderRow
	err := sqlx.GetContext(ctx, ext, &row, r.store.q(`
		SELECT `+orderColumns+` FROM orders WHERE id = ?
	`)+r.store.forUpdate(ctx), id)
	if isNoRows(err) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}

	order := row.toDomain()
	if order.Lines, err = r.loadLines(ctx, ext, order.ID); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (r *orderRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Order, error) {
	ext := r.store.ext(ctx)

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE user_id = ? AND deleted_at IS NULL
		ORDER BY order_date DESC, id DESC
	`
	args := []any{userID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows []orderRow
	if err := sqlx.SelectContext(ctx, ext, &rows, r.store.q(query), args...); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	orders := make([]domain.Order, 0, len(rows))
	for _, row := range rows {
		order := row.toDomain()
		lines, err := r.loadLines(ctx, ext, order.ID)
		if err != nil {
			return nil, err
		}
		order.Lines = lines
		orders = append(orders, order)
	}
	return orders, nil
}

// Save перезаписывает заказ и его позиции с проверкой версии.
func (r *orderRepository) Save(ctx context.Context, order domain.Order) error {
	return r.store.WithinTx(ctx, func(ctx context.Context) error {
		ext := r.store.ext(ctx)
		a := order.Address

		res, err := ext.ExecContext(ctx, r.store.q(`
			UPDATE orders
			SET status = ?,
			    total_amount = ?,
			    recipient = ?, street = ?, city = ?, postal_code = ?, country = ?, phone = ?,
			    discount_code = ?,
			    discount_percent_off = ?,
			    deleted_at = ?,
			    version = version + 1,
			    updated_at = ?
			WHERE id = ? AND version = ?
		`),
			string(order.Status), order.TotalAmount.StringFixed(2),
			a.Recipient, a.Street, a.City, a.PostalCode, a.Country, a.Phone,
			order.DiscountCode, order.DiscountPercentOff, utcPtr(order.DeletedAt), order.UpdatedAt.UTC(),
			order.ID, order.Version,
		)
		if err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			var exists int
			err := sqlx.GetContext(ctx, ext, &exists, r.store.q(`SELECT 1 FROM orders WHERE id = ?`), order.ID)
			if isNoRows(err) {
				return domain.ErrOrderNotFound
			}
			if err != nil {
				return fmt.Errorf("check order exists: %w", err)
			}
			return domain.ErrOrderVersionConflict
		}

		if _, err := ext.ExecContext(ctx, r.store.q(`DELETE FROM order_lines WHERE order_id = ?`), order.ID); err != nil {
			return fmt.Errorf("delete order lines: %w", err)
		}
		return r.insertLines(ctx, order)
	})
}

func (r *orderRepository) insertLines(ctx context.Context, order domain.Order) error {
	for _, line := range order.Lines {
		if _, err := r.store.ext(ctx).ExecContext(ctx, r.store.q(`
			INSERT INTO order_lines (id, order_id, product_id, quantity, price_per_unit, subtotal, created_at)
			VALUES (?,?,?,?,?,?,?)
		`),
			line.ID, order.ID, line.ProductID, line.Quantity,
			line.PricePerUnit.StringFixed(2), line.Subtotal.StringFixed(2), line.CreatedAt.UTC(),
		); err != nil {
			return fmt.Errorf("insert order line %s: %w", line.ProductID, err)
		}
	}
	return nil
}

func (r *orderRepository) loadLines(ctx context.Context, ext sqlx.QueryerContext, orderID string) ([]domain.OrderLine, error) {
	var rows []orderLineRow
	if err := sqlx.SelectContext(ctx, ext, &rows, r.store.q(`
		SELECT id, product_id, quantity, price_per_unit, subtotal, created_at
		FROM order_lines
		WHERE order_id = ?
		ORDER BY created_at ASC, id ASC
	`), orderID); err != nil {
		return nil, fmt.Errorf("load order lines: %w", err)
	}

	lines := make([]domain.OrderLine, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, domain.OrderLine{
			ID:           row.ID,
			ProductID:    row.ProductID,
			Quantity:     row.Quantity,
			PricePerUnit: row.PricePerUnit,
			Subtotal:     row.Subtotal,
			CreatedAt:    utc(row.CreatedAt),
		})
	}
	return lines, nil
}

var _ domain.OrderRepository = (*orderRepository)(nil)
