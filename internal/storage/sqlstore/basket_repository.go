package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type basketRepository struct {
	store *Store
}

type basketRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Status    string    `db:"status"`
	Version   int64     `db:"version"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type basketLineRow struct {
	ProductID string    `db:"product_id"`
	Quantity  int32     `db:"quantity"`
	AddedAt   time.Time `db:"added_at"`
}

// NewBasketRepository создаёт SQL-реализацию BasketRepository.
func NewBasketRepository(store *Store) domain.BasketRepository {
	return store.Baskets()
}

// GetActiveForUser внутри транзакции PostgreSQL блокирует строку корзины,
// поэтому параллельные правки одной корзины выполняются по очереди.
func (r *basketRepository) GetActiveForUser(ctx context.Context, userID string) (domain.Basket, error) {
	ext := r.store.ext(ctx)

	var row basketRow
	err := sqlx.GetContext(ctx, ext, &row, r.store.q(`
		SELECT id, user_id, status, version, created_at, updated_at
		FROM baskets
		WHERE user_id = ? AND status = 'active'
	`)+r.store.forUpdate(ctx), userID)
	if isNoRows(err) {
		return domain.Basket{}, domain.ErrBasketNotFound
	}
	if err != nil {
		return domain.Basket{}, fmt.Errorf("select active basket: %w", err)
	}

	var lines []basketLineRow
	if err := sqlx.SelectContext(ctx, ext, &lines, r.store.q(`
		SELECT product_id, quantity, added_at
		FROM basket_lines
		WHERE basket_id = ?
		ORDER BY added_at ASC, product_id ASC
	`), row.ID); err != nil {
		return domain.Basket{}, fmt.Errorf("select basket lines: %w", err)
	}

	basket := domain.Basket{
		ID:        row.ID,
		UserID:    row.UserID,
		Status:    domain.BasketStatus(row.Status),
		Version:   row.Version,
		CreatedAt: utc(row.CreatedAt),
		UpdatedAt: utc(row.UpdatedAt),
	}
	for _, line := range lines {
		basket.Lines = append(basket.Lines, domain.BasketLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			AddedAt:   utc(line.AddedAt),
		})
	}
	return basket, nil
}

// Create полагается на частичный уникальный индекс по активной корзине:
// проигравший гонку получает ErrActiveBasketExists.
func (r *basketRepository) Create(ctx context.Context, basket domain.Basket) error {
	return r.store.WithinTx(ctx, func(ctx context.Context) error {
		_, err := r.store.ext(ctx).ExecContext(ctx, r.store.q(`
			INSERT INTO baskets (id, user_id, status, version, created_at, updated_at)
			VALUES (?,?,?,?,?,?)
		`), basket.ID, basket.UserID, string(basket.Status), basket.Version, basket.CreatedAt.UTC(), basket.UpdatedAt.UTC())
		if isUniqueViolation(err) {
			return domain.ErrActiveBasketExists
		}
		if err != nil {
			return fmt.Errorf("insert basket: %w", err)
		}
		return r.insertLines(ctx, basket)
	})
}

// Save перезаписывает корзину и позиции, проверяя версию (optimistic locking).
func (r *basketRepository) Save(ctx context.Context, basket domain.Basket) error {
	return r.store.WithinTx(ctx, func(ctx context.Context) error {
		ext := r.store.ext(ctx)

		res, err := ext.ExecContext(ctx, r.store.q(`
			UPDATE baskets
			SET status = ?, version = version + 1, updated_at = ?
			WHERE id = ? AND version = ?
		`), string(basket.Status), basket.UpdatedAt.UTC(), basket.ID, basket.Version)
		if err != nil {
			return fmt.Errorf("update basket: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			var exists int
			err := sqlx.GetContext(ctx, ext, &exists, r.store.q(`SELECT 1 FROM baskets WHERE id = ?`), basket.ID)
			if isNoRows(err) {
				return domain.ErrBasketNotFound
			}
			if err != nil {
				return fmt.Errorf("check basket exists: %w", err)
			}
			return domain.ErrBasketVersionConflict
		}

		if _, err := ext.ExecContext(ctx, r.store.q(`DELETE FROM basket_lines WHERE basket_id = ?`), basket.ID); err != nil {
			return fmt.Errorf("delete basket lines: %w", err)
		}
		return r.insertLines(ctx, basket)
	})
}

func (r *basketRepository) insertLines(ctx context.Context, basket domain.Basket) error {
	for _, line := range basket.Lines {
		if _, err := r.store.ext(ctx).ExecContext(ctx, r.store.q(`
			INSERT INTO basket_lines (basket_id, product_id, quantity, added_at)
			VALUES (?,?,?,?)
		`), basket.ID, line.ProductID, line.Quantity, line.AddedAt.UTC()); err != nil {
			return fmt.Errorf("insert basket line %s: %w", line.ProductID, err)
		}
	}
	return nil
}

var _ domain.BasketRepository = (*basketRepository)(nil)
