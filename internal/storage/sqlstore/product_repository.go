package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type productRepository struct {
	store *Store
}

type productRow struct {
	ID            string          `db:"id"`
	Name          string          `db:"name"`
	Price         decimal.Decimal `db:"price"`
	StockQuantity int32           `db:"stock_quantity"`
	DeletedAt     *time.Time      `db:"deleted_at"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

func (r productRow) toDomain() domain.Product {
	return domain.Product{
		ID:            r.ID,
		Name:          r.Name,
		Price:         r.Price,
		StockQuantity: r.StockQuantity,
		DeletedAt:     utcPtr(r.DeletedAt),
		CreatedAt:     utc(r.CreatedAt),
		UpdatedAt:     utc(r.UpdatedAt),
	}
}

const productColumns = `id, name, price, stock_quantity, deleted_at, created_at, updated_at`

// NewProductRepository создаёт SQL-реализацию ProductRepository.
func NewProductRepository(store *Store) domain.ProductRepository {
	return store.Products()
}

func (r *productRepository) Get(ctx context.Context, id string) (domain.Product, error) {
	product, err := r.load(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	if product.Deleted() {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

func (r *productRepository) Save(ctx context.Context, product domain.Product) error {
	if errs := product.Validate(); len(errs) > 0 {
		return errors.Join(errs...)
	}

	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	if product.UpdatedAt.IsZero() {
		product.UpdatedAt = now
	}

	_, err := r.store.ext(ctx).ExecContext(ctx, r.store.q(`
		INSERT INTO products (`+productColumns+`)
		VALUES (?,?,?,?,?,?,?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			price = excluded.price,
			stock_quantity = excluded.stock_quantity,
			deleted_at = excluded.deleted_at,
			updated_at = excluded.updated_at
	`),
		product.ID, product.Name, product.Price.StringFixed(2), product.StockQuantity,
		utcPtr(product.DeletedAt), product.CreatedAt.UTC(), product.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("save product %s: %w", product.ID, err)
	}
	return nil
}

// DecrementStock выполняет условный UPDATE: проверка и списание выполняются одной
// командой, поэтому параллельные резервы не уводят остаток в минус.
func (r *productRepository) DecrementStock(ctx context.Context, id string, qty int32) (domain.Product, error) {
	res, err := r.store.ext(ctx).ExecContext(ctx, r.store.q(`
		UPDATE products
		SET stock_quantity = stock_quantity - ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL AND stock_quantity >= ?
	`), qty, time.Now().UTC(), id, qty)
	if err != nil {
		return domain.Product{}, fmt.Errorf("decrement stock of %s: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Product{}, fmt.Errorf("rows affected: %w", err)
	}

	product, err := r.load(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	if affected == 0 {
		if product.Deleted() {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, &domain.InsufficientStockError{
			ProductID: id,
			Requested: qty,
			Available: product.StockQuantity,
		}
	}
	return product, nil
}

// IncrementStock возвращает единицы на склад, в том числе для мягко удалённого товара.
func (r *productRepository) IncrementStock(ctx context.Context, id string, qty int32) (domain.Product, error) {
	res, err := r.store.ext(ctx).ExecContext(ctx, r.store.q(`
		UPDATE products
		SET stock_quantity = stock_quantity + ?, updated_at = ?
		WHERE id = ?
	`), qty, time.Now().UTC(), id)
	if err != nil {
		return domain.Product{}, fmt.Errorf("increment stock of %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Product{}, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return r.load(ctx, id)
}

// load читает товар независимо от мягкого удаления.
func (r *productRepository) load(ctx context.Context, id string) (domain.Product, error) {
	var row productRow
	err := sqlx.GetContext(ctx, r.store.ext(ctx), &row, r.store.q(`
		SELECT `+productColumns+` FROM products WHERE id = ?
	`), id)
	if isNoRows(err) {
		return domain.Product{}, domain.ErrProductNotFound
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("select product %s: %w", id, err)
	}
	return row.toDomain(), nil
}

var _ domain.ProductRepository = (*productRepository)(nil)
