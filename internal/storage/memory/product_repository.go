package memory

import (
	"context"
	"errors"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type productRepository struct {
	store *Store
}

// NewProductRepository создаёт репозиторий товаров поверх store.
func NewProductRepository(store *Store) domain.ProductRepository {
	return store.Products()
}

func (r *productRepository) Get(ctx context.Context, id string) (domain.Product, error) {
	defer r.store.acquire(ctx)()

	product, ok := r.store.st.products[id]
	if !ok || product.Deleted() {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return cloneProduct(product), nil
}

func (r *productRepository) Save(ctx context.Context, product domain.Product) error {
	if errs := product.Validate(); len(errs) > 0 {
		return errors.Join(errs...)
	}

	defer r.store.acquire(ctx)()

	if current, ok := r.store.st.products[product.ID]; ok && product.CreatedAt.IsZero() {
		product.CreatedAt = current.CreatedAt
	}
	r.store.st.products[product.ID] = cloneProduct(product)
	return nil
}

// DecrementStock проверяет и списывает остаток под одним захватом mutex,
// что эквивалентно условному UPDATE ... WHERE stock_quantity >= qty.
func (r *productRepository) DecrementStock(ctx context.Context, id string, qty int32) (domain.Product, error) {
	defer r.store.acquire(ctx)()

	product, ok := r.store.st.products[id]
	if !ok || product.Deleted() {
		return domain.Product{}, domain.ErrProductNotFound
	}
	if product.StockQuantity < qty {
		return domain.Product{}, &domain.InsufficientStockError{
			ProductID: id,
			Requested: qty,
			Available: product.StockQuantity,
		}
	}
	product.StockQuantity -= qty
	r.store.st.products[id] = product
	return cloneProduct(product), nil
}

// IncrementStock возвращает единицы на склад. Мягко удалённый товар
// тоже принимает возврат: резервы по нему остаются в заказах.
func (r *productRepository) IncrementStock(ctx context.Context, id string, qty int32) (domain.Product, error) {
	defer r.store.acquire(ctx)()

	product, ok := r.store.st.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	product.StockQuantity += qty
	r.store.st.products[id] = product
	return cloneProduct(product), nil
}

func cloneProduct(p domain.Product) domain.Product {
	if p.DeletedAt != nil {
		ts := *p.DeletedAt
		p.DeletedAt = &ts
	}
	return p
}

var _ domain.ProductRepository = (*productRepository)(nil)
