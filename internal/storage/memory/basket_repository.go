package memory

import (
	"context"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type basketRepository struct {
	store *Store
}

// NewBasketRepository создаёт репозиторий корзин поверх store.
func NewBasketRepository(store *Store) domain.BasketRepository {
	return store.Baskets()
}

func (r *basketRepository) GetActiveForUser(ctx context.Context, userID string) (domain.Basket, error) {
	defer r.store.acquire(ctx)()

	for _, basket := range r.store.st.baskets {
		if basket.UserID == userID && basket.Status == domain.BasketStatusActive {
			return basket.Clone(), nil
		}
	}
	return domain.Basket{}, domain.ErrBasketNotFound
}

func (r *basketRepository) Create(ctx context.Context, basket domain.Basket) error {
	defer r.store.acquire(ctx)()

	if _, exists := r.store.st.baskets[basket.ID]; exists {
		return domain.ErrBasketVersionConflict
	}
	if basket.Status == domain.BasketStatusActive {
		for _, other := range r.store.st.baskets {
			if other.UserID == basket.UserID && other.Status == domain.BasketStatusActive {
				return domain.ErrActiveBasketExists
			}
		}
	}
	r.store.st.baskets[basket.ID] = basket.Clone()
	return nil
}

// Save перезаписывает корзину целиком, проверяя версию (optimistic locking).
func (r *basketRepository) Save(ctx context.Context, basket domain.Basket) error {
	defer r.store.acquire(ctx)()

	current, ok := r.store.st.baskets[basket.ID]
	if !ok {
		return domain.ErrBasketNotFound
	}
	if current.Version != basket.Version {
		return domain.ErrBasketVersionConflict
	}
	basket.Version++
	r.store.st.baskets[basket.ID] = basket.Clone()
	return nil
}

var _ domain.BasketRepository = (*basketRepository)(nil)
