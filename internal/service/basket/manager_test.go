package basket_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/basket"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

type fixture struct {
	store   *memory.Store
	manager *basket.Manager
}

func newFixture(t *testing.T, stocks map[string]int32) fixture {
	t.Helper()
	store := memory.NewStore()
	for id, qty := range stocks {
		require.NoError(t, store.Products().Save(context.Background(), domain.Product{
			ID: id, Name: id, Price: decimal.NewFromInt(5), StockQuantity: qty,
		}))
	}
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	manager := basket.NewManager(basket.Deps{
		Tx:       store,
		Baskets:  store.Baskets(),
		Products: store.Products(),
		Clock:    domain.ClockFunc(func() time.Time { return now }),
		Metrics:  metrics.NewShopMetricsWithRegisterer(prometheus.NewRegistry()),
	})
	return fixture{store: store, manager: manager}
}

func (f fixture) stock(t *testing.T, id string) int32 {
	t.Helper()
	p, err := f.store.Products().Get(context.Background(), id)
	require.NoError(t, err)
	return p.StockQuantity
}

func TestGetOrCreateActiveBasketIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	first, err := f.manager.GetOrCreateActiveBasket(ctx, "u-1")
	require.NoError(t, err)
	second, err := f.manager.GetOrCreateActiveBasket(ctx, "u-1")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, domain.BasketStatusActive, second.Status)
	assert.Empty(t, second.Lines)

	_, err = f.manager.GetOrCreateActiveBasket(ctx, "")
	assert.ErrorIs(t, err, domain.ErrUserRequired)
}

func TestGetOrCreateActiveBasketConcurrent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	ids := make(chan string, 20)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, err := f.manager.GetOrCreateActiveBasket(ctx, "u-1")
			if err == nil {
				ids <- b.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]struct{}{}
	for id := range ids {
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, 1, "exactly one active basket per user")
}

func TestAddLineReservesAndMerges(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]int32{"p": 10})

	b, err := f.manager.AddLine(ctx, "u-1", "p", 3)
	require.NoError(t, err)
	b, err = f.manager.AddLine(ctx, "u-1", "p", 7)
	require.NoError(t, err)

	require.Len(t, b.Lines, 1)
	assert.Equal(t, int32(10), b.Lines[0].Quantity)
	assert.Equal(t, int32(0), f.stock(t, "p"))

	_, err = f.manager.AddLine(ctx, "u-1", "p", 1)
	details, ok := domain.AsInsufficientStock(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, int32(0), details.Available)
	assert.Equal(t, int32(1), details.Requested)

	b, err = f.manager.Get(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, int32(10), b.Lines[0].Quantity, "failed add leaves basket unchanged")
}

func TestAddLineValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]int32{"p": 10})

	_, err := f.manager.AddLine(ctx, "u-1", "p", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	_, err = f.manager.AddLine(ctx, "u-1", "missing", 1)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	// Неудачная первая операция не должна оставлять пустую корзину.
	_, err = f.manager.Get(ctx, "u-1")
	assert.ErrorIs(t, err, domain.ErrBasketNotFound)
}

func TestSetLineQuantityAdjustsByDelta(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]int32{"p": 10})
	_, err := f.manager.AddLine(ctx, "u-1", "p", 4)
	require.NoError(t, err)

	b, err := f.manager.SetLineQuantity(ctx, "u-1", "p", 9)
	require.NoError(t, err)
	assert.Equal(t, int32(9), b.Lines[0].Quantity)
	assert.Equal(t, int32(1), f.stock(t, "p"))

	b, err = f.manager.SetLineQuantity(ctx, "u-1", "p", 2)
	require.NoError(t, err)
	assert.Equal(t, int32(2), b.Lines[0].Quantity)
	assert.Equal(t, int32(8), f.stock(t, "p"))

	_, err = f.manager.SetLineQuantity(ctx, "u-1", "p", 11)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, int32(8), f.stock(t, "p"))
}

func TestSetLineQuantitySameValueSkipsLedger(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]int32{"p": 10})
	_, err := f.manager.AddLine(ctx, "u-1", "p", 4)
	require.NoError(t, err)

	// Товар снят с продажи: Get его больше не находит.
	p, err := f.store.Products().Get(ctx, "p")
	require.NoError(t, err)
	deleted := time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC)
	p.DeletedAt = &deleted
	require.NoError(t, f.store.Products().Save(ctx, p))

	b, err := f.manager.SetLineQuantity(ctx, "u-1", "p", 4)
	require.NoError(t, err)
	require.Len(t, b.Lines, 1)
	assert.Equal(t, int32(4), b.Lines[0].Quantity)

	b, err = f.manager.RemoveLine(ctx, "u-1", "p")
	require.NoError(t, err)
	assert.Empty(t, b.Lines)
}

func TestSetLineQuantityErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]int32{"p": 10, "q": 1})

	_, err := f.manager.SetLineQuantity(ctx, "u-1", "p", 2)
	assert.ErrorIs(t, err, domain.ErrLineNotFound, "no basket yet")

	_, err = f.manager.AddLine(ctx, "u-1", "p", 1)
	require.NoError(t, err)

	_, err = f.manager.SetLineQuantity(ctx, "u-1", "q", 1)
	assert.ErrorIs(t, err, domain.ErrLineNotFound)
	_, err = f.manager.SetLineQuantity(ctx, "u-1", "p", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
	_, err = f.manager.SetLineQuantity(ctx, "u-1", "p", -1)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestRemoveLineReleasesFullQuantity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]int32{"p": 10, "q": 5})
	_, err := f.manager.AddLine(ctx, "u-1", "p", 6)
	require.NoError(t, err)
	_, err = f.manager.AddLine(ctx, "u-1", "q", 2)
	require.NoError(t, err)

	b, err := f.manager.RemoveLine(ctx, "u-1", "p")
	require.NoError(t, err)
	require.Len(t, b.Lines, 1)
	assert.Equal(t, "q", b.Lines[0].ProductID)
	assert.Equal(t, int32(10), f.stock(t, "p"))

	_, err = f.manager.RemoveLine(ctx, "u-1", "p")
	assert.ErrorIs(t, err, domain.ErrLineNotFound)
}

func TestClearAndAbandon(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]int32{"p": 10, "q": 5})
	_, err := f.manager.AddLine(ctx, "u-1", "p", 6)
	require.NoError(t, err)
	_, err = f.manager.AddLine(ctx, "u-1", "q", 5)
	require.NoError(t, err)

	b, err := f.manager.Clear(ctx, "u-1")
	require.NoError(t, err)
	assert.Empty(t, b.Lines)
	assert.Equal(t, int32(10), f.stock(t, "p"))
	assert.Equal(t, int32(5), f.stock(t, "q"))

	_, err = f.manager.AddLine(ctx, "u-1", "p", 2)
	require.NoError(t, err)
	abandoned, err := f.manager.Abandon(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, domain.BasketStatusAbandoned, abandoned.Status)
	assert.Equal(t, int32(10), f.stock(t, "p"))

	fresh, err := f.manager.GetOrCreateActiveBasket(ctx, "u-1")
	require.NoError(t, err)
	assert.NotEqual(t, abandoned.ID, fresh.ID)

	_, err = f.manager.Clear(ctx, "u-2")
	assert.ErrorIs(t, err, domain.ErrBasketNotFound)
}

func TestTakeForCheckout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]int32{"p": 10})

	_, _, err := f.manager.TakeForCheckout(ctx, "u-1")
	assert.ErrorIs(t, err, domain.ErrEmptyBasket, "no basket")

	_, err = f.manager.GetOrCreateActiveBasket(ctx, "u-1")
	require.NoError(t, err)
	_, _, err = f.manager.TakeForCheckout(ctx, "u-1")
	assert.ErrorIs(t, err, domain.ErrEmptyBasket, "basket without lines")

	_, err = f.manager.AddLine(ctx, "u-1", "p", 10)
	require.NoError(t, err)

	b, lines, err := f.manager.TakeForCheckout(ctx, "u-1")
	require.NoError(t, err)
	assert.Empty(t, b.Lines)
	require.Len(t, lines, 1)
	assert.Equal(t, int32(10), lines[0].Quantity)
	assert.Equal(t, int32(0), f.stock(t, "p"), "hand-over keeps the reservation")
}

func TestTakeForCheckoutRollsBackWithOuterTx(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]int32{"p": 10})
	_, err := f.manager.AddLine(ctx, "u-1", "p", 3)
	require.NoError(t, err)

	boom := errors.New("order insert failed")
	err = f.store.WithinTx(ctx, func(ctx context.Context) error {
		if _, _, err := f.manager.TakeForCheckout(ctx, "u-1"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	b, err := f.manager.Get(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, b.Lines, 1)
	assert.Equal(t, int32(3), b.Lines[0].Quantity)
}

// Инвариант склада: остаток + всё, что лежит в корзинах, равно исходному остатку.
func TestStockConservationAcrossOperations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]int32{"p": 20})

	steps := []func() error{
		func() error { _, err := f.manager.AddLine(ctx, "u-1", "p", 5); return err },
		func() error { _, err := f.manager.AddLine(ctx, "u-2", "p", 7); return err },
		func() error { _, err := f.manager.SetLineQuantity(ctx, "u-1", "p", 2); return err },
		func() error { _, err := f.manager.AddLine(ctx, "u-1", "p", 50); return err },
		func() error { _, err := f.manager.RemoveLine(ctx, "u-2", "p"); return err },
		func() error { _, err := f.manager.AddLine(ctx, "u-2", "p", 4); return err },
	}
	for _, step := range steps {
		_ = step()

		var reserved int32
		for _, user := range []string{"u-1", "u-2"} {
			if b, err := f.manager.Get(ctx, user); err == nil {
				line, _ := b.Line("p")
				reserved += line.Quantity
			}
		}
		assert.Equal(t, int32(20), f.stock(t, "p")+reserved)
	}
}
