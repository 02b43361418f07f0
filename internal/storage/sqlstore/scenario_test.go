package sqlstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/basket"
	"github.com/vladislavdragonenkov/storefront/internal/service/order"
	"github.com/vladislavdragonenkov/storefront/internal/storage/sqlstore"
)

// Сквозной сценарий оформления и правки заказа поверх SQL-хранилища.
func TestCheckoutAndEditScenario_SQLite(t *testing.T) {
	runCheckoutAndEditScenario(t, openSQLite(t))
}

func TestCheckoutAndEditScenario_Postgres(t *testing.T) {
	runCheckoutAndEditScenario(t, openPostgres(t))
}

func runCheckoutAndEditScenario(t *testing.T, store *sqlstore.Store) {
	ctx := context.Background()
	fixed := domain.ClockFunc(func() time.Time { return baseTime })

	shopMetrics := metrics.NewShopMetricsWithRegisterer(prometheus.NewRegistry())
	baskets := basket.NewManager(basket.Deps{
		Tx:       store,
		Baskets:  store.Baskets(),
		Products: store.Products(),
		Clock:    fixed,
		Metrics:  shopMetrics,
	})
	lifecycle := order.NewLifecycle(order.Deps{
		Tx:        store,
		Orders:    store.Orders(),
		Products:  store.Products(),
		Addresses: store.Addresses(),
		Discounts: store.Discounts(),
		Baskets:   baskets,
		Outbox:    store.Outbox(),
		Timeline:  store.Timeline(),
		Clock:     fixed,
		Metrics:   shopMetrics,
	})

	saveProduct(t, store, "P", "5.00", 10)
	require.NoError(t, store.Addresses().Create(ctx, domain.Address{
		ID: "addr-1", UserID: "u", IsDefault: true, CreatedAt: baseTime,
		ShippingAddress: domain.ShippingAddress{Recipient: "Ivan", Street: "Lenina 1", City: "Moscow", PostalCode: "101000", Country: "RU"},
	}))

	_, err := baskets.AddLine(ctx, "u", "P", 10)
	require.NoError(t, err)
	assertStock(t, store, "P", 0)

	_, err = baskets.AddLine(ctx, "u", "P", 1)
	details, ok := domain.AsInsufficientStock(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, int32(0), details.Available)

	created, err := lifecycle.CreateFromBasket(ctx, order.CheckoutInput{UserID: "u"})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(50).Equal(created.TotalAmount))
	assert.Equal(t, "Moscow", created.Address.City)
	assertStock(t, store, "P", 0)

	active, err := baskets.Get(ctx, "u")
	require.NoError(t, err)
	assert.Empty(t, active.Lines)

	edited, err := lifecycle.Edit(ctx, order.EditInput{OrderID: created.ID, Lines: map[string]int32{"P": 6}})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(30).Equal(edited.TotalAmount))
	assertStock(t, store, "P", 4)

	_, err = lifecycle.Edit(ctx, order.EditInput{OrderID: created.ID, Lines: map[string]int32{"P": 20}})
	details, ok = domain.AsInsufficientStock(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, domain.InsufficientStockError{ProductID: "P", Requested: 14, Available: 4}, *details)
	assertStock(t, store, "P", 4)

	reloaded, err := lifecycle.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, reloaded.Lines, 1)
	assert.Equal(t, int32(6), reloaded.Lines[0].Quantity)

	_, err = lifecycle.Transition(ctx, created.ID, domain.OrderStatusCancelled)
	require.NoError(t, err)
	assertStock(t, store, "P", 10)

	_, err = lifecycle.Edit(ctx, order.EditInput{OrderID: created.ID, Lines: map[string]int32{"P": 1}})
	assert.ErrorIs(t, err, domain.ErrOrderNotEditable)

	events, err := lifecycle.Timeline(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, domain.EventOrderCreated, events[0].Type)
	assert.Equal(t, domain.EventOrderStatusChanged, events[2].Type)

	pending, err := store.Outbox().PullPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, domain.EventOrderCreated, pending[0].EventType)
	assert.Equal(t, domain.EventOrderEdited, pending[1].EventType)
	assert.Equal(t, domain.EventOrderStatusChanged, pending[2].EventType)
}

func assertStock(t *testing.T, store *sqlstore.Store, productID string, want int32) {
	t.Helper()
	p, err := store.Products().Get(context.Background(), productID)
	require.NoError(t, err)
	assert.Equal(t, want, p.StockQuantity)
}
