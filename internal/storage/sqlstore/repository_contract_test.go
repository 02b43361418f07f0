package sqlstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/sqlstore"
)

var baseTime = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func TestRepositories_SQLite(t *testing.T) {
	runRepositoryContract(t, openSQLite)
}

func TestRepositories_Postgres(t *testing.T) {
	runRepositoryContract(t, openPostgres)
}

// runRepositoryContract проверяет поведение, общее для обоих диалектов.
func runRepositoryContract(t *testing.T, open func(t *testing.T) *sqlstore.Store) {
	cases := []struct {
		name string
		run  func(t *testing.T, store *sqlstore.Store)
	}{
		{"products and stock", testProductsAndStock},
		{"transaction rollback and nesting", testTransactions},
		{"baskets", testBaskets},
		{"orders", testOrders},
		{"addresses and discounts", testCatalog},
		{"outbox", testOutbox},
		{"timeline", testTimeline},
		{"idempotency", testIdempotency},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.run(t, open(t))
		})
	}
}

func saveProduct(t *testing.T, store *sqlstore.Store, id, price string, stock int32) {
	t.Helper()
	require.NoError(t, store.Products().Save(context.Background(), domain.Product{
		ID: id, Name: "product " + id, Price: decimal.RequireFromString(price), StockQuantity: stock,
		CreatedAt: baseTime, UpdatedAt: baseTime,
	}))
}

func testProductsAndStock(t *testing.T, store *sqlstore.Store) {
	ctx := context.Background()
	products := store.Products()
	saveProduct(t, store, "P", "5.00", 10)

	p, err := products.Get(ctx, "P")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("5").Equal(p.Price))
	assert.True(t, baseTime.Equal(p.CreatedAt))

	p, err = products.DecrementStock(ctx, "P", 10)
	require.NoError(t, err)
	assert.Equal(t, int32(0), p.StockQuantity)

	_, err = products.DecrementStock(ctx, "P", 1)
	details, ok := domain.AsInsufficientStock(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, domain.InsufficientStockError{ProductID: "P", Requested: 1, Available: 0}, *details)

	p, err = products.IncrementStock(ctx, "P", 4)
	require.NoError(t, err)
	assert.Equal(t, int32(4), p.StockQuantity)

	_, err = products.DecrementStock(ctx, "missing", 1)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
	_, err = products.IncrementStock(ctx, "missing", 1)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	// Мягко удалённый товар скрыт и не резервируется, но принимает возвраты.
	deleted := baseTime.Add(time.Hour)
	p.DeletedAt = &deleted
	require.NoError(t, products.Save(ctx, p))
	_, err = products.Get(ctx, "P")
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
	_, err = products.DecrementStock(ctx, "P", 1)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
	p, err = products.IncrementStock(ctx, "P", 1)
	require.NoError(t, err)
	assert.Equal(t, int32(5), p.StockQuantity)

	err = products.Save(ctx, domain.Product{ID: "bad", Price: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, domain.ErrPriceInvalid)
	err = products.Save(ctx, domain.Product{ID: "bad", Price: decimal.RequireFromString("0.999")})
	assert.ErrorIs(t, err, domain.ErrPriceInvalid)
}

func testTransactions(t *testing.T, store *sqlstore.Store) {
	ctx := context.Background()
	saveProduct(t, store, "P", "1.00", 5)

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := store.Products().DecrementStock(ctx, "P", 3); err != nil {
			return err
		}
		// Вложенная транзакция присоединяется к внешней.
		return store.WithinTx(ctx, func(ctx context.Context) error {
			if _, err := store.Products().DecrementStock(ctx, "P", 2); err != nil {
				return err
			}
			return boom
		})
	})
	require.ErrorIs(t, err, boom)

	p, err := store.Products().Get(ctx, "P")
	require.NoError(t, err)
	assert.Equal(t, int32(5), p.StockQuantity, "whole transaction rolled back")

	require.NoError(t, store.WithinTx(ctx, func(ctx context.Context) error {
		_, err := store.Products().DecrementStock(ctx, "P", 2)
		return err
	}))
	p, err = store.Products().Get(ctx, "P")
	require.NoError(t, err)
	assert.Equal(t, int32(3), p.StockQuantity)
}

func testBaskets(t *testing.T, store *sqlstore.Store) {
	ctx := context.Background()
	baskets := store.Baskets()
	saveProduct(t, store, "P", "1.00", 5)
	saveProduct(t, store, "Q", "1.00", 5)

	_, err := baskets.GetActiveForUser(ctx, "u")
	assert.ErrorIs(t, err, domain.ErrBasketNotFound)

	basket := domain.Basket{ID: "b-1", UserID: "u", Status: domain.BasketStatusActive, CreatedAt: baseTime, UpdatedAt: baseTime}
	require.NoError(t, baskets.Create(ctx, basket))

	err = baskets.Create(ctx, domain.Basket{ID: "b-2", UserID: "u", Status: domain.BasketStatusActive, CreatedAt: baseTime, UpdatedAt: baseTime})
	assert.ErrorIs(t, err, domain.ErrActiveBasketExists)

	basket.SetLine("P", 2, baseTime)
	basket.SetLine("Q", 1, baseTime.Add(time.Second))
	require.NoError(t, baskets.Save(ctx, basket))

	loaded, err := baskets.GetActiveForUser(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, int64(1), loaded.Version)
	require.Len(t, loaded.Lines, 2)
	assert.Equal(t, "P", loaded.Lines[0].ProductID)
	assert.Equal(t, int32(2), loaded.Lines[0].Quantity)

	// Устаревшая версия отклоняется.
	assert.ErrorIs(t, baskets.Save(ctx, basket), domain.ErrBasketVersionConflict)

	loaded.RemoveLine("P")
	loaded.Status = domain.BasketStatusAbandoned
	require.NoError(t, baskets.Save(ctx, loaded))
	_, err = baskets.GetActiveForUser(ctx, "u")
	assert.ErrorIs(t, err, domain.ErrBasketNotFound)

	// После закрытия корзины можно создать новую активную.
	require.NoError(t, baskets.Create(ctx, domain.Basket{ID: "b-3", UserID: "u", Status: domain.BasketStatusActive, CreatedAt: baseTime, UpdatedAt: baseTime}))

	err = baskets.Save(ctx, domain.Basket{ID: "missing", UserID: "u", Status: domain.BasketStatusActive})
	assert.ErrorIs(t, err, domain.ErrBasketNotFound)
}

func newOrder(id, userID string, at time.Time) domain.Order {
	order := domain.Order{
		ID:        id,
		UserID:    userID,
		Status:    domain.OrderStatusNew,
		OrderDate: at,
		Address: domain.ShippingAddress{
			Recipient: "Ivan", Street: "Lenina 1", City: "Moscow", PostalCode: "101000", Country: "RU",
		},
		UpdatedAt: at,
		Lines: []domain.OrderLine{
			domain.NewOrderLine(id+"-l1", "P", 2, decimal.RequireFromString("5.00"), at),
		},
	}
	order.RecalculateTotal()
	return order
}

func testOrders(t *testing.T, store *sqlstore.Store) {
	ctx := context.Background()
	orders := store.Orders()
	saveProduct(t, store, "P", "5.00", 10)
	saveProduct(t, store, "Q", "2.50", 10)

	first := newOrder("o-1", "u", baseTime)
	first.DiscountCode = "SPRING10"
	first.DiscountPercentOff = 10
	require.NoError(t, orders.Create(ctx, first))
	assert.ErrorIs(t, orders.Create(ctx, first), domain.ErrOrderVersionConflict)
	require.NoError(t, orders.Create(ctx, newOrder("o-2", "u", baseTime.Add(time.Minute))))
	require.NoError(t, orders.Create(ctx, newOrder("o-3", "other", baseTime)))

	got, err := orders.Get(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, "u", got.UserID)
	assert.Equal(t, "Moscow", got.Address.City)
	assert.Equal(t, "SPRING10", got.DiscountCode)
	assert.True(t, decimal.RequireFromString("10.00").Equal(got.TotalAmount))
	require.Len(t, got.Lines, 1)
	assert.True(t, decimal.RequireFromString("5.00").Equal(got.Lines[0].PricePerUnit))

	got.Lines[0].Quantity = 3
	got.Lines = append(got.Lines, domain.NewOrderLine("o-1-l2", "Q", 1, decimal.RequireFromString("2.50"), baseTime.Add(time.Second)))
	got.RecalculateTotal()
	got.Status = domain.OrderStatusProcessing
	require.NoError(t, orders.Save(ctx, got))
	assert.ErrorIs(t, orders.Save(ctx, got), domain.ErrOrderVersionConflict)

	reloaded, err := orders.Get(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), reloaded.Version)
	assert.Equal(t, domain.OrderStatusProcessing, reloaded.Status)
	assert.True(t, decimal.RequireFromString("17.50").Equal(reloaded.TotalAmount))
	require.Len(t, reloaded.Lines, 2)

	list, err := orders.ListByUser(ctx, "u", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "o-2", list[0].ID)
	assert.Equal(t, "o-1", list[1].ID)

	deletedAt := baseTime.Add(time.Hour)
	reloaded.DeletedAt = &deletedAt
	require.NoError(t, orders.Save(ctx, reloaded))
	list, err = orders.ListByUser(ctx, "u", 0)
	require.NoError(t, err)
	require.Len(t, list, 1)

	deleted, err := orders.Get(ctx, "o-1")
	require.NoError(t, err, "deleted orders stay readable by id")
	assert.True(t, deleted.Deleted())

	_, err = orders.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	assert.ErrorIs(t, orders.Save(ctx, newOrder("missing", "u", baseTime)), domain.ErrOrderNotFound)
}

func testCatalog(t *testing.T, store *sqlstore.Store) {
	ctx := context.Background()
	addresses := store.Addresses()

	_, err := addresses.DefaultForUser(ctx, "u")
	assert.ErrorIs(t, err, domain.ErrAddressNotFound)

	shipping := domain.ShippingAddress{Recipient: "r", Street: "s", City: "c", PostalCode: "p", Country: "RU"}
	require.NoError(t, addresses.Create(ctx, domain.Address{ID: "a-1", UserID: "u", ShippingAddress: shipping, CreatedAt: baseTime}))
	require.NoError(t, addresses.Create(ctx, domain.Address{ID: "a-2", UserID: "u", ShippingAddress: shipping, CreatedAt: baseTime.Add(time.Minute)}))

	def, err := addresses.DefaultForUser(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, "a-1", def.ID, "earliest address without explicit default")

	require.NoError(t, addresses.Create(ctx, domain.Address{ID: "a-3", UserID: "u", IsDefault: true, ShippingAddress: shipping, CreatedAt: baseTime.Add(2 * time.Minute)}))
	def, err = addresses.DefaultForUser(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, "a-3", def.ID)

	list, err := addresses.ListByUser(ctx, "u")
	require.NoError(t, err)
	assert.Len(t, list, 3)

	assert.ErrorIs(t, addresses.Create(ctx, domain.Address{ID: "a-4", UserID: "u"}), domain.ErrAddressInvalid)

	discounts := store.Discounts()
	expires := baseTime.Add(24 * time.Hour)
	require.NoError(t, discounts.Save(ctx, domain.DiscountCode{Code: " spring10 ", PercentOff: 10, ExpiresAt: &expires}))
	code, err := discounts.Get(ctx, "Spring10")
	require.NoError(t, err)
	assert.Equal(t, "SPRING10", code.Code)
	assert.Equal(t, int32(10), code.PercentOff)
	require.NotNil(t, code.ExpiresAt)
	assert.True(t, expires.Equal(*code.ExpiresAt))

	_, err = discounts.Get(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrDiscountCodeNotFound)
	assert.ErrorIs(t, discounts.Save(ctx, domain.DiscountCode{Code: "X", PercentOff: 0}), domain.ErrDiscountPercentInvalid)
}

func testOutbox(t *testing.T, store *sqlstore.Store) {
	ctx := context.Background()
	outbox := store.Outbox()

	stats, err := outbox.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.PendingCount)

	var ids []string
	for i, eventType := range []string{domain.EventOrderCreated, domain.EventOrderEdited, domain.EventOrderDeleted} {
		msg, err := outbox.Enqueue(ctx, domain.OutboxMessage{
			AggregateType: "order",
			AggregateID:   "o-1",
			EventType:     eventType,
			Payload:       []byte(`{"n":1}`),
			CreatedAt:     baseTime.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
		ids = append(ids, msg.ID)
	}

	// Откат транзакции уносит и событие.
	_ = store.WithinTx(ctx, func(ctx context.Context) error {
		_, err := outbox.Enqueue(ctx, domain.OutboxMessage{AggregateType: "order", AggregateID: "o-2", EventType: "x", Payload: []byte(`{}`)})
		require.NoError(t, err)
		return errors.New("rollback")
	})

	pending, err := outbox.PullPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, ids, []string{pending[0].ID, pending[1].ID, pending[2].ID})
	assert.JSONEq(t, `{"n":1}`, string(pending[0].Payload))

	stats, err = outbox.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.PendingCount)
	assert.True(t, baseTime.Equal(stats.OldestPendingAt))

	require.NoError(t, outbox.MarkSent(ctx, ids[0]))
	require.NoError(t, outbox.MarkFailed(ctx, ids[1]))
	assert.ErrorIs(t, outbox.MarkSent(ctx, "missing"), domain.ErrOutboxPublish)

	pending, err = outbox.PullPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, ids[2], pending[0].ID)
}

func testTimeline(t *testing.T, store *sqlstore.Store) {
	ctx := context.Background()
	timeline := store.Timeline()

	require.NoError(t, timeline.Append(ctx, domain.TimelineEvent{OrderID: "o-1", Type: domain.EventOrderCreated, Occurred: baseTime}))
	require.NoError(t, timeline.Append(ctx, domain.TimelineEvent{OrderID: "o-1", Type: domain.EventOrderStatusChanged, Reason: "processing", Occurred: baseTime.Add(time.Second)}))
	require.NoError(t, timeline.Append(ctx, domain.TimelineEvent{OrderID: "o-2", Type: domain.EventOrderCreated, Occurred: baseTime}))

	events, err := timeline.List(ctx, "o-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventOrderCreated, events[0].Type)
	assert.Equal(t, "processing", events[1].Reason)
	assert.True(t, baseTime.Equal(events[0].Occurred))
}

func testIdempotency(t *testing.T, store *sqlstore.Store) {
	ctx := context.Background()
	repo := store.Idempotency()
	ttl := time.Now().UTC().Add(time.Hour)

	_, err := repo.CreateProcessing(ctx, "", "h", ttl)
	assert.ErrorIs(t, err, domain.ErrIdempotencyKeyRequired)
	_, err = repo.CreateProcessing(ctx, "k", " ", ttl)
	assert.ErrorIs(t, err, domain.ErrIdempotencyRequestHashRequired)

	record, err := repo.CreateProcessing(ctx, "k-1", "hash-1", ttl)
	require.NoError(t, err)
	assert.Equal(t, domain.IdempotencyStatusProcessing, record.Status)

	_, err = repo.CreateProcessing(ctx, "k-1", "hash-1", ttl)
	assert.ErrorIs(t, err, domain.ErrIdempotencyKeyAlreadyExists)
	_, err = repo.CreateProcessing(ctx, "k-1", "hash-2", ttl)
	assert.ErrorIs(t, err, domain.ErrIdempotencyHashMismatch)

	require.NoError(t, repo.MarkDone(ctx, "k-1", []byte(`{"ok":true}`), 0))
	record, err = repo.Get(ctx, "k-1")
	require.NoError(t, err)
	assert.Equal(t, domain.IdempotencyStatusDone, record.Status)
	assert.Equal(t, `{"ok":true}`, string(record.ResponseBody))

	require.NoError(t, func() error {
		_, err := repo.CreateProcessing(ctx, "k-2", "hash", time.Now().UTC().Add(-time.Minute))
		return err
	}())
	require.NoError(t, repo.MarkFailed(ctx, "k-2", []byte(`{"code":9}`), 9))
	record, err = repo.Get(ctx, "k-2")
	require.NoError(t, err)
	assert.Equal(t, 9, record.StatusCode)

	assert.ErrorIs(t, repo.MarkDone(ctx, "missing", nil, 0), domain.ErrIdempotencyKeyNotFound)
	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrIdempotencyKeyNotFound)

	deleted, err := repo.DeleteExpired(ctx, time.Now().UTC(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	_, err = repo.Get(ctx, "k-2")
	assert.ErrorIs(t, err, domain.ErrIdempotencyKeyNotFound)
	_, err = repo.Get(ctx, "k-1")
	assert.NoError(t, err)
}
