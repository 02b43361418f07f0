// Package acceptance прогоняет сценарии витрины из features/ поверх ядра
// с хранилищем в памяти и SQLite.
package acceptance

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/cucumber/godog"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/seed"
	"github.com/vladislavdragonenkov/storefront/internal/service/basket"
	"github.com/vladislavdragonenkov/storefront/internal/service/order"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/sqlstore"
)

// store описывает подмножество хранилищ, нужное сценариям.
type store interface {
	domain.TxManager
	Products() domain.ProductRepository
	Baskets() domain.BasketRepository
	Orders() domain.OrderRepository
	Addresses() domain.AddressRepository
	Discounts() domain.DiscountCodeRepository
	Outbox() domain.OutboxRepository
}

// memoryStore приводит Outbox() хранилища в памяти к интерфейсу store.
type memoryStore struct{ *memory.Store }

func (m memoryStore) Outbox() domain.OutboxRepository { return m.Store.Outbox() }

// openStore открывает чистое хранилище на каждый сценарий.
type openStore func() (store, func(), error)

type storefrontContext struct {
	open    openStore
	store   store
	closeFn func()

	baskets *basket.Manager
	orders  *order.Lifecycle

	order       domain.Order
	sameBaskets [2]domain.Basket
	lastErr     error
}

func (c *storefrontContext) reset(context.Context) error {
	if c.closeFn != nil {
		c.closeFn()
	}
	st, closeFn, err := c.open()
	if err != nil {
		return err
	}
	c.store, c.closeFn = st, closeFn

	logger := log.New()
	logger.SetLevel(log.WarnLevel)
	entry := logger.WithField("component", "acceptance")

	c.baskets = basket.NewManager(basket.Deps{
		Tx:       st,
		Baskets:  st.Baskets(),
		Products: st.Products(),
		Logger:   entry,
	})
	c.orders = order.NewLifecycle(order.Deps{
		Tx:        st,
		Orders:    st.Orders(),
		Products:  st.Products(),
		Addresses: st.Addresses(),
		Discounts: st.Discounts(),
		Baskets:   c.baskets,
		Outbox:    st.Outbox(),
		Logger:    entry,
	})
	c.order = domain.Order{}
	c.lastErr = nil
	return nil
}

func (c *storefrontContext) productPricedWithStock(ctx context.Context, id, price string, stock int) error {
	_, err := seed.Apply(ctx, c.store, &seed.File{
		Products: []seed.Product{{ID: id, Name: id, Price: price, Stock: int32(stock)}},
	}, domain.SystemClock{}, nil)
	return err
}

func (c *storefrontContext) userHasAddress(ctx context.Context, userID string) error {
	_, err := seed.Apply(ctx, c.store, &seed.File{
		Addresses: []seed.Address{{
			UserID:     userID,
			Default:    true,
			Recipient:  "Иван Петров",
			Street:     "ул. Ленина, 1",
			City:       "Москва",
			PostalCode: "101000",
			Country:    "RU",
		}},
	}, domain.SystemClock{}, nil)
	return err
}

func (c *storefrontContext) userAdds(ctx context.Context, userID string, qty int, productID string) error {
	_, c.lastErr = c.baskets.AddLine(ctx, userID, productID, int32(qty))
	return nil
}

func (c *storefrontContext) userRemoves(ctx context.Context, userID, productID string) error {
	_, c.lastErr = c.baskets.RemoveLine(ctx, userID, productID)
	return c.lastErr
}

func (c *storefrontContext) userSets(ctx context.Context, userID, productID string, qty int) error {
	_, c.lastErr = c.baskets.SetLineQuantity(ctx, userID, productID, int32(qty))
	return nil
}

func (c *storefrontContext) userOpensBasketTwice(ctx context.Context, userID string) error {
	for i := range c.sameBaskets {
		b, err := c.baskets.GetOrCreateActiveBasket(ctx, userID)
		if err != nil {
			return err
		}
		c.sameBaskets[i] = b
	}
	return nil
}

func (c *storefrontContext) bothCallsReturnSameBasket() error {
	if c.sameBaskets[0].ID == "" || c.sameBaskets[0].ID != c.sameBaskets[1].ID {
		return fmt.Errorf("expected the same basket, got %q and %q", c.sameBaskets[0].ID, c.sameBaskets[1].ID)
	}
	return nil
}

func (c *storefrontContext) userChecksOut(ctx context.Context, userID string) error {
	created, err := c.orders.CreateFromBasket(ctx, order.CheckoutInput{UserID: userID})
	c.lastErr = err
	if err == nil {
		c.order = created
	}
	return nil
}

func (c *storefrontContext) orderLineChangedTo(ctx context.Context, productID string, qty int) error {
	edited, err := c.orders.Edit(ctx, order.EditInput{
		OrderID: c.order.ID,
		Lines:   map[string]int32{productID: int32(qty)},
	})
	c.lastErr = err
	if err == nil {
		c.order = edited
	}
	return nil
}

func (c *storefrontContext) orderIsDeleted(ctx context.Context) error {
	c.lastErr = c.orders.SoftDelete(ctx, c.order.ID)
	return c.lastErr
}

func (c *storefrontContext) orderMovedTo(ctx context.Context, status string) error {
	moved, err := c.orders.Transition(ctx, c.order.ID, domain.OrderStatus(status))
	if err != nil {
		return err
	}
	c.order = moved
	return nil
}

func (c *storefrontContext) stockIs(ctx context.Context, productID string, want int) error {
	product, err := c.store.Products().Get(ctx, productID)
	if err != nil {
		return err
	}
	if product.StockQuantity != int32(want) {
		return fmt.Errorf("stock of %s: expected %d, got %d", productID, want, product.StockQuantity)
	}
	return nil
}

func (c *storefrontContext) basketHas(ctx context.Context, userID string, qty int, productID string) error {
	b, err := c.baskets.Get(ctx, userID)
	if err != nil {
		return err
	}
	if len(b.Lines) != 1 {
		return fmt.Errorf("expected exactly one basket line, got %d", len(b.Lines))
	}
	if line := b.Lines[0]; line.ProductID != productID || line.Quantity != int32(qty) {
		return fmt.Errorf("expected line {%s: %d}, got {%s: %d}", productID, qty, line.ProductID, line.Quantity)
	}
	return nil
}

func (c *storefrontContext) basketIsEmpty(ctx context.Context, userID string) error {
	b, err := c.baskets.Get(ctx, userID)
	if errors.Is(err, domain.ErrBasketNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(b.Lines) != 0 {
		return fmt.Errorf("expected empty basket, got %d lines", len(b.Lines))
	}
	return nil
}

func (c *storefrontContext) orderIsWithTotal(status, total string) error {
	if string(c.order.Status) != status {
		return fmt.Errorf("expected status %s, got %s", status, c.order.Status)
	}
	return c.orderTotalIs(total)
}

func (c *storefrontContext) orderTotalIs(total string) error {
	want, err := decimal.NewFromString(total)
	if err != nil {
		return err
	}
	if !c.order.TotalAmount.Equal(want) {
		return fmt.Errorf("expected total %s, got %s", want, c.order.TotalAmount)
	}
	return nil
}

func (c *storefrontContext) orderHasLine(qty int, productID, price, subtotal string) error {
	wantPrice, err := decimal.NewFromString(price)
	if err != nil {
		return err
	}
	wantSubtotal, err := decimal.NewFromString(subtotal)
	if err != nil {
		return err
	}
	for _, line := range c.order.Lines {
		if line.ProductID != productID {
			continue
		}
		if line.Quantity != int32(qty) || !line.PricePerUnit.Equal(wantPrice) || !line.Subtotal.Equal(wantSubtotal) {
			return fmt.Errorf("unexpected line %s: qty=%d price=%s subtotal=%s",
				productID, line.Quantity, line.PricePerUnit, line.Subtotal)
		}
		return nil
	}
	return fmt.Errorf("order has no line for %s", productID)
}

func (c *storefrontContext) failsWithInsufficientStock(available, requested int) error {
	details, ok := domain.AsInsufficientStock(c.lastErr)
	if !ok {
		return fmt.Errorf("expected insufficient stock, got %v", c.lastErr)
	}
	if details.Available != int32(available) || details.Requested != int32(requested) {
		return fmt.Errorf("expected available=%d requested=%d, got %s", available, requested, details)
	}
	return nil
}

func (c *storefrontContext) failsWith(target error) func() error {
	return func() error {
		if !errors.Is(c.lastErr, target) {
			return fmt.Errorf("expected %v, got %v", target, c.lastErr)
		}
		return nil
	}
}

func initializeScenario(open openStore) func(*godog.ScenarioContext) {
	return func(ctx *godog.ScenarioContext) {
		c := &storefrontContext{open: open}

		ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
			return ctx, c.reset(ctx)
		})
		ctx.After(func(ctx context.Context, _ *godog.Scenario, err error) (context.Context, error) {
			if c.closeFn != nil {
				c.closeFn()
				c.closeFn = nil
			}
			return ctx, err
		})

		// Given
		ctx.Step(`^product "([^"]*)" priced ([\d.]+) with stock (\d+)$`, c.productPricedWithStock)
		ctx.Step(`^user "([^"]*)" has a delivery address$`, c.userHasAddress)

		// When
		ctx.Step(`^user "([^"]*)" adds (\d+) of "([^"]*)" to the basket$`, c.userAdds)
		ctx.Step(`^user "([^"]*)" removes "([^"]*)" from the basket$`, c.userRemoves)
		ctx.Step(`^user "([^"]*)" sets "([^"]*)" to (\d+) in the basket$`, c.userSets)
		ctx.Step(`^user "([^"]*)" opens the active basket twice$`, c.userOpensBasketTwice)
		ctx.Step(`^user "([^"]*)" checks out$`, c.userChecksOut)
		ctx.Step(`^the order line "([^"]*)" is changed to (\d+)$`, c.orderLineChangedTo)
		ctx.Step(`^the order is deleted$`, c.orderIsDeleted)
		ctx.Step(`^the order is moved to "([^"]*)"$`, c.orderMovedTo)

		// Then
		ctx.Step(`^stock of "([^"]*)" is (\d+)$`, c.stockIs)
		ctx.Step(`^the basket of "([^"]*)" has (\d+) of "([^"]*)"$`, c.basketHas)
		ctx.Step(`^the basket of "([^"]*)" is empty$`, c.basketIsEmpty)
		ctx.Step(`^both calls return the same basket$`, c.bothCallsReturnSameBasket)
		ctx.Step(`^the order is "([^"]*)" with total ([\d.]+)$`, c.orderIsWithTotal)
		ctx.Step(`^the order total is ([\d.]+)$`, c.orderTotalIs)
		ctx.Step(`^the order has (\d+) of "([^"]*)" at ([\d.]+) with subtotal ([\d.]+)$`, c.orderHasLine)
		ctx.Step(`^the request fails with insufficient stock: available (\d+), requested (\d+)$`, c.failsWithInsufficientStock)
		ctx.Step(`^the request fails with invalid quantity$`, c.failsWith(domain.ErrInvalidQuantity))
		ctx.Step(`^the request fails with empty basket$`, c.failsWith(domain.ErrEmptyBasket))
		ctx.Step(`^the request fails as not editable$`, c.failsWith(domain.ErrOrderNotEditable))
	}
}

func TestFeatures(t *testing.T) {
	drivers := map[string]openStore{
		"memory": func() (store, func(), error) {
			return memoryStore{memory.NewStore()}, func() {}, nil
		},
		"sqlite": func() (store, func(), error) {
			dir, err := os.MkdirTemp(t.TempDir(), "scenario-")
			if err != nil {
				return nil, nil, err
			}
			path := filepath.Join(dir, "storefront.db")
			ctx := context.Background()
			if err := sqlstore.Migrate(ctx, sqlstore.DriverSQLite, path, nil); err != nil {
				return nil, nil, err
			}
			st, err := sqlstore.Open(ctx, sqlstore.DriverSQLite, path)
			if err != nil {
				return nil, nil, err
			}
			return st, func() { _ = st.Close() }, nil
		},
	}

	for name, open := range drivers {
		t.Run(name, func(t *testing.T) {
			suite := godog.TestSuite{
				Name:                name,
				ScenarioInitializer: initializeScenario(open),
				Options: &godog.Options{
					Format:   "pretty",
					Paths:    []string{"features"},
					TestingT: t,
					Strict:   true,
				},
			}
			if suite.Run() != 0 {
				t.Fatal("non-zero status returned, failed to run feature tests")
			}
		})
	}
}
