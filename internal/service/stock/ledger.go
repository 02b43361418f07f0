// Package stock содержит единственное место, которое меняет остатки товаров.
// Любое изменение количества в корзине или заказе проходит через Ledger
// как равная и противоположная корректировка остатка.
package stock

import (
	"context"
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/telemetry"
)

var tracer = telemetry.Tracer("service/stock")

// Ledger резервирует и возвращает остатки. Сам транзакций не открывает:
// вызывающий сервис выполняет его внутри своей единицы работы.
type Ledger struct {
	products domain.ProductRepository
	metrics  *metrics.ShopMetrics
	logger   *log.Entry
}

// NewLedger создаёт Ledger. metrics и logger могут быть nil.
func NewLedger(products domain.ProductRepository, m *metrics.ShopMetrics, logger *log.Entry) *Ledger {
	if logger == nil {
		logger = log.WithField("component", "stock-ledger")
	}
	return &Ledger{products: products, metrics: m, logger: logger}
}

// Reserve снимает quantity единиц со склада. Ноль ничего не меняет.
func (l *Ledger) Reserve(ctx context.Context, productID string, quantity int32) (domain.Product, error) {
	if quantity < 0 {
		return domain.Product{}, fmt.Errorf("reserve %d of %s: %w", quantity, productID, domain.ErrInvalidQuantity)
	}
	if quantity == 0 {
		return l.current(ctx, productID)
	}

	ctx, span := tracer.Start(ctx, "stock.Reserve", trace.WithAttributes(
		attribute.String("product.id", productID),
		attribute.Int("quantity", int(quantity)),
	))
	defer span.End()

	product, err := l.products.DecrementStock(ctx, productID, quantity)
	if err != nil {
		telemetry.RecordError(span, err)
		if details, ok := domain.AsInsufficientStock(err); ok {
			l.logger.WithFields(log.Fields{
				"product_id": details.ProductID,
				"requested":  details.Requested,
				"available":  details.Available,
			}).Warn("stock reservation rejected")
		}
		return domain.Product{}, err
	}

	l.metrics.RecordStockReserved(quantity)
	return product, nil
}

// Release возвращает quantity единиц на склад. Ноль ничего не меняет.
func (l *Ledger) Release(ctx context.Context, productID string, quantity int32) (domain.Product, error) {
	if quantity < 0 {
		return domain.Product{}, fmt.Errorf("release %d of %s: %w", quantity, productID, domain.ErrInvalidQuantity)
	}
	if quantity == 0 {
		return l.current(ctx, productID)
	}

	ctx, span := tracer.Start(ctx, "stock.Release", trace.WithAttributes(
		attribute.String("product.id", productID),
		attribute.Int("quantity", int(quantity)),
	))
	defer span.End()

	product, err := l.products.IncrementStock(ctx, productID, quantity)
	if err != nil {
		telemetry.RecordError(span, err)
		return domain.Product{}, err
	}

	l.metrics.RecordStockReleased(quantity)
	return product, nil
}

// Adjust применяет разницу количеств: delta > 0 резервирует, delta < 0 возвращает.
func (l *Ledger) Adjust(ctx context.Context, productID string, delta int32) (domain.Product, error) {
	switch {
	case delta > 0:
		return l.Reserve(ctx, productID, delta)
	case delta < 0:
		return l.Release(ctx, productID, -delta)
	default:
		return l.current(ctx, productID)
	}
}

// ApplyDeltas применяет набор корректировок как одно целое: сначала все
// положительные delta сверяются с текущими остатками, затем изменения
// применяются в порядке возрастания ID товара. Первый товар, которому не
// хватает остатка, возвращается как *domain.InsufficientStockError, и ни
// одна корректировка не применяется. Вызывать внутри транзакции: условное
// списание в хранилище остаётся последней линией защиты от гонок.
func (l *Ledger) ApplyDeltas(ctx context.Context, deltas map[string]int32) error {
	ids := make([]string, 0, len(deltas))
	for id, delta := range deltas {
		if delta != 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	for _, id := range ids {
		delta := deltas[id]
		if delta <= 0 {
			continue
		}
		product, err := l.products.Get(ctx, id)
		if err != nil {
			return err
		}
		if product.StockQuantity < delta {
			return &domain.InsufficientStockError{ProductID: id, Requested: delta, Available: product.StockQuantity}
		}
	}

	for _, id := range ids {
		if _, err := l.Adjust(ctx, id, deltas[id]); err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) current(ctx context.Context, productID string) (domain.Product, error) {
	return l.products.Get(ctx, productID)
}
