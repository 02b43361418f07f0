package basket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/stock"
	"github.com/vladislavdragonenkov/storefront/internal/telemetry"
)

var tracer = telemetry.Tracer("service/basket")

const (
	opGetOrCreate = "get_or_create"
	opAddLine     = "add_line"
	opSetQuantity = "set_line_quantity"
	opRemoveLine  = "remove_line"
	opClear       = "clear"
	opAbandon     = "abandon"
	opCheckout    = "checkout_handover"
)

// Deps перечисляет зависимости Manager. Metrics, Clock и Logger необязательны.
type Deps struct {
	Tx       domain.TxManager
	Baskets  domain.BasketRepository
	Products domain.ProductRepository
	Ledger   *stock.Ledger
	Clock    domain.Clock
	Metrics  *metrics.ShopMetrics
	Logger   *log.Entry
}

// Manager управляет активной корзиной пользователя. Каждая операция выполняется как
// одна транзакция: изменение позиций и движение остатков коммитятся вместе.
type Manager struct {
	tx       domain.TxManager
	baskets  domain.BasketRepository
	products domain.ProductRepository
	ledger   *stock.Ledger
	clock    domain.Clock
	metrics  *metrics.ShopMetrics
	logger   *log.Entry
}

// NewManager конструирует Manager.
func NewManager(deps Deps) *Manager {
	if deps.Clock == nil {
		deps.Clock = domain.SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = log.WithField("component", "basket-manager")
	}
	if deps.Ledger == nil {
		deps.Ledger = stock.NewLedger(deps.Products, deps.Metrics, deps.Logger)
	}
	return &Manager{
		tx:       deps.Tx,
		baskets:  deps.Baskets,
		products: deps.Products,
		ledger:   deps.Ledger,
		clock:    deps.Clock,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
	}
}

// Get возвращает активную корзину без изменений.
func (m *Manager) Get(ctx context.Context, userID string) (domain.Basket, error) {
	if userID == "" {
		return domain.Basket{}, domain.ErrUserRequired
	}
	return m.baskets.GetActiveForUser(ctx, userID)
}

// GetOrCreateActiveBasket возвращает активную корзину, создавая её при отсутствии.
func (m *Manager) GetOrCreateActiveBasket(ctx context.Context, userID string) (domain.Basket, error) {
	return m.run(ctx, opGetOrCreate, userID, "", func(ctx context.Context) (domain.Basket, error) {
		return m.activeBasket(ctx, userID)
	})
}

// AddLine добавляет quantity единиц товара, сливая с существующей позицией.
// Резервируется только добавленное количество.
func (m *Manager) AddLine(ctx context.Context, userID, productID string, quantity int32) (domain.Basket, error) {
	if quantity <= 0 {
		return domain.Basket{}, fmt.Errorf("add %d of %s: %w", quantity, productID, domain.ErrInvalidQuantity)
	}
	return m.run(ctx, opAddLine, userID, productID, func(ctx context.Context) (domain.Basket, error) {
		basket, err := m.activeBasket(ctx, userID)
		if err != nil {
			return domain.Basket{}, err
		}
		if _, err := m.ledger.Reserve(ctx, productID, quantity); err != nil {
			return domain.Basket{}, err
		}

		current, _ := basket.Line(productID)
		basket.SetLine(productID, current.Quantity+quantity, m.clock.Now())
		return m.save(ctx, basket)
	})
}

// SetLineQuantity заменяет количество в позиции на newQuantity.
// Ноль и отрицательные значения отклоняются: удаление идёт через RemoveLine.
func (m *Manager) SetLineQuantity(ctx context.Context, userID, productID string, newQuantity int32) (domain.Basket, error) {
	if newQuantity <= 0 {
		return domain.Basket{}, fmt.Errorf("set %s to %d: %w", productID, newQuantity, domain.ErrInvalidQuantity)
	}
	return m.run(ctx, opSetQuantity, userID, productID, func(ctx context.Context) (domain.Basket, error) {
		basket, line, err := m.lineForUpdate(ctx, userID, productID)
		if err != nil {
			return domain.Basket{}, err
		}
		if newQuantity == line.Quantity {
			return basket, nil
		}
		if _, err := m.ledger.Adjust(ctx, productID, newQuantity-line.Quantity); err != nil {
			return domain.Basket{}, err
		}

		basket.SetLine(productID, newQuantity, m.clock.Now())
		return m.save(ctx, basket)
	})
}

// RemoveLine удаляет позицию и возвращает всё её количество на склад.
func (m *Manager) RemoveLine(ctx context.Context, userID, productID string) (domain.Basket, error) {
	return m.run(ctx, opRemoveLine, userID, productID, func(ctx context.Context) (domain.Basket, error) {
		basket, line, err := m.lineForUpdate(ctx, userID, productID)
		if err != nil {
			return domain.Basket{}, err
		}
		if _, err := m.ledger.Release(ctx, productID, line.Quantity); err != nil {
			return domain.Basket{}, err
		}

		basket.RemoveLine(productID)
		return m.save(ctx, basket)
	})
}

// Clear возвращает на склад все позиции и опустошает корзину.
func (m *Manager) Clear(ctx context.Context, userID string) (domain.Basket, error) {
	return m.run(ctx, opClear, userID, "", func(ctx context.Context) (domain.Basket, error) {
		basket, err := m.baskets.GetActiveForUser(ctx, userID)
		if err != nil {
			return domain.Basket{}, err
		}
		if err := m.releaseAll(ctx, &basket); err != nil {
			return domain.Basket{}, err
		}
		return m.save(ctx, basket)
	})
}

// Abandon очищает корзину и закрывает её; следующая операция создаст новую.
func (m *Manager) Abandon(ctx context.Context, userID string) (domain.Basket, error) {
	return m.run(ctx, opAbandon, userID, "", func(ctx context.Context) (domain.Basket, error) {
		basket, err := m.baskets.GetActiveForUser(ctx, userID)
		if err != nil {
			return domain.Basket{}, err
		}
		if err := m.releaseAll(ctx, &basket); err != nil {
			return domain.Basket{}, err
		}
		basket.Status = domain.BasketStatusAbandoned
		return m.save(ctx, basket)
	})
}

// TakeForCheckout забирает позиции корзины для оформления заказа. Остатки
// не трогаются: резерв переходит от корзины к заказу. Вызывается внутри
// транзакции оформления, поэтому при её откате позиции вернутся в корзину.
func (m *Manager) TakeForCheckout(ctx context.Context, userID string) (domain.Basket, []domain.BasketLine, error) {
	var lines []domain.BasketLine
	basket, err := m.run(ctx, opCheckout, userID, "", func(ctx context.Context) (domain.Basket, error) {
		basket, err := m.baskets.GetActiveForUser(ctx, userID)
		if errors.Is(err, domain.ErrBasketNotFound) {
			return domain.Basket{}, domain.ErrEmptyBasket
		}
		if err != nil {
			return domain.Basket{}, err
		}
		if len(basket.Lines) == 0 {
			return domain.Basket{}, domain.ErrEmptyBasket
		}

		lines = basket.TakeLines()
		return m.save(ctx, basket)
	})
	if err != nil {
		return domain.Basket{}, nil, err
	}
	return basket, lines, nil
}

// run оборачивает операцию в транзакцию, спан и метрики. Проигранная гонка
// создания корзины повторяется один раз: вторая попытка увидит чужую корзину.
func (m *Manager) run(ctx context.Context, op, userID, productID string, fn func(ctx context.Context) (domain.Basket, error)) (domain.Basket, error) {
	if userID == "" {
		return domain.Basket{}, domain.ErrUserRequired
	}

	started := time.Now()
	ctx, span := tracer.Start(ctx, "basket."+op, trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("product.id", productID),
	))
	defer span.End()

	var result domain.Basket
	attempt := func() error {
		return m.tx.WithinTx(ctx, func(ctx context.Context) error {
			basket, err := fn(ctx)
			if err != nil {
				return err
			}
			result = basket
			return nil
		})
	}

	err := attempt()
	if errors.Is(err, domain.ErrActiveBasketExists) {
		err = attempt()
	}

	m.metrics.RecordBasketOperation(op, err)
	m.metrics.ObserveOperation("basket."+op, time.Since(started))
	if err != nil {
		telemetry.RecordError(span, err)
		if errors.Is(err, domain.ErrInsufficientStock) {
			m.metrics.RecordInsufficientStock("basket." + op)
		}
		m.logger.WithError(err).WithFields(log.Fields{
			"operation":  op,
			"user_id":    userID,
			"product_id": productID,
		}).Warn("basket operation failed")
		return domain.Basket{}, err
	}
	return result, nil
}

func (m *Manager) activeBasket(ctx context.Context, userID string) (domain.Basket, error) {
	basket, err := m.baskets.GetActiveForUser(ctx, userID)
	if err == nil {
		return basket, nil
	}
	if !errors.Is(err, domain.ErrBasketNotFound) {
		return domain.Basket{}, err
	}

	now := m.clock.Now()
	basket = domain.Basket{
		ID:        uuid.NewString(),
		UserID:    userID,
		Status:    domain.BasketStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.baskets.Create(ctx, basket); err != nil {
		return domain.Basket{}, err
	}
	m.logger.WithFields(log.Fields{"user_id": userID, "basket_id": basket.ID}).Info("basket created")
	return basket, nil
}

// lineForUpdate находит позицию в активной корзине. Отсутствие корзины
// для вызывающего неотличимо от отсутствия позиции.
func (m *Manager) lineForUpdate(ctx context.Context, userID, productID string) (domain.Basket, domain.BasketLine, error) {
	basket, err := m.baskets.GetActiveForUser(ctx, userID)
	if errors.Is(err, domain.ErrBasketNotFound) {
		return domain.Basket{}, domain.BasketLine{}, fmt.Errorf("product %s: %w", productID, domain.ErrLineNotFound)
	}
	if err != nil {
		return domain.Basket{}, domain.BasketLine{}, err
	}
	line, ok := basket.Line(productID)
	if !ok {
		return domain.Basket{}, domain.BasketLine{}, fmt.Errorf("product %s: %w", productID, domain.ErrLineNotFound)
	}
	return basket, line, nil
}

func (m *Manager) releaseAll(ctx context.Context, basket *domain.Basket) error {
	for _, line := range basket.TakeLines() {
		if _, err := m.ledger.Release(ctx, line.ProductID, line.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) save(ctx context.Context, basket domain.Basket) (domain.Basket, error) {
	basket.UpdatedAt = m.clock.Now()
	if errs := basket.ValidateInvariants(); len(errs) > 0 {
		return domain.Basket{}, errors.Join(errs...)
	}
	if err := m.baskets.Save(ctx, basket); err != nil {
		return domain.Basket{}, err
	}
	basket.Version++
	return basket, nil
}
