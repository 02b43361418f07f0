package order

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
	"github.com/vladislavdragonenkov/storefront/internal/service/basket"
	"github.com/vladislavdragonenkov/storefront/internal/service/stock"
	"github.com/vladislavdragonenkov/storefront/internal/telemetry"
)

var tracer = telemetry.Tracer("service/order")

const defaultListLimit = 100

// CheckoutInput задаёт параметры оформления заказа из активной корзины.
type CheckoutInput struct {
	UserID string
	// DiscountCode необязателен; проверяется и копируется в заказ.
	DiscountCode string
}

// EditInput описывает правку заказа. Lines: товар -> новое количество (0 удаляет
// позицию). Address: частичная замена снимка адреса, nil оставляет его как есть.
type EditInput struct {
	OrderID string
	Lines   map[string]int32
	Address *domain.AddressChanges
}

// Deps перечисляет зависимости Lifecycle. Timeline, Outbox, Metrics, Clock и Logger необязательны.
type Deps struct {
	Tx        domain.TxManager
	Orders    domain.OrderRepository
	Products  domain.ProductRepository
	Addresses domain.AddressRepository
	Discounts domain.DiscountCodeRepository
	Baskets   *basket.Manager
	Ledger    *stock.Ledger
	Outbox    domain.OutboxRepository
	Timeline  domain.TimelineRepository
	Clock     domain.Clock
	Metrics   *metrics.ShopMetrics
	Logger    *log.Entry
}

// Lifecycle оформляет заказы из корзины и ведёт их дальнейшие правки.
type Lifecycle struct {
	tx        domain.TxManager
	orders    domain.OrderRepository
	products  domain.ProductRepository
	addresses domain.AddressRepository
	discounts domain.DiscountCodeRepository
	baskets   *basket.Manager
	ledger    *stock.Ledger
	outbox    domain.OutboxRepository
	timeline  domain.TimelineRepository
	clock     domain.Clock
	metrics   *metrics.ShopMetrics
	logger    *log.Entry
}

// NewLifecycle конструирует Lifecycle.
func NewLifecycle(deps Deps) *Lifecycle {
	if deps.Clock == nil {
		deps.Clock = domain.SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = log.WithField("component", "order-lifecycle")
	}
	if deps.Ledger == nil {
		deps.Ledger = stock.NewLedger(deps.Products, deps.Metrics, deps.Logger)
	}
	return &Lifecycle{
		tx:        deps.Tx,
		orders:    deps.Orders,
		products:  deps.Products,
		addresses: deps.Addresses,
		discounts: deps.Discounts,
		baskets:   deps.Baskets,
		ledger:    deps.Ledger,
		outbox:    deps.Outbox,
		timeline:  deps.Timeline,
		clock:     deps.Clock,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
	}
}

// CreateFromBasket превращает активную корзину пользователя в заказ.
// Цены фиксируются на момент оформления, адрес копируется. Резерв остатков
// переходит от корзины к заказу без обращений к складу.
func (l *Lifecycle) CreateFromBasket(ctx context.Context, in CheckoutInput) (domain.Order, error) {
	if in.UserID == "" {
		return domain.Order{}, domain.ErrUserRequired
	}

	var created domain.Order
	err := l.run(ctx, "order.create", "", func(ctx context.Context) error {
		now := l.clock.Now()

		_, lines, err := l.baskets.TakeForCheckout(ctx, in.UserID)
		if err != nil {
			return err
		}

		address, err := l.addresses.DefaultForUser(ctx, in.UserID)
		if err != nil {
			return err
		}

		order := domain.Order{
			ID:        uuid.NewString(),
			UserID:    in.UserID,
			Status:    domain.OrderStatusNew,
			OrderDate: now,
			Address:   address.ShippingAddress,
			UpdatedAt: now,
		}

		if in.DiscountCode != "" {
			discount, err := l.discounts.Get(ctx, in.DiscountCode)
			if err != nil {
				return err
			}
			if err := discount.Check(now); err != nil {
				return err
			}
			order.DiscountCode = discount.Code
			order.DiscountPercentOff = discount.PercentOff
		}

		for _, line := range lines {
			product, err := l.products.Get(ctx, line.ProductID)
			if err != nil {
				return err
			}
			order.Lines = append(order.Lines, domain.NewOrderLine(uuid.NewString(), product.ID, line.Quantity, product.Price, now))
		}
		order.RecalculateTotal()

		if errs := order.ValidateInvariants(); len(errs) > 0 {
			return errors.Join(errs...)
		}
		if err := l.orders.Create(ctx, order); err != nil {
			return err
		}
		if err := l.enqueue(ctx, domain.EventOrderCreated, order, ""); err != nil {
			return err
		}

		created = order
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	total, _ := created.TotalAmount.Float64()
	l.metrics.RecordOrderCreated(total)
	l.appendTimeline(ctx, created.ID, domain.EventOrderCreated, string(created.Status))
	l.logger.WithFields(log.Fields{
		"order_id": created.ID,
		"user_id":  created.UserID,
		"total":    created.TotalAmount.StringFixed(2),
		"lines":    len(created.Lines),
	}).Info("order created from basket")
	return created, nil
}

// Edit меняет количества позиций и/или адрес редактируемого заказа.
// Все проверки остатков выполняются до первого изменения, а вся правка идёт
// одна транзакция, поэтому заказ меняется целиком или не меняется вовсе.
func (l *Lifecycle) Edit(ctx context.Context, in EditInput) (domain.Order, error) {
	for productID, qty := range in.Lines {
		if productID == "" {
			return domain.Order{}, domain.ErrProductIDRequired
		}
		if qty < 0 {
			return domain.Order{}, fmt.Errorf("set %s to %d: %w", productID, qty, domain.ErrInvalidQuantity)
		}
	}

	var edited domain.Order
	err := l.run(ctx, "order.edit", in.OrderID, func(ctx context.Context) error {
		order, err := l.loadEditable(ctx, in.OrderID)
		if err != nil {
			return err
		}
		now := l.clock.Now()

		deltas := make(map[string]int32, len(in.Lines))
		for productID, newQty := range in.Lines {
			idx := order.LineIndex(productID)
			switch {
			case idx >= 0 && newQty == 0:
				deltas[productID] = -order.Lines[idx].Quantity
				order.Lines = append(order.Lines[:idx], order.Lines[idx+1:]...)
			case idx >= 0:
				deltas[productID] = newQty - order.Lines[idx].Quantity
				order.Lines[idx].Quantity = newQty
			case newQty > 0:
				// Новая позиция получает текущую цену товара.
				product, err := l.products.Get(ctx, productID)
				if err != nil {
					return err
				}
				deltas[productID] = newQty
				order.Lines = append(order.Lines, domain.NewOrderLine(uuid.NewString(), productID, newQty, product.Price, now))
			}
		}

		if !in.Address.Empty() {
			address := in.Address.Apply(order.Address)
			if err := address.Validate(); err != nil {
				return err
			}
			order.Address = address
		}

		if err := l.ledger.ApplyDeltas(ctx, deltas); err != nil {
			return err
		}

		order.RecalculateTotal()
		if err := l.save(ctx, &order, now); err != nil {
			return err
		}
		if err := l.enqueue(ctx, domain.EventOrderEdited, order, ""); err != nil {
			return err
		}

		edited = order
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	l.metrics.RecordOrderEdited()
	l.appendTimeline(ctx, edited.ID, domain.EventOrderEdited, "total "+edited.TotalAmount.StringFixed(2))
	return edited, nil
}

// Transition переводит заказ в следующий статус. Отмена возвращает все
// позиции на склад; завершение превращает резерв в списание.
func (l *Lifecycle) Transition(ctx context.Context, orderID string, to domain.OrderStatus) (domain.Order, error) {
	var updated domain.Order
	err := l.run(ctx, "order.transition", orderID, func(ctx context.Context) error {
		order, err := l.loadEditable(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.Status.CanTransitionTo(to) {
			return fmt.Errorf("%s -> %s: %w", order.Status, to, domain.ErrInvalidStatusTransition)
		}

		if to == domain.OrderStatusCancelled {
			releases := make(map[string]int32, len(order.Lines))
			for productID, qty := range order.Quantities() {
				releases[productID] = -qty
			}
			if err := l.ledger.ApplyDeltas(ctx, releases); err != nil {
				return err
			}
		}

		from := order.Status
		order.Status = to
		if err := l.save(ctx, &order, l.clock.Now()); err != nil {
			return err
		}
		if err := l.enqueue(ctx, domain.EventOrderStatusChanged, order, string(from)); err != nil {
			return err
		}

		updated = order
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	l.metrics.RecordOrderTransition(string(to))
	l.appendTimeline(ctx, updated.ID, domain.EventOrderStatusChanged, string(to))
	return updated, nil
}

// SoftDelete скрывает заказ. Резерв остатков не возвращается.
func (l *Lifecycle) SoftDelete(ctx context.Context, orderID string) error {
	var deleted domain.Order
	err := l.run(ctx, "order.delete", orderID, func(ctx context.Context) error {
		order, err := l.load(ctx, orderID)
		if err != nil {
			return err
		}
		now := l.clock.Now()
		order.DeletedAt = &now
		if err := l.save(ctx, &order, now); err != nil {
			return err
		}
		if err := l.enqueue(ctx, domain.EventOrderDeleted, order, ""); err != nil {
			return err
		}
		deleted = order
		return nil
	})
	if err != nil {
		return err
	}

	l.metrics.RecordOrderDeleted()
	l.appendTimeline(ctx, deleted.ID, domain.EventOrderDeleted, "")
	return nil
}

// Get возвращает видимый (не удалённый) заказ.
func (l *Lifecycle) Get(ctx context.Context, orderID string) (domain.Order, error) {
	return l.load(ctx, orderID)
}

// ListByUser возвращает заказы пользователя, новые первыми.
func (l *Lifecycle) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Order, error) {
	if userID == "" {
		return nil, domain.ErrUserRequired
	}
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}
	return l.orders.ListByUser(ctx, userID, limit)
}

// Timeline возвращает историю событий заказа.
func (l *Lifecycle) Timeline(ctx context.Context, orderID string) ([]domain.TimelineEvent, error) {
	if l.timeline == nil {
		return nil, nil
	}
	return l.timeline.List(ctx, orderID)
}

func (l *Lifecycle) run(ctx context.Context, op, orderID string, fn func(ctx context.Context) error) error {
	started := time.Now()
	ctx, span := tracer.Start(ctx, op, trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	err := l.tx.WithinTx(ctx, fn)
	l.metrics.ObserveOperation(op, time.Since(started))
	if err != nil {
		telemetry.RecordError(span, err)
		if errors.Is(err, domain.ErrInsufficientStock) {
			l.metrics.RecordInsufficientStock(op)
		}
		l.logger.WithError(err).WithFields(log.Fields{
			"operation": op,
			"order_id":  orderID,
		}).Warn("order operation failed")
	}
	return err
}

func (l *Lifecycle) load(ctx context.Context, orderID string) (domain.Order, error) {
	if orderID == "" {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	order, err := l.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.Deleted() {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order, nil
}

func (l *Lifecycle) loadEditable(ctx context.Context, orderID string) (domain.Order, error) {
	order, err := l.load(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !order.Status.Editable() {
		return domain.Order{}, fmt.Errorf("order %s is %s: %w", order.ID, order.Status, domain.ErrOrderNotEditable)
	}
	return order, nil
}

func (l *Lifecycle) save(ctx context.Context, order *domain.Order, now time.Time) error {
	order.UpdatedAt = now
	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return errors.Join(errs...)
	}
	if err := l.orders.Save(ctx, *order); err != nil {
		return err
	}
	order.Version++
	return nil
}

func (l *Lifecycle) enqueue(ctx context.Context, eventType string, order domain.Order, previousStatus string) error {
	if l.outbox == nil {
		return nil
	}
	payload, err := marshalOrderEvent(eventType, order, previousStatus, l.clock.Now())
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	if _, err := l.outbox.Enqueue(ctx, domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   order.ID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     l.clock.Now(),
	}); err != nil {
		return fmt.Errorf("enqueue %s event: %w", eventType, err)
	}
	l.metrics.RecordOutboxEvent()
	return nil
}

func (l *Lifecycle) appendTimeline(ctx context.Context, orderID, eventType, reason string) {
	if l.timeline == nil {
		return
	}
	event := domain.TimelineEvent{
		OrderID:  orderID,
		Type:     eventType,
		Reason:   reason,
		Occurred: l.clock.Now(),
	}
	if err := l.timeline.Append(ctx, event); err != nil {
		l.logger.WithError(err).WithFields(log.Fields{
			"order_id": orderID,
			"event":    eventType,
		}).Warn("failed to append timeline event")
		return
	}
	l.metrics.RecordTimelineEvent()
}
