package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ShopMetrics содержит метрики корзины, склада и заказов.
// Все методы безопасны для nil-получателя: сервисы в тестах работают без метрик.
type ShopMetrics struct {
	// Движение остатков
	stockReserved     prometheus.Counter
	stockReleased     prometheus.Counter
	stockInsufficient *prometheus.CounterVec

	// Операции корзины и заказа
	basketOperations *prometheus.CounterVec
	ordersCreated    prometheus.Counter
	ordersEdited     prometheus.Counter
	ordersDeleted    prometheus.Counter
	orderTransitions *prometheus.CounterVec
	orderValue       prometheus.Histogram

	operationDuration *prometheus.HistogramVec

	timelineEvents prometheus.Counter
	outboxEvents   prometheus.Counter
}

// NewShopMetrics регистрирует метрики в DefaultRegisterer.
func NewShopMetrics() *ShopMetrics {
	return NewShopMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewShopMetricsWithRegisterer регистрирует метрики в переданном registerer.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewShopMetricsWithRegisterer(registerer prometheus.Registerer) *ShopMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &ShopMetrics{
		stockReserved: register(registerer, "storefront_stock_reserved_units_total", prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_stock_reserved_units_total",
			Help: "Total number of stock units reserved by baskets and orders",
		})),
		stockReleased: register(registerer, "storefront_stock_released_units_total", prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_stock_released_units_total",
			Help: "Total number of stock units returned to the shelf",
		})),
		stockInsufficient: register(registerer, "storefront_stock_insufficient_total", prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_stock_insufficient_total",
			Help: "Total number of rejected reservations grouped by operation",
		}, []string{"operation"})),
		basketOperations: register(registerer, "storefront_basket_operations_total", prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_basket_operations_total",
			Help: "Total number of basket operations grouped by operation and result",
		}, []string{"operation", "result"})),
		ordersCreated: register(registerer, "storefront_orders_created_total", prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_orders_created_total",
			Help: "Total number of orders created from baskets",
		})),
		ordersEdited: register(registerer, "storefront_orders_edited_total", prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_orders_edited_total",
			Help: "Total number of successful order edits",
		})),
		ordersDeleted: register(registerer, "storefront_orders_deleted_total", prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_orders_deleted_total",
			Help: "Total number of soft-deleted orders",
		})),
		orderTransitions: register(registerer, "storefront_order_transitions_total", prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_order_transitions_total",
			Help: "Total number of order status transitions grouped by target status",
		}, []string{"to"})),
		orderValue: register(registerer, "storefront_order_total_amount", prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "storefront_order_total_amount",
			Help:    "Distribution of order totals at checkout",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		})),
		operationDuration: register(registerer, "storefront_operation_duration_seconds", prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storefront_operation_duration_seconds",
			Help:    "Duration of basket and order operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}, []string{"operation"})),
		timelineEvents: register(registerer, "storefront_timeline_events_total", prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_timeline_events_total",
			Help: "Total number of timeline events recorded",
		})),
		outboxEvents: register(registerer, "storefront_outbox_events_total", prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_outbox_events_total",
			Help: "Total number of events enqueued into the outbox",
		})),
	}
}

func register[T prometheus.Collector](registerer prometheus.Registerer, name string, collector T) T {
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(T)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", name))
			}
			return existing
		}
		panic(fmt.Sprintf("register collector %q: %v", name, err))
	}
	return collector
}

// RecordStockReserved учитывает зарезервированные единицы.
func (m *ShopMetrics) RecordStockReserved(units int32) {
	if m == nil || units <= 0 {
		return
	}
	m.stockReserved.Add(float64(units))
}

// RecordStockReleased учитывает возвращённые на склад единицы.
func (m *ShopMetrics) RecordStockReleased(units int32) {
	if m == nil || units <= 0 {
		return
	}
	m.stockReleased.Add(float64(units))
}

// RecordInsufficientStock учитывает отказ резервирования.
func (m *ShopMetrics) RecordInsufficientStock(operation string) {
	if m == nil {
		return
	}
	m.stockInsufficient.WithLabelValues(operation).Inc()
}

// RecordBasketOperation учитывает операцию корзины с результатом ok/error.
func (m *ShopMetrics) RecordBasketOperation(operation string, err error) {
	if m == nil {
		return
	}
	m.basketOperations.WithLabelValues(operation, resultLabel(err)).Inc()
}

func (m *ShopMetrics) RecordOrderCreated(total float64) {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
	m.orderValue.Observe(total)
}

func (m *ShopMetrics) RecordOrderEdited() {
	if m == nil {
		return
	}
	m.ordersEdited.Inc()
}

func (m *ShopMetrics) RecordOrderDeleted() {
	if m == nil {
		return
	}
	m.ordersDeleted.Inc()
}

// RecordOrderTransition учитывает смену статуса заказа.
func (m *ShopMetrics) RecordOrderTransition(to string) {
	if m == nil {
		return
	}
	m.orderTransitions.WithLabelValues(to).Inc()
}

// ObserveOperation записывает длительность операции.
func (m *ShopMetrics) ObserveOperation(operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *ShopMetrics) RecordTimelineEvent() {
	if m == nil {
		return
	}
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *ShopMetrics) RecordOutboxEvent() {
	if m == nil {
		return
	}
	m.outboxEvents.Inc()
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
