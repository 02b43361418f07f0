package domain

import (
	"errors"
	"fmt"
)

// Корневые виды ошибок. Конкретные ошибки оборачивают их, поэтому транспорт
// может классифицировать ответ через errors.Is без перечисления всех вариантов.
var (
	// ErrNotFound — запрошенная сущность отсутствует или скрыта мягким удалением.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientStock — на складе меньше единиц, чем требуется зарезервировать.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrEmptyBasket — оформление заказа из корзины без позиций.
	ErrEmptyBasket = errors.New("basket is empty")
	// ErrOrderNotEditable — изменение заказа в терминальном статусе.
	ErrOrderNotEditable = errors.New("order is not editable")
	// ErrInvalidQuantity — количество не прошло проверку знака/диапазона.
	ErrInvalidQuantity = errors.New("invalid quantity")
)

var (
	ErrProductNotFound      = fmt.Errorf("product %w", ErrNotFound)
	ErrBasketNotFound       = fmt.Errorf("active basket %w", ErrNotFound)
	ErrOrderNotFound        = fmt.Errorf("order %w", ErrNotFound)
	ErrLineNotFound         = fmt.Errorf("line %w", ErrNotFound)
	ErrAddressNotFound      = fmt.Errorf("address %w", ErrNotFound)
	ErrDiscountCodeNotFound = fmt.Errorf("discount code %w", ErrNotFound)

	// ErrInvalidStatusTransition — переход между статусами заказа не разрешён.
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
	// ErrDiscountCodeExpired — промокод найден, но срок действия истёк.
	ErrDiscountCodeExpired = errors.New("discount code expired")
	ErrUserRequired        = errors.New("user_id is required")
	ErrProductIDRequired   = errors.New("product_id is required")
	ErrAddressInvalid      = errors.New("address is incomplete")
	ErrPriceInvalid        = errors.New("price must be non-negative with at most two decimal places")
	ErrTotalMismatch       = errors.New("order total does not match lines sum")
	ErrSubtotalMismatch    = errors.New("line subtotal does not match quantity * price")
	ErrDuplicateLine       = errors.New("duplicate line for product")

	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении заказа.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrBasketVersionConflict сигнализирует о конфликте версий при сохранении корзины.
	ErrBasketVersionConflict = errors.New("basket version conflict")
	// ErrActiveBasketExists — у пользователя уже есть активная корзина (гонка создания).
	ErrActiveBasketExists = errors.New("active basket already exists")

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// InsufficientStockError описывает отказ резервирования: какой товар, сколько
// запросили и сколько было доступно на момент проверки.
type InsufficientStockError struct {
	ProductID string
	Requested int32
	Available int32
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// Unwrap позволяет errors.Is(err, ErrInsufficientStock).
func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// AsInsufficientStock извлекает детали нехватки остатка из цепочки ошибок.
func AsInsufficientStock(err error) (*InsufficientStockError, bool) {
	var target *InsufficientStockError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий агрегата.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict) || errors.Is(err, ErrBasketVersionConflict)
}
