package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusNew — заказ только что оформлен из корзины.
	OrderStatusNew OrderStatus = "new"
	// OrderStatusProcessing — заказ принят в работу, правки ещё допустимы.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusCompleted — заказ исполнен, резерв превратился в списание.
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusCancelled — заказ отменён, резерв возвращён на склад.
	OrderStatusCancelled OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusNew:        {OrderStatusProcessing, OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusCompleted, OrderStatusCancelled},
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusNew, OrderStatusProcessing, OrderStatusCompleted, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// Editable сообщает, можно ли менять позиции, адрес и статус заказа.
func (s OrderStatus) Editable() bool {
	return s == OrderStatusNew || s == OrderStatusProcessing
}

// CanTransitionTo проверяет допустимость перехода.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// OrderLine — позиция заказа с зафиксированной на момент оформления ценой.
type OrderLine struct {
	ID           string
	ProductID    string
	Quantity     int32
	PricePerUnit decimal.Decimal
	Subtotal     decimal.Decimal
	CreatedAt    time.Time
}

// NewOrderLine собирает позицию и считает subtotal.
func NewOrderLine(id, productID string, qty int32, price decimal.Decimal, now time.Time) OrderLine {
	line := OrderLine{ID: id, ProductID: productID, Quantity: qty, PricePerUnit: price, CreatedAt: now}
	line.Recalculate()
	return line
}

// Recalculate пересчитывает subtotal по зафиксированной цене.
func (l *OrderLine) Recalculate() {
	l.Subtotal = l.PricePerUnit.Mul(decimal.NewFromInt32(l.Quantity))
}

// Order — агрегат заказа: позиции и снимок адреса принадлежат заказу.
type Order struct {
	ID                 string
	UserID             string
	Status             OrderStatus
	OrderDate          time.Time
	TotalAmount        decimal.Decimal
	Address            ShippingAddress
	DiscountCode       string
	DiscountPercentOff int32
	Lines              []OrderLine
	DeletedAt          *time.Time
	Version            int64
	UpdatedAt          time.Time
}

// Deleted сообщает, скрыт ли заказ мягким удалением.
func (o *Order) Deleted() bool {
	return o.DeletedAt != nil
}

// LineIndex возвращает индекс позиции по товару или -1.
func (o *Order) LineIndex(productID string) int {
	for i := range o.Lines {
		if o.Lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// RecalculateTotal пересчитывает subtotal каждой позиции и итог заказа.
func (o *Order) RecalculateTotal() {
	total := decimal.Zero
	for i := range o.Lines {
		o.Lines[i].Recalculate()
		total = total.Add(o.Lines[i].Subtotal)
	}
	o.TotalAmount = total
}

// PayableAmount — итог с учётом захваченной скидки, округлённый до копеек.
// TotalAmount всегда остаётся суммой позиций.
func (o *Order) PayableAmount() decimal.Decimal {
	if o.DiscountPercentOff <= 0 {
		return o.TotalAmount
	}
	keep := decimal.NewFromInt32(100 - o.DiscountPercentOff).Div(decimal.NewFromInt(100))
	return o.TotalAmount.Mul(keep).Round(2)
}

// Quantities возвращает количество по каждому товару.
func (o *Order) Quantities() map[string]int32 {
	out := make(map[string]int32, len(o.Lines))
	for _, line := range o.Lines {
		out[line.ProductID] += line.Quantity
	}
	return out
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.UserID == "" {
		errs = append(errs, ErrUserRequired)
	}
	if !o.Status.Valid() {
		errs = append(errs, ErrInvalidStatusTransition)
	}

	calc := decimal.Zero
	seen := make(map[string]struct{}, len(o.Lines))
	for _, line := range o.Lines {
		if line.Quantity <= 0 {
			errs = append(errs, ErrInvalidQuantity)
		}
		if line.PricePerUnit.IsNegative() {
			errs = append(errs, ErrPriceInvalid)
		}
		if !line.Subtotal.Equal(line.PricePerUnit.Mul(decimal.NewFromInt32(line.Quantity))) {
			errs = append(errs, ErrSubtotalMismatch)
		}
		if _, dup := seen[line.ProductID]; dup {
			errs = append(errs, ErrDuplicateLine)
		}
		seen[line.ProductID] = struct{}{}
		calc = calc.Add(line.Subtotal)
	}
	if !calc.Equal(o.TotalAmount) {
		errs = append(errs, ErrTotalMismatch)
	}

	return errs
}

// Clone возвращает копию без общих срезов и указателей.
func (o Order) Clone() Order {
	out := o
	if o.Lines != nil {
		out.Lines = make([]OrderLine, len(o.Lines))
		copy(out.Lines, o.Lines)
	}
	if o.DeletedAt != nil {
		ts := *o.DeletedAt
		out.DeletedAt = &ts
	}
	return out
}
