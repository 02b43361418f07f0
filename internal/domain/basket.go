package domain

import (
	"sort"
	"time"
)

// BasketStatus описывает состояние корзины.
type BasketStatus string

const (
	// BasketStatusActive — единственная изменяемая корзина пользователя.
	BasketStatusActive BasketStatus = "active"
	// BasketStatusCheckedOut — корзина закрыта оформлением заказа.
	BasketStatusCheckedOut BasketStatus = "checked_out"
	// BasketStatusAbandoned — корзина брошена, резервы возвращены на склад.
	BasketStatusAbandoned BasketStatus = "abandoned"
)

// BasketLine — позиция корзины. Количество всегда больше нуля: позиция
// удаляется, а не обнуляется.
type BasketLine struct {
	ProductID string
	Quantity  int32
	AddedAt   time.Time
}

// Basket — агрегат корзины вместе с позициями.
type Basket struct {
	ID        string
	UserID    string
	Status    BasketStatus
	Lines     []BasketLine
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Line возвращает позицию по товару.
func (b *Basket) Line(productID string) (BasketLine, bool) {
	for _, line := range b.Lines {
		if line.ProductID == productID {
			return line, true
		}
	}
	return BasketLine{}, false
}

// SetLine добавляет позицию или заменяет количество существующей.
func (b *Basket) SetLine(productID string, qty int32, now time.Time) {
	for i := range b.Lines {
		if b.Lines[i].ProductID == productID {
			b.Lines[i].Quantity = qty
			return
		}
	}
	b.Lines = append(b.Lines, BasketLine{ProductID: productID, Quantity: qty, AddedAt: now})
}

// RemoveLine удаляет позицию и возвращает её.
func (b *Basket) RemoveLine(productID string) (BasketLine, bool) {
	for i, line := range b.Lines {
		if line.ProductID == productID {
			b.Lines = append(b.Lines[:i], b.Lines[i+1:]...)
			return line, true
		}
	}
	return BasketLine{}, false
}

// TakeLines опустошает корзину и отдаёт снятые позиции в порядке добавления.
func (b *Basket) TakeLines() []BasketLine {
	lines := b.Lines
	b.Lines = nil
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].AddedAt.Before(lines[j].AddedAt)
	})
	return lines
}

// TotalQuantity суммирует количество по всем позициям.
func (b *Basket) TotalQuantity() int64 {
	var total int64
	for _, line := range b.Lines {
		total += int64(line.Quantity)
	}
	return total
}

// ValidateInvariants проверяет инварианты корзины.
func (b *Basket) ValidateInvariants() []error {
	var errs []error
	if b.UserID == "" {
		errs = append(errs, ErrUserRequired)
	}
	seen := make(map[string]struct{}, len(b.Lines))
	for _, line := range b.Lines {
		if line.Quantity <= 0 {
			errs = append(errs, ErrInvalidQuantity)
		}
		if _, dup := seen[line.ProductID]; dup {
			errs = append(errs, ErrDuplicateLine)
		}
		seen[line.ProductID] = struct{}{}
	}
	return errs
}

// Clone возвращает копию без общих срезов.
func (b Basket) Clone() Basket {
	out := b
	if b.Lines != nil {
		out.Lines = make([]BasketLine, len(b.Lines))
		copy(out.Lines, b.Lines)
	}
	return out
}
