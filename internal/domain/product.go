package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product — товар каталога. Сервисы ядра читают цену и двигают остаток;
// остальные атрибуты каталога здесь не моделируются.
type Product struct {
	ID            string
	Name          string
	Price         decimal.Decimal
	StockQuantity int32
	DeletedAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Deleted сообщает, скрыт ли товар мягким удалением.
func (p Product) Deleted() bool {
	return p.DeletedAt != nil
}

// Validate проверяет инварианты товара перед сохранением.
func (p Product) Validate() []error {
	var errs []error
	if p.ID == "" {
		errs = append(errs, ErrProductIDRequired)
	}
	if p.Price.IsNegative() || !p.Price.Equal(p.Price.Round(2)) {
		errs = append(errs, ErrPriceInvalid)
	}
	if p.StockQuantity < 0 {
		errs = append(errs, ErrInvalidQuantity)
	}
	return errs
}
