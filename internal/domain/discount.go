package domain

import (
	"errors"
	"time"
)

// ErrDiscountPercentInvalid — скидка вне диапазона 1..100.
var ErrDiscountPercentInvalid = errors.New("discount percent must be within 1..100")

// DiscountCode — промокод, который проверяется и копируется в заказ при оформлении.
type DiscountCode struct {
	Code       string
	PercentOff int32
	ExpiresAt  *time.Time
}

// Validate проверяет промокод перед сохранением.
func (d DiscountCode) Validate() error {
	if d.PercentOff <= 0 || d.PercentOff > 100 {
		return ErrDiscountPercentInvalid
	}
	return nil
}

// Check возвращает ErrDiscountCodeExpired, если срок действия истёк к моменту now.
func (d DiscountCode) Check(now time.Time) error {
	if d.ExpiresAt != nil && !now.Before(*d.ExpiresAt) {
		return ErrDiscountCodeExpired
	}
	return nil
}
