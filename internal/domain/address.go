package domain

import (
	"strings"
	"time"
)

// ShippingAddress — значение адреса без идентичности. Заказ хранит собственную
// копию, поэтому правка адресной книги не меняет уже оформленные заказы.
type ShippingAddress struct {
	Recipient  string
	Street     string
	City       string
	PostalCode string
	Country    string
	Phone      string
}

// Validate проверяет обязательные поля.
func (a ShippingAddress) Validate() error {
	for _, v := range []string{a.Recipient, a.Street, a.City, a.PostalCode, a.Country} {
		if strings.TrimSpace(v) == "" {
			return ErrAddressInvalid
		}
	}
	return nil
}

// Address — запись адресной книги пользователя.
type Address struct {
	ID        string
	UserID    string
	IsDefault bool
	ShippingAddress
	CreatedAt time.Time
}

// AddressChanges — частичное изменение снимка адреса в заказе.
// nil-поле означает «не менять».
type AddressChanges struct {
	Recipient  *string
	Street     *string
	City       *string
	PostalCode *string
	Country    *string
	Phone      *string
}

// Empty сообщает, что изменений нет.
func (c *AddressChanges) Empty() bool {
	return c == nil || (c.Recipient == nil && c.Street == nil && c.City == nil &&
		c.PostalCode == nil && c.Country == nil && c.Phone == nil)
}

// Apply накладывает изменения на снимок и возвращает новый снимок.
func (c *AddressChanges) Apply(a ShippingAddress) ShippingAddress {
	if c == nil {
		return a
	}
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&a.Recipient, c.Recipient)
	set(&a.Street, c.Street)
	set(&a.City, c.City)
	set(&a.PostalCode, c.PostalCode)
	set(&a.Country, c.Country)
	set(&a.Phone, c.Phone)
	return a
}
