// Package seed наполняет хранилище справочными данными из YAML:
// товарами, адресами пользователей и промокодами.
package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// File описывает содержимое seed-файла.
type File struct {
	Products  []Product  `yaml:"products"`
	Addresses []Address  `yaml:"addresses"`
	Discounts []Discount `yaml:"discounts"`
}

type Product struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Price string `yaml:"price"`
	Stock int32  `yaml:"stock"`
}

type Address struct {
	ID         string `yaml:"id"`
	UserID     string `yaml:"user_id"`
	Default    bool   `yaml:"default"`
	Recipient  string `yaml:"recipient"`
	Street     string `yaml:"street"`
	City       string `yaml:"city"`
	PostalCode string `yaml:"postal_code"`
	Country    string `yaml:"country"`
	Phone      string `yaml:"phone"`
}

type Discount struct {
	Code       string     `yaml:"code"`
	PercentOff int32      `yaml:"percent_off"`
	ExpiresAt  *time.Time `yaml:"expires_at"`
}

// Target принимает seed.
type Target interface {
	domain.TxManager
	Products() domain.ProductRepository
	Addresses() domain.AddressRepository
	Discounts() domain.DiscountCodeRepository
}

// Result считает записанные записи.
type Result struct {
	Products  int
	Addresses int
	Discounts int
}

// LoadFile читает и разбирает seed-файл.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse разбирает YAML; неизвестные поля считаются ошибкой.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse seed YAML: %w", err)
	}
	return &f, nil
}

// Apply записывает содержимое в одной транзакции. Товары и промокоды
// перезаписываются, адреса добавляются только пользователям без адресов,
// поэтому повторный запуск не плодит дубликаты.
func Apply(ctx context.Context, target Target, f *File, clock domain.Clock, logger *log.Entry) (Result, error) {
	if f == nil {
		return Result{}, nil
	}
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if logger == nil {
		logger = log.WithField("component", "seed")
	}

	var res Result
	err := target.WithinTx(ctx, func(ctx context.Context) error {
		res = Result{}
		now := clock.Now()

		for i, p := range f.Products {
			product, err := p.toDomain(now)
			if err != nil {
				return fmt.Errorf("products[%d]: %w", i, err)
			}
			if err := target.Products().Save(ctx, product); err != nil {
				return fmt.Errorf("save product %s: %w", product.ID, err)
			}
			res.Products++
		}

		seeded := make(map[string]bool)
		for i, a := range f.Addresses {
			if a.UserID == "" {
				return fmt.Errorf("addresses[%d]: %w", i, domain.ErrUserRequired)
			}
			if !seeded[a.UserID] {
				existing, err := target.Addresses().ListByUser(ctx, a.UserID)
				if err != nil {
					return fmt.Errorf("list addresses of %s: %w", a.UserID, err)
				}
				if len(existing) > 0 {
					logger.WithField("user_id", a.UserID).Debug("user already has addresses, skipping")
					continue
				}
			}
			seeded[a.UserID] = true

			if err := target.Addresses().Create(ctx, a.toDomain(now)); err != nil {
				return fmt.Errorf("addresses[%d]: %w", i, err)
			}
			res.Addresses++
		}

		for i, d := range f.Discounts {
			code := domain.DiscountCode{Code: strings.TrimSpace(d.Code), PercentOff: d.PercentOff, ExpiresAt: d.ExpiresAt}
			if code.Code == "" {
				return fmt.Errorf("discounts[%d]: code is required", i)
			}
			if err := code.Validate(); err != nil {
				return fmt.Errorf("discounts[%d]: %w", i, err)
			}
			if err := target.Discounts().Save(ctx, code); err != nil {
				return fmt.Errorf("save discount %s: %w", code.Code, err)
			}
			res.Discounts++
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	logger.WithFields(log.Fields{
		"products":  res.Products,
		"addresses": res.Addresses,
		"discounts": res.Discounts,
	}).Info("seed applied")
	return res, nil
}

func (p Product) toDomain(now time.Time) (domain.Product, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(p.Price))
	if err != nil {
		return domain.Product{}, fmt.Errorf("%w: %q", domain.ErrPriceInvalid, p.Price)
	}
	product := domain.Product{
		ID:            strings.TrimSpace(p.ID),
		Name:          p.Name,
		Price:         price,
		StockQuantity: p.Stock,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if errs := product.Validate(); len(errs) > 0 {
		return domain.Product{}, errors.Join(errs...)
	}
	return product, nil
}

func (a Address) toDomain(now time.Time) domain.Address {
	id := a.ID
	if id == "" {
		id = uuid.NewString()
	}
	return domain.Address{
		ID:        id,
		UserID:    a.UserID,
		IsDefault: a.Default,
		ShippingAddress: domain.ShippingAddress{
			Recipient:  a.Recipient,
			Street:     a.Street,
			City:       a.City,
			PostalCode: a.PostalCode,
			Country:    a.Country,
			Phone:      a.Phone,
		},
		CreatedAt: now,
	}
}
