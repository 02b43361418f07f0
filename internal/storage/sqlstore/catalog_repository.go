package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type addressRepository struct {
	store *Store
}

type addressRow struct {
	ID         string    `db:"id"`
	UserID     string    `db:"user_id"`
	IsDefault  bool      `db:"is_default"`
	Recipient  string    `db:"recipient"`
	Street     string    `db:"street"`
	City       string    `db:"city"`
	PostalCode string    `db:"postal_code"`
	Country    string    `db:"country"`
	Phone      string    `db:"phone"`
	CreatedAt  time.Time `db:"created_at"`
}

func (r *addressRepository) Create(ctx context.Context, address domain.Address) error {
	if address.UserID == "" {
		return domain.ErrUserRequired
	}
	if err := address.Validate(); err != nil {
		return err
	}
	if address.CreatedAt.IsZero() {
		address.CreatedAt = time.Now().UTC()
	}

	a := address.ShippingAddress
	_, err := r.store.ext(ctx).ExecContext(ctx, r.store.q(`
		INSERT INTO addresses (id, user_id, is_default, recipient, street, city, postal_code, country, phone, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)
	`),
		address.ID, address.UserID, address.IsDefault,
		a.Recipient, a.Street, a.City, a.PostalCode, a.Country, a.Phone,
		address.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert address: %w", err)
	}
	return nil
}

func (r *addressRepository) DefaultForUser(ctx context.Context, userID string) (domain.Address, error) {
	var row addressRow
	err := sqlx.GetContext(ctx, r.store.ext(ctx), &row, r.store.q(`
		SELECT id, user_id, is_default, recipient, street, city, postal_code, country, phone, created_at
		FROM addresses
		WHERE user_id = ?
		ORDER BY is_default DESC, created_at ASC, id ASC
		LIMIT 1
	`), userID)
	if isNoRows(err) {
		return domain.Address{}, domain.ErrAddressNotFound
	}
	if err != nil {
		return domain.Address{}, fmt.Errorf("select default address: %w", err)
	}
	return row.toDomain(), nil
}

func (r *addressRepository) ListByUser(ctx context.Context, userID string) ([]domain.Address, error) {
	var rows []addressRow
	if err := sqlx.SelectContext(ctx, r.store.ext(ctx), &rows, r.store.q(`
		SELECT id, user_id, is_default, recipient, street, city, postal_code, country, phone, created_at
		FROM addresses
		WHERE user_id = ?
		ORDER BY created_at ASC, id ASC
	`), userID); err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}

	result := make([]domain.Address, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}

func (r addressRow) toDomain() domain.Address {
	return domain.Address{
		ID:        r.ID,
		UserID:    r.UserID,
		IsDefault: r.IsDefault,
		ShippingAddress: domain.ShippingAddress{
			Recipient:  r.Recipient,
			Street:     r.Street,
			City:       r.City,
			PostalCode: r.PostalCode,
			Country:    r.Country,
			Phone:      r.Phone,
		},
		CreatedAt: utc(r.CreatedAt),
	}
}

type discountRepository struct {
	store *Store
}

type discountRow struct {
	Code       string     `db:"code"`
	PercentOff int32      `db:"percent_off"`
	ExpiresAt  *time.Time `db:"expires_at"`
}

func (r *discountRepository) Get(ctx context.Context, code string) (domain.DiscountCode, error) {
	var row discountRow
	err := sqlx.GetContext(ctx, r.store.ext(ctx), &row, r.store.q(`
		SELECT code, percent_off, expires_at FROM discount_codes WHERE code = ?
	`), normalizeCode(code))
	if isNoRows(err) {
		return domain.DiscountCode{}, domain.ErrDiscountCodeNotFound
	}
	if err != nil {
		return domain.DiscountCode{}, fmt.Errorf("select discount code: %w", err)
	}
	return domain.DiscountCode{Code: row.Code, PercentOff: row.PercentOff, ExpiresAt: utcPtr(row.ExpiresAt)}, nil
}

func (r *discountRepository) Save(ctx context.Context, code domain.DiscountCode) error {
	if err := code.Validate(); err != nil {
		return err
	}

	_, err := r.store.ext(ctx).ExecContext(ctx, r.store.q(`
		INSERT INTO discount_codes (code, percent_off, expires_at)
		VALUES (?,?,?)
		ON CONFLICT (code) DO UPDATE SET
			percent_off = excluded.percent_off,
			expires_at = excluded.expires_at
	`), normalizeCode(code.Code), code.PercentOff, utcPtr(code.ExpiresAt))
	if err != nil {
		return fmt.Errorf("save discount code: %w", err)
	}
	return nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

var (
	_ domain.AddressRepository      = (*addressRepository)(nil)
	_ domain.DiscountCodeRepository = (*discountRepository)(nil)
)
