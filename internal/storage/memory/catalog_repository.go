package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type addressRepository struct {
	store *Store
}

func (r *addressRepository) Create(ctx context.Context, address domain.Address) error {
	if address.UserID == "" {
		return domain.ErrUserRequired
	}
	if err := address.Validate(); err != nil {
		return err
	}

	defer r.store.acquire(ctx)()

	if address.CreatedAt.IsZero() {
		address.CreatedAt = time.Now().UTC()
	}
	r.store.st.addresses[address.ID] = addressRecord{address: address, seq: r.store.st.nextSeq()}
	return nil
}

// addressRecord хранит порядок вставки: он различает адреса с одинаковым CreatedAt.
type addressRecord struct {
	address domain.Address
	seq     int64
}

func (r *addressRepository) DefaultForUser(ctx context.Context, userID string) (domain.Address, error) {
	list, err := r.ListByUser(ctx, userID)
	if err != nil {
		return domain.Address{}, err
	}
	if len(list) == 0 {
		return domain.Address{}, domain.ErrAddressNotFound
	}
	for _, address := range list {
		if address.IsDefault {
			return address, nil
		}
	}
	return list[0], nil
}

// ListByUser возвращает адреса пользователя от самого раннего.
func (r *addressRepository) ListByUser(ctx context.Context, userID string) ([]domain.Address, error) {
	defer r.store.acquire(ctx)()

	records := make([]addressRecord, 0)
	for _, rec := range r.store.st.addresses {
		if rec.address.UserID == userID {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i].address, records[j].address
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return records[i].seq < records[j].seq
	})

	result := make([]domain.Address, 0, len(records))
	for _, rec := range records {
		result = append(result, rec.address)
	}
	return result, nil
}

type discountRepository struct {
	store *Store
}

func (r *discountRepository) Get(ctx context.Context, code string) (domain.DiscountCode, error) {
	defer r.store.acquire(ctx)()

	discount, ok := r.store.st.discounts[normalizeCode(code)]
	if !ok {
		return domain.DiscountCode{}, domain.ErrDiscountCodeNotFound
	}
	return discount, nil
}

func (r *discountRepository) Save(ctx context.Context, code domain.DiscountCode) error {
	if err := code.Validate(); err != nil {
		return err
	}

	defer r.store.acquire(ctx)()

	code.Code = normalizeCode(code.Code)
	r.store.st.discounts[code.Code] = code
	return nil
}

// Промокоды сравниваются без учёта регистра и пробелов по краям.
func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

var (
	_ domain.AddressRepository      = (*addressRepository)(nil)
	_ domain.DiscountCodeRepository = (*discountRepository)(nil)
)
