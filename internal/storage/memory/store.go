package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// state содержит всё, что участвует в транзакциях in-memory хранилища.
type state struct {
	products  map[string]domain.Product
	baskets   map[string]domain.Basket
	orders    map[string]domain.Order
	addresses map[string]addressRecord
	discounts map[string]domain.DiscountCode
	outbox    map[string]outboxRecord
	seq       int64
}

func newState() *state {
	return &state{
		products:  make(map[string]domain.Product),
		baskets:   make(map[string]domain.Basket),
		orders:    make(map[string]domain.Order),
		addresses: make(map[string]addressRecord),
		discounts: make(map[string]domain.DiscountCode),
		outbox:    make(map[string]outboxRecord),
	}
}

// snapshot копирует состояние для отката. Значения хранятся уже
// клонированными, поэтому достаточно копии карт.
func (s *state) snapshot() *state {
	return &state{
		products:  maps.Clone(s.products),
		baskets:   maps.Clone(s.baskets),
		orders:    maps.Clone(s.orders),
		addresses: maps.Clone(s.addresses),
		discounts: maps.Clone(s.discounts),
		outbox:    maps.Clone(s.outbox),
		seq:       s.seq,
	}
}

func (s *state) nextSeq() int64 {
	s.seq++
	return s.seq
}

// Store реализует in-memory хранилище для локальной разработки и тестов.
// Транзакция держит единственный mutex хранилища целиком, поэтому
// транзакции выполняются строго последовательно; ошибка откатывает снимок.
type Store struct {
	mu sync.Mutex
	st *state
}

type txKey struct{}

// NewStore создаёт пустое хранилище.
func NewStore() *Store {
	return &Store{st: newState()}
}

// WithinTx выполняет fn в транзакции. Вложенный вызов присоединяется к внешней.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.st.snapshot()
	committed := false
	defer func() {
		if !committed {
			s.st = before
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// acquire берёт mutex, если вызов пришёл не из транзакции этого хранилища.
func (s *Store) acquire(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// Ping нужен health-проверке; in-memory хранилище всегда доступно.
func (s *Store) Ping(context.Context) error { return nil }

// Products возвращает репозиторий товаров поверх хранилища.
func (s *Store) Products() domain.ProductRepository { return &productRepository{store: s} }

// Baskets возвращает репозиторий корзин.
func (s *Store) Baskets() domain.BasketRepository { return &basketRepository{store: s} }

// Orders возвращает репозиторий заказов.
func (s *Store) Orders() domain.OrderRepository { return &orderRepository{store: s} }

// Addresses возвращает адресную книгу.
func (s *Store) Addresses() domain.AddressRepository { return &addressRepository{store: s} }

// Discounts возвращает справочник промокодов.
func (s *Store) Discounts() domain.DiscountCodeRepository { return &discountRepository{store: s} }

// Outbox возвращает transactional outbox, разделяющий транзакции с агрегатами.
func (s *Store) Outbox() *OutboxRepository { return &OutboxRepository{store: s} }

var _ domain.TxManager = (*Store)(nil)
