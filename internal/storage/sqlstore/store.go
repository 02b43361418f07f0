package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/telemetry"
)

// Поддерживаемые драйверы.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	opTimeout              = 5 * time.Second
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Store реализует SQL-хранилище поверх sqlx. Один и тот же набор репозиториев
// работает с PostgreSQL (pgx) и SQLite (modernc); различия диалектов
// сведены к плейсхолдерам и блокировкам строк.
type Store struct {
	db     *sqlx.DB
	driver string
}

type txKey struct{}

type txState struct {
	owner *Store
	tx    *sqlx.Tx
}

// Open подключается к базе и проверяет её доступность.
// driver принимает DriverPostgres или DriverSQLite; для SQLite dsn указывает путь к файлу или ":memory:".
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	sqlDriver, err := sqlDriverName(driver)
	if err != nil {
		return nil, err
	}

	raw, err := telemetry.OpenDB(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s connection: %w", driver, err)
	}

	if driver == DriverSQLite {
		// Одно соединение: SQLite сериализует запись, а ":memory:" живёт
		// ровно столько, сколько соединение.
		raw.SetMaxOpenConns(1)
		raw.SetMaxIdleConns(1)
		raw.SetConnMaxLifetime(0)
		raw.SetConnMaxIdleTime(0)
	} else {
		raw.SetMaxOpenConns(defaultMaxOpenConns)
		raw.SetMaxIdleConns(defaultMaxIdleConns)
		raw.SetConnMaxLifetime(defaultConnMaxLifetime)
		raw.SetConnMaxIdleTime(defaultConnMaxIdleTime)
	}

	store := &Store{db: sqlx.NewDb(raw, sqlDriver), driver: driver}

	pingCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := raw.PingContext(pingCtx); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		if _, err := raw.ExecContext(pingCtx, `PRAGMA foreign_keys = ON`); err != nil {
			_ = raw.Close()
			return nil, fmt.Errorf("enable sqlite foreign keys: %w", err)
		}
	}

	return store, nil
}

func sqlDriverName(driver string) (string, error) {
	switch driver {
	case DriverPostgres:
		return "pgx", nil
	case DriverSQLite:
		return "sqlite", nil
	default:
		return "", fmt.Errorf("unsupported storage driver %q", driver)
	}
}

// Driver возвращает имя драйвера хранилища.
func (s *Store) Driver() string {
	return s.driver
}

// DB возвращает sqlx-подключение, когда нужен низкоуровневый доступ.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Ping проверяет доступность подключения.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("sql store is not initialized")
	}

	pingCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

// Close закрывает подключение к БД.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// WithinTx выполняет fn в транзакции, переданной через ctx. Вложенный вызов
// присоединяется к внешней транзакции; откат происходит при ошибке и панике.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.txFrom(ctx) != nil {
		return fn(ctx)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, txState{owner: s, tx: tx})); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

func (s *Store) txFrom(ctx context.Context) *sqlx.Tx {
	state, ok := ctx.Value(txKey{}).(txState)
	if !ok || state.owner != s {
		return nil
	}
	return state.tx
}

// ext возвращает транзакцию из ctx либо само подключение.
func (s *Store) ext(ctx context.Context) sqlx.ExtContext {
	if tx := s.txFrom(ctx); tx != nil {
		return tx
	}
	return s.db
}

// q переписывает плейсхолдеры `?` под диалект драйвера.
func (s *Store) q(query string) string {
	return s.db.Rebind(query)
}

// forUpdate добавляет блокировку строк там, где диалект её поддерживает.
// SQLite сериализует транзакции на уровне базы.
func (s *Store) forUpdate(ctx context.Context) string {
	if s.driver == DriverPostgres && s.txFrom(ctx) != nil {
		return " FOR UPDATE"
	}
	return ""
}

// Products возвращает репозиторий товаров.
func (s *Store) Products() domain.ProductRepository { return &productRepository{store: s} }

// Baskets возвращает репозиторий корзин.
func (s *Store) Baskets() domain.BasketRepository { return &basketRepository{store: s} }

// Orders возвращает репозиторий заказов.
func (s *Store) Orders() domain.OrderRepository { return &orderRepository{store: s} }

// Addresses возвращает адресную книгу.
func (s *Store) Addresses() domain.AddressRepository { return &addressRepository{store: s} }

// Discounts возвращает справочник промокодов.
func (s *Store) Discounts() domain.DiscountCodeRepository { return &discountRepository{store: s} }

// Outbox возвращает transactional outbox.
func (s *Store) Outbox() domain.OutboxRepository { return &outboxRepository{store: s} }

// Timeline возвращает журнал событий заказов.
func (s *Store) Timeline() domain.TimelineRepository { return &timelineRepository{store: s} }

// Idempotency возвращает хранилище ключей идемпотентности.
func (s *Store) Idempotency() domain.IdempotencyRepository { return &idempotencyRepository{store: s} }

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func utc(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

var _ domain.TxManager = (*Store)(nil)
