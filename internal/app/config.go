package app

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Поддерживаемые хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
	StorageDriverSQLite   = "sqlite"
)

// Config описывает настройки запуска сервиса витрины.
type Config struct {
	GRPCAddr    string
	MetricsAddr string

	StorageDriver string
	DatabaseDSN   string
	// AutoMigrate применяет встроенные миграции при старте (SQL-драйверы).
	AutoMigrate bool
	// SeedFile указывает YAML с товарами, адресами и промокодами; пустое значение отключает seed.
	SeedFile string

	KafkaBrokers []string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration
	// OutboxMaxLag задаёт возраст самого старого неотправленного события,
	// после которого /healthz сообщает degraded.
	OutboxMaxLag time.Duration

	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int

	// OTLPEndpoint включает экспорт трасс, если задан.
	OTLPEndpoint string
	OTLPInsecure bool

	ShutdownTimeout time.Duration
}

// DefaultConfig возвращает настройки для локального запуска в памяти.
func DefaultConfig() Config {
	return Config{
		GRPCAddr:                    ":50051",
		MetricsAddr:                 ":9090",
		StorageDriver:               StorageDriverMemory,
		AutoMigrate:                 true,
		OutboxPollInterval:          time.Second,
		OutboxBatchSize:             100,
		OutboxMaxAttempts:           3,
		OutboxRetryDelay:            50 * time.Millisecond,
		OutboxMaxLag:                5 * time.Minute,
		IdempotencyCleanupInterval:  10 * time.Minute,
		IdempotencyCleanupBatchSize: 500,
		OTLPInsecure:                true,
		ShutdownTimeout:             5 * time.Second,
	}
}

// Validate проверяет согласованность настроек до открытия ресурсов.
func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.GRPCAddr) == "" {
		errs = append(errs, errors.New("grpc address is required"))
	}
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres, StorageDriverSQLite:
		if strings.TrimSpace(c.DatabaseDSN) == "" {
			errs = append(errs, fmt.Errorf("database dsn is required for %s storage", c.StorageDriver))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q", c.StorageDriver))
	}
	if c.OutboxBatchSize < 0 || c.OutboxMaxAttempts < 0 || c.IdempotencyCleanupBatchSize < 0 {
		errs = append(errs, errors.New("batch sizes and attempts must not be negative"))
	}

	return errors.Join(errs...)
}
