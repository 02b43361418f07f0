package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/seed"
	"github.com/vladislavdragonenkov/storefront/internal/service/basket"
	grpcsvc "github.com/vladislavdragonenkov/storefront/internal/service/grpc"
	"github.com/vladislavdragonenkov/storefront/internal/service/order"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/sqlstore"
)

// Storage покрывает общее подмножество memory.Store и sqlstore.Store.
type Storage interface {
	domain.TxManager
	healthcheck.Pinger
	Products() domain.ProductRepository
	Baskets() domain.BasketRepository
	Orders() domain.OrderRepository
	Addresses() domain.AddressRepository
	Discounts() domain.DiscountCodeRepository
}

// runtimeDependencies держит хранилище и репозитории, выбранные по конфигурации.
type runtimeDependencies struct {
	storage         Storage
	outboxRepo      domain.OutboxRepository
	timelineRepo    domain.TimelineRepository
	idempotencyRepo domain.IdempotencyRepository
	storageChecker  healthcheck.Checker
	closeFn         func() error
}

func (d *runtimeDependencies) close() error {
	if d == nil || d.closeFn == nil {
		return nil
	}
	return d.closeFn()
}

// initRuntimeDependencies открывает хранилище, при необходимости мигрирует
// схему и применяет seed.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	var deps *runtimeDependencies

	switch cfg.StorageDriver {
	case StorageDriverMemory, "":
		store := memory.NewStore()
		deps = &runtimeDependencies{
			storage:         store,
			outboxRepo:      store.Outbox(),
			timelineRepo:    memory.NewTimelineRepository(),
			idempotencyRepo: memory.NewIdempotencyRepository(nil),
		}

	case StorageDriverPostgres, StorageDriverSQLite:
		if cfg.DatabaseDSN == "" {
			return nil, fmt.Errorf("%s storage requires a database dsn", cfg.StorageDriver)
		}
		if cfg.AutoMigrate {
			if err := sqlstore.Migrate(ctx, cfg.StorageDriver, cfg.DatabaseDSN, logger.WithField("component", "migrator")); err != nil {
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
		}
		store, err := sqlstore.Open(ctx, cfg.StorageDriver, cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		deps = &runtimeDependencies{
			storage:         store,
			outboxRepo:      store.Outbox(),
			timelineRepo:    store.Timeline(),
			idempotencyRepo: store.Idempotency(),
			closeFn:         store.Close,
		}

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}

	deps.storageChecker = healthcheck.NewStorageChecker(deps.storage)

	if cfg.SeedFile != "" {
		file, err := seed.LoadFile(cfg.SeedFile)
		if err == nil {
			_, err = seed.Apply(ctx, deps.storage, file, domain.SystemClock{}, logger.WithField("component", "seed"))
		}
		if err != nil {
			_ = deps.close()
			return nil, fmt.Errorf("apply seed: %w", err)
		}
	}

	logger.WithField("driver", cfg.StorageDriver).Info("storage initialized")
	return deps, nil
}

// services собирает ядро и API поверх выбранного хранилища.
type services struct {
	baskets    *basket.Manager
	orders     *order.Lifecycle
	storefront *grpcsvc.StorefrontService
}

func newServices(deps *runtimeDependencies, registerer prometheus.Registerer, logger *log.Entry) *services {
	shopMetrics := metrics.NewShopMetricsWithRegisterer(registerer)
	store := deps.storage

	baskets := basket.NewManager(basket.Deps{
		Tx:       store,
		Baskets:  store.Baskets(),
		Products: store.Products(),
		Metrics:  shopMetrics,
		Logger:   logger.WithField("component", "basket-manager"),
	})
	orders := order.NewLifecycle(order.Deps{
		Tx:        store,
		Orders:    store.Orders(),
		Products:  store.Products(),
		Addresses: store.Addresses(),
		Discounts: store.Discounts(),
		Baskets:   baskets,
		Outbox:    deps.outboxRepo,
		Timeline:  deps.timelineRepo,
		Metrics:   shopMetrics,
		Logger:    logger.WithField("component", "order-lifecycle"),
	})

	return &services{
		baskets:    baskets,
		orders:     orders,
		storefront: grpcsvc.NewStorefrontService(baskets, orders, deps.idempotencyRepo, logger.WithField("layer", "grpc")),
	}
}
