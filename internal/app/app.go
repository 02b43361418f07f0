package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	storefrontv1 "github.com/vladislavdragonenkov/storefront/api/storefront/v1"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/service/idempotency"
	"github.com/vladislavdragonenkov/storefront/internal/service/outbox"
	"github.com/vladislavdragonenkov/storefront/internal/telemetry"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

// server держит все ресурсы процесса между запуском и остановкой.
type server struct {
	cfg    Config
	logger *log.Entry

	deps     *runtimeDependencies
	services *services
	producer *kafka.Producer

	grpcServer   *grpc.Server
	healthServer *health.Server
	listener     net.Listener
	httpHandler  http.Handler

	shutdownTracing telemetry.ShutdownFunc
}

// Run поднимает сервис и блокируется до отмены ctx или падения gRPC-сервера.
func Run(ctx context.Context, cfg Config) error {
	srv, err := newServer(ctx, cfg, log.WithField("component", "app"))
	if err != nil {
		return err
	}
	return srv.serve(ctx)
}

// newServer собирает зависимости и занимает gRPC-порт, но ещё не обслуживает запросы.
func newServer(ctx context.Context, cfg Config, logger *log.Entry) (_ *server, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &server{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			s.release()
		}
	}()

	s.shutdownTracing, err = telemetry.InitTracerProvider(ctx, telemetry.Config{
		Endpoint:       cfg.OTLPEndpoint,
		ServiceName:    version.Service,
		ServiceVersion: version.Version(),
		Insecure:       cfg.OTLPInsecure,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	s.deps, err = initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	s.services = newServices(s.deps, prometheus.DefaultRegisterer, logger)

	// без брокера сервис работает, события уходят в лог
	s.producer, _ = initKafkaProducer(cfg.KafkaBrokers, logger)

	grpcMetrics := registerGRPCMetrics(logger)
	s.grpcServer = grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(grpcMetrics.StreamServerInterceptor()),
	)
	storefrontv1.RegisterStorefrontServiceServer(s.grpcServer, s.services.storefront)
	s.healthServer = health.NewServer()
	healthpb.RegisterHealthServer(s.grpcServer, s.healthServer)
	reflection.Register(s.grpcServer)
	grpcMetrics.InitializeMetrics(s.grpcServer)

	healthHandler := healthcheck.NewHandler(version.Service, version.Version())
	healthHandler.RegisterChecker("storage", s.deps.storageChecker)
	healthHandler.RegisterChecker("outbox", healthcheck.NewOutboxChecker(s.deps.outboxRepo, domain.SystemClock{}, cfg.OutboxMaxLag))
	s.httpHandler = newHTTPHandler(healthHandler)

	s.listener, err = net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return nil, fmt.Errorf("listen grpc %s: %w", cfg.GRPCAddr, err)
	}
	return s, nil
}

// registerGRPCMetrics переиспользует уже зарегистрированный коллектор,
// если сервис поднимается повторно в том же процессе.
func registerGRPCMetrics(logger *log.Entry) *promgrpc.ServerMetrics {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*promgrpc.ServerMetrics); ok {
				return existing
			}
		}
		logger.WithError(err).Warn("failed to register grpc metrics")
	}
	return grpcMetrics
}

func (s *server) grpcAddr() string { return s.listener.Addr().String() }

func (s *server) serve(ctx context.Context) error {
	defer s.release()

	workersCtx, stopWorkers := context.WithCancel(context.Background())
	var workers sync.WaitGroup
	s.startWorkers(workersCtx, &workers)

	metricsSrv := startMetricsServer(ctx, s.cfg.MetricsAddr, s.logger, s.httpHandler)
	s.healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.healthServer.SetServingStatus(storefrontv1.StorefrontService_ServiceDesc.ServiceName, healthpb.HealthCheckResponse_SERVING)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("gRPC сервер слушает %s", s.grpcAddr())
		errCh <- s.grpcServer.Serve(s.listener)
	}()

	var result error
	select {
	case <-ctx.Done():
		s.logger.Info("получен сигнал остановки, останавливаем gRPC сервер")
		s.healthServer.Shutdown()
		s.gracefulStop()
		result = ctx.Err()
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			result = err
		}
	}

	shutdownHTTP(metricsSrv, s.logger)
	stopWorkers()
	workers.Wait()
	return result
}

// startWorkers запускает outbox и очистку идемпотентности.
func (s *server) startWorkers(ctx context.Context, wg *sync.WaitGroup) {
	events, dlq := outboxPublishers(s.producer, s.logger)
	options := []outbox.Option{
		outbox.WithLogger(s.logger.WithField("component", "outbox-worker")),
		outbox.WithPollInterval(s.cfg.OutboxPollInterval),
		outbox.WithBatchSize(s.cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(s.cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(s.cfg.OutboxRetryDelay),
	}
	if dlq != nil {
		options = append(options, outbox.WithDLQPublisher(dlq))
	}
	outboxWorker := outbox.NewWorker(s.deps.outboxRepo, events, options...)

	cleanupWorker := idempotency.NewCleanupWorker(s.deps.idempotencyRepo,
		idempotency.WithLogger(s.logger.WithField("component", "idempotency-cleanup-worker")),
		idempotency.WithInterval(s.cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(s.cfg.IdempotencyCleanupBatchSize),
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		outboxWorker.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		cleanupWorker.Run(ctx)
	}()
}

func (s *server) gracefulStop() {
	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	select {
	case <-stopped:
	case <-time.After(timeout):
		s.logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		s.grpcServer.Stop()
	}
}

// release освобождает ресурсы в обратном порядке. Безопасен для частично собранного server.
func (s *server) release() {
	if s.listener != nil {
		_ = s.listener.Close()
	}
	closeKafka(s.producer, s.logger)
	s.producer = nil

	if s.deps != nil {
		if err := s.deps.close(); err != nil {
			s.logger.WithError(err).Warn("failed to close storage")
		}
		s.deps = nil
	}

	if s.shutdownTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.shutdownTracing(ctx); err != nil {
			s.logger.WithError(err).Warn("failed to flush traces")
		}
		cancel()
		s.shutdownTracing = nil
	}
}

// newHTTPHandler собирает служебные HTTP-маршруты. Всё, кроме /metrics,
// проходит через otelhttp.
func newHTTPHandler(healthHandler *healthcheck.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", otelhttp.NewHandler(healthHandler, "healthz"))
	mux.Handle("/readyz", otelhttp.NewHandler(http.HandlerFunc(healthHandler.ReadinessHandler), "readyz"))
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	return mux
}

// startMetricsServer обслуживает метрики и health-пробы до отмены ctx.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, handler http.Handler) *http.Server {
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/readyz, %s/livez", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("metrics shutdown with error")
	}
}
