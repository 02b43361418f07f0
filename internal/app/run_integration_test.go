package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	storefrontv1 "github.com/vladislavdragonenkov/storefront/api/storefront/v1"
)

func testServerConfig() Config {
	cfg := DefaultConfig()
	cfg.GRPCAddr = "127.0.0.1:0"
	cfg.MetricsAddr = "127.0.0.1:0"
	cfg.OutboxPollInterval = 20 * time.Millisecond
	return cfg
}

func TestRun_MemoryGracefulShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(150 * time.Millisecond)
		cancel()
	}()

	err := Run(ctx, testServerConfig())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRun_InvalidStorageDriver(t *testing.T) {
	cfg := testServerConfig()
	cfg.StorageDriver = "invalid-driver"

	err := Run(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported storage driver")
}

func TestRun_GRPCAddrInUse(t *testing.T) {
	first, err := newServer(context.Background(), testServerConfig(), log.WithField("test", "run"))
	require.NoError(t, err)
	defer first.release()

	cfg := testServerConfig()
	cfg.GRPCAddr = first.grpcAddr()

	_, err = newServer(context.Background(), cfg, log.WithField("test", "run"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen grpc")
}

func TestServer_CheckoutOverGRPC(t *testing.T) {
	cfg := testServerConfig()
	cfg.StorageDriver = StorageDriverSQLite
	cfg.DatabaseDSN = filepath.Join(t.TempDir(), "storefront.db")
	cfg.SeedFile = testSeedFile

	srv, err := newServer(context.Background(), cfg, log.WithField("test", "run"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.serve(ctx) }()
	defer func() {
		cancel()
		select {
		case err := <-serveErr:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	}()

	conn, err := grpc.NewClient(srv.grpcAddr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	callCtx, callCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer callCancel()

	require.Eventually(t, func() bool {
		resp, err := healthpb.NewHealthClient(conn).Check(callCtx, &healthpb.HealthCheckRequest{})
		return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
	}, 2*time.Second, 20*time.Millisecond)

	client := storefrontv1.NewStorefrontServiceClient(conn)

	basket, err := client.AddBasketLine(callCtx, &storefrontv1.AddBasketLineRequest{UserID: "u-1", ProductID: "P", Quantity: 2})
	require.NoError(t, err)
	require.Len(t, basket.Basket.Lines, 1)

	checkout, err := client.Checkout(callCtx, &storefrontv1.CheckoutRequest{UserID: "u-1", DiscountCode: "SPRING10"})
	require.NoError(t, err)
	assert.Equal(t, "10.00", checkout.Order.TotalAmount)
	assert.Equal(t, "9.00", checkout.Order.PayableAmount)
	assert.Equal(t, storefrontv1.OrderStatusNew, checkout.Order.Status)

	_, err = client.AddBasketLine(callCtx, &storefrontv1.AddBasketLineRequest{UserID: "u-1", ProductID: "P", Quantity: 9})
	require.Error(t, err)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	// outbox worker дренирует событие создания в лог
	require.Eventually(t, func() bool {
		stats, err := srv.deps.outboxRepo.Stats(context.Background())
		return err == nil && stats.PendingCount == 0
	}, 3*time.Second, 20*time.Millisecond)
}
