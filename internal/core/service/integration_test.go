package service_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/shirt-tracker/internal/adapter/storage"
	"github.com/rl1809/shirt-tracker/internal/core/domain"
	"github.com/rl1809/shirt-tracker/internal/core/service"
)

type testEnv struct {
	redis     *redis.Client
	store     *storage.SQLStore
	cache     *storage.RedisAdapter
	inventory *service.InventoryService
	scans     *service.ScanService
	cleanup   func()
}

func setupTestEnv(t *testing.T) *testEnv {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "root:root@tcp(localhost:3306)/shirttrack?parseTime=true"
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	store, err := storage.Open(ctx, storage.Options{Driver: storage.DialectMySQL, DSN: mysqlDSN})
	if err != nil {
		rdb.Close()
		t.Skipf("MySQL not available: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cache := storage.NewRedisAdapter(rdb, time.Minute)
	return &testEnv{
		redis:     rdb,
		store:     store,
		cache:     cache,
		inventory: service.NewInventoryService(store),
		scans:     service.NewScanService(store, cache, nil),
		cleanup: func() {
			rdb.Close()
			store.Close()
		},
	}
}

func (env *testEnv) shirt(t *testing.T) *domain.Shirt {
	t.Helper()
	shirt, err := env.inventory.RegisterShirt(context.Background(), domain.ShirtInput{
		SerialNumber: "SN-IT-" + uuid.NewString(),
		Color:        "blue",
		Size:         domain.ShirtSizeM,
		Type:         domain.ShirtTypeHooded,
	})
	if err != nil {
		t.Fatalf("register shirt: %v", err)
	}
	return shirt
}

func TestIntegration_FullShipFlow(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	shipment, err := env.inventory.RegisterShipment(ctx, domain.ShipmentInput{TrackingCode: "TRK-IT-" + uuid.NewString()})
	if err != nil {
		t.Fatalf("register shipment: %v", err)
	}

	const shirtCount = 10
	var successCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < shirtCount; i++ {
		shirt := env.shirt(t)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.scans.Scan(ctx, service.ScanRequest{
				Action:     "ship",
				Serial:     shirt.SerialNumber,
				ShipmentID: shipment.ID,
				RequestID:  uuid.NewString(),
			})
			if err == nil {
				successCount.Add(1)
			}
		}()
	}
	wg.Wait()

	if successCount.Load() != shirtCount {
		t.Errorf("expected %d successful scans, got %d", shirtCount, successCount.Load())
	}

	loaded, err := env.inventory.GetShipment(ctx, shipment.ID)
	if err != nil {
		t.Fatalf("get shipment: %v", err)
	}
	if len(loaded.Shirts) != shirtCount {
		t.Errorf("expected %d shirts in shipment, got %d", shirtCount, len(loaded.Shirts))
	}
	for _, s := range loaded.Shirts {
		if s.Status != domain.ShirtStatusShipped {
			t.Errorf("expected shipped, got %s for %s", s.Status, s.SerialNumber)
		}
	}
}

func TestIntegration_ReleaseOnFailedScan(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	shirt := env.shirt(t)
	requestID := uuid.NewString()

	_, err := env.scans.Scan(ctx, service.ScanRequest{Action: "ship", Serial: shirt.SerialNumber, ShipmentID: uuid.NewString(), RequestID: requestID})
	if !errors.Is(err, domain.ErrShipmentNotFound) {
		t.Fatalf("expected ErrShipmentNotFound, got: %v", err)
	}

	exists, _ := env.redis.Exists(ctx, "shirttrack:idem:scan:"+requestID).Result()
	if exists != 0 {
		t.Errorf("expected idempotency key released after failed scan")
	}

	// Retry with the same request id now goes through
	got, err := env.scans.Scan(ctx, service.ScanRequest{Action: "damage", Serial: shirt.SerialNumber, RequestID: requestID})
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if got.Status != domain.ShirtStatusDamaged {
		t.Errorf("expected damaged, got %s", got.Status)
	}
}

func TestIntegration_IdempotencyPreventsDoubleScan(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	shirt := env.shirt(t)
	requestID := "same-request-id-" + uuid.NewString()

	// First call
	_, err := env.scans.Scan(ctx, service.ScanRequest{Action: "damage", Serial: shirt.SerialNumber, RequestID: requestID})
	if err != nil {
		t.Fatalf("first scan failed: %v", err)
	}

	// Second call with same requestID
	_, err = env.scans.Scan(ctx, service.ScanRequest{Action: "damage", Serial: shirt.SerialNumber, RequestID: requestID})
	if !errors.Is(err, service.ErrDuplicateScan) {
		t.Errorf("expected ErrDuplicateScan, got: %v", err)
	}

	ttl, _ := env.redis.TTL(ctx, "shirttrack:idem:scan:"+requestID).Result()
	if ttl <= 0 {
		t.Errorf("expected idempotency key with TTL, got %v", ttl)
	}
}
