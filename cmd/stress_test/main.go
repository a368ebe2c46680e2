package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/shirt-tracker/internal/adapter/storage"
	"github.com/rl1809/shirt-tracker/internal/core/domain"
	"github.com/rl1809/shirt-tracker/internal/core/service"
)

const (
	redisAddr     = "localhost:6379"
	totalRequests = 50
	shirtCount    = 20
)

func main() {
	ctx := context.Background()

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer rdb.Close()

	// Throwaway database
	dir, err := os.MkdirTemp("", "shirttrack-stress")
	if err != nil {
		log.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	store, err := storage.Open(ctx, storage.Options{
		Driver: storage.DialectSQLite,
		DSN:    storage.SQLiteDSN(filepath.Join(dir, "stress.db")),
	})
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}

	// Initialize services
	inventory := service.NewInventoryService(store)
	scans := service.NewScanService(store, storage.NewRedisAdapter(rdb, time.Minute), nil)
	runID := time.Now().UnixNano()

	passed := true
	passed = stressDuplicateSerial(ctx, inventory, runID) && passed
	passed = stressDuplicateScan(ctx, inventory, scans, runID) && passed
	passed = stressBulkShip(ctx, inventory, scans, runID) && passed

	if !passed {
		os.Exit(1)
	}
}

// stressDuplicateSerial registers one serial from many goroutines; exactly one must win.
func stressDuplicateSerial(ctx context.Context, inventory *service.InventoryService, runID int64) bool {
	serial := fmt.Sprintf("SN-STRESS-%d", runID)

	var successCount, dupCount atomic.Int32
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := inventory.RegisterShirt(ctx, domain.ShirtInput{
				SerialNumber: serial,
				Color:        "blue",
				Size:         domain.ShirtSizeM,
				Type:         domain.ShirtTypeHooded,
			})
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrDuplicateSerial):
				dupCount.Add(1)
			default:
				log.Printf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	return report("DUPLICATE SERIAL", time.Since(start), successCount.Load(), dupCount.Load(), 1, totalRequests-1)
}

// stressDuplicateScan replays one damage scan request id; exactly one must apply.
func stressDuplicateScan(ctx context.Context, inventory *service.InventoryService, scans *service.ScanService, runID int64) bool {
	shirt, err := inventory.RegisterShirt(ctx, domain.ShirtInput{Color: "red", Size: domain.ShirtSizeL, Type: domain.ShirtTypeClosed})
	if err != nil {
		log.Fatalf("failed to register shirt: %v", err)
	}
	requestID := fmt.Sprintf("stress-%d", runID)

	var successCount, dupCount atomic.Int32
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := scans.Scan(ctx, service.ScanRequest{Action: "damage", Serial: shirt.SerialNumber, RequestID: requestID})
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, service.ErrDuplicateScan):
				dupCount.Add(1)
			default:
				log.Printf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	return report("DUPLICATE SCAN", time.Since(start), successCount.Load(), dupCount.Load(), 1, totalRequests-1)
}

// stressBulkShip ships distinct shirts into one shipment concurrently; all must land.
func stressBulkShip(ctx context.Context, inventory *service.InventoryService, scans *service.ScanService, runID int64) bool {
	shipment, err := inventory.RegisterShipment(ctx, domain.ShipmentInput{TrackingCode: fmt.Sprintf("TRK-STRESS-%d", runID)})
	if err != nil {
		log.Fatalf("failed to register shipment: %v", err)
	}

	serials := make([]string, shirtCount)
	for i := range serials {
		shirt, err := inventory.RegisterShirt(ctx, domain.ShirtInput{Color: "black", Size: domain.ShirtSizeS, Type: domain.ShirtTypeButtoned})
		if err != nil {
			log.Fatalf("failed to register shirt: %v", err)
		}
		serials[i] = shirt.SerialNumber
	}

	var successCount, failCount atomic.Int32
	var wg sync.WaitGroup
	start := time.Now()

	for i, serial := range serials {
		wg.Add(1)
		go func(i int, serial string) {
			defer wg.Done()

			_, err := scans.Scan(ctx, service.ScanRequest{
				Action:     "ship",
				Serial:     serial,
				ShipmentID: shipment.ID,
				RequestID:  fmt.Sprintf("stress-%d-ship-%d", runID, i),
			})
			if err == nil {
				successCount.Add(1)
			} else {
				log.Printf("ship %s failed: %v", serial, err)
				failCount.Add(1)
			}
		}(i, serial)
	}
	wg.Wait()

	ok := report("BULK SHIP", time.Since(start), successCount.Load(), failCount.Load(), shirtCount, 0)

	loaded, err := inventory.GetShipment(ctx, shipment.ID)
	if err != nil {
		log.Fatalf("failed to load shipment: %v", err)
	}
	if len(loaded.Shirts) == shirtCount {
		fmt.Printf("PASS: Shipment holds %d shirts\n", shirtCount)
	} else {
		fmt.Printf("FAIL: Expected %d shirts in shipment, got %d\n", shirtCount, len(loaded.Shirts))
		ok = false
	}
	return ok
}

func report(name string, elapsed time.Duration, success, fail, wantSuccess, wantFail int32) bool {
	fmt.Printf("========== %s ==========\n", name)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Rejected:         %d\n", fail)
	fmt.Printf("Duration:         %v\n", elapsed)

	if success == wantSuccess && fail == wantFail {
		fmt.Printf("PASS: %d succeeded, %d rejected\n", success, fail)
		return true
	}
	fmt.Printf("FAIL: Expected %d success/%d rejected, got %d/%d\n", wantSuccess, wantFail, success, fail)
	return false
}
