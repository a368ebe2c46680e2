package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/shirt-tracker/internal/adapter/storage/storagetest"
	"github.com/rl1809/shirt-tracker/internal/core/domain"
)

// Mock CacheRepository
type mockCacheRepo struct {
	idempotencySet map[string]bool
	released       []string
	err            error
	mu             sync.Mutex
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{idempotencySet: make(map[string]bool)}
}

func (m *mockCacheRepo) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return false, m.err
	}
	if m.idempotencySet[key] {
		return false, nil
	}
	m.idempotencySet[key] = true
	return true, nil
}

func (m *mockCacheRepo) ReleaseIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.idempotencySet, key)
	m.released = append(m.released, key)
	return nil
}

// Mock EventPublisher
type mockPublisher struct {
	mu     sync.Mutex
	keys   []string
	events []LifecycleEvent
	err    error
}

func (m *mockPublisher) Publish(ctx context.Context, key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	m.keys = append(m.keys, key)
	m.events = append(m.events, value.(LifecycleEvent))
	return nil
}

func (m *mockPublisher) Close() error { return nil }

type scanFixture struct {
	inventory *InventoryService
	scans     *ScanService
	cache     *mockCacheRepo
	events    *mockPublisher
}

func newScanFixture(t *testing.T) *scanFixture {
	t.Helper()

	store := storagetest.NewSQLiteStore(t)
	cache := newMockCacheRepo()
	events := &mockPublisher{}
	return &scanFixture{
		inventory: NewInventoryService(store),
		scans:     NewScanService(store, cache, events),
		cache:     cache,
		events:    events,
	}
}

func (f *scanFixture) shirt(t *testing.T) *domain.Shirt {
	t.Helper()
	shirt, err := f.inventory.RegisterShirt(context.Background(), blueM())
	require.NoError(t, err)
	return shirt
}

func (f *scanFixture) shipment(t *testing.T, code string) *domain.Shipment {
	t.Helper()
	shipment, err := f.inventory.RegisterShipment(context.Background(), domain.ShipmentInput{TrackingCode: code})
	require.NoError(t, err)
	return shipment
}

func TestScan_View(t *testing.T) {
	f := newScanFixture(t)
	shirt := f.shirt(t)

	got, err := f.scans.Scan(context.Background(), ScanRequest{Action: "VIEW", Serial: shirt.SerialNumber, RequestID: "r-view"})
	require.NoError(t, err)
	assert.Equal(t, shirt.ID, got.ID)
	assert.Equal(t, domain.ShirtStatusInStock, got.Status)

	assert.Empty(t, f.events.events)
	assert.Empty(t, f.cache.idempotencySet, "read-only scans never claim a key")
}

func TestScan_Lookup(t *testing.T) {
	f := newScanFixture(t)
	shirt := f.shirt(t)

	got, err := f.scans.Lookup(context.Background(), shirt.SerialNumber)
	require.NoError(t, err)
	assert.Equal(t, shirt.SerialNumber, got.SerialNumber)

	_, err = f.scans.Lookup(context.Background(), "SN-NOPE")
	assert.ErrorIs(t, err, domain.ErrShirtNotFound)
}

func TestScan_Damage(t *testing.T) {
	ctx := context.Background()
	f := newScanFixture(t)
	shirt := f.shirt(t)

	got, err := f.scans.Scan(ctx, ScanRequest{Action: "damage", Serial: shirt.SerialNumber})
	require.NoError(t, err)
	assert.Equal(t, domain.ShirtStatusDamaged, got.Status)

	// damaging is allowed from any state, including damaged
	again, err := f.scans.Scan(ctx, ScanRequest{Action: "damage", Serial: shirt.SerialNumber})
	require.NoError(t, err)
	assert.Equal(t, domain.ShirtStatusDamaged, again.Status)

	require.Len(t, f.events.events, 2)
	assert.Equal(t, EventShirtDamaged, f.events.events[0].Event)
	assert.Equal(t, shirt.SerialNumber, f.events.keys[0])
	assert.Equal(t, string(domain.ShirtStatusDamaged), f.events.events[0].Status)
}

func TestScan_ShipFromStock(t *testing.T) {
	ctx := context.Background()
	f := newScanFixture(t)
	shirt := f.shirt(t)
	shipment := f.shipment(t, "TRK-SHIP")

	got, err := f.scans.Scan(ctx, ScanRequest{Action: "ship", Serial: shirt.SerialNumber, ShipmentID: shipment.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.ShirtStatusShipped, got.Status)
	require.NotNil(t, got.ShipmentID)
	assert.Equal(t, shipment.ID, *got.ShipmentID)
	require.NotNil(t, got.Shipment)
	assert.Equal(t, "TRK-SHIP", got.Shipment.TrackingCode)

	loaded, err := f.inventory.GetShipment(ctx, shipment.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Shirts, 1)
	assert.Equal(t, shirt.ID, loaded.Shirts[0].ID)

	require.Len(t, f.events.events, 1)
	assert.Equal(t, EventShirtShipped, f.events.events[0].Event)
	assert.Equal(t, shipment.ID, *f.events.events[0].ShipmentID)
}

func TestScan_ShipDamagedKeepsStatus(t *testing.T) {
	ctx := context.Background()
	f := newScanFixture(t)
	shirt := f.shirt(t)
	shipment := f.shipment(t, "TRK-DMG")

	_, err := f.scans.Scan(ctx, ScanRequest{Action: "damage", Serial: shirt.SerialNumber})
	require.NoError(t, err)

	got, err := f.scans.Scan(ctx, ScanRequest{Action: "ship", Serial: shirt.SerialNumber, ShipmentID: shipment.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.ShirtStatusDamaged, got.Status)
	require.NotNil(t, got.ShipmentID)
	assert.Equal(t, shipment.ID, *got.ShipmentID)
}

func TestScan_ShipToOtherShipment(t *testing.T) {
	ctx := context.Background()
	f := newScanFixture(t)
	shirt := f.shirt(t)
	first := f.shipment(t, "TRK-A")
	second := f.shipment(t, "TRK-B")

	_, err := f.scans.Scan(ctx, ScanRequest{Action: "ship", Serial: shirt.SerialNumber, ShipmentID: first.ID})
	require.NoError(t, err)

	got, err := f.scans.Scan(ctx, ScanRequest{Action: "ship", Serial: shirt.SerialNumber, ShipmentID: second.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.ShirtStatusShipped, got.Status)
	assert.Equal(t, second.ID, *got.ShipmentID)
}

func TestScan_Errors(t *testing.T) {
	f := newScanFixture(t)
	shirt := f.shirt(t)

	tests := []struct {
		name    string
		req     ScanRequest
		wantErr error
	}{
		{"unknown serial before action check", ScanRequest{Action: "explode", Serial: "SN-MISSING"}, domain.ErrShirtNotFound},
		{"blank serial", ScanRequest{Action: "view", Serial: "  "}, domain.ErrInvalidInput},
		{"unknown action", ScanRequest{Action: "explode", Serial: shirt.SerialNumber}, domain.ErrUnknownAction},
		{"ship without shipment", ScanRequest{Action: "ship", Serial: shirt.SerialNumber}, domain.ErrShipmentIDRequired},
		{"ship to missing shipment", ScanRequest{Action: "ship", Serial: shirt.SerialNumber, ShipmentID: "nope"}, domain.ErrShipmentNotFound},
		{"remove", ScanRequest{Action: "remove", Serial: shirt.SerialNumber}, domain.ErrActionNotImplemented},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.scans.Scan(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	got, err := f.inventory.GetShirt(context.Background(), shirt.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ShirtStatusInStock, got.Status)
	assert.Nil(t, got.ShipmentID)
	assert.Empty(t, f.events.events)
}

func TestScan_DuplicateRequest(t *testing.T) {
	ctx := context.Background()
	f := newScanFixture(t)
	shirt := f.shirt(t)

	req := ScanRequest{Action: "damage", Serial: shirt.SerialNumber, RequestID: "req-1"}
	_, err := f.scans.Scan(ctx, req)
	require.NoError(t, err)

	_, err = f.scans.Scan(ctx, req)
	assert.ErrorIs(t, err, ErrDuplicateScan)
	assert.True(t, f.cache.idempotencySet["scan:req-1"])

	assert.Len(t, f.events.events, 1, "duplicate scan must not publish twice")
}

func TestScan_FailedScanReleasesKey(t *testing.T) {
	ctx := context.Background()
	f := newScanFixture(t)
	shirt := f.shirt(t)

	req := ScanRequest{Action: "ship", Serial: shirt.SerialNumber, ShipmentID: "missing", RequestID: "req-retry"}
	_, err := f.scans.Scan(ctx, req)
	require.ErrorIs(t, err, domain.ErrShipmentNotFound)
	assert.Equal(t, []string{"scan:req-retry"}, f.cache.released)

	shipment := f.shipment(t, "TRK-RETRY")
	req.ShipmentID = shipment.ID
	got, err := f.scans.Scan(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, domain.ShirtStatusShipped, got.Status)
}

func TestScan_CacheError(t *testing.T) {
	f := newScanFixture(t)
	shirt := f.shirt(t)
	f.cache.err = errors.New("redis down")

	_, err := f.scans.Scan(context.Background(), ScanRequest{Action: "damage", Serial: shirt.SerialNumber, RequestID: "r"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "idempotency check failed")

	got, err := f.inventory.GetShirt(context.Background(), shirt.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ShirtStatusInStock, got.Status)
}

func TestScan_PublishErrorDoesNotFail(t *testing.T) {
	f := newScanFixture(t)
	shirt := f.shirt(t)
	f.events.err = errors.New("broker unavailable")

	got, err := f.scans.Scan(context.Background(), ScanRequest{Action: "damage", Serial: shirt.SerialNumber})
	require.NoError(t, err)
	assert.Equal(t, domain.ShirtStatusDamaged, got.Status)
}

func TestScan_WithoutCacheOrPublisher(t *testing.T) {
	store := storagetest.NewSQLiteStore(t)
	inventory := NewInventoryService(store)
	scans := NewScanService(store, nil, nil)

	shirt, err := inventory.RegisterShirt(context.Background(), blueM())
	require.NoError(t, err)

	req := ScanRequest{Action: "damage", Serial: shirt.SerialNumber, RequestID: "ignored"}
	_, err = scans.Scan(context.Background(), req)
	require.NoError(t, err)
	_, err = scans.Scan(context.Background(), req)
	require.NoError(t, err)
}

func TestScan_ConcurrentDuplicateRequests(t *testing.T) {
	f := newScanFixture(t)
	shirt := f.shirt(t)

	const workers = 20
	var (
		successCount atomic.Int32
		dupCount     atomic.Int32
		wg           sync.WaitGroup
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.scans.Scan(context.Background(), ScanRequest{Action: "damage", Serial: shirt.SerialNumber, RequestID: "same"})
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, ErrDuplicateScan):
				dupCount.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, successCount.Load())
	assert.EqualValues(t, workers-1, dupCount.Load())
}

func TestScan_ConcurrentDistinctShirts(t *testing.T) {
	f := newScanFixture(t)
	shipment := f.shipment(t, "TRK-BULK")

	const shirts = 10
	serials := make([]string, shirts)
	for i := range serials {
		serials[i] = f.shirt(t).SerialNumber
	}

	var wg sync.WaitGroup
	for i, serial := range serials {
		wg.Add(1)
		go func(i int, serial string) {
			defer wg.Done()
			_, err := f.scans.Scan(context.Background(), ScanRequest{
				Action:     "ship",
				Serial:     serial,
				ShipmentID: shipment.ID,
				RequestID:  fmt.Sprintf("bulk-%d", i),
			})
			assert.NoError(t, err)
		}(i, serial)
	}
	wg.Wait()

	loaded, err := f.inventory.GetShipment(context.Background(), shipment.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Shirts, shirts)
}
