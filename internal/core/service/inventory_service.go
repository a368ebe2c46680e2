package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/rl1809/shirt-tracker/internal/core/domain"
	"github.com/rl1809/shirt-tracker/internal/port"
)

// ErrSerialExhausted means every generated serial collided; it is a server fault, not a caller conflict.
var ErrSerialExhausted = errors.New("no unique serial number could be generated")

const (
	DefaultPageLimit = 100
	MaxPageLimit     = 1000

	// generated serials carry 32 random bits, so a second collision in a row is
	// practically impossible; the bound only guards against a broken generator.
	maxSerialAttempts = 3
)

type InventoryService struct {
	store port.Store
}

func NewInventoryService(store port.Store) *InventoryService {
	return &InventoryService{store: store}
}

// RegisterShirt creates a shirt. A supplied serial that already exists fails with
// domain.ErrDuplicateSerial; a generated one is regenerated on collision.
func (s *InventoryService) RegisterShirt(ctx context.Context, input domain.ShirtInput) (*domain.Shirt, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	input.Color = strings.TrimSpace(input.Color)
	input.SerialNumber = strings.TrimSpace(input.SerialNumber)

	if input.SerialNumber != "" {
		existing, err := s.store.FindShirtBySerial(ctx, input.SerialNumber)
		if err != nil {
			return nil, fmt.Errorf("serial lookup failed: %w", err)
		}
		if existing != nil {
			return nil, domain.ErrDuplicateSerial
		}
		return s.store.CreateShirt(ctx, input)
	}

	for attempt := 1; attempt <= maxSerialAttempts; attempt++ {
		shirt, err := s.store.CreateShirt(ctx, input)
		if !errors.Is(err, domain.ErrDuplicateSerial) {
			return shirt, err
		}
		log.Printf("inventory: generated serial collided (attempt %d)", attempt)
	}
	return nil, fmt.Errorf("generate serial after %d attempts: %w", maxSerialAttempts, ErrSerialExhausted)
}

func (s *InventoryService) GetShirt(ctx context.Context, id string) (*domain.Shirt, error) {
	shirt, err := s.store.FindShirt(ctx, id)
	if err != nil {
		return nil, err
	}
	if shirt == nil {
		return nil, domain.ErrShirtNotFound
	}
	return shirt, nil
}

func (s *InventoryService) ListShirts(ctx context.Context, skip, limit int) ([]domain.Shirt, error) {
	skip, limit, err := normalizePage(skip, limit)
	if err != nil {
		return nil, err
	}
	return s.store.ListShirts(ctx, skip, limit)
}

func (s *InventoryService) RegisterShipment(ctx context.Context, input domain.ShipmentInput) (*domain.Shipment, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	return s.store.CreateShipment(ctx, input)
}

func (s *InventoryService) GetShipment(ctx context.Context, id string) (*domain.Shipment, error) {
	shipment, err := s.store.FindShipment(ctx, id)
	if err != nil {
		return nil, err
	}
	if shipment == nil {
		return nil, domain.ErrShipmentNotFound
	}
	return shipment, nil
}

func (s *InventoryService) ListShipments(ctx context.Context, skip, limit int) ([]domain.Shipment, error) {
	skip, limit, err := normalizePage(skip, limit)
	if err != nil {
		return nil, err
	}
	return s.store.ListShipments(ctx, skip, limit)
}

// Stats reports a count for every status, zero included.
func (s *InventoryService) Stats(ctx context.Context) (*domain.Stats, error) {
	counts, err := s.store.CountShirtsByStatus(ctx)
	if err != nil {
		return nil, err
	}
	shipments, err := s.store.CountShipments(ctx)
	if err != nil {
		return nil, err
	}

	stats := &domain.Stats{
		ByStatus:  make(map[domain.ShirtStatus]int, len(domain.ShirtStatuses)),
		Shipments: shipments,
	}
	for _, status := range domain.ShirtStatuses {
		stats.ByStatus[status] = 0
	}
	for status, n := range counts {
		stats.ByStatus[status] = n
		stats.Total += n
	}
	return stats, nil
}

func normalizePage(skip, limit int) (int, int, error) {
	if skip < 0 {
		return 0, 0, fmt.Errorf("%w: skip must not be negative", domain.ErrInvalidInput)
	}
	if limit < 0 {
		return 0, 0, fmt.Errorf("%w: limit must not be negative", domain.ErrInvalidInput)
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return skip, limit, nil
}
