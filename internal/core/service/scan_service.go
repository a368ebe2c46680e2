package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/rl1809/shirt-tracker/internal/core/domain"
	"github.com/rl1809/shirt-tracker/internal/port"
)

var ErrDuplicateScan = errors.New("duplicate scan request")

const (
	EventShirtDamaged = "shirt.damaged"
	EventShirtShipped = "shirt.shipped"
)

type ScanRequest struct {
	Action     string
	Serial     string
	ShipmentID string
	// RequestID makes a mutating scan idempotent when a cache is configured.
	RequestID string
}

// LifecycleEvent is published after a scan changed a shirt.
type LifecycleEvent struct {
	Event        string    `json:"event"`
	ShirtID      string    `json:"shirt_id"`
	SerialNumber string    `json:"serial_number"`
	Status       string    `json:"status"`
	ShipmentID   *string   `json:"shipment_id,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

type ScanService struct {
	store  port.Store
	cache  port.CacheRepository
	events port.EventPublisher
	now    func() time.Time
}

// NewScanService wires the scan engine. cache and events may be nil.
func NewScanService(store port.Store, cache port.CacheRepository, events port.EventPublisher) *ScanService {
	return &ScanService{
		store:  store,
		cache:  cache,
		events: events,
		now:    time.Now,
	}
}

// Scan applies one scan to the shirt with the given serial. The lookup, the
// action and the write share one transaction; nothing is written on error.
func (s *ScanService) Scan(ctx context.Context, req ScanRequest) (*domain.Shirt, error) {
	serial := strings.TrimSpace(req.Serial)
	if serial == "" {
		return nil, fmt.Errorf("%w: serial is required", domain.ErrInvalidInput)
	}

	var (
		result  *domain.Shirt
		action  domain.ScanAction
		claimed string
	)
	err := s.store.WithTx(ctx, func(repo port.DatabaseRepository) error {
		shirt, err := repo.FindShirtBySerial(ctx, serial)
		if err != nil {
			return fmt.Errorf("shirt lookup failed: %w", err)
		}
		if shirt == nil {
			return domain.ErrShirtNotFound
		}

		action, err = domain.ParseAction(req.Action, req.ShipmentID)
		if err != nil {
			return err
		}

		if action.Mutates() {
			claimed, err = s.claim(ctx, req.RequestID)
			if err != nil {
				return err
			}
		}

		result, err = s.apply(ctx, repo, shirt, action)
		return err
	})
	if err != nil {
		if claimed != "" {
			if releaseErr := s.cache.ReleaseIdempotency(ctx, claimed); releaseErr != nil {
				log.Printf("scan: failed to release idempotency key %s: %v", claimed, releaseErr)
			}
		}
		return nil, err
	}

	if action.Mutates() {
		s.publish(ctx, action, result)
	}
	return result, nil
}

// Lookup is the read-only scan.
func (s *ScanService) Lookup(ctx context.Context, serial string) (*domain.Shirt, error) {
	return s.Scan(ctx, ScanRequest{Action: string(domain.ActionView), Serial: serial})
}

func (s *ScanService) apply(ctx context.Context, repo port.DatabaseRepository, shirt *domain.Shirt, action domain.ScanAction) (*domain.Shirt, error) {
	switch action.Kind {
	case domain.ActionView:
		return shirt, nil

	case domain.ActionDamage:
		updated, err := repo.UpdateShirtStatus(ctx, shirt.SerialNumber, domain.StatusAfterDamage(shirt.Status))
		return found(updated, err)

	case domain.ActionShip:
		shipment, err := repo.FindShipment(ctx, action.ShipmentID)
		if err != nil {
			return nil, fmt.Errorf("shipment lookup failed: %w", err)
		}
		if shipment == nil {
			return nil, domain.ErrShipmentNotFound
		}
		updated, err := repo.AttachShirtToShipment(ctx, shirt.SerialNumber, shipment.ID)
		return found(updated, err)

	case domain.ActionRemove:
		return nil, domain.ErrActionNotImplemented
	}

	return nil, fmt.Errorf("%w: %q", domain.ErrUnknownAction, action.Kind)
}

func (s *ScanService) claim(ctx context.Context, requestID string) (string, error) {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" || s.cache == nil {
		return "", nil
	}

	key := "scan:" + requestID
	ok, err := s.cache.SetIdempotency(ctx, key)
	if err != nil {
		return "", fmt.Errorf("idempotency check failed: %w", err)
	}
	if !ok {
		return "", ErrDuplicateScan
	}
	return key, nil
}

func (s *ScanService) publish(ctx context.Context, action domain.ScanAction, shirt *domain.Shirt) {
	if s.events == nil {
		return
	}

	event := LifecycleEvent{
		Event:        EventShirtDamaged,
		ShirtID:      shirt.ID,
		SerialNumber: shirt.SerialNumber,
		Status:       string(shirt.Status),
		ShipmentID:   shirt.ShipmentID,
		OccurredAt:   s.now().UTC(),
	}
	if action.Kind == domain.ActionShip {
		event.Event = EventShirtShipped
	}

	if err := s.events.Publish(ctx, shirt.SerialNumber, event); err != nil {
		log.Printf("scan: failed to publish %s for %s: %v", event.Event, shirt.SerialNumber, err)
	}
}

// found turns a vanished row into ErrShirtNotFound.
func found(shirt *domain.Shirt, err error) (*domain.Shirt, error) {
	if err != nil {
		return nil, err
	}
	if shirt == nil {
		return nil, domain.ErrShirtNotFound
	}
	return shirt, nil
}
