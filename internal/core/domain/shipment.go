package domain

import (
	"fmt"
	"strings"
	"time"
)

type Shipment struct {
	ID           string
	TrackingCode string
	CreatedAt    time.Time
	Shirts       []Shirt
}

func (s *Shipment) Summary() ShipmentSummary {
	return ShipmentSummary{ID: s.ID, TrackingCode: s.TrackingCode}
}

type ShipmentInput struct {
	TrackingCode string
}

func (in ShipmentInput) Validate() error {
	if strings.TrimSpace(in.TrackingCode) == "" {
		return fmt.Errorf("%w: tracking_code is required", ErrInvalidInput)
	}
	return nil
}

// Stats is the dashboard view over the whole inventory.
type Stats struct {
	Total     int
	ByStatus  map[ShirtStatus]int
	Shipments int
}
