package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const serialPrefix = "SN-"

type ShirtSize string

const (
	ShirtSizeXS  ShirtSize = "XS"
	ShirtSizeS   ShirtSize = "S"
	ShirtSizeM   ShirtSize = "M"
	ShirtSizeL   ShirtSize = "L"
	ShirtSizeXL  ShirtSize = "XL"
	ShirtSizeXXL ShirtSize = "XXL"
)

func (s ShirtSize) Valid() bool {
	switch s {
	case ShirtSizeXS, ShirtSizeS, ShirtSizeM, ShirtSizeL, ShirtSizeXL, ShirtSizeXXL:
		return true
	}
	return false
}

type ShirtType string

const (
	ShirtTypeButtoned ShirtType = "buttoned"
	ShirtTypeClosed   ShirtType = "closed"
	ShirtTypeHooded   ShirtType = "hooded"
)

func (t ShirtType) Valid() bool {
	switch t {
	case ShirtTypeButtoned, ShirtTypeClosed, ShirtTypeHooded:
		return true
	}
	return false
}

type ShirtStatus string

const (
	ShirtStatusPending  ShirtStatus = "pending"
	ShirtStatusInStock  ShirtStatus = "in_stock"
	ShirtStatusShipped  ShirtStatus = "shipped"
	ShirtStatusDamaged  ShirtStatus = "damaged"
	ShirtStatusAccepted ShirtStatus = "accepted"
)

// ShirtStatuses lists every status in lifecycle order.
var ShirtStatuses = []ShirtStatus{
	ShirtStatusPending,
	ShirtStatusInStock,
	ShirtStatusShipped,
	ShirtStatusDamaged,
	ShirtStatusAccepted,
}

func (s ShirtStatus) Valid() bool {
	for _, status := range ShirtStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// ShipmentSummary is the shallow view of a shipment carried on a shirt.
type ShipmentSummary struct {
	ID           string
	TrackingCode string
}

type Shirt struct {
	ID           string
	SerialNumber string
	Color        string
	Size         ShirtSize
	Type         ShirtType
	Status       ShirtStatus
	ShipmentID   *string
	Shipment     *ShipmentSummary
}

func (s *Shirt) IsInStock() bool {
	return s.Status == ShirtStatusInStock
}

func (s *Shirt) IsShipped() bool {
	return s.Status == ShirtStatusShipped
}

func (s *Shirt) IsDamaged() bool {
	return s.Status == ShirtStatusDamaged
}

// ShirtInput carries the caller-supplied fields of a new shirt.
// An empty SerialNumber asks the repository to generate one.
type ShirtInput struct {
	SerialNumber string
	Color        string
	Size         ShirtSize
	Type         ShirtType
}

func (in ShirtInput) Validate() error {
	if strings.TrimSpace(in.Color) == "" {
		return fmt.Errorf("%w: color is required", ErrInvalidInput)
	}
	if !in.Size.Valid() {
		return fmt.Errorf("%w: size must be one of XS, S, M, L, XL, XXL", ErrInvalidInput)
	}
	if !in.Type.Valid() {
		return fmt.Errorf("%w: type must be one of buttoned, closed, hooded", ErrInvalidInput)
	}
	return nil
}

// NewSerialNumber returns "SN-" followed by 8 uppercase hex characters.
// Collisions are resolved by the caller retrying on ErrDuplicateSerial.
func NewSerialNumber() string {
	return serialPrefix + strings.ToUpper(uuid.NewString()[:8])
}
