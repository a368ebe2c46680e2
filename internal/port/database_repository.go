package port

import (
	"context"

	"github.com/rl1809/shirt-tracker/internal/core/domain"
)

// DatabaseRepository is the entity repository. Lookups return (nil, nil) when nothing matches.
type DatabaseRepository interface {
	// FindShirt looks a shirt up by primary id
	FindShirt(ctx context.Context, id string) (*domain.Shirt, error)

	// FindShirtBySerial looks a shirt up by its unique serial number
	FindShirtBySerial(ctx context.Context, serial string) (*domain.Shirt, error)

	// ListShirts returns a page of shirts with their shipment summary
	ListShirts(ctx context.Context, offset, limit int) ([]domain.Shirt, error)

	// CreateShirt inserts a shirt, generating a serial when none is supplied
	CreateShirt(ctx context.Context, input domain.ShirtInput) (*domain.Shirt, error)

	// UpdateShirtStatus overwrites the status of the shirt with the given serial
	UpdateShirtStatus(ctx context.Context, serial string, status domain.ShirtStatus) (*domain.Shirt, error)

	// AttachShirtToShipment assigns the shirt to a shipment and applies the attach transition
	AttachShirtToShipment(ctx context.Context, serial, shipmentID string) (*domain.Shirt, error)

	FindShipment(ctx context.Context, id string) (*domain.Shipment, error)
	ListShipments(ctx context.Context, offset, limit int) ([]domain.Shipment, error)
	CreateShipment(ctx context.Context, input domain.ShipmentInput) (*domain.Shipment, error)

	CountShirtsByStatus(ctx context.Context) (map[domain.ShirtStatus]int, error)
	CountShipments(ctx context.Context) (int, error)
}

// TxRunner scopes a unit of work to one transaction. The transaction is committed
// when fn returns nil and rolled back on any error or panic.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(repo DatabaseRepository) error) error
}

type Store interface {
	DatabaseRepository
	TxRunner
}
