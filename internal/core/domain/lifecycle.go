package domain

import (
	"fmt"
	"strings"
)

type ActionKind string

const (
	ActionView   ActionKind = "view"
	ActionDamage ActionKind = "damage"
	ActionShip   ActionKind = "ship"
	ActionRemove ActionKind = "remove"
)

// ScanAction is a parsed scan. ShipmentID is only set for ActionShip.
type ScanAction struct {
	Kind       ActionKind
	ShipmentID string
}

// Mutates reports whether applying the action writes to the shirt.
func (a ScanAction) Mutates() bool {
	return a.Kind == ActionDamage || a.Kind == ActionShip
}

// ParseAction turns the raw scan parameters into a ScanAction.
// Action tokens are matched case-insensitively.
func ParseAction(action, shipmentID string) (ScanAction, error) {
	kind := ActionKind(strings.ToLower(strings.TrimSpace(action)))
	switch kind {
	case ActionView, ActionDamage, ActionRemove:
		return ScanAction{Kind: kind}, nil
	case ActionShip:
		shipmentID = strings.TrimSpace(shipmentID)
		if shipmentID == "" {
			return ScanAction{}, ErrShipmentIDRequired
		}
		return ScanAction{Kind: ActionShip, ShipmentID: shipmentID}, nil
	default:
		return ScanAction{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

// StatusAfterDamage is valid from every status.
func StatusAfterDamage(ShirtStatus) ShirtStatus {
	return ShirtStatusDamaged
}

// StatusAfterAttach is the status a shirt takes when it is put into a shipment.
// Only in_stock shirts are promoted; everything else keeps its status.
func StatusAfterAttach(current ShirtStatus) ShirtStatus {
	if current == ShirtStatusInStock {
		return ShirtStatusShipped
	}
	return current
}
