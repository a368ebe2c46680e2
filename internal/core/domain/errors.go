package domain

import "errors"

// Transports map these to status codes with errors.Is.
var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrShirtNotFound         = errors.New("shirt not found")
	ErrShipmentNotFound      = errors.New("shipment not found")
	ErrDuplicateSerial       = errors.New("serial number already registered")
	ErrDuplicateTrackingCode = errors.New("tracking code already registered")
	ErrShipmentIDRequired    = errors.New("shipment id required for shipping")
	ErrUnknownAction         = errors.New("unknown scan action")
	ErrActionNotImplemented  = errors.New("scan action not implemented")
)
