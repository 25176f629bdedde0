package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultMaxWeightCapacity is the weight ceiling (kg) applied when a shipment
// is created without one.
var DefaultMaxWeightCapacity = decimal.NewFromInt(12000)

// ShipmentStatus tracks the operational milestones of a shipment.
type ShipmentStatus string

const (
	ShipmentPending    ShipmentStatus = "PENDING"
	ShipmentInProgress ShipmentStatus = "IN_PROGRESS"
	ShipmentCollected  ShipmentStatus = "COLLECTED"
	ShipmentCancelled  ShipmentStatus = "CANCELLED"
	ShipmentShipped    ShipmentStatus = "SHIPPED"
)

// Valid reports whether s is a declared shipment status.
func (s ShipmentStatus) Valid() bool {
	switch s {
	case ShipmentPending, ShipmentInProgress, ShipmentCollected, ShipmentCancelled, ShipmentShipped:
		return true
	}
	return false
}

// ParseShipmentStatus converts raw input into a ShipmentStatus. Empty input
// selects ShipmentPending.
func ParseShipmentStatus(raw string) (ShipmentStatus, error) {
	if raw == "" {
		return ShipmentPending, nil
	}
	s := ShipmentStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown shipment status %q", raw)
	}
	return s, nil
}

// Shipment is a transport job with a weight ceiling.
type Shipment struct {
	ID                string          `json:"id"`
	ReferenceNumber   string          `json:"reference_number"`
	Origin            string          `json:"origin"`
	Destination       string          `json:"destination"`
	Status            ShipmentStatus  `json:"status"`
	MaxWeightCapacity decimal.Decimal `json:"max_weight_capacity"`
	CreatedAt         time.Time       `json:"created_at"`
}

// Clone returns a copy.
func (s *Shipment) Clone() *Shipment {
	out := *s
	return &out
}
