// Package model contains the warehouse entities shared by the engine, the
// stores and the HTTP layer. Status and type enumerations are closed string
// types: only the declared constants are valid and Parse* rejects the rest.
//
// Importing model sets decimal.MarshalJSONWithoutQuotes for the whole
// process, so every decimal.Decimal encodes as a bare JSON number, including
// ones outside this package such as scan results and capacity details.
package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Weights travel as plain JSON numbers (600, not "600"). Process-wide.
	decimal.MarshalJSONWithoutQuotes = true
}

// PalletStatus tracks where a pallet is in the loading flow.
type PalletStatus string

const (
	PalletStaged        PalletStatus = "STAGED"
	PalletLoadingToDock PalletStatus = "LOADING_TO_DOCK"
	PalletInTransit     PalletStatus = "IN_TRANSIT"
	PalletDelivered     PalletStatus = "DELIVERED"
)

// Valid reports whether s is one of the declared pallet statuses.
func (s PalletStatus) Valid() bool {
	switch s {
	case PalletStaged, PalletLoadingToDock, PalletInTransit, PalletDelivered:
		return true
	}
	return false
}

// ParsePalletStatus converts raw input into a PalletStatus.
func ParsePalletStatus(raw string) (PalletStatus, error) {
	s := PalletStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown pallet status %q", raw)
	}
	return s, nil
}

// Pallet is a physical unit of goods identified by its barcode. Weight is nil
// for pallets that were never weighed.
type Pallet struct {
	ID            string           `json:"id"`
	Barcode       string           `json:"barcode"`
	Status        PalletStatus     `json:"status"`
	Weight        *decimal.Decimal `json:"weight"`
	CurrentDockID *string          `json:"current_dock_id"`
	ShipmentID    *string          `json:"shipment_id"`
	CreatedAt     time.Time        `json:"created_at"`
}

// EffectiveWeight returns the weight used for capacity checks. Unweighed
// pallets count as zero.
func (p *Pallet) EffectiveWeight() decimal.Decimal {
	if p.Weight == nil {
		return decimal.Zero
	}
	return *p.Weight
}

// BoundToDock reports whether the pallet already sits on a dock.
func (p *Pallet) BoundToDock() bool {
	return p.CurrentDockID != nil && *p.CurrentDockID != ""
}

// InShipment reports whether the pallet is bound to the given shipment.
func (p *Pallet) InShipment(shipmentID string) bool {
	return p.ShipmentID != nil && *p.ShipmentID == shipmentID
}

// Clone returns a deep copy so stores can hand out records without sharing
// pointer fields.
func (p *Pallet) Clone() *Pallet {
	out := *p
	if p.Weight != nil {
		w := *p.Weight
		out.Weight = &w
	}
	out.CurrentDockID = cloneString(p.CurrentDockID)
	out.ShipmentID = cloneString(p.ShipmentID)
	return &out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
