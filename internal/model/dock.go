package model

import "fmt"

// DockType describes the kind of loading bay.
type DockType string

const (
	DockStandard  DockType = "STANDARD"
	DockColdChain DockType = "COLD_CHAIN"
	DockVanAccess DockType = "VAN_ACCESS"
)

// Valid reports whether t is a declared dock type.
func (t DockType) Valid() bool {
	switch t {
	case DockStandard, DockColdChain, DockVanAccess:
		return true
	}
	return false
}

// ParseDockType converts raw input into a DockType. Empty input selects
// DockStandard.
func ParseDockType(raw string) (DockType, error) {
	if raw == "" {
		return DockStandard, nil
	}
	t := DockType(raw)
	if !t.Valid() {
		return "", fmt.Errorf("unknown dock type %q", raw)
	}
	return t, nil
}

// Dock is a loading bay. A dock holds at most one shipment; IsOccupied is true
// exactly when CurrentShipmentID is set.
type Dock struct {
	ID                string   `json:"id"`
	Number            string   `json:"number"`
	Type              DockType `json:"dock_type"`
	IsOccupied        bool     `json:"is_occupied"`
	CurrentShipmentID *string  `json:"current_shipment_id"`
}

// HasShipment reports whether a shipment is bound to the dock.
func (d *Dock) HasShipment() bool {
	return d.CurrentShipmentID != nil && *d.CurrentShipmentID != ""
}

// HeldBy reports whether the dock is bound to the given shipment.
func (d *Dock) HeldBy(shipmentID string) bool {
	return d.HasShipment() && *d.CurrentShipmentID == shipmentID
}

// Bind attaches a shipment and marks the dock occupied.
func (d *Dock) Bind(shipmentID string) {
	id := shipmentID
	d.CurrentShipmentID = &id
	d.IsOccupied = true
}

// Release frees the dock.
func (d *Dock) Release() {
	d.CurrentShipmentID = nil
	d.IsOccupied = false
}

// Clone returns a deep copy.
func (d *Dock) Clone() *Dock {
	out := *d
	out.CurrentShipmentID = cloneString(d.CurrentShipmentID)
	return &out
}
