// Package warehouse implements the assignment rules that decide whether a
// pallet scan or a dock assignment succeeds. The Engine combines two guards:
// a short-lived scan lock that absorbs scanner retransmissions, and row locks
// taken inside a store transaction, which are what keeps the data correct.
package warehouse

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dharsanguruparan/DockGuard/internal/model"
)

const (
	// DefaultLockPrefix is prepended to the barcode to form the scan lock key.
	DefaultLockPrefix = "scan_lock:"
	// DefaultPalletScanTTL is how long a pallet creation holds its barcode.
	DefaultPalletScanTTL = 10 * time.Second
	// DefaultDockScanTTL is how long a scan-to-dock holds its barcode.
	DefaultDockScanTTL = 5 * time.Second
)

// ReleaseHook is invoked after a dock release has committed.
type ReleaseHook func(ctx context.Context, shipment *model.Shipment) error

// Options tunes an Engine. Zero values fall back to the defaults above.
type Options struct {
	LockPrefix      string
	PalletScanTTL   time.Duration
	DockScanTTL     time.Duration
	DefaultCapacity decimal.Decimal
	OnRelease       ReleaseHook
	Now             func() time.Time
	NewID           func() string
}

// Engine validates and applies warehouse state transitions. It is safe for
// concurrent use; all shared state lives in the Store and the Gate.
type Engine struct {
	store Store
	gate  Gate
	opts  Options
}

// New constructs an Engine.
func New(store Store, gate Gate, opts Options) *Engine {
	if opts.LockPrefix == "" {
		opts.LockPrefix = DefaultLockPrefix
	}
	if opts.PalletScanTTL <= 0 {
		opts.PalletScanTTL = DefaultPalletScanTTL
	}
	if opts.DockScanTTL <= 0 {
		opts.DockScanTTL = DefaultDockScanTTL
	}
	if !opts.DefaultCapacity.IsPositive() {
		opts.DefaultCapacity = model.DefaultMaxWeightCapacity
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Engine{store: store, gate: gate, opts: opts}
}

// Assignment confirms a dock/shipment binding.
type Assignment struct {
	Dock     *model.Dock     `json:"dock"`
	Shipment *model.Shipment `json:"shipment"`
	// Unchanged is true when the dock already held this shipment.
	Unchanged bool `json:"unchanged"`
}

// ScanResult confirms a pallet was loaded and reports the shipment's load.
type ScanResult struct {
	Message            string          `json:"message"`
	PalletID           string          `json:"pallet_id"`
	DockNumber         string          `json:"dock_number"`
	ShipmentRef        string          `json:"shipment_reference"`
	CurrentTotalWeight decimal.Decimal `json:"current_total_weight"`
	CapacityLeft       decimal.Decimal `json:"capacity_left"`
}

// Release confirms a dock was freed.
type Release struct {
	Shipment   *model.Shipment `json:"shipment"`
	DockNumber string          `json:"dock_number"`
}

// PickupStatus answers whether a driver may proceed with a pickup.
type PickupStatus struct {
	ReferenceNumber string               `json:"reference_number"`
	Status          model.ShipmentStatus `json:"status"`
	CanProceed      bool                 `json:"can_proceed"`
	Message         string               `json:"message"`
}

// LoadReport summarises the weight bound to a shipment.
type LoadReport struct {
	Shipment           *model.Shipment `json:"shipment"`
	PalletCount        int             `json:"pallet_count"`
	CurrentTotalWeight decimal.Decimal `json:"current_total_weight"`
	MaxWeightCapacity  decimal.Decimal `json:"max_weight_capacity"`
	CapacityLeft       decimal.Decimal `json:"capacity_left"`
}

// Manifest lists every pallet that was bound to a shipment.
type Manifest struct {
	Shipment    *model.Shipment `json:"shipment"`
	Pallets     []*model.Pallet `json:"pallets"`
	TotalWeight decimal.Decimal `json:"total_weight"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// NewShipment carries the inputs of CreateShipment. Status and
// MaxWeightCapacity are optional.
type NewShipment struct {
	ReferenceNumber   string
	Origin            string
	Destination       string
	Status            model.ShipmentStatus
	MaxWeightCapacity *decimal.Decimal
}

// CreatePallet registers a newly scanned barcode as a STAGED pallet.
func (e *Engine) CreatePallet(ctx context.Context, barcode string, weight *decimal.Decimal) (*model.Pallet, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, newError(KindInvalidArgument, nil, "barcode is required")
	}
	if weight != nil && weight.IsNegative() {
		return nil, newError(KindInvalidArgument, map[string]string{"weight": weight.String()}, "weight must not be negative")
	}
	if err := e.acquire(ctx, barcode, e.opts.PalletScanTTL); err != nil {
		return nil, err
	}
	if _, err := e.store.PalletByBarcode(ctx, barcode); err == nil {
		return nil, barcodeTaken(barcode, nil)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("lookup pallet %s: %w", barcode, err)
	}
	p := &model.Pallet{
		ID:        e.opts.NewID(),
		Barcode:   barcode,
		Status:    model.PalletStaged,
		Weight:    weight,
		CreatedAt: e.opts.Now().UTC(),
	}
	if err := e.store.CreatePallet(ctx, p); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, barcodeTaken(barcode, err)
		}
		return nil, fmt.Errorf("create pallet: %w", err)
	}
	log.Printf("pallet created barcode=%s id=%s", p.Barcode, p.ID)
	return p, nil
}

// ListPallets returns every pallet.
func (e *Engine) ListPallets(ctx context.Context) ([]*model.Pallet, error) {
	pallets, err := e.store.ListPallets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pallets: %w", err)
	}
	return pallets, nil
}

// CreateDock registers a loading bay.
func (e *Engine) CreateDock(ctx context.Context, number string, dockType model.DockType) (*model.Dock, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, newError(KindInvalidArgument, nil, "dock number is required")
	}
	if dockType == "" {
		dockType = model.DockStandard
	}
	if !dockType.Valid() {
		return nil, newError(KindInvalidArgument, map[string]string{"dock_type": string(dockType)}, "unknown dock type %q", dockType)
	}
	d := &model.Dock{
		ID:     e.opts.NewID(),
		Number: number,
		Type:   dockType,
	}
	if err := e.store.CreateDock(ctx, d); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, &Error{
				Kind:    KindConflict,
				Message: fmt.Sprintf("dock number %s already exists", number),
				Details: map[string]string{"dock_number": number},
				Cause:   err,
			}
		}
		return nil, fmt.Errorf("create dock: %w", err)
	}
	return d, nil
}

// ListDocks returns every dock.
func (e *Engine) ListDocks(ctx context.Context) ([]*model.Dock, error) {
	docks, err := e.store.ListDocks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list docks: %w", err)
	}
	return docks, nil
}

// CreateShipment registers a transport job.
func (e *Engine) CreateShipment(ctx context.Context, in NewShipment) (*model.Shipment, error) {
	ref := strings.TrimSpace(in.ReferenceNumber)
	if ref == "" {
		return nil, newError(KindInvalidArgument, nil, "reference number is required")
	}
	if strings.TrimSpace(in.Origin) == "" || strings.TrimSpace(in.Destination) == "" {
		return nil, newError(KindInvalidArgument, nil, "origin and destination are required")
	}
	status := in.Status
	if status == "" {
		status = model.ShipmentPending
	}
	if !status.Valid() {
		return nil, newError(KindInvalidArgument, map[string]string{"status": string(status)}, "unknown shipment status %q", status)
	}
	capacity := e.opts.DefaultCapacity
	if in.MaxWeightCapacity != nil {
		if !in.MaxWeightCapacity.IsPositive() {
			return nil, newError(KindInvalidArgument, map[string]string{"max_weight_capacity": in.MaxWeightCapacity.String()}, "max weight capacity must be positive")
		}
		capacity = *in.MaxWeightCapacity
	}
	s := &model.Shipment{
		ID:                e.opts.NewID(),
		ReferenceNumber:   ref,
		Origin:            in.Origin,
		Destination:       in.Destination,
		Status:            status,
		MaxWeightCapacity: capacity,
		CreatedAt:         e.opts.Now().UTC(),
	}
	if err := e.store.CreateShipment(ctx, s); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, &Error{
				Kind:    KindConflict,
				Message: fmt.Sprintf("shipment with reference %s already exists", ref),
				Details: map[string]string{"reference_number": ref},
				Cause:   err,
			}
		}
		return nil, fmt.Errorf("create shipment: %w", err)
	}
	return s, nil
}

// ListShipments returns every shipment.
func (e *Engine) ListShipments(ctx context.Context) ([]*model.Shipment, error) {
	shipments, err := e.store.ListShipments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list shipments: %w", err)
	}
	return shipments, nil
}

// AssignDockToShipment binds a shipment to a free dock. Repeating the same
// pair succeeds without changes. A dock held by another shipment, or a
// shipment already loading at another dock, is a Conflict.
func (e *Engine) AssignDockToShipment(ctx context.Context, dockNumber, shipmentRef string) (*Assignment, error) {
	var out *Assignment
	err := e.store.InTx(ctx, func(tx Tx) error {
		dock, err := tx.DockByNumberForUpdate(ctx, dockNumber)
		if err != nil {
			return lookupError(err, "dock", dockNumber)
		}
		found, err := tx.ShipmentByRef(ctx, shipmentRef)
		if err != nil {
			return lookupError(err, "shipment", shipmentRef)
		}
		shipment, err := tx.ShipmentByIDForUpdate(ctx, found.ID)
		if err != nil {
			return fmt.Errorf("lock shipment %s: %w", shipmentRef, err)
		}
		if dock.HeldBy(shipment.ID) {
			out = &Assignment{Dock: dock, Shipment: shipment, Unchanged: true}
			return nil
		}
		if dock.HasShipment() {
			return newError(KindConflict, map[string]string{
				"dock_number":         dock.Number,
				"current_shipment_id": *dock.CurrentShipmentID,
			}, "dock %s is already occupied by another shipment", dock.Number)
		}
		other, err := tx.DockByShipment(ctx, shipment.ID)
		switch {
		case err == nil:
			return newError(KindConflict, map[string]string{
				"reference_number": shipmentRef,
				"dock_number":      other.Number,
			}, "shipment %s is already assigned to dock %s", shipmentRef, other.Number)
		case !errors.Is(err, ErrNotFound):
			return fmt.Errorf("dock for shipment %s: %w", shipmentRef, err)
		}
		dock.Bind(shipment.ID)
		if err := tx.UpdateDock(ctx, dock); err != nil {
			return fmt.Errorf("update dock %s: %w", dock.Number, err)
		}
		out = &Assignment{Dock: dock, Shipment: shipment}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !out.Unchanged {
		log.Printf("dock assigned dock=%s shipment=%s", dockNumber, shipmentRef)
	}
	return out, nil
}

// ScanPalletToDock loads a pallet onto the shipment bound to a dock. The
// pallet, dock and shipment rows stay locked from the first read until
// commit, so two scans of the same barcode cannot both see a free pallet and
// two scans onto the same shipment cannot both pass the capacity check.
func (e *Engine) ScanPalletToDock(ctx context.Context, barcode, dockNumber string) (*ScanResult, error) {
	barcode = strings.TrimSpace(barcode)
	dockNumber = strings.TrimSpace(dockNumber)
	if barcode == "" || dockNumber == "" {
		return nil, newError(KindInvalidArgument, nil, "barcode and dock number are required")
	}
	if err := e.acquire(ctx, barcode, e.opts.DockScanTTL); err != nil {
		return nil, err
	}
	var res *ScanResult
	err := e.store.InTx(ctx, func(tx Tx) error {
		pallet, err := tx.PalletByBarcodeForUpdate(ctx, barcode)
		if err != nil {
			return lookupError(err, "pallet", barcode)
		}
		dock, err := tx.DockByNumberForUpdate(ctx, dockNumber)
		if err != nil {
			return lookupError(err, "dock", dockNumber)
		}
		if pallet.BoundToDock() {
			return newError(KindConflict, map[string]string{
				"barcode":         barcode,
				"current_dock_id": *pallet.CurrentDockID,
			}, "pallet %s is already assigned to a dock", barcode)
		}
		if !dock.HasShipment() {
			return newError(KindInvalidState, map[string]string{"dock_number": dock.Number},
				"dock %s has no active shipment", dock.Number)
		}
		shipment, err := tx.ShipmentByIDForUpdate(ctx, *dock.CurrentShipmentID)
		if err != nil {
			return fmt.Errorf("lock shipment %s: %w", *dock.CurrentShipmentID, err)
		}
		current, err := tx.ShipmentLoad(ctx, shipment.ID)
		if err != nil {
			return fmt.Errorf("shipment load %s: %w", shipment.ReferenceNumber, err)
		}
		load, err := CheckCapacity(current, pallet.EffectiveWeight(), shipment.MaxWeightCapacity)
		if err != nil {
			return err
		}

		dockID, shipmentID := dock.ID, shipment.ID
		pallet.CurrentDockID = &dockID
		pallet.ShipmentID = &shipmentID
		pallet.Status = model.PalletLoadingToDock
		if err := tx.UpdatePallet(ctx, pallet); err != nil {
			return fmt.Errorf("update pallet %s: %w", barcode, err)
		}
		dock.IsOccupied = true
		if err := tx.UpdateDock(ctx, dock); err != nil {
			return fmt.Errorf("update dock %s: %w", dock.Number, err)
		}
		res = &ScanResult{
			Message:            "loading allowed",
			PalletID:           pallet.ID,
			DockNumber:         dock.Number,
			ShipmentRef:        shipment.ReferenceNumber,
			CurrentTotalWeight: load.Total,
			CapacityLeft:       load.Remaining,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("pallet loaded barcode=%s dock=%s shipment=%s total=%s left=%s",
		barcode, res.DockNumber, res.ShipmentRef, res.CurrentTotalWeight, res.CapacityLeft)
	return res, nil
}

// ReleaseDock frees the dock loading a shipment and marks the shipment
// SHIPPED. Pallets keep their dock and shipment references so the load stays
// traceable.
func (e *Engine) ReleaseDock(ctx context.Context, shipmentRef string) (*Release, error) {
	var out *Release
	err := e.store.InTx(ctx, func(tx Tx) error {
		shipment, err := tx.ShipmentByRef(ctx, shipmentRef)
		if err != nil {
			return lookupError(err, "shipment", shipmentRef)
		}
		dock, err := tx.DockByShipmentForUpdate(ctx, shipment.ID)
		if errors.Is(err, ErrNotFound) {
			return &Error{
				Kind:    KindInvalidState,
				Message: fmt.Sprintf("no dock is loading shipment %s", shipmentRef),
				Details: map[string]string{"reference_number": shipmentRef},
				Cause:   err,
			}
		}
		if err != nil {
			return fmt.Errorf("lock dock for shipment %s: %w", shipmentRef, err)
		}
		locked, err := tx.ShipmentByIDForUpdate(ctx, shipment.ID)
		if err != nil {
			return fmt.Errorf("lock shipment %s: %w", shipmentRef, err)
		}
		dock.Release()
		if err := tx.UpdateDock(ctx, dock); err != nil {
			return fmt.Errorf("update dock %s: %w", dock.Number, err)
		}
		if err := tx.UpdateShipmentStatus(ctx, locked.ID, model.ShipmentShipped); err != nil {
			return fmt.Errorf("update shipment %s: %w", shipmentRef, err)
		}
		locked.Status = model.ShipmentShipped
		out = &Release{Shipment: locked, DockNumber: dock.Number}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("dock released dock=%s shipment=%s", out.DockNumber, shipmentRef)
	if e.opts.OnRelease != nil {
		if err := e.opts.OnRelease(ctx, out.Shipment); err != nil {
			log.Printf("release hook failed shipment=%s: %v", shipmentRef, err)
		}
	}
	return out, nil
}

// MarkCollected records that a driver picked the shipment up. It overwrites
// the status unconditionally; a repeated call is not an error.
func (e *Engine) MarkCollected(ctx context.Context, shipmentRef string) (*model.Shipment, error) {
	var out *model.Shipment
	err := e.store.InTx(ctx, func(tx Tx) error {
		shipment, err := tx.ShipmentByRef(ctx, shipmentRef)
		if err != nil {
			return lookupError(err, "shipment", shipmentRef)
		}
		locked, err := tx.ShipmentByIDForUpdate(ctx, shipment.ID)
		if err != nil {
			return fmt.Errorf("lock shipment %s: %w", shipmentRef, err)
		}
		if err := tx.UpdateShipmentStatus(ctx, locked.ID, model.ShipmentCollected); err != nil {
			return fmt.Errorf("update shipment %s: %w", shipmentRef, err)
		}
		locked.Status = model.ShipmentCollected
		out = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("shipment collected shipment=%s", shipmentRef)
	return out, nil
}

// CheckPickupStatus tells a driver whether someone already collected the
// shipment. It only reads the current status.
func (e *Engine) CheckPickupStatus(ctx context.Context, shipmentRef string) (*PickupStatus, error) {
	shipment, err := e.store.ShipmentByRef(ctx, shipmentRef)
	if err != nil {
		return nil, lookupError(err, "shipment", shipmentRef)
	}
	out := &PickupStatus{ReferenceNumber: shipment.ReferenceNumber, Status: shipment.Status}
	switch shipment.Status {
	case model.ShipmentCollected:
		out.CanProceed = false
		out.Message = "STOP! shipment already collected by another driver"
	case model.ShipmentPending, model.ShipmentInProgress, model.ShipmentCancelled, model.ShipmentShipped:
		out.CanProceed = true
		out.Message = "shipment is free, you can proceed"
	default:
		return nil, fmt.Errorf("shipment %s has unknown status %q", shipmentRef, shipment.Status)
	}
	return out, nil
}

// ShipmentLoad reports the weight currently bound to a shipment.
func (e *Engine) ShipmentLoad(ctx context.Context, shipmentRef string) (*LoadReport, error) {
	shipment, pallets, err := e.shipmentPallets(ctx, shipmentRef)
	if err != nil {
		return nil, err
	}
	total := SumLoad(pallets, shipment.ID)
	return &LoadReport{
		Shipment:           shipment,
		PalletCount:        len(pallets),
		CurrentTotalWeight: total,
		MaxWeightCapacity:  shipment.MaxWeightCapacity,
		CapacityLeft:       shipment.MaxWeightCapacity.Sub(total),
	}, nil
}

// ShipmentManifest lists the pallets bound to a shipment.
func (e *Engine) ShipmentManifest(ctx context.Context, shipmentRef string) (*Manifest, error) {
	shipment, pallets, err := e.shipmentPallets(ctx, shipmentRef)
	if err != nil {
		return nil, err
	}
	return &Manifest{
		Shipment:    shipment,
		Pallets:     pallets,
		TotalWeight: SumLoad(pallets, shipment.ID),
		GeneratedAt: e.opts.Now().UTC(),
	}, nil
}

func (e *Engine) shipmentPallets(ctx context.Context, shipmentRef string) (*model.Shipment, []*model.Pallet, error) {
	shipment, err := e.store.ShipmentByRef(ctx, shipmentRef)
	if err != nil {
		return nil, nil, lookupError(err, "shipment", shipmentRef)
	}
	pallets, err := e.store.PalletsByShipment(ctx, shipment.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("pallets for shipment %s: %w", shipmentRef, err)
	}
	return shipment, pallets, nil
}

// acquire takes the scan lock for barcode before any validation or lookup, so
// a rejected request still holds the key for ttl. Pallet creation and
// scan-to-dock share the key: a dock scan within PalletScanTTL of creating
// the same barcode is reported as a duplicate scan.
func (e *Engine) acquire(ctx context.Context, barcode string, ttl time.Duration) error {
	key := e.opts.LockPrefix + barcode
	ok, err := e.gate.TryAcquire(ctx, key, ttl)
	if err != nil {
		return fmt.Errorf("scan lock %s: %w", key, err)
	}
	if !ok {
		return newError(KindConflict, map[string]string{"barcode": barcode},
			"duplicate scan of %s detected, please wait", barcode)
	}
	return nil
}

func lookupError(err error, entity, key string) error {
	if errors.Is(err, ErrNotFound) {
		return &Error{
			Kind:    KindNotFound,
			Message: fmt.Sprintf("%s %s not found", entity, key),
			Details: map[string]string{entity: key},
			Cause:   err,
		}
	}
	return fmt.Errorf("load %s %s: %w", entity, key, err)
}

func barcodeTaken(barcode string, cause error) error {
	return &Error{
		Kind:    KindConflict,
		Message: fmt.Sprintf("barcode %s already scanned", barcode),
		Details: map[string]string{"barcode": barcode},
		Cause:   cause,
	}
}
