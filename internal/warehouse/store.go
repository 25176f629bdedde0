package warehouse

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dharsanguruparan/DockGuard/internal/model"
)

// Gate is the short-lived scan lock. TryAcquire returns true only when no
// marker existed for key; the marker expires after ttl.
type Gate interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Store is the durable entity store. Lookups return ErrNotFound when a record
// is absent and inserts return ErrDuplicate when a natural key is taken.
type Store interface {
	CreatePallet(ctx context.Context, p *model.Pallet) error
	PalletByBarcode(ctx context.Context, barcode string) (*model.Pallet, error)
	ListPallets(ctx context.Context) ([]*model.Pallet, error)
	PalletsByShipment(ctx context.Context, shipmentID string) ([]*model.Pallet, error)

	CreateDock(ctx context.Context, d *model.Dock) error
	ListDocks(ctx context.Context) ([]*model.Dock, error)

	CreateShipment(ctx context.Context, s *model.Shipment) error
	ShipmentByRef(ctx context.Context, ref string) (*model.Shipment, error)
	ListShipments(ctx context.Context) ([]*model.Shipment, error)

	// InTx runs fn inside a transaction. Row locks taken through Tx are held
	// until fn returns; a nil return commits, anything else rolls back.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the transactional view used by state transitions. ForUpdate methods
// take an exclusive row lock. Callers lock in the order pallet, dock,
// shipment.
type Tx interface {
	PalletByBarcodeForUpdate(ctx context.Context, barcode string) (*model.Pallet, error)
	DockByNumberForUpdate(ctx context.Context, number string) (*model.Dock, error)
	DockByShipmentForUpdate(ctx context.Context, shipmentID string) (*model.Dock, error)
	// DockByShipment reads the dock holding the shipment without locking it.
	// Callers hold the shipment lock so the answer cannot change under them.
	DockByShipment(ctx context.Context, shipmentID string) (*model.Dock, error)
	ShipmentByRef(ctx context.Context, ref string) (*model.Shipment, error)
	ShipmentByIDForUpdate(ctx context.Context, id string) (*model.Shipment, error)

	// ShipmentLoad sums the weights of pallets bound to the shipment as seen
	// by this transaction.
	ShipmentLoad(ctx context.Context, shipmentID string) (decimal.Decimal, error)

	UpdatePallet(ctx context.Context, p *model.Pallet) error
	UpdateDock(ctx context.Context, d *model.Dock) error
	UpdateShipmentStatus(ctx context.Context, id string, status model.ShipmentStatus) error
}
