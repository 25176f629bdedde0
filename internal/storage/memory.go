// Package storage contains the in-memory entity store. It backs tests and
// single-process demos and behaves like the Postgres store where the engine
// can observe it: unique natural keys, row locks held until commit, and
// writes that only become visible once a transaction commits.
package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/dharsanguruparan/DockGuard/internal/model"
	"github.com/dharsanguruparan/DockGuard/internal/warehouse"
)

var _ warehouse.Store = (*MemoryStore)(nil)

// MemoryStore keeps committed records in maps guarded by an RWMutex. Row
// locks live in a separate table so a transaction can hold them across
// several store calls without blocking plain readers.
type MemoryStore struct {
	mu        sync.RWMutex
	pallets   map[string]*model.Pallet
	barcodes  map[string]string
	docks     map[string]*model.Dock
	dockNums  map[string]string
	shipments map[string]*model.Shipment
	shipRefs  map[string]string

	locks *rowLocks
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pallets:   make(map[string]*model.Pallet),
		barcodes:  make(map[string]string),
		docks:     make(map[string]*model.Dock),
		dockNums:  make(map[string]string),
		shipments: make(map[string]*model.Shipment),
		shipRefs:  make(map[string]string),
		locks:     newRowLocks(),
	}
}

// CreatePallet inserts a pallet; the barcode must be unused.
func (m *MemoryStore) CreatePallet(_ context.Context, p *model.Pallet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.barcodes[p.Barcode]; taken {
		return warehouse.ErrDuplicate
	}
	m.pallets[p.ID] = p.Clone()
	m.barcodes[p.Barcode] = p.ID
	return nil
}

// PalletByBarcode returns a copy of the committed pallet.
func (m *MemoryStore) PalletByBarcode(_ context.Context, barcode string) (*model.Pallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.barcodes[barcode]
	if !ok {
		return nil, warehouse.ErrNotFound
	}
	return m.pallets[id].Clone(), nil
}

// ListPallets returns every pallet ordered by creation time.
func (m *MemoryStore) ListPallets(_ context.Context) ([]*model.Pallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Pallet, 0, len(m.pallets))
	for _, p := range m.pallets {
		out = append(out, p.Clone())
	}
	sortPallets(out)
	return out, nil
}

// PalletsByShipment returns the pallets bound to shipmentID.
func (m *MemoryStore) PalletsByShipment(_ context.Context, shipmentID string) ([]*model.Pallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Pallet
	for _, p := range m.pallets {
		if p.InShipment(shipmentID) {
			out = append(out, p.Clone())
		}
	}
	sortPallets(out)
	return out, nil
}

// CreateDock inserts a dock; the number must be unused.
func (m *MemoryStore) CreateDock(_ context.Context, d *model.Dock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.dockNums[d.Number]; taken {
		return warehouse.ErrDuplicate
	}
	m.docks[d.ID] = d.Clone()
	m.dockNums[d.Number] = d.ID
	return nil
}

// ListDocks returns every dock ordered by number.
func (m *MemoryStore) ListDocks(_ context.Context) ([]*model.Dock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Dock, 0, len(m.docks))
	for _, d := range m.docks {
		out = append(out, d.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

// CreateShipment inserts a shipment; the reference number must be unused.
func (m *MemoryStore) CreateShipment(_ context.Context, s *model.Shipment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.shipRefs[s.ReferenceNumber]; taken {
		return warehouse.ErrDuplicate
	}
	m.shipments[s.ID] = s.Clone()
	m.shipRefs[s.ReferenceNumber] = s.ID
	return nil
}

// ShipmentByRef returns a copy of the committed shipment.
func (m *MemoryStore) ShipmentByRef(_ context.Context, ref string) (*model.Shipment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.shipRefs[ref]
	if !ok {
		return nil, warehouse.ErrNotFound
	}
	return m.shipments[id].Clone(), nil
}

// ListShipments returns every shipment ordered by creation time.
func (m *MemoryStore) ListShipments(_ context.Context) ([]*model.Shipment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Shipment, 0, len(m.shipments))
	for _, s := range m.shipments {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ReferenceNumber < out[j].ReferenceNumber
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// InTx runs fn with a transaction that stages its writes and holds its row
// locks until fn returns.
func (m *MemoryStore) InTx(ctx context.Context, fn func(tx warehouse.Tx) error) error {
	tx := &memTx{
		store:      m,
		held:       make(map[string]bool),
		pallets:    make(map[string]*model.Pallet),
		docks:      make(map[string]*model.Dock),
		shipStatus: make(map[string]model.ShipmentStatus),
	}
	defer tx.unlockAll()
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func sortPallets(ps []*model.Pallet) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].CreatedAt.Equal(ps[j].CreatedAt) {
			return ps[i].Barcode < ps[j].Barcode
		}
		return ps[i].CreatedAt.Before(ps[j].CreatedAt)
	})
}

// memTx is the transactional view of a MemoryStore. Reads see committed data
// overlaid with this transaction's staged writes.
type memTx struct {
	store *MemoryStore
	order []string
	held  map[string]bool

	pallets    map[string]*model.Pallet
	docks      map[string]*model.Dock
	shipStatus map[string]model.ShipmentStatus
}

func (t *memTx) lock(ctx context.Context, key string) error {
	if t.held[key] {
		return nil
	}
	if err := t.store.locks.acquire(ctx, key); err != nil {
		return err
	}
	t.held[key] = true
	t.order = append(t.order, key)
	return nil
}

func (t *memTx) unlockAll() {
	for i := len(t.order) - 1; i >= 0; i-- {
		t.store.locks.release(t.order[i])
	}
	t.order = nil
}

func (t *memTx) commit() {
	m := t.store
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range t.pallets {
		m.pallets[id] = p
	}
	for id, d := range t.docks {
		m.docks[id] = d
	}
	for id, status := range t.shipStatus {
		if s, ok := m.shipments[id]; ok {
			s.Status = status
		}
	}
}

func (t *memTx) PalletByBarcodeForUpdate(ctx context.Context, barcode string) (*model.Pallet, error) {
	if err := t.lock(ctx, "pallet:"+barcode); err != nil {
		return nil, err
	}
	m := t.store
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.barcodes[barcode]
	if !ok {
		return nil, warehouse.ErrNotFound
	}
	return t.pallet(id).Clone(), nil
}

func (t *memTx) DockByNumberForUpdate(ctx context.Context, number string) (*model.Dock, error) {
	if err := t.lock(ctx, "dock:"+number); err != nil {
		return nil, err
	}
	m := t.store
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.dockNums[number]
	if !ok {
		return nil, warehouse.ErrNotFound
	}
	return t.dock(id).Clone(), nil
}

func (t *memTx) DockByShipmentForUpdate(ctx context.Context, shipmentID string) (*model.Dock, error) {
	for {
		number, ok := t.dockHolding(shipmentID)
		if !ok {
			return nil, warehouse.ErrNotFound
		}
		d, err := t.DockByNumberForUpdate(ctx, number)
		if err != nil {
			return nil, err
		}
		// The binding may have changed while we waited for the lock.
		if d.HeldBy(shipmentID) {
			return d, nil
		}
	}
}

func (t *memTx) DockByShipment(_ context.Context, shipmentID string) (*model.Dock, error) {
	number, ok := t.dockHolding(shipmentID)
	if !ok {
		return nil, warehouse.ErrNotFound
	}
	m := t.store
	m.mu.RLock()
	defer m.mu.RUnlock()
	return t.dock(m.dockNums[number]).Clone(), nil
}

func (t *memTx) dockHolding(shipmentID string) (string, bool) {
	m := t.store
	m.mu.RLock()
	defer m.mu.RUnlock()
	var numbers []string
	for id := range m.docks {
		if d := t.dock(id); d.HeldBy(shipmentID) {
			numbers = append(numbers, d.Number)
		}
	}
	if len(numbers) == 0 {
		return "", false
	}
	sort.Strings(numbers)
	return numbers[0], true
}

func (t *memTx) ShipmentByRef(_ context.Context, ref string) (*model.Shipment, error) {
	m := t.store
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.shipRefs[ref]
	if !ok {
		return nil, warehouse.ErrNotFound
	}
	return t.shipment(id), nil
}

func (t *memTx) ShipmentByIDForUpdate(ctx context.Context, id string) (*model.Shipment, error) {
	if err := t.lock(ctx, "shipment:"+id); err != nil {
		return nil, err
	}
	m := t.store
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.shipments[id]; !ok {
		return nil, warehouse.ErrNotFound
	}
	return t.shipment(id), nil
}

func (t *memTx) ShipmentLoad(_ context.Context, shipmentID string) (decimal.Decimal, error) {
	m := t.store
	m.mu.RLock()
	defer m.mu.RUnlock()
	view := make([]*model.Pallet, 0, len(m.pallets))
	for id := range m.pallets {
		view = append(view, t.pallet(id))
	}
	return warehouse.SumLoad(view, shipmentID), nil
}

func (t *memTx) UpdatePallet(_ context.Context, p *model.Pallet) error {
	m := t.store
	m.mu.RLock()
	_, ok := m.pallets[p.ID]
	m.mu.RUnlock()
	if !ok {
		return warehouse.ErrNotFound
	}
	t.pallets[p.ID] = p.Clone()
	return nil
}

func (t *memTx) UpdateDock(_ context.Context, d *model.Dock) error {
	m := t.store
	m.mu.RLock()
	_, ok := m.docks[d.ID]
	m.mu.RUnlock()
	if !ok {
		return warehouse.ErrNotFound
	}
	t.docks[d.ID] = d.Clone()
	return nil
}

func (t *memTx) UpdateShipmentStatus(_ context.Context, id string, status model.ShipmentStatus) error {
	m := t.store
	m.mu.RLock()
	_, ok := m.shipments[id]
	m.mu.RUnlock()
	if !ok {
		return warehouse.ErrNotFound
	}
	t.shipStatus[id] = status
	return nil
}

// pallet, dock and shipment resolve a record through the staged overlay.
// Callers hold store.mu for reading.

func (t *memTx) pallet(id string) *model.Pallet {
	if p, ok := t.pallets[id]; ok {
		return p
	}
	return t.store.pallets[id]
}

func (t *memTx) dock(id string) *model.Dock {
	if d, ok := t.docks[id]; ok {
		return d
	}
	return t.store.docks[id]
}

func (t *memTx) shipment(id string) *model.Shipment {
	s := t.store.shipments[id].Clone()
	if status, ok := t.shipStatus[id]; ok {
		s.Status = status
	}
	return s
}
