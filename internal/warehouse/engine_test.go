package warehouse_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dharsanguruparan/DockGuard/internal/model"
	"github.com/dharsanguruparan/DockGuard/internal/scanlock"
	"github.com/dharsanguruparan/DockGuard/internal/storage"
	"github.com/dharsanguruparan/DockGuard/internal/warehouse"
)

type allowGate struct{}

func (allowGate) TryAcquire(context.Context, string, time.Duration) (bool, error) { return true, nil }

type brokenGate struct{}

func (brokenGate) TryAcquire(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("connection refused")
}

type fixture struct {
	t      *testing.T
	ctx    context.Context
	mu     sync.Mutex
	now    time.Time
	store  *storage.MemoryStore
	engine *warehouse.Engine
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// newFixture builds an engine over the memory store. A nil gate means the
// memory gate driven by the fixture clock.
func newFixture(t *testing.T, gate warehouse.Gate, opts warehouse.Options) *fixture {
	t.Helper()
	f := &fixture{t: t, ctx: context.Background(), now: time.Date(2025, 4, 7, 5, 30, 0, 0, time.UTC)}
	if gate == nil {
		gate = scanlock.NewMemory(f.clock)
	}
	opts.Now = f.clock
	f.store = storage.NewMemoryStore()
	f.engine = warehouse.New(f.store, gate, opts)
	return f
}

func kg(n int64) *decimal.Decimal {
	d := decimal.NewFromInt(n)
	return &d
}

func (f *fixture) shipment(ref string, capacity int64) *model.Shipment {
	f.t.Helper()
	s, err := f.engine.CreateShipment(f.ctx, warehouse.NewShipment{
		ReferenceNumber:   ref,
		Origin:            "Wroclaw",
		Destination:       "Prague",
		MaxWeightCapacity: kg(capacity),
	})
	if err != nil {
		f.t.Fatalf("create shipment %s: %v", ref, err)
	}
	return s
}

func (f *fixture) dock(number string) *model.Dock {
	f.t.Helper()
	d, err := f.engine.CreateDock(f.ctx, number, "")
	if err != nil {
		f.t.Fatalf("create dock %s: %v", number, err)
	}
	return d
}

func (f *fixture) assign(dock, ref string) {
	f.t.Helper()
	if _, err := f.engine.AssignDockToShipment(f.ctx, dock, ref); err != nil {
		f.t.Fatalf("assign %s to %s: %v", ref, dock, err)
	}
}

func (f *fixture) pallet(barcode string, weight *decimal.Decimal) *model.Pallet {
	f.t.Helper()
	p, err := f.engine.CreatePallet(f.ctx, barcode, weight)
	if err != nil {
		f.t.Fatalf("create pallet %s: %v", barcode, err)
	}
	return p
}

func expectKind(t *testing.T, err error, kind warehouse.Kind) {
	t.Helper()
	if !warehouse.IsKind(err, kind) {
		t.Fatalf("expected %s, got %v", kind, err)
	}
}

func TestCreatePallet(t *testing.T) {
	f := newFixture(t, nil, warehouse.Options{})
	p := f.pallet("PAL-100", kg(250))
	if p.Status != model.PalletStaged || p.BoundToDock() || p.ShipmentID != nil {
		t.Fatalf("new pallet should be staged and unbound: %+v", p)
	}
	if !p.CreatedAt.Equal(f.clock()) {
		t.Fatalf("unexpected created_at %s", p.CreatedAt)
	}

	_, err := f.engine.CreatePallet(f.ctx, "PAL-100", nil)
	expectKind(t, err, warehouse.KindConflict)

	// Past the dedup window the unique barcode still rejects the insert.
	f.advance(warehouse.DefaultPalletScanTTL + time.Second)
	_, err = f.engine.CreatePallet(f.ctx, "PAL-100", nil)
	expectKind(t, err, warehouse.KindConflict)

	pallets, err := f.engine.ListPallets(f.ctx)
	if err != nil || len(pallets) != 1 {
		t.Fatalf("expected exactly one pallet, got %d (%v)", len(pallets), err)
	}
}

func TestCreatePalletValidation(t *testing.T) {
	f := newFixture(t, nil, warehouse.Options{})
	_, err := f.engine.CreatePallet(f.ctx, "   ", nil)
	expectKind(t, err, warehouse.KindInvalidArgument)
	_, err = f.engine.CreatePallet(f.ctx, "PAL-NEG", kg(-1))
	expectKind(t, err, warehouse.KindInvalidArgument)

	// A rejected request must not burn the dedup window.
	f.pallet("PAL-NEG", kg(1))
}

func TestCreatePalletGateUnavailable(t *testing.T) {
	f := newFixture(t, brokenGate{}, warehouse.Options{})
	_, err := f.engine.CreatePallet(f.ctx, "PAL-1", nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if _, ok := warehouse.KindOf(err); ok {
		t.Fatalf("gate outage must surface as an infrastructure error, got %v", err)
	}
	if _, err := f.store.PalletByBarcode(f.ctx, "PAL-1"); !errors.Is(err, warehouse.ErrNotFound) {
		t.Fatalf("pallet must not be stored when the gate fails")
	}
}

func TestConcurrentCreatePalletSameBarcode(t *testing.T) {
	f := newFixture(t, allowGate{}, warehouse.Options{})
	const n = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.CreatePallet(f.ctx, "PAL-RACE", nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case warehouse.IsKind(err, warehouse.KindConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if created != 1 || conflicts != n-1 {
		t.Fatalf("expected 1 created and %d conflicts, got %d/%d", n-1, created, conflicts)
	}
}

func TestCreateDock(t *testing.T) {
	f := newFixture(t, nil, warehouse.Options{})
	d := f.dock("D1")
	if d.Type != model.DockStandard || d.IsOccupied || d.CurrentShipmentID != nil {
		t.Fatalf("unexpected new dock %+v", d)
	}
	cold, err := f.engine.CreateDock(f.ctx, "D2", model.DockColdChain)
	if err != nil || cold.Type != model.DockColdChain {
		t.Fatalf("create cold dock: %+v %v", cold, err)
	}

	_, err = f.engine.CreateDock(f.ctx, "D1", model.DockVanAccess)
	expectKind(t, err, warehouse.KindConflict)
	_, err = f.engine.CreateDock(f.ctx, "D3", model.DockType("ROOFTOP"))
	expectKind(t, err, warehouse.KindInvalidArgument)
	_, err = f.engine.CreateDock(f.ctx, "", "")
	expectKind(t, err, warehouse.KindInvalidArgument)

	docks, err := f.engine.ListDocks(f.ctx)
	if err != nil || len(docks) != 2 || docks[0].Number != "D1" {
		t.Fatalf("unexpected docks %+v (%v)", docks, err)
	}
}

func TestCreateShipment(t *testing.T) {
	f := newFixture(t, nil, warehouse.Options{DefaultCapacity: decimal.NewFromInt(9000)})
	s, err := f.engine.CreateShipment(f.ctx, warehouse.NewShipment{ReferenceNumber: "SHP-1", Origin: "A", Destination: "B"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if s.Status != model.ShipmentPending || !s.MaxWeightCapacity.Equal(decimal.NewFromInt(9000)) {
		t.Fatalf("defaults not applied: %+v", s)
	}

	cases := []struct {
		name string
		in   warehouse.NewShipment
		kind warehouse.Kind
	}{
		{"duplicate ref", warehouse.NewShipment{ReferenceNumber: "SHP-1", Origin: "A", Destination: "B"}, warehouse.KindConflict},
		{"missing ref", warehouse.NewShipment{Origin: "A", Destination: "B"}, warehouse.KindInvalidArgument},
		{"missing destination", warehouse.NewShipment{ReferenceNumber: "SHP-2", Origin: "A"}, warehouse.KindInvalidArgument},
		{"zero capacity", warehouse.NewShipment{ReferenceNumber: "SHP-3", Origin: "A", Destination: "B", MaxWeightCapacity: kg(0)}, warehouse.KindInvalidArgument},
		{"unknown status", warehouse.NewShipment{ReferenceNumber: "SHP-4", Origin: "A", Destination: "B", Status: "LOST"}, warehouse.KindInvalidArgument},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.engine.CreateShipment(f.ctx, tc.in)
			expectKind(t, err, tc.kind)
		})
	}
}

func TestDefaultCapacity(t *testing.T) {
	f := newFixture(t, nil, warehouse.Options{})
	s, err := f.engine.CreateShipment(f.ctx, warehouse.NewShipment{ReferenceNumber: "SHP-1", Origin: "A", Destination: "B"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !s.MaxWeightCapacity.Equal(model.DefaultMaxWeightCapacity) {
		t.Fatalf("expected default capacity 12000, got %s", s.MaxWeightCapacity)
	}
}

func TestAssignDockToShipment(t *testing.T) {
	f := newFixture(t, nil, warehouse.Options{})
	f.shipment("SHP-1", 1000)
	f.shipment("SHP-2", 1000)
	f.dock("D1")

	a, err := f.engine.AssignDockToShipment(f.ctx, "D1", "SHP-1")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if a.Unchanged || !a.Dock.HeldBy(a.Shipment.ID) {
		t.Fatalf("unexpected assignment %+v", a)
	}

	again, err := f.engine.AssignDockToShipment(f.ctx, "D1", "SHP-1")
	if err != nil || !again.Unchanged {
		t.Fatalf("repeating the same pair should be a no-op: %+v %v", again, err)
	}

	_, err = f.engine.AssignDockToShipment(f.ctx, "D1", "SHP-2")
	expectKind(t, err, warehouse.KindConflict)
	_, err = f.engine.AssignDockToShipment(f.ctx, "D9", "SHP-1")
	expectKind(t, err, warehouse.KindNotFound)
	_, err = f.engine.AssignDockToShipment(f.ctx, "D1", "SHP-9")
	expectKind(t, err, warehouse.KindNotFound)

	docks, _ := f.engine.ListDocks(f.ctx)
	if !docks[0].HeldBy(a.Shipment.ID) {
		t.Fatalf("dock lost its binding after rejected assignments")
	}
}

func TestAssignShipmentToSecondDock(t *testing.T) {
	f := newFixture(t, nil, warehouse.Options{})
	f.shipment("SHP-1", 1000)
	f.dock("D1")
	f.dock("D2")
	f.assign("D1", "SHP-1")

	_, err := f.engine.AssignDockToShipment(f.ctx, "D2", "SHP-1")
	expectKind(t, err, warehouse.KindConflict)
	var werr *warehouse.Error
	if !errors.As(err, &werr) || werr.Details["dock_number"] != "D1" {
		t.Fatalf("conflict should name the holding dock: %+v", err)
	}

	docks, _ := f.engine.ListDocks(f.ctx)
	if docks[1].Number != "D2" || docks[1].HasShipment() {
		t.Fatalf("second dock must stay free: %+v", docks[1])
	}

	if _, err := f.engine.ReleaseDock(f.ctx, "SHP-1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	docks, _ = f.engine.ListDocks(f.ctx)
	for _, d := range docks {
		if d.HasShipment() {
			t.Fatalf("dock %s still held after release", d.Number)
		}
	}
	_, err = f.engine.ReleaseDock(f.ctx, "SHP-1")
	expectKind(t, err, warehouse.KindInvalidState)

	f.pallet("PAL-1", kg(10))
	f.advance(warehouse.DefaultPalletScanTTL)
	_, err = f.engine.ScanPalletToDock(f.ctx, "PAL-1", "D2")
	expectKind(t, err, warehouse.KindInvalidState)
}

func TestConcurrentAssignSameShipment(t *testing.T) {
	f := newFixture(t, nil, warehouse.Options{})
	f.shipment("SHP-1", 1000)
	docks := []string{"D1", "D2", "D3", "D4"}
	for _, d := range docks {
		f.dock(d)
	}

	var (
		wg   sync.WaitGroup
		errs = make([]error, len(docks))
	)
	for i, dock := range docks {
		wg.Add(1)
		go func(i int, dock string) {
			defer wg.Done()
			_, errs[i] = f.engine.AssignDockToShipment(f.ctx, dock, "SHP-1")
		}(i, dock)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case warehouse.IsKind(err, warehouse.KindConflict):
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("expected exactly one dock to win the shipment, got %d", ok)
	}
	held := 0
	list, _ := f.engine.ListDocks(f.ctx)
	for _, d := range list {
		if d.HasShipment() {
			held++
		}
	}
	if held != 1 {
		t.Fatalf("expected one held dock, got %d", held)
	}
}

func TestScanPalletToDockCapacity(t *testing.T) {
	f := newFixture(t, nil, warehouse.Options{})
	f.shipment("SHP-1", 1000)
	f.dock("D1")
	f.assign("D1", "SHP-1")
	f.pallet("PAL-A", kg(600))
	f.pallet("PAL-B", kg(500))
	f.pallet("PAL-C", kg(400))
	f.advance(warehouse.DefaultPalletScanTTL)

	res, err := f.engine.ScanPalletToDock(f.ctx, "PAL-A", "D1")
	if err != nil {
		t.Fatalf("scan A: %v", err)
	}
	if !res.CurrentTotalWeight.Equal(decimal.NewFromInt(600)) || !res.CapacityLeft.Equal(decimal.NewFromInt(400)) {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.ShipmentRef != "SHP-1" || res.DockNumber != "D1" {
		t.Fatalf("unexpected binding in result %+v", res)
	}

	_, err = f.engine.ScanPalletToDock(f.ctx, "PAL-B", "D1")
	expectKind(t, err, warehouse.KindCapacityExceeded)
	var werr *warehouse.Error
	if !errors.As(err, &werr) {
		t.Fatalf("expected *warehouse.Error")
	}
	if werr.Details["current_load"] != "600" || werr.Details["pallet_weight"] != "500" || werr.Details["limit"] != "1000" {
		t.Fatalf("unexpected details %+v", werr.Details)
	}

	// Filling to exactly the limit is allowed.
	res, err = f.engine.ScanPalletToDock(f.ctx, "PAL-C", "D1")
	if err != nil {
		t.Fatalf("scan C: %v", err)
	}
	if !res.CapacityLeft.IsZero() {
		t.Fatalf("expected a full shipment, got %s left", res.CapacityLeft)
	}

	b, _ := f.store.PalletByBarcode(f.ctx, "PAL-B")
	if b.BoundToDock() || b.Status != model.PalletStaged {
		t.Fatalf("rejected pallet must stay staged: %+v", b)
	}
	a, _ := f.store.PalletByBarcode(f.ctx, "PAL-A")
	if a.Status != model.PalletLoadingToDock || !a.BoundToDock() {
		t.Fatalf("loaded pallet not bound: %+v", a)
	}
	docks, _ := f.engine.ListDocks(f.ctx)
	if !docks[0].IsOccupied {
		t.Fatalf("dock should be occupied after loading")
	}
}

func TestScanPalletToDockUnweighed(t *testing.T) {
	f := newFixture(t, nil, warehouse.Options{})
	f.shipment("SHP-1", 100)
	f.dock("D1")
	f.assign("D1", "SHP-1")
	f.pallet("PAL-0", nil)
	f.pallet("PAL-1", kg(100))
	f.advance(time.Minute)

	if _, err := f.engine.ScanPalletToDock(f.ctx, "PAL-0", "D1"); err != nil {
		t.Fatalf("scan unweighed: %v", err)
	}
	res, err := f.engine.ScanPalletToDock(f.ctx, "PAL-1", "D1")
	if err != nil {
		t.Fatalf("unweighed pallet must count as zero: %v", err)
	}
	if !res.CurrentTotalWeight.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unexpected total %s", res.CurrentTotalWeight)
	}
}

func TestScanPalletToDockRejections(t *testing.T) {
	f := newFixture(t, nil, warehouse.Options{})
	f.shipment("SHP-1", 1000)
	f.dock("D1")
	f.dock("D2")
	f.assign("D1", "SHP-1")
	f.pallet("PAL-1", kg(10))
	f.pallet("PAL-2", kg(10))
	f.advance(time.Minute)

	_, err := f.engine.ScanPalletToDock(f.ctx, "PAL-2", "D2")
	expectKind(t, err, warehouse.KindInvalidState)

	f.advance(time.Minute)
	if _, err := f.engine.ScanPalletToDock(f.ctx, "PAL-1", "D1"); err != nil {
		t.Fatalf("scan: %v", err)
	}
	f.advance(time.Minute)
	_, err = f.engine.ScanPalletToDock(f.ctx, "PAL-1", "D1")
	expectKind(t, err, warehouse.KindConflict)

	f.advance(time.Minute)
	_, err = f.engine.ScanPalletToDock(f.ctx, "PAL-404", "D1")
	expectKind(t, err, warehouse.KindNotFound)
	f.advance(time.Minute)
	_, err = f.engine.ScanPalletToDock(f.ctx, "PAL-2", "D404")
	expectKind(t, err, warehouse.KindNotFound)
	_, err = f.engine.ScanPalletToDock(f.ctx, "", "D1")
	expectKind(t, err, warehouse.KindInvalidArgument)
}

func TestScanPalletToDockDedupWindow(t *testing.T) {
	f := newFixture(t, nil, warehouse.Options{})
	f.shipment("SHP-1", 1000)
	f.dock("D1")
	f.assign("D1", "SHP-1")
	f.pallet("PAL-1", kg(10))

	// Creating the pallet opened the barcode's dedup window.
	_, err := f.engine.ScanPalletToDock(f.ctx, "PAL-1", "D1")
	expectKind(t, err, warehouse.KindConflict)

	f.advance(warehouse.DefaultPalletScanTTL)
	if _, err := f.engine.ScanPalletToDock(f.ctx, "PAL-1", "D1"); err != nil {
		t.Fatalf("scan after window: %v", err)
	}
}

func TestRejectedScanHoldsDedupWindow(t *testing.T) {
	f := newFixture(t, nil, warehouse.Options{})
	f.pallet("PAL-1", kg(10))
	f.advance(warehouse.DefaultPalletScanTTL)

	_, err := f.engine.ScanPalletToDock(f.ctx, "PAL-1", "D9")
	expectKind(t, err, warehouse.KindNotFound)

	// The failed scan still took the barcode for the dock window.
	_, err = f.engine.ScanPalletToDock(f.ctx, "PAL-1", "D9")
	expectKind(t, err, warehouse.KindConflict)

	f.advance(warehouse.DefaultDockScanTTL)
	_, err = f.engine.ScanPalletToDock(f.ctx, "PAL-1", "D9")
	expectKind(t, err, warehouse.KindNotFound)
}

func TestConcurrentScansSameBarcode(t *testing.T) {
	f := newFixture(t, allowGate{}, warehouse.Options{})
	f.shipment("SHP-1", 1000)
	f.shipment("SHP-2", 1000)
	f.dock("D1")
	f.dock("D2")
	f.assign("D1", "SHP-1")
	f.assign("D2", "SHP-2")
	f.pallet("PAL-1", kg(10))

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i, dock := range []string{"D1", "D2"} {
		wg.Add(1)
		go func(i int, dock string) {
			defer wg.Done()
			_, errs[i] = f.engine.ScanPalletToDock(f.ctx, "PAL-1", dock)
		}(i, dock)
	}
	wg.Wait()

	ok, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case warehouse.IsKind(err, warehouse.KindConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	if ok != 1 || conflicts != 1 {
		t.Fatalf("expected one success and one conflict, got %d/%d", ok, conflicts)
	}
}

func TestConcurrentScansNeverExceedCapacity(t *testing.T) {
	f := newFixture(t, allowGate{}, warehouse.Options{})
	f.shipment("SHP-1", 1000)
	f.dock("D1")
	f.assign("D1", "SHP-1")
	const n = 25
	for i := 0; i < n; i++ {
		f.pallet(fmt.Sprintf("PAL-%02d", i), kg(100))
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		loaded   int
		rejected int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(barcode string) {
			defer wg.Done()
			_, err := f.engine.ScanPalletToDock(f.ctx, barcode, "D1")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				loaded++
			case warehouse.IsKind(err, warehouse.KindCapacityExceeded):
				rejected++
			default:
				t.Errorf("unexpected error for %s: %v", barcode, err)
			}
		}(fmt.Sprintf("PAL-%02d", i))
	}
	wg.Wait()

	if loaded != 10 || rejected != n-10 {
		t.Fatalf("expected 10 loaded and %d rejected, got %d/%d", n-10, loaded, rejected)
	}
	report, err := f.engine.ShipmentLoad(f.ctx, "SHP-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !report.CurrentTotalWeight.Equal(decimal.NewFromInt(1000)) || report.PalletCount != 10 {
		t.Fatalf("unexpected load %+v", report)
	}
}

func TestReleaseDock(t *testing.T) {
	var (
		hookMu   sync.Mutex
		released []string
	)
	hook := func(_ context.Context, s *model.Shipment) error {
		hookMu.Lock()
		defer hookMu.Unlock()
		released = append(released, s.ReferenceNumber)
		return errors.New("queue unavailable")
	}
	f := newFixture(t, nil, warehouse.Options{OnRelease: hook})
	f.shipment("SHP-1", 1000)
	f.shipment("SHP-2", 1000)
	f.dock("D1")
	f.assign("D1", "SHP-1")
	f.pallet("PAL-1", kg(300))
	f.advance(time.Minute)
	if _, err := f.engine.ScanPalletToDock(f.ctx, "PAL-1", "D1"); err != nil {
		t.Fatalf("scan: %v", err)
	}

	rel, err := f.engine.ReleaseDock(f.ctx, "SHP-1")
	if err != nil {
		t.Fatalf("release must not surface hook failures: %v", err)
	}
	if rel.DockNumber != "D1" || rel.Shipment.Status != model.ShipmentShipped {
		t.Fatalf("unexpected release %+v", rel)
	}
	if len(released) != 1 || released[0] != "SHP-1" {
		t.Fatalf("hook not invoked once: %v", released)
	}

	docks, _ := f.engine.ListDocks(f.ctx)
	if docks[0].IsOccupied || docks[0].HasShipment() {
		t.Fatalf("dock still bound after release: %+v", docks[0])
	}
	p, _ := f.store.PalletByBarcode(f.ctx, "PAL-1")
	if !p.BoundToDock() || p.ShipmentID == nil {
		t.Fatalf("released pallets keep their bindings: %+v", p)
	}

	_, err = f.engine.ReleaseDock(f.ctx, "SHP-1")
	expectKind(t, err, warehouse.KindInvalidState)
	_, err = f.engine.ReleaseDock(f.ctx, "SHP-404")
	expectKind(t, err, warehouse.KindNotFound)

	f.assign("D1", "SHP-2")
	f.advance(time.Minute)
	_, err = f.engine.ScanPalletToDock(f.ctx, "PAL-1", "D1")
	expectKind(t, err, warehouse.KindConflict)
}

func TestCheckPickupStatus(t *testing.T) {
	f := newFixture(t, nil, warehouse.Options{})
	cases := []struct {
		status  model.ShipmentStatus
		proceed bool
	}{
		{model.ShipmentPending, true},
		{model.ShipmentInProgress, true},
		{model.ShipmentCancelled, true},
		{model.ShipmentShipped, true},
		{model.ShipmentCollected, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			ref := "SHP-" + string(tc.status)
			if _, err := f.engine.CreateShipment(f.ctx, warehouse.NewShipment{ReferenceNumber: ref, Origin: "A", Destination: "B", Status: tc.status}); err != nil {
				t.Fatalf("create: %v", err)
			}
			got, err := f.engine.CheckPickupStatus(f.ctx, ref)
			if err != nil {
				t.Fatalf("check: %v", err)
			}
			if got.CanProceed != tc.proceed || got.Status != tc.status || got.Message == "" {
				t.Fatalf("unexpected pickup status %+v", got)
			}
		})
	}
	_, err := f.engine.CheckPickupStatus(f.ctx, "SHP-404")
	expectKind(t, err, warehouse.KindNotFound)
}

func TestMarkCollected(t *testing.T) {
	f := newFixture(t, nil, warehouse.Options{})
	f.shipment("SHP-1", 1000)

	for i := 0; i < 2; i++ {
		s, err := f.engine.MarkCollected(f.ctx, "SHP-1")
		if err != nil {
			t.Fatalf("collect #%d: %v", i+1, err)
		}
		if s.Status != model.ShipmentCollected {
			t.Fatalf("unexpected status %s", s.Status)
		}
	}
	got, err := f.engine.CheckPickupStatus(f.ctx, "SHP-1")
	if err != nil || got.CanProceed {
		t.Fatalf("second driver must be stopped: %+v %v", got, err)
	}
	_, err = f.engine.MarkCollected(f.ctx, "SHP-404")
	expectKind(t, err, warehouse.KindNotFound)
}

func TestShipmentManifest(t *testing.T) {
	f := newFixture(t, nil, warehouse.Options{})
	f.shipment("SHP-1", 1000)
	f.dock("D1")
	f.assign("D1", "SHP-1")
	f.pallet("PAL-1", kg(120))
	f.pallet("PAL-2", nil)
	f.pallet("PAL-3", kg(80))
	f.advance(time.Minute)
	for _, b := range []string{"PAL-1", "PAL-2"} {
		if _, err := f.engine.ScanPalletToDock(f.ctx, b, "D1"); err != nil {
			t.Fatalf("scan %s: %v", b, err)
		}
	}

	m, err := f.engine.ShipmentManifest(f.ctx, "SHP-1")
	if err != nil {
		t.Fatalf("manifest: %v", err)
	}
	if len(m.Pallets) != 2 || !m.TotalWeight.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("unexpected manifest %+v", m)
	}
	if !m.GeneratedAt.Equal(f.clock()) {
		t.Fatalf("unexpected generated_at %s", m.GeneratedAt)
	}
	_, err = f.engine.ShipmentManifest(f.ctx, "SHP-404")
	expectKind(t, err, warehouse.KindNotFound)
}
