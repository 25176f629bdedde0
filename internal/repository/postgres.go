// Package repository holds the Postgres entity store. All SQL used by the
// API, the worker and the ops CLI lives here.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/dharsanguruparan/DockGuard/internal/model"
	"github.com/dharsanguruparan/DockGuard/internal/warehouse"
)

// PgErrUniqueViolation is the SQLSTATE raised when a unique constraint fails.
const PgErrUniqueViolation = "23505"

var _ warehouse.Store = (*Store)(nil)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements warehouse.Store on a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const (
	palletColumns   = `id, barcode, status, weight, current_dock_id, shipment_id, created_at`
	dockColumns     = `id, number, dock_type, is_occupied, current_shipment_id`
	shipmentColumns = `id, reference_number, origin, destination, status, max_weight_capacity, created_at`
)

// CreatePallet inserts a new pallet row.
func (s *Store) CreatePallet(ctx context.Context, p *model.Pallet) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pallets (id, barcode, status, weight, current_dock_id, shipment_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, p.ID, p.Barcode, string(p.Status), nullDecimal(p.Weight), p.CurrentDockID, p.ShipmentID, p.CreatedAt)
	if err != nil {
		return classify("insert pallet", err)
	}
	return nil
}

// PalletByBarcode returns a pallet by its natural key.
func (s *Store) PalletByBarcode(ctx context.Context, barcode string) (*model.Pallet, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+palletColumns+` FROM pallets WHERE barcode=$1`, barcode)
	return scanPallet(row)
}

// ListPallets returns every pallet ordered by creation time.
func (s *Store) ListPallets(ctx context.Context) ([]*model.Pallet, error) {
	return queryPallets(ctx, s.pool, `SELECT `+palletColumns+` FROM pallets ORDER BY created_at, barcode`)
}

// PalletsByShipment returns the pallets bound to a shipment.
func (s *Store) PalletsByShipment(ctx context.Context, shipmentID string) ([]*model.Pallet, error) {
	return queryPallets(ctx, s.pool, `SELECT `+palletColumns+` FROM pallets WHERE shipment_id=$1 ORDER BY created_at, barcode`, shipmentID)
}

// CreateDock inserts a new dock row.
func (s *Store) CreateDock(ctx context.Context, d *model.Dock) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO docks (id, number, dock_type, is_occupied, current_shipment_id)
		VALUES ($1,$2,$3,$4,$5)
	`, d.ID, d.Number, string(d.Type), d.IsOccupied, d.CurrentShipmentID)
	if err != nil {
		return classify("insert dock", err)
	}
	return nil
}

// ListDocks returns every dock ordered by number.
func (s *Store) ListDocks(ctx context.Context) ([]*model.Dock, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+dockColumns+` FROM docks ORDER BY number`)
	if err != nil {
		return nil, fmt.Errorf("select docks: %w", err)
	}
	defer rows.Close()
	var out []*model.Dock
	for rows.Next() {
		d, err := scanDock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate docks: %w", err)
	}
	return out, nil
}

// CreateShipment inserts a new shipment row.
func (s *Store) CreateShipment(ctx context.Context, sh *model.Shipment) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO shipments (id, reference_number, origin, destination, status, max_weight_capacity, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, sh.ID, sh.ReferenceNumber, sh.Origin, sh.Destination, string(sh.Status), sh.MaxWeightCapacity, sh.CreatedAt)
	if err != nil {
		return classify("insert shipment", err)
	}
	return nil
}

// ShipmentByRef returns a shipment by reference number.
func (s *Store) ShipmentByRef(ctx context.Context, ref string) (*model.Shipment, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE reference_number=$1`, ref)
	return scanShipment(row)
}

// ListShipments returns every shipment ordered by creation time.
func (s *Store) ListShipments(ctx context.Context) ([]*model.Shipment, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+shipmentColumns+` FROM shipments ORDER BY created_at, reference_number`)
	if err != nil {
		return nil, fmt.Errorf("select shipments: %w", err)
	}
	defer rows.Close()
	var out []*model.Shipment
	for rows.Next() {
		sh, err := scanShipment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sh)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shipments: %w", err)
	}
	return out, nil
}

// InTx runs fn in a READ COMMITTED transaction. Locks taken with
// SELECT ... FOR UPDATE are released on commit or rollback.
func (s *Store) InTx(ctx context.Context, fn func(tx warehouse.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) PalletByBarcodeForUpdate(ctx context.Context, barcode string) (*model.Pallet, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+palletColumns+` FROM pallets WHERE barcode=$1 FOR UPDATE`, barcode)
	return scanPallet(row)
}

func (t *pgTx) DockByNumberForUpdate(ctx context.Context, number string) (*model.Dock, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+dockColumns+` FROM docks WHERE number=$1 FOR UPDATE`, number)
	return scanDock(row)
}

func (t *pgTx) DockByShipmentForUpdate(ctx context.Context, shipmentID string) (*model.Dock, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT `+dockColumns+` FROM docks
		WHERE current_shipment_id=$1
		ORDER BY number
		LIMIT 1
		FOR UPDATE
	`, shipmentID)
	return scanDock(row)
}

func (t *pgTx) DockByShipment(ctx context.Context, shipmentID string) (*model.Dock, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT `+dockColumns+` FROM docks
		WHERE current_shipment_id=$1
		ORDER BY number
		LIMIT 1
	`, shipmentID)
	return scanDock(row)
}

func (t *pgTx) ShipmentByRef(ctx context.Context, ref string) (*model.Shipment, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE reference_number=$1`, ref)
	return scanShipment(row)
}

func (t *pgTx) ShipmentByIDForUpdate(ctx context.Context, id string) (*model.Shipment, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE id=$1 FOR UPDATE`, id)
	return scanShipment(row)
}

func (t *pgTx) ShipmentLoad(ctx context.Context, shipmentID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := t.tx.QueryRow(ctx, `SELECT COALESCE(SUM(weight), 0) FROM pallets WHERE shipment_id=$1`, shipmentID).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum pallet weight: %w", err)
	}
	return total, nil
}

func (t *pgTx) UpdatePallet(ctx context.Context, p *model.Pallet) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE pallets
		SET status=$1, weight=$2, current_dock_id=$3, shipment_id=$4
		WHERE id=$5
	`, string(p.Status), nullDecimal(p.Weight), p.CurrentDockID, p.ShipmentID, p.ID)
	return affected("update pallet", tag, err)
}

func (t *pgTx) UpdateDock(ctx context.Context, d *model.Dock) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE docks
		SET is_occupied=$1, current_shipment_id=$2
		WHERE id=$3
	`, d.IsOccupied, d.CurrentShipmentID, d.ID)
	return affected("update dock", tag, err)
}

func (t *pgTx) UpdateShipmentStatus(ctx context.Context, id string, status model.ShipmentStatus) error {
	tag, err := t.tx.Exec(ctx, `UPDATE shipments SET status=$1 WHERE id=$2`, string(status), id)
	return affected("update shipment", tag, err)
}

func queryPallets(ctx context.Context, q querier, sql string, args ...any) ([]*model.Pallet, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("select pallets: %w", err)
	}
	defer rows.Close()
	var out []*model.Pallet
	for rows.Next() {
		p, err := scanPallet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pallets: %w", err)
	}
	return out, nil
}

func scanPallet(row pgx.Row) (*model.Pallet, error) {
	var (
		p      model.Pallet
		status string
		weight decimal.NullDecimal
	)
	if err := row.Scan(&p.ID, &p.Barcode, &status, &weight, &p.CurrentDockID, &p.ShipmentID, &p.CreatedAt); err != nil {
		return nil, notFound("select pallet", err)
	}
	var err error
	if p.Status, err = model.ParsePalletStatus(status); err != nil {
		return nil, fmt.Errorf("select pallet %s: %w", p.ID, err)
	}
	if weight.Valid {
		w := weight.Decimal
		p.Weight = &w
	}
	return &p, nil
}

func scanDock(row pgx.Row) (*model.Dock, error) {
	var (
		d        model.Dock
		dockType string
	)
	if err := row.Scan(&d.ID, &d.Number, &dockType, &d.IsOccupied, &d.CurrentShipmentID); err != nil {
		return nil, notFound("select dock", err)
	}
	var err error
	if d.Type, err = model.ParseDockType(dockType); err != nil {
		return nil, fmt.Errorf("select dock %s: %w", d.ID, err)
	}
	return &d, nil
}

func scanShipment(row pgx.Row) (*model.Shipment, error) {
	var (
		sh     model.Shipment
		status string
	)
	if err := row.Scan(&sh.ID, &sh.ReferenceNumber, &sh.Origin, &sh.Destination, &status, &sh.MaxWeightCapacity, &sh.CreatedAt); err != nil {
		return nil, notFound("select shipment", err)
	}
	var err error
	if sh.Status, err = model.ParseShipmentStatus(status); err != nil {
		return nil, fmt.Errorf("select shipment %s: %w", sh.ID, err)
	}
	return &sh, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func notFound(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, warehouse.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == PgErrUniqueViolation {
		return fmt.Errorf("%s: %s: %w", op, pgErr.ConstraintName, warehouse.ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func affected(op string, tag pgconn.CommandTag, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, warehouse.ErrNotFound)
	}
	return nil
}
