package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/dharsanguruparan/DockGuard/internal/model"
	"github.com/dharsanguruparan/DockGuard/internal/queue"
	"github.com/dharsanguruparan/DockGuard/internal/warehouse"
)

// Engine is the part of *warehouse.Engine the worker drives.
type Engine interface {
	CreatePallet(ctx context.Context, barcode string, weight *decimal.Decimal) (*model.Pallet, error)
	ShipmentManifest(ctx context.Context, shipmentRef string) (*warehouse.Manifest, error)
}

// ManifestStore persists exported manifests. *s3storage.Storage satisfies it.
type ManifestStore interface {
	UploadManifest(ctx context.Context, ref string, data []byte) error
}

// Processor is plugged into the asynq worker loop.
type Processor struct {
	engine    Engine
	manifests ManifestStore
}

// NewProcessor constructs a worker processor. manifests may be nil when
// manifest export is disabled.
func NewProcessor(engine Engine, manifests ManifestStore) *Processor {
	return &Processor{engine: engine, manifests: manifests}
}

// Handler registers the job handlers.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.ScanIngestTask, p.handleScan)
	mux.HandleFunc(queue.ManifestExportTask, p.handleManifest)
	return mux
}

func (p *Processor) handleScan(ctx context.Context, task *asynq.Task) error {
	var payload queue.ScanPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %w: %w", err, asynq.SkipRetry)
	}
	pallet, err := p.engine.CreatePallet(ctx, payload.Barcode, payload.Weight)
	if err != nil {
		log.Printf("scan ingest failed barcode=%s scanner=%s: %v", payload.Barcode, payload.ScannerID, err)
		return terminal(err)
	}
	log.Printf("scan ingested barcode=%s pallet=%s scanner=%s dock=%s", pallet.Barcode, pallet.ID, payload.ScannerID, payload.DockNumber)
	return nil
}

func (p *Processor) handleManifest(ctx context.Context, task *asynq.Task) error {
	var payload queue.ManifestPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %w: %w", err, asynq.SkipRetry)
	}
	if p.manifests == nil {
		log.Printf("manifest export disabled, dropping shipment=%s", payload.ShipmentRef)
		return nil
	}
	manifest, err := p.engine.ShipmentManifest(ctx, payload.ShipmentRef)
	if err != nil {
		return terminal(err)
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := p.manifests.UploadManifest(ctx, payload.ShipmentRef, data); err != nil {
		return err
	}
	log.Printf("manifest exported shipment=%s pallets=%d bytes=%d", payload.ShipmentRef, len(manifest.Pallets), len(data))
	return nil
}

// terminal stops asynq from retrying business rejections. Infrastructure
// errors are returned as is and retried.
func terminal(err error) error {
	if _, ok := warehouse.KindOf(err); ok {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return err
}
