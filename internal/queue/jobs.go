package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
)

const (
	// ScanIngestTask carries a raw scanner event accepted by the gateway.
	ScanIngestTask = "scan:ingest"
	// ManifestExportTask is scheduled each time a dock is released.
	ManifestExportTask = "manifest:export"
)

// ScanPayload is what a handheld scanner posts to the gateway.
type ScanPayload struct {
	Barcode    string           `json:"barcode"`
	DockNumber string           `json:"dock_number,omitempty"`
	ScannerID  string           `json:"scanner_id,omitempty"`
	Weight     *decimal.Decimal `json:"weight,omitempty"`
}

// ManifestPayload names the shipment whose manifest should be exported.
type ManifestPayload struct {
	ShipmentRef string `json:"shipment_ref"`
}

// Enqueuer is the subset of *asynq.Client the producers need.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// EnqueueScan enqueues a scanner event for asynchronous ingestion.
func EnqueueScan(ctx context.Context, client Enqueuer, payload ScanPayload) error {
	return enqueue(ctx, client, ScanIngestTask, payload)
}

// EnqueueManifest enqueues a manifest export for a released shipment.
func EnqueueManifest(ctx context.Context, client Enqueuer, payload ManifestPayload) error {
	return enqueue(ctx, client, ManifestExportTask, payload)
}

func enqueue(ctx context.Context, client Enqueuer, kind string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(kind, data)
	if _, err := client.EnqueueContext(ctx, task, asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("enqueue %s task: %w", kind, err)
	}
	return nil
}
