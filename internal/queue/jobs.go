// Package queue defines the background tasks shared by the API server and the
// export worker.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// RenderVoucherTask is scheduled after a voucher is generated so the worker
// can produce the PDF artifact.
const RenderVoucherTask = "voucher:render"

// RenderPayload identifies the voucher to render.
type RenderPayload struct {
	InstanceID string `json:"instance_id"`
	VoucherID  string `json:"voucher_id"`
}

// Exporter enqueues render tasks. It satisfies the agent's Exporter interface.
type Exporter struct {
	client *asynq.Client
}

// NewExporter wraps an asynq client.
func NewExporter(client *asynq.Client) *Exporter {
	return &Exporter{client: client}
}

// EnqueueRender schedules PDF rendering for a voucher. Rendering is
// idempotent, so retries are safe.
func (e *Exporter) EnqueueRender(ctx context.Context, instanceID, voucherID string) error {
	data, err := json.Marshal(RenderPayload{InstanceID: instanceID, VoucherID: voucherID})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(RenderVoucherTask, data)
	if _, err := e.client.EnqueueContext(ctx, task, asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("enqueue render task: %w", err)
	}
	return nil
}
