// Package worker consumes render tasks and produces voucher PDF artifacts.
package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/msandnes/invoiceagent/internal/objstore"
	"github.com/msandnes/invoiceagent/internal/queue"
	"github.com/msandnes/invoiceagent/internal/store"
)

// Processor is plugged into the asynq worker loop.
type Processor struct {
	store store.Store
	objs  *objstore.Storage
	log   *logrus.Logger
}

// NewProcessor constructs a worker processor.
func NewProcessor(st store.Store, objs *objstore.Storage, log *logrus.Logger) *Processor {
	return &Processor{store: st, objs: objs, log: log}
}

// Handler registers the render job handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.RenderVoucherTask, p.handleRender)
	return mux
}

func (p *Processor) handleRender(ctx context.Context, task *asynq.Task) error {
	var payload queue.RenderPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	fields := logrus.Fields{"instance": payload.InstanceID, "voucher": payload.VoucherID}

	rec, err := p.store.Load(ctx, payload.InstanceID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	voucher, ok := rec.Vouchers[payload.VoucherID]
	if !ok {
		// Deleted before rendering; nothing to do and no point retrying.
		p.log.WithFields(fields).Info("voucher gone before render, skipping")
		return nil
	}

	pdfBytes, err := Render(voucher)
	if err != nil {
		return fmt.Errorf("render voucher pdf: %w", err)
	}

	objectKey := fmt.Sprintf("vouchers/%s/%s.pdf", payload.InstanceID, payload.VoucherID)
	if err := p.objs.UploadPDF(ctx, objectKey, pdfBytes); err != nil {
		return fmt.Errorf("upload voucher pdf: %w", err)
	}
	if err := p.store.SetVoucherPDFKey(ctx, payload.InstanceID, payload.VoucherID, objectKey); err != nil {
		return fmt.Errorf("record pdf key: %w", err)
	}
	p.log.WithFields(fields).WithField("bytes", len(pdfBytes)).Info("voucher pdf rendered")
	return nil
}
