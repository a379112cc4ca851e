// Package agent implements the per-session stateful agent. One Agent owns all
// state for one instance id: the draft invoice, the processing status, and the
// voucher map. HTTP handlers and realtime connections reach the state only
// through the agent's operations.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/msandnes/invoiceagent/internal/guidance"
	"github.com/msandnes/invoiceagent/internal/llm"
	"github.com/msandnes/invoiceagent/internal/model"
	"github.com/msandnes/invoiceagent/internal/store"
)

// Processing status values. The status is a transient progress flag; it is
// never persisted.
const (
	StatusIdle       = "idle"
	StatusParsing    = "parsing"
	StatusGenerating = "generating"
)

// Exporter enqueues background rendering of a voucher PDF. Optional; a nil
// exporter disables the pipeline.
type Exporter interface {
	EnqueueRender(ctx context.Context, instanceID, voucherID string) error
}

// Agent sequences the two LLM calls and guards one session's state. The
// mutex covers status and subscriber bookkeeping only; it is deliberately not
// held across capability calls, so two concurrent generations race only on
// which voucher write lands first.
type Agent struct {
	instanceID string
	store      store.Store
	extractor  llm.Extractor
	generator  llm.Generator
	guidance   *guidance.Service
	exporter   Exporter
	log        *logrus.Logger

	mu     sync.Mutex
	status string
	subs   map[chan []byte]struct{}
}

func newAgent(instanceID string, deps Deps) *Agent {
	return &Agent{
		instanceID: instanceID,
		store:      deps.Store,
		extractor:  deps.Extractor,
		generator:  deps.Generator,
		guidance:   deps.Guidance,
		exporter:   deps.Exporter,
		log:        deps.Log,
		status:     StatusIdle,
		subs:       make(map[chan []byte]struct{}),
	}
}

// InstanceID returns the session identifier this agent owns.
func (a *Agent) InstanceID() string { return a.instanceID }

// Status returns the current processing status.
func (a *Agent) Status() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

func (a *Agent) setStatus(status string) {
	a.mu.Lock()
	a.status = status
	a.mu.Unlock()
}

// Subscribe registers a realtime listener. Every broadcast event goes to all
// live subscribers. The returned cancel function is idempotent and closes the
// channel.
func (a *Agent) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, 16)
	a.mu.Lock()
	a.subs[ch] = struct{}{}
	a.mu.Unlock()
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			a.mu.Lock()
			delete(a.subs, ch)
			a.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (a *Agent) broadcast(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		a.log.WithError(err).Error("encode broadcast event")
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for ch := range a.subs {
		select {
		case ch <- payload:
		default:
			// Slow consumer; drop rather than stall the agent.
			a.log.WithField("instance", a.instanceID).Warn("subscriber buffer full, dropping event")
		}
	}
}

// loadRecord returns the session record, substituting an empty record when the
// id has never been written. Reads are self-healing.
func (a *Agent) loadRecord(ctx context.Context) (*store.SessionRecord, error) {
	rec, err := a.store.Load(ctx, a.instanceID)
	if err != nil {
		if err == store.ErrNotFound {
			return store.NewSessionRecord(a.instanceID), nil
		}
		return nil, err
	}
	return rec, nil
}

// ListVouchers returns the session's vouchers in no particular order. It
// never fails: an uninitialized session or a store error yields an empty list.
func (a *Agent) ListVouchers(ctx context.Context) []model.Voucher {
	rec, err := a.loadRecord(ctx)
	if err != nil {
		a.log.WithError(err).WithField("instance", a.instanceID).Error("load session for voucher list")
		return []model.Voucher{}
	}
	out := make([]model.Voucher, 0, len(rec.Vouchers))
	for _, v := range rec.Vouchers {
		out = append(out, v)
	}
	return out
}

// GetVoucher returns the voucher for id, or store.ErrNotFound.
func (a *Agent) GetVoucher(ctx context.Context, voucherID string) (model.Voucher, error) {
	rec, err := a.loadRecord(ctx)
	if err != nil {
		return model.Voucher{}, err
	}
	v, ok := rec.Vouchers[voucherID]
	if !ok {
		return model.Voucher{}, store.ErrNotFound
	}
	return v, nil
}

// DeleteVoucher removes a voucher. Deleting an absent id succeeds.
func (a *Agent) DeleteVoucher(ctx context.Context, voucherID string) error {
	return a.store.DeleteVoucher(ctx, a.instanceID, voucherID)
}

// Draft returns the session's current draft invoice, or nil.
func (a *Agent) Draft(ctx context.Context) *model.Invoice {
	rec, err := a.loadRecord(ctx)
	if err != nil {
		a.log.WithError(err).WithField("instance", a.instanceID).Error("load session for draft")
		return nil
	}
	return rec.CorrectedInvoice
}

// ParseInvoice runs the extraction capability over an uploaded invoice. On
// success the result becomes the session's draft and a parsed_invoice event is
// pushed; the invoice is also returned for the synchronous HTTP response. On
// failure no event is pushed.
func (a *Agent) ParseInvoice(ctx context.Context, image []byte, contentType, pdfText string) (*model.Invoice, error) {
	a.setStatus(StatusParsing)
	inv, err := a.extractor.Extract(ctx, image, contentType, pdfText)
	if err != nil {
		a.setStatus(StatusIdle)
		return nil, err
	}
	if err := a.store.SaveInvoice(ctx, a.instanceID, *inv); err != nil {
		a.setStatus(StatusIdle)
		return nil, err
	}
	a.setStatus(StatusIdle)
	a.broadcast(model.NewParsedInvoiceEvent(*inv))
	return inv, nil
}

// HandleMessage dispatches one inbound realtime frame. Malformed frames and
// unrecognized tags are ignored without terminating the channel.
func (a *Agent) HandleMessage(ctx context.Context, raw []byte) {
	var env model.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		a.log.WithField("instance", a.instanceID).Debug("ignoring malformed channel message")
		return
	}
	switch env.Type {
	case model.MsgEditInvoice:
		a.handleEditInvoice(ctx, env.Data)
	case model.MsgGenerateVoucher:
		a.handleGenerateVoucher(ctx)
	default:
		a.log.WithFields(logrus.Fields{
			"instance": a.instanceID,
			"type":     env.Type,
		}).Debug("ignoring unrecognized channel message")
	}
}

// handleEditInvoice replaces the draft when the payload passes schema
// validation; invalid payloads are dropped silently per the documented
// tolerance.
func (a *Agent) handleEditInvoice(ctx context.Context, data json.RawMessage) {
	var inv model.Invoice
	if err := json.Unmarshal(data, &inv); err != nil {
		a.log.WithField("instance", a.instanceID).Debug("dropping undecodable edit_invoice")
		return
	}
	if err := inv.Validate(); err != nil {
		a.log.WithField("instance", a.instanceID).Debug("dropping invalid edit_invoice")
		return
	}
	if err := a.store.SaveInvoice(ctx, a.instanceID, inv); err != nil {
		a.log.WithError(err).WithField("instance", a.instanceID).Error("persist edited invoice")
	}
}

// handleGenerateVoucher runs the generation capability for the current draft.
// Without a draft the message is a no-op.
func (a *Agent) handleGenerateVoucher(ctx context.Context) {
	rec, err := a.loadRecord(ctx)
	if err != nil {
		a.log.WithError(err).WithField("instance", a.instanceID).Error("load session for generation")
		return
	}
	if rec.CorrectedInvoice == nil {
		return
	}
	inv := *rec.CorrectedInvoice

	a.setStatus(StatusGenerating)
	guidanceText := a.guidance.Guidance(ctx, inv)
	voucherID := model.NewVoucherID()

	voucher, err := a.generator.Generate(ctx, inv, guidanceText, voucherID)
	if err != nil {
		a.setStatus(StatusIdle)
		a.log.WithError(err).WithField("instance", a.instanceID).Error("voucher generation failed")
		a.broadcast(model.NewValidationErrorsEvent("Generation failed"))
		return
	}
	if voucher.VoucherID == "" {
		voucher.VoucherID = voucherID
	}
	if voucher.CreatedAt == "" {
		voucher.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}

	if err := a.store.PutVoucher(ctx, a.instanceID, *voucher); err != nil {
		a.setStatus(StatusIdle)
		a.log.WithError(err).WithField("instance", a.instanceID).Error("persist generated voucher")
		a.broadcast(model.NewValidationErrorsEvent("Generation failed"))
		return
	}
	a.setStatus(StatusIdle)

	summary := fmt.Sprintf("Voucher %s created for %s", voucher.VoucherID, inv.VendorName)
	a.broadcast(model.NewVoucherEvent(summary, *voucher))

	if a.exporter != nil {
		if err := a.exporter.EnqueueRender(ctx, a.instanceID, voucher.VoucherID); err != nil {
			a.log.WithError(err).WithField("voucher", voucher.VoucherID).Warn("enqueue voucher export")
		}
	}
}
