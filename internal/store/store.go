// Package store persists per-session state keyed by the client-supplied
// instance identifier. Two implementations exist: an in-memory map for
// development and tests, and a Postgres-backed store for durable deployments.
package store

import (
	"context"
	"errors"

	"github.com/msandnes/invoiceagent/internal/model"
)

// ErrNotFound is returned when a session or voucher does not exist.
var ErrNotFound = errors.New("not found")

// SessionRecord is the durable portion of a session's state. The transient
// processing status lives on the agent, not here.
type SessionRecord struct {
	InstanceID       string
	CorrectedInvoice *model.Invoice
	Vouchers         map[string]model.Voucher
}

// NewSessionRecord returns an empty record for an instance id.
func NewSessionRecord(instanceID string) *SessionRecord {
	return &SessionRecord{
		InstanceID: instanceID,
		Vouchers:   make(map[string]model.Voucher),
	}
}

// Store is the keyed session-state store. All writes for one instance id go
// through that instance's agent, which is the single writer for the key.
type Store interface {
	// Load returns the record for an instance id, or ErrNotFound if the id has
	// never been written.
	Load(ctx context.Context, instanceID string) (*SessionRecord, error)
	// SaveInvoice upserts the session's draft invoice.
	SaveInvoice(ctx context.Context, instanceID string, inv model.Invoice) error
	// PutVoucher upserts a voucher. An existing voucher with the same id is
	// overwritten (last write wins).
	PutVoucher(ctx context.Context, instanceID string, v model.Voucher) error
	// DeleteVoucher removes a voucher; deleting an absent id is not an error.
	DeleteVoucher(ctx context.Context, instanceID, voucherID string) error
	// SetVoucherPDFKey records the rendered PDF artifact for a voucher.
	SetVoucherPDFKey(ctx context.Context, instanceID, voucherID, pdfKey string) error
}
