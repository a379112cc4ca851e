package store

import (
	"context"
	"sync"

	"github.com/msandnes/invoiceagent/internal/model"
)

// MemoryStore keeps session records in a mutex-guarded map. It is the default
// backend when no database is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*SessionRecord
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*SessionRecord)}
}

var _ Store = (*MemoryStore)(nil)

// Load returns a deep copy so callers cannot mutate shared state.
func (m *MemoryStore) Load(_ context.Context, instanceID string) (*SessionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.sessions[instanceID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRecord(rec), nil
}

func (m *MemoryStore) SaveInvoice(_ context.Context, instanceID string, inv model.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.ensure(instanceID)
	rec.CorrectedInvoice = &inv
	return nil
}

func (m *MemoryStore) PutVoucher(_ context.Context, instanceID string, v model.Voucher) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.ensure(instanceID)
	rec.Vouchers[v.VoucherID] = v
	return nil
}

func (m *MemoryStore) DeleteVoucher(_ context.Context, instanceID, voucherID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.sessions[instanceID]; ok {
		delete(rec.Vouchers, voucherID)
	}
	return nil
}

func (m *MemoryStore) SetVoucherPDFKey(_ context.Context, instanceID, voucherID, pdfKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.sessions[instanceID]
	if !ok {
		return ErrNotFound
	}
	v, ok := rec.Vouchers[voucherID]
	if !ok {
		return ErrNotFound
	}
	v.PDFKey = pdfKey
	rec.Vouchers[voucherID] = v
	return nil
}

// ensure must be called with the write lock held.
func (m *MemoryStore) ensure(instanceID string) *SessionRecord {
	rec, ok := m.sessions[instanceID]
	if !ok {
		rec = NewSessionRecord(instanceID)
		m.sessions[instanceID] = rec
	}
	return rec
}

func copyRecord(rec *SessionRecord) *SessionRecord {
	out := NewSessionRecord(rec.InstanceID)
	if rec.CorrectedInvoice != nil {
		inv := *rec.CorrectedInvoice
		inv.Items = append([]model.InvoiceItem(nil), rec.CorrectedInvoice.Items...)
		out.CorrectedInvoice = &inv
	}
	for id, v := range rec.Vouchers {
		v.Entries = append([]model.VoucherEntry(nil), v.Entries...)
		out.Vouchers[id] = v
	}
	return out
}
