package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msandnes/invoiceagent/internal/model"
	"github.com/msandnes/invoiceagent/internal/store"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryStore()

	_, err := m.Load(ctx, "s1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	inv := model.Invoice{
		InvoiceNumber: "INV-1",
		Date:          "2024-01-01",
		VendorName:    "Acme",
		Total:         100,
		Items:         []model.InvoiceItem{{Description: "Widget", Quantity: 2, Price: 50}},
	}
	require.NoError(t, m.SaveInvoice(ctx, "s1", inv))

	rec, err := m.Load(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, rec.CorrectedInvoice)
	assert.Equal(t, "Acme", rec.CorrectedInvoice.VendorName)
	assert.Empty(t, rec.Vouchers)

	v := model.Voucher{VoucherID: "VCH-20240101-001", Date: "2024-01-01", Description: "Acme - Invoice #INV-1"}
	require.NoError(t, m.PutVoucher(ctx, "s1", v))

	rec, err = m.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, rec.Vouchers, 1)

	// Mutating the returned copy must not affect stored state.
	rec.Vouchers["VCH-20240101-001"] = model.Voucher{VoucherID: "tampered"}
	rec.CorrectedInvoice.VendorName = "tampered"
	fresh, err := m.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Acme - Invoice #INV-1", fresh.Vouchers["VCH-20240101-001"].Description)
	assert.Equal(t, "Acme", fresh.CorrectedInvoice.VendorName)
}

func TestMemoryStoreDeleteVoucherIdempotent(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryStore()

	// Deleting from an unknown session is fine.
	assert.NoError(t, m.DeleteVoucher(ctx, "ghost", "VCH-X"))

	require.NoError(t, m.PutVoucher(ctx, "s1", model.Voucher{VoucherID: "VCH-X"}))
	assert.NoError(t, m.DeleteVoucher(ctx, "s1", "VCH-X"))
	assert.NoError(t, m.DeleteVoucher(ctx, "s1", "VCH-X"))

	rec, err := m.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, rec.Vouchers)
}

func TestMemoryStoreSetVoucherPDFKey(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryStore()

	assert.ErrorIs(t, m.SetVoucherPDFKey(ctx, "s1", "VCH-X", "k"), store.ErrNotFound)

	require.NoError(t, m.PutVoucher(ctx, "s1", model.Voucher{VoucherID: "VCH-X"}))
	require.NoError(t, m.SetVoucherPDFKey(ctx, "s1", "VCH-X", "vouchers/s1/VCH-X.pdf"))

	rec, err := m.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "vouchers/s1/VCH-X.pdf", rec.Vouchers["VCH-X"].PDFKey)
}

func TestMemoryStoreIsolation(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemoryStore()

	require.NoError(t, m.PutVoucher(ctx, "a", model.Voucher{VoucherID: "VCH-A"}))
	require.NoError(t, m.PutVoucher(ctx, "b", model.Voucher{VoucherID: "VCH-B"}))

	recA, err := m.Load(ctx, "a")
	require.NoError(t, err)
	recB, err := m.Load(ctx, "b")
	require.NoError(t, err)

	assert.Contains(t, recA.Vouchers, "VCH-A")
	assert.NotContains(t, recA.Vouchers, "VCH-B")
	assert.Contains(t, recB.Vouchers, "VCH-B")
	assert.NotContains(t, recB.Vouchers, "VCH-A")
}
