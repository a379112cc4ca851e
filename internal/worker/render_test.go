package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msandnes/invoiceagent/internal/model"
)

func TestRenderProducesPDF(t *testing.T) {
	v := model.Voucher{
		VoucherID:   "VCH-20240101-001",
		Date:        "2024-01-01",
		Description: "Acme - Invoice #INV-1",
		Entries: []model.VoucherEntry{
			{AccountName: "Office Supplies", AccountCode: "6100", Debit: 100, GAAPReasoning: "ASC 720-15: expense as incurred."},
			{AccountName: "Accounts Payable", AccountCode: "2000", Credit: 100, GAAPReasoning: "ASC 405-20: obligation recognized."},
		},
		CreatedAt: "2024-01-01T00:00:00Z",
	}
	data, err := Render(v)
	require.NoError(t, err)
	require.NotEmpty(t, data)
	assert.Equal(t, "%PDF", string(data[:4]))
}

func TestRenderEmptyVoucher(t *testing.T) {
	data, err := Render(model.Voucher{VoucherID: "VCH-20240101-002"})
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}
