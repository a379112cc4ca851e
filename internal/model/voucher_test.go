package model_test

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/msandnes/invoiceagent/internal/model"
)

func TestVoucherTotals(t *testing.T) {
	tests := []struct {
		name         string
		entries      []model.VoucherEntry
		wantDebits   float64
		wantCredits  float64
		wantDiff     float64
		wantBalanced bool
	}{
		{
			name:         "empty entries are balanced with zero sums",
			entries:      nil,
			wantBalanced: true,
		},
		{
			name: "balanced pair",
			entries: []model.VoucherEntry{
				{AccountName: "Office Supplies", AccountCode: "6100", Debit: 100},
				{AccountName: "Accounts Payable", AccountCode: "2000", Credit: 100},
			},
			wantDebits:   100,
			wantCredits:  100,
			wantBalanced: true,
		},
		{
			name: "within epsilon",
			entries: []model.VoucherEntry{
				{Debit: 100.005},
				{Credit: 100},
			},
			wantDebits:   100.005,
			wantCredits:  100,
			wantDiff:     0.005,
			wantBalanced: true,
		},
		{
			name: "unbalanced",
			entries: []model.VoucherEntry{
				{Debit: 100},
				{Credit: 90},
			},
			wantDebits:   100,
			wantCredits:  90,
			wantDiff:     10,
			wantBalanced: false,
		},
		{
			name: "exactly at epsilon is unbalanced",
			entries: []model.VoucherEntry{
				{Debit: 100.01},
				{Credit: 100},
			},
			wantDebits:   100.01,
			wantCredits:  100,
			wantDiff:     0.01,
			wantBalanced: false,
		},
		{
			name: "float sums that would drift without decimals",
			entries: []model.VoucherEntry{
				{Debit: 0.1},
				{Debit: 0.2},
				{Credit: 0.3},
			},
			wantDebits:   0.3,
			wantCredits:  0.3,
			wantBalanced: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			totals := model.Voucher{Entries: tt.entries}.Totals()
			assert.Equal(t, tt.wantDebits, totals.TotalDebits)
			assert.Equal(t, tt.wantCredits, totals.TotalCredits)
			assert.Equal(t, tt.wantDiff, totals.Difference)
			assert.Equal(t, tt.wantBalanced, totals.IsBalanced)
		})
	}
}

func TestNewVoucherIDFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^VCH-\d{8}-\d{3}$`)
	for i := 0; i < 50; i++ {
		id := model.NewVoucherID()
		assert.Regexp(t, pattern, id)
	}
}
