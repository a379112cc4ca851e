package model

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
)

// VoucherEntry is one debit/credit line of a journal voucher.
type VoucherEntry struct {
	AccountName   string  `json:"accountName"`
	AccountCode   string  `json:"accountCode"`
	Debit         float64 `json:"debit"`
	Credit        float64 `json:"credit"`
	GAAPReasoning string  `json:"gaapReasoning"`
}

// Voucher is a journal voucher derived from an invoice. The balanced
// property is advisory: it is computed on read via Totals, never enforced
// on write.
type Voucher struct {
	VoucherID   string         `json:"voucherId"`
	Date        string         `json:"date"`
	Description string         `json:"description"`
	Entries     []VoucherEntry `json:"entries"`
	CreatedAt   string         `json:"createdAt"`
	PDFKey      string         `json:"pdfKey,omitempty"`
}

// balanceEpsilon is the fixed tolerance for the balanced check.
var balanceEpsilon = decimal.NewFromFloat(0.01)

// VoucherTotals summarizes the debit and credit columns of a voucher.
type VoucherTotals struct {
	TotalDebits  float64 `json:"totalDebits"`
	TotalCredits float64 `json:"totalCredits"`
	Difference   float64 `json:"difference"`
	IsBalanced   bool    `json:"isBalanced"`
}

// Totals sums the debit and credit columns independently. An empty entry
// list yields zero sums and counts as balanced.
func (v Voucher) Totals() VoucherTotals {
	debits := decimal.Zero
	credits := decimal.Zero
	for _, e := range v.Entries {
		debits = debits.Add(decimal.NewFromFloat(e.Debit))
		credits = credits.Add(decimal.NewFromFloat(e.Credit))
	}
	diff := debits.Sub(credits).Abs()
	return VoucherTotals{
		TotalDebits:  debits.InexactFloat64(),
		TotalCredits: credits.InexactFloat64(),
		Difference:   diff.InexactFloat64(),
		IsBalanced:   diff.LessThan(balanceEpsilon),
	}
}

// NewVoucherID returns an id of the form VCH-YYYYMMDD-NNN: a UTC day stamp
// plus a 3-digit random sequence. IDs are practically unique per day, not
// globally unique.
func NewVoucherID() string {
	stamp := time.Now().UTC().Format("20060102")
	return fmt.Sprintf("VCH-%s-%03d", stamp, rand.Intn(999)+1)
}
