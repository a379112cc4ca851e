package llm

import (
	"fmt"
	"strings"

	"github.com/msandnes/invoiceagent/internal/model"
)

const extractSystemPrompt = `You extract structured data from invoices.
Respond with a single JSON object with exactly these fields:
{"invoiceNumber": string, "date": "YYYY-MM-DD", "vendorName": string, "total": number, "items": [{"description": string, "quantity": number, "price": number}]}
Extract: invoice number, date (YYYY-MM-DD), vendor name, total, items (description, quantity, price).`

const generateSystemPrompt = `You are an expert accountant creating US GAAP compliant journal vouchers.

Respond with a single JSON object with exactly these fields:
{"voucherId": string, "date": "YYYY-MM-DD", "description": string, "entries": [{"accountName": string, "accountCode": string, "debit": number, "credit": number, "gaapReasoning": string}], "createdAt": string}

IMPORTANT REQUIREMENTS:
- Use the exact voucherId provided: %s
- Use proper 4-digit account codes (1000-7999 range)
- Include specific ASC references in GAAP reasoning
- Ensure debits equal credits exactly
- Use professional account names

Common Account Codes:
- 1000-1999: Assets (1000=Cash, 1200=Accounts Receivable, 1300=Inventory)
- 2000-2999: Liabilities (2000=Accounts Payable, 2100=Accrued Expenses)
- 3000-3999: Equity
- 4000-4999: Revenue
- 5000-5999: Cost of Goods Sold
- 6000-6999: Operating Expenses (6100=Office Supplies, 6200=Rent, 6300=Utilities)
- 7000-7999: Other Expenses

Use this accounting guidance: %s`

func extractUserPrompt(pdfText string) string {
	if pdfText == "" {
		return "Extract the invoice fields from the attached image."
	}
	return "Extract the invoice fields from the following invoice text:\n\n" + pdfText
}

func generateUserPrompt(inv model.Invoice, voucherID string) string {
	items := make([]string, 0, len(inv.Items))
	for _, item := range inv.Items {
		items = append(items, fmt.Sprintf("%s (%g × $%g)", item.Description, item.Quantity, item.Price))
	}
	return fmt.Sprintf(`Create a professional journal voucher for this invoice:

Invoice Number: %s
Date: %s
Vendor: %s
Total: $%g
Items: %s

Requirements:
- voucherId: %s
- date: %s
- description: "%s - Invoice #%s"
- Create balanced debit/credit entries with proper account codes
- Include detailed GAAP reasoning with ASC references (e.g., "ASC 720-15" for prepaid expenses)
- Use current ISO timestamp for createdAt
- Ensure all amounts are exactly balanced`,
		inv.InvoiceNumber, inv.Date, inv.VendorName, inv.Total, strings.Join(items, ", "),
		voucherID, inv.Date, inv.VendorName, inv.InvoiceNumber)
}
