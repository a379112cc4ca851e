// Package llm defines the language-model capabilities the session agent
// depends on, as injected interfaces so tests can substitute deterministic
// stubs.
package llm

import (
	"context"

	"github.com/msandnes/invoiceagent/internal/model"
)

// Extractor turns an uploaded invoice into a structured Invoice. The image is
// optional when pdfText is present (PDF uploads are extracted to text first).
type Extractor interface {
	Extract(ctx context.Context, image []byte, contentType, pdfText string) (*model.Invoice, error)
}

// Generator produces a journal voucher for an invoice. The voucher id is
// chosen server-side and handed to the model; guidance is free-form accounting
// context obtained from the retrieval capability.
type Generator interface {
	Generate(ctx context.Context, inv model.Invoice, guidance, voucherID string) (*model.Voucher, error)
}
