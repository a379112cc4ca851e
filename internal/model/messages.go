package model

import "encoding/json"

// Message types exchanged over the realtime channel. Inbound and outbound
// messages share one envelope discriminated by the "type" field; tags outside
// this set are ignored by the agent.
const (
	MsgEditInvoice      = "edit_invoice"
	MsgGenerateVoucher  = "generate_voucher"
	MsgParsedInvoice    = "parsed_invoice"
	MsgVoucher          = "voucher"
	MsgValidationErrors = "validation_errors"
)

// Envelope is the raw frame decoded from a client. Data is left opaque until
// the tag has been matched.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ParsedInvoiceEvent is pushed after a successful extraction.
type ParsedInvoiceEvent struct {
	Type string  `json:"type"`
	Data Invoice `json:"data"`
}

// VoucherEvent is pushed after a successful generation. Data carries a
// human-readable summary alongside the full voucher.
type VoucherEvent struct {
	Type    string  `json:"type"`
	Data    string  `json:"data"`
	Voucher Voucher `json:"voucher"`
}

// ValidationErrorsEvent is pushed when generation fails. The errors carry a
// generic message only; the underlying cause stays in the server log.
type ValidationErrorsEvent struct {
	Type   string `json:"type"`
	Errors any    `json:"errors"`
}

// NewParsedInvoiceEvent builds the parsed_invoice push frame.
func NewParsedInvoiceEvent(inv Invoice) ParsedInvoiceEvent {
	return ParsedInvoiceEvent{Type: MsgParsedInvoice, Data: inv}
}

// NewVoucherEvent builds the voucher push frame.
func NewVoucherEvent(summary string, v Voucher) VoucherEvent {
	return VoucherEvent{Type: MsgVoucher, Data: summary, Voucher: v}
}

// NewValidationErrorsEvent builds the validation_errors push frame.
func NewValidationErrorsEvent(message string) ValidationErrorsEvent {
	return ValidationErrorsEvent{
		Type:   MsgValidationErrors,
		Errors: []map[string]string{{"message": message}},
	}
}
