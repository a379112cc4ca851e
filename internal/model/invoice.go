// Package model defines the invoice and voucher shapes shared by the API, the
// session agents, and the export worker, together with the validation applied
// at every untrusted boundary.
package model

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
)

// dateLayout is the wire format for all calendar dates.
const dateLayout = "2006-01-02"

var validate = validator.New()

// InvoiceItem is a single line on an invoice.
type InvoiceItem struct {
	Description string  `json:"description" validate:"required"`
	Quantity    float64 `json:"quantity" validate:"required,gt=0"`
	Price       float64 `json:"price" validate:"required,gt=0"`
}

// Invoice is the API representation of an invoice. Dates travel as
// YYYY-MM-DD strings. Total is client-maintained and is not reconciled
// against the line items server-side.
type Invoice struct {
	InvoiceNumber string        `json:"invoiceNumber" validate:"required"`
	Date          string        `json:"date" validate:"required,datetime=2006-01-02"`
	VendorName    string        `json:"vendorName" validate:"required"`
	Total         float64       `json:"total" validate:"required,gt=0"`
	Items         []InvoiceItem `json:"items" validate:"required,min=1,dive"`
}

// InvoiceForm mirrors Invoice with a native date value, as used by form
// handling on the client side of the API.
type InvoiceForm struct {
	InvoiceNumber string
	Date          time.Time
	VendorName    string
	Total         float64
	Items         []InvoiceItem
}

// Validate checks an invoice against the schema. A nil return means the
// invoice is safe to store.
func (inv *Invoice) Validate() error {
	return validate.Struct(inv)
}

// ErrInvalidDate is returned by FormToAPI when the form date cannot be
// expressed on the wire.
var ErrInvalidDate = errors.New("invalid date")

// FormToAPI converts the form representation to the API representation.
// Only the day component survives; time-of-day is dropped. Dates outside
// the representable calendar range fail deterministically.
func FormToAPI(form InvoiceForm) (Invoice, error) {
	if form.Date.IsZero() || form.Date.Year() < 0 || form.Date.Year() > 9999 {
		return Invoice{}, ErrInvalidDate
	}
	return Invoice{
		InvoiceNumber: form.InvoiceNumber,
		Date:          form.Date.UTC().Format(dateLayout),
		VendorName:    form.VendorName,
		Total:         form.Total,
		Items:         form.Items,
	}, nil
}

// APIToForm converts the API representation to the form representation.
// It succeeds for any well-formed YYYY-MM-DD date.
func APIToForm(inv Invoice) (InvoiceForm, error) {
	day, err := time.Parse(dateLayout, inv.Date)
	if err != nil {
		return InvoiceForm{}, err
	}
	return InvoiceForm{
		InvoiceNumber: inv.InvoiceNumber,
		Date:          day.UTC(),
		VendorName:    inv.VendorName,
		Total:         inv.Total,
		Items:         inv.Items,
	}, nil
}
