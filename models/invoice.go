package models

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts travel as JSON numbers in the backup format.
	decimal.MarshalJSONWithoutQuotes = true
}

type InvoiceState string

const (
	StateDeliveryNote InvoiceState = "delivery_note"
	StateReturnNote   InvoiceState = "return_note"
)

type PaymentType string

const (
	PaymentCash   PaymentType = "cash"
	PaymentCredit PaymentType = "credit"
)

// Invoice is the aggregate root. ID is the document key and is empty for
// an unsaved draft; InvoiceNumber is assigned once on first save.
type Invoice struct {
	ID            string          `json:"id"`
	InvoiceNumber int64           `json:"invoiceNumber"`
	Date          string          `json:"date"`
	CustomerName  string          `json:"customerName"`
	State         InvoiceState    `json:"state"`
	Products      []Product       `json:"products"`
	Note          string          `json:"note"`
	IsCompleted   bool            `json:"isCompleted"`
	IsTransfer    bool            `json:"isTransfer"`
	PaymentType   PaymentType     `json:"paymentType"`
	Discount      decimal.Decimal `json:"discount"`
	UserID        string          `json:"userId"`
}

// NewDraft returns the zero-valued invoice a user starts from.
func NewDraft(userID string, now time.Time) Invoice {
	return Invoice{
		Date:        now.Format("2006-01-02"),
		State:       StateDeliveryNote,
		PaymentType: PaymentCash,
		Products:    []Product{},
		Discount:    decimal.Zero,
		UserID:      userID,
	}
}

// RecalculateTotals recomputes every line item's total from price and meter.
func (inv *Invoice) RecalculateTotals() {
	for i := range inv.Products {
		inv.Products[i].Recalculate()
	}
}

// Matches reports whether term matches the customer name (case-insensitive)
// or appears in the invoice number.
func (inv *Invoice) Matches(term string) bool {
	if term == "" {
		return true
	}
	if strings.Contains(strings.ToLower(inv.CustomerName), strings.ToLower(term)) {
		return true
	}
	return strings.Contains(strconv.FormatInt(inv.InvoiceNumber, 10), term)
}

// Totals are derived from the line items and never stored.
type Totals struct {
	Quantity   int64           `json:"quantity"`
	Meter      decimal.Decimal `json:"meter"`
	Total      decimal.Decimal `json:"total"`
	Discount   decimal.Decimal `json:"discount"`
	FinalTotal decimal.Decimal `json:"finalTotal"`
}

// Totals sums the line items and subtracts the discount.
func (inv *Invoice) Totals() Totals {
	t := Totals{
		Meter:    decimal.Zero,
		Total:    decimal.Zero,
		Discount: inv.Discount,
	}
	for _, p := range inv.Products {
		t.Quantity += p.Quantity
		t.Meter = t.Meter.Add(p.Meter)
		t.Total = t.Total.Add(p.Total)
	}
	t.FinalTotal = t.Total.Sub(inv.Discount)
	return t
}

// InvoicePatch carries a partial set of invoice fields. Nil fields are left
// untouched when the patch is applied or merged into a stored document.
type InvoicePatch struct {
	InvoiceNumber *int64           `json:"invoiceNumber,omitempty"`
	Date          *string          `json:"date,omitempty"`
	CustomerName  *string          `json:"customerName,omitempty"`
	State         *InvoiceState    `json:"state,omitempty"`
	Products      *[]Product       `json:"products,omitempty"`
	Note          *string          `json:"note,omitempty"`
	IsCompleted   *bool            `json:"isCompleted,omitempty"`
	IsTransfer    *bool            `json:"isTransfer,omitempty"`
	PaymentType   *PaymentType     `json:"paymentType,omitempty"`
	Discount      *decimal.Decimal `json:"discount,omitempty"`
	UserID        *string          `json:"userId,omitempty"`
}

// Apply copies every set field of the patch onto inv.
func (p *InvoicePatch) Apply(inv *Invoice) {
	if p.InvoiceNumber != nil {
		inv.InvoiceNumber = *p.InvoiceNumber
	}
	if p.Date != nil {
		inv.Date = *p.Date
	}
	if p.CustomerName != nil {
		inv.CustomerName = *p.CustomerName
	}
	if p.State != nil {
		inv.State = *p.State
	}
	if p.Products != nil {
		inv.Products = append([]Product{}, (*p.Products)...)
	}
	if p.Note != nil {
		inv.Note = *p.Note
	}
	if p.IsCompleted != nil {
		inv.IsCompleted = *p.IsCompleted
	}
	if p.IsTransfer != nil {
		inv.IsTransfer = *p.IsTransfer
	}
	if p.PaymentType != nil {
		inv.PaymentType = *p.PaymentType
	}
	if p.Discount != nil {
		inv.Discount = *p.Discount
	}
	if p.UserID != nil {
		inv.UserID = *p.UserID
	}
}

// TouchesContent reports whether the patch edits anything other than the
// lock and transfer flags.
func (p *InvoicePatch) TouchesContent() bool {
	return p.InvoiceNumber != nil || p.Date != nil || p.CustomerName != nil ||
		p.State != nil || p.Products != nil || p.Note != nil ||
		p.PaymentType != nil || p.Discount != nil || p.UserID != nil
}

// StatusUpdate is the narrow status mutation.
type StatusUpdate struct {
	IsCompleted *bool `json:"isCompleted,omitempty"`
	IsTransfer  *bool `json:"isTransfer,omitempty"`
}
