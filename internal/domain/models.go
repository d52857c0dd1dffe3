package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Invoice struct {
	ID            string              `json:"id"`
	InvoiceNumber string              `json:"invoice_number"`
	Weight        float64             `json:"weight"`
	SaleCost      decimal.NullDecimal `json:"sale_cost"`
	PurchaseCost  decimal.NullDecimal `json:"purchase_cost"`
	Profit        decimal.NullDecimal `json:"profit"`
	TDS           decimal.NullDecimal `json:"tds"`
	Status        InvoiceStatus       `json:"status"`
	HSNCode       *string             `json:"hsn_code"`
	DebitNote     *string             `json:"debit_note"`
	CreditNote    *string             `json:"credit_note"`

	SaleDoc              *string `json:"sale_doc"`
	PurchaseDoc          *string `json:"purchase_doc"`
	TollDoc              *string `json:"toll_doc"`
	WeightReport         *string `json:"weight_report"`
	ClassificationReport *string `json:"classification_report"`
	ConsolidatedReportID *string `json:"consolidated_report_id"`

	SalePartyName     *string `json:"sale_party"`
	PurchasePartyName *string `json:"purchase_party"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SlotRef returns the document identifier attached to slot, or nil.
func (inv *Invoice) SlotRef(slot Slot) *string {
	var ref *string
	switch slot {
	case SlotSale:
		ref = inv.SaleDoc
	case SlotPurchase:
		ref = inv.PurchaseDoc
	case SlotToll:
		ref = inv.TollDoc
	case SlotWeightReport:
		ref = inv.WeightReport
	case SlotClassification:
		ref = inv.ClassificationReport
	case SlotConsolidated:
		ref = inv.ConsolidatedReportID
	}
	if ref == nil || *ref == "" {
		return nil
	}
	return ref
}

// DisplayProfit prefers the stored profit and falls back to sale minus
// purchase when both costs are known.
func (inv *Invoice) DisplayProfit() decimal.NullDecimal {
	if inv.Profit.Valid {
		return inv.Profit
	}
	if inv.SaleCost.Valid && inv.PurchaseCost.Valid {
		return decimal.NewNullDecimal(inv.SaleCost.Decimal.Sub(inv.PurchaseCost.Decimal))
	}
	return decimal.NullDecimal{}
}

type InvoiceRef struct {
	ID            string `json:"id"`
	InvoiceNumber string `json:"invoice_number"`
}

// DocumentRecord is one row of the metadata catalog.
type DocumentRecord struct {
	ID           string       `json:"id"`
	DocumentID   string       `json:"document_id"`
	FileName     string       `json:"file_name"`
	FileSize     int64        `json:"file_size"`
	MimeType     string       `json:"file_type"`
	StorageType  StorageType  `json:"storage_type"`
	StorageKey   string       `json:"storage_path"`
	DocumentType DocumentType `json:"document_type"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// LookupOutcome tells which identifier a catalog lookup matched on.
type LookupOutcome int

const (
	LookupMissing LookupOutcome = iota
	LookupByRowID
	LookupByDocumentID
)

type DocumentLookup struct {
	Outcome LookupOutcome
	Record  DocumentRecord
}

func (l DocumentLookup) Found() bool {
	return l.Outcome != LookupMissing
}
