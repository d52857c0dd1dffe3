package domain

type InvoiceStatus string

const (
	InvoiceStatusPaymentPending InvoiceStatus = "payment_pending"
	InvoiceStatusCompleted      InvoiceStatus = "completed"
)

func (s InvoiceStatus) Label() string {
	if s == InvoiceStatusCompleted {
		return "Completed"
	}
	return "Payment Pending"
}

type StorageType string

const (
	StorageObject      StorageType = "supabase"
	StorageGoogleDrive StorageType = "google_drive"
)

type DocumentType string

const (
	DocumentTypeSale           DocumentType = "sale"
	DocumentTypePurchase       DocumentType = "purchase"
	DocumentTypeToll           DocumentType = "toll"
	DocumentTypeWeightReport   DocumentType = "weight_report"
	DocumentTypeClassification DocumentType = "classification"
	DocumentTypeConsolidated   DocumentType = "consolidated"
	DocumentTypeOther          DocumentType = "other"
)

type Slot string

const (
	SlotSale           Slot = "sale"
	SlotPurchase       Slot = "purchase"
	SlotToll           Slot = "toll"
	SlotWeightReport   Slot = "weight_report"
	SlotClassification Slot = "classification"
	SlotConsolidated   Slot = "consolidated"
)

// ReportSlots is the enumeration order of documents embedded in a
// consolidated report. The consolidated slot is deliberately absent.
var ReportSlots = []Slot{
	SlotSale,
	SlotPurchase,
	SlotToll,
	SlotWeightReport,
	SlotClassification,
}

// AllSlots lists every slot an invoice carries, in display order.
var AllSlots = []Slot{
	SlotSale,
	SlotPurchase,
	SlotToll,
	SlotWeightReport,
	SlotClassification,
	SlotConsolidated,
}

func (s Slot) Label() string {
	switch s {
	case SlotSale:
		return "Sale Document"
	case SlotPurchase:
		return "Purchase Document"
	case SlotToll:
		return "Toll Document"
	case SlotWeightReport:
		return "Weight Report"
	case SlotClassification:
		return "Classification Report"
	case SlotConsolidated:
		return "Consolidated Report"
	default:
		return string(s)
	}
}
