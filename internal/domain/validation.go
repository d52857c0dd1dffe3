package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	ErrInvoiceMissing     = errors.New("invoice is nil")
	ErrInvoiceIDMissing   = errors.New("invoice id is empty")
	ErrInvoiceNumberEmpty = errors.New("invoice number is empty")
	ErrUnknownStatus      = errors.New("unknown invoice status")
)

var validate = validator.New()

// UploadRequest describes a document upload before it reaches storage.
type UploadRequest struct {
	FileName     string       `validate:"required,max=255"`
	MimeType     string       `validate:"required"`
	DocumentType DocumentType `validate:"required,oneof=sale purchase toll weight_report classification other"`
	Size         int64        `validate:"gt=0"`
}

func ValidateUpload(req UploadRequest) error {
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid upload: field %s failed %q", strings.ToLower(verrs[0].Field()), verrs[0].Tag())
		}
		return fmt.Errorf("invalid upload: %w", err)
	}
	return nil
}

// ValidateInvoiceForReport rejects invoices a consolidated report cannot be
// built from.
func ValidateInvoiceForReport(inv *Invoice) error {
	if inv == nil {
		return ErrInvoiceMissing
	}
	if strings.TrimSpace(inv.ID) == "" {
		return ErrInvoiceIDMissing
	}
	if strings.TrimSpace(inv.InvoiceNumber) == "" {
		return ErrInvoiceNumberEmpty
	}
	switch inv.Status {
	case InvoiceStatusPaymentPending, InvoiceStatusCompleted:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStatus, inv.Status)
	}
	return nil
}

// NewDocumentID builds the human-assigned identifier stored in the catalog,
// e.g. "sale_1718000000000_1a2b3c4d".
func NewDocumentID(docType DocumentType, now time.Time, uniq string) string {
	uniq = strings.ReplaceAll(uniq, "-", "")
	if len(uniq) > 8 {
		uniq = uniq[:8]
	}
	return fmt.Sprintf("%s_%d_%s", docType, now.UnixMilli(), uniq)
}

// ConsolidatedDocumentID names a generated report document.
func ConsolidatedDocumentID(invoiceNumber string, now time.Time) string {
	return fmt.Sprintf("consolidated_%s_%d", invoiceNumber, now.UnixMilli())
}

func ConsolidatedFileName(invoiceNumber string) string {
	return fmt.Sprintf("consolidated_report_%s.pdf", invoiceNumber)
}

func ConsolidatedStorageKey(documentID string) string {
	return "consolidated-reports/" + documentID + ".pdf"
}
