package report

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"

	"scraptrade-reports/internal/domain"
)

var ErrRender = errors.New("render report")

// Report is a finished consolidated PDF.
type Report struct {
	Bytes       []byte
	PageCount   int
	GeneratedAt time.Time
}

// Assembler lays out the consolidated PDF. It keeps no state between calls
// and is safe for concurrent use.
type Assembler struct {
	now func() time.Time
}

func NewAssembler(now func() time.Time) *Assembler {
	if now == nil {
		now = time.Now
	}
	return &Assembler{now: now}
}

// ExpectedPageCount is the number of pages Assemble produces for n
// normalized pages.
func ExpectedPageCount(n int) int {
	if n == 0 {
		return 1
	}
	return 2 + n
}

func (a *Assembler) Assemble(inv *domain.Invoice, pages []NormalizedPage) (*Report, error) {
	if inv == nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInvoice, domain.ErrInvoiceMissing)
	}
	generatedAt := a.now()

	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(generatedAt)
	pdf.SetModificationDate(generatedAt)
	pdf.SetTitle("Consolidated Invoice Report "+inv.InvoiceNumber, true)
	pdf.SetCreator("Invoice Management System", true)

	l := newLayout(pdf)
	total := ExpectedPageCount(len(pages))

	l.metadataPage(inv, generatedAt)
	if len(pages) > 0 {
		l.summaryPage(pages)
	}
	for i, page := range pages {
		// metadata and summary pages come first
		l.documentPage(page, i+3, total, fmt.Sprintf("document-%02d", i+1))
	}

	if pdf.Err() {
		return nil, fmt.Errorf("%w: %w", ErrRender, pdf.Error())
	}
	if got := pdf.PageCount(); got != total {
		return nil, fmt.Errorf("%w: laid out %d pages, want %d", ErrRender, got, total)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRender, err)
	}
	return &Report{
		Bytes:       buf.Bytes(),
		PageCount:   total,
		GeneratedAt: generatedAt,
	}, nil
}
