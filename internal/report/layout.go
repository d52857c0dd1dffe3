package report

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"

	"scraptrade-reports/internal/domain"
)

const (
	pageMargin  = 30.0
	fontFamily  = "Helvetica"
	rowStep     = 22.0
	sectionGap  = 20.0
	maxNoteRows = 4

	colorTitle     = "#1a1a1a"
	colorSubHeader = "#333333"
	colorRule      = "#cccccc"
	colorLabel     = "#666666"
	colorMuted     = "#868e96"
	colorPositive  = "#28a745"
	colorNegative  = "#dc3545"
)

const (
	footerSystem      = "Invoice Management System"
	summaryNote       = "Note: Only image documents are included in full detail. Other document types are shown as references only."
	notSpecified      = "Not specified"
	referenceSuffix   = " (Reference Only)"
	notIncludedNotice = " | Document not included (non-image)"
)

type valueStyle int

const (
	stylePlain valueStyle = iota
	styleBadge
	styleEmphasis
)

type field struct {
	label string
	value string
	style valueStyle
	fg    string
	bg    string
}

type layout struct {
	pdf          *fpdf.Fpdf
	tr           func(string) string
	pageW, pageH float64
	contentW     float64
}

func newLayout(pdf *fpdf.Fpdf) *layout {
	w, h := pdf.GetPageSize()
	return &layout{
		pdf:      pdf,
		tr:       pdf.UnicodeTranslatorFromDescriptor(""),
		pageW:    w,
		pageH:    h,
		contentW: w - 2*pageMargin,
	}
}

func (l *layout) metadataPage(inv *domain.Invoice, generatedAt time.Time) {
	l.pdf.AddPage()
	l.title("Consolidated Invoice Report")

	details := []field{
		{label: "Invoice Number:", value: inv.InvoiceNumber},
		statusField(inv.Status),
		{label: "Weight:", value: FormatWeight(inv.Weight)},
	}
	if inv.HSNCode != nil && *inv.HSNCode != "" {
		details = append(details, field{label: "HSN Code:", value: *inv.HSNCode})
	}
	l.section("Invoice Details")
	l.grid(details)

	l.section("Party Information")
	l.grid([]field{
		{label: "Sale Party:", value: orNotSpecified(inv.SalePartyName)},
		{label: "Purchase Party:", value: orNotSpecified(inv.PurchasePartyName)},
	})

	l.section("Financial Information")
	l.grid(financialFields(inv))

	notes := noteFields(inv)
	if len(notes) > 0 {
		l.section("Notes")
		for _, f := range notes {
			l.wideRow(f)
		}
		l.pdf.Ln(sectionGap)
	}

	refs := make([]field, 0, len(domain.AllSlots))
	for _, slot := range domain.AllSlots {
		if id := inv.SlotRef(slot); id != nil {
			refs = append(refs, field{label: slot.Label() + ":", value: *id})
		}
	}
	l.section("Document References")
	l.grid(refs)

	l.section("Timestamps")
	l.grid([]field{
		{label: "Created:", value: FormatDate(inv.CreatedAt)},
		{label: "Last Updated:", value: FormatDate(inv.UpdatedAt)},
	})

	l.footer(fmt.Sprintf("Generated on %s | %s", FormatDate(generatedAt), footerSystem))
}

func statusField(status domain.InvoiceStatus) field {
	f := field{label: "Status:", value: status.Label(), style: styleBadge, fg: "#856404", bg: "#fff3cd"}
	if status == domain.InvoiceStatusCompleted {
		f.fg, f.bg = "#155724", "#d4edda"
	}
	return f
}

func financialFields(inv *domain.Invoice) []field {
	var fields []field
	if inv.SaleCost.Valid {
		fields = append(fields, field{label: "Sale Cost:", value: FormatCurrency(inv.SaleCost.Decimal)})
	}
	if inv.PurchaseCost.Valid {
		fields = append(fields, field{label: "Purchase Cost:", value: FormatCurrency(inv.PurchaseCost.Decimal)})
	}
	if inv.TDS.Valid && inv.TDS.Decimal.GreaterThan(decimal.Zero) {
		fields = append(fields, field{label: "TDS:", value: FormatPercent(inv.TDS.Decimal)})
	}
	if profit := inv.DisplayProfit(); profit.Valid {
		color := colorPositive
		if profit.Decimal.IsNegative() {
			color = colorNegative
		}
		fields = append(fields, field{label: "Profit:", value: FormatCurrency(profit.Decimal), style: styleEmphasis, fg: color})
	}
	return fields
}

func noteFields(inv *domain.Invoice) []field {
	var fields []field
	if inv.DebitNote != nil && *inv.DebitNote != "" {
		fields = append(fields, field{label: "Debit Note:", value: *inv.DebitNote})
	}
	if inv.CreditNote != nil && *inv.CreditNote != "" {
		fields = append(fields, field{label: "Credit Note:", value: *inv.CreditNote})
	}
	return fields
}

func orNotSpecified(name *string) string {
	if name == nil || *name == "" {
		return notSpecified
	}
	return *name
}

func (l *layout) summaryPage(pages []NormalizedPage) {
	images := 0
	for _, p := range pages {
		if p.Kind == KindRealImage {
			images++
		}
	}

	l.pdf.AddPage()
	l.title("Document Summary")
	l.section("Included Documents")
	l.wideRow(field{label: "Total Documents:", value: fmt.Sprintf("%d items", len(pages))})
	l.wideRow(field{label: "Images Included:", value: fmt.Sprintf("%d files", images)})
	l.wideRow(field{label: "Reference Only:", value: fmt.Sprintf("%d files", len(pages)-images)})
	l.pdf.Ln(sectionGap)

	l.pdf.SetFont(fontFamily, "", 10)
	l.textColor(colorMuted)
	l.pdf.MultiCell(0, 14, l.tr(summaryNote), "", "C", false)
}

func (l *layout) documentPage(page NormalizedPage, pageNo, total int, imageName string) {
	l.pdf.AddPage()

	heading := page.Label
	if page.ReferenceOnly() {
		heading += referenceSuffix
	}
	l.section(heading)

	opts := fpdf.ImageOptions{ImageType: string(page.Format), ReadDpi: false}
	l.pdf.RegisterImageOptionsReader(imageName, opts, bytes.NewReader(page.Image))
	y := l.pdf.GetY()
	l.pdf.ImageOptions(imageName, pageMargin, y, CanvasWidth, CanvasHeight, false, opts, 0, "")

	footer := fmt.Sprintf("%s | Page %d of %d", page.Label, pageNo, total)
	if page.ReferenceOnly() {
		footer += notIncludedNotice
	}
	l.footer(footer)
}

func (l *layout) title(text string) {
	l.pdf.SetFont(fontFamily, "B", 24)
	l.textColor(colorTitle)
	l.pdf.CellFormat(0, 28, l.tr(text), "", 1, "C", false, 0, "")
	l.pdf.Ln(sectionGap)
}

func (l *layout) section(text string) {
	l.pdf.SetFont(fontFamily, "B", 18)
	l.textColor(colorSubHeader)
	l.pdf.CellFormat(0, 22, l.fit(text, l.contentW), "", 1, "L", false, 0, "")
	y := l.pdf.GetY() + 5
	l.drawColor(colorRule)
	l.pdf.SetLineWidth(1)
	l.pdf.Line(pageMargin, y, l.pageW-pageMargin, y)
	l.pdf.SetY(y + 15)
}

// grid lays fields out two per row.
func (l *layout) grid(fields []field) {
	colW := l.contentW / 2
	labelW := colW * 0.4
	valueW := colW * 0.6
	top := l.pdf.GetY()

	for i, f := range fields {
		x := pageMargin + float64(i%2)*colW
		y := top + float64(i/2)*rowStep
		l.label(x, y, labelW, f.label)
		l.value(x+labelW, y, valueW, f)
	}

	rows := (len(fields) + 1) / 2
	l.pdf.SetY(top + float64(rows)*rowStep)
	l.pdf.Ln(sectionGap)
}

// wideRow spans the full content width and wraps long values.
func (l *layout) wideRow(f field) {
	labelW := l.contentW * 0.4
	valueW := l.contentW * 0.6
	y := l.pdf.GetY()
	l.label(pageMargin, y, labelW, f.label)

	l.pdf.SetFont(fontFamily, "", 11)
	l.textColor(colorTitle)
	lines := l.splitText(f.value, valueW)
	if len(lines) > maxNoteRows {
		lines = lines[:maxNoteRows]
		lines[maxNoteRows-1] = l.ellipsize(lines[maxNoteRows-1]+"...", valueW)
	}
	if len(lines) == 0 {
		lines = []string{""}
	}
	for i, line := range lines {
		l.pdf.SetXY(pageMargin+labelW, y+float64(i)*14)
		l.pdf.CellFormat(valueW, 14, line, "", 0, "L", false, 0, "")
	}
	l.pdf.SetY(y + float64(len(lines)-1)*14 + rowStep)
}

func (l *layout) label(x, y, w float64, text string) {
	l.pdf.SetFont(fontFamily, "B", 11)
	l.textColor(colorLabel)
	l.pdf.SetXY(x, y)
	l.pdf.CellFormat(w, 14, l.fit(text, w), "", 0, "L", false, 0, "")
}

func (l *layout) value(x, y, w float64, f field) {
	switch f.style {
	case styleBadge:
		l.pdf.SetFont(fontFamily, "", 10)
		text := l.tr(f.value)
		bw := l.pdf.GetStringWidth(text) + 16
		l.fillColor(f.bg)
		l.pdf.Rect(x, y-1, bw, 16, "F")
		l.textColor(f.fg)
		l.pdf.SetXY(x, y-1)
		l.pdf.CellFormat(bw, 16, text, "", 0, "C", false, 0, "")
	case styleEmphasis:
		l.pdf.SetFont(fontFamily, "B", 11)
		l.textColor(f.fg)
		l.pdf.SetXY(x, y)
		l.pdf.CellFormat(w, 14, l.fit(f.value, w), "", 0, "L", false, 0, "")
	default:
		l.pdf.SetFont(fontFamily, "", 11)
		l.textColor(colorTitle)
		l.pdf.SetXY(x, y)
		l.pdf.CellFormat(w, 14, l.fit(f.value, w), "", 0, "L", false, 0, "")
	}
}

func (l *layout) footer(text string) {
	textH := 12.0
	top := l.pageH - pageMargin - textH
	rule := top - 10
	l.drawColor(colorRule)
	l.pdf.SetLineWidth(1)
	l.pdf.Line(pageMargin, rule, l.pageW-pageMargin, rule)

	l.pdf.SetFont(fontFamily, "", 10)
	l.textColor(colorLabel)
	l.pdf.SetXY(pageMargin, top)
	l.pdf.CellFormat(l.contentW, textH, l.fit(text, l.contentW), "", 0, "C", false, 0, "")
}

// splitText wraps text to w points. SplitText looks widths up by rune, so the
// translated single-byte text is widened to one rune per byte and narrowed
// back afterwards.
func (l *layout) splitText(text string, w float64) []string {
	enc := l.tr(text)
	wide := make([]rune, len(enc))
	for i := 0; i < len(enc); i++ {
		wide[i] = rune(enc[i])
	}
	lines := l.pdf.SplitText(string(wide), w)
	for i, line := range lines {
		narrow := make([]byte, 0, len(line))
		for _, r := range line {
			narrow = append(narrow, byte(r))
		}
		lines[i] = string(narrow)
	}
	return lines
}

// fit translates text to the core font encoding and shortens it to w
// points with the current font.
func (l *layout) fit(text string, w float64) string {
	return l.ellipsize(l.tr(text), w)
}

// ellipsize works on already-translated single-byte text.
func (l *layout) ellipsize(s string, w float64) string {
	if l.pdf.GetStringWidth(s) <= w {
		return s
	}
	for len(s) > 0 {
		s = s[:len(s)-1]
		if l.pdf.GetStringWidth(s+"...") <= w {
			return s + "..."
		}
	}
	return s
}

func (l *layout) textColor(hex string) {
	r, g, b := hexRGB(hex)
	l.pdf.SetTextColor(r, g, b)
}

func (l *layout) drawColor(hex string) {
	r, g, b := hexRGB(hex)
	l.pdf.SetDrawColor(r, g, b)
}

func (l *layout) fillColor(hex string) {
	r, g, b := hexRGB(hex)
	l.pdf.SetFillColor(r, g, b)
}

// hexRGB parses "#rrggbb". Malformed input yields black.
func hexRGB(hex string) (int, int, int) {
	if len(hex) != 7 || hex[0] != '#' {
		return 0, 0, 0
	}
	v, err := strconv.ParseUint(hex[1:], 16, 32)
	if err != nil {
		return 0, 0, 0
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)
}
