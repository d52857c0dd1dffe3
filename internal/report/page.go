package report

import "scraptrade-reports/internal/domain"

// Canvas size of every normalized page, in pixels. It matches the printable
// area of an A4 page at report resolution.
const (
	CanvasWidth  = 535
	CanvasHeight = 650
)

type PageKind string

const (
	KindRealImage           PageKind = "real-image"
	KindNonImagePlaceholder PageKind = "non-image-placeholder"
	KindMissingPlaceholder  PageKind = "missing-placeholder"
)

type ImageFormat string

const (
	FormatJPEG ImageFormat = "JPG"
	FormatPNG  ImageFormat = "PNG"
)

// NormalizedPage is one rendered document slot, ready for assembly.
type NormalizedPage struct {
	Slot     domain.Slot
	Label    string
	FileName string
	MimeType string
	Image    []byte
	Format   ImageFormat
	Kind     PageKind
}

func (p NormalizedPage) ReferenceOnly() bool {
	return p.Kind != KindRealImage
}
