package report

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

type fontSet struct {
	regular *truetype.Font
	bold    *truetype.Font
}

var loadFonts = sync.OnceValues(func() (fontSet, error) {
	regular, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return fontSet{}, fmt.Errorf("parse regular font: %w", err)
	}
	bold, err := truetype.Parse(gobold.TTF)
	if err != nil {
		return fontSet{}, fmt.Errorf("parse bold font: %w", err)
	}
	return fontSet{regular: regular, bold: bold}, nil
})

// Faces hold glyph caches and are not safe for concurrent use, so each
// drawing gets its own.
func face(f *truetype.Font, size float64) font.Face {
	return truetype.NewFace(f, &truetype.Options{Size: size, DPI: 72})
}

const textMargin = 40

// DrawReferencePlaceholder draws the card shown in place of a stored
// document that is not an image.
func DrawReferencePlaceholder(label, fileName, mimeType string) ([]byte, error) {
	fonts, err := loadFonts()
	if err != nil {
		return nil, err
	}

	dc := gg.NewContext(CanvasWidth, CanvasHeight)
	dc.SetHexColor("#ffffff")
	dc.Clear()
	dc.DrawRectangle(0.5, 0.5, CanvasWidth-1, CanvasHeight-1)
	dc.SetHexColor("#dee2e6")
	dc.SetLineWidth(1)
	dc.Stroke()

	// file glyph
	dc.DrawRoundedRectangle(200, 200, 135, 160, 8)
	dc.SetHexColor("#f8f9fa")
	dc.FillPreserve()
	dc.SetHexColor("#adb5bd")
	dc.SetLineWidth(2)
	dc.Stroke()
	dc.SetHexColor("#dee2e6")
	dc.DrawRoundedRectangle(210, 210, 115, 10, 2)
	dc.DrawRoundedRectangle(210, 230, 95, 8, 2)
	dc.DrawRoundedRectangle(210, 250, 75, 8, 2)
	dc.Fill()

	dc.DrawCircle(267, 400, 30)
	dc.SetRGBA(0x6c/255.0, 0x75/255.0, 0x7d/255.0, 0.8)
	dc.Fill()
	dc.SetFontFace(face(fonts.bold, 12))
	dc.SetHexColor("#ffffff")
	dc.DrawStringAnchored("DOC", 267, 400, 0.5, 0.35)

	centred(dc, face(fonts.bold, 16), "#495057", label, 450)
	centred(dc, face(fonts.regular, 12), "#6c757d", fileName, 480)
	centred(dc, face(fonts.regular, 10), "#868e96", mimeType, 500)
	centred(dc, face(fonts.regular, 9), "#868e96", "Only image documents are included in consolidated reports", 580)
	centred(dc, face(fonts.regular, 9), "#868e96", "This document reference is shown for completeness", 600)

	return encodePNG(dc)
}

// DrawMissingPlaceholder draws the error-state page used when a document
// could not be retrieved or decoded.
func DrawMissingPlaceholder(label string) ([]byte, error) {
	fonts, err := loadFonts()
	if err != nil {
		return nil, err
	}

	dc := gg.NewContext(CanvasWidth, CanvasHeight)
	dc.SetHexColor("#f8f9fa")
	dc.Clear()
	dc.SetDash(10, 5)
	dc.DrawRectangle(1, 1, CanvasWidth-2, CanvasHeight-2)
	dc.SetHexColor("#dc3545")
	dc.SetLineWidth(2)
	dc.Stroke()
	dc.SetDash()

	centred(dc, face(fonts.bold, 20), "#dc3545", "Document Not Found", 260)
	centred(dc, face(fonts.regular, 16), "#6c757d", label, 300)
	centred(dc, face(fonts.regular, 12), "#868e96", "This document could not be retrieved", 340)

	return encodePNG(dc)
}

// centred draws s with its baseline at y, shortened with an ellipsis when it
// would run into the side margins.
func centred(dc *gg.Context, f font.Face, color, s string, y float64) {
	dc.SetFontFace(f)
	dc.SetHexColor(color)
	dc.DrawStringAnchored(truncate(dc, s, CanvasWidth-2*textMargin), CanvasWidth/2, y, 0.5, 0)
}

func truncate(dc *gg.Context, s string, maxWidth float64) string {
	if w, _ := dc.MeasureString(s); w <= maxWidth {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		candidate := string(runes) + "..."
		if w, _ := dc.MeasureString(candidate); w <= maxWidth {
			return candidate
		}
	}
	return "..."
}

func encodePNG(dc *gg.Context) ([]byte, error) {
	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode placeholder: %w", err)
	}
	return buf.Bytes(), nil
}
