package normalize

import (
	"bytes"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"
)

// Page layout for rendered text. Changing any of these changes the bytes of
// every rendered document.
const (
	fontFamily = "Helvetica"
	fontSize   = 11
	lineHeight = 10
	marginMM   = 15
)

// renderEpoch is stamped as creation and modification date so identical
// input renders to identical bytes.
var renderEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// RenderText lays text out as a single-column A4 PDF with automatic page
// breaks. Output is deterministic for a given input.
func RenderText(text string) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(renderEpoch)
	pdf.SetModificationDate(renderEpoch)
	pdf.SetCatalogSort(true)
	pdf.SetMargins(marginMM, marginMM, marginMM)
	pdf.SetAutoPageBreak(true, marginMM)
	pdf.AddPage()
	pdf.SetFont(fontFamily, "", fontSize)
	pdf.MultiCell(0, lineHeight, Sanitize(text), "", "J", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// Sanitize encodes text as Windows-1252, the encoding of the PDF core
// fonts, substituting '?' for every character it cannot represent.
func Sanitize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r < utf8.RuneSelf {
			b.WriteByte(byte(r))
			continue
		}
		if c, ok := charmap.Windows1252.EncodeRune(r); ok {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('?')
	}
	return b.String()
}

// DecodeText interprets raw as UTF-8, replacing each invalid byte with U+FFFD.
func DecodeText(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	var b strings.Builder
	b.Grow(len(raw))
	for len(raw) > 0 {
		r, size := utf8.DecodeRune(raw)
		b.WriteRune(r)
		raw = raw[size:]
	}
	return b.String()
}
