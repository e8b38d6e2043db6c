package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dslipak/pdf"
)

// TextExtractor turns document bytes into plain text, pages joined in order.
type TextExtractor interface {
	ExtractText(content []byte) (string, error)
}

// PDFTextExtractor extracts page text with github.com/dslipak/pdf.
type PDFTextExtractor struct{}

// NewPDFTextExtractor creates a new PDFTextExtractor.
func NewPDFTextExtractor() *PDFTextExtractor {
	return &PDFTextExtractor{}
}

var errNotPDF = errors.New("content is not a PDF document")

// wordGap is the horizontal jump, in font-size units, that separates two
// words drawn on the same baseline.
const wordGap = 0.2

// ExtractText implements TextExtractor. Glyphs are grouped into lines by
// baseline, top to bottom, and every page ends with a newline. The PDF reader
// panics on some malformed inputs; those are reported as errors.
func (e *PDFTextExtractor) ExtractText(content []byte) (text string, err error) {
	if !looksLikePDF(content) {
		return "", errNotPDF
	}

	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("ExtractText: malformed PDF: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("ExtractText: open: %w", err)
	}

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, line := range pageLines(page.Content().Text) {
			b.WriteString(line)
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}

type textLine struct {
	y      float64
	glyphs []pdf.Text
}

// pageLines groups glyphs sharing a baseline, keeping drawing order within a
// line. Fonts without a Widths array report zero advance, so a new word is
// detected from the position jump rather than from the glyph width.
func pageLines(glyphs []pdf.Text) []string {
	var lines []*textLine
	byY := make(map[float64]*textLine)
	for _, g := range glyphs {
		y := math.Round(g.Y)
		ln, ok := byY[y]
		if !ok {
			ln = &textLine{y: y}
			byY[y] = ln
			lines = append(lines, ln)
		}
		ln.glyphs = append(ln.glyphs, g)
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].y > lines[j].y })

	out := make([]string, 0, len(lines))
	for _, ln := range lines {
		var b strings.Builder
		for i, g := range ln.glyphs {
			if i > 0 && startsWord(ln.glyphs[i-1], g) {
				b.WriteByte(' ')
			}
			b.WriteString(g.S)
		}
		if s := strings.TrimSpace(b.String()); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func startsWord(prev, g pdf.Text) bool {
	if prev.S == " " || g.S == " " {
		return false
	}
	size := prev.FontSize
	if size <= 0 {
		size = 1
	}
	gap := g.X - (prev.X + prev.W)
	return gap > wordGap*size || g.X < prev.X-wordGap*size
}

// looksLikePDF checks for the %PDF- header within the first KiB, where
// readers tolerate leading garbage.
func looksLikePDF(content []byte) bool {
	head := content
	if len(head) > 1024 {
		head = head[:1024]
	}
	return bytes.Contains(head, []byte("%PDF-"))
}
