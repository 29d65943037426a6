// Package pdf renders the logical document to a fixed-page-geometry
// PDF.
package pdf

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jung-kurt/gofpdf"

	"github.com/jackzampolin/bindery/internal/cover"
	"github.com/jackzampolin/bindery/internal/doc"
	"github.com/jackzampolin/bindery/internal/images"
)

const (
	pageMargin = 25.4 // mm

	bodyFontSize    = 12
	headingFontSize = 18
	titleFontSize   = 28
	captionFontSize = 9

	lineHeight   = 6 // mm at body size
	blockGap     = 4
	pxToMM       = 25.4 / 96.0
	coverTopFrac = 0.18 // title block offset on a text-only cover
)

// Builder creates PDF files from a logical document and its image set.
type Builder struct {
	doc    *doc.Document
	set    images.Set
	logger *slog.Logger

	warnings []string
	embedded int
}

// NewBuilder creates a new PDF builder.
func NewBuilder(d *doc.Document, set images.Set, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		doc:    d,
		set:    set,
		logger: logger.With("component", "pdf"),
	}
}

// Build generates the PDF and writes it to the specified path.
func (b *Builder) Build(outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	return b.WriteTo(f)
}

// BuildToBuffer generates the PDF and returns it as a byte buffer.
func (b *Builder) BuildToBuffer() (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	if err := b.WriteTo(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteTo renders the document and writes the PDF to a writer.
// Page ordering mirrors the DOCX forced breaks: cover page, TOC page,
// then body sections flowing across pages as height requires.
func (b *Builder) WriteTo(w io.Writer) error {
	p := newPage(b)

	if b.doc.Cover != nil {
		p.renderCover(b.doc.Cover)
	}

	if len(b.doc.TOC) > 0 {
		p.renderTOC(b.doc.TOC)
	}

	p.startBodyPage()
	for _, s := range b.doc.Sections {
		p.renderSection(s)
	}

	if p.pdf.Err() {
		return fmt.Errorf("pdf render failed: %w", p.pdf.Error())
	}
	if err := p.pdf.Output(w); err != nil {
		return fmt.Errorf("pdf output failed: %w", err)
	}
	return nil
}

// Warnings returns the degrade warnings accumulated during the build.
func (b *Builder) Warnings() []string {
	return b.warnings
}

// EmbeddedImageCount returns how many images were physically placed.
func (b *Builder) EmbeddedImageCount() int {
	return b.embedded
}

// page tracks the running vertical cursor over gofpdf pages.
type page struct {
	b   *Builder
	pdf *gofpdf.Fpdf
	tr  func(string) string

	contentW float64
	pageH    float64
	limit    float64 // y beyond which a block must not start
}

func newPage(b *Builder) *page {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)

	pageW, pageH := pdf.GetPageSize()
	return &page{
		b:        b,
		pdf:      pdf,
		tr:       pdf.UnicodeTranslatorFromDescriptor(""),
		contentW: pageW - 2*pageMargin,
		pageH:    pageH,
		limit:    pageH - pageMargin,
	}
}

// ensureRoom starts a new page when a block of height h would overflow
// the remaining page height. A block taller than a full page is placed
// at the top of a fresh page and allowed to flow.
func (p *page) ensureRoom(h float64) {
	if p.pdf.GetY()+h <= p.limit {
		return
	}
	p.pdf.AddPage()
}

func (p *page) startBodyPage() {
	p.pdf.AddPage()
}

// renderCover renders the cover artifact on its own dedicated page.
func (p *page) renderCover(c *cover.Artifact) {
	p.pdf.AddPage()

	if c.Image != nil {
		if img, ok := p.b.set.Resolve(c.Image.ImageIndex); ok && embeddable(img) {
			maxW := p.contentW * c.Image.MaxWidthFrac
			maxH := (p.pageH - 2*pageMargin) * c.Image.MaxHeightFrac
			w, h := displayMM(img.Width, img.Height, maxW, maxH)

			name := fmt.Sprintf("cover-%d", c.Image.ImageIndex)
			opts := gofpdf.ImageOptions{ImageType: imageType(img.Format)}
			p.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(img.Data))
			if !p.pdf.Err() {
				x := pageMargin + (p.contentW-w)/2
				p.pdf.ImageOptions(name, x, pageMargin, w, h, false, opts, 0, "")
				p.pdf.SetY(pageMargin + h + blockGap*2)
				p.b.embedded++
			} else {
				p.b.logger.Warn("cover image registration failed", "error", p.pdf.Error())
				p.degrade(c.Image.ImageIndex)
			}
		} else {
			p.degrade(c.Image.ImageIndex)
		}
	} else {
		p.pdf.SetY(p.pageH * coverTopFrac)
	}

	p.pdf.SetFont("Helvetica", "B", titleFontSize)
	p.pdf.MultiCell(p.contentW, titleFontSize/2, p.tr(c.Title), "", "C", false)
	if c.Subtitle != "" {
		p.pdf.Ln(blockGap)
		p.pdf.SetFont("Helvetica", "I", headingFontSize)
		p.pdf.MultiCell(p.contentW, headingFontSize/2, p.tr(c.Subtitle), "", "C", false)
	}
}

// renderTOC renders the table of contents on its own dedicated page.
func (p *page) renderTOC(entries []string) {
	p.pdf.AddPage()
	p.pdf.SetFont("Helvetica", "B", headingFontSize)
	p.pdf.MultiCell(p.contentW, headingFontSize/2, p.tr("Contents"), "", "L", false)
	p.pdf.Ln(blockGap)

	p.pdf.SetFont("Helvetica", "", bodyFontSize)
	for _, title := range entries {
		p.pdf.MultiCell(p.contentW, lineHeight, p.tr(title), "", "L", false)
	}
}

// renderSection renders a heading followed by the section's blocks,
// starting a new page whenever a block would overflow.
func (p *page) renderSection(s doc.Section) {
	if s.Title != "" {
		p.ensureRoom(headingFontSize/2 + blockGap)
		p.pdf.SetFont("Helvetica", "B", headingFontSize)
		p.pdf.MultiCell(p.contentW, headingFontSize/2, p.tr(s.Title), "", "L", false)
		p.pdf.Ln(blockGap / 2)
	}

	for _, blk := range s.Blocks {
		switch blk.Kind {
		case doc.BlockText:
			p.renderText(blk.Text)
		case doc.BlockImage:
			p.renderImage(blk.ImageIndex)
		}
	}
}

// renderText places a text paragraph, moving to a new page first when
// the whole paragraph fits on a page but not in the remaining space.
func (p *page) renderText(text string) {
	p.pdf.SetFont("Helvetica", "", bodyFontSize)
	translated := p.tr(text)

	lines := p.pdf.SplitLines([]byte(translated), p.contentW)
	h := float64(len(lines)) * lineHeight
	if h <= p.limit-pageMargin {
		p.ensureRoom(h)
	}

	p.pdf.MultiCell(p.contentW, lineHeight, translated, "", "L", false)
	p.pdf.Ln(blockGap / 2)
}

// renderImage places an image block with its caption; an image is
// never split across two pages. Unembeddable images degrade to a
// caption-only placeholder with a recoverable warning.
func (p *page) renderImage(idx int) {
	img, ok := p.b.set.Resolve(idx)
	if !ok || !embeddable(img) {
		p.degrade(idx)
		return
	}

	w, h := displayMM(img.Width, img.Height, p.contentW, p.limit-pageMargin-2*lineHeight)

	captionH := 0.0
	caption, hasCaption := p.b.doc.Caption(idx)
	if hasCaption {
		captionH = lineHeight + blockGap/2
	}
	p.ensureRoom(h + captionH + blockGap)

	name := fmt.Sprintf("img-%d-%d", idx, p.b.embedded)
	opts := gofpdf.ImageOptions{ImageType: imageType(img.Format), ReadDpi: false}
	p.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(img.Data))
	if p.pdf.Err() {
		// Registration rejected the stream; fall back to the caption
		// placeholder rather than poisoning the whole document.
		p.b.logger.Warn("image registration failed", "image", idx, "error", p.pdf.Error())
		p.degrade(idx)
		return
	}

	x := pageMargin + (p.contentW-w)/2
	p.pdf.ImageOptions(name, x, p.pdf.GetY(), w, h, false, opts, 0, "")
	p.pdf.SetY(p.pdf.GetY() + h + blockGap/2)
	p.b.embedded++

	if hasCaption {
		p.renderCaption(caption)
	}
	p.pdf.Ln(blockGap / 2)
}

func (p *page) renderCaption(caption string) {
	p.pdf.SetFont("Helvetica", "I", captionFontSize)
	p.pdf.MultiCell(p.contentW, lineHeight*0.8, p.tr(caption), "", "C", false)
}

// degrade writes the caption-only placeholder for an image that cannot
// be embedded and records a recoverable warning.
func (p *page) degrade(idx int) {
	caption, ok := p.b.doc.Caption(idx)
	if !ok {
		caption = fmt.Sprintf("[image %d unavailable]", idx)
	}
	p.ensureRoom(lineHeight + blockGap)
	p.renderCaption(caption)
	p.pdf.Ln(blockGap / 2)

	warning := fmt.Sprintf("embed_warning: image %d degraded to caption-only in pdf", idx)
	p.b.warnings = append(p.b.warnings, warning)
	p.b.logger.Warn("image degraded to caption-only", "image", idx)
}

func embeddable(img images.Normalized) bool {
	if len(img.Data) == 0 || img.Width <= 0 || img.Height <= 0 {
		return false
	}
	return img.Format == images.FormatPNG || img.Format == images.FormatJPEG
}

func imageType(format string) string {
	if format == images.FormatJPEG {
		return "JPG"
	}
	return "PNG"
}

// displayMM converts pixel dimensions to mm at 96 DPI, constrained to
// the content box preserving aspect ratio.
func displayMM(wPx, hPx int, maxW, maxH float64) (float64, float64) {
	w := float64(wPx) * pxToMM
	h := float64(hPx) * pxToMM
	if w > maxW {
		h = h * maxW / w
		w = maxW
	}
	if h > maxH {
		w = w * maxH / h
		h = maxH
	}
	return w, h
}
