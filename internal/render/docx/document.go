package docx

import (
	"fmt"
	"strings"

	"github.com/jackzampolin/bindery/internal/doc"
	"github.com/jackzampolin/bindery/internal/images"
)

// English Metric Units. OOXML expresses drawing extents in EMU;
// 9525 EMU per pixel at 96 DPI.
const (
	emuPerPixel = 9525

	// contentWidthEMU is the usable page width (A4 minus margins).
	contentWidthEMU = 5760000
)

// generateDocument builds word/document.xml: cover page, page break,
// TOC page, page break, then body sections in order.
func (b *Builder) generateDocument() string {
	var sb strings.Builder

	sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing">
<w:body>
`)

	if b.doc.Cover != nil {
		b.writeCover(&sb)
		writePageBreak(&sb)
	}

	if len(b.doc.TOC) > 0 {
		b.writeTOC(&sb)
		writePageBreak(&sb)
	}

	for _, s := range b.doc.Sections {
		b.writeSection(&sb, s)
	}

	sb.WriteString("</w:body>\n</w:document>\n")
	return sb.String()
}

// writeCover renders the cover artifact as the first page.
func (b *Builder) writeCover(sb *strings.Builder) {
	c := b.doc.Cover

	if c.Image != nil {
		if img, ok := b.set.Resolve(c.Image.ImageIndex); ok && embeddable(img) {
			b.writeImage(sb, img, c.Image.ImageIndex)
		} else {
			b.degrade(sb, c.Image.ImageIndex)
		}
	}

	writeStyledParagraph(sb, "Title", c.Title)
	if c.Subtitle != "" {
		writeStyledParagraph(sb, "Subtitle", c.Subtitle)
	}
}

// writeTOC renders the table of contents page.
func (b *Builder) writeTOC(sb *strings.Builder) {
	writeStyledParagraph(sb, "Heading1", "Contents")
	for _, title := range b.doc.TOC {
		writeParagraph(sb, title)
	}
}

// writeSection renders a heading paragraph followed by the section's
// blocks in order.
func (b *Builder) writeSection(sb *strings.Builder, s doc.Section) {
	if s.Title != "" {
		writeStyledParagraph(sb, "Heading1", s.Title)
	}

	for _, blk := range s.Blocks {
		switch blk.Kind {
		case doc.BlockText:
			writeParagraph(sb, blk.Text)

		case doc.BlockImage:
			img, ok := b.set.Resolve(blk.ImageIndex)
			if !ok || !embeddable(img) {
				b.degrade(sb, blk.ImageIndex)
				continue
			}
			b.writeImage(sb, img, blk.ImageIndex)
			if caption, ok := b.doc.Caption(blk.ImageIndex); ok {
				writeStyledParagraph(sb, "Caption", caption)
			}
		}
	}
}

// writeImage embeds an inline image sized to the page-width-constrained
// aspect-preserving dimensions, registering it as a media part.
func (b *Builder) writeImage(sb *strings.Builder, img images.Normalized, idx int) {
	relID := b.addMedia(img)
	cx, cy := displayEMU(img.Width, img.Height)
	n := len(b.media)

	fmt.Fprintf(sb, `<w:p><w:pPr><w:jc w:val="center"/></w:pPr><w:r><w:drawing>
<wp:inline distT="0" distB="0" distL="0" distR="0">
<wp:extent cx="%d" cy="%d"/>
<wp:docPr id="%d" name="Image %d"/>
<a:graphic xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main">
<a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/picture">
<pic:pic xmlns:pic="http://schemas.openxmlformats.org/drawingml/2006/picture">
<pic:nvPicPr><pic:cNvPr id="%d" name="Image %d"/><pic:cNvPicPr/></pic:nvPicPr>
<pic:blipFill><a:blip r:embed="%s"/><a:stretch><a:fillRect/></a:stretch></pic:blipFill>
<pic:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="%d" cy="%d"/></a:xfrm>
<a:prstGeom prst="rect"><a:avLst/></a:prstGeom></pic:spPr>
</pic:pic>
</a:graphicData>
</a:graphic>
</wp:inline>
</w:drawing></w:r></w:p>
`, cx, cy, n, idx, n, idx, relID, cx, cy)
}

// degrade substitutes a caption-only placeholder for an image that
// cannot be embedded and records a recoverable warning. The image is
// never silently dropped.
func (b *Builder) degrade(sb *strings.Builder, idx int) {
	caption, ok := b.doc.Caption(idx)
	if !ok {
		caption = fmt.Sprintf("[image %d unavailable]", idx)
	}
	writeStyledParagraph(sb, "Caption", caption)

	warning := fmt.Sprintf("embed_warning: image %d degraded to caption-only in docx", idx)
	b.warnings = append(b.warnings, warning)
	b.logger.Warn("image degraded to caption-only", "image", idx)
}

// embeddable reports whether a normalized image can be placed in the
// container.
func embeddable(img images.Normalized) bool {
	if len(img.Data) == 0 || img.Width <= 0 || img.Height <= 0 {
		return false
	}
	return img.Format == images.FormatPNG || img.Format == images.FormatJPEG
}

// displayEMU returns drawing extents constrained to the content width,
// preserving aspect ratio.
func displayEMU(w, h int) (int64, int64) {
	cx := int64(w) * emuPerPixel
	cy := int64(h) * emuPerPixel
	if cx > contentWidthEMU {
		cy = cy * contentWidthEMU / cx
		cx = contentWidthEMU
	}
	return cx, cy
}

func writeParagraph(sb *strings.Builder, text string) {
	fmt.Fprintf(sb, "<w:p><w:r><w:t xml:space=\"preserve\">%s</w:t></w:r></w:p>\n", escapeXML(text))
}

func writeStyledParagraph(sb *strings.Builder, style, text string) {
	fmt.Fprintf(sb, "<w:p><w:pPr><w:pStyle w:val=%q/></w:pPr><w:r><w:t xml:space=\"preserve\">%s</w:t></w:r></w:p>\n", style, escapeXML(text))
}

func writePageBreak(sb *strings.Builder) {
	sb.WriteString("<w:p><w:r><w:br w:type=\"page\"/></w:r></w:p>\n")
}

// escapeXML escapes the five XML special characters.
func escapeXML(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return r.Replace(s)
}
