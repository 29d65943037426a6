// Package docx renders the logical document to an OOXML word
// processing container.
package docx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jackzampolin/bindery/internal/doc"
	"github.com/jackzampolin/bindery/internal/images"
)

// Builder creates DOCX files from a logical document and its image set.
type Builder struct {
	doc    *doc.Document
	set    images.Set
	logger *slog.Logger

	// media collects images actually embedded, in relationship order.
	media []mediaEntry

	// warnings accumulates degrade events; the caller surfaces them on
	// the job.
	warnings []string
}

type mediaEntry struct {
	name   string // file name under word/media/
	relID  string
	format string
	data   []byte
}

// NewBuilder creates a new DOCX builder.
func NewBuilder(d *doc.Document, set images.Set, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		doc:    d,
		set:    set,
		logger: logger.With("component", "docx"),
	}
}

// Build generates the DOCX and writes it to the specified path.
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

// BuildToBuffer generates the DOCX and returns it as a byte buffer.
func (b *Builder) BuildToBuffer() (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	if err := b.WriteTo(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteTo writes the DOCX container to a writer.
func (b *Builder) WriteTo(w io.Writer) error {
	// The document part is generated first so the media list and
	// relationship ids exist before the parts referencing them.
	document := b.generateDocument()

	zw := zip.NewWriter(w)
	defer zw.Close()

	parts := []struct {
		name    string
		content string
	}{
		{"[Content_Types].xml", b.generateContentTypes()},
		{"_rels/.rels", rootRels},
		{"word/styles.xml", stylesXML},
		{"word/_rels/document.xml.rels", b.generateDocumentRels()},
		{"word/document.xml", document},
	}
	for _, p := range parts {
		fw, err := zw.Create(p.name)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", p.name, err)
		}
		if _, err := fw.Write([]byte(p.content)); err != nil {
			return fmt.Errorf("failed to write %s: %w", p.name, err)
		}
	}

	for _, m := range b.media {
		fw, err := zw.Create("word/media/" + m.name)
		if err != nil {
			return fmt.Errorf("failed to create media %s: %w", m.name, err)
		}
		if _, err := fw.Write(m.data); err != nil {
			return fmt.Errorf("failed to write media %s: %w", m.name, err)
		}
	}

	return nil
}

// Warnings returns the degrade warnings accumulated during the build.
func (b *Builder) Warnings() []string {
	return b.warnings
}

// EmbeddedImageCount returns how many images were physically embedded.
func (b *Builder) EmbeddedImageCount() int {
	return len(b.media)
}

// addMedia registers an image for embedding and returns its
// relationship id.
func (b *Builder) addMedia(img images.Normalized) string {
	ext := "png"
	if img.Format == images.FormatJPEG {
		ext = "jpeg"
	}
	n := len(b.media) + 1
	m := mediaEntry{
		name:   fmt.Sprintf("image%d.%s", n, ext),
		relID:  fmt.Sprintf("rIdImg%d", n),
		format: img.Format,
		data:   img.Data,
	}
	b.media = append(b.media, m)
	return m.relID
}

// generateContentTypes writes the [Content_Types].xml part.
func (b *Builder) generateContentTypes() string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
  <Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
  <Default Extension="xml" ContentType="application/xml"/>
  <Default Extension="png" ContentType="image/png"/>
  <Default Extension="jpeg" ContentType="image/jpeg"/>
  <Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
  <Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>
</Types>`
}

// generateDocumentRels writes word/_rels/document.xml.rels including
// one relationship per embedded image.
func (b *Builder) generateDocumentRels() string {
	var sb bytes.Buffer
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rIdStyles" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>
`)
	for _, m := range b.media {
		fmt.Fprintf(&sb, `  <Relationship Id="%s" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="media/%s"/>
`, m.relID, m.name)
	}
	sb.WriteString("</Relationships>")
	return sb.String()
}

const rootRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

const stylesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:style w:type="paragraph" w:styleId="Title">
    <w:name w:val="Title"/>
    <w:rPr><w:b/><w:sz w:val="56"/></w:rPr>
  </w:style>
  <w:style w:type="paragraph" w:styleId="Subtitle">
    <w:name w:val="Subtitle"/>
    <w:rPr><w:i/><w:sz w:val="32"/></w:rPr>
  </w:style>
  <w:style w:type="paragraph" w:styleId="Heading1">
    <w:name w:val="heading 1"/>
    <w:rPr><w:b/><w:sz w:val="36"/></w:rPr>
  </w:style>
  <w:style w:type="paragraph" w:styleId="Caption">
    <w:name w:val="caption"/>
    <w:rPr><w:i/><w:sz w:val="18"/></w:rPr>
  </w:style>
</w:styles>`
