package docx

import (
	"archive/zip"
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"testing"

	"github.com/jackzampolin/bindery/internal/cover"
	"github.com/jackzampolin/bindery/internal/doc"
	"github.com/jackzampolin/bindery/internal/images"
)

func testImage(t *testing.T, idx, w, h int) images.Normalized {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return images.Normalized{
		Data:        buf.Bytes(),
		Format:      images.FormatPNG,
		Width:       w,
		Height:      h,
		SourceIndex: idx,
	}
}

func unzipPart(t *testing.T, data []byte, name string) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("zip open: %v", err)
	}
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", name, err)
		}
		defer rc.Close()
		b, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		return string(b)
	}
	t.Fatalf("part %s not found", name)
	return ""
}

func countParts(t *testing.T, data []byte, prefix string) int {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("zip open: %v", err)
	}
	n := 0
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, prefix) {
			n++
		}
	}
	return n
}

func TestBuilder(t *testing.T) {
	t.Run("document with no images has no media parts", func(t *testing.T) {
		d := &doc.Document{
			Title: "Plain",
			Sections: []doc.Section{
				{Title: "One", Blocks: []doc.Block{{Kind: doc.BlockText, Text: "Hello."}}},
			},
		}
		b := NewBuilder(d, nil, nil)
		buf, err := b.BuildToBuffer()
		if err != nil {
			t.Fatalf("BuildToBuffer() error = %v", err)
		}
		if countParts(t, buf.Bytes(), "word/media/") != 0 {
			t.Error("expected no media parts")
		}
		xml := unzipPart(t, buf.Bytes(), "word/document.xml")
		if !strings.Contains(xml, "Hello.") {
			t.Error("expected body text in document.xml")
		}
		if strings.Contains(xml, "w:drawing") {
			t.Error("expected no drawings")
		}
	})

	t.Run("images embed with captions in order", func(t *testing.T) {
		set := images.NewSet([]images.Normalized{testImage(t, 0, 20, 10), testImage(t, 1, 10, 20)})
		d := &doc.Document{
			Title: "Pics",
			Sections: []doc.Section{
				{Title: "One", Blocks: []doc.Block{
					{Kind: doc.BlockText, Text: "Before."},
					{Kind: doc.BlockImage, ImageIndex: 0},
					{Kind: doc.BlockImage, ImageIndex: 1},
				}},
			},
			Captions: map[int]string{0: "First caption"},
		}
		b := NewBuilder(d, set, nil)
		buf, err := b.BuildToBuffer()
		if err != nil {
			t.Fatalf("BuildToBuffer() error = %v", err)
		}
		if got := countParts(t, buf.Bytes(), "word/media/"); got != 2 {
			t.Errorf("expected 2 media parts, got %d", got)
		}
		if b.EmbeddedImageCount() != 2 {
			t.Errorf("expected EmbeddedImageCount 2, got %d", b.EmbeddedImageCount())
		}
		xml := unzipPart(t, buf.Bytes(), "word/document.xml")
		if !strings.Contains(xml, "First caption") {
			t.Error("expected caption paragraph")
		}
		if strings.Count(xml, "<w:drawing>") != 2 {
			t.Error("expected 2 inline drawings")
		}
		rels := unzipPart(t, buf.Bytes(), "word/_rels/document.xml.rels")
		if strings.Count(rels, "relationships/image") != 2 {
			t.Error("expected 2 image relationships")
		}
	})

	t.Run("cover then toc then body with page breaks", func(t *testing.T) {
		art := cover.Compose("The Title", "A Subtitle", nil)
		d := &doc.Document{
			Title: "The Title",
			Cover: &art,
			TOC:   []string{"One", "Two"},
			Sections: []doc.Section{
				{Title: "One", Blocks: []doc.Block{{Kind: doc.BlockText, Text: "Body one."}}},
				{Title: "Two", Blocks: []doc.Block{{Kind: doc.BlockText, Text: "Body two."}}},
			},
		}
		b := NewBuilder(d, nil, nil)
		buf, err := b.BuildToBuffer()
		if err != nil {
			t.Fatalf("BuildToBuffer() error = %v", err)
		}
		xml := unzipPart(t, buf.Bytes(), "word/document.xml")

		iTitle := strings.Index(xml, "The Title")
		iContents := strings.Index(xml, "Contents")
		iBody := strings.Index(xml, "Body one.")
		if !(iTitle < iContents && iContents < iBody) {
			t.Errorf("expected cover < toc < body ordering, got %d %d %d", iTitle, iContents, iBody)
		}
		if strings.Count(xml, `w:type="page"`) != 2 {
			t.Errorf("expected 2 forced page breaks, got %d", strings.Count(xml, `w:type="page"`))
		}
	})

	t.Run("unembeddable cover image degrades to text-only cover", func(t *testing.T) {
		bad := images.Normalized{Data: []byte{1, 2, 3}, Format: "tiff", Width: 10, Height: 10, SourceIndex: 0}
		set := images.NewSet([]images.Normalized{bad})
		art := cover.Compose("The Title", "", &bad)
		d := &doc.Document{
			Title: "The Title",
			Cover: &art,
			Sections: []doc.Section{
				{Title: "One", Blocks: []doc.Block{{Kind: doc.BlockText, Text: "Body."}}},
			},
		}
		b := NewBuilder(d, set, nil)
		buf, err := b.BuildToBuffer()
		if err != nil {
			t.Fatalf("BuildToBuffer() error = %v", err)
		}
		if countParts(t, buf.Bytes(), "word/media/") != 0 {
			t.Error("expected no media for degraded cover image")
		}
		if len(b.Warnings()) != 1 || !strings.Contains(b.Warnings()[0], "embed_warning") {
			t.Fatalf("expected 1 embed warning, got %v", b.Warnings())
		}
		xml := unzipPart(t, buf.Bytes(), "word/document.xml")
		if !strings.Contains(xml, "The Title") {
			t.Error("expected cover title paragraph")
		}
		if strings.Contains(xml, "w:drawing") {
			t.Error("expected no drawing for degraded cover")
		}
	})

	t.Run("unembeddable image degrades to caption-only with warning", func(t *testing.T) {
		bad := images.Normalized{Data: []byte{1, 2, 3}, Format: "tiff", Width: 10, Height: 10, SourceIndex: 0}
		set := images.NewSet([]images.Normalized{bad})
		d := &doc.Document{
			Sections: []doc.Section{
				{Title: "One", Blocks: []doc.Block{{Kind: doc.BlockImage, ImageIndex: 0}}},
			},
			Captions: map[int]string{0: "Orphan caption"},
		}
		b := NewBuilder(d, set, nil)
		buf, err := b.BuildToBuffer()
		if err != nil {
			t.Fatalf("BuildToBuffer() error = %v", err)
		}
		if len(b.Warnings()) != 1 {
			t.Fatalf("expected 1 warning, got %v", b.Warnings())
		}
		if !strings.Contains(b.Warnings()[0], "embed_warning") {
			t.Errorf("unexpected warning: %s", b.Warnings()[0])
		}
		xml := unzipPart(t, buf.Bytes(), "word/document.xml")
		if !strings.Contains(xml, "Orphan caption") {
			t.Error("expected caption-only placeholder")
		}
		if countParts(t, buf.Bytes(), "word/media/") != 0 {
			t.Error("expected no media for degraded image")
		}
	})
}

func TestDisplayEMU(t *testing.T) {
	t.Run("small image keeps native size", func(t *testing.T) {
		cx, cy := displayEMU(100, 50)
		if cx != 100*emuPerPixel || cy != 50*emuPerPixel {
			t.Errorf("unexpected extents: %d x %d", cx, cy)
		}
	})

	t.Run("wide image constrained to content width", func(t *testing.T) {
		cx, cy := displayEMU(4000, 2000)
		if cx != contentWidthEMU {
			t.Errorf("expected width %d, got %d", contentWidthEMU, cx)
		}
		if cy != contentWidthEMU/2 {
			t.Errorf("expected aspect-preserving height %d, got %d", contentWidthEMU/2, cy)
		}
	})
}
