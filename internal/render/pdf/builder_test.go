package pdf

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
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
		img.Set(x, 0, color.RGBA{B: 200, A: 255})
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

func buildBytes(t *testing.T, b *Builder) []byte {
	t.Helper()
	buf, err := b.BuildToBuffer()
	if err != nil {
		t.Fatalf("BuildToBuffer() error = %v", err)
	}
	data := buf.Bytes()
	if len(data) == 0 || !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("expected non-empty PDF output, got %d bytes", len(data))
	}
	return data
}

func TestBuilder(t *testing.T) {
	t.Run("plain document renders", func(t *testing.T) {
		d := &doc.Document{
			Title: "Plain",
			Sections: []doc.Section{
				{Title: "One", Blocks: []doc.Block{{Kind: doc.BlockText, Text: "Hello world."}}},
			},
		}
		b := NewBuilder(d, nil, nil)
		buildBytes(t, b)
		if b.EmbeddedImageCount() != 0 {
			t.Errorf("expected no embedded images, got %d", b.EmbeddedImageCount())
		}
		if len(b.Warnings()) != 0 {
			t.Errorf("expected no warnings, got %v", b.Warnings())
		}
	})

	t.Run("images embed and count", func(t *testing.T) {
		set := images.NewSet([]images.Normalized{testImage(t, 0, 60, 40), testImage(t, 1, 40, 60)})
		d := &doc.Document{
			Sections: []doc.Section{
				{Title: "One", Blocks: []doc.Block{
					{Kind: doc.BlockText, Text: "Before."},
					{Kind: doc.BlockImage, ImageIndex: 0},
					{Kind: doc.BlockImage, ImageIndex: 1},
				}},
			},
			Captions: map[int]string{1: "The second"},
		}
		b := NewBuilder(d, set, nil)
		buildBytes(t, b)
		if b.EmbeddedImageCount() != 2 {
			t.Errorf("expected 2 embedded images, got %d", b.EmbeddedImageCount())
		}
	})

	t.Run("cover and toc render as leading pages", func(t *testing.T) {
		art := cover.Compose("The Title", "Sub", nil)
		d := &doc.Document{
			Title: "The Title",
			Cover: &art,
			TOC:   []string{"One"},
			Sections: []doc.Section{
				{Title: "One", Blocks: []doc.Block{{Kind: doc.BlockText, Text: "Body."}}},
			},
		}
		b := NewBuilder(d, nil, nil)
		data := buildBytes(t, b)
		// Cover page + TOC page + body page.
		if got := strings.Count(string(data), "/Type /Page\n"); got < 3 {
			t.Errorf("expected at least 3 pages, got %d", got)
		}
	})

	t.Run("cover with image embeds it", func(t *testing.T) {
		img := testImage(t, 0, 80, 50)
		set := images.NewSet([]images.Normalized{img})
		art := cover.Compose("Covered", "", &img)
		d := &doc.Document{
			Title:    "Covered",
			Cover:    &art,
			Sections: []doc.Section{{Title: "One"}},
		}
		b := NewBuilder(d, set, nil)
		buildBytes(t, b)
		if b.EmbeddedImageCount() != 1 {
			t.Errorf("expected cover image embedded, got %d", b.EmbeddedImageCount())
		}
	})

	t.Run("oversized image forces a page break, never splits", func(t *testing.T) {
		// Tall enough in pixels to exceed a full A4 content height.
		set := images.NewSet([]images.Normalized{testImage(t, 0, 200, 4000)})
		longText := strings.Repeat("Filler sentence to move the cursor down the page. ", 40)
		d := &doc.Document{
			Sections: []doc.Section{
				{Title: "One", Blocks: []doc.Block{
					{Kind: doc.BlockText, Text: longText},
					{Kind: doc.BlockImage, ImageIndex: 0},
				}},
			},
		}
		b := NewBuilder(d, set, nil)
		data := buildBytes(t, b)
		if got := strings.Count(string(data), "/Type /Page\n"); got < 2 {
			t.Errorf("expected image on a later page, page count %d", got)
		}
		if b.EmbeddedImageCount() != 1 {
			t.Errorf("expected 1 embedded image, got %d", b.EmbeddedImageCount())
		}
	})

	t.Run("unembeddable image degrades with warning", func(t *testing.T) {
		bad := images.Normalized{Data: []byte{9}, Format: "bmp", Width: 5, Height: 5, SourceIndex: 0}
		set := images.NewSet([]images.Normalized{bad})
		d := &doc.Document{
			Sections: []doc.Section{
				{Title: "One", Blocks: []doc.Block{{Kind: doc.BlockImage, ImageIndex: 0}}},
			},
			Captions: map[int]string{0: "Degraded caption"},
		}
		b := NewBuilder(d, set, nil)
		buildBytes(t, b)
		if b.EmbeddedImageCount() != 0 {
			t.Errorf("expected no embedded images, got %d", b.EmbeddedImageCount())
		}
		if len(b.Warnings()) != 1 || !strings.Contains(b.Warnings()[0], "embed_warning") {
			t.Errorf("expected embed warning, got %v", b.Warnings())
		}
	})
}

func approx(a, b float64) bool {
	d := a - b
	return d < 0.01 && d > -0.01
}

func TestDisplayMM(t *testing.T) {
	t.Run("fits width", func(t *testing.T) {
		w, h := displayMM(2000, 1000, 160, 240)
		if !approx(w, 160) {
			t.Errorf("expected width 160, got %f", w)
		}
		if !approx(h, 80) {
			t.Errorf("expected aspect-preserving height 80, got %f", h)
		}
	})

	t.Run("fits height", func(t *testing.T) {
		w, h := displayMM(100, 4000, 160, 200)
		if !approx(h, 200) {
			t.Errorf("expected height 200, got %f", h)
		}
		if w >= 160 {
			t.Errorf("expected narrow width, got %f", w)
		}
	})

	t.Run("small image keeps native size", func(t *testing.T) {
		w, h := displayMM(96, 96, 160, 240)
		if !approx(w, 25.4) || !approx(h, 25.4) {
			t.Errorf("expected 25.4mm square, got %f x %f", w, h)
		}
	})
}
