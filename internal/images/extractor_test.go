package images

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/jung-kurt/gofpdf"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func testGIF(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewPaletted(image.Rect(0, 0, w, h), color.Palette{color.Black, color.White})
	var buf bytes.Buffer
	if err := gif.Encode(&buf, img, nil); err != nil {
		t.Fatalf("gif encode: %v", err)
	}
	return buf.Bytes()
}

func TestExtractor_FromBuffers(t *testing.T) {
	e := NewExtractor(ExtractorConfig{MaxEdge: 100})

	t.Run("passes small canonical images through", func(t *testing.T) {
		src := testPNG(t, 40, 30)
		imgs, warnings, err := e.FromBuffers([][]byte{src})
		if err != nil {
			t.Fatalf("FromBuffers() error = %v", err)
		}
		if len(warnings) != 0 {
			t.Errorf("expected no warnings, got %v", warnings)
		}
		if len(imgs) != 1 {
			t.Fatalf("expected 1 image, got %d", len(imgs))
		}
		if imgs[0].Format != FormatPNG {
			t.Errorf("expected png, got %s", imgs[0].Format)
		}
		if imgs[0].Width != 40 || imgs[0].Height != 30 {
			t.Errorf("expected 40x30, got %dx%d", imgs[0].Width, imgs[0].Height)
		}
		if !bytes.Equal(imgs[0].Data, src) {
			t.Error("expected original bytes to pass through untouched")
		}
	})

	t.Run("downscales oversized images preserving aspect", func(t *testing.T) {
		imgs, _, err := e.FromBuffers([][]byte{testPNG(t, 400, 200)})
		if err != nil {
			t.Fatalf("FromBuffers() error = %v", err)
		}
		if imgs[0].Width != 100 || imgs[0].Height != 50 {
			t.Errorf("expected 100x50, got %dx%d", imgs[0].Width, imgs[0].Height)
		}
	})

	t.Run("re-encodes unsupported formats to png", func(t *testing.T) {
		imgs, _, err := e.FromBuffers([][]byte{testGIF(t, 20, 20)})
		if err != nil {
			t.Fatalf("FromBuffers() error = %v", err)
		}
		if imgs[0].Format != FormatPNG {
			t.Errorf("expected png, got %s", imgs[0].Format)
		}
	})

	t.Run("skips unreadable buffers with a warning", func(t *testing.T) {
		imgs, warnings, err := e.FromBuffers([][]byte{
			testPNG(t, 10, 10),
			[]byte("not an image"),
			testPNG(t, 12, 12),
		})
		if err != nil {
			t.Fatalf("FromBuffers() error = %v", err)
		}
		if len(imgs) != 2 {
			t.Fatalf("expected 2 images, got %d", len(imgs))
		}
		if len(warnings) != 1 {
			t.Fatalf("expected 1 warning, got %d", len(warnings))
		}
		// Source indices must track original positions.
		if imgs[0].SourceIndex != 0 || imgs[1].SourceIndex != 2 {
			t.Errorf("unexpected source indices: %d, %d", imgs[0].SourceIndex, imgs[1].SourceIndex)
		}
	})

	t.Run("fails when every buffer is unreadable", func(t *testing.T) {
		_, _, err := e.FromBuffers([][]byte{[]byte("junk"), []byte("more junk")})
		if !errors.Is(err, ErrExtraction) {
			t.Errorf("expected ErrExtraction, got %v", err)
		}
	})

	t.Run("empty input yields nothing", func(t *testing.T) {
		imgs, warnings, err := e.FromBuffers(nil)
		if err != nil || len(imgs) != 0 || len(warnings) != 0 {
			t.Errorf("expected empty result, got %v %v %v", imgs, warnings, err)
		}
	})
}

func testJPEG(t *testing.T, w, h int, tint uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: tint, G: uint8(x % 256), B: uint8(y % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("jpeg encode: %v", err)
	}
	return buf.Bytes()
}

// testPDF builds a document embedding one JPEG per page. JPEG streams
// land in the file verbatim, so callers can locate and mangle a
// specific page's image bytes.
func testPDF(t *testing.T, pageImgs [][]byte) []byte {
	t.Helper()
	pdf := gofpdf.New("P", "mm", "A4", "")
	opts := gofpdf.ImageOptions{ImageType: "JPG"}
	for i, data := range pageImgs {
		pdf.AddPage()
		name := fmt.Sprintf("page-image-%d", i)
		pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
		pdf.ImageOptions(name, 20, 20, 60, 0, false, opts, 0, "")
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatalf("pdf output: %v", err)
	}
	return buf.Bytes()
}

func TestExtractor_FromPDF(t *testing.T) {
	e := NewExtractor(ExtractorConfig{})
	jpgs := [][]byte{testJPEG(t, 40, 30, 10), testJPEG(t, 50, 40, 120), testJPEG(t, 60, 50, 230)}

	t.Run("extracts embedded images in page order", func(t *testing.T) {
		imgs, warnings, err := e.FromPDF(testPDF(t, jpgs))
		if err != nil {
			t.Fatalf("FromPDF() error = %v", err)
		}
		if len(warnings) != 0 {
			t.Errorf("expected no warnings, got %v", warnings)
		}
		if len(imgs) != 3 {
			t.Fatalf("expected 3 images, got %d", len(imgs))
		}
		for i, want := range []int{40, 50, 60} {
			if imgs[i].Width != want {
				t.Errorf("image %d: expected width %d, got %d", i, want, imgs[i].Width)
			}
			if imgs[i].SourceIndex != i {
				t.Errorf("image %d: expected source index %d, got %d", i, i, imgs[i].SourceIndex)
			}
		}
	})

	t.Run("corrupt page loses only that page", func(t *testing.T) {
		src := testPDF(t, jpgs)
		idx := bytes.Index(src, jpgs[1])
		if idx < 0 {
			t.Fatal("fixture does not embed the second image verbatim")
		}
		for i := idx; i < idx+16; i++ {
			src[i] = 0
		}

		imgs, warnings, err := e.FromPDF(src)
		if err != nil {
			t.Fatalf("FromPDF() error = %v", err)
		}
		if len(imgs) != 2 {
			t.Fatalf("expected 2 surviving images, got %d", len(imgs))
		}
		if len(warnings) != 1 || !strings.HasPrefix(warnings[0], "page_extraction_warning") {
			t.Fatalf("expected one page extraction warning, got %v", warnings)
		}
		// Surviving images keep their original positions so captions
		// and anchors still resolve.
		if imgs[0].SourceIndex != 0 || imgs[1].SourceIndex != 2 {
			t.Errorf("unexpected source indices: %d, %d", imgs[0].SourceIndex, imgs[1].SourceIndex)
		}
		if imgs[0].Width != 40 || imgs[1].Width != 60 {
			t.Errorf("unexpected widths: %d, %d", imgs[0].Width, imgs[1].Width)
		}
	})
}

func TestExtractor_FromPDF_Unreadable(t *testing.T) {
	e := NewExtractor(ExtractorConfig{})
	_, _, err := e.FromPDF([]byte("definitely not a pdf"))
	if !errors.Is(err, ErrExtraction) {
		t.Errorf("expected ErrExtraction, got %v", err)
	}
}

func TestFitEdge(t *testing.T) {
	cases := []struct {
		name                 string
		w, h, max            int
		expectedW, expectedH int
	}{
		{"landscape", 400, 200, 100, 100, 50},
		{"portrait", 200, 400, 100, 50, 100},
		{"square", 300, 300, 100, 100, 100},
		{"extreme ratio keeps min 1", 5000, 1, 100, 100, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, h := fitEdge(tc.w, tc.h, tc.max)
			if w != tc.expectedW || h != tc.expectedH {
				t.Errorf("fitEdge(%d, %d, %d) = %d, %d; want %d, %d",
					tc.w, tc.h, tc.max, w, h, tc.expectedW, tc.expectedH)
			}
		})
	}
}

func TestSet_Resolve(t *testing.T) {
	set := NewSet([]Normalized{
		{SourceIndex: 0, Format: FormatPNG},
		{SourceIndex: 2, Format: FormatJPEG},
	})

	if _, ok := set.Resolve(0); !ok {
		t.Error("expected index 0 to resolve")
	}
	if _, ok := set.Resolve(1); ok {
		t.Error("expected index 1 to dangle")
	}
	if img, ok := set.Resolve(2); !ok || img.Format != FormatJPEG {
		t.Errorf("unexpected resolution for index 2: %v %v", img, ok)
	}
}
