package images

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	// Decoders for formats that get re-encoded to the canonical one.
	_ "image/gif"

	xdraw "golang.org/x/image/draw"
)

// normalize decodes a raw buffer, downscales it when the longer edge
// exceeds the configured maximum (preserving aspect ratio) and
// re-encodes non-canonical formats to PNG. When the PNG encoder cannot
// represent the result it falls back to JPEG.
func (e *Extractor) normalize(data []byte, srcIdx int) (Normalized, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Normalized{}, fmt.Errorf("decode: %w", err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	needsResize := w > e.maxEdge || h > e.maxEdge
	canonical := format == FormatPNG || format == FormatJPEG

	// Pass the original bytes through untouched when no work is needed.
	if !needsResize && canonical {
		return Normalized{
			Data:        data,
			Format:      format,
			Width:       w,
			Height:      h,
			SourceIndex: srcIdx,
		}, nil
	}

	if needsResize {
		w, h = fitEdge(w, h, e.maxEdge)
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
		src = dst
	}

	// JPEG sources stay JPEG after resizing; everything else becomes
	// PNG, with a lossy fallback only if PNG encoding fails.
	if format == FormatJPEG {
		out, err := encodeJPEG(src)
		if err != nil {
			return Normalized{}, err
		}
		return Normalized{Data: out, Format: FormatJPEG, Width: w, Height: h, SourceIndex: srcIdx}, nil
	}

	out, err := encodePNG(src)
	if err == nil {
		return Normalized{Data: out, Format: FormatPNG, Width: w, Height: h, SourceIndex: srcIdx}, nil
	}

	out, err = encodeJPEG(src)
	if err != nil {
		return Normalized{}, fmt.Errorf("re-encode: %w", err)
	}
	return Normalized{Data: out, Format: FormatJPEG, Width: w, Height: h, SourceIndex: srcIdx}, nil
}

// fitEdge scales dimensions so the longer edge equals max, preserving
// aspect ratio. Both results stay >= 1.
func fitEdge(w, h, max int) (int, int) {
	if w >= h {
		nh := h * max / w
		if nh < 1 {
			nh = 1
		}
		return max, nh
	}
	nw := w * max / h
	if nw < 1 {
		nw = 1
	}
	return nw, max
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("png encode: %w", err)
	}
	return buf.Bytes(), nil
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}
	return buf.Bytes(), nil
}
