package images

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Extractor pulls images out of a source and normalizes them.
// Extraction is restartable: each call walks the source from the
// beginning and produces images in source order.
type Extractor struct {
	maxEdge int
	logger  *slog.Logger
}

// ExtractorConfig configures a new Extractor.
type ExtractorConfig struct {
	// MaxEdge is the longest-edge pixel limit (default 2000).
	MaxEdge int
	Logger  *slog.Logger
}

// NewExtractor creates a new Extractor.
func NewExtractor(cfg ExtractorConfig) *Extractor {
	maxEdge := cfg.MaxEdge
	if maxEdge <= 0 {
		maxEdge = DefaultMaxEdge
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		maxEdge: maxEdge,
		logger:  logger.With("component", "extractor"),
	}
}

// FromBuffers normalizes an explicit ordered list of raw image buffers.
// A buffer that cannot be decoded fails only that entry, accumulating a
// warning; the extractor continues with the rest. The whole call fails
// only when every buffer is unreadable.
func (e *Extractor) FromBuffers(bufs [][]byte) ([]Normalized, []string, error) {
	if len(bufs) == 0 {
		return nil, nil, nil
	}

	var (
		out      []Normalized
		warnings []string
	)
	for i, buf := range bufs {
		img, err := e.normalize(buf, i)
		if err != nil {
			e.logger.Warn("buffer unreadable", "index", i, "error", err)
			warnings = append(warnings, bufferWarning(i, err))
			continue
		}
		out = append(out, img)
	}

	if len(out) == 0 {
		return nil, warnings, fmt.Errorf("%w: no readable image in %d buffers", ErrExtraction, len(bufs))
	}
	return out, warnings, nil
}

// FromPDF extracts embedded images from a PDF byte buffer, walking
// pages in ascending order and emitting images in draw order within a
// page. A corrupt page fails only that page's extraction; the whole
// call fails only when the source document itself is unreadable.
func (e *Extractor) FromPDF(pdf []byte) ([]Normalized, []string, error) {
	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(pdf), conf)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	var (
		out      []Normalized
		warnings []string
		srcIdx   int
	)
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		pageImgs, err := pdfcpu.ExtractPageImages(ctx, pageNr, false)
		if err != nil {
			e.logger.Warn("page extraction failed", "page", pageNr, "error", err)
			warnings = append(warnings, pageWarning(pageNr, err))
			continue
		}

		// Map keys follow object numbering, which tracks the page's
		// draw order. Sort for a deterministic sequence.
		objNrs := make([]int, 0, len(pageImgs))
		for nr := range pageImgs {
			objNrs = append(objNrs, nr)
		}
		sort.Ints(objNrs)

		for _, nr := range objNrs {
			raw, err := io.ReadAll(pageImgs[nr])
			if err != nil {
				warnings = append(warnings, pageWarning(pageNr, err))
				srcIdx++
				continue
			}
			img, err := e.normalize(raw, srcIdx)
			if err != nil {
				warnings = append(warnings, pageWarning(pageNr, err))
				srcIdx++
				continue
			}
			out = append(out, img)
			srcIdx++
		}
	}

	e.logger.Debug("pdf extraction complete", "pages", ctx.PageCount, "images", len(out), "warnings", len(warnings))
	return out, warnings, nil
}
